// Package publish ships household telemetry to message brokers: the live
// channel snapshot over MQTT, hourly records and day summaries over Kafka.
// Publishing is best effort; failures are logged by callers and never stop
// the simulation.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adubusi/AI-Family/internal/channel"
	"github.com/adubusi/AI-Family/internal/household"
	"github.com/adubusi/AI-Family/internal/logging"
)

// Kind names what an Event carries.
type Kind string

const (
	KindState Kind = "state"
	KindHour  Kind = "hour"
	KindDay   Kind = "day"
)

// Event is one telemetry message. Payload is JSON-encoded by the sink.
type Event struct {
	Kind    Kind
	Key     string
	Time    time.Time
	Payload any
}

// Publisher delivers events to a sink.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Config selects and configures the sinks. A sink with no broker is off.
type Config struct {
	MQTT          MQTTConfig    `json:"mqtt" yaml:"mqtt"`
	Kafka         KafkaConfig   `json:"kafka" yaml:"kafka"`
	StateInterval time.Duration `json:"state_interval" yaml:"state_interval"`
}

// DefaultConfig has every sink off and a one-second state interval.
func DefaultConfig() Config {
	return Config{
		MQTT:          MQTTConfig{Topic: "aifamily", ClientID: "aifamily"},
		Kafka:         KafkaConfig{Topic: "aifamily.history"},
		StateInterval: time.Second,
	}
}

// Enabled reports whether any sink is configured.
func (c Config) Enabled() bool { return c.MQTT.Broker != "" || len(c.Kafka.Brokers) > 0 }

// Validate checks the config.
func (c Config) Validate() error {
	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		return fmt.Errorf("publish.mqtt.topic is required when a broker is set")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("publish.mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("publish.kafka.topic is required when brokers are set")
	}
	if c.StateInterval < 0 {
		return fmt.Errorf("publish.state_interval must not be negative")
	}
	return nil
}

// New connects every configured sink. It returns Nop when none is.
func New(cfg Config, log *slog.Logger) (Publisher, error) {
	var sinks Multi
	if cfg.MQTT.Broker != "" {
		m, err := NewMQTT(cfg.MQTT)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, m)
	}
	if len(cfg.Kafka.Brokers) > 0 {
		sinks = append(sinks, NewKafka(cfg.Kafka))
	}
	switch len(sinks) {
	case 0:
		return Nop{}, nil
	case 1:
		return sinks[0], nil
	}
	return sinks, nil
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Multi fans an event out to every publisher.
type Multi []Publisher

// Publish sends e to every publisher and joins their errors.
func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every publisher.
func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	closed bool
	Err    error // returned from Publish when set
}

// Publish records e.
func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, e)
	return nil
}

// Close marks the recorder closed.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Events returns the recorded events of the given kinds, or all when none
// are given.
func (r *Recorder) Events(kinds ...Kind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if len(kinds) == 0 || containsKind(kinds, e.Kind) {
			out = append(out, e)
		}
	}
	return out
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func containsKind(ks []Kind, k Kind) bool {
	for _, x := range ks {
		if x == k {
			return true
		}
	}
	return false
}

// Listener publishes a monitor's hourly records and day summaries, keyed by
// day id.
type Listener struct {
	pub Publisher
	log *slog.Logger
	now func() time.Time
}

// NewListener returns a household.Listener backed by p.
func NewListener(p Publisher, log *slog.Logger) *Listener {
	return &Listener{pub: p, log: logging.OrDiscard(log), now: time.Now}
}

// OnHour implements household.Listener.
func (l *Listener) OnHour(ctx context.Context, r household.HourRecord) {
	e := Event{Kind: KindHour, Key: r.DayID, Time: l.now(), Payload: r}
	if err := l.pub.Publish(ctx, e); err != nil {
		l.log.Warn("publishing hour record", "day", r.Day, "hour", r.Hour, "error", err)
	}
}

// OnDay implements household.Listener.
func (l *Listener) OnDay(ctx context.Context, s household.DaySummary) {
	e := Event{Kind: KindDay, Key: s.DayID, Time: l.now(), Payload: s}
	if err := l.pub.Publish(ctx, e); err != nil {
		l.log.Warn("publishing day summary", "day", s.Day, "error", err)
	}
}

// Snapshotter is anything with a live channel snapshot and a run id.
type Snapshotter interface {
	Snapshot() channel.Snapshot
	RunID() string
}

// RunState publishes src's snapshot every interval until ctx is done.
// An interval of zero or less disables it.
func RunState(ctx context.Context, p Publisher, src Snapshotter, interval time.Duration, log *slog.Logger) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	log = logging.OrDiscard(log)
	t := time.NewTicker(interval)
	defer t.Stop()

	failing := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			err := p.Publish(ctx, Event{Kind: KindState, Key: src.RunID(), Time: now, Payload: src.Snapshot()})
			switch {
			case err != nil && !failing:
				log.Warn("publishing state", "error", err)
				failing = true
			case err == nil && failing:
				log.Info("publishing state recovered")
				failing = false
			}
		}
	}
}
