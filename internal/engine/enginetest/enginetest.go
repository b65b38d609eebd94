// Package enginetest provides an in-memory engine that speaks the wire
// protocol over pipes, for tests of the adapter and supervisor.
package enginetest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/adubusi/AI-Family/internal/engine"
	"github.com/adubusi/AI-Family/internal/house"
)

// ErrKilled is the exit error of a killed engine.
var ErrKilled = errors.New("enginetest: engine killed")

// Script drives a fake engine run.
type Script struct {
	Catalog       engine.Catalog
	WarmupSteps   int
	Steps         int
	TimestepHours float64

	// Hold keeps the engine alive after the last step until it is killed.
	Hold bool

	// Values returns the step values for step i (warm-up steps included).
	// Nil reports DefaultFrame for every step.
	Values func(i int) []float64

	// HourFor returns the hour of stepping step i (0-based after warm-up).
	// Nil counts up from midnight by TimestepHours.
	HourFor func(i int) float64
}

// DefaultFrame is a steady house at 20 °C, 50 % RH, no HVAC energy, -4 °C outside.
func DefaultFrame() engine.Frame {
	f := engine.Frame{Outdoor: -4}
	for i := 0; i < house.ZoneCount; i++ {
		f.Rooms = append(f.Rooms, engine.RoomReading{Temperature: 20, Humidity: 50})
	}
	return f
}

// NewScript returns a script announcing the standard catalog for the default
// house, with 10-minute timesteps.
func NewScript(warmup, steps int) Script {
	return Script{
		Catalog:       engine.StandardCatalog(house.DefaultModel()),
		WarmupSteps:   warmup,
		Steps:         steps,
		TimestepHours: 1.0 / 6,
	}
}

// Engine is a running fake engine. It implements engine.Process.
type Engine struct {
	script Script

	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter

	killed   chan struct{}
	killOnce sync.Once
	exited   chan struct{}
	exitErr  error

	mu        sync.Mutex
	actuated  [][]engine.Write
	completed int
}

// Start runs s in a new goroutine.
func Start(s Script) *Engine {
	e := &Engine{
		script: s,
		killed: make(chan struct{}),
		exited: make(chan struct{}),
	}
	e.stdoutR, e.stdoutW = io.Pipe()
	e.stdinR, e.stdinW = io.Pipe()
	go e.run()
	return e
}

func (e *Engine) run() {
	defer close(e.exited)
	defer e.stdinR.Close()

	err := e.play()
	select {
	case <-e.killed:
		err = ErrKilled
	default:
	}
	e.exitErr = err
	e.stdoutW.CloseWithError(err)
}

func (e *Engine) play() error {
	conn := engine.NewConn(e.stdinR, e.stdoutW)
	if err := conn.Send(e.script.Catalog.Message()); err != nil {
		return err
	}

	total := e.script.WarmupSteps + e.script.Steps
	for i := 0; i < total; i++ {
		warm := i < e.script.WarmupSteps
		msg := engine.Message{
			Type:          engine.TypeStep,
			Warmup:        warm,
			TimestepHours: e.script.TimestepHours,
			Values:        e.values(i),
		}
		if !warm {
			msg.Hour = e.hour(i - e.script.WarmupSteps)
		}
		if err := conn.Send(msg); err != nil {
			return err
		}
		reply, err := conn.Receive()
		if err != nil {
			return err
		}
		if reply.Type != engine.TypeActuate {
			return fmt.Errorf("enginetest: step %d answered with %q", i, reply.Type)
		}
		e.mu.Lock()
		e.actuated = append(e.actuated, reply.Writes)
		e.completed++
		e.mu.Unlock()
	}

	if e.script.Hold {
		<-e.killed
		return ErrKilled
	}
	return conn.Send(engine.Message{Type: engine.TypeDone})
}

func (e *Engine) values(i int) []float64 {
	if e.script.Values != nil {
		return e.script.Values(i)
	}
	return DefaultFrame().Values()
}

func (e *Engine) hour(i int) float64 {
	if e.script.HourFor != nil {
		return e.script.HourFor(i)
	}
	return float64(i) * e.script.TimestepHours
}

// Stdout implements engine.Process.
func (e *Engine) Stdout() io.Reader { return e.stdoutR }

// Stdin implements engine.Process.
func (e *Engine) Stdin() io.Writer { return e.stdinW }

// Pid implements engine.Process.
func (e *Engine) Pid() int { return 0 }

// Kill stops the engine and breaks both pipes.
func (e *Engine) Kill() error {
	e.killOnce.Do(func() {
		close(e.killed)
		e.stdoutW.CloseWithError(ErrKilled)
		e.stdinR.CloseWithError(ErrKilled)
	})
	return nil
}

// Wait blocks until the script finishes or the engine is killed.
func (e *Engine) Wait() error {
	<-e.exited
	return e.exitErr
}

// Exited is closed when the engine stops.
func (e *Engine) Exited() <-chan struct{} { return e.exited }

// Completed returns the number of steps the bridge answered.
func (e *Engine) Completed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.completed
}

// Actuations returns a copy of the writes received per answered step.
func (e *Engine) Actuations() [][]engine.Write {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]engine.Write, len(e.actuated))
	copy(out, e.actuated)
	return out
}

// Launcher starts a fake engine per Launch and remembers each one.
type Launcher struct {
	Script Script
	// Scripts, when set, are used in order for successive launches; later
	// launches fall back to Script.
	Scripts []Script
	// Err, when set, is returned by Launch instead of starting an engine.
	Err error

	mu          sync.Mutex
	engines     []*Engine
	invocations []engine.Invocation
}

// Launch implements engine.Launcher.
func (l *Launcher) Launch(ctx context.Context, inv engine.Invocation) (engine.Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.Err != nil {
		return nil, l.Err
	}
	l.mu.Lock()
	script := l.Script
	if n := len(l.engines); n < len(l.Scripts) {
		script = l.Scripts[n]
	}
	e := Start(script)
	l.engines = append(l.engines, e)
	l.invocations = append(l.invocations, inv)
	l.mu.Unlock()
	return e, nil
}

// Engines returns every engine launched so far.
func (l *Launcher) Engines() []*Engine {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Engine(nil), l.engines...)
}

// Last returns the most recent engine, or nil.
func (l *Launcher) Last() *Engine {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.engines) == 0 {
		return nil
	}
	return l.engines[len(l.engines)-1]
}

// Invocations returns the invocation of every launch.
func (l *Launcher) Invocations() []engine.Invocation {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]engine.Invocation(nil), l.invocations...)
}
