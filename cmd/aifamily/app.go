package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/adubusi/AI-Family/internal/api"
	"github.com/adubusi/AI-Family/internal/channel"
	"github.com/adubusi/AI-Family/internal/config"
	"github.com/adubusi/AI-Family/internal/engine"
	"github.com/adubusi/AI-Family/internal/household"
	"github.com/adubusi/AI-Family/internal/logging"
	"github.com/adubusi/AI-Family/internal/publish"
	"github.com/adubusi/AI-Family/internal/store"
	"github.com/adubusi/AI-Family/internal/supervisor"
)

// app is the wired simulation shared by run and mcp-server.
type app struct {
	cfg     *config.Config
	dataDir string
	log     *slog.Logger
	steps   *logging.StepLogger
	ch      *channel.Channel
	sup     *supervisor.Supervisor
	metrics *api.Metrics
	history store.HistoryStore
	pub     publish.Publisher
	monitor *household.Monitor
}

// newApp wires every component from cfg. Logs go to logOut; nothing is
// started until the caller runs the household.
func newApp(cfg *config.Config, logOut io.Writer) (*app, error) {
	a := &app{cfg: cfg, log: logging.NewLogger(cfg.Logging.Level, logOut)}

	dir, err := config.Dir()
	if err != nil {
		dir = ".aifamily"
	}
	if err := store.EnsureDataDir(dir); err != nil {
		return nil, err
	}
	a.dataDir = dir
	a.steps = logging.NewStepLogger(dir, cfg.Logging.Level)

	if cfg.Channel.File != "" {
		ch, err := channel.Create(cfg.Channel.File)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("creating shared channel: %w", err)
		}
		a.ch = ch
		a.log.Info("channel shared", "file", cfg.Channel.File)
	}

	dbPath := cfg.Store.Path
	if dbPath == "" {
		dbPath = filepath.Join(dir, store.DBFile)
	}
	history, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening history: %w", err)
	}
	a.history = history

	pub, err := publish.New(cfg.Publish, a.log)
	if err != nil {
		a.log.Warn("telemetry disabled", "error", err)
		pub = publish.Nop{}
	}
	a.pub = pub

	a.metrics = api.NewMetrics()
	a.sup = supervisor.New(supervisor.Options{
		Invocation: engine.Invocation{
			Command:     cfg.Engine.Command,
			Args:        cfg.Engine.Args,
			WeatherFile: cfg.Engine.WeatherFile,
			WorkDir:     cfg.Engine.WorkDir,
			Stderr:      logOut,
		},
		Model:      cfg.House,
		Tariff:     cfg.Tariff,
		Adapter:    cfg.Engine.Config,
		Channel:    a.ch,
		Logger:     a.log,
		StepLogger: a.steps,
		Observer:   a.metrics,
	})

	a.monitor = household.NewMonitor(a.sup, cfg.Household,
		household.WithLogger(a.log),
		household.WithListener(store.NewRecorder(a.history, a.log)),
		household.WithListener(publish.NewListener(a.pub, a.log)),
	)
	return a, nil
}

// Close stops the engine and releases every resource.
func (a *app) Close() error {
	var errs []error
	if a.sup != nil {
		errs = append(errs, a.sup.Close())
	}
	if a.pub != nil {
		errs = append(errs, a.pub.Close())
	}
	if a.history != nil {
		errs = append(errs, a.history.Close())
	}
	if a.ch != nil {
		errs = append(errs, a.ch.Close())
	}
	a.steps.Close()
	return errors.Join(errs...)
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, stopSignals()...)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
