package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sheetsync/internal/clock"
	"github.com/roach88/sheetsync/internal/config"
	"github.com/roach88/sheetsync/internal/engine"
	"github.com/roach88/sheetsync/internal/logging"
	"github.com/roach88/sheetsync/internal/metrics"
	"github.com/roach88/sheetsync/internal/notify"
	"github.com/roach88/sheetsync/internal/queue"
	"github.com/roach88/sheetsync/internal/record"
	"github.com/roach88/sheetsync/internal/sink"
	"github.com/roach88/sheetsync/internal/store"
)

// app is one wired process: configuration, loggers, the database and the
// sync engine on top of them.
type app struct {
	cfg      *config.Config
	logs     *logging.Loggers
	registry *record.Registry
	store    *store.Store
	metrics  *metrics.Metrics
	jobs     queue.Queue
	manager  *engine.SyncManager

	// dryRun holds the in-memory sheet of a dry run, nil otherwise.
	dryRun *sink.MemoryBackend
}

// openApp loads the config and wires the engine. A dry run writes to an
// in-memory sheet and keeps its retries in memory.
func openApp(cmd *cobra.Command, opts *RootOptions, dryRun bool) (*app, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	logs, err := logging.New(cfg.Logging, cmd.ErrOrStderr(), opts.Verbose)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to set up logging", err)
	}
	slog.SetDefault(logs.App)

	a := &app{cfg: cfg, logs: logs, metrics: metrics.New(nil)}
	if err := a.wire(opts, dryRun); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(opts *RootOptions, dryRun bool) error {
	cfg := a.cfg
	var err error
	a.registry, err = cfg.Registry()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid record types", err)
	}

	slog.Debug("opening database", "driver", cfg.Database.Driver)
	a.store, err = store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}

	channels, err := notify.Channels(cfg.Notifications.Channels, cfg.Notifications.WebhookURL,
		logging.Component(a.logs.App, "notify"))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid notification channels", err)
	}
	events := notify.NewDispatcher(cfg.Notifications.NotifyOn,
		notify.WithChannels(channels...),
		notify.WithLogger(logging.Component(a.logs.App, "notify")))
	events.Subscribe(a.metrics.HandleEvent)

	connect := opts.Connector
	switch {
	case dryRun:
		a.dryRun = sink.NewMemoryBackend()
		connect = sink.Static(a.dryRun)
	case connect == nil:
		connect = googleConnector(cfg.Sheets.CredentialsFile)
	}
	rl := cfg.Sheets.RateLimit
	client := sink.NewClient(connect,
		sink.NewWindow(rl.MaxRequests, rl.Period(), clock.Real{}),
		sink.WithLogger(logging.Component(a.logs.Engine, "sink")),
		sink.WithObserver(a.metrics))

	if dryRun {
		a.jobs = queue.NewMemory()
	} else {
		a.jobs = a.store.Jobs(time.Now)
	}

	a.manager = engine.NewSyncManager(a.registry, a.store, client, a.jobs,
		engine.WithLogger(logging.Component(a.logs.Engine, "engine")),
		engine.WithDispatcher(events),
		engine.WithDefaults(engine.Defaults{
			BatchSize:  cfg.Defaults.BatchSize,
			Mode:       cfg.Defaults.SyncMode,
			Timeout:    cfg.Defaults.Timeout,
			MaxRetries: cfg.Defaults.Retries,
		}))
	return nil
}

// googleConnector resolves credentials on first use, so commands that
// never touch the sheet never need them.
func googleConnector(credentialsFile string) sink.Connector {
	return func(ctx context.Context) (sink.Backend, error) {
		ts, err := sink.TokenSource(ctx, credentialsFile)
		if err != nil {
			return nil, err
		}
		return sink.GoogleConnector(ts)(ctx)
	}
}

// Close releases the database and the log file.
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Error("error closing database", "error", err)
		}
	}
	if err := a.logs.Close(); err != nil {
		slog.Error("error closing log file", "error", err)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM, or when parent is.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
