package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/sheetsync/internal/logging"
	"github.com/roach88/sheetsync/internal/queue"
)

// WorkerOptions holds flags for the worker command.
type WorkerOptions struct {
	*RootOptions
	Once        bool
	MetricsAddr string
}

// WorkerResult is printed by worker --once.
type WorkerResult struct {
	Ran int `json:"ran"`
}

// Text implements Texter.
func (r WorkerResult) Text() string {
	return fmt.Sprintf("ran %d retry jobs", r.Ran)
}

// NewWorkerCommand creates the worker command.
func NewWorkerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WorkerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process scheduled retries",
		Long: `Run the retry worker. Failed syncs enqueue partial syncs of their unwritten
rows with a delay; the worker runs each one when it falls due.

With --metrics-addr (or metrics.addr) Prometheus metrics are served at
/metrics while the worker runs.

Example:
  sheetsync worker --config sheetsync.yaml
  sheetsync worker --once`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "run the jobs due now and exit")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

func runWorker(cmd *cobra.Command, opts *WorkerOptions) error {
	a, err := openApp(cmd, opts.RootOptions, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	w := queue.NewWorker(a.jobs, a.manager,
		queue.WithPollInterval(a.cfg.Queue.PollInterval),
		queue.WithWorkerLogger(logging.Component(a.logs.Engine, "queue")))

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Once {
		n, err := w.RunOnce(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "worker failed", err)
		}
		return out.Success(WorkerResult{Ran: n})
	}

	addr := opts.MetricsAddr
	if addr == "" {
		addr = a.cfg.Metrics.Addr
	}
	if addr != "" {
		go func() {
			if err := a.metrics.Serve(ctx, addr); err != nil {
				slog.Error("metrics server failed", "addr", addr, "error", err)
			}
		}()
		slog.Info("serving metrics", "addr", addr)
	}

	slog.Info("worker starting", "poll_interval", a.cfg.Queue.PollInterval)
	fmt.Fprintln(cmd.OutOrStdout(), "Worker started. Processing retries...")
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "worker error", err)
	}
	slog.Info("worker stopped gracefully")
	return nil
}
