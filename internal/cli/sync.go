package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sheetsync/internal/engine"
	"github.com/roach88/sheetsync/internal/model"
	"github.com/roach88/sheetsync/internal/record"
	"github.com/roach88/sheetsync/internal/sink"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	IDs     []int64
	Mode    string
	Timeout time.Duration
	DryRun  bool
}

// SyncResult is the outcome of one sync command.
type SyncResult struct {
	RecordType      string       `json:"record_type"`
	SyncStateID     string       `json:"sync_state_id"`
	Kind            model.Kind   `json:"sync_type"`
	Mode            model.Mode   `json:"sync_mode"`
	Status          model.Status `json:"status"`
	TotalProcessed  uint64       `json:"total_processed"`
	LastProcessedID *int64       `json:"last_processed_id,omitempty"`
	Error           string       `json:"error,omitempty"`
	DryRun          bool         `json:"dry_run,omitempty"`
	SheetRows       int          `json:"sheet_rows,omitempty"` // dry runs only
}

// Text implements Texter.
func (r SyncResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s sync %s: %d records (%s mode, state %s)",
		r.RecordType, r.Kind, r.Status, r.TotalProcessed, r.Mode, r.SyncStateID)
	if r.Error != "" {
		fmt.Fprintf(&b, "\nerror: %s", r.Error)
	}
	if r.DryRun {
		fmt.Fprintf(&b, "\ndry run: %d sheet rows written to memory, state discarded", r.SheetRows)
	}
	return b.String()
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync <record-type>",
		Short: "Sync a record type to its sheet",
		Long: `Run a full sync of every eligible row of a record type, or a partial
sync of explicit ids with --ids.

A failed run schedules a retry of the rows it did not write; run the worker
to process retries.

Example:
  sheetsync sync orders --config sheetsync.yaml
  sheetsync sync orders --ids 12,15,19
  sheetsync sync orders --mode replace --dry-run`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts, args[0])
		},
	}

	cmd.Flags().Int64SliceVar(&opts.IDs, "ids", nil, "record ids for a partial sync (comma separated)")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "sync mode (append|replace); defaults to the record type's")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "run timeout; defaults to defaults.timeout")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "write to an in-memory sheet and discard the run's state")

	return cmd
}

func runSync(cmd *cobra.Command, opts *SyncOptions, recordType string) error {
	a, err := openApp(cmd, opts.RootOptions, opts.DryRun)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	runOpts := engine.Options{
		Mode:    model.Mode(opts.Mode),
		Timeout: opts.Timeout,
		DryRun:  opts.DryRun,
	}
	var st *model.SyncState
	if cmd.Flags().Changed("ids") {
		st, err = a.manager.PartialSync(ctx, recordType, opts.IDs, runOpts)
	} else {
		st, err = a.manager.FullSync(ctx, recordType, runOpts)
	}
	if record.IsValidationError(err) {
		return WrapExitError(ExitCommandError, "cannot sync "+recordType, err)
	}
	if st == nil {
		return WrapExitError(ExitFailure, "sync failed", err)
	}

	res := SyncResult{
		RecordType:      st.RecordType,
		SyncStateID:     st.ID,
		Kind:            st.Kind,
		Mode:            st.Mode,
		Status:          st.Status,
		TotalProcessed:  st.TotalProcessed,
		LastProcessedID: st.LastProcessedID,
		Error:           st.ErrorMessage,
	}
	if a.dryRun != nil {
		res.DryRun = true
		if d, rerr := a.registry.Resolve(recordType); rerr == nil {
			res.SheetRows = len(a.dryRun.Grid(sink.Target{SpreadsheetID: d.SpreadsheetID, SheetName: d.SheetName}))
		}
		if derr := a.store.DeleteSyncState(context.WithoutCancel(ctx), st.ID); derr != nil {
			return WrapExitError(ExitCommandError, "failed to discard dry-run state", derr)
		}
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if perr := out.Success(res); perr != nil {
		return perr
	}
	if err != nil {
		return WrapExitError(ExitFailure, "sync failed", err)
	}
	return nil
}
