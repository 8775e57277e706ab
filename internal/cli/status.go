package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sheetsync/internal/model"
	"github.com/roach88/sheetsync/internal/record"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Limit int
}

// RunSummary is one run in a StatusResult.
type RunSummary struct {
	ID             string       `json:"id"`
	Kind           model.Kind   `json:"sync_type"`
	Mode           model.Mode   `json:"sync_mode"`
	Status         model.Status `json:"status"`
	TotalProcessed uint64       `json:"total_processed"`
	StartedAt      time.Time    `json:"started_at"`
	Error          string       `json:"error,omitempty"`
}

// StatusResult reports a record type's recent sync history.
type StatusResult struct {
	RecordType       string       `json:"record_type"`
	LastSuccessful   *RunSummary  `json:"last_successful,omitempty"`
	FailuresLastHour int          `json:"failures_last_hour"`
	MaxRetries       int          `json:"max_retries"`
	Recent           []RunSummary `json:"recent"`
}

// Text implements Texter.
func (r StatusResult) Text() string {
	var b strings.Builder
	if r.LastSuccessful == nil {
		fmt.Fprintf(&b, "%s: never synced successfully\n", r.RecordType)
	} else {
		fmt.Fprintf(&b, "%s: last success %s (%s, %d records)\n", r.RecordType,
			r.LastSuccessful.StartedAt.Format(time.RFC3339), r.LastSuccessful.Kind, r.LastSuccessful.TotalProcessed)
	}
	fmt.Fprintf(&b, "failures in the last hour: %d/%d\n", r.FailuresLastHour, r.MaxRetries)
	if len(r.Recent) == 0 {
		b.WriteString("no runs recorded")
		return b.String()
	}
	b.WriteString("recent runs:")
	for _, run := range r.Recent {
		fmt.Fprintf(&b, "\n  %s  %-7s %-7s %-9s %6d  %s", run.ID, run.Kind, run.Mode, run.Status,
			run.TotalProcessed, run.StartedAt.Format(time.RFC3339))
		if run.Error != "" {
			fmt.Fprintf(&b, "  %s", run.Error)
		}
	}
	return b.String()
}

func summarize(st model.SyncState) RunSummary {
	return RunSummary{
		ID:             st.ID,
		Kind:           st.Kind,
		Mode:           st.Mode,
		Status:         st.Status,
		TotalProcessed: st.TotalProcessed,
		StartedAt:      st.StartedAt,
		Error:          st.ErrorMessage,
	}
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status <record-type>",
		Short: "Show recent sync runs of a record type",
		Long: `Show the last successful sync, the recent runs and the retry budget of a
record type.

Example:
  sheetsync status orders
  sheetsync status orders --limit 20 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, opts, args[0])
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 10, "number of recent runs to show")

	return cmd
}

func runStatus(cmd *cobra.Command, opts *StatusOptions, recordType string) error {
	if opts.Limit <= 0 {
		return WrapExitError(ExitCommandError, fmt.Sprintf("invalid limit %d", opts.Limit), nil)
	}
	a, err := openApp(cmd, opts.RootOptions, false)
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := a.manager.Status(cmd.Context(), recordType, opts.Limit)
	if record.IsValidationError(err) {
		return WrapExitError(ExitCommandError, "unknown record type "+recordType, err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read sync status", err)
	}

	res := StatusResult{
		RecordType:       status.RecordType,
		FailuresLastHour: status.FailuresLastHour,
		MaxRetries:       status.MaxRetries,
		Recent:           make([]RunSummary, len(status.Recent)),
	}
	if status.LastSuccessful != nil {
		last := summarize(*status.LastSuccessful)
		res.LastSuccessful = &last
	}
	for i, st := range status.Recent {
		res.Recent[i] = summarize(st)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(res)
}
