package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/monbridge/internal/ir"
	"github.com/roach88/monbridge/internal/store"
)

// SessionsOptions holds flags for the sessions commands.
type SessionsOptions struct {
	*RootOptions
	Database string
}

// SessionSummary is one row of the sessions listing.
type SessionSummary struct {
	ID          string     `json:"id"`
	SpecHash    string     `json:"spec_hash"`
	Outputs     []string   `json:"outputs"`
	FramePolicy string     `json:"frame_policy"`
	CreatedAt   time.Time  `json:"created_at"`
	ReleasedAt  *time.Time `json:"released_at,omitempty"`
}

// SessionDetail is a session together with its recorded calls.
type SessionDetail struct {
	SessionSummary
	Calls []CallRow `json:"calls"`
}

// NewSessionsCommand creates the sessions command and its show subcommand.
func NewSessionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions",
		Long: `List the monitor sessions recorded in a database, oldest first.

Examples:
  monbridge sessions --db ./monbridge.db
  monbridge sessions show <session-id> --db ./monbridge.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsList(opts, cmd)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")

	show := &cobra.Command{
		Use:           "show <session-id>",
		Short:         "Print a session's recorded calls",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsShow(opts, args[0], cmd)
		},
	}
	cmd.AddCommand(show)

	return cmd
}

func summarize(s store.Session) SessionSummary {
	return SessionSummary{
		ID:          s.ID,
		SpecHash:    s.SpecHash,
		Outputs:     s.Outputs,
		FramePolicy: s.FramePolicy,
		CreatedAt:   s.CreatedAt,
		ReleasedAt:  s.ReleasedAt,
	}
}

func runSessionsList(opts *SessionsOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	st, err := openExistingStore(opts.RootOptions, opts.Database)
	if err != nil {
		return f.Fail(GetExitCode(err), ErrCodeStore, err.Error(), nil)
	}
	defer st.Close()

	sessions, err := st.ListSessions(cmd.Context())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to list sessions", err)
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	var b strings.Builder
	for _, s := range sessions {
		sum := summarize(s)
		summaries = append(summaries, sum)
		state := "live"
		if sum.ReleasedAt != nil {
			state = "released"
		}
		fmt.Fprintf(&b, "%s  %s  %s  %s  %s\n",
			sum.ID, sum.CreatedAt.Format(time.RFC3339), strings.Join(sum.Outputs, ","), sum.FramePolicy, state)
	}
	if len(sessions) == 0 {
		b.WriteString("No sessions found in database.\n")
	}
	return f.Success(summaries, b.String())
}

func runSessionsShow(opts *SessionsOptions, id string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	st, err := openExistingStore(opts.RootOptions, opts.Database)
	if err != nil {
		return f.Fail(GetExitCode(err), ErrCodeStore, err.Error(), nil)
	}
	defer st.Close()

	ctx := cmd.Context()
	sess, err := st.ReadSession(ctx, id)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("session %s not found", id), err)
	}
	calls, err := st.ReadCalls(ctx, id)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to read calls", err)
	}

	detail := SessionDetail{SessionSummary: summarize(sess), Calls: make([]CallRow, 0, len(calls))}
	for _, c := range calls {
		detail.Calls = append(detail.Calls, CallRow{
			Seq:    c.Seq,
			Mode:   string(c.Mode),
			Status: c.Status,
			Values: ir.EncodeFloats(c.Result),
		})
	}

	text := fmt.Sprintf("session %s (%s, %s)\n", sess.ID, sess.SpecHash, sess.FramePolicy) +
		formatRun(RunResult{Outputs: sess.Outputs, Stride: len(sess.Outputs), Calls: detail.Calls})
	return f.Success(detail, text)
}
