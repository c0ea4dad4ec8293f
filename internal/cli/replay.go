package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/monbridge/internal/engine"
	"github.com/roach88/monbridge/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
}

// ReplaySessionResult holds the replay result for a single session.
type ReplaySessionResult struct {
	SessionID      string `json:"session_id"`
	Calls          int    `json:"calls"`
	RecordedDigest string `json:"recorded_digest"`
	ReplayedDigest string `json:"replayed_digest"`
	FirstMismatch  int64  `json:"first_mismatch,omitempty"`
	Match          bool   `json:"match"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions      []ReplaySessionResult `json:"sessions"`
	TotalSessions int                   `json:"total_sessions"`
	AllMatch      bool                  `json:"all_match"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay [session-id]",
		Short: "Re-run recorded sessions and compare verdicts",
		Long: `Rebuild each recorded monitor from its stored spec, output selection
and frame policy, send every recorded call again in order and compare the
verdict arrays with the recorded ones.

Without a session ID every session in the database is replayed.

Exit codes:
  0 - Every replayed session reproduced its verdicts
  1 - At least one session diverged
  2 - Command error (database or session not found, etc.)

Examples:
  monbridge replay --db ./monbridge.db
  monbridge replay 0192f0c4-... --db ./monbridge.db --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := ""
			if len(args) == 1 {
				sessionID = args[0]
			}
			return runReplay(opts, sessionID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")

	return cmd
}

// openExistingStore opens a database that must already exist.
func openExistingStore(o *RootOptions, path string) (*store.Store, error) {
	if path == "" {
		path = o.config().Store.Path
	}
	if path == "" {
		return nil, NewExitError(ExitCommandError, "no database: pass --db or set store.path")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func runReplay(opts *ReplayOptions, sessionID string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ctx, cancel := signalContext(cmd)
	defer cancel()

	st, err := openExistingStore(opts.RootOptions, opts.Database)
	if err != nil {
		return f.Fail(GetExitCode(err), ErrCodeStore, err.Error(), nil)
	}
	defer st.Close()

	var ids []string
	if sessionID != "" {
		ids = []string{sessionID}
	} else {
		sessions, err := st.ListSessions(ctx)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to list sessions", err)
		}
		for _, s := range sessions {
			ids = append(ids, s.ID)
		}
	}

	result := ReplayResult{
		Sessions:      make([]ReplaySessionResult, 0, len(ids)),
		TotalSessions: len(ids),
		AllMatch:      true,
	}

	eng := engine.New(engine.WithLogger(opts.logger()))
	for _, id := range ids {
		rr, err := st.Replay(ctx, eng, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("session %s not found", id), err)
			}
			return f.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("failed to replay session %s", id), err)
		}
		sr := ReplaySessionResult{
			SessionID:      rr.SessionID,
			Calls:          rr.Calls,
			RecordedDigest: rr.RecordedDigest,
			ReplayedDigest: rr.ReplayedDigest,
			FirstMismatch:  rr.FirstMismatch,
			Match:          rr.Match(),
		}
		if !sr.Match {
			result.AllMatch = false
		}
		result.Sessions = append(result.Sessions, sr)
		f.VerboseLog("replayed %s: %d calls", id, rr.Calls)
	}

	if err := f.Success(result, formatReplay(result)); err != nil {
		return err
	}
	if !result.AllMatch {
		return NewExitError(ExitFailure, "replay diverged from recorded verdicts")
	}
	return nil
}

func formatReplay(r ReplayResult) string {
	if r.TotalSessions == 0 {
		return "No sessions found in database.\n"
	}
	var b strings.Builder
	for _, s := range r.Sessions {
		if s.Match {
			fmt.Fprintf(&b, "✓ %s: %d calls, digest %s\n", s.SessionID, s.Calls, s.RecordedDigest)
			continue
		}
		fmt.Fprintf(&b, "✗ %s: %d calls, diverged", s.SessionID, s.Calls)
		if s.FirstMismatch > 0 {
			fmt.Fprintf(&b, " at call %d", s.FirstMismatch)
		}
		fmt.Fprintf(&b, "\n  recorded %s\n  replayed %s\n", s.RecordedDigest, s.ReplayedDigest)
	}
	fmt.Fprintf(&b, "\nReplay Summary: %d session(s)", r.TotalSessions)
	if r.AllMatch {
		b.WriteString(", all match\n")
	} else {
		b.WriteString(", divergence detected\n")
	}
	return b.String()
}
