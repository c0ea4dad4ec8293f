package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/monbridge/internal/bridge"
	"github.com/roach88/monbridge/internal/engine"
	"github.com/roach88/monbridge/internal/ir"
	"github.com/roach88/monbridge/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Outputs     string
	Database    string
	Posture     string
	FramePolicy string

	// IDGenerator overrides session IDs (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator store.IDGenerator
}

// CallRow is one host call and the verdicts it returned.
type CallRow struct {
	Seq    int64  `json:"seq"`
	Mode   string `json:"mode"`
	Status string `json:"status"`
	Values []any  `json:"values"` // ir.EncodeFloats form
	Error  string `json:"error,omitempty"`
}

// RunResult is the run command's report.
type RunResult struct {
	SessionID string    `json:"session_id,omitempty"`
	Outputs   []string  `json:"outputs"`
	Stride    int       `json:"stride"`
	Calls     []CallRow `json:"calls"`
	Failed    int       `json:"failed"`
	StoppedAt int64     `json:"stopped_at,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <spec> <trace.csv>",
		Short: "Stream a trace through a monitor",
		Long: `Build a monitor from a spec and an output selection, send every
record of a CSV trace to it and print the verdicts of each call.

Trace records are "total,t,v0,...", "single,t,index,value" or
"partial,t,v0|-,...". With --db (or store.path in the config) the session
is recorded so it can be replayed later.

With --posture debug the run stops at the first call that fails to marshal
or evaluate; in release posture failures are reported and the run goes on.

Exit codes:
  0 - Every call succeeded
  1 - One or more calls failed to marshal or evaluate
  2 - Command error (bad spec, selection or trace file)

Examples:
  monbridge run ./speed.cue ./drive.csv --outputs fast,dist
  monbridge run ./speed.cue ./drive.csv --outputs fast --db ./monbridge.db`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Outputs, "outputs", "", "comma separated output selection (required)")
	_ = cmd.MarkFlagRequired("outputs")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the session in this SQLite database")
	cmd.Flags().StringVar(&opts.Posture, "posture", "", "release|debug (default from config)")
	cmd.Flags().StringVar(&opts.FramePolicy, "frame-policy", "", "pad|skip_empty (default from config)")

	return cmd
}

// monitorOptions merges config defaults with command flags.
func (o *RunOptions) monitorOptions() ([]bridge.Option, error) {
	cfg := o.config()
	bopts := append([]bridge.Option{bridge.WithLogger(o.logger())}, cfg.BridgeOptions()...)
	if o.Posture != "" {
		p, err := bridge.ParsePosture(o.Posture)
		if err != nil {
			return nil, err
		}
		bopts = append(bopts, bridge.WithPosture(p))
	}
	if o.FramePolicy != "" {
		p, err := bridge.ParseFramePolicy(o.FramePolicy)
		if err != nil {
			return nil, err
		}
		bopts = append(bopts, bridge.WithFramePolicy(p))
	}
	return bopts, nil
}

func (o *RunOptions) framePolicy() string {
	if o.FramePolicy != "" {
		return o.FramePolicy
	}
	return o.config().FramePolicy
}

func (o *RunOptions) database() string {
	if o.Database != "" {
		return o.Database
	}
	return o.config().Store.Path
}

func runTrace(opts *RunOptions, specPath, tracePath string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	logger := opts.logger()

	spec, err := LoadSpec(specPath)
	if err != nil {
		return f.Fail(ExitCommandError, loadErrorCode(err), "invalid spec", err)
	}
	calls, err := ReadTraceFile(tracePath)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeTrace, "invalid trace", err)
	}
	bopts, err := opts.monitorOptions()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "invalid flags", err)
	}

	outputs := bridge.SplitOutputs(opts.Outputs)
	mon, err := bridge.NewMonitorWithOutputs(engine.New(engine.WithLogger(logger)), spec.Text, outputs, bopts...)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeSpecInvalid, "failed to initialize monitor", err)
	}
	defer mon.Close()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	var recorder *store.Recorder
	result := RunResult{Outputs: mon.OutputNames(), Stride: mon.Stride(), Calls: []CallRow{}}

	if db := opts.database(); db != "" {
		st, err := openStore(db, opts.IDGenerator)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", zap.Error(closeErr))
			}
		}()

		sess, err := st.CreateSession(ctx, store.Session{
			Spec:        spec.Text,
			Outputs:     outputs,
			FramePolicy: opts.framePolicy(),
		})
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to record session", err)
		}
		defer func() {
			if relErr := st.ReleaseSession(context.Background(), sess.ID); relErr != nil {
				logger.Error("error releasing session", zap.Error(relErr))
			}
		}()
		recorder = st.NewRecorder(sess.ID)
		result.SessionID = sess.ID
		logger.Info("recording session", zap.String("session_id", sess.ID), zap.String("db", db))
	}

	for i, c := range calls {
		if err := ctx.Err(); err != nil {
			logger.Info("interrupted", zap.Int("sent", i))
			break
		}

		res, callErr := store.Apply(mon, c)
		row := CallRow{
			Seq:    int64(i + 1),
			Mode:   string(c.Mode),
			Status: res.Status.String(),
			Values: ir.EncodeFloats(res.Values),
		}
		if callErr != nil {
			row.Error = callErr.Error()
			result.Failed++
		}
		if recorder != nil {
			if err := recorder.Record(ctx, c, res); err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, "failed to record call", err)
			}
		}
		result.Calls = append(result.Calls, row)
		f.VerboseLog("[%d] %s -> %s", row.Seq, row.Mode, row.Status)

		if callErr != nil && mon.Posture() == bridge.PostureDebug {
			result.StoppedAt = row.Seq
			logger.Warn("stopping at failed call",
				zap.Int64("seq", row.Seq),
				zap.String("posture", bridge.PostureDebug.String()),
				zap.Error(callErr),
			)
			break
		}
	}

	if err := f.Success(result, formatRun(result)); err != nil {
		return err
	}
	if result.StoppedAt > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("call %d failed, stopped (debug posture)", result.StoppedAt))
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d call(s) failed", result.Failed))
	}
	return nil
}

// signalContext returns the command's context cancelled on SIGINT/SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func openStore(path string, ids store.IDGenerator) (*store.Store, error) {
	if ids == nil {
		return store.Open(path)
	}
	return store.Open(path, store.WithIDGenerator(ids))
}

func formatRun(r RunResult) string {
	var b strings.Builder
	if r.SessionID != "" {
		fmt.Fprintf(&b, "session %s\n", r.SessionID)
	}
	fmt.Fprintf(&b, "# %s\n", strings.Join(r.Outputs, ","))
	for _, c := range r.Calls {
		fmt.Fprintf(&b, "%d %s %s %s", c.Seq, c.Mode, c.Status, formatBlocks(c.Values, r.Stride))
		if c.Error != "" {
			fmt.Fprintf(&b, " (%s)", c.Error)
		}
		b.WriteString("\n")
	}
	if r.StoppedAt > 0 {
		fmt.Fprintf(&b, "stopped at call %d (debug posture)\n", r.StoppedAt)
	}
	return b.String()
}

// formatBlocks renders verdicts one stride-sized block per bracket group.
func formatBlocks(values []any, stride int) string {
	if len(values) == 0 || stride <= 0 {
		return "[]"
	}
	var b strings.Builder
	for i := 0; i < len(values); i += stride {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString("[")
		for j := i; j < i+stride && j < len(values); j++ {
			if j > i {
				b.WriteString(" ")
			}
			fmt.Fprint(&b, values[j])
		}
		b.WriteString("]")
	}
	return b.String()
}
