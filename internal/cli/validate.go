package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/monbridge/internal/bridge"
	"github.com/roach88/monbridge/internal/engine"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Outputs string
}

// StreamInfo describes one declared stream.
type StreamInfo struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Op     string `json:"op,omitempty"`
	Period string `json:"period,omitempty"`
}

// ValidationResult is the validate command's report.
type ValidationResult struct {
	Valid     bool         `json:"valid"`
	Path      string       `json:"path"`
	SpecHash  string       `json:"spec_hash"`
	Inputs    []StreamInfo `json:"inputs"`
	Outputs   []StreamInfo `json:"outputs"`
	Selection []string     `json:"selection,omitempty"`
	Stride    int          `json:"stride,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <spec>",
		Short: "Check a spec and an output selection",
		Long: `Parse a CUE monitor spec and report its input and output streams.

With --outputs, also resolve the output selection exactly as a monitor
would, reporting unknown names and the verdict stride.

Examples:
  monbridge validate ./speed.cue
  monbridge validate ./speed.cue --outputs fast,dist --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Outputs, "outputs", "", "comma separated output selection to resolve")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	spec, err := LoadSpec(path)
	if err != nil {
		return f.Fail(ExitCommandError, loadErrorCode(err), "invalid spec", err)
	}
	f.VerboseLog("Loaded %s (%d inputs, %d outputs)", spec.Path, len(spec.Graph.Inputs), len(spec.Graph.Outputs))

	result := ValidationResult{
		Valid:    true,
		Path:     spec.Path,
		SpecHash: spec.Graph.SpecHash,
		Inputs:   make([]StreamInfo, 0, len(spec.Graph.Inputs)),
		Outputs:  make([]StreamInfo, 0, len(spec.Graph.Outputs)),
	}
	for _, in := range spec.Graph.Inputs {
		result.Inputs = append(result.Inputs, StreamInfo{Name: in.Name, Type: string(in.Type)})
	}
	for _, out := range spec.Graph.Outputs {
		info := StreamInfo{Name: out.Name, Type: string(out.Type), Op: out.Op}
		if out.IsPeriodic() {
			info.Period = out.Period.String()
		}
		result.Outputs = append(result.Outputs, info)
	}

	if opts.Outputs != "" {
		mon, err := bridge.NewMonitor(engine.New(engine.WithLogger(opts.logger())), spec.Text, opts.Outputs,
			bridge.WithLogger(opts.logger()))
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeSpecInvalid, "invalid output selection", err)
		}
		result.Selection = mon.OutputNames()
		result.Stride = mon.Stride()
		_ = mon.Close()
	}

	return f.Success(result, formatValidation(result))
}

func formatValidation(r ValidationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ %s is valid (%s)\n", r.Path, r.SpecHash)
	fmt.Fprintf(&b, "Inputs (%d):\n", len(r.Inputs))
	for i, in := range r.Inputs {
		fmt.Fprintf(&b, "  [%d] %s %s\n", i, in.Name, in.Type)
	}
	fmt.Fprintf(&b, "Outputs (%d):\n", len(r.Outputs))
	for i, out := range r.Outputs {
		fmt.Fprintf(&b, "  [%d] %s %s = %s", i, out.Name, out.Type, out.Op)
		if out.Period != "" {
			fmt.Fprintf(&b, " every %s", out.Period)
		}
		b.WriteString("\n")
	}
	if len(r.Selection) > 0 {
		fmt.Fprintf(&b, "Selection: %s (stride %d)\n", strings.Join(r.Selection, ","), r.Stride)
	}
	return b.String()
}
