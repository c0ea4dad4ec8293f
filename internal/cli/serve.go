package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/monbridge/internal/bridge"
	"github.com/roach88/monbridge/internal/engine"
	"github.com/roach88/monbridge/internal/observability"
	"github.com/roach88/monbridge/internal/store"
)

// ServeOptions holds flags for the serve-metrics command.
type ServeOptions struct {
	*RootOptions
	Outputs string
	Addr    string
	Exit    bool // stop serving once the trace is sent
}

// ServeResult summarizes the trace sent while serving.
type ServeResult struct {
	Addr    string `json:"addr"`
	Calls   int    `json:"calls"`
	Values  int    `json:"values"`
	Handles int    `json:"live_handles"`
}

// NewServeMetricsCommand creates the serve-metrics command.
func NewServeMetricsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve-metrics <spec> <trace.csv>",
		Short: "Send a trace through the flat host API while exposing /metrics",
		Long: `Start a Prometheus endpoint, initialize a monitor handle through the
flat host API, send every trace record, release the handle and keep serving
until interrupted (or exit immediately with --exit).

Examples:
  monbridge serve-metrics ./speed.cue ./drive.csv --outputs fast
  monbridge serve-metrics ./speed.cue ./drive.csv --outputs fast --addr 127.0.0.1:9464`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServeMetrics(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Outputs, "outputs", "", "comma separated output selection (required)")
	_ = cmd.MarkFlagRequired("outputs")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default metrics.addr from config)")
	cmd.Flags().BoolVar(&opts.Exit, "exit", false, "stop serving after the trace is sent")

	return cmd
}

func runServeMetrics(opts *ServeOptions, specPath, tracePath string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	logger := opts.logger()
	cfg := opts.config()

	spec, err := LoadSpec(specPath)
	if err != nil {
		return f.Fail(ExitCommandError, loadErrorCode(err), "invalid spec", err)
	}
	calls, err := ReadTraceFile(tracePath)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeTrace, "invalid trace", err)
	}

	addr := opts.Addr
	if addr == "" {
		addr = cfg.Metrics.Addr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to listen", err)
	}

	metrics := observability.New(cfg.Metrics.Namespace)
	srv := &http.Server{Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))

	ctx, cancel := signalContext(cmd)
	defer cancel()

	bopts := append([]bridge.Option{bridge.WithLogger(logger), bridge.WithObserver(metrics)}, cfg.BridgeOptions()...)
	reg := bridge.NewRegistry(engine.New(engine.WithLogger(logger)), bopts...)
	defer reg.Close()

	h, err := reg.Initialize(spec.Text, opts.Outputs)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeSpecInvalid, "failed to initialize monitor", err)
	}

	result := ServeResult{Addr: ln.Addr().String()}
	for _, c := range calls {
		if ctx.Err() != nil {
			break
		}
		result.Values += len(sendFlat(reg, h, c))
		result.Calls++
	}
	if err := reg.Release(h); err != nil {
		return f.Fail(ExitFailure, ErrCodeGeneric, "failed to release monitor", err)
	}
	result.Handles = reg.Len()

	text := fmt.Sprintf("Serving metrics on http://%s/metrics\nSent %d call(s), %d verdict value(s)\n",
		result.Addr, result.Calls, result.Values)
	if err := f.Success(result, text); err != nil {
		return err
	}

	if !opts.Exit {
		<-ctx.Done()
	}
	return nil
}

// sendFlat dispatches a trace call through the flat host entry points.
func sendFlat(reg *bridge.Registry, h bridge.Handle, c store.Call) []float64 {
	switch c.Mode {
	case bridge.ModeSingle:
		return reg.IngestSingle(h, c.Index, c.Value, c.Timestamp)
	case bridge.ModePartial:
		return reg.IngestPartial(h, c.Values, c.Active)
	default:
		return reg.IngestTotal(h, c.Values)
	}
}
