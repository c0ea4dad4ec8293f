package bridge

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Posture decides how the flat API surfaces failures.
type Posture int

const (
	// PostureRelease degrades every failure to an empty verdict array.
	PostureRelease Posture = iota

	// PostureDebug panics on failures so host bugs surface early.
	PostureDebug
)

func (p Posture) String() string {
	switch p {
	case PostureRelease:
		return "release"
	case PostureDebug:
		return "debug"
	default:
		return fmt.Sprintf("Posture(%d)", int(p))
	}
}

// ParsePosture converts "release" or "debug" to a Posture.
func ParsePosture(s string) (Posture, error) {
	switch s {
	case "", "release":
		return PostureRelease, nil
	case "debug":
		return PostureDebug, nil
	default:
		return PostureRelease, fmt.Errorf("unknown posture %q (want release or debug)", s)
	}
}

// Observer receives one notification per monitor lifecycle change and per
// ingestion call. Implementations must be safe for concurrent use.
type Observer interface {
	MonitorOpened()
	MonitorReleased()
	Ingested(mode MarshalMode, res Result, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) MonitorOpened()                              {}
func (nopObserver) MonitorReleased()                            {}
func (nopObserver) Ingested(MarshalMode, Result, time.Duration) {}

// options is shared by Monitor, Registry and Default.
type options struct {
	logger   *zap.Logger
	policy   FramePolicy
	posture  Posture
	observer Observer
}

// Option configures a Monitor, Registry or Default.
type Option func(*options)

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithFramePolicy sets how frames without relevant updates are flattened.
// Default: PadFrames.
func WithFramePolicy(p FramePolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithPosture sets the flat API's failure posture.
// Default: PostureRelease.
func WithPosture(p Posture) Option {
	return func(o *options) {
		o.posture = p
	}
}

// WithObserver sets the metrics observer.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:   zap.NewNop(),
		policy:   PadFrames,
		posture:  PostureRelease,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}
	return o
}
