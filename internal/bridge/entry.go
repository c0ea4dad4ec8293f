package bridge

import (
	"errors"

	"go.uber.org/zap"
)

// The methods in this file are the host-facing boundary. They return only a
// flat verdict array; an empty array means either "nothing this tick" or a
// failure, which the posture turns into a panic when debugging.
//
// The Result variants expose the same calls with an explicit status.

// IngestSingle sends one input value for handle h.
func (r *Registry) IngestSingle(h Handle, index int, value, ts float64) []float64 {
	return r.flatten(h, ModeSingle)(r.IngestSingleResult(h, index, value, ts))
}

// IngestTotal sends a dense event for handle h: one value per input followed
// by the timestamp.
func (r *Registry) IngestTotal(h Handle, buf []float64) []float64 {
	return r.flatten(h, ModeTotal)(r.IngestTotalResult(h, buf))
}

// IngestPartial sends a masked event for handle h.
func (r *Registry) IngestPartial(h Handle, values []float64, active []bool) []float64 {
	return r.flatten(h, ModePartial)(r.IngestPartialResult(h, values, active))
}

// IngestSingleResult is IngestSingle with an explicit status and error.
func (r *Registry) IngestSingleResult(h Handle, index int, value, ts float64) (Result, error) {
	var res Result
	err := r.With(h, func(m *Monitor) error {
		var err error
		res, err = m.IngestSingle(index, value, ts)
		return err
	})
	return settle(res, err)
}

// IngestTotalResult is IngestTotal with an explicit status and error.
func (r *Registry) IngestTotalResult(h Handle, buf []float64) (Result, error) {
	var res Result
	err := r.With(h, func(m *Monitor) error {
		var err error
		res, err = m.IngestTotal(buf)
		return err
	})
	return settle(res, err)
}

// IngestPartialResult is IngestPartial with an explicit status and error.
func (r *Registry) IngestPartialResult(h Handle, values []float64, active []bool) (Result, error) {
	var res Result
	err := r.With(h, func(m *Monitor) error {
		var err error
		res, err = m.IngestPartial(values, active)
		return err
	})
	return settle(res, err)
}

// settle fills in what the monitor could not: an empty array, and the
// unknown_handle status when no monitor was reached.
func settle(res Result, err error) (Result, error) {
	if res.Values == nil {
		res.Values = []float64{}
	}
	if errors.Is(err, ErrUnknownHandle) {
		res.Status = StatusUnknownHandle
	}
	return res, err
}

// flatten applies the posture to a Result-returning call.
func (r *Registry) flatten(h Handle, mode MarshalMode) func(Result, error) []float64 {
	return func(res Result, err error) []float64 {
		if err == nil {
			return res.Values
		}
		if r.opts.posture == PostureDebug {
			panic(err)
		}
		r.logger.Warn("ingest failed",
			zap.Uint64("handle", uint64(h)),
			zap.String("mode", string(mode)),
			zap.Error(err),
		)
		return []float64{}
	}
}
