package bridge

import (
	"sync"

	"go.uber.org/zap"

	"github.com/roach88/monbridge/internal/ir"
)

// Default holds at most one monitor, for hosts that never need more.
//
// It is a thin layer over a Registry: Init replaces the current monitor and
// the Send methods forward to the live handle. Sending before Init behaves
// like sending on a released handle.
type Default struct {
	reg *Registry

	mu sync.Mutex
	h  Handle
}

// NewDefault creates an empty single-slot wrapper.
func NewDefault(engine ir.Engine, opts ...Option) *Default {
	return &Default{reg: NewRegistry(engine, opts...)}
}

// Init creates a monitor, releasing any previous one first.
func (d *Default) Init(spec, outputsCSV string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.h != 0 {
		if err := d.reg.Release(d.h); err != nil {
			d.reg.logger.Warn("release of previous monitor failed",
				zap.Uint64("handle", uint64(d.h)),
				zap.Error(err),
			)
		}
		d.h = 0
	}
	h, err := d.reg.Initialize(spec, outputsCSV)
	if err != nil {
		return err
	}
	d.h = h
	return nil
}

func (d *Default) handle() Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.h
}

// SendSingle forwards to Registry.IngestSingle.
func (d *Default) SendSingle(index int, value, ts float64) []float64 {
	return d.reg.IngestSingle(d.handle(), index, value, ts)
}

// SendTotal forwards to Registry.IngestTotal.
func (d *Default) SendTotal(buf []float64) []float64 {
	return d.reg.IngestTotal(d.handle(), buf)
}

// SendPartial forwards to Registry.IngestPartial.
func (d *Default) SendPartial(values []float64, active []bool) []float64 {
	return d.reg.IngestPartial(d.handle(), values, active)
}

// Close releases the current monitor, if any.
func (d *Default) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.h == 0 {
		return nil
	}
	err := d.reg.Release(d.h)
	d.h = 0
	return err
}
