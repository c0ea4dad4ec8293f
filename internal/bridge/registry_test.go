package bridge

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/monbridge/internal/engine"
	"github.com/roach88/monbridge/internal/testutil"
)

func newRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	r := NewRegistry(engine.New(), opts...)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRegistry_InitializeAndIngest(t *testing.T) {
	r := newRegistry(t)

	h, err := r.Initialize(sumSpec, "sum")
	require.NoError(t, err)
	assert.NotZero(t, h)
	assert.Equal(t, 1, r.Len())

	assert.Equal(t, []float64{5}, r.IngestTotal(h, []float64{2, 3, 5}))
	assert.Equal(t, []float64{}, r.IngestSingle(h, 0, 2, 6))
	assert.Equal(t, []float64{7}, r.IngestPartial(h, []float64{4, 3, 7}, []bool{true, true, true}))
}

func TestRegistry_HandlesAreDistinct(t *testing.T) {
	r := newRegistry(t)

	h1, err := r.Initialize(sumSpec, "sum")
	require.NoError(t, err)
	h2, err := r.Initialize(sumSpec, "sum,sum")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)

	assert.Equal(t, []float64{3}, r.IngestTotal(h1, []float64{1, 2, 0}))
	assert.Equal(t, []float64{9, 9}, r.IngestTotal(h2, []float64{4, 5, 0}))
}

func TestRegistry_InitializeErrorIssuesNoHandle(t *testing.T) {
	r := newRegistry(t)

	h, err := r.Initialize(sumSpec, "missing")
	assert.ErrorIs(t, err, ErrConfig)
	assert.Zero(t, h)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_Release(t *testing.T) {
	e := testutil.NewScriptedEngine([]string{"a"}, []string{"x"})
	r := NewRegistry(e, WithLogger(zaptest.NewLogger(t)))

	h, err := r.Initialize("", "x")
	require.NoError(t, err)

	require.NoError(t, r.Release(h))
	assert.True(t, e.Evaluators()[0].Closed())
	assert.Equal(t, 0, r.Len())

	assert.ErrorIs(t, r.Release(h), ErrUnknownHandle)
}

func TestRegistry_UnknownHandle(t *testing.T) {
	r := newRegistry(t)

	res, err := r.IngestTotalResult(Handle(42), []float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrUnknownHandle)
	assert.Equal(t, Result{Values: []float64{}, Status: StatusUnknownHandle}, res)
	assert.Equal(t, "unknown_handle", res.Status.String())
	assert.Equal(t, []float64{}, r.IngestTotal(Handle(42), []float64{1, 2, 3}))
	assert.Equal(t, []float64{}, r.IngestSingle(0, 0, 1, 0))
}

func TestRegistry_ReleasedHandleIsNotReused(t *testing.T) {
	r := newRegistry(t)

	h1, err := r.Initialize(sumSpec, "sum")
	require.NoError(t, err)
	require.NoError(t, r.Release(h1))

	h2, err := r.Initialize(sumSpec, "sum")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)

	res, err := r.IngestTotalResult(h1, []float64{1, 1, 0})
	assert.ErrorIs(t, err, ErrUnknownHandle)
	assert.Equal(t, StatusUnknownHandle, res.Status)

	res, err = r.IngestSingleResult(h1, 0, 1, 0)
	assert.ErrorIs(t, err, ErrUnknownHandle)
	assert.Equal(t, StatusUnknownHandle, res.Status)

	res, err = r.IngestPartialResult(h1, []float64{1, 1, 0}, []bool{true, true})
	assert.ErrorIs(t, err, ErrUnknownHandle)
	assert.Equal(t, StatusUnknownHandle, res.Status)
}

func TestRegistry_ReinitializeReplaysIdentically(t *testing.T) {
	r := newRegistry(t)
	trace := [][]float64{{1, 0}, {3, 1}, {10, 2}, {-4, 5}, {6, 6}}

	run := func() [][]float64 {
		h, err := r.Initialize(windowSpec, "m,d")
		require.NoError(t, err)
		defer func() { require.NoError(t, r.Release(h)) }()

		var out [][]float64
		for _, buf := range trace {
			out = append(out, r.IngestTotal(h, buf))
		}
		return out
	}

	first := run()
	second := run()
	assert.Equal(t, first, second)
}

func TestRegistry_ResultVariants(t *testing.T) {
	r := newRegistry(t)
	h, err := r.Initialize(sumSpec, "sum")
	require.NoError(t, err)

	res, err := r.IngestTotalResult(h, []float64{2, 3, 5})
	require.NoError(t, err)
	assert.Equal(t, Result{Values: []float64{5}, Frames: 1, Status: StatusOK}, res)

	res, err = r.IngestSingleResult(h, 1, 1, 6)
	require.NoError(t, err)
	assert.Equal(t, StatusNoFrames, res.Status)

	res, err = r.IngestPartialResult(h, []float64{1, 2}, []bool{true, true})
	assert.ErrorIs(t, err, ErrMarshal)
	assert.Equal(t, StatusMarshalFailed, res.Status)
}

func TestRegistry_ReleasePostureDegradesToEmpty(t *testing.T) {
	r := newRegistry(t)
	h, err := r.Initialize(sumSpec, "sum")
	require.NoError(t, err)

	assert.Equal(t, []float64{}, r.IngestTotal(h, []float64{2, 3}))
	assert.Equal(t, []float64{}, r.IngestSingle(h, 5, 1, 0))
	assert.Equal(t, []float64{}, r.IngestPartial(h, []float64{1, 2, 3}, []bool{true, true, false}))

	_ = r.IngestTotal(h, []float64{1, 1, 10})
	assert.Equal(t, []float64{}, r.IngestTotal(h, []float64{1, 1, 9}), "time regression")
}

func TestRegistry_DebugPosturePanics(t *testing.T) {
	r := newRegistry(t, WithPosture(PostureDebug))
	h, err := r.Initialize(sumSpec, "sum")
	require.NoError(t, err)

	assert.Panics(t, func() { r.IngestTotal(h, []float64{2, 3}) })
	assert.Panics(t, func() { r.IngestSingle(h, 5, 1, 0) })
	assert.Panics(t, func() { r.IngestTotal(Handle(999), []float64{2, 3, 5}) })

	// Empty-but-successful results do not panic
	assert.NotPanics(t, func() {
		assert.Equal(t, []float64{}, r.IngestSingle(h, 0, 1, 0))
	})
}

func TestRegistry_ConcurrentHandles(t *testing.T) {
	r := newRegistry(t)
	const n = 16

	handles := make([]Handle, n)
	for i := range handles {
		h, err := r.Initialize(sumSpec, "sum")
		require.NoError(t, err)
		handles[i] = h
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i, h := range handles {
		wg.Add(1)
		go func(i int, h Handle) {
			defer wg.Done()
			for step := 0; step < 50; step++ {
				got := r.IngestTotal(h, []float64{float64(i), float64(step), float64(step)})
				want := float64(i + step)
				if len(got) != 1 || got[0] != want {
					errs <- fmt.Errorf("handle %d step %d: got %v, want [%v]", h, step, got, want)
					return
				}
			}
		}(i, h)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestRegistry_ConcurrentSameHandle(t *testing.T) {
	r := newRegistry(t)
	h, err := r.Initialize(sumSpec, "sum")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.IngestTotal(h, []float64{1, 1, 0})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, []float64{2}, r.IngestTotal(h, []float64{1, 1, 0}))
}

func TestRegistry_Close(t *testing.T) {
	e := testutil.NewScriptedEngine([]string{"a"}, []string{"x"})
	r := NewRegistry(e)

	for i := 0; i < 3; i++ {
		_, err := r.Initialize("", "x")
		require.NoError(t, err)
	}
	require.NoError(t, r.Close())
	assert.Equal(t, 0, r.Len())
	for _, ev := range e.Evaluators() {
		assert.True(t, ev.Closed())
	}
}

func TestRegistry_WithPropagatesError(t *testing.T) {
	r := newRegistry(t)
	h, err := r.Initialize(sumSpec, "sum")
	require.NoError(t, err)

	boom := errors.New("boom")
	err = r.With(h, func(m *Monitor) error {
		assert.Equal(t, 2, m.NumInputs())
		return boom
	})
	assert.ErrorIs(t, err, boom)
}
