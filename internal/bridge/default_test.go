package bridge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/monbridge/internal/engine"
	"github.com/roach88/monbridge/internal/testutil"
)

func TestDefault_SendBeforeInit(t *testing.T) {
	d := NewDefault(engine.New(), WithLogger(zaptest.NewLogger(t)))
	assert.Equal(t, []float64{}, d.SendTotal([]float64{1, 2, 3}))
	assert.NoError(t, d.Close())
}

func TestDefault_SendBeforeInitPanicsInDebug(t *testing.T) {
	d := NewDefault(engine.New(), WithPosture(PostureDebug))
	assert.Panics(t, func() { d.SendSingle(0, 1, 0) })
}

func TestDefault_InitAndSend(t *testing.T) {
	d := NewDefault(engine.New(), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, d.Init(sumSpec, "sum"))
	defer d.Close()

	assert.Equal(t, []float64{5}, d.SendTotal([]float64{2, 3, 5}))
	assert.Equal(t, []float64{}, d.SendSingle(1, 4, 6))
	assert.Equal(t, []float64{9}, d.SendPartial([]float64{5, 4, 7}, []bool{true, true}))
}

func TestDefault_InitReplacesMonitor(t *testing.T) {
	e := testutil.NewScriptedEngine([]string{"a"}, []string{"x"})
	d := NewDefault(e)

	require.NoError(t, d.Init("", "x"))
	require.NoError(t, d.Init("", "x"))

	evs := e.Evaluators()
	require.Len(t, evs, 2)
	assert.True(t, evs[0].Closed())
	assert.False(t, evs[1].Closed())

	d.SendTotal([]float64{1, 0})
	assert.Empty(t, evs[0].Events())
	assert.Len(t, evs[1].Events(), 1)

	require.NoError(t, d.Close())
	assert.True(t, evs[1].Closed())
}

func TestDefault_InitLogsReleaseFailure(t *testing.T) {
	closeErr := errors.New("evaluator flush failed")
	e := testutil.NewScriptedEngine([]string{"a"}, []string{"x"}).FailClose(closeErr)
	core, logs := observer.New(zapcore.WarnLevel)
	d := NewDefault(e, WithLogger(zap.New(core)))

	require.NoError(t, d.Init("", "x"))
	require.NoError(t, d.Init("", "x"))

	entries := logs.FilterMessage("release of previous monitor failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, closeErr.Error(), entries[0].ContextMap()["error"])
	assert.Equal(t, uint64(1), entries[0].ContextMap()["handle"])

	assert.ErrorIs(t, d.Close(), closeErr)
}

func TestDefault_FailedInitLeavesNoMonitor(t *testing.T) {
	d := NewDefault(engine.New())
	require.NoError(t, d.Init(sumSpec, "sum"))

	err := d.Init(sumSpec, "nope")
	assert.ErrorIs(t, err, ErrConfig)
	assert.Equal(t, []float64{}, d.SendTotal([]float64{1, 2, 3}))
}
