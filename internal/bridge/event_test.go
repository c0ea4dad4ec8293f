package bridge

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/monbridge/internal/ir"
)

func TestSingleEvent(t *testing.T) {
	event, ts, err := SingleEvent(3, 1, 4.5, 12.9)
	require.NoError(t, err)
	assert.Equal(t, []ir.Value{ir.Absent{}, ir.Float(4.5), ir.Absent{}}, event)
	assert.Equal(t, 12*time.Second, ts)
}

func TestSingleEvent_IndexOutOfRange(t *testing.T) {
	for _, idx := range []int{-1, 3, 100} {
		_, _, err := SingleEvent(3, idx, 1, 0)
		require.Error(t, err, "index %d", idx)
		assert.ErrorIs(t, err, ErrMarshal)
	}
}

func TestSingleEvent_NaNValue(t *testing.T) {
	_, _, err := SingleEvent(2, 0, math.NaN(), 0)
	assert.ErrorIs(t, err, ErrMarshal)
	assert.ErrorIs(t, err, ErrNaN)
}

func TestTotalEvent(t *testing.T) {
	event, ts, err := TotalEvent(2, []float64{2, 3, 5})
	require.NoError(t, err)
	assert.Equal(t, []ir.Value{ir.Float(2), ir.Float(3)}, event)
	assert.Equal(t, 5*time.Second, ts)
}

func TestTotalEvent_LengthMismatch(t *testing.T) {
	for _, buf := range [][]float64{nil, {1}, {1, 2}, {1, 2, 3, 4}} {
		_, _, err := TotalEvent(2, buf)
		var me *MarshalError
		require.ErrorAs(t, err, &me, "buf %v", buf)
		assert.Equal(t, ModeTotal, me.Mode)
	}
}

func TestTotalEvent_ZeroInputs(t *testing.T) {
	event, ts, err := TotalEvent(0, []float64{7})
	require.NoError(t, err)
	assert.Empty(t, event)
	assert.Equal(t, 7*time.Second, ts)
}

func TestPartialEvent_ActiveWithTimestampFlag(t *testing.T) {
	event, ts, err := PartialEvent(3, []float64{1, 2, 3, 9.99}, []bool{true, false, true, true})
	require.NoError(t, err)
	assert.Equal(t, []ir.Value{ir.Float(1), ir.Absent{}, ir.Float(3)}, event)
	assert.Equal(t, 9*time.Second, ts)
}

func TestPartialEvent_ActiveWithoutTimestampFlag(t *testing.T) {
	event, ts, err := PartialEvent(2, []float64{1, 2, 4}, []bool{false, true})
	require.NoError(t, err)
	assert.Equal(t, []ir.Value{ir.Absent{}, ir.Float(2)}, event)
	assert.Equal(t, 4*time.Second, ts)
}

func TestPartialEvent_InactiveNaNIsIgnored(t *testing.T) {
	event, _, err := PartialEvent(2, []float64{math.NaN(), 2, 0}, []bool{false, true})
	require.NoError(t, err)
	assert.Equal(t, ir.Absent{}, event[0])
}

func TestPartialEvent_Errors(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		active []bool
	}{
		{"short values", []float64{1, 2}, []bool{true, true}},
		{"long values", []float64{1, 2, 3, 4}, []bool{true, true}},
		{"short active", []float64{1, 2, 3}, []bool{true}},
		{"long active", []float64{1, 2, 3}, []bool{true, true, true, true}},
		{"timestamp inactive", []float64{1, 2, 3}, []bool{true, true, false}},
		{"active NaN", []float64{math.NaN(), 2, 3}, []bool{true, true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := PartialEvent(2, tt.values, tt.active)
			var me *MarshalError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, ModePartial, me.Mode)
		})
	}
}

func TestFloorTimestamp(t *testing.T) {
	tests := []struct {
		in   float64
		want time.Duration
	}{
		{0, 0},
		{0.999, 0},
		{1, time.Second},
		{59.5, 59 * time.Second},
		{1e9 + 0.5, 1e9 * time.Second},
	}
	for _, tt := range tests {
		got, err := floorTimestamp(ModeTotal, tt.in)
		require.NoError(t, err, "ts %v", tt.in)
		assert.Equal(t, tt.want, got, "ts %v", tt.in)
	}
}

func TestFloorTimestamp_Rejects(t *testing.T) {
	for _, ts := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -1, -0.5, 1e300} {
		_, err := floorTimestamp(ModeSingle, ts)
		assert.ErrorIs(t, err, ErrMarshal, "ts %v", ts)
	}
}

func TestEventsAgree(t *testing.T) {
	// total and partial with every flag set build the same event
	buf := []float64{1.5, -2, 8, 30}
	totalEv, totalTS, err := TotalEvent(3, buf)
	require.NoError(t, err)
	partialEv, partialTS, err := PartialEvent(3, buf, []bool{true, true, true, true})
	require.NoError(t, err)
	assert.Equal(t, totalEv, partialEv)
	assert.Equal(t, totalTS, partialTS)

	// single and partial with one flag set build the same event
	singleEv, singleTS, err := SingleEvent(3, 2, 8, 30)
	require.NoError(t, err)
	partialEv, partialTS, err = PartialEvent(3, []float64{0, 0, 8, 30}, []bool{false, false, true})
	require.NoError(t, err)
	assert.Equal(t, singleEv, partialEv)
	assert.Equal(t, singleTS, partialTS)
}
