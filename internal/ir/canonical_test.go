package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", String("hello"), `"hello"`},
		{"empty string", "", `""`},
		{"int", Int(42), "42"},
		{"negative int", int64(-100), "-100"},
		{"bool true", Bool(true), "true"},
		{"bool false", false, "false"},
		{"absent", Absent{}, "null"},
		{"float", Float(2.5), "2.5"},
		{"integral float", 5.0, "5"},
		{"negative zero", math.Copysign(0, -1), "0"},
		{"large float", 1e21, "1e+21"},
		{"small float", 1e-7, "1e-7"},
		{"empty array", []any{}, "[]"},
		{"float slice", []float64{1, 0.5}, "[1,0.5]"},
		{"tuple", Tuple{Int(1), Absent{}}, "[1,null]"},
		{"empty object", map[string]any{}, "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := map[string]any{
		"zebra": 1,
		"alpha": 2,
		"beta":  map[string]any{"b": 1, "a": 2},
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":{"a":2,"b":1},"zebra":1}`, string(result))
}

func TestMarshalCanonicalRejects(t *testing.T) {
	for name, v := range map[string]any{
		"nil":      nil,
		"nan":      math.NaN(),
		"inf":      math.Inf(1),
		"unknown":  struct{}{},
		"nested":   []any{math.NaN()},
		"in float": Float(math.Inf(-1)),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := MarshalCanonical(v)
			assert.Error(t, err)
		})
	}
}

func TestMarshalCanonicalStringEscaping(t *testing.T) {
	result, err := MarshalCanonical("<a & b> \"\\\n\x01")
	require.NoError(t, err)
	assert.Equal(t, "\"<a & b> \\\"\\\\\\n\\u0001\"", string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "é" as e + combining acute accent normalizes to the single code point.
	decomposed, err := MarshalCanonical("e\u0301")
	require.NoError(t, err)
	composed, err := MarshalCanonical("\u00e9")
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)
}

func TestCompareKeysRFC8785(t *testing.T) {
	assert.Equal(t, -1, compareKeysRFC8785("A", "a"))
	assert.Equal(t, -1, compareKeysRFC8785("a", "aa"))
	assert.Equal(t, 0, compareKeysRFC8785("x", "x"))
	// U+FFFF sorts after a surrogate pair in UTF-16 but before it in UTF-8.
	assert.Equal(t, 1, compareKeysRFC8785("\uFFFF", "\U0001F600"))
}
