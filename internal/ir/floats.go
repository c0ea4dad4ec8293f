package ir

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// EncodeFloat returns a canonical-JSON-safe form of f: the number itself when
// finite, otherwise one of the strings "NaN", "+Inf" or "-Inf".
func EncodeFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	default:
		return f
	}
}

// EncodeFloats applies EncodeFloat to every element.
func EncodeFloats(fs []float64) []any {
	out := make([]any, len(fs))
	for i, f := range fs {
		out[i] = EncodeFloat(f)
	}
	return out
}

// DecodeFloat reverses EncodeFloat for values produced by encoding/json,
// with or without UseNumber.
func DecodeFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case json.Number:
		return x.Float64()
	case string:
		switch x {
		case "NaN", "+Inf", "-Inf":
			return strconv.ParseFloat(x, 64)
		}
		return 0, fmt.Errorf("invalid float string %q", x)
	default:
		return 0, fmt.Errorf("invalid float value of type %T", v)
	}
}

// DecodeFloats applies DecodeFloat to a decoded JSON array.
func DecodeFloats(v any) ([]float64, error) {
	list, ok := v.([]any)
	if !ok {
		if v == nil {
			return []float64{}, nil
		}
		return nil, fmt.Errorf("expected array, got %T", v)
	}
	out := make([]float64, len(list))
	for i, item := range list {
		f, err := DecodeFloat(item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}
