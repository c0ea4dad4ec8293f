package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/monbridge/internal/bridge"
	"github.com/roach88/monbridge/internal/ir"
)

// marshalOutputs converts output names to canonical JSON TEXT for storage.
func marshalOutputs(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	data, err := ir.MarshalCanonical(names)
	if err != nil {
		return "", fmt.Errorf("marshal outputs: %w", err)
	}
	return string(data), nil
}

func unmarshalOutputs(data string) ([]string, error) {
	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, fmt.Errorf("unmarshal outputs: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// marshalPayload converts a call's arguments to canonical JSON TEXT.
// Non-finite floats are stored in their ir.EncodeFloat string form so
// malformed host input round-trips exactly.
func marshalPayload(c Call) (string, error) {
	var obj map[string]any
	switch c.Mode {
	case bridge.ModeSingle:
		obj = map[string]any{
			"index": c.Index,
			"value": ir.EncodeFloat(c.Value),
			"ts":    ir.EncodeFloat(c.Timestamp),
		}
	case bridge.ModeTotal:
		obj = map[string]any{
			"values": ir.EncodeFloats(c.Values),
		}
	case bridge.ModePartial:
		active := c.Active
		if active == nil {
			active = []bool{}
		}
		obj = map[string]any{
			"values": ir.EncodeFloats(c.Values),
			"active": active,
		}
	default:
		return "", fmt.Errorf("marshal payload: unknown mode %q", c.Mode)
	}

	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

// unmarshalPayload fills the argument fields of c from canonical JSON TEXT.
// Uses json.Number to keep the index exact.
func unmarshalPayload(c *Call, data string) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	var err error
	switch c.Mode {
	case bridge.ModeSingle:
		n, ok := obj["index"].(json.Number)
		if !ok {
			return fmt.Errorf("unmarshal payload: missing index")
		}
		idx, err := n.Int64()
		if err != nil {
			return fmt.Errorf("unmarshal payload: index: %w", err)
		}
		c.Index = int(idx)
		if c.Value, err = ir.DecodeFloat(obj["value"]); err != nil {
			return fmt.Errorf("unmarshal payload: value: %w", err)
		}
		if c.Timestamp, err = ir.DecodeFloat(obj["ts"]); err != nil {
			return fmt.Errorf("unmarshal payload: ts: %w", err)
		}
	case bridge.ModeTotal, bridge.ModePartial:
		if c.Values, err = ir.DecodeFloats(obj["values"]); err != nil {
			return fmt.Errorf("unmarshal payload: values: %w", err)
		}
		if c.Mode == bridge.ModePartial {
			if c.Active, err = decodeBools(obj["active"]); err != nil {
				return fmt.Errorf("unmarshal payload: active: %w", err)
			}
		}
	default:
		return fmt.Errorf("unmarshal payload: unknown mode %q", c.Mode)
	}
	return nil
}

func decodeBools(v any) ([]bool, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected array, got %T", v)
	}
	out := make([]bool, len(list))
	for i, item := range list {
		b, ok := item.(bool)
		if !ok {
			return nil, fmt.Errorf("element %d: expected bool, got %T", i, item)
		}
		out[i] = b
	}
	return out, nil
}

func marshalResult(values []float64) (string, error) {
	data, err := ir.MarshalCanonical(ir.EncodeFloats(values))
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(data), nil
}

func unmarshalResult(data string) ([]float64, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var list any
	if err := dec.Decode(&list); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	values, err := ir.DecodeFloats(list)
	if err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return values, nil
}
