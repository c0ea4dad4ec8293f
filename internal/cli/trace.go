package cli

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/roach88/monbridge/internal/bridge"
	"github.com/roach88/monbridge/internal/store"
)

// Trace files are CSV, one host call per record:
//
//	total,<t>,<v0>,...,<vn-1>
//	single,<t>,<index>,<value>
//	partial,<t>,<v0|->,...,<vn-1|->
//
// In partial records an empty cell or "-" marks an inactive input. Blank
// lines and lines starting with # are ignored. Values accept NaN and Inf so
// malformed host input can be replayed as-is.

// TraceError names the record that could not be parsed.
type TraceError struct {
	Line    int
	Message string
}

func (e *TraceError) Error() string {
	return fmt.Sprintf("trace line %d: %s", e.Line, e.Message)
}

// ReadTraceFile opens and parses a trace file.
func ReadTraceFile(path string) ([]store.Call, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTrace(f)
}

// ReadTrace parses trace records into calls in file order.
func ReadTrace(r io.Reader) ([]store.Call, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	calls := []store.Call{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return calls, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read trace: %w", err)
		}
		line, _ := cr.FieldPos(0)

		c, err := parseRecord(rec)
		if err != nil {
			return nil, &TraceError{Line: line, Message: err.Error()}
		}
		calls = append(calls, c)
	}
}

func parseRecord(rec []string) (store.Call, error) {
	if len(rec) < 2 {
		return store.Call{}, fmt.Errorf("need at least mode and timestamp, got %d fields", len(rec))
	}
	mode := bridge.MarshalMode(strings.TrimSpace(rec[0]))
	ts, err := parseFloat(rec[1])
	if err != nil {
		return store.Call{}, fmt.Errorf("timestamp: %w", err)
	}
	fields := rec[2:]

	switch mode {
	case bridge.ModeTotal:
		values := make([]float64, 0, len(fields)+1)
		for i, f := range fields {
			v, err := parseFloat(f)
			if err != nil {
				return store.Call{}, fmt.Errorf("value %d: %w", i, err)
			}
			values = append(values, v)
		}
		return store.Call{Mode: mode, Values: append(values, ts)}, nil

	case bridge.ModeSingle:
		if len(fields) != 2 {
			return store.Call{}, fmt.Errorf("single needs index and value, got %d fields", len(fields))
		}
		idx, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return store.Call{}, fmt.Errorf("index: %w", err)
		}
		v, err := parseFloat(fields[1])
		if err != nil {
			return store.Call{}, fmt.Errorf("value: %w", err)
		}
		return store.Call{Mode: mode, Index: idx, Value: v, Timestamp: ts}, nil

	case bridge.ModePartial:
		values := make([]float64, 0, len(fields)+1)
		active := make([]bool, 0, len(fields)+1)
		for i, f := range fields {
			f = strings.TrimSpace(f)
			if f == "" || f == "-" {
				values = append(values, 0)
				active = append(active, false)
				continue
			}
			v, err := parseFloat(f)
			if err != nil {
				return store.Call{}, fmt.Errorf("value %d: %w", i, err)
			}
			values = append(values, v)
			active = append(active, true)
		}
		return store.Call{Mode: mode, Values: append(values, ts), Active: append(active, true)}, nil

	default:
		return store.Call{}, fmt.Errorf("unknown mode %q", rec[0])
	}
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
