package harness

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/monbridge/internal/ir"
	"github.com/roach88/monbridge/internal/store"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Only allows alphanumeric and underscore, must start with letter or underscore.
// This prevents SQL injection via identifier interpolation.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %v -> %v (%s)\n", event.Step, event.Mode, event.Args, event.Values, event.Status)
		}
	}

	return buf.String()
}

// assertStatusCount checks how many steps ended with the given status.
func assertStatusCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Status == assertion.Status {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertStatusCount,
			Expected: fmt.Sprintf("%d steps with status %s", assertion.Count, assertion.Status),
			Actual:   fmt.Sprintf("%d steps", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertModeCount checks how many steps used the given ingestion mode.
func assertModeCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if string(event.Mode) == assertion.Mode {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertModeCount,
			Expected: fmt.Sprintf("%d %s calls", assertion.Count, assertion.Mode),
			Actual:   fmt.Sprintf("%d calls", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertStrideAligned checks every verdict array splits into whole blocks.
func assertStrideAligned(trace []TraceEvent, stride int) error {
	if stride <= 0 {
		return fmt.Errorf("stride_aligned: invalid stride %d", stride)
	}
	for _, event := range trace {
		if len(event.Values)%stride != 0 {
			return &AssertionError{
				Type:     AssertStrideAligned,
				Expected: fmt.Sprintf("every result length a multiple of %d", stride),
				Actual:   fmt.Sprintf("step %d returned %d values", event.Step, len(event.Values)),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertReplayMatch rebuilds the recorded session and compares every result.
func assertReplayMatch(actx *AssertionContext) error {
	res, err := actx.Store.Replay(actx.Ctx, actx.Engine, actx.SessionID)
	if err != nil {
		return fmt.Errorf("replay_match: %w", err)
	}
	if !res.Match() {
		return &AssertionError{
			Type:     AssertReplayMatch,
			Expected: fmt.Sprintf("replay digest %s", res.RecordedDigest),
			Actual:   fmt.Sprintf("digest %s, first mismatch at call %d", res.ReplayedDigest, res.FirstMismatch),
		}
	}
	return nil
}

// assertFinalState checks one store row against expected column values.
// Only the columns named in Expect are compared. Table and column names are
// checked against validIdentifier since identifiers cannot be bound.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	if assertion.Table == "" {
		return fmt.Errorf("final_state assertion requires table name")
	}
	if !validIdentifier.MatchString(assertion.Table) {
		return fmt.Errorf("invalid table name %q: must match pattern %s", assertion.Table, validIdentifier.String())
	}

	whereSQL, whereArgs, err := buildWhereClause(assertion.Where)
	if err != nil {
		return err
	}
	query := "SELECT * FROM " + assertion.Table
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}

	row, columns, err := singleRow(ctx, st, query, whereArgs)
	if err != nil {
		fail := &AssertionError{Type: AssertFinalState}
		switch {
		case errors.Is(err, errNoRow):
			fail.Expected = fmt.Sprintf("row in %s where %s", assertion.Table, formatWhereClause(assertion.Where))
			fail.Actual = "row not found"
		case errors.Is(err, errManyRows):
			fail.Expected = fmt.Sprintf("exactly one row in %s where %s", assertion.Table, formatWhereClause(assertion.Where))
			fail.Actual = "multiple rows matched (assertion is ambiguous)"
		default:
			fail.Expected = fmt.Sprintf("query table %s", assertion.Table)
			fail.Actual = fmt.Sprintf("query error: %v", err)
		}
		return fail
	}

	for _, key := range sortedKeys(assertion.Expect) {
		want := assertion.Expect[key]
		got, ok := row[key]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in result columns: %v", key, columns),
			}
		}
		if !stateValuesEqual(want, got) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, want, want),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, got, got),
			}
		}
	}
	return nil
}

var (
	errNoRow    = errors.New("no row")
	errManyRows = errors.New("more than one row")
)

// singleRow runs query and returns its only row keyed by column name.
func singleRow(ctx context.Context, st *store.Store, query string, args []any) (map[string]any, []string, error) {
	rows, err := st.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, nil, err
		}
		return nil, columns, errNoRow
	}

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, columns, err
	}
	if rows.Next() {
		return nil, columns, errManyRows
	}

	row := make(map[string]any, len(columns))
	for i, col := range columns {
		row[col] = values[i]
	}
	return row, columns, nil
}

// buildWhereClause constructs parameterized WHERE clause from assertion.Where.
// Returns SQL fragment, arguments slice, and error. Keys are sorted for determinism.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := sortedKeys(where)
	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))

	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		clauses = append(clauses, fmt.Sprintf("%s = ?", key))
		args = append(args, toSQLValue(where[key]))
	}

	return strings.Join(clauses, " AND "), args, nil
}

// toSQLValue converts a YAML-decoded value to a SQL-compatible value.
func toSQLValue(v any) any {
	switch val := v.(type) {
	case string, int, int64, bool, float64:
		return val
	case []any:
		// Array columns are stored as canonical JSON
		data, err := ir.MarshalCanonical(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := sortedKeys(where)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// stateValuesEqual compares expected and actual values from store tables.
// Handles type coercion for SQLite values which may be returned as different types.
func stateValuesEqual(expected, actual any) bool {
	if expected == nil && actual == nil {
		return true
	}
	if expected == nil || actual == nil {
		return false
	}

	// SQLite TEXT may come back as []byte
	if b, ok := actual.([]byte); ok {
		actual = string(b)
	}

	switch exp := expected.(type) {
	case string:
		if actualStr, ok := actual.(string); ok {
			return exp == actualStr
		}
		return false
	case int:
		if actualInt, ok := actual.(int64); ok {
			return int64(exp) == actualInt
		}
		if actualInt, ok := actual.(int); ok {
			return exp == actualInt
		}
		return false
	case int64:
		if actualInt, ok := actual.(int64); ok {
			return exp == actualInt
		}
		return false
	case float64:
		switch a := actual.(type) {
		case float64:
			return exp == a
		case int64:
			return exp == float64(a)
		}
		return false
	case bool:
		if actualBool, ok := actual.(bool); ok {
			return exp == actualBool
		}
		// SQLite stores booleans as integers
		if actualInt, ok := actual.(int64); ok {
			return exp == (actualInt != 0)
		}
		return false
	case []any:
		// Array columns are canonical JSON text
		if actualStr, ok := actual.(string); ok {
			data, err := ir.MarshalCanonical(exp)
			return err == nil && string(data) == actualStr
		}
		return false
	}

	return reflect.DeepEqual(expected, actual)
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store     *store.Store
	Engine    ir.Engine
	SessionID string
	Ctx       context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides store access for final_state and
// replay_match assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var failures []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertStatusCount:
			err = assertStatusCount(result.Trace, assertion)
		case AssertModeCount:
			err = assertModeCount(result.Trace, assertion)
		case AssertStrideAligned:
			err = assertStrideAligned(result.Trace, result.Stride)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			}
		case AssertReplayMatch:
			if actx == nil || actx.Store == nil || actx.Engine == nil {
				err = fmt.Errorf("assertion[%d]: replay_match requires database and engine context", i)
			} else {
				err = assertReplayMatch(actx)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			failures = append(failures, err.Error())
		}
	}

	return failures
}
