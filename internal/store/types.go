package store

import (
	"time"

	"github.com/roach88/monbridge/internal/bridge"
)

// Session is one initialized monitor: everything needed to build an
// equivalent monitor again.
type Session struct {
	ID            string
	Spec          string
	SpecHash      string
	Outputs       []string
	FramePolicy   string
	EngineVersion string
	IRVersion     string
	CreatedAt     time.Time
	ReleasedAt    *time.Time
}

// Call is one ingestion call and the verdict array it returned.
//
// Which argument fields are meaningful depends on Mode:
//   - single: Index, Value, Timestamp
//   - total: Values (timestamp last)
//   - partial: Values (timestamp last), Active
type Call struct {
	SessionID string
	Seq       int64
	Mode      bridge.MarshalMode
	Index     int
	Value     float64
	Timestamp float64
	Values    []float64
	Active    []bool
	Result    []float64
	Status    string
}
