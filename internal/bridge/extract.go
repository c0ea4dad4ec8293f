package bridge

import (
	"fmt"

	"github.com/roach88/monbridge/internal/ir"
)

// FramePolicy decides what a frame with no relevant update contributes.
//
// Under both policies every contributed block has exactly one entry per
// relevant output, so the result length is always a multiple of the stride.
type FramePolicy int

const (
	// PadFrames emits one block per frame. Relevant outputs that did not
	// update in a frame read as 0.
	PadFrames FramePolicy = iota

	// SkipEmptyFrames drops frames with no relevant update. Frames with at
	// least one relevant update are padded like PadFrames.
	SkipEmptyFrames
)

func (p FramePolicy) String() string {
	switch p {
	case PadFrames:
		return "pad"
	case SkipEmptyFrames:
		return "skip_empty"
	default:
		return fmt.Sprintf("FramePolicy(%d)", int(p))
	}
}

// ParseFramePolicy converts "pad" or "skip_empty" to a FramePolicy.
func ParseFramePolicy(s string) (FramePolicy, error) {
	switch s {
	case "", "pad":
		return PadFrames, nil
	case "skip_empty":
		return SkipEmptyFrames, nil
	default:
		return PadFrames, fmt.Errorf("unknown frame policy %q (want pad or skip_empty)", s)
	}
}

// Extract flattens frames into host floats, frame-major.
//
// Each block follows relevant's order, not the order updates appear in the
// frame. Positions may repeat in relevant; each occurrence gets a column.
func Extract(frames []ir.Frame, relevant []int, policy FramePolicy) []float64 {
	out := make([]float64, 0, len(frames)*len(relevant))
	if len(relevant) == 0 {
		return out
	}

	byPos := make(map[int]ir.Value)
	for _, frame := range frames {
		clear(byPos)
		for _, u := range frame.Updates {
			if _, seen := byPos[u.Output]; !seen {
				byPos[u.Output] = u.Value
			}
		}

		matched := 0
		for _, ix := range relevant {
			if _, ok := byPos[ix]; ok {
				matched++
			}
		}
		if matched == 0 && policy == SkipEmptyFrames {
			continue
		}

		for _, ix := range relevant {
			v, ok := byPos[ix]
			if !ok {
				out = append(out, 0)
				continue
			}
			out = append(out, TaggedToScalar(v))
		}
	}
	return out
}
