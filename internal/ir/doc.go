// Package ir provides the shared representation types for monbridge.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. The bridge core, the reference
// compiler and the reference engine all speak in these types:
//   - Value: sealed tagged value (Float, Int, Bool, String, Tuple, Absent)
//   - StreamGraph: parsed specification (ordered inputs and outputs)
//   - Frame: one evaluation step's (output position, value) updates
//
// Key design constraints:
//   - Float never holds NaN; NewFloat rejects it
//   - Absent exists only inside events, never inside frames
//   - Output positions are indexes into StreamGraph.Outputs and never change
//     for the lifetime of a graph
package ir
