// Package ir provides the engine-facing option model for vizbridge.
//
// The package holds the value types that travel from a declarative
// component into the visualization engine: the graph data set, the per-kind
// element specs, layout and behavior specs, and the opaque payload values
// carried on every element. ir imports nothing internal; every other
// package builds on it.
//
// Key design constraints:
//   - Options are immutable per revision: callers build a new Options value
//     for every change and never patch one in place (use Clone when deriving).
//   - Opaque payloads use the sealed Value interface so they can be hashed
//     and written to golden traces deterministically.
//   - All JSON tags use snake_case.
package ir
