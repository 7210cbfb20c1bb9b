// Package engine defines the visualization engine collaborator that the
// bridge drives, plus a headless reference implementation.
//
// The bridge treats an Engine as an opaque capability set: it constructs one
// through a Factory, pushes whole Options revisions into it, awaits renders,
// subscribes to its events and finally destroys it. Rendering, layout,
// hit-testing and behaviors are the engine's business.
//
// CONTRACT:
//
//   - Commands (SetOptions, Render, On, Off, Emit) are serialized by the
//     engine itself. Callers may issue them from any goroutine.
//   - After Destroy, Destroyed reports true and the instance must not be
//     commanded again. Render on a destroyed engine returns ErrDestroyed.
//   - A one-shot subscription (once=true) fires at most once and is removed
//     by the engine before its handler runs.
//
// Headless is the reference implementation used by the CLI and the scenario
// harness. It resolves styles into a Frame on every render and hands each
// frame to a FrameSink (the SQLite store in production).
package engine
