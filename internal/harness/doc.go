// Package harness runs lifecycle scenarios against the bridge.
//
// A scenario mounts a bridge.Controller over a fake engine factory, drives
// it through a list of steps and asserts on what the engine saw. Every run
// produces a trace that can be compared against a golden file.
//
// # Scenario Format
//
//	name: data_change_pushes_once
//	description: "Changing data triggers exactly one push"
//	props:
//	  id: g1
//	  width: 600
//	  height: 400
//	  nodes: [a]
//	  events:
//	    "node:click": {}
//	    "afterdraw": { once: true }
//	steps:
//	  - action: mount
//	  - action: set_props
//	    props: { id: g1, nodes: [a, b] }
//	  - action: emit
//	    event: "node:click"
//	    target: a
//	    times: 2
//	  - action: unmount
//	assertions:
//	  - type: call_count
//	    op: set_options
//	    count: 2
//	  - type: handler_count
//	    event: "node:click"
//	    count: 2
//
// Instead of inline props a scenario may name a CUE file and a graph in it
// (spec: graphs.cue, graph: social).
//
// # Steps
//
//   - mount, unmount: drive the controller
//   - set_props: publish a new Props revision
//   - emit: fire an event on an engine, as if the user interacted with it
//   - reconfigure: push options through the provided graph
//   - release_render, fail_render: resolve the oldest gated render
//   - use: look the graph up, optionally outside any provider
//
// A step may name the error it expects (error: used_outside_provider).
//
// # Assertions
//
//   - call_count: occurrences of an engine operation
//   - call_order: engine operations in order, gaps allowed
//   - handler_count, ready_count, hook_count: handler and hook invocations
//   - engine_count: engines constructed
//   - lifecycle_count: lifecycle events of a kind
//
// # Determinism
//
// Sequence numbers come from one logical clock shared with the controller.
// After each step the runner waits until every push has settled or is
// blocked on a gated render, so traces are stable across runs.
package harness
