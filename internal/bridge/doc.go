// Package bridge mounts a visualization engine inside a declarative
// component, keeps its options in step with the component's properties,
// shares the live engine with descendant components and tears it down.
//
// ARCHITECTURE:
//
//	Props signal ──► Controller.Mount ──► engine.Factory ──► Engine
//	                      │                                   ▲
//	                      ├─ bindEvents (EventMap → On/Off) ──┤
//	                      ├─ HandleStore.publish              │
//	                      ├─ Synchronizer (settle push, then ─┘
//	                      │   one push per Props revision)
//	                      └─ descendants mounted with Controller.Context
//
// Ordering guarantees:
//   - construction < event binding < OnInit < handle publish < settle push
//   - every Props revision after publish produces exactly one push
//   - teardown: descendants unmounted, property tracking stopped, events
//     unbound one by one, Destroy, OnDestroy, handle cleared
//
// A push is SetOptions (synchronous, on the notifying goroutine) followed by
// Render (awaited on its own goroutine) and then OnReady. Pushes are not
// queued, debounced or cancelled: the engine's render is the only point of
// coalescing. A push whose render resolves after teardown does not call
// OnReady.
//
// Error taxonomy:
//   - construction failure: *ConstructError, nothing published
//   - stale handle (unmounted or destroyed engine): push is a silent no-op
//   - context misuse: ErrUsedOutsideProvider
//   - render failure: reported as-is to the error handler, OnReady skipped
package bridge
