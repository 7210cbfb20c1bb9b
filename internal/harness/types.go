package harness

import "github.com/roach88/vizbridge/internal/ir"

// Trace event types.
const (
	TraceStep      = "step"
	TraceLifecycle = "lifecycle"
	TraceHook      = "hook"
	TraceHandler   = "handler"
)

// TraceEvent is one observable moment of a scenario run: a step starting, a
// lifecycle event from the controller, a hook call or an event handler call.
type TraceEvent struct {
	Seq    int64     `json:"seq"`
	Type   string    `json:"type"`
	Name   string    `json:"name"`
	Detail ir.Object `json:"detail,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step matched its expected error and every
	// assertion held.
	Pass bool `json:"pass"`

	// Trace is ordered by Seq.
	Trace []TraceEvent `json:"trace"`

	// Engines holds the call log of every constructed engine, in
	// construction order. Calls carrying an event are written "op:event".
	Engines [][]string `json:"engines"`

	// Errors contains step and assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Engines: [][]string{},
		Errors:  []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Count returns how many trace events have the given type and name.
func (r *Result) Count(typ, name string) int {
	n := 0
	for _, ev := range r.Trace {
		if ev.Type == typ && ev.Name == name {
			n++
		}
	}
	return n
}
