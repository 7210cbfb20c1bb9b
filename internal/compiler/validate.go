package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/vizbridge/internal/engine"
	"github.com/roach88/vizbridge/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrUnsupportedType = "E100" // unsupported value for validation

	// Options errors (E101-E109)
	ErrNegativeSize     = "E101" // width or height below zero
	ErrInvalidAutoFit   = "E102" // autoFit not "", "view" or "center"
	ErrEmptyLayoutType  = "E103" // layout given without a type
	ErrEmptyBehavior    = "E104" // behavior without a type
	ErrDuplicateEvent   = "E105" // event declared twice
	ErrEmptyEventName   = "E106" // event with an empty name
	ErrDuplicateElement = "E107" // duplicate node or combo id

	// Data errors (E110-E119)
	ErrMissingElementID = "E110" // node or combo without id
	ErrDanglingEdge     = "E111" // edge endpoint not a known node or combo
	ErrUnknownCombo     = "E112" // element references a combo that does not exist
	ErrUnknownState     = "E113" // element lists a state with no style for its kind
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// validAutoFit lists accepted autoFit values.
var validAutoFit = map[string]bool{"": true, "view": true, "center": true}

// Validate checks a compiled graph. It returns every error found rather
// than stopping at the first.
func Validate(v any) []ValidationError {
	switch g := v.(type) {
	case *GraphSpec:
		return validateGraph(g)
	case GraphSpec:
		return validateGraph(&g)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type: %T", v),
			Code:    ErrUnsupportedType,
		}}
	}
}

func validateGraph(g *GraphSpec) []ValidationError {
	var errs []ValidationError
	opts := g.Options

	if opts.Width < 0 {
		errs = append(errs, ValidationError{Field: "width", Message: "must not be negative", Code: ErrNegativeSize})
	}
	if opts.Height < 0 {
		errs = append(errs, ValidationError{Field: "height", Message: "must not be negative", Code: ErrNegativeSize})
	}
	if !validAutoFit[opts.AutoFit] {
		errs = append(errs, ValidationError{
			Field:   "autoFit",
			Message: fmt.Sprintf("invalid value %q, must be \"view\" or \"center\"", opts.AutoFit),
			Code:    ErrInvalidAutoFit,
		})
	}
	if opts.Layout != nil && strings.TrimSpace(opts.Layout.Type) == "" {
		errs = append(errs, ValidationError{Field: "layout.type", Message: "layout type is required", Code: ErrEmptyLayoutType})
	}
	for i, b := range opts.Behaviors {
		if strings.TrimSpace(b.Type) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("behaviors[%d].type", i),
				Message: "behavior type is required",
				Code:    ErrEmptyBehavior,
			})
		}
	}

	seenEvents := make(map[string]bool)
	for i, ev := range g.Events {
		if strings.TrimSpace(ev.Name) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("events[%d]", i),
				Message: "event name is required",
				Code:    ErrEmptyEventName,
			})
			continue
		}
		if seenEvents[ev.Name] {
			errs = append(errs, ValidationError{
				Field:   "events." + ev.Name,
				Message: fmt.Sprintf("duplicate event %q", ev.Name),
				Code:    ErrDuplicateEvent,
			})
		}
		seenEvents[ev.Name] = true
	}

	errs = append(errs, validateData(g)...)
	return errs
}

func validateData(g *GraphSpec) []ValidationError {
	var errs []ValidationError
	data := g.Options.Data

	combos := make(map[string]bool, len(data.Combos))
	for i, c := range data.Combos {
		field := fmt.Sprintf("data.combos[%d]", i)
		if c.ID == "" {
			errs = append(errs, ValidationError{Field: field + ".id", Message: "combo id is required", Code: ErrMissingElementID})
			continue
		}
		if combos[c.ID] {
			errs = append(errs, ValidationError{Field: field + ".id", Message: fmt.Sprintf("duplicate combo id %q", c.ID), Code: ErrDuplicateElement})
		}
		combos[c.ID] = true
	}

	nodes := make(map[string]bool, len(data.Nodes))
	for i, n := range data.Nodes {
		field := fmt.Sprintf("data.nodes[%d]", i)
		if n.ID == "" {
			errs = append(errs, ValidationError{Field: field + ".id", Message: "node id is required", Code: ErrMissingElementID})
			continue
		}
		if nodes[n.ID] {
			errs = append(errs, ValidationError{Field: field + ".id", Message: fmt.Sprintf("duplicate node id %q", n.ID), Code: ErrDuplicateElement})
		}
		nodes[n.ID] = true
		if n.Combo != "" && !combos[n.Combo] {
			errs = append(errs, ValidationError{Field: field + ".combo", Message: fmt.Sprintf("unknown combo %q", n.Combo), Code: ErrUnknownCombo})
		}
		errs = append(errs, checkStates(field, n.States, g.Options.Node.State)...)
	}

	for i, c := range data.Combos {
		if c.Combo != "" && !combos[c.Combo] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("data.combos[%d].combo", i),
				Message: fmt.Sprintf("unknown combo %q", c.Combo),
				Code:    ErrUnknownCombo,
			})
		}
		errs = append(errs, checkStates(fmt.Sprintf("data.combos[%d]", i), c.States, g.Options.Combo.State)...)
	}

	for i, e := range data.Edges {
		field := fmt.Sprintf("data.edges[%d]", i)
		for _, end := range []struct{ name, id string }{{"source", e.Source}, {"target", e.Target}} {
			if !nodes[end.id] && !combos[end.id] {
				errs = append(errs, ValidationError{
					Field:   field + "." + end.name,
					Message: fmt.Sprintf("unknown element %q", end.id),
					Code:    ErrDanglingEdge,
				})
			}
		}
		errs = append(errs, checkStates(field, e.States, g.Options.Edge.State)...)
	}

	return errs
}

// checkStates reports states that have no style for the element kind.
// A kind with no state styles accepts any state.
func checkStates(field string, states []string, styles map[string]ir.Object) []ValidationError {
	if len(styles) == 0 {
		return nil
	}
	var errs []ValidationError
	for j, s := range states {
		if _, ok := styles[s]; !ok {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.states[%d]", field, j),
				Message: fmt.Sprintf("state %q has no style", s),
				Code:    ErrUnknownState,
			})
		}
	}
	return errs
}

// KnownEvent reports whether name is one of the engine's well-known events.
func KnownEvent(name string) bool {
	switch name {
	case engine.EventNodeClick, engine.EventEdgeClick, engine.EventComboClick, engine.EventCanvasClick,
		engine.EventBeforeRender, engine.EventAfterRender, engine.EventBeforeDraw, engine.EventAfterDraw,
		engine.EventDestroy:
		return true
	}
	return false
}
