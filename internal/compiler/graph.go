package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/vizbridge/internal/bridge"
	"github.com/roach88/vizbridge/internal/engine"
	"github.com/roach88/vizbridge/internal/ir"
)

// GraphSpec is a compiled graph definition. Events are declarations only;
// handlers are attached when the spec is turned into Props.
type GraphSpec struct {
	Name string

	ID    string
	Class string
	Style ir.Object

	Options ir.Options
	Events  []EventDecl
}

// EventDecl declares interest in an engine event.
type EventDecl struct {
	Name string
	Once bool
}

// Props builds bridge Props for the spec. handler returns the handler for an
// event name; nil handlers leave the event unbound.
func (g *GraphSpec) Props(handler func(event string) engine.Handler) bridge.Props {
	opts := g.Options.Clone()
	p := bridge.Props{
		ID:         g.ID,
		Class:      g.Class,
		Style:      g.Style.Clone(),
		Width:      opts.Width,
		Height:     opts.Height,
		Background: opts.Background,
		AutoFit:    opts.AutoFit,
		Data:       opts.Data,
		Node:       opts.Node,
		Edge:       opts.Edge,
		Combo:      opts.Combo,
		Layout:     opts.Layout,
		Behaviors:  opts.Behaviors,
		Extra:      opts.Extra,
		Events:     bridge.EventMap{},
	}
	if handler == nil {
		return p
	}
	for _, ev := range g.Events {
		h := handler(ev.Name)
		if h == nil {
			continue
		}
		p.Events[ev.Name] = bridge.EventDescriptor{Handler: h, Once: ev.Once}
	}
	return p
}

// CompileGraph parses a CUE value into a GraphSpec.
//
// The CUE value should be the graph struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`graph: social: { ... }`)
//	spec, err := CompileGraph(v.LookupPath(cue.ParsePath("graph.social")))
func CompileGraph(v cue.Value) (*GraphSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &GraphSpec{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}

	var err error
	if spec.ID, err = optionalString(v, "id"); err != nil {
		return nil, err
	}
	if spec.Class, err = optionalString(v, "class"); err != nil {
		return nil, err
	}
	if spec.Style, err = optionalObject(v, "style"); err != nil {
		return nil, err
	}

	opts := &spec.Options
	if opts.Width, err = optionalInt(v, "width"); err != nil {
		return nil, err
	}
	if opts.Height, err = optionalInt(v, "height"); err != nil {
		return nil, err
	}
	if opts.Background, err = optionalString(v, "background"); err != nil {
		return nil, err
	}
	if opts.AutoFit, err = optionalString(v, "autoFit"); err != nil {
		return nil, err
	}
	if opts.Extra, err = optionalObject(v, "extra"); err != nil {
		return nil, err
	}

	if opts.Data, err = parseData(v.LookupPath(cue.ParsePath("data"))); err != nil {
		return nil, err
	}

	for _, kind := range []struct {
		field string
		dst   *ir.ElementSpec
	}{
		{"node", &opts.Node},
		{"edge", &opts.Edge},
		{"combo", &opts.Combo},
	} {
		es, err := parseElementSpec(v.LookupPath(cue.ParsePath(kind.field)), kind.field)
		if err != nil {
			return nil, err
		}
		*kind.dst = es
	}

	if opts.Layout, err = parseLayout(v.LookupPath(cue.ParsePath("layout"))); err != nil {
		return nil, err
	}
	if opts.Behaviors, err = parseBehaviors(v.LookupPath(cue.ParsePath("behaviors"))); err != nil {
		return nil, err
	}
	if spec.Events, err = parseEvents(v.LookupPath(cue.ParsePath("events"))); err != nil {
		return nil, err
	}

	return spec, nil
}

// parseData reads nodes, edges and combos. A missing data field is empty.
func parseData(v cue.Value) (ir.GraphData, error) {
	data := ir.EmptyGraphData()
	if !v.Exists() {
		return data, nil
	}

	err := eachListItem(v, "nodes", func(i int, item cue.Value) error {
		field := fmt.Sprintf("data.nodes[%d]", i)
		id, err := requiredString(item, "id", field)
		if err != nil {
			return err
		}
		el, err := parseElement(item, field)
		if err != nil {
			return err
		}
		data.Nodes = append(data.Nodes, ir.NodeData{
			ID: id, Type: el.typ, Combo: el.combo, Style: el.style, States: el.states, Data: el.data,
		})
		return nil
	})
	if err != nil {
		return data, err
	}

	err = eachListItem(v, "edges", func(i int, item cue.Value) error {
		field := fmt.Sprintf("data.edges[%d]", i)
		source, err := requiredString(item, "source", field)
		if err != nil {
			return err
		}
		target, err := requiredString(item, "target", field)
		if err != nil {
			return err
		}
		id, err := optionalString(item, "id")
		if err != nil {
			return err
		}
		el, err := parseElement(item, field)
		if err != nil {
			return err
		}
		data.Edges = append(data.Edges, ir.EdgeData{
			ID: id, Source: source, Target: target, Type: el.typ, Style: el.style, States: el.states, Data: el.data,
		})
		return nil
	})
	if err != nil {
		return data, err
	}

	err = eachListItem(v, "combos", func(i int, item cue.Value) error {
		field := fmt.Sprintf("data.combos[%d]", i)
		id, err := requiredString(item, "id", field)
		if err != nil {
			return err
		}
		el, err := parseElement(item, field)
		if err != nil {
			return err
		}
		data.Combos = append(data.Combos, ir.ComboData{
			ID: id, Type: el.typ, Combo: el.combo, Style: el.style, States: el.states, Data: el.data,
		})
		return nil
	})
	return data, err
}

// element holds the fields shared by nodes, edges and combos.
type element struct {
	typ    string
	combo  string
	style  ir.Object
	states []string
	data   ir.Object
}

func parseElement(v cue.Value, field string) (element, error) {
	var (
		el  element
		err error
	)
	if el.typ, err = optionalString(v, "type"); err != nil {
		return el, err
	}
	if el.combo, err = optionalString(v, "combo"); err != nil {
		return el, err
	}
	if el.style, err = optionalObject(v, "style"); err != nil {
		return el, err
	}
	if el.data, err = optionalObject(v, "data"); err != nil {
		return el, err
	}
	err = eachListItem(v, "states", func(i int, item cue.Value) error {
		s, err := item.String()
		if err != nil {
			return &CompileError{
				Field:   fmt.Sprintf("%s.states[%d]", field, i),
				Message: "state must be a string",
				Pos:     item.Pos(),
			}
		}
		el.states = append(el.states, s)
		return nil
	})
	return el, err
}

// parseElementSpec reads a per-kind spec: { type, style, state: { name: {...} } }.
func parseElementSpec(v cue.Value, field string) (ir.ElementSpec, error) {
	var spec ir.ElementSpec
	if !v.Exists() {
		return spec, nil
	}

	var err error
	if spec.Type, err = optionalString(v, "type"); err != nil {
		return spec, err
	}
	style, err := optionalObject(v, "style")
	if err != nil {
		return spec, err
	}
	if style != nil {
		spec.Style = ir.StaticStyle(style)
	}

	stateVal := v.LookupPath(cue.ParsePath("state"))
	if !stateVal.Exists() {
		return spec, nil
	}
	iter, err := stateVal.Fields()
	if err != nil {
		return spec, &CompileError{Field: field + ".state", Message: "state must be a struct", Pos: stateVal.Pos()}
	}
	spec.State = make(map[string]ir.Object)
	for iter.Next() {
		name := iter.Selector().Unquoted()
		obj, err := toObject(iter.Value(), field+".state."+name)
		if err != nil {
			return spec, err
		}
		spec.State[name] = obj
	}
	return spec, nil
}

// parseLayout accepts "force" or { type: "force", params: {...} }.
func parseLayout(v cue.Value) (*ir.LayoutSpec, error) {
	if !v.Exists() {
		return nil, nil
	}
	if name, err := v.String(); err == nil {
		return &ir.LayoutSpec{Type: name}, nil
	}
	typ, err := requiredString(v, "type", "layout")
	if err != nil {
		return nil, err
	}
	params, err := optionalObject(v, "params")
	if err != nil {
		return nil, err
	}
	return &ir.LayoutSpec{Type: typ, Params: params}, nil
}

// parseBehaviors accepts a list of names or { type, params } structs.
func parseBehaviors(v cue.Value) ([]ir.BehaviorSpec, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: "behaviors", Message: "behaviors must be a list", Pos: v.Pos()}
	}

	var out []ir.BehaviorSpec
	for i := 0; iter.Next(); i++ {
		item := iter.Value()
		if name, err := item.String(); err == nil {
			out = append(out, ir.Behavior(name))
			continue
		}
		field := fmt.Sprintf("behaviors[%d]", i)
		typ, err := requiredString(item, "type", field)
		if err != nil {
			return nil, err
		}
		params, err := optionalObject(item, "params")
		if err != nil {
			return nil, err
		}
		out = append(out, ir.BehaviorSpec{Type: typ, Params: params})
	}
	return out, nil
}

// parseEvents reads events: { "node:click": {}, "afterdraw": { once: true } }.
// A bare true is shorthand for {}.
func parseEvents(v cue.Value) ([]EventDecl, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, &CompileError{Field: "events", Message: "events must be a struct", Pos: v.Pos()}
	}

	var out []EventDecl
	for iter.Next() {
		name := iter.Selector().Unquoted()
		item := iter.Value()
		field := "events." + name

		if b, err := item.Bool(); err == nil {
			if b {
				out = append(out, EventDecl{Name: name})
			}
			continue
		}

		once := false
		onceVal := item.LookupPath(cue.ParsePath("once"))
		if onceVal.Exists() {
			if once, err = onceVal.Bool(); err != nil {
				return nil, &CompileError{Field: field + ".once", Message: "once must be a bool", Pos: onceVal.Pos()}
			}
		}
		out = append(out, EventDecl{Name: name, Once: once})
	}
	return out, nil
}

func eachListItem(v cue.Value, field string, fn func(i int, item cue.Value) error) error {
	listVal := v.LookupPath(cue.ParsePath(field))
	if !listVal.Exists() {
		return nil
	}
	iter, err := listVal.List()
	if err != nil {
		return &CompileError{Field: field, Message: "must be a list", Pos: listVal.Pos()}
	}
	for i := 0; iter.Next(); i++ {
		if err := fn(i, iter.Value()); err != nil {
			return err
		}
	}
	return nil
}

func requiredString(v cue.Value, name, parent string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return "", &CompileError{Field: parent + "." + name, Message: name + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{Field: parent + "." + name, Message: name + " must be a string", Pos: fv.Pos()}
	}
	return s, nil
}

func optionalString(v cue.Value, name string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{Field: name, Message: name + " must be a string", Pos: fv.Pos()}
	}
	return s, nil
}

func optionalInt(v cue.Value, name string) (int, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return 0, nil
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, &CompileError{Field: name, Message: name + " must be an integer", Pos: fv.Pos()}
	}
	return int(n), nil
}

func optionalObject(v cue.Value, name string) (ir.Object, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return nil, nil
	}
	return toObject(fv, name)
}

func toObject(v cue.Value, field string) (ir.Object, error) {
	val, err := toValue(v, field)
	if err != nil {
		return nil, err
	}
	obj, ok := val.(ir.Object)
	if !ok {
		return nil, &CompileError{Field: field, Message: "must be a struct", Pos: v.Pos()}
	}
	return obj, nil
}

// toValue converts a concrete CUE value to an ir.Value.
func toValue(v cue.Value, field string) (ir.Value, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	switch v.Kind() {
	case cue.NullKind:
		return ir.Null{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Bool(b), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.String(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, &CompileError{Field: field, Message: "integer out of range", Pos: v.Pos()}
		}
		return ir.Int(n), nil
	case cue.FloatKind:
		f, err := v.Float64()
		if err != nil {
			return nil, &CompileError{Field: field, Message: "invalid number", Pos: v.Pos()}
		}
		return ir.FromGo(f)
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := ir.Array{}
		for i := 0; iter.Next(); i++ {
			item, err := toValue(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
			if err != nil {
				return nil, err
			}
			arr = append(arr, item)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := ir.Object{}
		for iter.Next() {
			key := iter.Selector().Unquoted()
			item, err := toValue(iter.Value(), field+"."+key)
			if err != nil {
				return nil, err
			}
			obj[key] = item
		}
		return obj, nil
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("value must be concrete, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
