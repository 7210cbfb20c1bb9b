package ir

// StyleFunc computes an element style from the element's opaque payload.
type StyleFunc func(datum Object) Object

// StyleSpec is either a static style object or a style computed per element.
// When both are set, Func wins and Static is used as its base.
type StyleSpec struct {
	Static Object
	Func   StyleFunc
}

// StaticStyle returns a StyleSpec with a fixed style object.
func StaticStyle(style Object) StyleSpec {
	return StyleSpec{Static: style}
}

// ComputedStyle returns a StyleSpec that derives styles from element payloads.
func ComputedStyle(fn StyleFunc) StyleSpec {
	return StyleSpec{Func: fn}
}

// Resolve returns the style for one element payload.
func (s StyleSpec) Resolve(datum Object) Object {
	if s.Func != nil {
		return s.Static.Merge(s.Func(datum))
	}
	return s.Static.Clone()
}

// IsZero reports whether the spec carries neither a static nor a computed style.
func (s StyleSpec) IsZero() bool {
	return s.Static == nil && s.Func == nil
}

// ElementSpec is the per-kind configuration for nodes, edges or combos.
type ElementSpec struct {
	// Type is the default element type ("circle", "line", "rect", ...).
	Type string
	// Style is applied to every element of the kind.
	Style StyleSpec
	// State maps a state tag ("selected", "active") to style overrides.
	State map[string]Object
}

// LayoutSpec names a layout algorithm and its parameters.
type LayoutSpec struct {
	Type   string
	Params Object
}

// BehaviorSpec names an interaction behavior, optionally with parameters.
type BehaviorSpec struct {
	Type   string
	Params Object
}

// Behavior is shorthand for a name-only BehaviorSpec.
func Behavior(name string) BehaviorSpec {
	return BehaviorSpec{Type: name}
}

// Options is the engine-facing configuration. It carries no container
// styling; the bridge strips that before construction.
type Options struct {
	Width      int
	Height     int
	Background string
	// AutoFit is passed through as-is ("view", "center" or empty).
	AutoFit   string
	Data      GraphData
	Node      ElementSpec
	Edge      ElementSpec
	Combo     ElementSpec
	Layout    *LayoutSpec
	Behaviors []BehaviorSpec
	// Extra holds pass-through options the bridge does not interpret.
	Extra Object
}

// Clone returns a copy that shares no mutable maps or slices with o.
// Style functions are shared (they are values, not state).
func (o Options) Clone() Options {
	out := o
	out.Data = o.Data.Clone()
	out.Node = o.Node.clone()
	out.Edge = o.Edge.clone()
	out.Combo = o.Combo.clone()
	if o.Layout != nil {
		l := LayoutSpec{Type: o.Layout.Type, Params: o.Layout.Params.Clone()}
		out.Layout = &l
	}
	if o.Behaviors != nil {
		out.Behaviors = make([]BehaviorSpec, len(o.Behaviors))
		for i, b := range o.Behaviors {
			out.Behaviors[i] = BehaviorSpec{Type: b.Type, Params: b.Params.Clone()}
		}
	}
	out.Extra = o.Extra.Clone()
	return out
}

func (e ElementSpec) clone() ElementSpec {
	out := ElementSpec{
		Type:  e.Type,
		Style: StyleSpec{Static: e.Style.Static.Clone(), Func: e.Style.Func},
	}
	if e.State != nil {
		out.State = make(map[string]Object, len(e.State))
		for k, v := range e.State {
			out.State[k] = v.Clone()
		}
	}
	return out
}

// Canonical returns the options as an Object for canonical marshaling.
// Computed styles cannot be serialized and appear as {"computed": true}
// merged with any static base.
func (o Options) Canonical() Object {
	obj := Object{
		"width":  Int(o.Width),
		"height": Int(o.Height),
		"data":   o.Data.Canonical(),
	}
	if o.Background != "" {
		obj["background"] = String(o.Background)
	}
	if o.AutoFit != "" {
		obj["auto_fit"] = String(o.AutoFit)
	}
	for kind, spec := range map[string]ElementSpec{"node": o.Node, "edge": o.Edge, "combo": o.Combo} {
		if s := spec.canonical(); s != nil {
			obj[kind] = s
		}
	}
	if o.Layout != nil {
		layout := Object{"type": String(o.Layout.Type)}
		if o.Layout.Params != nil {
			layout["params"] = o.Layout.Params
		}
		obj["layout"] = layout
	}
	if len(o.Behaviors) > 0 {
		arr := make(Array, len(o.Behaviors))
		for i, b := range o.Behaviors {
			if b.Params == nil {
				arr[i] = String(b.Type)
				continue
			}
			arr[i] = Object{"type": String(b.Type), "params": b.Params}
		}
		obj["behaviors"] = arr
	}
	if o.Extra != nil {
		obj["extra"] = o.Extra
	}
	return obj
}

func (e ElementSpec) canonical() Object {
	if e.Type == "" && e.Style.IsZero() && len(e.State) == 0 {
		return nil
	}
	obj := Object{}
	if e.Type != "" {
		obj["type"] = String(e.Type)
	}
	switch {
	case e.Style.Func != nil:
		obj["style"] = e.Style.Static.Merge(Object{"computed": Bool(true)})
	case e.Style.Static != nil:
		obj["style"] = e.Style.Static
	}
	if len(e.State) > 0 {
		states := make(Object, len(e.State))
		for k, v := range e.State {
			states[k] = v
		}
		obj["state"] = states
	}
	return obj
}
