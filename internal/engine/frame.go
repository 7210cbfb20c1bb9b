package engine

import (
	"context"

	"github.com/roach88/vizbridge/internal/ir"
)

// Default element types used when neither the element nor its kind spec names one.
const (
	DefaultNodeType  = "circle"
	DefaultEdgeType  = "line"
	DefaultComboType = "rect"
)

// Frame is the result of one headless render: every element with its fully
// resolved style.
type Frame struct {
	GraphID     string            `json:"graph_id"`
	Seq         int64             `json:"seq"`
	OptionsHash string            `json:"options_hash"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Layout      string            `json:"layout,omitempty"`
	Behaviors   []string          `json:"behaviors,omitempty"`
	Nodes       []RenderedElement `json:"nodes"`
	Edges       []RenderedElement `json:"edges"`
	Combos      []RenderedElement `json:"combos"`
}

// RenderedElement is one element in a frame.
type RenderedElement struct {
	ID     string    `json:"id"`
	Type   string    `json:"type"`
	Style  ir.Object `json:"style,omitempty"`
	States []string  `json:"states,omitempty"`
}

// FrameSink receives every frame a headless engine renders.
type FrameSink interface {
	WriteFrame(ctx context.Context, f Frame) error
}

// FrameSinkFunc adapts a function to FrameSink.
type FrameSinkFunc func(ctx context.Context, f Frame) error

// WriteFrame implements FrameSink.
func (fn FrameSinkFunc) WriteFrame(ctx context.Context, f Frame) error {
	return fn(ctx, f)
}

// BuildFrame resolves styles for every element of opts.
//
// Style precedence, lowest to highest: kind spec style (static, or computed
// from the element payload), the element's own style, then the kind's state
// styles in the order the element lists its states.
func BuildFrame(graphID string, seq int64, opts ir.Options) (Frame, error) {
	hash, err := ir.OptionsHash(opts)
	if err != nil {
		return Frame{}, err
	}

	f := Frame{
		GraphID:     graphID,
		Seq:         seq,
		OptionsHash: hash,
		Width:       opts.Width,
		Height:      opts.Height,
		Nodes:       make([]RenderedElement, 0, len(opts.Data.Nodes)),
		Edges:       make([]RenderedElement, 0, len(opts.Data.Edges)),
		Combos:      make([]RenderedElement, 0, len(opts.Data.Combos)),
	}
	if opts.Layout != nil {
		f.Layout = opts.Layout.Type
	}
	for _, b := range opts.Behaviors {
		f.Behaviors = append(f.Behaviors, b.Type)
	}

	for _, n := range opts.Data.Nodes {
		f.Nodes = append(f.Nodes, resolveElement(opts.Node, DefaultNodeType, n.ID, n.Type, n.Style, n.States, n.Data))
	}
	for _, e := range opts.Data.Edges {
		f.Edges = append(f.Edges, resolveElement(opts.Edge, DefaultEdgeType, e.EdgeKey(), e.Type, e.Style, e.States, e.Data))
	}
	for _, c := range opts.Data.Combos {
		f.Combos = append(f.Combos, resolveElement(opts.Combo, DefaultComboType, c.ID, c.Type, c.Style, c.States, c.Data))
	}
	return f, nil
}

func resolveElement(spec ir.ElementSpec, fallbackType, id, typ string, style ir.Object, states []string, datum ir.Object) RenderedElement {
	if typ == "" {
		typ = spec.Type
	}
	if typ == "" {
		typ = fallbackType
	}

	resolved := spec.Style.Resolve(datum)
	if style != nil {
		resolved = resolved.Merge(style)
	}
	for _, state := range states {
		if override, ok := spec.State[state]; ok {
			resolved = resolved.Merge(override)
		}
	}

	return RenderedElement{
		ID:     id,
		Type:   typ,
		Style:  resolved,
		States: states,
	}
}
