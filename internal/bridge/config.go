package bridge

import (
	"github.com/roach88/vizbridge/internal/engine"
	"github.com/roach88/vizbridge/internal/ir"
)

// Hook receives the raw engine instance at a lifecycle point.
type Hook func(engine.Engine)

// Props is the declarative surface an owning component sets on a graph.
// A new Props value is set on the component's signal for every change.
type Props struct {
	// Container fields. These never reach the engine.
	ID    string
	Class string
	Style ir.Object

	Width      int
	Height     int
	Background string
	AutoFit    string

	Data      ir.GraphData
	Node      ir.ElementSpec
	Edge      ir.ElementSpec
	Combo     ir.ElementSpec
	Layout    *ir.LayoutSpec
	Behaviors []ir.BehaviorSpec
	// Extra is passed to the engine untouched.
	Extra ir.Object

	Events EventMap

	// OnInit runs once per mount, after events are bound and before the
	// engine is published.
	OnInit Hook
	// OnReady runs after each push whose render resolved while mounted.
	OnReady Hook
	// OnDestroy runs once per mount, after the engine is destroyed.
	OnDestroy Hook
}

// DefaultContainerStyle is applied under the caller's container style.
var DefaultContainerStyle = ir.Obj(
	ir.O("width", ir.String("100%")),
	ir.O("height", ir.String("100%")),
)

// Config is the merged configuration for one Props revision.
type Config struct {
	ID    string
	Class string
	Style ir.Object

	// Options is everything the engine receives.
	Options ir.Options

	Events    EventMap
	OnInit    Hook
	OnReady   Hook
	OnDestroy Hook
}

// Container returns the host container described by the configuration.
func (c Config) Container() Container {
	return Container{ID: c.ID, Class: c.Class, Style: c.Style}
}

// Merge fills Props defaults and splits container fields from engine options.
// fallbackID is used when p.ID is empty; the controller passes the same
// fallback for every revision of one mount so the identifier stays stable.
func Merge(p Props, fallbackID string) Config {
	id := p.ID
	if id == "" {
		id = fallbackID
	}

	data := p.Data
	if data.Nodes == nil {
		data.Nodes = []ir.NodeData{}
	}
	if data.Edges == nil {
		data.Edges = []ir.EdgeData{}
	}
	if data.Combos == nil {
		data.Combos = []ir.ComboData{}
	}

	events := p.Events
	if events == nil {
		events = EventMap{}
	}

	return Config{
		ID:    id,
		Class: p.Class,
		Style: DefaultContainerStyle.Merge(p.Style),
		Options: ir.Options{
			Width:      p.Width,
			Height:     p.Height,
			Background: p.Background,
			AutoFit:    p.AutoFit,
			Data:       data,
			Node:       p.Node,
			Edge:       p.Edge,
			Combo:      p.Combo,
			Layout:     p.Layout,
			Behaviors:  p.Behaviors,
			Extra:      p.Extra,
		},
		Events:    events,
		OnInit:    p.OnInit,
		OnReady:   p.OnReady,
		OnDestroy: p.OnDestroy,
	}
}

// Container is the element a graph is hosted in.
type Container struct {
	ID    string
	Class string
	Style ir.Object
}

// ContainerID implements engine.Container.
func (c Container) ContainerID() string {
	return c.ID
}
