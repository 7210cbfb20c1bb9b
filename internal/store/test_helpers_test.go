package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/vizbridge/internal/engine"
	"github.com/roach88/vizbridge/internal/ir"
)

// createTestStore opens a fresh store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestFrame builds a frame for a two-node graph.
func createTestFrame(t *testing.T, graphID string, seq int64, width int) engine.Frame {
	t.Helper()
	opts := ir.Options{
		Width:  width,
		Height: 300,
		Data: ir.GraphData{
			Nodes: []ir.NodeData{
				{ID: "a", Style: ir.Obj(ir.O("size", ir.Int(24)))},
				{ID: "b", States: []string{"selected"}},
			},
			Edges: []ir.EdgeData{{Source: "a", Target: "b"}},
		},
		Node: ir.ElementSpec{
			Style: ir.StaticStyle(ir.Obj(ir.O("fill", ir.String("#1783FF")))),
			State: map[string]ir.Object{
				"selected": ir.Obj(ir.O("stroke", ir.String("#000"))),
			},
		},
		Layout: &ir.LayoutSpec{Type: "grid"},
	}
	f, err := engine.BuildFrame(graphID, seq, opts)
	if err != nil {
		t.Fatalf("BuildFrame() failed: %v", err)
	}
	return f
}
