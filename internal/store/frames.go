package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/vizbridge/internal/engine"
)

// FrameSummary is a frame row without its body.
type FrameSummary struct {
	GraphID     string `json:"graph_id"`
	Seq         int64  `json:"seq"`
	OptionsHash string `json:"options_hash"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Layout      string `json:"layout,omitempty"`
	Nodes       int    `json:"nodes"`
	Edges       int    `json:"edges"`
	Combos      int    `json:"combos"`
}

// WriteFrame stores a rendered frame. It implements engine.FrameSink.
// Writing the same (graph_id, seq) twice is a no-op.
func (s *Store) WriteFrame(ctx context.Context, f engine.Frame) error {
	body, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("write frame: marshal: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO frames
		(graph_id, seq, options_hash, width, height, layout, node_count, edge_count, combo_count, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(graph_id, seq) DO NOTHING
	`,
		f.GraphID,
		f.Seq,
		f.OptionsHash,
		f.Width,
		f.Height,
		f.Layout,
		len(f.Nodes),
		len(f.Edges),
		len(f.Combos),
		string(body),
	)
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadFrames returns every frame summary of a graph, ordered by seq.
// Returns an empty slice (not nil) when the graph has no frames.
func (s *Store) ReadFrames(ctx context.Context, graphID string) ([]FrameSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT graph_id, seq, options_hash, width, height, layout, node_count, edge_count, combo_count
		FROM frames
		WHERE graph_id = ?
		ORDER BY seq ASC
	`, graphID)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	out := []FrameSummary{}
	for rows.Next() {
		var fs FrameSummary
		if err := rows.Scan(&fs.GraphID, &fs.Seq, &fs.OptionsHash, &fs.Width, &fs.Height,
			&fs.Layout, &fs.Nodes, &fs.Edges, &fs.Combos); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		out = append(out, fs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate frames: %w", err)
	}
	return out, nil
}

// LatestFrame returns the full frame with the highest seq for a graph.
// ok is false when the graph has no frames.
func (s *Store) LatestFrame(ctx context.Context, graphID string) (f engine.Frame, ok bool, err error) {
	var body string
	err = s.db.QueryRowContext(ctx, `
		SELECT body FROM frames
		WHERE graph_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, graphID).Scan(&body)
	if isNoRows(err) {
		return engine.Frame{}, false, nil
	}
	if err != nil {
		return engine.Frame{}, false, fmt.Errorf("query latest frame: %w", err)
	}

	if err := json.Unmarshal([]byte(body), &f); err != nil {
		return engine.Frame{}, false, fmt.Errorf("decode frame %s: %w", graphID, err)
	}
	return f, true, nil
}

// FramesWithOptions returns summaries of frames rendered from the given
// options hash, across all graphs.
func (s *Store) FramesWithOptions(ctx context.Context, optionsHash string) ([]FrameSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT graph_id, seq, options_hash, width, height, layout, node_count, edge_count, combo_count
		FROM frames
		WHERE options_hash = ?
		ORDER BY graph_id COLLATE BINARY ASC, seq ASC
	`, optionsHash)
	if err != nil {
		return nil, fmt.Errorf("query frames by options: %w", err)
	}
	defer rows.Close()

	out := []FrameSummary{}
	for rows.Next() {
		var fs FrameSummary
		if err := rows.Scan(&fs.GraphID, &fs.Seq, &fs.OptionsHash, &fs.Width, &fs.Height,
			&fs.Layout, &fs.Nodes, &fs.Edges, &fs.Combos); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		out = append(out, fs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate frames: %w", err)
	}
	return out, nil
}
