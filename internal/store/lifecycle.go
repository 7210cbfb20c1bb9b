package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/vizbridge/internal/bridge"
	"github.com/roach88/vizbridge/internal/ir"
)

// RecordLifecycle stores a lifecycle event. It implements bridge.Recorder.
// A nil detail is stored as an empty object.
func (s *Store) RecordLifecycle(ctx context.Context, ev bridge.LifecycleEvent) error {
	detail := ev.Detail
	if detail == nil {
		detail = ir.Object{}
	}
	data, err := ir.MarshalCanonical(detail)
	if err != nil {
		return fmt.Errorf("record lifecycle: marshal detail: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO lifecycle_events (graph_id, seq, kind, detail)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(graph_id, seq) DO NOTHING
	`, ev.GraphID, ev.Seq, ev.Kind, string(data))
	if err != nil {
		return fmt.Errorf("record lifecycle: %w", err)
	}
	return nil
}

// ReadLifecycle returns every event of a graph ordered by seq.
// Returns an empty slice (not nil) when there are none.
func (s *Store) ReadLifecycle(ctx context.Context, graphID string) ([]bridge.LifecycleEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT graph_id, seq, kind, detail
		FROM lifecycle_events
		WHERE graph_id = ?
		ORDER BY seq ASC
	`, graphID)
	if err != nil {
		return nil, fmt.Errorf("query lifecycle events: %w", err)
	}
	defer rows.Close()

	out := []bridge.LifecycleEvent{}
	for rows.Next() {
		var (
			ev     bridge.LifecycleEvent
			detail string
		)
		if err := rows.Scan(&ev.GraphID, &ev.Seq, &ev.Kind, &detail); err != nil {
			return nil, fmt.Errorf("scan lifecycle event: %w", err)
		}
		if err := ev.Detail.UnmarshalJSON([]byte(detail)); err != nil {
			return nil, fmt.Errorf("decode detail of %s#%d: %w", ev.GraphID, ev.Seq, err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lifecycle events: %w", err)
	}
	return out, nil
}

// CountLifecycle returns how many events of kind a graph recorded.
func (s *Store) CountLifecycle(ctx context.Context, graphID, kind string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM lifecycle_events
		WHERE graph_id = ? AND kind = ?
	`, graphID, kind).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count lifecycle events: %w", err)
	}
	return n, nil
}

// LastSeq returns the highest seq recorded for a graph across frames and
// lifecycle events, or 0. A clock started there keeps new records from
// colliding with earlier runs.
func (s *Store) LastSeq(ctx context.Context, graphID string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM (
			SELECT seq FROM frames WHERE graph_id = ?
			UNION ALL
			SELECT seq FROM lifecycle_events WHERE graph_id = ?
		)
	`, graphID, graphID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return seq, nil
}

// Graphs returns every graph id with frames or lifecycle events, sorted.
func (s *Store) Graphs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT graph_id FROM frames
		UNION
		SELECT graph_id FROM lifecycle_events
		ORDER BY graph_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query graphs: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan graph id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate graphs: %w", err)
	}
	return out, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
