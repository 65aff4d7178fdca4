package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/relay/internal/event"
)

// GetRun retrieves the run row, or nil if no such run exists.
func (s *Store) GetRun(ctx context.Context, runID string) (*event.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, goal, mode, status, created_at
		FROM runs
		WHERE run_id = ?
	`, runID)

	var run event.Run
	var mode, status string
	err := row.Scan(&run.RunID, &run.Goal, &mode, &status, &run.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	run.Mode = event.Mode(mode)
	run.Status = event.Status(status)
	return &run, nil
}

// ReadEvents returns all events of a run in ascending seq order.
// Returns an empty slice (not nil) for a run with no events.
func (s *Store) ReadEvents(ctx context.Context, runID string) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, run_id, seq, type, payload_json, ts
		FROM events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []event.Event{}
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}

// EventIterator yields a run's events lazily in ascending seq order.
// Callers must Close it; Err reports any scan failure after Next
// returns false.
type EventIterator struct {
	rows *sql.Rows
	cur  event.Event
	err  error
}

// IterEvents opens a lazy cursor over the run's events in seq order.
func (s *Store) IterEvents(ctx context.Context, runID string) (*EventIterator, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, run_id, seq, type, payload_json, ts
		FROM events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return &EventIterator{rows: rows}, nil
}

// Next advances to the next event. Returns false at the end or on error.
func (it *EventIterator) Next() bool {
	if it.err != nil || !it.rows.Next() {
		if it.err == nil {
			it.err = it.rows.Err()
		}
		return false
	}
	it.cur, it.err = scanEvent(it.rows)
	return it.err == nil
}

// Event returns the event at the cursor.
func (it *EventIterator) Event() event.Event {
	return it.cur
}

// Err returns the first error seen while iterating, if any.
func (it *EventIterator) Err() error {
	return it.err
}

// Close releases the underlying cursor.
func (it *EventIterator) Close() error {
	return it.rows.Close()
}

// ListFilter narrows and pages ListRuns results.
type ListFilter struct {
	Status string // exact status match when non-empty
	Since  string // created_at >= Since when non-empty (ISO-8601 text compare)
	Limit  int    // 0 means default of 50
	Offset int
}

// Counts aggregates run totals across the whole store. Counts ignore
// the filter so a paged listing still shows the full picture.
type Counts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Running   int `json:"running"`
}

// ListRuns returns runs matching the filter, newest first, plus global
// status counts.
func (s *Store) ListRuns(ctx context.Context, filter ListFilter) ([]event.Run, Counts, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT run_id, goal, mode, status, created_at
		FROM runs`
	var conds []string
	var args []any
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Since != "" {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.Since)
	}
	for i, cond := range conds {
		if i == 0 {
			query += "\n\t\tWHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += "\n\t\tORDER BY created_at DESC, run_id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Counts{}, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []event.Run{}
	for rows.Next() {
		var run event.Run
		var mode, status string
		if err := rows.Scan(&run.RunID, &run.Goal, &mode, &status, &run.CreatedAt); err != nil {
			return nil, Counts{}, fmt.Errorf("scan run: %w", err)
		}
		run.Mode = event.Mode(mode)
		run.Status = event.Status(status)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, Counts{}, fmt.Errorf("iterate runs: %w", err)
	}

	counts, err := s.countRuns(ctx)
	if err != nil {
		return nil, Counts{}, err
	}

	return runs, counts, nil
}

func (s *Store) countRuns(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(status = 'completed'), 0),
			COALESCE(SUM(status = 'failed'), 0),
			COALESCE(SUM(status = 'running'), 0)
		FROM runs
	`).Scan(&c.Total, &c.Completed, &c.Failed, &c.Running)
	if err != nil {
		return Counts{}, fmt.Errorf("count runs: %w", err)
	}
	return c, nil
}

// scanEvent reads one event row, decoding the canonical payload text.
func scanEvent(rows *sql.Rows) (event.Event, error) {
	var evt event.Event
	var payloadJSON string
	if err := rows.Scan(&evt.EventID, &evt.RunID, &evt.Seq, &evt.Type, &payloadJSON, &evt.TS); err != nil {
		return event.Event{}, fmt.Errorf("scan event: %w", err)
	}
	payload, err := event.DecodeJSON([]byte(payloadJSON))
	if err != nil {
		return event.Event{}, fmt.Errorf("decode payload for %s: %w", evt.EventID, err)
	}
	evt.Payload = payload
	return evt, nil
}
