package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/relay/internal/event"
)

// CreateRun inserts the run row in status "running".
// Fails with RunExistsError if the run_id is already present.
func (s *Store) CreateRun(ctx context.Context, runID, goal string, mode event.Mode) (event.Run, error) {
	run := event.Run{
		RunID:     runID,
		Goal:      goal,
		Mode:      mode,
		Status:    event.StatusRunning,
		CreatedAt: s.timestamp(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, goal, mode, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, run.RunID, run.Goal, string(run.Mode), string(run.Status), run.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return event.Run{}, &RunExistsError{RunID: runID}
		}
		return event.Run{}, fmt.Errorf("create run: %w", err)
	}

	return run, nil
}

// Append writes one event for the run, allocating the next seq inside a
// single transaction. The allocation reads max(seq)+1 for the run; the
// UNIQUE(run_id, seq) index turns any racing writer into a
// SequenceConflictError rather than a gap or duplicate.
//
// The payload is serialized to canonical JSON before storage so that
// digests computed over stored rows are portable.
func (s *Store) Append(ctx context.Context, runID, eventType string, payload map[string]any) (event.Event, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := event.MarshalCanonical(payload)
	if err != nil {
		return event.Event{}, fmt.Errorf("append %s: marshal payload: %w", eventType, err)
	}

	evt := event.Event{
		EventID: s.newID(),
		RunID:   runID,
		Type:    eventType,
		TS:      s.timestamp(),
		Payload: payload,
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM runs WHERE run_id = ?`, runID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check run: %w", err)
		}
		if exists == 0 {
			return &RunNotFoundError{RunID: runID}
		}

		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq) + 1, 0) FROM events WHERE run_id = ?`, runID,
		).Scan(&evt.Seq); err != nil {
			return fmt.Errorf("allocate seq: %w", err)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO events (event_id, run_id, seq, type, payload_json, ts)
			VALUES (?, ?, ?, ?, ?, ?)
		`, evt.EventID, evt.RunID, evt.Seq, evt.Type, string(payloadJSON), evt.TS)
		if err != nil {
			if isUniqueViolation(err) {
				return &SequenceConflictError{RunID: runID, Seq: evt.Seq}
			}
			return fmt.Errorf("insert event: %w", err)
		}
		return nil
	})
	if err != nil {
		return event.Event{}, fmt.Errorf("append %s: %w", eventType, err)
	}

	return evt, nil
}

// SetStatus updates the run's status column. Idempotent for equal values.
func (s *Store) SetStatus(ctx context.Context, runID string, status event.Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ? WHERE run_id = ?`, string(status), runID)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set status: rows affected: %w", err)
	}
	if affected == 0 {
		return &RunNotFoundError{RunID: runID}
	}
	return nil
}

// DeleteRun removes a run and its events in one transaction.
// Fails with RunNotFoundError if the run does not exist.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM events WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("delete events: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM runs WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete run: rows affected: %w", err)
		}
		if affected == 0 {
			return &RunNotFoundError{RunID: runID}
		}
		return nil
	})
}

// ImportRun inserts a run and its events in one transaction, preserving
// the original seq and ts values. With overwrite set, any existing run
// with the same run_id is deleted first (events included) inside the
// same transaction. Any failure leaves the store unchanged.
func (s *Store) ImportRun(ctx context.Context, run event.Run, events []event.Event, overwrite bool) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if overwrite {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM events WHERE run_id = ?`, run.RunID); err != nil {
				return fmt.Errorf("delete events: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM runs WHERE run_id = ?`, run.RunID); err != nil {
				return fmt.Errorf("delete run: %w", err)
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs (run_id, goal, mode, status, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, run.RunID, run.Goal, string(run.Mode), string(run.Status), run.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return &RunExistsError{RunID: run.RunID}
			}
			return fmt.Errorf("insert run: %w", err)
		}

		for _, evt := range events {
			payloadJSON, err := event.MarshalCanonical(evt.Payload)
			if err != nil {
				return fmt.Errorf("marshal payload for seq %d: %w", evt.Seq, err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO events (event_id, run_id, seq, type, payload_json, ts)
				VALUES (?, ?, ?, ?, ?, ?)
			`, evt.EventID, evt.RunID, evt.Seq, evt.Type, string(payloadJSON), evt.TS)
			if err != nil {
				if isUniqueViolation(err) {
					return &SequenceConflictError{RunID: evt.RunID, Seq: evt.Seq}
				}
				return fmt.Errorf("insert event seq %d: %w", evt.Seq, err)
			}
		}
		return nil
	})
}
