package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/querybuilder/internal/session"
)

// RecordSnapshot appends one dispatched snapshot to the history.
// Recording the same (session, seq) twice is a no-op.
func (s *Store) RecordSnapshot(ctx context.Context, snap session.Snapshot) error {
	body, err := marshalOptions(snap.Options)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (session_id, seq, options)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`, snap.SessionID, snap.Seq, body)
	if err != nil {
		return fmt.Errorf("record snapshot %s/%d: %w", snap.SessionID, snap.Seq, err)
	}
	return nil
}

// Snapshots returns the recorded history of a session in seq order.
func (s *Store) Snapshots(ctx context.Context, sessionID string) ([]session.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, options
		FROM snapshots
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []session.Snapshot
	for rows.Next() {
		var (
			seq  int64
			body string
		)
		if err := rows.Scan(&seq, &body); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		o, err := unmarshalOptions(body)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s/%d: %w", sessionID, seq, err)
		}
		out = append(out, session.Snapshot{SessionID: sessionID, Seq: seq, Options: o})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

// Dispatcher returns a session.Dispatcher that records every snapshot.
// Write failures are logged; the session never sees them.
func (s *Store) Dispatcher(ctx context.Context, logger *slog.Logger) session.Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return session.DispatcherFunc(func(snap session.Snapshot) {
		if err := s.RecordSnapshot(ctx, snap); err != nil {
			logger.Error("failed to record snapshot",
				"session", snap.SessionID,
				"seq", snap.Seq,
				"error", err,
			)
		}
	})
}
