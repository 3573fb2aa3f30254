package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/querybuilder/internal/options"
)

// ErrNotFound is returned when a saved query does not exist.
var ErrNotFound = errors.New("saved query not found")

// SavedQuery is a named Option Model.
type SavedQuery struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Options   options.Options `json:"options"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Save inserts q, or replaces the saved query with the same ID. An empty
// ID is assigned a UUIDv7. The stored form is returned.
func (s *Store) Save(ctx context.Context, q SavedQuery) (SavedQuery, error) {
	if q.Name == "" {
		return SavedQuery{}, fmt.Errorf("saved query name is required")
	}
	if q.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return SavedQuery{}, fmt.Errorf("generate id: %w", err)
		}
		q.ID = id.String()
	}
	q.Options = options.Normalize(q.Options)

	body, err := marshalOptions(q.Options)
	if err != nil {
		return SavedQuery{}, err
	}

	now := s.now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO saved_queries (id, name, builder, options, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			builder = excluded.builder,
			options = excluded.options,
			updated_at = excluded.updated_at
	`, q.ID, q.Name, string(q.Options.Builder), body, formatTime(now), formatTime(now))
	if err != nil {
		return SavedQuery{}, fmt.Errorf("save query %s: %w", q.ID, err)
	}

	return s.Load(ctx, q.ID)
}

// Load returns the saved query with the given ID, or ErrNotFound.
func (s *Store) Load(ctx context.Context, id string) (SavedQuery, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, options, created_at, updated_at
		FROM saved_queries
		WHERE id = ?
	`, id)

	q, err := scanSavedQuery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SavedQuery{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return SavedQuery{}, fmt.Errorf("load query %s: %w", id, err)
	}
	return q, nil
}

// List returns all saved queries ordered by name, then ID.
func (s *Store) List(ctx context.Context) ([]SavedQuery, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, options, created_at, updated_at
		FROM saved_queries
		ORDER BY name ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	defer rows.Close()

	var out []SavedQuery
	for rows.Next() {
		q, err := scanSavedQuery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan saved query: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate saved queries: %w", err)
	}
	return out, nil
}

// Delete removes the saved query with the given ID, or returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_queries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete query %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete query %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSavedQuery(row scanner) (SavedQuery, error) {
	var (
		q                SavedQuery
		body             string
		created, updated string
	)
	if err := row.Scan(&q.ID, &q.Name, &body, &created, &updated); err != nil {
		return SavedQuery{}, err
	}

	var err error
	if q.Options, err = unmarshalOptions(body); err != nil {
		return SavedQuery{}, err
	}
	if q.CreatedAt, err = parseTime(created); err != nil {
		return SavedQuery{}, err
	}
	if q.UpdatedAt, err = parseTime(updated); err != nil {
		return SavedQuery{}, err
	}
	return q, nil
}
