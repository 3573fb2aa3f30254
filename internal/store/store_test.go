package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querybuilder/internal/options"
	"github.com/roach88/querybuilder/internal/reconciler"
	"github.com/roach88/querybuilder/internal/session"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// fixedNow returns a clock that advances one second per call.
func fixedNow(start time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * time.Second)
		n++
		return t
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := openTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"user_version", "1"},
	}
	for _, tt := range tests {
		if err := s.verifyPragma(tt.name, tt.expected); err != nil {
			t.Errorf("pragma check failed: %v", err)
		}
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	_, err = s1.Save(context.Background(), SavedQuery{Name: "keep", Options: options.Options{Table: "t"}})
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	list, err := s2.List(context.Background())
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(list) != 1 || list[0].Name != "keep" {
		t.Fatalf("List() = %+v, want one query named keep", list)
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on empty store = %v", err)
	}
}

func TestSave_AssignsIDAndNormalizes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	saved, err := s.Save(ctx, SavedQuery{
		Name: "errors",
		Options: options.Options{
			Table:   "events",
			Limit:   -1,
			GroupBy: []string{"status"},
		},
	})
	require.NoError(t, err)

	assert.Len(t, saved.ID, 36)
	assert.Equal(t, options.BuilderTable, saved.Options.Builder)
	assert.Equal(t, options.ModeList, saved.Options.Mode)
	assert.Equal(t, 0, saved.Options.Limit)
	assert.Nil(t, saved.Options.GroupBy, "group by is cleared outside aggregate mode")
}

func TestSave_UpsertKeepsCreatedAt(t *testing.T) {
	s := openTestStore(t)
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = fixedNow(start)
	ctx := context.Background()

	first, err := s.Save(ctx, SavedQuery{ID: "q-1", Name: "v1", Options: options.Options{Table: "a"}})
	require.NoError(t, err)

	second, err := s.Save(ctx, SavedQuery{ID: "q-1", Name: "v2", Options: options.Options{Table: "b", Limit: 10}})
	require.NoError(t, err)

	assert.Equal(t, start, first.CreatedAt)
	assert.Equal(t, start, second.CreatedAt)
	assert.Equal(t, start.Add(time.Second), second.UpdatedAt)
	assert.Equal(t, "v2", second.Name)
	assert.Equal(t, "b", second.Options.Table)
	assert.Equal(t, 10, second.Options.Limit)

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSave_RequiresName(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Save(context.Background(), SavedQuery{})
	assert.Error(t, err)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	o := options.Options{
		Builder:  options.BuilderLogs,
		Database: "otel",
		Table:    "otel_logs",
		Columns: []options.SelectedColumn{
			{Name: "Timestamp", Type: "DateTime64(9)", Hint: options.HintTime},
			{Name: "Body", Hint: options.HintLogMessage},
			{Name: "host", Alias: "h"},
		},
		Filters: []options.Filter{{
			Hint: options.HintTime, Operator: options.OpWithinLast,
			Values: []string{"1h"}, Combinator: options.CombineAnd,
		}},
		OrderBy: []options.OrderBy{{Hint: options.HintTime, Direction: options.Desc}},
		Limit:   1000,
		Meta:    options.Meta{OtelEnabled: true, OtelVersion: "v1"},
	}

	saved, err := s.Save(ctx, SavedQuery{Name: "otel", Options: o})
	require.NoError(t, err)

	loaded, err := s.Load(ctx, saved.ID)
	require.NoError(t, err)
	assert.True(t, options.Normalize(o).Equal(loaded.Options), "loaded %+v", loaded.Options)
}

func TestLoadDelete_NotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.Delete(ctx, "missing"), ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	saved, err := s.Save(ctx, SavedQuery{Name: "tmp", Options: options.Options{Table: "t"}})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, saved.ID))
	_, err = s.Load(ctx, saved.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_OrderedByName(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		_, err := s.Save(ctx, SavedQuery{Name: name, Options: options.Options{Table: name}})
		require.NoError(t, err)
	}

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "mid", list[1].Name)
	assert.Equal(t, "zeta", list[2].Name)
}

func TestList_Empty(t *testing.T) {
	s := openTestStore(t)
	list, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSnapshots_RecordAndReplayInOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, seq := range []int64{2, 1, 3} {
		snap := session.Snapshot{SessionID: "s-1", Seq: seq, Options: options.Options{Table: "t", Limit: int(seq)}}
		require.NoError(t, s.RecordSnapshot(ctx, snap))
	}
	// Duplicate delivery is ignored.
	require.NoError(t, s.RecordSnapshot(ctx, session.Snapshot{SessionID: "s-1", Seq: 1, Options: options.Options{Limit: 99}}))
	require.NoError(t, s.RecordSnapshot(ctx, session.Snapshot{SessionID: "other", Seq: 1}))

	snaps, err := s.Snapshots(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	for i, snap := range snaps {
		assert.Equal(t, int64(i+1), snap.Seq)
		assert.Equal(t, i+1, snap.Options.Limit)
		assert.Equal(t, "s-1", snap.SessionID)
	}
}

func TestDispatcher_RecordsSessionSnapshots(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess, err := session.New(options.Options{Table: "events"},
		session.WithDispatcher(s.Dispatcher(ctx, nil)),
		session.WithIDGenerator(session.NewFixedGenerator("recorded")),
	)
	require.NoError(t, err)

	_, err = sess.Interact(func(e *reconciler.Editors) { e.SetLimit(50) })
	require.NoError(t, err)

	snaps, err := s.Snapshots(ctx, "recorded")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, 50, snaps[0].Options.Limit)
	assert.Equal(t, sess.Seq(), snaps[0].Seq)
}
