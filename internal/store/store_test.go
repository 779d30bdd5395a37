package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/DoyleJ11/cricket-live-backend/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	// Named shared-cache database so every pooled connection sees the same
	// schema, and each test gets its own.
	s, err := Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func snapshot(t *testing.T, version int, status engine.Status) engine.Snapshot {
	t.Helper()
	m, err := engine.NewMatch("m1", engine.Config{OversPerInnings: 2}, [2]engine.Team{
		{Name: "Lions", Players: []engine.Player{{Name: "L1"}, {Name: "L2"}}},
		{Name: "Tigers", Players: []engine.Player{{Name: "T1"}, {Name: "T2"}}},
	})
	require.NoError(t, err)
	m.Status = status
	if status == engine.StatusCompleted {
		m.Result = &engine.Result{Kind: engine.ResultWin, Winner: "Lions", Margin: 3, MarginUnit: "runs"}
	}
	return engine.Snapshot{Version: version, Match: m}
}

func TestStore_SaveAndLoadSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.LoadSnapshot(ctx, "m1")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SaveSnapshot(ctx, snapshot(t, 1, engine.StatusLive)))
	require.NoError(t, s.SaveSnapshot(ctx, snapshot(t, 9, engine.StatusCompleted)))

	got, err := s.LoadSnapshot(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 9, got.Version)
	assert.Equal(t, engine.StatusCompleted, got.Match.Status)
	require.NotNil(t, got.Match.Result)
	assert.Equal(t, "Lions", got.Match.Result.Winner)

	recs, err := s.ListByStatus(ctx, engine.StatusCompleted, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Lions", recs[0].Winner)
	assert.Equal(t, string(engine.ResultWin), recs[0].ResultKind)
}

func TestStore_OlderVersionDoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.SaveSnapshot(ctx, snapshot(t, 5, engine.StatusCompleted)))
	require.NoError(t, s.SaveSnapshot(ctx, snapshot(t, 3, engine.StatusLive)))

	got, err := s.LoadSnapshot(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Version)
}

func TestStore_Grants(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	ok, err := s.CanScore(ctx, "u1", "m1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Grant(ctx, "m1", "u1", "creator"))
	require.NoError(t, s.Grant(ctx, "m1", "u1", "scorer"))

	ok, err = s.CanScore(ctx, "u1", "m1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.CanScore(ctx, "u1", "m2")
	require.NoError(t, err)
	assert.False(t, ok)

	var grant ScorerGrant
	require.NoError(t, s.db.First(&grant, "match_id = ? AND user_id = ?", "m1", "u1").Error)
	assert.Equal(t, "creator", grant.Role)

	require.NoError(t, s.Revoke(ctx, "m1", "u1"))
	ok, err = s.CanScore(ctx, "u1", "m1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("mongo", "", nil)
	require.Error(t, err)
}
