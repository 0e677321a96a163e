package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ventishh/backend/internal/apperrors"
	"ventishh/backend/internal/config"
	"ventishh/backend/internal/models"
	"ventishh/backend/internal/storage"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newEntry(sessionID string, role models.Role, joinedAt time.Time) *models.QueueEntry {
	e := &models.QueueEntry{
		SessionID: sessionID,
		Role:      role,
		Online:    true,
		JoinedAt:  joinedAt,
		LastSeen:  joinedAt,
	}
	if role == models.RoleListener {
		e.ContactHandle = "@" + sessionID
	}
	return e
}

func TestMemoryStore_UpsertReplacesPreviousEntry(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()

	first := newEntry("s1", models.RoleVenter, t0)
	require.NoError(t, s.UpsertEntry(ctx, first))

	second := newEntry("s1", models.RoleListener, t0.Add(time.Second))
	require.NoError(t, s.UpsertEntry(ctx, second))

	assert.Greater(t, second.ID, first.ID, "a re-join gets a fresh insertion id")

	venters, _ := s.ListWaiting(ctx, models.RoleVenter)
	listeners, _ := s.ListWaiting(ctx, models.RoleListener)
	assert.Empty(t, venters)
	require.Len(t, listeners, 1)
	assert.Equal(t, "s1", listeners[0].SessionID)
}

func TestMemoryStore_ListWaitingIsFIFOAndOnlineOnly(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()

	require.NoError(t, s.UpsertEntry(ctx, newEntry("late", models.RoleListener, t0.Add(2*time.Second))))
	require.NoError(t, s.UpsertEntry(ctx, newEntry("early", models.RoleListener, t0)))
	require.NoError(t, s.UpsertEntry(ctx, newEntry("tie", models.RoleListener, t0)))
	offline := newEntry("offline", models.RoleListener, t0.Add(-time.Hour))
	offline.Online = false
	require.NoError(t, s.UpsertEntry(ctx, offline))

	waiting, err := s.ListWaiting(ctx, models.RoleListener)
	require.NoError(t, err)

	var ids []string
	for _, e := range waiting {
		ids = append(ids, e.SessionID)
	}
	assert.Equal(t, []string{"early", "tie", "late"}, ids)

	oldest, err := s.OldestWaiting(ctx, models.RoleListener, "early")
	require.NoError(t, err)
	assert.Equal(t, "tie", oldest.SessionID)
}

func TestMemoryStore_RemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()
	require.NoError(t, s.UpsertEntry(ctx, newEntry("s1", models.RoleVenter, t0)))

	removed, err := s.RemoveEntry(ctx, "s1")
	assert.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.RemoveEntry(ctx, "s1")
	assert.NoError(t, err)
	assert.False(t, removed)

	_, err = s.GetEntry(ctx, "s1")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMemoryStore_AtomicallyRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()
	require.NoError(t, s.UpsertEntry(ctx, newEntry("listener", models.RoleListener, t0)))

	boom := errors.New("boom")
	err := s.Atomically(ctx, func(tx storage.Storage) error {
		_, _ = tx.RemoveEntry(ctx, "listener")
		_ = tx.CreateConnection(ctx, &models.Connection{ListenerSessionID: "listener", VenterSessionID: "v"})
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetEntry(ctx, "listener")
	assert.NoError(t, err, "entry removal must be rolled back")
	active, _ := s.ListActiveConnections(ctx)
	assert.Empty(t, active, "connection creation must be rolled back")
}

func TestMemoryStore_TransitionConnection(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()
	conn := models.NewConnection(*newEntry("L", models.RoleListener, t0), *newEntry("V", models.RoleVenter, t0), t0)
	require.NoError(t, s.CreateConnection(ctx, conn))
	require.NotEmpty(t, conn.ID)

	active, _ := s.ActiveConnectionFor(ctx, "V")
	require.NotNil(t, active)
	assert.Equal(t, conn.ID, active.ID)

	changed, err := s.TransitionConnection(ctx, conn.ID, []models.ConnectionStatus{models.StatusConnecting}, models.StatusConnected, t0)
	require.NoError(t, err)
	assert.True(t, changed)

	endAt := t0.Add(time.Minute)
	changed, _ = s.TransitionConnection(ctx, conn.ID, []models.ConnectionStatus{models.StatusConnecting, models.StatusConnected}, models.StatusEnded, endAt)
	assert.True(t, changed)

	changed, _ = s.TransitionConnection(ctx, conn.ID, []models.ConnectionStatus{models.StatusConnecting, models.StatusConnected}, models.StatusEnded, endAt.Add(time.Hour))
	assert.False(t, changed, "ended is terminal")

	stored, err := s.GetConnection(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusEnded, stored.Status)
	require.NotNil(t, stored.EndedAt)
	assert.True(t, stored.EndedAt.Equal(endAt))

	active, _ = s.ActiveConnectionFor(ctx, "L")
	assert.Nil(t, active)

	_, err = s.GetConnection(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

// TestMemoryStore_ActiveConnectionSurvivesEndOfNewer covers a session that
// holds two open connections: ending the newer one must expose the older one.
func TestMemoryStore_ActiveConnectionSurvivesEndOfNewer(t *testing.T) {
	// Arrange
	ctx := context.Background()
	s := storage.NewMemoryStore()
	endable := []models.ConnectionStatus{models.StatusConnecting, models.StatusConnected}

	older := models.NewConnection(*newEntry("L1", models.RoleListener, t0), *newEntry("V", models.RoleVenter, t0), t0)
	require.NoError(t, s.CreateConnection(ctx, older))
	newer := models.NewConnection(*newEntry("L2", models.RoleListener, t0), *newEntry("V", models.RoleVenter, t0), t0.Add(time.Minute))
	require.NoError(t, s.CreateConnection(ctx, newer))

	active, err := s.ActiveConnectionFor(ctx, "V")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, newer.ID, active.ID, "newest open connection wins")

	// Act
	changed, err := s.TransitionConnection(ctx, newer.ID, endable, models.StatusEnded, t0.Add(2*time.Minute))
	require.NoError(t, err)
	require.True(t, changed)

	// Assert
	active, err = s.ActiveConnectionFor(ctx, "V")
	require.NoError(t, err)
	require.NotNil(t, active, "older connection is still open")
	assert.Equal(t, older.ID, active.ID)

	active, _ = s.ActiveConnectionFor(ctx, "L2")
	assert.Nil(t, active)

	_, err = s.TransitionConnection(ctx, older.ID, endable, models.StatusEnded, t0.Add(3*time.Minute))
	require.NoError(t, err)
	active, _ = s.ActiveConnectionFor(ctx, "V")
	assert.Nil(t, active)
}

// TestMemoryStore_AtomicallyRollbackRestoresActiveIndex checks that a failed
// block does not leave a connection visible through the session index.
func TestMemoryStore_AtomicallyRollbackRestoresActiveIndex(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()
	boom := errors.New("boom")

	err := s.Atomically(ctx, func(tx storage.Storage) error {
		conn := models.NewConnection(*newEntry("L", models.RoleListener, t0), *newEntry("V", models.RoleVenter, t0), t0)
		require.NoError(t, tx.CreateConnection(ctx, conn))
		return boom
	})

	assert.ErrorIs(t, err, boom)
	active, _ := s.ActiveConnectionFor(ctx, "V")
	assert.Nil(t, active)
}

func TestMemoryStore_PresenceSweep(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()
	require.NoError(t, s.UpsertEntry(ctx, newEntry("stale", models.RoleVenter, t0)))
	require.NoError(t, s.UpsertEntry(ctx, newEntry("fresh", models.RoleVenter, t0)))
	require.NoError(t, s.TouchEntry(ctx, "fresh", t0.Add(5*time.Minute)))

	n, err := s.MarkStaleOffline(ctx, t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	waiting, _ := s.ListWaiting(ctx, models.RoleVenter)
	require.Len(t, waiting, 1)
	assert.Equal(t, "fresh", waiting[0].SessionID)

	// A poll brings the stale entry back.
	require.NoError(t, s.TouchEntry(ctx, "stale", t0.Add(6*time.Minute)))
	waiting, _ = s.ListWaiting(ctx, models.RoleVenter)
	assert.Len(t, waiting, 2)

	_, _ = s.MarkStaleOffline(ctx, t0.Add(10*time.Minute))
	deleted, err := s.DeleteOfflineBefore(ctx, t0.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}

func TestOpen_SelectsDriver(t *testing.T) {
	var cfg config.Config

	cfg.Database.Driver = "memory"
	s, err := storage.Open(cfg)
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryStore{}, s)

	cfg.Database.Driver = "sqlite"
	_, err = storage.Open(cfg)
	assert.Error(t, err)
}
