package storage_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ventishh/backend/internal/matchhub"
	"ventishh/backend/internal/models"
	"ventishh/backend/internal/storage"
)

// setupPostgres starts a throwaway Postgres container and returns a migrated store.
func setupPostgres(t *testing.T) *storage.Service {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Postgres integration test in short mode")
	}
	tc.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = tc.TerminateContainer(pgContainer)
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db))

	return storage.NewStorageService(db)
}

func TestPostgres_QueueAndLifecycle(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	first := newEntry("s1", models.RoleVenter, t0)
	require.NoError(t, s.UpsertEntry(ctx, first))
	again := newEntry("s1", models.RoleVenter, t0.Add(time.Second))
	require.NoError(t, s.UpsertEntry(ctx, again))

	venters, err := s.ListWaiting(ctx, models.RoleVenter)
	require.NoError(t, err)
	require.Len(t, venters, 1, "one entry per session")
	assert.Equal(t, again.ID, venters[0].ID)

	removed, err := s.RemoveEntry(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, removed)

	conn := models.NewConnection(*newEntry("L", models.RoleListener, t0), *again, t0)
	require.NoError(t, s.CreateConnection(ctx, conn))

	active, err := s.ActiveConnectionFor(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, conn.ID, active.ID)

	from := []models.ConnectionStatus{models.StatusConnecting, models.StatusConnected}
	changed, err := s.TransitionConnection(ctx, conn.ID, from, models.StatusEnded, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = s.TransitionConnection(ctx, conn.ID, from, models.StatusEnded, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)

	active, err = s.ActiveConnectionFor(ctx, "L")
	require.NoError(t, err)
	assert.Nil(t, active)
}

// TestPostgres_ConcurrentClaimsTakeOneCandidate races two claimers for a single listener.
func TestPostgres_ConcurrentClaimsTakeOneCandidate(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertEntry(ctx, newEntry("only-listener", models.RoleListener, t0)))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Atomically(ctx, func(tx storage.Storage) error {
				candidate, err := tx.OldestWaiting(ctx, models.RoleListener, "")
				if err != nil || candidate == nil {
					return err
				}
				mu.Lock()
				claimed++
				mu.Unlock()
				return tx.RemoveEntryByID(ctx, candidate.ID)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, claimed)
	listeners, err := s.ListWaiting(ctx, models.RoleListener)
	require.NoError(t, err)
	assert.Empty(t, listeners)
}

// TestPostgres_JoinStormThroughMatcher runs opposite-role joins concurrently
// through the matcher. The advisory lock must serialise them so that every
// pairing opportunity is taken exactly once.
func TestPostgres_JoinStormThroughMatcher(t *testing.T) {
	// Arrange
	s := setupPostgres(t)
	ctx := context.Background()
	m := matchhub.NewMatcherService(s, nil)

	const listeners, venters = 8, 12
	var wg sync.WaitGroup

	// Act
	for i := 0; i < listeners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Join(ctx, models.JoinRequest{
				SessionID:     fmt.Sprintf("L%d", i),
				Role:          models.RoleListener,
				ContactHandle: fmt.Sprintf("@l%d", i),
			})
			assert.NoError(t, err)
		}(i)
	}
	for i := 0; i < venters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Join(ctx, models.JoinRequest{SessionID: fmt.Sprintf("V%d", i), Role: models.RoleVenter})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// Assert
	active, err := s.ListActiveConnections(ctx)
	require.NoError(t, err)
	assert.Len(t, active, listeners, "min(listeners, venters) connections")

	seen := make(map[string]bool)
	for _, c := range active {
		assert.NotEqual(t, c.ListenerSessionID, c.VenterSessionID)
		assert.False(t, seen[c.ListenerSessionID], "listener %s paired twice", c.ListenerSessionID)
		assert.False(t, seen[c.VenterSessionID], "venter %s paired twice", c.VenterSessionID)
		seen[c.ListenerSessionID] = true
		seen[c.VenterSessionID] = true
	}

	waitingL, err := s.ListWaiting(ctx, models.RoleListener)
	require.NoError(t, err)
	assert.Empty(t, waitingL)
	waitingV, err := s.ListWaiting(ctx, models.RoleVenter)
	require.NoError(t, err)
	assert.Len(t, waitingV, venters-listeners)
	for _, e := range waitingV {
		assert.False(t, seen[e.SessionID], "matched venter %s left in queue", e.SessionID)
	}
}

// TestPostgres_MatcherFIFOAndRejoin checks FIFO selection, the upsert running
// inside the join transaction, and the active connection lookup when a
// session holds two open connections.
func TestPostgres_MatcherFIFOAndRejoin(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()
	m := matchhub.NewMatcherService(s, nil)
	clock := t0
	m.Now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	// Rejoining replaces the entry inside the same transaction.
	_, err := m.Join(ctx, models.JoinRequest{SessionID: "L1", Role: models.RoleListener, ContactHandle: "@old"})
	require.NoError(t, err)
	_, err = m.Join(ctx, models.JoinRequest{SessionID: "L1", Role: models.RoleListener, ContactHandle: "@l1"})
	require.NoError(t, err)
	_, err = m.Join(ctx, models.JoinRequest{SessionID: "L2", Role: models.RoleListener, ContactHandle: "@l2"})
	require.NoError(t, err)

	waiting, err := s.ListWaiting(ctx, models.RoleListener)
	require.NoError(t, err)
	require.Len(t, waiting, 2)
	assert.Equal(t, "@l1", waiting[0].ContactHandle)

	// Venter takes the oldest listener.
	first, err := m.Join(ctx, models.JoinRequest{SessionID: "V", Role: models.RoleVenter})
	require.NoError(t, err)
	require.True(t, first.Matched)
	assert.Equal(t, "L1", first.Connection.ListenerSessionID)
	assert.Equal(t, "@l1", first.Connection.ListenerHandle)

	// Same venter rejoins while still connected and takes L2.
	second, err := m.Join(ctx, models.JoinRequest{SessionID: "V", Role: models.RoleVenter})
	require.NoError(t, err)
	require.True(t, second.Matched)
	assert.Equal(t, "L2", second.Connection.ListenerSessionID)

	require.NoError(t, m.End(ctx, second.Connection.ID))
	snap, err := m.Snapshot(ctx, "V")
	require.NoError(t, err)
	require.NotNil(t, snap.ActiveConnection)
	assert.Equal(t, first.Connection.ID, snap.ActiveConnection.ID)
}

func TestPostgres_PresenceSweep(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertEntry(ctx, newEntry("fresh", models.RoleVenter, t0)))
	require.NoError(t, s.UpsertEntry(ctx, newEntry("stale", models.RoleVenter, t0)))
	require.NoError(t, s.UpsertEntry(ctx, newEntry("gone", models.RoleVenter, t0.Add(-time.Hour))))
	require.NoError(t, s.TouchEntry(ctx, "fresh", t0.Add(5*time.Minute)))

	// "gone" is already offline before the sweep runs.
	_, err := s.MarkStaleOffline(ctx, t0.Add(-30*time.Minute))
	require.NoError(t, err)

	sweeper := matchhub.NewPresenceSweeper(s, 2*time.Minute)
	sweeper.Now = func() time.Time { return t0.Add(6 * time.Minute) }

	offline, deleted, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, offline)
	assert.EqualValues(t, 1, deleted)

	waiting, err := s.ListWaiting(ctx, models.RoleVenter)
	require.NoError(t, err)
	require.Len(t, waiting, 1)
	assert.Equal(t, "fresh", waiting[0].SessionID)

	stale, err := s.GetEntry(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, stale.Online)

	// A poll brings it back online.
	require.NoError(t, s.TouchEntry(ctx, "stale", t0.Add(7*time.Minute)))
	waiting, err = s.ListWaiting(ctx, models.RoleVenter)
	require.NoError(t, err)
	assert.Len(t, waiting, 2)
}
