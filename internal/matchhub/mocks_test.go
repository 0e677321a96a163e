package matchhub_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"ventishh/backend/internal/matchhub"
	"ventishh/backend/internal/models"
	"ventishh/backend/internal/storage"
)

// MockNotifier records published match events.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) PublishMatch(ctx context.Context, event models.MatchEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockClient is a push client that never touches the network.
type MockClient struct {
	sessionID   string
	RecvChannel chan models.MatchEvent

	mu     sync.Mutex
	closed bool
}

func newMockClient(sessionID string) *MockClient {
	return &MockClient{
		sessionID:   sessionID,
		RecvChannel: make(chan models.MatchEvent, 10),
	}
}

func (c *MockClient) GetSessionID() string                     { return c.sessionID }
func (c *MockClient) GetSendChannel() chan<- models.MatchEvent { return c.RecvChannel }
func (c *MockClient) Run()                                     {}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *MockClient) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// failingTx makes every CreateConnection inside a transaction fail.
type failingTx struct {
	storage.Storage
}

var errInsertFailed = errors.New("insert failed")

func (failingTx) CreateConnection(ctx context.Context, conn *models.Connection) error {
	return errInsertFailed
}

type failingConnStore struct {
	*storage.MemoryStore
}

func (f failingConnStore) Atomically(ctx context.Context, fn func(tx storage.Storage) error) error {
	return f.MemoryStore.Atomically(ctx, func(tx storage.Storage) error {
		return fn(failingTx{Storage: tx})
	})
}

// fakeClock returns strictly increasing timestamps so joinedAt encodes arrival order.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// newTestMatcher wires a matcher over a fresh memory store and a fake clock.
func newTestMatcher(notifier matchhub.Notifier) (*matchhub.MatcherService, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	m := matchhub.NewMatcherService(store, notifier)
	m.Now = newFakeClock().Now
	return m, store
}
