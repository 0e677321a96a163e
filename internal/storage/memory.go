package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ventishh/backend/internal/apperrors"
	"ventishh/backend/internal/models"
)

// MemoryStore is an in-process Storage. It backs DB_DRIVER=memory and the
// unit tests of the matching core. A single mutex makes every call, and
// every Atomically block, a critical section.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

type memoryState struct {
	nextID      uint
	entries     map[string]models.QueueEntry // by session id
	connections map[string]models.Connection
	// activeBySession indexes the non-ended connections of each participant.
	activeBySession map[string]map[string]struct{}
}

func newMemoryState() *memoryState {
	return &memoryState{
		entries:         make(map[string]models.QueueEntry),
		connections:     make(map[string]models.Connection),
		activeBySession: make(map[string]map[string]struct{}),
	}
}

func (st *memoryState) clone() *memoryState {
	c := &memoryState{
		nextID:          st.nextID,
		entries:         make(map[string]models.QueueEntry, len(st.entries)),
		connections:     make(map[string]models.Connection, len(st.connections)),
		activeBySession: make(map[string]map[string]struct{}, len(st.activeBySession)),
	}
	for k, v := range st.entries {
		c.entries[k] = v
	}
	for k, v := range st.connections {
		c.connections[k] = v
	}
	for sessionID, ids := range st.activeBySession {
		set := make(map[string]struct{}, len(ids))
		for id := range ids {
			set[id] = struct{}{}
		}
		c.activeBySession[sessionID] = set
	}
	return c
}

// Atomically runs fn under the store lock. If fn fails, every change it made is discarded.
func (m *MemoryStore) Atomically(ctx context.Context, fn func(tx Storage) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	backup := m.state.clone()
	if err := fn(&memoryTx{state: m.state}); err != nil {
		m.state = backup
		return err
	}
	return nil
}

func (m *MemoryStore) UpsertEntry(ctx context.Context, entry *models.QueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.upsertEntry(entry)
}

func (m *MemoryStore) RemoveEntry(ctx context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.removeEntry(sessionID), nil
}

func (m *MemoryStore) RemoveEntryByID(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.removeEntryByID(id)
	return nil
}

func (m *MemoryStore) GetEntry(ctx context.Context, sessionID string) (*models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.getEntry(sessionID)
}

func (m *MemoryStore) ListWaiting(ctx context.Context, role models.Role) ([]models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.listWaiting(role, ""), nil
}

func (m *MemoryStore) OldestWaiting(ctx context.Context, role models.Role, excludeSessionID string) (*models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.oldestWaiting(role, excludeSessionID), nil
}

func (m *MemoryStore) TouchEntry(ctx context.Context, sessionID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.touchEntry(sessionID, at)
	return nil
}

func (m *MemoryStore) MarkStaleOffline(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.markStaleOffline(before), nil
}

func (m *MemoryStore) DeleteOfflineBefore(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deleteOfflineBefore(before), nil
}

func (m *MemoryStore) CreateConnection(ctx context.Context, conn *models.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.createConnection(conn)
	return nil
}

func (m *MemoryStore) GetConnection(ctx context.Context, id string) (*models.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.getConnection(id)
}

func (m *MemoryStore) TransitionConnection(ctx context.Context, id string, from []models.ConnectionStatus, to models.ConnectionStatus, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.transitionConnection(id, from, to, at), nil
}

func (m *MemoryStore) ActiveConnectionFor(ctx context.Context, sessionID string) (*models.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.activeConnectionFor(sessionID), nil
}

func (m *MemoryStore) ListActiveConnections(ctx context.Context) ([]models.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.listActiveConnections(), nil
}

// memoryTx is the Storage handed to Atomically callbacks; the lock is already held.
type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) Atomically(ctx context.Context, fn func(tx Storage) error) error {
	return fn(t)
}

func (t *memoryTx) UpsertEntry(ctx context.Context, entry *models.QueueEntry) error {
	return t.state.upsertEntry(entry)
}

func (t *memoryTx) RemoveEntry(ctx context.Context, sessionID string) (bool, error) {
	return t.state.removeEntry(sessionID), nil
}

func (t *memoryTx) RemoveEntryByID(ctx context.Context, id uint) error {
	t.state.removeEntryByID(id)
	return nil
}

func (t *memoryTx) GetEntry(ctx context.Context, sessionID string) (*models.QueueEntry, error) {
	return t.state.getEntry(sessionID)
}

func (t *memoryTx) ListWaiting(ctx context.Context, role models.Role) ([]models.QueueEntry, error) {
	return t.state.listWaiting(role, ""), nil
}

func (t *memoryTx) OldestWaiting(ctx context.Context, role models.Role, excludeSessionID string) (*models.QueueEntry, error) {
	return t.state.oldestWaiting(role, excludeSessionID), nil
}

func (t *memoryTx) TouchEntry(ctx context.Context, sessionID string, at time.Time) error {
	t.state.touchEntry(sessionID, at)
	return nil
}

func (t *memoryTx) MarkStaleOffline(ctx context.Context, before time.Time) (int64, error) {
	return t.state.markStaleOffline(before), nil
}

func (t *memoryTx) DeleteOfflineBefore(ctx context.Context, before time.Time) (int64, error) {
	return t.state.deleteOfflineBefore(before), nil
}

func (t *memoryTx) CreateConnection(ctx context.Context, conn *models.Connection) error {
	t.state.createConnection(conn)
	return nil
}

func (t *memoryTx) GetConnection(ctx context.Context, id string) (*models.Connection, error) {
	return t.state.getConnection(id)
}

func (t *memoryTx) TransitionConnection(ctx context.Context, id string, from []models.ConnectionStatus, to models.ConnectionStatus, at time.Time) (bool, error) {
	return t.state.transitionConnection(id, from, to, at), nil
}

func (t *memoryTx) ActiveConnectionFor(ctx context.Context, sessionID string) (*models.Connection, error) {
	return t.state.activeConnectionFor(sessionID), nil
}

func (t *memoryTx) ListActiveConnections(ctx context.Context) ([]models.Connection, error) {
	return t.state.listActiveConnections(), nil
}

// --- state operations; callers hold the lock ---

func (st *memoryState) upsertEntry(entry *models.QueueEntry) error {
	st.nextID++
	entry.ID = st.nextID
	st.entries[entry.SessionID] = *entry
	return nil
}

func (st *memoryState) removeEntry(sessionID string) bool {
	if _, ok := st.entries[sessionID]; !ok {
		return false
	}
	delete(st.entries, sessionID)
	return true
}

func (st *memoryState) removeEntryByID(id uint) {
	for sessionID, e := range st.entries {
		if e.ID == id {
			delete(st.entries, sessionID)
			return
		}
	}
}

func (st *memoryState) getEntry(sessionID string) (*models.QueueEntry, error) {
	e, ok := st.entries[sessionID]
	if !ok {
		return nil, apperrors.ErrEntryNotFound
	}
	return &e, nil
}

func (st *memoryState) listWaiting(role models.Role, excludeSessionID string) []models.QueueEntry {
	out := make([]models.QueueEntry, 0)
	for _, e := range st.entries {
		if e.Role == role && e.Online && e.SessionID != excludeSessionID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func (st *memoryState) oldestWaiting(role models.Role, excludeSessionID string) *models.QueueEntry {
	waiting := st.listWaiting(role, excludeSessionID)
	if len(waiting) == 0 {
		return nil
	}
	return &waiting[0]
}

func (st *memoryState) touchEntry(sessionID string, at time.Time) {
	if e, ok := st.entries[sessionID]; ok {
		e.LastSeen = at
		e.Online = true
		st.entries[sessionID] = e
	}
}

func (st *memoryState) markStaleOffline(before time.Time) int64 {
	var n int64
	for sessionID, e := range st.entries {
		if e.Online && e.LastSeen.Before(before) {
			e.Online = false
			st.entries[sessionID] = e
			n++
		}
	}
	return n
}

func (st *memoryState) deleteOfflineBefore(before time.Time) int64 {
	var n int64
	for sessionID, e := range st.entries {
		if !e.Online && e.LastSeen.Before(before) {
			delete(st.entries, sessionID)
			n++
		}
	}
	return n
}

func (st *memoryState) createConnection(conn *models.Connection) {
	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}
	if conn.Status == "" {
		conn.Status = models.StatusConnecting
	}
	st.connections[conn.ID] = *conn
	if conn.Active() {
		st.indexActive(conn.ListenerSessionID, conn.ID)
		st.indexActive(conn.VenterSessionID, conn.ID)
	}
}

func (st *memoryState) getConnection(id string) (*models.Connection, error) {
	c, ok := st.connections[id]
	if !ok {
		return nil, apperrors.ErrConnectionNotFound
	}
	return &c, nil
}

func (st *memoryState) transitionConnection(id string, from []models.ConnectionStatus, to models.ConnectionStatus, at time.Time) bool {
	c, ok := st.connections[id]
	if !ok || !statusIn(c.Status, from) {
		return false
	}
	c.Status = to
	if to == models.StatusEnded {
		endedAt := at
		c.EndedAt = &endedAt
		for _, sessionID := range []string{c.ListenerSessionID, c.VenterSessionID} {
			st.unindexActive(sessionID, id)
		}
	}
	st.connections[id] = c
	return true
}

// activeConnectionFor returns the newest non-ended connection of sessionID,
// the same row the Postgres store orders first by created_at desc.
func (st *memoryState) activeConnectionFor(sessionID string) *models.Connection {
	var newest *models.Connection
	for id := range st.activeBySession[sessionID] {
		c := st.connections[id]
		if !c.Active() || !c.Involves(sessionID) {
			continue
		}
		if newest == nil || c.CreatedAt.After(newest.CreatedAt) ||
			(c.CreatedAt.Equal(newest.CreatedAt) && c.ID > newest.ID) {
			found := c
			newest = &found
		}
	}
	return newest
}

func (st *memoryState) indexActive(sessionID, id string) {
	set, ok := st.activeBySession[sessionID]
	if !ok {
		set = make(map[string]struct{})
		st.activeBySession[sessionID] = set
	}
	set[id] = struct{}{}
}

func (st *memoryState) unindexActive(sessionID, id string) {
	set, ok := st.activeBySession[sessionID]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(st.activeBySession, sessionID)
	}
}

func (st *memoryState) listActiveConnections() []models.Connection {
	out := make([]models.Connection, 0)
	for _, c := range st.connections {
		if c.Active() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func statusIn(s models.ConnectionStatus, set []models.ConnectionStatus) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}
