package matchhub

import (
	"context"
	"strings"
	"time"

	"ventishh/backend/internal/apperrors"
	"ventishh/backend/internal/metrics"
	"ventishh/backend/internal/models"
)

// WaitingUser is the public view of a queue entry; session ids stay private.
type WaitingUser struct {
	ID       uint      `json:"id"`
	Username string    `json:"username,omitempty"`
	JoinedAt time.Time `json:"joinedAt"`
}

// WaitingGroup is the count and list of one role's waiting pool.
type WaitingGroup struct {
	Count int           `json:"count"`
	Data  []WaitingUser `json:"data"`
}

// Snapshot is what polling clients receive from the status endpoint.
type Snapshot struct {
	Listeners        WaitingGroup           `json:"listeners"`
	Venters          WaitingGroup           `json:"venters"`
	ActiveConnection *models.ConnectionView `json:"activeConnection"`
}

// Snapshot returns both waiting pools and, if sessionID is given, the
// caller's active connection. A polling caller is also marked as seen.
func (m *MatcherService) Snapshot(ctx context.Context, sessionID string) (*Snapshot, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID != "" {
		if err := m.Storage.TouchEntry(ctx, sessionID, m.Now()); err != nil {
			return nil, apperrors.Unexpected("touch entry", err)
		}
	}

	listeners, err := m.Storage.ListWaiting(ctx, models.RoleListener)
	if err != nil {
		return nil, apperrors.Unexpected("list listeners", err)
	}
	venters, err := m.Storage.ListWaiting(ctx, models.RoleVenter)
	if err != nil {
		return nil, apperrors.Unexpected("list venters", err)
	}

	metrics.Waiting.WithLabelValues(string(models.RoleListener)).Set(float64(len(listeners)))
	metrics.Waiting.WithLabelValues(string(models.RoleVenter)).Set(float64(len(venters)))

	snap := &Snapshot{
		Listeners: toGroup(listeners, true),
		Venters:   toGroup(venters, false),
	}

	if sessionID != "" {
		conn, err := m.Storage.ActiveConnectionFor(ctx, sessionID)
		if err != nil {
			return nil, apperrors.Unexpected("active connection", err)
		}
		snap.ActiveConnection = models.NewConnectionView(conn, m.LinkBase)
	}
	return snap, nil
}

func toGroup(entries []models.QueueEntry, withHandle bool) WaitingGroup {
	data := make([]WaitingUser, 0, len(entries))
	for _, e := range entries {
		u := WaitingUser{ID: e.ID, JoinedAt: e.JoinedAt}
		if withHandle {
			u.Username = e.ContactHandle
		}
		data = append(data, u)
	}
	return WaitingGroup{Count: len(data), Data: data}
}

// Stats is the operator view of the service: pool sizes and open connections.
type Stats struct {
	Listeners         int `json:"listeners"`
	Venters           int `json:"venters"`
	ActiveConnections int `json:"activeConnections"`
}

// Stats counts waiting entries per role and connections that have not ended.
func (m *MatcherService) Stats(ctx context.Context) (Stats, error) {
	listeners, err := m.Storage.ListWaiting(ctx, models.RoleListener)
	if err != nil {
		return Stats{}, apperrors.Unexpected("list listeners", err)
	}
	venters, err := m.Storage.ListWaiting(ctx, models.RoleVenter)
	if err != nil {
		return Stats{}, apperrors.Unexpected("list venters", err)
	}
	active, err := m.Storage.ListActiveConnections(ctx)
	if err != nil {
		return Stats{}, apperrors.Unexpected("list connections", err)
	}
	return Stats{Listeners: len(listeners), Venters: len(venters), ActiveConnections: len(active)}, nil
}
