package matchhub

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"ventishh/backend/internal/apperrors"
	"ventishh/backend/internal/config"
	"ventishh/backend/internal/logger"
	"ventishh/backend/internal/metrics"
	"ventishh/backend/internal/models"
	"ventishh/backend/internal/storage"
)

// Notifier delivers match events to whoever pushes them to clients.
type Notifier interface {
	PublishMatch(ctx context.Context, event models.MatchEvent) error
}

// MatcherService відповідає за чергу, алгоритм пошуку пари та життєвий цикл з'єднань.
type MatcherService struct {
	Storage  storage.Storage
	Notifier Notifier
	// LinkBase is the messenger deep-link prefix embedded into connections.
	LinkBase string
	Now      func() time.Time
}

// NewMatcherService створює новий Matcher. notifier may be nil.
func NewMatcherService(s storage.Storage, notifier Notifier) *MatcherService {
	return &MatcherService{
		Storage:  s,
		Notifier: notifier,
		LinkBase: config.TelegramLinkBase,
		Now:      time.Now,
	}
}

// JoinResult is the outcome of a join: the stored entry and, when the
// entrant was paired immediately, the new connection.
type JoinResult struct {
	Entry      models.QueueEntry      `json:"entry"`
	Matched    bool                   `json:"matched"`
	Connection *models.ConnectionView `json:"connection,omitempty"`
}

// Join puts the session into the queue (replacing any previous entry) and
// tries to pair it with the oldest waiting user of the opposite role. The
// upsert and the match commit together.
func (m *MatcherService) Join(ctx context.Context, req models.JoinRequest) (*JoinResult, error) {
	entry, err := m.newEntry(req)
	if err != nil {
		metrics.ValidationFailures.WithLabelValues(apperrors.MessageKey(err)).Inc()
		return nil, err
	}

	var conn *models.Connection
	err = m.Storage.Atomically(ctx, func(tx storage.Storage) error {
		if err := tx.UpsertEntry(ctx, entry); err != nil {
			return err
		}
		matched, err := m.TryMatch(ctx, tx, entry)
		if err != nil {
			return err
		}
		conn = matched
		return nil
	})
	if err != nil {
		return nil, apperrors.Unexpected("join queue", err)
	}

	metrics.Joins.WithLabelValues(string(entry.Role)).Inc()
	result := &JoinResult{Entry: *entry, Matched: conn != nil}
	if conn == nil {
		slog.DebugContext(ctx, "entry queued", slog.String("session_id", entry.SessionID), slog.String("role", string(entry.Role)))
		return result, nil
	}

	metrics.Matches.Inc()
	slog.InfoContext(ctx, "match found",
		slog.String("connection_id", conn.ID),
		slog.String("listener_session_id", conn.ListenerSessionID),
		slog.String("venter_session_id", conn.VenterSessionID))
	m.notify(ctx, conn)

	result.Connection = models.NewConnectionView(conn, m.LinkBase)
	return result, nil
}

// TryMatch pairs entry with the oldest waiting entry of the opposite role.
// It must run inside Storage.Atomically: the candidate selection, the
// connection insert and both removals are one unit. It returns nil when no
// candidate is waiting, leaving entry queued.
func (m *MatcherService) TryMatch(ctx context.Context, tx storage.Storage, entry *models.QueueEntry) (*models.Connection, error) {
	candidate, err := tx.OldestWaiting(ctx, entry.Role.Opposite(), entry.SessionID)
	if err != nil {
		return nil, err
	}
	if candidate == nil {
		return nil, nil
	}

	listener, venter := *candidate, *entry
	if entry.Role == models.RoleListener {
		listener, venter = *entry, *candidate
	}

	conn := models.NewConnection(listener, venter, m.Now())
	if err := tx.CreateConnection(ctx, conn); err != nil {
		return nil, err
	}
	if err := tx.RemoveEntryByID(ctx, candidate.ID); err != nil {
		return nil, err
	}
	if err := tx.RemoveEntryByID(ctx, entry.ID); err != nil {
		return nil, err
	}
	return conn, nil
}

// Leave removes the session from the queue. Leaving when not queued is a no-op.
func (m *MatcherService) Leave(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		metrics.ValidationFailures.WithLabelValues(apperrors.ErrSessionRequired.Message).Inc()
		return apperrors.ErrSessionRequired
	}
	removed, err := m.Storage.RemoveEntry(ctx, sessionID)
	if err != nil {
		return apperrors.Unexpected("leave queue", err)
	}
	if removed {
		metrics.Leaves.Inc()
	}
	return nil
}

func (m *MatcherService) newEntry(req models.JoinRequest) (*models.QueueEntry, error) {
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		return nil, apperrors.ErrSessionRequired
	}
	role := models.Role(strings.ToLower(strings.TrimSpace(string(req.Role))))
	if role == "" {
		return nil, apperrors.ErrRoleRequired
	}
	if !role.Valid() {
		return nil, apperrors.ErrRoleInvalid
	}

	handle := ""
	if role == models.RoleListener {
		handle = req.Handle()
		if handle == "" {
			return nil, apperrors.ErrHandleRequired
		}
		if len(handle) > config.MaxHandleLength {
			return nil, apperrors.ErrHandleTooLong
		}
	}

	now := m.Now()
	return &models.QueueEntry{
		SessionID:     sessionID,
		Role:          role,
		ContactHandle: handle,
		Online:        true,
		JoinedAt:      now,
		LastSeen:      now,
	}, nil
}

// notify is best effort: the match is already committed and polling clients
// will observe it through status.
func (m *MatcherService) notify(ctx context.Context, conn *models.Connection) {
	if m.Notifier == nil {
		return
	}
	if err := m.Notifier.PublishMatch(ctx, models.NewMatchEvent(conn)); err != nil {
		logger.LogError(ctx, "failed to publish match event", err, slog.String("connection_id", conn.ID))
	}
}
