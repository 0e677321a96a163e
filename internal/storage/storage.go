package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ventishh/backend/internal/apperrors"
	"ventishh/backend/internal/config"
	"ventishh/backend/internal/models"
)

// Storage is the shared store behind the queue and the connection lifecycle.
// Every method is individually atomic; Atomically groups several calls into
// one unit that either commits entirely or not at all.
type Storage interface {
	// UpsertEntry replaces any entry of entry.SessionID with entry and assigns entry.ID.
	UpsertEntry(ctx context.Context, entry *models.QueueEntry) error
	// RemoveEntry deletes the session's entry; it reports whether one existed.
	RemoveEntry(ctx context.Context, sessionID string) (bool, error)
	RemoveEntryByID(ctx context.Context, id uint) error
	GetEntry(ctx context.Context, sessionID string) (*models.QueueEntry, error)
	// ListWaiting returns online entries of role in FIFO order.
	ListWaiting(ctx context.Context, role models.Role) ([]models.QueueEntry, error)
	// OldestWaiting returns the first online entry of role not owned by
	// excludeSessionID, or nil. Inside Atomically the row stays claimed until commit.
	OldestWaiting(ctx context.Context, role models.Role, excludeSessionID string) (*models.QueueEntry, error)
	// TouchEntry refreshes LastSeen and brings the entry back online.
	TouchEntry(ctx context.Context, sessionID string, at time.Time) error
	MarkStaleOffline(ctx context.Context, before time.Time) (int64, error)
	DeleteOfflineBefore(ctx context.Context, before time.Time) (int64, error)

	CreateConnection(ctx context.Context, conn *models.Connection) error
	GetConnection(ctx context.Context, id string) (*models.Connection, error)
	// TransitionConnection moves the connection to status `to` if its current
	// status is one of `from`. It reports whether a row changed.
	TransitionConnection(ctx context.Context, id string, from []models.ConnectionStatus, to models.ConnectionStatus, at time.Time) (bool, error)
	// ActiveConnectionFor returns the newest non-ended connection involving sessionID, or nil.
	ActiveConnectionFor(ctx context.Context, sessionID string) (*models.Connection, error)
	ListActiveConnections(ctx context.Context) ([]models.Connection, error)

	Atomically(ctx context.Context, fn func(tx Storage) error) error
}

// Service is the PostgreSQL implementation of Storage.
type Service struct {
	DB *gorm.DB
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// Migrate створює таблиці черги та з'єднань.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.QueueEntry{}, &models.Connection{})
}

func (s *Service) db(ctx context.Context) *gorm.DB {
	return s.DB.WithContext(ctx)
}

// Atomically runs fn in a transaction serialised by an advisory lock, so
// concurrent joins never see the same waiting entry as free.
func (s *Service) Atomically(ctx context.Context, fn func(tx Storage) error) error {
	return s.db(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", config.MatchLockKey).Error; err != nil {
			return fmt.Errorf("acquire match lock: %w", err)
		}
		return fn(&Service{DB: tx})
	})
}

func (s *Service) UpsertEntry(ctx context.Context, entry *models.QueueEntry) error {
	return s.db(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", entry.SessionID).Delete(&models.QueueEntry{}).Error; err != nil {
			return fmt.Errorf("delete previous entry: %w", err)
		}
		entry.ID = 0
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
		return nil
	})
}

func (s *Service) RemoveEntry(ctx context.Context, sessionID string) (bool, error) {
	res := s.db(ctx).Where("session_id = ?", sessionID).Delete(&models.QueueEntry{})
	if res.Error != nil {
		return false, fmt.Errorf("remove entry: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Service) RemoveEntryByID(ctx context.Context, id uint) error {
	if err := s.db(ctx).Delete(&models.QueueEntry{}, id).Error; err != nil {
		return fmt.Errorf("remove entry %d: %w", id, err)
	}
	return nil
}

func (s *Service) GetEntry(ctx context.Context, sessionID string) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	err := s.db(ctx).Where("session_id = ?", sessionID).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return &entry, nil
}

func (s *Service) ListWaiting(ctx context.Context, role models.Role) ([]models.QueueEntry, error) {
	var entries []models.QueueEntry
	if err := s.db(ctx).
		Where("role = ? AND online = ?", role, true).
		Order("joined_at asc, id asc").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list waiting %s: %w", role, err)
	}
	return entries, nil
}

func (s *Service) OldestWaiting(ctx context.Context, role models.Role, excludeSessionID string) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	err := s.db(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("role = ? AND online = ? AND session_id <> ?", role, true, excludeSessionID).
		Order("joined_at asc, id asc").
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select oldest %s: %w", role, err)
	}
	return &entry, nil
}

func (s *Service) TouchEntry(ctx context.Context, sessionID string, at time.Time) error {
	err := s.db(ctx).Model(&models.QueueEntry{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{"last_seen": at, "online": true}).Error
	if err != nil {
		return fmt.Errorf("touch entry: %w", err)
	}
	return nil
}

func (s *Service) MarkStaleOffline(ctx context.Context, before time.Time) (int64, error) {
	res := s.db(ctx).Model(&models.QueueEntry{}).
		Where("online = ? AND last_seen < ?", true, before).
		Update("online", false)
	if res.Error != nil {
		return 0, fmt.Errorf("mark stale offline: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Service) DeleteOfflineBefore(ctx context.Context, before time.Time) (int64, error) {
	res := s.db(ctx).
		Where("online = ? AND last_seen < ?", false, before).
		Delete(&models.QueueEntry{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete offline entries: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Service) CreateConnection(ctx context.Context, conn *models.Connection) error {
	if err := s.db(ctx).Create(conn).Error; err != nil {
		return fmt.Errorf("create connection: %w", err)
	}
	return nil
}

func (s *Service) GetConnection(ctx context.Context, id string) (*models.Connection, error) {
	var conn models.Connection
	err := s.db(ctx).Where("id = ?", id).Take(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrConnectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	return &conn, nil
}

func (s *Service) TransitionConnection(ctx context.Context, id string, from []models.ConnectionStatus, to models.ConnectionStatus, at time.Time) (bool, error) {
	updates := map[string]interface{}{"status": to}
	if to == models.StatusEnded {
		updates["ended_at"] = at
	}
	res := s.db(ctx).Model(&models.Connection{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("transition connection %s to %s: %w", id, to, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Service) ActiveConnectionFor(ctx context.Context, sessionID string) (*models.Connection, error) {
	var conn models.Connection
	err := s.db(ctx).
		Where("status <> ? AND ended_at IS NULL", models.StatusEnded).
		Where("listener_session_id = ? OR venter_session_id = ?", sessionID, sessionID).
		Order("created_at desc").
		Take(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active connection for session: %w", err)
	}
	return &conn, nil
}

func (s *Service) ListActiveConnections(ctx context.Context) ([]models.Connection, error) {
	var conns []models.Connection
	if err := s.db(ctx).
		Where("status <> ? AND ended_at IS NULL", models.StatusEnded).
		Order("created_at asc").
		Find(&conns).Error; err != nil {
		return nil, fmt.Errorf("list active connections: %w", err)
	}
	return conns, nil
}
