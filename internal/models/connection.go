package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConnectionStatus is the lifecycle state of a Connection.
type ConnectionStatus string

const (
	StatusConnecting ConnectionStatus = "connecting"
	StatusConnected  ConnectionStatus = "connected"
	StatusEnded      ConnectionStatus = "ended"
)

// Connection is the record of a matched listener/venter pair.
// Participant data is captured by value at match time, because both queue
// entries are deleted in the same transaction that creates the connection.
type Connection struct {
	// ID is a UUID generated in BeforeCreate.
	ID string `gorm:"primaryKey;type:text" json:"id"`

	ListenerEntryID   uint   `gorm:"not null" json:"listenerUserId"`
	ListenerSessionID string `gorm:"type:text;not null;index" json:"listenerSessionId"`
	ListenerHandle    string `gorm:"type:text;not null" json:"listenerHandle"`
	VenterEntryID     uint   `gorm:"not null" json:"venterUserId"`
	VenterSessionID   string `gorm:"type:text;not null;index" json:"venterSessionId"`

	Status    ConnectionStatus `gorm:"type:text;not null;default:connecting;index" json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
	EndedAt   *time.Time       `json:"endedAt"`
}

// BeforeCreate: хук GORM, який генерує UUID, якщо ID ще не встановлено.
func (c *Connection) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}

// Active reports whether the connection has not been ended yet.
func (c *Connection) Active() bool {
	return c.Status != StatusEnded && c.EndedAt == nil
}

// Involves reports whether sessionID is one of the two participants.
func (c *Connection) Involves(sessionID string) bool {
	return sessionID != "" && (c.ListenerSessionID == sessionID || c.VenterSessionID == sessionID)
}

// NewConnection pairs a listener and a venter entry into a fresh connection
// in the connecting state.
func NewConnection(listener, venter QueueEntry, now time.Time) *Connection {
	return &Connection{
		ListenerEntryID:   listener.ID,
		ListenerSessionID: listener.SessionID,
		ListenerHandle:    listener.ContactHandle,
		VenterEntryID:     venter.ID,
		VenterSessionID:   venter.SessionID,
		Status:            StatusConnecting,
		CreatedAt:         now,
	}
}
