package models

import (
	"strings"
	"time"
)

// Role визначає, з якого боку черги стоїть користувач.
type Role string

const (
	RoleListener Role = "listener"
	RoleVenter   Role = "venter"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleListener || r == RoleVenter
}

// Opposite returns the role a user of role r is matched against.
func (r Role) Opposite() Role {
	if r == RoleListener {
		return RoleVenter
	}
	return RoleListener
}

// QueueEntry represents a single waiting session in the matching queue.
// A session owns at most one entry; re-joining replaces it.
type QueueEntry struct {
	// ID is assigned by the store in insertion order and breaks joinedAt ties.
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`
	// SessionID is the opaque, client-supplied identity of the owner.
	SessionID string `gorm:"type:text;not null;uniqueIndex" json:"sessionId"`
	// Role is either "listener" or "venter".
	Role Role `gorm:"type:text;not null;index:idx_queue_waiting,priority:1" json:"role"`
	// ContactHandle is the listener's Telegram username. Empty for venters.
	ContactHandle string `gorm:"type:text" json:"contactHandle,omitempty"`
	// Online is cleared by the presence sweeper when the owner stops polling.
	Online bool `gorm:"not null;default:true;index:idx_queue_waiting,priority:2" json:"isOnline"`
	// JoinedAt is the FIFO ordering key.
	JoinedAt time.Time `gorm:"not null;index:idx_queue_waiting,priority:3" json:"joinedAt"`
	// LastSeen is refreshed every time the owner polls the status endpoint.
	LastSeen time.Time `gorm:"not null" json:"lastSeen"`
}

// NormalizeHandle trims surrounding whitespace from a contact handle.
func NormalizeHandle(handle string) string {
	return strings.TrimSpace(handle)
}

// ContactLink builds the deep link that opens a chat with the given handle
// in the external messenger. It returns "" for an empty handle.
func ContactLink(base, handle string) string {
	h := strings.TrimPrefix(NormalizeHandle(handle), "@")
	if h == "" {
		return ""
	}
	return strings.TrimSuffix(base, "/") + "/" + h
}

// Before reports whether e should be served before other: earlier joinedAt
// wins, insertion order breaks ties.
func (e QueueEntry) Before(other QueueEntry) bool {
	if e.JoinedAt.Equal(other.JoinedAt) {
		return e.ID < other.ID
	}
	return e.JoinedAt.Before(other.JoinedAt)
}
