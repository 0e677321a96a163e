package models

import "time"

// JoinRequest is what a client submits to enter the queue.
type JoinRequest struct {
	SessionID     string `json:"sessionId"`
	Role          Role   `json:"role"`
	ContactHandle string `json:"contactHandle"`
	// TelegramUsername is accepted as an alias of ContactHandle.
	TelegramUsername string `json:"telegramUsername"`
}

// Handle returns the contact handle, falling back to the legacy field.
func (r JoinRequest) Handle() string {
	if h := NormalizeHandle(r.ContactHandle); h != "" {
		return h
	}
	return NormalizeHandle(r.TelegramUsername)
}

// Participant is the by-value snapshot of one side of a connection.
type Participant struct {
	ID            uint   `json:"id"`
	SessionID     string `json:"sessionId"`
	Role          Role   `json:"role"`
	ContactHandle string `json:"telegramUsername,omitempty"`
}

// ConnectionView is a Connection with both participant identities embedded,
// the shape returned by join and status.
type ConnectionView struct {
	Connection
	ListenerUser        Participant `json:"listenerUser"`
	VenterUser          Participant `json:"venterUser"`
	ListenerContactLink string      `json:"listenerContactLink,omitempty"`
}

// NewConnectionView embeds the participants of c. linkBase is the messenger
// deep-link prefix, e.g. "https://t.me".
func NewConnectionView(c *Connection, linkBase string) *ConnectionView {
	if c == nil {
		return nil
	}
	return &ConnectionView{
		Connection: *c,
		ListenerUser: Participant{
			ID:            c.ListenerEntryID,
			SessionID:     c.ListenerSessionID,
			Role:          RoleListener,
			ContactHandle: c.ListenerHandle,
		},
		VenterUser: Participant{
			ID:        c.VenterEntryID,
			SessionID: c.VenterSessionID,
			Role:      RoleVenter,
		},
		ListenerContactLink: ContactLink(linkBase, c.ListenerHandle),
	}
}

// MatchEvent is pushed to both participants after a match commits.
type MatchEvent struct {
	Type              string    `json:"type"` // "match_found"
	ConnectionID      string    `json:"connectionId"`
	ListenerSessionID string    `json:"listenerSessionId"`
	VenterSessionID   string    `json:"venterSessionId"`
	ListenerHandle    string    `json:"listenerHandle"`
	CreatedAt         time.Time `json:"createdAt"`
}

// EventMatchFound is the MatchEvent.Type of a fresh match.
const EventMatchFound = "match_found"

// NewMatchEvent builds the push payload for c.
func NewMatchEvent(c *Connection) MatchEvent {
	return MatchEvent{
		Type:              EventMatchFound,
		ConnectionID:      c.ID,
		ListenerSessionID: c.ListenerSessionID,
		VenterSessionID:   c.VenterSessionID,
		ListenerHandle:    c.ListenerHandle,
		CreatedAt:         c.CreatedAt,
	}
}
