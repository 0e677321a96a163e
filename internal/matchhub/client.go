package matchhub

import "ventishh/backend/internal/models"

// Client is a push connection of one session (today only WebSocket).
// The hub owns its lifecycle once it is registered.
type Client interface {
	// GetSessionID returns the opaque session id the client subscribed with.
	GetSessionID() string

	// GetSendChannel returns the channel the hub writes match events to.
	GetSendChannel() chan<- models.MatchEvent

	// Run starts the client's read and write pumps.
	Run()
	// Close stops the write pump; it must be safe to call more than once.
	Close()
}
