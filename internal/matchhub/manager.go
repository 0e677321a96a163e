package matchhub

import (
	"context"
	"log/slog"

	"ventishh/backend/internal/metrics"
	"ventishh/backend/internal/models"
)

// ManagerService: диспетчер push-клієнтів. It keeps at most one client per
// session and forwards match events to both participants of a connection.
// All client bookkeeping happens on the Run goroutine.
type ManagerService struct {
	Clients map[string]Client

	// Channels
	EventCh      chan models.MatchEvent
	RegisterCh   chan Client
	UnregisterCh chan Client

	done chan struct{}
}

// NewManagerService (ініціалізація каналів)
func NewManagerService() *ManagerService {
	return &ManagerService{
		Clients:      make(map[string]Client),
		EventCh:      make(chan models.MatchEvent, 256),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		done:         make(chan struct{}),
	}
}

// PublishMatch queues event for local delivery. It lets the hub act as the
// Notifier when Redis is not configured. A full queue drops the event;
// clients still see the match on their next poll.
func (m *ManagerService) PublishMatch(ctx context.Context, event models.MatchEvent) error {
	select {
	case m.EventCh <- event:
	default:
		slog.WarnContext(ctx, "match event dropped, hub queue full", slog.String("connection_id", event.ConnectionID))
	}
	return nil
}

// Run is the hub loop. It returns when ctx is cancelled, closing every client.
func (m *ManagerService) Run(ctx context.Context) {
	slog.Info("push hub started")
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			for id, client := range m.Clients {
				client.Close()
				delete(m.Clients, id)
			}
			metrics.PushClients.Set(0)
			return

		case client := <-m.RegisterCh:
			id := client.GetSessionID()
			if old, ok := m.Clients[id]; ok && old != client {
				old.Close()
			}
			m.Clients[id] = client
			metrics.PushClients.Set(float64(len(m.Clients)))

		case client := <-m.UnregisterCh:
			id := client.GetSessionID()
			if current, ok := m.Clients[id]; ok && current == client {
				delete(m.Clients, id)
				client.Close()
			}
			metrics.PushClients.Set(float64(len(m.Clients)))

		case event := <-m.EventCh:
			m.deliver(event)
		}
	}
}

// Done is closed once Run has returned.
func (m *ManagerService) Done() <-chan struct{} {
	return m.done
}

func (m *ManagerService) deliver(event models.MatchEvent) {
	for _, id := range []string{event.ListenerSessionID, event.VenterSessionID} {
		client, ok := m.Clients[id]
		if !ok {
			continue
		}
		select {
		case client.GetSendChannel() <- event:
		default:
			// Повільний клієнт: відключаємо, він повернеться до опитування.
			slog.Warn("push client too slow, dropping", slog.String("session_id", id))
			delete(m.Clients, id)
			client.Close()
			metrics.PushClients.Set(float64(len(m.Clients)))
		}
	}
}
