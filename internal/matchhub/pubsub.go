package matchhub

import (
	"context"
	"log/slog"

	"ventishh/backend/internal/storage"
)

// StartPubSubListener запускає Goroutine, яка слухає Redis Pub/Sub і передає
// події "match_found" у hub. Every server instance runs one, so a match made
// on one instance reaches sockets held by another.
func (m *ManagerService) StartPubSubListener(ctx context.Context, bus *storage.MatchBus) {
	go func() {
		pubsub := bus.Subscribe(ctx)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				event, err := storage.DecodeMatchEvent(msg.Payload)
				if err != nil {
					slog.Error("bad match event from redis", slog.String("error", err.Error()))
					continue
				}
				select {
				case m.EventCh <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
}
