package matchhub

import (
	"context"
	"log/slog"
	"strings"

	"ventishh/backend/internal/apperrors"
	"ventishh/backend/internal/metrics"
	"ventishh/backend/internal/models"
)

var (
	endableStatuses = []models.ConnectionStatus{models.StatusConnecting, models.StatusConnected}
	connectableFrom = []models.ConnectionStatus{models.StatusConnecting}
)

// End closes the connection: status becomes ended and EndedAt is stamped.
// Ending an already-ended or unknown connection succeeds without changes.
func (m *MatcherService) End(ctx context.Context, connectionID string) error {
	return m.transition(ctx, connectionID, endableStatuses, models.StatusEnded)
}

// MarkConnected records that the out-of-band call has started. It only
// moves connecting connections; anything else is a no-op success.
func (m *MatcherService) MarkConnected(ctx context.Context, connectionID string) error {
	return m.transition(ctx, connectionID, connectableFrom, models.StatusConnected)
}

func (m *MatcherService) transition(ctx context.Context, connectionID string, from []models.ConnectionStatus, to models.ConnectionStatus) error {
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		metrics.ValidationFailures.WithLabelValues(apperrors.ErrConnectionRequired.Message).Inc()
		return apperrors.ErrConnectionRequired
	}

	changed, err := m.Storage.TransitionConnection(ctx, connectionID, from, to, m.Now())
	if err != nil {
		return apperrors.Unexpected("transition connection", err)
	}
	if changed {
		metrics.Transitions.WithLabelValues(string(to)).Inc()
		slog.InfoContext(ctx, "connection transitioned", slog.String("connection_id", connectionID), slog.String("status", string(to)))
	}
	return nil
}
