package matchhub

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"ventishh/backend/internal/config"
	"ventishh/backend/internal/logger"
	"ventishh/backend/internal/metrics"
	"ventishh/backend/internal/storage"
)

// PresenceSweeper takes entries offline when their owner stops polling and
// eventually deletes them. Offline entries are neither listed nor matched.
type PresenceSweeper struct {
	Storage    storage.Storage
	StaleAfter time.Duration
	Now        func() time.Time

	cron *cron.Cron
}

func NewPresenceSweeper(s storage.Storage, staleAfter time.Duration) *PresenceSweeper {
	return &PresenceSweeper{Storage: s, StaleAfter: staleAfter, Now: time.Now}
}

// Sweep runs one pass and reports how many entries went offline and how many were deleted.
func (p *PresenceSweeper) Sweep(ctx context.Context) (offline, deleted int64, err error) {
	now := p.Now()

	offline, err = p.Storage.MarkStaleOffline(ctx, now.Add(-p.StaleAfter))
	if err != nil {
		return 0, 0, err
	}
	deleted, err = p.Storage.DeleteOfflineBefore(ctx, now.Add(-p.StaleAfter*config.StaleDeleteFactor))
	if err != nil {
		return offline, 0, err
	}

	metrics.PresenceSwept.WithLabelValues("offline").Add(float64(offline))
	metrics.PresenceSwept.WithLabelValues("deleted").Add(float64(deleted))
	if offline > 0 || deleted > 0 {
		slog.Info("presence sweep", slog.Int64("offline", offline), slog.Int64("deleted", deleted))
	}
	return offline, deleted, nil
}

// Start schedules Sweep with a cron spec such as "@every 30s".
func (p *PresenceSweeper) Start(schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, _, err := p.Sweep(context.Background()); err != nil {
			logger.LogError(context.Background(), "presence sweep failed", err)
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	p.cron = c
	slog.Info("presence sweeper started", slog.String("schedule", schedule))
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (p *PresenceSweeper) Stop() {
	if p.cron == nil {
		return
	}
	<-p.cron.Stop().Done()
}
