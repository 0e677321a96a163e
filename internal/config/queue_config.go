package config

import "time"

const (
	// Polling
	DefaultPollInterval = 3 * time.Second

	// Presence
	DefaultSweepSchedule = "@every 30s"
	DefaultStaleAfter    = 2 * time.Minute
	// Offline entries are deleted once they have been stale this many times over.
	StaleDeleteFactor = 10

	// Contact handoff
	TelegramLinkBase = "https://t.me"
	MaxHandleLength  = 64

	// Redis Pub/Sub канал для подій "match_found"
	MatchEventsChannel = "ventishh:matches"

	// Postgres advisory lock that serialises the join+match transaction.
	MatchLockKey int64 = 0x76656e74
)
