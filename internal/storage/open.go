package storage

import (
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"ventishh/backend/internal/config"
)

// Open returns the store selected by cfg.Database.Driver. The postgres store
// is migrated before it is returned.
func Open(cfg config.Config) (Storage, error) {
	switch cfg.Database.Driver {
	case "memory":
		slog.Warn("using in-memory storage, state is lost on restart")
		return NewMemoryStore(), nil
	case "postgres", "":
		db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := Migrate(db); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		slog.Info("database connection established, migrations complete",
			slog.String("host", cfg.Database.Host), slog.String("db", cfg.Database.Name))
		return NewStorageService(db), nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.Database.Driver)
	}
}
