package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"ventishh/backend/internal/apperrors"
	"ventishh/backend/internal/config"
	"ventishh/backend/internal/logger"
	"ventishh/backend/internal/matchhub"
	"ventishh/backend/internal/models"
	"ventishh/backend/internal/storage"
)

const usage = `Usage: admin <command> [args]

Commands:
  stats                      print waiting counts and active connections
  end <connection_id>        end a connection
  kick <session_id>          remove a session from the queue
  sweep                      run one presence sweep now`

func main() {
	loadEnv()
	cfg := config.Load()
	logger.Init(cfg.Server.LogLevel, cfg.Server.LogFormat)

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}
	if cfg.Database.Driver == "memory" {
		slog.Warn("DB_DRIVER=memory: the admin CLI sees an empty private store")
	}

	store, err := storage.Open(cfg)
	if err != nil {
		fail("failed to open storage", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx, store, cfg, os.Args[1:]); err != nil {
		fail("command failed", err)
	}
}

func run(ctx context.Context, store storage.Storage, cfg config.Config, args []string) error {
	matcher := matchhub.NewMatcherService(store, nil)

	switch args[0] {
	case "stats":
		stats, err := matcher.Stats(ctx)
		if err != nil {
			return err
		}
		active, err := store.ListActiveConnections(ctx)
		if err != nil {
			return err
		}
		out := struct {
			matchhub.Stats
			Connections any `json:"connections"`
		}{Stats: stats, Connections: active}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)

	case "end":
		if len(args) != 2 {
			return fmt.Errorf("usage: admin end <connection_id>")
		}
		conn, err := store.GetConnection(ctx, args[1])
		if apperrors.IsNotFound(err) {
			fmt.Printf("Connection %s does not exist, nothing to end.\n", args[1])
			return nil
		}
		if err != nil {
			return err
		}
		if !conn.Active() {
			fmt.Printf("Connection %s is already %s.\n", conn.ID, models.StatusEnded)
			return nil
		}
		if err := matcher.End(ctx, conn.ID); err != nil {
			return err
		}
		fmt.Printf("Connection %s (%s <-> %s) has been ended.\n", conn.ID, conn.ListenerSessionID, conn.VenterSessionID)

	case "kick":
		if len(args) != 2 {
			return fmt.Errorf("usage: admin kick <session_id>")
		}
		entry, err := store.GetEntry(ctx, args[1])
		if apperrors.IsNotFound(err) {
			fmt.Printf("Session %s is not queued.\n", args[1])
			return nil
		}
		if err != nil {
			return err
		}
		if err := matcher.Leave(ctx, entry.SessionID); err != nil {
			return err
		}
		fmt.Printf("Session %s (%s, waiting since %s) has been removed from the queue.\n",
			entry.SessionID, entry.Role, entry.JoinedAt.Format(time.RFC3339))

	case "sweep":
		sweeper := matchhub.NewPresenceSweeper(store, cfg.Presence.StaleAfter)
		offline, deleted, err := sweeper.Sweep(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Marked %d entries offline, deleted %d.\n", offline, deleted)

	default:
		fmt.Println(usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}

func loadEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded", slog.String("error", err.Error()))
	}
}

func fail(msg string, err error) {
	slog.Error(msg, slog.String("error", err.Error()))
	os.Exit(1)
}
