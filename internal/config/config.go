package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting the server and the admin CLI read at start-up.
type Config struct {
	Server struct {
		Port           string
		LogLevel       string
		LogFormat      string
		AllowedOrigins []string
		PollInterval   time.Duration
	}
	Database struct {
		Driver   string // "postgres" or "memory"
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	Presence struct {
		SweepSchedule string
		StaleAfter    time.Duration
	}
	Telegram struct {
		BotToken    string
		AdminChatID int64
	}
}

// DSN builds the Postgres connection string.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Database.Host, c.Database.User, c.Database.Password, c.Database.Name, c.Database.Port, c.Database.SSLMode)
}

// Load reads configuration from the environment (including a previously
// loaded .env file) on top of the defaults.
func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "text")
	v.SetDefault("server.allowed_origins", "*")
	v.SetDefault("server.poll_interval", DefaultPollInterval.String())

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "user")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.name", "ventishhdb")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.db", 0)

	v.SetDefault("presence.sweep_schedule", DefaultSweepSchedule)
	v.SetDefault("presence.stale_after", DefaultStaleAfter.String())

	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.log_format", "LOG_FORMAT")
	_ = v.BindEnv("server.allowed_origins", "ALLOWED_ORIGINS")
	_ = v.BindEnv("server.poll_interval", "POLL_INTERVAL")

	_ = v.BindEnv("database.driver", "DB_DRIVER")
	_ = v.BindEnv("database.host", "DB_HOST")
	_ = v.BindEnv("database.port", "DB_PORT")
	_ = v.BindEnv("database.user", "DB_USER")
	_ = v.BindEnv("database.password", "DB_PASSWORD")
	_ = v.BindEnv("database.name", "DB_NAME")
	_ = v.BindEnv("database.sslmode", "DB_SSLMODE")

	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")

	_ = v.BindEnv("presence.sweep_schedule", "PRESENCE_SWEEP_SCHEDULE")
	_ = v.BindEnv("presence.stale_after", "PRESENCE_STALE_AFTER")

	_ = v.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("telegram.admin_chat_id", "TELEGRAM_ADMIN_CHAT_ID")

	var c Config
	c.Server.Port = fmt.Sprint(v.Get("server.port"))
	c.Server.LogLevel = v.GetString("server.log_level")
	c.Server.LogFormat = v.GetString("server.log_format")
	c.Server.AllowedOrigins = splitList(v.GetString("server.allowed_origins"))
	c.Server.PollInterval = v.GetDuration("server.poll_interval")

	c.Database.Driver = strings.ToLower(v.GetString("database.driver"))
	c.Database.Host = v.GetString("database.host")
	c.Database.Port = v.GetString("database.port")
	c.Database.User = v.GetString("database.user")
	c.Database.Password = v.GetString("database.password")
	c.Database.Name = v.GetString("database.name")
	c.Database.SSLMode = v.GetString("database.sslmode")

	c.Redis.Addr = v.GetString("redis.addr")
	c.Redis.Password = v.GetString("redis.password")
	c.Redis.DB = v.GetInt("redis.db")

	c.Presence.SweepSchedule = v.GetString("presence.sweep_schedule")
	c.Presence.StaleAfter = v.GetDuration("presence.stale_after")

	c.Telegram.BotToken = v.GetString("telegram.bot_token")
	c.Telegram.AdminChatID = v.GetInt64("telegram.admin_chat_id")

	if c.Server.PollInterval <= 0 {
		c.Server.PollInterval = DefaultPollInterval
	}
	if c.Presence.StaleAfter <= 0 {
		c.Presence.StaleAfter = DefaultStaleAfter
	}
	return c
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
