package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ovoronin/pairline/internal/domain"
)

// Config holds all configuration for the service.
type Config struct {
	// APIURL is the base URL of the messaging platform's HTTP send API.
	APIURL string

	// GatewayURL is the platform's WebSocket event stream endpoint.
	GatewayURL string

	// BotToken authenticates against the platform.
	BotToken string

	// AdminToken is the shared secret gating broadcast and stats.
	AdminToken string

	// OversightChatID receives annotated mirror copies of relayed payloads.
	OversightChatID int64

	// DatabasePath is the SQLite database file.
	DatabasePath string

	// Port is the ops HTTP server port.
	Port int

	// LogLevel is the slog level name (debug, info, warn, error).
	LogLevel string

	// PostTTL is how long a published post stays active.
	PostTTL time.Duration

	// ViewCooldown is how long a shown post stays hidden from that viewer.
	ViewCooldown time.Duration

	// ViewRetention is how long individual view records are kept.
	ViewRetention time.Duration

	// BroadcastPacing is the delay between consecutive broadcast sends.
	BroadcastPacing time.Duration
}

// Load reads configuration from environment variables with sensible
// defaults. BOT_TOKEN, ADMIN_TOKEN, and OVERSIGHT_CHAT_ID are required.
func Load() (*Config, error) {
	cfg := &Config{
		APIURL:          envOr("CHAT_API_URL", "https://api.telegram.org"),
		GatewayURL:      envOr("CHAT_GATEWAY_URL", ""),
		BotToken:        os.Getenv("BOT_TOKEN"),
		AdminToken:      os.Getenv("ADMIN_TOKEN"),
		DatabasePath:    envOr("DATABASE_PATH", "pairline.db"),
		LogLevel:        envOr("LOG_LEVEL", "info"),
		Port:            8080,
		PostTTL:         domain.DefaultPostTTL,
		ViewCooldown:    domain.DefaultViewCooldown,
		ViewRetention:   domain.DefaultViewRetention,
		BroadcastPacing: domain.DefaultBroadcastPacing,
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN is required")
	}
	if cfg.AdminToken == "" {
		return nil, fmt.Errorf("ADMIN_TOKEN is required")
	}

	oversight := os.Getenv("OVERSIGHT_CHAT_ID")
	if oversight == "" {
		return nil, fmt.Errorf("OVERSIGHT_CHAT_ID is required")
	}
	id, err := strconv.ParseInt(oversight, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid OVERSIGHT_CHAT_ID: %w", err)
	}
	cfg.OversightChatID = id

	if p := os.Getenv("PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Port = port
	}

	for _, d := range []struct {
		key  string
		dest *time.Duration
	}{
		{"POST_TTL", &cfg.PostTTL},
		{"VIEW_COOLDOWN", &cfg.ViewCooldown},
		{"VIEW_RETENTION", &cfg.ViewRetention},
		{"BROADCAST_PACING", &cfg.BroadcastPacing},
	} {
		if v := os.Getenv(d.key); v != "" {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %w", d.key, err)
			}
			*d.dest = parsed
		}
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
