package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadClientDefaults(t *testing.T) {
	t.Setenv("CHAT_POLL_INTERVAL", "")
	t.Setenv("CHAT_TYPING_TTL", "")
	t.Setenv("CHAT_RECONNECT", "")

	cfg := LoadClient()
	require.Equal(t, 5*time.Second, cfg.PollInterval)
	require.Equal(t, 10*time.Second, cfg.ListInterval)
	require.Equal(t, 3*time.Second, cfg.TypingTTL)
	require.Equal(t, ReconnectBackoff, cfg.Reconnect)
	require.Equal(t, 0, cfg.PollStopAfter)
}

func TestLoadServerOverrides(t *testing.T) {
	t.Setenv("CHAT_STORAGE", "memory")
	t.Setenv("CHAT_BROKER", "local")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("RATE_LIMIT_REQUESTS", "not-a-number")

	cfg := LoadServer()
	require.Equal(t, StorageMemory, cfg.Storage)
	require.Equal(t, BrokerLocal, cfg.Broker)
	require.Equal(t, 2*time.Hour, cfg.TokenTTL)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	require.Equal(t, 120, cfg.RateLimitRequests)
}
