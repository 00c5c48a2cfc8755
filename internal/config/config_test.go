package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(writeEnv(t, "REDIS_HOST=redis\nREDIS_PORT=6379\n"))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.GetServerAddr())
	assert.Equal(t, "0.0.0.0:8081", cfg.GetWebSocketAddr())
	assert.Equal(t, StoragePostgres, cfg.Board.StorageDriver)
	assert.Equal(t, 2*time.Second, cfg.Board.GuardWindow)
	assert.Equal(t, 7, cfg.Board.PreloadPastDays)
	assert.Equal(t, 30, cfg.Board.PreloadFutureDays)
	assert.Equal(t, int64(100000), cfg.Stream.MaxLen)
	assert.Equal(t, uint32(5), cfg.Stream.BreakerFailures)
	assert.Equal(t, 24*time.Hour, cfg.Cache.BoardTTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "http://localhost:8080", cfg.Worker.AuthorityURL)

	// стримы наследуют основной Redis
	assert.Equal(t, "redis", cfg.RedisStreams.Host)
	assert.Equal(t, 6379, cfg.RedisStreams.Port)
}

func TestLoadFile_ReadsValues(t *testing.T) {
	cfg, err := LoadFile(writeEnv(t, `API_PORT=9000
WS_PORT=9001
BOARD_STORAGE_DRIVER=Memory
BOARD_GUARD_WINDOW_MS=750
BOARD_PRELOAD_PAST_DAYS=3
API_CORS_ORIGINS=https://a.example, https://b.example
STREAM_TRIM_EVERY=10
RATE_LIMIT_ENABLED=true
RATE_LIMIT_RPS=2.5
`))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 9001, cfg.WebSocket.Port)
	assert.Equal(t, StorageMemory, cfg.Board.StorageDriver)
	assert.Equal(t, 750*time.Millisecond, cfg.Board.GuardWindow)
	assert.Equal(t, 3, cfg.Board.PreloadPastDays)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, uint64(10), cfg.Stream.TrimEvery)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 2.5, cfg.RateLimit.RPS)
}

func TestLoadFile_EnvironmentWins(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	cfg, err := LoadFile(writeEnv(t, "LOG_LEVEL=warn\n"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFile_Invalid(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "absent.env"))
		assert.Error(t, err)
	})

	t.Run("unknown storage driver", func(t *testing.T) {
		_, err := LoadFile(writeEnv(t, "BOARD_STORAGE_DRIVER=sqlite\n"))
		assert.ErrorContains(t, err, "BOARD_STORAGE_DRIVER")
	})

	t.Run("shared listener", func(t *testing.T) {
		_, err := LoadFile(writeEnv(t, "API_PORT=8000\nWS_PORT=8000\n"))
		assert.ErrorContains(t, err, "share")
	})
}
