package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig
	WebSocket    WebSocketConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	RedisStreams RedisStreamsConfig
	Cache        CacheConfig
	Stream       StreamConfig
	Board        BoardConfig
	RateLimit    RateLimitConfig
	Log          LogConfig
	Worker       WorkerConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// WebSocketConfig - отдельный listener для push-хаба
type WebSocketConfig struct {
	Host       string
	Port       int
	SendBuffer int
	PingPeriod time.Duration
	WriteWait  time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisStreamsConfig - может указывать на отдельный инстанс Redis
type RedisStreamsConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CacheConfig struct {
	BoardTTL time.Duration
}

type StreamConfig struct {
	FeedBuffer       int
	MaxLen           int64
	TrimEvery        uint64
	BreakerFailures  uint32
	BreakerTimeout   time.Duration
	BreakerInterval  time.Duration
	BreakerHalfOpen  uint32
	PublishToStreams bool
}

// BoardConfig - настройки движка доски
type BoardConfig struct {
	StorageDriver     string // postgres | memory
	PreloadPastDays   int
	PreloadFutureDays int
	GuardWindow       time.Duration
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

type LogConfig struct {
	Level string
}

type WorkerConfig struct {
	Enabled          bool
	ShutdownTimeout  time.Duration
	AuthorityURL     string
	AuthorityTimeout time.Duration
	ProjectionDays   int
}

// Storage drivers
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Load reads .env from the working directory and the environment.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile reads the given env file; environment variables take precedence.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:         v.GetString("API_HOST"),
			Port:         v.GetInt("API_PORT"),
			Env:          v.GetString("API_ENV"),
			ReadTimeout:  time.Duration(v.GetInt("API_READ_TIMEOUT")) * time.Second,
			WriteTimeout: time.Duration(v.GetInt("API_WRITE_TIMEOUT")) * time.Second,
			CORSOrigins:  splitList(v.GetString("API_CORS_ORIGINS")),
		},
		WebSocket: WebSocketConfig{
			Host:       v.GetString("WS_HOST"),
			Port:       v.GetInt("WS_PORT"),
			SendBuffer: v.GetInt("WS_SEND_BUFFER"),
			PingPeriod: time.Duration(v.GetInt("WS_PING_PERIOD")) * time.Second,
			WriteWait:  time.Duration(v.GetInt("WS_WRITE_WAIT")) * time.Second,
		},
		Database: DatabaseConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			DBName:          v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxConns:        v.GetInt("DB_MAX_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: time.Duration(v.GetInt("DB_CONN_MAX_LIFETIME")) * time.Second,
			ConnMaxIdleTime: time.Duration(v.GetInt("DB_CONN_MAX_IDLE_TIME")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		RedisStreams: RedisStreamsConfig{
			Host:     v.GetString("REDIS_STREAMS_HOST"),
			Port:     v.GetInt("REDIS_STREAMS_PORT"),
			Password: v.GetString("REDIS_STREAMS_PASSWORD"),
			DB:       v.GetInt("REDIS_STREAMS_DB"),
		},
		Cache: CacheConfig{
			BoardTTL: time.Duration(v.GetInt("BOARD_CACHE_TTL")) * time.Second,
		},
		Stream: StreamConfig{
			FeedBuffer:       v.GetInt("STREAM_FEED_BUFFER"),
			MaxLen:           v.GetInt64("STREAM_MAX_LEN"),
			TrimEvery:        v.GetUint64("STREAM_TRIM_EVERY"),
			BreakerFailures:  v.GetUint32("STREAM_BREAKER_FAILURES"),
			BreakerTimeout:   time.Duration(v.GetInt("STREAM_BREAKER_TIMEOUT")) * time.Second,
			BreakerInterval:  time.Duration(v.GetInt("STREAM_BREAKER_INTERVAL")) * time.Second,
			BreakerHalfOpen:  v.GetUint32("STREAM_BREAKER_HALF_OPEN_REQUESTS"),
			PublishToStreams: v.GetBool("STREAM_PUBLISH"),
		},
		Board: BoardConfig{
			StorageDriver:     strings.ToLower(v.GetString("BOARD_STORAGE_DRIVER")),
			PreloadPastDays:   v.GetInt("BOARD_PRELOAD_PAST_DAYS"),
			PreloadFutureDays: v.GetInt("BOARD_PRELOAD_FUTURE_DAYS"),
			GuardWindow:       time.Duration(v.GetInt("BOARD_GUARD_WINDOW_MS")) * time.Millisecond,
		},
		RateLimit: RateLimitConfig{
			Enabled: v.GetBool("RATE_LIMIT_ENABLED"),
			RPS:     v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:   v.GetInt("RATE_LIMIT_BURST"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
		Worker: WorkerConfig{
			Enabled:          v.GetBool("WORKER_ENABLED"),
			ShutdownTimeout:  time.Duration(v.GetInt("WORKER_SHUTDOWN_TIMEOUT")) * time.Second,
			AuthorityURL:     v.GetString("WORKER_AUTHORITY_URL"),
			AuthorityTimeout: time.Duration(v.GetInt("WORKER_AUTHORITY_TIMEOUT")) * time.Second,
			ProjectionDays:   v.GetInt("WORKER_PROJECTION_DAYS"),
		},
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	// Set default values if not provided
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Env == "" {
		c.Server.Env = "development"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}

	if c.WebSocket.Host == "" {
		c.WebSocket.Host = c.Server.Host
	}
	if c.WebSocket.Port == 0 {
		c.WebSocket.Port = 8081
	}
	if c.WebSocket.SendBuffer == 0 {
		c.WebSocket.SendBuffer = 256
	}
	if c.WebSocket.PingPeriod == 0 {
		c.WebSocket.PingPeriod = 54 * time.Second
	}
	if c.WebSocket.WriteWait == 0 {
		c.WebSocket.WriteWait = 10 * time.Second
	}

	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}

	// стримы по умолчанию живут в том же Redis
	if c.RedisStreams.Host == "" {
		c.RedisStreams = RedisStreamsConfig(c.Redis)
	}

	if c.Cache.BoardTTL == 0 {
		c.Cache.BoardTTL = 24 * time.Hour
	}

	if c.Stream.FeedBuffer == 0 {
		c.Stream.FeedBuffer = 1024
	}
	if c.Stream.MaxLen == 0 {
		c.Stream.MaxLen = 100000
	}
	if c.Stream.TrimEvery == 0 {
		c.Stream.TrimEvery = 500
	}
	if c.Stream.BreakerFailures == 0 {
		c.Stream.BreakerFailures = 5
	}
	if c.Stream.BreakerTimeout == 0 {
		c.Stream.BreakerTimeout = 30 * time.Second
	}
	if c.Stream.BreakerInterval == 0 {
		c.Stream.BreakerInterval = time.Minute
	}
	if c.Stream.BreakerHalfOpen == 0 {
		c.Stream.BreakerHalfOpen = 1
	}

	if c.Board.StorageDriver == "" {
		c.Board.StorageDriver = StoragePostgres
	}
	if c.Board.PreloadPastDays == 0 {
		c.Board.PreloadPastDays = 7
	}
	if c.Board.PreloadFutureDays == 0 {
		c.Board.PreloadFutureDays = 30
	}
	if c.Board.GuardWindow == 0 {
		c.Board.GuardWindow = 2 * time.Second
	}

	if c.RateLimit.RPS == 0 {
		c.RateLimit.RPS = 50
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 100
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Worker.ShutdownTimeout == 0 {
		c.Worker.ShutdownTimeout = 30 * time.Second
	}
	if c.Worker.AuthorityURL == "" {
		c.Worker.AuthorityURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	if c.Worker.AuthorityTimeout == 0 {
		c.Worker.AuthorityTimeout = 10 * time.Second
	}
	if c.Worker.ProjectionDays == 0 {
		c.Worker.ProjectionDays = 62
	}
}

// Validate rejects settings the services cannot start with.
func (c *Config) Validate() error {
	switch c.Board.StorageDriver {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("unknown BOARD_STORAGE_DRIVER %q", c.Board.StorageDriver)
	}
	if c.Board.PreloadPastDays < 0 || c.Board.PreloadFutureDays < 0 {
		return fmt.Errorf("board preload days must not be negative")
	}
	if c.Server.Port == c.WebSocket.Port && c.Server.Host == c.WebSocket.Host {
		return fmt.Errorf("API and websocket listeners share %s", c.GetServerAddr())
	}
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) GetWebSocketAddr() string {
	return fmt.Sprintf("%s:%d", c.WebSocket.Host, c.WebSocket.Port)
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
