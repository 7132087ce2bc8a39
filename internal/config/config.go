package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

// Store backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
)

// Config holds all configuration
type Config struct {
	HTTPAddr   string
	Log        LogConfig
	Store      StoreConfig
	MySQL      MySQLConfig
	Redis      RedisConfig
	SQLite     SQLiteConfig
	Security   SecurityConfig
	Handshake  HandshakeConfig
	WSEnabled  bool
	AgentCache int

	// SweepIntervalSec is how often expired store entries are purged
	SweepIntervalSec int
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string // text or json
}

// StoreConfig selects the key-value backend
type StoreConfig struct {
	Backend string
}

// MySQLConfig holds MySQL configuration
type MySQLConfig struct {
	DSN     string
	Migrate bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SQLiteConfig holds the SQLite database path
type SQLiteConfig struct {
	Path string
}

// SecurityConfig holds registry key material
type SecurityConfig struct {
	SigningKey     string // hex Ed25519 seed; generated at startup when empty
	AdminTokenHash string // bcrypt hash of the admin token
	SessionIssuer  string
}

// HandshakeConfig holds handshake protocol tuning
type HandshakeConfig struct {
	ReplayMaxAgeSec        int
	SessionTTLSec          int
	ChallengeTTLSec        int
	RequireIssuedChallenge bool
	RatePerSec             float64
	RateBurst              int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		},
		MySQL: MySQLConfig{
			DSN:     getEnv("MYSQL_DSN", ""),
			Migrate: getEnvBool("MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASS", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "agentmesh.db"),
		},
		Security: SecurityConfig{
			SigningKey:     getEnv("SIGNING_KEY", ""),
			AdminTokenHash: getEnv("ADMIN_TOKEN_HASH", ""),
			SessionIssuer:  getEnv("SESSION_ISSUER", "agentmesh"),
		},
		Handshake: HandshakeConfig{
			ReplayMaxAgeSec:        getEnvInt("HANDSHAKE_REPLAY_MAX_AGE_SEC", 300),
			SessionTTLSec:          getEnvInt("HANDSHAKE_SESSION_TTL_SEC", 3600),
			ChallengeTTLSec:        getEnvInt("HANDSHAKE_CHALLENGE_TTL_SEC", 3600),
			RequireIssuedChallenge: getEnvBool("HANDSHAKE_REQUIRE_ISSUED_CHALLENGE", false),
			RatePerSec:             getEnvFloat("HANDSHAKE_RATE_PER_SEC", 5),
			RateBurst:              getEnvInt("HANDSHAKE_RATE_BURST", 20),
		},
		WSEnabled:  getEnvBool("WS_ENABLED", true),
		AgentCache: getEnvInt("AGENT_CACHE_SIZE", 1024),

		SweepIntervalSec: getEnvInt("STORE_SWEEP_INTERVAL_SEC", 60),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks backend-specific required fields and numeric ranges
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required for redis backend")
		}
	case BackendSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("SQLITE_PATH is required for sqlite backend")
		}
	case BackendMySQL:
		if c.MySQL.DSN == "" {
			return fmt.Errorf("MYSQL_DSN is required for mysql backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}

	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Log.Format)
	}
	if c.Handshake.ReplayMaxAgeSec <= 0 {
		return fmt.Errorf("HANDSHAKE_REPLAY_MAX_AGE_SEC must be positive")
	}
	if c.Handshake.SessionTTLSec <= 0 {
		return fmt.Errorf("HANDSHAKE_SESSION_TTL_SEC must be positive")
	}
	if c.Handshake.ChallengeTTLSec <= 0 {
		return fmt.Errorf("HANDSHAKE_CHALLENGE_TTL_SEC must be positive")
	}
	if c.AgentCache <= 0 {
		return fmt.Errorf("AGENT_CACHE_SIZE must be positive")
	}
	if c.SweepIntervalSec <= 0 {
		return fmt.Errorf("STORE_SWEEP_INTERVAL_SEC must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "1" || value == "true"
	}
	return defaultValue
}

// LoadFromINI loads configuration from INI file with environment variable override
func LoadFromINI(iniPath string) (*Config, error) {
	cfgFile, err := ini.Load(iniPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load INI file: %w", err)
	}

	// Priority: ENV > INI > default
	getValue := func(envKey, iniSection, iniKey, defaultValue string) string {
		if value := os.Getenv(envKey); value != "" {
			return value
		}
		if value := cfgFile.Section(iniSection).Key(iniKey).String(); value != "" {
			return value
		}
		return defaultValue
	}

	getValueInt := func(envKey, iniSection, iniKey string, defaultValue int) int {
		if value := os.Getenv(envKey); value != "" {
			if intValue, err := strconv.Atoi(value); err == nil {
				return intValue
			}
		}
		if cfgFile.Section(iniSection).HasKey(iniKey) {
			if value, err := cfgFile.Section(iniSection).Key(iniKey).Int(); err == nil {
				return value
			}
		}
		return defaultValue
	}

	getValueFloat := func(envKey, iniSection, iniKey string, defaultValue float64) float64 {
		if value := os.Getenv(envKey); value != "" {
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				return f
			}
		}
		if cfgFile.Section(iniSection).HasKey(iniKey) {
			if value, err := cfgFile.Section(iniSection).Key(iniKey).Float64(); err == nil {
				return value
			}
		}
		return defaultValue
	}

	getValueBool := func(envKey, iniSection, iniKey string, defaultValue bool) bool {
		if value := os.Getenv(envKey); value != "" {
			return value == "1" || value == "true"
		}
		if value, err := cfgFile.Section(iniSection).Key(iniKey).Bool(); err == nil {
			return value
		}
		return defaultValue
	}

	cfg := &Config{
		HTTPAddr: getValue("HTTP_ADDR", "http", "addr", ":8080"),
		Log: LogConfig{
			Level:  getValue("LOG_LEVEL", "log", "level", "info"),
			Format: getValue("LOG_FORMAT", "log", "format", "text"),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getValue("STORE_BACKEND", "store", "backend", BackendMemory)),
		},
		MySQL: MySQLConfig{
			DSN:     getValue("MYSQL_DSN", "mysql", "dsn", ""),
			Migrate: getValueBool("MIGRATE", "mysql", "migrate", true),
		},
		Redis: RedisConfig{
			Addr:     getValue("REDIS_ADDR", "redis", "addr", "localhost:6379"),
			Password: getValue("REDIS_PASS", "redis", "pass", ""),
			DB:       getValueInt("REDIS_DB", "redis", "db", 0),
		},
		SQLite: SQLiteConfig{
			Path: getValue("SQLITE_PATH", "sqlite", "path", "agentmesh.db"),
		},
		Security: SecurityConfig{
			SigningKey:     getValue("SIGNING_KEY", "security", "signing_key", ""),
			AdminTokenHash: getValue("ADMIN_TOKEN_HASH", "security", "admin_token_hash", ""),
			SessionIssuer:  getValue("SESSION_ISSUER", "security", "session_issuer", "agentmesh"),
		},
		Handshake: HandshakeConfig{
			ReplayMaxAgeSec:        getValueInt("HANDSHAKE_REPLAY_MAX_AGE_SEC", "handshake", "replay_max_age_sec", 300),
			SessionTTLSec:          getValueInt("HANDSHAKE_SESSION_TTL_SEC", "handshake", "session_ttl_sec", 3600),
			ChallengeTTLSec:        getValueInt("HANDSHAKE_CHALLENGE_TTL_SEC", "handshake", "challenge_ttl_sec", 3600),
			RequireIssuedChallenge: getValueBool("HANDSHAKE_REQUIRE_ISSUED_CHALLENGE", "handshake", "require_issued_challenge", false),
			RatePerSec:             getValueFloat("HANDSHAKE_RATE_PER_SEC", "handshake", "rate_per_sec", 5),
			RateBurst:              getValueInt("HANDSHAKE_RATE_BURST", "handshake", "rate_burst", 20),
		},
		WSEnabled:  getValueBool("WS_ENABLED", "ws", "enabled", true),
		AgentCache: getValueInt("AGENT_CACHE_SIZE", "registry", "agent_cache_size", 1024),

		SweepIntervalSec: getValueInt("STORE_SWEEP_INTERVAL_SEC", "store", "sweep_interval_sec", 60),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
