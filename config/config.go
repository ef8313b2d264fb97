package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Live     LiveConfig
	Zego     ZegoConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// LiveConfig holds live shopping policy settings.
type LiveConfig struct {
	PremiumMaxConcurrent int // max concurrent lives on the premium plan
	CatalogCap           int // max featured products per session
	PresenceTTLSec       int // heartbeat staleness before a viewer is auto-released
	JoinDedupeSec        int // window in which duplicate joins are absorbed
	ReactionsPerMinute   int // per-viewer reaction throughput bound
	RecentMessages       int // default window for seeding a joining viewer
}

// ZegoConfig holds ZEGOCLOUD RTC token credentials.
type ZegoConfig struct {
	AppID          uint32
	ServerSecret   string // 32 characters
	TokenExpireSec int64
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	zegoAppID, _ := strconv.ParseUint(getEnv("ZEGO_APP_ID", "0"), 10, 32)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "bazaarlive"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		Live: LiveConfig{
			PremiumMaxConcurrent: getEnvInt("LIVE_PREMIUM_MAX_CONCURRENT", 2),
			CatalogCap:           getEnvInt("LIVE_CATALOG_CAP", 50),
			PresenceTTLSec:       getEnvInt("LIVE_PRESENCE_TTL_SEC", 90),
			JoinDedupeSec:        getEnvInt("LIVE_JOIN_DEDUPE_SEC", 10),
			ReactionsPerMinute:   getEnvInt("LIVE_REACTIONS_PER_MINUTE", 60),
			RecentMessages:       getEnvInt("LIVE_RECENT_MESSAGES", 50),
		},
		Zego: ZegoConfig{
			AppID:          uint32(zegoAppID),
			ServerSecret:   getEnv("ZEGO_SERVER_SECRET", ""),
			TokenExpireSec: int64(getEnvInt("ZEGO_TOKEN_EXPIRE_SEC", 3600)),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
