package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Database  DatabaseConfig
	JWT       JWTConfig
	Server    ServerConfig
	CORS      CORSConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Relay     RelayConfig
	Auth      AuthConfig
	Log       LogConfig
}

type DatabaseConfig struct {
	Driver   string // "mysql" or "memory"
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

type JWTConfig struct {
	Secret      string
	TokenExpiry time.Duration
}

type ServerConfig struct {
	Port    string
	GinMode string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// RedisConfig is optional. An empty Addr disables rate limiting.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
}

type RelayConfig struct {
	// PollInterval bounds how long a session waits for an inbound message
	// before re-checking the room's expiry.
	PollInterval     time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	JoinTTL          time.Duration
	SweepInterval    time.Duration
}

type AuthConfig struct {
	// MasterPassword seeds the owner credential on first start.
	MasterPassword string
}

type LogConfig struct {
	Level string
}

func LoadConfig() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "mysql"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "3306"),
			User:     getEnv("DB_USER", "root"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "room_relay"),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "your-jwt-secret-key"),
			TokenExpiry: parseDuration(getEnv("TOKEN_EXPIRY", "720h"), 720*time.Hour),
		},
		Server: ServerConfig{
			Port:    getEnv("PORT", "8080"),
			GinMode: getEnv("GIN_MODE", "debug"),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseOrigins(getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", ""),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        parseInt(getEnv("REDIS_DB", "0"), 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "relay:"),
		},
		RateLimit: RateLimitConfig{
			MaxRequests: parseInt(getEnv("RATE_LIMIT_MAX", "10"), 10),
			Window:      parseDuration(getEnv("RATE_LIMIT_WINDOW", "1m"), time.Minute),
		},
		Relay: RelayConfig{
			PollInterval:     parseDuration(getEnv("RELAY_POLL_INTERVAL", "1s"), time.Second),
			HandshakeTimeout: parseDuration(getEnv("RELAY_HANDSHAKE_TIMEOUT", "10s"), 10*time.Second),
			WriteTimeout:     parseDuration(getEnv("RELAY_WRITE_TIMEOUT", "10s"), 10*time.Second),
			JoinTTL:          parseDuration(getEnv("JOIN_TTL", "24h"), 24*time.Hour),
			SweepInterval:    parseDuration(getEnv("EXPIRY_SWEEP_INTERVAL", "30s"), 30*time.Second),
		},
		Auth: AuthConfig{
			MasterPassword: getEnv("MASTER_PASSWORD", ""),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	return config
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration returns fallback for malformed or non-positive values.
func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil || duration <= 0 {
		logrus.Warnf("Invalid duration format '%s', using default %s", s, fallback)
		return fallback
	}
	return duration
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		logrus.Warnf("Invalid integer '%s', using default %d", s, fallback)
		return fallback
	}
	return n
}

func parseOrigins(s string) []string {
	origins := []string{}
	for _, origin := range strings.Split(s, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
