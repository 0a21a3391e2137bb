package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string
	LogLevel string
	Redis    RedisConfig
	DB       DBConfig
	Server   ServerConfig
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type ServerConfig struct {
	HTTPPort       string
	GRPCHealthPort string
	RateLimit      string
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// LoadConfig reads an optional .env file and then the process environment.
// The second return value reports whether a .env file was found.
func LoadConfig() (Config, bool) {
	envLoaded := godotenv.Load() == nil

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	maxOpen, _ := strconv.Atoi(getEnv("POS_DB_MAX_OPEN_CONNS", "20"))
	maxIdle, _ := strconv.Atoi(getEnv("POS_DB_MAX_IDLE_CONNS", "5"))
	lifetime, err := time.ParseDuration(getEnv("POS_DB_CONN_MAX_LIFETIME", "1h"))
	if err != nil {
		lifetime = time.Hour
	}
	timeout, err := time.ParseDuration(getEnv("REQUEST_TIMEOUT", "10s"))
	if err != nil {
		timeout = 10 * time.Second
	}

	return Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		DB: DBConfig{
			DSN:             getEnv("POS_DSN", ""),
			MaxOpenConns:    maxOpen,
			MaxIdleConns:    maxIdle,
			ConnMaxLifetime: lifetime,
		},
		Server: ServerConfig{
			HTTPPort:       getEnv("HTTP_PORT", "8080"),
			GRPCHealthPort: getEnv("GRPC_HEALTH_PORT", "50053"),
			RateLimit:      getEnv("RATE_LIMIT", "120-M"),
			RequestTimeout: timeout,
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		},
	}, envLoaded
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
