package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Gateway kinds understood by the web front end.
const (
	GatewayREST  = "rest"
	GatewayLocal = "local"
)

// Config holds all configuration for the application
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Worker   WorkerConfig
	Web      WebConfig

	// EnvFileLoaded is false when neither ../.env nor .env was found.
	EnvFileLoaded bool
}

// AppConfig holds behavior shared by every binary
type AppConfig struct {
	Mode                   string
	StartingCoins          int
	LeaderboardExcludeZero bool
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	DB       int
}

// ServerConfig holds backend API server configuration
type ServerConfig struct {
	Port int
}

// WorkerConfig sizes the change publication pool
type WorkerConfig struct {
	Count     int
	QueueSize int
}

// WebConfig holds front end configuration
type WebConfig struct {
	Port               int
	Gateway            string
	BackendURL         string
	PollInterval       time.Duration
	IncrementalUpdates bool
	SessionIdle        time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	loaded := true
	// Load .env file from root directory first, current directory as fallback
	if err := godotenv.Load("../.env"); err != nil {
		if err := godotenv.Load(); err != nil {
			loaded = false
		}
	}

	cfg := &Config{
		App: AppConfig{
			Mode:                   getEnv("APP_MODE", "dev"),
			StartingCoins:          getEnvAsInt("STARTING_COINS", 100),
			LeaderboardExcludeZero: getEnvAsBool("LEADERBOARD_EXCLUDE_ZERO", true),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "pizza_challenge"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Username: getEnv("REDIS_USERNAME", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Server: ServerConfig{
			Port: getEnvAsInt("BACKEND_PORT", 5000),
		},
		Worker: WorkerConfig{
			Count:     getEnvAsInt("WORKER_COUNT", 4),
			QueueSize: getEnvAsInt("WORKER_QUEUE_SIZE", 256),
		},
		Web: WebConfig{
			Port:               getEnvAsInt("WEB_PORT", 3000),
			Gateway:            strings.ToLower(getEnv("WEB_GATEWAY", GatewayREST)),
			BackendURL:         strings.TrimRight(getEnv("WEB_BACKEND_URL", "http://localhost:5000"), "/"),
			PollInterval:       getEnvAsDuration("WEB_POLL_INTERVAL", 5*time.Second),
			IncrementalUpdates: getEnvAsBool("WEB_INCREMENTAL_UPDATES", false),
			SessionIdle:        getEnvAsDuration("WEB_SESSION_IDLE", 30*time.Minute),
		},
		EnvFileLoaded: loaded,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no binary can run with
func (c *Config) Validate() error {
	if c.App.StartingCoins < 0 {
		return fmt.Errorf("STARTING_COINS must be >= 0, got %d", c.App.StartingCoins)
	}
	if c.Web.Gateway != GatewayREST && c.Web.Gateway != GatewayLocal {
		return fmt.Errorf("WEB_GATEWAY must be %q or %q, got %q", GatewayREST, GatewayLocal, c.Web.Gateway)
	}
	if c.Web.PollInterval <= 0 {
		return fmt.Errorf("WEB_POLL_INTERVAL must be positive")
	}
	if c.Worker.Count <= 0 || c.Worker.QueueSize <= 0 {
		return fmt.Errorf("WORKER_COUNT and WORKER_QUEUE_SIZE must be positive")
	}
	return nil
}

// GetDSN returns the PostgreSQL DSN
func (c *Config) GetDSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
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

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}
