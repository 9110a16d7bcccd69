package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Database      DatabaseConfig
	Redis         RedisConfig
	Auth          AuthConfig
	Server        ServerConfig
	Docker        DockerConfig
	Telegram      TelegramConfig
	Slack         SlackConfig
	Notifications NotificationsConfig
	SelfHosted    bool
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// AuthConfig holds operator authentication settings.
type AuthConfig struct {
	JWTSecret    string //nolint:gosec // G117: JWT signing secret config
	PasswordHash string //nolint:gosec // G117: argon2id operator password hash
	TokenTTL     time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// DockerConfig holds container runtime settings.
type DockerConfig struct {
	Host         string
	ImageDefault string
	CPULimit     string
	MemLimit     string
}

// TelegramConfig holds Telegram notification settings.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// SlackConfig holds Slack notification settings.
type SlackConfig struct {
	BotToken  string
	ChannelID string
}

// NotificationsConfig gates notification delivery per category.
type NotificationsConfig struct {
	Desktop    bool
	OnWaiting  bool
	OnComplete bool
	OnError    bool
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// sensitive values (JWT secret, DB password) must be set explicitly.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("VIGIL_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("VIGIL_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("VIGIL_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	tokenTTL, err := getEnvDuration("VIGIL_AUTH_TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("VIGIL_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("VIGIL_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	selfHosted, err := getEnvBool("VIGIL_SELF_HOSTED", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	notifyDesktop, err := getEnvBool("VIGIL_NOTIFY_DESKTOP", true)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	notifyWaiting, err := getEnvBool("VIGIL_NOTIFY_ON_WAITING", true)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	notifyComplete, err := getEnvBool("VIGIL_NOTIFY_ON_COMPLETE", true)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	notifyError, err := getEnvBool("VIGIL_NOTIFY_ON_ERROR", true)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("VIGIL_CORS_ORIGINS", []string{"http://localhost:5173"})

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("VIGIL_DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("VIGIL_DB_USER", "vigil"),
			Password: getEnv("VIGIL_DB_PASSWORD", ""),
			DBName:   getEnv("VIGIL_DB_NAME", "vigil_dev"),
			SSLMode:  getEnv("VIGIL_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("VIGIL_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("VIGIL_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret:    getEnv("VIGIL_JWT_SECRET", ""),
			PasswordHash: getEnv("VIGIL_PASSWORD_HASH", ""),
			TokenTTL:     tokenTTL,
		},
		Server: ServerConfig{
			Addr:         getEnv("VIGIL_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  corsOrigins,
		},
		Docker: DockerConfig{
			Host:         getEnv("VIGIL_DOCKER_HOST", "unix:///var/run/docker.sock"),
			ImageDefault: getEnv("VIGIL_DOCKER_IMAGE_DEFAULT", "ghcr.io/gosuda/vigil-agent:latest"),
			CPULimit:     getEnv("VIGIL_DOCKER_CPU_LIMIT", "2"),
			MemLimit:     getEnv("VIGIL_DOCKER_MEM_LIMIT", "2g"),
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("VIGIL_TELEGRAM_BOT_TOKEN", ""),
			ChatID:   getEnv("VIGIL_TELEGRAM_CHAT_ID", ""),
		},
		Slack: SlackConfig{
			BotToken:  getEnv("VIGIL_SLACK_BOT_TOKEN", ""),
			ChannelID: getEnv("VIGIL_SLACK_CHANNEL_ID", ""),
		},
		Notifications: NotificationsConfig{
			Desktop:    notifyDesktop,
			OnWaiting:  notifyWaiting,
			OnComplete: notifyComplete,
			OnError:    notifyError,
		},
		SelfHosted: selfHosted,
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// JWT secret is required (no insecure default).
	if c.Auth.JWTSecret == "" {
		return errors.New("VIGIL_JWT_SECRET is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return errors.New("VIGIL_JWT_SECRET must be at least 32 characters")
	}
	if c.Auth.PasswordHash == "" {
		return errors.New("VIGIL_PASSWORD_HASH is required")
	}

	// DB SSL mode warning for non-self-hosted deployments.
	if c.Database.SSLMode == "disable" && !c.SelfHosted {
		log.Warn().Msg("VIGIL_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
	}

	// Telegram and Slack need both halves of their configuration.
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return errors.New("VIGIL_TELEGRAM_BOT_TOKEN and VIGIL_TELEGRAM_CHAT_ID must be set together")
	}
	if (c.Slack.BotToken == "") != (c.Slack.ChannelID == "") {
		return errors.New("VIGIL_SLACK_BOT_TOKEN and VIGIL_SLACK_CHANNEL_ID must be set together")
	}

	// Bounds checks.
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("VIGIL_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("VIGIL_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("VIGIL_AUTH_TOKEN_TTL must be positive, got %s", c.Auth.TokenTTL)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("VIGIL_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("VIGIL_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
