package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Storage  StorageConfig
	Email    EmailConfig
	Events   EventsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	ShutdownTimeout    int
	CORSAllowedOrigins string // comma-separated, or "*" for all (e.g. http://localhost:3000,http://localhost:3001)
}

// DatabaseConfig holds persistence settings.
type DatabaseConfig struct {
	Driver   string // postgres (default) or memory
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/eventforms?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	Migrate  bool
}

// RedisConfig holds Redis connection settings. An empty Addr disables the email queue.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig holds admin authentication settings.
type AuthConfig struct {
	JWTSecret         string
	JWTExpireHours    int
	AdminUsername     string
	AdminPassword     string
	AdminPasswordHash string // bcrypt; takes precedence over AdminPassword
	AllowQueryAdmin   bool   // accept the legacy ?admin=1 flag
}

// StorageConfig holds flyer storage settings. S3 is used when S3Bucket is set.
type StorageConfig struct {
	UploadDir     string
	MaxFlyerBytes int64
	S3Bucket      string
	S3Region      string
	S3AccessKeyID string
	S3SecretKey   string
	S3PublicRead  bool
}

// EmailConfig holds SMTP settings. An empty SMTPHost disables confirmation emails.
type EmailConfig struct {
	FromAddress string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
	AppURL      string // base URL of the web client, used in edit links
}

// EventsConfig holds admission settings.
type EventsConfig struct {
	TimeZone         string // IANA name; empty means the server's local zone
	ParticipantDedup string // none or email
}

// From returns the formatted sender address.
func (c EmailConfig) From() string {
	if c.FromName == "" {
		return c.FromAddress
	}
	return fmt.Sprintf("%q <%s>", c.FromName, c.FromAddress)
}

// Enabled reports whether SMTP is configured.
func (c EmailConfig) Enabled() bool { return c.SMTPHost != "" }

// Location resolves the event time zone.
func (c EventsConfig) Location() (*time.Location, error) {
	if c.TimeZone == "" || strings.EqualFold(c.TimeZone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.TimeZone)
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
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
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			ShutdownTimeout:    getEnvInt("SHUTDOWN_TIMEOUT_SEC", 10),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "eventforms"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 10),
			Migrate:  getEnvBool("DB_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("JWT_SECRET", "change-me-in-production"),
			JWTExpireHours:    getEnvInt("JWT_EXPIRE_HOURS", 24),
			AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
			AdminPassword:     getEnv("ADMIN_PASSWORD", ""),
			AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
			AllowQueryAdmin:   getEnvBool("ALLOW_QUERY_ADMIN", false),
		},
		Storage: StorageConfig{
			UploadDir:     getEnv("UPLOAD_DIR", "uploads"),
			MaxFlyerBytes: int64(getEnvInt("MAX_FLYER_MB", 10)) * 1024 * 1024,
			S3Bucket:      getEnv("AWS_S3_FLYERS_BUCKET", ""),
			S3Region:      getEnv("AWS_REGION", "us-east-1"),
			S3AccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
			S3SecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3PublicRead:  getEnvBool("AWS_S3_PUBLIC_READ", true),
		},
		Email: EmailConfig{
			FromAddress: getEnv("SMTP_FROM", "noreply@example.com"),
			FromName:    getEnv("SMTP_FROM_NAME", "Event Registration"),
			SMTPHost:    getEnv("SMTP_HOST", ""),
			SMTPPort:    getEnvInt("SMTP_PORT", 587),
			SMTPUser:    getEnv("SMTP_USER", ""),
			SMTPPass:    getEnv("SMTP_PASS", ""),
			AppURL:      strings.TrimRight(getEnv("APP_URL", "http://localhost:3000"), "/"),
		},
		Events: EventsConfig{
			TimeZone:         getEnv("EVENT_TIMEZONE", ""),
			ParticipantDedup: strings.ToLower(getEnv("PARTICIPANT_DEDUP", "none")),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.Database.Driver)
	}
	switch c.Events.ParticipantDedup {
	case "none", "email":
	default:
		return fmt.Errorf("PARTICIPANT_DEDUP must be \"none\" or \"email\", got %q", c.Events.ParticipantDedup)
	}
	if _, err := c.Events.Location(); err != nil {
		return fmt.Errorf("EVENT_TIMEZONE: %w", err)
	}
	if c.Storage.MaxFlyerBytes <= 0 {
		return fmt.Errorf("MAX_FLYER_MB must be positive")
	}
	return nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
