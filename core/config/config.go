package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration in a structured way.
// It is loaded once at startup and treated as immutable afterwards.
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	Whatsapp   WhatsappConfig
	Report     ReportConfig
	WorkerPool WorkerPoolConfig
	Valkey     ValkeyConfig
}

type AppConfig struct {
	Port           string
	Debug          bool
	AllowedOrigins []string
	TimeZone       string
}

type DatabaseConfig struct {
	// URL selects the networked backend when present.
	URL string
	// Path is the local single-file backend (sqlite).
	Path string
	// StatementTimeout bounds every statement the adapter executes.
	StatementTimeout time.Duration
}

type AuthConfig struct {
	JWTSecret   string
	JWTExpires  time.Duration
	AdminEmail  string
	AdminSecret string
}

type WhatsappConfig struct {
	// ClientID isolates the session directory; one process per session.
	ClientID string
	// GroupID, when set, restricts ingestion to a single group.
	GroupID string
	// DefaultAgencyID is the auto-provisioning tenant override.
	DefaultAgencyID int64
	SendConfirmations bool
	SessionDir        string
}

type ReportConfig struct {
	Enabled bool
	// Time is the daily broadcast time, HH:MM in the configured time zone.
	Time string
}

type WorkerPoolConfig struct {
	Size      int
	QueueSize int
}

type ValkeyConfig struct {
	Enabled bool
	Address string
}

// Global provides access to the loaded configuration.
var Global *Config

// Load reads configuration from .env and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	viper.AutomaticEnv()
	viper.SetDefault("APP_PORT", "3000")
	viper.SetDefault("APP_DEBUG", false)
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	viper.SetDefault("TIME_ZONE", "Africa/Douala")
	viper.SetDefault("DB_PATH", filepath.Join("storages", "livrazone.db"))
	viper.SetDefault("DB_STATEMENT_TIMEOUT", "30s")
	viper.SetDefault("JWT_EXPIRES_IN", "24h")
	viper.SetDefault("CLIENT_ID", "default")
	viper.SetDefault("SEND_CONFIRMATIONS", true)
	viper.SetDefault("REPORT_ENABLED", false)
	viper.SetDefault("REPORT_TIME", "19:00")
	viper.SetDefault("MESSAGE_WORKER_POOL_SIZE", 8)
	viper.SetDefault("MESSAGE_WORKER_QUEUE_SIZE", 500)
	viper.SetDefault("VALKEY_ENABLED", false)
	viper.SetDefault("VALKEY_ADDRESS", "localhost:6379")
	viper.SetDefault("SESSION_DIR", "storages")

	expires, err := time.ParseDuration(viper.GetString("JWT_EXPIRES_IN"))
	if err != nil {
		expires = 24 * time.Hour
	}
	stmtTimeout, err := time.ParseDuration(viper.GetString("DB_STATEMENT_TIMEOUT"))
	if err != nil {
		stmtTimeout = 30 * time.Second
	}

	cfg := &Config{
		App: AppConfig{
			Port:           viper.GetString("APP_PORT"),
			Debug:          viper.GetBool("APP_DEBUG"),
			AllowedOrigins: splitList(viper.GetString("ALLOWED_ORIGINS")),
			TimeZone:       viper.GetString("TIME_ZONE"),
		},
		Database: DatabaseConfig{
			URL:              viper.GetString("DATABASE_URL"),
			Path:             viper.GetString("DB_PATH"),
			StatementTimeout: stmtTimeout,
		},
		Auth: AuthConfig{
			JWTSecret:   viper.GetString("JWT_SECRET"),
			JWTExpires:  expires,
			AdminEmail:  viper.GetString("ADMIN_EMAIL"),
			AdminSecret: viper.GetString("ADMIN_PASSWORD"),
		},
		Whatsapp: WhatsappConfig{
			ClientID:          viper.GetString("CLIENT_ID"),
			GroupID:           viper.GetString("GROUP_ID"),
			DefaultAgencyID:   viper.GetInt64("DEFAULT_AGENCY_ID"),
			SendConfirmations: viper.GetBool("SEND_CONFIRMATIONS"),
			SessionDir:        viper.GetString("SESSION_DIR"),
		},
		Report: ReportConfig{
			Enabled: viper.GetBool("REPORT_ENABLED"),
			Time:    viper.GetString("REPORT_TIME"),
		},
		WorkerPool: WorkerPoolConfig{
			Size:      viper.GetInt("MESSAGE_WORKER_POOL_SIZE"),
			QueueSize: viper.GetInt("MESSAGE_WORKER_QUEUE_SIZE"),
		},
		Valkey: ValkeyConfig{
			Enabled: viper.GetBool("VALKEY_ENABLED"),
			Address: viper.GetString("VALKEY_ADDRESS"),
		},
	}

	Global = cfg
	return cfg, nil
}

// UsesPostgres reports whether the networked backend is selected.
func (c *Config) UsesPostgres() bool {
	return c.Database.URL != ""
}

// Location resolves the configured time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
