package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env  string
	Port int

	Database      DatabaseConfig
	Redis         RedisConfig
	Bot           BotConfig
	School        SchoolConfig
	Log           LogConfig
	Sessions      SessionConfig
	Notifications NotificationConfig
	Invites       InviteConfig
	Exports       ExportConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// BotConfig describes the chat transport endpoint and identity.
type BotConfig struct {
	Token            string
	Username         string
	APIBaseURL       string
	WebhookPath      string
	DirectorUsername string
	MaxFileSizeBytes int64
	RequestTimeout   time.Duration
}

// SchoolConfig points the informational scraper at the school website.
type SchoolConfig struct {
	SiteURL       string
	SchedulePath  string
	ScrapeTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// SessionConfig selects the conversation state backend.
type SessionConfig struct {
	Backend string // "memory" or "redis"
	TTL     time.Duration
}

// NotificationConfig tunes the background delivery queue.
type NotificationConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// InviteConfig governs signed teacher-invite deep links.
type InviteConfig struct {
	Secret string
	TTL    time.Duration
}

// ExportConfig toggles the completed-works export command.
type ExportConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	maxFileSize := v.GetInt64("BOT_MAX_FILE_SIZE")
	if maxFileSize <= 0 {
		maxFileSize = 20 * 1024 * 1024
	}
	cfg.Bot = BotConfig{
		Token:            v.GetString("BOT_TOKEN"),
		Username:         v.GetString("BOT_USERNAME"),
		APIBaseURL:       v.GetString("BOT_API_BASE_URL"),
		WebhookPath:      v.GetString("BOT_WEBHOOK_PATH"),
		DirectorUsername: v.GetString("DIRECTOR_USERNAME"),
		MaxFileSizeBytes: maxFileSize,
		RequestTimeout:   parseDuration(v.GetString("BOT_REQUEST_TIMEOUT"), 10*time.Second),
	}

	cfg.School = SchoolConfig{
		SiteURL:       v.GetString("SCHOOL_SITE_URL"),
		SchedulePath:  v.GetString("SCHOOL_SCHEDULE_PATH"),
		ScrapeTimeout: parseDuration(v.GetString("SCHOOL_SCRAPE_TIMEOUT"), 20*time.Second),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Sessions = SessionConfig{
		Backend: v.GetString("SESSION_BACKEND"),
		TTL:     parseDuration(v.GetString("SESSION_TTL"), 24*time.Hour),
	}

	cfg.Notifications = NotificationConfig{
		Workers:    v.GetInt("NOTIFY_WORKERS"),
		BufferSize: v.GetInt("NOTIFY_BUFFER_SIZE"),
		MaxRetries: v.GetInt("NOTIFY_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("NOTIFY_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Invites = InviteConfig{
		Secret: v.GetString("INVITE_SECRET"),
		TTL:    parseDuration(v.GetString("INVITE_TTL"), 7*24*time.Hour),
	}

	cfg.Exports = ExportConfig{
		Enabled: v.GetBool("ENABLE_EXPORTS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "schoolbot")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("BOT_TOKEN", "")
	v.SetDefault("BOT_USERNAME", "school_assignments_bot")
	v.SetDefault("BOT_API_BASE_URL", "https://api.telegram.org")
	v.SetDefault("BOT_WEBHOOK_PATH", "/webhook")
	v.SetDefault("DIRECTOR_USERNAME", "")
	v.SetDefault("BOT_MAX_FILE_SIZE", 20*1024*1024)
	v.SetDefault("BOT_REQUEST_TIMEOUT", "10s")

	v.SetDefault("SCHOOL_SITE_URL", "")
	v.SetDefault("SCHOOL_SCHEDULE_PATH", "glavnoe/raspisanie/")
	v.SetDefault("SCHOOL_SCRAPE_TIMEOUT", "20s")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SESSION_BACKEND", "memory")
	v.SetDefault("SESSION_TTL", "24h")

	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_BUFFER_SIZE", 64)
	v.SetDefault("NOTIFY_MAX_RETRIES", 3)
	v.SetDefault("NOTIFY_RETRY_DELAY", "5s")

	v.SetDefault("INVITE_SECRET", "dev_invite_secret")
	v.SetDefault("INVITE_TTL", "168h")

	v.SetDefault("ENABLE_EXPORTS", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
