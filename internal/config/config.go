package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/taskpilot/backend/domain"
)

// Config aggregates all runtime settings required by the application. It is
// built once at startup and injected into every component; nothing reads the
// process environment after Load returns.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Telegram    TelegramConfig
	Mail        MailConfig
	Calendar    CalendarConfig
	Analysis    AnalysisConfig
	Cron        CronConfig
	Inbox       InboxConfig
	Backup      BackupConfig
	Tasks       TasksConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
}

type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type TelegramConfig struct {
	Token         string
	WebhookSecret string
	ChatID        int64
}

// MailAccount maps one watched mailbox to its stored OAuth credential file.
type MailAccount struct {
	Email       string `json:"email"`
	Credentials string `json:"credentials"`
}

type MailConfig struct {
	Accounts  []MailAccount
	TopicName string
}

type CalendarConfig struct {
	CredentialsJSON []byte
	CalendarID      string
}

type AnalysisConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
}

type CronConfig struct {
	Token    string
	Timezone string
}

type InboxConfig struct {
	Path          string
	DrainInterval time.Duration
	BatchSize     int
	MaxRetries    int
}

type BackupConfig struct {
	Directory     string
	RetentionDays int
}

type TasksConfig struct {
	SoftCap int
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables (optionally .env),
// applies defaults for the tunables, and fails fast when a required secret
// is missing or malformed.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "taskpilot"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:         getString("SERVER_HOST", "0.0.0.0"),
			Port:         getString("SERVER_PORT", "8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "taskpilot_db"),
			User:            getString("DB_USER", "taskpilot_user"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			Issuer: getString("JWT_ISSUER", "taskpilot"),
		},
		Telegram: TelegramConfig{
			Token:         os.Getenv("TELEGRAM_TOKEN"),
			WebhookSecret: os.Getenv("TELEGRAM_WEBHOOK_SECRET"),
			ChatID:        getInt64("TELEGRAM_CHAT_ID", 0),
		},
		Mail: MailConfig{
			TopicName: os.Getenv("GMAIL_TOPIC_NAME"),
		},
		Calendar: CalendarConfig{
			CalendarID: getString("CALENDAR_ID", "primary"),
		},
		Analysis: AnalysisConfig{
			APIKey:      os.Getenv("GEMINI_API_KEY"),
			Model:       getString("GEMINI_MODEL", "gemini-1.5-pro-latest"),
			BaseURL:     getString("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			Timeout:     getDuration("GEMINI_TIMEOUT", 30*time.Second),
			MaxAttempts: getInt("GEMINI_MAX_ATTEMPTS", 3),
			BaseDelay:   getDuration("GEMINI_BASE_DELAY", time.Second),
		},
		Cron: CronConfig{
			Token:    os.Getenv("CRON_TOKEN"),
			Timezone: getString("TIMEZONE", "America/Mexico_City"),
		},
		Inbox: InboxConfig{
			Path:          getString("INBOX_PATH", "./data/inbox.db"),
			DrainInterval: getDuration("INBOX_DRAIN_INTERVAL", 5*time.Second),
			BatchSize:     getInt("INBOX_BATCH_SIZE", 50),
			MaxRetries:    getInt("INBOX_MAX_RETRIES", 3),
		},
		Backup: BackupConfig{
			Directory:     getString("BACKUP_DIRECTORY", "./backups"),
			RetentionDays: getInt("BACKUP_RETENTION_DAYS", 7),
		},
		Tasks: TasksConfig{
			SoftCap: getInt("MAX_TASKS_LIMIT", 10000),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}

	if err := cfg.loadMailAccounts(os.Getenv("GMAIL_ACCOUNTS_JSON")); err != nil {
		return nil, err
	}
	if err := cfg.loadCalendarCredentials(os.Getenv("CALENDAR_CREDENTIALS_JSON")); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadMailAccounts(raw string) error {
	if raw == "" {
		return domain.NewError(domain.ErrCodeConfig, "GMAIL_ACCOUNTS_JSON is required")
	}
	var wrapper struct {
		Accounts []MailAccount `json:"accounts"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapper); err != nil {
		return domain.WrapError(domain.ErrCodeConfig, "GMAIL_ACCOUNTS_JSON is not valid JSON", err)
	}
	if len(wrapper.Accounts) == 0 {
		return domain.NewError(domain.ErrCodeConfig, `GMAIL_ACCOUNTS_JSON must contain an "accounts" list`)
	}
	c.Mail.Accounts = wrapper.Accounts
	return nil
}

func (c *Config) loadCalendarCredentials(raw string) error {
	if raw == "" {
		return domain.NewError(domain.ErrCodeConfig, "CALENDAR_CREDENTIALS_JSON is required")
	}
	if !json.Valid([]byte(raw)) {
		return domain.NewError(domain.ErrCodeConfig, "CALENDAR_CREDENTIALS_JSON is not valid JSON")
	}
	c.Calendar.CredentialsJSON = []byte(raw)
	return nil
}

func (c *Config) validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"TELEGRAM_TOKEN", c.Telegram.Token},
		{"TELEGRAM_WEBHOOK_SECRET", c.Telegram.WebhookSecret},
		{"GEMINI_API_KEY", c.Analysis.APIKey},
		{"CRON_TOKEN", c.Cron.Token},
	}
	for _, r := range required {
		if r.value == "" {
			return domain.NewError(domain.ErrCodeConfig, r.name+" is required")
		}
	}
	if _, err := time.LoadLocation(c.Cron.Timezone); err != nil {
		return domain.WrapError(domain.ErrCodeConfig, "TIMEZONE is not a valid IANA zone", err)
	}
	return nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Location resolves the configured digest timezone. Validity is checked at
// load time, so the fallback only guards direct struct construction in tests.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Cron.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
