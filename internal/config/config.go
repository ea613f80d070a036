package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	MinCheckIntervalMinutes = 5
	MaxCheckIntervalMinutes = 60
	checkIntervalStep       = 5
)

// Config represents the complete application configuration
type Config struct {
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Quotes   QuotesConfig   `mapstructure:"quotes"`
	Email    EmailConfig    `mapstructure:"email"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// MonitorConfig holds alerting behavior configuration
type MonitorConfig struct {
	Threshold            float64 `mapstructure:"threshold"` // percent
	CooldownMinutes      int     `mapstructure:"cooldown_minutes"`
	CheckIntervalMinutes int     `mapstructure:"check_interval_minutes"`
	AssetsFile           string  `mapstructure:"assets_file"`
	Timezone             string  `mapstructure:"timezone"`
	SkipStocksOnWeekend  bool    `mapstructure:"skip_stocks_on_weekend"`
}

// QuotesConfig holds quotes provider configuration
type QuotesConfig struct {
	BaseURLs            []string      `mapstructure:"base_urls"`
	Timeout             time.Duration `mapstructure:"timeout"`
	InitialLookbackDays int           `mapstructure:"initial_lookback_days"`
	MaxLookbackDays     int           `mapstructure:"max_lookback_days"`
	PacingDelay         time.Duration `mapstructure:"pacing_delay"`
	UserAgent           string        `mapstructure:"user_agent"`
}

// EmailConfig holds transactional email configuration. Any empty credential
// disables the email dispatcher.
type EmailConfig struct {
	ResendAPIKey string        `mapstructure:"resend_api_key"`
	From         string        `mapstructure:"from"`
	To           string        `mapstructure:"to"`
	APIURL       string        `mapstructure:"api_url"`
	TemplatePath string        `mapstructure:"template_path"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether all email credentials are present.
func (e EmailConfig) Enabled() bool {
	return e.ResendAPIKey != "" && e.From != "" && e.To != ""
}

// WebhookConfig holds chat webhook configuration
type WebhookConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	APIEndpoint    string        `mapstructure:"api_endpoint"` // format "<base>/bot%s/%s"; empty uses api.telegram.org
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// Enabled reports whether both the bot token and chat ID are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DataDir          string `mapstructure:"data_dir"`
	HistoryBackend   string `mapstructure:"history_backend"`
	HistoryDSN       string `mapstructure:"history_dsn"`
	CooldownBackend  string `mapstructure:"cooldown_backend"`
	RedisAddr        string `mapstructure:"redis_addr"`
	RedisPassword    string `mapstructure:"redis_password"`
	RedisDB          int    `mapstructure:"redis_db"`
	RedisKey         string `mapstructure:"redis_key"`
	LogRetentionDays int    `mapstructure:"log_retention_days"`
}

// CooldownFile is the flat JSON cooldown cache location.
func (s StorageConfig) CooldownFile() string {
	return filepath.Join(s.DataDir, "alert_cache.json")
}

// HistoryDir is the per-symbol JSON history directory.
func (s StorageConfig) HistoryDir() string {
	return filepath.Join(s.DataDir, "price_history")
}

// ActivityLogDir is the daily activity log directory.
func (s StorageConfig) ActivityLogDir() string {
	return filepath.Join(s.DataDir, "diary_logs")
}

// SQLiteDSN returns the configured DSN or the default database under DataDir.
func (s StorageConfig) SQLiteDSN() string {
	if s.HistoryDSN != "" {
		return s.HistoryDSN
	}
	return filepath.Join(s.DataDir, "history.db")
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// legacyEnv maps the flat environment keys of the .env settings file onto
// configuration paths.
var legacyEnv = map[string]string{
	"monitor.threshold":              "THRESHOLD",
	"monitor.cooldown_minutes":       "COOLDOWN_MINUTES",
	"monitor.check_interval_minutes": "CHECK_INTERVAL_MINUTES",
	"email.resend_api_key":           "RESEND_API_KEY",
	"email.from":                     "FROM_EMAIL",
	"email.to":                       "ALERT_EMAIL",
	"webhook.url":                    "DISCORD_WEBHOOK_URL",
	"telegram.bot_token":             "TELEGRAM_BOT_TOKEN",
	"telegram.chat_id":               "TELEGRAM_CHAT_ID",
}

// Load reads configuration from an optional file, a .env file and environment
// variables. A missing config file is not an error; other read failures are.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("STOCKALERT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "STOCKALERT_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Monitor defaults
	v.SetDefault("monitor.threshold", 5.0)
	v.SetDefault("monitor.cooldown_minutes", 360)
	v.SetDefault("monitor.check_interval_minutes", 5)
	v.SetDefault("monitor.assets_file", "assets.yaml")
	v.SetDefault("monitor.timezone", "Europe/Madrid")
	v.SetDefault("monitor.skip_stocks_on_weekend", true)

	// Quotes defaults
	v.SetDefault("quotes.base_urls", []string{
		"https://query1.finance.yahoo.com",
		"https://query2.finance.yahoo.com",
	})
	v.SetDefault("quotes.timeout", "15s")
	v.SetDefault("quotes.initial_lookback_days", 7)
	v.SetDefault("quotes.max_lookback_days", 60)
	v.SetDefault("quotes.pacing_delay", "1s")
	v.SetDefault("quotes.user_agent", "Mozilla/5.0 (compatible; stockalert/1.0)")

	// Notification defaults
	v.SetDefault("email.resend_api_key", "")
	v.SetDefault("email.from", "")
	v.SetDefault("email.to", "")
	v.SetDefault("email.api_url", "https://api.resend.com/emails")
	v.SetDefault("email.template_path", "")
	v.SetDefault("email.timeout", "10s")
	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.timeout", "10s")
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.api_endpoint", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Storage defaults
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.history_backend", "json")
	v.SetDefault("storage.history_dsn", "")
	v.SetDefault("storage.cooldown_backend", "file")
	v.SetDefault("storage.redis_addr", "localhost:6379")
	v.SetDefault("storage.redis_password", "")
	v.SetDefault("storage.redis_db", 0)
	v.SetDefault("storage.redis_key", "stockalert:cooldown")
	v.SetDefault("storage.log_retention_days", 30)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
}

// Validate checks that all configuration values are valid. The check
// interval is never rejected; see EffectiveCheckInterval.
func (c *Config) Validate() error {
	// Validate Monitor config
	if c.Monitor.Threshold < 0 || c.Monitor.Threshold > 100 {
		return fmt.Errorf("monitor.threshold must be between 0 and 100")
	}
	if c.Monitor.CooldownMinutes < 1 || c.Monitor.CooldownMinutes > 10080 {
		return fmt.Errorf("monitor.cooldown_minutes must be between 1 and 10080")
	}
	if c.Monitor.AssetsFile == "" {
		return fmt.Errorf("monitor.assets_file is required")
	}
	if _, err := time.LoadLocation(c.Monitor.Timezone); err != nil {
		return fmt.Errorf("monitor.timezone is invalid: %w", err)
	}

	// Validate Quotes config
	if len(c.Quotes.BaseURLs) == 0 {
		return fmt.Errorf("quotes.base_urls must contain at least one endpoint")
	}
	if c.Quotes.Timeout <= 0 {
		return fmt.Errorf("quotes.timeout must be positive")
	}
	if c.Quotes.InitialLookbackDays < 2 {
		return fmt.Errorf("quotes.initial_lookback_days must be at least 2")
	}
	if c.Quotes.MaxLookbackDays < c.Quotes.InitialLookbackDays {
		return fmt.Errorf("quotes.max_lookback_days must be >= quotes.initial_lookback_days")
	}
	if c.Quotes.PacingDelay < 0 {
		return fmt.Errorf("quotes.pacing_delay must not be negative")
	}

	// Validate Telegram config
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required when telegram.bot_token is set")
	}

	// Validate Storage config
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}
	switch c.Storage.HistoryBackend {
	case "json", "sqlite":
	case "postgres":
		if c.Storage.HistoryDSN == "" {
			return fmt.Errorf("storage.history_dsn is required for the postgres history backend")
		}
	default:
		return fmt.Errorf("storage.history_backend must be one of: json, sqlite, postgres")
	}
	switch c.Storage.CooldownBackend {
	case "file":
	case "redis":
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("storage.redis_addr is required for the redis cooldown backend")
		}
	default:
		return fmt.Errorf("storage.cooldown_backend must be one of: file, redis")
	}
	if c.Storage.LogRetentionDays < 1 {
		return fmt.Errorf("storage.log_retention_days must be at least 1")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// SnapCheckInterval rounds minutes to the nearest multiple of 5 and clamps
// the result to [5, 60].
func SnapCheckInterval(minutes int) int {
	snapped := (minutes + checkIntervalStep/2) / checkIntervalStep * checkIntervalStep
	if minutes < 0 {
		snapped = 0
	}
	if snapped < MinCheckIntervalMinutes {
		return MinCheckIntervalMinutes
	}
	if snapped > MaxCheckIntervalMinutes {
		return MaxCheckIntervalMinutes
	}
	return snapped
}

// EffectiveCheckInterval returns the clamped, snapped check interval and
// whether it differs from the configured value.
func (c *Config) EffectiveCheckInterval() (time.Duration, bool) {
	minutes := SnapCheckInterval(c.Monitor.CheckIntervalMinutes)
	return time.Duration(minutes) * time.Minute, minutes != c.Monitor.CheckIntervalMinutes
}

// Cooldown returns the cooldown window.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Monitor.CooldownMinutes) * time.Minute
}

// Location returns the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Monitor.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
