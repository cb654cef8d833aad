package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/Miketheless/workshopneu/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Backend    BackendConfig    `yaml:"backend"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	HTTP       HTTPConfig       `yaml:"http"`
	Redis      RedisConfig      `yaml:"redis"`
	Database   DatabaseConfig   `yaml:"database"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Google     GoogleConfig     `yaml:"google"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	Exports    ExportConfig     `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	// Timezone is the IANA zone that decides which course dates are past.
	Timezone string `yaml:"timezone"`
}

// Location loads the configured time zone.
func (a AppConfig) Location() (*time.Location, error) {
	return time.LoadLocation(a.Timezone)
}

// BackendConfig describes the spreadsheet-backed script endpoint.
type BackendConfig struct {
	BaseURL      string          `yaml:"base_url"`
	SlotsTimeout time.Duration   `yaml:"slots_timeout"`
	BookTimeout  time.Duration   `yaml:"book_timeout"`
	AdminTimeout time.Duration   `yaml:"admin_timeout"`
	CacheTTL     time.Duration   `yaml:"cache_ttl"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
}

type ScheduleConfig struct {
	StaticDates     []string `yaml:"static_dates"`
	CourseStart     string   `yaml:"course_start"`
	CourseEnd       string   `yaml:"course_end"`
	DefaultCapacity int      `yaml:"default_capacity"`
	File            string   `yaml:"file"`
}

type HTTPConfig struct {
	Enabled      bool            `yaml:"enabled"`
	Port         int             `yaml:"port"`
	CORSOrigins  []string        `yaml:"cors_origins"`
	CSRFKey      string          `yaml:"csrf_key"`
	SecureCookie bool            `yaml:"secure_cookie"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type DatabaseConfig struct {
	Path   string       `yaml:"path"`
	Backup BackupConfig `yaml:"backup"`
}

type BackupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	StoragePath   string        `yaml:"storage_path"`
	RetentionDays int           `yaml:"retention_days"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type GoogleConfig struct {
	GoogleCredentialsFile string `yaml:"credentials_file"`
	MirrorSpreadSheetID   string `yaml:"mirror_spreadsheet_id"`
}

type TelegramConfig struct {
	BotToken string  `yaml:"bot_token"`
	ChatIDs  []int64 `yaml:"chat_ids"`
}

type WebhookConfig struct {
	URL        string        `yaml:"url"`
	Timeout    time.Duration `yaml:"timeout"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

const (
	DefaultTimezone = "Europe/Vienna"
	minCSRFKeyLen   = 16
)

// DefaultStaticDates is the 2026 course schedule used when the backend is unreachable.
var DefaultStaticDates = []string{
	"2026-02-25", "2026-03-07", "2026-03-14", "2026-03-21", "2026-03-28",
	"2026-04-04", "2026-04-18", "2026-04-25", "2026-05-01", "2026-05-02",
	"2026-05-16", "2026-05-30", "2026-06-13", "2026-06-20", "2026-06-27",
	"2026-07-04", "2026-07-18", "2026-08-01", "2026-08-08", "2026-08-15",
	"2026-08-22", "2026-08-29", "2026-09-05", "2026-09-19", "2026-10-03",
	"2026-10-17",
}

func Load(configPath string) (*Config, error) {
	// .env is optional; values already in the environment take precedence
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if _, err := c.App.Location(); err != nil {
		return fmt.Errorf("app timezone: %w", err)
	}
	if c.Backend.BaseURL == "" {
		return errors.New("backend base_url is required")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend base_url must be an absolute URL: %q", c.Backend.BaseURL)
	}

	if c.Schedule.DefaultCapacity <= 0 {
		return errors.New("schedule default_capacity must be positive")
	}
	if err := validateClock(c.Schedule.CourseStart); err != nil {
		return fmt.Errorf("schedule course_start: %w", err)
	}
	if err := validateClock(c.Schedule.CourseEnd); err != nil {
		return fmt.Errorf("schedule course_end: %w", err)
	}
	if c.HTTP.Enabled && len(c.HTTP.CSRFKey) < minCSRFKeyLen {
		return fmt.Errorf("http csrf_key must have at least %d characters", minCSRFKeyLen)
	}
	if c.Webhook.URL != "" && c.Webhook.Timeout <= 0 {
		return errors.New("webhook timeout must be positive")
	}
	if c.Logging.Output == "file" && c.Logging.FilePath == "" {
		return errors.New("logging.output=file requires logging.file_path")
	}

	return ValidateDates(c.Schedule.StaticDates)
}

// ValidateDates checks that every static date is a canonical YYYY-MM-DD and unique.
func ValidateDates(dates []string) error {
	seen := make(map[string]bool, len(dates))
	for _, d := range dates {
		if _, err := time.Parse(models.DateLayout, d); err != nil {
			return fmt.Errorf("static date %q is not YYYY-MM-DD", d)
		}
		if seen[d] {
			return fmt.Errorf("duplicate static date: %s", d)
		}
		seen[d] = true
	}
	return nil
}

func validateClock(v string) error {
	if _, err := time.Parse("15:04", v); err != nil {
		return fmt.Errorf("expected HH:MM, got %q", v)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "platzreife-portal"
	}
	if c.App.Timezone == "" {
		c.App.Timezone = DefaultTimezone
	}

	if c.Backend.SlotsTimeout == 0 {
		c.Backend.SlotsTimeout = 5 * time.Second
	}
	if c.Backend.BookTimeout == 0 {
		c.Backend.BookTimeout = 30 * time.Second
	}
	if c.Backend.AdminTimeout == 0 {
		c.Backend.AdminTimeout = 15 * time.Second
	}
	if c.Backend.CacheTTL == 0 {
		c.Backend.CacheTTL = models.SlotsCacheTTL * time.Second
	}

	if len(c.Schedule.StaticDates) == 0 {
		c.Schedule.StaticDates = append([]string(nil), DefaultStaticDates...)
	}
	if c.Schedule.CourseStart == "" {
		c.Schedule.CourseStart = models.CourseStart
	}
	if c.Schedule.CourseEnd == "" {
		c.Schedule.CourseEnd = models.CourseEnd
	}
	if c.Schedule.DefaultCapacity == 0 {
		c.Schedule.DefaultCapacity = models.DefaultCapacity
	}

	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.RateLimit.RPS == 0 {
		c.HTTP.RateLimit.RPS = models.RateLimitRPS
	}
	if c.HTTP.RateLimit.Burst == 0 {
		c.HTTP.RateLimit.Burst = 10
	}

	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Webhook.URL != "" {
		if c.Webhook.Timeout == 0 {
			c.Webhook.Timeout = 5 * time.Second
		}
		if c.Webhook.RetryDelay == 0 {
			c.Webhook.RetryDelay = 3 * time.Second
		}
	}

	if c.Database.Path == "" {
		c.Database.Path = "data/portal.db"
	}
	if c.Database.Backup.Enabled {
		if c.Database.Backup.Interval == 0 {
			c.Database.Backup.Interval = 24 * time.Hour
		}
		if c.Database.Backup.StoragePath == "" {
			c.Database.Backup.StoragePath = "data/backups"
		}
	}

	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
