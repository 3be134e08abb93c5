package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"calbook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig           `yaml:"app"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Browser       BrowserConfig       `yaml:"browser"`
	Automation    AutomationConfig    `yaml:"automation"`
	API           APIConfig           `yaml:"api"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Google        GoogleConfig        `yaml:"google"`
	Backup        BackupConfig        `yaml:"backup"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
	Logging       LoggingConfig       `yaml:"logging"`
	Exports       ExportConfig        `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BrowserConfig struct {
	Headless       bool   `yaml:"headless"`
	ChromePath     string `yaml:"chrome_path"`
	ViewportWidth  int    `yaml:"viewport_width"`
	ViewportHeight int    `yaml:"viewport_height"`
	// ElementTimeoutSec bounds every element wait; NavigationTimeoutSec bounds
	// page loads; SubmitWaitSec bounds the post-submit confirmation wait.
	ElementTimeoutSec    int    `yaml:"element_timeout"`
	NavigationTimeoutSec int    `yaml:"navigation_timeout"`
	SubmitWaitSec        int    `yaml:"submit_wait"`
	SelectorsPath        string `yaml:"selectors_path"`
}

func (c BrowserConfig) ElementTimeout() time.Duration {
	if c.ElementTimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.ElementTimeoutSec) * time.Second
}

func (c BrowserConfig) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutSec) * time.Second
}

func (c BrowserConfig) SubmitWait() time.Duration {
	if c.SubmitWaitSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.SubmitWaitSec) * time.Second
}

type AutomationConfig struct {
	Workers        int `yaml:"workers"`
	QueueSize      int `yaml:"queue_size"`
	MaxRetries     int `yaml:"max_retries"`
	RetryDelayMs   int `yaml:"retry_delay_ms"`
	ProgressTTLSec int `yaml:"progress_ttl"`
}

func (c AutomationConfig) RetryDelay() time.Duration {
	if c.RetryDelayMs <= 0 {
		return time.Second
	}
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

func (c AutomationConfig) ProgressTTL() time.Duration {
	if c.ProgressTTLSec <= 0 {
		return models.DefaultProgressTTL * time.Second
	}
	return time.Duration(c.ProgressTTLSec) * time.Second
}

type APIConfig struct {
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type NotificationsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type GoogleConfig struct {
	Enabled               bool   `yaml:"enabled"`
	GoogleCredentialsFile string `yaml:"credentials_file"`
	BookingSpreadSheetID  string `yaml:"bookings_spreadsheet_id"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
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

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; ignore absence so containers without one still start.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Expand ${VAR} references before parsing so secrets stay out of YAML.
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
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Notifications.Telegram.Enabled && c.Notifications.Telegram.BotToken == "" {
		return errors.New("telegram notifications enabled but bot_token is empty")
	}

	if c.Google.Enabled {
		if c.Google.GoogleCredentialsFile == "" {
			return errors.New("google sync enabled but credentials_file is empty")
		}
		if c.Google.BookingSpreadSheetID == "" {
			return errors.New("google sync enabled but bookings_spreadsheet_id is empty")
		}
	}

	if c.API.Auth.Enabled && len(c.API.Auth.APIKeys) == 0 {
		return errors.New("api auth enabled but no api_keys configured")
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "calbook"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Automation.Workers <= 0 {
		c.Automation.Workers = models.DefaultWorkers
	}
	if c.Automation.QueueSize <= 0 {
		c.Automation.QueueSize = models.DefaultQueueSize
	}
	if c.Automation.MaxRetries <= 0 {
		c.Automation.MaxRetries = models.DefaultMaxRetries
	}

	if c.Browser.ViewportWidth == 0 {
		c.Browser.ViewportWidth = 1280
	}
	if c.Browser.ViewportHeight == 0 {
		c.Browser.ViewportHeight = 800
	}

	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
