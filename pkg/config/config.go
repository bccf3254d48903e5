package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the SmugMug downloader
type Config struct {
	// SmugMug account and endpoint settings
	SmugMug SmugMugConfig `yaml:"smugmug" json:"smugmug"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Retry policy shared by API fetches and file transfers
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SmugMugConfig holds account credentials and endpoint locations
type SmugMugConfig struct {
	Username  string `yaml:"username" json:"username"`
	Password  string `yaml:"password" json:"password"`
	SessionID string `yaml:"session_id" json:"session_id"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`

	// APIBaseURL is prefixed to every relative API path
	APIBaseURL string `yaml:"api_base_url" json:"api_base_url"`

	// AccountURL is the account landing page; {username} is substituted
	AccountURL string `yaml:"account_url" json:"account_url"`

	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	MaxPages       int           `yaml:"max_pages" json:"max_pages"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	DownloadTimeout     time.Duration `yaml:"download_timeout" json:"download_timeout"`
	RetryAttempts       int           `yaml:"retry_attempts" json:"retry_attempts"`
	BufferSize          int           `yaml:"buffer_size" json:"buffer_size"`
}

// RetryConfig holds the backoff policy for API fetches
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
	JitterFactor float64       `yaml:"jitter_factor" json:"jitter_factor"`
}

// RateLimitConfig holds rate limiting configuration.
// A zero RequestsPerMinute disables throttling.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	OnComplete       bool   `yaml:"on_complete" json:"on_complete"`
	OnError          bool   `yaml:"on_error" json:"on_error"`
	NotificationType string `yaml:"notification_type" json:"notification_type"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
	// NoColor disables ANSI colors in console output
	NoColor bool `yaml:"no_color" json:"no_color"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		SmugMug: SmugMugConfig{
			UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
			APIBaseURL:     "https://www.smugmug.com",
			AccountURL:     "https://{username}.smugmug.com",
			RequestTimeout: 60 * time.Second,
			MaxPages:       10000,
		},
		Output: OutputConfig{
			BaseDirectory: "output/",
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 8,
			DownloadTimeout:     30 * time.Minute,
			RetryAttempts:       3,
			BufferSize:          32 * 1024,
		},
		Retry: RetryConfig{
			MaxAttempts:  5,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 300,
		},
		Notifications: NotificationConfig{
			Enabled:          false,
			OnComplete:       true,
			OnError:          true,
			NotificationType: "terminal",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from SMDL_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		v := os.Getenv(name)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = n
	}

	setString("SMDL_USERNAME", &c.SmugMug.Username)
	setString("SMDL_PASSWORD", &c.SmugMug.Password)
	setString("SMDL_SESSION_ID", &c.SmugMug.SessionID)
	setString("SMDL_USER_AGENT", &c.SmugMug.UserAgent)
	setString("SMDL_OUTPUT_DIR", &c.Output.BaseDirectory)
	setString("SMDL_LOG_LEVEL", &c.Logging.Level)
	setString("SMDL_LOG_FILE", &c.Logging.File)

	setInt("SMDL_CONCURRENT_DOWNLOADS", &c.Download.ConcurrentDownloads)
	setInt("SMDL_REQUESTS_PER_MINUTE", &c.RateLimit.RequestsPerMinute)
	setInt("SMDL_MAX_RETRIES", &c.Retry.MaxAttempts)

	if v := os.Getenv("SMDL_NOTIFICATIONS_ENABLED"); v != "" {
		c.Notifications.Enabled = strings.EqualFold(v, "true")
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// ConfigLocations lists the files searched for configuration, in order
func ConfigLocations() []string {
	home := os.Getenv("HOME")
	return []string{
		".smdl.yaml",
		".smdl.yml",
		filepath.Join(home, ".config", "smdl", "config.yaml"),
		filepath.Join(home, ".config", "smdl", "config.yml"),
		filepath.Join(home, ".smdl.yaml"),
	}
}

func findConfigFile() string {
	for _, loc := range ConfigLocations() {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.SmugMug.APIBaseURL == "" {
		errs = append(errs, errors.New("api base url is required"))
	}
	if c.SmugMug.AccountURL == "" {
		errs = append(errs, errors.New("account url is required"))
	}
	if c.SmugMug.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 32 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 32"))
	}
	if c.Download.RetryAttempts <= 0 {
		errs = append(errs, errors.New("download retry attempts must be positive"))
	}
	if c.Download.BufferSize <= 0 {
		errs = append(errs, errors.New("download buffer size must be positive"))
	}

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("retry max attempts must be positive"))
	}
	if c.Retry.InitialDelay < 0 || c.Retry.MaxDelay < 0 {
		errs = append(errs, errors.New("retry delays cannot be negative"))
	}
	if c.Retry.MaxDelay < c.Retry.InitialDelay {
		errs = append(errs, errors.New("retry max delay must not be below the initial delay"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}
	if c.Retry.JitterFactor < 0 || c.Retry.JitterFactor > 1 {
		errs = append(errs, errors.New("retry jitter factor must be between 0 and 1"))
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	validNotifTypes := map[string]bool{
		"terminal": true, "desktop": true, "none": true,
	}
	if !validNotifTypes[strings.ToLower(c.Notifications.NotificationType)] {
		errs = append(errs, errors.New("invalid notification type"))
	}

	return errors.Join(errs...)
}

// Save writes the configuration as YAML, creating parent directories
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Credentials may be stored here
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Redacted returns a copy with secrets masked, for display
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.SmugMug.Password != "" {
		cp.SmugMug.Password = "********"
	}
	if cp.SmugMug.SessionID != "" {
		cp.SmugMug.SessionID = "********"
	}
	return &cp
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Zero values are ignored so unset flags never clobber file or env values.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["username"].(string); ok && v != "" {
		c.SmugMug.Username = v
	}
	if v, ok := flags["password"].(string); ok && v != "" {
		c.SmugMug.Password = v
	}
	if v, ok := flags["session"].(string); ok && v != "" {
		c.SmugMug.SessionID = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.BaseDirectory = v
	}
	if v, ok := flags["concurrent"].(int); ok && v > 0 {
		c.Download.ConcurrentDownloads = v
	}
	if v, ok := flags["rate-limit"].(int); ok && v > 0 {
		c.RateLimit.RequestsPerMinute = v
	}
	if v, ok := flags["max-retries"].(int); ok && v > 0 {
		c.Retry.MaxAttempts = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-file"].(string); ok && v != "" {
		c.Logging.File = v
	}
	if v, ok := flags["no-color"].(bool); ok && v {
		c.Logging.NoColor = true
	}
	if v, ok := flags["notifications"].(bool); ok && v {
		c.Notifications.Enabled = true
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: flags > environment (including .env files) > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Missing .env files are not an error
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".smdl.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
