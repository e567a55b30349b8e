package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// Config represents the fxrates configuration
type Config struct {
	APIBaseURL        string  `yaml:"api_base_url" env:"FXRATES_API_BASE_URL" env-default:"https://rates.staging.api.paytron.com"`
	RequestTimeoutMS  int     `yaml:"request_timeout_ms" env:"FXRATES_REQUEST_TIMEOUT_MS" env-default:"15000"`
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"FXRATES_REQUESTS_PER_SECOND"`
	RequestBurst      int     `yaml:"request_burst" env:"FXRATES_REQUEST_BURST" env-default:"5"`
	UserAgent         string  `yaml:"user_agent" env:"FXRATES_USER_AGENT" env-default:"fxrates"`

	RefreshRateMS   int     `yaml:"refresh_rate_ms" env:"FXRATES_REFRESH_RATE_MS" env-default:"10000"`
	MaxRetries      int     `yaml:"max_retries" env:"FXRATES_MAX_RETRIES"`
	Margin          float64 `yaml:"margin" env:"FXRATES_MARGIN"`
	BackoffFactor   float64 `yaml:"backoff_factor" env:"FXRATES_BACKOFF_FACTOR" env-default:"1.5"`
	MaxBackoffMS    int     `yaml:"max_backoff_ms" env:"FXRATES_MAX_BACKOFF_MS"`
	FrameIntervalMS int     `yaml:"frame_interval_ms" env:"FXRATES_FRAME_INTERVAL_MS" env-default:"100"`
	DefaultFrom     string  `yaml:"default_from" env:"FXRATES_DEFAULT_FROM" env-default:"AU"`
	DefaultTo       string  `yaml:"default_to" env:"FXRATES_DEFAULT_TO" env-default:"US"`

	ListenAddr         string   `yaml:"listen_addr" env:"FXRATES_LISTEN_ADDR" env-default:":8080"`
	ViewIdleTimeoutMS  int      `yaml:"view_idle_timeout_ms" env:"FXRATES_VIEW_IDLE_TIMEOUT_MS"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"FXRATES_CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`

	LogLevel  string `yaml:"log_level" env:"FXRATES_LOG_LEVEL" env-default:"info"`
	LogFormat string `yaml:"log_format" env:"FXRATES_LOG_FORMAT" env-default:"console"`
	LogOutput string `yaml:"log_output,omitempty" env:"FXRATES_LOG_OUTPUT"`
}

const (
	// ConfigDirName is the name of the config directory
	ConfigDirName = ".fxrates"
	// ConfigFileName is the name of the config file
	ConfigFileName = "config.yaml"
	// ConfigFilePerms is the file permission for the config file (read/write for owner only)
	ConfigFilePerms = 0600
	// ConfigDirPerms is the directory permission for the config directory
	ConfigDirPerms = 0700
)

// newConfig returns a Config seeded with the defaults of fields where zero is
// a meaningful value. Those fields carry no env-default tag, since cleanenv
// would overwrite an explicit 0 read from the file.
func newConfig() Config {
	return Config{
		RequestsPerSecond: 5,
		MaxRetries:        3,
		Margin:            0.005,
		MaxBackoffMS:      300000,
		ViewIdleTimeoutMS: 600000,
	}
}

// GetConfigPath returns the full path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, ConfigFileName), nil
}

// GetConfigDir returns the full path to the config directory
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ConfigDirName), nil
}

// Load reads the config file from the default location and applies env overrides
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(configPath)
}

// LoadFromPath reads the config file from a specific path and applies env overrides.
// A missing file is not an error: defaults and the environment are used instead.
func LoadFromPath(configPath string) (*Config, error) {
	cfg := newConfig()

	_, statErr := os.Stat(configPath)
	switch {
	case statErr == nil:
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(statErr, os.ErrNotExist):
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from environment: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to read config file: %w", statErr)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration made of defaults and environment overrides only
func Default() (*Config, error) {
	cfg := newConfig()
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

// Save writes the config to the default config file
func (c *Config) Save() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}
	return c.SaveToPath(configPath)
}

// SaveToPath writes the config to a specific path
func (c *Config) SaveToPath(configPath string) error {
	// Validate before saving
	if err := c.Validate(); err != nil {
		return fmt.Errorf("cannot save invalid config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), ConfigDirPerms); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write config file with restricted permissions
	if err := os.WriteFile(configPath, data, ConfigFilePerms); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the config values are usable
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return fmt.Errorf("api_base_url is required")
	}
	if c.RefreshRateMS <= 0 {
		return fmt.Errorf("refresh_rate_ms must be positive, got %d", c.RefreshRateMS)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries)
	}
	if math.IsNaN(c.Margin) || math.IsInf(c.Margin, 0) {
		return fmt.Errorf("margin must be a finite number")
	}
	if c.BackoffFactor < 1 {
		return fmt.Errorf("backoff_factor must be at least 1, got %v", c.BackoffFactor)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}
	return nil
}

func (c *Config) normalize() {
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	c.DefaultFrom = strings.ToUpper(strings.TrimSpace(c.DefaultFrom))
	c.DefaultTo = strings.ToUpper(strings.TrimSpace(c.DefaultTo))
}

// RequestTimeout returns the per-request timeout
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// RefreshRate returns the base refresh interval
func (c *Config) RefreshRate() time.Duration {
	return time.Duration(c.RefreshRateMS) * time.Millisecond
}

// MaxBackoff returns the cap on the backed-off interval; 0 means uncapped
func (c *Config) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffMS) * time.Millisecond
}

// FrameInterval returns the cadence frame interval
func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.FrameIntervalMS) * time.Millisecond
}

// ViewIdleTimeout returns how long an HTTP view may go untouched before it is reaped
func (c *Config) ViewIdleTimeout() time.Duration {
	return time.Duration(c.ViewIdleTimeoutMS) * time.Millisecond
}
