package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables holding the required credentials.
const (
	EnvHandle   = "BLUESKY_HANDLE"
	EnvPassword = "BLUESKY_PASSWORD"
	EnvDeviceID = "BLUESKY_DEVICE_ID"
	EnvAPIKey   = "GEMINI_API_KEY"
)

// DefaultTopics is the rotating topic list a thread is generated from.
var DefaultTopics = []string{
	"artificial intelligence trends",
	"machine learning breakthroughs",
	"deep learning applications",
	"AI ethics and responsibility",
	"AI in healthcare",
	"AI in business",
	"neural networks explained",
	"computer vision advances",
	"natural language processing",
	"robotics and AI",
	"AI and cybersecurity",
	"AI in education",
}

type Config struct {
	Bluesky  BlueskyConfig  `yaml:"bluesky"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Settings SettingsConfig `yaml:"settings"`
}

type BlueskyConfig struct {
	Handle   string `yaml:"handle"`
	Password string `yaml:"password"`
	DeviceID string `yaml:"device_id"`
	Host     string `yaml:"host"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type SettingsConfig struct {
	Schedule         string        `yaml:"schedule"`
	Topics           []string      `yaml:"topics"`
	RetryAttempts    *int          `yaml:"retry_attempts"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	PostInterval     time.Duration `yaml:"post_interval"`
	ImageTimeout     time.Duration `yaml:"image_timeout"`
	MaxRedirects     int           `yaml:"max_redirects"`
	MaxPostLength    int           `yaml:"max_post_length"`
	ImageSearchURL   string        `yaml:"image_search_url"`
	FallbackImageURL string        `yaml:"fallback_image_url"`
	ImageCaption     string        `yaml:"image_caption"`
	DryRun           bool          `yaml:"dry_run"`
}

// Load reads an optional .env file and an optional YAML file at path, overlays
// the process environment, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	// A missing .env is the normal case in production.
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case os.IsNotExist(err):
			// Environment-only configuration.
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg.ApplyEnv(os.Getenv)
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides file values with any non-empty environment value.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	set(&c.Bluesky.Handle, EnvHandle)
	set(&c.Bluesky.Password, EnvPassword)
	set(&c.Bluesky.DeviceID, EnvDeviceID)
	set(&c.Bluesky.Host, "BLUESKY_HOST")
	set(&c.Gemini.APIKey, EnvAPIKey)
	set(&c.Gemini.Model, "GEMINI_MODEL")
	set(&c.Settings.Schedule, "POST_SCHEDULE")

	if b, ok := parseBool(getenv("DRY_RUN")); ok {
		c.Settings.DryRun = b
	}
	if v := getenv("RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Settings.RetryAttempts = &n
		}
	}
}

// parseBool reports ok=false for an empty or malformed value.
func parseBool(v string) (b bool, ok bool) {
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return b, err == nil
}

// ApplyDefaults fills every unset optional field.
func (c *Config) ApplyDefaults() {
	if c.Bluesky.Host == "" {
		c.Bluesky.Host = "https://bsky.social"
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-1.5-flash"
	}

	s := &c.Settings
	if s.Schedule == "" {
		s.Schedule = "0 */6 * * *"
	}
	if len(s.Topics) == 0 {
		s.Topics = append([]string(nil), DefaultTopics...)
	}
	if s.RetryAttempts == nil {
		n := 3
		s.RetryAttempts = &n
	}
	if s.RetryDelay == 0 {
		s.RetryDelay = 5 * time.Second
	}
	if s.PostInterval == 0 {
		s.PostInterval = 3 * time.Second
	}
	if s.ImageTimeout == 0 {
		s.ImageTimeout = 5 * time.Second
	}
	if s.MaxRedirects == 0 {
		s.MaxRedirects = 5
	}
	if s.MaxPostLength == 0 {
		s.MaxPostLength = 280
	}
	if s.ImageSearchURL == "" {
		s.ImageSearchURL = "https://source.unsplash.com/featured/1024x1024/"
	}
	if s.FallbackImageURL == "" {
		s.FallbackImageURL = "https://images.unsplash.com/photo-1620712943543-bcc4688e7485"
	}
	if s.ImageCaption == "" {
		s.ImageCaption = "🖼️"
	}
}

// Retries is the configured retry count; an explicit 0 disables retrying.
func (s SettingsConfig) Retries() int {
	if s.RetryAttempts == nil {
		return 3
	}
	return max(*s.RetryAttempts, 0)
}

// Validate reports every missing required credential at once.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Bluesky.Handle) == "" {
		missing = append(missing, EnvHandle)
	}
	if strings.TrimSpace(c.Bluesky.Password) == "" {
		missing = append(missing, EnvPassword)
	}
	if strings.TrimSpace(c.Bluesky.DeviceID) == "" {
		missing = append(missing, EnvDeviceID)
	}
	if strings.TrimSpace(c.Gemini.APIKey) == "" {
		missing = append(missing, EnvAPIKey)
	}

	if len(missing) > 0 {
		return &ConfigError{
			Message: "Missing required environment variables",
			Missing: missing,
		}
	}
	return nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}

	if exe, err := os.Executable(); err == nil {
		configPath := filepath.Join(filepath.Dir(exe), "config.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}

	return "config.yaml"
}

// ConfigError represents a configuration error
type ConfigError struct {
	Message string
	Missing []string
}

func (e *ConfigError) Error() string {
	if len(e.Missing) > 0 {
		return e.Message + ": " + strings.Join(e.Missing, ", ")
	}
	return e.Message
}
