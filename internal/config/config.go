// Package config provides configuration management for locforge.
// It supports YAML configuration files, environment variables, and sensible defaults.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/locforge/locforge/internal/util"
)

// Config represents the complete locforge configuration, shared by the
// CLI and the server daemon.
type Config struct {
	// Server configures the cloud endpoint the CLI talks to and the
	// daemon's listen settings
	Server ServerConfig `yaml:"server"`

	// GitHub configures repository reconciliation
	GitHub GitHubConfig `yaml:"github"`

	// Snapshots configures the retention policy for automatic snapshots
	Snapshots SnapshotsConfig `yaml:"snapshots"`

	// Translate configures the machine-translation provider
	Translate TranslateConfig `yaml:"translate"`

	// Output configures display preferences
	Output OutputConfig `yaml:"output"`
}

// ServerConfig holds cloud endpoint settings.
type ServerConfig struct {
	// URL is the base URL the CLI pushes to and pulls from
	URL string `yaml:"url"`
	// APIToken authenticates CLI requests
	APIToken string `yaml:"api_token,omitempty"`
	// ListenAddr is the daemon's bind address
	ListenAddr string `yaml:"listen_addr"`
	// DatabasePath is the daemon's SQLite file
	DatabasePath string `yaml:"database_path"`
	// RequestTimeout bounds a single CLI request
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// GitHubConfig holds repository reconciliation settings.
type GitHubConfig struct {
	// WebhookSecret verifies webhook delivery signatures
	WebhookSecret string `yaml:"webhook_secret,omitempty"`
	// Token authenticates contents API calls
	Token string `yaml:"token,omitempty"`
	// Repository is the "owner/name" the project syncs with
	Repository string `yaml:"repository,omitempty"`
	// Branch is the tracked branch; events for other refs are ignored
	Branch string `yaml:"branch"`
}

// SnapshotsConfig holds snapshot retention settings.
type SnapshotsConfig struct {
	// AutoSnapshot takes a snapshot before bulk operations
	AutoSnapshot bool `yaml:"auto_snapshot"`
	// MaxSnapshots caps automatic snapshots per project
	MaxSnapshots int `yaml:"max_snapshots"`
	// RetentionDays is how long automatic snapshots are kept
	RetentionDays int `yaml:"retention_days"`
}

// TranslateConfig holds machine-translation settings.
type TranslateConfig struct {
	// Provider selects the translation backend
	Provider string `yaml:"provider"`
	// APIKey authenticates against the provider
	APIKey string `yaml:"api_key,omitempty"`
	// BaseURL overrides the provider endpoint
	BaseURL string `yaml:"base_url,omitempty"`
	// MaxRetries bounds retryable-error retries
	MaxRetries int `yaml:"max_retries"`
	// Timeout bounds a single provider call
	Timeout time.Duration `yaml:"timeout"`
}

// OutputConfig holds display preferences.
type OutputConfig struct {
	// Color controls color output (auto, always, never)
	Color string `yaml:"color"`
	// Verbose enables verbose output
	Verbose bool `yaml:"verbose"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:            "http://localhost:8632",
			ListenAddr:     ":8632",
			DatabasePath:   filepath.Join(util.LocforgeDataPath(), "locforge.db"),
			RequestTimeout: 30 * time.Second,
		},
		GitHub: GitHubConfig{
			Branch: "main",
		},
		Snapshots: SnapshotsConfig{
			AutoSnapshot:  true,
			MaxSnapshots:  20,
			RetentionDays: 30,
		},
		Translate: TranslateConfig{
			Provider:   "deepl",
			MaxRetries: 3,
			Timeout:    30 * time.Second,
		},
		Output: OutputConfig{
			Color:   "auto",
			Verbose: false,
		},
	}
}

// configFileName is the name of the config file.
const configFileName = "config.yaml"

// FilePath returns the path to the config file.
func FilePath() string {
	return filepath.Join(util.LocforgeConfigPath(), configFileName)
}

// Load loads the configuration from file, merging with defaults.
// If the config file doesn't exist, returns default configuration.
func Load() (*Config, error) {
	cfg := Default()

	configPath := FilePath()
	// #nosec G304 - configPath is constructed from trusted config directory
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvironment()
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnvironment()
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	// #nosec G304 - path is provided by caller
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnvironment()
	return cfg, nil
}

// Save writes the configuration to the config file.
func (c *Config) Save() error {
	return c.SaveToPath(FilePath())
}

// SaveToPath writes the configuration to a specific path.
func (c *Config) SaveToPath(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	// #nosec G306 - config file should be readable by user
	return os.WriteFile(path, data, 0o644)
}

// RetentionMaxAge converts the day-based retention setting into a
// duration.
func (c *Config) RetentionMaxAge() time.Duration {
	return time.Duration(c.Snapshots.RetentionDays) * 24 * time.Hour
}

// applyEnvironment applies environment variable overrides.
// Environment variables follow the pattern LOCFORGE_<SECTION>_<KEY>.
func (c *Config) applyEnvironment() {
	// Server settings
	if v := os.Getenv("LOCFORGE_SERVER_URL"); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv("LOCFORGE_SERVER_API_TOKEN"); v != "" {
		c.Server.APIToken = v
	}
	if v := os.Getenv("LOCFORGE_SERVER_LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("LOCFORGE_SERVER_DATABASE_PATH"); v != "" {
		c.Server.DatabasePath = util.ExpandPath(v)
	}
	if v := os.Getenv("LOCFORGE_SERVER_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Server.RequestTimeout = d
		}
	}

	// GitHub settings
	if v := os.Getenv("LOCFORGE_GITHUB_WEBHOOK_SECRET"); v != "" {
		c.GitHub.WebhookSecret = v
	}
	if v := os.Getenv("LOCFORGE_GITHUB_TOKEN"); v != "" {
		c.GitHub.Token = v
	}
	if v := os.Getenv("LOCFORGE_GITHUB_REPOSITORY"); v != "" {
		c.GitHub.Repository = v
	}
	if v := os.Getenv("LOCFORGE_GITHUB_BRANCH"); v != "" {
		c.GitHub.Branch = v
	}

	// Snapshot settings
	if v := os.Getenv("LOCFORGE_SNAPSHOTS_AUTO"); v != "" {
		c.Snapshots.AutoSnapshot = parseBool(v)
	}
	if v := os.Getenv("LOCFORGE_SNAPSHOTS_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Snapshots.MaxSnapshots = n
		}
	}
	if v := os.Getenv("LOCFORGE_SNAPSHOTS_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Snapshots.RetentionDays = n
		}
	}

	// Translate settings
	if v := os.Getenv("LOCFORGE_TRANSLATE_PROVIDER"); v != "" {
		c.Translate.Provider = v
	}
	if v := os.Getenv("LOCFORGE_TRANSLATE_API_KEY"); v != "" {
		c.Translate.APIKey = v
	}
	if v := os.Getenv("LOCFORGE_TRANSLATE_BASE_URL"); v != "" {
		c.Translate.BaseURL = v
	}

	// Output settings
	if v := os.Getenv("LOCFORGE_OUTPUT_COLOR"); v != "" {
		c.Output.Color = v
	}
	if v := os.Getenv("LOCFORGE_OUTPUT_VERBOSE"); v != "" {
		c.Output.Verbose = parseBool(v)
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
