package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Session backend identifiers.
const (
	SessionBackendSQLite  = "sqlite"
	SessionBackendKeyring = "keyring"
)

// DefaultBaseURL is used when neither the config file nor the environment
// names an API endpoint.
const DefaultBaseURL = "http://localhost:3000/api"

// APIConfig holds the connection settings for the bug API.
type APIConfig struct {
	// BaseURL is the root of the REST API, e.g. http://localhost:3000/api.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// SessionConfig selects where the token and user profile are persisted.
type SessionConfig struct {
	// Backend is "sqlite" or "keyring".
	Backend string `mapstructure:"backend" yaml:"backend"`

	// Path is the sqlite database file (ignored by the keyring backend).
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig controls the file logger.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
}

// ConfigDir returns ~/.config/bugtracker, or the working directory when
// the home directory cannot be determined.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "bugtracker")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/bugtracker/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

func defaultAppConfig() *AppConfig {
	dir := ConfigDir()
	return &AppConfig{
		API: APIConfig{
			BaseURL: DefaultBaseURL,
		},
		Session: SessionConfig{
			Backend: SessionBackendSQLite,
			Path:    filepath.Join(dir, "session.db"),
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(dir, "bugtracker.log"),
		},
		Display: DisplayConfig{
			Theme: "default",
		},
	}
}

func newViper(path string) *viper.Viper {
	defaults := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("BUGTRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("api.base_url", "BUGTRACKER_API_BASE_URL", "BUGTRACKER_API_URL")

	v.SetDefault("api.base_url", defaults.API.BaseURL)
	v.SetDefault("session.backend", defaults.Session.Backend)
	v.SetDefault("session.path", defaults.Session.Path)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.file", defaults.Log.File)
	v.SetDefault("display.theme", defaults.Display.Theme)
	return v
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A missing file yields the defaults. Environment variables prefixed with
// BUGTRACKER_ (e.g. BUGTRACKER_API_BASE_URL, or the shorter
// BUGTRACKER_API_URL) override file values.
func LoadConfig(path string) (*AppConfig, error) {
	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = DefaultBaseURL
	}
	cfg.Session.Path = ExpandHome(cfg.Session.Path)
	cfg.Log.File = ExpandHome(cfg.Log.File)

	switch cfg.Session.Backend {
	case SessionBackendSQLite, SessionBackendKeyring:
	default:
		return nil, fmt.Errorf("parsing config %s: unknown session backend %q", path, cfg.Session.Backend)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("session", cfg.Session)
	v.Set("log", cfg.Log)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
