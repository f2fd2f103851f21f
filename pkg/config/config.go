// Package config loads the melodygen settings file and the server
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/james-see/melodygen/pkg/composer"
	"github.com/james-see/melodygen/pkg/harmony"
)

const (
	// DefaultBaseDir is the configuration directory under the user's home
	DefaultBaseDir = ".melodygen"
	// DefaultConfigFile is the configuration filename
	DefaultConfigFile = "config.yaml"
)

// Config is the settings file.
type Config struct {
	// Defaults are the generation parameters used when a flag is not given
	Defaults composer.Params `yaml:"defaults"`

	// Presets are extra harmonic rhythms registered next to the built-in ones
	Presets []harmony.Preset `yaml:"presets,omitempty"`

	// Output controls where and how generated pieces are written
	Output Output `yaml:"output"`

	configPath string
}

// Output holds export settings.
type Output struct {
	Dir    string `yaml:"dir,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Defaults: composer.DefaultParams(),
		Output:   Output{Dir: ".", Format: "midi"},
	}
}

// DefaultPath returns ~/.melodygen/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DefaultBaseDir, DefaultConfigFile), nil
}

// Load reads the configuration at path, or at DefaultPath when path is empty.
// A missing file yields the defaults. Fields absent from the file keep their
// default values.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	cfg.configPath = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	for _, p := range cfg.Presets {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Save writes the configuration back to its path.
func (c *Config) Save() error {
	if c.configPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		c.configPath = p
	}
	if err := os.MkdirAll(filepath.Dir(c.configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.configPath
}

// Registry returns the built-in presets plus the ones from the file.
func (c *Config) Registry() (*harmony.Registry, error) {
	reg := harmony.NewRegistry()
	for _, p := range c.Presets {
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Server is the HTTP server configuration, taken from the environment.
type Server struct {
	Environment string
	Port        string
	SentryDSN   string
	ConfigPath  string
}

// LoadServer reads PORT, ENVIRONMENT, SENTRY_DSN and MELODYGEN_CONFIG.
func LoadServer() *Server {
	return &Server{
		Environment: getEnv("ENVIRONMENT", "development"),
		Port:        getEnv("PORT", "8080"),
		SentryDSN:   getEnv("SENTRY_DSN", ""),
		ConfigPath:  getEnv("MELODYGEN_CONFIG", ""),
	}
}

// IsProduction reports whether the server runs in production.
func (s *Server) IsProduction() bool {
	return s.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}
