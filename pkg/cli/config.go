package cli

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/goccy/go-yaml"

	"github.com/lincolnyu/qsharp-sub003/pkg/stress"
)

const (
	// DefaultBaseDir is the base configuration directory name
	DefaultBaseDir = ".ringbench"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.yaml"
	// DefaultProfile is the name of the profile used when none is configured
	DefaultProfile = "default"
)

var (
	// ErrProfileNotFound is returned when a named profile does not exist.
	ErrProfileNotFound = errors.New("cli: profile not found")
	// ErrNoCurrentProfile is returned when no profile has been selected.
	ErrNoCurrentProfile = errors.New("cli: no current profile set")
)

// Config is the configuration file of a CLI app: a set of named profiles
// and the one currently in use.
type Config struct {
	// AppName is the application name (e.g., "ringbench")
	AppName string `yaml:"-"`

	// CurrentProfile is the name of the profile used when none is given
	CurrentProfile string `yaml:"current_profile,omitempty"`

	// Profiles maps profile names to profiles
	Profiles map[string]*Profile `yaml:"profiles,omitempty"`

	configPath string
}

// Profile is a saved stress scenario plus the settings of the run around
// it.
type Profile struct {
	Name string `yaml:"name"`

	Scenario stress.Scenario `yaml:"scenario"`

	// Record stores every report of the profile in the run history
	Record bool `yaml:"record,omitempty"`

	// HistoryDir overrides the run history location (optional)
	HistoryDir string `yaml:"history_dir,omitempty"`

	// MetricsAddr is the listen address for serve-metrics (optional)
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// NewProfile returns a profile holding the default scenario.
func NewProfile(name string) *Profile {
	return &Profile{Name: name, Scenario: stress.DefaultScenario()}
}

// LoadConfig loads or creates configuration for the specified app
func LoadConfig(appName string) (*Config, error) {
	return LoadConfigWithPath(appName, "")
}

// LoadConfigWithPath loads configuration from a custom path
func LoadConfigWithPath(appName, customPath string) (*Config, error) {
	configPath := customPath
	if configPath == "" {
		paths, err := NewPaths(appName)
		if err != nil {
			return nil, err
		}
		configPath = paths.ConfigFile()
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return nil, fmt.Errorf("cli: create config directory: %w", err)
	}

	cfg := &Config{
		AppName:    appName,
		Profiles:   make(map[string]*Profile),
		configPath: configPath,
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Save()
		}
		return nil, fmt.Errorf("cli: read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cli: parse config %s: %w", configPath, err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]*Profile)
	}
	for name, p := range cfg.Profiles {
		if p == nil {
			return nil, fmt.Errorf("cli: parse config %s: profile %q is empty", configPath, name)
		}
		p.Name = name
	}

	cfg.AppName = appName
	cfg.configPath = configPath
	return cfg, nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("cli: marshal config: %w", err)
	}
	if err := os.WriteFile(c.configPath, data, 0600); err != nil {
		return fmt.Errorf("cli: write config: %w", err)
	}
	return nil
}

// Path returns the config file path
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the config directory path
func (c *Config) Dir() string {
	return filepath.Dir(c.configPath)
}

// AddProfile adds or replaces a profile. The first profile added becomes
// the current one.
func (c *Config) AddProfile(name string, p *Profile) error {
	p.Name = name
	c.Profiles[name] = p
	if c.CurrentProfile == "" {
		c.CurrentProfile = name
	}
	return c.Save()
}

// DeleteProfile removes a profile
func (c *Config) DeleteProfile(name string) error {
	if _, ok := c.Profiles[name]; !ok {
		return fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}
	delete(c.Profiles, name)
	if c.CurrentProfile == name {
		c.CurrentProfile = ""
	}
	return c.Save()
}

// UseProfile sets the current profile
func (c *Config) UseProfile(name string) error {
	if _, ok := c.Profiles[name]; !ok {
		return fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}
	c.CurrentProfile = name
	return c.Save()
}

// GetProfile returns a specific profile
func (c *Config) GetProfile(name string) (*Profile, error) {
	p, ok := c.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}
	return p, nil
}

// GetCurrentProfile returns the current profile
func (c *Config) GetCurrentProfile() (*Profile, error) {
	if c.CurrentProfile == "" {
		return nil, ErrNoCurrentProfile
	}
	return c.GetProfile(c.CurrentProfile)
}

// ResolveProfile returns the named profile, or the current one if name is
// empty. With neither, it returns a fresh default profile.
func (c *Config) ResolveProfile(name string) (*Profile, error) {
	if name != "" {
		return c.GetProfile(name)
	}
	p, err := c.GetCurrentProfile()
	if errors.Is(err, ErrNoCurrentProfile) {
		return NewProfile(DefaultProfile), nil
	}
	return p, err
}

// ListProfiles returns all profile names, sorted
func (c *Config) ListProfiles() []string {
	return slices.Sorted(maps.Keys(c.Profiles))
}
