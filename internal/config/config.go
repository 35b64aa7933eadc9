// Package config manages application-level configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"netgauge/internal/fileutil"
)

const (
	// AppName is the application identifier used for XDG paths.
	AppName = "netgauge"
	// ConfigFileName is the name of the main configuration file.
	ConfigFileName = "config.json"
	// UsageFileName is the name of the durable usage-history file.
	UsageFileName = "usage.json"

	// MinPollIntervalSeconds is the fastest supported sampling interval.
	MinPollIntervalSeconds = 0.25
	// MaxPollIntervalSeconds is the slowest supported sampling interval.
	MaxPollIntervalSeconds = 5.0
	// DefaultPollIntervalSeconds is the sampling interval used out of the box.
	DefaultPollIntervalSeconds = 1.0

	// MinBillingDay and MaxBillingDay bound the billing-cycle anchor day.
	// Capping at 28 avoids short-month ambiguity.
	MinBillingDay = 1
	MaxBillingDay = 28
)

// Config represents the application configuration consumed by the
// sampling engine. It is an explicit value: the engine receives it at
// construction and again via ApplyConfig, never through shared globals.
type Config struct {
	PollIntervalSeconds float64  `json:"poll_interval_seconds"`
	ShowBits            bool     `json:"show_bits"`
	UseSI               bool     `json:"use_si"`
	SelectedInterfaces  []string `json:"selected_interfaces,omitempty"`
	DataCapEnabled      bool     `json:"data_cap_enabled"`
	DataCapGB           float64  `json:"data_cap_gb"`
	BillingDay          int      `json:"billing_day"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		PollIntervalSeconds: DefaultPollIntervalSeconds,
		ShowBits:            false,
		UseSI:               true,
		DataCapEnabled:      false,
		DataCapGB:           100,
		BillingDay:          1,
	}
}

// Normalize clamps all fields into their supported ranges.
// Called on load and on every apply, so out-of-range values from a
// hand-edited file never reach the engine.
func (c *Config) Normalize() {
	if c.PollIntervalSeconds < MinPollIntervalSeconds {
		c.PollIntervalSeconds = MinPollIntervalSeconds
	}
	if c.PollIntervalSeconds > MaxPollIntervalSeconds {
		c.PollIntervalSeconds = MaxPollIntervalSeconds
	}
	if c.BillingDay < MinBillingDay {
		c.BillingDay = MinBillingDay
	}
	if c.BillingDay > MaxBillingDay {
		c.BillingDay = MaxBillingDay
	}
	if c.DataCapGB < 0 {
		c.DataCapGB = 0
	}
}

// PollInterval returns the sampling interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds * float64(time.Second))
}

// SelectedSet returns the selected interface names as a membership set.
// A nil set means no explicit selection (default filtering applies).
func (c *Config) SelectedSet() map[string]struct{} {
	if len(c.SelectedInterfaces) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(c.SelectedInterfaces))
	for _, name := range c.SelectedInterfaces {
		set[name] = struct{}{}
	}
	return set
}

// CapBytes returns the configured data cap in bytes (decimal GB).
// Returns 0 when the cap is disabled.
func (c *Config) CapBytes() uint64 {
	if !c.DataCapEnabled || c.DataCapGB <= 0 {
		return 0
	}
	return uint64(c.DataCapGB * 1e9)
}

// Paths holds the resolved per-user application directories.
type Paths struct {
	ConfigDir  string
	DataDir    string
	ConfigFile string
	UsageFile  string
}

// GetPaths returns the application paths following the XDG Base Directory spec.
// Configuration lives under XDG_CONFIG_HOME, durable usage data under
// XDG_DATA_HOME.
func GetPaths() (*Paths, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	dataHome := os.Getenv("XDG_DATA_HOME")
	if configHome == "" || dataHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		if configHome == "" {
			configHome = filepath.Join(homeDir, ".config")
		}
		if dataHome == "" {
			dataHome = filepath.Join(homeDir, ".local", "share")
		}
	}

	configDir := filepath.Join(configHome, AppName)
	dataDir := filepath.Join(dataHome, AppName)
	return &Paths{
		ConfigDir:  configDir,
		DataDir:    dataDir,
		ConfigFile: filepath.Join(configDir, ConfigFileName),
		UsageFile:  filepath.Join(dataDir, UsageFileName),
	}, nil
}

// EnsurePaths creates all necessary application directories.
func (p *Paths) EnsurePaths() error {
	if err := os.MkdirAll(p.ConfigDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.MkdirAll(p.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// Load reads the configuration from disk. A missing file yields the
// defaults; a present file is normalized after parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes the configuration to disk atomically.
func Save(path string, cfg *Config) error {
	if err := fileutil.AtomicWriteJSON(path, cfg, 0600); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

// Manager provides high-level configuration management.
// It is safe for concurrent use from multiple goroutines.
type Manager struct {
	paths  *Paths       // Immutable after construction
	config *Config      // Protected by mu
	mu     sync.RWMutex // Protects config only
}

// NewManager creates a new configuration manager.
// It ensures all necessary directories exist and loads the configuration.
func NewManager() (*Manager, error) {
	paths, err := GetPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get config paths: %w", err)
	}

	if err := paths.EnsurePaths(); err != nil {
		return nil, fmt.Errorf("failed to create config directories: %w", err)
	}

	cfg, err := Load(paths.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &Manager{
		paths:  paths,
		config: cfg,
	}, nil
}

// GetConfig returns a copy of the current configuration.
// The returned copy is safe to read without holding locks.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.config
}

// UsagePath returns the path to the durable usage-history file.
func (m *Manager) UsagePath() string {
	return m.paths.UsageFile
}

// Update normalizes the given configuration, makes it current, and
// saves it to disk.
func (m *Manager) Update(cfg Config) error {
	cfg.Normalize()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = &cfg
	return Save(m.paths.ConfigFile, m.config)
}

// UpdateField atomically updates the configuration using a mutator
// function, then normalizes and saves the result. Holding the lock for
// the whole operation avoids read-modify-write races between callers.
func (m *Manager) UpdateField(mutator func(cfg *Config)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	configCopy := *m.config
	mutator(&configCopy)
	configCopy.Normalize()

	*m.config = configCopy
	return Save(m.paths.ConfigFile, m.config)
}
