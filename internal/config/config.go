// Package config handles the XDG configuration directory, the settings file,
// and the persisted session.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	// AppName is the application directory name.
	AppName = "chaintask"

	// SettingsFile is the yaml settings filename.
	SettingsFile = "config.yaml"

	// SessionFile is the persisted session filename.
	SessionFile = "session.json"

	// KeystoreDirName is the default keystore directory under the config
	// directory.
	KeystoreDirName = "keystore"
)

// Settings are the node and contract parameters read from config.yaml.
type Settings struct {
	// RPCURL is the JSON-RPC endpoint of the node.
	RPCURL string `yaml:"rpc_url"`

	// ContractAddress is the deployed task contract address (0x-hex).
	ContractAddress string `yaml:"contract_address"`

	// ChainID is the expected network. Connecting to a node reporting a
	// different chain id fails; the value is configuration, never
	// hardcoded.
	ChainID uint64 `yaml:"chain_id"`

	// KeystoreDir overrides the default keystore location.
	KeystoreDir string `yaml:"keystore_dir"`
}

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool

	// Settings are loaded from config.yaml when present.
	Settings Settings
}

// New creates a Config rooted at configDir (default: XDG_CONFIG_HOME/chaintask
// or $HOME/.config/chaintask) and loads config.yaml if it exists.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	cfg := &Config{Dir: dir}
	if err := cfg.loadSettings(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// SettingsPath returns the path to config.yaml.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Dir, SettingsFile)
}

// SessionPath returns the path to the persisted session file.
func (c *Config) SessionPath() string {
	return filepath.Join(c.Dir, SessionFile)
}

// KeystorePath returns the keystore directory, honoring the override in
// config.yaml.
func (c *Config) KeystorePath() string {
	if c.Settings.KeystoreDir != "" {
		return c.Settings.KeystoreDir
	}
	return filepath.Join(c.Dir, KeystoreDirName)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// HasSettings checks if config.yaml exists.
func (c *Config) HasSettings() bool {
	_, err := os.Stat(c.SettingsPath())
	return err == nil
}

// HasSession checks if a persisted session exists.
func (c *Config) HasSession() bool {
	_, err := os.Stat(c.SessionPath())
	return err == nil
}

// Logger builds the logger for the process: development logging when Debug
// is set, a nop logger otherwise.
func (c *Config) Logger() *zap.Logger {
	if !c.Debug {
		return zap.NewNop()
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func (c *Config) loadSettings() error {
	data, err := os.ReadFile(c.SettingsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", SettingsFile, err)
	}
	if err := yaml.Unmarshal(data, &c.Settings); err != nil {
		return fmt.Errorf("invalid %s: %w", SettingsFile, err)
	}
	return nil
}

// SaveSettings writes the settings to config.yaml.
func (c *Config) SaveSettings() error {
	data, err := yaml.Marshal(c.Settings)
	if err != nil {
		return err
	}
	if err := c.EnsureDir(); err != nil {
		return err
	}
	return os.WriteFile(c.SettingsPath(), data, 0600)
}
