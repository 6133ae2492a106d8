package config

import (
	"encoding/json"
	"fmt"
	"os"

	"chaintask/internal/service"
)

// ReadSession loads the persisted session. The file holds only the address
// and chain id; no key material is ever written here.
func (c *Config) ReadSession() (service.Session, error) {
	data, err := os.ReadFile(c.SessionPath())
	if err != nil {
		return service.Session{}, fmt.Errorf("failed to read %s: %w", SessionFile, err)
	}
	var sess service.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return service.Session{}, fmt.Errorf("invalid %s: %w", SessionFile, err)
	}
	return sess, nil
}

// WriteSession persists the session with mode 0600.
func (c *Config) WriteSession(sess service.Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	if err := c.EnsureDir(); err != nil {
		return err
	}
	return os.WriteFile(c.SessionPath(), data, 0600)
}

// RemoveSession deletes the persisted session file.
func (c *Config) RemoveSession() error {
	return os.Remove(c.SessionPath())
}
