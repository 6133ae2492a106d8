package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"chaintask/internal/config"
	"chaintask/internal/service"
)

func TestNew_MissingSettingsIsNotAnError(t *testing.T) {
	cfg, err := config.New(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HasSettings() {
		t.Error("expected no settings")
	}
	if cfg.Settings.RPCURL != "" {
		t.Errorf("expected zero settings, got %+v", cfg.Settings)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Dir: dir,
		Settings: config.Settings{
			RPCURL:          "http://localhost:8545",
			ContractAddress: "0xC000000000000000000000000000000000000001",
			ChainID:         1337,
			KeystoreDir:     "/var/lib/chaintask/keys",
		},
	}
	if err := cfg.SaveSettings(); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := config.New(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Settings != cfg.Settings {
		t.Errorf("expected %+v, got %+v", cfg.Settings, loaded.Settings)
	}
}

func TestNew_InvalidSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, config.SettingsFile)
	if err := os.WriteFile(path, []byte("rpc_url: [not, a, string"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := config.New(dir); err == nil {
		t.Error("expected an error for malformed yaml")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	cfg := &config.Config{Dir: t.TempDir()}
	sess := service.Session{
		Address:   "0xAAA0000000000000000000000000000000000001",
		NetworkID: 1337,
	}

	if cfg.HasSession() {
		t.Fatal("expected no session before write")
	}
	if err := cfg.WriteSession(sess); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !cfg.HasSession() {
		t.Fatal("expected session after write")
	}

	got, err := cfg.ReadSession()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != sess {
		t.Errorf("expected %+v, got %+v", sess, got)
	}

	if err := cfg.RemoveSession(); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if cfg.HasSession() {
		t.Error("expected no session after remove")
	}
}

func TestSessionFileHoldsNoSecrets(t *testing.T) {
	cfg := &config.Config{Dir: t.TempDir()}
	sess := service.Session{
		Address:   "0xAAA0000000000000000000000000000000000001",
		NetworkID: 1337,
	}
	if err := cfg.WriteSession(sess); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(cfg.SessionPath())
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	expected := "{\n  \"address\": \"0xAAA0000000000000000000000000000000000001\",\n  \"network_id\": 1337\n}"
	if string(data) != expected {
		t.Errorf("expected %q, got %q", expected, string(data))
	}

	info, err := os.Stat(cfg.SessionPath())
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("expected mode 0600, got %o", perm)
	}
}

func TestKeystorePath(t *testing.T) {
	cfg := &config.Config{Dir: "/tmp/chaintask-test"}

	if got := cfg.KeystorePath(); got != "/tmp/chaintask-test/keystore" {
		t.Errorf("unexpected default keystore path: %s", got)
	}

	cfg.Settings.KeystoreDir = "/srv/keys"
	if got := cfg.KeystorePath(); got != "/srv/keys" {
		t.Errorf("expected override honored, got %s", got)
	}
}

func TestDefaultConfigDir_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")

	if got := config.DefaultConfigDir(); got != "/xdg/config/chaintask" {
		t.Errorf("unexpected config dir: %s", got)
	}
}
