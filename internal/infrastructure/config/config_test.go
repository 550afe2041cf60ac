package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfig writes a temp YAML config file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
security:
  jwt_secret: test-secret-key-at-least-32-characters-long
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("default server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Path != "./data/parkshare.db" {
		t.Errorf("default database.path = %q", cfg.Database.Path)
	}
	if !cfg.Database.WALMode {
		t.Error("default database.wal_mode should be true")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("default logging = %+v", cfg.Logging)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
database:
  path: /tmp/other.db
security:
  jwt_secret: test-secret-key-at-least-32-characters-long
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("server.port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.Path != "/tmp/other.db" {
		t.Errorf("database.path = %q, want /tmp/other.db", cfg.Database.Path)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PARKSHARE_JWT_SECRET", "env-secret-key-at-least-32-characters!!")
	t.Setenv("PARKSHARE_DATABASE_PATH", "/tmp/env.db")
	t.Setenv("PARKSHARE_SERVER_PORT", "7070")

	path := writeConfig(t, `
security:
  jwt_secret: file-secret-key-at-least-32-characters!
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Security.JWTSecret != "env-secret-key-at-least-32-characters!!" {
		t.Error("env JWT secret should override file value")
	}
	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("database.path = %q, want /tmp/env.db", cfg.Database.Path)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("server.port = %d, want 7070", cfg.Server.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load() should fail on missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "	tab-indented: nonsense\n")
	if _, err := Load(path); err == nil {
		t.Error("Load() should fail on invalid YAML")
	}
}

func TestValidate_MissingSecret(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() should fail without a JWT secret")
	}
	if !strings.Contains(err.Error(), "jwt_secret") {
		t.Errorf("error should mention jwt_secret, got %v", err)
	}
}

func TestValidate_ShortSecret(t *testing.T) {
	path := writeConfig(t, `
security:
  jwt_secret: too-short
`)

	if _, err := Load(path); err == nil {
		t.Error("Load() should reject a short JWT secret")
	}
}

func TestValidate_BadPort(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 99999
security:
  jwt_secret: test-secret-key-at-least-32-characters-long
`)

	if _, err := Load(path); err == nil {
		t.Error("Load() should reject an out-of-range port")
	}
}
