package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonesrussell/dealwatch/internal/config"
)

const validYAML = `
debug: true
database:
  host: localhost
  user: dealwatch
  password: secret
  dbname: dealwatch
redis:
  url: localhost:6379
storefront:
  base_url: https://store.example.com
telegram:
  token: 123:abc
  chat_id: -1001234567890
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Address != ":8080" {
		t.Errorf("Server.Address = %q, want %q", cfg.Server.Address, ":8080")
	}
	if cfg.Database.Port != "5432" {
		t.Errorf("Database.Port = %q, want %q", cfg.Database.Port, "5432")
	}
	if cfg.Storefront.RetryAttempts != 3 {
		t.Errorf("Storefront.RetryAttempts = %d, want 3", cfg.Storefront.RetryAttempts)
	}
	if cfg.Storefront.RetryPeriod != 420*time.Second {
		t.Errorf("Storefront.RetryPeriod = %v, want %v", cfg.Storefront.RetryPeriod, 420*time.Second)
	}
	if cfg.Pipeline.ProbeCount != 200 {
		t.Errorf("Pipeline.ProbeCount = %d, want 200", cfg.Pipeline.ProbeCount)
	}
	if cfg.Pipeline.UpdateLimit != 100 {
		t.Errorf("Pipeline.UpdateLimit = %d, want 100", cfg.Pipeline.UpdateLimit)
	}
	if cfg.Pipeline.PublishInterval != 24*time.Hour {
		t.Errorf("Pipeline.PublishInterval = %v, want %v", cfg.Pipeline.PublishInterval, 24*time.Hour)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DB_PASSWORD", "from-env")
	t.Setenv("TELEGRAM_CHAT_ID", "-42")
	t.Setenv("DEALWATCH_PORT", "9090")

	cfg, err := config.Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Password != "from-env" {
		t.Errorf("Database.Password = %q, want %q", cfg.Database.Password, "from-env")
	}
	if cfg.Telegram.ChatID != -42 {
		t.Errorf("Telegram.ChatID = %d, want -42", cfg.Telegram.ChatID)
	}
	if cfg.Server.Address != ":9090" {
		t.Errorf("Server.Address = %q, want %q", cfg.Server.Address, ":9090")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	testCases := []struct {
		name string
		yaml string
	}{
		{
			name: "missing database host",
			yaml: `
database:
  dbname: dealwatch
redis:
  url: localhost:6379
storefront:
  base_url: https://store.example.com
telegram:
  token: 123:abc
  chat_id: 1
`,
		},
		{
			name: "missing telegram token",
			yaml: `
database:
  host: localhost
  dbname: dealwatch
redis:
  url: localhost:6379
storefront:
  base_url: https://store.example.com
telegram:
  chat_id: 1
`,
		},
		{
			name: "missing storefront base url",
			yaml: `
database:
  host: localhost
  dbname: dealwatch
redis:
  url: localhost:6379
telegram:
  token: 123:abc
  chat_id: 1
`,
		},
		{
			name: "not yaml at all",
			yaml: `{{{`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := config.Load(writeConfig(t, tc.yaml)); err == nil {
				t.Error("Load() expected error, got nil")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}
