package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()

	if cfg.Gemini.Temperature != 0.7 {
		t.Errorf("expected temperature 0.7, got %v", cfg.Gemini.Temperature)
	}
	if cfg.Gemini.CritiqueModel != "gemini-2.5-flash" {
		t.Errorf("expected critique model gemini-2.5-flash, got %s", cfg.Gemini.CritiqueModel)
	}
	if cfg.Gemini.Timeout != 2*time.Minute {
		t.Errorf("expected timeout 2m, got %v", cfg.Gemini.Timeout)
	}
	if cfg.NATS.Port != 4222 {
		t.Errorf("expected nats port 4222, got %d", cfg.NATS.Port)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("expected web port 8080, got %d", cfg.Web.Port)
	}
	if cfg.Store.Path != "data/synedrio.db" {
		t.Errorf("expected store path data/synedrio.db, got %s", cfg.Store.Path)
	}
	if len(cfg.Agents) != 4 {
		t.Fatalf("expected 4 default agents, got %d", len(cfg.Agents))
	}
	if cfg.Agents[0].ID != "chairman" || !cfg.Agents[0].Synthesizer {
		t.Error("expected chairman first and flagged as synthesizer")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("SYNEDRIO_CONFIG", "/nonexistent/config.yaml")
	t.Setenv("GEMINI_API_KEY", "gm-test-key")
	t.Setenv("SYNEDRIO_TELEGRAM_TOKEN", "test-token-123")
	t.Setenv("SYNEDRIO_WEB_PORT", "9090")
	t.Setenv("SYNEDRIO_LOG_LEVEL", "debug")
	t.Setenv("SYNEDRIO_VAULT_PASSPHRASE", "hunter2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Gemini.APIKey != "gm-test-key" {
		t.Errorf("expected api key gm-test-key, got %s", cfg.Gemini.APIKey)
	}
	if cfg.Telegram.Token != "test-token-123" {
		t.Errorf("expected telegram token test-token-123, got %s", cfg.Telegram.Token)
	}
	if cfg.Web.Port != 9090 {
		t.Errorf("expected web port 9090, got %d", cfg.Web.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.LogLevel)
	}
	if cfg.Vault.Passphrase != "hunter2" {
		t.Errorf("expected vault passphrase from env, got %q", cfg.Vault.Passphrase)
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yaml := `
gemini:
  api_key: "${TEST_GEMINI_KEY}"
  timeout: 30s
agents:
  - id: judge
    name: Judge
    synthesizer: true
  - id: a
    name: Alpha
  - id: b
    name: Beta
    disabled: true
web:
  port: 3000
  enabled: false
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SYNEDRIO_CONFIG", cfgPath)
	t.Setenv("TEST_GEMINI_KEY", "expanded-key")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Gemini.APIKey != "expanded-key" {
		t.Errorf("expected expanded-key, got %s", cfg.Gemini.APIKey)
	}
	if cfg.Gemini.Timeout != 30*time.Second {
		t.Errorf("expected timeout 30s, got %v", cfg.Gemini.Timeout)
	}
	if len(cfg.Agents) != 3 {
		t.Fatalf("expected yaml agents to replace defaults, got %d", len(cfg.Agents))
	}
	if cfg.Agents[1].ID != "a" || cfg.Agents[2].ID != "b" {
		t.Errorf("expected agent order to follow the file, got %s, %s", cfg.Agents[1].ID, cfg.Agents[2].ID)
	}
	if !cfg.Agents[2].Disabled {
		t.Error("expected agent b disabled")
	}
	if cfg.Web.Port != 3000 {
		t.Errorf("expected web port 3000, got %d", cfg.Web.Port)
	}
	if cfg.Web.Enabled {
		t.Error("expected web disabled")
	}
	// Untouched sections keep their defaults.
	if cfg.NATS.Port != 4222 {
		t.Errorf("expected default nats port, got %d", cfg.NATS.Port)
	}
}

func TestLoadRejectsInvalidCouncil(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	yaml := `
agents:
  - id: a
  - id: b
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SYNEDRIO_CONFIG", cfgPath)

	if _, err := Load(); !errors.Is(err, ErrNoSynthesizer) {
		t.Fatalf("expected ErrNoSynthesizer, got %v", err)
	}
}

func TestValidateAgents(t *testing.T) {
	tests := []struct {
		name   string
		agents []AgentDefinition
		want   error
	}{
		{
			name:   "valid",
			agents: []AgentDefinition{{ID: "j", Synthesizer: true}, {ID: "a"}},
		},
		{
			name:   "no synthesizer",
			agents: []AgentDefinition{{ID: "a"}},
			want:   ErrNoSynthesizer,
		},
		{
			name:   "two synthesizers",
			agents: []AgentDefinition{{ID: "a", Synthesizer: true}, {ID: "b", Synthesizer: true}},
			want:   ErrMultipleSynthesizers,
		},
		{
			name:   "duplicate id",
			agents: []AgentDefinition{{ID: "a", Synthesizer: true}, {ID: "a"}},
			want:   ErrDuplicateAgent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAgents(tt.agents)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if err := ValidateAgents([]AgentDefinition{{ID: "", Synthesizer: true}}); err == nil {
		t.Error("expected error for empty id")
	}
}
