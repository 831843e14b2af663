package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrNoSynthesizer        = errors.New("no agent is flagged as synthesizer")
	ErrMultipleSynthesizers = errors.New("more than one agent is flagged as synthesizer")
	ErrDuplicateAgent       = errors.New("duplicate agent id")
)

type Config struct {
	LogLevel string            `yaml:"log_level"`
	Gemini   GeminiConfig      `yaml:"gemini"`
	Agents   []AgentDefinition `yaml:"agents"`
	NATS     NATSConfig        `yaml:"nats"`
	Store    StoreConfig       `yaml:"store"`
	Web      WebConfig         `yaml:"web"`
	Telegram TelegramConfig    `yaml:"telegram"`
	Vault    VaultConfig       `yaml:"-"`
}

// AgentDefinition describes one council member. Definitions are loaded once
// and never change for the lifetime of the process.
type AgentDefinition struct {
	ID           string `yaml:"id" json:"id"`
	Name         string `yaml:"name" json:"name"`
	Role         string `yaml:"role" json:"role"`
	Description  string `yaml:"description" json:"description,omitempty"`
	Instructions string `yaml:"instructions" json:"-"`
	Model        string `yaml:"model" json:"model,omitempty"`
	Icon         string `yaml:"icon" json:"icon,omitempty"`
	Color        string `yaml:"color" json:"color,omitempty"`
	Synthesizer  bool   `yaml:"synthesizer" json:"synthesizer"`
	Disabled     bool   `yaml:"disabled" json:"disabled"`
}

type GeminiConfig struct {
	APIKey              string        `yaml:"api_key"`
	Model               string        `yaml:"model"`
	CritiqueModel       string        `yaml:"critique_model"`
	SynthesisModel      string        `yaml:"synthesis_model"`
	Temperature         float64       `yaml:"temperature"`
	CritiqueTemperature float64       `yaml:"critique_temperature"`
	Timeout             time.Duration `yaml:"timeout"`
}

type NATSConfig struct {
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type WebConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type TelegramConfig struct {
	Token     string  `yaml:"token"`
	AllowFrom []int64 `yaml:"allow_from"`
}

type VaultConfig struct {
	Passphrase string
}

func defaults() Config {
	return Config{
		LogLevel: "info",
		Gemini: GeminiConfig{
			Model:               "gemini-2.5-flash",
			CritiqueModel:       "gemini-2.5-flash",
			SynthesisModel:      "gemini-3-pro-preview",
			Temperature:         0.7,
			CritiqueTemperature: 0.5,
			Timeout:             2 * time.Minute,
		},
		Agents: DefaultCouncil(),
		NATS: NATSConfig{
			Port:    4222,
			DataDir: "data/nats",
		},
		Store: StoreConfig{
			Path: "data/synedrio.db",
		},
		Web: WebConfig{
			Enabled: true,
			Port:    8080,
		},
	}
}

func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("SYNEDRIO_CONFIG")
	if path == "" {
		path = "config/synedrio.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the agent catalogue: ids must be unique and non-empty and
// exactly one agent must be the synthesizer.
func (c *Config) Validate() error {
	return ValidateAgents(c.Agents)
}

func ValidateAgents(agents []AgentDefinition) error {
	seen := make(map[string]bool, len(agents))
	synthesizers := 0
	for i, a := range agents {
		if a.ID == "" {
			return fmt.Errorf("agent at position %d has no id", i)
		}
		if seen[a.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateAgent, a.ID)
		}
		seen[a.ID] = true
		if a.Synthesizer {
			synthesizers++
		}
	}
	switch {
	case synthesizers == 0:
		return ErrNoSynthesizer
	case synthesizers > 1:
		return ErrMultipleSynthesizers
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	}
	if v := os.Getenv("SYNEDRIO_TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("SYNEDRIO_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}
	if v := os.Getenv("SYNEDRIO_NATS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.NATS.Port = port
		}
	}
	if v := os.Getenv("SYNEDRIO_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("SYNEDRIO_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	cfg.Vault.Passphrase = os.Getenv("SYNEDRIO_VAULT_PASSPHRASE")
}
