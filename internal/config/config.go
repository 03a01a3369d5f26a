package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Config is the top-level configuration structure.
type Config struct {
	Server                      ServerConfig   `json:"server"`
	Database                    DatabaseConfig `json:"database"`
	Notify                      NotifyConfig   `json:"notify"`
	LLM                         LLMConfig      `json:"llm"`
	SkillsDir                   string         `json:"skills_dir"`
	IndividualBlockedCategories []string       `json:"individual_blocked_categories" validate:"dive,oneof=ats email calendar database llm sheets airtable"`
}

type ServerConfig struct {
	Port     int    `json:"port" validate:"min=1,max=65535"`
	LogLevel string `json:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	URL    string `json:"url" validate:"omitempty,url"`
	Stream string `json:"stream"`
}

type NotifyConfig struct {
	Slack   SlackNotifyConfig   `json:"slack"`
	Discord DiscordNotifyConfig `json:"discord"`
}

type SlackNotifyConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token" validate:"required_if=Enabled true"`
	Channel  string `json:"channel" validate:"required_if=Enabled true"`
}

type DiscordNotifyConfig struct {
	Enabled   bool   `json:"enabled"`
	BotToken  string `json:"bot_token" validate:"required_if=Enabled true"`
	ChannelID string `json:"channel_id" validate:"required_if=Enabled true"`
}

// LLMConfig is the fallback model used when neither the org nor the user
// picked one.
type LLMConfig struct {
	DefaultProvider string `json:"default_provider"`
	DefaultModel    string `json:"default_model" validate:"required_with=DefaultProvider"`
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

var validate = validator.New()

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server:    ServerConfig{Port: 3210, LogLevel: "info"},
		SkillsDir: "skills",

		IndividualBlockedCategories: []string{"ats"},
	}
}

// Load reads a JSON config file and substitutes environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse substitutes environment references in data, decodes it over the
// defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	cfg := Default()
	if err := json.Unmarshal([]byte(resolved), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
