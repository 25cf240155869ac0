package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every service setting. Values resolve in three layers:
// built-in defaults, then the YAML file, then environment variables. The
// Anthropic key comes from the environment only and never round-trips
// through a config file.
type Config struct {
	Port           string   `yaml:"port"`
	Env            string   `yaml:"env"`
	LogLevel       string   `yaml:"log_level"`
	DatabaseURL    string   `yaml:"database_url"`
	ModelPath      string   `yaml:"model_path"`
	AnthropicModel string   `yaml:"anthropic_model"`
	RulesPath      string   `yaml:"rules_path"`
	FeedbackPath   string   `yaml:"feedback_path"`
	BatchLimit     int      `yaml:"batch_limit"`
	TLSDomains     []string `yaml:"tls_domains"`
	ACMEEmail      string   `yaml:"acme_email"`

	AnthropicAPIKey string `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:         "8080",
		LogLevel:     "info",
		FeedbackPath: "feedback_data.json",
		BatchLimit:   50,
	}
}

// Load reads configuration from a YAML file, then overlays environment
// variables. A missing file is not an error; defaults apply. Empty path
// skips the file layer entirely.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		case os.IsNotExist(err):
			// fall through to defaults
		default:
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setFromEnv(&c.Port, "PORT")
	setFromEnv(&c.Env, "URLSENTRY_ENV")
	setFromEnv(&c.LogLevel, "LOG_LEVEL")
	setFromEnv(&c.DatabaseURL, "DATABASE_URL")
	setFromEnv(&c.ModelPath, "URLSENTRY_MODEL")
	setFromEnv(&c.AnthropicModel, "ANTHROPIC_MODEL")
	setFromEnv(&c.RulesPath, "URLSENTRY_RULES")
	setFromEnv(&c.FeedbackPath, "URLSENTRY_FEEDBACK")
	setFromEnv(&c.ACMEEmail, "ACME_EMAIL")
	setFromEnv(&c.AnthropicAPIKey, "ANTHROPIC_API_KEY")
}

// Production reports whether the service runs with production settings,
// which selects the live ACME directory in TLS mode.
func (c *Config) Production() bool {
	return c.Env == "production"
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
