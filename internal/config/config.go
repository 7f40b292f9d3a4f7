// Package config loads process configuration: credentials and the port from
// the environment (optionally seeded from a .env file) and bot settings from
// a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables.
const (
	EnvSlackBotToken      = "SLACK_BOT_TOKEN"
	EnvSlackSigningSecret = "SLACK_SIGNING_SECRET"
	EnvOpenAIAPIKey       = "OPENAI_API_KEY"
	EnvHubSpotAPIKey      = "HUBSPOT_API_KEY"
	EnvPort               = "PORT"
	EnvOpenAIBaseURL      = "OPENAI_BASE_URL"
	EnvHubSpotBaseURL     = "HUBSPOT_BASE_URL"
	EnvSettingsPath       = "FV_CONFIG"
)

// DefaultPort is used when PORT is unset.
const DefaultPort = 3000

// ErrMissingCredential is returned when a required credential is not set.
var ErrMissingCredential = errors.New("missing credential")

// Config is the effective process configuration.
type Config struct {
	SlackBotToken      string `json:"slack_bot_token"`
	SlackSigningSecret string `json:"slack_signing_secret"`
	OpenAIAPIKey       string `json:"openai_api_key"`
	HubSpotAPIKey      string `json:"hubspot_api_key"`

	Port           int    `json:"port"`
	OpenAIBaseURL  string `json:"openai_base_url,omitempty"`
	HubSpotBaseURL string `json:"hubspot_base_url,omitempty"`

	SettingsPath string   `json:"settings_path"`
	Settings     Settings `json:"settings"`
}

// Load reads .env (without overriding variables already set), the
// environment and the settings file.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := &Config{
		SlackBotToken:      os.Getenv(EnvSlackBotToken),
		SlackSigningSecret: os.Getenv(EnvSlackSigningSecret),
		OpenAIAPIKey:       os.Getenv(EnvOpenAIAPIKey),
		HubSpotAPIKey:      os.Getenv(EnvHubSpotAPIKey),
		OpenAIBaseURL:      os.Getenv(EnvOpenAIBaseURL),
		HubSpotBaseURL:     os.Getenv(EnvHubSpotBaseURL),
		Port:               DefaultPort,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid %s %q", EnvPort, p)
		}
		cfg.Port = port
	}

	cfg.SettingsPath = os.Getenv(EnvSettingsPath)
	if cfg.SettingsPath == "" {
		cfg.SettingsPath = SettingsPath()
	}
	settings, err := LoadSettings(cfg.SettingsPath)
	if err != nil {
		return nil, err
	}
	cfg.Settings = settings

	return cfg, nil
}

// ValidateServe checks the credentials the Slack bot needs.
func (c *Config) ValidateServe() error {
	return errors.Join(
		require(EnvSlackBotToken, c.SlackBotToken),
		require(EnvSlackSigningSecret, c.SlackSigningSecret),
		c.ValidateDeals(),
		require(EnvOpenAIAPIKey, c.OpenAIAPIKey),
	)
}

// ValidateAsk checks the credentials a local question needs.
func (c *Config) ValidateAsk() error {
	return errors.Join(
		c.ValidateDeals(),
		require(EnvOpenAIAPIKey, c.OpenAIAPIKey),
	)
}

// ValidateDeals checks the credentials of the configured deal source.
func (c *Config) ValidateDeals() error {
	if c.Settings.DealSource == SourceHubSpot {
		return require(EnvHubSpotAPIKey, c.HubSpotAPIKey)
	}
	return nil
}

func require(name, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s is not set", ErrMissingCredential, name)
	}
	return nil
}

// Redacted returns a copy safe to print: credentials are masked.
func (c *Config) Redacted() Config {
	out := *c
	out.SlackBotToken = redact(c.SlackBotToken)
	out.SlackSigningSecret = redact(c.SlackSigningSecret)
	out.OpenAIAPIKey = redact(c.OpenAIAPIKey)
	out.HubSpotAPIKey = redact(c.HubSpotAPIKey)
	return out
}

func redact(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "****"
	default:
		return s[:4] + "****"
	}
}
