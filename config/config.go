// Package config loads server configuration from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Speech  SpeechConfig  `yaml:"speech"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Address      string `yaml:"address"`
	ReadTimeout  int    `yaml:"read_timeout"`  // seconds
	WriteTimeout int    `yaml:"write_timeout"` // seconds
	IdleTimeout  int    `yaml:"idle_timeout"`  // seconds
}

// SpeechConfig holds recognition defaults applied to every session that does
// not override them.
type SpeechConfig struct {
	// Recognizer is the process-wide default recognizer resource, e.g.
	// "projects/p/locations/global/recognizers/r". Required.
	Recognizer                 string   `yaml:"recognizer"`
	Endpoint                   string   `yaml:"endpoint"`
	LanguageCodes              []string `yaml:"language_codes"`
	Model                      string   `yaml:"model"`
	EnableAutomaticPunctuation bool     `yaml:"enable_automatic_punctuation"`
	InterimResults             bool     `yaml:"interim_results"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      ":8081",
			ReadTimeout:  10,
			WriteTimeout: 10,
			IdleTimeout:  60,
		},
		Speech: SpeechConfig{
			LanguageCodes:              []string{"en-US"},
			Model:                      "latest_long",
			EnableAutomaticPunctuation: true,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path (optional, "" for defaults only), applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv lets deployment environments override the file without editing it.
func (c *Config) applyEnv() {
	if v := os.Getenv("STT_SERVER_ADDRESS"); v != "" {
		c.Server.Address = v
	}
	if v := os.Getenv("STT_RECOGNIZER"); v != "" {
		c.Speech.Recognizer = v
	}
	if v := os.Getenv("STT_SPEECH_ENDPOINT"); v != "" {
		c.Speech.Endpoint = v
	}
	if v := os.Getenv("STT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks required fields and value shapes.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	if c.Speech.Recognizer == "" {
		return fmt.Errorf("speech.recognizer is required")
	}
	if !strings.HasPrefix(c.Speech.Recognizer, "projects/") {
		return fmt.Errorf("speech.recognizer must be a full resource name, got %q", c.Speech.Recognizer)
	}
	if len(c.Speech.LanguageCodes) == 0 {
		return fmt.Errorf("speech.language_codes must not be empty")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}
