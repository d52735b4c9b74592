package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server"`
	Auth    AuthConfig    `json:"auth" yaml:"auth"`
	Store   StoreConfig   `json:"store" yaml:"store"`
	Quotes  QuotesConfig  `json:"quotes" yaml:"quotes"`
	Agent   AgentConfig   `json:"agent" yaml:"agent"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
}

// ServerConfig contains HTTP listener parameters
type ServerConfig struct {
	Addr        string  `json:"addr" yaml:"addr"`
	InitialCash float64 `json:"initial_cash" yaml:"initial_cash"`
}

// AuthConfig contains token signing parameters
type AuthConfig struct {
	JWTSecret string `json:"jwt_secret" yaml:"jwt_secret"`
	TokenTTL  string `json:"token_ttl" yaml:"token_ttl"` // e.g. "24h", "30m"
}

// ParseTokenTTL converts the token TTL string to time.Duration
func (a AuthConfig) ParseTokenTTL() (time.Duration, error) {
	if a.TokenTTL == "" {
		return 0, nil
	}
	return time.ParseDuration(a.TokenTTL)
}

// StoreConfig contains portfolio persistence parameters
type StoreConfig struct {
	Type   string `json:"type" yaml:"type"` // "file" or "sqlite"
	Dir    string `json:"dir,omitempty" yaml:"dir,omitempty"`
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// QuotesConfig contains the market data provider chain
type QuotesConfig struct {
	Providers       []string `json:"providers" yaml:"providers"`
	AlphaVantageKey string   `json:"alphavantage_key,omitempty" yaml:"alphavantage_key,omitempty"`
	CacheTTL        string   `json:"cache_ttl,omitempty" yaml:"cache_ttl,omitempty"`
	AllowSynthetic  bool     `json:"allow_synthetic,omitempty" yaml:"allow_synthetic,omitempty"`
}

// ParseCacheTTL converts the cache TTL string to time.Duration
func (q QuotesConfig) ParseCacheTTL() (time.Duration, error) {
	if q.CacheTTL == "" {
		return 0, nil
	}
	return time.ParseDuration(q.CacheTTL)
}

// AgentConfig contains coaching model parameters
type AgentConfig struct {
	Provider  string `json:"provider" yaml:"provider"` // "ollama" or "gemini"
	Model     string `json:"model,omitempty" yaml:"model,omitempty"`
	OllamaURL string `json:"ollama_url,omitempty" yaml:"ollama_url,omitempty"`
	Timeout   string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// ParseTimeout converts the agent timeout string to time.Duration
func (a AgentConfig) ParseTimeout() (time.Duration, error) {
	if a.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(a.Timeout)
}

// JournalConfig contains trade journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv", "sqlite" or "none"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// LoadFromFile loads configuration from a file (JSON or YAML based on content)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if (len(path) > 5 && path[len(path)-5:] == ".yaml") || (len(path) > 4 && path[len(path)-4:] == ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.InitialCash <= 0 {
		return fmt.Errorf("server.initial_cash must be positive")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if _, err := c.Auth.ParseTokenTTL(); err != nil {
		return fmt.Errorf("auth.token_ttl: %w", err)
	}
	if c.Store.Type != "file" && c.Store.Type != "sqlite" {
		return fmt.Errorf("store.type must be 'file' or 'sqlite'")
	}
	if c.Store.Type == "file" && c.Store.Dir == "" {
		return fmt.Errorf("store.dir required for file type")
	}
	if c.Store.Type == "sqlite" && c.Store.DBPath == "" {
		return fmt.Errorf("store.db_path required for sqlite type")
	}
	if len(c.Quotes.Providers) == 0 {
		return fmt.Errorf("quotes.providers must name at least one provider")
	}
	for _, p := range c.Quotes.Providers {
		switch p {
		case "yahoo", "alphavantage", "synthetic":
		default:
			return fmt.Errorf("unknown quote provider: %s", p)
		}
	}
	if _, err := c.Quotes.ParseCacheTTL(); err != nil {
		return fmt.Errorf("quotes.cache_ttl: %w", err)
	}
	if c.Agent.Provider != "ollama" && c.Agent.Provider != "gemini" {
		return fmt.Errorf("agent.provider must be 'ollama' or 'gemini'")
	}
	if _, err := c.Agent.ParseTimeout(); err != nil {
		return fmt.Errorf("agent.timeout: %w", err)
	}
	switch c.Journal.Type {
	case "none":
	case "csv":
		if c.Journal.TradesFile == "" {
			return fmt.Errorf("journal.trades_file required for csv type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal.db_path required for sqlite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite' or 'none'")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":8080",
			InitialCash: 1000,
		},
		Auth: AuthConfig{
			JWTSecret: "dev-secret-change-me",
			TokenTTL:  "24h",
		},
		Store: StoreConfig{
			Type: "file",
			Dir:  "./data",
		},
		Quotes: QuotesConfig{
			Providers: []string{"yahoo"},
			CacheTTL:  "60s",
		},
		Agent: AgentConfig{
			Provider:  "ollama",
			Model:     "gemma3:1b",
			OllamaURL: "http://localhost:11434",
			Timeout:   "30s",
		},
		Journal: JournalConfig{
			Type:       "csv",
			TradesFile: "./trades.csv",
		},
	}
}
