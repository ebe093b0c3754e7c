package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines agent configuration.
type Config struct {
	Agent  AgentConfig  `yaml:"agent"`
	Owner  OwnerConfig  `yaml:"owner"`
	Oracle OracleConfig `yaml:"oracle"`
	DB     DBConfig     `yaml:"db"`
	Poll   PollConfig   `yaml:"poll"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

// AgentConfig is the mail account the agent negotiates from.
type AgentConfig struct {
	Address      string `yaml:"address"`
	IMAPHost     string `yaml:"imap_host"`
	IMAPPort     int    `yaml:"imap_port"`
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	SMTPStartTLS bool   `yaml:"smtp_starttls"`
}

// OwnerConfig identifies the human the agent represents.
type OwnerConfig struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	// Preferences is free text handed to the policy oracle with every
	// decision, e.g. "mornings only, prefers video calls".
	Preferences string `yaml:"preferences"`
}

// OracleConfig points at the decision model.
type OracleConfig struct {
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Endpoint string `yaml:"endpoint"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

// PollConfig controls the negotiation loop.
type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// AuthToken guards the HTTP MCP transport; empty disables auth.
	AuthToken string `yaml:"auth_token"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from an optional YAML file and environment
// variables. Secrets may be written as "$ENV_NAME" in the file; they resolve
// from the environment at load time so config files stay safe to commit.
func Load(path string) (Config, error) {
	cfg := Config{
		Agent: AgentConfig{
			IMAPPort: 993,
			SMTPPort: 465,
		},
		Oracle: OracleConfig{
			Model: "gpt-4o-mini",
		},
		DB: DBConfig{
			Path: "accord.db",
		},
		Poll: PollConfig{
			Interval: 2 * time.Minute,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Log: LogConfig{
			Level: "info",
		},
	}

	if path == "" {
		path = os.Getenv("ACCORD_CONFIG_PATH")
	}
	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if dbPath := os.Getenv("ACCORD_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("ACCORD_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if host := os.Getenv("ACCORD_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("ACCORD_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ACCORD_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if interval := os.Getenv("ACCORD_POLL_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ACCORD_POLL_INTERVAL: %w", err)
		}
		cfg.Poll.Interval = d
	}

	var err error
	if cfg.Agent.Password, err = resolveSecret(cfg.Agent.Password); err != nil {
		return Config{}, fmt.Errorf("agent password: %w", err)
	}
	if cfg.Oracle.APIKey, err = resolveSecret(cfg.Oracle.APIKey); err != nil {
		return Config{}, fmt.Errorf("oracle api key: %w", err)
	}
	if cfg.Server.AuthToken, err = resolveSecret(cfg.Server.AuthToken); err != nil {
		return Config{}, fmt.Errorf("server auth token: %w", err)
	}
	if cfg.Agent.Username == "" {
		cfg.Agent.Username = cfg.Agent.Address
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// resolveSecret expands "$ENV_NAME" values from the environment.
func resolveSecret(value string) (string, error) {
	if !strings.HasPrefix(value, "$") {
		return value, nil
	}
	name := strings.TrimPrefix(value, "$")
	resolved, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("environment variable %s is not set", name)
	}
	return resolved, nil
}
