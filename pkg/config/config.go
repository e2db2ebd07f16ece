// Package config loads engine and execution configuration from a YAML file
// and environment variables. Environment variables override YAML values;
// secrets only ever come from the environment. The loaded value is threaded
// explicitly through constructors, never read from package globals.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the execution core.
type Config struct {
	Env string `yaml:"env" env:"LOTUS_ENV" env-default:"local"`

	// Engine is the target database this instance executes against.
	Engine EngineConfig `yaml:"engine"`

	// RulesPath points at the YAML visibility rule file. Empty means no
	// user-configured rules (built-in deny lists still apply).
	RulesPath string `yaml:"rules_path" env:"LOTUS_RULES_PATH" env-default:""`

	// QueryTimeout bounds each execution end to end.
	QueryTimeout time.Duration `yaml:"query_timeout" env:"LOTUS_QUERY_TIMEOUT" env-default:"30s"`

	// StatementTimeout is the per-statement budget applied inside the
	// transaction, where the engine supports one.
	StatementTimeout time.Duration `yaml:"statement_timeout" env:"LOTUS_STATEMENT_TIMEOUT" env-default:"15s"`
}

// EngineConfig holds connection options for one database target.
type EngineConfig struct {
	Driver   string `yaml:"driver" env:"LOTUS_DB_DRIVER" env-default:"postgres"`
	Host     string `yaml:"host" env:"LOTUS_DB_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"LOTUS_DB_PORT" env-default:"0"`
	User     string `yaml:"user" env:"LOTUS_DB_USER" env-default:""`
	Password string `yaml:"-" env:"LOTUS_DB_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"LOTUS_DB_NAME" env-default:""`
	SSLMode  string `yaml:"ssl_mode" env:"LOTUS_DB_SSLMODE" env-default:"require"`

	// Path is the database file for SQLite targets.
	Path string `yaml:"path" env:"LOTUS_DB_PATH" env-default:""`

	MaxConnections int32 `yaml:"max_connections" env:"LOTUS_DB_MAX_CONNECTIONS" env-default:"10"`
}

// Load reads configuration from the given YAML file, falling back to
// environment variables only when the file does not exist.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
			cfg.applyDefaults()
			return cfg, nil
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read config from environment: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Engine.Port == 0 {
		switch c.Engine.Driver {
		case "postgres":
			c.Engine.Port = 5432
		case "mysql":
			c.Engine.Port = 3306
		}
	}
}

// PostgresDSN builds a PostgreSQL URL with every user-provided field escaped,
// so passwords containing @, /, # or ? do not break URL parsing.
func (e *EngineConfig) PostgresDSN() string {
	sslMode := e.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}
	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(e.User),
		url.QueryEscape(e.Password),
		e.Host,
		e.Port,
		url.QueryEscape(e.Database),
		sslMode,
	)
}
