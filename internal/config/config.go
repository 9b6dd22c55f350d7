// Package config provides Viper-based configuration loading for the combat
// engine server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP gateway settings.
type ServerConfig struct {
	// Host is the bind address for the websocket gateway.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the websocket gateway.
	Port int `mapstructure:"port"`
	// MetricsPort is the TCP port for the Prometheus /metrics endpoint.
	// 0 disables the endpoint.
	MetricsPort int `mapstructure:"metrics_port"`
}

// Addr returns the "host:port" listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MetricsAddr returns the "host:port" metrics listen address.
func (s ServerConfig) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.MetricsPort)
}

// EngineConfig holds the scheduler and positioning tuning knobs.
type EngineConfig struct {
	// TickInterval is the scheduler pass period.
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// GateDebounce is the window guarding gate re-triggering after a
	// successful transition request.
	GateDebounce time.Duration `mapstructure:"gate_debounce"`
	// MoveSpeed is the per-frame movement step in room-space units.
	MoveSpeed float64 `mapstructure:"move_speed"`
	// ScriptInstructionLimit bounds Lua opcodes per ability execution.
	// 0 uses the scripting package default.
	ScriptInstructionLimit int `mapstructure:"script_instruction_limit"`
}

// DatabaseConfig holds PostgreSQL connection settings for the tactical
// data store.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// Disabled skips the database entirely; the engine runs on the
	// fallback roster generator.
	Disabled bool `mapstructure:"disabled"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// ContentConfig holds the content file locations.
type ContentConfig struct {
	// ActionsFile is the YAML action catalogue. Empty = compiled-in table.
	ActionsFile string `mapstructure:"actions_file"`
	// RoomsDir is the directory of YAML room files.
	RoomsDir string `mapstructure:"rooms_dir"`
	// ScriptsDir is the directory of Lua ability scripts. Empty = built-in
	// ability effects only.
	ScriptsDir string `mapstructure:"scripts_dir"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Database DatabaseConfig `mapstructure:"database"`
	Content  ContentConfig  `mapstructure:"content"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error
// describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateEngine(c.Engine); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateDatabase(c.Database); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Host == "" {
		errs = append(errs, "server.host must not be empty")
	}
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
	}
	if s.MetricsPort < 0 || s.MetricsPort > 65535 {
		errs = append(errs, fmt.Sprintf("server.metrics_port must be 0-65535, got %d", s.MetricsPort))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateEngine(e EngineConfig) error {
	var errs []string
	if e.TickInterval <= 0 {
		errs = append(errs, "engine.tick_interval must be > 0")
	}
	if e.GateDebounce <= 0 {
		errs = append(errs, "engine.gate_debounce must be > 0")
	}
	if e.MoveSpeed <= 0 {
		errs = append(errs, "engine.move_speed must be > 0")
	}
	if e.ScriptInstructionLimit < 0 {
		errs = append(errs, "engine.script_instruction_limit must be >= 0")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	if d.Disabled {
		return nil
	}
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment
// variable overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with CRAWL_ prefix
	v.SetEnvPrefix("CRAWL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	if v == nil {
		return Config{}, errors.New("viper instance must not be nil")
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 4500)
	v.SetDefault("server.metrics_port", 9109)

	v.SetDefault("engine.tick_interval", "100ms")
	v.SetDefault("engine.gate_debounce", "2s")
	v.SetDefault("engine.move_speed", 1.5)
	v.SetDefault("engine.script_instruction_limit", 0)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "crawl")
	v.SetDefault("database.password", "crawl")
	v.SetDefault("database.name", "crawl")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.disabled", false)

	v.SetDefault("content.actions_file", "")
	v.SetDefault("content.rooms_dir", "content/rooms")
	v.SetDefault("content.scripts_dir", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
