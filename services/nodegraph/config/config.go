// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads nodec configuration from YAML with environment
// overrides.
//
// Precedence, lowest first: DefaultConfig, the YAML file, NODEGRAPH_*
// variables. OTEL_* variables are read by telemetry.DefaultConfig and can
// still be overridden by the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	nodegraph "github.com/AleutianAI/objectnodes/services/nodegraph"
	"github.com/AleutianAI/objectnodes/services/nodegraph/store"
	"github.com/AleutianAI/objectnodes/services/nodegraph/telemetry"
)

// ErrInvalidConfig is returned when a configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

var validate = validator.New()

// Config is the complete nodec configuration.
type Config struct {
	Log       LogConfig               `yaml:"log"`
	Server    ServerConfig            `yaml:"server"`
	Service   nodegraph.ServiceConfig `yaml:"service"`
	Store     StoreConfig             `yaml:"store"`
	Telemetry telemetry.Config        `yaml:"telemetry"`

	// NodeTypes is an optional node type table replacing the built-in one.
	NodeTypes string `yaml:"node_types,omitempty"`
}

// LogConfig selects log level and format.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Format is "text", "json", or "auto" (text on a terminal).
	Format string `yaml:"format" validate:"oneof=text json auto"`

	// Dir enables a JSON log file sink in this directory.
	Dir string `yaml:"dir,omitempty"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	CompileRate     float64       `yaml:"compile_rate" validate:"gte=0"`
	CompileBurst    int           `yaml:"compile_burst" validate:"gte=0"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// StoreConfig enables and configures the graph store.
type StoreConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Path       string        `yaml:"path" validate:"required_if=Enabled true InMemory false"`
	InMemory   bool          `yaml:"in_memory"`
	TTL        time.Duration `yaml:"ttl" validate:"gte=0"`
	GCInterval time.Duration `yaml:"gc_interval" validate:"gte=0"`
}

// StoreOptions converts to store.Config.
func (s StoreConfig) StoreOptions() store.Config {
	cfg := store.DefaultConfig()
	if s.InMemory {
		cfg = store.InMemoryConfig()
	}
	cfg.Path = s.Path
	cfg.TTL = s.TTL
	cfg.GCInterval = s.GCInterval
	return cfg
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			CompileRate:     20,
			CompileBurst:    40,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Service: nodegraph.DefaultServiceConfig(),
		Store: StoreConfig{
			Path:       defaultStorePath(),
			GCInterval: 5 * time.Minute,
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "nodegraph", "graphs")
	}
	return filepath.Join(home, ".nodegraph", "graphs")
}

// Load returns the configuration at path layered over the defaults.
//
// Description:
//
//	An empty path skips the file. Environment overrides are applied
//	after the file and the result is validated.
//
// Outputs:
//
//	Config - The merged configuration.
//	error - Read, parse or validation error. Validation errors wrap
//	        ErrInvalidConfig.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field constraint.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// WriteDefault writes the default configuration to path, creating parent
// directories. An existing file is left untouched.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// envOverride applies one environment variable to the config.
type envOverride struct {
	key   string
	apply func(cfg *Config, v string) error
}

var envOverrides = []envOverride{
	{"NODEGRAPH_LOG_LEVEL", func(c *Config, v string) error { c.Log.Level = v; return nil }},
	{"NODEGRAPH_LOG_FORMAT", func(c *Config, v string) error { c.Log.Format = v; return nil }},
	{"NODEGRAPH_LOG_DIR", func(c *Config, v string) error { c.Log.Dir = v; return nil }},
	{"NODEGRAPH_ADDR", func(c *Config, v string) error { c.Server.Addr = v; return nil }},
	{"NODEGRAPH_COMPILE_RATE", func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		c.Server.CompileRate = f
		return err
	}},
	{"NODEGRAPH_STORE_ENABLED", func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		c.Store.Enabled = b
		return err
	}},
	{"NODEGRAPH_STORE_PATH", func(c *Config, v string) error { c.Store.Path = v; return nil }},
	{"NODEGRAPH_STORE_TTL", func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		c.Store.TTL = d
		return err
	}},
	{"NODEGRAPH_MAX_COMPILE_DURATION", func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		c.Service.MaxCompileDuration = d
		return err
	}},
	{"NODEGRAPH_NODE_TYPES", func(c *Config, v string) error { c.NodeTypes = v; return nil }},
}

func applyEnv(cfg *Config) error {
	for _, o := range envOverrides {
		v, ok := os.LookupEnv(o.key)
		if !ok || v == "" {
			continue
		}
		if err := o.apply(cfg, v); err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, o.key, v, err)
		}
	}
	return nil
}
