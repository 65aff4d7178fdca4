// Package config loads host configuration: the event store location,
// the adapter fleet, and default policy.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/relay/internal/adapter"
	"github.com/roach88/relay/internal/policy"
)

// Config is the top-level host configuration.
type Config struct {
	// DBPath locates the SQLite event store. Empty means in-memory.
	DBPath string `yaml:"db_path,omitempty"`

	// DefaultAdapter names the registry default. Empty defaults to
	// the first configured adapter, or "null" with none configured.
	DefaultAdapter string `yaml:"default_adapter,omitempty"`

	// Adapters declares the adapter fleet.
	Adapters []AdapterConfig `yaml:"adapters,omitempty"`

	// Policy applies to requests carrying no policy of their own.
	Policy *policy.Policy `yaml:"policy,omitempty"`
}

// AdapterConfig declares one adapter instance.
type AdapterConfig struct {
	// ID is the adapter id. Optional for subprocess adapters, which
	// derive a stable id from their command.
	ID string `yaml:"id,omitempty"`

	// Kind selects the adapter family: null, fake or subprocess.
	Kind string `yaml:"kind"`

	// Command is the base command for subprocess adapters.
	Command []string `yaml:"command,omitempty"`

	// TimeoutS is the per-call deadline in seconds for subprocess
	// adapters. Zero keeps the default.
	TimeoutS float64 `yaml:"timeout_s,omitempty"`

	// Cwd is the working directory for subprocess adapters.
	Cwd string `yaml:"cwd,omitempty"`

	// Env holds extra environment variables for subprocess adapters.
	Env map[string]string `yaml:"env,omitempty"`
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes config bytes with strict field validation.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	for i, ac := range c.Adapters {
		switch ac.Kind {
		case "null", "fake":
		case "subprocess":
			if len(ac.Command) == 0 {
				return fmt.Errorf("adapters[%d]: subprocess adapter requires a command", i)
			}
		case "":
			return fmt.Errorf("adapters[%d]: missing kind", i)
		default:
			return fmt.Errorf("adapters[%d]: unknown kind %q", i, ac.Kind)
		}
	}
	return nil
}

// BuildRegistry constructs the adapter registry the config declares.
// With no adapters configured, the registry holds only the null
// adapter.
func (c *Config) BuildRegistry() (*adapter.Registry, error) {
	if len(c.Adapters) == 0 {
		defaultID := c.DefaultAdapter
		if defaultID == "" {
			defaultID = "null"
		}
		registry := adapter.NewRegistry(defaultID)
		if err := registry.Register(adapter.NewNullWithID("null")); err != nil {
			return nil, err
		}
		return registry, nil
	}

	built := make([]adapter.Adapter, 0, len(c.Adapters))
	for i, ac := range c.Adapters {
		a, err := buildAdapter(ac)
		if err != nil {
			return nil, fmt.Errorf("adapters[%d]: %w", i, err)
		}
		built = append(built, a)
	}

	defaultID := c.DefaultAdapter
	if defaultID == "" {
		defaultID = built[0].ID()
	}
	registry := adapter.NewRegistry(defaultID)
	for _, a := range built {
		if err := registry.Register(a); err != nil {
			return nil, err
		}
	}
	if _, err := registry.GetDefault(); err != nil {
		return nil, fmt.Errorf("default adapter %q is not configured", defaultID)
	}
	return registry, nil
}

func buildAdapter(ac AdapterConfig) (adapter.Adapter, error) {
	switch ac.Kind {
	case "null":
		if ac.ID != "" {
			return adapter.NewNullWithID(ac.ID), nil
		}
		return adapter.NewNull(), nil
	case "fake":
		if ac.ID != "" {
			return adapter.NewFakeWithID(ac.ID), nil
		}
		return adapter.NewFake(), nil
	case "subprocess":
		var opts []adapter.SubprocessOption
		if ac.ID != "" {
			opts = append(opts, adapter.WithAdapterID(ac.ID))
		}
		if ac.TimeoutS > 0 {
			opts = append(opts, adapter.WithCallTimeout(time.Duration(ac.TimeoutS*float64(time.Second))))
		}
		if ac.Cwd != "" {
			opts = append(opts, adapter.WithWorkDir(ac.Cwd))
		}
		if len(ac.Env) > 0 {
			opts = append(opts, adapter.WithEnv(ac.Env))
		}
		return adapter.NewSubprocess(ac.Command, opts...)
	default:
		return nil, fmt.Errorf("unknown kind %q", ac.Kind)
	}
}
