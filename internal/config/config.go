// Package config loads engine settings and per-detection tunables.
//
// Sources are layered, later ones winning: built-in defaults, an optional YAML file, then
// environment variables prefixed WARDEN_. A double underscore separates nesting levels:
//
//	WARDEN_ENGINE__WORKERS=16             -> engine.workers
//	WARDEN_DETECTIONS__ASCENT__MAX_RISE=2 -> detections.ascent.max_rise
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/zeusync/warden/internal/core/detection"
	"github.com/zeusync/warden/internal/core/observability/log"
	"github.com/zeusync/warden/internal/core/observability/metrics"
)

const (
	EnvPrefix = "WARDEN_"

	detectionsKey = "detections"
)

// Config is the root configuration document.
type Config struct {
	Log     log.Config       `koanf:"log"`
	Engine  detection.Config `koanf:"engine"`
	Metrics metrics.Config   `koanf:"metrics"`

	k *koanf.Koanf
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Log: log.Config{
			Level:    "info",
			Encoding: "json",
		},
		Engine: detection.DefaultConfig(),
		Metrics: metrics.Config{
			Enabled:   true,
			Namespace: "warden",
		},
	}
}

// Load reads path (skipped when empty) over the defaults, applies the environment and validates.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{k: k}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps WARDEN_ENGINE__WORKERS to engine.workers.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

func (c *Config) Validate() error {
	errs := []error{ValidateStruct(c)}
	if _, ok := log.ParseLevel(c.Log.Level); !ok {
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Detections lists the ids that have a tunables section, sorted.
func (c *Config) Detections() []string {
	if c.k == nil {
		return nil
	}
	ids := c.k.MapKeys(detectionsKey)
	sort.Strings(ids)
	return ids
}

// Detection returns the tunables of detection id. A missing section decodes as nothing.
func (c *Config) Detection(id string) detection.Configuration {
	if c.k == nil {
		return Section{}
	}
	return Section{k: c.k.Cut(detectionsKey + "." + id)}
}

// Section is one detection's slice of the configuration tree.
type Section struct {
	k *koanf.Koanf
}

var _ detection.Configuration = Section{}

// Decode fills out from the section using yaml struct tags, so the same config struct serves
// detection.YAMLConfiguration. Fields the section does not mention are left untouched.
func (s Section) Decode(out any) error {
	if s.k == nil || len(s.k.Keys()) == 0 {
		return nil
	}
	if err := s.k.UnmarshalWithConf("", out, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return fmt.Errorf("decode detection section: %w", err)
	}
	return nil
}

// Keys lists the flattened keys of the section.
func (s Section) Keys() []string {
	if s.k == nil {
		return nil
	}
	return s.k.Keys()
}
