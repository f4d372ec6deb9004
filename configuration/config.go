// Package configuration loads the pipeline's declarative configuration
// (JSON or YAML) and builds a running Logger from it.
package configuration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sluicekit/sluice/core"
)

// Config is the root configuration: one global initial minimum level, a
// mapping from sink name to its settings, and named fallback destinations
// that failure policies may redirect to.
type Config struct {
	MinimumLevel string                       `json:"minimumLevel" yaml:"minimumLevel"`
	Sinks        map[string]SinkConfig        `json:"sinks" yaml:"sinks"`
	Destinations map[string]DestinationConfig `json:"destinations" yaml:"destinations"`
}

// SinkConfig configures one sink.
type SinkConfig struct {
	// Type selects the destination kind: console, file, index, sqlite,
	// kafka. Defaults to the sink's name.
	Type string `json:"type" yaml:"type"`

	// Connection is the destination's opaque connection parameter. For
	// gated kinds an absent connection skips the sink silently.
	Connection string `json:"connection" yaml:"connection"`

	// Path is the file path for file-backed kinds.
	Path string `json:"path" yaml:"path"`

	// Topic is the broker topic for the kafka kind.
	Topic string `json:"topic" yaml:"topic"`

	// MinimumLevel is the sink-local threshold. Defaults to Verbose.
	MinimumLevel string `json:"minimumLevel" yaml:"minimumLevel"`

	// Buffer moves delivery onto a background worker when present.
	Buffer *BufferConfig `json:"buffer" yaml:"buffer"`

	// Failure configures the sink's recovery actions.
	Failure *FailureConfig `json:"failure" yaml:"failure"`
}

// BufferConfig sizes a sink's background queue.
type BufferConfig struct {
	Size  int `json:"size" yaml:"size"`
	Batch int `json:"batch" yaml:"batch"`
}

// FailureConfig is the file-expressible part of a failure policy.
// Callbacks can only be attached in code.
type FailureConfig struct {
	// Record defaults to true; the record step runs regardless.
	Record *bool `json:"record" yaml:"record"`

	// Redirect names a destination from Config.Destinations to receive
	// dead-letter documents.
	Redirect string `json:"redirect" yaml:"redirect"`

	// Fatal escalates delivery failures as process-level errors.
	Fatal bool `json:"fatal" yaml:"fatal"`
}

// DestinationConfig describes a standalone destination used as a redirect
// target.
type DestinationConfig struct {
	Type       string `json:"type" yaml:"type"`
	Connection string `json:"connection" yaml:"connection"`
	Path       string `json:"path" yaml:"path"`
	Topic      string `json:"topic" yaml:"topic"`
}

// LoadFromFile loads configuration from a JSON or YAML file, selected by
// extension.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return LoadFromYAML(data)
	default:
		return LoadFromJSON(data)
	}
}

// LoadFromJSON parses JSON configuration.
func LoadFromJSON(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config JSON: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadFromYAML parses YAML configuration.
func LoadFromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.MinimumLevel == "" {
		cfg.MinimumLevel = "Information"
	}
}

// ParseLevel parses a level name, accepting both full and short labels.
func ParseLevel(levelStr string) (core.Level, error) {
	switch strings.ToLower(levelStr) {
	case "verbose", "vrb":
		return core.VerboseLevel, nil
	case "debug", "dbg":
		return core.DebugLevel, nil
	case "information", "info", "inf":
		return core.InformationLevel, nil
	case "warning", "warn", "wrn":
		return core.WarningLevel, nil
	case "error", "err":
		return core.ErrorLevel, nil
	case "fatal", "ftl":
		return core.FatalLevel, nil
	default:
		return core.InformationLevel, fmt.Errorf("unknown level: %s", levelStr)
	}
}
