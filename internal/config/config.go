// Package config loads graphkb's YAML configuration file into typed
// sub-sections, one per component, following the teacher's config.Config
// layering (internal/config/config.go in the teacher repo).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all graphkb configuration.
type Config struct {
	Store        StoreConfig        `yaml:"store"`
	Server       ServerConfig       `yaml:"server"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Datalog      DatalogConfig      `yaml:"datalog"`
	Coverage     CoverageConfig     `yaml:"coverage"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// StoreConfig configures the Graph Store's on-disk location.
type StoreConfig struct {
	// Path is the SQLite database file backing the graph. Empty means
	// in-memory (no restart-survival guarantee — tests use this).
	Path string `yaml:"path"`
}

// ServerConfig configures the Graph Server's socket endpoint.
type ServerConfig struct {
	// SocketPath is the Unix domain socket path the server binds to.
	SocketPath string `yaml:"socket_path"`
}

// OrchestratorConfig configures the plugin pipeline.
type OrchestratorConfig struct {
	// Workers bounds the number of plugins that may run concurrently within
	// a phase. Zero means runtime.NumCPU().
	Workers int `yaml:"workers"`

	// BatchSize bounds how many nodes/edges are buffered per client flush.
	BatchSize int `yaml:"batch_size"`

	// StrictMode promotes unresolved-reference diagnostics to fatal at the
	// barrier following ENRICHMENT. Overridable by a CLI flag.
	StrictMode bool `yaml:"strict_mode"`

	// EnrichmentMaxIterations caps the dependency-propagation re-queue pass
	// within ENRICHMENT before failing with EnrichmentOverrun.
	EnrichmentMaxIterations int `yaml:"enrichment_max_iterations"`
}

// DatalogConfig configures evaluator defaults.
type DatalogConfig struct {
	// ExplainByDefault is loaded from the config file but no component reads
	// it. The wire protocol always defaults absent `explain` to false per
	// spec.md §6.1.
	ExplainByDefault bool `yaml:"explain_by_default"`
}

// CoverageConfig configures the built-in coverage validation plugin.
type CoverageConfig struct {
	// SuppressKnownUtilities, when true (the default), additionally filters
	// out a configurable allow-list of common utility packages from the
	// uncovered-package issue set.
	SuppressKnownUtilities bool `yaml:"suppress_known_utilities"`

	// KnownUtilities is that allow-list.
	KnownUtilities []string `yaml:"known_utilities"`
}

// LoggingConfig configures the zap base logger.
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

// Default returns a Config with sensible defaults, mirroring the teacher's
// DefaultXConfig() constructors per sub-section.
func Default() Config {
	return Config{
		Store:  StoreConfig{Path: ""},
		Server: ServerConfig{SocketPath: "/tmp/graphkb.sock"},
		Orchestrator: OrchestratorConfig{
			Workers:                 0,
			BatchSize:               256,
			StrictMode:              false,
			EnrichmentMaxIterations: 8,
		},
		Datalog: DatalogConfig{ExplainByDefault: false},
		Coverage: CoverageConfig{
			SuppressKnownUtilities: true,
			KnownUtilities:         DefaultKnownUtilities(),
		},
		Logging: LoggingConfig{Debug: false},
	}
}

// DefaultKnownUtilities lists common leaf utility packages that coverage
// validation suppresses by default, to keep the first-run experience free
// of noise for ubiquitous helper libraries nobody writes a plugin for.
func DefaultKnownUtilities() []string {
	return []string{
		"lodash", "classnames", "clsx", "uuid", "chalk",
		"left-pad", "is-array", "debug",
	}
}

// Load reads and parses a YAML config file. The file is unmarshalled on top
// of Default(), so any field the file leaves unset keeps its default value.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
