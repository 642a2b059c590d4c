// Package config loads mastersort settings from an optional YAML file.
// Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/olehluchkiv/mastersort/internal/cluster"
	"github.com/olehluchkiv/mastersort/internal/logging"
	"github.com/olehluchkiv/mastersort/internal/materialize"
	"github.com/olehluchkiv/mastersort/internal/partition"
	"github.com/olehluchkiv/mastersort/internal/store"
	"gopkg.in/yaml.v3"
)

// Config holds every setting of a mastersort run.
type Config struct {
	Limit        int    `yaml:"limit"`
	Placement    string `yaml:"placement"`
	KeepLocalIDs bool   `yaml:"keep_local_ids"`

	OutDir      string `yaml:"out_dir"`
	Format      string `yaml:"format"`
	Compression string `yaml:"compression"`
	Jobs        int    `yaml:"jobs"`

	Report    string `yaml:"report,omitempty"`
	Serve     bool   `yaml:"serve,omitempty"`
	Port      int    `yaml:"port"`
	NoBrowser bool   `yaml:"no_browser,omitempty"`

	Log LogConfig `yaml:"log"`
}

// LogConfig controls logging.
type LogConfig struct {
	File   string `yaml:"file,omitempty"`
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Limit:        cluster.DefaultLimit,
		Placement:    cluster.PlacePrimary.String(),
		KeepLocalIDs: true,
		OutDir:       "out",
		Format:       string(store.FormatYAML),
		Compression:  string(store.CompressionNone),
		Port:         8080,
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads a YAML config file. Keys missing from the file keep their
// default values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every setting and reports all problems at once.
func (c Config) Validate() error {
	var errs []error
	if c.Limit < 1 {
		errs = append(errs, fmt.Errorf("%w: %d", cluster.ErrInvalidLimit, c.Limit))
	}
	if _, err := cluster.ParsePlacement(c.Placement); err != nil {
		errs = append(errs, err)
	}
	if _, err := store.ParseFormat(c.Format); err != nil {
		errs = append(errs, err)
	}
	if _, err := store.ParseCompression(c.Compression); err != nil {
		errs = append(errs, err)
	}
	if c.Jobs < 0 {
		errs = append(errs, fmt.Errorf("jobs must not be negative: %d", c.Jobs))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port: %d", c.Port))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		errs = append(errs, err)
	}
	if c.OutDir == "" && c.Report == "" && !c.Serve {
		errs = append(errs, errors.New("nothing to do: out_dir, report and serve are all unset"))
	}
	return errors.Join(errs...)
}

// PartitionOptions converts the settings into partition options.
func (c Config) PartitionOptions() (partition.Options, error) {
	placement, err := cluster.ParsePlacement(c.Placement)
	if err != nil {
		return partition.Options{}, err
	}
	return partition.Options{
		Cluster: cluster.Options{
			Limit:     c.Limit,
			Placement: placement,
		},
		Materialize: materialize.Options{KeepLocalIDs: c.KeepLocalIDs},
		Jobs:        c.Jobs,
	}, nil
}
