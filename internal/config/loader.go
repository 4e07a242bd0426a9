package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.ListenAddr == "" {
		slog.Warn("server.listen_addr is empty; defaulting to :8080")
	}

	if d := cfg.Matching.MaxEditDistance; d != nil && *d < 0 {
		errs = append(errs, fmt.Errorf("matching.max_edit_distance %d is negative", *d))
	}
	if c := cfg.Matching.TopCandidateCap; c != nil && *c < 0 {
		errs = append(errs, fmt.Errorf("matching.top_candidate_cap %d is negative", *c))
	}

	switch kind := cfg.Gradebook.Kind; {
	case kind == "":
		errs = append(errs, errors.New("gradebook.kind is required; valid values: memory, file, postgres"))
	case !kind.IsValid():
		errs = append(errs, fmt.Errorf("gradebook.kind %q is invalid; valid values: memory, file, postgres", kind))
	case kind == GradebookFile && cfg.Gradebook.Path == "":
		errs = append(errs, errors.New("gradebook.path is required when gradebook.kind is \"file\""))
	case kind == GradebookPostgres && cfg.Gradebook.PostgresDSN == "":
		errs = append(errs, errors.New("gradebook.postgres_dsn is required when gradebook.kind is \"postgres\""))
	}

	if cfg.Gradebook.Kind == GradebookMemory {
		slog.Warn("gradebook.kind is \"memory\"; grades will not survive a restart")
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
