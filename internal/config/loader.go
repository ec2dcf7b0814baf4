package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// KnownBackends lists the record-store backends shipped with leadscout.
// [Validate] warns about other names; they may still be registered by the
// caller.
var KnownBackends = []string{"postgres", "sqlite", "snapshot"}

// maxChunkSize is the largest block a Discord embed description can hold.
const maxChunkSize = 4096

// Load reads the YAML configuration file at path, applies defaults and
// returns the validated [Config].
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

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields the default config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
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

	if cfg.Discord.Token == "" {
		slog.Warn("discord.token is empty; only the CLI and HTTP endpoints will work")
	}

	errs = append(errs, validateBackend("store", cfg.Store.BackendEntry)...)
	for i, fb := range cfg.Store.Fallbacks {
		errs = append(errs, validateBackend(fmt.Sprintf("store.fallbacks[%d]", i), fb)...)
	}
	if cfg.Store.Breaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("store.breaker.max_failures %d must not be negative", cfg.Store.Breaker.MaxFailures))
	}
	if cfg.Store.Breaker.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("store.breaker.reset_timeout %s must not be negative", cfg.Store.Breaker.ResetTimeout))
	}

	if cfg.Dialog.SessionTTL < 0 {
		errs = append(errs, fmt.Errorf("dialog.session_ttl %s must not be negative", cfg.Dialog.SessionTTL))
	}
	if cfg.Dialog.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("dialog.max_sessions %d must not be negative", cfg.Dialog.MaxSessions))
	}
	slugs := make(map[string]int, len(cfg.Dialog.Networks))
	for i, n := range cfg.Dialog.Networks {
		prefix := fmt.Sprintf("dialog.networks[%d]", i)
		if n.Slug == "" {
			errs = append(errs, fmt.Errorf("%s.slug is required", prefix))
			continue
		}
		if prev, ok := slugs[n.Slug]; ok {
			errs = append(errs, fmt.Errorf("%s.slug %q is a duplicate of dialog.networks[%d]", prefix, n.Slug, prev))
		}
		slugs[n.Slug] = i
		if n.Name == "" {
			slog.Warn("network has no display name", "slug", n.Slug)
		}
	}

	if cfg.Output.Limit < 1 {
		errs = append(errs, fmt.Errorf("output.limit %d must be at least 1", cfg.Output.Limit))
	}
	if cfg.Output.ChunkSize < 1 || cfg.Output.ChunkSize > maxChunkSize {
		errs = append(errs, fmt.Errorf("output.chunk_size %d is out of range [1, %d]", cfg.Output.ChunkSize, maxChunkSize))
	}
	if cfg.Output.SendDelay < 0 {
		errs = append(errs, fmt.Errorf("output.send_delay %s must not be negative", cfg.Output.SendDelay))
	}

	if cfg.Analysis.Timeout < 0 {
		errs = append(errs, fmt.Errorf("analysis.timeout %s must not be negative", cfg.Analysis.Timeout))
	}
	if len(cfg.Analysis.Command) == 0 {
		slog.Warn("analysis.command is empty; /analysis run will be unavailable")
	} else if cfg.Analysis.Command[0] == "" {
		errs = append(errs, errors.New("analysis.command[0] must name an executable"))
	}

	return errors.Join(errs...)
}

func validateBackend(prefix string, e BackendEntry) []error {
	var errs []error
	switch e.Backend {
	case "":
		return []error{fmt.Errorf("%s.backend is required", prefix)}
	case "postgres":
		if e.DSN == "" {
			errs = append(errs, fmt.Errorf("%s.dsn is required for the postgres backend", prefix))
		}
	case "sqlite", "snapshot":
		if e.Path == "" {
			errs = append(errs, fmt.Errorf("%s.path is required for the %s backend", prefix, e.Backend))
		}
	}
	if !slices.Contains(KnownBackends, e.Backend) {
		slog.Warn("unknown store backend; it must be registered before use",
			"field", prefix+".backend",
			"name", e.Backend,
			"known", KnownBackends,
		)
	}
	return errs
}
