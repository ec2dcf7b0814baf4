// Package config provides the configuration schema, loader, hot-reload
// watcher and record-store registry for leadscout.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/leadscout/pkg/lead"
)

// LogLevel represents the logging verbosity level.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog converts l to a [slog.Level]. Unknown values map to info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Config is the root configuration structure, loaded from YAML.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Discord   DiscordConfig   `yaml:"discord"`
	Store     StoreConfig     `yaml:"store"`
	Dialog    DialogConfig    `yaml:"dialog"`
	Output    OutputConfig    `yaml:"output"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds HTTP listener and logging settings.
type ServerConfig struct {
	// ListenAddr serves /healthz, /readyz and /metrics, e.g. ":8080".
	ListenAddr string   `yaml:"listen_addr"`
	LogLevel   LogLevel `yaml:"log_level"`
}

// DiscordConfig holds the bot credentials.
type DiscordConfig struct {
	Token   string `yaml:"token"`
	GuildID string `yaml:"guild_id"`

	// AnalystRoleID, when set, is required to run /analysis run.
	AnalystRoleID string `yaml:"analyst_role_id"`
}

// BackendEntry names one record-store backend and how to reach it.
type BackendEntry struct {
	// Backend is a name registered in the [Registry], e.g. "postgres",
	// "sqlite" or "snapshot".
	Backend string `yaml:"backend"`

	// DSN is the connection string for database backends.
	DSN string `yaml:"dsn"`

	// Path is the file path for file-based backends.
	Path string `yaml:"path"`
}

// StoreConfig selects the record store and its fallbacks.
type StoreConfig struct {
	BackendEntry `yaml:",inline"`

	// IncludeUnprocessed also serves records the analysis pipeline has not
	// scored yet.
	IncludeUnprocessed bool `yaml:"include_unprocessed"`

	// Fallbacks are tried in order when the primary backend fails.
	Fallbacks []BackendEntry `yaml:"fallbacks"`

	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the circuit breaker in front of each backend.
type BreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// DialogConfig controls the filter dialog.
type DialogConfig struct {
	SessionTTL  time.Duration `yaml:"session_ttl"`
	MaxSessions int           `yaml:"max_sessions"`

	// Regions are offered when the store has no regions to list.
	Regions []string `yaml:"regions"`

	// FuelTypes are offered when the store has no fuel types to list.
	FuelTypes []string `yaml:"fuel_types"`

	Networks []lead.Network `yaml:"networks"`
}

// OutputConfig controls how results are rendered and sent.
type OutputConfig struct {
	Limit     int           `yaml:"limit"`
	ChunkSize int           `yaml:"chunk_size"`
	SendDelay time.Duration `yaml:"send_delay"`
}

// AnalysisConfig configures the external scoring pipeline.
type AnalysisConfig struct {
	Command []string      `yaml:"command"`
	Dir     string        `yaml:"dir"`
	Timeout time.Duration `yaml:"timeout"`
}

// TelemetryConfig configures metrics and tracing.
type TelemetryConfig struct {
	ServiceName string `yaml:"service_name"`
}

// DefaultRegions are offered when neither the store nor the config lists any.
var DefaultRegions = []string{
	"Москва", "Московская область", "Санкт-Петербург", "Ленинградская область",
	"Республика Татарстан", "Свердловская область", "Краснодарский край",
	"Новосибирская область", "Ростовская область", "Иркутская область",
	"Республика Башкортостан",
}

// DefaultFuelTypes are the fuel keywords the scraper searches for.
var DefaultFuelTypes = []string{
	"Топливо по картам", "ГСМ", "Бензин", "Дизельное топливо", "Автопарк",
	"Заправка", "Корпоративное топливо", "Флит-менеджмент",
	"Горюче-смазочные материалы",
}

// ApplyDefaults fills every unset field with its default value.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "sqlite"
		if cfg.Store.Path == "" {
			cfg.Store.Path = "tenders.db"
		}
	}
	if cfg.Store.Breaker.MaxFailures == 0 {
		cfg.Store.Breaker.MaxFailures = 3
	}
	if cfg.Store.Breaker.ResetTimeout == 0 {
		cfg.Store.Breaker.ResetTimeout = 30 * time.Second
	}
	if cfg.Dialog.SessionTTL == 0 {
		cfg.Dialog.SessionTTL = 30 * time.Minute
	}
	if cfg.Dialog.MaxSessions == 0 {
		cfg.Dialog.MaxSessions = 1000
	}
	if len(cfg.Dialog.Regions) == 0 {
		cfg.Dialog.Regions = append([]string(nil), DefaultRegions...)
	}
	if len(cfg.Dialog.FuelTypes) == 0 {
		cfg.Dialog.FuelTypes = append([]string(nil), DefaultFuelTypes...)
	}
	if len(cfg.Dialog.Networks) == 0 {
		cfg.Dialog.Networks = append([]lead.Network(nil), lead.DefaultNetworks...)
	}
	if cfg.Output.Limit == 0 {
		cfg.Output.Limit = 10
	}
	if cfg.Output.ChunkSize == 0 {
		cfg.Output.ChunkSize = 4096
	}
	if cfg.Output.SendDelay == 0 {
		cfg.Output.SendDelay = 100 * time.Millisecond
	}
	if cfg.Analysis.Timeout == 0 {
		cfg.Analysis.Timeout = 30 * time.Minute
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "leadscout"
	}
}
