package config

import (
	"slices"

	"github.com/MrWong99/leadscout/pkg/lead"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked in detail; the
// names of changed sections that need a restart are listed in
// RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// CatalogChanged is set when the regions, fuel types or networks
	// offered by new dialogs changed.
	CatalogChanged bool
	NetworkChanges []NetworkDiff

	OutputChanged bool

	RestartRequired []string
}

// NetworkDiff describes what changed for a single network.
type NetworkDiff struct {
	Slug    string
	Renamed bool
	Added   bool
	Removed bool
}

// Changed reports whether d carries anything to act on.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.CatalogChanged || d.OutputChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	d.NetworkChanges = diffNetworks(old.Dialog.Networks, new.Dialog.Networks)
	if len(d.NetworkChanges) > 0 ||
		!slices.Equal(old.Dialog.Regions, new.Dialog.Regions) ||
		!slices.Equal(old.Dialog.FuelTypes, new.Dialog.FuelTypes) {
		d.CatalogChanged = true
	}

	if old.Output != new.Output {
		d.OutputChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if old.Discord != new.Discord {
		d.RestartRequired = append(d.RestartRequired, "discord")
	}
	if !storeEqual(old.Store, new.Store) {
		d.RestartRequired = append(d.RestartRequired, "store")
	}
	if old.Dialog.SessionTTL != new.Dialog.SessionTTL || old.Dialog.MaxSessions != new.Dialog.MaxSessions {
		d.RestartRequired = append(d.RestartRequired, "dialog.sessions")
	}
	if !slices.Equal(old.Analysis.Command, new.Analysis.Command) ||
		old.Analysis.Dir != new.Analysis.Dir || old.Analysis.Timeout != new.Analysis.Timeout {
		d.RestartRequired = append(d.RestartRequired, "analysis")
	}
	if old.Telemetry != new.Telemetry {
		d.RestartRequired = append(d.RestartRequired, "telemetry")
	}

	return d
}

// diffNetworks reports per-slug changes, in the order of new followed by
// removed slugs in the order of old.
func diffNetworks(old, new []lead.Network) []NetworkDiff {
	oldNames := make(map[string]string, len(old))
	for _, n := range old {
		oldNames[n.Slug] = n.Name
	}
	newSlugs := make(map[string]bool, len(new))

	var out []NetworkDiff
	for _, n := range new {
		newSlugs[n.Slug] = true
		name, ok := oldNames[n.Slug]
		switch {
		case !ok:
			out = append(out, NetworkDiff{Slug: n.Slug, Added: true})
		case name != n.Name:
			out = append(out, NetworkDiff{Slug: n.Slug, Renamed: true})
		}
	}
	for _, n := range old {
		if !newSlugs[n.Slug] {
			out = append(out, NetworkDiff{Slug: n.Slug, Removed: true})
		}
	}
	return out
}

func storeEqual(a, b StoreConfig) bool {
	return a.BackendEntry == b.BackendEntry &&
		a.IncludeUnprocessed == b.IncludeUnprocessed &&
		a.Breaker == b.Breaker &&
		slices.Equal(a.Fallbacks, b.Fallbacks)
}
