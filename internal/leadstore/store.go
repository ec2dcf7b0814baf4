// Package leadstore loads scored lead records from persistent storage.
//
// Every backend implements [Store]. Backends that own a schema also
// implement [Migrator], and backends that can be written to implement
// [Writer]; the CLI uses both to prepare and seed a database. [Resilient]
// puts a primary backend and its fallbacks behind circuit breakers.
package leadstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/MrWong99/leadscout/pkg/lead"
)

// ErrUnknownBackend is returned for a store backend name that is not
// registered.
var ErrUnknownBackend = errors.New("leadstore: unknown backend")

// Store is the read side of a record store. Implementations must be safe
// for concurrent use.
type Store interface {
	// Load returns the current record collection in a stable order. With
	// processedOnly set, records the analysis pipeline has not scored yet
	// are left out.
	Load(ctx context.Context, processedOnly bool) ([]lead.Record, error)

	// Regions returns the distinct non-empty regions, sorted.
	Regions(ctx context.Context) ([]string, error)

	// FuelTypes returns the distinct non-empty fuel types, sorted.
	FuelTypes(ctx context.Context) ([]string, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}

// Migrator is implemented by stores that create their own schema.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// Writer is implemented by stores that accept records. Save inserts records
// or replaces those with the same ID.
type Writer interface {
	Save(ctx context.Context, records ...lead.Record) error
}

// Schema columns shared by the SQL backends, in scan order.
const columns = `id, COALESCE(title, ''), COALESCE(description, ''),
	COALESCE(customer, ''), COALESCE(customer_inn, ''), COALESCE(link, ''),
	COALESCE(platform, ''), COALESCE(region, ''), COALESCE(fuel_type, ''),
	price, published_at, contract_duration_days, prepayment,
	prepayment_percentage, payment_deferral_days, is_sme,
	required_networks, probability, COALESCE(recommendation, ''), processed`

// encodeNetworks serialises the network flags as a JSON object, never null.
func encodeNetworks(m map[string]bool) ([]byte, error) {
	if m == nil {
		m = map[string]bool{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("leadstore: marshal required_networks: %w", err)
	}
	return b, nil
}

// decodeNetworks parses the network flag column. Empty input yields nil.
func decodeNetworks(b []byte) (map[string]bool, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var m map[string]bool
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("leadstore: unmarshal required_networks: %w", err)
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}

// distinct returns the sorted set of non-empty values picked from records.
func distinct(records []lead.Record, pick func(lead.Record) string) []string {
	set := make(map[string]struct{})
	for _, r := range records {
		if v := pick(r); v != "" {
			set[v] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(set))
}
