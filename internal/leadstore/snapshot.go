package leadstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/leadscout/pkg/lead"
)

// SnapshotFile is the top-level structure of a record snapshot YAML file.
//
// Example:
//
//	records:
//	  - id: "0373200041525000123"
//	    title: "Поставка бензина АИ-95 по топливным картам"
//	    region: "Москва"
//	    price: 1500000
//	    probability: 0.82
//	    processed: true
//	    required_networks:
//	      lukoil: true
type SnapshotFile struct {
	Records []lead.Record `yaml:"records"`
}

// SnapshotStore serves a fixed record collection read once from YAML. It is
// used as an offline fallback and for fixtures.
type SnapshotStore struct {
	records []lead.Record
}

// Compile-time interface check.
var _ Store = (*SnapshotStore)(nil)

// NewSnapshotStore serves records from memory.
func NewSnapshotStore(records []lead.Record) *SnapshotStore {
	return &SnapshotStore{records: slices.Clone(records)}
}

// LoadSnapshotFile reads and parses a snapshot YAML file from disk.
func LoadSnapshotFile(path string) (*SnapshotStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("leadstore: open snapshot %q: %w", path, err)
	}
	defer f.Close()

	s, err := LoadSnapshot(f)
	if err != nil {
		return nil, fmt.Errorf("leadstore: parse snapshot %q: %w", path, err)
	}
	return s, nil
}

// LoadSnapshot parses snapshot YAML from r. Every record needs a unique id.
func LoadSnapshot(r io.Reader) (*SnapshotStore, error) {
	var sf SnapshotFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("leadstore: decode snapshot yaml: %w", err)
	}

	seen := make(map[string]bool, len(sf.Records))
	for i, rec := range sf.Records {
		if rec.ID == "" {
			return nil, fmt.Errorf("leadstore: snapshot record %d has no id", i)
		}
		if seen[rec.ID] {
			return nil, fmt.Errorf("leadstore: snapshot record id %q is duplicated", rec.ID)
		}
		seen[rec.ID] = true
	}
	return &SnapshotStore{records: sf.Records}, nil
}

// Records returns a copy of the snapshot contents.
func (s *SnapshotStore) Records() []lead.Record {
	return slices.Clone(s.records)
}

// Load returns the snapshot records in file order.
func (s *SnapshotStore) Load(_ context.Context, processedOnly bool) ([]lead.Record, error) {
	if !processedOnly {
		return slices.Clone(s.records), nil
	}
	var out []lead.Record
	for _, r := range s.records {
		if r.Processed {
			out = append(out, r)
		}
	}
	return out, nil
}

// Regions returns the distinct regions in the snapshot.
func (s *SnapshotStore) Regions(context.Context) ([]string, error) {
	return distinct(s.records, func(r lead.Record) string { return r.Region }), nil
}

// FuelTypes returns the distinct fuel types in the snapshot.
func (s *SnapshotStore) FuelTypes(context.Context) ([]string, error) {
	return distinct(s.records, func(r lead.Record) string { return r.FuelType }), nil
}

// Ping always succeeds.
func (s *SnapshotStore) Ping(context.Context) error { return nil }
