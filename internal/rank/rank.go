// Package rank orders filtered records for presentation.
package rank

import (
	"cmp"
	"log/slog"
	"slices"

	"github.com/MrWong99/leadscout/pkg/lead"
)

// Sort returns a stably sorted copy of records ordered by key. Records
// missing the key always come last, whatever the direction. An empty or
// unrecognised key leaves the order unchanged and logs a warning.
func Sort(records []lead.Record, key lead.Field, ascending bool) []lead.Record {
	out := slices.Clone(records)
	if !key.IsValid() {
		slog.Warn("rank: unrecognised sort key, keeping input order", "key", string(key))
		return out
	}

	slices.SortStableFunc(out, func(a, b lead.Record) int {
		av, aok := a.Numeric(key)
		bv, bok := b.Numeric(key)
		switch {
		case !aok && !bok:
			return 0
		case !aok:
			return 1
		case !bok:
			return -1
		}
		if ascending {
			return cmp.Compare(av, bv)
		}
		return cmp.Compare(bv, av)
	})
	return out
}

// Top returns at most n records from the front of records.
func Top(records []lead.Record, n int) []lead.Record {
	if n < 0 || len(records) <= n {
		return records
	}
	return records[:n]
}
