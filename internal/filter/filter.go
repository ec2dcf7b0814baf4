package filter

import (
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/MrWong99/leadscout/pkg/lead"
)

// Predicate is the compiled test for one present dimension.
type Predicate struct {
	Dimension Dimension
	Match     func(lead.Record) bool
}

// builder compiles the predicate for one dimension, reporting false when the
// dimension is absent.
type builder func(c *Criteria, now time.Time) (func(lead.Record) bool, bool)

// builders is the ordered predicate table. Sort dimensions have no predicate.
var builders = []struct {
	dim   Dimension
	build builder
}{
	{DimMinPrice, minPrice},
	{DimMaxPrice, maxPrice},
	{DimRegions, regions},
	{DimFuelTypes, fuelTypes},
	{DimMinContractDuration, minContractDuration},
	{DimMaxContractDuration, maxContractDuration},
	{DimPrepaymentRequired, prepaymentRequired},
	{DimMinPrepaymentPercentage, minPrepaymentPercentage},
	{DimMaxPaymentDeferralDays, maxPaymentDeferral},
	{DimNetworks, networks},
	{DimExcludeSME, excludeSME},
	{DimMinProbability, minProbability},
	{DimRecentDays, recentDays},
	{DimSearchText, searchText},
}

// Compile returns one predicate per present filter dimension. now anchors
// the recency window.
func Compile(c Criteria, now time.Time) []Predicate {
	var out []Predicate
	for _, b := range builders {
		if match, ok := b.build(&c, now); ok {
			out = append(out, Predicate{Dimension: b.dim, Match: match})
		}
	}
	return out
}

// Apply returns the records satisfying every present dimension of c, in
// input order. The input slice is not modified.
func Apply(records []lead.Record, c Criteria) []lead.Record {
	return ApplyAt(records, c, time.Now())
}

// ApplyAt is [Apply] with an explicit reference time for recency filters.
func ApplyAt(records []lead.Record, c Criteria, now time.Time) []lead.Record {
	out := slices.Clone(records)
	for _, p := range Compile(c, now) {
		out = slices.DeleteFunc(out, func(r lead.Record) bool { return !p.Match(r) })
		slog.Debug("filter applied", "dimension", p.Dimension, "remaining", len(out))
	}
	return out
}

func minPrice(c *Criteria, _ time.Time) (func(lead.Record) bool, bool) {
	if c.MinPrice == nil {
		return nil, false
	}
	bound := *c.MinPrice
	return func(r lead.Record) bool { return r.PriceValue() >= bound }, true
}

func maxPrice(c *Criteria, _ time.Time) (func(lead.Record) bool, bool) {
	if c.MaxPrice == nil {
		return nil, false
	}
	bound := *c.MaxPrice
	return func(r lead.Record) bool { return r.PriceValue() <= bound }, true
}

func regions(c *Criteria, _ time.Time) (func(lead.Record) bool, bool) {
	if len(c.Regions) == 0 {
		return nil, false
	}
	set := slices.Clone(c.Regions)
	return func(r lead.Record) bool { return slices.Contains(set, r.Region) }, true
}

func fuelTypes(c *Criteria, _ time.Time) (func(lead.Record) bool, bool) {
	if len(c.FuelTypes) == 0 {
		return nil, false
	}
	set := slices.Clone(c.FuelTypes)
	lowered := make([]string, len(set))
	for i, s := range set {
		lowered[i] = strings.ToLower(s)
	}
	return func(r lead.Record) bool {
		if r.FuelType != "" {
			return slices.Contains(set, r.FuelType)
		}
		title := strings.ToLower(r.Title)
		desc := strings.ToLower(r.Description)
		for _, ft := range lowered {
			if strings.Contains(title, ft) || strings.Contains(desc, ft) {
				return true
			}
		}
		return false
	}, true
}

func minContractDuration(c *Criteria, _ time.Time) (func(lead.Record) bool, bool) {
	if c.MinContractDuration == nil {
		return nil, false
	}
	bound := *c.MinContractDuration
	return func(r lead.Record) bool { return r.ContractDurationValue() >= bound }, true
}

func maxContractDuration(c *Criteria, _ time.Time) (func(lead.Record) bool, bool) {
	if c.MaxContractDuration == nil {
		return nil, false
	}
	bound := *c.MaxContractDuration
	return func(r lead.Record) bool { return r.ContractDurationValue() <= bound }, true
}

func prepaymentRequired(c *Criteria, _ time.Time) (func(lead.Record) bool, bool) {
	if c.PrepaymentRequired == nil {
		return nil, false
	}
	want := *c.PrepaymentRequired
	return func(r lead.Record) bool { return r.PrepaymentValue() == want }, true
}

func minPrepaymentPercentage(c *Criteria, _ time.Time) (func(lead.Record) bool, bool) {
	if c.MinPrepaymentPercentage == nil {
		return nil, false
	}
	bound := *c.MinPrepaymentPercentage
	return func(r lead.Record) bool { return r.PrepaymentPercentageValue() >= bound }, true
}

func maxPaymentDeferral(c *Criteria, _ time.Time) (func(lead.Record) bool, bool) {
	if c.MaxPaymentDeferralDays == nil {
		return nil, false
	}
	bound := *c.MaxPaymentDeferralDays
	return func(r lead.Record) bool { return r.PaymentDeferralValue() <= bound }, true
}

func networks(c *Criteria, _ time.Time) (func(lead.Record) bool, bool) {
	if len(c.Networks) == 0 {
		return nil, false
	}
	set := slices.Clone(c.Networks)
	return func(r lead.Record) bool {
		return slices.ContainsFunc(set, r.NetworkRequired)
	}, true
}

func excludeSME(c *Criteria, _ time.Time) (func(lead.Record) bool, bool) {
	if c.ExcludeSME == nil {
		return nil, false
	}
	want := !*c.ExcludeSME
	return func(r lead.Record) bool { return r.SMEValue() == want }, true
}

func minProbability(c *Criteria, _ time.Time) (func(lead.Record) bool, bool) {
	if c.MinProbability == nil {
		return nil, false
	}
	bound := *c.MinProbability
	return func(r lead.Record) bool { return r.ProbabilityValue() >= bound }, true
}

func recentDays(c *Criteria, now time.Time) (func(lead.Record) bool, bool) {
	if c.RecentDays == nil {
		return nil, false
	}
	cutoff := RecencyCutoff(now, *c.RecentDays)
	return func(r lead.Record) bool {
		if r.PublishedAt == nil || r.PublishedAt.IsZero() {
			return false
		}
		return !r.PublishedAt.Before(cutoff)
	}, true
}

func searchText(c *Criteria, _ time.Time) (func(lead.Record) bool, bool) {
	if c.SearchText == nil {
		return nil, false
	}
	needle := strings.ToLower(*c.SearchText)
	return func(r lead.Record) bool {
		if r.Title != "" && strings.Contains(strings.ToLower(r.Title), needle) {
			return true
		}
		return r.Description != "" && strings.Contains(strings.ToLower(r.Description), needle)
	}, true
}

// RecencyCutoff returns the start of the calendar day of now, in now's
// location, moved back by days.
func RecencyCutoff(now time.Time, days int) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d-days, 0, 0, 0, 0, now.Location())
}
