// Package lead defines the scored procurement record shared by the filter,
// ranking and presentation layers, together with the documented neutral
// values used wherever a record attribute is missing.
//
// Records are loaded by a record store and never mutated afterwards. Optional
// attributes are pointers; use the accessor methods rather than dereferencing
// them directly so that the missing-value policy is applied consistently.
package lead

import (
	"math"
	"slices"
	"time"
)

// Neutral values substituted for missing attributes in numeric and boolean
// comparisons. A missing attribute never excludes a record on its own.
const (
	MissingPrice                = 0.0
	MissingContractDurationDays = 0
	MissingPrepayment           = false
	MissingPrepaymentPercentage = 0.0
	MissingPaymentDeferralDays  = 0
	MissingNetworkFlag          = false
	MissingSME                  = false
	MissingProbability          = 0.0
)

// Record is one procurement lead with its extracted terms and, once the
// scoring pipeline has run, a win probability.
type Record struct {
	// ID is the tender identifier on the source platform.
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Customer    string `yaml:"customer"`
	CustomerINN string `yaml:"customer_inn"`
	Link        string `yaml:"link"`
	Platform    string `yaml:"platform"`
	Region      string `yaml:"region"`

	// FuelType is the categorical fuel type, empty when the source did not
	// classify the tender.
	FuelType string `yaml:"fuel_type"`

	Price                *float64   `yaml:"price"`
	PublishedAt          *time.Time `yaml:"published_at"`
	ContractDurationDays *int       `yaml:"contract_duration_days"`
	Prepayment           *bool      `yaml:"prepayment"`
	PrepaymentPercentage *float64   `yaml:"prepayment_percentage"`
	PaymentDeferralDays  *int       `yaml:"payment_deferral_days"`
	SME                  *bool      `yaml:"sme"`

	// RequiredNetworks maps a network slug (see [Network]) to whether the
	// tender requires fuel cards of that station chain.
	RequiredNetworks map[string]bool `yaml:"required_networks"`

	// Probability is the win probability in [0,1]. Nil (or NaN) means the
	// record has not been scored yet.
	Probability *float64 `yaml:"probability"`

	// Recommendation is free text attached by the scoring pipeline.
	Recommendation string `yaml:"recommendation"`

	// Processed reports whether the scoring pipeline has handled the record.
	Processed bool `yaml:"processed"`
}

// PriceValue returns the price, or [MissingPrice].
func (r Record) PriceValue() float64 {
	if r.Price == nil || math.IsNaN(*r.Price) {
		return MissingPrice
	}
	return *r.Price
}

// ContractDurationValue returns the contract duration in days, or
// [MissingContractDurationDays].
func (r Record) ContractDurationValue() int {
	if r.ContractDurationDays == nil {
		return MissingContractDurationDays
	}
	return *r.ContractDurationDays
}

// PrepaymentValue returns the prepayment flag, or [MissingPrepayment].
func (r Record) PrepaymentValue() bool {
	if r.Prepayment == nil {
		return MissingPrepayment
	}
	return *r.Prepayment
}

// PrepaymentPercentageValue returns the prepayment percentage, or
// [MissingPrepaymentPercentage].
func (r Record) PrepaymentPercentageValue() float64 {
	if r.PrepaymentPercentage == nil || math.IsNaN(*r.PrepaymentPercentage) {
		return MissingPrepaymentPercentage
	}
	return *r.PrepaymentPercentage
}

// PaymentDeferralValue returns the payment deferral in days, or
// [MissingPaymentDeferralDays].
func (r Record) PaymentDeferralValue() int {
	if r.PaymentDeferralDays == nil {
		return MissingPaymentDeferralDays
	}
	return *r.PaymentDeferralDays
}

// SMEValue returns the SME flag, or [MissingSME].
func (r Record) SMEValue() bool {
	if r.SME == nil {
		return MissingSME
	}
	return *r.SME
}

// HasProbability reports whether the record carries a usable score.
func (r Record) HasProbability() bool {
	return r.Probability != nil && !math.IsNaN(*r.Probability)
}

// ProbabilityValue returns the win probability, or [MissingProbability].
func (r Record) ProbabilityValue() float64 {
	if !r.HasProbability() {
		return MissingProbability
	}
	return *r.Probability
}

// NetworkRequired reports whether the record requires the network with the
// given slug. Unknown slugs yield [MissingNetworkFlag].
func (r Record) NetworkRequired(slug string) bool {
	v, ok := r.RequiredNetworks[slug]
	if !ok {
		return MissingNetworkFlag
	}
	return v
}

// RequiredNetworkSlugs returns the slugs of all networks flagged as
// required, sorted.
func (r Record) RequiredNetworkSlugs() []string {
	var out []string
	for slug, required := range r.RequiredNetworks {
		if required {
			out = append(out, slug)
		}
	}
	slices.Sort(out)
	return out
}
