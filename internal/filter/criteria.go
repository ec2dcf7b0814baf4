// Package filter turns an accumulated set of user constraints into record
// predicates and applies them as a conjunction.
//
// A [Criteria] value holds one optional field per filter dimension. A nil
// field means the user never supplied (or explicitly skipped) that dimension,
// and the dimension then places no constraint on the result.
package filter

import (
	"fmt"
	"slices"

	"github.com/MrWong99/leadscout/pkg/lead"
)

// Dimension names one filter or sort setting.
type Dimension string

const (
	DimMinPrice                Dimension = "min_price"
	DimMaxPrice                Dimension = "max_price"
	DimRegions                 Dimension = "regions"
	DimFuelTypes               Dimension = "fuel_types"
	DimMinContractDuration     Dimension = "min_contract_duration"
	DimMaxContractDuration     Dimension = "max_contract_duration"
	DimPrepaymentRequired      Dimension = "prepayment_required"
	DimMinPrepaymentPercentage Dimension = "min_prepayment_percentage"
	DimMaxPaymentDeferralDays  Dimension = "max_payment_deferral_days"
	DimNetworks                Dimension = "azs_networks"
	DimExcludeSME              Dimension = "exclude_sme"
	DimMinProbability          Dimension = "min_probability"
	DimRecentDays              Dimension = "recent_days"
	DimSearchText              Dimension = "search_text"
	DimSortBy                  Dimension = "sort_by"
	DimSortAscending           Dimension = "sort_ascending"
)

// Dimensions lists every dimension in dialog order.
var Dimensions = []Dimension{
	DimMinPrice, DimMaxPrice, DimRegions, DimFuelTypes,
	DimMinContractDuration, DimMaxContractDuration,
	DimPrepaymentRequired, DimMinPrepaymentPercentage, DimMaxPaymentDeferralDays,
	DimNetworks, DimExcludeSME, DimMinProbability, DimRecentDays,
	DimSearchText, DimSortBy, DimSortAscending,
}

// IsMultiSelect reports whether d holds a set of options.
func (d Dimension) IsMultiSelect() bool {
	return d == DimRegions || d == DimFuelTypes || d == DimNetworks
}

// Criteria is the accumulated set of filter choices. The zero value places no
// constraint on any dimension.
type Criteria struct {
	MinPrice *float64
	MaxPrice *float64

	// Regions, FuelTypes and Networks are sets kept in selection order. An
	// emptied set is stored as nil.
	Regions   []string
	FuelTypes []string

	MinContractDuration *int
	MaxContractDuration *int

	PrepaymentRequired      *bool
	MinPrepaymentPercentage *float64
	MaxPaymentDeferralDays  *int

	// Networks holds network slugs; a record matches if it requires any.
	Networks []string

	ExcludeSME     *bool
	MinProbability *float64
	RecentDays     *int

	// SearchText is matched case-insensitively against title and description.
	SearchText *string

	SortBy        *lead.Field
	SortAscending *bool
}

// Has reports whether d is present.
func (c *Criteria) Has(d Dimension) bool {
	switch d {
	case DimMinPrice:
		return c.MinPrice != nil
	case DimMaxPrice:
		return c.MaxPrice != nil
	case DimRegions:
		return c.Regions != nil
	case DimFuelTypes:
		return c.FuelTypes != nil
	case DimMinContractDuration:
		return c.MinContractDuration != nil
	case DimMaxContractDuration:
		return c.MaxContractDuration != nil
	case DimPrepaymentRequired:
		return c.PrepaymentRequired != nil
	case DimMinPrepaymentPercentage:
		return c.MinPrepaymentPercentage != nil
	case DimMaxPaymentDeferralDays:
		return c.MaxPaymentDeferralDays != nil
	case DimNetworks:
		return c.Networks != nil
	case DimExcludeSME:
		return c.ExcludeSME != nil
	case DimMinProbability:
		return c.MinProbability != nil
	case DimRecentDays:
		return c.RecentDays != nil
	case DimSearchText:
		return c.SearchText != nil
	case DimSortBy:
		return c.SortBy != nil
	case DimSortAscending:
		return c.SortAscending != nil
	}
	return false
}

// Present returns the dimensions that are set, in dialog order.
func (c *Criteria) Present() []Dimension {
	var out []Dimension
	for _, d := range Dimensions {
		if c.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

// Clear removes every given dimension.
func (c *Criteria) Clear(dims ...Dimension) {
	for _, d := range dims {
		switch d {
		case DimMinPrice:
			c.MinPrice = nil
		case DimMaxPrice:
			c.MaxPrice = nil
		case DimRegions:
			c.Regions = nil
		case DimFuelTypes:
			c.FuelTypes = nil
		case DimMinContractDuration:
			c.MinContractDuration = nil
		case DimMaxContractDuration:
			c.MaxContractDuration = nil
		case DimPrepaymentRequired:
			c.PrepaymentRequired = nil
		case DimMinPrepaymentPercentage:
			c.MinPrepaymentPercentage = nil
		case DimMaxPaymentDeferralDays:
			c.MaxPaymentDeferralDays = nil
		case DimNetworks:
			c.Networks = nil
		case DimExcludeSME:
			c.ExcludeSME = nil
		case DimMinProbability:
			c.MinProbability = nil
		case DimRecentDays:
			c.RecentDays = nil
		case DimSearchText:
			c.SearchText = nil
		case DimSortBy:
			c.SortBy = nil
		case DimSortAscending:
			c.SortAscending = nil
		}
	}
}

// Selected returns the current members of a multi-select dimension.
func (c *Criteria) Selected(d Dimension) []string {
	switch d {
	case DimRegions:
		return c.Regions
	case DimFuelTypes:
		return c.FuelTypes
	case DimNetworks:
		return c.Networks
	}
	return nil
}

// Toggle flips membership of value in the multi-select dimension d. Toggling
// the last member off removes the dimension.
func (c *Criteria) Toggle(d Dimension, value string) error {
	var set *[]string
	switch d {
	case DimRegions:
		set = &c.Regions
	case DimFuelTypes:
		set = &c.FuelTypes
	case DimNetworks:
		set = &c.Networks
	default:
		return fmt.Errorf("filter: toggle: %q is not a multi-select dimension", d)
	}

	if i := slices.Index(*set, value); i >= 0 {
		*set = slices.Delete(*set, i, i+1)
		if len(*set) == 0 {
			*set = nil
		}
		return nil
	}
	*set = append(*set, value)
	return nil
}

// Clone returns a deep copy of c.
func (c Criteria) Clone() Criteria {
	out := c
	out.Regions = slices.Clone(c.Regions)
	out.FuelTypes = slices.Clone(c.FuelTypes)
	out.Networks = slices.Clone(c.Networks)
	out.MinPrice = clonePtr(c.MinPrice)
	out.MaxPrice = clonePtr(c.MaxPrice)
	out.MinContractDuration = clonePtr(c.MinContractDuration)
	out.MaxContractDuration = clonePtr(c.MaxContractDuration)
	out.PrepaymentRequired = clonePtr(c.PrepaymentRequired)
	out.MinPrepaymentPercentage = clonePtr(c.MinPrepaymentPercentage)
	out.MaxPaymentDeferralDays = clonePtr(c.MaxPaymentDeferralDays)
	out.ExcludeSME = clonePtr(c.ExcludeSME)
	out.MinProbability = clonePtr(c.MinProbability)
	out.RecentDays = clonePtr(c.RecentDays)
	out.SearchText = clonePtr(c.SearchText)
	out.SortBy = clonePtr(c.SortBy)
	out.SortAscending = clonePtr(c.SortAscending)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
