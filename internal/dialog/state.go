// Package dialog implements the guided filter conversation.
//
// A [Conversation] walks through a fixed sequence of questions, one per
// filter dimension, accumulating a [filter.Criteria]. [Step] is the pure
// transition function: it applies one [Event] to a conversation and reports
// the [Outcome]. [BuildPrompt] renders the question for the current state.
// [Service] binds both to a session store, a messaging transport and the
// query pipeline that runs once the conversation reaches [StateFinal].
package dialog

import "github.com/MrWong99/leadscout/internal/filter"

// State is one step of the filter conversation.
type State int

const (
	StateStart State = iota
	StatePriceMin
	StatePriceMax
	StateRegion
	StateFuelType
	StateContractDurationMin
	StateContractDurationMax
	StatePaymentType
	StatePrepaymentPctMin
	StatePaymentDeferralMax
	StateAZSNetworks
	StateExcludeSME
	StateMinProbability
	StateRecentDays
	StateSearchText
	StateSortBy
	StateFinal
)

var stateNames = [...]string{
	StateStart:               "start",
	StatePriceMin:            "price_min",
	StatePriceMax:            "price_max",
	StateRegion:              "region",
	StateFuelType:            "fuel_type",
	StateContractDurationMin: "contract_duration_min",
	StateContractDurationMax: "contract_duration_max",
	StatePaymentType:         "payment_type",
	StatePrepaymentPctMin:    "prepayment_pct_min",
	StatePaymentDeferralMax:  "payment_deferral_max",
	StateAZSNetworks:         "azs_networks",
	StateExcludeSME:          "exclude_sme",
	StateMinProbability:      "min_probability",
	StateRecentDays:          "recent_days",
	StateSearchText:          "search_text",
	StateSortBy:              "sort_by",
	StateFinal:               "final",
}

// String returns the snake_case state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// dimension returns the criteria dimension a state asks about.
func (s State) dimension() filter.Dimension {
	switch s {
	case StatePriceMin:
		return filter.DimMinPrice
	case StatePriceMax:
		return filter.DimMaxPrice
	case StateRegion:
		return filter.DimRegions
	case StateFuelType:
		return filter.DimFuelTypes
	case StateContractDurationMin:
		return filter.DimMinContractDuration
	case StateContractDurationMax:
		return filter.DimMaxContractDuration
	case StatePaymentType:
		return filter.DimPrepaymentRequired
	case StatePrepaymentPctMin:
		return filter.DimMinPrepaymentPercentage
	case StatePaymentDeferralMax:
		return filter.DimMaxPaymentDeferralDays
	case StateAZSNetworks:
		return filter.DimNetworks
	case StateExcludeSME:
		return filter.DimExcludeSME
	case StateMinProbability:
		return filter.DimMinProbability
	case StateRecentDays:
		return filter.DimRecentDays
	case StateSearchText:
		return filter.DimSearchText
	case StateSortBy:
		return filter.DimSortBy
	}
	return ""
}

// next returns the state following s on the linear path. PAYMENT_TYPE
// branches and is resolved by the choice handler instead.
func (s State) next() State {
	switch s {
	case StateStart:
		return StatePriceMin
	case StatePaymentType:
		return StateAZSNetworks
	case StateSortBy, StateFinal:
		return StateFinal
	}
	return s + 1
}

func (s State) isMultiSelect() bool {
	return s == StateRegion || s == StateFuelType || s == StateAZSNetworks
}

func (s State) isChoice() bool {
	return s == StatePaymentType || s == StateExcludeSME || s == StateSortBy
}
