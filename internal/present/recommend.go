package present

import (
	"fmt"
	"strings"

	"github.com/MrWong99/leadscout/pkg/lead"
)

// Recommend derives advice for a record that the scoring pipeline left
// without a recommendation. Notes are joined into a single paragraph.
func Recommend(r lead.Record, networks []lead.Network) string {
	var notes []string

	switch p := r.ProbabilityValue(); {
	case !r.HasProbability():
		notes = append(notes, "Win probability has not been scored yet.")
	case p >= 0.85:
		notes = append(notes, "High priority: very good chances, bid actively.")
	case p >= 0.6:
		notes = append(notes, "Medium priority: promising, needs a careful review.")
	case p >= 0.3:
		notes = append(notes, "Low priority: modest chances, worth it only with little competition.")
	default:
		notes = append(notes, "Very low priority: chances are slim, consider skipping.")
	}

	if r.Price != nil {
		switch price := r.PriceValue(); {
		case price > 1_000_000:
			notes = append(notes, "Large tender: prepare the commercial offer thoroughly.")
		case price < 200_000:
			notes = append(notes, "Small tender: a quick submission can lift turnover.")
		}
	}

	if r.ContractDurationDays != nil {
		switch d := *r.ContractDurationDays; {
		case d > 180:
			notes = append(notes, "Long contract: secure supply for the whole term.")
		case d < 60:
			notes = append(notes, "Short contract: fast execution matters.")
		}
	}

	switch {
	case r.PrepaymentValue() && r.PrepaymentPercentageValue() > 0:
		notes = append(notes, fmt.Sprintf("Prepayment %s: confirm the advance terms.", formatPercent(r.PrepaymentPercentageValue())))
	case r.PrepaymentValue():
		notes = append(notes, "Prepayment offered: confirm its size and conditions.")
	case r.PaymentDeferralValue() > 0:
		notes = append(notes, fmt.Sprintf("Payment deferred up to %d days: check working capital.", r.PaymentDeferralValue()))
	}

	if r.SMEValue() {
		notes = append(notes, "SME customer: expect specific requirements or preferences.")
	}

	if names := networkNames(r, networks); len(names) > 0 {
		notes = append(notes, fmt.Sprintf("Required networks: %s. Make sure you can supply cards for them.", strings.Join(names, ", ")))
	} else {
		notes = append(notes, "No station network requirements, which widens the options.")
	}

	return strings.Join(notes, " ")
}
