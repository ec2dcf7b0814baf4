package lead

import "math"

// Field names a sortable record attribute.
type Field string

const (
	FieldProbability          Field = "probability"
	FieldPrice                Field = "price"
	FieldPublicationDate      Field = "publication_date"
	FieldContractDuration     Field = "contract_duration_days"
	FieldPrepaymentPercentage Field = "prepayment_percentage"
	FieldPaymentDeferral      Field = "payment_deferral_days"
)

// IsValid reports whether f is a recognised sortable field.
func (f Field) IsValid() bool {
	switch f {
	case FieldProbability, FieldPrice, FieldPublicationDate,
		FieldContractDuration, FieldPrepaymentPercentage, FieldPaymentDeferral:
		return true
	}
	return false
}

// Numeric returns the value of f as a float64 and whether the record has it.
// Publication dates are returned as Unix seconds. Unlike the Value accessors
// this does not substitute neutral values: sorting needs to tell a missing
// attribute from a zero one.
func (r Record) Numeric(f Field) (float64, bool) {
	switch f {
	case FieldProbability:
		if !r.HasProbability() {
			return 0, false
		}
		return *r.Probability, true
	case FieldPrice:
		if r.Price == nil || math.IsNaN(*r.Price) {
			return 0, false
		}
		return *r.Price, true
	case FieldPublicationDate:
		if r.PublishedAt == nil || r.PublishedAt.IsZero() {
			return 0, false
		}
		return float64(r.PublishedAt.Unix()), true
	case FieldContractDuration:
		if r.ContractDurationDays == nil {
			return 0, false
		}
		return float64(*r.ContractDurationDays), true
	case FieldPrepaymentPercentage:
		if r.PrepaymentPercentage == nil || math.IsNaN(*r.PrepaymentPercentage) {
			return 0, false
		}
		return *r.PrepaymentPercentage, true
	case FieldPaymentDeferral:
		if r.PaymentDeferralDays == nil {
			return 0, false
		}
		return float64(*r.PaymentDeferralDays), true
	}
	return 0, false
}
