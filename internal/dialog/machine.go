package dialog

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MrWong99/leadscout/internal/filter"
	"github.com/MrWong99/leadscout/pkg/lead"
)

// Outcome reports what [Step] did with an event.
type Outcome string

const (
	// OutcomeUpdated means the criteria changed but the question stays, as
	// after a multi-select toggle.
	OutcomeUpdated Outcome = "updated"

	// OutcomeAdvanced means the conversation moved to another question.
	OutcomeAdvanced Outcome = "advanced"

	// OutcomeInvalid means the event was rejected and nothing changed.
	OutcomeInvalid Outcome = "invalid"

	// OutcomeFinal means the conversation reached [StateFinal] and the
	// query should run.
	OutcomeFinal Outcome = "final"

	// OutcomeCancelled means the user abandoned the conversation.
	OutcomeCancelled Outcome = "cancelled"
)

// ValidationError describes input the current question cannot accept. The
// conversation is left unchanged.
type ValidationError struct {
	State  State
	Input  string
	Reason string // user-facing explanation
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("dialog: invalid input %q at %s: %s", e.Input, e.State, e.Reason)
}

// Catalog holds the options offered by the multi-select questions.
type Catalog struct {
	Regions   []string
	FuelTypes []string
	Networks  []lead.Network
}

// Conversation is the state of one filter dialog.
type Conversation struct {
	State    State
	Criteria filter.Criteria

	// Catalog is captured when the dialog starts so the offered options do
	// not shift under the user.
	Catalog Catalog

	// PromptRef identifies the live prompt message that is edited in place.
	PromptRef string

	// Notice is the reason the last input was rejected, shown with the next
	// prompt.
	Notice string
}

// NewConversation returns a conversation in [StateStart].
func NewConversation(cat Catalog) *Conversation {
	return &Conversation{State: StateStart, Catalog: cat}
}

// Begin moves a new conversation to its first question.
func (c *Conversation) Begin() {
	if c.State == StateStart {
		c.State = StateStart.next()
	}
}

// Step applies ev to c. On [OutcomeInvalid] the returned error is a
// *[ValidationError] and c is unchanged apart from its Notice.
func Step(c *Conversation, ev Event) (Outcome, error) {
	if c.State == StateStart || c.State == StateFinal {
		return c.reject(ev, "this dialog is not waiting for an answer")
	}
	if ev.Source != "" && c.PromptRef != "" && ev.Source != c.PromptRef {
		return c.reject(ev, "that button belongs to another prompt")
	}
	if ev.Kind == KindCancel {
		return OutcomeCancelled, nil
	}
	if ev.Dimension != "" && ev.Dimension != c.State.dimension() &&
		!(ev.Kind == KindSkip && ev.Dimension == dimContractDuration && c.State == StateContractDurationMin) {
		return c.reject(ev, "that button belongs to an earlier question")
	}

	switch ev.Kind {
	case KindSkip:
		return c.skip(ev.Dimension), nil
	case KindDone:
		if !c.State.isMultiSelect() {
			return c.reject(ev, "there is nothing to finish here")
		}
		return c.moveTo(c.State.next()), nil
	case KindToggle:
		if !c.State.isMultiSelect() {
			return c.reject(ev, "this question is not a multi-select")
		}
		return c.toggle(ev)
	case KindChoose:
		if !c.State.isChoice() {
			return c.reject(ev, "this question does not take a choice")
		}
		return c.choose(ev)
	case KindText:
		return c.text(ev)
	}
	return c.reject(ev, "unrecognised action")
}

func (c *Conversation) reject(ev Event, reason string) (Outcome, error) {
	c.Notice = reason
	return OutcomeInvalid, &ValidationError{State: c.State, Input: ev.Value, Reason: reason}
}

func (c *Conversation) moveTo(s State) Outcome {
	c.State = s
	c.Notice = ""
	if s == StateFinal {
		return OutcomeFinal
	}
	return OutcomeAdvanced
}

func (c *Conversation) skip(d filter.Dimension) Outcome {
	switch {
	case c.State == StateContractDurationMin && d == dimContractDuration:
		c.Criteria.Clear(filter.DimMinContractDuration, filter.DimMaxContractDuration)
		return c.moveTo(StatePaymentType)
	case c.State == StatePaymentType:
		return c.applyChoice(ChoiceAny)
	case c.State == StateSortBy:
		return c.applyChoice(ChoiceSortNone)
	}
	c.Criteria.Clear(c.State.dimension())
	return c.moveTo(c.State.next())
}

func (c *Conversation) toggle(ev Event) (Outcome, error) {
	if !slices.ContainsFunc(c.options(), func(o Option) bool { return o.Event.Value == ev.Value }) {
		return c.reject(ev, fmt.Sprintf("%q is not one of the offered options", ev.Value))
	}
	if err := c.Criteria.Toggle(c.State.dimension(), ev.Value); err != nil {
		return c.reject(ev, "this question is not a multi-select")
	}
	c.Notice = ""
	return OutcomeUpdated, nil
}

func (c *Conversation) choose(ev Event) (Outcome, error) {
	if !slices.ContainsFunc(c.options(), func(o Option) bool { return o.Event.Value == ev.Value }) {
		return c.reject(ev, fmt.Sprintf("%q is not one of the offered answers", ev.Value))
	}
	return c.applyChoice(ev.Value), nil
}

// applyChoice assumes value was validated against the current options.
func (c *Conversation) applyChoice(value string) Outcome {
	cr := &c.Criteria
	switch c.State {
	case StatePaymentType:
		switch value {
		case ChoicePrepayment:
			cr.PrepaymentRequired = lead.Ptr(true)
			return c.moveTo(StatePrepaymentPctMin)
		case ChoiceNoPrepayment:
			cr.PrepaymentRequired = lead.Ptr(false)
			cr.Clear(filter.DimMinPrepaymentPercentage)
			return c.moveTo(StatePaymentDeferralMax)
		default:
			cr.Clear(filter.DimPrepaymentRequired, filter.DimMinPrepaymentPercentage, filter.DimMaxPaymentDeferralDays)
			return c.moveTo(StateAZSNetworks)
		}
	case StateExcludeSME:
		cr.ExcludeSME = lead.Ptr(value == ChoiceExclude)
	case StateSortBy:
		var key lead.Field
		switch value {
		case ChoiceSortProbability:
			key = lead.FieldProbability
		case ChoiceSortPrice:
			key = lead.FieldPrice
		case ChoiceSortPublished:
			key = lead.FieldPublicationDate
		default:
			cr.Clear(filter.DimSortBy, filter.DimSortAscending)
			return c.moveTo(StateFinal)
		}
		cr.SortBy = &key
		cr.SortAscending = lead.Ptr(false)
	}
	return c.moveTo(c.State.next())
}

func (c *Conversation) text(ev Event) (Outcome, error) {
	in := ev.Value
	cr := &c.Criteria
	switch c.State {
	case StatePriceMin:
		v, ok := parsePrice(in)
		if !ok {
			return c.reject(ev, "enter the minimum price as a number, for example 500000")
		}
		cr.MinPrice = &v
	case StatePriceMax:
		v, ok := parsePrice(in)
		if !ok {
			return c.reject(ev, "enter the maximum price as a number, for example 5000000")
		}
		if cr.MinPrice != nil && v < *cr.MinPrice {
			return c.reject(ev, "the maximum price must not be below the minimum price")
		}
		cr.MaxPrice = &v
	case StateContractDurationMin:
		v, ok := parseDays(in)
		if !ok {
			return c.reject(ev, "enter the minimum contract duration as a whole number of days")
		}
		cr.MinContractDuration = &v
	case StateContractDurationMax:
		v, ok := parseDays(in)
		if !ok {
			return c.reject(ev, "enter the maximum contract duration as a whole number of days")
		}
		if cr.MinContractDuration != nil && v < *cr.MinContractDuration {
			return c.reject(ev, "the maximum duration must not be below the minimum duration")
		}
		cr.MaxContractDuration = &v
	case StatePrepaymentPctMin:
		v, ok := parseDecimal(in, 0, 100)
		if !ok {
			return c.reject(ev, "enter a percentage between 0 and 100")
		}
		cr.MinPrepaymentPercentage = &v
	case StatePaymentDeferralMax:
		v, ok := parseDays(in)
		if !ok {
			return c.reject(ev, "enter the maximum deferral as a whole number of days")
		}
		cr.MaxPaymentDeferralDays = &v
	case StateMinProbability:
		v, ok := parseDecimal(in, 0, 1)
		if !ok {
			return c.reject(ev, "enter a probability between 0.0 and 1.0, for example 0.7")
		}
		cr.MinProbability = &v
	case StateRecentDays:
		v, ok := parseDays(in)
		if !ok {
			return c.reject(ev, "enter the number of days as a whole number")
		}
		cr.RecentDays = &v
	case StateSearchText:
		q := strings.ToLower(strings.TrimSpace(in))
		if q == "" {
			return c.reject(ev, "enter some text to search for")
		}
		cr.SearchText = &q
	default:
		return c.textOption(ev)
	}
	return c.moveTo(c.State.next()), nil
}

// textOption resolves typed input against the options of a multi-select or
// single-choice question.
func (c *Conversation) textOption(ev Event) (Outcome, error) {
	opts := c.options()
	labels := make([]string, len(opts))
	for i, o := range opts {
		labels[i] = o.Label
	}
	i, ok := matchOption(ev.Value, labels)
	if !ok {
		return c.reject(ev, fmt.Sprintf("%q does not match any option, pick one of the buttons", ev.Value))
	}
	picked := opts[i].Event
	if picked.Kind == KindToggle {
		return c.toggle(picked)
	}
	return c.choose(picked)
}
