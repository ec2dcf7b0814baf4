package dialog

import (
	"fmt"
	"strings"

	"github.com/MrWong99/leadscout/internal/filter"
)

// Kind discriminates [Event] variants.
type Kind string

const (
	// KindToggle flips one option of a multi-select dimension.
	KindToggle Kind = "toggle"

	// KindDone finishes a multi-select dimension, keeping the selection.
	KindDone Kind = "done"

	// KindSkip removes the dimension and moves on.
	KindSkip Kind = "skip"

	// KindChoose answers a single-choice question.
	KindChoose Kind = "choose"

	// KindText carries free-form input typed by the user.
	KindText Kind = "text"

	// KindCancel abandons the conversation.
	KindCancel Kind = "cancel"
)

// dimContractDuration addresses both duration bounds at once. Only
// [KindSkip] uses it, from the contract duration question.
const dimContractDuration filter.Dimension = "contract_duration"

// Choice values for single-choice questions.
const (
	ChoicePrepayment   = "prepayment"
	ChoiceNoPrepayment = "no_prepayment"
	ChoiceAny          = "any"

	ChoiceExclude = "exclude"
	ChoiceInclude = "include"

	ChoiceSortProbability = "probability_desc"
	ChoiceSortPrice       = "price_desc"
	ChoiceSortPublished   = "publication_date_desc"
	ChoiceSortNone        = "none"
)

// Event is one user action fed to [Step].
type Event struct {
	Kind      Kind
	Dimension filter.Dimension // empty for text and cancel
	Value     string           // option for toggle and choose, input for text

	// Source is the prompt message a button event came from. Empty for
	// typed replies and commands.
	Source string
}

// From returns ev attributed to the prompt message ref.
func (ev Event) From(ref string) Event {
	ev.Source = ref
	return ev
}

// Toggle returns a toggle event for value in d.
func Toggle(d filter.Dimension, value string) Event {
	return Event{Kind: KindToggle, Dimension: d, Value: value}
}

// Done returns a done event for d.
func Done(d filter.Dimension) Event { return Event{Kind: KindDone, Dimension: d} }

// Skip returns a skip event for d. An empty d skips whatever the current
// question is.
func Skip(d filter.Dimension) Event { return Event{Kind: KindSkip, Dimension: d} }

// Choose returns a single-choice answer for d.
func Choose(d filter.Dimension, value string) Event {
	return Event{Kind: KindChoose, Dimension: d, Value: value}
}

// Cancel returns a cancel event.
func Cancel() Event { return Event{Kind: KindCancel} }

// skipWords are typed replies that mean "skip this question".
var skipWords = map[string]bool{
	"skip":       true,
	"пропустить": true,
}

// TextEvent turns a typed reply into an event. Skip words, optionally
// prefixed with a slash and in any case, become a [KindSkip] event for the
// current question; everything else is a [KindText] event with surrounding
// whitespace trimmed.
func TextEvent(s string) Event {
	s = strings.TrimSpace(s)
	word := strings.ToLower(strings.TrimPrefix(s, "/"))
	if skipWords[word] {
		return Event{Kind: KindSkip}
	}
	return Event{Kind: KindText, Value: s}
}

// TokenPrefix starts every encoded event token.
const TokenPrefix = "filter:"

// EncodeToken serialises an event into an opaque token suitable for a button
// custom id.
func EncodeToken(ev Event) string {
	var b strings.Builder
	b.WriteString(TokenPrefix)
	b.WriteString(string(ev.Kind))
	b.WriteByte(':')
	b.WriteString(string(ev.Dimension))
	if ev.Value != "" {
		b.WriteByte(':')
		b.WriteString(ev.Value)
	}
	return b.String()
}

// ParseToken is the inverse of [EncodeToken]. Text events are never encoded
// and are rejected.
func ParseToken(token string) (Event, error) {
	rest, ok := strings.CutPrefix(token, TokenPrefix)
	if !ok {
		return Event{}, fmt.Errorf("dialog: parse token %q: missing prefix", token)
	}
	parts := strings.SplitN(rest, ":", 3)
	ev := Event{Kind: Kind(parts[0])}
	if len(parts) > 1 {
		ev.Dimension = filter.Dimension(parts[1])
	}
	if len(parts) > 2 {
		ev.Value = parts[2]
	}

	switch ev.Kind {
	case KindToggle, KindChoose:
		if ev.Dimension == "" || ev.Value == "" {
			return Event{}, fmt.Errorf("dialog: parse token %q: %s needs a dimension and a value", token, ev.Kind)
		}
	case KindDone:
		if ev.Dimension == "" {
			return Event{}, fmt.Errorf("dialog: parse token %q: done needs a dimension", token)
		}
	case KindSkip, KindCancel:
	default:
		return Event{}, fmt.Errorf("dialog: parse token %q: unknown kind %q", token, ev.Kind)
	}
	return ev, nil
}
