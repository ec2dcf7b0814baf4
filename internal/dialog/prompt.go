package dialog

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MrWong99/leadscout/internal/filter"
	"github.com/MrWong99/leadscout/pkg/lead"
)

// Option is one selectable answer or control on a prompt.
type Option struct {
	Label    string
	Event    Event
	Selected bool
}

// Token returns the encoded event of the option.
func (o Option) Token() string { return EncodeToken(o.Event) }

// Prompt is the question shown for the current state.
type Prompt struct {
	State State
	Text  string

	// Notice explains why the previous input was rejected. Empty otherwise.
	Notice string

	// Options are the answers for the question, in display order.
	Options []Option

	// Controls are navigation actions: done, skip and cancel.
	Controls []Option
}

var questions = map[State]string{
	StatePriceMin:            "💰 Enter the **minimum price** in RUB (for example 500000), or skip.",
	StatePriceMax:            "💰 Enter the **maximum price** in RUB, or skip.",
	StateRegion:              "🗺️ Select the **regions** you are interested in, then press Done.",
	StateFuelType:            "⛽ Select the **fuel types**, then press Done.",
	StateContractDurationMin: "📆 Enter the **minimum contract duration** in days, or skip.",
	StateContractDurationMax: "📆 Enter the **maximum contract duration** in days, or skip.",
	StatePaymentType:         "💳 Which **payment terms** do you need?",
	StatePrepaymentPctMin:    "💳 Enter the **minimum prepayment percentage** (0-100), or skip.",
	StatePaymentDeferralMax:  "⏳ Enter the **maximum payment deferral** in days, or skip.",
	StateAZSNetworks:         "🏪 Select the **station networks** a tender may require. A tender matches if it requires any of them.",
	StateExcludeSME:          "🏢 Should tenders from **SME customers** be excluded?",
	StateMinProbability:      "📈 Enter the **minimum win probability** (0.0-1.0), or skip.",
	StateRecentDays:          "📅 Show tenders published in the **last N days**. Enter N, or skip.",
	StateSearchText:          "🔍 Enter **text to search** for in the title and description, or skip.",
	StateSortBy:              "↕️ How should the results be **sorted**?",
	StateFinal:               "⏳ Applying your filters...",
}

// BuildPrompt renders the question for the current state of c.
func BuildPrompt(c *Conversation) Prompt {
	p := Prompt{
		State:   c.State,
		Text:    questions[c.State],
		Notice:  c.Notice,
		Options: c.options(),
	}
	if c.State == StateStart || c.State == StateFinal {
		return p
	}

	if c.State.isMultiSelect() {
		p.Text += "\n" + c.selectionSummary()
		p.Controls = append(p.Controls, Option{Label: "✅ Done", Event: Done(c.State.dimension())})
	}
	switch c.State {
	case StatePaymentType, StateSortBy:
		// "any" and "no sort" already act as skip.
	case StateContractDurationMin:
		p.Controls = append(p.Controls,
			Option{Label: "Skip", Event: Skip(c.State.dimension())},
			Option{Label: "Skip duration", Event: Skip(dimContractDuration)},
		)
	default:
		p.Controls = append(p.Controls, Option{Label: "Skip", Event: Skip(c.State.dimension())})
	}
	p.Controls = append(p.Controls, Option{Label: "✖ Cancel", Event: Cancel()})
	return p
}

// options lists the answers offered by the current question. Numeric and
// free-text questions have none.
func (c *Conversation) options() []Option {
	d := c.State.dimension()
	selected := c.Criteria.Selected(d)
	multi := func(values, labels []string) []Option {
		out := make([]Option, len(values))
		for i, v := range values {
			out[i] = Option{Label: labels[i], Event: Toggle(d, v), Selected: slices.Contains(selected, v)}
		}
		return out
	}
	choice := func(pairs ...string) []Option {
		out := make([]Option, 0, len(pairs)/2)
		for i := 0; i+1 < len(pairs); i += 2 {
			out = append(out, Option{Label: pairs[i+1], Event: Choose(d, pairs[i])})
		}
		return out
	}

	switch c.State {
	case StateRegion:
		return multi(c.Catalog.Regions, c.Catalog.Regions)
	case StateFuelType:
		return multi(c.Catalog.FuelTypes, c.Catalog.FuelTypes)
	case StateAZSNetworks:
		slugs := make([]string, len(c.Catalog.Networks))
		names := make([]string, len(c.Catalog.Networks))
		for i, n := range c.Catalog.Networks {
			slugs[i], names[i] = n.Slug, n.Name
		}
		return multi(slugs, names)
	case StatePaymentType:
		return choice(
			ChoicePrepayment, "Prepayment",
			ChoiceNoPrepayment, "No prepayment",
			ChoiceAny, "Any",
		)
	case StateExcludeSME:
		return choice(
			ChoiceExclude, "Exclude SME",
			ChoiceInclude, "Only SME",
		)
	case StateSortBy:
		return choice(
			ChoiceSortProbability, "By probability",
			ChoiceSortPrice, "By price",
			ChoiceSortPublished, "By publication date",
			ChoiceSortNone, "No sorting",
		)
	}
	return nil
}

func (c *Conversation) selectionSummary() string {
	d := c.State.dimension()
	selected := c.Criteria.Selected(d)
	if len(selected) == 0 {
		return "Nothing selected yet."
	}
	names := selected
	if d == filter.DimNetworks {
		names = make([]string, len(selected))
		for i, slug := range selected {
			names[i] = lead.NetworkName(c.Catalog.Networks, slug)
		}
	}
	return fmt.Sprintf("Selected: %s", strings.Join(names, ", "))
}
