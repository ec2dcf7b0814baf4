package dialog

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/leadscout/internal/filter"
	"github.com/MrWong99/leadscout/pkg/lead"
)

func testCatalog() Catalog {
	return Catalog{
		Regions:   []string{"Москва", "Краснодарский край", "Тверская область"},
		FuelTypes: []string{"АИ-92", "АИ-95", "ДТ"},
		Networks:  lead.DefaultNetworks,
	}
}

func at(s State) *Conversation {
	c := NewConversation(testCatalog())
	c.State = s
	return c
}

// pick returns the event behind the option or control labelled label.
func pick(t *testing.T, c *Conversation, label string) Event {
	t.Helper()
	p := BuildPrompt(c)
	for _, o := range append(p.Options, p.Controls...) {
		if o.Label == label {
			return o.Event
		}
	}
	t.Fatalf("no option %q at %s", label, c.State)
	return Event{}
}

func TestStep_FullConversation(t *testing.T) {
	t.Parallel()

	c := NewConversation(testCatalog())
	c.Begin()
	if c.State != StatePriceMin {
		t.Fatalf("Begin: state = %s, want price_min", c.State)
	}

	steps := []struct {
		event   func() Event
		want    Outcome
		wantNow State
	}{
		{func() Event { return TextEvent("500 000 руб.") }, OutcomeAdvanced, StatePriceMax},
		{func() Event { return TextEvent("/Skip") }, OutcomeAdvanced, StateRegion},
		{func() Event { return pick(t, c, "Москва") }, OutcomeUpdated, StateRegion},
		{func() Event { return TextEvent("краснодарский край") }, OutcomeUpdated, StateRegion},
		{func() Event { return pick(t, c, "✅ Done") }, OutcomeAdvanced, StateFuelType},
		{func() Event { return pick(t, c, "✅ Done") }, OutcomeAdvanced, StateContractDurationMin},
		{func() Event { return pick(t, c, "Skip duration") }, OutcomeAdvanced, StatePaymentType},
		{func() Event { return pick(t, c, "No prepayment") }, OutcomeAdvanced, StatePaymentDeferralMax},
		{func() Event { return TextEvent("30") }, OutcomeAdvanced, StateAZSNetworks},
		{func() Event { return pick(t, c, "Лукойл") }, OutcomeUpdated, StateAZSNetworks},
		{func() Event { return pick(t, c, "✅ Done") }, OutcomeAdvanced, StateExcludeSME},
		{func() Event { return pick(t, c, "Exclude SME") }, OutcomeAdvanced, StateMinProbability},
		{func() Event { return TextEvent("0,7") }, OutcomeAdvanced, StateRecentDays},
		{func() Event { return TextEvent("14") }, OutcomeAdvanced, StateSearchText},
		{func() Event { return TextEvent("  Бензин ") }, OutcomeAdvanced, StateSortBy},
		{func() Event { return pick(t, c, "By price") }, OutcomeFinal, StateFinal},
	}
	for i, st := range steps {
		from := c.State
		got, err := Step(c, st.event())
		if err != nil {
			t.Fatalf("step %d at %s: %v", i, from, err)
		}
		if got != st.want || c.State != st.wantNow {
			t.Fatalf("step %d at %s: outcome %s, state %s; want %s, %s", i, from, got, c.State, st.want, st.wantNow)
		}
	}

	price := lead.FieldPrice
	want := filter.Criteria{
		MinPrice:               lead.Ptr(500000.0),
		Regions:                []string{"Москва", "Краснодарский край"},
		PrepaymentRequired:     lead.Ptr(false),
		MaxPaymentDeferralDays: lead.Ptr(30),
		Networks:               []string{"lukoil"},
		ExcludeSME:             lead.Ptr(true),
		MinProbability:         lead.Ptr(0.7),
		RecentDays:             lead.Ptr(14),
		SearchText:             lead.Ptr("бензин"),
		SortBy:                 &price,
		SortAscending:          lead.Ptr(false),
	}
	if diff := cmp.Diff(want, c.Criteria); diff != "" {
		t.Errorf("criteria mismatch (-want +got):\n%s", diff)
	}
}

func TestStep_InvalidPriceKeepsState(t *testing.T) {
	t.Parallel()

	c := at(StatePriceMin)
	got, err := Step(c, TextEvent("abc"))
	if got != OutcomeInvalid {
		t.Errorf("outcome = %s, want invalid", got)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if verr.State != StatePriceMin || verr.Input != "abc" {
		t.Errorf("ValidationError = %+v", verr)
	}
	if c.State != StatePriceMin {
		t.Errorf("state = %s, want price_min", c.State)
	}
	if c.Notice == "" {
		t.Error("Notice is empty after rejected input")
	}
	if diff := cmp.Diff(filter.Criteria{}, c.Criteria); diff != "" {
		t.Errorf("criteria changed (-want +got):\n%s", diff)
	}

	// The next valid answer clears the notice.
	if _, err := Step(c, TextEvent("1000")); err != nil {
		t.Fatalf("valid answer: %v", err)
	}
	if c.Notice != "" {
		t.Errorf("Notice = %q after valid input, want empty", c.Notice)
	}
}

func TestStep_PaymentAnyClearsPaymentTerms(t *testing.T) {
	t.Parallel()

	c := at(StatePaymentType)
	c.Criteria.PrepaymentRequired = lead.Ptr(true)
	c.Criteria.MinPrepaymentPercentage = lead.Ptr(30.0)
	c.Criteria.MaxPaymentDeferralDays = lead.Ptr(10)

	got, err := Step(c, pick(t, c, "Any"))
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got != OutcomeAdvanced || c.State != StateAZSNetworks {
		t.Errorf("outcome %s, state %s; want advanced, azs_networks", got, c.State)
	}
	for _, d := range []filter.Dimension{filter.DimPrepaymentRequired, filter.DimMinPrepaymentPercentage, filter.DimMaxPaymentDeferralDays} {
		if c.Criteria.Has(d) {
			t.Errorf("%s still set after choosing any", d)
		}
	}
}

func TestStep_PaymentBranches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label      string
		event      func(c *Conversation) Event
		wantState  State
		wantPrepay *bool
	}{
		{"Prepayment", nil, StatePrepaymentPctMin, lead.Ptr(true)},
		{"No prepayment", nil, StatePaymentDeferralMax, lead.Ptr(false)},
		{"skip", func(*Conversation) Event { return TextEvent("пропустить") }, StateAZSNetworks, nil},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			t.Parallel()
			c := at(StatePaymentType)
			c.Criteria.MinPrepaymentPercentage = lead.Ptr(50.0)

			var ev Event
			if tt.event != nil {
				ev = tt.event(c)
			} else {
				ev = pick(t, c, tt.label)
			}
			if _, err := Step(c, ev); err != nil {
				t.Fatalf("Step: %v", err)
			}
			if c.State != tt.wantState {
				t.Errorf("state = %s, want %s", c.State, tt.wantState)
			}
			if diff := cmp.Diff(tt.wantPrepay, c.Criteria.PrepaymentRequired); diff != "" {
				t.Errorf("PrepaymentRequired mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStep_ToggleTwiceRestoresSelection(t *testing.T) {
	t.Parallel()

	c := at(StateRegion)
	c.Criteria.Regions = []string{"Тверская область"}
	before := c.Criteria.Clone()

	ev := pick(t, c, "Москва")
	for range 2 {
		if got, err := Step(c, ev); err != nil || got != OutcomeUpdated {
			t.Fatalf("toggle: %s, %v", got, err)
		}
	}
	if diff := cmp.Diff(before, c.Criteria); diff != "" {
		t.Errorf("criteria after double toggle (-want +got):\n%s", diff)
	}

	// Toggling the last option off empties the set.
	c.Criteria.Regions = nil
	Step(c, ev)
	Step(c, ev)
	if c.Criteria.Has(filter.DimRegions) {
		t.Errorf("Regions = %v, want unset", c.Criteria.Regions)
	}
}

func TestStep_SkipRemovesDimension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		state     State
		setup     func(*filter.Criteria)
		skip      Event
		wantState State
		cleared   []filter.Dimension
	}{
		{
			name: "max price", state: StatePriceMax,
			setup:     func(cr *filter.Criteria) { cr.MaxPrice = lead.Ptr(9.0) },
			skip:      Skip(""),
			wantState: StateRegion,
			cleared:   []filter.Dimension{filter.DimMaxPrice},
		},
		{
			name: "whole duration", state: StateContractDurationMin,
			setup: func(cr *filter.Criteria) {
				cr.MinContractDuration, cr.MaxContractDuration = lead.Ptr(10), lead.Ptr(20)
			},
			skip:      Skip(dimContractDuration),
			wantState: StatePaymentType,
			cleared:   []filter.Dimension{filter.DimMinContractDuration, filter.DimMaxContractDuration},
		},
		{
			name: "min duration only", state: StateContractDurationMin,
			setup:     func(cr *filter.Criteria) { cr.MinContractDuration = lead.Ptr(10) },
			skip:      Skip(filter.DimMinContractDuration),
			wantState: StateContractDurationMax,
			cleared:   []filter.Dimension{filter.DimMinContractDuration},
		},
		{
			name: "regions", state: StateRegion,
			setup:     func(cr *filter.Criteria) { cr.Regions = []string{"Москва"} },
			skip:      Skip(filter.DimRegions),
			wantState: StateFuelType,
			cleared:   []filter.Dimension{filter.DimRegions},
		},
		{
			name: "sort", state: StateSortBy,
			setup: func(cr *filter.Criteria) {
				f := lead.FieldPrice
				cr.SortBy, cr.SortAscending = &f, lead.Ptr(true)
			},
			skip:      Skip(""),
			wantState: StateFinal,
			cleared:   []filter.Dimension{filter.DimSortBy, filter.DimSortAscending},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := at(tt.state)
			tt.setup(&c.Criteria)
			if _, err := Step(c, tt.skip); err != nil {
				t.Fatalf("Step: %v", err)
			}
			if c.State != tt.wantState {
				t.Errorf("state = %s, want %s", c.State, tt.wantState)
			}
			for _, d := range tt.cleared {
				if c.Criteria.Has(d) {
					t.Errorf("%s still set after skip", d)
				}
			}
		})
	}
}

func TestStep_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		state State
		setup func(*filter.Criteria)
		event Event
	}{
		{"max price below min", StatePriceMax, func(cr *filter.Criteria) { cr.MinPrice = lead.Ptr(1000.0) }, TextEvent("999")},
		{"max duration below min", StateContractDurationMax, func(cr *filter.Criteria) { cr.MinContractDuration = lead.Ptr(90) }, TextEvent("30")},
		{"negative days", StateRecentDays, nil, TextEvent("-3")},
		{"fractional days", StatePaymentDeferralMax, nil, TextEvent("1.5")},
		{"probability above one", StateMinProbability, nil, TextEvent("1.2")},
		{"percentage above hundred", StatePrepaymentPctMin, nil, TextEvent("120%")},
		{"blank search", StateSearchText, nil, TextEvent("   ")},
		{"unknown region", StateRegion, nil, Toggle(filter.DimRegions, "Марс")},
		{"unmatched text", StateRegion, nil, TextEvent("Атлантида")},
		{"stale button", StateFuelType, nil, Toggle(filter.DimRegions, "Москва")},
		{"done outside multi-select", StatePriceMin, nil, Done(filter.DimMinPrice)},
		{"choice outside choice question", StateRegion, nil, Choose(filter.DimRegions, "Москва")},
		{"toggle on choice question", StateExcludeSME, nil, Toggle(filter.DimExcludeSME, ChoiceExclude)},
		{"unknown choice", StateSortBy, nil, Choose(filter.DimSortBy, "random")},
		{"after final", StateFinal, nil, TextEvent("100")},
		{"before begin", StateStart, nil, TextEvent("100")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := at(tt.state)
			if tt.setup != nil {
				tt.setup(&c.Criteria)
			}
			before := c.Criteria.Clone()

			got, err := Step(c, tt.event)
			if got != OutcomeInvalid || err == nil {
				t.Fatalf("Step = %s, %v; want invalid with error", got, err)
			}
			if c.State != tt.state {
				t.Errorf("state = %s, want %s", c.State, tt.state)
			}
			if diff := cmp.Diff(before, c.Criteria); diff != "" {
				t.Errorf("criteria changed (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStep_Cancel(t *testing.T) {
	t.Parallel()

	c := at(StateFuelType)
	if got, err := Step(c, Cancel()); err != nil || got != OutcomeCancelled {
		t.Errorf("Step(cancel) = %s, %v; want cancelled", got, err)
	}
}

func TestStep_PromptSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		ref    string
		event  Event
		wantOK bool
	}{
		{"current prompt", "msg-2", Toggle(filter.DimRegions, "Москва").From("msg-2"), true},
		{"replaced prompt", "msg-2", Toggle(filter.DimRegions, "Москва").From("msg-1"), false},
		{"cancel from replaced prompt", "msg-2", Cancel().From("msg-1"), false},
		{"typed reply", "msg-2", TextEvent("Москва"), true},
		{"no prompt shown yet", "", Toggle(filter.DimRegions, "Москва").From("msg-1"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := at(StateRegion)
			c.PromptRef = tt.ref

			got, err := Step(c, tt.event)
			if tt.wantOK {
				if err != nil || got == OutcomeInvalid {
					t.Fatalf("Step = %s, %v; want accepted", got, err)
				}
				return
			}
			if got != OutcomeInvalid || err == nil {
				t.Fatalf("Step = %s, %v; want invalid with error", got, err)
			}
			if len(c.Criteria.Regions) != 0 || c.State != StateRegion {
				t.Errorf("rejected event changed the dialog: state %s, regions %v", c.State, c.Criteria.Regions)
			}
		})
	}
}

func TestStep_FuzzyChoice(t *testing.T) {
	t.Parallel()

	c := at(StateSortBy)
	if _, err := Step(c, TextEvent("by probabilty")); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if c.Criteria.SortBy == nil || *c.Criteria.SortBy != lead.FieldProbability {
		t.Errorf("SortBy = %v, want probability", c.Criteria.SortBy)
	}
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	labels := func(opts []Option) []string {
		var out []string
		for _, o := range opts {
			out = append(out, o.Label)
		}
		return out
	}

	tests := []struct {
		state        State
		wantControls []string
		wantOptions  int
	}{
		{StatePriceMin, []string{"Skip", "✖ Cancel"}, 0},
		{StateRegion, []string{"✅ Done", "Skip", "✖ Cancel"}, 3},
		{StateContractDurationMin, []string{"Skip", "Skip duration", "✖ Cancel"}, 0},
		{StatePaymentType, []string{"✖ Cancel"}, 3},
		{StateAZSNetworks, []string{"✅ Done", "Skip", "✖ Cancel"}, len(lead.DefaultNetworks)},
		{StateSortBy, []string{"✖ Cancel"}, 4},
		{StateFinal, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			t.Parallel()
			p := BuildPrompt(at(tt.state))
			if p.Text == "" {
				t.Error("prompt has no text")
			}
			if diff := cmp.Diff(tt.wantControls, labels(p.Controls)); diff != "" {
				t.Errorf("controls mismatch (-want +got):\n%s", diff)
			}
			if len(p.Options) != tt.wantOptions {
				t.Errorf("got %d options, want %d", len(p.Options), tt.wantOptions)
			}
		})
	}
}

func TestBuildPrompt_MarksSelection(t *testing.T) {
	t.Parallel()

	c := at(StateAZSNetworks)
	c.Criteria.Networks = []string{"rosneft"}
	p := BuildPrompt(c)

	for _, o := range p.Options {
		if want := o.Event.Value == "rosneft"; o.Selected != want {
			t.Errorf("option %s Selected = %v, want %v", o.Label, o.Selected, want)
		}
	}
	if want := "Selected: Роснефть"; !strings.Contains(p.Text, want) {
		t.Errorf("prompt text %q lacks %q", p.Text, want)
	}
}
