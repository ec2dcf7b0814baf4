// Package present renders ranked records as chat-sized text blocks.
//
// Each displayed record becomes one block; a trailing summary block is added
// when more records matched than are shown. Blocks are split with [Chunk]
// before sending so no message exceeds the transport payload limit.
package present

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/MrWong99/leadscout/pkg/lead"
)

const (
	// DefaultLimit is the number of records rendered per result.
	DefaultLimit = 10

	// titleLimit is the maximum title length in characters before truncation.
	titleLimit = 80

	notAvailable = "N/A"
)

// Formatter renders records. The zero value renders [DefaultLimit] records
// using [lead.DefaultNetworks] for network names.
type Formatter struct {
	// Limit caps the number of rendered records. Zero means [DefaultLimit].
	Limit int

	// Networks is the catalog used to name required networks.
	Networks []lead.Network
}

// Render returns one block per record up to the limit, followed by a summary
// block when records were left out.
func (f Formatter) Render(records []lead.Record) []string {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	networks := f.Networks
	if networks == nil {
		networks = lead.DefaultNetworks
	}

	shown := min(limit, len(records))
	blocks := make([]string, 0, shown+1)
	for i := range shown {
		blocks = append(blocks, FormatRecord(i+1, records[i], networks))
	}
	if len(records) > limit {
		blocks = append(blocks, Summary(len(records), limit))
	}
	return blocks
}

// Render is [Formatter.Render] with the default network catalog.
func Render(records []lead.Record, limit int) []string {
	return Formatter{Limit: limit}.Render(records)
}

// Summary reports how many records matched and how many are shown.
func Summary(total, shown int) string {
	return fmt.Sprintf("Found %d tenders in total. Showing the top %d; narrow the filters to see the rest.", total, shown)
}

// FormatRecord renders a single record as a markdown block.
func FormatRecord(rank int, r lead.Record, networks []lead.Network) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**%d. %s**\n\n", rank, truncateTitle(r.Title))
	fmt.Fprintf(&b, "💰 **Price**: %s\n", formatPrice(r.Price))
	fmt.Fprintf(&b, "📈 **Win probability**: %s\n", formatProbability(r))

	rec := r.Recommendation
	if strings.TrimSpace(rec) == "" {
		rec = Recommend(r, networks)
	}
	fmt.Fprintf(&b, "💡 **Recommendation**: %s\n", rec)
	fmt.Fprintf(&b, "👤 **Customer**: %s\n", formatCustomer(r))
	fmt.Fprintf(&b, "📅 **Published**: %s\n", formatDate(r.PublishedAt))
	if r.Link != "" {
		fmt.Fprintf(&b, "🔗 [Open tender](%s)\n", r.Link)
	} else {
		fmt.Fprintf(&b, "🔗 %s\n", notAvailable)
	}

	b.WriteString("\n**Details**\n")
	fmt.Fprintf(&b, "SME: %s\n", yesNo(r.SMEValue()))
	if r.ContractDurationDays != nil {
		fmt.Fprintf(&b, "Contract term: %d days\n", *r.ContractDurationDays)
	} else {
		fmt.Fprintf(&b, "Contract term: %s\n", notAvailable)
	}
	prepay := yesNo(r.PrepaymentValue())
	if r.PrepaymentValue() && r.PrepaymentPercentageValue() > 0 {
		prepay += " (" + formatPercent(r.PrepaymentPercentageValue()) + ")"
	}
	fmt.Fprintf(&b, "Prepayment: %s\n", prepay)
	if d := r.PaymentDeferralValue(); d > 0 {
		fmt.Fprintf(&b, "Payment deferral: %d days\n", d)
	} else {
		b.WriteString("Payment deferral: No\n")
	}
	if names := networkNames(r, networks); len(names) > 0 {
		fmt.Fprintf(&b, "Required networks: %s", strings.Join(names, ", "))
	} else {
		b.WriteString("No station network requirements.")
	}
	return b.String()
}

func truncateTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "Untitled tender"
	}
	if utf8.RuneCountInString(title) <= titleLimit {
		return title
	}
	runes := []rune(title)
	return string(runes[:titleLimit]) + "..."
}

func formatPrice(p *float64) string {
	if p == nil || math.IsNaN(*p) {
		return notAvailable
	}
	return humanize.Comma(int64(math.Round(*p))) + " RUB"
}

func formatProbability(r lead.Record) string {
	if !r.HasProbability() {
		return notAvailable
	}
	return fmt.Sprintf("%.2f%%", *r.Probability*100)
}

func formatCustomer(r lead.Record) string {
	name := r.Customer
	if name == "" {
		name = notAvailable
	}
	if r.CustomerINN != "" {
		return fmt.Sprintf("%s (INN %s)", name, r.CustomerINN)
	}
	return name
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return notAvailable
	}
	return t.Format(time.DateOnly)
}

func formatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64) + "%"
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func networkNames(r lead.Record, catalog []lead.Network) []string {
	slugs := r.RequiredNetworkSlugs()
	names := make([]string, 0, len(slugs))
	for _, s := range slugs {
		names = append(names, lead.NetworkName(catalog, s))
	}
	return names
}
