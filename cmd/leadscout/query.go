package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/leadscout/internal/filter"
	"github.com/MrWong99/leadscout/internal/query"
	"github.com/MrWong99/leadscout/pkg/lead"
)

// sortFields are the values accepted by --sort.
var sortFields = []lead.Field{
	lead.FieldProbability, lead.FieldPrice, lead.FieldPublicationDate,
	lead.FieldContractDuration, lead.FieldPrepaymentPercentage, lead.FieldPaymentDeferral,
}

type queryFlags struct {
	minPrice, maxPrice float64
	regions            []string
	fuels              []string
	networks           []string
	minProbability     float64
	recentDays         int
	search             string
	excludeSME         bool
	sort               string
	asc                bool
	limit              int
}

func (c *cli) queryCmd() *cobra.Command {
	var f queryFlags
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Filter the record store and print the matching tenders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			crit, err := f.criteria(cmd)
			if err != nil {
				return err
			}
			return c.query(cmd, crit, f.limit)
		},
	}

	fl := cmd.Flags()
	fl.Float64Var(&f.minPrice, "min-price", 0, "minimum price in rubles")
	fl.Float64Var(&f.maxPrice, "max-price", 0, "maximum price in rubles")
	fl.StringArrayVar(&f.regions, "region", nil, "region to include (repeatable)")
	fl.StringArrayVar(&f.fuels, "fuel", nil, "fuel type to include (repeatable)")
	fl.StringArrayVar(&f.networks, "network", nil, "required network slug (repeatable)")
	fl.Float64Var(&f.minProbability, "min-probability", 0, "minimum win probability in [0,1]")
	fl.IntVar(&f.recentDays, "recent-days", 0, "only tenders published within this many days")
	fl.StringVar(&f.search, "search", "", "text to look for in title and description")
	fl.BoolVar(&f.excludeSME, "exclude-sme", false, "leave out tenders reserved for small businesses")
	fl.StringVar(&f.sort, "sort", "", "sort field: "+joinFields(sortFields))
	fl.BoolVar(&f.asc, "asc", false, "sort ascending instead of descending")
	fl.IntVar(&f.limit, "limit", 0, "number of tenders to print (default: output.limit)")
	return cmd
}

// criteria builds filter criteria from the flags the user actually set.
func (f *queryFlags) criteria(cmd *cobra.Command) (filter.Criteria, error) {
	set := cmd.Flags().Changed
	var c filter.Criteria

	if set("min-price") {
		c.MinPrice = lead.Ptr(f.minPrice)
	}
	if set("max-price") {
		c.MaxPrice = lead.Ptr(f.maxPrice)
	}
	if c.MinPrice != nil && c.MaxPrice != nil && *c.MinPrice > *c.MaxPrice {
		return c, fmt.Errorf("--min-price %v is above --max-price %v", *c.MinPrice, *c.MaxPrice)
	}
	if set("region") {
		c.Regions = f.regions
	}
	if set("fuel") {
		c.FuelTypes = f.fuels
	}
	if set("network") {
		c.Networks = f.networks
	}
	if set("min-probability") {
		if f.minProbability < 0 || f.minProbability > 1 {
			return c, fmt.Errorf("--min-probability %v is outside [0,1]", f.minProbability)
		}
		c.MinProbability = lead.Ptr(f.minProbability)
	}
	if set("recent-days") {
		if f.recentDays < 0 {
			return c, fmt.Errorf("--recent-days %d must not be negative", f.recentDays)
		}
		c.RecentDays = lead.Ptr(f.recentDays)
	}
	if set("search") && strings.TrimSpace(f.search) != "" {
		c.SearchText = lead.Ptr(strings.TrimSpace(f.search))
	}
	if set("exclude-sme") {
		c.ExcludeSME = lead.Ptr(f.excludeSME)
	}
	if set("sort") {
		field := lead.Field(f.sort)
		if !slices.Contains(sortFields, field) {
			return c, fmt.Errorf("unknown --sort %q; valid fields: %s", f.sort, joinFields(sortFields))
		}
		c.SortBy = &field
		c.SortAscending = lead.Ptr(f.asc)
	}
	return c, nil
}

func (c *cli) query(cmd *cobra.Command, crit filter.Criteria, limit int) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	store, closeStore, err := c.registry.OpenStore(ctx, cfg.Store, nil)
	if err != nil {
		return err
	}
	defer closeStore()

	if limit <= 0 {
		limit = cfg.Output.Limit
	}
	p := query.New(query.Config{
		Store:              store,
		IncludeUnprocessed: cfg.Store.IncludeUnprocessed,
		Limit:              limit,
		ChunkSize:          cfg.Output.ChunkSize,
		Networks:           cfg.Dialog.Networks,
	})

	res, err := p.Run(ctx, crit)
	switch {
	case errors.Is(err, query.ErrDataUnavailable):
		fmt.Fprintln(c.stdout, "No analysed tenders are available yet.")
		return nil
	case err != nil:
		return err
	case res.Total == 0:
		fmt.Fprintln(c.stdout, "No tenders match these filters.")
		return nil
	}

	fmt.Fprintf(c.stdout, "%d tenders match, showing %d.\n\n", res.Total, res.Shown)
	fmt.Fprintln(c.stdout, strings.Join(res.Blocks, "\n\n"))
	return nil
}

func joinFields(fields []lead.Field) string {
	s := make([]string, len(fields))
	for i, f := range fields {
		s[i] = string(f)
	}
	return strings.Join(s, ", ")
}
