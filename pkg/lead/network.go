package lead

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Network is a fuel-station chain whose cards a tender may require.
type Network struct {
	// Slug is the stable key used in [Record.RequiredNetworks].
	Slug string `yaml:"slug"`

	// Name is the display name shown to users.
	Name string `yaml:"name"`
}

// DefaultNetworks lists the major station chains tracked by the scoring
// pipeline.
var DefaultNetworks = []Network{
	{Slug: "gazpromneft", Name: "Газпромнефть"},
	{Slug: "lukoil", Name: "Лукойл"},
	{Slug: "rosneft", Name: "Роснефть"},
	{Slug: "bashneft", Name: "Башнефть"},
	{Slug: "tatneft", Name: "Татнефть"},
	{Slug: "surgutneftegaz", Name: "Сургутнефтегаз"},
	{Slug: "neftegazholding", Name: "Нефтегазхолдинг"},
	{Slug: "irkutskoil", Name: "Иркутскоил"},
	{Slug: "alians", Name: "Альянс"},
}

// NetworkName returns the display name for slug from catalog. Slugs missing
// from the catalog are shown with their first letter upper-cased.
func NetworkName(catalog []Network, slug string) string {
	for _, n := range catalog {
		if n.Slug == slug {
			return n.Name
		}
	}
	r, size := utf8.DecodeRuneInString(slug)
	if r == utf8.RuneError {
		return slug
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(slug[size:])
}

// Ptr returns a pointer to v. It keeps optional record fields terse in
// literals.
func Ptr[T any](v T) *T {
	return &v
}
