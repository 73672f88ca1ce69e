package sites

import (
	"errors"
	"fmt"
	"sort"

	"github.com/PuerkitoBio/goquery"

	"github.com/partswatch/partswatch/internal/domain"
)

// Client names for the shipped adapters.
const (
	ClientPartsDepot = "partsdepot"
	ClientMobileZone = "mobilezone"
	ClientTechParts  = "techparts"
)

// ErrUnknownClient is returned when no adapter is registered for a
// requested client name.
var ErrUnknownClient = errors.New("unknown client")

// Adapter extracts site-specific structure from fetched pages. Adapters
// are pure parsers: they never perform network I/O themselves.
type Adapter interface {
	// Site returns the client name this adapter serves.
	Site() string
	// SeedURL is the default discovery entry point.
	SeedURL() string
	// SupportsDiscovery reports whether category discovery is automated.
	SupportsDiscovery() bool
	// RequiresCategoryList reports whether runs must supply explicit
	// category URLs.
	RequiresCategoryList() bool

	// PrimaryCategories extracts category seeds from the main navigation.
	PrimaryCategories(doc *goquery.Document, baseURL string) []domain.CategorySeed
	// SecondaryCategories extracts seeds from the fallback navigation.
	SecondaryCategories(doc *goquery.Document, baseURL string) []domain.CategorySeed
	// IsCategoryURL reports whether a sitemap URL points at a category
	// listing.
	IsCategoryURL(u string) bool

	// ExtractRecords parses product listings out of a category page.
	ExtractRecords(doc *goquery.Document, pageURL string) []domain.ScrapedRecord
	// NextPageURL resolves the next listing page, or "" when the page
	// exposes no pagination link.
	NextPageURL(doc *goquery.Document, currentURL string) string
}

// Registry maps client names to adapters.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry returns a registry preloaded with the shipped adapters.
func NewRegistry() *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	r.Register(NewPartsDepot())
	r.Register(NewMobileZone())
	r.Register(NewTechParts())
	return r
}

// Register adds an adapter, replacing any previous one for the same site.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Site()] = a
}

// ForClient returns the adapter for a client name.
func (r *Registry) ForClient(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownClient, name)
	}
	return a, nil
}

// Names returns registered client names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
