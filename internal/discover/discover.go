// Package discover finds category listings on a storefront using a
// chain of strategies: main navigation, fallback navigation, then the
// XML sitemap.
package discover

import (
	"context"
	"encoding/xml"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/partswatch/partswatch/internal/domain"
	"github.com/partswatch/partswatch/internal/fetch"
	"github.com/partswatch/partswatch/internal/logger"
	"github.com/partswatch/partswatch/internal/sites"
)

// Strategy thresholds. A sparse result from one strategy triggers the
// next; results accumulate rather than replace.
const (
	minPrimaryResults   = 10
	minSecondaryResults = 5
)

// Discoverer runs category discovery for one adapter.
type Discoverer struct {
	session *fetch.Session
	log     logger.Interface
}

// New creates a discoverer.
func New(session *fetch.Session, log logger.Interface) *Discoverer {
	return &Discoverer{session: session, log: log}
}

// Discover returns category seeds for the adapter's site, deduplicated
// by URL. Discovery is best-effort: failures are logged and produce an
// empty result rather than an error.
func (d *Discoverer) Discover(ctx context.Context, adapter sites.Adapter) []domain.CategorySeed {
	if !adapter.SupportsDiscovery() {
		return nil
	}

	baseURL := adapter.SeedURL()
	seen := make(map[string]bool)
	var seeds []domain.CategorySeed

	add := func(batch []domain.CategorySeed) {
		for _, seed := range batch {
			if seed.URL == "" || seen[seed.URL] {
				continue
			}
			seen[seed.URL] = true
			if seed.Slug == "" {
				seed.Slug = domain.Slugify(seed.Label)
			}
			seeds = append(seeds, seed)
		}
	}

	res := d.session.Fetch(ctx, baseURL)
	if !res.OK() {
		d.log.Warn("discovery fetch failed",
			"client", adapter.Site(),
			"url", baseURL,
			"status", res.Status,
			"bot_challenge", res.BotChallenge,
			"error", res.Err,
		)
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.HTML))
	if err != nil {
		d.log.Error("discovery parse failed", "client", adapter.Site(), "error", err)
		return nil
	}

	add(adapter.PrimaryCategories(doc, res.FinalURL))
	d.log.Debug("primary navigation discovery", "client", adapter.Site(), "found", len(seeds))

	if len(seeds) < minPrimaryResults {
		add(adapter.SecondaryCategories(doc, res.FinalURL))
		d.log.Debug("secondary navigation discovery", "client", adapter.Site(), "found", len(seeds))
	}

	if len(seeds) < minSecondaryResults {
		add(d.fromSitemap(ctx, adapter, baseURL))
		d.log.Debug("sitemap discovery", "client", adapter.Site(), "found", len(seeds))
	}

	d.log.Info("category discovery finished", "client", adapter.Site(), "categories", len(seeds))
	return seeds
}

// sitemapURLSet is the subset of the sitemap schema we care about.
type sitemapURLSet struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// fromSitemap pulls category URLs out of /sitemap.xml.
func (d *Discoverer) fromSitemap(ctx context.Context, adapter sites.Adapter, baseURL string) []domain.CategorySeed {
	sitemapURL := sites.AbsURL(baseURL, "/sitemap.xml")
	res := d.session.Fetch(ctx, sitemapURL)
	if !res.OK() {
		d.log.Debug("sitemap fetch failed", "client", adapter.Site(), "status", res.Status, "error", res.Err)
		return nil
	}

	var parsed sitemapURLSet
	if err := xml.Unmarshal([]byte(res.HTML), &parsed); err != nil {
		d.log.Debug("sitemap parse failed", "client", adapter.Site(), "error", err)
		return nil
	}

	var seeds []domain.CategorySeed
	for _, entry := range parsed.URLs {
		if entry.Loc == "" || !adapter.IsCategoryURL(entry.Loc) {
			continue
		}
		seeds = append(seeds, domain.CategorySeed{
			URL:   entry.Loc,
			Label: labelFromURL(entry.Loc),
		})
	}
	return seeds
}

// labelFromURL derives a readable label from the last URL path segment.
func labelFromURL(u string) string {
	trimmed := strings.TrimRight(u, "/")
	tail := trimmed[strings.LastIndex(trimmed, "/")+1:]
	words := strings.Split(strings.ReplaceAll(tail, "-", " "), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.TrimSpace(strings.Join(words, " "))
}

// FilterBySeed narrows discovered categories to those under seedURL.
// When nothing matches, the seed itself is treated as a category so
// targeted jobs can point at branches discovery never saw.
func FilterBySeed(categories []domain.CategorySeed, seedURL string) []domain.CategorySeed {
	normalized := strings.TrimSpace(seedURL)
	if normalized == "" {
		return categories
	}

	normalizedLower := strings.ToLower(strings.TrimRight(normalized, "/"))
	var matches []domain.CategorySeed
	for _, cat := range categories {
		lower := strings.ToLower(cat.URL)
		if strings.Contains(lower, normalizedLower) || strings.HasPrefix(lower, normalizedLower) {
			matches = append(matches, cat)
		}
	}
	if len(matches) > 0 {
		return matches
	}

	return []domain.CategorySeed{SeedFromURL(normalized)}
}

// SeedFromURL builds a category seed for an explicitly supplied URL,
// deriving its label from the last path segment.
func SeedFromURL(u string) domain.CategorySeed {
	trimmed := strings.TrimSpace(u)
	label := labelFromURL(trimmed)
	if label == "" {
		label = "Direct Category"
	}
	return domain.CategorySeed{
		URL:   trimmed,
		Label: label,
		Slug:  domain.Slugify(label),
	}
}

// ApplyCap truncates automatic discovery results to the configured soft
// cap. Zero disables the cap.
func ApplyCap(categories []domain.CategorySeed, limit int, log logger.Interface) []domain.CategorySeed {
	if limit <= 0 || len(categories) <= limit {
		return categories
	}
	log.Warn("category cap applied", "discovered", len(categories), "cap", limit)
	return categories[:limit]
}
