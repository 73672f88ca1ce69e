package catalog

import (
	"context"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/partswatch/partswatch/internal/domain"
	"github.com/partswatch/partswatch/internal/fetch"
	"github.com/partswatch/partswatch/internal/logger"
	"github.com/partswatch/partswatch/internal/sites"
)

// StockResolver fills in stock statuses for records whose listing card
// carried none, by fetching the product detail page. Results are cached
// per product URL, including unknowns, so a product is fetched at most
// once per run regardless of how many categories list it.
type StockResolver struct {
	session *fetch.Session
	log     logger.Interface
	cap     int

	mu    sync.Mutex
	cache map[string]string
	order []string
}

// NewStockResolver builds a resolver with a bounded cache. A cap of zero
// or less falls back to 1024 entries.
func NewStockResolver(session *fetch.Session, capSize int, log logger.Interface) *StockResolver {
	if capSize <= 0 {
		capSize = 1024
	}
	return &StockResolver{
		session: session,
		log:     log,
		cap:     capSize,
		cache:   make(map[string]string, capSize),
	}
}

// Resolve returns the best stock status it can determine for a record.
// It never returns an error: fetch or parse failures yield the unknown
// status, which is also cached to avoid repeated lookups.
func (r *StockResolver) Resolve(ctx context.Context, rec domain.ScrapedRecord) string {
	if status := sites.NormalizeStock(rec.StockStatus); status != domain.StockUnknown {
		return status
	}
	if rec.URL == "" {
		return domain.StockUnknown
	}

	r.mu.Lock()
	status, hit := r.cache[rec.URL]
	r.mu.Unlock()
	if hit {
		return status
	}

	status = r.fetchDetailStock(ctx, rec.URL)
	r.store(rec.URL, status)
	return status
}

func (r *StockResolver) fetchDetailStock(ctx context.Context, productURL string) string {
	page := r.session.Fetch(ctx, productURL)
	if !page.OK() {
		r.log.Debug("stock lookup failed", "url", productURL, "status", page.Status, "error", page.Err)
		return domain.StockUnknown
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return domain.StockUnknown
	}
	return DetailPageStock(doc)
}

// DetailPageStock extracts a stock status from a product detail page,
// preferring structured schema.org availability over text heuristics.
func DetailPageStock(doc *goquery.Document) string {
	status := domain.StockUnknown
	doc.Find(`link[itemprop="availability"], meta[itemprop="availability"], [itemprop="availability"]`).
		EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			for _, attr := range []string{"href", "content"} {
				if val, ok := sel.Attr(attr); ok {
					if s := sites.StockFromAvailability(val); s != domain.StockUnknown {
						status = s
						return false
					}
				}
			}
			if s := sites.StockFromAvailability(sel.Text()); s != domain.StockUnknown {
				status = s
				return false
			}
			return true
		})
	if status != domain.StockUnknown {
		return status
	}
	return sites.StockFromContainer(doc.Selection)
}

func (r *StockResolver) store(url, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.cache[url]; exists {
		r.cache[url] = status
		return
	}
	if len(r.order) >= r.cap {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.cache, oldest)
	}
	r.cache[url] = status
	r.order = append(r.order, url)
}
