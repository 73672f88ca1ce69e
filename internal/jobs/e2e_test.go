package jobs

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partswatch/partswatch/internal/domain"
	"github.com/partswatch/partswatch/internal/sites"
)

// catalogSite serves two categories of two pages with five products
// each. Prices can be changed between runs.
type catalogSite struct {
	mu     sync.Mutex
	prices map[string]string
}

func newCatalogSite() *catalogSite {
	s := &catalogSite{prices: make(map[string]string)}
	for _, cat := range []string{"screens", "batteries"} {
		for page := 1; page <= 2; page++ {
			for i := 1; i <= 5; i++ {
				s.prices[productSlug(cat, page, i)] = "19.99"
			}
		}
	}
	return s
}

func productSlug(cat string, page, i int) string {
	return fmt.Sprintf("%s-p%d-%d", cat, page, i)
}

func (s *catalogSite) setPrice(slug, price string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[slug] = price
}

func (s *catalogSite) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cat := strings.TrimPrefix(r.URL.Path, "/cat/")
		page := 1
		if r.URL.Query().Get("page") == "2" {
			page = 2
		}

		var b strings.Builder
		b.WriteString("<html><body><ul>")
		s.mu.Lock()
		for i := 1; i <= 5; i++ {
			slug := productSlug(cat, page, i)
			fmt.Fprintf(&b, `<li class="product-card">
				<a href="/parts/%s"><h3 class="product-title">Part %s</h3></a>
				<span class="price">$%s</span>
				<span class="stock-status">In stock</span>
			</li>`, slug, slug, s.prices[slug])
		}
		s.mu.Unlock()
		b.WriteString("</ul>")
		if page == 1 {
			fmt.Fprintf(&b, `<a rel="next" href="/cat/%s?page=2">Next</a>`, cat)
		}
		b.WriteString("</body></html>")
		_, _ = w.Write([]byte(b.String()))
	}
}

func TestOrchestratorFullCrawlThenRerunWithPriceChanges(t *testing.T) {
	t.Parallel()

	site := newCatalogSite()
	srv := httptest.NewServer(site.handler())
	defer srv.Close()

	products := newMemProducts()
	runs := &memRuns{}
	o := newTestOrchestrator(products, runs)

	req := StartRequest{
		Client:   sites.ClientTechParts,
		MaxPages: intPtr(2),
		Categories: []string{
			srv.URL + "/cat/screens",
			srv.URL + "/cat/batteries",
		},
	}

	job, err := o.Start(req)
	require.NoError(t, err)
	first := awaitTerminal(t, o, job.ID)

	assert.Equal(t, domain.JobStatusDone, first.Status)
	assert.Equal(t, 2, first.TotalCategories)
	assert.Equal(t, 2, first.CategoriesDone)
	assert.Equal(t, 4, first.PagesDone)
	assert.Equal(t, 20, first.ItemsFound)
	assert.Equal(t, 20, first.NewProducts)
	assert.Zero(t, first.UpdatedProducts)
	assert.Equal(t, 20, products.count())
	// Every priced insert writes an initial history row.
	assert.Equal(t, 20, products.historyCount())

	site.setPrice(productSlug("screens", 1, 2), "24.99")
	site.setPrice(productSlug("batteries", 2, 4), "14.99")

	job, err = o.Start(req)
	require.NoError(t, err)
	second := awaitTerminal(t, o, job.ID)

	assert.Equal(t, domain.JobStatusDone, second.Status)
	assert.Equal(t, 20, second.ItemsFound)
	assert.Zero(t, second.NewProducts)
	assert.Equal(t, 20, second.UpdatedProducts)
	assert.Equal(t, 20, products.count())
	// Only the two price changes add history rows on the rerun. Price
	// movements never land in the change log.
	assert.Equal(t, 22, products.historyCount())
	assert.Zero(t, products.changeCount())
}
