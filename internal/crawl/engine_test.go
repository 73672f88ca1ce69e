package crawl_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/partswatch/partswatch/internal/crawl"
	"github.com/partswatch/partswatch/internal/domain"
	"github.com/partswatch/partswatch/internal/fetch"
	"github.com/partswatch/partswatch/internal/logger"
	"github.com/partswatch/partswatch/internal/sites"
)

func mustParse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func newTestSession(t *testing.T) *fetch.Session {
	t.Helper()
	factory := fetch.NewFactory(fetch.Config{
		Timeout:      5 * time.Second,
		MaxRetries:   1,
		RetryBackoff: time.Millisecond,
	}, logger.NewNoOp())
	return factory.Session()
}

// listingPage renders a partsdepot-style listing with the given product
// slugs and an optional next link.
func listingPage(next string, slugs ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul class="product-listing">`)
	for _, slug := range slugs {
		fmt.Fprintf(&b, `<li class="item"><a href="/replacement-parts/%s" title="%s"></a>`+
			`<div class="price-qty-block"><span class="price"><span class="amount">$10.00</span></span></div></li>`,
			slug, slug)
	}
	b.WriteString(`</ul>`)
	if next != "" {
		fmt.Fprintf(&b, `<div class="pagination"><a class="next" href="%s">Next</a></div>`, next)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func TestCrawlCategoryFollowsPagination(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/replacement-parts/cat", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("p") {
		case "", "1":
			_, _ = w.Write([]byte(listingPage("/replacement-parts/cat?p=2", "part-a", "part-b")))
		case "2":
			_, _ = w.Write([]byte(listingPage("", "part-c")))
		default:
			_, _ = w.Write([]byte(listingPage("")))
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	engine := crawl.NewEngine(logger.NewNoOp())
	seed := domain.CategorySeed{URL: srv.URL + "/replacement-parts/cat", Label: "Cat"}

	result := engine.CrawlCategory(context.Background(), newTestSession(t), sites.NewPartsDepot(), seed, 10, crawl.ModeCapped)

	if len(result.Records) != 3 {
		t.Fatalf("expected 3 records, got %d: %v", len(result.Records), result.Errors)
	}
	// Two listing pages plus the empty page that ended the walk.
	if result.PagesVisited != 3 {
		t.Errorf("pages visited = %d, want 3", result.PagesVisited)
	}
}

func TestCrawlCategoryHonorsMaxPages(t *testing.T) {
	t.Parallel()

	var pagesServed int
	mux := http.NewServeMux()
	mux.HandleFunc("/replacement-parts/cat", func(w http.ResponseWriter, r *http.Request) {
		pagesServed++
		page := r.URL.Query().Get("p")
		if page == "" {
			page = "1"
		}
		next := fmt.Sprintf("/replacement-parts/cat?p=%s1", page) // always a next link
		_, _ = w.Write([]byte(listingPage(next, "part-"+page)))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	engine := crawl.NewEngine(logger.NewNoOp())
	seed := domain.CategorySeed{URL: srv.URL + "/replacement-parts/cat"}

	result := engine.CrawlCategory(context.Background(), newTestSession(t), sites.NewPartsDepot(), seed, 2, crawl.ModeCapped)

	if result.PagesVisited != 2 {
		t.Errorf("pages visited = %d, want max_pages cap of 2", result.PagesVisited)
	}
}

func TestCrawlCategoryStopsOnRepeatedPage(t *testing.T) {
	t.Parallel()

	// Page 2 links back to page 1: the URL loop guard must stop the walk.
	mux := http.NewServeMux()
	mux.HandleFunc("/replacement-parts/cat", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("p") == "2" {
			_, _ = w.Write([]byte(listingPage("/replacement-parts/cat", "part-b")))
			return
		}
		_, _ = w.Write([]byte(listingPage("/replacement-parts/cat?p=2", "part-a")))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	engine := crawl.NewEngine(logger.NewNoOp())
	seed := domain.CategorySeed{URL: srv.URL + "/replacement-parts/cat"}

	result := engine.CrawlCategory(context.Background(), newTestSession(t), sites.NewPartsDepot(), seed, 0, crawl.ModeCapped)

	if result.PagesVisited != 2 {
		t.Errorf("pages visited = %d, want 2 (loop guard)", result.PagesVisited)
	}
	if len(result.Records) != 2 {
		t.Errorf("records = %d, want 2", len(result.Records))
	}
}

func TestCrawlCategoryDeduplicatesProducts(t *testing.T) {
	t.Parallel()

	// Page 2 repeats part-a alongside a new product.
	mux := http.NewServeMux()
	mux.HandleFunc("/replacement-parts/cat", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("p") == "2" {
			_, _ = w.Write([]byte(listingPage("", "part-a", "part-b")))
			return
		}
		_, _ = w.Write([]byte(listingPage("/replacement-parts/cat?p=2", "part-a")))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	engine := crawl.NewEngine(logger.NewNoOp())
	seed := domain.CategorySeed{URL: srv.URL + "/replacement-parts/cat"}

	result := engine.CrawlCategory(context.Background(), newTestSession(t), sites.NewPartsDepot(), seed, 10, crawl.ModeCapped)

	if len(result.Records) != 2 {
		t.Fatalf("expected 2 unique records, got %d", len(result.Records))
	}
}

func TestCrawlCategoryCappedModeStopsOnFirstEmptyPage(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/replacement-parts/cat", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("p") {
		case "", "1":
			_, _ = w.Write([]byte(listingPage("/replacement-parts/cat?p=2", "part-a")))
		default:
			// Same product repeated: zero new items.
			_, _ = w.Write([]byte(listingPage("/replacement-parts/cat?p=3", "part-a")))
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	engine := crawl.NewEngine(logger.NewNoOp())
	seed := domain.CategorySeed{URL: srv.URL + "/replacement-parts/cat"}

	result := engine.CrawlCategory(context.Background(), newTestSession(t), sites.NewPartsDepot(), seed, 10, crawl.ModeCapped)

	if result.PagesVisited != 2 {
		t.Errorf("capped mode should stop after first empty page, visited %d", result.PagesVisited)
	}
}

func TestCrawlCategorySweepModeToleratesOneEmptyPage(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/replacement-parts/cat", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("p") {
		case "", "1":
			_, _ = w.Write([]byte(listingPage("/replacement-parts/cat?p=2", "part-a")))
		case "2":
			// Empty page in the middle of the listing.
			_, _ = w.Write([]byte(listingPage("/replacement-parts/cat?p=3")))
		case "3":
			_, _ = w.Write([]byte(listingPage("", "part-b")))
		default:
			_, _ = w.Write([]byte(listingPage("")))
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	engine := crawl.NewEngine(logger.NewNoOp())
	seed := domain.CategorySeed{URL: srv.URL + "/replacement-parts/cat"}

	result := engine.CrawlCategory(context.Background(), newTestSession(t), sites.NewPartsDepot(), seed, 10, crawl.ModeSweep)

	if len(result.Records) != 2 {
		t.Fatalf("sweep mode should survive one empty page, got %d records: %v", len(result.Records), result.Errors)
	}
}

func TestCrawlCategoryInfiniteScrollProbe(t *testing.T) {
	t.Parallel()

	// Page 1 exposes no pagination controls; page 2 is only reachable by
	// probing ?p=2.
	mux := http.NewServeMux()
	mux.HandleFunc("/replacement-parts/cat", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("p") {
		case "", "1":
			_, _ = w.Write([]byte(listingPage("", "part-a")))
		case "2":
			_, _ = w.Write([]byte(listingPage("", "part-b")))
		default:
			_, _ = w.Write([]byte(listingPage("")))
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	engine := crawl.NewEngine(logger.NewNoOp())
	seed := domain.CategorySeed{URL: srv.URL + "/replacement-parts/cat"}

	result := engine.CrawlCategory(context.Background(), newTestSession(t), sites.NewPartsDepot(), seed, 5, crawl.ModeCapped)

	if len(result.Records) != 2 {
		t.Fatalf("expected probe to reach page 2, got %d records", len(result.Records))
	}
}

func TestCrawlCategoryLoadMoreQueue(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/replacement-parts/cat", func(w http.ResponseWriter, r *http.Request) {
		page := listingPage("", "part-a")
		page = strings.Replace(page, "</body>",
			`<script>var cfg = {"loadMoreUrl":"/ajax/more?batch=2"};</script></body>`, 1)
		_, _ = w.Write([]byte(page))
	})
	mux.HandleFunc("/ajax/more", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fragment := `<ul class=\"product-listing\"><li class=\"item\"><a href=\"/replacement-parts/part-b\" title=\"part-b\"></a></li></ul>`
		_, _ = fmt.Fprintf(w, `{"items_html":"%s"}`, fragment)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	engine := crawl.NewEngine(logger.NewNoOp())
	seed := domain.CategorySeed{URL: srv.URL + "/replacement-parts/cat"}

	result := engine.CrawlCategory(context.Background(), newTestSession(t), sites.NewPartsDepot(), seed, 5, crawl.ModeCapped)

	if len(result.Records) != 2 {
		t.Fatalf("expected load-more batch to be consumed, got %d records: %v", len(result.Records), result.Errors)
	}
	if result.Records[1].Title != "part-b" {
		t.Errorf("second record = %q", result.Records[1].Title)
	}
}

func TestCrawlCategoryLoadMoreSkipsDuplicateBatches(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/replacement-parts/cat", func(w http.ResponseWriter, r *http.Request) {
		page := listingPage("", "part-a")
		page = strings.Replace(page, "</body>",
			`<script>var first = {"loadMoreUrl":"/ajax/more?batch=1"};`+
				`var second = {"loadMoreUrl":"/ajax/more?batch=2"};</script></body>`, 1)
		_, _ = w.Write([]byte(page))
	})
	mux.HandleFunc("/ajax/more", func(w http.ResponseWriter, r *http.Request) {
		// The first batch only repeats a product from the seed page.
		slug := "part-a"
		if r.URL.Query().Get("batch") == "2" {
			slug = "part-b"
		}
		w.Header().Set("Content-Type", "application/json")
		fragment := fmt.Sprintf(`<ul class=\"product-listing\"><li class=\"item\">`+
			`<a href=\"/replacement-parts/%s\" title=\"%s\"></a></li></ul>`, slug, slug)
		_, _ = fmt.Fprintf(w, `{"items_html":"%s"}`, fragment)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	engine := crawl.NewEngine(logger.NewNoOp())
	seed := domain.CategorySeed{URL: srv.URL + "/replacement-parts/cat"}

	result := engine.CrawlCategory(context.Background(), newTestSession(t), sites.NewPartsDepot(), seed, 5, crawl.ModeCapped)

	titles := make([]string, 0, len(result.Records))
	for _, rec := range result.Records {
		titles = append(titles, rec.Title)
	}
	if len(result.Records) != 2 || result.Records[1].Title != "part-b" {
		t.Fatalf("expected the second batch to be collected, got %v (errors: %v)", titles, result.Errors)
	}
}

func TestCrawlCategoryBotChallengeStops(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>checking your browser before accessing</body></html>"))
	}))
	defer srv.Close()

	engine := crawl.NewEngine(logger.NewNoOp())
	seed := domain.CategorySeed{URL: srv.URL + "/replacement-parts/cat"}

	result := engine.CrawlCategory(context.Background(), newTestSession(t), sites.NewPartsDepot(), seed, 5, crawl.ModeCapped)

	if !result.BotChallenge {
		t.Error("expected BotChallenge to be set")
	}
	if len(result.Records) != 0 {
		t.Errorf("expected no records, got %d", len(result.Records))
	}
}

func TestCrawlCategoriesParallel(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	for _, cat := range []string{"alpha", "beta", "gamma", "delta"} {
		cat := cat
		mux.HandleFunc("/replacement-parts/"+cat, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(listingPage("", cat+"-part")))
		})
	}
	srv := httptest.NewServer(mux)
	defer srv.Close()

	seeds := []domain.CategorySeed{
		{URL: srv.URL + "/replacement-parts/alpha"},
		{URL: srv.URL + "/replacement-parts/beta"},
		{URL: srv.URL + "/replacement-parts/gamma"},
		{URL: srv.URL + "/replacement-parts/delta"},
	}

	engine := crawl.NewEngine(logger.NewNoOp())
	results := engine.CrawlCategories(context.Background(), newTestSession(t), sites.NewPartsDepot(), seeds, 5, crawl.ModeCapped, 3)

	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for i, res := range results {
		if res.Seed.URL != seeds[i].URL {
			t.Errorf("result %d out of order: %q", i, res.Seed.URL)
		}
		if len(res.Records) != 1 {
			t.Errorf("result %d: %d records", i, len(res.Records))
		}
	}
}

func TestExtractLoadMoreURLs(t *testing.T) {
	t.Parallel()

	const pageHTML = `<html><body>
	<button data-load-more-url="/ajax/page2">Load more</button>
	<script>window.listing = {"nextUrl":"https:\/\/example.com\/ajax\/page3"};</script>
	</body></html>`

	doc := mustParse(t, pageHTML)
	urls := crawl.ExtractLoadMoreURLs(doc, "https://example.com/cat")

	if len(urls) != 2 {
		t.Fatalf("expected 2 urls, got %v", urls)
	}
	if urls[0] != "https://example.com/ajax/page2" {
		t.Errorf("urls[0] = %q", urls[0])
	}
	if urls[1] != "https://example.com/ajax/page3" {
		t.Errorf("urls[1] = %q (escaped slashes should be normalized)", urls[1])
	}
}

func TestCandidateNextPageURLs(t *testing.T) {
	t.Parallel()

	got := crawl.CandidateNextPageURLs("https://example.com/cat?sort=price", 2)
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %v", got)
	}
	for _, u := range got {
		if !strings.Contains(u, "sort=price") {
			t.Errorf("candidate %q dropped existing query", u)
		}
		if !strings.Contains(u, "=2") {
			t.Errorf("candidate %q missing page number", u)
		}
	}
}
