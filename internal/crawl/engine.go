// Package crawl walks category listings page by page, following regular
// pagination, load-more endpoints, and infinite-scroll URL patterns.
package crawl

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/partswatch/partswatch/internal/domain"
	"github.com/partswatch/partswatch/internal/fetch"
	"github.com/partswatch/partswatch/internal/logger"
	"github.com/partswatch/partswatch/internal/sites"
)

// Mode selects the termination rule for a category walk.
type Mode int

const (
	// ModeCapped stops on the first page that yields no new products.
	// Used for targeted, page-capped category runs.
	ModeCapped Mode = iota
	// ModeSweep tolerates one empty page and stops after two in a row.
	// Used for whole-site sweeps where listings can have sparse pages.
	ModeSweep
)

// sweepEmptyPageLimit is the consecutive-empty-page budget in ModeSweep.
const sweepEmptyPageLimit = 2

// Engine crawls categories. It owns no session; callers pass one so the
// dispatcher can hand each worker its own clone.
type Engine struct {
	log logger.Interface
}

// NewEngine creates a crawl engine.
func NewEngine(log logger.Interface) *Engine {
	return &Engine{log: log}
}

// prefetchedPage carries a page that was already fetched while deciding
// whether to advance to it.
type prefetchedPage struct {
	url          string
	doc          *goquery.Document
	records      []domain.ScrapedRecord
	extraURLs    []string
	botChallenge bool
}

// CrawlCategory walks one category listing until pagination is
// exhausted, maxPages is reached, or the mode's empty-page rule fires.
// maxPages <= 0 means unlimited.
func (e *Engine) CrawlCategory(
	ctx context.Context,
	sess *fetch.Session,
	adapter sites.Adapter,
	seed domain.CategorySeed,
	maxPages int,
	mode Mode,
) domain.CategoryResult {
	result := domain.CategoryResult{Seed: seed}

	visited := make(map[string]bool)
	seenProducts := make(map[string]bool)
	loadMoreSeen := make(map[string]bool)
	var loadMoreQueue []string
	var prefetched *prefetchedPage

	currentURL := seed.URL
	pageNum := 1
	consecutiveEmpty := 0

	log := e.log.WithClient(adapter.Site()).WithCategory(seed.URL)

	for currentURL != "" && (maxPages <= 0 || pageNum <= maxPages) {
		// A cancelled context ends the walk cleanly; pages already
		// collected stay in the result.
		if ctx.Err() != nil {
			return result
		}
		if visited[currentURL] {
			break
		}
		visited[currentURL] = true

		var (
			doc       *goquery.Document
			records   []domain.ScrapedRecord
			extraURLs []string
		)
		if prefetched != nil && prefetched.url == currentURL {
			doc = prefetched.doc
			records = prefetched.records
			extraURLs = prefetched.extraURLs
			if prefetched.botChallenge {
				result.BotChallenge = true
			}
			prefetched = nil
		} else {
			res := sess.Fetch(ctx, currentURL)
			if res.BotChallenge {
				result.BotChallenge = true
				result.Errors = append(result.Errors, fmt.Sprintf("bot challenge at %s", currentURL))
				break
			}
			if !res.OK() {
				if ctx.Err() != nil {
					return result
				}
				result.Errors = append(result.Errors, fetchFailure(currentURL, res))
				break
			}

			var parseErr error
			doc, parseErr = goquery.NewDocumentFromReader(strings.NewReader(res.HTML))
			if parseErr != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("parse %s: %v", currentURL, parseErr))
				break
			}
			records = adapter.ExtractRecords(doc, currentURL)
			extraURLs = ExtractLoadMoreURLs(doc, currentURL)
		}

		for _, u := range extraURLs {
			if u != "" && !loadMoreSeen[u] && !visited[u] {
				loadMoreSeen[u] = true
				loadMoreQueue = append(loadMoreQueue, u)
			}
		}

		newRecords := records[:0:0]
		for _, rec := range records {
			if rec.URL == "" || seenProducts[rec.URL] {
				continue
			}
			seenProducts[rec.URL] = true
			newRecords = append(newRecords, rec)
		}

		result.PagesVisited++
		result.Records = append(result.Records, newRecords...)
		log.Debug("category page crawled",
			"page", pageNum,
			"items", len(records),
			"new_items", len(newRecords),
		)

		if len(newRecords) == 0 {
			if mode == ModeCapped {
				break
			}
			consecutiveEmpty++
			if consecutiveEmpty >= sweepEmptyPageLimit {
				break
			}
		} else {
			consecutiveEmpty = 0
		}

		nextURL := adapter.NextPageURL(doc, currentURL)
		if nextURL == "" && len(loadMoreQueue) > 0 {
			var page *prefetchedPage
			page, loadMoreQueue = e.drainLoadMoreQueue(ctx, sess, adapter, loadMoreQueue, visited, seenProducts)
			if page != nil {
				prefetched = page
				nextURL = page.url
				for _, u := range page.extraURLs {
					if u != "" && !loadMoreSeen[u] && !visited[u] {
						loadMoreSeen[u] = true
						loadMoreQueue = append(loadMoreQueue, u)
					}
				}
			}
		}
		if nextURL == "" {
			if page := e.probeInfiniteScroll(ctx, sess, adapter, currentURL, pageNum, visited, seenProducts); page != nil {
				prefetched = page
				nextURL = page.url
			}
		}

		currentURL = nextURL
		pageNum++
	}

	log.Info("category crawl finished",
		"pages", result.PagesVisited,
		"items", len(result.Records),
		"bot_challenge", result.BotChallenge,
	)
	return result
}

// drainLoadMoreQueue pops queued load-more URLs until one yields at
// least one product URL not seen before. Batches that only repeat known
// products are skipped so the remaining candidates still get a shot.
// Returns the prefetched page (or nil) and the remaining queue.
func (e *Engine) drainLoadMoreQueue(
	ctx context.Context,
	sess *fetch.Session,
	adapter sites.Adapter,
	queue []string,
	visited map[string]bool,
	seenProducts map[string]bool,
) (*prefetchedPage, []string) {
	for len(queue) > 0 {
		candidate := queue[0]
		queue = queue[1:]
		if visited[candidate] {
			continue
		}
		page := e.fetchLoadMorePage(ctx, sess, adapter, candidate)
		if page == nil || len(page.records) == 0 {
			continue
		}
		hasNew := false
		for _, rec := range page.records {
			if rec.URL != "" && !seenProducts[rec.URL] {
				hasNew = true
				break
			}
		}
		if !hasNew {
			continue
		}
		return page, queue
	}
	return nil, queue
}

// probeInfiniteScroll synthesizes next-page URLs from common pagination
// parameters and accepts the first candidate that returns at least one
// product not seen before.
func (e *Engine) probeInfiniteScroll(
	ctx context.Context,
	sess *fetch.Session,
	adapter sites.Adapter,
	currentURL string,
	pageNum int,
	visited map[string]bool,
	seenProducts map[string]bool,
) *prefetchedPage {
	for _, candidate := range CandidateNextPageURLs(currentURL, pageNum+1) {
		if visited[candidate] {
			continue
		}

		res := sess.Fetch(ctx, candidate)
		if !res.OK() {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.HTML))
		if err != nil {
			continue
		}
		records := adapter.ExtractRecords(doc, candidate)
		hasNew := false
		for _, rec := range records {
			if rec.URL != "" && !seenProducts[rec.URL] {
				hasNew = true
				break
			}
		}
		if !hasNew {
			continue
		}
		e.log.Debug("infinite scroll probe succeeded", "url", candidate, "items", len(records))
		return &prefetchedPage{
			url:       candidate,
			doc:       doc,
			records:   records,
			extraURLs: ExtractLoadMoreURLs(doc, candidate),
		}
	}
	return nil
}

func fetchFailure(url string, res *domain.PageResult) string {
	if res.Err != nil {
		return fmt.Sprintf("fetch %s: %v", url, res.Err)
	}
	return fmt.Sprintf("fetch %s: http %d", url, res.Status)
}
