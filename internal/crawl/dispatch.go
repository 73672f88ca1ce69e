package crawl

import (
	"context"
	"sync"

	"github.com/partswatch/partswatch/internal/domain"
	"github.com/partswatch/partswatch/internal/fetch"
	"github.com/partswatch/partswatch/internal/sites"
)

// defaultFetchWorkers bounds dispatcher parallelism when callers pass 0.
const defaultFetchWorkers = 3

// CrawlCategories crawls a batch of categories in parallel. Each worker
// gets its own session clone so pacing and connection state are not
// shared across goroutines. Results are returned in seed order.
func (e *Engine) CrawlCategories(
	ctx context.Context,
	sess *fetch.Session,
	adapter sites.Adapter,
	seeds []domain.CategorySeed,
	maxPages int,
	mode Mode,
	workers int,
) []domain.CategoryResult {
	if len(seeds) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = defaultFetchWorkers
	}
	if workers > len(seeds) {
		workers = len(seeds)
	}

	results := make([]domain.CategoryResult, len(seeds))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			workerSess := sess.Clone()
			for idx := range jobs {
				results[idx] = e.CrawlCategory(ctx, workerSess, adapter, seeds[idx], maxPages, mode)
			}
		}()
	}

feed:
	for idx := range seeds {
		select {
		case jobs <- idx:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	return results
}
