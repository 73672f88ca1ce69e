// Package domain provides domain models used across the application.
package domain

// Stock status constants. Extraction normalizes free-form availability
// text and schema.org URLs into one of these values.
const (
	StockInStock    = "in_stock"
	StockOutOfStock = "out_of_stock"
	StockBackOrder  = "back_order"
	StockPreOrder   = "preorder"
	StockLimited    = "limited"
	StockUnknown    = ""
)

// ScrapedRecord is a single product listing extracted from a category or
// detail page. Price is nil when the page showed no parseable price.
type ScrapedRecord struct {
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	SKU         string   `json:"sku,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	OldPrice    *float64 `json:"old_price,omitempty"`
	Currency    string   `json:"currency,omitempty"`
	StockStatus string   `json:"stock_status,omitempty"`
	Description string   `json:"description,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	Breadcrumbs []string `json:"breadcrumbs,omitempty"`
}

// CategorySeed identifies a category listing to crawl. Brand is set when
// discovery can tell which brand bucket the category came from.
type CategorySeed struct {
	URL   string `json:"url"`
	Label string `json:"label"`
	Slug  string `json:"slug,omitempty"`
	Brand string `json:"brand,omitempty"`
}

// PageResult is the outcome of fetching a single page. Fetch-level
// failures ride in Err rather than aborting the caller.
type PageResult struct {
	URL          string
	FinalURL     string
	HTML         string
	Status       int
	TTFBMillis   int64
	TotalMillis  int64
	BotChallenge bool
	Err          error
}

// OK reports whether the fetch produced usable HTML.
func (r *PageResult) OK() bool {
	return r.Err == nil && !r.BotChallenge && r.Status >= 200 && r.Status < 300
}

// CategoryResult is the outcome of crawling one category across all of
// its pages.
type CategoryResult struct {
	Seed         CategorySeed    `json:"seed"`
	Records      []ScrapedRecord `json:"records"`
	PagesVisited int             `json:"pages_visited"`
	BotChallenge bool            `json:"bot_challenge"`
	Errors       []string        `json:"errors,omitempty"`
}
