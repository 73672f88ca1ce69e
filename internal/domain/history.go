package domain

import "time"

// FetchHistory is a snapshot of one explicit-category fetch: the URLs
// requested, the crawl settings used, and the items collected. Snapshots
// are append-only and pruned by age.
type FetchHistory struct {
	ID         string       `db:"id"          json:"id"`
	Timestamp  time.Time    `db:"timestamp"   json:"timestamp"`
	URLs       JSONBStrings `db:"urls"        json:"urls"`
	ItemsCount int          `db:"items_count" json:"items_count"`
	Rules      JSONBMap     `db:"rules"       json:"rules,omitempty"`
	CreatedAt  time.Time    `db:"created_at"  json:"created_at"`

	// Items is populated on detail reads, not on list reads.
	Items []FetchedItem `db:"-" json:"items,omitempty"`
}

// FetchedItem is one collected product inside a fetch snapshot.
type FetchedItem struct {
	ID         int64    `db:"id"          json:"-"`
	HistoryID  string   `db:"history_id"  json:"-"`
	URL        string   `db:"url"         json:"url"`
	Site       string   `db:"site"        json:"site,omitempty"`
	Title      string   `db:"title"       json:"title,omitempty"`
	PriceValue *float64 `db:"price_value" json:"price_value,omitempty"`
	Currency   string   `db:"currency"    json:"currency,omitempty"`
	PriceText  string   `db:"price_text"  json:"price_text,omitempty"`
	ImageURL   string   `db:"image_url"   json:"image_url,omitempty"`
}
