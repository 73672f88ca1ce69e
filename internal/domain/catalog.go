package domain

import "time"

// Brand is the top taxonomy level, unique by slug.
type Brand struct {
	ID        int64     `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"`
	Slug      string    `db:"slug"       json:"slug"`
	URL       string    `db:"url"        json:"url,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Category is the middle taxonomy level, unique by (brand_id, slug).
type Category struct {
	ID        int64     `db:"id"         json:"id"`
	BrandID   int64     `db:"brand_id"   json:"brand_id"`
	Name      string    `db:"name"       json:"name"`
	Slug      string    `db:"slug"       json:"slug"`
	URL       string    `db:"url"        json:"url,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Model is the leaf taxonomy level, unique by (category_id, slug).
type Model struct {
	ID         int64     `db:"id"          json:"id"`
	CategoryID int64     `db:"category_id" json:"category_id"`
	Name       string    `db:"name"        json:"name"`
	Slug       string    `db:"slug"        json:"slug"`
	URL        string    `db:"url"         json:"url,omitempty"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"  json:"updated_at"`
}

// Product is a catalog entry, unique by SKU and by product URL.
type Product struct {
	ID          int64    `db:"id"           json:"id"`
	ModelID     int64    `db:"model_id"     json:"model_id"`
	SKU         string   `db:"sku"          json:"sku"`
	Title       string   `db:"title"        json:"title"`
	ProductURL  string   `db:"product_url"  json:"product_url"`
	Price       *float64 `db:"price"        json:"price,omitempty"`
	OldPrice    *float64 `db:"old_price"    json:"old_price,omitempty"`
	Currency    string   `db:"currency"     json:"currency,omitempty"`
	StockStatus string   `db:"stock_status" json:"stock_status,omitempty"`
	Description string   `db:"description"  json:"description,omitempty"`
	ImageURL    string   `db:"image_url"    json:"image_url,omitempty"`

	FirstSeenAt time.Time `db:"first_seen_at" json:"first_seen_at"`
	LastSeenAt  time.Time `db:"last_seen_at"  json:"last_seen_at"`
	CreatedAt   time.Time `db:"created_at"    json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"    json:"updated_at"`
}

// PriceHistory records one observed price point for a product.
type PriceHistory struct {
	ID         int64     `db:"id"          json:"id"`
	ProductID  int64     `db:"product_id"  json:"product_id"`
	Price      float64   `db:"price"       json:"price"`
	OldPrice   *float64  `db:"old_price"   json:"old_price,omitempty"`
	Currency   string    `db:"currency"    json:"currency,omitempty"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
}

// ProductChange field constants.
const (
	ChangeFieldStock       = "stock"
	ChangeFieldDescription = "description"
)

// ProductChange records a meaningful change to a tracked product field.
type ProductChange struct {
	ID        int64     `db:"id"         json:"id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	Field     string    `db:"field"      json:"field"`
	OldValue  string    `db:"old_value"  json:"old_value"`
	NewValue  string    `db:"new_value"  json:"new_value"`
	ChangedAt time.Time `db:"changed_at" json:"changed_at"`
}

// ProductBaseline snapshots a product's state when it first entered the
// catalog. One row per product, written once.
type ProductBaseline struct {
	ProductID   int64     `db:"product_id"   json:"product_id"`
	Price       *float64  `db:"price"        json:"price,omitempty"`
	StockStatus string    `db:"stock_status" json:"stock_status,omitempty"`
	Description string    `db:"description"  json:"description,omitempty"`
	CapturedAt  time.Time `db:"captured_at"  json:"captured_at"`
}

// RecentChange is a product change joined with its product for display.
type RecentChange struct {
	ProductChange
	SKU        string `db:"sku"         json:"sku"`
	Title      string `db:"title"       json:"title"`
	ProductURL string `db:"product_url" json:"product_url"`
	ChangeType string `db:"-"           json:"change_type"`
}

// CatalogStats summarizes the catalog and recent scraping activity.
type CatalogStats struct {
	TotalBrands       int        `db:"total_brands"         json:"total_brands"`
	TotalCategories   int        `db:"total_categories"     json:"total_categories"`
	TotalModels       int        `db:"total_models"         json:"total_models"`
	TotalProducts     int        `db:"total_products"       json:"total_products"`
	InStockProducts   int        `db:"in_stock_products"    json:"in_stock_products"`
	AvgPrice          float64    `db:"avg_price"            json:"avg_price"`
	RunsLast7Days     int        `db:"runs_last_7_days"     json:"runs_last_7_days"`
	PriceChanges7Days int        `db:"price_changes_7_days" json:"price_changes_7_days"`
	LastRunStatus     *string    `db:"last_run_status"      json:"last_run_status,omitempty"`
	LastRunAt         *time.Time `db:"last_run_at"          json:"last_run_at,omitempty"`
	LastRunItems      *int       `db:"last_run_items"       json:"last_run_items,omitempty"`
}

// PersistSummary aggregates the outcome of upserting a batch of records.
// The ID sets track distinct taxonomy rows touched so run totals can be
// reported without recounting the database.
type PersistSummary struct {
	Saved          int                `json:"saved"`
	New            int                `json:"new"`
	Updated        int                `json:"updated"`
	LastBrandID    int64              `json:"last_brand_id,omitempty"`
	LastCategoryID int64              `json:"last_category_id,omitempty"`
	LastModelID    int64              `json:"last_model_id,omitempty"`
	BrandIDs       map[int64]struct{} `json:"-"`
	CategoryIDs    map[int64]struct{} `json:"-"`
	ModelIDs       map[int64]struct{} `json:"-"`
	Errors         []string           `json:"errors,omitempty"`
}

// TouchTaxonomy records the taxonomy rows one record landed in.
func (s *PersistSummary) TouchTaxonomy(brandID, categoryID, modelID int64) {
	s.LastBrandID = brandID
	s.LastCategoryID = categoryID
	s.LastModelID = modelID
	if s.BrandIDs == nil {
		s.BrandIDs = make(map[int64]struct{})
		s.CategoryIDs = make(map[int64]struct{})
		s.ModelIDs = make(map[int64]struct{})
	}
	s.BrandIDs[brandID] = struct{}{}
	s.CategoryIDs[categoryID] = struct{}{}
	s.ModelIDs[modelID] = struct{}{}
}

// Merge folds another summary into this one.
func (s *PersistSummary) Merge(other PersistSummary) {
	s.Saved += other.Saved
	s.New += other.New
	s.Updated += other.Updated
	if other.LastBrandID != 0 {
		s.LastBrandID = other.LastBrandID
	}
	if other.LastCategoryID != 0 {
		s.LastCategoryID = other.LastCategoryID
	}
	if other.LastModelID != 0 {
		s.LastModelID = other.LastModelID
	}
	for id := range other.BrandIDs {
		if s.BrandIDs == nil {
			s.BrandIDs = make(map[int64]struct{})
		}
		s.BrandIDs[id] = struct{}{}
	}
	for id := range other.CategoryIDs {
		if s.CategoryIDs == nil {
			s.CategoryIDs = make(map[int64]struct{})
		}
		s.CategoryIDs[id] = struct{}{}
	}
	for id := range other.ModelIDs {
		if s.ModelIDs == nil {
			s.ModelIDs = make(map[int64]struct{})
		}
		s.ModelIDs[id] = struct{}{}
	}
	s.Errors = append(s.Errors, other.Errors...)
}
