package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/partswatch/partswatch/internal/domain"
	"github.com/partswatch/partswatch/internal/logger"
)

// ErrDuplicateSKU is returned by ProductRepo.Insert when another writer
// created the SKU between lookup and insert.
var ErrDuplicateSKU = errors.New("duplicate sku")

// TaxonomyRepo persists brands, categories and models. Saves are
// upserts keyed by slug (brands) or parent id plus slug.
type TaxonomyRepo interface {
	SaveBrand(ctx context.Context, name, slug, url string) (domain.Brand, error)
	SaveCategory(ctx context.Context, brandID int64, name, slug, url string) (domain.Category, error)
	SaveModel(ctx context.Context, categoryID int64, name, slug, url string) (domain.Model, error)
}

// ProductRepo persists products and their history rows. FindBySKU
// returns (nil, nil) when no product carries the SKU.
type ProductRepo interface {
	FindBySKU(ctx context.Context, sku string) (*domain.Product, error)
	Insert(ctx context.Context, p *domain.Product) (int64, error)
	Update(ctx context.Context, p *domain.Product) error
	AddPriceHistory(ctx context.Context, h domain.PriceHistory) error
	AddChange(ctx context.Context, c domain.ProductChange) error
	AddBaseline(ctx context.Context, b domain.ProductBaseline) error
}

// StockLookup resolves a stock status for records whose listing card
// carried none. Implementations must be best effort and never fail a
// batch.
type StockLookup interface {
	Resolve(ctx context.Context, rec domain.ScrapedRecord) string
}

// Store writes scraped records into the catalog, creating taxonomy rows
// on demand and recording price history and field changes for products
// already tracked.
type Store struct {
	site     string
	baseURL  string
	taxonomy TaxonomyRepo
	products ProductRepo
	stock    StockLookup
	log      logger.Interface

	mu         sync.Mutex
	brands     map[string]domain.Brand
	categories map[string]domain.Category
	models     map[string]domain.Model
}

// NewStore builds a store for one site. The site label becomes the
// fallback brand, and baseURL is recorded on brand rows.
func NewStore(site, baseURL string, taxonomy TaxonomyRepo, products ProductRepo, stock StockLookup, log logger.Interface) *Store {
	return &Store{
		site:       site,
		baseURL:    baseURL,
		taxonomy:   taxonomy,
		products:   products,
		stock:      stock,
		log:        log,
		brands:     make(map[string]domain.Brand),
		categories: make(map[string]domain.Category),
		models:     make(map[string]domain.Model),
	}
}

// InvalidateCaches drops the in-memory taxonomy caches. Call after bulk
// imports or purges that bypass the store.
func (s *Store) InvalidateCaches() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brands = make(map[string]domain.Brand)
	s.categories = make(map[string]domain.Category)
	s.models = make(map[string]domain.Model)
}

// UpsertRecords persists one category's records. SKUs already present in
// seenSKUs are skipped so a whole-site sweep does not double-count items
// listed under several categories; the set is updated in place.
// Per-record failures are collected in the summary rather than aborting
// the batch.
func (s *Store) UpsertRecords(ctx context.Context, seed domain.CategorySeed, records []domain.ScrapedRecord, seenSKUs map[string]struct{}) domain.PersistSummary {
	var summary domain.PersistSummary

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("batch aborted: %v", err))
			return summary
		}

		sku := DeriveSKU(rec)
		if _, dup := seenSKUs[sku]; dup {
			continue
		}
		seenSKUs[sku] = struct{}{}

		if err := s.upsertOne(ctx, seed, rec, sku, &summary); err != nil {
			s.log.Warn("failed to persist record", "sku", sku, "url", rec.URL, "error", err)
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", sku, err))
		}
	}
	return summary
}

func (s *Store) upsertOne(ctx context.Context, seed domain.CategorySeed, rec domain.ScrapedRecord, sku string, summary *domain.PersistSummary) error {
	tax := DeriveTaxonomy(rec, seed, s.site)

	brand, err := s.brand(ctx, tax.Brand)
	if err != nil {
		return fmt.Errorf("save brand %q: %w", tax.Brand, err)
	}
	category, err := s.category(ctx, brand.ID, tax.Category, seed.URL)
	if err != nil {
		return fmt.Errorf("save category %q: %w", tax.Category, err)
	}
	model, err := s.model(ctx, category.ID, tax.Model, seed.URL)
	if err != nil {
		return fmt.Errorf("save model %q: %w", tax.Model, err)
	}

	stock := rec.StockStatus
	if stock == domain.StockUnknown && s.stock != nil {
		stock = s.stock.Resolve(ctx, rec)
	}

	product := domain.Product{
		ModelID:     model.ID,
		SKU:         sku,
		Title:       rec.Title,
		ProductURL:  rec.URL,
		Price:       rec.Price,
		OldPrice:    rec.OldPrice,
		Currency:    rec.Currency,
		StockStatus: stock,
		Description: rec.Description,
		ImageURL:    rec.ImageURL,
	}

	isNew, err := s.saveProduct(ctx, &product)
	if err != nil {
		return err
	}

	summary.Saved++
	if isNew {
		summary.New++
	} else {
		summary.Updated++
	}
	summary.TouchTaxonomy(brand.ID, category.ID, model.ID)
	return nil
}

// saveProduct inserts a new product or updates an existing one, writing
// the history rows that make the catalog change-tracked. New products
// get a baseline snapshot and, when priced, an initial price history
// row. Updates compare against the stored row and record price, stock
// and description changes that survive normalization.
func (s *Store) saveProduct(ctx context.Context, p *domain.Product) (isNew bool, err error) {
	existing, err := s.products.FindBySKU(ctx, p.SKU)
	if err != nil {
		return false, fmt.Errorf("lookup sku %s: %w", p.SKU, err)
	}

	now := time.Now().UTC()
	p.LastSeenAt = now
	p.UpdatedAt = now

	if existing == nil {
		p.FirstSeenAt = now
		p.CreatedAt = now
		id, err := s.products.Insert(ctx, p)
		if errors.Is(err, ErrDuplicateSKU) {
			// Lost an insert race. Reread and take the update path.
			existing, err = s.products.FindBySKU(ctx, p.SKU)
			if err != nil {
				return false, fmt.Errorf("reread sku %s: %w", p.SKU, err)
			}
			if existing != nil {
				return false, s.updateProduct(ctx, existing, p, now)
			}
			return false, fmt.Errorf("insert sku %s: lost row after duplicate", p.SKU)
		}
		if err != nil {
			return false, fmt.Errorf("insert sku %s: %w", p.SKU, err)
		}
		p.ID = id

		if err := s.products.AddBaseline(ctx, domain.ProductBaseline{
			ProductID:   id,
			Price:       p.Price,
			StockStatus: p.StockStatus,
			Description: p.Description,
			CapturedAt:  now,
		}); err != nil {
			s.log.Warn("failed to capture baseline", "sku", p.SKU, "error", err)
		}

		if p.Price != nil {
			if err := s.products.AddPriceHistory(ctx, domain.PriceHistory{
				ProductID:  id,
				Price:      *p.Price,
				OldPrice:   p.OldPrice,
				Currency:   p.Currency,
				RecordedAt: now,
			}); err != nil {
				s.log.Warn("failed to record initial price", "sku", p.SKU, "error", err)
			}
		}
		return true, nil
	}

	return false, s.updateProduct(ctx, existing, p, now)
}

func (s *Store) updateProduct(ctx context.Context, existing, p *domain.Product, now time.Time) error {
	p.ID = existing.ID
	p.FirstSeenAt = existing.FirstSeenAt
	p.CreatedAt = existing.CreatedAt
	if err := s.products.Update(ctx, p); err != nil {
		return fmt.Errorf("update sku %s: %w", p.SKU, err)
	}

	if priceChanged(existing.Price, p.Price) && p.Price != nil {
		if err := s.products.AddPriceHistory(ctx, domain.PriceHistory{
			ProductID:  p.ID,
			Price:      *p.Price,
			OldPrice:   existing.Price,
			Currency:   p.Currency,
			RecordedAt: now,
		}); err != nil {
			s.log.Warn("failed to record price change", "sku", p.SKU, "error", err)
		}
	}

	if p.StockStatus != "" {
		s.logChange(ctx, p.ID, domain.ChangeFieldStock, existing.StockStatus, p.StockStatus, now)
	}
	if p.Description != "" {
		s.logChange(ctx, p.ID, domain.ChangeFieldDescription, existing.Description, p.Description, now)
	}
	return nil
}

func (s *Store) logChange(ctx context.Context, productID int64, field, oldValue, newValue string, at time.Time) {
	if !meaningfulChange(field, oldValue, newValue) {
		return
	}
	err := s.products.AddChange(ctx, domain.ProductChange{
		ProductID: productID,
		Field:     field,
		OldValue:  truncateChangeValue(oldValue),
		NewValue:  truncateChangeValue(newValue),
		ChangedAt: at,
	})
	if err != nil {
		s.log.Warn("failed to record change", "field", field, "product_id", productID, "error", err)
	}
}

func priceChanged(old, current *float64) bool {
	switch {
	case old == nil && current == nil:
		return false
	case old == nil || current == nil:
		return true
	default:
		return *old != *current
	}
}

func (s *Store) brand(ctx context.Context, name string) (domain.Brand, error) {
	slug := domain.Slugify(name)

	s.mu.Lock()
	cached, ok := s.brands[slug]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}

	brand, err := s.taxonomy.SaveBrand(ctx, name, slug, s.baseURL)
	if err != nil {
		return domain.Brand{}, err
	}
	s.mu.Lock()
	s.brands[slug] = brand
	s.mu.Unlock()
	return brand, nil
}

func (s *Store) category(ctx context.Context, brandID int64, name, url string) (domain.Category, error) {
	slug := domain.Slugify(name)
	key := fmt.Sprintf("%d/%s", brandID, slug)

	s.mu.Lock()
	cached, ok := s.categories[key]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}

	category, err := s.taxonomy.SaveCategory(ctx, brandID, name, slug, url)
	if err != nil {
		return domain.Category{}, err
	}
	s.mu.Lock()
	s.categories[key] = category
	s.mu.Unlock()
	return category, nil
}

func (s *Store) model(ctx context.Context, categoryID int64, name, url string) (domain.Model, error) {
	slug := domain.Slugify(name)
	key := fmt.Sprintf("%d/%s", categoryID, slug)

	s.mu.Lock()
	cached, ok := s.models[key]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}

	model, err := s.taxonomy.SaveModel(ctx, categoryID, name, slug, url)
	if err != nil {
		return domain.Model{}, err
	}
	s.mu.Lock()
	s.models[key] = model
	s.mu.Unlock()
	return model, nil
}
