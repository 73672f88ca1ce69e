package sites

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/partswatch/partswatch/internal/domain"
)

// PartsDepot adapts the Magento-style partsdepot storefront. Listings
// live under /replacement-parts/ with classic p= pagination.
type PartsDepot struct {
	seedURL string
}

// NewPartsDepot creates the partsdepot adapter.
func NewPartsDepot() *PartsDepot {
	return &PartsDepot{seedURL: "https://www.partsdepot.com/"}
}

func (a *PartsDepot) Site() string               { return ClientPartsDepot }
func (a *PartsDepot) SeedURL() string            { return a.seedURL }
func (a *PartsDepot) SupportsDiscovery() bool    { return true }
func (a *PartsDepot) RequiresCategoryList() bool { return false }

// PrimaryCategories walks the mobile mega-menu, which carries the full
// brand/device tree even when the desktop nav is collapsed server-side.
// Categories nested inside a brand bucket carry the bucket heading as
// their brand.
func (a *PartsDepot) PrimaryCategories(doc *goquery.Document, baseURL string) []domain.CategorySeed {
	var seeds []domain.CategorySeed
	doc.Find("#nav-mobile ul.level0 a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u := AbsURL(baseURL, href)
		if u == "" || !a.IsCategoryURL(u) {
			return
		}
		seeds = append(seeds, domain.CategorySeed{
			URL:   u,
			Label: CleanText(s.Text()),
			Brand: brandBucket(s),
		})
	})
	return seeds
}

// brandBucket resolves the heading of the brand bucket a menu link sits
// in. Links that are themselves the bucket heading get no brand.
func brandBucket(s *goquery.Selection) string {
	bucket := s.Closest("li.level0")
	if bucket.Length() == 0 {
		return ""
	}
	heading := bucket.ChildrenFiltered("a, span, strong").First()
	if heading.Length() == 0 {
		return ""
	}
	label := CleanText(heading.Text())
	if label == CleanText(s.Text()) {
		return ""
	}
	return label
}

// SecondaryCategories scans the desktop navigation for listing links.
func (a *PartsDepot) SecondaryCategories(doc *goquery.Document, baseURL string) []domain.CategorySeed {
	var seeds []domain.CategorySeed
	selector := `nav a[href*="/replacement-parts/"], .menu a[href*="/replacement-parts/"], .navigation a[href*="/replacement-parts/"]`
	doc.Find(selector).Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u := AbsURL(baseURL, href)
		if u == "" {
			return
		}
		seeds = append(seeds, domain.CategorySeed{
			URL:   u,
			Label: CleanText(s.Text()),
		})
	})
	return seeds
}

func (a *PartsDepot) IsCategoryURL(u string) bool {
	return strings.Contains(u, "/replacement-parts/")
}

// ExtractRecords parses product cards from a listing page.
func (a *PartsDepot) ExtractRecords(doc *goquery.Document, pageURL string) []domain.ScrapedRecord {
	crumbs := Breadcrumbs(doc, ".breadcrumbs a")
	currency := PageCurrency(pageURL)

	container := doc.Find(".products-grid, .category-products, .products-list").First()
	if container.Length() == 0 {
		container = doc.Find("ul.product-listing, .product-items, .products").First()
	}
	if container.Length() == 0 {
		return nil
	}

	cards := container.Find("li.item")
	if cards.Length() == 0 {
		cards = container.Find(".item")
	}

	var records []domain.ScrapedRecord
	cards.Each(func(i int, card *goquery.Selection) {
		link := card.Find("a[href]").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		productURL := AbsURL(pageURL, href)
		if !strings.HasPrefix(productURL, "http") {
			return
		}

		title, _ := link.Attr("title")
		title = CleanText(title)
		if title == "" {
			title = CleanText(link.Text())
		}
		if title == "" {
			title = CleanText(card.Find(".product-name a, .product-title, h2, h3").First().Text())
		}
		if title == "" {
			return
		}

		rec := domain.ScrapedRecord{
			Title:       title,
			URL:         productURL,
			SKU:         extractCardSKU(card),
			Currency:    currency,
			StockStatus: StockFromContainer(card),
			ImageURL:    extractCardImage(card, pageURL),
			Breadcrumbs: crumbs,
		}

		priceBlock := card.Find(".price-qty-block").First()
		if priceBlock.Length() > 0 {
			rec.Price = ParsePrice(priceBlock.Find("ins .amount, .price .amount").First().Text())
			rec.OldPrice = ParsePrice(priceBlock.Find("del .amount").First().Text())
			if rec.Price == nil {
				rec.Price = rec.OldPrice
				rec.OldPrice = nil
			}
		}
		if rec.Price == nil {
			rec.Price = ParsePrice(card.Find(".price, .amount, .cost").First().Text())
		}

		records = append(records, rec)
	})
	return records
}

// NextPageURL resolves a "next" pagination link, falling back to
// incrementing an existing page parameter.
func (a *PartsDepot) NextPageURL(doc *goquery.Document, currentURL string) string {
	selectors := []string{
		".pages-item-next a",
		"a.action.next",
		".pagination a.next",
		".pager .next a",
	}
	for _, sel := range selectors {
		if href, ok := doc.Find(sel).First().Attr("href"); ok && href != "" {
			return AbsURL(currentURL, href)
		}
	}
	return NextPageByParamIncrement(currentURL)
}

func extractCardImage(card *goquery.Selection, pageURL string) string {
	if src, ok := card.Find("img[data-src]").First().Attr("data-src"); ok && src != "" {
		return AbsURL(pageURL, src)
	}
	if src, ok := card.Find("img[src]").First().Attr("src"); ok && src != "" {
		return AbsURL(pageURL, src)
	}
	return ""
}

func extractCardSKU(card *goquery.Selection) string {
	if sku, ok := card.Attr("data-sku"); ok {
		return CleanText(sku)
	}
	if sku, ok := card.Find("[data-sku]").First().Attr("data-sku"); ok {
		return CleanText(sku)
	}
	return CleanText(card.Find(".sku, .product-sku").First().Text())
}
