package sites

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/partswatch/partswatch/internal/domain"
)

// MobileZone adapts the WooCommerce-style mobilezone storefront.
type MobileZone struct {
	seedURL string
}

// NewMobileZone creates the mobilezone adapter.
func NewMobileZone() *MobileZone {
	return &MobileZone{seedURL: "https://www.mobilezoneparts.com/"}
}

func (a *MobileZone) Site() string               { return ClientMobileZone }
func (a *MobileZone) SeedURL() string            { return a.seedURL }
func (a *MobileZone) SupportsDiscovery() bool    { return true }
func (a *MobileZone) RequiresCategoryList() bool { return false }

// PrimaryCategories reads the WooCommerce category widget.
func (a *MobileZone) PrimaryCategories(doc *goquery.Document, baseURL string) []domain.CategorySeed {
	var seeds []domain.CategorySeed
	doc.Find(".product-categories a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u := AbsURL(baseURL, href)
		if u == "" || !a.IsCategoryURL(u) {
			return
		}
		seeds = append(seeds, domain.CategorySeed{
			URL:   u,
			Label: CleanText(s.Text()),
		})
	})
	return seeds
}

// SecondaryCategories scans nav menus for shop and category links.
func (a *MobileZone) SecondaryCategories(doc *goquery.Document, baseURL string) []domain.CategorySeed {
	var seeds []domain.CategorySeed
	selector := `nav a[href*="/product-category/"], nav a[href*="/shop/"], .menu-item a[href*="/product-category/"]`
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

func (a *MobileZone) IsCategoryURL(u string) bool {
	return strings.Contains(u, "/product-category/") || strings.Contains(u, "/shop/")
}

// ExtractRecords parses WooCommerce product loops.
func (a *MobileZone) ExtractRecords(doc *goquery.Document, pageURL string) []domain.ScrapedRecord {
	crumbs := Breadcrumbs(doc, ".woocommerce-breadcrumb a")
	currency := PageCurrency(pageURL)

	var records []domain.ScrapedRecord
	doc.Find("li.product, .type-product, .product-item").Each(func(i int, card *goquery.Selection) {
		link := card.Find("a[href]").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		productURL := AbsURL(pageURL, href)
		if !strings.HasPrefix(productURL, "http") {
			return
		}

		title := CleanText(card.Find("h2.woocommerce-loop-product__title, .product-title a, .product-name a, h3").First().Text())
		if title == "" {
			return
		}

		rec := domain.ScrapedRecord{
			Title:       title,
			URL:         productURL,
			SKU:         extractCardSKU(card),
			Currency:    currency,
			StockStatus: StockFromContainer(card),
			Breadcrumbs: crumbs,
		}

		img := card.Find(".attachment-woocommerce_thumbnail, img").First()
		if src, okImg := img.Attr("src"); okImg && src != "" {
			rec.ImageURL = AbsURL(pageURL, src)
		} else if src, okImg := img.Attr("data-src"); okImg && src != "" {
			rec.ImageURL = AbsURL(pageURL, src)
		}

		// WooCommerce sale markup: ins carries the live price, del the
		// struck-through original.
		rec.Price = ParsePrice(card.Find("ins .amount, .price ins").First().Text())
		rec.OldPrice = ParsePrice(card.Find("del .amount, .price del").First().Text())
		if rec.Price == nil {
			rec.Price = rec.OldPrice
			rec.OldPrice = nil
		}
		if rec.Price == nil {
			rec.Price = ParsePrice(card.Find(".price .amount, .price, .cost").First().Text())
		}

		records = append(records, rec)
	})
	return records
}

// NextPageURL resolves WooCommerce pagination.
func (a *MobileZone) NextPageURL(doc *goquery.Document, currentURL string) string {
	selectors := []string{
		".woocommerce-pagination .next",
		`a[rel="next"]`,
		".pagination .next a",
		".nav-links .next",
	}
	for _, sel := range selectors {
		if href, ok := doc.Find(sel).First().Attr("href"); ok && href != "" {
			return AbsURL(currentURL, href)
		}
	}
	return NextPageByParamIncrement(currentURL)
}
