package sites

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/partswatch/partswatch/internal/domain"
)

// TechParts adapts the techparts storefront. Its navigation is rendered
// client-side, so discovery is not automated: runs must supply explicit
// category URLs.
type TechParts struct {
	seedURL string
}

// NewTechParts creates the techparts adapter.
func NewTechParts() *TechParts {
	return &TechParts{seedURL: "https://www.techparts.com/"}
}

func (a *TechParts) Site() string               { return ClientTechParts }
func (a *TechParts) SeedURL() string            { return a.seedURL }
func (a *TechParts) SupportsDiscovery() bool    { return false }
func (a *TechParts) RequiresCategoryList() bool { return true }

func (a *TechParts) PrimaryCategories(doc *goquery.Document, baseURL string) []domain.CategorySeed {
	return nil
}

func (a *TechParts) SecondaryCategories(doc *goquery.Document, baseURL string) []domain.CategorySeed {
	return nil
}

func (a *TechParts) IsCategoryURL(u string) bool {
	return strings.Contains(u, "/category/")
}

// ExtractRecords parses product tiles. The storefront mixes listing
// markups across sections, so all the common card shapes are tried.
func (a *TechParts) ExtractRecords(doc *goquery.Document, pageURL string) []domain.ScrapedRecord {
	crumbs := Breadcrumbs(doc, ".breadcrumb a, .breadcrumbs a")
	currency := PageCurrency(pageURL)

	var records []domain.ScrapedRecord
	doc.Find("li.item, li.product, .product-card, .product-tile").Each(func(i int, card *goquery.Selection) {
		link := card.Find("a[href]").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		productURL := AbsURL(pageURL, href)
		if !strings.HasPrefix(productURL, "http") {
			return
		}

		title := CleanText(card.Find(".product-title, .product-name, h2, h3").First().Text())
		if title == "" {
			title = CleanText(link.Text())
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
			Price:       ParsePrice(card.Find(".price, .amount, .cost").First().Text()),
		}
		records = append(records, rec)
	})
	return records
}

func (a *TechParts) NextPageURL(doc *goquery.Document, currentURL string) string {
	if href, ok := doc.Find(`a[rel="next"], .pagination .next a`).First().Attr("href"); ok && href != "" {
		return AbsURL(currentURL, href)
	}
	return NextPageByParamIncrement(currentURL)
}
