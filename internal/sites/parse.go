// Package sites provides per-site extraction adapters and the shared
// parsing helpers they are built from.
package sites

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/partswatch/partswatch/internal/domain"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	moneyRe      = regexp.MustCompile(`([\$£€]|CA\$)?\s*([0-9]{1,3}(?:,[0-9]{3})*(?:\.[0-9]{2})|[0-9]+(?:\.[0-9]{2})?)`)
)

// CleanText collapses whitespace runs and trims the result.
func CleanText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// ParsePrice extracts the first numeric price from free-form text.
// Returns nil when no parseable amount is present.
func ParsePrice(text string) *float64 {
	text = CleanText(text)
	if text == "" {
		return nil
	}
	m := moneyRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	num := strings.ReplaceAll(m[2], ",", "")
	val, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return nil
	}
	return &val
}

// HostCurrency guesses the listing currency from the hostname. Canadian
// storefronts price in CAD, everything else defaults to USD.
func HostCurrency(host string) string {
	host = strings.ToLower(host)
	if strings.HasSuffix(host, ".ca") || strings.HasPrefix(host, "ca.") || strings.Contains(host, ".ca.") {
		return "CAD"
	}
	return "USD"
}

// PageCurrency resolves the listing currency for a page URL via its host.
func PageCurrency(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return "USD"
	}
	return HostCurrency(u.Host)
}

// stockTextPatterns map free-form availability phrasing to canonical
// statuses. Order matters: negative phrasing is checked before positive
// so "out of stock" never matches the in-stock pattern via "stock".
var stockTextPatterns = []struct {
	re     *regexp.Regexp
	status string
}{
	{regexp.MustCompile(`(?i)\b(not\s+available|unavailable|out\s+of\s+stock|sold\s+out|no\s+stock|currently\s+unavailable|temporarily\s+unavailable|stock\s*:?(?:\s|\s*&nbsp;)?no)\b`), domain.StockOutOfStock},
	{regexp.MustCompile(`(?i)\b(back[\s-]?order(?:ed)?|awaiting\s+stock|ships\s+in\s+\d+|ships\s+within\s+\d+|special\s+order)\b`), domain.StockBackOrder},
	{regexp.MustCompile(`(?i)\b(pre[\s-]?order|coming\s+soon)\b`), domain.StockPreOrder},
	{regexp.MustCompile(`(?i)\b(low\s+stock|limited\s+stock|few\s+left|only\s+\d+\s+(?:left|remaining)|almost\s+gone|last\s+(?:few|units)|limited\s+availability)\b`), domain.StockLimited},
	{regexp.MustCompile(`(?i)\b(in\s*stock|available\s+now|ready\s+to\s+ship|ships\s+today|available\s+for\s+immediate|stock\s*:?(?:\s|\s*&nbsp;)?yes|qty\s+available|stock\s+available)\b`), domain.StockInStock},
}

// directStockMap handles exact availability values after lowercasing and
// collapsing separators.
var directStockMap = map[string]string{
	"in stock":             domain.StockInStock,
	"instock":              domain.StockInStock,
	"available":            domain.StockInStock,
	"available now":        domain.StockInStock,
	"yes":                  domain.StockInStock,
	"y":                    domain.StockInStock,
	"stock yes":            domain.StockInStock,
	"out of stock":         domain.StockOutOfStock,
	"sold out":             domain.StockOutOfStock,
	"no":                   domain.StockOutOfStock,
	"n":                    domain.StockOutOfStock,
	"stock no":             domain.StockOutOfStock,
	"backorder":            domain.StockBackOrder,
	"back order":           domain.StockBackOrder,
	"backordered":          domain.StockBackOrder,
	"preorder":             domain.StockPreOrder,
	"pre order":            domain.StockPreOrder,
	"limited availability": domain.StockLimited,
	"low stock":            domain.StockLimited,
	"limited stock":        domain.StockLimited,
}

// availabilityURLMap maps schema.org availability URLs to statuses.
var availabilityURLMap = map[string]string{
	"schema.org/instock":             domain.StockInStock,
	"schema.org/outofstock":          domain.StockOutOfStock,
	"schema.org/limitedavailability": domain.StockLimited,
	"schema.org/backorder":           domain.StockBackOrder,
	"schema.org/preorder":            domain.StockPreOrder,
}

// NormalizeStock converts raw availability text into a canonical stock
// status, or "" when nothing recognizable is present.
func NormalizeStock(value string) string {
	cleaned := CleanText(value)
	if cleaned == "" {
		return domain.StockUnknown
	}

	lowered := strings.ToLower(cleaned)
	collapsed := strings.NewReplacer("-", " ", "_", " ").Replace(lowered)

	if strings.Contains(collapsed, "not available") ||
		strings.Contains(collapsed, "unavailable") ||
		strings.Contains(collapsed, "no availability") {
		return domain.StockOutOfStock
	}
	if status, ok := directStockMap[collapsed]; ok {
		return status
	}
	for _, p := range stockTextPatterns {
		if p.re.MatchString(lowered) {
			return p.status
		}
	}
	return domain.StockUnknown
}

// StockFromAvailability maps a schema.org availability URL or free-form
// availability value to a canonical status.
func StockFromAvailability(value string) string {
	if value == "" {
		return domain.StockUnknown
	}
	lowered := strings.ToLower(value)
	for key, status := range availabilityURLMap {
		if strings.Contains(lowered, key) {
			return status
		}
	}
	return NormalizeStock(value)
}

// stockStatusSelectors are the elements worth inspecting for stock text
// inside a product card or detail page.
var stockStatusSelectors = []string{
	"[data-stock-status]",
	"[data-stock]",
	"[data-availability]",
	".stock-status",
	".stock",
	".availability",
	".availability span",
	".product-stock",
	".stock-label",
	".stock-message",
	".inventory-status",
	".availability-value",
	".qty-status",
}

// stockHintAttrs are attributes that commonly carry availability values.
var stockHintAttrs = []string{
	"data-stock-status", "data-stock", "data-availability",
	"data-in-stock", "data-instock", "aria-label", "title",
}

func stockFromElement(sel *goquery.Selection) string {
	for _, attr := range stockHintAttrs {
		if val, ok := sel.Attr(attr); ok {
			if status := NormalizeStock(val); status != domain.StockUnknown {
				return status
			}
		}
	}
	return NormalizeStock(sel.Text())
}

// StockFromContainer resolves a stock status from a product card: the
// card's own attributes first, then known stock elements, then the
// card's full text as a last resort.
func StockFromContainer(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return domain.StockUnknown
	}
	if status := stockFromElement(sel.First()); status != domain.StockUnknown {
		return status
	}
	for _, selector := range stockStatusSelectors {
		el := sel.Find(selector).First()
		if el.Length() == 0 {
			continue
		}
		if status := stockFromElement(el); status != domain.StockUnknown {
			return status
		}
	}
	return domain.StockUnknown
}

// AbsURL resolves href against base. Returns "" for unresolvable input.
func AbsURL(base, href string) string {
	if href == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(ref).String()
}

// paginationParams are query parameters that carry page numbers.
var paginationParams = []string{"p", "page", "paged"}

// NextPageByParamIncrement returns the current URL with its existing
// pagination parameter incremented, or "" when the URL carries none.
// URLs without a pagination parameter are handled by probing instead,
// since inventing one cannot be verified without a fetch.
func NextPageByParamIncrement(currentURL string) string {
	parsed, err := url.Parse(currentURL)
	if err != nil {
		return ""
	}
	q := parsed.Query()
	for _, param := range paginationParams {
		if v := q.Get(param); v != "" {
			n, convErr := strconv.Atoi(v)
			if convErr != nil {
				continue
			}
			q.Set(param, strconv.Itoa(n+1))
			parsed.RawQuery = q.Encode()
			return parsed.String()
		}
	}
	return ""
}

// Breadcrumbs extracts the trail from a listing page, skipping the
// leading "Home" entry.
func Breadcrumbs(doc *goquery.Document, selector string) []string {
	var crumbs []string
	doc.Find(selector).Each(func(i int, s *goquery.Selection) {
		if text := CleanText(s.Text()); text != "" {
			crumbs = append(crumbs, text)
		}
	})
	if len(crumbs) > 0 {
		crumbs = crumbs[1:]
	}
	return crumbs
}
