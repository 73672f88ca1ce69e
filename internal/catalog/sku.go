package catalog

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"

	"github.com/partswatch/partswatch/internal/domain"
	"github.com/partswatch/partswatch/internal/sites"
)

var skuSanitizeRe = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// DeriveSKU produces a deterministic SKU for a record. Preference order
// is the source SKU, then the last path segment of the product URL, then
// an md5 of the full URL so every record gets a stable key.
func DeriveSKU(rec domain.ScrapedRecord) string {
	candidate := sites.CleanText(rec.SKU)
	if candidate == "" {
		candidate = urlPathTail(rec.URL)
	}
	if candidate == "" {
		candidate = hashURL(rec.URL)
	}

	candidate = strings.Trim(skuSanitizeRe.ReplaceAllString(candidate, "-"), "-")
	if candidate == "" {
		candidate = hashURL(rec.URL)
	}
	return strings.ToUpper(candidate)
}

func urlPathTail(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	path := strings.TrimRight(parsed.Path, "/")
	if path == "" {
		return ""
	}
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		if tail := path[idx+1:]; tail != "" {
			return tail
		}
	}
	return strings.ReplaceAll(path, "/", "-")
}

func hashURL(rawURL string) string {
	sum := md5.Sum([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}
