package catalog

import (
	"regexp"
	"strings"
)

const changeValueLimit = 500

var compareCollapseRe = regexp.MustCompile(`[\s_-]+`)

// ClassifyChangeField buckets a raw change field name into one of the
// canonical change types used by the recent-changes views.
func ClassifyChangeField(field string) string {
	f := strings.ToLower(strings.TrimSpace(field))
	switch {
	case f == "stock" || f == "stock_status" || f == "availability" || f == "inventory",
		strings.Contains(f, "stock"),
		strings.Contains(f, "availability"),
		strings.Contains(f, "inventory"),
		strings.Contains(f, "qty"):
		return "stock"
	case f == "description" || f == "desc" || f == "details" || f == "product_description",
		strings.Contains(f, "description"),
		strings.Contains(f, "content"),
		strings.Contains(f, "copy"):
		return "description"
	case f == "price" || f == "pricing" || f == "cost",
		strings.Contains(f, "price"),
		strings.Contains(f, "cost"):
		return "price"
	default:
		return "other"
	}
}

// normalizeForCompare collapses whitespace, hyphens and underscores so
// cosmetic formatting differences do not register as changes.
func normalizeForCompare(value string) string {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return ""
	}
	return strings.ToLower(compareCollapseRe.ReplaceAllString(cleaned, " "))
}

// meaningfulChange reports whether the old and new values differ once
// normalized. Identical trimmed descriptions never count, whatever the
// surrounding whitespace looked like.
func meaningfulChange(field, oldValue, newValue string) bool {
	oldNorm := normalizeForCompare(oldValue)
	newNorm := normalizeForCompare(newValue)
	if oldNorm == "" && newNorm == "" {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(field), "description") {
		if strings.TrimSpace(oldValue) == strings.TrimSpace(newValue) {
			return false
		}
	}
	return oldNorm != newNorm
}

// truncateChangeValue bounds stored change values so a runaway
// description cannot bloat the change log.
func truncateChangeValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) <= changeValueLimit {
		return trimmed
	}
	return trimmed[:changeValueLimit-3] + "..."
}
