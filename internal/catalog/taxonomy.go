// Package catalog persists scraped records into the brand/category/model
// taxonomy and detects product changes between runs.
package catalog

import (
	"github.com/partswatch/partswatch/internal/domain"
	"github.com/partswatch/partswatch/internal/sites"
)

// Taxonomy is the derived brand/category/model placement for one record.
type Taxonomy struct {
	Brand    string
	Category string
	Model    string
}

// DeriveTaxonomy places a record in the taxonomy using its breadcrumb
// trail. The breadcrumb depth decides how labels map onto levels:
//
//	3+ crumbs: category is the second crumb, model the last
//	2 crumbs:  category then model
//	1 crumb:   the single crumb serves as both
//	0 crumbs:  the category seed label serves as both
//
// A brand carried by the category seed wins over the first crumb, which
// on brand-bucketed storefronts is often just "Home". With neither, the
// site label keeps single-category crawls under a stable brand.
func DeriveTaxonomy(rec domain.ScrapedRecord, seed domain.CategorySeed, siteLabel string) Taxonomy {
	crumbs := make([]string, 0, len(rec.Breadcrumbs))
	for _, c := range rec.Breadcrumbs {
		if cleaned := sites.CleanText(c); cleaned != "" {
			crumbs = append(crumbs, cleaned)
		}
	}
	if len(crumbs) == 0 && seed.Label != "" {
		crumbs = []string{sites.CleanText(seed.Label)}
	}

	t := Taxonomy{Brand: siteLabel}
	if len(crumbs) > 0 {
		t.Brand = crumbs[0]
	}
	if b := sites.CleanText(seed.Brand); b != "" {
		t.Brand = b
	}

	switch {
	case len(crumbs) >= 3:
		t.Category = crumbs[1]
		t.Model = crumbs[len(crumbs)-1]
	case len(crumbs) == 2:
		t.Category = crumbs[0]
		t.Model = crumbs[1]
	case len(crumbs) == 1:
		t.Category = crumbs[0]
		t.Model = crumbs[0]
	default:
		t.Category = sites.CleanText(seed.Label)
		t.Model = t.Category
	}

	if t.Brand == "" {
		t.Brand = "General"
	}
	if t.Category == "" {
		t.Category = "General"
	}
	if t.Model == "" {
		t.Model = "General"
	}
	return t
}
