package catalog

import (
	"regexp"
	"strings"
)

// Marketplace category labels.
const (
	CategoryPhones      = "Phones"
	CategoryLaptops     = "Laptops"
	CategoryClothing    = "Clothing"
	CategoryShoes       = "Shoes"
	CategoryWatches     = "Watches"
	CategoryBags        = "Bags"
	CategoryAccessories = "Accessories"
	CategoryElectronics = "Electronics"
	CategoryHome        = "Home & Garden"
)

// Categories lists the labels a catalog product may carry.
var Categories = []string{
	CategoryPhones,
	CategoryLaptops,
	CategoryClothing,
	CategoryShoes,
	CategoryWatches,
	CategoryBags,
	CategoryAccessories,
	CategoryElectronics,
	CategoryHome,
}

// upstream category -> marketplace label
var categoryMap = map[string]string{
	"smartphones":         CategoryPhones,
	"mobile":              CategoryPhones,
	"laptops":             CategoryLaptops,
	"tablets":             CategoryElectronics,
	"electronics":         CategoryElectronics,
	"mobile-accessories":  CategoryAccessories,
	"sunglasses":          CategoryAccessories,
	"mens-shirts":         CategoryClothing,
	"womens-dresses":      CategoryClothing,
	"womens-tops":         CategoryClothing,
	"mens-shoes":          CategoryShoes,
	"womens-shoes":        CategoryShoes,
	"mens-watches":        CategoryWatches,
	"womens-watches":      CategoryWatches,
	"womens-bags":         CategoryBags,
	"handbags":            CategoryBags,
	"home-decoration":     CategoryHome,
	"furniture":           CategoryHome,
	"lighting":            CategoryHome,
	"kitchen-accessories": CategoryHome,
}

// CuratedCategories are the upstream categories fetched for the curated feed,
// in display order.
var CuratedCategories = []string{
	"smartphones",
	"laptops",
	"tablets",
	"mobile-accessories",
	"mens-shirts",
	"womens-dresses",
	"womens-tops",
	"mens-shoes",
	"womens-shoes",
	"mens-watches",
	"womens-watches",
	"womens-bags",
	"sunglasses",
	"home-decoration",
	"furniture",
	"lighting",
	"kitchen-accessories",
}

var placeholderHost = regexp.MustCompile(`(?i)placeholder\.com`)

// NormalizeCategory maps an upstream category to a marketplace label.
// Labels pass through; unknown values return "".
func NormalizeCategory(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	for _, label := range Categories {
		if value == label {
			return value
		}
	}
	return categoryMap[strings.ToLower(value)]
}

// PickImages returns the usable, distinct image URLs from candidates in
// order. Blank and placeholder-host URLs are skipped.
func PickImages(candidates ...string) []string {
	out := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		s := strings.TrimSpace(candidate)
		if s == "" || placeholderHost.MatchString(s) {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
