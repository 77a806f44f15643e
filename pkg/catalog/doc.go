// Package catalog serves the marketplace's upstream product catalog.
//
// The upstream returns raw products tagged with fine-grained categories
// ("smartphones", "mens-shirts", ...). Every product is normalised before it
// reaches the client: its category is mapped to a marketplace label, image
// candidates are filtered and deduped, and products with no label or no
// usable image are dropped.
//
// Curated fetches one page per curated category in parallel with a bounded
// worker count:
//
//	svc := catalog.NewService(upstream, catalog.DefaultConfig())
//	products, err := svc.Curated(ctx, 12)
//
// A failing category is logged and skipped. The remaining categories are
// concatenated in curated order and deduped by product id.
package catalog
