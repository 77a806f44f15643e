package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrUnavailable is returned by Curated when no category could be fetched.
var ErrUnavailable = errors.New("catalog unavailable")

// Fetcher is the upstream transport. *client.Client implements it.
type Fetcher interface {
	GetJSON(ctx context.Context, path string, query url.Values, v any) error
}

// Product is a normalised catalog product.
type Product struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Price       float64  `json:"price"`
	Image       string   `json:"image"`
	Images      []string `json:"images"`
	Description string   `json:"description"`
}

// rawProduct is the upstream shape.
type rawProduct struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Price       float64  `json:"price"`
	Thumbnail   string   `json:"thumbnail"`
	Image       string   `json:"image"`
	Images      []string `json:"images"`
	Description string   `json:"description"`
}

type productPage struct {
	Products []rawProduct `json:"products"`
}

// Config holds catalog service configuration.
type Config struct {
	// MaxConcurrency bounds parallel upstream requests in Curated
	MaxConcurrency int
	// Timeout per category fetch
	Timeout time.Duration
	// DefaultLimit applies when callers pass limit <= 0
	DefaultLimit int
	// MaxLimit caps caller-supplied limits
	MaxLimit int
}

// DefaultConfig returns the default catalog configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 6,
		Timeout:        15 * time.Second,
		DefaultLimit:   100,
		MaxLimit:       200,
	}
}

// Service reads and normalises upstream products.
type Service struct {
	fetcher Fetcher
	config  Config
	logger  zerolog.Logger
}

// NewService creates a catalog service.
func NewService(fetcher Fetcher, config Config) *Service {
	defaults := DefaultConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = defaults.DefaultLimit
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = defaults.MaxLimit
	}
	return &Service{
		fetcher: fetcher,
		config:  config,
		logger:  log.With().Str("component", "catalog").Logger(),
	}
}

// SetLogger replaces the component logger.
func (s *Service) SetLogger(logger zerolog.Logger) {
	s.logger = logger
}

// Products returns one upstream page of normalised products.
func (s *Service) Products(ctx context.Context, limit, skip int) ([]Product, error) {
	if skip < 0 {
		skip = 0
	}
	query := url.Values{
		"limit": {strconv.Itoa(s.limit(limit))},
		"skip":  {strconv.Itoa(skip)},
	}
	return s.fetch(ctx, "/products", query)
}

// Search returns normalised products matching q.
func (s *Service) Search(ctx context.Context, q string, limit int) ([]Product, error) {
	query := url.Values{
		"q":     {strings.TrimSpace(q)},
		"limit": {strconv.Itoa(s.limit(limit))},
	}
	return s.fetch(ctx, "/products/search", query)
}

// Curated fetches perCategory products from every curated category in
// parallel and returns them in category order, deduped by id. Failed
// categories are skipped; ErrUnavailable is returned only when all fail.
func (s *Service) Curated(ctx context.Context, perCategory int) ([]Product, error) {
	start := time.Now()
	perCategory = s.limit(perCategory)

	results := make([][]Product, len(CuratedCategories))
	failed := make([]error, len(CuratedCategories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxConcurrency)
	for i, category := range CuratedCategories {
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(gctx, s.config.Timeout)
			defer cancel()

			products, err := s.fetch(fetchCtx, "/products/category/"+url.PathEscape(category),
				url.Values{"limit": {strconv.Itoa(perCategory)}})
			if err != nil {
				s.logger.Warn().
					Err(err).
					Str("category", category).
					Msg("Category fetch failed")
				failed[i] = err
				return nil
			}
			results[i] = products
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var failures int
	for _, err := range failed {
		if err != nil {
			failures++
		}
	}
	if failures == len(CuratedCategories) {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(failed...))
	}

	seen := make(map[int64]struct{})
	out := make([]Product, 0, perCategory*len(CuratedCategories))
	for _, products := range results {
		for _, p := range products {
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			out = append(out, p)
		}
	}

	s.logger.Debug().
		Int("products", len(out)).
		Int("failed_categories", failures).
		Dur("duration", time.Since(start)).
		Msg("Curated fetch complete")

	return out, nil
}

func (s *Service) fetch(ctx context.Context, path string, query url.Values) ([]Product, error) {
	var page productPage
	if err := s.fetcher.GetJSON(ctx, path, query, &page); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	products := make([]Product, 0, len(page.Products))
	for _, raw := range page.Products {
		if p, ok := normalize(raw); ok {
			products = append(products, p)
		}
	}
	return products, nil
}

func (s *Service) limit(n int) int {
	if n <= 0 {
		return s.config.DefaultLimit
	}
	if n > s.config.MaxLimit {
		return s.config.MaxLimit
	}
	return n
}

// normalize converts an upstream product. It reports false for products
// with an unknown category or no usable image.
func normalize(raw rawProduct) (Product, bool) {
	category := NormalizeCategory(raw.Category)
	if category == "" {
		return Product{}, false
	}
	candidates := append(append([]string{}, raw.Images...), raw.Thumbnail, raw.Image)
	images := PickImages(candidates...)
	if len(images) == 0 {
		return Product{}, false
	}
	name := raw.Title
	if name == "" {
		name = raw.Name
	}
	return Product{
		ID:          raw.ID,
		Name:        name,
		Category:    category,
		Price:       raw.Price,
		Image:       images[0],
		Images:      images,
		Description: raw.Description,
	}, true
}
