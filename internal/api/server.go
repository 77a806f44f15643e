// Package api wires the marketplace HTTP routes.
package api

import (
	"net/http"
	"time"

	"github.com/alusatu/marketplace/internal/auth"
	"github.com/alusatu/marketplace/internal/storage"
	"github.com/alusatu/marketplace/internal/telemetry"
	"github.com/alusatu/marketplace/pkg/cache"
	"github.com/alusatu/marketplace/pkg/catalog"
	"github.com/alusatu/marketplace/pkg/metrics"
	"github.com/rs/zerolog"
)

// Cache lifetimes per resource.
const (
	ttlProfile  = 30 * time.Second
	ttlUsers    = 30 * time.Second
	ttlCart     = 15 * time.Second
	ttlFavorite = 15 * time.Second
	ttlOrders   = 30 * time.Second
	ttlListed   = 60 * time.Second
	ttlMine     = 30 * time.Second
	ttlCatalog  = 300 * time.Second
)

// Invalidation prefixes.
const (
	prefixUsers     = "/api/users"
	prefixCart      = "/api/cart"
	prefixFavorites = "/api/favorites"
	prefixOrders    = "/api/orders"
	prefixProducts  = "/api/products"
)

// Deps are the collaborators the API needs.
type Deps struct {
	Store   storage.Store
	Cache   *cache.ResponseCache
	Issuer  *auth.Issuer
	Guard   *auth.Guard
	Catalog *catalog.Service
	Logger  zerolog.Logger
}

// Server serves the marketplace API.
type Server struct {
	store   storage.Store
	cache   *cache.ResponseCache
	issuer  *auth.Issuer
	guard   *auth.Guard
	catalog *catalog.Service
	logger  zerolog.Logger
}

// New creates a Server.
func New(deps Deps) *Server {
	return &Server{
		store:   deps.Store,
		cache:   deps.Cache,
		issuer:  deps.Issuer,
		guard:   deps.Guard,
		catalog: deps.Catalog,
		logger:  deps.Logger,
	}
}

type middleware = func(http.Handler) http.Handler

// handle registers pattern with the given chain; the first middleware is
// outermost. Every route is traced and instrumented under its pattern.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc, chain ...middleware) {
	mux.Handle(pattern, s.route(pattern, h, chain...))
}

func (s *Server) route(pattern string, h http.HandlerFunc, chain ...middleware) http.Handler {
	var handler http.Handler = h
	for i := len(chain) - 1; i >= 0; i-- {
		handler = chain[i](handler)
	}
	return telemetry.Middleware(pattern, metrics.Instrument(pattern, handler))
}

// Routes returns the API mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	authed := s.guard.RequireAuth
	admin := auth.RequireAdmin
	cached := s.cache.Middleware
	invalidate := s.cache.Invalidate

	s.handle(mux, "GET /api/health", s.health)

	s.handle(mux, "POST /api/auth/register", s.register)
	s.handle(mux, "POST /api/auth/login", s.login)
	s.handle(mux, "POST /api/auth/logout", s.logout)
	s.handle(mux, "GET /api/auth/me", s.me, authed)

	s.handle(mux, "GET /api/users/profile", s.getProfile, authed, cached(ttlProfile))
	s.handle(mux, "PUT /api/users/profile", s.updateProfile, authed, invalidate(prefixUsers))
	s.handle(mux, "GET /api/users", s.listUsers, authed, admin, cached(ttlUsers))
	s.handle(mux, "DELETE /api/users/{id}", s.deleteUser, authed, admin, invalidate(prefixUsers))

	s.handle(mux, "GET /api/cart", s.getCart, authed, cached(ttlCart))
	s.handle(mux, "POST /api/cart", s.addToCart, authed, invalidate(prefixCart))
	s.handle(mux, "PUT /api/cart/{productId}", s.updateCartItem, authed, invalidate(prefixCart))
	s.handle(mux, "DELETE /api/cart/{productId}", s.removeCartItem, authed, invalidate(prefixCart))
	s.handle(mux, "DELETE /api/cart", s.clearCart, authed, invalidate(prefixCart))

	s.handle(mux, "GET /api/favorites", s.getFavorites, authed, cached(ttlFavorite))
	s.handle(mux, "POST /api/favorites", s.addFavorite, authed, invalidate(prefixFavorites))
	s.handle(mux, "DELETE /api/favorites/{productId}", s.removeFavorite, authed, invalidate(prefixFavorites))

	s.handle(mux, "POST /api/orders", s.createOrder, authed, invalidate(prefixOrders, prefixCart))
	s.handle(mux, "GET /api/orders", s.myOrders, authed, cached(ttlOrders))
	s.handle(mux, "GET /api/orders/all", s.allOrders, authed, admin, cached(ttlOrders))
	s.handle(mux, "PUT /api/orders/{id}/status", s.updateOrderStatus, authed, admin, invalidate(prefixOrders))

	s.handle(mux, "GET /api/products/listed", s.listedProducts, cached(ttlListed))
	s.handle(mux, "GET /api/products/my", s.myProducts, authed, cached(ttlMine))
	s.handle(mux, "POST /api/products", s.createProduct, authed, invalidate(prefixProducts))
	s.handle(mux, "DELETE /api/products/{id}", s.deleteProduct, authed, invalidate(prefixProducts))
	s.handle(mux, "POST /api/products/{productId}/reviews", s.createReview, invalidate(prefixProducts))
	s.handle(mux, "DELETE /api/products/{productId}/reviews/{reviewId}", s.deleteReview, invalidate(prefixProducts))

	// /api/products/listed/{id} and /api/products/{productId}/reviews overlap
	// as ServeMux patterns, so one pattern dispatches to both.
	listedByID := s.route("GET /api/products/listed/{id}", s.listedProduct, cached(ttlListed))
	reviews := s.route("GET /api/products/{productId}/reviews", s.listReviews)
	mux.HandleFunc("GET /api/products/{first}/{second}", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.PathValue("first") == "listed":
			r.SetPathValue("id", r.PathValue("second"))
			listedByID.ServeHTTP(w, r)
		case r.PathValue("second") == "reviews":
			r.SetPathValue("productId", r.PathValue("first"))
			reviews.ServeHTTP(w, r)
		default:
			writeError(w, http.StatusNotFound, "Not found")
		}
	})

	s.handle(mux, "GET /api/catalog/products", s.catalogProducts, cached(ttlCatalog))
	s.handle(mux, "GET /api/catalog/search", s.catalogSearch, cached(ttlCatalog))
	s.handle(mux, "GET /api/catalog/curated", s.catalogCurated, cached(ttlCatalog))

	s.handle(mux, "GET /api/admin/cache", s.cacheStats, authed, admin)
	s.handle(mux, "DELETE /api/admin/cache", s.flushCache, authed, admin)

	return mux
}
