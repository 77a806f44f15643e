package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/alusatu/marketplace/pkg/catalog"
	"github.com/alusatu/marketplace/pkg/client"
)

// defaultPerCategory is the curated page size when the client sends none.
const defaultPerCategory = 12

func (s *Server) catalogProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	products, err := s.catalog.Products(r.Context(), intParam(q.Get("limit")), intParam(q.Get("skip")))
	if err != nil {
		s.upstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) catalogSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	term := trimmed(q.Get("q"))
	if term == "" {
		writeError(w, http.StatusBadRequest, "Search query is required")
		return
	}
	products, err := s.catalog.Search(r.Context(), term, intParam(q.Get("limit")))
	if err != nil {
		s.upstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) catalogCurated(w http.ResponseWriter, r *http.Request) {
	perCategory := intParam(r.URL.Query().Get("perCategory"))
	if perCategory == 0 {
		perCategory = defaultPerCategory
	}
	products, err := s.catalog.Curated(r.Context(), perCategory)
	if err != nil {
		s.upstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// upstreamError maps catalog failures: upstream 4xx pass through as 404,
// everything else is a bad gateway. Neither is cached, so the route
// recovers as soon as the upstream does.
func (s *Server) upstreamError(w http.ResponseWriter, err error) {
	s.logger.Warn().Err(err).Msg("catalog request failed")

	var upstream *client.UpstreamError
	if errors.As(err, &upstream) && upstream.ErrorClass == client.ErrorClassClient {
		writeUncachedError(w, http.StatusNotFound, "Catalog resource not found")
		return
	}
	if errors.Is(err, catalog.ErrUnavailable) {
		writeUncachedError(w, http.StatusBadGateway, "Catalog unavailable")
		return
	}
	writeUncachedError(w, http.StatusBadGateway, "Failed to load catalog")
}

// intParam parses a non-negative integer query value; anything else is 0.
func intParam(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
