package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/alusatu/marketplace/internal/auth"
	"github.com/alusatu/marketplace/internal/storage"
	"github.com/alusatu/marketplace/pkg/catalog"
)

const (
	maxReviewLength = 2000
	anonymousAuthor = "Anonymous"
)

type productView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	Images      []string  `json:"images"`
	UserID      string    `json:"userId"`
	Username    string    `json:"username"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newProductView(p storage.ListedProduct) productView {
	view := productView{
		ID:          p.ID,
		Name:        p.Title,
		Price:       p.Price,
		Category:    p.Category,
		Description: p.Description,
		Images:      p.Images,
		UserID:      p.UserID,
		Username:    p.Username,
		CreatedAt:   p.CreatedAt,
	}
	if view.Images == nil {
		view.Images = []string{}
	}
	if len(view.Images) > 0 {
		view.Image = view.Images[0]
	}
	return view
}

func productViews(products []storage.ListedProduct) []productView {
	out := make([]productView, 0, len(products))
	for _, p := range products {
		out = append(out, newProductView(p))
	}
	return out
}

type reviewView struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	Author    string    `json:"author"`
	Rating    int       `json:"rating"`
	Text      string    `json:"text"`
	Date      time.Time `json:"date"`
}

func newReviewView(r storage.Review) reviewView {
	return reviewView{
		ID:        r.ID,
		ProductID: r.ProductID,
		Author:    r.Author,
		Rating:    r.Rating,
		Text:      r.Text,
		Date:      r.CreatedAt,
	}
}

func (s *Server) listedProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.ListListedProducts(r.Context())
	if err != nil {
		s.internalError(w, err, "Failed to load listed products")
		return
	}
	writeJSON(w, http.StatusOK, productViews(products))
}

func (s *Server) listedProduct(w http.ResponseWriter, r *http.Request) {
	product, err := s.store.GetListedProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Listed product not found")
			return
		}
		s.internalError(w, err, "Failed to load listed product")
		return
	}
	writeJSON(w, http.StatusOK, newProductView(product))
}

func (s *Server) myProducts(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	products, err := s.store.ListListedProductsByUser(r.Context(), user.ID)
	if err != nil {
		s.internalError(w, err, "Failed to load your listed products")
		return
	}
	writeJSON(w, http.StatusOK, productViews(products))
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	var req struct {
		Title       string   `json:"title"`
		Price       float64  `json:"price"`
		Category    string   `json:"category"`
		Description string   `json:"description"`
		Image       string   `json:"image"`
		Images      []string `json:"images"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if trimmed(req.Title) == "" || req.Price == 0 {
		writeError(w, http.StatusBadRequest, "Title and price are required")
		return
	}

	product, err := s.store.CreateListedProduct(r.Context(), storage.ListedProduct{
		UserID:      user.ID,
		Username:    user.Username,
		Title:       req.Title,
		Price:       req.Price,
		Category:    trimmed(req.Category),
		Description: req.Description,
		Images:      catalog.PickImages(append([]string{req.Image}, req.Images...)...),
	})
	if err != nil {
		s.internalError(w, err, "Failed to create listed product")
		return
	}
	writeJSON(w, http.StatusCreated, newProductView(product))
}

// deleteProduct is allowed for the owner or an admin and removes the
// product's reviews with it.
func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	id := r.PathValue("id")

	product, err := s.store.GetListedProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Listed product not found")
			return
		}
		s.internalError(w, err, "Failed to delete listed product")
		return
	}
	if product.UserID != user.ID && !user.IsAdmin {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}
	if err := s.store.DeleteListedProduct(r.Context(), id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.internalError(w, err, "Failed to delete listed product")
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	productID := trimmed(r.PathValue("productId"))
	if productID == "" {
		writeError(w, http.StatusBadRequest, "Product id is required")
		return
	}
	reviews, err := s.store.ListReviews(r.Context(), productID)
	if err != nil {
		s.internalError(w, err, "Failed to load reviews")
		return
	}
	out := make([]reviewView, 0, len(reviews))
	for _, review := range reviews {
		out = append(out, newReviewView(review))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createReview(w http.ResponseWriter, r *http.Request) {
	productID := trimmed(r.PathValue("productId"))
	var req struct {
		Author string      `json:"author"`
		Text   string      `json:"text"`
		Rating json.Number `json:"rating"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	text := trimmed(req.Text)
	if productID == "" {
		writeError(w, http.StatusBadRequest, "Product id is required")
		return
	}
	if text == "" {
		writeError(w, http.StatusBadRequest, "Review text is required")
		return
	}
	if utf8.RuneCountInString(text) > maxReviewLength {
		writeError(w, http.StatusBadRequest, "Review text must be at most 2000 characters")
		return
	}
	rating, err := req.Rating.Float64()
	if err != nil || math.IsNaN(rating) || rating < 1 || rating > 5 {
		writeError(w, http.StatusBadRequest, "Rating must be between 1 and 5")
		return
	}
	author := trimmed(req.Author)
	if author == "" {
		author = anonymousAuthor
	}

	review, err := s.store.CreateReview(r.Context(), storage.Review{
		ProductID: productID,
		Author:    author,
		Rating:    int(math.Round(rating)),
		Text:      text,
	})
	if err != nil {
		s.internalError(w, err, "Failed to create review")
		return
	}
	writeJSON(w, http.StatusCreated, newReviewView(review))
}

func (s *Server) deleteReview(w http.ResponseWriter, r *http.Request) {
	productID := trimmed(r.PathValue("productId"))
	reviewID := trimmed(r.PathValue("reviewId"))
	if productID == "" || reviewID == "" {
		writeError(w, http.StatusBadRequest, "Product id and review id are required")
		return
	}
	if err := s.store.DeleteReview(r.Context(), reviewID, productID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Review not found")
			return
		}
		s.internalError(w, err, "Failed to delete review")
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
