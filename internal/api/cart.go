package api

import (
	"net/http"

	"github.com/alusatu/marketplace/internal/auth"
	"github.com/alusatu/marketplace/internal/storage"
)

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	items, err := s.store.GetCart(r.Context(), user.ID)
	if err != nil {
		s.internalError(w, err, "Failed to load cart")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	var item storage.CartItem
	if err := decodeJSON(r, &item); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if item.ProductID == "" {
		writeError(w, http.StatusBadRequest, "Product id is required")
		return
	}
	items, err := s.store.AddCartItem(r.Context(), user.ID, item)
	if err != nil {
		s.internalError(w, err, "Failed to add to cart")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) updateCartItem(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	productID := storage.ParseProductID(r.PathValue("productId"))
	items, err := s.store.SetCartQuantity(r.Context(), user.ID, productID, req.Quantity)
	if err != nil {
		s.internalError(w, err, "Failed to update cart")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) removeCartItem(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	productID := storage.ParseProductID(r.PathValue("productId"))
	items, err := s.store.RemoveCartItem(r.Context(), user.ID, productID)
	if err != nil {
		s.internalError(w, err, "Failed to remove from cart")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	if err := s.store.ClearCart(r.Context(), user.ID); err != nil {
		s.internalError(w, err, "Failed to clear cart")
		return
	}
	writeJSON(w, http.StatusOK, []storage.CartItem{})
}

func (s *Server) getFavorites(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	ids, err := s.store.ListFavorites(r.Context(), user.ID)
	if err != nil {
		s.internalError(w, err, "Failed to load favorites")
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) addFavorite(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	var req struct {
		ProductID storage.ProductID `json:"productId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "Product id is required")
		return
	}
	ids, err := s.store.AddFavorite(r.Context(), user.ID, req.ProductID)
	if err != nil {
		s.internalError(w, err, "Failed to add to favorites")
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) removeFavorite(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	productID := storage.ParseProductID(r.PathValue("productId"))
	ids, err := s.store.RemoveFavorite(r.Context(), user.ID, productID)
	if err != nil {
		s.internalError(w, err, "Failed to remove from favorites")
		return
	}
	writeJSON(w, http.StatusOK, ids)
}
