package api

import (
	"errors"
	"net/http"

	"github.com/alusatu/marketplace/internal/auth"
	"github.com/alusatu/marketplace/internal/storage"
)

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	var req struct {
		Items      []storage.CartItem `json:"items"`
		Total      float64            `json:"total"`
		TotalItems int                `json:"totalItems"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "Order must contain at least one item")
		return
	}

	order, err := s.store.CreateOrder(r.Context(), storage.Order{
		UserID:     user.ID,
		Username:   user.Username,
		Items:      req.Items,
		Total:      req.Total,
		TotalItems: req.TotalItems,
		Status:     storage.OrderPaid,
	})
	if err != nil {
		s.internalError(w, err, "Failed to create order")
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) myOrders(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	orders, err := s.store.ListOrdersByUser(r.Context(), user.ID)
	if err != nil {
		s.internalError(w, err, "Failed to load orders")
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) allOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.store.ListOrders(r.Context())
	if err != nil {
		s.internalError(w, err, "Failed to load orders")
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status storage.OrderStatus `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid order status")
		return
	}
	order, err := s.store.UpdateOrderStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Order not found")
			return
		}
		s.internalError(w, err, "Failed to update order")
		return
	}
	writeJSON(w, http.StatusOK, order)
}
