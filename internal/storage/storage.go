// Package storage defines persistence contracts for marketplace state.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness constraint was violated.
	ErrAlreadyExists = errors.New("record already exists")
)

// DefaultCategory is applied to listings created without a category.
const DefaultCategory = "Other"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderPaid, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// User is a registered marketplace account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Phone        string    `json:"phone"`
	City         string    `json:"city"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CartItem is one line of a user's cart. Orders embed the same shape.
type CartItem struct {
	ProductID ProductID `json:"productId"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Image     string    `json:"image"`
	Quantity  int       `json:"quantity"`
}

// Order is a placed order snapshot.
type Order struct {
	ID         string      `json:"id"`
	UserID     string      `json:"userId"`
	Username   string      `json:"username"`
	Items      []CartItem  `json:"items"`
	Total      float64     `json:"total"`
	TotalItems int         `json:"totalItems"`
	Status     OrderStatus `json:"status"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// ListedProduct is a product listed by a marketplace user.
type ListedProduct struct {
	ID          string
	UserID      string
	Username    string
	Title       string
	Description string
	Price       float64
	Category    string
	Images      []string
	CreatedAt   time.Time
}

// Review is a public product review. ProductID may reference a catalog
// product or a listed product.
type Review struct {
	ID        string
	ProductID string
	Author    string
	Rating    int
	Text      string
	CreatedAt time.Time
}

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user User) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	// GetUserByLogin matches the lowercased email or the exact username.
	GetUserByLogin(ctx context.Context, credential string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, user User) (User, error)
	DeleteUser(ctx context.Context, id string) error
}

// CartStore persists per-user carts.
type CartStore interface {
	GetCart(ctx context.Context, userID string) ([]CartItem, error)
	// AddCartItem merges quantities when the product is already present.
	AddCartItem(ctx context.Context, userID string, item CartItem) ([]CartItem, error)
	// SetCartQuantity removes the item when quantity <= 0.
	SetCartQuantity(ctx context.Context, userID string, productID ProductID, quantity int) ([]CartItem, error)
	RemoveCartItem(ctx context.Context, userID string, productID ProductID) ([]CartItem, error)
	ClearCart(ctx context.Context, userID string) error
}

// FavoriteStore persists per-user favorite product ids.
type FavoriteStore interface {
	ListFavorites(ctx context.Context, userID string) ([]ProductID, error)
	AddFavorite(ctx context.Context, userID string, productID ProductID) ([]ProductID, error)
	RemoveFavorite(ctx context.Context, userID string, productID ProductID) ([]ProductID, error)
}

// OrderStore persists orders.
type OrderStore interface {
	// CreateOrder stores the order and clears the owner's cart atomically.
	CreateOrder(ctx context.Context, order Order) (Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]Order, error)
	ListOrders(ctx context.Context) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status OrderStatus) (Order, error)
}

// ProductStore persists user listings.
type ProductStore interface {
	CreateListedProduct(ctx context.Context, product ListedProduct) (ListedProduct, error)
	GetListedProduct(ctx context.Context, id string) (ListedProduct, error)
	ListListedProducts(ctx context.Context) ([]ListedProduct, error)
	ListListedProductsByUser(ctx context.Context, userID string) ([]ListedProduct, error)
	// DeleteListedProduct also removes the product's reviews.
	DeleteListedProduct(ctx context.Context, id string) error
}

// ReviewStore persists product reviews.
type ReviewStore interface {
	ListReviews(ctx context.Context, productID string) ([]Review, error)
	CreateReview(ctx context.Context, review Review) (Review, error)
	DeleteReview(ctx context.Context, id string, productID string) error
}

// Store is the full marketplace persistence surface.
type Store interface {
	UserStore
	CartStore
	FavoriteStore
	OrderStore
	ProductStore
	ReviewStore
	Ping(ctx context.Context) error
	Close() error
}
