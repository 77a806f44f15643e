package sqlite

import (
	"context"
	"fmt"

	"github.com/alusatu/marketplace/internal/storage"
)

// GetCart returns the user's cart in insertion order.
func (s *Store) GetCart(ctx context.Context, userID string) ([]storage.CartItem, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.cart(ctx, s.sqlDB, userID)
}

// AddCartItem adds item or increases the quantity of an existing line.
// A non-positive quantity counts as one.
func (s *Store) AddCartItem(ctx context.Context, userID string, item storage.CartItem) ([]storage.CartItem, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if item.ProductID == "" {
		return nil, fmt.Errorf("product id is required")
	}
	if item.Quantity <= 0 {
		item.Quantity = 1
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO cart_items (user_id, product_id, name, price, image, quantity, added_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, product_id) DO UPDATE SET
		   quantity = cart_items.quantity + excluded.quantity`,
		userID, string(item.ProductID), item.Name, item.Price, item.Image, item.Quantity, toMillis(s.now()),
	)
	if err != nil {
		return nil, fmt.Errorf("add cart item: %w", err)
	}
	return s.cart(ctx, s.sqlDB, userID)
}

// SetCartQuantity sets the quantity of a line, removing it when quantity <= 0.
// Unknown products leave the cart unchanged.
func (s *Store) SetCartQuantity(ctx context.Context, userID string, productID storage.ProductID, quantity int) ([]storage.CartItem, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return s.RemoveCartItem(ctx, userID, productID)
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		`UPDATE cart_items SET quantity = ? WHERE user_id = ? AND product_id = ?`,
		quantity, userID, string(productID),
	); err != nil {
		return nil, fmt.Errorf("set cart quantity: %w", err)
	}
	return s.cart(ctx, s.sqlDB, userID)
}

// RemoveCartItem drops a line from the cart.
func (s *Store) RemoveCartItem(ctx context.Context, userID string, productID storage.ProductID) ([]storage.CartItem, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = ? AND product_id = ?`,
		userID, string(productID),
	); err != nil {
		return nil, fmt.Errorf("remove cart item: %w", err)
	}
	return s.cart(ctx, s.sqlDB, userID)
}

// ClearCart empties the user's cart.
func (s *Store) ClearCart(ctx context.Context, userID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (s *Store) cart(ctx context.Context, q querier, userID string) ([]storage.CartItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT product_id, name, price, image, quantity
		 FROM cart_items WHERE user_id = ?
		 ORDER BY added_at, rowid`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	defer rows.Close()

	items := []storage.CartItem{}
	for rows.Next() {
		var item storage.CartItem
		var productID string
		if err := rows.Scan(&productID, &item.Name, &item.Price, &item.Image, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		item.ProductID = storage.ProductID(productID)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return items, nil
}

// ListFavorites returns the user's favorite product ids in insertion order.
func (s *Store) ListFavorites(ctx context.Context, userID string) ([]storage.ProductID, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT product_id FROM favorites WHERE user_id = ? ORDER BY added_at, rowid`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	ids := []storage.ProductID{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		ids = append(ids, storage.ProductID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return ids, nil
}

// AddFavorite records a favorite. Adding an existing favorite is a no-op.
func (s *Store) AddFavorite(ctx context.Context, userID string, productID storage.ProductID) ([]storage.ProductID, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if productID == "" {
		return nil, fmt.Errorf("product id is required")
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO favorites (user_id, product_id, added_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, product_id) DO NOTHING`,
		userID, string(productID), toMillis(s.now()),
	); err != nil {
		return nil, fmt.Errorf("add favorite: %w", err)
	}
	return s.ListFavorites(ctx, userID)
}

// RemoveFavorite drops a favorite.
func (s *Store) RemoveFavorite(ctx context.Context, userID string, productID storage.ProductID) ([]storage.ProductID, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = ? AND product_id = ?`,
		userID, string(productID),
	); err != nil {
		return nil, fmt.Errorf("remove favorite: %w", err)
	}
	return s.ListFavorites(ctx, userID)
}
