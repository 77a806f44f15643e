package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alusatu/marketplace/internal/storage"
)

const orderColumns = `id, user_id, username, items_json, total, total_items, status, created_at`

// CreateOrder stores the order and clears the owner's cart in one transaction.
// Orders without a status default to paid.
func (s *Store) CreateOrder(ctx context.Context, order storage.Order) (storage.Order, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Order{}, err
	}
	if order.UserID == "" {
		return storage.Order{}, fmt.Errorf("user id is required")
	}
	if order.Status == "" {
		order.Status = storage.OrderPaid
	}
	if !order.Status.Valid() {
		return storage.Order{}, fmt.Errorf("invalid order status %q", order.Status)
	}
	if order.Items == nil {
		order.Items = []storage.CartItem{}
	}
	if order.ID == "" {
		order.ID = s.newID()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = s.now()
	}
	order.CreatedAt = fromMillis(toMillis(order.CreatedAt))

	items, err := encodeJSON(order.Items)
	if err != nil {
		return storage.Order{}, fmt.Errorf("encode order items: %w", err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.Order{}, fmt.Errorf("begin create order: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.UserID, order.Username, items, order.Total, order.TotalItems,
		string(order.Status), toMillis(order.CreatedAt),
	); err != nil {
		if isUniqueViolation(err) {
			return storage.Order{}, storage.ErrAlreadyExists
		}
		return storage.Order{}, fmt.Errorf("create order: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = ?`, order.UserID); err != nil {
		return storage.Order{}, fmt.Errorf("clear cart: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return storage.Order{}, fmt.Errorf("commit create order: %w", err)
	}
	return order, nil
}

// ListOrdersByUser returns the user's orders, newest first.
func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]storage.Order, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.listOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`,
		userID,
	)
}

// ListOrders returns every order, newest first.
func (s *Store) ListOrders(ctx context.Context) ([]storage.Order, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.listOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, rowid DESC`)
}

// UpdateOrderStatus changes an order's status and returns the updated order.
func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status storage.OrderStatus) (storage.Order, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Order{}, err
	}
	if !status.Valid() {
		return storage.Order{}, fmt.Errorf("invalid order status %q", status)
	}
	res, err := s.sqlDB.ExecContext(ctx, `UPDATE orders SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return storage.Order{}, fmt.Errorf("update order status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.Order{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Order{}, storage.ErrNotFound
		}
		return storage.Order{}, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

func (s *Store) listOrders(ctx context.Context, query string, args ...any) ([]storage.Order, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []storage.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func scanOrder(row scanner) (storage.Order, error) {
	var order storage.Order
	var items string
	var status string
	var createdAt int64
	if err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.Username,
		&items,
		&order.Total,
		&order.TotalItems,
		&status,
		&createdAt,
	); err != nil {
		return storage.Order{}, err
	}
	if err := json.Unmarshal([]byte(items), &order.Items); err != nil {
		return storage.Order{}, fmt.Errorf("decode order items: %w", err)
	}
	order.Status = storage.OrderStatus(status)
	order.CreatedAt = fromMillis(createdAt)
	return order, nil
}
