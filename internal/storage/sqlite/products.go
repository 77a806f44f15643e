package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/alusatu/marketplace/internal/storage"
)

const productColumns = `id, user_id, username, title, description, price, category, images_json, created_at`

// CreateListedProduct stores a listing. Empty categories become storage.DefaultCategory.
func (s *Store) CreateListedProduct(ctx context.Context, product storage.ListedProduct) (storage.ListedProduct, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ListedProduct{}, err
	}
	product.Title = strings.TrimSpace(product.Title)
	if product.Title == "" {
		return storage.ListedProduct{}, fmt.Errorf("title is required")
	}
	if strings.TrimSpace(product.Category) == "" {
		product.Category = storage.DefaultCategory
	}
	if product.Images == nil {
		product.Images = []string{}
	}
	if product.ID == "" {
		product.ID = s.newID()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = s.now()
	}
	product.CreatedAt = fromMillis(toMillis(product.CreatedAt))

	images, err := encodeJSON(product.Images)
	if err != nil {
		return storage.ListedProduct{}, fmt.Errorf("encode images: %w", err)
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO listed_products (`+productColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.ID, product.UserID, product.Username, product.Title, product.Description,
		product.Price, product.Category, images, toMillis(product.CreatedAt),
	); err != nil {
		if isUniqueViolation(err) {
			return storage.ListedProduct{}, storage.ErrAlreadyExists
		}
		return storage.ListedProduct{}, fmt.Errorf("create listed product: %w", err)
	}
	return product, nil
}

// GetListedProduct returns one listing.
func (s *Store) GetListedProduct(ctx context.Context, id string) (storage.ListedProduct, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ListedProduct{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+productColumns+` FROM listed_products WHERE id = ?`, id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ListedProduct{}, storage.ErrNotFound
		}
		return storage.ListedProduct{}, fmt.Errorf("get listed product: %w", err)
	}
	return product, nil
}

// ListListedProducts returns all listings, newest first.
func (s *Store) ListListedProducts(ctx context.Context) ([]storage.ListedProduct, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.listProducts(ctx, `SELECT `+productColumns+` FROM listed_products ORDER BY created_at DESC, rowid DESC`)
}

// ListListedProductsByUser returns the user's listings, newest first.
func (s *Store) ListListedProductsByUser(ctx context.Context, userID string) ([]storage.ListedProduct, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.listProducts(ctx,
		`SELECT `+productColumns+` FROM listed_products WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`,
		userID,
	)
}

// DeleteListedProduct removes a listing and its reviews.
func (s *Store) DeleteListedProduct(ctx context.Context, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete listed product: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM listed_products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete listed product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM reviews WHERE product_id = ?`, id); err != nil {
		return fmt.Errorf("delete listed product reviews: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete listed product: %w", err)
	}
	return nil
}

func (s *Store) listProducts(ctx context.Context, query string, args ...any) ([]storage.ListedProduct, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list listed products: %w", err)
	}
	defer rows.Close()

	products := []storage.ListedProduct{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listed product: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list listed products: %w", err)
	}
	return products, nil
}

func scanProduct(row scanner) (storage.ListedProduct, error) {
	var product storage.ListedProduct
	var images string
	var createdAt int64
	if err := row.Scan(
		&product.ID,
		&product.UserID,
		&product.Username,
		&product.Title,
		&product.Description,
		&product.Price,
		&product.Category,
		&images,
		&createdAt,
	); err != nil {
		return storage.ListedProduct{}, err
	}
	if err := json.Unmarshal([]byte(images), &product.Images); err != nil {
		return storage.ListedProduct{}, fmt.Errorf("decode images: %w", err)
	}
	product.CreatedAt = fromMillis(createdAt)
	return product, nil
}

// ListReviews returns a product's reviews, newest first.
func (s *Store) ListReviews(ctx context.Context, productID string) ([]storage.Review, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, product_id, author, rating, text, created_at
		 FROM reviews WHERE product_id = ?
		 ORDER BY created_at DESC, rowid DESC`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []storage.Review{}
	for rows.Next() {
		var review storage.Review
		var createdAt int64
		if err := rows.Scan(&review.ID, &review.ProductID, &review.Author, &review.Rating, &review.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		review.CreatedAt = fromMillis(createdAt)
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

// CreateReview stores a review. Rating must be within 1..5.
func (s *Store) CreateReview(ctx context.Context, review storage.Review) (storage.Review, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Review{}, err
	}
	if strings.TrimSpace(review.ProductID) == "" {
		return storage.Review{}, fmt.Errorf("product id is required")
	}
	if review.Rating < 1 || review.Rating > 5 {
		return storage.Review{}, fmt.Errorf("rating must be between 1 and 5 (got %d)", review.Rating)
	}
	if review.ID == "" {
		review.ID = s.newID()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = s.now()
	}
	review.CreatedAt = fromMillis(toMillis(review.CreatedAt))

	if _, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO reviews (id, product_id, author, rating, text, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		review.ID, review.ProductID, review.Author, review.Rating, review.Text, toMillis(review.CreatedAt),
	); err != nil {
		if isUniqueViolation(err) {
			return storage.Review{}, storage.ErrAlreadyExists
		}
		return storage.Review{}, fmt.Errorf("create review: %w", err)
	}
	return review, nil
}

// DeleteReview removes the review id belonging to productID.
func (s *Store) DeleteReview(ctx context.Context, id string, productID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM reviews WHERE id = ? AND product_id = ?`, id, productID)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
