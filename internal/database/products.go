package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/benvon/hostel-market/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// ProductOrder selects the ordering of product listings
type ProductOrder string

const (
	// OrderNewest orders by created_at descending
	OrderNewest ProductOrder = "newest"
	// OrderMostViewed orders by views_count descending, newest first on ties
	OrderMostViewed ProductOrder = "most_viewed"
)

// ProductFilter narrows a product listing. Zero fields are not applied.
type ProductFilter struct {
	CategoryID *uuid.UUID
	Status     *models.ProductStatus
	ExcludeIDs []uuid.UUID
	OrderBy    ProductOrder
	Limit      int
}

var productColumns = []string{
	"id", "title", "category_id", "sell_price", "rent_price_per_day",
	"condition", "seller_id", "views_count", "status", "created_at",
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// ProductRepository handles product catalog reads
type ProductRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *DB) *ProductRepository {
	return &ProductRepository{db: db, logger: zap.NewNop()}
}

// SetLogger sets the logger used to report skipped rows
func (r *ProductRepository) SetLogger(logger *zap.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// GetByID retrieves a product by ID
func (r *ProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	query, args, err := psql.Select(productColumns...).From("products").Where(sq.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build product query: %w", err)
	}

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return product, nil
}

// GetByIDs retrieves the products with the given IDs. Missing IDs are ignored.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + strings.Join(productColumns, ", ") + ` FROM products WHERE id = ANY($1::uuid[])`
	rows, err := r.db.QueryContext(ctx, query, pq.StringArray(uuidStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("failed to query products by id: %w", err)
	}
	return r.collect(rows)
}

// List retrieves products matching the filter
func (r *ProductRepository) List(ctx context.Context, filter ProductFilter) ([]*models.Product, error) {
	query, args, err := buildListQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to build product list query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	return r.collect(rows)
}

// IncrementViews bumps the view counter of a product
func (r *ProductRepository) IncrementViews(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `UPDATE products SET views_count = views_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to increment views: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}

	return nil
}

func buildListQuery(filter ProductFilter) (string, []any, error) {
	builder := psql.Select(productColumns...).From("products")

	if filter.CategoryID != nil {
		builder = builder.Where(sq.Eq{"category_id": filter.CategoryID.String()})
	}
	if filter.Status != nil {
		builder = builder.Where(sq.Eq{"status": string(*filter.Status)})
	}
	if len(filter.ExcludeIDs) > 0 {
		builder = builder.Where(sq.NotEq{"id": uuidStrings(filter.ExcludeIDs)})
	}

	switch filter.OrderBy {
	case OrderMostViewed:
		builder = builder.OrderBy("views_count DESC", "created_at DESC", "id")
	default:
		builder = builder.OrderBy("created_at DESC", "id")
	}

	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	return builder.ToSql()
}

// collect scans product rows, skipping rows that fail boundary validation
func (r *ProductRepository) collect(rows *sql.Rows) ([]*models.Product, error) {
	defer func() {
		_ = rows.Close()
	}()

	var products []*models.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			var invalid *invalidRowError
			if errors.As(err, &invalid) {
				r.logger.Warn("skipping_invalid_product_row", zap.Error(err))
				continue
			}
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// invalidRowError marks a row that was read but holds values outside the domain
type invalidRowError struct {
	table string
	id    uuid.UUID
	err   error
}

func (e *invalidRowError) Error() string {
	return fmt.Sprintf("invalid %s row %s: %v", e.table, e.id, e.err)
}

func (e *invalidRowError) Unwrap() error { return e.err }

func scanProduct(row rowScanner) (*models.Product, error) {
	p := &models.Product{}
	var sellPrice, rentPrice sql.NullFloat64
	var condition, status string

	if err := row.Scan(
		&p.ID,
		&p.Title,
		&p.CategoryID,
		&sellPrice,
		&rentPrice,
		&condition,
		&p.SellerID,
		&p.ViewsCount,
		&status,
		&p.CreatedAt,
	); err != nil {
		return nil, err
	}

	if sellPrice.Valid {
		p.SellPrice = &sellPrice.Float64
	}
	if rentPrice.Valid {
		p.RentPricePerDay = &rentPrice.Float64
	}

	var err error
	if p.Condition, err = models.ParseCondition(condition); err != nil {
		return nil, &invalidRowError{table: "products", id: p.ID, err: err}
	}
	if p.Status, err = models.ParseProductStatus(status); err != nil {
		return nil, &invalidRowError{table: "products", id: p.ID, err: err}
	}

	return p, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
