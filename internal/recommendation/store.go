package recommendation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/hostel-market/internal/database"
	"github.com/benvon/hostel-market/internal/models"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Result is the outcome of a store read. Present is false when the read failed
// and the value was replaced by its zero value.
type Result[T any] struct {
	Value   T
	Present bool
}

// Found wraps a successfully read value
func Found[T any](v T) Result[T] {
	return Result[T]{Value: v, Present: true}
}

// Missing returns an absent result
func Missing[T any]() Result[T] {
	return Result[T]{}
}

// Get returns the value and whether it was read
func (r Result[T]) Get() (T, bool) {
	return r.Value, r.Present
}

// Accessor is the engine's view of the external data store. Every read
// degrades to a Missing result instead of returning an error.
type Accessor interface {
	RecentInteractions(ctx context.Context, userID uuid.UUID, limit int) Result[[]*models.Interaction]
	ProductsByIDs(ctx context.Context, ids []uuid.UUID) Result[[]*models.Product]
	Product(ctx context.Context, id uuid.UUID) Result[*models.Product]
	ListProducts(ctx context.Context, filter database.ProductFilter) Result[[]*models.Product]
	CoViewers(ctx context.Context, productID, excludeUserID uuid.UUID, limit int) Result[[]uuid.UUID]
	ViewedBy(ctx context.Context, userIDs []uuid.UUID, excludeProductID uuid.UUID, limit int) Result[[]uuid.UUID]
}

const (
	defaultQueryTimeout = 5 * time.Second
	breakerName         = "recommendation-store"
)

// Store implements Accessor over the Postgres repositories.
// Calls share a circuit breaker so an unreachable database fails fast.
type Store struct {
	products     database.ProductReader
	interactions database.InteractionStore
	logger       *zap.Logger
	timeout      time.Duration
	breaker      *gobreaker.CircuitBreaker[any]
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithQueryTimeout bounds every store call. Zero or negative values keep the default.
func WithQueryTimeout(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithBreakerSettings replaces the circuit breaker configuration
func WithBreakerSettings(st gobreaker.Settings) StoreOption {
	return func(s *Store) {
		s.breaker = newBreaker(st, s.logger)
	}
}

// NewStore creates a Store
func NewStore(products database.ProductReader, interactions database.InteractionStore, logger *zap.Logger, opts ...StoreOption) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		products:     products,
		interactions: interactions,
		logger:       logger,
		timeout:      defaultQueryTimeout,
	}
	s.breaker = newBreaker(gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	}, logger)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newBreaker(st gobreaker.Settings, logger *zap.Logger) *gobreaker.CircuitBreaker[any] {
	if st.Name == "" {
		st.Name = breakerName
	}
	st.IsSuccessful = func(err error) bool {
		// Row-level outcomes and abandoned requests say nothing about store health
		return err == nil ||
			errors.Is(err, database.ErrNotFound) ||
			errors.Is(err, database.ErrAlreadyExists) ||
			errors.Is(err, context.Canceled)
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Info("store_breaker_state_change",
			zap.String("name", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		breakerState.WithLabelValues(name).Set(stateToFloat(to))
	}
	breakerState.WithLabelValues(st.Name).Set(0)
	return gobreaker.NewCircuitBreaker[any](st)
}

// call runs fn under the query timeout and the circuit breaker
func call[T any](ctx context.Context, s *Store, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	out, err := s.breaker.Execute(func() (any, error) {
		qctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return fn(qctx)
	})
	if err != nil {
		return zero, err
	}
	typed, ok := out.(T)
	if !ok {
		return zero, fmt.Errorf("store: unexpected result type %T", out)
	}
	return typed, nil
}

// read performs a store read and degrades failures to a Missing result
func read[T any](ctx context.Context, s *Store, name string, fields []zap.Field, fn func(ctx context.Context) (T, error)) Result[T] {
	v, err := call(ctx, s, fn)
	if err != nil {
		storeFailuresTotal.WithLabelValues(name).Inc()
		s.logger.Warn("store_read_failed", append(fields, zap.String("call", name), zap.Error(err))...)
		return Missing[T]()
	}
	return Found(v)
}

// RecentInteractions returns up to limit of the user's interactions, most recent first
func (s *Store) RecentInteractions(ctx context.Context, userID uuid.UUID, limit int) Result[[]*models.Interaction] {
	return read(ctx, s, "recent_interactions", []zap.Field{zap.String("user_id", userID.String())},
		func(ctx context.Context) ([]*models.Interaction, error) {
			return s.interactions.ListRecentByUser(ctx, userID, limit)
		})
}

// ProductsByIDs returns the products with the given ids
func (s *Store) ProductsByIDs(ctx context.Context, ids []uuid.UUID) Result[[]*models.Product] {
	if len(ids) == 0 {
		return Found[[]*models.Product](nil)
	}
	return read(ctx, s, "products_by_ids", []zap.Field{zap.Int("count", len(ids))},
		func(ctx context.Context) ([]*models.Product, error) {
			return s.products.GetByIDs(ctx, ids)
		})
}

// Product returns a single product. An unknown id yields a Missing result.
func (s *Store) Product(ctx context.Context, id uuid.UUID) Result[*models.Product] {
	p, err := call(ctx, s, func(ctx context.Context) (*models.Product, error) {
		return s.products.GetByID(ctx, id)
	})
	if errors.Is(err, database.ErrNotFound) {
		s.logger.Debug("product_not_found", zap.String("product_id", id.String()))
		return Missing[*models.Product]()
	}
	if err != nil {
		storeFailuresTotal.WithLabelValues("product").Inc()
		s.logger.Warn("store_read_failed",
			zap.String("call", "product"),
			zap.String("product_id", id.String()),
			zap.Error(err),
		)
		return Missing[*models.Product]()
	}
	return Found(p)
}

// ListProducts returns products matching the filter
func (s *Store) ListProducts(ctx context.Context, filter database.ProductFilter) Result[[]*models.Product] {
	return read(ctx, s, "list_products", []zap.Field{zap.Int("limit", filter.Limit)},
		func(ctx context.Context) ([]*models.Product, error) {
			return s.products.List(ctx, filter)
		})
}

// CoViewers returns users other than excludeUserID who viewed the product
func (s *Store) CoViewers(ctx context.Context, productID, excludeUserID uuid.UUID, limit int) Result[[]uuid.UUID] {
	return read(ctx, s, "co_viewers", []zap.Field{zap.String("product_id", productID.String())},
		func(ctx context.Context) ([]uuid.UUID, error) {
			return s.interactions.ListViewers(ctx, productID, excludeUserID, limit)
		})
}

// ViewedBy returns the product ids viewed by the users, one entry per view
func (s *Store) ViewedBy(ctx context.Context, userIDs []uuid.UUID, excludeProductID uuid.UUID, limit int) Result[[]uuid.UUID] {
	if len(userIDs) == 0 {
		return Found[[]uuid.UUID](nil)
	}
	return read(ctx, s, "viewed_by", []zap.Field{zap.Int("users", len(userIDs))},
		func(ctx context.Context) ([]uuid.UUID, error) {
			return s.interactions.ListViewedProducts(ctx, userIDs, excludeProductID, limit)
		})
}

// Submit writes the interaction directly to the store. It implements InteractionSink.
func (s *Store) Submit(ctx context.Context, interaction *models.Interaction) error {
	_, err := call(ctx, s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.interactions.Create(ctx, interaction)
	})
	if err != nil {
		storeFailuresTotal.WithLabelValues("record_interaction").Inc()
		return fmt.Errorf("failed to record interaction: %w", err)
	}
	return nil
}

var _ Accessor = (*Store)(nil)
