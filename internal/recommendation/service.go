package recommendation

import (
	"context"
	"time"

	"github.com/benvon/hostel-market/internal/database"
	"github.com/benvon/hostel-market/internal/models"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultLimit is the result count used when a caller passes no limit
	DefaultLimit = 10
	// MaxLimit caps the result count of any operation
	MaxLimit = 50

	defaultHistoryLimit  = 100
	defaultCandidatePool = 200
	coViewerLimit        = 50
	coViewScanLimit      = 1000
)

// InteractionSink accepts interactions for persistence
type InteractionSink interface {
	Submit(ctx context.Context, interaction *models.Interaction) error
}

// Feed combines a user's personalized list with trending products.
// ColdStart is set when the user has no usable history.
type Feed struct {
	Personalized []models.ScoredProduct `json:"personalized"`
	Trending     []models.Product       `json:"trending"`
	ColdStart    bool                   `json:"cold_start"`
}

// Service is the recommendation engine. It holds no per-request state and is
// safe for concurrent use.
type Service struct {
	store         Accessor
	sink          InteractionSink
	logger        *zap.Logger
	tracer        trace.Tracer
	now           func() time.Time
	historyLimit  int
	candidatePool int
	defaultLimit  int
}

// Option configures a Service
type Option func(*Service)

// WithHistoryLimit sets how many recent interactions feed the preference profile
func WithHistoryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// WithCandidatePool sets how many available products are considered per request
func WithCandidatePool(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.candidatePool = n
		}
	}
}

// WithDefaultLimit sets the result count used for non-positive limits
func WithDefaultLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.defaultLimit = min(n, MaxLimit)
		}
	}
}

// WithClock replaces the time source used for recency scoring
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTracer replaces the OpenTelemetry tracer
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// NewService creates the recommendation service. When sink is nil and store
// can record interactions itself, writes go straight to the store.
func NewService(store Accessor, sink InteractionSink, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		if direct, ok := store.(InteractionSink); ok {
			sink = direct
		}
	}

	s := &Service{
		store:         store,
		sink:          sink,
		logger:        logger,
		tracer:        otel.Tracer("github.com/benvon/hostel-market/internal/recommendation"),
		now:           time.Now,
		historyLimit:  defaultHistoryLimit,
		candidatePool: defaultCandidatePool,
		defaultLimit:  DefaultLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ClampLimit maps a requested result count into [1, MaxLimit].
// Non-positive values select the default limit.
func (s *Service) ClampLimit(limit int) int {
	if limit <= 0 {
		return s.defaultLimit
	}
	return min(limit, MaxLimit)
}

// PersonalizedRecommendations ranks available products against the user's recent history.
// Users without history get an empty list.
func (s *Service) PersonalizedRecommendations(ctx context.Context, userID uuid.UUID, limit int) []models.ScoredProduct {
	result, _ := s.personalizedWithHistory(ctx, userID, limit)
	return result
}

// personalizedWithHistory also reports whether the user had any usable history
func (s *Service) personalizedWithHistory(ctx context.Context, userID uuid.UUID, limit int) ([]models.ScoredProduct, bool) {
	start := time.Now()
	limit = s.ClampLimit(limit)
	ctx, span := s.tracer.Start(ctx, "recommendation.personalized", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.Int("limit", limit),
	))
	defer span.End()

	result, hasHistory := s.personalized(ctx, userID, limit)

	span.SetAttributes(
		attribute.Int("result.count", len(result)),
		attribute.Bool("history", hasHistory),
	)
	observeRequest("personalized", start, len(result))
	return result, hasHistory
}

func (s *Service) personalized(ctx context.Context, userID uuid.UUID, limit int) ([]models.ScoredProduct, bool) {
	var history Result[[]*models.Interaction]
	var candidates Result[[]*models.Product]

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		history = s.store.RecentInteractions(gctx, userID, s.historyLimit)
		return nil
	})
	g.Go(func() error {
		available := models.ProductStatusAvailable
		candidates = s.store.ListProducts(gctx, database.ProductFilter{
			Status:  &available,
			OrderBy: database.OrderNewest,
			Limit:   s.candidatePool,
		})
		return nil
	})
	_ = g.Wait()

	interactions, ok := history.Get()
	if !ok || len(interactions) == 0 {
		return []models.ScoredProduct{}, false
	}
	pool, ok := candidates.Get()
	if !ok || len(pool) == 0 {
		return []models.ScoredProduct{}, true
	}

	// A failed lookup leaves the profile empty; popularity and recency still score
	seenProducts, _ := s.store.ProductsByIDs(ctx, interactedProducts(interactions)).Get()
	profile := AnalyzePreferences(interactions, indexProducts(seenProducts))

	scores := ScoreCandidates(profile, pool, interactions, s.now())
	s.logger.Debug("personalized_scores_computed",
		zap.String("user_id", userID.String()),
		zap.Int("history", len(interactions)),
		zap.Int("candidates", len(pool)),
		zap.Int("scored", len(scores)),
	)
	return Rank(scores, indexProducts(pool), limit), true
}

// SimilarProducts ranks available products of the reference product's category by similarity.
// An unknown reference yields an empty list.
func (s *Service) SimilarProducts(ctx context.Context, productID uuid.UUID, limit int) []models.ScoredProduct {
	start := time.Now()
	limit = s.ClampLimit(limit)
	ctx, span := s.tracer.Start(ctx, "recommendation.similar", trace.WithAttributes(
		attribute.String("product.id", productID.String()),
		attribute.Int("limit", limit),
	))
	defer span.End()

	result := s.similar(ctx, productID, limit)

	span.SetAttributes(attribute.Int("result.count", len(result)))
	observeRequest("similar", start, len(result))
	return result
}

func (s *Service) similar(ctx context.Context, productID uuid.UUID, limit int) []models.ScoredProduct {
	reference, ok := s.store.Product(ctx, productID).Get()
	if !ok || reference == nil {
		return []models.ScoredProduct{}
	}

	available := models.ProductStatusAvailable
	category := reference.CategoryID
	candidates, _ := s.store.ListProducts(ctx, database.ProductFilter{
		CategoryID: &category,
		Status:     &available,
		ExcludeIDs: []uuid.UUID{reference.ID},
		OrderBy:    database.OrderNewest,
		Limit:      s.candidatePool,
	}).Get()

	return Truncate(ScoreSimilar(reference, candidates), limit)
}

// UsersAlsoViewed returns available products that other viewers of the product also viewed,
// most co-viewed first. excludeUserID is left out of the viewer set; pass uuid.Nil to keep everyone.
func (s *Service) UsersAlsoViewed(ctx context.Context, productID, excludeUserID uuid.UUID, limit int) []models.Product {
	start := time.Now()
	limit = s.ClampLimit(limit)
	ctx, span := s.tracer.Start(ctx, "recommendation.also_viewed", trace.WithAttributes(
		attribute.String("product.id", productID.String()),
		attribute.Int("limit", limit),
	))
	defer span.End()

	result := s.alsoViewed(ctx, productID, excludeUserID, limit)

	span.SetAttributes(attribute.Int("result.count", len(result)))
	observeRequest("also_viewed", start, len(result))
	return result
}

func (s *Service) alsoViewed(ctx context.Context, productID, excludeUserID uuid.UUID, limit int) []models.Product {
	viewers, _ := s.store.CoViewers(ctx, productID, excludeUserID, coViewerLimit).Get()
	if len(viewers) == 0 {
		return []models.Product{}
	}

	viewed, _ := s.store.ViewedBy(ctx, viewers, productID, coViewScanLimit).Get()
	ranked := rankByCoViews(viewed)
	if len(ranked) == 0 {
		return []models.Product{}
	}

	products, _ := s.store.ProductsByIDs(ctx, ranked).Get()
	index := indexProducts(products)

	out := make([]models.Product, 0, min(limit, len(ranked)))
	for _, id := range ranked {
		if len(out) == limit {
			break
		}
		p, ok := index[id]
		if !ok || id == productID || p.Status != models.ProductStatusAvailable {
			continue
		}
		out = append(out, *p)
	}
	return out
}

// TrendingProducts returns the most viewed available products
func (s *Service) TrendingProducts(ctx context.Context, limit int) []models.Product {
	start := time.Now()
	limit = s.ClampLimit(limit)
	ctx, span := s.tracer.Start(ctx, "recommendation.trending", trace.WithAttributes(
		attribute.Int("limit", limit),
	))
	defer span.End()

	available := models.ProductStatusAvailable
	products, _ := s.store.ListProducts(ctx, database.ProductFilter{
		Status:  &available,
		OrderBy: database.OrderMostViewed,
		Limit:   limit,
	}).Get()

	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if p != nil {
			out = append(out, *p)
		}
	}
	out = Truncate(out, limit)

	span.SetAttributes(attribute.Int("result.count", len(out)))
	observeRequest("trending", start, len(out))
	return out
}

// FeedFor fetches the personalized and trending lists concurrently.
// ColdStart means the user has no usable history, not merely an empty personalized list.
func (s *Service) FeedFor(ctx context.Context, userID uuid.UUID, limit int) Feed {
	var feed Feed
	var hasHistory bool

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		feed.Personalized, hasHistory = s.personalizedWithHistory(gctx, userID, limit)
		return nil
	})
	g.Go(func() error {
		feed.Trending = s.TrendingProducts(gctx, limit)
		return nil
	})
	_ = g.Wait()

	feed.ColdStart = !hasHistory
	return feed
}

// TrackInteraction records that the user acted on the product. Invalid input and
// write failures are logged and dropped; the caller is never blocked by them.
func (s *Service) TrackInteraction(ctx context.Context, userID, productID uuid.UUID, kind models.InteractionKind) {
	ctx, span := s.tracer.Start(ctx, "recommendation.track_interaction", trace.WithAttributes(
		attribute.String("kind", string(kind)),
	))
	defer span.End()

	parsed, err := models.ParseInteractionKind(string(kind))
	if err != nil || userID == uuid.Nil || productID == uuid.Nil {
		interactionsTrackedTotal.WithLabelValues("invalid", "rejected").Inc()
		s.logger.Warn("invalid_interaction_dropped",
			zap.String("user_id", userID.String()),
			zap.String("product_id", productID.String()),
			zap.String("kind", string(kind)),
		)
		return
	}

	if s.sink == nil {
		interactionsTrackedTotal.WithLabelValues(string(parsed), "dropped").Inc()
		s.logger.Warn("no_interaction_sink_configured")
		return
	}

	interaction := &models.Interaction{
		ID:        uuid.New(),
		UserID:    userID,
		ProductID: productID,
		Kind:      parsed,
		CreatedAt: s.now(),
	}
	if err := s.sink.Submit(ctx, interaction); err != nil {
		span.RecordError(err)
		interactionsTrackedTotal.WithLabelValues(string(parsed), "dropped").Inc()
		s.logger.Warn("failed_to_track_interaction",
			zap.String("user_id", userID.String()),
			zap.String("product_id", productID.String()),
			zap.String("kind", string(parsed)),
			zap.Error(err),
		)
		return
	}

	interactionsTrackedTotal.WithLabelValues(string(parsed), "accepted").Inc()
}
