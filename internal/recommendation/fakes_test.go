package recommendation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benvon/hostel-market/internal/database"
	"github.com/benvon/hostel-market/internal/models"
	"github.com/google/uuid"
)

// memoryStore is an in-memory stand-in for the product and interaction repositories
type memoryStore struct {
	mu           sync.Mutex
	products     map[uuid.UUID]*models.Product
	interactions []*models.Interaction

	// Per-call overrides; when set they replace the in-memory behavior
	createErr error
	listErr   error
	historyFn func(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Interaction, error)
}

func newMemoryStore() *memoryStore {
	return &memoryStore{products: make(map[uuid.UUID]*models.Product)}
}

func (m *memoryStore) addProduct(p *models.Product) *models.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = models.ProductStatusAvailable
	}
	m.products[p.ID] = p
	return p
}

func (m *memoryStore) addInteraction(userID, productID uuid.UUID, kind models.InteractionKind, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactions = append(m.interactions, &models.Interaction{
		ID:        uuid.New(),
		UserID:    userID,
		ProductID: productID,
		Kind:      kind,
		CreatedAt: at,
	})
}

func (m *memoryStore) GetByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return p, nil
}

func (m *memoryStore) GetByIDs(_ context.Context, ids []uuid.UUID) ([]*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryStore) List(_ context.Context, filter database.ProductFilter) ([]*models.Product, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	excluded := make(map[uuid.UUID]bool, len(filter.ExcludeIDs))
	for _, id := range filter.ExcludeIDs {
		excluded[id] = true
	}

	var out []*models.Product
	for _, p := range m.products {
		if filter.CategoryID != nil && p.CategoryID != *filter.CategoryID {
			continue
		}
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		if excluded[p.ID] {
			continue
		}
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool {
		if filter.OrderBy == database.OrderMostViewed && out[i].ViewsCount != out[j].ViewsCount {
			return out[i].ViewsCount > out[j].ViewsCount
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memoryStore) Create(_ context.Context, interaction *models.Interaction) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactions = append(m.interactions, interaction)
	return nil
}

func (m *memoryStore) ListRecentByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Interaction, error) {
	if m.historyFn != nil {
		return m.historyFn(ctx, userID, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Interaction
	for _, i := range m.interactions {
		if i.UserID == userID {
			out = append(out, i)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) ListViewers(_ context.Context, productID, excludeUserID uuid.UUID, limit int) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, i := range m.interactions {
		if i.ProductID != productID || i.Kind != models.InteractionView || i.UserID == excludeUserID || seen[i.UserID] {
			continue
		}
		seen[i.UserID] = true
		out = append(out, i.UserID)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) ListViewedProducts(_ context.Context, userIDs []uuid.UUID, excludeProductID uuid.UUID, limit int) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := make(map[uuid.UUID]bool, len(userIDs))
	for _, id := range userIDs {
		users[id] = true
	}
	var out []uuid.UUID
	for _, i := range m.interactions {
		if users[i.UserID] && i.Kind == models.InteractionView && i.ProductID != excludeProductID {
			out = append(out, i.ProductID)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// mockProducts is a ProductReader with function fields
type mockProducts struct {
	GetByIDFunc  func(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetByIDsFunc func(ctx context.Context, ids []uuid.UUID) ([]*models.Product, error)
	ListFunc     func(ctx context.Context, filter database.ProductFilter) ([]*models.Product, error)
}

func (m *mockProducts) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *mockProducts) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Product, error) {
	return m.GetByIDsFunc(ctx, ids)
}

func (m *mockProducts) List(ctx context.Context, filter database.ProductFilter) ([]*models.Product, error) {
	return m.ListFunc(ctx, filter)
}

// recordingSink captures submitted interactions
type recordingSink struct {
	mu        sync.Mutex
	submitted []*models.Interaction
	err       error
}

func (s *recordingSink) Submit(_ context.Context, interaction *models.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.submitted = append(s.submitted, interaction)
	return nil
}

func price(v float64) *float64 {
	return &v
}

var (
	_ database.ProductReader    = (*memoryStore)(nil)
	_ database.InteractionStore = (*memoryStore)(nil)
	_ database.ProductReader    = (*mockProducts)(nil)
)
