package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"service-marketplace-server/models"
	"service-marketplace-server/repository"
	"service-marketplace-server/services"
	"service-marketplace-server/testutil"
)

type mapCache struct {
	mu    sync.Mutex
	items map[uint]models.Service
	hits  int
}

func newMapCache() *mapCache { return &mapCache{items: map[uint]models.Service{}} }

func (c *mapCache) GetService(_ context.Context, id uint) (*models.Service, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.items[id]
	if ok {
		c.hits++
	}
	return &s, ok
}

func (c *mapCache) SetService(_ context.Context, s *models.Service) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[s.ID] = *s
}

func (c *mapCache) InvalidateService(_ context.Context, id uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
}

func newCatalog(t *testing.T, cache services.ServiceCache) (*services.Catalog, *testutil.Fixtures) {
	t.Helper()
	db := testutil.NewDB(t)
	return services.NewCatalog(repository.NewStore(db), cache, nil), testutil.NewFixtures(t, db)
}

func TestFindServiceUsesCache(t *testing.T) {
	cache := newMapCache()
	catalog, fx := newCatalog(t, cache)
	ctx := context.Background()
	service := fx.Service("plumbing", 80)

	got, err := catalog.FindService(ctx, service.ID)
	require.NoError(t, err)
	assert.Equal(t, service.Name, got.Name)
	assert.Equal(t, 0, cache.hits)

	_, err = catalog.FindService(ctx, service.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)

	catalog.InvalidateService(ctx, service.ID)
	_, ok := cache.GetService(ctx, service.ID)
	assert.False(t, ok)

	_, err = catalog.FindService(ctx, 999)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestFindAvailableProfessionals(t *testing.T) {
	catalog, fx := newCatalog(t, nil)
	ctx := context.Background()
	best := fx.Professional("plumbing", func(p *models.Professional) { p.Rating, p.TotalRatings = 4.8, 10 })
	other := fx.Professional("plumbing", func(p *models.Professional) {
		p.Location = "Uptown"
		p.Rating, p.TotalRatings = 4.1, 3
	})
	fx.Professional("plumbing", func(p *models.Professional) { p.IsAvailable = false })
	fx.Professional("plumbing", func(p *models.Professional) { p.IsVerified = false })
	fx.Professional("cleaning")

	all, err := catalog.FindAvailableProfessionals(ctx, "plumbing", nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, best.Account.ID, all[0].AccountID)
	assert.Equal(t, other.Account.ID, all[1].AccountID)

	uptown := "uptown"
	near, err := catalog.FindAvailableProfessionals(ctx, "plumbing", &uptown)
	require.NoError(t, err)
	require.Len(t, near, 1)
	assert.Equal(t, other.Account.ID, near[0].AccountID)
}

func TestSearchValidatesRanges(t *testing.T) {
	catalog, fx := newCatalog(t, nil)
	ctx := context.Background()
	fx.Service("plumbing", 80)
	fx.Service("plumbing", 150)

	low, high := 100.0, 50.0
	_, err := catalog.SearchServices(ctx, repository.ServiceFilter{MinPrice: &low, MaxPrice: &high})
	assert.ErrorIs(t, err, services.ErrValidation)

	found, err := catalog.SearchServices(ctx, repository.ServiceFilter{MinPrice: &low})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.InDelta(t, 150.0, found[0].BasePrice, 1e-9)

	bad := 7.0
	_, err = catalog.SearchProfessionals(ctx, repository.ProfessionalFilter{MinRating: &bad})
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestServiceAdministration(t *testing.T) {
	cache := newMapCache()
	catalog, fx := newCatalog(t, cache)
	ctx := context.Background()
	admin := adminActor(fx.Admin())
	customer := customerActor(fx.Customer())

	service := &models.Service{Name: " Deep clean ", BasePrice: 120, ServiceType: "cleaning", IsActive: true}
	assert.ErrorIs(t, catalog.CreateService(ctx, customer, service), services.ErrUnauthorized)
	assert.ErrorIs(t, catalog.CreateService(ctx, admin, &models.Service{Name: "x", BasePrice: -1}), services.ErrValidation)

	require.NoError(t, catalog.CreateService(ctx, admin, service))
	assert.NotZero(t, service.ID)
	assert.Equal(t, "Deep clean", service.Name)

	_, err := catalog.FindService(ctx, service.ID)
	require.NoError(t, err)

	service.BasePrice = 140
	require.NoError(t, catalog.UpdateService(ctx, admin, service))
	got, err := catalog.FindService(ctx, service.ID)
	require.NoError(t, err)
	assert.InDelta(t, 140.0, got.BasePrice, 1e-9)

	require.NoError(t, catalog.DeactivateService(ctx, admin, service.ID))
	active, err := catalog.SearchServices(ctx, repository.ServiceFilter{ServiceType: "cleaning"})
	require.NoError(t, err)
	assert.Empty(t, active)

	assert.ErrorIs(t, catalog.DeactivateService(ctx, admin, 999), services.ErrNotFound)
}

func TestCreateInactiveService(t *testing.T) {
	catalog, fx := newCatalog(t, nil)
	ctx := context.Background()
	admin := adminActor(fx.Admin())

	service := &models.Service{Name: "Draft", BasePrice: 10, ServiceType: "cleaning"}
	require.NoError(t, catalog.CreateService(ctx, admin, service))
	assert.False(t, fx.ReloadService(service.ID).IsActive)
}
