package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"service-marketplace-server/models"
	"service-marketplace-server/repository"
)

// ServiceCache is an optional read-through cache for catalog services.
type ServiceCache interface {
	GetService(ctx context.Context, id uint) (*models.Service, bool)
	SetService(ctx context.Context, service *models.Service)
	InvalidateService(ctx context.Context, id uint)
}

// Catalog is the read-mostly registry of services and professionals.
type Catalog struct {
	store repository.Store
	cache ServiceCache
	log   *zap.Logger
}

// NewCatalog builds a Catalog. cache may be nil.
func NewCatalog(store repository.Store, cache ServiceCache, log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{store: store, cache: cache, log: log.Named("catalog")}
}

func (c *Catalog) FindService(ctx context.Context, id uint) (*models.Service, error) {
	const op = "catalog.find_service"
	if c.cache != nil {
		if service, ok := c.cache.GetService(ctx, id); ok {
			return service, nil
		}
	}
	service, err := c.store.Services().FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, wrapError(ErrNotFound, op, err, "service %d", id)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if c.cache != nil {
		c.cache.SetService(ctx, service)
	}
	return service, nil
}

// FindAvailableProfessionals lists verified, available professionals of
// serviceType, optionally near location, best rated first.
func (c *Catalog) FindAvailableProfessionals(ctx context.Context, serviceType string, location *string) ([]models.Professional, error) {
	filter := repository.ProfessionalFilter{ServiceType: serviceType}
	if location != nil {
		filter.Location = *location
	}
	return c.SearchProfessionals(ctx, filter)
}

func (c *Catalog) SearchProfessionals(ctx context.Context, filter repository.ProfessionalFilter) ([]models.Professional, error) {
	if filter.MinRating != nil && (*filter.MinRating < 0 || *filter.MinRating > MaxRating) {
		return nil, newError(ErrValidation, "catalog.search_professionals", "min rating must be between 0 and %d", MaxRating)
	}
	professionals, err := c.store.Accounts().SearchProfessionals(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("catalog.search_professionals: %w", err)
	}
	return professionals, nil
}

func (c *Catalog) SearchServices(ctx context.Context, filter repository.ServiceFilter) ([]models.Service, error) {
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return nil, newError(ErrValidation, "catalog.search_services", "min price %.2f exceeds max price %.2f", *filter.MinPrice, *filter.MaxPrice)
	}
	services, err := c.store.Services().Search(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("catalog.search_services: %w", err)
	}
	return services, nil
}

func validateService(op string, service *models.Service) error {
	service.Name = strings.TrimSpace(service.Name)
	switch {
	case service.Name == "":
		return newError(ErrValidation, op, "name is required")
	case service.BasePrice < 0:
		return newError(ErrValidation, op, "base price must not be negative")
	case service.TimeRequired < 0:
		return newError(ErrValidation, op, "time required must not be negative")
	case service.MinPrice != nil && service.MaxPrice != nil && *service.MinPrice > *service.MaxPrice:
		return newError(ErrValidation, op, "min price exceeds max price")
	}
	return nil
}

func requireAdmin(op string, actor Actor) error {
	if !actor.IsAdmin() {
		return newError(ErrUnauthorized, op, "account %d is not an admin", actor.ID)
	}
	return nil
}

func (c *Catalog) CreateService(ctx context.Context, actor Actor, service *models.Service) error {
	const op = "catalog.create_service"
	if err := requireAdmin(op, actor); err != nil {
		return err
	}
	if err := validateService(op, service); err != nil {
		return err
	}
	service.ID = 0
	service.Rating, service.TotalRatings = 0, 0
	active := service.IsActive
	if err := c.store.Services().Create(ctx, service); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !active {
		if err := c.store.Services().SetActive(ctx, service.ID, false); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		service.IsActive = false
	}
	c.log.Info("service created", zap.Uint("service_id", service.ID), zap.String("service_type", service.ServiceType))
	return nil
}

func (c *Catalog) UpdateService(ctx context.Context, actor Actor, service *models.Service) error {
	const op = "catalog.update_service"
	if err := requireAdmin(op, actor); err != nil {
		return err
	}
	if err := validateService(op, service); err != nil {
		return err
	}
	if err := c.store.Services().Update(ctx, service); err != nil {
		if repository.IsNotFound(err) {
			return wrapError(ErrNotFound, op, err, "service %d", service.ID)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	c.InvalidateService(ctx, service.ID)
	return nil
}

// DeactivateService hides a service from new requests. Existing requests and
// payments keep referencing it.
func (c *Catalog) DeactivateService(ctx context.Context, actor Actor, id uint) error {
	const op = "catalog.deactivate_service"
	if err := requireAdmin(op, actor); err != nil {
		return err
	}
	if err := c.store.Services().SetActive(ctx, id, false); err != nil {
		if repository.IsNotFound(err) {
			return wrapError(ErrNotFound, op, err, "service %d", id)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	c.InvalidateService(ctx, id)
	return nil
}

func (c *Catalog) InvalidateService(ctx context.Context, id uint) {
	if c.cache != nil {
		c.cache.InvalidateService(ctx, id)
	}
}
