package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"service-marketplace-server/models"
)

type serviceRepository struct {
	db *gorm.DB
}

func (r *serviceRepository) FindByID(ctx context.Context, id uint) (*models.Service, error) {
	var service models.Service
	if err := r.db.WithContext(ctx).First(&service, id).Error; err != nil {
		return nil, translate(err)
	}
	return &service, nil
}

func (r *serviceRepository) FindForUpdate(ctx context.Context, id uint) (*models.Service, error) {
	var service models.Service
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&service, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &service, nil
}

func (r *serviceRepository) Search(ctx context.Context, filter ServiceFilter) ([]models.Service, error) {
	var services []models.Service
	err := filter.scope(r.db.WithContext(ctx).Model(&models.Service{})).
		Order("rating DESC").Order("id").
		Find(&services).Error
	return services, translate(err)
}

func (r *serviceRepository) Create(ctx context.Context, service *models.Service) error {
	return translate(r.db.WithContext(ctx).Create(service).Error)
}

func (r *serviceRepository) Update(ctx context.Context, service *models.Service) error {
	res := r.db.WithContext(ctx).Model(&models.Service{}).
		Where("id = ?", service.ID).
		Select("name", "description", "base_price", "time_required", "service_type",
			"tags", "min_price", "max_price", "location_coverage", "is_active").
		Updates(service)
	return requireRow(res)
}

func (r *serviceRepository) SetActive(ctx context.Context, id uint, active bool) error {
	res := r.db.WithContext(ctx).Model(&models.Service{}).
		Where("id = ?", id).
		Update("is_active", active)
	return requireRow(res)
}

func (r *serviceRepository) UpdateRating(ctx context.Context, id uint, mean float64, count int) error {
	res := r.db.WithContext(ctx).Model(&models.Service{}).
		Where("id = ?", id).
		Updates(map[string]any{"rating": mean, "total_ratings": count})
	return requireRow(res)
}

func (r *serviceRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Service{}).Count(&n).Error
	return n, translate(err)
}
