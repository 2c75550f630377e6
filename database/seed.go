package database

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"service-marketplace-server/models"
)

func ptr(v float64) *float64 { return &v }

var catalogSeed = []models.Service{
	{Name: "Leak repair", Description: "Fix leaking taps, pipes and fittings", BasePrice: 80, TimeRequired: 60, ServiceType: "plumbing", Tags: "leak,pipe,tap", MinPrice: ptr(60), MaxPrice: ptr(150), LocationCoverage: "Downtown, Uptown, Riverside"},
	{Name: "Drain unclogging", Description: "Clear blocked sinks, showers and drains", BasePrice: 65, TimeRequired: 45, ServiceType: "plumbing", Tags: "drain,clog,sink", MinPrice: ptr(50), MaxPrice: ptr(120), LocationCoverage: "Downtown, Uptown"},
	{Name: "Deep home cleaning", Description: "Full apartment cleaning including kitchen and bathrooms", BasePrice: 120, TimeRequired: 240, ServiceType: "cleaning", Tags: "home,deep,kitchen", MinPrice: ptr(100), MaxPrice: ptr(250), LocationCoverage: "Downtown, Riverside"},
	{Name: "Sofa shampooing", Description: "Fabric sofa shampoo and dry", BasePrice: 55, TimeRequired: 90, ServiceType: "cleaning", Tags: "sofa,upholstery", LocationCoverage: "Uptown"},
	{Name: "Wiring inspection", Description: "Safety check of household wiring and breakers", BasePrice: 70, TimeRequired: 60, ServiceType: "electrical", Tags: "wiring,safety,breaker", MinPrice: ptr(60), MaxPrice: ptr(140), LocationCoverage: "Downtown, Uptown, Riverside"},
	{Name: "Fan installation", Description: "Install or replace a ceiling fan", BasePrice: 45, TimeRequired: 45, ServiceType: "electrical", Tags: "fan,install", LocationCoverage: "Downtown"},
}

// SeedCatalog inserts the demo services when the catalog is empty and
// reports how many were inserted.
func SeedCatalog(ctx context.Context, db *gorm.DB, log *zap.Logger) (int, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&models.Service{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count services: %w", err)
	}
	if count > 0 {
		log.Info("catalog already populated, skipping seed", zap.Int64("services", count))
		return 0, nil
	}

	services := make([]models.Service, len(catalogSeed))
	copy(services, catalogSeed)
	for i := range services {
		services[i].IsActive = true
	}
	if err := db.WithContext(ctx).Create(&services).Error; err != nil {
		return 0, fmt.Errorf("seed services: %w", err)
	}
	log.Info("catalog seeded", zap.Int("services", len(services)))
	return len(services), nil
}
