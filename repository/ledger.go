package repository

import (
	"context"

	"gorm.io/gorm"

	"service-marketplace-server/models"
)

type ledgerRepository struct {
	db *gorm.DB
}

func (r *ledgerRepository) AddEarnings(ctx context.Context, professionalID uint, amount float64) error {
	res := r.db.WithContext(ctx).Model(&models.Professional{}).
		Where("account_id = ?", professionalID).
		UpdateColumn("total_earnings", gorm.Expr("total_earnings + ?", amount))
	return requireRow(res)
}

func (r *ledgerRepository) AddSpend(ctx context.Context, customerID uint, amount float64) error {
	res := r.db.WithContext(ctx).Model(&models.Customer{}).
		Where("account_id = ?", customerID).
		UpdateColumn("total_spent", gorm.Expr("total_spent + ?", amount))
	return requireRow(res)
}

func (r *ledgerRepository) SetCompletionRate(ctx context.Context, professionalID uint, rate float64) error {
	res := r.db.WithContext(ctx).Model(&models.Professional{}).
		Where("account_id = ?", professionalID).
		UpdateColumn("completion_rate", rate)
	return requireRow(res)
}

func (r *ledgerRepository) SetProfessionalRating(ctx context.Context, professionalID uint, mean float64, count int) error {
	res := r.db.WithContext(ctx).Model(&models.Professional{}).
		Where("account_id = ?", professionalID).
		UpdateColumns(map[string]any{"rating": mean, "total_ratings": count})
	return requireRow(res)
}

func (r *ledgerRepository) TotalEarnings(ctx context.Context) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).Model(&models.Professional{}).
		Select("COALESCE(SUM(total_earnings), 0)").
		Scan(&total).Error
	return total, translate(err)
}
