package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"service-marketplace-server/models"
)

type paymentRepository struct {
	db *gorm.DB
}

func (r *paymentRepository) FindByID(ctx context.Context, id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, id).Error; err != nil {
		return nil, translate(err)
	}
	return &payment, nil
}

func (r *paymentRepository) FindByRequest(ctx context.Context, requestID uint) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("service_request_id = ?", requestID).
		First(&payment).Error
	if err != nil {
		return nil, translate(err)
	}
	return &payment, nil
}

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return translate(r.db.WithContext(ctx).Create(payment).Error)
}

func (r *paymentRepository) MarkCompleted(ctx context.Context, id uint, transactionID string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentStatusPending).
		Updates(map[string]any{
			"status":         models.PaymentStatusCompleted,
			"transaction_id": transactionID,
			"completed_at":   at,
		})
	return requireRow(res)
}

func (r *paymentRepository) MarkRefunded(ctx context.Context, id uint, reason string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentStatusCompleted).
		Updates(map[string]any{
			"status":        models.PaymentStatusRefunded,
			"refund_reason": reason,
			"refunded_at":   at,
		})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *paymentRepository) List(ctx context.Context, filter PaymentFilter) ([]models.Payment, error) {
	var payments []models.Payment
	err := filter.scope(r.db.WithContext(ctx).Model(&models.Payment{})).
		Order("created_at DESC").Order("id DESC").
		Find(&payments).Error
	return payments, translate(err)
}

func (r *paymentRepository) CountInvoiceSeries(ctx context.Context, base string) (int64, error) {
	return r.countSeries(ctx, "invoice_number", base)
}

func (r *paymentRepository) CountTransactionSeries(ctx context.Context, base string) (int64, error) {
	return r.countSeries(ctx, "transaction_id", base)
}

func (r *paymentRepository) countSeries(ctx context.Context, column, base string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where(column+" = ? OR "+column+" LIKE ?", base, base+"-%").
		Count(&n).Error
	return n, translate(err)
}
