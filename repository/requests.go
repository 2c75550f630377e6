package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"service-marketplace-server/models"
)

type requestRepository struct {
	db *gorm.DB
}

func (r *requestRepository) FindByID(ctx context.Context, id uint) (*models.ServiceRequest, error) {
	var request models.ServiceRequest
	if err := r.db.WithContext(ctx).First(&request, id).Error; err != nil {
		return nil, translate(err)
	}
	return &request, nil
}

func (r *requestRepository) Create(ctx context.Context, request *models.ServiceRequest) error {
	return translate(r.db.WithContext(ctx).Create(request).Error)
}

func (r *requestRepository) Assign(ctx context.Context, id, professionalID uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.ServiceRequest{}).
		Where("id = ? AND status = ? AND professional_id IS NULL", id, models.RequestStatusRequested).
		Updates(map[string]any{
			"status":          models.RequestStatusAssigned,
			"professional_id": professionalID,
		})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *requestRepository) Complete(ctx context.Context, id, professionalID uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.ServiceRequest{}).
		Where("id = ? AND status = ? AND professional_id = ?", id, models.RequestStatusAssigned, professionalID).
		Updates(map[string]any{
			"status":       models.RequestStatusCompleted,
			"completed_at": at,
		})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *requestRepository) AttachReview(ctx context.Context, id uint, rating int, review string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.ServiceRequest{}).
		Where("id = ? AND status = ? AND rating IS NULL", id, models.RequestStatusCompleted).
		Updates(map[string]any{
			"rating": rating,
			"review": review,
		})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *requestRepository) List(ctx context.Context, filter RequestFilter) ([]models.ServiceRequest, error) {
	var requests []models.ServiceRequest
	err := filter.scope(r.db.WithContext(ctx).Model(&models.ServiceRequest{})).
		Select("service_requests.*").
		Order("service_requests.created_at DESC").Order("service_requests.id DESC").
		Find(&requests).Error
	return requests, translate(err)
}

// CountForProfessional counts every request ever assigned to the
// professional and how many of those are completed.
func (r *requestRepository) CountForProfessional(ctx context.Context, professionalID uint) (int64, int64, error) {
	var counts struct {
		Total     int64
		Completed int64
	}
	err := r.db.WithContext(ctx).Model(&models.ServiceRequest{}).
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS completed",
			models.RequestStatusCompleted).
		Where("professional_id = ?", professionalID).
		Scan(&counts).Error
	if err != nil {
		return 0, 0, translate(err)
	}
	return counts.Total, counts.Completed, nil
}

func (r *requestRepository) CountByStatus(ctx context.Context, status models.RequestStatus) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ServiceRequest{}).
		Where("status = ?", status).
		Count(&n).Error
	return n, translate(err)
}

func (r *requestRepository) CountPendingReviews(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ServiceRequest{}).
		Where("status = ? AND rating IS NULL", models.RequestStatusCompleted).
		Count(&n).Error
	return n, translate(err)
}
