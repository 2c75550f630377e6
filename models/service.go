package models

import "time"

// Service is an offerable catalog entry.
type Service struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	Name             string    `json:"name" gorm:"type:varchar(100);not null"`
	Description      string    `json:"description" gorm:"type:text"`
	BasePrice        float64   `json:"base_price" gorm:"type:decimal(10,2);not null;check:base_price >= 0"`
	TimeRequired     int       `json:"time_required"` // minutes
	ServiceType      string    `json:"service_type" gorm:"type:varchar(50);index"`
	Tags             string    `json:"tags" gorm:"type:varchar(200)"`
	MinPrice         *float64  `json:"min_price,omitempty" gorm:"type:decimal(10,2)"`
	MaxPrice         *float64  `json:"max_price,omitempty" gorm:"type:decimal(10,2)"`
	LocationCoverage string    `json:"location_coverage" gorm:"type:varchar(500)"`
	IsActive         bool      `json:"is_active" gorm:"default:true"`
	Rating           float64   `json:"rating" gorm:"default:0"`
	TotalRatings     int       `json:"total_ratings" gorm:"default:0"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (Service) TableName() string {
	return "services"
}

func (s *Service) RatingStats() (float64, int) { return s.Rating, s.TotalRatings }

func (s *Service) SetRatingStats(mean float64, count int) {
	s.Rating = mean
	s.TotalRatings = count
}
