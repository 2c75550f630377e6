package repository

import (
	"strings"

	"gorm.io/gorm"

	"service-marketplace-server/models"
)

type ServiceFilter struct {
	Query           string
	ServiceType     string
	Location        string
	MinPrice        *float64
	MaxPrice        *float64
	IncludeInactive bool
}

type ProfessionalFilter struct {
	ServiceType   string
	Location      string
	Pincode       string
	Language      string
	MinRating     *float64
	MaxHourlyRate *float64
	// IncludeUnavailable lifts the verified and available restriction.
	IncludeUnavailable bool
}

type RequestFilter struct {
	CustomerID     uint
	ProfessionalID uint
	Statuses       []models.RequestStatus
	// ServiceType restricts to requests for services of that type.
	ServiceType string
	Unassigned  bool
}

type PaymentFilter struct {
	CustomerID     uint
	ProfessionalID uint
	Statuses       []models.PaymentStatus
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// likePattern matches term as a literal substring; pair it with likeEscape.
func likePattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(term))) + "%"
}

const likeEscape = ` ESCAPE '\'`

func (f ServiceFilter) scope(db *gorm.DB) *gorm.DB {
	if !f.IncludeInactive {
		db = db.Where("is_active = ?", true)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		p := likePattern(q)
		db = db.Where("LOWER(name) LIKE ?"+likeEscape+" OR LOWER(description) LIKE ?"+likeEscape+" OR LOWER(tags) LIKE ?"+likeEscape, p, p, p)
	}
	if f.ServiceType != "" {
		db = db.Where("service_type = ?", f.ServiceType)
	}
	if loc := strings.TrimSpace(f.Location); loc != "" {
		db = db.Where("LOWER(location_coverage) LIKE ?"+likeEscape, likePattern(loc))
	}
	if f.MinPrice != nil {
		db = db.Where("base_price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		db = db.Where("base_price <= ?", *f.MaxPrice)
	}
	return db
}

func (f ProfessionalFilter) scope(db *gorm.DB) *gorm.DB {
	if !f.IncludeUnavailable {
		db = db.Where("is_verified = ? AND is_available = ?", true, true)
	}
	if f.ServiceType != "" {
		db = db.Where("service_type = ?", f.ServiceType)
	}
	if loc := strings.TrimSpace(f.Location); loc != "" {
		p := likePattern(loc)
		db = db.Where("LOWER(location) LIKE ?"+likeEscape+" OR LOWER(service_area) LIKE ?"+likeEscape, p, p)
	}
	if f.Pincode != "" {
		db = db.Where("pincode = ?", f.Pincode)
	}
	if lang := strings.TrimSpace(f.Language); lang != "" {
		db = db.Where("LOWER(languages) LIKE ?"+likeEscape, likePattern(lang))
	}
	if f.MinRating != nil {
		db = db.Where("rating >= ?", *f.MinRating)
	}
	if f.MaxHourlyRate != nil {
		db = db.Where("hourly_rate <= ?", *f.MaxHourlyRate)
	}
	return db
}

func (f RequestFilter) scope(db *gorm.DB) *gorm.DB {
	if f.ServiceType != "" {
		db = db.Joins("JOIN services ON services.id = service_requests.service_id").
			Where("services.service_type = ?", f.ServiceType)
	}
	if f.CustomerID != 0 {
		db = db.Where("service_requests.customer_id = ?", f.CustomerID)
	}
	if f.ProfessionalID != 0 {
		db = db.Where("service_requests.professional_id = ?", f.ProfessionalID)
	}
	if len(f.Statuses) > 0 {
		db = db.Where("service_requests.status IN ?", f.Statuses)
	}
	if f.Unassigned {
		db = db.Where("service_requests.professional_id IS NULL")
	}
	return db
}

func (f PaymentFilter) scope(db *gorm.DB) *gorm.DB {
	if f.CustomerID != 0 {
		db = db.Where("customer_id = ?", f.CustomerID)
	}
	if f.ProfessionalID != 0 {
		db = db.Where("professional_id = ?", f.ProfessionalID)
	}
	if len(f.Statuses) > 0 {
		db = db.Where("status IN ?", f.Statuses)
	}
	return db
}
