package models

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleCustomer     Role = "customer"
	RoleProfessional Role = "professional"
	RoleAdmin        Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleProfessional, RoleAdmin:
		return true
	default:
		return false
	}
}

// Account is the shared identity row. Role-specific data lives in the
// professionals and customers side tables keyed by the same id.
type Account struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Username    string    `json:"username" gorm:"size:64;uniqueIndex;not null"`
	Email       string    `json:"email" gorm:"size:120;uniqueIndex;not null"`
	DisplayName string    `json:"display_name" gorm:"size:100"`
	Role        Role      `json:"role" gorm:"type:varchar(20);not null;index"`
	IsActive    bool      `json:"is_active" gorm:"default:true"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Account) TableName() string {
	return "accounts"
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.Role == "" {
		a.Role = RoleCustomer
	}
	return nil
}

// Name returns the display name, falling back to the username.
func (a *Account) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Username
}

func (a *Account) IsProfessional() bool { return a.Role == RoleProfessional }
func (a *Account) IsCustomer() bool     { return a.Role == RoleCustomer }
func (a *Account) IsAdmin() bool        { return a.Role == RoleAdmin }

// Professional is the professional payload of an Account.
type Professional struct {
	AccountID      uint      `json:"account_id" gorm:"primaryKey;autoIncrement:false"`
	ServiceType    string    `json:"service_type" gorm:"type:varchar(50);index"`
	Experience     int       `json:"experience"`
	Description    string    `json:"description" gorm:"type:text"`
	IsVerified     bool      `json:"is_verified" gorm:"default:false"`
	IsAvailable    bool      `json:"is_available" gorm:"default:true"`
	HourlyRate     float64   `json:"hourly_rate" gorm:"type:decimal(10,2);default:0"`
	TotalEarnings  float64   `json:"total_earnings" gorm:"type:decimal(12,2);default:0"`
	Rating         float64   `json:"rating" gorm:"default:0"`
	TotalRatings   int       `json:"total_ratings" gorm:"default:0"`
	CompletionRate float64   `json:"completion_rate" gorm:"default:0"`
	ResponseTime   *int      `json:"response_time,omitempty"` // minutes
	Location       string    `json:"location" gorm:"type:varchar(200)"`
	Pincode        string    `json:"pincode" gorm:"type:varchar(10);index"`
	ServiceArea    string    `json:"service_area" gorm:"type:varchar(500)"`
	Languages      string    `json:"languages" gorm:"type:varchar(200)"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Professional) TableName() string {
	return "professionals"
}

func (p *Professional) RatingStats() (float64, int) { return p.Rating, p.TotalRatings }

func (p *Professional) SetRatingStats(mean float64, count int) {
	p.Rating = mean
	p.TotalRatings = count
}

// CanServe reports whether the professional may take work of the given type.
func (p *Professional) CanServe(serviceType string) bool {
	return p.IsVerified && p.IsAvailable && p.ServiceType == serviceType
}

// Customer is the customer payload of an Account.
type Customer struct {
	AccountID              uint      `json:"account_id" gorm:"primaryKey;autoIncrement:false"`
	Address                string    `json:"address" gorm:"type:varchar(200)"`
	Phone                  string    `json:"phone" gorm:"type:varchar(20)"`
	DefaultLocation        string    `json:"default_location" gorm:"type:varchar(200)"`
	DefaultPincode         string    `json:"default_pincode" gorm:"type:varchar(10)"`
	PreferredPaymentMethod string    `json:"preferred_payment_method" gorm:"type:varchar(50)"`
	TotalSpent             float64   `json:"total_spent" gorm:"type:decimal(12,2);default:0"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

func (Customer) TableName() string {
	return "customers"
}

// FavoriteProfessional is one entry of a customer's favorites set.
type FavoriteProfessional struct {
	CustomerID     uint      `json:"customer_id" gorm:"primaryKey;autoIncrement:false"`
	ProfessionalID uint      `json:"professional_id" gorm:"primaryKey;autoIncrement:false"`
	CreatedAt      time.Time `json:"created_at"`
}

func (FavoriteProfessional) TableName() string {
	return "favorite_professionals"
}

// AccountProfile pairs an Account with its role payload. Exactly one of
// the payload pointers is set for customers and professionals; admins have none.
type AccountProfile struct {
	Account      Account       `json:"account"`
	Professional *Professional `json:"professional,omitempty"`
	Customer     *Customer     `json:"customer,omitempty"`
}

func (p *AccountProfile) AsProfessional() (*Professional, bool) {
	if p == nil || p.Account.Role != RoleProfessional || p.Professional == nil {
		return nil, false
	}
	return p.Professional, true
}

func (p *AccountProfile) AsCustomer() (*Customer, bool) {
	if p == nil || p.Account.Role != RoleCustomer || p.Customer == nil {
		return nil, false
	}
	return p.Customer, true
}
