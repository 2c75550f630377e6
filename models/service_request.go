package models

import "time"

type RequestStatus string

const (
	RequestStatusRequested RequestStatus = "requested"
	RequestStatusAssigned  RequestStatus = "assigned"
	RequestStatusCompleted RequestStatus = "completed"
)

// ServiceRequest references its service, customer and professional by id only.
type ServiceRequest struct {
	ID             uint          `json:"id" gorm:"primaryKey"`
	ServiceID      uint          `json:"service_id" gorm:"not null;index"`
	CustomerID     uint          `json:"customer_id" gorm:"not null;index"`
	ProfessionalID *uint         `json:"professional_id,omitempty" gorm:"index"`
	Status         RequestStatus `json:"status" gorm:"type:varchar(20);not null;default:'requested';index"`
	DesiredDate    *time.Time    `json:"desired_date,omitempty"`
	Location       string        `json:"location" gorm:"type:varchar(200)"`
	Remarks        string        `json:"remarks" gorm:"type:text"`
	Rating         *int          `json:"rating,omitempty"`
	Review         *string       `json:"review,omitempty" gorm:"type:text"`
	CreatedAt      time.Time     `json:"created_at"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

func (ServiceRequest) TableName() string {
	return "service_requests"
}

// IsAssignedTo reports whether professionalID is the assigned professional.
func (r *ServiceRequest) IsAssignedTo(professionalID uint) bool {
	return r.ProfessionalID != nil && *r.ProfessionalID == professionalID
}

func (r *ServiceRequest) IsReviewed() bool {
	return r.Rating != nil
}
