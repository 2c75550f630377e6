package models

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentMethodCreditCard PaymentMethod = "credit_card"
	PaymentMethodDebitCard  PaymentMethod = "debit_card"
	PaymentMethodUPI        PaymentMethod = "upi"
	PaymentMethodNetBanking PaymentMethod = "net_banking"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCreditCard, PaymentMethodDebitCard, PaymentMethodUPI, PaymentMethodNetBanking:
		return true
	default:
		return false
	}
}

// Payment is the settlement record of one completed request.
type Payment struct {
	ID               uint          `json:"id" gorm:"primaryKey"`
	ServiceRequestID uint          `json:"service_request_id" gorm:"not null;uniqueIndex"`
	CustomerID       uint          `json:"customer_id" gorm:"not null;index"`
	ProfessionalID   uint          `json:"professional_id" gorm:"not null;index"`
	Amount           float64       `json:"amount" gorm:"type:decimal(10,2);not null"`
	Status           PaymentStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	PaymentMethod    PaymentMethod `json:"payment_method" gorm:"type:varchar(50);not null"`
	TransactionID    *string       `json:"transaction_id,omitempty" gorm:"type:varchar(100);uniqueIndex"`
	InvoiceNumber    string        `json:"invoice_number" gorm:"type:varchar(50);not null;uniqueIndex"`
	PaymentDetails   string        `json:"-" gorm:"type:text"`
	RefundReason     string        `json:"refund_reason,omitempty" gorm:"type:text"`
	CreatedAt        time.Time     `json:"created_at"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
	RefundedAt       *time.Time    `json:"refunded_at,omitempty"`
}

func (Payment) TableName() string {
	return "payments"
}

// Invoice is a read model built from a Payment and the entities it references.
type Invoice struct {
	InvoiceNumber string              `json:"invoice_number"`
	Date          string              `json:"date"`
	Customer      InvoiceCustomer     `json:"customer"`
	Professional  InvoiceProfessional `json:"professional"`
	Service       InvoiceService      `json:"service"`
	Amount        float64             `json:"amount"`
	Status        PaymentStatus       `json:"status"`
	PaymentMethod PaymentMethod       `json:"payment_method"`
	TransactionID string              `json:"transaction_id"`
}

type InvoiceCustomer struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

type InvoiceProfessional struct {
	Name        string `json:"name"`
	ServiceType string `json:"service_type"`
}

type InvoiceService struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
