package services

import (
	"context"
	"time"
)

type EventType string

const (
	EventRequestCreated   EventType = "request.created"
	EventRequestAssigned  EventType = "request.assigned"
	EventRequestCompleted EventType = "request.completed"
	EventRequestReviewed  EventType = "request.reviewed"
	EventPaymentSettled   EventType = "payment.settled"
	EventPaymentRefunded  EventType = "payment.refunded"
)

// Event describes a lifecycle change after it has been committed.
type Event struct {
	Type           EventType `json:"type"`
	RequestID      uint      `json:"request_id"`
	PaymentID      uint      `json:"payment_id,omitempty"`
	CustomerID     uint      `json:"customer_id"`
	ProfessionalID uint      `json:"professional_id,omitempty"`
	ServiceType    string    `json:"service_type,omitempty"`
	Status         string    `json:"status"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Notifier receives committed lifecycle events. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) {}
