package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"service-marketplace-server/models"
	"service-marketplace-server/observability"
	"service-marketplace-server/repository"
)

const (
	defaultSettleAttempts = 5
	stampLayout           = "20060102150405"
	invoiceDateLayout     = "2006-01-02"
)

type SettlementDeps struct {
	Store    repository.Store
	Ledger   *Ledger
	Notifier Notifier
	Logger   *zap.Logger
	Clock    func() time.Time
	// MaxAttempts bounds the number of invoice numbers tried when the
	// generated one collides with an existing payment.
	MaxAttempts int
}

// SettlementService turns completed requests into payments and keeps the
// ledger in step with them.
type SettlementService struct {
	store       repository.Store
	ledger      *Ledger
	notifier    Notifier
	log         *zap.Logger
	now         func() time.Time
	maxAttempts int
}

func NewSettlementService(deps SettlementDeps) (*SettlementService, error) {
	if deps.Store == nil {
		return nil, errors.New("settlement: store is required")
	}
	if deps.Ledger == nil {
		return nil, errors.New("settlement: ledger is required")
	}
	s := &SettlementService{
		store:       deps.Store,
		ledger:      deps.Ledger,
		notifier:    deps.Notifier,
		log:         deps.Logger,
		now:         deps.Clock,
		maxAttempts: deps.MaxAttempts,
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.log = s.log.Named("settlement")
	if s.now == nil {
		s.now = time.Now
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultSettleAttempts
	}
	return s, nil
}

type SettleInput struct {
	RequestID uint
	Actor     Actor
	Method    models.PaymentMethod
	// Details is stored verbatim alongside the payment.
	Details map[string]any
}

// Settle records the payment for a completed request and credits the
// professional's earnings and the customer's spend in one transaction.
// Either all three writes land or none do.
func (s *SettlementService) Settle(ctx context.Context, in SettleInput) (_ *models.Payment, err error) {
	const op = "settlement.settle"
	ctx, span := observability.StartSpan(ctx, op,
		attribute.Int("request.id", int(in.RequestID)),
		attribute.String("payment.method", string(in.Method)))
	defer func() { observability.EndSpan(span, err) }()

	if !in.Method.Valid() {
		return nil, newError(ErrValidation, op, "unknown payment method %q", in.Method)
	}
	request, err := s.store.Requests().FindByID(ctx, in.RequestID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, wrapError(ErrNotFound, op, err, "request %d", in.RequestID)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if request.Status != models.RequestStatusCompleted || request.ProfessionalID == nil {
		return nil, newError(ErrInvalidTransition, op, "request %d is %s, only completed requests can be settled", request.ID, request.Status)
	}
	if !in.Actor.IsAdmin() && (in.Actor.Role != models.RoleCustomer || in.Actor.ID != request.CustomerID) {
		return nil, newError(ErrUnauthorized, op, "account %d cannot settle request %d", in.Actor.ID, request.ID)
	}
	if err := s.ensureUnsettled(ctx, op, request.ID); err != nil {
		return nil, err
	}
	service, err := s.store.Services().FindByID(ctx, request.ServiceID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, wrapError(ErrNotFound, op, err, "service %d", request.ServiceID)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now().UTC()
	details, err := paymentDetails(in, now)
	if err != nil {
		return nil, wrapError(ErrValidation, op, err, "payment details")
	}

	stamp := now.Format(stampLayout)
	invoiceBase := fmt.Sprintf("INV-%s-%d", stamp, request.CustomerID)
	txnBase := "TXN-" + stamp
	invoiceSeq, err := s.store.Payments().CountInvoiceSeries(ctx, invoiceBase)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	txnSeq, err := s.store.Payments().CountTransactionSeries(ctx, txnBase)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for attempt := int64(0); attempt < int64(s.maxAttempts); attempt++ {
		payment := &models.Payment{
			ServiceRequestID: request.ID,
			CustomerID:       request.CustomerID,
			ProfessionalID:   *request.ProfessionalID,
			Amount:           service.BasePrice,
			Status:           models.PaymentStatusPending,
			PaymentMethod:    in.Method,
			InvoiceNumber:    series(invoiceBase, invoiceSeq+attempt),
			PaymentDetails:   details,
			CreatedAt:        now,
		}
		txnID := series(txnBase, txnSeq+attempt)

		err = s.store.Transaction(ctx, func(tx repository.Store) error {
			if err := tx.Payments().Create(ctx, payment); err != nil {
				return err
			}
			if err := tx.Payments().MarkCompleted(ctx, payment.ID, txnID, now); err != nil {
				return err
			}
			return s.ledger.Credit(ctx, tx, payment.ProfessionalID, payment.CustomerID, payment.Amount)
		})
		if err == nil {
			payment.Status = models.PaymentStatusCompleted
			payment.TransactionID = &txnID
			payment.CompletedAt = &now
			s.log.Info("payment settled",
				zap.Uint("payment_id", payment.ID),
				zap.Uint("request_id", request.ID),
				zap.Float64("amount", payment.Amount),
				zap.String("invoice_number", payment.InvoiceNumber))
			s.notify(ctx, EventPaymentSettled, payment)
			return payment, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			if KindOf(err) != nil {
				return nil, err
			}
			s.log.Error("settlement rolled back", zap.Uint("request_id", request.ID), zap.Error(err))
			return nil, wrapError(ErrSettlementFailure, op, err, "request %d", request.ID)
		}
		if err := s.ensureUnsettled(ctx, op, request.ID); err != nil {
			return nil, err
		}
		s.log.Debug("invoice number taken, retrying",
			zap.String("invoice_number", payment.InvoiceNumber),
			zap.Int64("attempt", attempt+1))
	}
	return nil, wrapError(ErrSettlementFailure, op, err, "no unique invoice number for request %d after %d attempts", request.ID, s.maxAttempts)
}

func (s *SettlementService) ensureUnsettled(ctx context.Context, op string, requestID uint) error {
	existing, err := s.store.Payments().FindByRequest(ctx, requestID)
	switch {
	case err == nil:
		return newError(ErrInvalidTransition, op, "request %d is already settled by payment %d", requestID, existing.ID)
	case repository.IsNotFound(err):
		return nil
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// series returns base for n == 0 and base-n otherwise.
func series(base string, n int64) string {
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, n)
}

func paymentDetails(in SettleInput, at time.Time) (string, error) {
	blob := map[string]any{
		"method":    in.Method,
		"timestamp": at.Format("2006-01-02 15:04:05"),
	}
	if len(in.Details) > 0 {
		blob["details"] = in.Details
	}
	raw, err := json.Marshal(blob)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Refund moves a completed payment to refunded. Only admins may refund.
// Ledger totals are left as they are; earnings and spend still include the
// refunded amount.
func (s *SettlementService) Refund(ctx context.Context, paymentID uint, actor Actor, reason string) (_ *models.Payment, err error) {
	const op = "settlement.refund"
	ctx, span := observability.StartSpan(ctx, op, attribute.Int("payment.id", int(paymentID)))
	defer func() { observability.EndSpan(span, err) }()

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, newError(ErrValidation, op, "refund reason is required")
	}
	payment, err := s.findPayment(ctx, op, paymentID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, newError(ErrUnauthorized, op, "account %d cannot refund payment %d", actor.ID, paymentID)
	}
	if payment.Status != models.PaymentStatusCompleted {
		return nil, newError(ErrInvalidTransition, op, "payment %d is %s, only completed payments can be refunded", paymentID, payment.Status)
	}

	ok, err := s.store.Payments().MarkRefunded(ctx, paymentID, reason, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	refunded, err := s.findPayment(ctx, op, paymentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newError(ErrInvalidTransition, op, "payment %d changed concurrently and is now %s", paymentID, refunded.Status)
	}

	s.log.Info("payment refunded",
		zap.Uint("payment_id", paymentID),
		zap.Uint("actor_id", actor.ID),
		zap.Float64("amount", refunded.Amount))
	s.notify(ctx, EventPaymentRefunded, refunded)
	return refunded, nil
}

// GenerateInvoice builds the invoice view of a payment. It only reads.
func (s *SettlementService) GenerateInvoice(ctx context.Context, paymentID uint) (_ *models.Invoice, err error) {
	const op = "settlement.invoice"
	ctx, span := observability.StartSpan(ctx, op, attribute.Int("payment.id", int(paymentID)))
	defer func() { observability.EndSpan(span, err) }()

	payment, err := s.findPayment(ctx, op, paymentID)
	if err != nil {
		return nil, err
	}
	request, err := s.store.Requests().FindByID(ctx, payment.ServiceRequestID)
	if err != nil {
		return nil, missing(op, err, "request %d", payment.ServiceRequestID)
	}
	service, err := s.store.Services().FindByID(ctx, request.ServiceID)
	if err != nil {
		return nil, missing(op, err, "service %d", request.ServiceID)
	}
	customer, err := s.store.Accounts().FindProfile(ctx, payment.CustomerID)
	if err != nil {
		return nil, missing(op, err, "customer %d", payment.CustomerID)
	}
	customerData, ok := customer.AsCustomer()
	if !ok {
		return nil, newError(ErrNotFound, op, "customer %d", payment.CustomerID)
	}
	professional, err := s.store.Accounts().FindProfile(ctx, payment.ProfessionalID)
	if err != nil {
		return nil, missing(op, err, "professional %d", payment.ProfessionalID)
	}
	professionalData, ok := professional.AsProfessional()
	if !ok {
		return nil, newError(ErrNotFound, op, "professional %d", payment.ProfessionalID)
	}

	invoice := &models.Invoice{
		InvoiceNumber: payment.InvoiceNumber,
		Date:          payment.CreatedAt.Format(invoiceDateLayout),
		Customer: models.InvoiceCustomer{
			Name:    customer.Account.Name(),
			Address: customerData.Address,
			Phone:   customerData.Phone,
		},
		Professional: models.InvoiceProfessional{
			Name:        professional.Account.Name(),
			ServiceType: professionalData.ServiceType,
		},
		Service: models.InvoiceService{
			Name:        service.Name,
			Description: service.Description,
		},
		Amount:        payment.Amount,
		Status:        payment.Status,
		PaymentMethod: payment.PaymentMethod,
	}
	if payment.TransactionID != nil {
		invoice.TransactionID = *payment.TransactionID
	}
	return invoice, nil
}

func (s *SettlementService) Get(ctx context.Context, paymentID uint) (*models.Payment, error) {
	return s.findPayment(ctx, "settlement.get", paymentID)
}

func (s *SettlementService) ListForCustomer(ctx context.Context, customerID uint) ([]models.Payment, error) {
	payments, err := s.store.Payments().List(ctx, repository.PaymentFilter{CustomerID: customerID})
	if err != nil {
		return nil, fmt.Errorf("settlement.list_customer: %w", err)
	}
	return payments, nil
}

func (s *SettlementService) ListForProfessional(ctx context.Context, professionalID uint) ([]models.Payment, error) {
	payments, err := s.store.Payments().List(ctx, repository.PaymentFilter{ProfessionalID: professionalID})
	if err != nil {
		return nil, fmt.Errorf("settlement.list_professional: %w", err)
	}
	return payments, nil
}

// ListAll is the admin view over every payment, optionally by status.
func (s *SettlementService) ListAll(ctx context.Context, statuses ...models.PaymentStatus) ([]models.Payment, error) {
	payments, err := s.store.Payments().List(ctx, repository.PaymentFilter{Statuses: statuses})
	if err != nil {
		return nil, fmt.Errorf("settlement.list: %w", err)
	}
	return payments, nil
}

func (s *SettlementService) findPayment(ctx context.Context, op string, id uint) (*models.Payment, error) {
	payment, err := s.store.Payments().FindByID(ctx, id)
	if err != nil {
		return nil, missing(op, err, "payment %d", id)
	}
	return payment, nil
}

func missing(op string, err error, format string, args ...any) error {
	if repository.IsNotFound(err) {
		return wrapError(ErrNotFound, op, err, format, args...)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *SettlementService) notify(ctx context.Context, typ EventType, payment *models.Payment) {
	s.notifier.Notify(ctx, Event{
		Type:           typ,
		RequestID:      payment.ServiceRequestID,
		PaymentID:      payment.ID,
		CustomerID:     payment.CustomerID,
		ProfessionalID: payment.ProfessionalID,
		Status:         string(payment.Status),
		OccurredAt:     s.now(),
	})
}
