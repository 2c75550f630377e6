package services

import (
	"context"
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

// RequestWorkflowDeps wires the request state machine.
type RequestWorkflowDeps struct {
	Store   repository.Store
	Catalog *Catalog
	Ledger  *Ledger
	// Settlement, when set, settles a request right after completion using
	// the customer's preferred method or AutoSettleMethod.
	Settlement       *SettlementService
	AutoSettleMethod models.PaymentMethod
	Notifier         Notifier
	Logger           *zap.Logger
	Clock            func() time.Time
}

// RequestWorkflow owns the requested → assigned → completed lifecycle and
// the review annotation on completed requests.
type RequestWorkflow struct {
	store      repository.Store
	catalog    *Catalog
	ledger     *Ledger
	settlement *SettlementService
	autoMethod models.PaymentMethod
	notifier   Notifier
	log        *zap.Logger
	now        func() time.Time
}

func NewRequestWorkflow(deps RequestWorkflowDeps) (*RequestWorkflow, error) {
	if deps.Store == nil {
		return nil, errors.New("request workflow: store is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("request workflow: catalog is required")
	}
	if deps.Ledger == nil {
		return nil, errors.New("request workflow: ledger is required")
	}
	if deps.AutoSettleMethod != "" && !deps.AutoSettleMethod.Valid() {
		return nil, fmt.Errorf("request workflow: unknown auto-settle method %q", deps.AutoSettleMethod)
	}
	w := &RequestWorkflow{
		store:      deps.Store,
		catalog:    deps.Catalog,
		ledger:     deps.Ledger,
		settlement: deps.Settlement,
		autoMethod: deps.AutoSettleMethod,
		notifier:   deps.Notifier,
		log:        deps.Logger,
		now:        deps.Clock,
	}
	if w.notifier == nil {
		w.notifier = nopNotifier{}
	}
	if w.log == nil {
		w.log = zap.NewNop()
	}
	w.log = w.log.Named("requests")
	if w.now == nil {
		w.now = time.Now
	}
	return w, nil
}

type CreateRequestInput struct {
	ServiceID   uint
	CustomerID  uint
	DesiredDate *time.Time
	Location    string
	Remarks     string
}

// Completion is the outcome of Complete. The request is completed even when
// SettlementErr is set; Payment is nil unless settlement ran and succeeded.
type Completion struct {
	Request       *models.ServiceRequest `json:"request"`
	Payment       *models.Payment        `json:"payment,omitempty"`
	SettlementErr error                  `json:"-"`
}

func (w *RequestWorkflow) Create(ctx context.Context, in CreateRequestInput) (_ *models.ServiceRequest, err error) {
	const op = "requests.create"
	ctx, span := observability.StartSpan(ctx, op, attribute.Int("service.id", int(in.ServiceID)))
	defer func() { observability.EndSpan(span, err) }()

	service, err := w.catalog.FindService(ctx, in.ServiceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newError(ErrValidation, op, "service %d does not exist", in.ServiceID)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !service.IsActive {
		return nil, newError(ErrValidation, op, "service %d is not active", in.ServiceID)
	}

	profile, err := w.store.Accounts().FindProfile(ctx, in.CustomerID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, newError(ErrValidation, op, "customer %d does not exist", in.CustomerID)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	customer, ok := profile.AsCustomer()
	if !ok {
		return nil, newError(ErrUnauthorized, op, "account %d is not a customer", in.CustomerID)
	}
	if !profile.Account.IsActive {
		return nil, newError(ErrUnauthorized, op, "account %d is blocked", in.CustomerID)
	}

	location := strings.TrimSpace(in.Location)
	if location == "" {
		location = customer.DefaultLocation
	}
	request := &models.ServiceRequest{
		ServiceID:   service.ID,
		CustomerID:  in.CustomerID,
		Status:      models.RequestStatusRequested,
		DesiredDate: in.DesiredDate,
		Location:    location,
		Remarks:     strings.TrimSpace(in.Remarks),
		CreatedAt:   w.now(),
	}
	if err := w.store.Requests().Create(ctx, request); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	w.log.Info("service request created",
		zap.Uint("request_id", request.ID),
		zap.Uint("service_id", service.ID),
		zap.Uint("customer_id", in.CustomerID))
	w.notify(ctx, EventRequestCreated, request, service.ServiceType)
	return request, nil
}

// Accept assigns a requested service request to professionalID. The write
// is conditional on the request still being requested and unassigned;
// losing that race yields ErrConflict.
func (w *RequestWorkflow) Accept(ctx context.Context, requestID, professionalID uint) (_ *models.ServiceRequest, err error) {
	const op = "requests.accept"
	ctx, span := observability.StartSpan(ctx, op,
		attribute.Int("request.id", int(requestID)),
		attribute.Int("professional.id", int(professionalID)))
	defer func() { observability.EndSpan(span, err) }()

	request, err := w.findRequest(ctx, op, requestID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(request.Status, models.RequestStatusAssigned) {
		return nil, newError(ErrInvalidTransition, op, "request %d is %s", requestID, request.Status)
	}

	service, err := w.catalog.FindService(ctx, request.ServiceID)
	if err != nil {
		return nil, opError(op, err)
	}
	if err := w.authorizeProfessional(ctx, op, professionalID, service.ServiceType); err != nil {
		return nil, err
	}

	var updated *models.ServiceRequest
	err = w.store.Transaction(ctx, func(tx repository.Store) error {
		ok, err := tx.Requests().Assign(ctx, requestID, professionalID)
		if err != nil {
			return err
		}
		current, err := tx.Requests().FindByID(ctx, requestID)
		if err != nil {
			return err
		}
		if !ok {
			return newError(ErrConflict, op, "request %d was taken concurrently and is now %s", requestID, current.Status)
		}
		updated = current
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			w.log.Info("accept lost race", zap.Uint("request_id", requestID), zap.Uint("professional_id", professionalID))
		}
		return nil, opError(op, err)
	}

	w.log.Info("service request assigned",
		zap.Uint("request_id", requestID),
		zap.Uint("professional_id", professionalID))
	w.notify(ctx, EventRequestAssigned, updated, service.ServiceType)
	return updated, nil
}

func (w *RequestWorkflow) authorizeProfessional(ctx context.Context, op string, professionalID uint, serviceType string) error {
	profile, err := w.store.Accounts().FindProfile(ctx, professionalID)
	if err != nil {
		if repository.IsNotFound(err) {
			return newError(ErrUnauthorized, op, "account %d does not exist", professionalID)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	professional, ok := profile.AsProfessional()
	switch {
	case !ok:
		return newError(ErrUnauthorized, op, "account %d is not a professional", professionalID)
	case !profile.Account.IsActive:
		return newError(ErrUnauthorized, op, "account %d is blocked", professionalID)
	case !professional.IsVerified:
		return newError(ErrUnauthorized, op, "professional %d is not verified", professionalID)
	case !professional.IsAvailable:
		return newError(ErrUnauthorized, op, "professional %d is not available", professionalID)
	case professional.ServiceType != serviceType:
		return newError(ErrUnauthorized, op, "professional %d offers %q, request needs %q", professionalID, professional.ServiceType, serviceType)
	}
	return nil
}

// Complete marks an assigned request completed by its professional and
// recounts the professional's completion rate in the same transaction.
// Auto-settlement runs afterwards; its failure never undoes completion.
func (w *RequestWorkflow) Complete(ctx context.Context, requestID, professionalID uint) (_ *Completion, err error) {
	const op = "requests.complete"
	ctx, span := observability.StartSpan(ctx, op,
		attribute.Int("request.id", int(requestID)),
		attribute.Int("professional.id", int(professionalID)))
	defer func() { observability.EndSpan(span, err) }()

	request, err := w.findRequest(ctx, op, requestID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(request.Status, models.RequestStatusCompleted) {
		return nil, newError(ErrInvalidTransition, op, "request %d is %s", requestID, request.Status)
	}
	if !request.IsAssignedTo(professionalID) {
		return nil, newError(ErrUnauthorized, op, "request %d is not assigned to professional %d", requestID, professionalID)
	}

	completedAt := w.now()
	var updated *models.ServiceRequest
	var rate float64
	err = w.store.Transaction(ctx, func(tx repository.Store) error {
		ok, err := tx.Requests().Complete(ctx, requestID, professionalID, completedAt)
		if err != nil {
			return err
		}
		current, err := tx.Requests().FindByID(ctx, requestID)
		if err != nil {
			return err
		}
		if !ok {
			return newError(ErrConflict, op, "request %d changed concurrently and is now %s", requestID, current.Status)
		}
		if rate, err = w.ledger.RecountCompletionRate(ctx, tx, professionalID); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, opError(op, err)
	}

	w.log.Info("service request completed",
		zap.Uint("request_id", requestID),
		zap.Uint("professional_id", professionalID),
		zap.Float64("completion_rate", rate))
	w.notify(ctx, EventRequestCompleted, updated, "")

	completion := &Completion{Request: updated}
	if method := w.autoSettleMethodFor(ctx, updated.CustomerID); method != "" {
		payment, err := w.settlement.Settle(ctx, SettleInput{
			RequestID: requestID,
			Actor:     Actor{ID: updated.CustomerID, Role: models.RoleCustomer},
			Method:    method,
			Details:   map[string]any{"trigger": "completion"},
		})
		if err != nil {
			w.log.Warn("auto-settlement failed, request stays completed",
				zap.Uint("request_id", requestID), zap.Error(err))
			completion.SettlementErr = err
		} else {
			completion.Payment = payment
		}
	}
	return completion, nil
}

func (w *RequestWorkflow) autoSettleMethodFor(ctx context.Context, customerID uint) models.PaymentMethod {
	if w.settlement == nil {
		return ""
	}
	customer, err := w.store.Accounts().FindCustomer(ctx, customerID)
	if err == nil {
		if m := models.PaymentMethod(customer.PreferredPaymentMethod); m.Valid() {
			return m
		}
	}
	return w.autoMethod
}

// AttachReview records the customer's rating and review on a completed
// request, once, and folds the rating into the service and professional means.
func (w *RequestWorkflow) AttachReview(ctx context.Context, requestID, customerID uint, rating int, review string) (_ *models.ServiceRequest, err error) {
	const op = "requests.review"
	ctx, span := observability.StartSpan(ctx, op,
		attribute.Int("request.id", int(requestID)),
		attribute.Int("rating", rating))
	defer func() { observability.EndSpan(span, err) }()

	if err := validateRating(op, rating); err != nil {
		return nil, err
	}
	request, err := w.findRequest(ctx, op, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.RequestStatusCompleted {
		return nil, newError(ErrInvalidTransition, op, "request %d is %s, only completed requests can be reviewed", requestID, request.Status)
	}
	if request.CustomerID != customerID {
		return nil, newError(ErrUnauthorized, op, "request %d does not belong to customer %d", requestID, customerID)
	}
	if request.IsReviewed() {
		return nil, newError(ErrInvalidTransition, op, "request %d is already reviewed", requestID)
	}

	review = strings.TrimSpace(review)
	var updated *models.ServiceRequest
	err = w.store.Transaction(ctx, func(tx repository.Store) error {
		ok, err := tx.Requests().AttachReview(ctx, requestID, rating, review)
		if err != nil {
			return err
		}
		if !ok {
			return newError(ErrInvalidTransition, op, "request %d is already reviewed", requestID)
		}

		service, err := tx.Services().FindForUpdate(ctx, request.ServiceID)
		if err != nil {
			if repository.IsNotFound(err) {
				return wrapError(ErrNotFound, op, err, "service %d", request.ServiceID)
			}
			return err
		}
		if err := ApplyRating(service, rating); err != nil {
			return err
		}
		if err := tx.Services().UpdateRating(ctx, service.ID, service.Rating, service.TotalRatings); err != nil {
			return err
		}

		if request.ProfessionalID != nil {
			if _, err := w.ledger.RecordProfessionalRating(ctx, tx, *request.ProfessionalID, rating); err != nil {
				return err
			}
		}

		updated, err = tx.Requests().FindByID(ctx, requestID)
		return err
	})
	if err != nil {
		return nil, opError(op, err)
	}

	w.catalog.InvalidateService(ctx, request.ServiceID)
	w.log.Info("service request reviewed",
		zap.Uint("request_id", requestID),
		zap.Int("rating", rating))
	w.notify(ctx, EventRequestReviewed, updated, "")
	return updated, nil
}

func (w *RequestWorkflow) Get(ctx context.Context, requestID uint) (*models.ServiceRequest, error) {
	return w.findRequest(ctx, "requests.get", requestID)
}

// ListForCustomer returns the customer's requests, optionally limited to statuses.
func (w *RequestWorkflow) ListForCustomer(ctx context.Context, customerID uint, statuses ...models.RequestStatus) ([]models.ServiceRequest, error) {
	requests, err := w.store.Requests().List(ctx, repository.RequestFilter{CustomerID: customerID, Statuses: statuses})
	if err != nil {
		return nil, fmt.Errorf("requests.list_customer: %w", err)
	}
	return requests, nil
}

func (w *RequestWorkflow) ListForProfessional(ctx context.Context, professionalID uint, statuses ...models.RequestStatus) ([]models.ServiceRequest, error) {
	requests, err := w.store.Requests().List(ctx, repository.RequestFilter{ProfessionalID: professionalID, Statuses: statuses})
	if err != nil {
		return nil, fmt.Errorf("requests.list_professional: %w", err)
	}
	return requests, nil
}

// ListOpen returns unassigned requests matching the professional's service type.
func (w *RequestWorkflow) ListOpen(ctx context.Context, professionalID uint) ([]models.ServiceRequest, error) {
	const op = "requests.list_open"
	professional, err := w.store.Accounts().FindProfessional(ctx, professionalID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, newError(ErrUnauthorized, op, "account %d is not a professional", professionalID)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	requests, err := w.store.Requests().List(ctx, repository.RequestFilter{
		Statuses:    []models.RequestStatus{models.RequestStatusRequested},
		ServiceType: professional.ServiceType,
		Unassigned:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return requests, nil
}

func (w *RequestWorkflow) findRequest(ctx context.Context, op string, id uint) (*models.ServiceRequest, error) {
	request, err := w.store.Requests().FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, wrapError(ErrNotFound, op, err, "request %d", id)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return request, nil
}

func (w *RequestWorkflow) notify(ctx context.Context, typ EventType, request *models.ServiceRequest, serviceType string) {
	event := Event{
		Type:        typ,
		RequestID:   request.ID,
		CustomerID:  request.CustomerID,
		ServiceType: serviceType,
		Status:      string(request.Status),
		OccurredAt:  w.now(),
	}
	if request.ProfessionalID != nil {
		event.ProfessionalID = *request.ProfessionalID
	}
	w.notifier.Notify(ctx, event)
}
