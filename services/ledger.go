package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"service-marketplace-server/models"
	"service-marketplace-server/repository"
)

// Ledger maintains the derived counters on professionals and customers:
// earnings, spend, rating and completion rate. It is the only writer of
// those columns.
type Ledger struct {
	store repository.Store
	log   *zap.Logger
}

func NewLedger(store repository.Store, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{store: store, log: log.Named("ledger")}
}

// ProfessionalLedger is a read view of a professional's counters.
type ProfessionalLedger struct {
	ProfessionalID uint    `json:"professional_id"`
	TotalEarnings  float64 `json:"total_earnings"`
	Rating         float64 `json:"rating"`
	TotalRatings   int     `json:"total_ratings"`
	CompletionRate float64 `json:"completion_rate"`
	TotalAssigned  int64   `json:"total_assigned"`
	Completed      int64   `json:"completed"`
}

type CustomerLedger struct {
	CustomerID uint    `json:"customer_id"`
	TotalSpent float64 `json:"total_spent"`
}

// Credit adds amount to the professional's earnings and the customer's
// spend. Both rows must exist; callers run it inside the settlement
// transaction so a failure discards both increments.
func (l *Ledger) Credit(ctx context.Context, tx repository.Store, professionalID, customerID uint, amount float64) error {
	const op = "ledger.credit"
	if amount < 0 {
		return newError(ErrValidation, op, "amount must not be negative, got %.2f", amount)
	}
	if err := tx.Ledger().AddEarnings(ctx, professionalID, amount); err != nil {
		return fmt.Errorf("%s: professional %d earnings: %w", op, professionalID, err)
	}
	if err := tx.Ledger().AddSpend(ctx, customerID, amount); err != nil {
		return fmt.Errorf("%s: customer %d spend: %w", op, customerID, err)
	}
	return nil
}

// RecountCompletionRate recomputes the professional's completion rate from
// a full count of their requests.
func (l *Ledger) RecountCompletionRate(ctx context.Context, tx repository.Store, professionalID uint) (float64, error) {
	total, completed, err := tx.Requests().CountForProfessional(ctx, professionalID)
	if err != nil {
		return 0, fmt.Errorf("ledger.recount: count requests for %d: %w", professionalID, err)
	}
	rate := CompletionRate(total, completed)
	if err := tx.Ledger().SetCompletionRate(ctx, professionalID, rate); err != nil {
		return 0, fmt.Errorf("ledger.recount: store rate for %d: %w", professionalID, err)
	}
	return rate, nil
}

// RecordProfessionalRating locks the professional row and folds rating
// into its running mean.
func (l *Ledger) RecordProfessionalRating(ctx context.Context, tx repository.Store, professionalID uint, rating int) (*models.Professional, error) {
	const op = "ledger.rate"
	professional, err := tx.Accounts().FindProfessionalForUpdate(ctx, professionalID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, wrapError(ErrNotFound, op, err, "professional %d", professionalID)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ApplyRating(professional, rating); err != nil {
		return nil, err
	}
	if err := tx.Ledger().SetProfessionalRating(ctx, professionalID, professional.Rating, professional.TotalRatings); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return professional, nil
}

// RecountAll refreshes every professional's completion rate and returns how
// many were updated. Each professional is recounted in its own transaction.
func (l *Ledger) RecountAll(ctx context.Context) (int, error) {
	ids, err := l.store.Accounts().ListProfessionalIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("ledger.recount_all: %w", err)
	}
	updated := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		err := l.store.Transaction(ctx, func(tx repository.Store) error {
			_, err := l.RecountCompletionRate(ctx, tx, id)
			return err
		})
		if err != nil {
			l.log.Warn("completion rate recount failed", zap.Uint("professional_id", id), zap.Error(err))
			continue
		}
		updated++
	}
	return updated, nil
}

func (l *Ledger) ProfessionalSummary(ctx context.Context, professionalID uint) (*ProfessionalLedger, error) {
	const op = "ledger.professional_summary"
	professional, err := l.store.Accounts().FindProfessional(ctx, professionalID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, wrapError(ErrNotFound, op, err, "professional %d", professionalID)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	total, completed, err := l.store.Requests().CountForProfessional(ctx, professionalID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &ProfessionalLedger{
		ProfessionalID: professionalID,
		TotalEarnings:  professional.TotalEarnings,
		Rating:         professional.Rating,
		TotalRatings:   professional.TotalRatings,
		CompletionRate: professional.CompletionRate,
		TotalAssigned:  total,
		Completed:      completed,
	}, nil
}

func (l *Ledger) CustomerSummary(ctx context.Context, customerID uint) (*CustomerLedger, error) {
	const op = "ledger.customer_summary"
	customer, err := l.store.Accounts().FindCustomer(ctx, customerID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, wrapError(ErrNotFound, op, err, "customer %d", customerID)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &CustomerLedger{CustomerID: customerID, TotalSpent: customer.TotalSpent}, nil
}
