package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"service-marketplace-server/models"
)

var (
	ErrNotFound  = errors.New("repository: record not found")
	ErrDuplicate = errors.New("repository: duplicate key")
)

// Store is the persistence boundary. A Store handed to a Transaction
// callback is bound to that transaction; every repository it returns
// reads and writes inside it.
type Store interface {
	Transaction(ctx context.Context, fn func(tx Store) error) error
	Services() ServiceRepository
	Accounts() AccountRepository
	Requests() RequestRepository
	Payments() PaymentRepository
	Ledger() LedgerRepository
}

type ServiceRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Service, error)
	FindForUpdate(ctx context.Context, id uint) (*models.Service, error)
	Search(ctx context.Context, filter ServiceFilter) ([]models.Service, error)
	Create(ctx context.Context, service *models.Service) error
	Update(ctx context.Context, service *models.Service) error
	SetActive(ctx context.Context, id uint, active bool) error
	UpdateRating(ctx context.Context, id uint, mean float64, count int) error
	Count(ctx context.Context) (int64, error)
}

type AccountRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Account, error)
	FindProfile(ctx context.Context, id uint) (*models.AccountProfile, error)
	FindProfessional(ctx context.Context, id uint) (*models.Professional, error)
	FindProfessionalForUpdate(ctx context.Context, id uint) (*models.Professional, error)
	FindCustomer(ctx context.Context, id uint) (*models.Customer, error)
	CreateProfile(ctx context.Context, profile *models.AccountProfile) error
	SearchProfessionals(ctx context.Context, filter ProfessionalFilter) ([]models.Professional, error)
	ListProfessionalIDs(ctx context.Context) ([]uint, error)
	SetVerified(ctx context.Context, professionalID uint, verified bool) error
	SetAvailable(ctx context.Context, professionalID uint, available bool) error
	SetActive(ctx context.Context, accountID uint, active bool) error
	UpdateCustomer(ctx context.Context, customer *models.Customer) error
	AddFavorite(ctx context.Context, customerID, professionalID uint) error
	RemoveFavorite(ctx context.Context, customerID, professionalID uint) error
	ListFavorites(ctx context.Context, customerID uint) ([]uint, error)
	CountByRole(ctx context.Context) (map[models.Role]int64, error)
	CountUnverifiedProfessionals(ctx context.Context) (int64, error)
}

type RequestRepository interface {
	FindByID(ctx context.Context, id uint) (*models.ServiceRequest, error)
	Create(ctx context.Context, request *models.ServiceRequest) error
	// Assign moves a request from requested to assigned only if it is still
	// requested and unassigned. It reports whether the row changed.
	Assign(ctx context.Context, id, professionalID uint) (bool, error)
	// Complete moves an assigned request to completed only if it is still
	// assigned to professionalID.
	Complete(ctx context.Context, id, professionalID uint, at time.Time) (bool, error)
	// AttachReview sets the rating and review only on a completed, unrated request.
	AttachReview(ctx context.Context, id uint, rating int, review string) (bool, error)
	List(ctx context.Context, filter RequestFilter) ([]models.ServiceRequest, error)
	CountForProfessional(ctx context.Context, professionalID uint) (total, completed int64, err error)
	CountByStatus(ctx context.Context, status models.RequestStatus) (int64, error)
	CountPendingReviews(ctx context.Context) (int64, error)
}

type PaymentRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Payment, error)
	FindByRequest(ctx context.Context, requestID uint) (*models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	MarkCompleted(ctx context.Context, id uint, transactionID string, at time.Time) error
	// MarkRefunded moves a completed payment to refunded and reports whether the row changed.
	MarkRefunded(ctx context.Context, id uint, reason string, at time.Time) (bool, error)
	List(ctx context.Context, filter PaymentFilter) ([]models.Payment, error)
	// CountInvoiceSeries counts invoice numbers equal to base or base with a
	// "-n" disambiguator. CountTransactionSeries does the same for transaction ids.
	CountInvoiceSeries(ctx context.Context, base string) (int64, error)
	CountTransactionSeries(ctx context.Context, base string) (int64, error)
}

// LedgerRepository owns the derived counters on professionals and customers.
type LedgerRepository interface {
	AddEarnings(ctx context.Context, professionalID uint, amount float64) error
	AddSpend(ctx context.Context, customerID uint, amount float64) error
	SetCompletionRate(ctx context.Context, professionalID uint, rate float64) error
	SetProfessionalRating(ctx context.Context, professionalID uint, mean float64, count int) error
	TotalEarnings(ctx context.Context) (float64, error)
}

type gormStore struct {
	db *gorm.DB
}

// NewStore returns a Store backed by db.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func (s *gormStore) Services() ServiceRepository { return &serviceRepository{db: s.db} }
func (s *gormStore) Accounts() AccountRepository { return &accountRepository{db: s.db} }
func (s *gormStore) Requests() RequestRepository { return &requestRepository{db: s.db} }
func (s *gormStore) Payments() PaymentRepository { return &paymentRepository{db: s.db} }
func (s *gormStore) Ledger() LedgerRepository    { return &ledgerRepository{db: s.db} }

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case isDuplicate(err):
		return ErrDuplicate
	default:
		return err
	}
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

func requireRow(res *gorm.DB) error {
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
