package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"service-marketplace-server/models"
	"service-marketplace-server/repository"
)

// AdminService holds the moderation operations and the dashboard.
type AdminService struct {
	store   repository.Store
	catalog *Catalog
	log     *zap.Logger
}

func NewAdminService(store repository.Store, catalog *Catalog, log *zap.Logger) *AdminService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminService{store: store, catalog: catalog, log: log.Named("admin")}
}

type DashboardStats struct {
	TotalAccounts        int64   `json:"total_accounts"`
	TotalProfessionals   int64   `json:"total_professionals"`
	TotalCustomers       int64   `json:"total_customers"`
	TotalServices        int64   `json:"total_services"`
	PendingVerifications int64   `json:"pending_verifications"`
	ActiveRequests       int64   `json:"active_requests"`
	TotalEarnings        float64 `json:"total_earnings"`
	PendingReviews       int64   `json:"pending_reviews"`
}

func (s *AdminService) VerifyProfessional(ctx context.Context, actor Actor, professionalID uint, verified bool) (*models.Professional, error) {
	const op = "admin.verify_professional"
	if err := requireAdmin(op, actor); err != nil {
		return nil, err
	}
	if err := s.store.Accounts().SetVerified(ctx, professionalID, verified); err != nil {
		return nil, missing(op, err, "professional %d", professionalID)
	}
	professional, err := s.store.Accounts().FindProfessional(ctx, professionalID)
	if err != nil {
		return nil, missing(op, err, "professional %d", professionalID)
	}
	s.log.Info("professional verification changed",
		zap.Uint("professional_id", professionalID),
		zap.Bool("verified", verified),
		zap.Uint("admin_id", actor.ID))
	return professional, nil
}

// BlockAccount deactivates or reactivates an account. Admins cannot block themselves.
func (s *AdminService) BlockAccount(ctx context.Context, actor Actor, accountID uint, blocked bool) (*models.Account, error) {
	const op = "admin.block_account"
	if err := requireAdmin(op, actor); err != nil {
		return nil, err
	}
	if accountID == actor.ID {
		return nil, newError(ErrValidation, op, "admins cannot block their own account")
	}
	if err := s.store.Accounts().SetActive(ctx, accountID, !blocked); err != nil {
		return nil, missing(op, err, "account %d", accountID)
	}
	account, err := s.store.Accounts().FindByID(ctx, accountID)
	if err != nil {
		return nil, missing(op, err, "account %d", accountID)
	}
	s.log.Info("account status changed",
		zap.Uint("account_id", accountID),
		zap.Bool("blocked", blocked),
		zap.Uint("admin_id", actor.ID))
	return account, nil
}

func (s *AdminService) DashboardStats(ctx context.Context, actor Actor) (*DashboardStats, error) {
	const op = "admin.dashboard"
	if err := requireAdmin(op, actor); err != nil {
		return nil, err
	}
	var stats DashboardStats

	byRole, err := s.store.Accounts().CountByRole(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: accounts: %w", op, err)
	}
	for _, n := range byRole {
		stats.TotalAccounts += n
	}
	stats.TotalProfessionals = byRole[models.RoleProfessional]
	stats.TotalCustomers = byRole[models.RoleCustomer]

	if stats.TotalServices, err = s.store.Services().Count(ctx); err != nil {
		return nil, fmt.Errorf("%s: services: %w", op, err)
	}
	if stats.PendingVerifications, err = s.store.Accounts().CountUnverifiedProfessionals(ctx); err != nil {
		return nil, fmt.Errorf("%s: verifications: %w", op, err)
	}
	if stats.ActiveRequests, err = s.store.Requests().CountByStatus(ctx, models.RequestStatusAssigned); err != nil {
		return nil, fmt.Errorf("%s: requests: %w", op, err)
	}
	if stats.TotalEarnings, err = s.store.Ledger().TotalEarnings(ctx); err != nil {
		return nil, fmt.Errorf("%s: earnings: %w", op, err)
	}
	if stats.PendingReviews, err = s.store.Requests().CountPendingReviews(ctx); err != nil {
		return nil, fmt.Errorf("%s: reviews: %w", op, err)
	}
	return &stats, nil
}

func (s *AdminService) CreateService(ctx context.Context, actor Actor, service *models.Service) error {
	return s.catalog.CreateService(ctx, actor, service)
}

func (s *AdminService) UpdateService(ctx context.Context, actor Actor, service *models.Service) error {
	return s.catalog.UpdateService(ctx, actor, service)
}

func (s *AdminService) DeactivateService(ctx context.Context, actor Actor, id uint) error {
	return s.catalog.DeactivateService(ctx, actor, id)
}
