package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"service-marketplace-server/models"
	"service-marketplace-server/repository"
	"service-marketplace-server/utils"
)

// AccountService covers the self-service parts of customer and
// professional profiles.
type AccountService struct {
	store repository.Store
	log   *zap.Logger
}

func NewAccountService(store repository.Store, log *zap.Logger) *AccountService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccountService{store: store, log: log.Named("accounts")}
}

func (s *AccountService) Profile(ctx context.Context, accountID uint) (*models.AccountProfile, error) {
	profile, err := s.store.Accounts().FindProfile(ctx, accountID)
	if err != nil {
		return nil, missing("accounts.profile", err, "account %d", accountID)
	}
	return profile, nil
}

// CustomerProfileInput holds the editable customer fields. Nil fields are
// left unchanged.
type CustomerProfileInput struct {
	Address                *string
	Phone                  *string
	DefaultLocation        *string
	DefaultPincode         *string
	PreferredPaymentMethod *string
}

func (s *AccountService) UpdateCustomerProfile(ctx context.Context, actor Actor, in CustomerProfileInput) (*models.Customer, error) {
	const op = "accounts.update_customer"
	if actor.Role != models.RoleCustomer {
		return nil, newError(ErrUnauthorized, op, "account %d is not a customer", actor.ID)
	}
	customer, err := s.store.Accounts().FindCustomer(ctx, actor.ID)
	if err != nil {
		return nil, missing(op, err, "customer %d", actor.ID)
	}

	if in.Phone != nil {
		phone := utils.NormalizePhoneNumber(*in.Phone)
		if phone != "" && !utils.ValidatePhoneNumber(phone) {
			return nil, newError(ErrValidation, op, "invalid phone number %q", *in.Phone)
		}
		customer.Phone = phone
	}
	if in.PreferredPaymentMethod != nil {
		method := strings.TrimSpace(*in.PreferredPaymentMethod)
		if method != "" && !models.PaymentMethod(method).Valid() {
			return nil, newError(ErrValidation, op, "unknown payment method %q", method)
		}
		customer.PreferredPaymentMethod = method
	}
	if in.Address != nil {
		customer.Address = strings.TrimSpace(*in.Address)
	}
	if in.DefaultLocation != nil {
		customer.DefaultLocation = strings.TrimSpace(*in.DefaultLocation)
	}
	if in.DefaultPincode != nil {
		customer.DefaultPincode = strings.TrimSpace(*in.DefaultPincode)
	}

	if err := s.store.Accounts().UpdateCustomer(ctx, customer); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return customer, nil
}

// SetAvailability lets a professional take themselves off or back on the market.
func (s *AccountService) SetAvailability(ctx context.Context, actor Actor, available bool) (*models.Professional, error) {
	const op = "accounts.set_availability"
	if actor.Role != models.RoleProfessional {
		return nil, newError(ErrUnauthorized, op, "account %d is not a professional", actor.ID)
	}
	if err := s.store.Accounts().SetAvailable(ctx, actor.ID, available); err != nil {
		return nil, missing(op, err, "professional %d", actor.ID)
	}
	professional, err := s.store.Accounts().FindProfessional(ctx, actor.ID)
	if err != nil {
		return nil, missing(op, err, "professional %d", actor.ID)
	}
	s.log.Info("availability changed", zap.Uint("professional_id", actor.ID), zap.Bool("available", available))
	return professional, nil
}

func (s *AccountService) AddFavorite(ctx context.Context, actor Actor, professionalID uint) error {
	const op = "accounts.add_favorite"
	if actor.Role != models.RoleCustomer {
		return newError(ErrUnauthorized, op, "account %d is not a customer", actor.ID)
	}
	if _, err := s.store.Accounts().FindProfessional(ctx, professionalID); err != nil {
		return missing(op, err, "professional %d", professionalID)
	}
	if err := s.store.Accounts().AddFavorite(ctx, actor.ID, professionalID); err != nil && !errors.Is(err, repository.ErrDuplicate) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *AccountService) RemoveFavorite(ctx context.Context, actor Actor, professionalID uint) error {
	const op = "accounts.remove_favorite"
	if actor.Role != models.RoleCustomer {
		return newError(ErrUnauthorized, op, "account %d is not a customer", actor.ID)
	}
	if err := s.store.Accounts().RemoveFavorite(ctx, actor.ID, professionalID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListFavorites returns the customer's favorite professionals in the order
// they were added. Professionals that no longer exist are skipped.
func (s *AccountService) ListFavorites(ctx context.Context, actor Actor) ([]models.Professional, error) {
	const op = "accounts.list_favorites"
	if actor.Role != models.RoleCustomer {
		return nil, newError(ErrUnauthorized, op, "account %d is not a customer", actor.ID)
	}
	ids, err := s.store.Accounts().ListFavorites(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	favorites := make([]models.Professional, 0, len(ids))
	for _, id := range ids {
		professional, err := s.store.Accounts().FindProfessional(ctx, id)
		if repository.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		favorites = append(favorites, *professional)
	}
	return favorites, nil
}
