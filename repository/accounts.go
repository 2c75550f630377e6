package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"service-marketplace-server/models"
)

type accountRepository struct {
	db *gorm.DB
}

func (r *accountRepository) FindByID(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

func (r *accountRepository) FindProfile(ctx context.Context, id uint) (*models.AccountProfile, error) {
	account, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	profile := &models.AccountProfile{Account: *account}
	switch account.Role {
	case models.RoleProfessional:
		profile.Professional, err = r.FindProfessional(ctx, id)
	case models.RoleCustomer:
		profile.Customer, err = r.FindCustomer(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (r *accountRepository) FindProfessional(ctx context.Context, id uint) (*models.Professional, error) {
	var professional models.Professional
	if err := r.db.WithContext(ctx).First(&professional, "account_id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &professional, nil
}

func (r *accountRepository) FindProfessionalForUpdate(ctx context.Context, id uint) (*models.Professional, error) {
	var professional models.Professional
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&professional, "account_id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &professional, nil
}

func (r *accountRepository) FindCustomer(ctx context.Context, id uint) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).First(&customer, "account_id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &customer, nil
}

// CreateProfile inserts the account and its role payload in one transaction.
func (r *accountRepository) CreateProfile(ctx context.Context, profile *models.AccountProfile) error {
	if !profile.Account.Role.Valid() {
		return fmt.Errorf("create profile: unknown role %q", profile.Account.Role)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Create fills zero-valued fields that carry a column default from
		// the database, so flags are captured first and written explicitly.
		active := profile.Account.IsActive
		if err := tx.Create(&profile.Account).Error; err != nil {
			return translate(err)
		}
		if err := tx.Model(&profile.Account).Update("is_active", active).Error; err != nil {
			return translate(err)
		}
		profile.Account.IsActive = active

		switch profile.Account.Role {
		case models.RoleProfessional:
			if profile.Professional == nil {
				profile.Professional = &models.Professional{}
			}
			p := profile.Professional
			p.AccountID = profile.Account.ID
			verified, available := p.IsVerified, p.IsAvailable
			if err := tx.Create(p).Error; err != nil {
				return translate(err)
			}
			p.IsVerified, p.IsAvailable = verified, available
			return translate(tx.Model(&models.Professional{}).
				Where("account_id = ?", p.AccountID).
				Updates(map[string]any{"is_verified": verified, "is_available": available}).Error)
		case models.RoleCustomer:
			if profile.Customer == nil {
				profile.Customer = &models.Customer{}
			}
			profile.Customer.AccountID = profile.Account.ID
			return translate(tx.Create(profile.Customer).Error)
		}
		return nil
	})
}

func (r *accountRepository) SearchProfessionals(ctx context.Context, filter ProfessionalFilter) ([]models.Professional, error) {
	var professionals []models.Professional
	err := filter.scope(r.db.WithContext(ctx).Model(&models.Professional{})).
		Order("rating DESC").Order("account_id").
		Find(&professionals).Error
	return professionals, translate(err)
}

func (r *accountRepository) ListProfessionalIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Professional{}).
		Order("account_id").
		Pluck("account_id", &ids).Error
	return ids, translate(err)
}

func (r *accountRepository) SetVerified(ctx context.Context, professionalID uint, verified bool) error {
	res := r.db.WithContext(ctx).Model(&models.Professional{}).
		Where("account_id = ?", professionalID).
		Update("is_verified", verified)
	return requireRow(res)
}

func (r *accountRepository) SetAvailable(ctx context.Context, professionalID uint, available bool) error {
	res := r.db.WithContext(ctx).Model(&models.Professional{}).
		Where("account_id = ?", professionalID).
		Update("is_available", available)
	return requireRow(res)
}

func (r *accountRepository) SetActive(ctx context.Context, accountID uint, active bool) error {
	res := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", accountID).
		Update("is_active", active)
	return requireRow(res)
}

func (r *accountRepository) UpdateCustomer(ctx context.Context, customer *models.Customer) error {
	res := r.db.WithContext(ctx).Model(&models.Customer{}).
		Where("account_id = ?", customer.AccountID).
		Select("address", "phone", "default_location", "default_pincode", "preferred_payment_method").
		Updates(customer)
	return requireRow(res)
}

func (r *accountRepository) AddFavorite(ctx context.Context, customerID, professionalID uint) error {
	favorite := models.FavoriteProfessional{CustomerID: customerID, ProfessionalID: professionalID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&favorite).Error
	return translate(err)
}

func (r *accountRepository) RemoveFavorite(ctx context.Context, customerID, professionalID uint) error {
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND professional_id = ?", customerID, professionalID).
		Delete(&models.FavoriteProfessional{}).Error
	return translate(err)
}

func (r *accountRepository) ListFavorites(ctx context.Context, customerID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.FavoriteProfessional{}).
		Where("customer_id = ?", customerID).
		Order("created_at").Order("professional_id").
		Pluck("professional_id", &ids).Error
	return ids, translate(err)
}

func (r *accountRepository) CountByRole(ctx context.Context) (map[models.Role]int64, error) {
	var rows []struct {
		Role  models.Role
		Total int64
	}
	err := r.db.WithContext(ctx).Model(&models.Account{}).
		Select("role, COUNT(*) AS total").
		Group("role").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	counts := make(map[models.Role]int64, len(rows))
	for _, row := range rows {
		counts[row.Role] = row.Total
	}
	return counts, nil
}

func (r *accountRepository) CountUnverifiedProfessionals(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Professional{}).
		Where("is_verified = ?", false).
		Count(&n).Error
	return n, translate(err)
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
