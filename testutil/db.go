// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"service-marketplace-server/database"
	"service-marketplace-server/models"
	"service-marketplace-server/repository"
)

// NewDB opens a private in-memory SQLite database for t and migrates it.
// The pool is pinned to one connection so concurrent callers serialize
// on the database instead of failing with SQLITE_BUSY.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// Fixtures creates catalog and account rows for tests.
type Fixtures struct {
	t  *testing.T
	db *gorm.DB
	n  int
}

func NewFixtures(t *testing.T, db *gorm.DB) *Fixtures {
	return &Fixtures{t: t, db: db}
}

func (f *Fixtures) next() int {
	f.n++
	return f.n
}

func (f *Fixtures) Service(serviceType string, basePrice float64) *models.Service {
	f.t.Helper()
	service := &models.Service{
		Name:             fmt.Sprintf("%s service %d", serviceType, f.next()),
		Description:      "standard visit",
		BasePrice:        basePrice,
		TimeRequired:     60,
		ServiceType:      serviceType,
		LocationCoverage: "Downtown, Uptown",
		IsActive:         true,
	}
	require.NoError(f.t, f.db.Create(service).Error)
	return service
}

// DeactivateService takes a service out of the catalog.
func (f *Fixtures) DeactivateService(id uint) {
	f.t.Helper()
	require.NoError(f.t, f.db.Model(&models.Service{}).Where("id = ?", id).Update("is_active", false).Error)
}

func (f *Fixtures) Customer(mutate ...func(*models.Customer)) *models.AccountProfile {
	f.t.Helper()
	n := f.next()
	profile := &models.AccountProfile{
		Account: models.Account{
			Username:    fmt.Sprintf("customer%d", n),
			Email:       fmt.Sprintf("customer%d@example.com", n),
			DisplayName: fmt.Sprintf("Customer %d", n),
			Role:        models.RoleCustomer,
			IsActive:    true,
		},
		Customer: &models.Customer{
			Address: fmt.Sprintf("%d Main Street", n),
			Phone:   "+919876543210",
		},
	}
	for _, m := range mutate {
		m(profile.Customer)
	}
	f.create(profile)
	return profile
}

func (f *Fixtures) Professional(serviceType string, mutate ...func(*models.Professional)) *models.AccountProfile {
	f.t.Helper()
	n := f.next()
	profile := &models.AccountProfile{
		Account: models.Account{
			Username:    fmt.Sprintf("pro%d", n),
			Email:       fmt.Sprintf("pro%d@example.com", n),
			DisplayName: fmt.Sprintf("Pro %d", n),
			Role:        models.RoleProfessional,
			IsActive:    true,
		},
		Professional: &models.Professional{
			ServiceType: serviceType,
			IsVerified:  true,
			IsAvailable: true,
			HourlyRate:  40,
			Location:    "Downtown",
			Pincode:     "560001",
			Languages:   "english,hindi",
		},
	}
	for _, m := range mutate {
		m(profile.Professional)
	}
	f.create(profile)
	return profile
}

func (f *Fixtures) Admin() *models.AccountProfile {
	f.t.Helper()
	n := f.next()
	profile := &models.AccountProfile{
		Account: models.Account{
			Username: fmt.Sprintf("admin%d", n),
			Email:    fmt.Sprintf("admin%d@example.com", n),
			Role:     models.RoleAdmin,
			IsActive: true,
		},
	}
	f.create(profile)
	return profile
}

func (f *Fixtures) create(profile *models.AccountProfile) {
	f.t.Helper()
	require.NoError(f.t, repository.NewStore(f.db).Accounts().CreateProfile(context.Background(), profile))
}

func (f *Fixtures) ReloadProfessional(id uint) *models.Professional {
	f.t.Helper()
	var professional models.Professional
	require.NoError(f.t, f.db.First(&professional, "account_id = ?", id).Error)
	return &professional
}

func (f *Fixtures) ReloadCustomer(id uint) *models.Customer {
	f.t.Helper()
	var customer models.Customer
	require.NoError(f.t, f.db.First(&customer, "account_id = ?", id).Error)
	return &customer
}

func (f *Fixtures) ReloadService(id uint) *models.Service {
	f.t.Helper()
	var service models.Service
	require.NoError(f.t, f.db.First(&service, id).Error)
	return &service
}

func (f *Fixtures) ReloadRequest(id uint) *models.ServiceRequest {
	f.t.Helper()
	var request models.ServiceRequest
	require.NoError(f.t, f.db.First(&request, id).Error)
	return &request
}

func (f *Fixtures) ReloadPayment(id uint) *models.Payment {
	f.t.Helper()
	var payment models.Payment
	require.NoError(f.t, f.db.First(&payment, id).Error)
	return &payment
}

func (f *Fixtures) CountPayments() int64 {
	f.t.Helper()
	var n int64
	require.NoError(f.t, f.db.Model(&models.Payment{}).Count(&n).Error)
	return n
}
