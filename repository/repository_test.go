package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"service-marketplace-server/models"
	"service-marketplace-server/repository"
	"service-marketplace-server/testutil"
)

func setup(t *testing.T) (repository.Store, *testutil.Fixtures) {
	t.Helper()
	db := testutil.NewDB(t)
	return repository.NewStore(db), testutil.NewFixtures(t, db)
}

func newRequest(t *testing.T, store repository.Store, serviceID, customerID uint) *models.ServiceRequest {
	t.Helper()
	request := &models.ServiceRequest{ServiceID: serviceID, CustomerID: customerID, Status: models.RequestStatusRequested}
	require.NoError(t, store.Requests().Create(context.Background(), request))
	return request
}

func TestCreateProfileKeepsExplicitFlags(t *testing.T) {
	store, fx := setup(t)
	ctx := context.Background()
	pro := fx.Professional("plumbing", func(p *models.Professional) {
		p.IsVerified = false
		p.IsAvailable = false
	})

	stored, err := store.Accounts().FindProfessional(ctx, pro.Account.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsVerified)
	assert.False(t, stored.IsAvailable)

	err = store.Accounts().CreateProfile(ctx, &models.AccountProfile{Account: models.Account{Username: "x", Email: "x@example.com", Role: "owner"}})
	assert.Error(t, err)

	dup := &models.AccountProfile{Account: models.Account{Username: pro.Account.Username, Email: "other@example.com", Role: models.RoleCustomer}}
	assert.ErrorIs(t, store.Accounts().CreateProfile(ctx, dup), repository.ErrDuplicate)
}

func TestFindProfileByRole(t *testing.T) {
	store, fx := setup(t)
	ctx := context.Background()
	customer := fx.Customer()
	admin := fx.Admin()

	profile, err := store.Accounts().FindProfile(ctx, customer.Account.ID)
	require.NoError(t, err)
	require.NotNil(t, profile.Customer)
	assert.Nil(t, profile.Professional)

	profile, err = store.Accounts().FindProfile(ctx, admin.Account.ID)
	require.NoError(t, err)
	assert.Nil(t, profile.Customer)
	assert.Nil(t, profile.Professional)

	_, err = store.Accounts().FindProfile(ctx, 999)
	assert.True(t, repository.IsNotFound(err))
}

func TestAssignIsConditional(t *testing.T) {
	store, fx := setup(t)
	ctx := context.Background()
	service := fx.Service("plumbing", 80)
	customer := fx.Customer()
	first := fx.Professional("plumbing")
	second := fx.Professional("plumbing")
	request := newRequest(t, store, service.ID, customer.Account.ID)

	ok, err := store.Requests().Assign(ctx, request.ID, first.Account.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Requests().Assign(ctx, request.ID, second.Account.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	stored := fx.ReloadRequest(request.ID)
	assert.Equal(t, first.Account.ID, *stored.ProfessionalID)
}

func TestCompleteAndReviewAreConditional(t *testing.T) {
	store, fx := setup(t)
	ctx := context.Background()
	service := fx.Service("plumbing", 80)
	customer := fx.Customer()
	pro := fx.Professional("plumbing")
	other := fx.Professional("plumbing")
	request := newRequest(t, store, service.ID, customer.Account.ID)
	now := time.Now()

	ok, err := store.Requests().Complete(ctx, request.ID, pro.Account.ID, now)
	require.NoError(t, err)
	assert.False(t, ok, "requested cannot complete")

	ok, err = store.Requests().AttachReview(ctx, request.ID, 5, "")
	require.NoError(t, err)
	assert.False(t, ok, "requested cannot be reviewed")

	_, err = store.Requests().Assign(ctx, request.ID, pro.Account.ID)
	require.NoError(t, err)
	ok, err = store.Requests().Complete(ctx, request.ID, other.Account.ID, now)
	require.NoError(t, err)
	assert.False(t, ok, "only the assignee completes")

	ok, err = store.Requests().Complete(ctx, request.ID, pro.Account.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Requests().AttachReview(ctx, request.ID, 4, "fine")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Requests().AttachReview(ctx, request.ID, 1, "again")
	require.NoError(t, err)
	assert.False(t, ok)

	total, completed, err := store.Requests().CountForProfessional(ctx, pro.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, int64(1), completed)
}

func TestTransactionRollsBack(t *testing.T) {
	store, fx := setup(t)
	ctx := context.Background()
	customer := fx.Customer()
	pro := fx.Professional("plumbing")

	err := store.Transaction(ctx, func(tx repository.Store) error {
		require.NoError(t, tx.Ledger().AddEarnings(ctx, pro.Account.ID, 50))
		return tx.Ledger().AddSpend(ctx, 999, 50)
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Zero(t, fx.ReloadProfessional(pro.Account.ID).TotalEarnings)

	require.NoError(t, store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.Ledger().AddEarnings(ctx, pro.Account.ID, 50); err != nil {
			return err
		}
		return tx.Ledger().AddSpend(ctx, customer.Account.ID, 50)
	}))
	assert.InDelta(t, 50.0, fx.ReloadProfessional(pro.Account.ID).TotalEarnings, 1e-9)
	assert.InDelta(t, 50.0, fx.ReloadCustomer(customer.Account.ID).TotalSpent, 1e-9)
}

func TestPaymentUniqueness(t *testing.T) {
	store, fx := setup(t)
	ctx := context.Background()
	service := fx.Service("plumbing", 80)
	customer := fx.Customer()
	pro := fx.Professional("plumbing")
	first := newRequest(t, store, service.ID, customer.Account.ID)
	second := newRequest(t, store, service.ID, customer.Account.ID)

	payment := func(requestID uint, invoice string) *models.Payment {
		return &models.Payment{
			ServiceRequestID: requestID,
			CustomerID:       customer.Account.ID,
			ProfessionalID:   pro.Account.ID,
			Amount:           80,
			Status:           models.PaymentStatusPending,
			PaymentMethod:    models.PaymentMethodUPI,
			InvoiceNumber:    invoice,
		}
	}

	p1 := payment(first.ID, "INV-1")
	require.NoError(t, store.Payments().Create(ctx, p1))
	assert.ErrorIs(t, store.Payments().Create(ctx, payment(second.ID, "INV-1")), repository.ErrDuplicate)
	assert.ErrorIs(t, store.Payments().Create(ctx, payment(first.ID, "INV-2")), repository.ErrDuplicate)

	p2 := payment(second.ID, "INV-1-1")
	require.NoError(t, store.Payments().Create(ctx, p2))

	now := time.Now()
	require.NoError(t, store.Payments().MarkCompleted(ctx, p1.ID, "TXN-1", now))
	assert.ErrorIs(t, store.Payments().MarkCompleted(ctx, p2.ID, "TXN-1", now), repository.ErrDuplicate)
	assert.ErrorIs(t, store.Payments().MarkCompleted(ctx, p1.ID, "TXN-9", now), repository.ErrNotFound)

	n, err := store.Payments().CountInvoiceSeries(ctx, "INV-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	n, err = store.Payments().CountTransactionSeries(ctx, "TXN-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := store.Payments().MarkRefunded(ctx, p2.ID, "pending", now)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = store.Payments().MarkRefunded(ctx, p1.ID, "customer request", now)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSearchFilters(t *testing.T) {
	store, fx := setup(t)
	ctx := context.Background()
	fx.Service("plumbing", 80)
	fx.Service("cleaning", 40)
	fx.Professional("plumbing", func(p *models.Professional) {
		p.Languages = "tamil"
		p.HourlyRate = 25
	})
	fx.Professional("plumbing", func(p *models.Professional) { p.Pincode = "110001" })

	found, err := store.Services().Search(ctx, repository.ServiceFilter{Query: "PLUMBING"})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = store.Services().Search(ctx, repository.ServiceFilter{Location: "uptown"})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	pros, err := store.Accounts().SearchProfessionals(ctx, repository.ProfessionalFilter{Language: "Tamil"})
	require.NoError(t, err)
	assert.Len(t, pros, 1)

	maxRate := 30.0
	pros, err = store.Accounts().SearchProfessionals(ctx, repository.ProfessionalFilter{MaxHourlyRate: &maxRate})
	require.NoError(t, err)
	assert.Len(t, pros, 1)

	pros, err = store.Accounts().SearchProfessionals(ctx, repository.ProfessionalFilter{Pincode: "110001"})
	require.NoError(t, err)
	assert.Len(t, pros, 1)
}

func TestSearchTreatsWildcardsLiterally(t *testing.T) {
	store, fx := setup(t)
	ctx := context.Background()
	fx.Service("plumbing", 80)
	fx.Service("deep_clean", 40)

	found, err := store.Services().Search(ctx, repository.ServiceFilter{Query: "%"})
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = store.Services().Search(ctx, repository.ServiceFilter{Query: "_"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "deep_clean", found[0].ServiceType)

	found, err = store.Services().Search(ctx, repository.ServiceFilter{Location: "down%"})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestCountsForDashboard(t *testing.T) {
	store, fx := setup(t)
	ctx := context.Background()
	fx.Customer()
	fx.Customer()
	fx.Professional("plumbing", func(p *models.Professional) { p.IsVerified = false })
	fx.Admin()

	byRole, err := store.Accounts().CountByRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[models.Role]int64{
		models.RoleCustomer:     2,
		models.RoleProfessional: 1,
		models.RoleAdmin:        1,
	}, byRole)

	n, err := store.Accounts().CountUnverifiedProfessionals(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
