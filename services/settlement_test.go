package services_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"service-marketplace-server/models"
	"service-marketplace-server/repository"
	"service-marketplace-server/services"
)

func TestSettleRecordsPaymentAndCreditsLedger(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	service := e.fx.Service("plumbing", 80)
	customer := e.fx.Customer()
	pro := e.fx.Professional("plumbing")
	request := e.completedRequest(t, service, customer.Account.ID, pro.Account.ID)

	payment, err := e.settlement.Settle(ctx, services.SettleInput{
		RequestID: request.ID,
		Actor:     customerActor(customer),
		Method:    models.PaymentMethodDebitCard,
		Details:   map[string]any{"card_last4": "4242"},
	})
	require.NoError(t, err)

	assert.Equal(t, request.ID, payment.ServiceRequestID)
	assert.Equal(t, pro.Account.ID, payment.ProfessionalID)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, fmt.Sprintf("INV-20240315103000-%d", customer.Account.ID), payment.InvoiceNumber)
	require.NotNil(t, payment.TransactionID)
	assert.Equal(t, "TXN-20240315103000", *payment.TransactionID)

	stored, err := e.store.Payments().FindByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)

	var details map[string]any
	require.NoError(t, json.Unmarshal([]byte(stored.PaymentDetails), &details))
	assert.Equal(t, "debit_card", details["method"])
	assert.Equal(t, "2024-03-15 10:30:00", details["timestamp"])
	assert.Equal(t, map[string]any{"card_last4": "4242"}, details["details"])
}

func TestSettleAmountIsBasePriceAtSettlementTime(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	service := e.fx.Service("plumbing", 80)
	customer := e.fx.Customer()
	pro := e.fx.Professional("plumbing")
	request := e.completedRequest(t, service, customer.Account.ID, pro.Account.ID)

	service.BasePrice = 95
	require.NoError(t, e.store.Services().Update(ctx, service))

	payment, err := e.settlement.Settle(ctx, services.SettleInput{RequestID: request.ID, Actor: customerActor(customer), Method: models.PaymentMethodUPI})
	require.NoError(t, err)
	assert.InDelta(t, 95.0, payment.Amount, 1e-9)

	service.BasePrice = 200
	require.NoError(t, e.store.Services().Update(ctx, service))
	stored, err := e.store.Payments().FindByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.InDelta(t, 95.0, stored.Amount, 1e-9)
}

func TestSettleLedgerFailureLeavesNoTrace(t *testing.T) {
	e := newEnv(t, withSettlementStore(func(s repository.Store) repository.Store {
		return failingLedgerStore{Store: s}
	}))
	ctx := context.Background()
	service := e.fx.Service("plumbing", 80)
	customer := e.fx.Customer()
	pro := e.fx.Professional("plumbing")
	request := e.completedRequest(t, service, customer.Account.ID, pro.Account.ID)

	_, err := e.settlement.Settle(ctx, services.SettleInput{RequestID: request.ID, Actor: customerActor(customer), Method: models.PaymentMethodUPI})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrSettlementFailure)
	assert.ErrorIs(t, err, errLedgerDown)

	assert.Zero(t, e.fx.CountPayments())
	assert.Zero(t, e.fx.ReloadProfessional(pro.Account.ID).TotalEarnings)
	assert.Zero(t, e.fx.ReloadCustomer(customer.Account.ID).TotalSpent)
	assert.Equal(t, []services.EventType{
		services.EventRequestCreated,
		services.EventRequestAssigned,
		services.EventRequestCompleted,
	}, e.events.types())
}

func TestSettleDisambiguatesInvoiceNumbersWithinOneSecond(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	service := e.fx.Service("cleaning", 50)
	customer := e.fx.Customer()
	pro := e.fx.Professional("cleaning")

	seen := map[string]bool{}
	seenTxn := map[string]bool{}
	for i := 0; i < 3; i++ {
		request := e.completedRequest(t, service, customer.Account.ID, pro.Account.ID)
		payment, err := e.settlement.Settle(ctx, services.SettleInput{RequestID: request.ID, Actor: customerActor(customer), Method: models.PaymentMethodUPI})
		require.NoError(t, err)

		assert.False(t, seen[payment.InvoiceNumber], "duplicate invoice %s", payment.InvoiceNumber)
		seen[payment.InvoiceNumber] = true
		seenTxn[*payment.TransactionID] = true
	}

	base := fmt.Sprintf("INV-20240315103000-%d", customer.Account.ID)
	assert.Equal(t, map[string]bool{base: true, base + "-1": true, base + "-2": true}, seen)
	assert.Len(t, seenTxn, 3)
	assert.InDelta(t, 150.0, e.fx.ReloadProfessional(pro.Account.ID).TotalEarnings, 1e-9)
}

func TestSettleRetriesWhenInvoiceNumberIsTaken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	service := e.fx.Service("cleaning", 50)
	customer := e.fx.Customer()
	pro := e.fx.Professional("cleaning")
	request := e.completedRequest(t, service, customer.Account.ID, pro.Account.ID)

	// a row outside the counted series still occupies the next candidate
	squatter := e.completedRequest(t, service, customer.Account.ID, pro.Account.ID)
	base := fmt.Sprintf("INV-20240315103000-%d", customer.Account.ID)
	require.NoError(t, e.db.Create(&models.Payment{
		ServiceRequestID: squatter.ID,
		CustomerID:       customer.Account.ID,
		ProfessionalID:   pro.Account.ID,
		Amount:           50,
		Status:           models.PaymentStatusFailed,
		PaymentMethod:    models.PaymentMethodUPI,
		InvoiceNumber:    base + "-1",
		CreatedAt:        fixedNow,
	}).Error)

	payment, err := e.settlement.Settle(ctx, services.SettleInput{RequestID: request.ID, Actor: customerActor(customer), Method: models.PaymentMethodUPI})
	require.NoError(t, err)
	assert.Equal(t, base+"-2", payment.InvoiceNumber)
	assert.Equal(t, int64(2), e.fx.CountPayments())
}

func TestSettlePreconditions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	service := e.fx.Service("plumbing", 80)
	customer := e.fx.Customer()
	stranger := e.fx.Customer()
	admin := e.fx.Admin()
	pro := e.fx.Professional("plumbing")

	open, err := e.workflow.Create(ctx, services.CreateRequestInput{ServiceID: service.ID, CustomerID: customer.Account.ID})
	require.NoError(t, err)
	_, err = e.settlement.Settle(ctx, services.SettleInput{RequestID: open.ID, Actor: customerActor(customer), Method: models.PaymentMethodUPI})
	assert.ErrorIs(t, err, services.ErrInvalidTransition)

	done := e.completedRequest(t, service, customer.Account.ID, pro.Account.ID)
	_, err = e.settlement.Settle(ctx, services.SettleInput{RequestID: done.ID, Actor: customerActor(customer), Method: "cash"})
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = e.settlement.Settle(ctx, services.SettleInput{RequestID: done.ID, Actor: customerActor(stranger), Method: models.PaymentMethodUPI})
	assert.ErrorIs(t, err, services.ErrUnauthorized)

	_, err = e.settlement.Settle(ctx, services.SettleInput{RequestID: done.ID, Actor: professionalActor(pro), Method: models.PaymentMethodUPI})
	assert.ErrorIs(t, err, services.ErrUnauthorized)

	_, err = e.settlement.Settle(ctx, services.SettleInput{RequestID: 999, Actor: adminActor(admin), Method: models.PaymentMethodUPI})
	assert.ErrorIs(t, err, services.ErrNotFound)

	_, err = e.settlement.Settle(ctx, services.SettleInput{RequestID: done.ID, Actor: adminActor(admin), Method: models.PaymentMethodNetBanking})
	require.NoError(t, err)

	_, err = e.settlement.Settle(ctx, services.SettleInput{RequestID: done.ID, Actor: customerActor(customer), Method: models.PaymentMethodUPI})
	assert.ErrorIs(t, err, services.ErrInvalidTransition)
	assert.Equal(t, int64(1), e.fx.CountPayments())
	assert.InDelta(t, 80.0, e.fx.ReloadCustomer(customer.Account.ID).TotalSpent, 1e-9)
}

func TestRefundKeepsLedgerTotals(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	service := e.fx.Service("plumbing", 80)
	customer := e.fx.Customer()
	stranger := e.fx.Customer()
	admin := e.fx.Admin()
	pro := e.fx.Professional("plumbing")
	request := e.completedRequest(t, service, customer.Account.ID, pro.Account.ID)

	payment, err := e.settlement.Settle(ctx, services.SettleInput{RequestID: request.ID, Actor: customerActor(customer), Method: models.PaymentMethodUPI})
	require.NoError(t, err)

	_, err = e.settlement.Refund(ctx, payment.ID, adminActor(admin), "   ")
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = e.settlement.Refund(ctx, payment.ID, customerActor(stranger), "not mine")
	assert.ErrorIs(t, err, services.ErrUnauthorized)

	_, err = e.settlement.Refund(ctx, payment.ID, customerActor(customer), "changed my mind")
	assert.ErrorIs(t, err, services.ErrUnauthorized)
	assert.Equal(t, models.PaymentStatusCompleted, e.fx.ReloadPayment(payment.ID).Status)

	refunded, err := e.settlement.Refund(ctx, payment.ID, adminActor(admin), "job redone for free")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, refunded.Status)
	assert.Equal(t, "job redone for free", refunded.RefundReason)
	require.NotNil(t, refunded.RefundedAt)

	// earnings and spend are not reversed on refund
	assert.InDelta(t, 80.0, e.fx.ReloadProfessional(pro.Account.ID).TotalEarnings, 1e-9)
	assert.InDelta(t, 80.0, e.fx.ReloadCustomer(customer.Account.ID).TotalSpent, 1e-9)

	_, err = e.settlement.Refund(ctx, payment.ID, adminActor(admin), "again")
	assert.ErrorIs(t, err, services.ErrInvalidTransition)

	_, err = e.settlement.Refund(ctx, 999, adminActor(admin), "missing")
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestGenerateInvoice(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	service := e.fx.Service("plumbing", 80)
	customer := e.fx.Customer()
	pro := e.fx.Professional("plumbing")
	request := e.completedRequest(t, service, customer.Account.ID, pro.Account.ID)

	payment, err := e.settlement.Settle(ctx, services.SettleInput{RequestID: request.ID, Actor: customerActor(customer), Method: models.PaymentMethodCreditCard})
	require.NoError(t, err)
	before, err := e.store.Payments().FindByID(ctx, payment.ID)
	require.NoError(t, err)

	invoice, err := e.settlement.GenerateInvoice(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.InvoiceNumber, invoice.InvoiceNumber)
	assert.Equal(t, "2024-03-15", invoice.Date)
	assert.Equal(t, models.InvoiceCustomer{
		Name:    customer.Account.DisplayName,
		Address: customer.Customer.Address,
		Phone:   customer.Customer.Phone,
	}, invoice.Customer)
	assert.Equal(t, models.InvoiceProfessional{Name: pro.Account.DisplayName, ServiceType: "plumbing"}, invoice.Professional)
	assert.Equal(t, models.InvoiceService{Name: service.Name, Description: service.Description}, invoice.Service)
	assert.InDelta(t, 80.0, invoice.Amount, 1e-9)
	assert.Equal(t, models.PaymentStatusCompleted, invoice.Status)
	assert.Equal(t, "TXN-20240315103000", invoice.TransactionID)

	again, err := e.settlement.GenerateInvoice(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice, again)

	after, err := e.store.Payments().FindByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, int64(1), e.fx.CountPayments())
}

func TestGenerateInvoiceMissingReferences(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	service := e.fx.Service("plumbing", 80)
	customer := e.fx.Customer()
	pro := e.fx.Professional("plumbing")
	request := e.completedRequest(t, service, customer.Account.ID, pro.Account.ID)

	_, err := e.settlement.GenerateInvoice(ctx, 12345)
	assert.ErrorIs(t, err, services.ErrNotFound)

	payment, err := e.settlement.Settle(ctx, services.SettleInput{RequestID: request.ID, Actor: customerActor(customer), Method: models.PaymentMethodUPI})
	require.NoError(t, err)

	require.NoError(t, e.db.Delete(&models.Service{}, service.ID).Error)
	_, err = e.settlement.GenerateInvoice(ctx, payment.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestPaymentHistory(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	service := e.fx.Service("plumbing", 80)
	alice := e.fx.Customer()
	bob := e.fx.Customer()
	pro := e.fx.Professional("plumbing")

	for _, c := range []*models.AccountProfile{alice, bob, alice} {
		request := e.completedRequest(t, service, c.Account.ID, pro.Account.ID)
		_, err := e.settlement.Settle(ctx, services.SettleInput{RequestID: request.ID, Actor: customerActor(c), Method: models.PaymentMethodUPI})
		require.NoError(t, err)
	}

	mine, err := e.settlement.ListForCustomer(ctx, alice.Account.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	earned, err := e.settlement.ListForProfessional(ctx, pro.Account.ID)
	require.NoError(t, err)
	assert.Len(t, earned, 3)

	completed, err := e.settlement.ListAll(ctx, models.PaymentStatusCompleted)
	require.NoError(t, err)
	assert.Len(t, completed, 3)
}
