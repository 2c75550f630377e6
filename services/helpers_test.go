package services_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"service-marketplace-server/models"
	"service-marketplace-server/repository"
	"service-marketplace-server/services"
	"service-marketplace-server/testutil"
)

var fixedNow = time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)

type env struct {
	db         *gorm.DB
	store      repository.Store
	fx         *testutil.Fixtures
	catalog    *services.Catalog
	ledger     *services.Ledger
	settlement *services.SettlementService
	workflow   *services.RequestWorkflow
	events     *recorder
}

type envOptions struct {
	workflowStore   func(repository.Store) repository.Store
	settlementStore func(repository.Store) repository.Store
	autoSettle      models.PaymentMethod
	wireSettlement  bool
	serviceCache    services.ServiceCache
}

type envOption func(*envOptions)

func withWorkflowStore(wrap func(repository.Store) repository.Store) envOption {
	return func(o *envOptions) { o.workflowStore = wrap }
}

func withSettlementStore(wrap func(repository.Store) repository.Store) envOption {
	return func(o *envOptions) { o.settlementStore = wrap }
}

func withServiceCache(cache services.ServiceCache) envOption {
	return func(o *envOptions) { o.serviceCache = cache }
}

func withAutoSettle(method models.PaymentMethod) envOption {
	return func(o *envOptions) {
		o.wireSettlement = true
		o.autoSettle = method
	}
}

func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()
	var o envOptions
	for _, opt := range opts {
		opt(&o)
	}

	db := testutil.NewDB(t)
	store := repository.NewStore(db)
	clock := func() time.Time { return fixedNow }
	events := &recorder{}

	workflowStore, settlementStore := store, store
	if o.workflowStore != nil {
		workflowStore = o.workflowStore(store)
	}
	if o.settlementStore != nil {
		settlementStore = o.settlementStore(store)
	}

	catalog := services.NewCatalog(store, o.serviceCache, nil)
	ledger := services.NewLedger(store, nil)
	settlement, err := services.NewSettlementService(services.SettlementDeps{
		Store:    settlementStore,
		Ledger:   ledger,
		Notifier: events,
		Clock:    clock,
	})
	require.NoError(t, err)

	deps := services.RequestWorkflowDeps{
		Store:    workflowStore,
		Catalog:  catalog,
		Ledger:   ledger,
		Notifier: events,
		Clock:    clock,
	}
	if o.wireSettlement {
		deps.Settlement = settlement
		deps.AutoSettleMethod = o.autoSettle
	}
	workflow, err := services.NewRequestWorkflow(deps)
	require.NoError(t, err)

	return &env{
		db:         db,
		store:      store,
		fx:         testutil.NewFixtures(t, db),
		catalog:    catalog,
		ledger:     ledger,
		settlement: settlement,
		workflow:   workflow,
		events:     events,
	}
}

// completedRequest walks a fresh request through accept and complete.
func (e *env) completedRequest(t *testing.T, service *models.Service, customerID, professionalID uint) *models.ServiceRequest {
	t.Helper()
	ctx := context.Background()
	request, err := e.workflow.Create(ctx, services.CreateRequestInput{ServiceID: service.ID, CustomerID: customerID})
	require.NoError(t, err)
	_, err = e.workflow.Accept(ctx, request.ID, professionalID)
	require.NoError(t, err)
	completion, err := e.workflow.Complete(ctx, request.ID, professionalID)
	require.NoError(t, err)
	return completion.Request
}

func customerActor(p *models.AccountProfile) services.Actor {
	return services.Actor{ID: p.Account.ID, Role: models.RoleCustomer}
}

func professionalActor(p *models.AccountProfile) services.Actor {
	return services.Actor{ID: p.Account.ID, Role: models.RoleProfessional}
}

func adminActor(p *models.AccountProfile) services.Actor {
	return services.Actor{ID: p.Account.ID, Role: models.RoleAdmin}
}

type recorder struct {
	mu     sync.Mutex
	events []services.Event
}

func (r *recorder) Notify(_ context.Context, event services.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) types() []services.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]services.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// failingLedgerStore makes every customer spend increment fail, inside and
// outside transactions.
type failingLedgerStore struct {
	repository.Store
}

func (s failingLedgerStore) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.Transaction(ctx, func(tx repository.Store) error {
		return fn(failingLedgerStore{Store: tx})
	})
}

func (s failingLedgerStore) Ledger() repository.LedgerRepository {
	return failingLedger{LedgerRepository: s.Store.Ledger()}
}

var errLedgerDown = errors.New("ledger unavailable")

type failingLedger struct {
	repository.LedgerRepository
}

func (failingLedger) AddSpend(context.Context, uint, float64) error {
	return errLedgerDown
}

// barrierStore holds every caller of Requests().FindByID until n callers
// have read the request, so they all act on the same snapshot. Transactions
// run against the unwrapped store.
type barrierStore struct {
	repository.Store
	barrier *barrier
}

func (s barrierStore) Requests() repository.RequestRepository {
	return barrierRequests{RequestRepository: s.Store.Requests(), barrier: s.barrier}
}

type barrierRequests struct {
	repository.RequestRepository
	barrier *barrier
}

func (r barrierRequests) FindByID(ctx context.Context, id uint) (*models.ServiceRequest, error) {
	request, err := r.RequestRepository.FindByID(ctx, id)
	r.barrier.wait()
	return request, err
}

type barrier struct {
	n       int32
	arrived atomic.Int32
	release chan struct{}
}

func newBarrier(n int) *barrier {
	return &barrier{n: int32(n), release: make(chan struct{})}
}

func (b *barrier) wait() {
	if b.arrived.Add(1) == b.n {
		close(b.release)
	}
	<-b.release
}
