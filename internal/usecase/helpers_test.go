package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scan2pay-service/internal/domain"
	"scan2pay-service/internal/events"
	"scan2pay-service/internal/provider"
	"scan2pay-service/internal/repository"
	"scan2pay-service/internal/repository/memory"
)

type fakeGateway struct {
	mu           sync.Mutex
	seq          int
	pushErr      error
	responseCode string
	pushes       []provider.PushRequest
	queryResults map[string]*provider.QueryResult
	queryErr     error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{responseCode: "0", queryResults: make(map[string]*provider.QueryResult)}
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) Push(ctx context.Context, req *provider.PushRequest) (*provider.PushResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pushErr != nil {
		return nil, g.pushErr
	}
	g.seq++
	g.pushes = append(g.pushes, *req)
	return &provider.PushResponse{
		CorrelationID:       fmt.Sprintf("ws_CO_%04d", g.seq),
		MerchantRequestID:   fmt.Sprintf("mr-%04d", g.seq),
		ResponseCode:        g.responseCode,
		ResponseDescription: "Success. Request accepted for processing",
	}, nil
}

func (g *fakeGateway) Query(ctx context.Context, correlationID string) (*provider.QueryResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.queryErr != nil {
		return nil, g.queryErr
	}
	if r, ok := g.queryResults[correlationID]; ok {
		return r, nil
	}
	return &provider.QueryResult{CorrelationID: correlationID}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.LedgerEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, e *events.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

// flakyStore fails the first n store transactions with a conflict after their
// writes, forcing a rollback and a retry.
type flakyStore struct {
	*memory.Store
	remaining int32
}

func (f *flakyStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return f.Store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := fn(ctx, tx); err != nil {
			return err
		}
		if atomic.AddInt32(&f.remaining, -1) >= 0 {
			return domain.Wrap(domain.ErrConcurrentConflict, errors.New("could not serialize access"))
		}
		return nil
	})
}

type fixture struct {
	store     *memory.Store
	gateway   *fakeGateway
	publisher *recordingPublisher
	uc        *PaymentUsecase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, memory.NewStore(), nil)
}

func newFixtureWithStore(t *testing.T, mem *memory.Store, store repository.Store) *fixture {
	t.Helper()
	if store == nil {
		store = mem
	}
	f := &fixture{store: mem, gateway: newFakeGateway(), publisher: &recordingPublisher{}}
	f.uc = NewPaymentUsecase(store, f.gateway, f.publisher, Options{
		CallbackURL:        "https://example.com/api/v1/callbacks/mpesa/stk",
		IntentTTL:          10 * time.Minute,
		GatewayTimeout:     time.Second,
		MaxConflictRetries: 5,
	}, zap.NewNop())
	return f
}

var vendorSeq int64

func (f *fixture) vendor(t *testing.T) *domain.Vendor {
	t.Helper()
	n := atomic.AddInt64(&vendorSeq, 1)
	v := &domain.Vendor{
		BusinessName:   fmt.Sprintf("Kiosk %d", n),
		BusinessNumber: fmt.Sprintf("%010d", 1000000000+n),
		Email:          fmt.Sprintf("kiosk%d@example.com", n),
		PhoneNumber:    fmt.Sprintf("2547%08d", n),
		PasswordHash:   "x",
	}
	require.NoError(t, f.store.CreateVendor(context.Background(), v))
	return v
}

// fund credits the vendor through a confirmed payment so the ledger stays reconciled.
func (f *fixture) fund(t *testing.T, vendorID int64, amount domain.Money) {
	t.Helper()
	ctx := context.Background()
	intent, err := f.uc.CreateIntent(ctx, CreateIntentInput{VendorID: vendorID, Amount: amount, PhoneNumber: "0712345678"})
	require.NoError(t, err)
	res, err := f.uc.Resolve(ctx, intent.Correlation(), domain.Outcome{ResultCode: 0, ResultDesc: "ok"})
	require.NoError(t, err)
	require.Equal(t, domain.ResolutionApplied, res.Kind)
}

func (f *fixture) balance(t *testing.T, vendorID int64) domain.Money {
	t.Helper()
	snap, err := f.uc.Ledger(context.Background(), vendorID)
	require.NoError(t, err)
	return snap.Balance
}

// reconciled asserts balance == completed in - completed out.
func (f *fixture) reconciled(t *testing.T, vendorID int64) {
	t.Helper()
	snap, err := f.uc.Ledger(context.Background(), vendorID)
	require.NoError(t, err)

	var sum domain.Money
	for _, txn := range snap.Transactions {
		if txn.Status == domain.TxStatusCompleted {
			sum += txn.Signed()
		}
	}
	require.Equal(t, sum, snap.Balance, "vendor %d ledger out of balance", vendorID)
	require.GreaterOrEqual(t, snap.Balance, domain.Money(0))
}

func kes(units int64) domain.Money { return domain.Money(units * 100) }
