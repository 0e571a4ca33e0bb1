package usecase

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scan2pay-service/internal/domain"
	"scan2pay-service/internal/events"
	"scan2pay-service/internal/provider"
	"scan2pay-service/internal/repository/memory"
)

func TestCreateIntentThenResolveCreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vendor(t)

	intent, err := f.uc.CreateIntent(ctx, CreateIntentInput{VendorID: v.ID, Amount: kes(500), PhoneNumber: "0712345678"})
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusPending, intent.Status)
	assert.Equal(t, "254712345678", intent.Counterparty)
	require.NotNil(t, intent.ExpiresAt)
	assert.Equal(t, 10*time.Minute, intent.ExpiresAt.Sub(intent.CreatedAt))
	assert.Len(t, intent.Reference, 26)

	x := intent.Correlation()
	require.NotEmpty(t, x)

	res, err := f.uc.Resolve(ctx, x, domain.Outcome{ResultCode: 0, ResultDesc: "ok", Receipt: "NLJ7RT61SV"})
	require.NoError(t, err)
	assert.Equal(t, domain.ResolutionApplied, res.Kind)
	assert.NoError(t, res.Err())
	assert.Equal(t, domain.TxStatusCompleted, res.Transaction.Status)
	require.NotNil(t, res.BalanceAfter)
	assert.Equal(t, kes(500), *res.BalanceAfter)
	assert.Equal(t, kes(500), f.balance(t, v.ID))

	again, err := f.uc.Resolve(ctx, x, domain.Outcome{ResultCode: 0, ResultDesc: "ok"})
	require.NoError(t, err)
	assert.Equal(t, domain.ResolutionDuplicate, again.Kind)
	assert.ErrorIs(t, again.Err(), domain.ErrDuplicateCallback)
	assert.Equal(t, kes(500), f.balance(t, v.ID))

	// A later callback with a different verdict does not change the outcome.
	differing, err := f.uc.Resolve(ctx, x, domain.Outcome{ResultCode: 1032, ResultDesc: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, domain.ResolutionDuplicate, differing.Kind)
	assert.Equal(t, domain.TxStatusCompleted, differing.Transaction.Status)
	require.NotNil(t, differing.Transaction.Receipt)
	assert.Equal(t, "NLJ7RT61SV", *differing.Transaction.Receipt)
	assert.Equal(t, kes(500), f.balance(t, v.ID))

	f.reconciled(t, v.ID)
	assert.Equal(t, []events.EventType{events.PaymentInitiated, events.PaymentCompleted}, f.publisher.types())
}

func TestCreateIntentByBusinessNumber(t *testing.T) {
	f := newFixture(t)
	v := f.vendor(t)

	intent, err := f.uc.CreateIntent(context.Background(), CreateIntentInput{
		BusinessNumber: v.BusinessNumber,
		Amount:         kes(20),
		PhoneNumber:    "+254 712 345 678",
	})
	require.NoError(t, err)
	assert.Equal(t, v.ID, intent.VendorID)

	require.Len(t, f.gateway.pushes, 1)
	push := f.gateway.pushes[0]
	assert.Equal(t, v.BusinessNumber, push.Reference)
	assert.Equal(t, "254712345678", push.PhoneNumber)
	assert.Equal(t, "https://example.com/api/v1/callbacks/mpesa/stk", push.CallbackURL)
}

func TestResolveUnknownCorrelation(t *testing.T) {
	f := newFixture(t)
	v := f.vendor(t)

	res, err := f.uc.Resolve(context.Background(), "unknown-id", domain.Outcome{ResultCode: 0})
	require.NoError(t, err)
	assert.Equal(t, domain.ResolutionUnknown, res.Kind)
	assert.ErrorIs(t, res.Err(), domain.ErrUnknownCallback)
	assert.Nil(t, res.Transaction)
	assert.Equal(t, domain.Money(0), f.balance(t, v.ID))
	assert.Empty(t, f.publisher.types())
}

func TestResolveFailedOutcome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vendor(t)

	intent, err := f.uc.CreateIntent(ctx, CreateIntentInput{VendorID: v.ID, Amount: kes(500), PhoneNumber: "0712345678"})
	require.NoError(t, err)

	res, err := f.uc.Resolve(ctx, intent.Correlation(), domain.Outcome{ResultCode: 1, ResultDesc: "insufficient funds"})
	require.NoError(t, err)
	assert.Equal(t, domain.ResolutionApplied, res.Kind)
	assert.Equal(t, domain.TxStatusFailed, res.Transaction.Status)
	assert.Nil(t, res.BalanceAfter)
	assert.Equal(t, domain.Money(0), f.balance(t, v.ID))

	// A success arriving after the failure is a duplicate and credits nothing.
	late, err := f.uc.Resolve(ctx, intent.Correlation(), domain.Outcome{ResultCode: 0})
	require.NoError(t, err)
	assert.Equal(t, domain.ResolutionDuplicate, late.Kind)
	assert.Equal(t, domain.Money(0), f.balance(t, v.ID))

	assert.Contains(t, f.publisher.types(), events.PaymentFailed)
	f.reconciled(t, v.ID)
}

func TestCreateIntentValidation(t *testing.T) {
	f := newFixture(t)
	v := f.vendor(t)

	tests := []struct {
		name string
		in   CreateIntentInput
		want error
	}{
		{"zero amount", CreateIntentInput{VendorID: v.ID, Amount: 0, PhoneNumber: "0712345678"}, domain.ErrInvalidAmount},
		{"negative amount", CreateIntentInput{VendorID: v.ID, Amount: -100, PhoneNumber: "0712345678"}, domain.ErrInvalidAmount},
		{"fractional amount", CreateIntentInput{VendorID: v.ID, Amount: 12345, PhoneNumber: "0712345678"}, domain.ErrInvalidAmount},
		{"above gateway maximum", CreateIntentInput{VendorID: v.ID, Amount: domain.MaxPaymentAmount + kes(1), PhoneNumber: "0712345678"}, domain.ErrInvalidAmount},
		{"near int64 max", CreateIntentInput{VendorID: v.ID, Amount: domain.Money(math.MaxInt64 - 7), PhoneNumber: "0712345678"}, domain.ErrInvalidAmount},
		{"bad phone", CreateIntentInput{VendorID: v.ID, Amount: kes(10), PhoneNumber: "12345"}, domain.ErrInvalidRequest},
		{"unknown vendor", CreateIntentInput{VendorID: 99999, Amount: kes(10), PhoneNumber: "0712345678"}, domain.ErrVendorNotFound},
		{"unknown business number", CreateIntentInput{BusinessNumber: "0000000000", Amount: kes(10), PhoneNumber: "0712345678"}, domain.ErrVendorNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.uc.CreateIntent(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.gateway.pushes)
}

func TestCreateIntentAtGatewayMaximum(t *testing.T) {
	f := newFixture(t)
	v := f.vendor(t)
	f.fund(t, v.ID, domain.MaxPaymentAmount)
	f.fund(t, v.ID, domain.MaxPaymentAmount)
	assert.Equal(t, 2*domain.MaxPaymentAmount, f.balance(t, v.ID))
	f.reconciled(t, v.ID)
}

func TestCreateIntentGatewayUnavailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vendor(t)

	f.gateway.pushErr = errors.New("connection reset by peer")
	_, err := f.uc.CreateIntent(ctx, CreateIntentInput{VendorID: v.ID, Amount: kes(100), PhoneNumber: "0712345678"})
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)

	f.gateway.pushErr = nil
	f.gateway.responseCode = "1"
	_, err = f.uc.CreateIntent(ctx, CreateIntentInput{VendorID: v.ID, Amount: kes(100), PhoneNumber: "0712345678"})
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)

	snap, err := f.uc.Ledger(ctx, v.ID)
	require.NoError(t, err)
	assert.Empty(t, snap.Transactions)
}

func TestWithdrawInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	v := f.vendor(t)
	f.fund(t, v.ID, kes(100))

	_, err := f.uc.Withdraw(context.Background(), v.ID, kes(150))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Equal(t, kes(100), f.balance(t, v.ID))
	f.reconciled(t, v.ID)
}

func TestWithdrawSuccess(t *testing.T) {
	f := newFixture(t)
	v := f.vendor(t)
	f.fund(t, v.ID, kes(100))

	out, err := f.uc.Withdraw(context.Background(), v.ID, kes(100))
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionOut, out.Direction)
	assert.Equal(t, domain.TxStatusCompleted, out.Status)
	assert.Equal(t, domain.WithdrawalCounterparty, out.Counterparty)
	assert.Equal(t, domain.Money(0), f.balance(t, v.ID))
	assert.Contains(t, f.publisher.types(), events.WithdrawalCompleted)

	_, err = f.uc.Withdraw(context.Background(), v.ID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.uc.Withdraw(context.Background(), 99999, kes(1))
	assert.ErrorIs(t, err, domain.ErrVendorNotFound)
	f.reconciled(t, v.ID)
}

func TestConcurrentWithdrawalsExactlyOneSucceeds(t *testing.T) {
	f := newFixture(t)
	v := f.vendor(t)
	f.fund(t, v.ID, kes(100))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	start := make(chan struct{})
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.uc.Withdraw(context.Background(), v.ID, kes(60))
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInsufficientBalance):
			insufficient++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, insufficient)
	assert.Equal(t, kes(40), f.balance(t, v.ID))
	f.reconciled(t, v.ID)
}

func TestConcurrentDuplicateCallbacksApplyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vendor(t)

	intent, err := f.uc.CreateIntent(ctx, CreateIntentInput{VendorID: v.ID, Amount: kes(250), PhoneNumber: "0712345678"})
	require.NoError(t, err)

	var applied, duplicate int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code := 0
			if i%2 == 1 {
				code = 1032
			}
			res, err := f.uc.Resolve(ctx, intent.Correlation(), domain.Outcome{ResultCode: code})
			if !assert.NoError(t, err) {
				return
			}
			switch res.Kind {
			case domain.ResolutionApplied:
				atomic.AddInt32(&applied, 1)
			case domain.ResolutionDuplicate:
				atomic.AddInt32(&duplicate, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), applied)
	assert.Equal(t, int32(31), duplicate)

	snap, err := f.uc.Ledger(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, snap.Transactions, 1)
	if snap.Transactions[0].Status == domain.TxStatusCompleted {
		assert.Equal(t, kes(250), snap.Balance)
	} else {
		assert.Equal(t, domain.Money(0), snap.Balance)
	}
	f.reconciled(t, v.ID)
}

func TestReconciliationHoldsUnderRandomConcurrentOps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	vendors := make([]*domain.Vendor, 4)
	for i := range vendors {
		vendors[i] = f.vendor(t)
	}

	var (
		mu      sync.Mutex
		pending []string
	)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(seed, seed*31+7))
			for i := 0; i < 60; i++ {
				v := vendors[rng.IntN(len(vendors))]
				switch rng.IntN(3) {
				case 0:
					intent, err := f.uc.CreateIntent(ctx, CreateIntentInput{
						VendorID:    v.ID,
						Amount:      kes(int64(1 + rng.IntN(200))),
						PhoneNumber: "0712345678",
					})
					if assert.NoError(t, err) {
						mu.Lock()
						pending = append(pending, intent.Correlation())
						mu.Unlock()
					}
				case 1:
					mu.Lock()
					if len(pending) == 0 {
						mu.Unlock()
						continue
					}
					corr := pending[rng.IntN(len(pending))]
					mu.Unlock()
					code := 0
					if rng.IntN(4) == 0 {
						code = 1032
					}
					_, err := f.uc.Resolve(ctx, corr, domain.Outcome{ResultCode: code})
					assert.NoError(t, err)
				case 2:
					_, err := f.uc.Withdraw(ctx, v.ID, kes(int64(1+rng.IntN(150))))
					if err != nil {
						assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
					}
				}
			}
		}(uint64(w + 1))
	}
	wg.Wait()

	for _, v := range vendors {
		f.reconciled(t, v.ID)
	}
}

func TestConflictsAreRetried(t *testing.T) {
	mem := memory.NewStore()
	flaky := &flakyStore{Store: mem, remaining: 2}
	f := newFixtureWithStore(t, mem, flaky)
	v := f.vendor(t)

	intent, err := f.uc.CreateIntent(context.Background(), CreateIntentInput{VendorID: v.ID, Amount: kes(75), PhoneNumber: "0712345678"})
	require.NoError(t, err)

	res, err := f.uc.Resolve(context.Background(), intent.Correlation(), domain.Outcome{ResultCode: 0})
	require.NoError(t, err)
	assert.Equal(t, domain.ResolutionApplied, res.Kind)

	snap, err := mem.Snapshot(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Len(t, snap.Transactions, 1)
	assert.Equal(t, kes(75), snap.Balance)
}

func TestPersistentConflictSurfacesAsStorageUnavailable(t *testing.T) {
	mem := memory.NewStore()
	flaky := &flakyStore{Store: mem, remaining: 1000}
	f := newFixtureWithStore(t, mem, flaky)
	v := f.vendor(t)

	_, err := f.uc.CreateIntent(context.Background(), CreateIntentInput{VendorID: v.ID, Amount: kes(75), PhoneNumber: "0712345678"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.NotErrorIs(t, err, domain.ErrConcurrentConflict)
	assert.Equal(t, domain.KindStorageUnavailable, domain.KindOf(err))

	snap, err := mem.Snapshot(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Empty(t, snap.Transactions)
}

func TestStatementRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vendor(t)

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	clock := base
	f.uc.now = func() time.Time { return clock }

	f.fund(t, v.ID, kes(300))
	clock = base.Add(time.Hour)
	_, err := f.uc.Withdraw(ctx, v.ID, kes(120))
	require.NoError(t, err)
	clock = base.Add(2 * time.Hour)
	_, err = f.uc.CreateIntent(ctx, CreateIntentInput{VendorID: v.ID, Amount: kes(50), PhoneNumber: "0712345678"})
	require.NoError(t, err)
	clock = base.Add(48 * time.Hour)
	f.fund(t, v.ID, kes(10))

	st, err := f.uc.Statement(ctx, v.ID, base, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, st.Transactions, 3)
	assert.Equal(t, kes(300), st.TotalIn)
	assert.Equal(t, kes(120), st.TotalOut)

	_, err = f.uc.Statement(ctx, v.ID, base, base)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = f.uc.Statement(ctx, 99999, base, base.Add(time.Hour))
	assert.ErrorIs(t, err, domain.ErrVendorNotFound)
}

func TestExpireIntents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vendor(t)

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	clock := base
	f.uc.now = func() time.Time { return clock }

	paid, err := f.uc.CreateIntent(ctx, CreateIntentInput{VendorID: v.ID, Amount: kes(80), PhoneNumber: "0712345678"})
	require.NoError(t, err)
	abandoned, err := f.uc.CreateIntent(ctx, CreateIntentInput{VendorID: v.ID, Amount: kes(40), PhoneNumber: "0712345678"})
	require.NoError(t, err)
	clock = base.Add(5 * time.Minute)
	fresh, err := f.uc.CreateIntent(ctx, CreateIntentInput{VendorID: v.ID, Amount: kes(10), PhoneNumber: "0712345678"})
	require.NoError(t, err)

	zero := 0
	f.gateway.queryResults[paid.Correlation()] = &provider.QueryResult{CorrelationID: paid.Correlation(), ResultCode: &zero}

	clock = base.Add(11 * time.Minute)
	n, err := f.uc.ExpireIntents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	snap, err := f.uc.Ledger(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, kes(80), snap.Balance)

	byCorr := map[string]domain.Transaction{}
	for _, txn := range snap.Transactions {
		byCorr[txn.Correlation()] = txn
	}
	assert.Equal(t, domain.TxStatusCompleted, byCorr[paid.Correlation()].Status)
	assert.Equal(t, domain.TxStatusFailed, byCorr[abandoned.Correlation()].Status)
	require.NotNil(t, byCorr[abandoned.Correlation()].ResultCode)
	assert.Equal(t, domain.ResultCodeExpired, *byCorr[abandoned.Correlation()].ResultCode)
	assert.Equal(t, domain.TxStatusPending, byCorr[fresh.Correlation()].Status)

	// The customer's late confirmation is a duplicate of the expiry.
	late, err := f.uc.Resolve(ctx, abandoned.Correlation(), domain.Outcome{ResultCode: 0})
	require.NoError(t, err)
	assert.Equal(t, domain.ResolutionDuplicate, late.Kind)
	assert.Equal(t, kes(80), f.balance(t, v.ID))

	// Nothing left to expire until the fresh intent's TTL passes.
	n, err = f.uc.ExpireIntents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	f.reconciled(t, v.ID)
}

func TestExpireIntentsWhenGatewayQueryFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.vendor(t)

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	clock := base
	f.uc.now = func() time.Time { return clock }

	intent, err := f.uc.CreateIntent(ctx, CreateIntentInput{VendorID: v.ID, Amount: kes(40), PhoneNumber: "0712345678"})
	require.NoError(t, err)

	f.gateway.queryErr = errors.New("gateway timeout")
	clock = base.Add(time.Hour)
	n, err := f.uc.ExpireIntents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	snap, err := f.uc.Ledger(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, snap.Transactions, 1)
	assert.Equal(t, intent.Correlation(), snap.Transactions[0].Correlation())
	assert.Equal(t, domain.TxStatusFailed, snap.Transactions[0].Status)
	assert.Equal(t, domain.Money(0), snap.Balance)
}
