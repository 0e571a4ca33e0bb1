// Package memory is an in-process ledger store used for local development and
// tests. Mutations on one vendor are serialised by that vendor's mutex, held for
// the life of the store transaction; different vendors never contend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"scan2pay-service/internal/domain"
	"scan2pay-service/internal/repository"
)

type Store struct {
	mu            sync.RWMutex
	vendors       map[int64]*domain.Vendor
	txns          map[int64]*domain.Transaction
	byCorrelation map[string]int64
	byReference   map[string]int64
	callbacks     []domain.CallbackRecord

	nextVendorID   int64
	nextTxID       int64
	nextCallbackID int64

	locksMu     sync.Mutex
	vendorLocks map[int64]*sync.Mutex
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		vendors:       make(map[int64]*domain.Vendor),
		txns:          make(map[int64]*domain.Transaction),
		byCorrelation: make(map[string]int64),
		byReference:   make(map[string]int64),
		vendorLocks:   make(map[int64]*sync.Mutex),
	}
}

func (s *Store) vendorLock(vendorID int64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	m, ok := s.vendorLocks[vendorID]
	if !ok {
		m = &sync.Mutex{}
		s.vendorLocks[vendorID] = m
	}
	return m
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{s: s, held: make(map[int64]*sync.Mutex)}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) CreateVendor(ctx context.Context, v *domain.Vendor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.vendors {
		switch {
		case existing.Email == v.Email:
			return domain.WithMessage(domain.ErrVendorExists, "email already registered")
		case existing.PhoneNumber == v.PhoneNumber:
			return domain.WithMessage(domain.ErrVendorExists, "phone number already registered")
		case existing.BusinessNumber == v.BusinessNumber:
			return repository.ErrBusinessNumberTaken
		}
	}

	s.nextVendorID++
	v.ID = s.nextVendorID
	if v.RegisteredAt.IsZero() {
		v.RegisteredAt = time.Now().UTC()
	}
	cp := *v
	s.vendors[v.ID] = &cp
	return nil
}

// GetVendorByID waits for any open store transaction on the vendor, so the
// balance it returns is always a committed one.
func (s *Store) GetVendorByID(ctx context.Context, id int64) (*domain.Vendor, error) {
	m := s.vendorLock(id)
	m.Lock()
	defer m.Unlock()
	return s.getVendor(id)
}

func (s *Store) getVendor(id int64) (*domain.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vendors[id]
	if !ok {
		return nil, domain.ErrVendorNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *Store) GetVendorByEmail(ctx context.Context, email string) (*domain.Vendor, error) {
	return s.findVendor(ctx, func(v *domain.Vendor) bool { return v.Email == email })
}

func (s *Store) GetVendorByBusinessNumber(ctx context.Context, businessNumber string) (*domain.Vendor, error) {
	return s.findVendor(ctx, func(v *domain.Vendor) bool { return v.BusinessNumber == businessNumber })
}

func (s *Store) findVendor(ctx context.Context, match func(*domain.Vendor) bool) (*domain.Vendor, error) {
	id, found := int64(0), false
	s.mu.RLock()
	for _, v := range s.vendors {
		if match(v) {
			id, found = v.ID, true
			break
		}
	}
	s.mu.RUnlock()
	if !found {
		return nil, domain.ErrVendorNotFound
	}
	return s.GetVendorByID(ctx, id)
}

func (s *Store) Snapshot(ctx context.Context, vendorID int64) (*domain.LedgerSnapshot, error) {
	m := s.vendorLock(vendorID)
	m.Lock()
	defer m.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vendors[vendorID]
	if !ok {
		return nil, domain.ErrVendorNotFound
	}
	txns := s.collect(func(t *domain.Transaction) bool { return t.VendorID == vendorID })
	sortNewestFirst(txns)
	return &domain.LedgerSnapshot{VendorID: vendorID, Balance: v.Balance, Transactions: txns}, nil
}

func (s *Store) ListRange(ctx context.Context, vendorID int64, from, to time.Time) ([]domain.Transaction, error) {
	m := s.vendorLock(vendorID)
	m.Lock()
	defer m.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.vendors[vendorID]; !ok {
		return nil, domain.ErrVendorNotFound
	}
	txns := s.collect(func(t *domain.Transaction) bool {
		return t.VendorID == vendorID && !t.CreatedAt.Before(from) && t.CreatedAt.Before(to)
	})
	sortNewestFirst(txns)
	return txns, nil
}

func (s *Store) ListExpiredPending(ctx context.Context, asOf time.Time, limit int) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txns := s.collect(func(t *domain.Transaction) bool {
		return t.Status == domain.TxStatusPending && t.Direction == domain.DirectionIn &&
			t.ExpiresAt != nil && t.ExpiresAt.Before(asOf)
	})
	sort.Slice(txns, func(i, j int) bool { return txns[i].ExpiresAt.Before(*txns[j].ExpiresAt) })
	if limit > 0 && len(txns) > limit {
		txns = txns[:limit]
	}
	return txns, nil
}

func (s *Store) RecordCallback(ctx context.Context, rec *domain.CallbackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCallbackID++
	rec.ID = s.nextCallbackID
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	s.callbacks = append(s.callbacks, *rec)
	return nil
}

// Callbacks returns the recorded callback log, oldest first.
func (s *Store) Callbacks() []domain.CallbackRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.CallbackRecord, len(s.callbacks))
	copy(out, s.callbacks)
	return out
}

// collect must be called with s.mu held.
func (s *Store) collect(match func(*domain.Transaction) bool) []domain.Transaction {
	out := make([]domain.Transaction, 0)
	for _, t := range s.txns {
		if match(t) {
			out = append(out, *t)
		}
	}
	return out
}

func sortNewestFirst(txns []domain.Transaction) {
	sort.Slice(txns, func(i, j int) bool {
		if txns[i].CreatedAt.Equal(txns[j].CreatedAt) {
			return txns[i].ID > txns[j].ID
		}
		return txns[i].CreatedAt.After(txns[j].CreatedAt)
	})
}

// memTx collects the vendor locks it acquires and an undo log replayed on rollback.
type memTx struct {
	s    *Store
	held map[int64]*sync.Mutex
	undo []func()
}

func (tx *memTx) acquire(vendorID int64) {
	if _, ok := tx.held[vendorID]; ok {
		return
	}
	m := tx.s.vendorLock(vendorID)
	m.Lock()
	tx.held[vendorID] = m
}

func (tx *memTx) release() {
	for id, m := range tx.held {
		m.Unlock()
		delete(tx.held, id)
	}
}

func (tx *memTx) rollback() {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (tx *memTx) LockVendor(ctx context.Context, vendorID int64) (*domain.Vendor, error) {
	tx.acquire(vendorID)
	return tx.s.getVendor(vendorID)
}

func (tx *memTx) AdjustBalance(ctx context.Context, vendorID int64, delta domain.Money) (domain.Money, error) {
	tx.acquire(vendorID)

	s := tx.s
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vendors[vendorID]
	if !ok {
		return 0, domain.ErrVendorNotFound
	}
	next := v.Balance + delta
	if delta > 0 && next < v.Balance {
		return v.Balance, domain.Wrap(domain.ErrInternal, fmt.Errorf("balance overflow for vendor %d", vendorID))
	}
	if next < 0 {
		return v.Balance, domain.ErrInsufficientBalance
	}
	prev := v.Balance
	tx.undo = append(tx.undo, func() { v.Balance = prev })
	v.Balance = next
	return next, nil
}

func (tx *memTx) InsertTransaction(ctx context.Context, t *domain.Transaction) error {
	tx.acquire(t.VendorID)

	s := tx.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vendors[t.VendorID]; !ok {
		return domain.ErrVendorNotFound
	}
	if _, dup := s.byReference[t.Reference]; dup {
		return domain.Wrap(domain.ErrInternal, fmt.Errorf("duplicate reference %s", t.Reference))
	}
	corr := t.Correlation()
	if corr != "" {
		if _, dup := s.byCorrelation[corr]; dup {
			return domain.Wrap(domain.ErrInternal, fmt.Errorf("duplicate correlation id %s", corr))
		}
	}

	s.nextTxID++
	t.ID = s.nextTxID
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	cp := *t
	s.txns[t.ID] = &cp
	s.byReference[t.Reference] = t.ID
	if corr != "" {
		s.byCorrelation[corr] = t.ID
	}

	id, ref := t.ID, t.Reference
	tx.undo = append(tx.undo, func() {
		delete(s.txns, id)
		delete(s.byReference, ref)
		if corr != "" {
			delete(s.byCorrelation, corr)
		}
	})
	return nil
}

func (tx *memTx) TransitionPending(ctx context.Context, correlationID string, outcome domain.Outcome, at time.Time) (*domain.Transaction, error) {
	s := tx.s

	s.mu.RLock()
	id, ok := s.byCorrelation[correlationID]
	var vendorID int64
	if ok {
		vendorID = s.txns[id].VendorID
	}
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	tx.acquire(vendorID)

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.txns[id]
	if !ok || t.Status != domain.TxStatusPending {
		return nil, nil
	}
	prev := *t
	tx.undo = append(tx.undo, func() { *t = prev })

	code := outcome.ResultCode
	desc := outcome.ResultDesc
	resolvedAt := at
	t.Status = outcome.TerminalStatus()
	t.ResultCode = &code
	t.ResultDesc = &desc
	if outcome.Receipt != "" {
		receipt := outcome.Receipt
		t.Receipt = &receipt
	}
	t.ResolvedAt = &resolvedAt

	cp := *t
	return &cp, nil
}

func (tx *memTx) GetByCorrelationID(ctx context.Context, correlationID string) (*domain.Transaction, error) {
	s := tx.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCorrelation[correlationID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s.txns[id]
	return &cp, nil
}
