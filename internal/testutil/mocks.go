package testutil

import (
	"context"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/paycore/internal/domain/errors"
	"github.com/cassiomorais/paycore/internal/domain/idempotency"
	"github.com/cassiomorais/paycore/internal/domain/method"
	"github.com/cassiomorais/paycore/internal/domain/outbox"
	"github.com/cassiomorais/paycore/internal/domain/transaction"
	"github.com/google/uuid"
)

// --- Transaction Repository Mock ---

// MockTransactionRepository is an in-memory transaction.Repository. The
// default Update enforces the same version gate as the real repository, so
// concurrency races behave the same in tests.
type MockTransactionRepository struct {
	mu           sync.Mutex
	transactions map[uuid.UUID]*transaction.Transaction

	CreateFunc           func(ctx context.Context, t *transaction.Transaction) error
	GetByIDFunc          func(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)
	GetByExternalRefFunc func(ctx context.Context, ref string) (*transaction.Transaction, error)
	GetByChargeKeyFunc   func(ctx context.Context, key string) (*transaction.Transaction, error)
	UpdateFunc           func(ctx context.Context, t *transaction.Transaction) error
	ListByOwnerFunc      func(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*transaction.Transaction, error)
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{
		transactions: make(map[uuid.UUID]*transaction.Transaction),
	}
}

func (m *MockTransactionRepository) Create(ctx context.Context, t *transaction.Transaction) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.transactions[t.ID] = &cp
	return nil
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[id]
	if !ok {
		return nil, domainErrors.ErrTransactionNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MockTransactionRepository) GetByExternalRef(ctx context.Context, ref string) (*transaction.Transaction, error) {
	if m.GetByExternalRefFunc != nil {
		return m.GetByExternalRefFunc(ctx, ref)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.transactions {
		if t.ExternalRef != nil && *t.ExternalRef == ref {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domainErrors.ErrTransactionNotFound
}

func (m *MockTransactionRepository) GetByChargeKey(ctx context.Context, key string) (*transaction.Transaction, error) {
	if m.GetByChargeKeyFunc != nil {
		return m.GetByChargeKeyFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.transactions {
		if t.ChargeKey == key {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domainErrors.ErrTransactionNotFound
}

func (m *MockTransactionRepository) Update(ctx context.Context, t *transaction.Transaction) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.transactions[t.ID]
	if !ok {
		return domainErrors.ErrTransactionNotFound
	}
	if stored.Version != t.Version {
		return domainErrors.ErrVersionConflict
	}
	t.Version++
	cp := *t
	m.transactions[t.ID] = &cp
	return nil
}

func (m *MockTransactionRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*transaction.Transaction, error) {
	if m.ListByOwnerFunc != nil {
		return m.ListByOwnerFunc(ctx, ownerID, limit, offset)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*transaction.Transaction
	for _, t := range m.transactions {
		if t.OwnerID == ownerID {
			cp := *t
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *MockTransactionRepository) ListStaleNonTerminal(ctx context.Context, olderThan time.Time, limit int) ([]*transaction.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*transaction.Transaction
	for _, t := range m.transactions {
		if !t.IsTerminal() && t.UpdatedAt.Before(olderThan) {
			cp := *t
			result = append(result, &cp)
			if len(result) == limit {
				break
			}
		}
	}
	return result, nil
}

func (m *MockTransactionRepository) CountOpenByMethod(ctx context.Context, methodID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, t := range m.transactions {
		if t.PaymentMethodID == methodID && !t.IsTerminal() {
			count++
		}
	}
	return count, nil
}

// --- Method Repository Mock ---

// MockMethodRepository is an in-memory method.Repository.
type MockMethodRepository struct {
	mu      sync.Mutex
	methods map[uuid.UUID]*method.PaymentMethod

	GetDefaultByOwnerFunc func(ctx context.Context, ownerID uuid.UUID) (*method.PaymentMethod, error)
	SwapDefaultFunc       func(ctx context.Context, ownerID, id uuid.UUID) error
	DeleteFunc            func(ctx context.Context, id uuid.UUID) error
}

func NewMockMethodRepository() *MockMethodRepository {
	return &MockMethodRepository{
		methods: make(map[uuid.UUID]*method.PaymentMethod),
	}
}

func (m *MockMethodRepository) Create(ctx context.Context, pm *method.PaymentMethod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *pm
	m.methods[pm.ID] = &cp
	return nil
}

func (m *MockMethodRepository) GetByID(ctx context.Context, id uuid.UUID) (*method.PaymentMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pm, ok := m.methods[id]
	if !ok {
		return nil, domainErrors.ErrMethodNotFound
	}
	cp := *pm
	return &cp, nil
}

func (m *MockMethodRepository) GetDefaultByOwner(ctx context.Context, ownerID uuid.UUID) (*method.PaymentMethod, error) {
	if m.GetDefaultByOwnerFunc != nil {
		return m.GetDefaultByOwnerFunc(ctx, ownerID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pm := range m.methods {
		if pm.OwnerID == ownerID && pm.IsDefault {
			cp := *pm
			return &cp, nil
		}
	}
	return nil, domainErrors.ErrMethodNotFound
}

func (m *MockMethodRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*method.PaymentMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*method.PaymentMethod
	for _, pm := range m.methods {
		if pm.OwnerID == ownerID {
			cp := *pm
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *MockMethodRepository) Update(ctx context.Context, pm *method.PaymentMethod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.methods[pm.ID]
	if !ok {
		return domainErrors.ErrMethodNotFound
	}
	if stored.Version != pm.Version {
		return domainErrors.ErrVersionConflict
	}
	pm.Version++
	cp := *pm
	m.methods[pm.ID] = &cp
	return nil
}

func (m *MockMethodRepository) SwapDefault(ctx context.Context, ownerID, id uuid.UUID) error {
	if m.SwapDefaultFunc != nil {
		return m.SwapDefaultFunc(ctx, ownerID, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.methods[id]
	if !ok || target.OwnerID != ownerID {
		return domainErrors.ErrMethodNotFound
	}
	for _, pm := range m.methods {
		if pm.OwnerID == ownerID {
			pm.IsDefault = false
		}
	}
	target.IsDefault = true
	return nil
}

func (m *MockMethodRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.methods[id]; !ok {
		return domainErrors.ErrMethodNotFound
	}
	delete(m.methods, id)
	return nil
}

// --- Outbox Repository Mock ---

// MockOutboxRepository is an in-memory outbox.Repository.
type MockOutboxRepository struct {
	mu      sync.Mutex
	entries []*outbox.Entry

	InsertFunc         func(ctx context.Context, entry *outbox.Entry) error
	MarkDispatchedFunc func(ctx context.Context, id uuid.UUID) error
	RecordAttemptFunc  func(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time) error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

func (m *MockOutboxRepository) Insert(ctx context.Context, entry *outbox.Entry) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MockOutboxRepository) GetDue(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var due []*outbox.Entry
	for _, e := range m.entries {
		if e.Status == outbox.StatusPending && !e.NextAttemptAt.After(now) {
			due = append(due, e)
			if len(due) == limit {
				break
			}
		}
	}
	return due, nil
}

func (m *MockOutboxRepository) MarkDispatched(ctx context.Context, id uuid.UUID) error {
	if m.MarkDispatchedFunc != nil {
		return m.MarkDispatchedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			e.Status = outbox.StatusDispatched
			now := time.Now()
			e.DispatchedAt = &now
			return nil
		}
	}
	return nil
}

func (m *MockOutboxRepository) RecordAttempt(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time) error {
	if m.RecordAttemptFunc != nil {
		return m.RecordAttemptFunc(ctx, id, nextAttemptAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			e.Attempts++
			e.NextAttemptAt = nextAttemptAt
			return nil
		}
	}
	return nil
}

func (m *MockOutboxRepository) CountPendingByCorrelation(ctx context.Context, correlationID uuid.UUID, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, e := range m.entries {
		if e.CorrelationID == correlationID && e.Status == outbox.StatusPending && e.CreatedAt.Before(before) {
			count++
		}
	}
	return count, nil
}

// Entries returns a snapshot of all inserted entries.
func (m *MockOutboxRepository) Entries() []*outbox.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*outbox.Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// --- Idempotency Repository Mock ---

// MockIdempotencyRepository is an in-memory idempotency.Repository.
type MockIdempotencyRepository struct {
	mu      sync.Mutex
	records map[string]*idempotency.Record
}

func NewMockIdempotencyRepository() *MockIdempotencyRepository {
	return &MockIdempotencyRepository{
		records: make(map[string]*idempotency.Record),
	}
}

func (m *MockIdempotencyRepository) Get(ctx context.Context, kind, key string) (*idempotency.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[kind+"/"+key]
	if !ok {
		return nil, nil
	}
	return rec, nil
}

func (m *MockIdempotencyRepository) Set(ctx context.Context, rec *idempotency.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Kind+"/"+rec.Key] = rec
	return nil
}

func (m *MockIdempotencyRepository) Cleanup(ctx context.Context) (int64, error) {
	return 0, nil
}

// --- Transaction Manager Mock ---

// MockTxManager runs the function directly; there is no transaction to
// commit or roll back in memory.
type MockTxManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *MockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// --- Reconcile Queue Mock ---

// MockReconcileQueue records enqueued transaction ids.
type MockReconcileQueue struct {
	mu       sync.Mutex
	enqueued []uuid.UUID

	EnqueueFunc func(ctx context.Context, transactionID uuid.UUID, attempt int) error
}

func (m *MockReconcileQueue) Enqueue(ctx context.Context, transactionID uuid.UUID, attempt int) error {
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(ctx, transactionID, attempt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueued = append(m.enqueued, transactionID)
	return nil
}

// Enqueued returns a snapshot of enqueued transaction ids.
func (m *MockReconcileQueue) Enqueued() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uuid.UUID, len(m.enqueued))
	copy(out, m.enqueued)
	return out
}
