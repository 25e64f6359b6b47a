package publisher_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cassiomorais/paycore/internal/domain/outbox"
	"github.com/cassiomorais/paycore/internal/domain/transaction"
	"github.com/cassiomorais/paycore/internal/infrastructure/observability"
	"github.com/cassiomorais/paycore/internal/publisher"
	"github.com/cassiomorais/paycore/internal/testutil"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// fakeSink collects published envelopes and can fail selected event ids.
type fakeSink struct {
	mu        sync.Mutex
	published []outbox.Envelope
	failIDs   map[string]bool
}

func newFakeSink() *fakeSink {
	return &fakeSink{failIDs: make(map[string]bool)}
}

func (s *fakeSink) Publish(ctx context.Context, env outbox.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIDs[env.EventID] {
		return errors.New("sink unavailable")
	}
	s.published = append(s.published, env)
	return nil
}

func (s *fakeSink) Published() []outbox.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]outbox.Envelope, len(s.published))
	copy(out, s.published)
	return out
}

func newTransaction(t *testing.T) *transaction.Transaction {
	t.Helper()
	txn, err := transaction.New(uuid.New(), transaction.Amount{MinorUnits: 1050, Currency: "USD"}, uuid.New())
	if err != nil {
		t.Fatalf("transaction.New: %v", err)
	}
	return txn
}

func newPublisher(repo *testutil.MockOutboxRepository, sink publisher.EventSink) *publisher.Publisher {
	metrics := observability.NewMetrics("paycore_test", prometheus.NewRegistry())
	return publisher.New(repo, sink, &testutil.MockTxManager{}, publisher.Options{}, metrics, zerolog.Nop())
}

func TestDrainOnce_MarksDispatched(t *testing.T) {
	repo := testutil.NewMockOutboxRepository()
	sink := newFakeSink()
	pub := newPublisher(repo, sink)

	txn := newTransaction(t)
	e := outbox.NewPaymentInitiated(txn)
	repo.Insert(context.Background(), e)

	if err := pub.DrainOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	published := sink.Published()
	if len(published) != 1 || published[0].EventID != e.ID.String() {
		t.Fatalf("expected the entry on the sink, got %d envelopes", len(published))
	}

	for _, stored := range repo.Entries() {
		if stored.ID == e.ID && stored.Status != outbox.StatusDispatched {
			t.Errorf("expected dispatched, got %s", stored.Status)
		}
	}
}

func TestDrainOnce_FailureReschedulesPending(t *testing.T) {
	repo := testutil.NewMockOutboxRepository()
	sink := newFakeSink()
	pub := newPublisher(repo, sink)

	txn := newTransaction(t)
	e := outbox.NewPaymentInitiated(txn)
	sink.failIDs[e.ID.String()] = true
	repo.Insert(context.Background(), e)

	if err := pub.DrainOnce(context.Background()); err != nil {
		t.Fatalf("a failed publish must not abort the drain: %v", err)
	}

	var stored *outbox.Entry
	for _, s := range repo.Entries() {
		if s.ID == e.ID {
			stored = s
		}
	}
	if stored == nil {
		t.Fatal("entry vanished from the outbox")
	}
	if stored.Status != outbox.StatusPending {
		t.Errorf("failed entry must stay pending, got %s", stored.Status)
	}
	if stored.Attempts != 1 {
		t.Errorf("expected 1 recorded attempt, got %d", stored.Attempts)
	}
	if !stored.NextAttemptAt.After(time.Now()) {
		t.Error("expected the next attempt to be scheduled in the future")
	}
}

func TestDrainOnce_CorrelationOrderHeld(t *testing.T) {
	// The first event of the transaction fails to publish; its sibling in
	// the same batch must be held back rather than going out first.
	repo := testutil.NewMockOutboxRepository()
	sink := newFakeSink()
	pub := newPublisher(repo, sink)

	txn := newTransaction(t)
	first := outbox.NewPaymentInitiated(txn)
	second := outbox.NewPaymentProcessed(txn)
	second.CreatedAt = first.CreatedAt.Add(time.Millisecond)
	sink.failIDs[first.ID.String()] = true
	repo.Insert(context.Background(), first)
	repo.Insert(context.Background(), second)

	// An unrelated transaction's event must be unaffected.
	other := outbox.NewPaymentInitiated(newTransaction(t))
	repo.Insert(context.Background(), other)

	if err := pub.DrainOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	published := sink.Published()
	if len(published) != 1 || published[0].EventID != other.ID.String() {
		t.Fatalf("expected only the unrelated event out, got %d envelopes", len(published))
	}

	// After the sink recovers, both siblings drain in creation order.
	delete(sink.failIDs, first.ID.String())
	for _, s := range repo.Entries() {
		if s.Status == outbox.StatusPending {
			s.NextAttemptAt = time.Now().Add(-time.Second)
		}
	}
	if err := pub.DrainOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	published = sink.Published()
	if len(published) != 3 {
		t.Fatalf("expected all 3 events out, got %d", len(published))
	}
	if published[1].EventID != first.ID.String() || published[2].EventID != second.ID.String() {
		t.Error("correlation siblings must publish in creation order")
	}
}

func TestDrainOnce_OlderPendingSiblingBlocks(t *testing.T) {
	// The older sibling is still waiting out its backoff and is not in this
	// batch at all; the younger one must not jump the queue.
	repo := testutil.NewMockOutboxRepository()
	sink := newFakeSink()
	pub := newPublisher(repo, sink)

	txn := newTransaction(t)
	first := outbox.NewPaymentInitiated(txn)
	first.Attempts = 2
	first.NextAttemptAt = time.Now().Add(time.Hour)
	second := outbox.NewPaymentProcessed(txn)
	second.CreatedAt = first.CreatedAt.Add(time.Millisecond)
	repo.Insert(context.Background(), first)
	repo.Insert(context.Background(), second)

	if err := pub.DrainOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sink.Published()) != 0 {
		t.Error("younger sibling must wait for the delayed older event")
	}
}

func TestDrainOnce_EmptyOutbox(t *testing.T) {
	pub := newPublisher(testutil.NewMockOutboxRepository(), newFakeSink())
	if err := pub.DrainOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
