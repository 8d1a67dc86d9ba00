package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"expensed/internal/cache"
	"expensed/internal/core"
	"expensed/internal/events"
	"expensed/internal/storage"

	"github.com/google/uuid"
)

type recordingPublisher struct {
	events []*events.ExpenseEvent
	err    error
}

func (p *recordingPublisher) PublishExpenseEvent(_ context.Context, event *events.ExpenseEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func newTestService(t *testing.T, publisher Publisher) (*ExpenseService, uuid.UUID) {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	user := &core.User{Name: "Test", Email: "test@example.com", PasswordHash: "x"}
	if err := repo.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	summaries := cache.NewLRUCache[core.Summary](10, time.Minute)
	return NewExpenseService(repo, publisher, summaries), user.ID
}

func testExpense(ownerID uuid.UUID) *core.Expense {
	return &core.Expense{
		OwnerID:       ownerID,
		Title:         "Lunch",
		Amount:        core.Money{Cents: 1250},
		Category:      core.CategoryFood,
		Date:          time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
		PaymentMethod: core.PaymentCash,
	}
}

func TestCreatePublishesEvent(t *testing.T) {
	pub := &recordingPublisher{}
	svc, ownerID := newTestService(t, pub)

	e := testExpense(ownerID)
	if err := svc.Create(context.Background(), e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if len(pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.events))
	}
	if pub.events[0].Type != events.TypeExpenseCreated {
		t.Errorf("event type = %q, want %q", pub.events[0].Type, events.TypeExpenseCreated)
	}
	if pub.events[0].AmountCents != 1250 {
		t.Errorf("event amount = %d, want 1250", pub.events[0].AmountCents)
	}
}

// A broken publisher must never fail the mutation.
func TestCreateSurvivesPublishFailure(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc, ownerID := newTestService(t, pub)

	e := testExpense(ownerID)
	if err := svc.Create(context.Background(), e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := svc.Get(context.Background(), ownerID, e.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Title != "Lunch" {
		t.Errorf("Title = %q, want Lunch", got.Title)
	}
}

func TestCreateWithNilPublisher(t *testing.T) {
	svc, ownerID := newTestService(t, nil)

	if err := svc.Create(context.Background(), testExpense(ownerID)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
}

func TestCreateRejectsInvalidExpense(t *testing.T) {
	pub := &recordingPublisher{}
	svc, ownerID := newTestService(t, pub)

	e := testExpense(ownerID)
	e.Amount = core.Money{Cents: 0}
	if err := svc.Create(context.Background(), e); err == nil {
		t.Error("Create() accepted a zero amount")
	}
	if len(pub.events) != 0 {
		t.Errorf("published %d events for a rejected expense, want 0", len(pub.events))
	}
}

func TestSummarizeInvalidatedByMutation(t *testing.T) {
	svc, ownerID := newTestService(t, nil)
	ctx := context.Background()
	window := core.Window{Year: 2025, Month: 3}

	if err := svc.Create(ctx, testExpense(ownerID)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	first, err := svc.Summarize(ctx, ownerID, window)
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if first.TotalAmount.Cents != 1250 {
		t.Fatalf("TotalAmount = %d, want 1250", first.TotalAmount.Cents)
	}

	// Second expense must show up despite the cached first summary.
	second := testExpense(ownerID)
	second.Title = "Dinner"
	second.Amount = core.Money{Cents: 2000}
	if err := svc.Create(ctx, second); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	refreshed, err := svc.Summarize(ctx, ownerID, window)
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if refreshed.TotalAmount.Cents != 3250 {
		t.Errorf("TotalAmount = %d after mutation, want 3250", refreshed.TotalAmount.Cents)
	}
}

func TestDeletePublishesAndReturnsRecord(t *testing.T) {
	pub := &recordingPublisher{}
	svc, ownerID := newTestService(t, pub)
	ctx := context.Background()

	e := testExpense(ownerID)
	if err := svc.Create(ctx, e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	deleted, err := svc.Delete(ctx, ownerID, e.ID)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if deleted.ID != e.ID {
		t.Errorf("deleted ID = %v, want %v", deleted.ID, e.ID)
	}

	last := pub.events[len(pub.events)-1]
	if last.Type != events.TypeExpenseDeleted {
		t.Errorf("last event type = %q, want %q", last.Type, events.TypeExpenseDeleted)
	}

	total, err := svc.Total(ctx, ownerID)
	if err != nil {
		t.Fatalf("Total() error = %v", err)
	}
	if total.Cents != 0 {
		t.Errorf("ledger = %d after delete, want 0", total.Cents)
	}
}
