package services

import (
	"context"
	"fmt"
	"log/slog"

	"expensed/internal/cache"
	"expensed/internal/core"
	"expensed/internal/events"
	"expensed/internal/log"
	"expensed/internal/storage"

	"github.com/google/uuid"
)

// Publisher emits expense mutation events. The AMQP client satisfies it.
type Publisher interface {
	PublishExpenseEvent(ctx context.Context, event *events.ExpenseEvent) error
}

// ExpenseService orchestrates expense mutations across the store, the
// event stream and the summary cache. The store is the source of truth:
// a failed publish never fails the mutation.
type ExpenseService struct {
	storage   *storage.SQLiteRepository
	publisher Publisher
	summaries *cache.LRUCache[core.Summary]
}

func NewExpenseService(storage *storage.SQLiteRepository, publisher Publisher, summaries *cache.LRUCache[core.Summary]) *ExpenseService {
	return &ExpenseService{
		storage:   storage,
		publisher: publisher,
		summaries: summaries,
	}
}

func (s *ExpenseService) Create(ctx context.Context, e *core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if err := s.storage.CreateExpense(ctx, e); err != nil {
		return fmt.Errorf("create expense: %w", err)
	}

	s.publish(ctx, events.TypeExpenseCreated, e)
	s.invalidateSummaries(e.OwnerID.String())
	return nil
}

func (s *ExpenseService) Get(ctx context.Context, ownerID, id uuid.UUID) (*core.Expense, error) {
	return s.storage.GetExpense(ctx, ownerID, id)
}

func (s *ExpenseService) Update(ctx context.Context, e *core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if err := s.storage.UpdateExpense(ctx, e); err != nil {
		return err
	}

	s.publish(ctx, events.TypeExpenseUpdated, e)
	s.invalidateSummaries(e.OwnerID.String())
	return nil
}

func (s *ExpenseService) Delete(ctx context.Context, ownerID, id uuid.UUID) (*core.Expense, error) {
	deleted, err := s.storage.DeleteExpense(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.TypeExpenseDeleted, deleted)
	s.invalidateSummaries(ownerID.String())
	return deleted, nil
}

func (s *ExpenseService) List(ctx context.Context, ownerID uuid.UUID, params core.ListParams) (core.ListResult, error) {
	if err := params.Validate(); err != nil {
		return core.ListResult{}, err
	}
	return s.storage.ListExpenses(ctx, ownerID, params)
}

// Summarize aggregates the owner's expenses inside the window, serving
// repeated requests from the cache until a mutation invalidates it.
func (s *ExpenseService) Summarize(ctx context.Context, ownerID uuid.UUID, w core.Window) (core.Summary, error) {
	if err := w.Validate(); err != nil {
		return core.Summary{}, err
	}

	key := summaryKey(ownerID, w)
	if s.summaries != nil {
		if cached, ok := s.summaries.Get(key); ok {
			return cached, nil
		}
	}

	summary, err := s.storage.Summarize(ctx, ownerID, w)
	if err != nil {
		return core.Summary{}, err
	}
	if s.summaries != nil {
		s.summaries.Set(key, summary)
	}
	return summary, nil
}

// Total returns the owner's running ledger total.
func (s *ExpenseService) Total(ctx context.Context, ownerID uuid.UUID) (core.Money, error) {
	return s.storage.LedgerTotal(ctx, ownerID)
}

func (s *ExpenseService) publish(ctx context.Context, eventType string, e *core.Expense) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, events.NewExpenseEvent(eventType, e)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense event",
			"type", eventType,
			log.FieldExpenseID, e.ID,
			log.FieldError, err.Error())
	}
}

func (s *ExpenseService) invalidateSummaries(ownerPrefix string) {
	if s.summaries != nil {
		s.summaries.DeletePrefix(ownerPrefix + ":")
	}
}

func summaryKey(ownerID uuid.UUID, w core.Window) string {
	return ownerID.String() + ":" + w.Period()
}

// Close releases the storage and publisher connections.
func (s *ExpenseService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if closer, ok := s.publisher.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %v", errs)
	}
	return nil
}
