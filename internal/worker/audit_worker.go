package worker

import (
	"context"
	"fmt"
	"log/slog"

	"expensed/internal/events"
	"expensed/internal/log"
	"expensed/internal/storage"
)

// AuditWorker drains the expense event queue into the audit_events table,
// giving every mutation a durable history independent of the live rows.
type AuditWorker struct {
	storage *storage.SQLiteRepository
}

func NewAuditWorker(storage *storage.SQLiteRepository) *AuditWorker {
	return &AuditWorker{storage: storage}
}

// HandleEvent records a single mutation event. Errors propagate so the
// delivery is requeued.
func (w *AuditWorker) HandleEvent(ctx context.Context, event *events.ExpenseEvent) error {
	if err := w.validate(event); err != nil {
		// Malformed events would requeue forever; log and drop.
		slog.WarnContext(ctx, "Dropping malformed expense event",
			"type", event.Type,
			log.FieldError, err.Error())
		return nil
	}

	err := w.storage.RecordAuditEvent(ctx, storage.AuditEvent{
		EventType:   event.Type,
		OwnerID:     event.OwnerID,
		ExpenseID:   event.ExpenseID,
		AmountCents: event.AmountCents,
		OccurredAt:  event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}

	slog.InfoContext(ctx, "Audit event recorded",
		"type", event.Type,
		log.FieldExpenseID, event.ExpenseID,
		log.FieldOwnerID, event.OwnerID,
		log.FieldAmountCents, event.AmountCents)
	return nil
}

func (w *AuditWorker) validate(event *events.ExpenseEvent) error {
	switch event.Type {
	case events.TypeExpenseCreated, events.TypeExpenseUpdated, events.TypeExpenseDeleted:
	default:
		return fmt.Errorf("unknown event type %q", event.Type)
	}
	if event.OccurredAt.IsZero() {
		return fmt.Errorf("event has no timestamp")
	}
	return nil
}
