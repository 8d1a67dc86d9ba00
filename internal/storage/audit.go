package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditEvent is one recorded expense mutation, appended by the worker as
// it drains the event queue.
type AuditEvent struct {
	ID          int64     `json:"id"`
	EventType   string    `json:"eventType"`
	OwnerID     uuid.UUID `json:"ownerId"`
	ExpenseID   uuid.UUID `json:"expenseId"`
	AmountCents int64     `json:"amountCents"`
	OccurredAt  time.Time `json:"occurredAt"`
	RecordedAt  time.Time `json:"recordedAt"`
}

func (r *SQLiteRepository) RecordAuditEvent(ctx context.Context, ev AuditEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events (event_type, owner_id, expense_id, amount_cents, occurred_at)
		VALUES (?, ?, ?, ?, ?)`,
		ev.EventType, ev.OwnerID.String(), ev.ExpenseID.String(),
		ev.AmountCents, ev.OccurredAt.UTC())
	if err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}
	return nil
}

// ListAuditEvents returns an owner's mutation history, newest first.
func (r *SQLiteRepository) ListAuditEvents(ctx context.Context, ownerID uuid.UUID, limit int) ([]AuditEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_type, owner_id, expense_id, amount_cents, occurred_at, recorded_at
		FROM audit_events
		WHERE owner_id = ?
		ORDER BY occurred_at DESC
		LIMIT ?`,
		ownerID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	events := []AuditEvent{}
	for rows.Next() {
		var (
			ev               AuditEvent
			rawOwner, rawExp string
		)
		if err := rows.Scan(&ev.ID, &ev.EventType, &rawOwner, &rawExp,
			&ev.AmountCents, &ev.OccurredAt, &ev.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if ev.OwnerID, err = uuid.Parse(rawOwner); err != nil {
			return nil, fmt.Errorf("parse audit owner id: %w", err)
		}
		if ev.ExpenseID, err = uuid.Parse(rawExp); err != nil {
			return nil, fmt.Errorf("parse audit expense id: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
