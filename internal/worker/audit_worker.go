package worker

import (
	"context"
	"fmt"

	"expenseflow/internal/amqp"
	"expenseflow/internal/core"
	"expenseflow/internal/log"
)

// AuditStore persists lifecycle events. Inserting an event id twice is a
// no-op that reports inserted=false.
type AuditStore interface {
	InsertAuditEvent(ctx context.Context, ev core.AuditEvent) (inserted bool, err error)
}

// EventSource delivers lifecycle events until ctx ends.
type EventSource interface {
	ConsumeExpenseEvents(ctx context.Context, handler func(context.Context, *amqp.ExpenseEventMessage) error) error
}

// AuditWorker writes every lifecycle event it receives to the audit log table.
type AuditWorker struct {
	store  AuditStore
	logger *log.Logger
}

func NewAuditWorker(store AuditStore) *AuditWorker {
	return &AuditWorker{store: store, logger: log.Default(log.ComponentWorker)}
}

// HandleExpenseEvent stores one event. Redelivered events are acknowledged
// without writing a second row.
func (w *AuditWorker) HandleExpenseEvent(ctx context.Context, msg *amqp.ExpenseEventMessage) error {
	ev := msg.AuditEvent()
	if !ev.Action.IsValid() {
		w.logger.WarnContext(ctx, "Dropping event with unknown action",
			"event_id", ev.EventID, log.FieldAction, ev.Action)
		return nil
	}
	inserted, err := w.store.InsertAuditEvent(ctx, ev)
	if err != nil {
		return fmt.Errorf("store audit event %s: %w", ev.EventID, err)
	}
	if !inserted {
		w.logger.DebugContext(ctx, "Duplicate expense event ignored", "event_id", ev.EventID)
		return nil
	}
	w.logger.InfoContext(ctx, "Expense event recorded",
		"event_id", ev.EventID,
		log.FieldExpenseID, ev.ExpenseID,
		log.FieldAction, ev.Action,
		log.FieldActorID, ev.ActorID)
	return nil
}

// Run consumes events from src until ctx is cancelled.
func (w *AuditWorker) Run(ctx context.Context, src EventSource) error {
	w.logger.InfoContext(ctx, "Audit worker started")
	err := src.ConsumeExpenseEvents(ctx, w.HandleExpenseEvent)
	if ctx.Err() != nil {
		w.logger.InfoContext(ctx, "Audit worker stopped")
		return nil
	}
	return err
}
