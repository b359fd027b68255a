package storage

import (
	"context"
	"fmt"

	"expenseflow/internal/core"
)

const auditColumns = `id, event_id, expense_id, action, actor_id, owner_id, from_status, to_status, occurred_at`

// InsertAuditEvent stores ev once per EventID. Redelivered events are ignored
// and reported with inserted=false.
func (r *Repository) InsertAuditEvent(ctx context.Context, ev core.AuditEvent) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO audit_events (event_id, expense_id, action, actor_id, owner_id, from_status, to_status, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id) DO NOTHING`),
		ev.EventID, ev.ExpenseID, string(ev.Action), ev.ActorID, ev.OwnerID,
		string(ev.FromStatus), string(ev.ToStatus), ev.OccurredAt.UTC())
	if err != nil {
		return false, fmt.Errorf("insert audit event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert audit event: %w", err)
	}
	return n > 0, nil
}

// ListAuditEvents returns the history of one expense, oldest first.
func (r *Repository) ListAuditEvents(ctx context.Context, expenseID int64) ([]core.AuditEvent, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`SELECT `+auditColumns+` FROM audit_events WHERE expense_id = ? ORDER BY occurred_at, id`), expenseID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []core.AuditEvent
	for rows.Next() {
		var (
			ev               core.AuditEvent
			action, from, to string
			occurredAt       sqlTime
		)
		if err := rows.Scan(&ev.ID, &ev.EventID, &ev.ExpenseID, &action, &ev.ActorID, &ev.OwnerID, &from, &to, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		ev.Action = core.Action(action)
		ev.FromStatus, ev.ToStatus = core.Status(from), core.Status(to)
		ev.OccurredAt = occurredAt.t
		out = append(out, ev)
	}
	return out, rows.Err()
}
