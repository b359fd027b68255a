package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"expenseflow/internal/core"
)

const expenseColumns = `e.id, e.user_id, e.submitted_by, e.category_id, e.description, e.amount_cents,
	e.expense_date, e.status, e.receipt_url, e.notes, e.created_at, e.updated_at`

const expenseViewQuery = `SELECT ` + expenseColumns + `,
	COALESCE(c.name, ''), COALESCE(c.color, ''),
	COALESCE(o.first_name, ''), COALESCE(o.last_name, ''), COALESCE(o.email, ''),
	COALESCE(s.first_name, ''), COALESCE(s.last_name, ''), COALESCE(s.email, '')
FROM expenses e
LEFT JOIN categories c ON c.id = e.category_id
LEFT JOIN users o ON o.id = e.user_id
LEFT JOIN users s ON s.id = e.submitted_by`

// expenseRow holds the raw scan targets of one expenses row.
type expenseRow struct {
	e                    core.Expense
	submittedBy          sql.NullString
	date                 sqlDate
	status               string
	receiptURL, notes    sql.NullString
	createdAt, updatedAt sqlTime
}

func (r *expenseRow) dest() []any {
	return []any{
		&r.e.ID, &r.e.UserID, &r.submittedBy, &r.e.CategoryID, &r.e.Description, &r.e.Amount.Cents,
		&r.date, &r.status, &r.receiptURL, &r.notes, &r.createdAt, &r.updatedAt,
	}
}

func (r *expenseRow) expense() (core.Expense, error) {
	e := r.e
	status, err := core.ParseStatus(r.status)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %d: %w", e.ID, err)
	}
	e.Status = status
	e.SubmittedBy = stringPtr(r.submittedBy)
	e.Date = r.date.d
	e.ReceiptURL = stringPtr(r.receiptURL)
	e.Notes = stringPtr(r.notes)
	e.CreatedAt, e.UpdatedAt = r.createdAt.t, r.updatedAt.t
	return e, nil
}

func scanExpense(s rowScanner) (core.Expense, error) {
	var row expenseRow
	if err := s.Scan(row.dest()...); err != nil {
		return core.Expense{}, err
	}
	return row.expense()
}

func scanExpenseView(s rowScanner) (core.ExpenseView, error) {
	var (
		row                           expenseRow
		v                             core.ExpenseView
		ownerFirst, ownerLast         string
		submitterFirst, submitterLast string
	)
	dest := append(row.dest(),
		&v.CategoryName, &v.CategoryColor,
		&ownerFirst, &ownerLast, &v.OwnerEmail,
		&submitterFirst, &submitterLast, &v.SubmitterEmail)
	if err := s.Scan(dest...); err != nil {
		return core.ExpenseView{}, err
	}
	e, err := row.expense()
	if err != nil {
		return core.ExpenseView{}, err
	}
	v.Expense = e
	v.OwnerName = core.User{ID: e.UserID, Email: v.OwnerEmail, FirstName: ownerFirst, LastName: ownerLast}.DisplayName()
	if e.SubmittedBy != nil {
		v.SubmitterName = core.User{ID: *e.SubmittedBy, Email: v.SubmitterEmail, FirstName: submitterFirst, LastName: submitterLast}.DisplayName()
	}
	return v, nil
}

// CreateExpense inserts e and returns the stored row.
func (r *Repository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	return r.insertExpense(ctx, e, "")
}

// ImportExpense inserts e tagged with the import batch it came from.
func (r *Repository) ImportExpense(ctx context.Context, e core.Expense, batchID string) (core.Expense, error) {
	return r.insertExpense(ctx, e, batchID)
}

func (r *Repository) insertExpense(ctx context.Context, e core.Expense, batchID string) (core.Expense, error) {
	now := r.timestamp()
	if e.Status == "" {
		e.Status = core.StatusPending
	}
	var batch sql.NullString
	if batchID != "" {
		batch = sql.NullString{String: batchID, Valid: true}
	}
	saved, err := scanExpense(r.db.QueryRowContext(ctx, r.rebind(`
		INSERT INTO expenses (user_id, submitted_by, category_id, description, amount_cents,
			expense_date, status, receipt_url, notes, import_batch, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+strings.ReplaceAll(expenseColumns, "e.", "")),
		e.UserID, nullString(e.SubmittedBy), e.CategoryID, e.Description, e.Amount.Cents,
		e.Date.String(), string(e.Status), nullString(e.ReceiptURL), nullString(e.Notes), batch, now, now))
	if err != nil {
		if isForeignKeyViolation(err) {
			return core.Expense{}, &core.ReferentialIntegrityError{Message: "expense owner, submitter or category does not exist"}
		}
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", saved.ID,
		"user_id", saved.UserID,
		"amount_cents", saved.Amount.Cents,
		"status", saved.Status)
	return saved, nil
}

func (r *Repository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	e, err := scanExpense(r.db.QueryRowContext(ctx, r.rebind(`SELECT `+expenseColumns+` FROM expenses e WHERE e.id = ?`), id))
	if err != nil {
		return core.Expense{}, mapError(err, "expense", id)
	}
	return e, nil
}

// GetExpenseView returns one expense with its display fields.
func (r *Repository) GetExpenseView(ctx context.Context, id int64) (core.ExpenseView, error) {
	v, err := scanExpenseView(r.db.QueryRowContext(ctx, r.rebind(expenseViewQuery+` WHERE e.id = ?`), id))
	if err != nil {
		return core.ExpenseView{}, mapError(err, "expense", id)
	}
	return v, nil
}

// UpdateExpense stores the mutable fields of e and refreshes updated_at. Owner
// and submitter never change after creation.
func (r *Repository) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	updated, err := scanExpense(r.db.QueryRowContext(ctx, r.rebind(`
		UPDATE expenses
		SET category_id = ?, description = ?, amount_cents = ?, expense_date = ?, status = ?,
			receipt_url = ?, notes = ?, updated_at = ?
		WHERE id = ?
		RETURNING `+strings.ReplaceAll(expenseColumns, "e.", "")),
		e.CategoryID, e.Description, e.Amount.Cents, e.Date.String(), string(e.Status),
		nullString(e.ReceiptURL), nullString(e.Notes), r.timestamp(), e.ID))
	if err != nil {
		if isForeignKeyViolation(err) {
			return core.Expense{}, core.NotFound("category", e.CategoryID)
		}
		return core.Expense{}, mapError(err, "expense", e.ID)
	}
	return updated, nil
}

func (r *Repository) DeleteExpense(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM expenses WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n == 0 {
		return core.NotFound("expense", id)
	}
	return nil
}

// QueryExpenses returns expenses matching f, newest date first.
func (r *Repository) QueryExpenses(ctx context.Context, f core.ExpenseFilter) ([]core.ExpenseView, error) {
	var (
		where []string
		args  []any
	)
	if f.OwnerID != "" {
		where = append(where, "e.user_id = ?")
		args = append(args, f.OwnerID)
	}
	if f.Status != "" {
		where = append(where, "e.status = ?")
		args = append(args, string(f.Status))
	}
	if f.CategoryID > 0 {
		where = append(where, "e.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if q := strings.TrimSpace(f.SearchText); q != "" {
		where = append(where, `(LOWER(e.description) LIKE ? ESCAPE '\' OR LOWER(COALESCE(e.notes, '')) LIKE ? ESCAPE '\' OR LOWER(COALESCE(c.name, '')) LIKE ? ESCAPE '\')`)
		like := "%" + likeEscaper.Replace(strings.ToLower(q)) + "%"
		args = append(args, like, like, like)
	}

	query := expenseViewQuery
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY e.expense_date DESC, e.id DESC"

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var out []core.ExpenseView
	for rows.Next() {
		v, err := scanExpenseView(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// likeEscaper makes search text match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
