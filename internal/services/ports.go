package services

import (
	"context"

	"expenseflow/internal/core"
)

// UserStore is the persistence the user service depends on.
type UserStore interface {
	UpsertUser(ctx context.Context, u core.User, initialRole core.Role) (core.User, error)
	GetUser(ctx context.Context, id string) (core.User, error)
	ListUsers(ctx context.Context) ([]core.User, error)
	UpdateUserRole(ctx context.Context, id string, role core.Role) (core.User, error)
}

// CategoryStore is the persistence the category service depends on.
type CategoryStore interface {
	ListCategories(ctx context.Context) ([]core.Category, error)
	GetCategory(ctx context.Context, id int64) (core.Category, error)
	FindCategoryByName(ctx context.Context, name string) (core.Category, error)
	CreateCategory(ctx context.Context, in core.CategoryInput) (core.Category, error)
	UpdateCategory(ctx context.Context, c core.Category) (core.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
}

// ExpenseStore is the persistence the expense, report and transfer services
// depend on.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	ImportExpense(ctx context.Context, e core.Expense, batchID string) (core.Expense, error)
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	GetExpenseView(ctx context.Context, id int64) (core.ExpenseView, error)
	UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	DeleteExpense(ctx context.Context, id int64) error
	QueryExpenses(ctx context.Context, f core.ExpenseFilter) ([]core.ExpenseView, error)
	ListAuditEvents(ctx context.Context, expenseID int64) ([]core.AuditEvent, error)
}

// EventPublisher announces lifecycle events. Publishing is best effort: a
// failure is logged and never fails the operation that caused it.
type EventPublisher interface {
	Publish(ctx context.Context, ev core.AuditEvent) error
}

// SheetWriter replaces the contents of an export sheet.
type SheetWriter interface {
	WriteRows(ctx context.Context, header []string, rows [][]string) (string, error)
}
