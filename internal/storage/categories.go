package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"expenseflow/internal/core"
)

const categoryColumns = `id, name, description, parent_id, color, created_at, updated_at`

func scanCategory(s rowScanner) (core.Category, error) {
	var (
		c                    core.Category
		parent               sql.NullInt64
		createdAt, updatedAt sqlTime
	)
	if err := s.Scan(&c.ID, &c.Name, &c.Description, &parent, &c.Color, &createdAt, &updatedAt); err != nil {
		return core.Category{}, err
	}
	c.ParentID = int64Ptr(parent)
	c.CreatedAt, c.UpdatedAt = createdAt.t, updatedAt.t
	return c, nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY LOWER(name), id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx, r.rebind(`SELECT `+categoryColumns+` FROM categories WHERE id = ?`), id))
	if err != nil {
		return core.Category{}, mapError(err, "category", id)
	}
	return c, nil
}

// FindCategoryByName matches case-insensitively and returns the oldest match.
func (r *Repository) FindCategoryByName(ctx context.Context, name string) (core.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx, r.rebind(`
		SELECT `+categoryColumns+` FROM categories
		WHERE LOWER(name) = LOWER(?)
		ORDER BY id LIMIT 1`), name))
	if err != nil {
		return core.Category{}, mapError(err, "category", name)
	}
	return c, nil
}

func (r *Repository) CreateCategory(ctx context.Context, in core.CategoryInput) (core.Category, error) {
	return r.createCategory(ctx, r.db, in)
}

func (r *Repository) createCategory(ctx context.Context, q queryer, in core.CategoryInput) (core.Category, error) {
	now := r.timestamp()
	c, err := scanCategory(q.QueryRowContext(ctx, r.rebind(`
		INSERT INTO categories (name, description, parent_id, color, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING `+categoryColumns),
		in.Name, in.Description, nullInt64(in.ParentID), in.Color, now, now))
	if err != nil {
		if isForeignKeyViolation(err) {
			return core.Category{}, core.NotFound("parent category", derefInt64(in.ParentID))
		}
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	slog.InfoContext(ctx, "Category created", "category_id", c.ID, "name", c.Name)
	return c, nil
}

// UpdateCategory stores every field of c and refreshes updated_at.
func (r *Repository) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	updated, err := scanCategory(r.db.QueryRowContext(ctx, r.rebind(`
		UPDATE categories
		SET name = ?, description = ?, parent_id = ?, color = ?, updated_at = ?
		WHERE id = ?
		RETURNING `+categoryColumns),
		c.Name, c.Description, nullInt64(c.ParentID), c.Color, r.timestamp(), c.ID))
	if err != nil {
		if isForeignKeyViolation(err) {
			return core.Category{}, core.NotFound("parent category", derefInt64(c.ParentID))
		}
		return core.Category{}, mapError(err, "category", c.ID)
	}
	return updated, nil
}

// countExpensesInCategory returns how many expenses reference the category.
func (r *Repository) countExpensesInCategory(ctx context.Context, q queryer, id int64) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, r.rebind(`SELECT COUNT(*) FROM expenses WHERE category_id = ?`), id).Scan(&n); err != nil {
		return 0, fmt.Errorf("count expenses in category: %w", err)
	}
	return n, nil
}

// DeleteCategory removes an unreferenced category. Children are detached by
// the schema and become top level.
func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		used, err := r.countExpensesInCategory(ctx, tx, id)
		if err != nil {
			return err
		}
		if used > 0 {
			return categoryInUse(used)
		}
		res, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM categories WHERE id = ?`), id)
		if err != nil {
			if isForeignKeyViolation(err) {
				return categoryInUse(0)
			}
			return fmt.Errorf("delete category: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		if n == 0 {
			return core.NotFound("category", id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Category deleted", "category_id", id)
	return nil
}

func categoryInUse(n int) error {
	if n <= 0 {
		return &core.ReferentialIntegrityError{Message: "Cannot delete category: it is used by existing expenses. Reassign or delete those expenses first."}
	}
	return &core.ReferentialIntegrityError{Message: fmt.Sprintf("Cannot delete category: it is used by %d expense(s). Reassign or delete those expenses first.", n)}
}

func derefInt64(p *int64) any {
	if p == nil {
		return "<nil>"
	}
	return *p
}
