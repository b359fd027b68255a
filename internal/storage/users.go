package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"expenseflow/internal/core"
)

const userColumns = `id, email, first_name, last_name, profile_image_url, role, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (core.User, error) {
	var (
		u                    core.User
		role                 string
		createdAt, updatedAt sqlTime
	)
	if err := s.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.ProfileImageURL, &role, &createdAt, &updatedAt); err != nil {
		return core.User{}, err
	}
	r, err := core.ParseRole(role)
	if err != nil {
		return core.User{}, fmt.Errorf("user %s: %w", u.ID, err)
	}
	u.Role = r
	u.CreatedAt, u.UpdatedAt = createdAt.t, updatedAt.t
	return u, nil
}

// UpsertUser records the profile forwarded by the identity provider. New
// users get initialRole; existing users keep their role and have their profile
// fields refreshed.
func (r *Repository) UpsertUser(ctx context.Context, u core.User, initialRole core.Role) (core.User, error) {
	if !initialRole.IsValid() {
		return core.User{}, core.NewValidationError("invalid role", core.ErrInvalidRole)
	}
	now := r.timestamp()
	row := r.db.QueryRowContext(ctx, r.rebind(`
		INSERT INTO users (id, email, first_name, last_name, profile_image_url, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			email = excluded.email,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			profile_image_url = excluded.profile_image_url,
			updated_at = excluded.updated_at
		RETURNING `+userColumns),
		u.ID, u.Email, u.FirstName, u.LastName, u.ProfileImageURL, string(initialRole), now, now)
	saved, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, core.NewValidationError("email " + u.Email + " is already registered to another user")
		}
		return core.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return saved, nil
}

func (r *Repository) GetUser(ctx context.Context, id string) (core.User, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	u, err := scanUser(row)
	if err != nil {
		return core.User{}, mapError(err, "user", id)
	}
	return u, nil
}

// ListUsers returns users ordered by name.
func (r *Repository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY LOWER(first_name), LOWER(last_name), email`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUserRole changes a user's role. Demoting the last admin fails with
// InvalidStateError; the check and the update share one transaction.
func (r *Repository) UpdateUserRole(ctx context.Context, id string, role core.Role) (core.User, error) {
	if !role.IsValid() {
		return core.User{}, core.NewValidationError("invalid role", core.ErrInvalidRole)
	}
	var updated core.User
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if err := r.lockAdmins(ctx, tx); err != nil {
			return err
		}
		current, err := scanUser(tx.QueryRowContext(ctx, r.rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id))
		if err != nil {
			return mapError(err, "user", id)
		}
		if current.Role == core.RoleAdmin && role != core.RoleAdmin {
			admins, err := countAdmins(ctx, tx, r.rebind)
			if err != nil {
				return err
			}
			if admins <= 1 {
				return errLastAdmin
			}
		}
		query := `UPDATE users SET role = ?, updated_at = ? WHERE id = ?`
		args := []any{string(role), r.timestamp(), id}
		if role != core.RoleAdmin {
			// same guard again, evaluated atomically with the write
			query += ` AND (role <> ? OR (SELECT COUNT(*) FROM users WHERE role = ?) > 1)`
			args = append(args, string(core.RoleAdmin), string(core.RoleAdmin))
		}
		updated, err = scanUser(tx.QueryRowContext(ctx, r.rebind(query+` RETURNING `+userColumns), args...))
		if errors.Is(err, sql.ErrNoRows) {
			return errLastAdmin
		}
		if err != nil {
			return fmt.Errorf("update user role: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.User{}, err
	}
	slog.InfoContext(ctx, "User role updated", "user_id", id, "role", role)
	return updated, nil
}

var errLastAdmin = &core.InvalidStateError{Message: "cannot remove the last administrator"}

// lockAdmins serialises role changes on Postgres: concurrent demotions queue
// on the admin rows and recount after the first commits. SQLite already
// allows a single writer.
func (r *Repository) lockAdmins(ctx context.Context, tx *sql.Tx) error {
	if r.dialect != DialectPostgres {
		return nil
	}
	rows, err := tx.QueryContext(ctx, r.rebind(`SELECT id FROM users WHERE role = ? FOR UPDATE`), string(core.RoleAdmin))
	if err != nil {
		return fmt.Errorf("lock admins: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		// drain; the lock is what matters
	}
	return rows.Err()
}

// CountAdmins returns the number of users with the admin role.
func (r *Repository) CountAdmins(ctx context.Context) (int, error) {
	return countAdmins(ctx, r.db, r.rebind)
}

func countAdmins(ctx context.Context, q queryer, rebind func(string) string) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, rebind(`SELECT COUNT(*) FROM users WHERE role = ?`), string(core.RoleAdmin)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return n, nil
}
