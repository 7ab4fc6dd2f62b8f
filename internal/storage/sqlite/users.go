package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// CreateUser inserts a new user into the database.
func (s *queries) CreateUser(ctx context.Context, user *models.User) error {
	if user.CreatedAt == 0 {
		user.CreatedAt = time.Now().Unix()
	}

	res, err := s.q.ExecContext(ctx,
		"INSERT INTO users (name, created_at) VALUES (?, ?)",
		user.Name, user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to create user %q: %w", user.Name, storage.ErrDuplicateName)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read user id: %w", err)
	}
	user.ID = id

	return nil
}

// DeleteUser removes a user by ID.
func (s *queries) DeleteUser(ctx context.Context, userID int64) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM users WHERE id = ?", userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("user not found: %d", userID)
	}
	return nil
}

// GetUserByName retrieves a user by their unique name.
func (s *queries) GetUserByName(ctx context.Context, name string) (*models.User, error) {
	user := &models.User{}
	err := s.q.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM users WHERE name = ?",
		name,
	).Scan(&user.ID, &user.Name, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil // User not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by name: %w", err)
	}

	return user, nil
}

// ListUsers retrieves all users ordered by name.
func (s *queries) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT id, name, created_at FROM users ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.ID, &user.Name, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// UserInvolvement counts expenses paid, participations and balance records
// referencing the user.
func (s *queries) UserInvolvement(ctx context.Context, userID int64) (storage.Involvement, error) {
	var inv storage.Involvement

	err := s.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM expenses WHERE payer_id = ?", userID,
	).Scan(&inv.PaidExpenses)
	if err != nil {
		return inv, fmt.Errorf("failed to count paid expenses: %w", err)
	}

	err = s.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM expense_participants WHERE user_id = ?", userID,
	).Scan(&inv.Participations)
	if err != nil {
		return inv, fmt.Errorf("failed to count participations: %w", err)
	}

	err = s.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM balances WHERE creditor_id = ? OR debtor_id = ?", userID, userID,
	).Scan(&inv.Balances)
	if err != nil {
		return inv, fmt.Errorf("failed to count balances: %w", err)
	}

	return inv, nil
}

// isUniqueViolation reports whether err came from a UNIQUE constraint.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
