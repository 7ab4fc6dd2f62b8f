package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mmynk/splitledger/internal/models"
)

// CreateExpense persists a new expense and its participant shares.
// Callers are expected to run it inside a transaction.
func (s *queries) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}

	res, err := s.q.ExecContext(ctx,
		"INSERT INTO expenses (payer_id, amount, description, created_at) VALUES (?, ?, ?, ?)",
		expense.PayerID, expense.Amount, expense.Description, expense.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read expense id: %w", err)
	}
	expense.ID = id

	// Insert participant shares
	for _, share := range expense.Shares {
		_, err = s.q.ExecContext(ctx,
			"INSERT INTO expense_participants (expense_id, user_id, share_amount) VALUES (?, ?, ?)",
			expense.ID, share.UserID, share.Amount,
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}
	}

	return nil
}

// DeleteExpense removes an expense by ID. Participant rows cascade.
func (s *queries) DeleteExpense(ctx context.Context, expenseID int64) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("expense not found: %d", expenseID)
	}
	return nil
}

// GetExpense retrieves an expense by ID, including its participant shares.
func (s *queries) GetExpense(ctx context.Context, expenseID int64) (*models.Expense, error) {
	expense := &models.Expense{}
	err := s.q.QueryRowContext(ctx,
		`SELECT e.id, e.payer_id, u.name, e.amount, e.description, e.created_at
		 FROM expenses e JOIN users u ON e.payer_id = u.id
		 WHERE e.id = ?`,
		expenseID,
	).Scan(&expense.ID, &expense.PayerID, &expense.PayerName, &expense.Amount,
		&expense.Description, &expense.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	shares, err := s.listShares(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	expense.Shares = shares

	return expense, nil
}

// ListExpenses retrieves every expense with its shares, oldest first.
func (s *queries) ListExpenses(ctx context.Context) ([]*models.Expense, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT e.id, e.payer_id, u.name, e.amount, e.description, e.created_at
		 FROM expenses e JOIN users u ON e.payer_id = u.id
		 ORDER BY e.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	var expenses []*models.Expense
	byID := make(map[int64]*models.Expense)
	for rows.Next() {
		expense := &models.Expense{}
		if err := rows.Scan(&expense.ID, &expense.PayerID, &expense.PayerName, &expense.Amount,
			&expense.Description, &expense.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
		byID[expense.ID] = expense
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	// Single pass over all shares; with one pooled connection the expense
	// cursor must be closed before this query runs.
	shareRows, err := s.q.QueryContext(ctx,
		`SELECT p.expense_id, p.user_id, u.name, p.share_amount
		 FROM expense_participants p JOIN users u ON p.user_id = u.id
		 ORDER BY p.expense_id, p.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer shareRows.Close()

	for shareRows.Next() {
		var expenseID int64
		var share models.Share
		if err := shareRows.Scan(&expenseID, &share.UserID, &share.UserName, &share.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		if expense, ok := byID[expenseID]; ok {
			expense.Shares = append(expense.Shares, share)
		}
	}
	if err := shareRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}

	return expenses, nil
}

func (s *queries) listShares(ctx context.Context, expenseID int64) ([]models.Share, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT p.user_id, u.name, p.share_amount
		 FROM expense_participants p JOIN users u ON p.user_id = u.id
		 WHERE p.expense_id = ?
		 ORDER BY p.id`,
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	var shares []models.Share
	for rows.Next() {
		var share models.Share
		if err := rows.Scan(&share.UserID, &share.UserName, &share.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		shares = append(shares, share)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}

	return shares, nil
}
