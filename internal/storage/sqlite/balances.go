package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
)

// GetBalance returns the amount debtor owes creditor, if a record exists.
func (s *queries) GetBalance(ctx context.Context, creditorID, debtorID int64) (decimal.Decimal, bool, error) {
	var amount decimal.Decimal
	err := s.q.QueryRowContext(ctx,
		"SELECT amount FROM balances WHERE creditor_id = ? AND debtor_id = ?",
		creditorID, debtorID,
	).Scan(&amount)
	if err == sql.ErrNoRows {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to get balance: %w", err)
	}
	return amount, true, nil
}

// InsertBalance creates a balance record.
func (s *queries) InsertBalance(ctx context.Context, creditorID, debtorID int64, amount decimal.Decimal) error {
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO balances (creditor_id, debtor_id, amount) VALUES (?, ?, ?)",
		creditorID, debtorID, amount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert balance: %w", err)
	}
	return nil
}

// UpdateBalance overwrites the amount of an existing balance record.
func (s *queries) UpdateBalance(ctx context.Context, creditorID, debtorID int64, amount decimal.Decimal) error {
	res, err := s.q.ExecContext(ctx,
		"UPDATE balances SET amount = ? WHERE creditor_id = ? AND debtor_id = ?",
		amount, creditorID, debtorID,
	)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("balance not found: %d <- %d", creditorID, debtorID)
	}
	return nil
}

// DeleteBalance removes a balance record.
func (s *queries) DeleteBalance(ctx context.Context, creditorID, debtorID int64) error {
	_, err := s.q.ExecContext(ctx,
		"DELETE FROM balances WHERE creditor_id = ? AND debtor_id = ?",
		creditorID, debtorID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete balance: %w", err)
	}
	return nil
}

// ListBalances retrieves all balance records with user names, largest first.
func (s *queries) ListBalances(ctx context.Context) ([]*models.Balance, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT b.creditor_id, b.debtor_id, c.name, d.name, b.amount
		 FROM balances b
		 JOIN users c ON b.creditor_id = c.id
		 JOIN users d ON b.debtor_id = d.id
		 ORDER BY b.amount DESC, c.name, d.name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	defer rows.Close()

	var balances []*models.Balance
	for rows.Next() {
		b := &models.Balance{}
		if err := rows.Scan(&b.CreditorID, &b.DebtorID, &b.CreditorName, &b.DebtorName, &b.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		balances = append(balances, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate balances: %w", err)
	}

	return balances, nil
}
