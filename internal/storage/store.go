// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
)

// ErrDuplicateName is returned when inserting a user whose name is taken.
var ErrDuplicateName = errors.New("name already taken")

// Involvement counts the rows that reference a user.
type Involvement struct {
	PaidExpenses   int
	Participations int
	Balances       int
}

// Any reports whether the user is referenced at all.
func (i Involvement) Any() bool {
	return i.PaidExpenses > 0 || i.Participations > 0 || i.Balances > 0
}

// Reader holds the queries available both on the committed state and inside a
// transaction.
type Reader interface {
	// GetUserByName returns nil and no error when the user does not exist.
	GetUserByName(ctx context.Context, name string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)

	// GetExpense returns nil and no error when the expense does not exist.
	GetExpense(ctx context.Context, expenseID int64) (*models.Expense, error)
	ListExpenses(ctx context.Context) ([]*models.Expense, error)

	GetBalance(ctx context.Context, creditorID, debtorID int64) (decimal.Decimal, bool, error)
	// ListBalances returns every balance record, largest amount first.
	ListBalances(ctx context.Context) ([]*models.Balance, error)

	UserInvolvement(ctx context.Context, userID int64) (Involvement, error)
}

// Tx is a unit of work. All writes go through a Tx and become visible only
// when the surrounding WithTx call commits.
type Tx interface {
	Reader

	// CreateUser inserts the user and fills in ID and CreatedAt.
	// Returns ErrDuplicateName if the name is taken.
	CreateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, userID int64) error

	// CreateExpense inserts the expense and one participant row per share,
	// filling in ID and CreatedAt.
	CreateExpense(ctx context.Context, expense *models.Expense) error
	// DeleteExpense removes the expense; its participant rows cascade.
	DeleteExpense(ctx context.Context, expenseID int64) error

	InsertBalance(ctx context.Context, creditorID, debtorID int64, amount decimal.Decimal) error
	UpdateBalance(ctx context.Context, creditorID, debtorID int64, amount decimal.Decimal) error
	DeleteBalance(ctx context.Context, creditorID, debtorID int64) error
}

// Store defines the interface for ledger storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	Reader

	// WithTx runs fn inside a transaction. The transaction commits if fn
	// returns nil and rolls back otherwise, including when commit fails.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any resources held by the store.
	Close() error
}
