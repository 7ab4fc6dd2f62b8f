// Package ledger maintains the net balance between every pair of users.
//
// For two distinct users A and B at most one record exists: either A owes B or
// B owes A. A record's amount is always greater than ZeroEpsilon; anything at
// or below it is deleted rather than kept near zero.
//
// A Ledger is bound to a BalanceStore, normally the transaction of a single
// logical operation. Every write it makes is also recorded as a Change so the
// caller can mirror the new state into read caches once the transaction commits.
package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// ZeroEpsilon is the largest amount treated as a settled balance.
var ZeroEpsilon = decimal.New(1, -3)

// BalanceStore is the persistence contract the ledger writes through.
// Records are keyed by the ordered (creditor, debtor) pair.
type BalanceStore interface {
	// GetBalance returns the amount debtor owes creditor and whether a record exists.
	GetBalance(ctx context.Context, creditorID, debtorID int64) (decimal.Decimal, bool, error)
	InsertBalance(ctx context.Context, creditorID, debtorID int64, amount decimal.Decimal) error
	UpdateBalance(ctx context.Context, creditorID, debtorID int64, amount decimal.Decimal) error
	DeleteBalance(ctx context.Context, creditorID, debtorID int64) error
}

// Change describes one write to a balance record.
type Change struct {
	CreditorID int64
	DebtorID   int64

	// Before is the amount observed before the write; Existed is false for inserts.
	Before  decimal.Decimal
	Existed bool

	// After is the amount written; Deleted is true when the record was removed.
	After   decimal.Decimal
	Deleted bool
}

// Ledger applies credits, reversals and settlements to a BalanceStore.
type Ledger struct {
	store   BalanceStore
	changes []Change
}

// New returns a Ledger writing through store.
func New(store BalanceStore) *Ledger {
	return &Ledger{store: store}
}

// Changes returns the writes made so far, in order.
func (l *Ledger) Changes() []Change {
	return append([]Change(nil), l.changes...)
}

// ApplyCredit records that debtor now additionally owes creditor amount,
// netting it against any record in the opposite direction first.
func (l *Ledger) ApplyCredit(ctx context.Context, creditorID, debtorID int64, amount decimal.Decimal) error {
	const op = "apply credit"
	if err := validate(creditorID, debtorID, amount); err != nil {
		return Validation(op, err)
	}

	reverse, ok, err := l.store.GetBalance(ctx, debtorID, creditorID)
	if err != nil {
		return Persistence(op, fmt.Errorf("failed to read reverse balance: %w", err))
	}
	if !ok {
		return l.increase(ctx, op, creditorID, debtorID, amount)
	}

	remainder := reverse.Sub(amount)
	switch {
	case remainder.Abs().LessThanOrEqual(ZeroEpsilon):
		return l.remove(ctx, op, debtorID, creditorID, reverse)
	case remainder.IsPositive():
		return l.set(ctx, op, debtorID, creditorID, reverse, remainder)
	default:
		if err := l.remove(ctx, op, debtorID, creditorID, reverse); err != nil {
			return err
		}
		return l.increase(ctx, op, creditorID, debtorID, remainder.Neg())
	}
}

// ReverseCredit undoes an earlier ApplyCredit of the same triple. It cancels
// the forward record first and spills any excess into the opposite direction,
// which is exactly ApplyCredit with the roles swapped.
//
// The undo is exact unless the credit netted an opposite record to within
// ZeroEpsilon. That record was deleted outright, so reversing restores amount
// rather than the deleted value; the two differ by at most ZeroEpsilon.
func (l *Ledger) ReverseCredit(ctx context.Context, creditorID, debtorID int64, amount decimal.Decimal) error {
	if err := validate(creditorID, debtorID, amount); err != nil {
		return Validation("reverse credit", err)
	}
	return l.ApplyCredit(ctx, debtorID, creditorID, amount)
}

// Settle records that from paid to directly. The record "to is owed by from"
// must exist and cover amount; partial settlement of a larger amount is an error.
func (l *Ledger) Settle(ctx context.Context, fromID, toID int64, amount decimal.Decimal) error {
	const op = "settle"
	if err := validate(toID, fromID, amount); err != nil {
		return Validation(op, err)
	}

	owed, ok, err := l.store.GetBalance(ctx, toID, fromID)
	if err != nil {
		return Persistence(op, fmt.Errorf("failed to read balance: %w", err))
	}
	if !ok {
		return Conflict(op, ErrNoBalance)
	}
	if owed.LessThan(amount) {
		return Conflict(op, fmt.Errorf("%w: owed %s, requested %s", ErrInsufficientBalance, owed, amount))
	}

	remainder := owed.Sub(amount)
	if remainder.LessThanOrEqual(ZeroEpsilon) {
		return l.remove(ctx, op, toID, fromID, owed)
	}
	return l.set(ctx, op, toID, fromID, owed, remainder)
}

func validate(creditorID, debtorID int64, amount decimal.Decimal) error {
	if creditorID <= 0 || debtorID <= 0 {
		return ErrUnknownUser
	}
	if creditorID == debtorID {
		return ErrSelfCredit
	}
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	return nil
}

// increase adds amount to the creditor←debtor record, creating it if absent.
func (l *Ledger) increase(ctx context.Context, op string, creditorID, debtorID int64, amount decimal.Decimal) error {
	current, ok, err := l.store.GetBalance(ctx, creditorID, debtorID)
	if err != nil {
		return Persistence(op, fmt.Errorf("failed to read balance: %w", err))
	}
	if ok {
		return l.set(ctx, op, creditorID, debtorID, current, current.Add(amount))
	}
	if amount.LessThanOrEqual(ZeroEpsilon) {
		return nil
	}

	if err := l.store.InsertBalance(ctx, creditorID, debtorID, amount); err != nil {
		return Persistence(op, fmt.Errorf("failed to insert balance: %w", err))
	}
	l.changes = append(l.changes, Change{
		CreditorID: creditorID,
		DebtorID:   debtorID,
		After:      amount,
	})
	return nil
}

func (l *Ledger) set(ctx context.Context, op string, creditorID, debtorID int64, before, after decimal.Decimal) error {
	if err := l.store.UpdateBalance(ctx, creditorID, debtorID, after); err != nil {
		return Persistence(op, fmt.Errorf("failed to update balance: %w", err))
	}
	l.changes = append(l.changes, Change{
		CreditorID: creditorID,
		DebtorID:   debtorID,
		Before:     before,
		Existed:    true,
		After:      after,
	})
	return nil
}

func (l *Ledger) remove(ctx context.Context, op string, creditorID, debtorID int64, before decimal.Decimal) error {
	if err := l.store.DeleteBalance(ctx, creditorID, debtorID); err != nil {
		return Persistence(op, fmt.Errorf("failed to delete balance: %w", err))
	}
	l.changes = append(l.changes, Change{
		CreditorID: creditorID,
		DebtorID:   debtorID,
		Before:     before,
		Existed:    true,
		Deleted:    true,
	})
	return nil
}
