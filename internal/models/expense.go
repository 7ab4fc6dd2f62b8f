package models

import "github.com/shopspring/decimal"

// Expense represents a payment made by one user and shared among participants.
type Expense struct {
	// ID is the identifier assigned by the store when the expense is created.
	// It is the only stable reference to an expense.
	ID int64

	// PayerID is the user who paid the full amount.
	PayerID int64

	// PayerName is denormalized from the users table for display.
	PayerName string

	// Amount is the total paid, always positive.
	Amount decimal.Decimal

	// Description is a non-empty human-readable label (e.g., "Groceries").
	Description string

	// CreatedAt is the Unix timestamp when the expense was recorded.
	CreatedAt int64

	// Shares holds one entry per participant, in the order participants were given.
	// The payer may be a participant; their own share never produces a balance.
	Shares []Share
}

// Share is one participant's portion of an expense.
type Share struct {
	UserID   int64
	UserName string
	Amount   decimal.Decimal
}

// Participants returns the participant names in share order.
func (e *Expense) Participants() []string {
	names := make([]string, len(e.Shares))
	for i, s := range e.Shares {
		names[i] = s.UserName
	}
	return names
}

// Clone returns a deep copy of the expense.
func (e *Expense) Clone() *Expense {
	c := *e
	c.Shares = append([]Share(nil), e.Shares...)
	return &c
}
