package models

import "github.com/shopspring/decimal"

// User represents a person who can pay for or take part in expenses.
type User struct {
	// ID is the identifier assigned by the store on registration.
	ID int64

	// Name is the unique display name of the user.
	Name string

	// CreatedAt is the Unix timestamp when the user was registered.
	CreatedAt int64
}

// UserBalances is a read-only view of a user together with the amounts
// other users currently owe them.
type UserBalances struct {
	User

	// Owed maps debtor name to the amount that debtor owes this user.
	// Only strictly positive entries are present.
	Owed map[string]decimal.Decimal
}
