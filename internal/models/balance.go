package models

import "github.com/shopspring/decimal"

// Balance is a directional debt: Debtor owes Creditor Amount.
// For any pair of users at most one Balance exists, and its Amount is positive.
type Balance struct {
	CreditorID   int64
	DebtorID     int64
	CreditorName string
	DebtorName   string
	Amount       decimal.Decimal
}
