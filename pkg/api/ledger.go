// Package api defines the request and response messages of the splitledger
// RPC services. Messages travel as JSON; amounts are decimal strings.
package api

import "github.com/shopspring/decimal"

type User struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
	// Owed maps each debtor's name to what they owe this user.
	Owed map[string]decimal.Decimal `json:"owed,omitempty"`
}

type Share struct {
	User   string          `json:"user"`
	Amount decimal.Decimal `json:"amount"`
}

type Expense struct {
	ID          int64           `json:"id"`
	Payer       string          `json:"payer"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	CreatedAt   int64           `json:"created_at"`
	Shares      []*Share        `json:"shares"`
}

// Balance reads "Debtor owes Creditor Amount".
type Balance struct {
	Creditor string          `json:"creditor"`
	Debtor   string          `json:"debtor"`
	Amount   decimal.Decimal `json:"amount"`
}

type Position struct {
	User string          `json:"user"`
	Owed decimal.Decimal `json:"owed"`
	Owes decimal.Decimal `json:"owes"`
	Net  decimal.Decimal `json:"net"`
}

type RegisterUserRequest struct {
	Name string `json:"name"`
}

type RegisterUserResponse struct {
	User *User `json:"user"`
}

type RemoveUserRequest struct {
	Name string `json:"name"`
}

type RemoveUserResponse struct{}

type AddExpenseRequest struct {
	Payer        string          `json:"payer"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	Participants []string        `json:"participants"`
	// CustomShares switches the expense to a custom split when set.
	CustomShares map[string]decimal.Decimal `json:"custom_shares,omitempty"`
}

type AddExpenseResponse struct {
	ExpenseID int64 `json:"expense_id"`
}

type DeleteExpenseRequest struct {
	ExpenseID int64 `json:"expense_id"`
}

type DeleteExpenseResponse struct{}

type SettleRequest struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

type SettleResponse struct{}

type ListUsersRequest struct{}

type ListUsersResponse struct {
	Users []*User `json:"users"`
}

type ListExpensesRequest struct{}

type ListExpensesResponse struct {
	Expenses []*Expense `json:"expenses"`
}

type ListBalancesRequest struct{}

type ListBalancesResponse struct {
	Balances  []*Balance  `json:"balances"`
	Positions []*Position `json:"positions"`
}

type LoginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}
