// Package snapshot holds the in-memory read model of the ledger: users by
// name, the ordered expense list and the current balance records.
//
// A Snapshot is only ever changed after a transaction has committed. Writers
// mirror committed changes into it; when a mirror step finds the cache out of
// step with what the store observed, the caller reloads it from the store,
// which is always authoritative.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/models"
)

// ErrStale is returned when a mirrored change does not match the cached state.
var ErrStale = errors.New("snapshot out of sync with store")

// Source is the read side of the store used to (re)build a snapshot.
type Source interface {
	ListUsers(ctx context.Context) ([]*models.User, error)
	ListExpenses(ctx context.Context) ([]*models.Expense, error)
	ListBalances(ctx context.Context) ([]*models.Balance, error)
}

type pairKey struct {
	creditor, debtor int64
}

// Snapshot is safe for concurrent use.
type Snapshot struct {
	mu       sync.RWMutex
	users    map[string]models.User
	names    map[int64]string
	expenses []*models.Expense
	balances map[pairKey]decimal.Decimal
}

// New returns an empty snapshot.
func New() *Snapshot {
	return &Snapshot{
		users:    make(map[string]models.User),
		names:    make(map[int64]string),
		balances: make(map[pairKey]decimal.Decimal),
	}
}

// Reload replaces the whole snapshot with the current contents of src.
func (s *Snapshot) Reload(ctx context.Context, src Source) error {
	users, err := src.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}
	expenses, err := src.ListExpenses(ctx)
	if err != nil {
		return fmt.Errorf("failed to load expenses: %w", err)
	}
	balances, err := src.ListBalances(ctx)
	if err != nil {
		return fmt.Errorf("failed to load balances: %w", err)
	}

	fresh := New()
	for _, u := range users {
		fresh.users[u.Name] = *u
		fresh.names[u.ID] = u.Name
	}
	for _, e := range expenses {
		fresh.expenses = append(fresh.expenses, e.Clone())
	}
	for _, b := range balances {
		fresh.balances[pairKey{b.CreditorID, b.DebtorID}] = b.Amount
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = fresh.users
	s.names = fresh.names
	s.expenses = fresh.expenses
	s.balances = fresh.balances
	return nil
}

// User returns the user registered under name.
func (s *Snapshot) User(name string) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[name]
	return u, ok
}

// Users returns every user with the amounts others owe them, ordered by name.
func (s *Snapshot) Users() []models.UserBalances {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.UserBalances, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, models.UserBalances{User: u, Owed: make(map[string]decimal.Decimal)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	index := make(map[int64]int, len(out))
	for i, u := range out {
		index[u.ID] = i
	}
	for k, amount := range s.balances {
		if i, ok := index[k.creditor]; ok {
			out[i].Owed[s.names[k.debtor]] = amount
		}
	}
	return out
}

// Expenses returns copies of all expenses, newest first.
func (s *Snapshot) Expenses() []*models.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Expense, 0, len(s.expenses))
	for i := len(s.expenses) - 1; i >= 0; i-- {
		out = append(out, s.expenses[i].Clone())
	}
	return out
}

// Balances returns all balance records, largest amount first.
func (s *Snapshot) Balances() []models.Balance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Balance, 0, len(s.balances))
	for k, amount := range s.balances {
		out = append(out, models.Balance{
			CreditorID:   k.creditor,
			DebtorID:     k.debtor,
			CreditorName: s.names[k.creditor],
			DebtorName:   s.names[k.debtor],
			Amount:       amount,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Amount.Equal(out[j].Amount) {
			return out[i].Amount.GreaterThan(out[j].Amount)
		}
		if out[i].CreditorName != out[j].CreditorName {
			return out[i].CreditorName < out[j].CreditorName
		}
		return out[i].DebtorName < out[j].DebtorName
	})
	return out
}

// AddUser records a newly committed user.
func (s *Snapshot) AddUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Name] = u
	s.names[u.ID] = u.Name
}

// RemoveUser forgets a deleted user.
func (s *Snapshot) RemoveUser(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[name]; ok {
		delete(s.names, u.ID)
		delete(s.users, name)
	}
}

// AppendExpense records a newly committed expense.
func (s *Snapshot) AppendExpense(e *models.Expense) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = append(s.expenses, e.Clone())
}

// RemoveExpense forgets a deleted expense and reports whether it was cached.
func (s *Snapshot) RemoveExpense(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.expenses {
		if e.ID == id {
			s.expenses = append(s.expenses[:i], s.expenses[i+1:]...)
			return true
		}
	}
	return false
}

// ApplyChanges mirrors committed ledger writes. Every change is checked
// against the cached value it expects to replace; on the first mismatch the
// remaining changes are skipped and ErrStale is returned.
func (s *Snapshot) ApplyChanges(changes []ledger.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range changes {
		k := pairKey{c.CreditorID, c.DebtorID}
		cached, ok := s.balances[k]
		if ok != c.Existed || (ok && !cached.Equal(c.Before)) {
			return fmt.Errorf("%w: balance %d<-%d cached=%s expected=%s",
				ErrStale, c.CreditorID, c.DebtorID, cached, c.Before)
		}
		if c.Deleted {
			delete(s.balances, k)
		} else {
			s.balances[k] = c.After
		}
	}
	return nil
}
