package service

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
)

var errInjected = errors.New("injected failure")

// faultyStore fails the named Tx method once it has been called `after` times.
type faultyStore struct {
	storage.Store
	failOn string
	after  int
}

func (f *faultyStore) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	return f.Store.WithTx(ctx, func(tx storage.Tx) error {
		return fn(&faultyTx{Tx: tx, store: f})
	})
}

type faultyTx struct {
	storage.Tx
	store *faultyStore
}

func (t *faultyTx) trip(method string) error {
	if t.store.failOn != method {
		return nil
	}
	if t.store.after > 0 {
		t.store.after--
		return nil
	}
	return errInjected
}

func (t *faultyTx) CreateExpense(ctx context.Context, e *models.Expense) error {
	if err := t.trip("CreateExpense"); err != nil {
		return err
	}
	return t.Tx.CreateExpense(ctx, e)
}

func (t *faultyTx) DeleteExpense(ctx context.Context, id int64) error {
	if err := t.trip("DeleteExpense"); err != nil {
		return err
	}
	return t.Tx.DeleteExpense(ctx, id)
}

func (t *faultyTx) InsertBalance(ctx context.Context, c, d int64, a decimal.Decimal) error {
	if err := t.trip("InsertBalance"); err != nil {
		return err
	}
	return t.Tx.InsertBalance(ctx, c, d, a)
}

func (t *faultyTx) UpdateBalance(ctx context.Context, c, d int64, a decimal.Decimal) error {
	if err := t.trip("UpdateBalance"); err != nil {
		return err
	}
	return t.Tx.UpdateBalance(ctx, c, d, a)
}

func (t *faultyTx) DeleteBalance(ctx context.Context, c, d int64) error {
	if err := t.trip("DeleteBalance"); err != nil {
		return err
	}
	return t.Tx.DeleteBalance(ctx, c, d)
}

func newTestCoordinator(t *testing.T, opts ...Option) (*Coordinator, *faultyStore) {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	faulty := &faultyStore{Store: store}
	c, err := NewCoordinator(context.Background(), faulty, opts...)
	require.NoError(t, err)
	return c, faulty
}

func register(t *testing.T, c *Coordinator, names ...string) {
	t.Helper()
	for _, name := range names {
		_, err := c.RegisterUser(context.Background(), name)
		require.NoError(t, err)
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// balanceTable renders balances as "creditor<-debtor" => amount.
func balanceTable(c *Coordinator) map[string]string {
	out := make(map[string]string)
	for _, b := range c.Balances() {
		out[b.CreditorName+"<-"+b.DebtorName] = b.Amount.StringFixed(2)
	}
	return out
}

func storedBalanceTable(t *testing.T, s storage.Reader) map[string]string {
	t.Helper()
	list, err := s.ListBalances(context.Background())
	require.NoError(t, err)
	out := make(map[string]string)
	for _, b := range list {
		out[b.CreditorName+"<-"+b.DebtorName] = b.Amount.StringFixed(2)
	}
	return out
}

func TestCoordinator_RegisterUser(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	u, err := c.RegisterUser(ctx, "  Alice ")
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.Name)
	assert.NotZero(t, u.ID)

	_, err = c.RegisterUser(ctx, "Alice")
	assert.ErrorIs(t, err, ledger.ErrDuplicateUser)
	assert.Equal(t, ledger.KindConflict, ledger.KindOf(err))

	_, err = c.RegisterUser(ctx, "   ")
	assert.ErrorIs(t, err, ledger.ErrEmptyName)
	assert.Equal(t, ledger.KindValidation, ledger.KindOf(err))

	require.Len(t, c.Users(), 1)
}

func TestCoordinator_AddExpense_EqualSplit(t *testing.T) {
	c, _ := newTestCoordinator(t)
	register(t, c, "Alice", "Bob", "Charlie")

	id, err := c.AddExpense(context.Background(), AddExpenseInput{
		Payer:        "Alice",
		Amount:       dec("90"),
		Description:  "Dinner",
		Participants: []string{"Alice", "Bob", "Charlie"},
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	assert.Equal(t, map[string]string{
		"Alice<-Bob":     "30.00",
		"Alice<-Charlie": "30.00",
	}, balanceTable(c))

	expenses := c.Expenses()
	require.Len(t, expenses, 1)
	assert.Equal(t, id, expenses[0].ID)
	assert.Equal(t, []string{"Alice", "Bob", "Charlie"}, expenses[0].Participants())
	for _, share := range expenses[0].Shares {
		assert.True(t, share.Amount.Equal(dec("30")), "share %s", share.Amount)
	}

	users := c.Users()
	require.Len(t, users, 3)
	assert.True(t, users[0].Owed["Bob"].Equal(dec("30")))
}

func TestCoordinator_AddExpense_Netting(t *testing.T) {
	c, _ := newTestCoordinator(t)
	register(t, c, "Alice", "Bob")
	ctx := context.Background()

	_, err := c.AddExpense(ctx, AddExpenseInput{
		Payer:        "Alice",
		Amount:       dec("60"),
		Description:  "Groceries",
		Participants: []string{"Alice", "Bob"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Alice<-Bob": "30.00"}, balanceTable(c))

	_, err = c.AddExpense(ctx, AddExpenseInput{
		Payer:        "Bob",
		Amount:       dec("50"),
		Description:  "Concert",
		Participants: []string{"Alice"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Bob<-Alice": "20.00"}, balanceTable(c))
}

func TestCoordinator_AddExpense_CustomSplit(t *testing.T) {
	c, _ := newTestCoordinator(t)
	register(t, c, "Alice", "Bob", "Charlie")
	ctx := context.Background()

	_, err := c.AddExpense(ctx, AddExpenseInput{
		Payer:        "Alice",
		Amount:       dec("90"),
		Description:  "Hotel",
		Participants: []string{"Alice", "Bob", "Charlie"},
		CustomShares: map[string]decimal.Decimal{
			"Alice":   dec("10"),
			"Bob":     dec("50"),
			"Charlie": dec("30"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"Alice<-Bob":     "50.00",
		"Alice<-Charlie": "30.00",
	}, balanceTable(c))

	t.Run("mismatched total is rejected without writes", func(t *testing.T) {
		_, err := c.AddExpense(ctx, AddExpenseInput{
			Payer:        "Alice",
			Amount:       dec("90"),
			Description:  "Hotel again",
			Participants: []string{"Alice", "Bob", "Charlie"},
			CustomShares: map[string]decimal.Decimal{
				"Alice":   dec("30"),
				"Bob":     dec("30"),
				"Charlie": dec("29.50"),
			},
		})
		assert.Equal(t, ledger.KindValidation, ledger.KindOf(err))
		assert.Len(t, c.Expenses(), 1)
		assert.Equal(t, map[string]string{
			"Alice<-Bob":     "50.00",
			"Alice<-Charlie": "30.00",
		}, balanceTable(c))
	})
}

func TestCoordinator_AddExpense_Validation(t *testing.T) {
	c, _ := newTestCoordinator(t)
	register(t, c, "Alice", "Bob")

	tests := []struct {
		name    string
		input   AddExpenseInput
		wantErr error
	}{
		{
			name:    "unknown payer",
			input:   AddExpenseInput{Payer: "Zed", Amount: dec("10"), Description: "x", Participants: []string{"Alice"}},
			wantErr: ledger.ErrUnknownUser,
		},
		{
			name:    "unknown participant",
			input:   AddExpenseInput{Payer: "Alice", Amount: dec("10"), Description: "x", Participants: []string{"Alice", "Zed"}},
			wantErr: ledger.ErrUnknownUser,
		},
		{
			name:    "empty description",
			input:   AddExpenseInput{Payer: "Alice", Amount: dec("10"), Description: "  ", Participants: []string{"Bob"}},
			wantErr: ledger.ErrEmptyDescription,
		},
		{
			name:    "zero amount",
			input:   AddExpenseInput{Payer: "Alice", Amount: decimal.Zero, Description: "x", Participants: []string{"Bob"}},
			wantErr: ledger.ErrNonPositiveAmount,
		},
		{
			name:  "no participants",
			input: AddExpenseInput{Payer: "Alice", Amount: dec("10"), Description: "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.AddExpense(context.Background(), tt.input)
			require.Error(t, err)
			assert.Equal(t, ledger.KindValidation, ledger.KindOf(err))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}

	assert.Empty(t, c.Expenses())
	assert.Empty(t, c.Balances())
}

func TestCoordinator_DeleteExpense(t *testing.T) {
	c, _ := newTestCoordinator(t)
	register(t, c, "Alice", "Bob", "Charlie")
	ctx := context.Background()

	_, err := c.AddExpense(ctx, AddExpenseInput{
		Payer: "Bob", Amount: dec("40"), Description: "Taxi",
		Participants: []string{"Alice", "Bob"},
	})
	require.NoError(t, err)
	before := balanceTable(c)

	id, err := c.AddExpense(ctx, AddExpenseInput{
		Payer: "Alice", Amount: dec("90"), Description: "Dinner",
		Participants: []string{"Alice", "Bob", "Charlie"},
	})
	require.NoError(t, err)
	require.NotEqual(t, before, balanceTable(c))

	require.NoError(t, c.DeleteExpense(ctx, id))
	assert.Equal(t, before, balanceTable(c))
	assert.Len(t, c.Expenses(), 1)

	err = c.DeleteExpense(ctx, id)
	assert.ErrorIs(t, err, ledger.ErrExpenseNotFound)
	assert.Equal(t, ledger.KindNotFound, ledger.KindOf(err))
}

func TestCoordinator_AddExpense_CreditsNeverExceedAmount(t *testing.T) {
	c, _ := newTestCoordinator(t)
	names := []string{"u0", "u1", "u2", "u3", "u4", "u5", "u6"}
	register(t, c, names...)
	ctx := context.Background()

	id, err := c.AddExpense(ctx, AddExpenseInput{
		Payer:        "u6",
		Amount:       dec("0.05"),
		Description:  "Gum",
		Participants: names,
	})
	require.NoError(t, err)

	expenses := c.Expenses()
	require.Len(t, expenses, 1)
	var payerShare decimal.Decimal
	sum := decimal.Zero
	for _, share := range expenses[0].Shares {
		assert.False(t, share.Amount.IsNegative(), "%s share %s", share.UserName, share.Amount)
		if share.UserName == "u6" {
			payerShare = share.Amount
		}
		sum = sum.Add(share.Amount)
	}
	assert.True(t, sum.Equal(dec("0.05")), "shares sum to %s", sum)

	credited := decimal.Zero
	for _, b := range c.Balances() {
		require.Equal(t, "u6", b.CreditorName)
		credited = credited.Add(b.Amount)
	}
	assert.True(t, credited.LessThanOrEqual(dec("0.05")), "credited %s", credited)
	assert.True(t, credited.Equal(dec("0.05").Sub(payerShare)), "credited %s, payer share %s", credited, payerShare)
	assert.Equal(t, storedBalanceTable(t, c.store), balanceTable(c))

	require.NoError(t, c.DeleteExpense(ctx, id))
	assert.Empty(t, c.Balances())
}

func TestCoordinator_Settle(t *testing.T) {
	c, _ := newTestCoordinator(t)
	register(t, c, "Alice", "Bob", "Charlie")
	ctx := context.Background()

	_, err := c.AddExpense(ctx, AddExpenseInput{
		Payer: "Alice", Amount: dec("60"), Description: "Groceries",
		Participants: []string{"Alice", "Bob"},
	})
	require.NoError(t, err)

	t.Run("more than owed is rejected", func(t *testing.T) {
		err := c.Settle(ctx, "Bob", "Alice", dec("35"))
		assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
		assert.Equal(t, ledger.KindConflict, ledger.KindOf(err))
		assert.Equal(t, map[string]string{"Alice<-Bob": "30.00"}, balanceTable(c))
	})

	t.Run("no balance is rejected", func(t *testing.T) {
		err := c.Settle(ctx, "Charlie", "Alice", dec("1"))
		assert.ErrorIs(t, err, ledger.ErrNoBalance)
	})

	t.Run("unknown user", func(t *testing.T) {
		err := c.Settle(ctx, "Zed", "Alice", dec("1"))
		assert.ErrorIs(t, err, ledger.ErrUnknownUser)
		assert.Equal(t, ledger.KindValidation, ledger.KindOf(err))
	})

	t.Run("self settlement", func(t *testing.T) {
		err := c.Settle(ctx, "Bob", "Bob", dec("1"))
		assert.ErrorIs(t, err, ledger.ErrSelfCredit)
	})

	t.Run("partial then full", func(t *testing.T) {
		require.NoError(t, c.Settle(ctx, "Bob", "Alice", dec("10")))
		assert.Equal(t, map[string]string{"Alice<-Bob": "20.00"}, balanceTable(c))

		require.NoError(t, c.Settle(ctx, "Bob", "Alice", dec("20")))
		assert.Empty(t, balanceTable(c))
	})
}

func TestCoordinator_RemoveUser(t *testing.T) {
	c, _ := newTestCoordinator(t)
	register(t, c, "Alice", "Bob", "Charlie")
	ctx := context.Background()

	id, err := c.AddExpense(ctx, AddExpenseInput{
		Payer: "Alice", Amount: dec("20"), Description: "Coffee",
		Participants: []string{"Alice", "Bob"},
	})
	require.NoError(t, err)

	err = c.RemoveUser(ctx, "Bob")
	assert.ErrorIs(t, err, ledger.ErrUserInUse)
	assert.Equal(t, ledger.KindConflict, ledger.KindOf(err))

	require.NoError(t, c.RemoveUser(ctx, "Charlie"))

	require.NoError(t, c.DeleteExpense(ctx, id))
	require.NoError(t, c.RemoveUser(ctx, "Bob"))

	err = c.RemoveUser(ctx, "Bob")
	assert.ErrorIs(t, err, ledger.ErrUnknownUser)

	users := c.Users()
	require.Len(t, users, 1)
	assert.Equal(t, "Alice", users[0].Name)

	t.Run("user missing from the store is unknown", func(t *testing.T) {
		dave, err := c.RegisterUser(ctx, "Dave")
		require.NoError(t, err)
		require.NoError(t, c.store.WithTx(ctx, func(tx storage.Tx) error {
			return tx.DeleteUser(ctx, dave.ID)
		}))

		err = c.RemoveUser(ctx, "Dave")
		assert.ErrorIs(t, err, ledger.ErrUnknownUser)
		assert.Equal(t, ledger.KindValidation, ledger.KindOf(err))
	})
}

func TestCoordinator_Rollback(t *testing.T) {
	t.Run("failure during add leaves no trace", func(t *testing.T) {
		c, store := newTestCoordinator(t)
		register(t, c, "Alice", "Bob", "Charlie")

		store.failOn, store.after = "InsertBalance", 1
		_, err := c.AddExpense(context.Background(), AddExpenseInput{
			Payer: "Alice", Amount: dec("90"), Description: "Dinner",
			Participants: []string{"Alice", "Bob", "Charlie"},
		})
		require.ErrorIs(t, err, errInjected)
		assert.Equal(t, ledger.KindPersistence, ledger.KindOf(err))

		assert.Empty(t, c.Expenses())
		assert.Empty(t, balanceTable(c))
		assert.Empty(t, storedBalanceTable(t, store))

		stored, err := store.ListExpenses(context.Background())
		require.NoError(t, err)
		assert.Empty(t, stored)
	})

	t.Run("failure during delete keeps expense and balances", func(t *testing.T) {
		c, store := newTestCoordinator(t)
		register(t, c, "Alice", "Bob", "Charlie")

		id, err := c.AddExpense(context.Background(), AddExpenseInput{
			Payer: "Alice", Amount: dec("90"), Description: "Dinner",
			Participants: []string{"Alice", "Bob", "Charlie"},
		})
		require.NoError(t, err)
		before := balanceTable(c)

		store.failOn = "DeleteExpense"
		err = c.DeleteExpense(context.Background(), id)
		require.ErrorIs(t, err, errInjected)

		assert.Equal(t, before, balanceTable(c))
		assert.Equal(t, before, storedBalanceTable(t, store))
		assert.Len(t, c.Expenses(), 1)
	})

	t.Run("failure during settle keeps balance", func(t *testing.T) {
		c, store := newTestCoordinator(t)
		register(t, c, "Alice", "Bob")

		_, err := c.AddExpense(context.Background(), AddExpenseInput{
			Payer: "Alice", Amount: dec("60"), Description: "Groceries",
			Participants: []string{"Alice", "Bob"},
		})
		require.NoError(t, err)

		store.failOn = "DeleteBalance"
		err = c.Settle(context.Background(), "Bob", "Alice", dec("30"))
		require.ErrorIs(t, err, errInjected)
		assert.Equal(t, map[string]string{"Alice<-Bob": "30.00"}, storedBalanceTable(t, store))
		assert.Equal(t, map[string]string{"Alice<-Bob": "30.00"}, balanceTable(c))
	})
}

func TestCoordinator_SnapshotMatchesStore(t *testing.T) {
	c, store := newTestCoordinator(t)
	names := []string{"Alice", "Bob", "Charlie", "Dana"}
	register(t, c, names...)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	var ids []int64
	for i := 0; i < 200; i++ {
		switch rng.Intn(3) {
		case 0, 1:
			payer := names[rng.Intn(len(names))]
			parts := rng.Perm(len(names))[:1+rng.Intn(len(names))]
			participants := make([]string, len(parts))
			for j, p := range parts {
				participants[j] = names[p]
			}
			amount := decimal.New(int64(1+rng.Intn(20000)), -2)
			id, err := c.AddExpense(ctx, AddExpenseInput{
				Payer: payer, Amount: amount, Description: "random",
				Participants: participants,
			})
			require.NoError(t, err)
			ids = append(ids, id)
		case 2:
			if len(ids) == 0 {
				continue
			}
			k := rng.Intn(len(ids))
			require.NoError(t, c.DeleteExpense(ctx, ids[k]))
			ids = append(ids[:k], ids[k+1:]...)
		}
	}

	assert.Equal(t, storedBalanceTable(t, store), balanceTable(c))

	// at most one direction per pair
	table := balanceTable(c)
	for _, a := range names {
		for _, b := range names {
			_, ab := table[a+"<-"+b]
			_, ba := table[b+"<-"+a]
			assert.False(t, ab && ba, "both directions recorded for %s/%s", a, b)
		}
	}

	for len(ids) > 0 {
		require.NoError(t, c.DeleteExpense(ctx, ids[0]))
		ids = ids[1:]
	}
	assert.Empty(t, balanceTable(c))
	assert.Empty(t, storedBalanceTable(t, store))
}

func TestCoordinator_Restart(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	store, err := sqlite.New(dbPath)
	require.NoError(t, err)
	c, err := NewCoordinator(ctx, store)
	require.NoError(t, err)
	register(t, c, "Alice", "Bob")
	_, err = c.AddExpense(ctx, AddExpenseInput{
		Payer: "Alice", Amount: dec("25.50"), Description: "Lunch",
		Participants: []string{"Alice", "Bob"},
	})
	require.NoError(t, err)
	want := balanceTable(c)
	require.NoError(t, store.Close())

	store, err = sqlite.New(dbPath)
	require.NoError(t, err)
	defer store.Close()
	restarted, err := NewCoordinator(ctx, store)
	require.NoError(t, err)

	assert.Equal(t, want, balanceTable(restarted))
	assert.Len(t, restarted.Users(), 2)
	assert.Len(t, restarted.Expenses(), 1)
}

func TestCoordinator_Resync(t *testing.T) {
	c, store := newTestCoordinator(t)
	register(t, c, "Alice", "Bob")
	ctx := context.Background()

	// write behind the coordinator's back
	err := store.Store.WithTx(ctx, func(tx storage.Tx) error {
		alice, err := tx.GetUserByName(ctx, "Alice")
		if err != nil {
			return err
		}
		bob, err := tx.GetUserByName(ctx, "Bob")
		if err != nil {
			return err
		}
		return tx.InsertBalance(ctx, alice.ID, bob.ID, dec("12"))
	})
	require.NoError(t, err)
	assert.Empty(t, balanceTable(c))

	require.NoError(t, c.Resync(ctx))
	assert.Equal(t, map[string]string{"Alice<-Bob": "12.00"}, balanceTable(c))

	// a stale snapshot is repaired by the next mutation
	err = store.Store.WithTx(ctx, func(tx storage.Tx) error {
		alice, _ := tx.GetUserByName(ctx, "Alice")
		bob, _ := tx.GetUserByName(ctx, "Bob")
		return tx.UpdateBalance(ctx, alice.ID, bob.ID, dec("40"))
	})
	require.NoError(t, err)

	require.NoError(t, c.Settle(ctx, "Bob", "Alice", dec("15")))
	assert.Equal(t, map[string]string{"Alice<-Bob": "25.00"}, balanceTable(c))
}

func TestCoordinator_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, _ := newTestCoordinator(t, WithMetrics(metrics.New(reg)))
	register(t, c, "Alice")

	_, err := c.RegisterUser(context.Background(), "Alice")
	require.Error(t, err)

	n, err := testutil.GatherAndCount(reg, "splitledger_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one ok series and one conflict series")
}
