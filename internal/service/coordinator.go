package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/snapshot"
	"github.com/mmynk/splitledger/internal/storage"
)

// Coordinator runs every mutating ledger operation as a single transaction
// and, once it commits, mirrors the result into the read snapshot.
// Mutations are serialized; reads never touch an open transaction.
type Coordinator struct {
	mu      sync.Mutex
	store   storage.Store
	cache   *snapshot.Snapshot
	metrics *metrics.Recorder
	now     func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMetrics records operation metrics on m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithClock overrides the clock used for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator loads the current ledger state from store.
func NewCoordinator(ctx context.Context, store storage.Store, opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		store: store,
		cache: snapshot.New(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.cache.Reload(ctx, store); err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	c.publishSize()
	return c, nil
}

// AddExpenseInput describes a new expense.
type AddExpenseInput struct {
	Payer        string
	Amount       decimal.Decimal
	Description  string
	Participants []string

	// CustomShares selects a custom split when non-nil; otherwise the amount
	// is split equally among Participants.
	CustomShares map[string]decimal.Decimal
}

// RegisterUser creates a user with a unique name.
func (c *Coordinator) RegisterUser(ctx context.Context, name string) (user models.User, err error) {
	const op = "register user"
	defer c.observe("register_user", time.Now(), &err)

	name = strings.TrimSpace(name)
	if name == "" {
		return models.User{}, ledger.Validation(op, ledger.ErrEmptyName)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.cache.User(name); ok {
		return models.User{}, ledger.Conflict(op, fmt.Errorf("%w: %s", ledger.ErrDuplicateUser, name))
	}

	u := &models.User{Name: name, CreatedAt: c.now().Unix()}
	err = c.store.WithTx(ctx, func(tx storage.Tx) error {
		return tx.CreateUser(ctx, u)
	})
	if errors.Is(err, storage.ErrDuplicateName) {
		return models.User{}, ledger.Conflict(op, fmt.Errorf("%w: %s", ledger.ErrDuplicateUser, name))
	}
	if err != nil {
		return models.User{}, ledger.Persistence(op, err)
	}

	c.cache.AddUser(*u)
	slog.Info("User registered", "user_id", u.ID, "name", u.Name)
	return *u, nil
}

// RemoveUser deletes a user who pays for, takes part in, and owes or is owed nothing.
func (c *Coordinator) RemoveUser(ctx context.Context, name string) (err error) {
	const op = "remove user"
	defer c.observe("remove_user", time.Now(), &err)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.cache.User(name); !ok {
		return ledger.Validation(op, fmt.Errorf("%w: %s", ledger.ErrUnknownUser, name))
	}

	var removed *models.User
	err = c.store.WithTx(ctx, func(tx storage.Tx) error {
		u, err := tx.GetUserByName(ctx, name)
		if err != nil {
			return err
		}
		if u == nil {
			return ledger.Validation(op, fmt.Errorf("%w: %s", ledger.ErrUnknownUser, name))
		}
		removed = u

		inv, err := tx.UserInvolvement(ctx, u.ID)
		if err != nil {
			return err
		}
		if !inv.Any() {
			return tx.DeleteUser(ctx, u.ID)
		}
		if n := inv.PaidExpenses + inv.Participations; n > 0 {
			return ledger.Conflict(op, fmt.Errorf("%w: %s is involved in %d expense record(s)", ledger.ErrUserInUse, name, n))
		}
		return ledger.Conflict(op, fmt.Errorf("%w: %s has %d outstanding balance(s)", ledger.ErrUserInUse, name, inv.Balances))
	})
	if err != nil {
		return ledger.Persistence(op, err)
	}

	c.cache.RemoveUser(name)
	slog.Info("User removed", "user_id", removed.ID, "name", name)
	return nil
}

// AddExpense records an expense and credits the payer with every other
// participant's share. It returns the persisted expense id.
func (c *Coordinator) AddExpense(ctx context.Context, in AddExpenseInput) (id int64, err error) {
	const op = "add expense"
	defer c.observe("add_expense", time.Now(), &err)

	c.mu.Lock()
	defer c.mu.Unlock()

	expense, err := c.buildExpense(in)
	if err != nil {
		return 0, ledger.Validation(op, err)
	}

	var changes []ledger.Change
	err = c.store.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.CreateExpense(ctx, expense); err != nil {
			return err
		}

		l := ledger.New(tx)
		for _, share := range expense.Shares {
			if share.UserID == expense.PayerID || !share.Amount.IsPositive() {
				continue
			}
			if err := l.ApplyCredit(ctx, expense.PayerID, share.UserID, share.Amount); err != nil {
				return err
			}
		}
		changes = l.Changes()
		return nil
	})
	if err != nil {
		slog.Error("AddExpense rolled back", "payer", in.Payer, "request_id", middleware.GetRequestID(ctx), "error", err)
		return 0, ledger.Persistence(op, err)
	}

	c.cache.AppendExpense(expense)
	c.mirror(ctx, changes)

	slog.Info("Expense added",
		"expense_id", expense.ID,
		"payer", expense.PayerName,
		"amount", expense.Amount.String(),
		"participants", len(expense.Shares),
	)
	return expense.ID, nil
}

// DeleteExpense removes an expense and reverses every credit it produced.
func (c *Coordinator) DeleteExpense(ctx context.Context, expenseID int64) (err error) {
	const op = "delete expense"
	defer c.observe("delete_expense", time.Now(), &err)

	if expenseID <= 0 {
		return ledger.NotFound(op, fmt.Errorf("%w: %d", ledger.ErrExpenseNotFound, expenseID))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var changes []ledger.Change
	err = c.store.WithTx(ctx, func(tx storage.Tx) error {
		expense, err := tx.GetExpense(ctx, expenseID)
		if err != nil {
			return err
		}
		if expense == nil {
			return ledger.NotFound(op, fmt.Errorf("%w: %d", ledger.ErrExpenseNotFound, expenseID))
		}

		l := ledger.New(tx)
		for _, share := range expense.Shares {
			if share.UserID == expense.PayerID || !share.Amount.IsPositive() {
				continue
			}
			if err := l.ReverseCredit(ctx, expense.PayerID, share.UserID, share.Amount); err != nil {
				return err
			}
		}

		if err := tx.DeleteExpense(ctx, expenseID); err != nil {
			return err
		}
		changes = l.Changes()
		return nil
	})
	if err != nil {
		if ledger.KindOf(err) != ledger.KindNotFound {
			slog.Error("DeleteExpense rolled back", "expense_id", expenseID, "request_id", middleware.GetRequestID(ctx), "error", err)
		}
		return ledger.Persistence(op, err)
	}

	if !c.cache.RemoveExpense(expenseID) {
		slog.Warn("Deleted expense was not cached", "expense_id", expenseID)
	}
	c.mirror(ctx, changes)

	slog.Info("Expense deleted", "expense_id", expenseID)
	return nil
}

// Settle records a direct payment from one user to another, reducing what
// from owes to.
func (c *Coordinator) Settle(ctx context.Context, from, to string, amount decimal.Decimal) (err error) {
	const op = "settle"
	defer c.observe("settle", time.Now(), &err)

	c.mu.Lock()
	defer c.mu.Unlock()

	payer, ok := c.cache.User(from)
	if !ok {
		return ledger.Validation(op, fmt.Errorf("%w: %s", ledger.ErrUnknownUser, from))
	}
	payee, ok := c.cache.User(to)
	if !ok {
		return ledger.Validation(op, fmt.Errorf("%w: %s", ledger.ErrUnknownUser, to))
	}

	var changes []ledger.Change
	err = c.store.WithTx(ctx, func(tx storage.Tx) error {
		l := ledger.New(tx)
		if err := l.Settle(ctx, payer.ID, payee.ID, amount); err != nil {
			return err
		}
		changes = l.Changes()
		return nil
	})
	if err != nil {
		return ledger.Persistence(op, err)
	}

	c.mirror(ctx, changes)

	slog.Info("Debt settled", "from", from, "to", to, "amount", amount.String())
	return nil
}

// Users returns every user with the amounts owed to them.
func (c *Coordinator) Users() []models.UserBalances {
	return c.cache.Users()
}

// Expenses returns all expenses, newest first.
func (c *Coordinator) Expenses() []*models.Expense {
	return c.cache.Expenses()
}

// Balances returns all outstanding balances, largest first.
func (c *Coordinator) Balances() []models.Balance {
	return c.cache.Balances()
}

// Resync rebuilds the read snapshot from the store.
func (c *Coordinator) Resync(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.cache.Reload(ctx, c.store); err != nil {
		return err
	}
	c.publishSize()
	return nil
}

// buildExpense validates the input against the current snapshot and computes
// each participant's share. It performs no writes.
func (c *Coordinator) buildExpense(in AddExpenseInput) (*models.Expense, error) {
	payer, ok := c.cache.User(in.Payer)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ledger.ErrUnknownUser, in.Payer)
	}

	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, ledger.ErrEmptyDescription
	}
	if !in.Amount.IsPositive() {
		return nil, ledger.ErrNonPositiveAmount
	}

	users := make(map[string]models.User, len(in.Participants))
	for _, name := range in.Participants {
		u, ok := c.cache.User(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ledger.ErrUnknownUser, name)
		}
		users[name] = u
	}

	var portions []calculator.Portion
	var err error
	if in.CustomShares != nil {
		portions, err = calculator.CustomSplit(in.Amount, in.Participants, in.CustomShares)
	} else {
		portions, err = calculator.EqualSplit(in.Amount, in.Participants)
	}
	if err != nil {
		return nil, err
	}

	expense := &models.Expense{
		PayerID:     payer.ID,
		PayerName:   payer.Name,
		Amount:      in.Amount,
		Description: description,
		CreatedAt:   c.now().Unix(),
		Shares:      make([]models.Share, len(portions)),
	}
	for i, p := range portions {
		u := users[p.Participant]
		expense.Shares[i] = models.Share{UserID: u.ID, UserName: u.Name, Amount: p.Amount}
	}
	return expense, nil
}

// mirror applies committed ledger changes to the snapshot, rebuilding it
// from the store when the two disagree.
func (c *Coordinator) mirror(ctx context.Context, changes []ledger.Change) {
	if err := c.cache.ApplyChanges(changes); err != nil {
		slog.Warn("Snapshot diverged from store, reloading", "error", err)
		if err := c.cache.Reload(ctx, c.store); err != nil {
			slog.Error("Snapshot reload failed", "error", err)
		}
	}
	c.publishSize()
}

func (c *Coordinator) publishSize() {
	if c.metrics == nil {
		return
	}
	c.metrics.SetSize(len(c.cache.Balances()), len(c.cache.Expenses()))
}

func (c *Coordinator) observe(operation string, start time.Time, err *error) {
	c.metrics.Observe(operation, start, *err)
}
