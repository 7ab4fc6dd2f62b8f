package ledger

import (
	"errors"
	"fmt"
)

// Kind classifies a ledger failure so callers can decide how to react.
type Kind int

const (
	// KindUnknown is reported for errors that did not come from this package.
	KindUnknown Kind = iota
	// KindValidation means the input was rejected before any mutation.
	KindValidation
	// KindConflict means the request is well-formed but clashes with current state.
	KindConflict
	// KindNotFound means a referenced expense does not exist.
	KindNotFound
	// KindPersistence means the store failed and the transaction was rolled back.
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

var (
	ErrUnknownUser         = errors.New("unknown user")
	ErrNonPositiveAmount   = errors.New("amount must be greater than zero")
	ErrSelfCredit          = errors.New("creditor and debtor must be different users")
	ErrNoBalance           = errors.New("no outstanding balance between users")
	ErrInsufficientBalance = errors.New("settlement exceeds outstanding balance")
	ErrDuplicateUser       = errors.New("user already exists")
	ErrUserInUse           = errors.New("user has expenses or outstanding balances")
	ErrEmptyName           = errors.New("user name is required")
	ErrEmptyDescription    = errors.New("description is required")
	ErrExpenseNotFound     = errors.New("expense not found")
)

// Error carries the Kind of a failure together with the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation wraps err as a KindValidation error.
func Validation(op string, err error) error {
	return &Error{Kind: KindValidation, Op: op, Err: err}
}

// Conflict wraps err as a KindConflict error.
func Conflict(op string, err error) error {
	return &Error{Kind: KindConflict, Op: op, Err: err}
}

// NotFound wraps err as a KindNotFound error.
func NotFound(op string, err error) error {
	return &Error{Kind: KindNotFound, Op: op, Err: err}
}

// Persistence wraps err as a KindPersistence error. An err that already
// carries a Kind is returned unchanged.
func Persistence(op string, err error) error {
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	return &Error{Kind: KindPersistence, Op: op, Err: err}
}

// KindOf reports the Kind of err, or KindUnknown when err is not a ledger error.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindUnknown
}
