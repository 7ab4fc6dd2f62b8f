package calculator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// SplitTolerance is the largest allowed difference between the sum of custom
// shares and the expense amount.
var SplitTolerance = decimal.New(1, -2)

var (
	ErrNoParticipants       = errors.New("must have at least one participant")
	ErrDuplicateParticipant = errors.New("participant listed more than once")
	ErrNegativeShare        = errors.New("share amount cannot be negative")
	ErrUnknownShareHolder   = errors.New("custom share given for a non-participant")
	ErrSplitMismatch        = errors.New("custom shares do not add up to the expense amount")
	ErrNonPositiveTotal     = errors.New("amount must be greater than zero")
)

// Portion is one participant's calculated share of an expense.
type Portion struct {
	Participant string
	Amount      decimal.Decimal
}

// EqualSplit divides amount uniformly among participants. Every share is the
// amount divided evenly and truncated to cents; the cents left over are handed
// out one each to the last participants, and any sub-cent residue goes to the
// very last. Shares are never negative and always add up to amount exactly.
func EqualSplit(amount decimal.Decimal, participants []string) ([]Portion, error) {
	if err := checkInputs(amount, participants); err != nil {
		return nil, err
	}

	n := len(participants)
	cent := decimal.New(1, -2)
	each := amount.Div(decimal.NewFromInt(int64(n))).Truncate(2)

	leftover := amount.Sub(each.Mul(decimal.NewFromInt(int64(n))))
	extra := int(leftover.Div(cent).IntPart())
	if extra > n {
		extra = n
	}

	portions := make([]Portion, n)
	assigned := decimal.Zero
	for i, p := range participants {
		share := each
		if i >= n-extra {
			share = share.Add(cent)
		}
		if i == n-1 {
			share = amount.Sub(assigned)
		}
		portions[i] = Portion{Participant: p, Amount: share}
		assigned = assigned.Add(share)
	}
	return portions, nil
}

// CustomSplit validates caller-supplied shares and returns them in participant
// order. Participants without an entry owe nothing.
func CustomSplit(amount decimal.Decimal, participants []string, shares map[string]decimal.Decimal) ([]Portion, error) {
	if err := checkInputs(amount, participants); err != nil {
		return nil, err
	}

	listed := make(map[string]bool, len(participants))
	for _, p := range participants {
		listed[p] = true
	}
	for name, share := range shares {
		if !listed[name] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownShareHolder, name)
		}
		if share.IsNegative() {
			return nil, fmt.Errorf("%w: %s", ErrNegativeShare, name)
		}
	}

	portions := make([]Portion, len(participants))
	sum := decimal.Zero
	for i, p := range participants {
		share := shares[p]
		portions[i] = Portion{Participant: p, Amount: share}
		sum = sum.Add(share)
	}

	if sum.Sub(amount).Abs().GreaterThan(SplitTolerance) {
		return nil, fmt.Errorf("%w: shares sum to %s, amount is %s",
			ErrSplitMismatch, sum.StringFixed(2), amount.StringFixed(2))
	}
	return portions, nil
}

func checkInputs(amount decimal.Decimal, participants []string) error {
	if !amount.IsPositive() {
		return ErrNonPositiveTotal
	}
	if len(participants) == 0 {
		return ErrNoParticipants
	}
	seen := make(map[string]bool, len(participants))
	for _, p := range participants {
		if seen[p] {
			return fmt.Errorf("%w: %s", ErrDuplicateParticipant, p)
		}
		seen[p] = true
	}
	return nil
}
