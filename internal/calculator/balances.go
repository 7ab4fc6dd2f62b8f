package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
)

// MemberPosition summarizes one user's standing across all balance records.
type MemberPosition struct {
	MemberName string
	Owed       decimal.Decimal // Total others owe this user
	Owes       decimal.Decimal // Total this user owes others
	Net        decimal.Decimal // Owed - Owes; positive means the user is owed money
}

// NetPositions aggregates pairwise balances into one position per user.
// It is a read-only view; it does not propose any settlement plan.
// Results are ordered by net position, most owed first, then by name.
func NetPositions(balances []models.Balance) []MemberPosition {
	positions := make(map[string]*MemberPosition)

	get := func(name string) *MemberPosition {
		p, ok := positions[name]
		if !ok {
			p = &MemberPosition{MemberName: name}
			positions[name] = p
		}
		return p
	}

	for _, b := range balances {
		creditor := get(b.CreditorName)
		creditor.Owed = creditor.Owed.Add(b.Amount)

		debtor := get(b.DebtorName)
		debtor.Owes = debtor.Owes.Add(b.Amount)
	}

	result := make([]MemberPosition, 0, len(positions))
	for _, p := range positions {
		p.Net = p.Owed.Sub(p.Owes)
		result = append(result, *p)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Net.Equal(result[j].Net) {
			return result[i].Net.GreaterThan(result[j].Net)
		}
		return result[i].MemberName < result[j].MemberName
	})
	return result
}
