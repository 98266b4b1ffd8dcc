package domain

import "strconv"

// FeePolicy is the single source of truth for the relayer's cut. The same
// policy produces the quote shown at creation and the fee deducted during
// execution, so the two can never diverge.
type FeePolicy struct {
	FixedUnits  int64 // Flat fee per transfer, base units
	VariableBps int64 // Proportional fee, basis points of the gross amount
	SweepBuffer int64 // Base units left behind at sweep to cover network fees
	MinAmount   int64 // Smallest accepted transfer, base units
	MaxAmount   int64 // Largest accepted transfer, base units
}

// DefaultFeePolicy mirrors the published fee schedule:
// 0.007 coin fixed + 0.35% of the amount, 0.02 min, 100 max.
func DefaultFeePolicy() FeePolicy {
	return FeePolicy{
		FixedUnits:  7_000_000,
		VariableBps: 35,
		SweepBuffer: 5_000,
		MinAmount:   UnitsPerCoin / 50,
		MaxAmount:   100 * UnitsPerCoin,
	}
}

// Fee returns the total relayer fee for a gross amount.
func (p FeePolicy) Fee(amount int64) int64 {
	return p.FixedUnits + amount*p.VariableBps/10_000
}

// RecipientGets returns the net amount the recipient is quoted.
func (p FeePolicy) RecipientGets(amount int64) int64 {
	return amount - p.Fee(amount)
}

// AmountInRange reports whether a requested amount is accepted.
func (p FeePolicy) AmountInRange(amount int64) bool {
	return amount >= p.MinAmount && amount <= p.MaxAmount
}

// FormatCoins renders a base-unit amount as a decimal coin string for
// user-facing messages, e.g. 989_500_000 -> "0.9895".
func FormatCoins(units int64) string {
	return strconv.FormatFloat(float64(units)/float64(UnitsPerCoin), 'f', -1, 64)
}
