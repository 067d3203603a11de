package domain

import "time"

// DiscountRejectReason explains why a discount code did not apply.
type DiscountRejectReason string

const (
	// DiscountRejectInactive means the code does not exist or is switched off.
	DiscountRejectInactive DiscountRejectReason = "inactive"
	// DiscountRejectWindow means now is outside [StartsAt, EndsAt].
	DiscountRejectWindow DiscountRejectReason = "outside_window"
	// DiscountRejectExhausted means the usage cap has been reached.
	DiscountRejectExhausted DiscountRejectReason = "exhausted"
	// DiscountRejectMinSpend means the subtotal is below the minimum spend.
	DiscountRejectMinSpend DiscountRejectReason = "min_spend"
)

// DiscountResult is the outcome of evaluating a code against a subtotal.
type DiscountResult struct {
	OK     bool
	Amount int64
	Reason DiscountRejectReason
}

// EvaluateDiscount validates and prices a discount code against a subtotal at
// a point in time. Pure: no side effects, usage counting happens only at
// order commit. Rules apply in order and each violation is a hard rejection.
func EvaluateDiscount(code *DiscountCode, subtotal int64, now time.Time) DiscountResult {
	if code == nil || !code.Active {
		return DiscountResult{Reason: DiscountRejectInactive}
	}
	if now.Before(code.StartsAt) || now.After(code.EndsAt) {
		return DiscountResult{Reason: DiscountRejectWindow}
	}
	if code.MaxUses > 0 && code.UsedCount >= code.MaxUses {
		return DiscountResult{Reason: DiscountRejectExhausted}
	}
	if code.MinSpend > 0 && subtotal < code.MinSpend {
		return DiscountResult{Reason: DiscountRejectMinSpend}
	}

	var amount int64
	switch code.Type {
	case DiscountTypePercentage:
		amount = subtotal * code.Value / 100
	case DiscountTypeFlat:
		amount = code.Value
		if amount > subtotal {
			amount = subtotal
		}
	default:
		return DiscountResult{Reason: DiscountRejectInactive}
	}
	if amount < 0 {
		amount = 0
	}
	return DiscountResult{OK: true, Amount: amount}
}

// OrderTotal computes subtotal - discount + shipping, floored at zero so a
// discount can never drive the payable amount negative.
func OrderTotal(subtotal, discount, shipping int64) int64 {
	total := subtotal - discount + shipping
	if total < 0 {
		return 0
	}
	return total
}

// AmountTolerance is the maximum difference, in minor units, allowed between
// the order total and the amount a gateway reports as collected. One kwacha
// absorbs rounding of decimal amounts at the gateway boundary.
const AmountTolerance int64 = 100

// AmountsMatch reports whether a gateway-reported amount reconciles with the
// stored order total.
func AmountsMatch(orderTotal, reported int64) bool {
	diff := orderTotal - reported
	if diff < 0 {
		diff = -diff
	}
	return diff <= AmountTolerance
}
