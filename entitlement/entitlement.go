package entitlement

import "time"

// TermMonths is the paid term granted by one completed checkout.
const TermMonths = 2

// Entitled reports whether a user currently has paid access. A stored
// is_paid flag alone is not enough: the expiry must be set and in the future.
func Entitled(isPaid bool, expiresAt *time.Time, now time.Time) bool {
	return isPaid && expiresAt != nil && expiresAt.After(now)
}

// Extend returns the new expiry after one completed payment. An active
// unexpired subscription stacks: the term extends from the current expiry,
// not from now, so renewing early never loses paid time.
func Extend(current *time.Time, now time.Time) time.Time {
	return base(current, now).AddDate(0, TermMonths, 0)
}

// ExtendDays applies the same stacking rule with a day-granular bonus
// (referral rewards).
func ExtendDays(current *time.Time, now time.Time, days int) time.Time {
	return base(current, now).AddDate(0, 0, days)
}

func base(current *time.Time, now time.Time) time.Time {
	if current != nil && current.After(now) {
		return *current
	}
	return now
}
