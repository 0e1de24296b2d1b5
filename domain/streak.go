package domain

// advanceStreak applies one completion on today to (streak, last) and returns
// the new pair. Out-of-order days count as same-day and never move last
// backwards.
func advanceStreak(streak int, last, today Day) (int, Day) {
	switch {
	case today.IsZero():
		return streak, last
	case last.IsZero():
		return 1, today
	case !today.After(last):
		return streak, last
	case today.Equal(last.AddDays(1)):
		return streak + 1, today
	default:
		return 1, today
	}
}
