package core

import "time"

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// SafeDate builds year-month-day, decrementing day until it exists in that
// month (Feb 30 becomes Feb 28 or 29). Month overflow rolls into the
// neighbouring year. Fails only for a non-positive day.
func SafeDate(year int, month time.Month, day int) (Date, error) {
	if day <= 0 {
		return Date{}, ErrInvalidDay
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	y, m := first.Year(), first.Month()
	if last := DaysIn(y, m); day > last {
		day = last
	}
	return NewDate(y, int(m), day), nil
}

// clampDate is SafeDate for callers that already guarantee day >= 1.
func clampDate(year int, month time.Month, day int) Date {
	if day < 1 {
		day = 1
	}
	d, _ := SafeDate(year, month, day)
	return d
}

// FirstDayOfNextMonth returns the 1st of the month after d.
func FirstDayOfNextMonth(d Date) Date {
	return NewDate(d.Year(), int(d.Month())+1, 1)
}

// UpcomingTenth returns the 10th of d's month when d is on or before the
// 10th, otherwise the 10th of the following month.
func UpcomingTenth(d Date) Date {
	if d.Day() <= 10 {
		return NewDate(d.Year(), int(d.Month()), 10)
	}
	return clampDate(d.Year(), d.Month()+1, 10)
}

// ResolveIncomeDate places a day-of-month income on or after anchor: the same
// month when day >= anchor's day, else the following month. The day is
// clamped to the month length in both cases.
func ResolveIncomeDate(anchor Date, day int) Date {
	if day >= anchor.Day() {
		return clampDate(anchor.Year(), anchor.Month(), day)
	}
	return clampDate(anchor.Year(), anchor.Month()+1, day)
}

// ResolveCycleStart returns the start of the cycle containing today.
//
// The candidate is anchorDay in today's month, or the previous month when
// that is still in the future. When the cycle is shorter than the month gap,
// later cycles follow back to back from the anchor. A trailing cycle that
// would run past the next anchor date is folded into the one before it, so
// the days left before the next anchor extend that cycle instead of opening
// a cycle that lives for a day or two.
func ResolveCycleStart(today Date, anchorDay, lengthDays int) Date {
	if anchorDay < 1 {
		anchorDay = 1
	}
	if lengthDays < 1 {
		lengthDays = 1
	}
	candidate := clampDate(today.Year(), today.Month(), anchorDay)
	if candidate.After(today) {
		candidate = clampDate(today.Year(), today.Month()-1, anchorDay)
	}
	gap := candidate.DaysUntil(today)
	if gap < lengthDays {
		return candidate
	}
	next := clampDate(candidate.Year(), candidate.Month()+1, anchorDay)
	start := candidate.AddDays((gap / lengthDays) * lengthDays)
	if start.AddDays(lengthDays).After(next) {
		start = start.AddDays(-lengthDays)
	}
	return start
}
