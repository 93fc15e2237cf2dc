package recap

import (
	"sort"
	"time"
)

// LongestStreak returns the longest run of calendar-consecutive days in dates. Dates are
// reduced to calendar days and sorted, so input order does not matter. Repeated dates
// neither extend nor break a run.
func LongestStreak(dates []time.Time) int {
	if len(dates) == 0 {
		return 0
	}
	days := make([]time.Time, len(dates))
	for i, d := range dates {
		days[i] = calendarDay(d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	longest, current := 1, 1
	for i := 1; i < len(days); i++ {
		switch gap := dayGap(days[i-1], days[i]); {
		case gap == 0:
		case gap == 1:
			current++
			if current > longest {
				longest = current
			}
		default:
			current = 1
		}
	}
	return longest
}

// dayGap counts whole calendar days from a to b. Both must be UTC midnights.
func dayGap(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
