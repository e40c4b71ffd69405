// Package recurrence computes future occurrence dates for recurring
// bookings. Everything here is pure: the same anchor, frequency and
// horizon always produce the same sequence.
package recurrence

import (
	"time"

	"github.com/sprucehq/cleanops/internal/models"
)

// DefaultHorizon is the number of future occurrences materialized for a
// new recurring booking, enough to cover a multi-month lookahead.
const DefaultHorizon = 12

// Occurrences returns the ordered future occurrence dates for the given
// anchor date and frequency. The anchor itself is not included. A
// one-time frequency yields an empty sequence.
func Occurrences(anchor time.Time, freq models.ServiceFrequency, horizon int) []time.Time {
	if horizon <= 0 {
		return nil
	}

	switch freq {
	case models.FrequencyWeekly:
		return byDays(anchor, 7, horizon)
	case models.FrequencyBiweekly:
		return byDays(anchor, 14, horizon)
	case models.FrequencyMonthly:
		return byMonths(anchor, horizon)
	default:
		return nil
	}
}

func byDays(anchor time.Time, step, horizon int) []time.Time {
	out := make([]time.Time, 0, horizon)
	for i := 1; i <= horizon; i++ {
		out = append(out, anchor.AddDate(0, 0, step*i))
	}
	return out
}

// byMonths advances by calendar months keeping the anchor's day-of-month,
// clamping to the last day when the target month is shorter (Jan 31 ->
// Feb 28). time.AddDate would normalize Feb 31 into March, so the date is
// built by hand.
func byMonths(anchor time.Time, horizon int) []time.Time {
	y, m, d := anchor.Date()
	out := make([]time.Time, 0, horizon)
	for i := 1; i <= horizon; i++ {
		ty, tm := y, int(m)+i
		ty += (tm - 1) / 12
		tm = (tm-1)%12 + 1

		day := d
		if last := daysIn(ty, time.Month(tm)); day > last {
			day = last
		}
		out = append(out, time.Date(ty, time.Month(tm), day,
			anchor.Hour(), anchor.Minute(), 0, 0, anchor.Location()))
	}
	return out
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// SameDay reports calendar-date equality, ignoring time-of-day. Every
// date comparison in the series engine goes through this so that
// incidental time noise in stored dates cannot split a series.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DateOnly truncates t to midnight, preserving the location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
