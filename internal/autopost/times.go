// Package autopost runs the autonomous posting loop: a single armed target
// timestamp, polled at a bounded interval, recomputed after every attempt.
package autopost

import (
	"time"

	"cantinabot/internal/menu"
)

// moveToOpenTime returns ref's calendar day at the cafeteria opening time.
func moveToOpenTime(ref time.Time) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day(),
		menu.OpenTime.Hour, menu.OpenTime.Minute, 0, 0, ref.Location())
}

// alignWeekday rolls a target forward day by day until it lands on a weekday.
func alignWeekday(target time.Time) time.Time {
	for menu.IsWeekend(target) {
		target = target.AddDate(0, 0, 1)
	}
	return target
}

// InitialAttempt computes the first target: the next occurrence of the opening
// time strictly in the future, aligned forward off weekends.
func InitialAttempt(ref time.Time) time.Time {
	target := moveToOpenTime(ref)
	if !target.After(ref) {
		target = moveToOpenTime(ref.AddDate(0, 0, 1))
	}
	return alignWeekday(target)
}

// NextDayAttempt computes the target after a success: the following calendar
// day's opening time, aligned forward off weekends.
func NextDayAttempt(ref time.Time) time.Time {
	return alignWeekday(moveToOpenTime(ref.AddDate(0, 0, 1)))
}

// RetryAttempt computes the target after a failure: ref plus the retry delay,
// except that a candidate landing on a weekend rolls forward to the next
// weekday's opening time instead.
func RetryAttempt(ref time.Time, delay time.Duration) time.Time {
	candidate := ref.Add(delay)
	if menu.IsWeekend(candidate) {
		return NextDayAttempt(candidate)
	}
	return candidate
}
