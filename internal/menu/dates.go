package menu

import "time"

// OpenTime is the platform-wide cafeteria opening time.
var OpenTime = ClockTime{Hour: 11, Minute: 30}

const (
	// maxCandidateDates caps the fallback walk across prior weekdays.
	maxCandidateDates = 5
	// maxLookbackDays bounds the walk so it always terminates.
	maxLookbackDays = 21
)

// Scenario is the human-readable framing for a menu request.
type Scenario string

const (
	ScenarioWeekend    Scenario = "weekend"
	ScenarioBeforeOpen Scenario = "before_open"
	ScenarioAfterClose Scenario = "after_close"
	ScenarioOpen       Scenario = "open"
	// ScenarioAuto frames an unprompted scheduler post.
	ScenarioAuto Scenario = "auto"
)

func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Midnight truncates t to its calendar date in t's location.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func SameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func secondsOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

// CandidateDates walks backward from today collecting up to max weekdays,
// optionally starting with today itself. The walk is bounded by
// maxLookbackDays; if it somehow produces nothing, the nearest prior weekday
// is returned so callers always get at least one date.
func CandidateDates(today time.Time, includeToday bool, max int) []time.Time {
	today = Midnight(today)

	var dates []time.Time
	total := max
	if includeToday && !IsWeekend(today) {
		dates = append(dates, today)
		total = max + 1
	}

	current := today.AddDate(0, 0, -1)
	for attempts := 0; len(dates) < total && attempts < maxLookbackDays; attempts++ {
		if !IsWeekend(current) {
			dates = append(dates, current)
		}
		current = current.AddDate(0, 0, -1)
	}

	if len(dates) == 0 {
		fallback := today
		for IsWeekend(fallback) {
			fallback = fallback.AddDate(0, 0, -1)
		}
		dates = append(dates, fallback)
	}

	return dates
}

// Classify decides which day(s) to try and how to frame the answer, from the
// current time against the opening time and the cafeteria's close time.
func Classify(c *Cantina, now time.Time) (Scenario, []time.Time) {
	today := Midnight(now)

	if IsWeekend(now) {
		return ScenarioWeekend, CandidateDates(today, false, maxCandidateDates)
	}

	secs := secondsOfDay(now)
	switch {
	case secs < OpenTime.Seconds():
		return ScenarioBeforeOpen, CandidateDates(today, false, maxCandidateDates)
	case secs > c.CloseTime.Seconds():
		return ScenarioAfterClose, CandidateDates(today, true, maxCandidateDates)
	default:
		return ScenarioOpen, CandidateDates(today, true, maxCandidateDates)
	}
}
