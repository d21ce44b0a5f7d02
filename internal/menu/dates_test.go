package menu

import (
	"testing"
	"time"
)

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestCandidateDatesExcludeWeekends(t *testing.T) {
	t.Parallel()
	// Monday 2024-03-11; walking back must skip Sat 09 and Sun 10.
	dates := CandidateDates(date(2024, time.March, 11), true, 5)

	want := []time.Time{
		date(2024, time.March, 11),
		date(2024, time.March, 8),
		date(2024, time.March, 7),
		date(2024, time.March, 6),
		date(2024, time.March, 5),
		date(2024, time.March, 4),
	}
	if len(dates) != len(want) {
		t.Fatalf("got %d dates, want %d: %v", len(dates), len(want), dates)
	}
	for i := range dates {
		if !dates[i].Equal(want[i]) {
			t.Fatalf("dates[%d] = %v, want %v", i, dates[i], want[i])
		}
	}
}

func TestCandidateDatesWeekendTodayNotIncluded(t *testing.T) {
	t.Parallel()
	// Saturday: includeToday is ignored because today is a weekend.
	dates := CandidateDates(date(2024, time.March, 9), true, 5)
	for _, d := range dates {
		if IsWeekend(d) {
			t.Fatalf("weekend date %v in candidates", d)
		}
	}
	if !dates[0].Equal(date(2024, time.March, 8)) {
		t.Fatalf("first candidate = %v, want Friday 2024-03-08", dates[0])
	}
}

func TestCandidateDatesAlwaysNonEmpty(t *testing.T) {
	t.Parallel()
	dates := CandidateDates(date(2024, time.March, 10), false, 0)
	if len(dates) == 0 {
		t.Fatal("expected at least one fallback date")
	}
	if IsWeekend(dates[0]) {
		t.Fatalf("fallback date %v is a weekend", dates[0])
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()
	gau := ByKey("gau")
	titu := ByKey("titu")

	tests := []struct {
		name         string
		c            *Cantina
		now          time.Time
		scenario     Scenario
		includeToday bool
	}{
		{"saturday", gau, at(2024, time.March, 9, 12, 0), ScenarioWeekend, false},
		{"before open", gau, at(2024, time.March, 5, 9, 0), ScenarioBeforeOpen, false},
		{"exactly open", gau, at(2024, time.March, 5, 11, 30), ScenarioOpen, true},
		{"open window", gau, at(2024, time.March, 5, 13, 0), ScenarioOpen, true},
		{"exactly close", gau, at(2024, time.March, 5, 14, 45), ScenarioOpen, true},
		{"after close", gau, at(2024, time.March, 5, 16, 0), ScenarioAfterClose, true},
		{"titu still open at 16", titu, at(2024, time.March, 5, 16, 0), ScenarioOpen, true},
		{"titu after 18:45", titu, at(2024, time.March, 5, 19, 0), ScenarioAfterClose, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			scenario, dates := Classify(tt.c, tt.now)
			if scenario != tt.scenario {
				t.Fatalf("scenario = %s, want %s", scenario, tt.scenario)
			}
			if len(dates) == 0 {
				t.Fatal("no candidate dates")
			}
			gotToday := SameDay(dates[0], tt.now)
			if gotToday != tt.includeToday {
				t.Fatalf("first date %v, includeToday = %v, want %v", dates[0], gotToday, tt.includeToday)
			}
		})
	}
}

func TestMidnightKeepsLocation(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("Europe/Bucharest")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	now := time.Date(2024, time.March, 5, 13, 45, 12, 99, loc)
	mid := Midnight(now)
	if mid.Hour() != 0 || mid.Minute() != 0 || mid.Second() != 0 || mid.Nanosecond() != 0 {
		t.Fatalf("Midnight = %v", mid)
	}
	if mid.Location() != loc {
		t.Fatalf("Midnight changed location to %v", mid.Location())
	}
}
