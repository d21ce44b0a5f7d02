package autopost

import (
	"testing"
	"time"

	"cantinabot/internal/menu"
)

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestInitialAttempt(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		ref  time.Time
		want time.Time
	}{
		{"morning same day", at(2024, time.March, 5, 9, 0), at(2024, time.March, 5, 11, 30)},
		{"exactly open rolls forward", at(2024, time.March, 5, 11, 30), at(2024, time.March, 6, 11, 30)},
		{"afternoon next day", at(2024, time.March, 5, 15, 0), at(2024, time.March, 6, 11, 30)},
		{"friday afternoon skips weekend", at(2024, time.March, 8, 15, 0), at(2024, time.March, 11, 11, 30)},
		{"saturday goes to monday", at(2024, time.March, 9, 10, 0), at(2024, time.March, 11, 11, 30)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := InitialAttempt(tt.ref)
			if !got.Equal(tt.want) {
				t.Fatalf("InitialAttempt(%v) = %v, want %v", tt.ref, got, tt.want)
			}
			if !got.After(tt.ref) {
				t.Fatalf("target %v not strictly after ref %v", got, tt.ref)
			}
		})
	}
}

func TestNextDayAttempt(t *testing.T) {
	t.Parallel()
	// Friday success schedules Monday, not Saturday.
	got := NextDayAttempt(at(2024, time.March, 8, 11, 35))
	if !got.Equal(at(2024, time.March, 11, 11, 30)) {
		t.Fatalf("NextDayAttempt = %v", got)
	}

	got = NextDayAttempt(at(2024, time.March, 5, 11, 35))
	if !got.Equal(at(2024, time.March, 6, 11, 30)) {
		t.Fatalf("NextDayAttempt = %v", got)
	}
}

func TestRetryAttempt(t *testing.T) {
	t.Parallel()
	delay := 5 * time.Minute

	// Plain weekday retry: just the delay.
	got := RetryAttempt(at(2024, time.March, 5, 12, 0), delay)
	if !got.Equal(at(2024, time.March, 5, 12, 5)) {
		t.Fatalf("RetryAttempt = %v", got)
	}

	// A retry that would land on Saturday rolls to Monday's opening time.
	got = RetryAttempt(at(2024, time.March, 8, 23, 58), delay)
	if !got.Equal(at(2024, time.March, 11, 11, 30)) {
		t.Fatalf("weekend RetryAttempt = %v", got)
	}
	if menu.IsWeekend(got) {
		t.Fatalf("retry landed on a weekend: %v", got)
	}
}
