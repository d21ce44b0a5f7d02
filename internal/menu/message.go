package menu

import (
	"fmt"
	"time"
)

// PostContext carries everything message formatting needs, so text building
// stays a pure function of explicit values rather than captured control flow.
type PostContext struct {
	Scenario    Scenario
	RequestDate time.Time
	ActualDate  time.Time
	FromCache   bool
}

func FormatHumanDate(t time.Time) string {
	return t.Format("Monday, 02 January 2006")
}

// BuildMessage renders the user-facing caption for a delivered menu.
func BuildMessage(c *Cantina, pc PostContext) string {
	cacheNote := ""
	if pc.FromCache {
		cacheNote = " (from cache)"
	}
	actual := FormatHumanDate(pc.ActualDate)

	switch pc.Scenario {
	case ScenarioWeekend:
		return fmt.Sprintf("%s is closed during weekends. Here's the most recent menu from %s%s:",
			c.DisplayName, actual, cacheNote)
	case ScenarioBeforeOpen:
		return fmt.Sprintf("%s hasn't opened yet today. Here's the latest available menu from %s%s:",
			c.DisplayName, actual, cacheNote)
	case ScenarioAfterClose:
		if SameDay(pc.ActualDate, pc.RequestDate) {
			return fmt.Sprintf("%s is closed for today, but here's today's menu%s:", c.DisplayName, cacheNote)
		}
		return fmt.Sprintf("%s is closed for today. Here's the most recent menu from %s%s:",
			c.DisplayName, actual, cacheNote)
	default: // open, auto
		if SameDay(pc.ActualDate, pc.RequestDate) {
			return fmt.Sprintf("Here's today's %s menu%s:", c.DisplayName, cacheNote)
		}
		return fmt.Sprintf("Here's the most recent %s menu from %s%s:", c.DisplayName, actual, cacheNote)
	}
}

// FailureMessage is the polite interactive answer when resolution fails.
func FailureMessage(c *Cantina) string {
	return fmt.Sprintf("Sorry, I couldn't fetch the %s menu right now. Please try again later.", c.DisplayName)
}
