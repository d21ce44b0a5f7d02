// Package menu implements menu resolution for the university cafeterias:
// candidate URL construction, the in-memory page cache, the fetch-render
// pipeline with retry rounds, calendar fallback across prior weekdays and the
// scenario classification used for message framing.
package menu

import (
	"fmt"
	"strings"
	"time"
)

// BasePDFURL is the uploads root the cafeterias publish menus under.
const BasePDFURL = "https://www.uaic.ro/wp-content/uploads"

// ClockTime is a time of day with minute resolution.
type ClockTime struct {
	Hour   int
	Minute int
}

func (c ClockTime) Seconds() int { return (c.Hour*60 + c.Minute) * 60 }

func (c ClockTime) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// URLBuilder produces the ordered candidate document locations for one day.
// Builders are pure and never fail; later stages try candidates in order.
type URLBuilder func(day time.Time) []string

// Cantina describes one configured cafeteria. Instances are immutable and
// constructed once at startup.
type Cantina struct {
	Key         string
	DisplayName string
	CloseTime   ClockTime
	BuildURLs   URLBuilder
	// AutoPost marks the cafeteria the autonomous scheduler posts for.
	AutoPost bool
	// DiscoverHint is the filename fragment index discovery matches on.
	DiscoverHint string
}

// Candidates returns the builder output with empty entries dropped and
// duplicates removed, order preserved.
func (c *Cantina) Candidates(day time.Time) []string {
	raw := c.BuildURLs(day)
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, u := range raw {
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

var (
	defaultCloseTime = ClockTime{Hour: 14, Minute: 45}
	tituCloseTime    = ClockTime{Hour: 18, Minute: 45}
)

// DefaultCantinaKey is the cafeteria used for autonomous posts and the bare
// /meniu command.
const DefaultCantinaKey = "gau"

var cantinas = map[string]*Cantina{
	"gau": {
		Key:          "gau",
		DisplayName:  "Gaudeamus",
		CloseTime:    defaultCloseTime,
		BuildURLs:    buildGaudeamusURLs,
		AutoPost:     true,
		DiscoverHint: "GAU",
	},
	"titu": {
		Key:          "titu",
		DisplayName:  "Titu Maiorescu",
		CloseTime:    tituCloseTime,
		BuildURLs:    buildTituURLs,
		DiscoverHint: "TM",
	},
	"aka": {
		Key:          "aka",
		DisplayName:  "Akademos",
		CloseTime:    defaultCloseTime,
		BuildURLs:    buildAkademosURLs,
		DiscoverHint: "AK",
	},
}

// ByKey returns the cafeteria for key, or nil.
func ByKey(key string) *Cantina { return cantinas[key] }

// Default returns the autonomous-post cafeteria.
func Default() *Cantina { return cantinas[DefaultCantinaKey] }

// Keys lists the configured cafeteria keys (stable order).
func Keys() []string { return []string{"gau", "titu", "aka"} }

func monthPath(day time.Time) string {
	return BasePDFURL + "/" + day.Format("2006/01")
}

// upperMonthStamp renders e.g. "05-MAR-2024", the legacy naming convention.
func upperMonthStamp(day time.Time) string {
	return strings.ToUpper(day.Format("02-Jan-2006"))
}

func buildGaudeamusURLs(day time.Time) []string {
	base := monthPath(day)
	return []string{
		fmt.Sprintf("%s/Meniu-site-GAU-%s.pdf", base, day.Format("02.01.2006")),
		fmt.Sprintf("%s/GAU-%s.pdf", base, upperMonthStamp(day)),
	}
}

func buildTituURLs(day time.Time) []string {
	base := monthPath(day)
	return []string{
		base + "/meniu.pdf",
		fmt.Sprintf("%s/%d-%s-TM.pdf", base, day.Day(), strings.ToUpper(day.Format("Jan"))),
	}
}

func buildAkademosURLs(day time.Time) []string {
	base := monthPath(day)
	return []string{
		fmt.Sprintf("%s/MENIU-AKADEMOS-%s.pdf", base, day.Format("02.01.2006")),
		fmt.Sprintf("%s/AK-%s-.pdf", base, upperMonthStamp(day)),
	}
}
