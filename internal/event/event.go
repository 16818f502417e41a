// Package event defines the normalized activity record shared by every
// stage of the pipeline, plus the calendar-day helpers the whole system
// keys on.
package event

import (
	"fmt"
	"time"
)

// Source identifies the external system an event came from.
type Source string

const (
	// SourceCode is version-control commit history.
	SourceCode Source = "code"
	// SourceTracker is issue-tracker worklogs and issues.
	SourceTracker Source = "tracker"
)

// Event is the atomic unit of recorded activity.
//
// Events are created at ingestion and immutable once deduplicated;
// enrichment only fills Summary, never identity or date. Events without
// a determinable date are discarded before they reach the timeline.
type Event struct {
	Source        Source
	OccurredOn    time.Time // normalized to UTC midnight
	IdentityKey   string    // stable dedup key, unique within a source
	OriginContext string    // advisory provenance (branch name, issue key)
	Author        string
	RawText       string
	Summary       string  // enriched text; empty until enrichment runs
	Hours         float64 // logged effort; 0 when unknown
	Project       string  // tracker project name; empty for code events
	TaskKey       string  // tracker issue key; empty for code events
}

// Text returns the best available description: the enriched summary when
// present, the raw text otherwise.
func (e Event) Text() string {
	if e.Summary != "" {
		return e.Summary
	}
	return e.RawText
}

// DayFormat is the wire format for calendar dates.
const DayFormat = "2006-01-02"

// ParseDay parses a YYYY-MM-DD string into a UTC calendar day.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DayFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

// DayOf normalizes a timestamp to its UTC calendar day.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayString formats a timestamp's UTC calendar day as YYYY-MM-DD.
func DayString(t time.Time) string {
	return t.UTC().Format(DayFormat)
}

// SameDay reports whether two timestamps fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return DayOf(a).Equal(DayOf(b))
}

// Window is a contiguous inclusive range of calendar dates,
// [Start, Start+Days-1].
type Window struct {
	Start time.Time
	Days  int
}

// NewWindow builds a window from a start day and a day count.
func NewWindow(start time.Time, days int) (Window, error) {
	if days < 1 {
		return Window{}, fmt.Errorf("day count must be at least 1, got %d", days)
	}
	return Window{Start: DayOf(start), Days: days}, nil
}

// End returns the last day of the window, inclusive.
func (w Window) End() time.Time {
	return w.Start.AddDate(0, 0, w.Days-1)
}

// Dates returns every day in the window in ascending order.
func (w Window) Dates() []time.Time {
	dates := make([]time.Time, w.Days)
	for i := range dates {
		dates[i] = w.Start.AddDate(0, 0, i)
	}
	return dates
}

// Contains reports whether d falls inside the window.
func (w Window) Contains(d time.Time) bool {
	d = DayOf(d)
	return !d.Before(w.Start) && !d.After(w.End())
}

// String renders the window as "start to end".
func (w Window) String() string {
	return DayString(w.Start) + " to " + DayString(w.End())
}
