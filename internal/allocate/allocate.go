// Package allocate spreads a pool of dated activity evidence onto a
// fixed window of calendar dates, producing exactly one slot per date.
// Dates with no evidence receive an inferred slot derived from
// neighboring activity, marked so the reader can tell filler from fact.
package allocate

import (
	"fmt"
	"strings"
	"time"

	"github.com/jstrand/tally/internal/event"
	"github.com/jstrand/tally/internal/logging"
	"github.com/jstrand/tally/internal/timeline"
)

// Recognized inference policies for dates with no evidence.
const (
	// PolicyAdjacentContinuation fills empty dates by referencing the
	// nearest evidence-backed date in the window, falling back to
	// pre-window context, then to a generic placeholder.
	PolicyAdjacentContinuation = "adjacent-task-continuation"

	// PolicyGenericPlaceholder fills every empty date with the same
	// generic entry and never references neighboring work.
	PolicyGenericPlaceholder = "generic-placeholder"
)

// DefaultPolicy is used when no policy is configured.
const DefaultPolicy = PolicyAdjacentContinuation

// Known reports whether name is a recognized inference policy.
func Known(name string) bool {
	switch name {
	case PolicyAdjacentContinuation, PolicyGenericPlaceholder:
		return true
	}
	return false
}

// Slot is one day of the assembled timesheet. Exactly one slot exists
// per date in the window, whether or not any evidence landed on it.
type Slot struct {
	Date        time.Time
	Category    string
	TaskLabel   string
	Description string
	Remarks     string
	Sources     []event.Source
	Hours       float64
	HasHours    bool

	// Inferred marks slots with no same-day evidence. Their content is
	// derived from neighboring dates or context and must never be
	// presented as recorded fact.
	Inferred bool

	// Events holds every same-day event backing this slot, so later
	// synthesis always sees the full evidence set, never a subset.
	Events []event.Event
}

// Build maps the view's events onto its window, one slot per date in
// ascending order. Tracker evidence outranks code evidence as the basis
// for category and label; dates with neither get an inferred slot per
// the given policy. Unrecognized policies fall back to the default.
func Build(v timeline.View, policy string) []Slot {
	if !Known(policy) {
		if policy != "" {
			logging.Warn("unknown inference policy, using default", "policy", policy, "default", DefaultPolicy)
		}
		policy = DefaultPolicy
	}

	byDay := make(map[string][]event.Event)
	for _, e := range v.Events {
		key := event.DayString(e.OccurredOn)
		byDay[key] = append(byDay[key], e)
	}

	dates := v.Window.Dates()
	slots := make([]Slot, len(dates))
	for i, d := range dates {
		if evidence := byDay[event.DayString(d)]; len(evidence) > 0 {
			slots[i] = evidenceSlot(d, evidence)
		}
	}

	// Second pass: evidence slots exist now, so empty dates can look at
	// their neighbors.
	for i, d := range dates {
		if slots[i].Date.IsZero() {
			slots[i] = inferSlot(d, i, slots, v.Context, policy)
		}
	}
	return slots
}

// evidenceSlot assembles one slot from a date's full event set. Tracker
// events, when present, decide category, label, and hours; code events
// then contribute description text. A code-only day is labeled from its
// first commit.
func evidenceSlot(date time.Time, evidence []event.Event) Slot {
	s := Slot{Date: date, Events: evidence}

	var codeEvents, trackerEvents []event.Event
	for _, e := range evidence {
		switch e.Source {
		case event.SourceTracker:
			trackerEvents = append(trackerEvents, e)
		default:
			codeEvents = append(codeEvents, e)
		}
	}
	if len(codeEvents) > 0 {
		s.Sources = append(s.Sources, event.SourceCode)
	}
	if len(trackerEvents) > 0 {
		s.Sources = append(s.Sources, event.SourceTracker)
	}

	if len(trackerEvents) > 0 {
		s.Category = trackerCategory(trackerEvents)
		s.TaskLabel = trackerLabel(trackerEvents)
		for _, e := range trackerEvents {
			s.Hours += e.Hours
		}
		s.HasHours = true
	} else {
		s.Category = "Development"
		s.TaskLabel = firstLine(codeEvents[0].Text())
	}

	s.Description = mergeTexts(evidence)
	return s
}

// inferSlot fills a date that has no evidence. Under the continuation
// policy it references the nearest earlier evidence slot, then the
// nearest later one, then pre-window context; with nothing to reference
// (or under the placeholder policy) it emits a generic entry.
func inferSlot(date time.Time, i int, slots []Slot, context []event.Event, policy string) Slot {
	s := Slot{Date: date, Inferred: true}

	if policy == PolicyGenericPlaceholder {
		return placeholder(s)
	}

	// Referencing only the nearest evidence neighbor keeps inferred
	// entries consistent with pool chronology: an earlier date never
	// borrows from work that happened after a later evidence date.
	if earlier := nearestEvidence(slots, i, -1); earlier != nil {
		s.Category = earlier.Category
		s.TaskLabel = earlier.TaskLabel
		s.Description = fmt.Sprintf("Continued work on %s.", earlier.TaskLabel)
		s.Remarks = fmt.Sprintf("Inferred from activity on %s.", event.DayString(earlier.Date))
		return s
	}
	if later := nearestEvidence(slots, i, 1); later != nil {
		s.Category = later.Category
		s.TaskLabel = later.TaskLabel
		s.Description = fmt.Sprintf("Preparation and research for %s.", later.TaskLabel)
		s.Remarks = fmt.Sprintf("Inferred from activity on %s.", event.DayString(later.Date))
		return s
	}
	if len(context) > 0 {
		latest := context[len(context)-1]
		label := firstLine(latest.Text())
		s.Category = contextCategory(latest)
		s.TaskLabel = label
		s.Description = fmt.Sprintf("Ongoing work related to %s.", label)
		s.Remarks = fmt.Sprintf("Inferred from pre-window activity on %s (context only, not in-window).",
			event.DayString(latest.OccurredOn))
		return s
	}
	return placeholder(s)
}

func placeholder(s Slot) Slot {
	s.Category = "General"
	s.TaskLabel = "General tasks"
	s.Description = "General project work and task follow-up."
	s.Remarks = "Inferred; no recorded activity."
	return s
}

// nearestEvidence walks from index i in the given direction and returns
// the closest evidence-backed slot, or nil when none exists that way.
func nearestEvidence(slots []Slot, i, dir int) *Slot {
	for j := i + dir; j >= 0 && j < len(slots); j += dir {
		if !slots[j].Inferred && !slots[j].Date.IsZero() {
			return &slots[j]
		}
	}
	return nil
}

func trackerCategory(trackerEvents []event.Event) string {
	for _, e := range trackerEvents {
		if e.Project != "" {
			return e.Project
		}
	}
	return "Project work"
}

// trackerLabel joins the distinct issue keys recorded that day,
// preserving first appearance order.
func trackerLabel(trackerEvents []event.Event) string {
	var keys []string
	seen := make(map[string]bool)
	for _, e := range trackerEvents {
		k := e.TaskKey
		if k == "" {
			k = firstLine(e.Text())
		}
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return "Tracked work"
	}
	return strings.Join(keys, ", ")
}

func contextCategory(e event.Event) string {
	if e.Project != "" {
		return e.Project
	}
	return "Project work"
}

// mergeTexts folds every same-day event into one description line, in
// event order, so no evidence is dropped before synthesis.
func mergeTexts(evidence []event.Event) string {
	var parts []string
	for _, e := range evidence {
		if line := firstLine(e.Text()); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, "; ")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
