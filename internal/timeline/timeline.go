// Package timeline merges per-source event collections into one
// time-ordered view and resolves date windows over it.
package timeline

import (
	"sort"
	"time"

	"github.com/jstrand/tally/internal/event"
)

// Merge combines per-source event pools into a single sequence sorted
// ascending by occurrence day. The sort is stable, so events on the same
// day keep pool-then-insertion order. Empty or nil pools contribute
// nothing; a source that never produced data is simply absent.
func Merge(pools ...[]event.Event) []event.Event {
	var merged []event.Event
	for _, pool := range pools {
		merged = append(merged, pool...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].OccurredOn.Before(merged[j].OccurredOn)
	})
	return merged
}

// Range returns the earliest and latest occurrence days across events.
// ok is false when the set is empty; an empty set is a normal state, not
// an error.
func Range(events []event.Event) (min, max time.Time, ok bool) {
	for _, e := range events {
		d := event.DayOf(e.OccurredOn)
		if !ok {
			min, max, ok = d, d, true
			continue
		}
		if d.Before(min) {
			min = d
		}
		if d.After(max) {
			max = d
		}
	}
	return min, max, ok
}

// FilterRange returns the events whose occurrence days fall inside
// [start, end], both ends inclusive, preserving input order.
func FilterRange(events []event.Event, start, end time.Time) []event.Event {
	start, end = event.DayOf(start), event.DayOf(end)
	var out []event.Event
	for _, e := range events {
		d := event.DayOf(e.OccurredOn)
		if d.Before(start) || d.After(end) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// LatestBefore returns up to n events from strictly before cutoff,
// preferring the most recent ones, in ascending day order.
func LatestBefore(events []event.Event, cutoff time.Time, n int) []event.Event {
	if n <= 0 {
		return nil
	}
	cutoff = event.DayOf(cutoff)
	var before []event.Event
	for _, e := range events {
		if event.DayOf(e.OccurredOn).Before(cutoff) {
			before = append(before, e)
		}
	}
	sort.SliceStable(before, func(i, j int) bool {
		return before[i].OccurredOn.Before(before[j].OccurredOn)
	})
	if len(before) > n {
		before = before[len(before)-n:]
	}
	return before
}

// View is a resolved reporting window: the in-window slice of the
// unified timeline, plus optional pre-window tracker events surfaced
// when the window itself has no tracker activity.
//
// Context is background material only. It is never merged into Events
// and every downstream consumer presents it as out-of-window.
type View struct {
	Window  event.Window
	Events  []event.Event
	Context []event.Event
}

// BuildView filters the unified timeline down to the window. When the
// window holds zero tracker events, the most recent contextN tracker
// events from before the window are attached as Context, so sparse
// windows still have background material to work from.
func BuildView(all []event.Event, w event.Window, contextN int) View {
	v := View{Window: w, Events: FilterRange(all, w.Start, w.End())}

	for _, e := range v.Events {
		if e.Source == event.SourceTracker {
			return v
		}
	}

	var tracker []event.Event
	for _, e := range all {
		if e.Source == event.SourceTracker {
			tracker = append(tracker, e)
		}
	}
	v.Context = LatestBefore(tracker, w.Start, contextN)
	return v
}
