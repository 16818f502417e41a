package timeline

import (
	"testing"
	"time"

	"github.com/jstrand/tally/internal/event"
)

func day(s string) time.Time {
	t, err := event.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func code(d, key string) event.Event {
	return event.Event{Source: event.SourceCode, OccurredOn: day(d), IdentityKey: key, RawText: "commit " + key}
}

func tracker(d, key string) event.Event {
	return event.Event{Source: event.SourceTracker, OccurredOn: day(d), IdentityKey: key, RawText: "worklog " + key}
}

func TestMergeOrdersByDay(t *testing.T) {
	commits := []event.Event{code("2026-03-04", "c1"), code("2026-03-02", "c2")}
	worklogs := []event.Event{tracker("2026-03-03", "w1"), tracker("2026-03-01", "w2")}

	merged := Merge(commits, worklogs)
	if len(merged) != 4 {
		t.Fatalf("merged %d events, want 4", len(merged))
	}
	for i := 1; i < len(merged); i++ {
		if merged[i].OccurredOn.Before(merged[i-1].OccurredOn) {
			t.Errorf("event %d (%s) out of order after %s", i,
				event.DayString(merged[i].OccurredOn), event.DayString(merged[i-1].OccurredOn))
		}
	}
}

func TestMergeSameDayKeepsPoolOrder(t *testing.T) {
	commits := []event.Event{code("2026-03-02", "c1"), code("2026-03-02", "c2")}
	worklogs := []event.Event{tracker("2026-03-02", "w1")}

	merged := Merge(commits, worklogs)
	want := []string{"c1", "c2", "w1"}
	for i, k := range want {
		if merged[i].IdentityKey != k {
			t.Errorf("position %d = %q, want %q", i, merged[i].IdentityKey, k)
		}
	}
}

func TestMergeEmptyPools(t *testing.T) {
	if got := Merge(nil, nil); len(got) != 0 {
		t.Errorf("merging empty pools gave %d events", len(got))
	}
	only := []event.Event{code("2026-03-02", "c1")}
	if got := Merge(only, nil); len(got) != 1 {
		t.Errorf("merging single pool gave %d events, want 1", len(got))
	}
}

func TestRangeEmpty(t *testing.T) {
	if _, _, ok := Range(nil); ok {
		t.Error("Range of empty set reported ok")
	}
}

func TestRangeSpansSources(t *testing.T) {
	events := []event.Event{
		tracker("2026-03-05", "w1"),
		code("2026-02-27", "c1"),
		code("2026-03-09", "c2"),
	}
	min, max, ok := Range(events)
	if !ok {
		t.Fatal("Range reported no data")
	}
	if got := event.DayString(min); got != "2026-02-27" {
		t.Errorf("min = %s, want 2026-02-27", got)
	}
	if got := event.DayString(max); got != "2026-03-09" {
		t.Errorf("max = %s, want 2026-03-09", got)
	}
}

func TestFilterRangeInclusive(t *testing.T) {
	events := []event.Event{
		code("2026-03-01", "before"),
		code("2026-03-02", "start"),
		tracker("2026-03-03", "mid"),
		code("2026-03-04", "end"),
		code("2026-03-05", "after"),
	}
	got := FilterRange(events, day("2026-03-02"), day("2026-03-04"))
	if len(got) != 3 {
		t.Fatalf("filtered %d events, want 3", len(got))
	}
	want := []string{"start", "mid", "end"}
	for i, k := range want {
		if got[i].IdentityKey != k {
			t.Errorf("position %d = %q, want %q", i, got[i].IdentityKey, k)
		}
	}
}

func TestLatestBefore(t *testing.T) {
	events := []event.Event{
		tracker("2026-03-01", "w1"),
		tracker("2026-03-03", "w3"),
		tracker("2026-03-02", "w2"),
		tracker("2026-03-05", "w5"),
	}
	got := LatestBefore(events, day("2026-03-05"), 2)
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	// Most recent two before the cutoff, ascending: w2 then w3. w5 is on
	// the cutoff day and must be excluded.
	if got[0].IdentityKey != "w2" || got[1].IdentityKey != "w3" {
		t.Errorf("got %q, %q, want w2, w3", got[0].IdentityKey, got[1].IdentityKey)
	}
}

func TestBuildViewNoFallbackWhenTrackerPresent(t *testing.T) {
	w, err := event.NewWindow(day("2026-03-02"), 3)
	if err != nil {
		t.Fatal(err)
	}
	all := Merge(
		[]event.Event{code("2026-03-02", "c1")},
		[]event.Event{tracker("2026-02-20", "old"), tracker("2026-03-03", "w1")},
	)
	v := BuildView(all, w, 5)
	if len(v.Events) != 2 {
		t.Fatalf("window holds %d events, want 2", len(v.Events))
	}
	if len(v.Context) != 0 {
		t.Errorf("context populated despite in-window tracker event")
	}
}

func TestBuildViewFallbackContext(t *testing.T) {
	w, err := event.NewWindow(day("2026-03-02"), 3)
	if err != nil {
		t.Fatal(err)
	}
	all := Merge(
		[]event.Event{code("2026-03-03", "c1")},
		[]event.Event{
			tracker("2026-02-10", "w1"),
			tracker("2026-02-15", "w2"),
			tracker("2026-02-20", "w3"),
		},
	)
	v := BuildView(all, w, 2)
	if len(v.Events) != 1 {
		t.Fatalf("window holds %d events, want 1", len(v.Events))
	}
	if len(v.Context) != 2 {
		t.Fatalf("context holds %d events, want 2", len(v.Context))
	}
	// Most recent two pre-window tracker events, oldest first, and kept
	// apart from the in-window slice.
	if v.Context[0].IdentityKey != "w2" || v.Context[1].IdentityKey != "w3" {
		t.Errorf("context = %q, %q, want w2, w3", v.Context[0].IdentityKey, v.Context[1].IdentityKey)
	}
	for _, e := range v.Context {
		if w.Contains(e.OccurredOn) {
			t.Errorf("context event %s lies inside the window", event.DayString(e.OccurredOn))
		}
	}
}

func TestBuildViewEmptyTimeline(t *testing.T) {
	w, err := event.NewWindow(day("2026-03-02"), 3)
	if err != nil {
		t.Fatal(err)
	}
	v := BuildView(nil, w, 5)
	if len(v.Events) != 0 || len(v.Context) != 0 {
		t.Errorf("empty timeline produced events=%d context=%d", len(v.Events), len(v.Context))
	}
}
