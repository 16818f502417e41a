package allocate

import (
	"strings"
	"testing"
	"time"

	"github.com/jstrand/tally/internal/event"
	"github.com/jstrand/tally/internal/timeline"
)

func day(s string) time.Time {
	t, err := event.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func window(start string, days int) event.Window {
	w, err := event.NewWindow(day(start), days)
	if err != nil {
		panic(err)
	}
	return w
}

func commit(d, sha, msg string) event.Event {
	return event.Event{Source: event.SourceCode, OccurredOn: day(d), IdentityKey: sha, RawText: msg}
}

func worklog(d, key, project, summary string, hours float64) event.Event {
	return event.Event{
		Source:      event.SourceTracker,
		OccurredOn:  day(d),
		IdentityKey: key + "/1",
		TaskKey:     key,
		Project:     project,
		RawText:     key + ": " + summary,
		Hours:       hours,
	}
}

func view(w event.Window, events, context []event.Event) timeline.View {
	return timeline.View{Window: w, Events: events, Context: context}
}

func TestBuildEmitsOneSlotPerDate(t *testing.T) {
	for _, n := range []int{1, 3, 7} {
		w := window("2026-03-02", n)
		slots := Build(view(w, nil, nil), DefaultPolicy)
		if len(slots) != n {
			t.Fatalf("n=%d: got %d slots", n, len(slots))
		}
		for i, d := range w.Dates() {
			if !slots[i].Date.Equal(d) {
				t.Errorf("n=%d: slot %d dated %s, want %s", n, i,
					event.DayString(slots[i].Date), event.DayString(d))
			}
		}
	}
}

func TestSingleCodeEventSpreads(t *testing.T) {
	w := window("2024-02-01", 3)
	evidence := []event.Event{commit("2024-02-02", "abc123", "Fix login redirect loop")}
	slots := Build(view(w, evidence, nil), DefaultPolicy)

	if len(slots) != 3 {
		t.Fatalf("got %d slots, want 3", len(slots))
	}
	if !slots[0].Inferred || slots[1].Inferred || !slots[2].Inferred {
		t.Errorf("inferred flags = %v %v %v, want true false true",
			slots[0].Inferred, slots[1].Inferred, slots[2].Inferred)
	}
	if slots[1].Category != "Development" {
		t.Errorf("evidence slot category = %q, want Development", slots[1].Category)
	}
	if slots[1].TaskLabel != "Fix login redirect loop" {
		t.Errorf("evidence slot label = %q", slots[1].TaskLabel)
	}
	// Day 1 has no earlier evidence, so it looks ahead; day 3 continues.
	if !strings.Contains(slots[0].Description, "Preparation") {
		t.Errorf("leading inferred slot description = %q", slots[0].Description)
	}
	if !strings.Contains(slots[2].Description, "Continued") {
		t.Errorf("trailing inferred slot description = %q", slots[2].Description)
	}
	for _, i := range []int{0, 2} {
		if slots[i].Remarks == "" {
			t.Errorf("inferred slot %d carries no remarks", i)
		}
	}
}

func TestTrackerOutranksCode(t *testing.T) {
	w := window("2026-03-02", 1)
	evidence := []event.Event{
		commit("2026-03-02", "abc123", "Wire payment provider"),
		worklog("2026-03-02", "PAY-7", "Payments", "Integrate provider API", 3),
		worklog("2026-03-02", "PAY-9", "Payments", "Review settlement flow", 1.5),
	}
	slots := Build(view(w, evidence, nil), DefaultPolicy)
	s := slots[0]

	if s.Category != "Payments" {
		t.Errorf("category = %q, want Payments", s.Category)
	}
	if s.TaskLabel != "PAY-7, PAY-9" {
		t.Errorf("label = %q, want PAY-7, PAY-9", s.TaskLabel)
	}
	if s.Hours != 4.5 || !s.HasHours {
		t.Errorf("hours = %v (has=%v), want 4.5", s.Hours, s.HasHours)
	}
	if len(s.Events) != 3 {
		t.Errorf("slot carries %d events, want all 3", len(s.Events))
	}
	if len(s.Sources) != 2 || s.Sources[0] != event.SourceCode || s.Sources[1] != event.SourceTracker {
		t.Errorf("sources = %v", s.Sources)
	}
	// Code evidence still reaches the description.
	if !strings.Contains(s.Description, "Wire payment provider") {
		t.Errorf("description dropped code evidence: %q", s.Description)
	}
}

func TestSameDayEventsMergeIntoOneSlot(t *testing.T) {
	w := window("2026-03-02", 1)
	evidence := []event.Event{
		commit("2026-03-02", "a1", "Add retry budget"),
		commit("2026-03-02", "a2", "Fix flaky scheduler test"),
		commit("2026-03-02", "a3", "Bump parser version"),
	}
	slots := Build(view(w, evidence, nil), DefaultPolicy)
	if len(slots) != 1 {
		t.Fatalf("got %d slots, want 1", len(slots))
	}
	if len(slots[0].Events) != 3 {
		t.Errorf("slot carries %d events, want 3", len(slots[0].Events))
	}
	for _, msg := range []string{"Add retry budget", "Fix flaky scheduler test", "Bump parser version"} {
		if !strings.Contains(slots[0].Description, msg) {
			t.Errorf("description missing %q: %q", msg, slots[0].Description)
		}
	}
}

func TestInferenceFromContext(t *testing.T) {
	w := window("2026-03-02", 2)
	context := []event.Event{
		worklog("2026-02-10", "OPS-3", "Operations", "Rotate signing keys", 2),
		worklog("2026-02-20", "OPS-5", "Operations", "Upgrade ingress controller", 4),
	}
	slots := Build(view(w, nil, context), DefaultPolicy)

	for i, s := range slots {
		if !s.Inferred {
			t.Fatalf("slot %d not marked inferred", i)
		}
		if s.Category != "Operations" {
			t.Errorf("slot %d category = %q, want Operations", i, s.Category)
		}
		if !strings.Contains(s.Remarks, "context only, not in-window") {
			t.Errorf("slot %d remarks do not flag context basis: %q", i, s.Remarks)
		}
		if !strings.Contains(s.Remarks, "2026-02-20") {
			t.Errorf("slot %d remarks do not cite the most recent context event: %q", i, s.Remarks)
		}
	}
}

func TestGenericPlaceholderPolicy(t *testing.T) {
	w := window("2026-03-02", 3)
	evidence := []event.Event{commit("2026-03-03", "abc", "Refactor export pipeline")}
	slots := Build(view(w, evidence, nil), PolicyGenericPlaceholder)

	for _, i := range []int{0, 2} {
		if !slots[i].Inferred {
			t.Fatalf("slot %d not marked inferred", i)
		}
		if strings.Contains(slots[i].Description, "Refactor export pipeline") {
			t.Errorf("placeholder slot %d references neighboring work: %q", i, slots[i].Description)
		}
		if slots[i].Category != "General" {
			t.Errorf("slot %d category = %q, want General", i, slots[i].Category)
		}
	}
}

func TestUnknownPolicyFallsBackToDefault(t *testing.T) {
	w := window("2026-03-02", 2)
	evidence := []event.Event{commit("2026-03-02", "abc", "Tighten validation")}
	slots := Build(view(w, evidence, nil), "round-robin")

	// Default policy references the neighbor rather than emitting a
	// generic placeholder.
	if !strings.Contains(slots[1].Description, "Tighten validation") {
		t.Errorf("fallback did not use continuation policy: %q", slots[1].Description)
	}
}

func TestKnownPolicies(t *testing.T) {
	if !Known(PolicyAdjacentContinuation) || !Known(PolicyGenericPlaceholder) {
		t.Error("recognized policies reported unknown")
	}
	if Known("") || Known("adjacent") {
		t.Error("unrecognized policy reported known")
	}
}

func TestNoHoursWithoutTrackerEvidence(t *testing.T) {
	w := window("2026-03-02", 1)
	evidence := []event.Event{commit("2026-03-02", "abc", "Speed up cold start")}
	slots := Build(view(w, evidence, nil), DefaultPolicy)
	if slots[0].HasHours {
		t.Errorf("code-only slot claims hours: %v", slots[0].Hours)
	}
}
