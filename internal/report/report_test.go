package report

import (
	"strings"
	"testing"
	"time"

	"github.com/jstrand/tally/internal/allocate"
	"github.com/jstrand/tally/internal/event"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := event.ParseDay(s)
	if err != nil {
		t.Fatalf("bad day %q: %v", s, err)
	}
	return d
}

func sampleReport(t *testing.T) *Report {
	t.Helper()
	w, err := event.NewWindow(day(t, "2026-03-02"), 3)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	return &Report{
		Username: "alice",
		Repo:     "acme/api",
		Project:  "PAY",
		Window:   w,
		Slots: []allocate.Slot{
			{
				Date:        day(t, "2026-03-02"),
				Category:    "Payments",
				TaskLabel:   "PAY-7",
				Description: "Reconciled settlement batches | edge cases",
				Sources:     []event.Source{event.SourceCode, event.SourceTracker},
				Hours:       4.5,
				HasHours:    true,
			},
			{
				Date:        day(t, "2026-03-03"),
				Category:    "Development",
				TaskLabel:   "Fix login redirect loop",
				Description: "Fixed the login redirect loop.",
				Sources:     []event.Source{event.SourceCode},
			},
			{
				Date:        day(t, "2026-03-04"),
				Category:    "Payments",
				TaskLabel:   "PAY-7",
				Description: "Continued work on PAY-7.",
				Remarks:     "Inferred from activity on 2026-03-02.",
				Inferred:    true,
			},
		},
		Summary:     "Focused on settlement reconciliation with auth fixes on the side.",
		GeneratedAt: time.Date(2026, 3, 7, 9, 30, 0, 0, time.UTC),
	}
}

func TestMarkdownTable(t *testing.T) {
	md := sampleReport(t).Markdown()

	if !strings.Contains(md, "# Timesheet: alice — acme/api") {
		t.Error("title missing")
	}
	if !strings.Contains(md, "Window 2026-03-02 to 2026-03-04 (3 days)") {
		t.Errorf("window metadata missing:\n%s", md)
	}
	if !strings.Contains(md, "Tracker project: PAY") {
		t.Error("project metadata missing")
	}

	rows := 0
	for _, line := range strings.Split(md, "\n") {
		if strings.HasPrefix(line, "| 2026-") {
			rows++
		}
	}
	if rows != 3 {
		t.Errorf("table holds %d date rows, want 3", rows)
	}

	if !strings.Contains(md, "| GitHub + Jira |") {
		t.Error("combined source label missing")
	}
	if !strings.Contains(md, "| GitHub |") {
		t.Error("code source label missing")
	}
	if !strings.Contains(md, "| Inferred |") {
		t.Error("inferred source label missing")
	}
	if !strings.Contains(md, "| 4.5 |") {
		t.Error("hours cell missing")
	}
	if !strings.Contains(md, "| - |") {
		t.Error("unknown hours should render as dash")
	}
	if !strings.Contains(md, "*(Inferred from activity on 2026-03-02.)*") {
		t.Error("inferred row should carry its remark")
	}
	// Pipes inside descriptions must not break the table.
	if !strings.Contains(md, `\|`) {
		t.Error("pipe in description not escaped")
	}
	if !strings.Contains(md, "## Executive Summary") {
		t.Error("summary section missing")
	}
	if strings.Contains(md, "Prior activity") {
		t.Error("context section should be absent without context events")
	}
}

func TestMarkdownContextSection(t *testing.T) {
	r := sampleReport(t)
	r.Context = []event.Event{
		{
			Source:     event.SourceTracker,
			OccurredOn: day(t, "2026-02-20"),
			RawText:    "OPS-5: Rotate credentials",
			Hours:      1.5,
		},
	}
	md := r.Markdown()
	if !strings.Contains(md, "## Prior activity (context only, not in-window)") {
		t.Error("context section missing")
	}
	if !strings.Contains(md, "- 2026-02-20: OPS-5: Rotate credentials (1.5h logged)") {
		t.Errorf("context line missing:\n%s", md)
	}
}

func TestFilename(t *testing.T) {
	r := &Report{Username: "alice smith", Repo: "acme/api"}
	if got := r.Filename(); got != "alice_smith_acme_api_report.md" {
		t.Errorf("filename = %q", got)
	}
}

func TestSourceLabel(t *testing.T) {
	tests := []struct {
		slot allocate.Slot
		want string
	}{
		{allocate.Slot{Sources: []event.Source{event.SourceCode}}, "GitHub"},
		{allocate.Slot{Sources: []event.Source{event.SourceTracker}}, "Jira"},
		{allocate.Slot{Sources: []event.Source{event.SourceCode, event.SourceTracker}}, "GitHub + Jira"},
		{allocate.Slot{Inferred: true}, "Inferred"},
		{allocate.Slot{}, "Inferred"},
	}
	for _, tt := range tests {
		if got := sourceLabel(tt.slot); got != tt.want {
			t.Errorf("sourceLabel(%+v) = %q, want %q", tt.slot.Sources, got, tt.want)
		}
	}
}
