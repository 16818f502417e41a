// Package report assembles the final timesheet document and renders it
// as markdown.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/jstrand/tally/internal/allocate"
	"github.com/jstrand/tally/internal/event"
)

// Report is one generated timesheet: exactly one row per date in the
// window, plus the executive summary and any pre-window context that
// informed inference.
type Report struct {
	Username    string
	Repo        string // owner/name
	Project     string
	Window      event.Window
	Slots       []allocate.Slot
	Summary     string
	Context     []event.Event
	GeneratedAt time.Time
}

// Markdown renders the full document.
func (r *Report) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Timesheet: %s — %s\n\n", r.Username, r.Repo)

	meta := []string{fmt.Sprintf("Window %s (%d days)", r.Window.String(), r.Window.Days)}
	if r.Project != "" {
		meta = append(meta, "Tracker project: "+r.Project)
	}
	if !r.GeneratedAt.IsZero() {
		meta = append(meta, "Generated "+r.GeneratedAt.Format("2006-01-02 15:04"))
	}
	b.WriteString(strings.Join(meta, " | "))
	b.WriteString("\n\n")

	b.WriteString("| Date | Category | Task | Description | Hours | Source |\n")
	b.WriteString("|------|----------|------|-------------|-------|--------|\n")
	for _, slot := range r.Slots {
		desc := slot.Description
		if slot.Remarks != "" {
			desc += fmt.Sprintf(" *(%s)*", slot.Remarks)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			event.DayString(slot.Date),
			cell(slot.Category),
			cell(slot.TaskLabel),
			cell(desc),
			hoursCell(slot),
			sourceLabel(slot))
	}

	if r.Summary != "" {
		b.WriteString("\n## Executive Summary\n\n")
		b.WriteString(r.Summary)
		b.WriteString("\n")
	}

	if len(r.Context) > 0 {
		b.WriteString("\n## Prior activity (context only, not in-window)\n\n")
		for _, e := range r.Context {
			line := fmt.Sprintf("- %s: %s", event.DayString(e.OccurredOn), firstLine(e.Text()))
			if e.Hours > 0 {
				line += fmt.Sprintf(" (%.1fh logged)", e.Hours)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return b.String()
}

// Filename derives the stable output name for this person and target.
func (r *Report) Filename() string {
	sanitize := strings.NewReplacer("/", "_", " ", "_")
	return fmt.Sprintf("%s_%s_report.md", sanitize.Replace(r.Username), sanitize.Replace(r.Repo))
}

// sourceLabel names the evidence behind a slot.
func sourceLabel(slot allocate.Slot) string {
	if slot.Inferred {
		return "Inferred"
	}
	var code, tracker bool
	for _, s := range slot.Sources {
		switch s {
		case event.SourceCode:
			code = true
		case event.SourceTracker:
			tracker = true
		}
	}
	switch {
	case code && tracker:
		return "GitHub + Jira"
	case tracker:
		return "Jira"
	case code:
		return "GitHub"
	}
	return "Inferred"
}

func hoursCell(slot allocate.Slot) string {
	if !slot.HasHours {
		return "-"
	}
	return fmt.Sprintf("%.1f", slot.Hours)
}

// cell flattens text into a single markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.TrimSpace(s)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
