package narrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/jstrand/tally/internal/allocate"
	"github.com/jstrand/tally/internal/event"
	"github.com/jstrand/tally/internal/llm"
	"github.com/jstrand/tally/internal/logging"
	"github.com/jstrand/tally/internal/timeline"
)

// Timesheet asks the provider to phrase each slot's description and a
// one-line executive summary, matching response lines to slots by date
// in a "date | category | description" delimiter format. Slots the
// response doesn't cover keep their drafted description; category,
// label, hours, and the inferred flag always stay as allocated. A nil
// provider or a failed call returns the slots untouched with a
// deterministic summary.
func Timesheet(ctx context.Context, p llm.Provider, v timeline.View, slots []allocate.Slot, policy string) ([]allocate.Slot, string) {
	out := make([]allocate.Slot, len(slots))
	copy(out, slots)

	if p == nil || len(out) == 0 {
		return out, fallbackSummary(v, out)
	}

	resp, err := p.Generate(ctx, llm.Request{
		SystemPrompt: timesheetSystemPrompt,
		UserPrompt:   timesheetPrompt(v, out, policy),
		MaxTokens:    120*len(out) + 200,
		Temperature:  0.1,
	})
	if err != nil {
		logging.Warn("timesheet synthesis failed, keeping drafted entries", "error", err)
		return out, fallbackSummary(v, out)
	}

	applied, summary := parseTimesheet(resp.Content, out)
	logging.Debug("timesheet synthesis parsed",
		"slots", len(out), "applied", applied, "has_summary", summary != "")

	if summary == "" {
		summary = fallbackSummary(v, out)
	}
	return out, summary
}

// timesheetPrompt lays out every date with its full same-day evidence,
// drafted filler for empty dates, and any pre-window context.
func timesheetPrompt(v timeline.View, slots []allocate.Slot, policy string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Reporting window: %s.\n\n", v.Window))

	for _, s := range slots {
		date := event.DayString(s.Date)
		if s.Inferred {
			sb.WriteString(fmt.Sprintf("%s (no recorded activity; draft: %s)\n", date, s.Description))
			continue
		}
		sb.WriteString(fmt.Sprintf("%s (recorded activity):\n", date))
		for _, e := range s.Events {
			sb.WriteString("- ")
			sb.WriteString(evidenceLine(e))
			sb.WriteString("\n")
		}
	}

	if len(v.Context) > 0 {
		sb.WriteString("\nEarlier activity for background (context only, not part of the window):\n")
		for _, e := range v.Context {
			sb.WriteString(fmt.Sprintf("- %s %s\n", event.DayString(e.OccurredOn), evidenceLine(e)))
		}
	}

	sb.WriteString("\nWrite the timesheet:\n")
	sb.WriteString("- Exactly one line per date listed above, in the same order.\n")
	sb.WriteString("- Format: YYYY-MM-DD | category | description\n")
	sb.WriteString("- Each description is one or two professional, past-tense sentences grounded in that date's activity.\n")
	sb.WriteString("- " + PolicyRule(policy) + "\n")
	sb.WriteString("- Never invent commits, tickets, or systems that are not listed above.\n")
	sb.WriteString("- End with one final line: SUMMARY: <one sentence covering the whole period>\n")
	return sb.String()
}

func evidenceLine(e event.Event) string {
	var sb strings.Builder
	switch e.Source {
	case event.SourceTracker:
		sb.WriteString("[tracker] ")
	default:
		sb.WriteString("[code] ")
	}
	sb.WriteString(firstLine(e.Text()))
	if e.Source == event.SourceTracker && e.Hours > 0 {
		sb.WriteString(fmt.Sprintf(" (%.1fh logged)", e.Hours))
	}
	if e.Source == event.SourceCode && e.OriginContext != "" {
		sb.WriteString(fmt.Sprintf(" (branch: %s)", e.OriginContext))
	}
	return sb.String()
}

// parseTimesheet applies "date | category | description" lines to the
// matching slots and extracts the SUMMARY line. Only descriptions are
// taken from the response; lines with unknown dates or no description
// are skipped. Leading and trailing pipes are tolerated so a response
// echoed as a markdown table still parses.
func parseTimesheet(content string, slots []allocate.Slot) (applied int, summary string) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		line = strings.Trim(line, "|")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if rest, ok := strings.CutPrefix(line, "SUMMARY:"); ok {
			if s := strings.TrimSpace(rest); s != "" {
				summary = s
			}
			continue
		}

		fields := strings.Split(line, "|")
		if len(fields) < 2 {
			continue
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		date, err := event.ParseDay(fields[0])
		if err != nil {
			continue
		}
		desc := fields[len(fields)-1]
		if desc == "" {
			continue
		}

		for i := range slots {
			if event.SameDay(slots[i].Date, date) {
				slots[i].Description = desc
				applied++
				break
			}
		}
	}
	return applied, summary
}

// fallbackSummary builds a plain one-liner when the provider gave none.
func fallbackSummary(v timeline.View, slots []allocate.Slot) string {
	evidence := 0
	var categories []string
	seen := make(map[string]bool)
	for _, s := range slots {
		if s.Inferred {
			continue
		}
		evidence++
		if s.Category != "" && !seen[s.Category] {
			seen[s.Category] = true
			categories = append(categories, s.Category)
		}
	}

	if evidence == 0 {
		return fmt.Sprintf("No recorded activity from %s; entries are inferred from surrounding work.", v.Window)
	}
	return fmt.Sprintf("Recorded activity on %d of %d days (%s).",
		evidence, len(slots), strings.Join(categories, ", "))
}
