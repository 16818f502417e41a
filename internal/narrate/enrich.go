// Package narrate is the glue between activity evidence and the
// text-generation boundary: per-event summary enrichment and per-date
// timesheet phrasing. Everything here degrades to the raw input text
// when a provider is missing, fails, or answers in the wrong shape —
// synthesis never sinks a run.
package narrate

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jstrand/tally/internal/event"
	"github.com/jstrand/tally/internal/llm"
	"github.com/jstrand/tally/internal/logging"
)

// enrichBatchSize bounds how many messages go into one request.
const enrichBatchSize = 10

// EnrichSummaries rewrites each event's raw text into one professional
// past-tense sentence, in batches, strictly line-matched to the input.
// Events the response doesn't cover keep an empty summary, so their raw
// text continues to serve. Provider errors are logged and absorbed.
func EnrichSummaries(ctx context.Context, p llm.Provider, events []event.Event) []event.Event {
	out := make([]event.Event, len(events))
	copy(out, events)

	if p == nil || len(out) == 0 {
		return out
	}

	for start := 0; start < len(out); start += enrichBatchSize {
		end := start + enrichBatchSize
		if end > len(out) {
			end = len(out)
		}
		batch := out[start:end]

		resp, err := p.Generate(ctx, llm.Request{
			SystemPrompt: enrichSystemPrompt,
			UserPrompt:   enrichPrompt(batch),
			MaxTokens:    60 * len(batch),
			Temperature:  0.1,
		})
		if err != nil {
			logging.Warn("summary enrichment failed, keeping raw text",
				"batch_start", start, "batch_size", len(batch), "error", err)
			continue
		}

		summaries := parseNumbered(resp.Content, len(batch))
		matched := 0
		for i, s := range summaries {
			if s == "" {
				continue
			}
			batch[i].Summary = s
			matched++
		}
		if matched < len(batch) {
			logging.Debug("enrichment response short, raw text fills the tail",
				"batch_size", len(batch), "matched", matched)
		}
	}

	return out
}

// enrichPrompt numbers the batch's messages for line-matched rewriting.
func enrichPrompt(batch []event.Event) string {
	var sb strings.Builder
	sb.WriteString("Rewrite each work log line below as ONE professional, past-tense sentence describing the work done.\n")
	sb.WriteString("Format: number. sentence\n\n")

	for i, e := range batch {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, firstLine(e.RawText)))
	}

	sb.WriteString("\nRespond with ONLY the numbered sentences, one per line:")
	return sb.String()
}

// parseNumbered extracts numbered lines from an LLM response into a
// slice of length expected, empty where no usable line arrived.
// Handles formats like "1. text", "1: text", "1) text".
func parseNumbered(response string, expected int) []string {
	results := make([]string, expected)

	lines := strings.Split(response, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var idx int
		var text string

		// Try different separators
		for _, sep := range []string{".", ":", ")", "-"} {
			parts := strings.SplitN(line, sep, 2)
			if len(parts) != 2 {
				continue
			}
			n, err := strconv.Atoi(strings.TrimSpace(parts[0]))
			if err != nil {
				continue
			}
			if rest := strings.TrimSpace(parts[1]); rest != "" {
				idx = n
				text = rest
				break
			}
		}

		if idx < 1 || idx > expected {
			continue
		}

		text = strings.Trim(text, `"'`)
		// Too short to be a real sentence; keep the raw text instead.
		if len(text) <= 5 {
			continue
		}
		results[idx-1] = text
	}

	return results
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
