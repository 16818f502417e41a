// Package e2e wires the whole pipeline together against fake source
// servers: pull from HTTP fixtures into a real on-disk store, then
// read back and synthesize a report with a scripted generator.
package e2e

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jstrand/tally/internal/event"
	"github.com/jstrand/tally/internal/github"
	"github.com/jstrand/tally/internal/identity"
	"github.com/jstrand/tally/internal/jira"
	"github.com/jstrand/tally/internal/llm"
	"github.com/jstrand/tally/internal/run"
	"github.com/jstrand/tally/internal/store"
)

const timesheetScript = `2026-03-02 | Development | Shipped the login redirect fix.
2026-03-03 | Development | Hardened session refresh handling.
2026-03-04 | Payments | Reconciled settlement batches.
2026-03-05 | Payments | Continued settlement reconciliation.
SUMMARY: Focused on auth fixes and settlement reconciliation.`

// scriptedProvider answers the per-item pass by echoing numbered lines
// back with a marker, and the per-date pass with a fixed timesheet.
type scriptedProvider struct{}

func (p *scriptedProvider) Name() string    { return "scripted" }
func (p *scriptedProvider) Available() bool { return true }

func (p *scriptedProvider) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	if strings.Contains(req.UserPrompt, "Reporting window:") {
		return llm.Response{Content: timesheetScript, Model: "scripted"}, nil
	}
	var b strings.Builder
	matched := 0
	for _, line := range strings.Split(req.UserPrompt, "\n") {
		var num int
		if _, err := fmt.Sscanf(line, "%d.", &num); err != nil {
			continue
		}
		text := line
		if i := strings.Index(line, ". "); i >= 0 {
			text = line[i+2:]
		}
		fmt.Fprintf(&b, "%d. Polished: %s\n", num, text)
		matched++
	}
	if matched == 0 {
		return llm.Response{}, fmt.Errorf("prompt carried no numbered lines")
	}
	return llm.Response{Content: b.String(), Model: "scripted"}, nil
}

var _ llm.Provider = (*scriptedProvider)(nil)

const githubCommitsMain = `[
	{"sha":"c-one","commit":{"message":"Fix login redirect loop","author":{"name":"Alice Smith","date":"2026-03-02T14:22:31Z"}},"author":{"login":"alice"}},
	{"sha":"c-two","commit":{"message":"Harden session refresh","author":{"name":"Alice Smith","date":"2026-03-03T10:05:00Z"}},"author":{"login":"alice"}}
]`

const githubCommitsFeature = `[
	{"sha":"c-two","commit":{"message":"Harden session refresh","author":{"name":"Alice Smith","date":"2026-03-03T10:05:00Z"}},"author":{"login":"alice"}},
	{"sha":"c-three","commit":{"message":"Unrelated drive-by","author":{"name":"Bob Jones","date":"2026-03-03T11:00:00Z"}},"author":{"login":"bob"}}
]`

func fakeGitHub(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/acme/api":
			w.Write([]byte(`{"default_branch":"main"}`))
		case "/repos/acme/api/branches":
			w.Write([]byte(`[{"name":"main"},{"name":"feature/x"}]`))
		case "/repos/acme/api/commits":
			if r.URL.Query().Get("sha") == "feature/x" {
				w.Write([]byte(githubCommitsFeature))
			} else {
				w.Write([]byte(githubCommitsMain))
			}
		default:
			http.NotFound(w, r)
		}
	}))
}

func fakeJira(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/api/2/search":
			w.Write([]byte(`{"issues":[{"key":"PAY-7","fields":{"summary":"Reconcile settlement batches","status":{"name":"In Progress"},"project":{"name":"Payments"},"updated":"2026-03-04T18:00:00.000+0000"}}]}`))
		case "/rest/api/2/issue/PAY-7/worklog":
			w.Write([]byte(`{"worklogs":[{"id":"101","author":{"displayName":"Alice Smith"},"comment":"batch matcher","started":"2026-03-04T09:30:00.000+0000","timeSpentSeconds":7200}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
}

func newPipelineRun(t *testing.T, githubURL, jiraURL string, gen llm.Provider) *run.Run {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "alice_acme_api.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	client := github.NewClient("test-token")
	client.SetBaseURL(githubURL)
	code := github.NewFetcher(client, github.NewFeedFetcher(), identity.New("alice"), "acme", "api", 30)

	tracker := jira.NewFetcher(jira.NewClient(jiraURL, "dev@acme.test", "api-token"), "PAY", 30)

	return run.New(run.Options{
		Username:      "alice",
		Owner:         "acme",
		Repo:          "api",
		Project:       "PAY",
		Store:         st,
		Code:          code,
		Tracker:       tracker,
		Generator:     gen,
		ContextEvents: 5,
	})
}

func TestPipelinePullAndReport(t *testing.T) {
	gh := fakeGitHub(t)
	defer gh.Close()
	jr := fakeJira(t)
	defer jr.Close()

	r := newPipelineRun(t, gh.URL, jr.URL, &scriptedProvider{})
	ctx := context.Background()

	pulled, err := r.Pull(ctx)
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	// c-two is reachable from both branches and must land once; bob's
	// commit is not alice's.
	if pulled.CodeEvents != 2 {
		t.Errorf("code events = %d, want 2", pulled.CodeEvents)
	}
	if pulled.TrackerEvents != 1 {
		t.Errorf("tracker events = %d, want 1", pulled.TrackerEvents)
	}
	if pulled.Branches != 2 {
		t.Errorf("branches = %d, want 2", pulled.Branches)
	}

	rep, err := r.Report(ctx, "2026-03-02", 4)
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if len(rep.Slots) != 4 {
		t.Fatalf("got %d slots, want 4", len(rep.Slots))
	}

	if rep.Slots[0].Description != "Shipped the login redirect fix." {
		t.Errorf("slot 0 description = %q", rep.Slots[0].Description)
	}
	if rep.Slots[2].Category != "Payments" || rep.Slots[2].Hours != 2.0 {
		t.Errorf("tracker slot = %+v", rep.Slots[2])
	}
	if !rep.Slots[3].Inferred {
		t.Error("2026-03-05 has no evidence and must stay marked inferred")
	}
	if rep.Slots[3].Description != "Continued settlement reconciliation." {
		t.Errorf("inferred slot description = %q", rep.Slots[3].Description)
	}
	if rep.Summary != "Focused on auth fixes and settlement reconciliation." {
		t.Errorf("summary = %q", rep.Summary)
	}

	md := rep.Markdown()
	for _, want := range []string{
		"# Timesheet: alice — acme/api",
		"| 2026-03-02 |",
		"| Inferred |",
		"| 2.0 |",
		"## Executive Summary",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown misses %q", want)
		}
	}
}

func TestPipelinePersistsEnrichedSummaries(t *testing.T) {
	gh := fakeGitHub(t)
	defer gh.Close()
	jr := fakeJira(t)
	defer jr.Close()

	r := newPipelineRun(t, gh.URL, jr.URL, &scriptedProvider{})
	if _, err := r.Pull(context.Background()); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}

	// Reopen-free read back: the run's store still holds the events.
	min, max, ok, err := r.AvailableRange()
	if err != nil || !ok {
		t.Fatalf("range: ok=%v err=%v", ok, err)
	}
	if event.DayString(min) != "2026-03-02" || event.DayString(max) != "2026-03-04" {
		t.Errorf("range = %s to %s", event.DayString(min), event.DayString(max))
	}

	rep, err := r.Report(context.Background(), "2026-03-02", 2)
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	// The timesheet prompt sees enriched commit texts, and enriched
	// texts were written through to the store during pull.
	if len(rep.Slots[0].Events) != 1 {
		t.Fatalf("slot evidence = %+v", rep.Slots[0].Events)
	}
	if got := rep.Slots[0].Events[0].Summary; !strings.HasPrefix(got, "Polished: ") {
		t.Errorf("stored summary = %q, want enriched text", got)
	}
}

func TestPipelineSurvivesTrackerOutage(t *testing.T) {
	gh := fakeGitHub(t)
	defer gh.Close()
	jr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer jr.Close()

	r := newPipelineRun(t, gh.URL, jr.URL, nil)
	ctx := context.Background()

	pulled, err := r.Pull(ctx)
	if err != nil {
		t.Fatalf("Pull must absorb a tracker outage, got %v", err)
	}
	if pulled.CodeEvents != 2 || pulled.TrackerEvents != 0 {
		t.Errorf("counts = %+v", pulled)
	}

	// Without a generator the report is fully deterministic and the
	// tracker day falls back to inference.
	rep, err := r.Report(ctx, "2026-03-02", 4)
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if len(rep.Slots) != 4 {
		t.Fatalf("got %d slots, want 4", len(rep.Slots))
	}
	if !rep.Slots[2].Inferred || !rep.Slots[3].Inferred {
		t.Error("days without evidence must be inferred")
	}
	if rep.Summary == "" {
		t.Error("deterministic summary missing")
	}
}
