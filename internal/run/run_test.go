package run

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jstrand/tally/internal/dedup"
	"github.com/jstrand/tally/internal/event"
	"github.com/jstrand/tally/internal/github"
	"github.com/jstrand/tally/internal/jira"
	"github.com/jstrand/tally/internal/store"
)

type stubCode struct {
	result github.Result
	err    error
}

func (s *stubCode) Name() string { return "github:acme/api" }

func (s *stubCode) Fetch(ctx context.Context, seen *dedup.Set) (github.Result, error) {
	if s.err != nil {
		return github.Result{}, s.err
	}
	out := s.result
	out.Events = seen.Filter(s.result.Events)
	return out, nil
}

type stubTracker struct {
	result jira.Result
	err    error
}

func (s *stubTracker) Name() string { return "jira:PAY" }

func (s *stubTracker) Fetch(ctx context.Context, seen *dedup.Set) (jira.Result, error) {
	if s.err != nil {
		return jira.Result{}, s.err
	}
	out := s.result
	out.Events = seen.Filter(s.result.Events)
	return out, nil
}

var _ CodeSource = (*stubCode)(nil)
var _ TrackerSource = (*stubTracker)(nil)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := event.ParseDay(s)
	if err != nil {
		t.Fatalf("bad day %q: %v", s, err)
	}
	return d
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func fixtures(t *testing.T) (*stubCode, *stubTracker) {
	t.Helper()
	code := &stubCode{result: github.Result{
		Events: []event.Event{{
			Source:        event.SourceCode,
			OccurredOn:    day(t, "2026-03-02"),
			IdentityKey:   "aaa111",
			OriginContext: "main",
			Author:        "Alice Smith",
			RawText:       "Fix login redirect loop",
		}},
		Log: []github.Commit{
			{SHA: "aaa111", Message: "Fix login redirect loop", Author: "Alice Smith", Date: day(t, "2026-03-02")},
			{SHA: "bbb222", Message: "Rework queue draining", Author: "Bob Jones", Date: day(t, "2026-03-01")},
		},
		Branches: 2,
		Skipped:  map[string]error{"broken": errors.New("boom")},
	}}
	tracker := &stubTracker{result: jira.Result{
		Events: []event.Event{{
			Source:      event.SourceTracker,
			OccurredOn:  day(t, "2026-03-03"),
			IdentityKey: "PAY-7/101",
			RawText:     "PAY-7: Reconcile settlement batches",
			Hours:       1.0,
			Project:     "Payments",
			TaskKey:     "PAY-7",
		}},
		Issues: 1,
	}}
	return code, tracker
}

func newRun(t *testing.T, st *store.Store, code CodeSource, tracker TrackerSource) *Run {
	t.Helper()
	return New(Options{
		Username:      "alice",
		Owner:         "acme",
		Repo:          "api",
		Project:       "PAY",
		Store:         st,
		Code:          code,
		Tracker:       tracker,
		ContextEvents: 5,
	})
}

func TestPullStoresBothSources(t *testing.T) {
	st := testStore(t)
	code, tracker := fixtures(t)
	r := newRun(t, st, code, tracker)

	result, err := r.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if result.CodeEvents != 1 || result.TrackerEvents != 1 {
		t.Errorf("counts = %+v", result)
	}
	if result.Branches != 2 || result.Skipped != 1 || result.Issues != 1 {
		t.Errorf("source stats = %+v", result)
	}

	stored, err := st.EventsBySource(event.SourceCode)
	if err != nil {
		t.Fatalf("read code events: %v", err)
	}
	if len(stored) != 1 || stored[0].IdentityKey != "aaa111" {
		t.Errorf("stored code events = %+v", stored)
	}

	n, err := st.BranchLogCount()
	if err != nil {
		t.Fatalf("branch log count: %v", err)
	}
	if n != 2 {
		t.Errorf("branch log holds %d, want 2", n)
	}

	last, err := st.LastRun()
	if err != nil {
		t.Fatalf("last run: %v", err)
	}
	if last == nil || last.ID != r.ID {
		t.Fatalf("last run = %+v", last)
	}
	if last.FinishedAt.IsZero() {
		t.Error("run not marked finished")
	}
	if last.CodeEvents != 1 || last.TrackerEvents != 1 {
		t.Errorf("run counts = %+v", last)
	}
}

func TestPullCodeSourceFailure(t *testing.T) {
	st := testStore(t)
	_, tracker := fixtures(t)
	r := newRun(t, st, &stubCode{err: errors.New("api down")}, tracker)

	result, err := r.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull should absorb a source failure, got %v", err)
	}
	if result.CodeEvents != 0 {
		t.Errorf("code events = %d, want 0", result.CodeEvents)
	}
	if result.TrackerEvents != 1 {
		t.Errorf("tracker events = %d, want 1", result.TrackerEvents)
	}
}

func TestPullTrackerNotConfigured(t *testing.T) {
	st := testStore(t)
	code, _ := fixtures(t)
	r := newRun(t, st, code, &stubTracker{err: jira.ErrNoCredentials})

	result, err := r.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull should absorb missing credentials, got %v", err)
	}
	if result.CodeEvents != 1 || result.TrackerEvents != 0 {
		t.Errorf("counts = %+v", result)
	}
}

func TestPullOverwritesPreviousRun(t *testing.T) {
	st := testStore(t)
	code, tracker := fixtures(t)

	if _, err := newRun(t, st, code, tracker).Pull(context.Background()); err != nil {
		t.Fatalf("first pull: %v", err)
	}
	// Second run: the code source now fails, so its partition empties.
	if _, err := newRun(t, st, &stubCode{err: errors.New("api down")}, tracker).Pull(context.Background()); err != nil {
		t.Fatalf("second pull: %v", err)
	}

	stored, err := st.EventsBySource(event.SourceCode)
	if err != nil {
		t.Fatalf("read code events: %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("stale code events survived: %+v", stored)
	}
}

func TestReportPipeline(t *testing.T) {
	st := testStore(t)
	code, tracker := fixtures(t)
	r := newRun(t, st, code, tracker)
	if _, err := r.Pull(context.Background()); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}

	rep, err := r.Report(context.Background(), "2026-03-02", 3)
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if len(rep.Slots) != 3 {
		t.Fatalf("got %d slots, want 3", len(rep.Slots))
	}
	if rep.Slots[0].Inferred {
		t.Error("2026-03-02 has commit evidence, should not be inferred")
	}
	if rep.Slots[1].Category != "Payments" || rep.Slots[1].Hours != 1.0 {
		t.Errorf("tracker day slot = %+v", rep.Slots[1])
	}
	if !rep.Slots[2].Inferred {
		t.Error("2026-03-04 has no evidence, should be inferred")
	}
	if rep.Summary == "" {
		t.Error("summary missing; deterministic fallback expected without a generator")
	}
	if rep.Repo != "acme/api" || rep.Username != "alice" {
		t.Errorf("report identity = %s / %s", rep.Username, rep.Repo)
	}
}

func TestReportRejectsBadInput(t *testing.T) {
	st := testStore(t)
	code, tracker := fixtures(t)
	r := newRun(t, st, code, tracker)

	if _, err := r.Report(context.Background(), "03/02/2026", 3); err == nil {
		t.Error("expected error for malformed start date")
	}
	if _, err := r.Report(context.Background(), "2026-03-02", 0); err == nil {
		t.Error("expected error for zero day count")
	}
}

func TestAvailableRange(t *testing.T) {
	st := testStore(t)
	code, tracker := fixtures(t)
	r := newRun(t, st, code, tracker)

	if _, _, ok, err := r.AvailableRange(); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}

	if _, err := r.Pull(context.Background()); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	min, max, ok, err := r.AvailableRange()
	if err != nil || !ok {
		t.Fatalf("range after pull: ok=%v err=%v", ok, err)
	}
	if event.DayString(min) != "2026-03-02" || event.DayString(max) != "2026-03-03" {
		t.Errorf("range = %s to %s", event.DayString(min), event.DayString(max))
	}
}
