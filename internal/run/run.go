// Package run owns one aggregation run: the pull pipeline that ingests
// and stores activity, and the report pipeline that reads it back and
// synthesizes a timesheet. The dedup seen-set is created here and dies
// with the run; nothing package-global survives between runs.
package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jstrand/tally/internal/allocate"
	"github.com/jstrand/tally/internal/dedup"
	"github.com/jstrand/tally/internal/event"
	"github.com/jstrand/tally/internal/github"
	"github.com/jstrand/tally/internal/jira"
	"github.com/jstrand/tally/internal/llm"
	"github.com/jstrand/tally/internal/logging"
	"github.com/jstrand/tally/internal/narrate"
	"github.com/jstrand/tally/internal/report"
	"github.com/jstrand/tally/internal/store"
	"github.com/jstrand/tally/internal/timeline"
)

// CodeSource feeds commit activity into a run.
type CodeSource interface {
	Name() string
	Fetch(ctx context.Context, seen *dedup.Set) (github.Result, error)
}

// TrackerSource feeds issue-tracker activity into a run.
type TrackerSource interface {
	Name() string
	Fetch(ctx context.Context, seen *dedup.Set) (jira.Result, error)
}

var _ CodeSource = (*github.Fetcher)(nil)
var _ TrackerSource = (*jira.Fetcher)(nil)

// Options carries the collaborators and knobs a run needs.
type Options struct {
	Username string
	Owner    string
	Repo     string
	Project  string

	Store   *store.Store
	Code    CodeSource
	Tracker TrackerSource

	// Generator may be nil; the run then produces deterministic text.
	Generator llm.Provider

	Policy        string
	ContextEvents int
}

// Run is one aggregation run over a person and target.
type Run struct {
	ID string

	username string
	owner    string
	repo     string
	project  string

	store    *store.Store
	seen     *dedup.Set
	code     CodeSource
	tracker  TrackerSource
	gen      llm.Provider
	policy   string
	contextN int
}

// New creates a run with a fresh identity-key set.
func New(opts Options) *Run {
	return &Run{
		ID:       uuid.NewString(),
		username: opts.Username,
		owner:    opts.Owner,
		repo:     opts.Repo,
		project:  opts.Project,
		store:    opts.Store,
		seen:     dedup.New(),
		code:     opts.Code,
		tracker:  opts.Tracker,
		gen:      opts.Generator,
		policy:   opts.Policy,
		contextN: opts.ContextEvents,
	}
}

// PullResult summarizes one ingestion pass.
type PullResult struct {
	CodeEvents    int
	TrackerEvents int
	Branches      int
	Skipped       int
	Issues        int
}

// Pull fetches both sources, enriches commit texts, and replaces the
// stored event set with this run's findings. Source failures degrade
// that source to zero events; store failures are terminal.
func (r *Run) Pull(ctx context.Context) (PullResult, error) {
	if err := r.store.RecordRun(r.ID, r.username, r.owner+"/"+r.repo, r.project); err != nil {
		return PullResult{}, fmt.Errorf("record run: %w", err)
	}

	var (
		codeRes    github.Result
		trackerRes jira.Result
	)

	var g errgroup.Group
	g.SetLimit(2)
	if r.code != nil {
		g.Go(func() error {
			res, err := r.code.Fetch(ctx, r.seen)
			if err != nil {
				logging.Warn("code source failed, continuing without it",
					"source", r.code.Name(), "error", err)
				return nil
			}
			codeRes = res
			return nil // source errors absorbed as empty, never fatal
		})
	}
	if r.tracker != nil {
		g.Go(func() error {
			res, err := r.tracker.Fetch(ctx, r.seen)
			if err != nil {
				if errors.Is(err, jira.ErrNoCredentials) {
					logging.Info("tracker source not configured, skipping",
						"source", r.tracker.Name())
				} else {
					logging.Warn("tracker source failed, continuing without it",
						"source", r.tracker.Name(), "error", err)
				}
				return nil
			}
			trackerRes = res
			return nil
		})
	}
	_ = g.Wait() // All goroutines return nil, but explicit discard for clarity

	codeRes.Events = narrate.EnrichSummaries(ctx, r.gen, codeRes.Events)

	codeCount, err := r.store.ReplaceSource(event.SourceCode, codeRes.Events)
	if err != nil {
		return PullResult{}, fmt.Errorf("store code events: %w", err)
	}
	trackerCount, err := r.store.ReplaceSource(event.SourceTracker, trackerRes.Events)
	if err != nil {
		return PullResult{}, fmt.Errorf("store tracker events: %w", err)
	}

	entries := make([]store.LogEntry, 0, len(codeRes.Log))
	for _, c := range codeRes.Log {
		entries = append(entries, store.LogEntry{
			SHA:        c.SHA,
			OccurredOn: c.Date,
			Author:     c.Author,
			Message:    c.Message,
		})
	}
	if _, err := r.store.ReplaceBranchLog(entries); err != nil {
		return PullResult{}, fmt.Errorf("store branch log: %w", err)
	}

	if err := r.store.FinishRun(r.ID, codeCount, trackerCount); err != nil {
		return PullResult{}, fmt.Errorf("finish run: %w", err)
	}

	logging.Info("pull complete",
		"run", r.ID,
		"code_events", codeCount,
		"tracker_events", trackerCount,
		"branches", codeRes.Branches,
		"skipped_branches", len(codeRes.Skipped))

	return PullResult{
		CodeEvents:    codeCount,
		TrackerEvents: trackerCount,
		Branches:      codeRes.Branches,
		Skipped:       len(codeRes.Skipped),
		Issues:        trackerRes.Issues,
	}, nil
}

// Report reads the stored events back and synthesizes a timesheet for
// the window starting at startStr. Bad input and store failures are
// terminal; an absent generator yields deterministic text.
func (r *Run) Report(ctx context.Context, startStr string, days int) (*report.Report, error) {
	start, err := event.ParseDay(startStr)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", startStr, err)
	}
	w, err := event.NewWindow(start, days)
	if err != nil {
		return nil, err
	}

	code, err := r.store.EventsBySource(event.SourceCode)
	if err != nil {
		return nil, fmt.Errorf("read code events: %w", err)
	}
	tracker, err := r.store.EventsBySource(event.SourceTracker)
	if err != nil {
		return nil, fmt.Errorf("read tracker events: %w", err)
	}

	view := timeline.BuildView(timeline.Merge(code, tracker), w, r.contextN)
	slots := allocate.Build(view, r.policy)
	rows, summary := narrate.Timesheet(ctx, r.gen, view, slots, r.policy)

	logging.Info("report generated",
		"run", r.ID,
		"window", w.String(),
		"events_in_window", len(view.Events),
		"context_events", len(view.Context))

	return &report.Report{
		Username:    r.username,
		Repo:        r.owner + "/" + r.repo,
		Project:     r.project,
		Window:      w,
		Slots:       rows,
		Summary:     summary,
		Context:     view.Context,
		GeneratedAt: time.Now(),
	}, nil
}

// AvailableRange reports the earliest and latest stored activity days.
// ok is false when the store holds no events.
func (r *Run) AvailableRange() (min, max time.Time, ok bool, err error) {
	return r.store.DateRange()
}
