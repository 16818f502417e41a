package jira

import (
	"context"
	"fmt"

	"github.com/jstrand/tally/internal/dedup"
	"github.com/jstrand/tally/internal/event"
	"github.com/jstrand/tally/internal/logging"
)

// Fetcher aggregates the authenticated person's tracker activity for
// one project. Identity rides on the credential: the search JQL scopes
// issues to the current user server-side, so no author matching
// happens here.
type Fetcher struct {
	client   *Client
	project  string
	lookback int
}

// Result is what one aggregation pass over the tracker produced.
type Result struct {
	// Events are worklog events plus zero-hour events for issues that
	// carry no worklogs.
	Events []event.Event

	// Issues is how many issues the search returned.
	Issues int
}

// NewFetcher creates a fetcher for one project key.
func NewFetcher(client *Client, project string, lookbackDays int) *Fetcher {
	if lookbackDays < 1 {
		lookbackDays = 30
	}
	return &Fetcher{client: client, project: project, lookback: lookbackDays}
}

func (f *Fetcher) Name() string {
	return "jira:" + f.project
}

func (f *Fetcher) Kind() event.Source {
	return event.SourceTracker
}

// Fetch collects the person's tracker events. A missing project key or
// missing credentials surface as ErrNoCredentials, which callers absorb
// as an empty source. A failed worklog lookup degrades that issue to a
// zero-hour event instead of aborting the fetch.
func (f *Fetcher) Fetch(ctx context.Context, seen *dedup.Set) (Result, error) {
	if f.project == "" || !f.client.Configured() {
		return Result{}, ErrNoCredentials
	}

	issues, err := f.client.Search(ctx, f.project, f.lookback)
	if err != nil {
		return Result{}, fmt.Errorf("search issues: %w", err)
	}

	var events []event.Event
	for _, issue := range issues {
		worklogs, err := f.client.Worklogs(ctx, issue.Key)
		if err != nil {
			// The issue itself is still evidence.
			logging.Warn("worklog fetch failed, keeping issue only",
				"issue", issue.Key, "error", err)
			worklogs = nil
		}
		if len(worklogs) == 0 {
			if e, ok := issueEvent(issue); ok {
				events = append(events, e)
			}
			continue
		}
		for _, w := range worklogs {
			if e, ok := worklogEvent(issue, w); ok {
				events = append(events, e)
			}
		}
	}

	events = seen.Filter(events)

	logging.Info("jira fetch complete",
		"project", f.project, "issues", len(issues), "events", len(events))
	return Result{Events: events, Issues: len(issues)}, nil
}

// worklogEvent maps one worklog to an event dated by its start day.
func worklogEvent(issue Issue, w Worklog) (event.Event, bool) {
	if w.Started.IsZero() {
		logging.Debug("discarding worklog without a start time",
			"issue", issue.Key, "worklog", w.ID)
		return event.Event{}, false
	}
	raw := issue.Key + ": " + issue.Summary
	if w.Comment != "" {
		raw += " (" + w.Comment + ")"
	}
	return event.Event{
		Source:        event.SourceTracker,
		OccurredOn:    event.DayOf(w.Started),
		IdentityKey:   issue.Key + "/" + w.ID,
		OriginContext: issue.Key,
		Author:        w.Author,
		RawText:       raw,
		Hours:         w.Hours(),
		Project:       issue.Project,
		TaskKey:       issue.Key,
	}, true
}

// issueEvent maps a worklog-less issue to a zero-hour event on its
// last-updated day, so touched-but-unlogged work still shows up.
func issueEvent(issue Issue) (event.Event, bool) {
	if issue.Updated.IsZero() {
		logging.Debug("discarding issue without an update time", "issue", issue.Key)
		return event.Event{}, false
	}
	raw := issue.Key + ": " + issue.Summary
	if issue.Status != "" {
		raw += " (" + issue.Status + ")"
	}
	return event.Event{
		Source:        event.SourceTracker,
		OccurredOn:    event.DayOf(issue.Updated),
		IdentityKey:   issue.Key,
		OriginContext: issue.Key,
		RawText:       raw,
		Project:       issue.Project,
		TaskKey:       issue.Key,
	}, true
}
