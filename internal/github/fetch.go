package github

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jstrand/tally/internal/dedup"
	"github.com/jstrand/tally/internal/event"
	"github.com/jstrand/tally/internal/identity"
	"github.com/jstrand/tally/internal/logging"
)

// maxConcurrentBranches limits parallel branch traversals.
const maxConcurrentBranches = 4

// Fetcher aggregates one person's commits across a repository. Each
// branch is an independent discovery path; commits reachable from more
// than one branch collapse to a single event, keeping the branch that
// surfaced them first as origin context.
type Fetcher struct {
	client   *Client
	feed     *FeedFetcher
	matcher  identity.Matcher
	owner    string
	repo     string
	lookback time.Duration
}

// Result is what one aggregation pass over the repository produced.
type Result struct {
	// Events are the target person's deduplicated commits.
	Events []event.Event

	// Log holds the default branch's recent commits from every author,
	// kept as repository-wide reference material.
	Log []Commit

	// Branches is how many discovery paths were traversed.
	Branches int

	// Skipped maps branches whose traversal failed to the cause. The
	// rest of the result is still valid.
	Skipped map[string]error
}

// NewFetcher creates a fetcher for one user and repository.
func NewFetcher(client *Client, feed *FeedFetcher, matcher identity.Matcher, owner, repo string, lookbackDays int) *Fetcher {
	if lookbackDays < 1 {
		lookbackDays = 30
	}
	return &Fetcher{
		client:   client,
		feed:     feed,
		matcher:  matcher,
		owner:    owner,
		repo:     repo,
		lookback: time.Duration(lookbackDays) * 24 * time.Hour,
	}
}

func (f *Fetcher) Name() string {
	return "github:" + f.owner + "/" + f.repo
}

func (f *Fetcher) Kind() event.Source {
	return event.SourceCode
}

// Fetch collects the target person's commit events. The seen set is
// owned by the calling run; every discovered commit funnels through it
// exactly once, in one consumer loop.
func (f *Fetcher) Fetch(ctx context.Context, seen *dedup.Set) (Result, error) {
	if f.client.Authenticated() {
		return f.fetchAPI(ctx, seen)
	}
	logging.Info("no GitHub token, using public commit feed",
		"repo", f.owner+"/"+f.repo)
	return f.fetchFeed(ctx, seen)
}

// branchResult is one branch traversal's outcome, posted to the fan-in
// channel.
type branchResult struct {
	branch  string
	commits []Commit
	err     error
}

// fetchAPI walks every branch concurrently and funnels all discovered
// commits through a single consumer that owns the seen set.
func (f *Fetcher) fetchAPI(ctx context.Context, seen *dedup.Set) (Result, error) {
	defaultBranch, err := f.client.DefaultBranch(ctx, f.owner, f.repo)
	if err != nil {
		return Result{}, err
	}

	branches, err := f.client.Branches(ctx, f.owner, f.repo)
	if err != nil {
		// Degraded but usable: the default branch alone still yields
		// the bulk of the history.
		logging.Warn("branch listing failed, walking default branch only",
			"repo", f.owner+"/"+f.repo, "error", err)
		branches = []string{defaultBranch}
	}

	since := time.Now().Add(-f.lookback)

	results := make(chan branchResult, len(branches))
	var g errgroup.Group
	g.SetLimit(maxConcurrentBranches)

	for _, branch := range branches {
		g.Go(func() error {
			if ctx.Err() != nil {
				results <- branchResult{branch: branch, err: ctx.Err()}
				return nil
			}
			commits, err := f.client.Commits(ctx, f.owner, f.repo, branch, since)
			results <- branchResult{branch: branch, commits: commits, err: err}
			return nil // never fail the group - errors reported per-branch
		})
	}

	_ = g.Wait() // All goroutines return nil, but explicit discard for clarity
	close(results)

	// Single consumer: the only writer to the seen set for this source.
	// Branch completion order decides which branch a shared commit is
	// attributed to; that order varies between runs and is acceptable.
	result := Result{Branches: len(branches), Skipped: make(map[string]error)}
	for br := range results {
		if br.err != nil {
			logging.Warn("branch traversal failed",
				"repo", f.owner+"/"+f.repo, "branch", br.branch, "error", br.err)
			result.Skipped[br.branch] = br.err
			continue
		}
		if br.branch == defaultBranch {
			result.Log = br.commits
		}
		result.Events = append(result.Events, f.consume(br.branch, br.commits, seen)...)
	}

	logging.Info("github fetch complete",
		"repo", f.owner+"/"+f.repo,
		"branches", result.Branches,
		"skipped", len(result.Skipped),
		"events", len(result.Events))
	return result, nil
}

// fetchFeed is the tokenless path: the default branch's Atom feed,
// which only reaches the last few commits.
func (f *Fetcher) fetchFeed(ctx context.Context, seen *dedup.Set) (Result, error) {
	commits, err := f.feed.Commits(ctx, f.owner, f.repo, "")
	if err != nil {
		return Result{}, err
	}

	result := Result{Branches: 1, Log: commits}
	result.Events = f.consume("", commits, seen)

	logging.Info("github feed fetch complete",
		"repo", f.owner+"/"+f.repo, "commits", len(commits), "events", len(result.Events))
	return result, nil
}

// consume filters one branch's commits down to the target person's
// novel events. It must only run in the fan-in consumer.
func (f *Fetcher) consume(branch string, commits []Commit, seen *dedup.Set) []event.Event {
	var events []event.Event
	for _, c := range commits {
		if !f.matcher.Match(c.Login, c.Author) {
			continue
		}
		if c.Date.IsZero() {
			logging.Debug("discarding commit without a date", "sha", c.SHA)
			continue
		}
		if !seen.Add(c.SHA) {
			continue
		}
		events = append(events, event.Event{
			Source:        event.SourceCode,
			OccurredOn:    event.DayOf(c.Date),
			IdentityKey:   c.SHA,
			OriginContext: branch,
			Author:        c.Author,
			RawText:       c.Message,
		})
	}
	return events
}
