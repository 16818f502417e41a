package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// FeedFetcher reads a repository's public Atom commit feed. It needs no
// credentials but only covers the most recent commits of one branch, so
// it serves as the tokenless fallback, not the primary path.
type FeedFetcher struct {
	baseURL string
	client  *http.Client
	parser  *gofeed.Parser
}

// NewFeedFetcher creates a feed fetcher against github.com.
func NewFeedFetcher() *FeedFetcher {
	return &FeedFetcher{
		baseURL: "https://github.com",
		client:  &http.Client{Timeout: 30 * time.Second},
		parser:  gofeed.NewParser(),
	}
}

// SetBaseURL points the fetcher at a different host. Used by tests.
func (f *FeedFetcher) SetBaseURL(u string) {
	f.baseURL = u
}

// Commits fetches and parses the commit feed for a branch. An empty
// branch name selects the repository's default branch feed.
func (f *FeedFetcher) Commits(ctx context.Context, owner, repo, branch string) ([]Commit, error) {
	u := fmt.Sprintf("%s/%s/%s/commits.atom", f.baseURL, owner, repo)
	if branch != "" {
		u = fmt.Sprintf("%s/%s/%s/commits/%s.atom", f.baseURL, owner, repo, branch)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "tally/0.1 (+https://github.com/jstrand/tally)")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch commit feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("commit feed: HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	feed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse commit feed: %w", err)
	}

	commits := make([]Commit, 0, len(feed.Items))
	for _, item := range feed.Items {
		sha := shaFromEntryID(item.GUID)
		if sha == "" {
			continue
		}
		commit := Commit{
			SHA:     sha,
			Message: strings.TrimSpace(item.Title),
		}
		if item.Author != nil {
			commit.Author = item.Author.Name
		}
		if item.UpdatedParsed != nil {
			commit.Date = *item.UpdatedParsed
		} else if item.PublishedParsed != nil {
			commit.Date = *item.PublishedParsed
		}
		commits = append(commits, commit)
	}
	return commits, nil
}

// shaFromEntryID extracts the commit hash from a feed entry ID of the
// form "tag:github.com,2008:Grit::Commit/<sha>".
func shaFromEntryID(id string) string {
	i := strings.LastIndex(id, "/")
	if i < 0 || i == len(id)-1 {
		return ""
	}
	return id[i+1:]
}
