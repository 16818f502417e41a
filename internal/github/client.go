// Package github ingests commit activity from GitHub. With a token it
// walks every branch through the REST API; without one it falls back
// to the repository's public Atom commit feed.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// perPage is the page size for list endpoints.
const perPage = 100

// maxPages bounds how deep one branch's history is walked.
const maxPages = 10

// Commit is one commit as the API reports it, flattened to what the
// aggregation needs. Login is the linked account and is empty when
// GitHub couldn't associate the commit with a user.
type Commit struct {
	SHA     string
	Message string
	Login   string
	Author  string
	Date    time.Time
}

// Client is a minimal GitHub REST API client. Requests are paced by an
// internal limiter; there are no automatic retries, a failed call is
// reported to the caller as-is.
type Client struct {
	token   string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient creates a client. An empty token is valid and restricts
// callers to the feed-based path.
func NewClient(token string) *Client {
	return &Client{
		token:   token,
		baseURL: "https://api.github.com",
		client:  &http.Client{Timeout: 30 * time.Second},
		// Secondary rate limits bite around 100 requests per minute
		// for unauthenticated traffic; stay well under.
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 5),
	}
}

// SetBaseURL points the client at a different API host. Used by tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

// Authenticated reports whether a token is configured.
func (c *Client) Authenticated() bool {
	return c.token != ""
}

// get performs one API request and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github %s: status %d: %s", path, resp.StatusCode, truncate(string(body), 200))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse %s response: %w", path, err)
	}
	return nil
}

// DefaultBranch returns the repository's default branch name.
func (c *Client) DefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	var result struct {
		DefaultBranch string `json:"default_branch"`
	}
	path := fmt.Sprintf("/repos/%s/%s", owner, repo)
	if err := c.get(ctx, path, nil, &result); err != nil {
		return "", err
	}
	if result.DefaultBranch == "" {
		return "", fmt.Errorf("github %s: no default branch in response", path)
	}
	return result.DefaultBranch, nil
}

// Branches lists every branch name in the repository.
func (c *Client) Branches(ctx context.Context, owner, repo string) ([]string, error) {
	path := fmt.Sprintf("/repos/%s/%s/branches", owner, repo)

	var names []string
	for page := 1; page <= maxPages; page++ {
		query := url.Values{
			"per_page": {fmt.Sprint(perPage)},
			"page":     {fmt.Sprint(page)},
		}
		var result []struct {
			Name string `json:"name"`
		}
		if err := c.get(ctx, path, query, &result); err != nil {
			return nil, err
		}
		for _, b := range result {
			names = append(names, b.Name)
		}
		if len(result) < perPage {
			break
		}
	}
	return names, nil
}

// Commits lists commits reachable from the given branch, newest first,
// back to the since time.
func (c *Client) Commits(ctx context.Context, owner, repo, branch string, since time.Time) ([]Commit, error) {
	path := fmt.Sprintf("/repos/%s/%s/commits", owner, repo)

	var commits []Commit
	for page := 1; page <= maxPages; page++ {
		query := url.Values{
			"sha":      {branch},
			"since":    {since.UTC().Format(time.RFC3339)},
			"per_page": {fmt.Sprint(perPage)},
			"page":     {fmt.Sprint(page)},
		}
		var result []struct {
			SHA    string `json:"sha"`
			Commit struct {
				Message string `json:"message"`
				Author  struct {
					Name string    `json:"name"`
					Date time.Time `json:"date"`
				} `json:"author"`
			} `json:"commit"`
			Author *struct {
				Login string `json:"login"`
			} `json:"author"`
		}
		if err := c.get(ctx, path, query, &result); err != nil {
			return nil, err
		}

		for _, r := range result {
			commit := Commit{
				SHA:     r.SHA,
				Message: r.Commit.Message,
				Author:  r.Commit.Author.Name,
				Date:    r.Commit.Author.Date,
			}
			// Author is null for commits GitHub can't link to an account
			if r.Author != nil {
				commit.Login = r.Author.Login
			}
			commits = append(commits, commit)
		}
		if len(result) < perPage {
			break
		}
	}
	return commits, nil
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
// Uses rune-aware slicing to avoid breaking UTF-8 characters.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
