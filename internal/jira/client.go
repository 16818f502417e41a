// Package jira ingests tracker activity: recently touched issues in a
// project and the worklogs recorded on them.
package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrNoCredentials reports that the Jira connection is not configured.
// Callers treat it as "no tracker data", not as a failure.
var ErrNoCredentials = errors.New("jira credentials not configured")

// jiraTimeLayout is the timestamp format the REST API emits.
const jiraTimeLayout = "2006-01-02T15:04:05.000-0700"

// Issue is one tracked issue, flattened to what the aggregation needs.
type Issue struct {
	Key     string
	Summary string
	Status  string
	Project string
	Updated time.Time
}

// Worklog is one logged work entry on an issue.
type Worklog struct {
	ID      string
	Author  string
	Comment string
	Started time.Time
	Seconds int
}

// Hours converts the logged seconds to fractional hours.
func (w Worklog) Hours() float64 {
	return float64(w.Seconds) / 3600
}

// Client is a minimal Jira REST v2 client using basic auth. Requests
// are paced by an internal limiter; there are no automatic retries, a
// failed call is reported to the caller as-is.
type Client struct {
	baseURL string
	email   string
	token   string
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient creates a client for the given Jira site. Any of the three
// parameters may be empty; Configured reports whether the client is
// usable.
func NewClient(baseURL, email, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		email:   email,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 3),
	}
}

// Configured reports whether base URL and credentials are all present.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.email != "" && c.token != ""
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
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.email, c.token)

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
		return fmt.Errorf("jira %s: status %d: %s", path, resp.StatusCode, truncate(string(body), 200))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse %s response: %w", path, err)
	}
	return nil
}

// Search lists issues in the project that the authenticated user was
// recently involved with, newest first. Involvement means assignment
// or logged work; the JQL keeps the identity question on the server.
func (c *Client) Search(ctx context.Context, project string, lookbackDays int) ([]Issue, error) {
	jql := fmt.Sprintf(
		"project = %s AND (assignee = currentUser() OR worklogAuthor = currentUser()) AND updated >= -%dd ORDER BY updated DESC",
		project, lookbackDays)

	query := url.Values{
		"jql":        {jql},
		"maxResults": {"50"},
		"fields":     {"summary,status,project,updated"},
	}

	var result struct {
		Issues []struct {
			Key    string `json:"key"`
			Fields struct {
				Summary string `json:"summary"`
				Status  struct {
					Name string `json:"name"`
				} `json:"status"`
				Project struct {
					Name string `json:"name"`
				} `json:"project"`
				Updated string `json:"updated"`
			} `json:"fields"`
		} `json:"issues"`
	}
	if err := c.get(ctx, "/rest/api/2/search", query, &result); err != nil {
		return nil, err
	}

	issues := make([]Issue, 0, len(result.Issues))
	for _, raw := range result.Issues {
		issue := Issue{
			Key:     raw.Key,
			Summary: raw.Fields.Summary,
			Status:  raw.Fields.Status.Name,
			Project: raw.Fields.Project.Name,
		}
		if t, err := parseTime(raw.Fields.Updated); err == nil {
			issue.Updated = t
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

// Worklogs lists every work entry recorded on an issue.
func (c *Client) Worklogs(ctx context.Context, issueKey string) ([]Worklog, error) {
	var result struct {
		Worklogs []struct {
			ID     string `json:"id"`
			Author struct {
				DisplayName string `json:"displayName"`
			} `json:"author"`
			Comment          string `json:"comment"`
			Started          string `json:"started"`
			TimeSpentSeconds int    `json:"timeSpentSeconds"`
		} `json:"worklogs"`
	}
	path := "/rest/api/2/issue/" + url.PathEscape(issueKey) + "/worklog"
	if err := c.get(ctx, path, nil, &result); err != nil {
		return nil, err
	}

	worklogs := make([]Worklog, 0, len(result.Worklogs))
	for _, raw := range result.Worklogs {
		w := Worklog{
			ID:      raw.ID,
			Author:  raw.Author.DisplayName,
			Comment: raw.Comment,
			Seconds: raw.TimeSpentSeconds,
		}
		if t, err := parseTime(raw.Started); err == nil {
			w.Started = t
		}
		worklogs = append(worklogs, w)
	}
	return worklogs, nil
}

// parseTime accepts Jira's millisecond-offset layout with RFC3339 as a
// fallback for proxies that rewrite timestamps.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(jiraTimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
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
