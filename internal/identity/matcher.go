// Package identity decides whether raw activity records belong to the
// target person. Commit-author strings rarely match account handles
// exactly, so matching is deliberately loose.
package identity

import "strings"

// Matcher matches raw author identifiers against one target username.
//
// Matching is two-tier: exact case-insensitive comparison against the
// canonical account login when one is present, then a case-insensitive
// substring test in either direction against the free-text author name.
// The bidirectional test accepts "alice" for "Alice Smith" and
// "Alice Smith" for "alice"; the occasional false positive is the
// accepted cost of catching first-name-only commits and handles embedded
// in full names.
type Matcher struct {
	username string
}

// New creates a Matcher for the given target username.
func New(username string) Matcher {
	return Matcher{username: strings.TrimSpace(username)}
}

// MatchAccount reports whether login equals the target username,
// ignoring case. Empty logins never match.
func (m Matcher) MatchAccount(login string) bool {
	if m.username == "" || login == "" {
		return false
	}
	return strings.EqualFold(login, m.username)
}

// MatchName reports whether the free-text author name and the target
// username contain each other, ignoring case. Empty names never match.
func (m Matcher) MatchName(name string) bool {
	if m.username == "" {
		return false
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	lowerName := strings.ToLower(name)
	lowerUser := strings.ToLower(m.username)
	return strings.Contains(lowerName, lowerUser) || strings.Contains(lowerUser, lowerName)
}

// Match applies both tiers: account login first, author name as fallback.
func (m Matcher) Match(login, name string) bool {
	return m.MatchAccount(login) || m.MatchName(name)
}
