// Package dedup collapses events discovered through multiple traversal
// paths (one commit reachable from several branches) into one record each.
package dedup

import (
	"sync"

	"github.com/jstrand/tally/internal/event"
)

// Set tracks the identity keys seen during one aggregation run.
//
// A Set belongs to exactly one run: the run creates it, hands it to its
// traversals, and lets it die with the run. It is never package-global
// and never shared across runs.
//
// Thread-safe: Add and Seen may be called from concurrent producers. The
// fetch pipeline still funnels discoveries through a single consumer
// goroutine; the mutex is a second fence, not the design.
type Set struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// New creates an empty seen-set.
func New() *Set {
	return &Set{keys: make(map[string]struct{})}
}

// Add records key and reports whether it was novel. The key is recorded
// immediately, before the caller enriches or stores the event, so a
// duplicate arriving later on another traversal path is dropped no
// matter how slow the rest of the pipeline is.
func (s *Set) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

// Seen reports whether key has been recorded.
func (s *Set) Seen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}

// Len returns the number of recorded keys.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// Filter returns the events whose identity keys are novel, preserving
// input order. The first occurrence of a key wins, so the surviving
// OriginContext is whichever traversal path got there first; re-running
// a fresh Set over already-deduplicated output returns it unchanged.
//
// Traversal order is an upstream concern: if branches are explored in a
// different order next run, a different OriginContext may survive. That
// is accepted, not a defect.
func (s *Set) Filter(events []event.Event) []event.Event {
	kept := make([]event.Event, 0, len(events))
	for _, e := range events {
		if s.Add(e.IdentityKey) {
			kept = append(kept, e)
		}
	}
	return kept
}
