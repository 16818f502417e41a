// Package llm wraps the text-generation services used to turn raw
// activity evidence into timesheet prose. Providers are interchangeable
// behind one interface; which one serves a run is decided once, up
// front, and never switched mid-run.
package llm

import (
	"context"
)

// Provider is the interface for text-generation providers
type Provider interface {
	// Name returns the provider name (e.g., "claude", "openai")
	Name() string

	// Available returns true if the provider is configured and ready
	Available() bool

	// Generate sends a prompt and returns the response
	Generate(ctx context.Context, req Request) (Response, error)
}

// Request is a prompt request to a provider
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64 // 0 means provider default
}

// Response is the provider's response
type Response struct {
	Content     string
	Model       string
	RawResponse string // The raw API response body for logging/debugging
}

// Manager holds providers in registration order with an optional
// preferred name. Pick selects one provider for a whole run; a
// provider that errors mid-run is not swapped for another — callers
// absorb the failure by falling back to raw, unenriched text.
type Manager struct {
	providers []Provider
	preferred string
}

// NewManager creates an empty provider manager
func NewManager() *Manager {
	return &Manager{
		providers: make([]Provider, 0),
	}
}

// Add registers a provider
func (m *Manager) Add(p Provider) {
	m.providers = append(m.providers, p)
}

// SetPreferred sets the preferred provider by name
func (m *Manager) SetPreferred(name string) {
	m.preferred = name
}

// Pick returns the first available provider, preferring the preferred
// one, or nil when nothing is configured.
func (m *Manager) Pick() Provider {
	if m.preferred != "" {
		for _, p := range m.providers {
			if p.Name() == m.preferred && p.Available() {
				return p
			}
		}
	}

	for _, p := range m.providers {
		if p.Available() {
			return p
		}
	}

	return nil
}

// ListAvailable returns names of all available providers
func (m *Manager) ListAvailable() []string {
	var names []string
	for _, p := range m.providers {
		if p.Available() {
			names = append(names, p.Name())
		}
	}
	return names
}
