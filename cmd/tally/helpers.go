package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jstrand/tally/internal/config"
	"github.com/jstrand/tally/internal/github"
	"github.com/jstrand/tally/internal/identity"
	"github.com/jstrand/tally/internal/jira"
	"github.com/jstrand/tally/internal/llm"
	"github.com/jstrand/tally/internal/logging"
	"github.com/jstrand/tally/internal/run"
	"github.com/jstrand/tally/internal/store"
)

// dataDir returns ~/.tally/, creating it if needed.
func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("failed to get home directory: %v", err)
	}
	dir := filepath.Join(home, ".tally")
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}
	return dir
}

// dbPath returns the per-target database path.
func dbPath(username, owner, repo string) string {
	dir := filepath.Join(dataDir(), "data")
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}
	name := fmt.Sprintf("%s_%s_%s.db", sanitize(username), sanitize(owner), sanitize(repo))
	return filepath.Join(dir, name)
}

func sanitize(s string) string {
	return strings.NewReplacer("/", "_", " ", "_").Replace(s)
}

// openStore opens the per-target store or fatals.
func openStore(username, owner, repo string) *store.Store {
	st, err := store.Open(dbPath(username, owner, repo))
	if err != nil {
		fatal("failed to open database: %v", err)
	}
	return st
}

// requireFlag aborts with usage when a required flag is missing.
func requireFlag(value, name string) {
	if strings.TrimSpace(value) == "" {
		fmt.Fprintf(os.Stderr, "error: %s is required\n\n", name)
		fmt.Print(usage)
		os.Exit(1)
	}
}

// cutRepo splits "owner/name"; ok is false for anything else.
func cutRepo(s string) (owner, repo string, ok bool) {
	owner, repo, found := strings.Cut(strings.TrimSpace(s), "/")
	if !found || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", false
	}
	return owner, repo, true
}

// splitRepo is cutRepo with the CLI's abort-on-bad-input behavior.
func splitRepo(s string) (string, string) {
	owner, repo, ok := cutRepo(s)
	if !ok {
		fmt.Fprintln(os.Stderr, "error: -repo must look like owner/name")
		os.Exit(1)
	}
	return owner, repo
}

// assemble wires the real collaborators for one person and target.
// lookback overrides the configured GitHub history depth when positive.
func assemble(cfg *config.Config, username, owner, repo, project string, lookback int) (run.Options, error) {
	st, err := store.Open(dbPath(username, owner, repo))
	if err != nil {
		return run.Options{}, fmt.Errorf("open store: %w", err)
	}

	ghLookback := cfg.GitHub.LookbackDays
	if lookback > 0 {
		ghLookback = lookback
	}

	code := github.NewFetcher(
		github.NewClient(cfg.GitHub.Token),
		github.NewFeedFetcher(),
		identity.New(username),
		owner, repo, ghLookback)

	tracker := jira.NewFetcher(
		jira.NewClient(cfg.Jira.BaseURL, cfg.Jira.Email, cfg.Jira.APIToken),
		project, cfg.Jira.LookbackDays)

	return run.Options{
		Username:      username,
		Owner:         owner,
		Repo:          repo,
		Project:       project,
		Store:         st,
		Code:          code,
		Tracker:       tracker,
		Generator:     pickProvider(cfg),
		Policy:        cfg.Report.InferencePolicy,
		ContextEvents: cfg.Report.ContextEvents,
	}, nil
}

// pickProvider builds the generation manager from config and returns
// the provider to use, or nil when none is available.
func pickProvider(cfg *config.Config) llm.Provider {
	mgr := llm.NewManager()
	if m := cfg.Models.Claude; m.Enabled {
		mgr.Add(llm.NewClaudeProvider(m.APIKey, m.Model))
	}
	if m := cfg.Models.OpenAI; m.Enabled {
		mgr.Add(llm.NewOpenAIProvider(m.APIKey, m.Model))
	}
	if m := cfg.Models.Gemini; m.Enabled {
		mgr.Add(llm.NewGeminiProvider(m.APIKey, m.Model))
	}
	if m := cfg.Models.Grok; m.Enabled {
		mgr.Add(llm.NewGrokProvider(m.APIKey, m.Model))
	}
	if m := cfg.Models.Ollama; m.Enabled {
		mgr.Add(llm.NewOllamaProvider(m.Endpoint, m.Model))
	}
	mgr.SetPreferred(cfg.Models.Preferred)

	p := mgr.Pick()
	if p == nil {
		logging.Warn("no text-generation provider available, output will be deterministic")
	} else {
		logging.Info("text generation ready", "provider", p.Name())
	}
	return p
}

// loadConfig reads the config or fatals.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fatal("failed to load config: %v", err)
	}
	return cfg
}

// renderMarkdown converts markdown to ANSI-styled terminal text,
// falling back to the raw document when rendering fails.
func renderMarkdown(md string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return md
	}
	rendered, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return rendered
}

// fatal prints an error and exits.
func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// truncate shortens a string to max runes, appending "..." if truncated.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// firstLine trims a multi-line text down to its subject line.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
