package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jstrand/tally/internal/report"
	"github.com/jstrand/tally/internal/run"
	"github.com/jstrand/tally/internal/store"
	"github.com/jstrand/tally/internal/ui"
)

// runInteractive walks the conversational flow: identity, pull, range,
// window, report. The rendered report prints after the program exits
// so it lands in the scrollback, not the alternate screen.
func runInteractive(ctx context.Context) {
	cfg := loadConfig()

	// The pull hook builds the run once the identifiers are known; the
	// report hook reuses it.
	var (
		activeStore *store.Store
		activeRun   *run.Run
	)
	defer func() {
		if activeStore != nil {
			activeStore.Close()
		}
	}()

	hooks := ui.Hooks{
		Pull: func(ctx context.Context, username, repoFull, project string) (ui.PullOutcome, error) {
			owner, repo, ok := cutRepo(repoFull)
			if !ok {
				return ui.PullOutcome{}, fmt.Errorf("repository must look like owner/name")
			}
			opts, err := assemble(cfg, username, owner, repo, project, 0)
			if err != nil {
				return ui.PullOutcome{}, err
			}
			activeStore = opts.Store
			activeRun = run.New(opts)

			result, err := activeRun.Pull(ctx)
			if err != nil {
				return ui.PullOutcome{}, err
			}
			min, max, hasData, err := activeRun.AvailableRange()
			if err != nil {
				return ui.PullOutcome{}, err
			}
			return ui.PullOutcome{Result: result, Min: min, Max: max, HasData: hasData}, nil
		},
		Report: func(ctx context.Context, start string, days int) (*report.Report, error) {
			if activeRun == nil {
				return nil, fmt.Errorf("nothing pulled yet")
			}
			return activeRun.Report(ctx, start, days)
		},
	}

	p := tea.NewProgram(ui.NewFlow(ctx, hooks, cfg.Report.DefaultDays))
	final, err := p.Run()
	if err != nil {
		fatal("interactive flow failed: %v", err)
	}

	m, ok := final.(ui.Model)
	if !ok {
		return
	}
	if m.Aborted() {
		return
	}
	if m.Err() != nil {
		fatal("%v", m.Err())
	}
	rep := m.Outcome()
	if rep == nil {
		return
	}

	md := rep.Markdown()
	path := rep.Filename()
	if err := os.WriteFile(path, []byte(md), 0644); err != nil {
		fatal("write report: %v", err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", path)
	fmt.Print(renderMarkdown(md))
}
