package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jstrand/tally/internal/run"
)

func runPull(ctx context.Context) {
	fs := flag.NewFlagSet("pull", flag.ExitOnError)
	user := fs.String("user", "", "GitHub username whose activity to aggregate (required)")
	repoFlag := fs.String("repo", "", "Repository as owner/name (required)")
	project := fs.String("project", "", "Jira project key")
	lookback := fs.Int("lookback", 0, "Days of history to walk (default from config)")
	fs.Parse(os.Args[1:])

	requireFlag(*user, "-user")
	requireFlag(*repoFlag, "-repo")
	owner, repo := splitRepo(*repoFlag)

	cfg := loadConfig()
	opts, err := assemble(cfg, *user, owner, repo, *project, *lookback)
	if err != nil {
		fatal("%v", err)
	}
	defer opts.Store.Close()

	r := run.New(opts)
	result, err := r.Pull(ctx)
	if err != nil {
		fatal("pull failed: %v", err)
	}

	fmt.Printf("Commit events:     %d (across %d branches)\n", result.CodeEvents, result.Branches)
	if result.Skipped > 0 {
		fmt.Printf("Skipped branches:  %d\n", result.Skipped)
	}
	fmt.Printf("Tracker events:    %d (from %d issues)\n", result.TrackerEvents, result.Issues)

	if min, max, ok, err := r.AvailableRange(); err == nil && ok {
		fmt.Printf("Activity range:    %s to %s\n",
			min.Format("2006-01-02"), max.Format("2006-01-02"))
	}
}
