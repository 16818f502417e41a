package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jstrand/tally/internal/run"
)

func runReport(ctx context.Context) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	user := fs.String("user", "", "GitHub username (required)")
	repoFlag := fs.String("repo", "", "Repository as owner/name (required)")
	project := fs.String("project", "", "Jira project key")
	start := fs.String("start", "", "Window start date, YYYY-MM-DD (required)")
	days := fs.Int("days", 0, "Days in the window (default from config)")
	out := fs.String("out", "", "Output path (default <user>_<owner>_<repo>_report.md)")
	policy := fs.String("policy", "", "Inference policy for days without activity")
	plain := fs.Bool("plain", false, "Print raw markdown instead of rendering")
	fs.Parse(os.Args[1:])

	requireFlag(*user, "-user")
	requireFlag(*repoFlag, "-repo")
	requireFlag(*start, "-start")
	owner, repo := splitRepo(*repoFlag)

	cfg := loadConfig()
	if *policy != "" {
		cfg.Report.InferencePolicy = *policy
	}
	if *days < 1 {
		*days = cfg.Report.DefaultDays
	}

	opts, err := assemble(cfg, *user, owner, repo, *project, 0)
	if err != nil {
		fatal("%v", err)
	}
	defer opts.Store.Close()

	r := run.New(opts)
	rep, err := r.Report(ctx, *start, *days)
	if err != nil {
		fatal("report failed: %v", err)
	}

	md := rep.Markdown()
	path := *out
	if path == "" {
		path = rep.Filename()
	}
	if err := os.WriteFile(path, []byte(md), 0644); err != nil {
		fatal("write report: %v", err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", path)

	if *plain {
		fmt.Print(md)
		return
	}
	fmt.Print(renderMarkdown(md))
}
