package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jstrand/tally/internal/event"
)

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	user := fs.String("user", "", "GitHub username (required)")
	repoFlag := fs.String("repo", "", "Repository as owner/name (required)")
	fs.Parse(os.Args[1:])

	requireFlag(*user, "-user")
	requireFlag(*repoFlag, "-repo")
	owner, repo := splitRepo(*repoFlag)

	st := openStore(*user, owner, repo)
	defer st.Close()

	stats, err := st.Stats()
	if err != nil {
		fatal("read stats: %v", err)
	}

	fmt.Printf("Code events:        %d\n", stats.CodeEvents)
	fmt.Printf("Tracker events:     %d\n", stats.TrackerEvents)
	fmt.Printf("Branch log commits: %d\n", stats.BranchCommits)
	if stats.HasData {
		fmt.Printf("Activity range:     %s to %s\n",
			event.DayString(stats.Earliest), event.DayString(stats.Latest))
	} else {
		fmt.Println("Activity range:     no stored activity")
	}

	last, err := st.LastRun()
	if err != nil {
		fatal("read last run: %v", err)
	}
	if last == nil {
		fmt.Println("Last pull:          never")
		return
	}
	fmt.Printf("\nLast pull:          %s\n", last.StartedAt.Format("2006-01-02 15:04:05"))
	if last.FinishedAt.IsZero() {
		fmt.Println("Status:             did not finish")
	} else {
		fmt.Printf("Finished:           %s\n", last.FinishedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Pulled:             %d code, %d tracker\n", last.CodeEvents, last.TrackerEvents)
	}
	if last.Project != "" {
		fmt.Printf("Tracker project:    %s\n", last.Project)
	}
}
