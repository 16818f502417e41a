package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jstrand/tally/internal/event"
)

func runRange() {
	fs := flag.NewFlagSet("range", flag.ExitOnError)
	user := fs.String("user", "", "GitHub username (required)")
	repoFlag := fs.String("repo", "", "Repository as owner/name (required)")
	fs.Parse(os.Args[1:])

	requireFlag(*user, "-user")
	requireFlag(*repoFlag, "-repo")
	owner, repo := splitRepo(*repoFlag)

	st := openStore(*user, owner, repo)
	defer st.Close()

	min, max, ok, err := st.DateRange()
	if err != nil {
		fatal("read range: %v", err)
	}
	if !ok {
		fmt.Println("No stored activity. Run 'tally pull' first.")
		return
	}
	fmt.Printf("Activity from %s to %s\n", event.DayString(min), event.DayString(max))
}
