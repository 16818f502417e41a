package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jstrand/tally/internal/event"
	"github.com/jstrand/tally/internal/timeline"
)

func runEvents() {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	user := fs.String("user", "", "GitHub username (required)")
	repoFlag := fs.String("repo", "", "Repository as owner/name (required)")
	start := fs.String("start", "", "First day, YYYY-MM-DD")
	end := fs.String("end", "", "Last day, YYYY-MM-DD (defaults to -start)")
	source := fs.String("source", "", "Restrict to one source: code or tracker")
	fs.Parse(os.Args[1:])

	requireFlag(*user, "-user")
	requireFlag(*repoFlag, "-repo")
	owner, repo := splitRepo(*repoFlag)

	st := openStore(*user, owner, repo)
	defer st.Close()

	var events []event.Event
	var err error
	if *start != "" {
		from, perr := event.ParseDay(*start)
		if perr != nil {
			fatal("invalid -start: %v", perr)
		}
		to := from
		if *end != "" {
			if to, perr = event.ParseDay(*end); perr != nil {
				fatal("invalid -end: %v", perr)
			}
		}
		events, err = st.EventsInRange(from, to)
	} else {
		var code, tracker []event.Event
		if code, err = st.EventsBySource(event.SourceCode); err == nil {
			tracker, err = st.EventsBySource(event.SourceTracker)
		}
		events = timeline.Merge(code, tracker)
	}
	if err != nil {
		fatal("read events: %v", err)
	}

	shown := 0
	for _, e := range events {
		if *source != "" && string(e.Source) != *source {
			continue
		}
		line := fmt.Sprintf("%s  %-7s  %-18s  %s",
			event.DayString(e.OccurredOn),
			e.Source,
			truncate(e.IdentityKey, 18),
			truncate(firstLine(e.Text()), 70))
		if e.Hours > 0 {
			line += fmt.Sprintf("  (%.1fh)", e.Hours)
		}
		fmt.Println(line)
		shown++
	}
	fmt.Printf("\n%d events\n", shown)
}
