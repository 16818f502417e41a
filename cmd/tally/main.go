// Command tally turns a person's GitHub and Jira activity into a
// day-by-day timesheet.
//
// Usage:
//
//	tally                   Interactive flow (pull, then report)
//	tally pull              Ingest activity into the local store
//	tally report            Generate a timesheet from stored activity
//	tally range             Show the available activity date range
//	tally events            Dump stored events
//	tally stats             Store statistics and last run
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/jstrand/tally/internal/logging"
)

const usage = `tally — turn GitHub and Jira activity into a timesheet

Usage:
  tally [command] [flags]

Running without a command starts the interactive flow.

Commands:
  pull    -user <name> -repo <owner/name> [-project KEY] [-lookback N]
  report  -user <name> -repo <owner/name> [-project KEY] -start YYYY-MM-DD
          [-days N] [-out FILE] [-policy NAME] [-plain]
  range   -user <name> -repo <owner/name>
  events  -user <name> -repo <owner/name> [-start D] [-end D] [-source code|tracker]
  stats   -user <name> -repo <owner/name>

Environment:
  GITHUB_TOKEN     GitHub API token (without it, only the public commit feed)
  JIRA_BASE_URL    Jira site, e.g. https://acme.atlassian.net
  JIRA_EMAIL       Jira account email
  JIRA_API_TOKEN   Jira API token
  TALLY_VERBOSE    Mirror logs to stderr when set

Credentials may also live in ~/.tally/config.json or a local .env file.
Run 'tally <command> -h' for command-specific help.
`

func main() {
	// A local .env is optional; config also reads the environment.
	_ = godotenv.Load()

	if err := logging.Init(os.Getenv("TALLY_VERBOSE") != ""); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	defer logging.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		runInteractive(ctx)
		return
	}

	cmd := os.Args[1]
	// Strip the program name + subcommand so flag sets see only their flags
	os.Args = os.Args[1:]

	switch cmd {
	case "pull":
		runPull(ctx)
	case "report":
		runReport(ctx)
	case "range":
		runRange()
	case "events":
		runEvents()
	case "stats":
		runStats()
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "tally: unknown command %q\n\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}
}
