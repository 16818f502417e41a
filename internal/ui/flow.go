// Package ui provides the interactive terminal flow: collect the
// person and target, pull activity, show the available range, collect
// the report window, generate. The command behind it prints the
// rendered report once the program exits.
package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jstrand/tally/internal/event"
	"github.com/jstrand/tally/internal/report"
	"github.com/jstrand/tally/internal/run"
)

// Flow states
type flowState int

const (
	stateUsername flowState = iota
	statePulling
	stateStart
	stateDays
	stateGenerating
	stateDone
)

// PullOutcome is what ingestion hands back to the flow.
type PullOutcome struct {
	Result  run.PullResult
	Min     time.Time
	Max     time.Time
	HasData bool
}

// Hooks connect the flow to the real pipelines; tests stub them. Pull
// ingests activity for the collected identifiers, Report synthesizes
// the timesheet over the collected window.
type Hooks struct {
	Pull   func(ctx context.Context, username, repo, project string) (PullOutcome, error)
	Report func(ctx context.Context, start string, days int) (*report.Report, error)
}

type pullDoneMsg struct {
	outcome PullOutcome
	err     error
}

type reportDoneMsg struct {
	report *report.Report
	err    error
}

// Model is the interactive flow.
type Model struct {
	ctx   context.Context
	hooks Hooks

	state flowState
	field int // active input on the identity screen

	username   textinput.Model
	repo       textinput.Model
	project    textinput.Model
	startInput textinput.Model
	daysInput  textinput.Model
	spin       spinner.Model

	defaultDays int
	pull        PullOutcome
	report      *report.Report
	rangeLine   string
	hint        string
	err         error
	aborted     bool
}

// NewFlow creates the interactive flow. defaultDays prefills the day
// count prompt.
func NewFlow(ctx context.Context, hooks Hooks, defaultDays int) Model {
	if defaultDays < 1 {
		defaultDays = 5
	}

	username := textinput.New()
	username.Placeholder = "GitHub username (e.g. alice)"
	username.CharLimit = 60
	username.Width = 44
	username.Focus()

	repo := textinput.New()
	repo.Placeholder = "Repository (owner/name)"
	repo.CharLimit = 120
	repo.Width = 44

	project := textinput.New()
	project.Placeholder = "Jira project key (optional)"
	project.CharLimit = 20
	project.Width = 44

	startInput := textinput.New()
	startInput.Placeholder = "YYYY-MM-DD"
	startInput.CharLimit = 10
	startInput.Width = 16

	daysInput := textinput.New()
	daysInput.CharLimit = 3
	daysInput.Width = 6
	daysInput.SetValue(strconv.Itoa(defaultDays))

	s := spinner.New()
	s.Spinner = spinner.Dot

	return Model{
		ctx:         ctx,
		hooks:       hooks,
		username:    username,
		repo:        repo,
		project:     project,
		startInput:  startInput,
		daysInput:   daysInput,
		spin:        s,
		defaultDays: defaultDays,
	}
}

// Outcome returns the generated report; nil when the flow aborted or
// failed before generation.
func (m Model) Outcome() *report.Report {
	return m.report
}

// Aborted reports whether the user backed out.
func (m Model) Aborted() bool {
	return m.aborted
}

// Err reports a pipeline failure that ended the flow.
func (m Model) Err() error {
	return m.err
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc", "ctrl+c":
			m.aborted = true
			return m, tea.Quit
		}
	}

	switch m.state {
	case stateUsername:
		return m.updateIdentity(msg)
	case statePulling:
		return m.updatePulling(msg)
	case stateStart:
		return m.updateStart(msg)
	case stateDays:
		return m.updateDays(msg)
	case stateGenerating:
		return m.updateGenerating(msg)
	}
	return m, nil
}

// updateIdentity walks the three identity inputs in order.
func (m Model) updateIdentity(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		switch m.field {
		case 0:
			if strings.TrimSpace(m.username.Value()) == "" {
				m.hint = "username is required"
				return m, nil
			}
			m.hint = ""
			m.field = 1
			m.username.Blur()
			m.repo.Focus()
			return m, textinput.Blink
		case 1:
			repo := strings.TrimSpace(m.repo.Value())
			if strings.Count(repo, "/") != 1 || strings.HasPrefix(repo, "/") || strings.HasSuffix(repo, "/") {
				m.hint = "repository must look like owner/name"
				return m, nil
			}
			m.hint = ""
			m.field = 2
			m.repo.Blur()
			m.project.Focus()
			return m, textinput.Blink
		case 2:
			m.hint = ""
			m.project.Blur()
			m.state = statePulling
			return m, tea.Batch(m.spin.Tick, m.pullCmd())
		}
	}

	var cmd tea.Cmd
	switch m.field {
	case 0:
		m.username, cmd = m.username.Update(msg)
	case 1:
		m.repo, cmd = m.repo.Update(msg)
	case 2:
		m.project, cmd = m.project.Update(msg)
	}
	return m, cmd
}

func (m Model) updatePulling(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case pullDoneMsg:
		if msg.err != nil {
			m.err = msg.err
			m.state = stateDone
			return m, tea.Quit
		}
		m.pull = msg.outcome
		m.rangeLine = rangeLine(msg.outcome)
		m.startInput.SetValue(suggestStart(msg.outcome, m.defaultDays))
		m.startInput.Focus()
		m.state = stateStart
		return m, textinput.Blink

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateStart(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		if _, err := event.ParseDay(strings.TrimSpace(m.startInput.Value())); err != nil {
			m.hint = "start date must be YYYY-MM-DD"
			return m, nil
		}
		m.hint = ""
		m.startInput.Blur()
		m.daysInput.Focus()
		m.state = stateDays
		return m, textinput.Blink
	}

	var cmd tea.Cmd
	m.startInput, cmd = m.startInput.Update(msg)
	return m, cmd
}

func (m Model) updateDays(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		days, err := strconv.Atoi(strings.TrimSpace(m.daysInput.Value()))
		if err != nil || days < 1 {
			m.hint = "day count must be a positive number"
			return m, nil
		}
		m.hint = ""
		m.daysInput.Blur()
		m.state = stateGenerating
		return m, tea.Batch(m.spin.Tick, m.reportCmd(strings.TrimSpace(m.startInput.Value()), days))
	}

	var cmd tea.Cmd
	m.daysInput, cmd = m.daysInput.Update(msg)
	return m, cmd
}

func (m Model) updateGenerating(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case reportDoneMsg:
		m.report = msg.report
		m.err = msg.err
		m.state = stateDone
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) pullCmd() tea.Cmd {
	ctx := m.ctx
	hooks := m.hooks
	username := strings.TrimSpace(m.username.Value())
	repo := strings.TrimSpace(m.repo.Value())
	project := strings.TrimSpace(m.project.Value())
	return func() tea.Msg {
		outcome, err := hooks.Pull(ctx, username, repo, project)
		return pullDoneMsg{outcome: outcome, err: err}
	}
}

func (m Model) reportCmd(start string, days int) tea.Cmd {
	ctx := m.ctx
	hooks := m.hooks
	return func() tea.Msg {
		rep, err := hooks.Report(ctx, start, days)
		return reportDoneMsg{report: rep, err: err}
	}
}

// View renders the flow
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(Title.Render("tally"))
	b.WriteString(Subtitle.Render("  activity → timesheet"))
	b.WriteString("\n\n")

	switch m.state {
	case stateUsername:
		switch m.field {
		case 0:
			b.WriteString(Subtitle.Render("Step 1/3: whose activity?"))
			b.WriteString("\n\n" + m.username.View())
		case 1:
			b.WriteString(Subtitle.Render("Step 2/3: which repository?"))
			b.WriteString("\n\n" + m.repo.View())
		case 2:
			b.WriteString(Subtitle.Render("Step 3/3: Jira project key (enter to skip)"))
			b.WriteString("\n\n" + m.project.View())
		}
		b.WriteString("\n\n" + Help.Render("[enter] next · [esc] quit"))

	case statePulling:
		fmt.Fprintf(&b, "%s Pulling activity for %s in %s...",
			m.spin.View(), m.username.Value(), m.repo.Value())

	case stateStart:
		b.WriteString(RangeInfo.Render(m.rangeLine))
		b.WriteString("\n" + Subtitle.Render(pullStats(m.pull.Result)))
		b.WriteString("\n\n" + Subtitle.Render("Report start date:"))
		b.WriteString("\n" + m.startInput.View())
		b.WriteString("\n\n" + Help.Render("[enter] next · [esc] quit"))

	case stateDays:
		b.WriteString(RangeInfo.Render(m.rangeLine))
		b.WriteString("\n\n" + Subtitle.Render("How many days?"))
		b.WriteString("\n" + m.daysInput.View())
		b.WriteString("\n\n" + Help.Render("[enter] generate · [esc] quit"))

	case stateGenerating:
		fmt.Fprintf(&b, "%s Generating the timesheet...", m.spin.View())

	case stateDone:
		if m.err != nil {
			b.WriteString(ErrorText.Render("Failed: " + m.err.Error()))
		} else {
			b.WriteString(RangeInfo.Render("Report ready."))
		}
	}

	if m.hint != "" {
		b.WriteString("\n" + ErrorText.Render(m.hint))
	}
	b.WriteString("\n")
	return b.String()
}

// rangeLine describes the stored activity span.
func rangeLine(o PullOutcome) string {
	if !o.HasData {
		return "No stored activity found; the report will be fully inferred."
	}
	return fmt.Sprintf("Activity available from %s to %s.",
		event.DayString(o.Min), event.DayString(o.Max))
}

// pullStats summarizes the ingestion pass for display.
func pullStats(r run.PullResult) string {
	s := fmt.Sprintf("Pulled %d commit events across %d branches and %d tracker events.",
		r.CodeEvents, r.Branches, r.TrackerEvents)
	if r.Skipped > 0 {
		s += fmt.Sprintf(" (%d branches skipped)", r.Skipped)
	}
	return s
}

// suggestStart proposes the latest window that still ends inside the
// stored activity.
func suggestStart(o PullOutcome, days int) string {
	end := o.Max
	if !o.HasData || end.IsZero() {
		end = time.Now()
	}
	return event.DayString(end.AddDate(0, 0, -(days - 1)))
}
