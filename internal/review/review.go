// Package review is the terminal confirm-and-apply screen for a column
// alteration plan.
package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/senomardetritos/sgbd-sqlserver/internal/alter"
	"github.com/senomardetritos/sgbd-sqlserver/internal/engine"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).BorderStyle(lipgloss.DoubleBorder()).BorderBottom(true).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

// ApplyFunc executes the reviewed alteration.
type ApplyFunc func(ctx context.Context) (*engine.AlterOutcome, error)

type phase int

const (
	phaseReviewing phase = iota
	phaseApplying
	phaseDone
)

type appliedMsg struct {
	outcome *engine.AlterOutcome
	err     error
}

// Model shows a plan, waits for confirmation, then applies it.
type Model struct {
	plan         *alter.Plan
	apply        ApplyFunc
	phase        phase
	spinner      spinner.Model
	showInverses bool

	outcome   *engine.AlterOutcome
	err       error
	confirmed bool
	cancelled bool
	width     int
}

// NewModel creates a review model for plan.
func NewModel(plan *alter.Plan, apply ApplyFunc) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		plan:    plan,
		apply:   apply,
		spinner: s,
		width:   100,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if m.phase != phaseReviewing {
			return m, nil
		}
		switch msg.String() {
		case "enter", "y":
			if len(m.plan.Steps) == 0 {
				m.phase = phaseDone
				return m, tea.Quit
			}
			m.confirmed = true
			m.phase = phaseApplying
			return m, tea.Batch(m.spinner.Tick, m.runApply())
		case "q", "n", "esc", "ctrl+c":
			m.cancelled = true
			m.phase = phaseDone
			return m, tea.Quit
		case "i":
			m.showInverses = !m.showInverses
			return m, nil
		}

	case appliedMsg:
		m.outcome = msg.outcome
		m.err = msg.err
		m.phase = phaseDone
		return m, tea.Quit

	case spinner.TickMsg:
		if m.phase == phaseApplying {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m Model) runApply() tea.Cmd {
	apply := m.apply
	return func() tea.Msg {
		out, err := apply(context.Background())
		return appliedMsg{outcome: out, err: err}
	}
}

func (m Model) View() string {
	var b strings.Builder

	target := m.plan.Table + "." + m.plan.Column
	b.WriteString(titleStyle.Render("Alter column " + target))
	b.WriteString("\n\n")

	if m.plan.RenamedFrom != "" {
		b.WriteString(highlightStyle.Render(fmt.Sprintf("  Rename: %s -> %s", m.plan.RenamedFrom, m.plan.Column)))
		b.WriteString("\n\n")
	}

	if len(m.plan.Steps) == 0 {
		b.WriteString(dimStyle.Render("  Nothing to do."))
		b.WriteString("\n")
	}
	for i, step := range m.plan.Steps {
		marker := " "
		if m.outcome != nil && i < m.plan.Executed {
			marker = successStyle.Render("✓")
		}
		b.WriteString(fmt.Sprintf("  %s %d. %-14s %s\n", marker, i+1, step.ID, step.Statement.Text))
		if m.showInverses && step.Inverse != nil {
			b.WriteString(dimStyle.Render(fmt.Sprintf("       undo: %s", step.Inverse.Text)))
			b.WriteString("\n")
		}
	}

	for _, w := range m.plan.Warnings {
		b.WriteString("\n")
		b.WriteString(warnStyle.Render("  warning: " + w))
	}
	if len(m.plan.Warnings) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  fingerprint " + m.plan.Fingerprint()))
	b.WriteString("\n\n")

	switch m.phase {
	case phaseReviewing:
		b.WriteString(dimStyle.Render("  i: toggle undo statements  enter/y: apply  q: cancel"))
	case phaseApplying:
		b.WriteString(fmt.Sprintf("  %s Applying %d steps...", m.spinner.View(), len(m.plan.Steps)))
	case phaseDone:
		b.WriteString(m.resultView())
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) resultView() string {
	switch {
	case m.cancelled:
		return dimStyle.Render("  Cancelled. Nothing was executed.")
	case m.err != nil:
		var b strings.Builder
		b.WriteString(errStyle.Render("  Failed: " + m.err.Error()))
		if m.outcome != nil {
			if len(m.outcome.Completed) > 0 {
				b.WriteString("\n")
				b.WriteString(dimStyle.Render("  Completed before failure: " + strings.Join(m.outcome.Completed, ", ")))
			}
			if m.outcome.RolledBack {
				b.WriteString("\n")
				b.WriteString(warnStyle.Render("  Changes were rolled back."))
			}
		}
		return b.String()
	case m.outcome == nil:
		return dimStyle.Render("  Nothing to do.")
	default:
		return successStyle.Render(fmt.Sprintf("  Applied %d steps.", len(m.outcome.Completed)))
	}
}

// Done returns true when the model is finished.
func (m Model) Done() bool { return m.phase == phaseDone }

// Cancelled returns true if the user cancelled.
func (m Model) Cancelled() bool { return m.cancelled }

// Confirmed returns true if the user confirmed the plan.
func (m Model) Confirmed() bool { return m.confirmed }

// Outcome returns the result of the apply, if it ran.
func (m Model) Outcome() (*engine.AlterOutcome, error) { return m.outcome, m.err }
