package picker

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/helmcode/diag-analyzer/pkg/model"
	"github.com/helmcode/diag-analyzer/pkg/selection"
	"github.com/helmcode/diag-analyzer/pkg/validation"
)

// Action is what the user chose when the picker closed.
type Action int

const (
	ActionNone Action = iota
	ActionAnalyze
	ActionSkip
	ActionAbort
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	cursorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Model is a checkbox list over the suspected classes. Toggles go straight
// to the reducer it was built with.
type Model struct {
	classes []model.SuspectedClass
	reducer *selection.Reducer
	cursor  int
	action  Action
	notice  string
}

func New(classes []model.SuspectedClass, reducer *selection.Reducer) Model {
	return Model{classes: classes, reducer: reducer}
}

// Action returns the user's final choice.
func (m Model) Action() Action { return m.action }

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	m.notice = ""
	switch key.String() {
	case "ctrl+c", "q", "esc":
		m.action = ActionAbort
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.classes)-1 {
			m.cursor++
		}
	case " ", "space", "x":
		if len(m.classes) > 0 {
			name := m.classes[m.cursor].Class
			m.reducer.ToggleOne(name, !m.reducer.State().Has(name))
		}
	case "a":
		m.reducer.ToggleAll(!m.reducer.State().SelectAll())
	case "s":
		m.action = ActionSkip
		return m, tea.Quit
	case "enter":
		if err := validation.CheckSelection(m.reducer.State()); err != nil {
			m.notice = "Please select at least one class to analyze, or press s to skip class analysis."
			return m, nil
		}
		m.action = ActionAnalyze
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	state := m.reducer.State()

	b.WriteString(titleStyle.Render("Select classes for further analysis"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("  %s Select all classes\n\n", checkbox(state.SelectAll())))

	for i, c := range m.classes {
		line := fmt.Sprintf("%s %s (package: %s)", checkbox(state.Has(c.Class)), c.Class, c.Package)
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	if m.notice != "" {
		b.WriteString("\n" + noticeStyle.Render(m.notice) + "\n")
	}
	b.WriteString("\n" + helpStyle.Render("space: toggle • a: select all • enter: analyze selected • s: skip • q: quit") + "\n")
	return b.String()
}

// Run shows the picker until the user analyzes, skips or quits.
func Run(classes []model.SuspectedClass, reducer *selection.Reducer, opts ...tea.ProgramOption) (Action, error) {
	final, err := tea.NewProgram(New(classes, reducer), opts...).Run()
	if err != nil {
		return ActionAbort, fmt.Errorf("class picker: %w", err)
	}
	return final.(Model).Action(), nil
}

func checkbox(checked bool) string {
	if checked {
		return "[x]"
	}
	return "[ ]"
}
