package tui

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/bcomnes/execsql/reset"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	labelStyle  = lipgloss.NewStyle().Faint(true)
	buttonStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("9"))
	disabledButtonStyle = lipgloss.NewStyle().
				Faint(true).
				Padding(0, 2).
				Border(lipgloss.RoundedBorder())
	dialogStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("11"))
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle = lipgloss.NewStyle().Faint(true)
)

// doneMsg carries the outcome of a deletion back into the update loop.
type doneMsg reset.Result

// Model is the bubbletea model for the reset screen.
type Model struct {
	ctx     context.Context
	screen  *Screen
	control *reset.Control

	confirming bool
	notice     *reset.Result
}

// New creates the model. The control should be built with screen as its
// Reloader so a successful deletion refreshes what is shown.
func New(ctx context.Context, screen *Screen, control *reset.Control) Model {
	return Model{ctx: ctx, screen: screen, control: control}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		return m.handleKey(msg.String())
	case doneMsg:
		res := reset.Result(msg)
		m.notice = &res
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	if key == "ctrl+c" {
		return m, tea.Quit
	}

	// The dialog is modal: y accepts, anything else declines.
	if m.confirming {
		m.confirming = false
		if key != "y" && key != "Y" {
			return m, nil
		}
		if !m.control.Begin() {
			return m, nil
		}
		m.notice = nil
		ctl, ctx := m.control, m.ctx
		return m, func() tea.Msg {
			return doneMsg(ctl.Complete(ctx))
		}
	}

	switch key {
	case "q", "esc":
		return m, tea.Quit
	case "enter", "space", " ", "r":
		if m.control.Disabled() {
			return m, nil
		}
		m.confirming = true
	case "ctrl+r", "f5":
		m.notice = nil
		m.screen.Reload()
	}
	return m, nil
}

func (m Model) View() tea.View {
	return tea.NewView(m.Render())
}

// Render returns the screen as a string.
func (m Model) Render() string {
	st := m.screen.Stats()

	var b strings.Builder
	b.WriteString(titleStyle.Render("Local data"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("store:  "), st.Name)
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("path:   "), st.Path)
	switch {
	case st.Err != nil:
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("records:"), errStyle.Render(st.Err.Error()))
	case !st.Exists:
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("records:"), "none (store not created)")
	default:
		fmt.Fprintf(&b, "%s %d\n", labelStyle.Render("records:"), st.Records)
	}
	fmt.Fprintf(&b, "%s %s\n\n", labelStyle.Render("loaded: "), st.LoadedAt.Format("15:04:05"))

	if m.control.Disabled() {
		b.WriteString(disabledButtonStyle.Render(m.control.Label()))
	} else {
		b.WriteString(buttonStyle.Render(m.control.Label()))
	}
	b.WriteString("\n")

	if m.confirming {
		b.WriteString("\n")
		b.WriteString(dialogStyle.Render(reset.ConfirmPrompt + "\n\n[y] yes   [n] no"))
		b.WriteString("\n")
	}

	if m.notice != nil && m.notice.Message != "" {
		b.WriteString("\n")
		b.WriteString(noticeStyle(m.notice.Outcome).Render(m.notice.Message))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter: reset • ctrl+r: reload • q: quit"))
	b.WriteString("\n")
	return b.String()
}

func noticeStyle(o reset.Outcome) lipgloss.Style {
	switch o {
	case reset.Succeeded:
		return okStyle
	case reset.Blocked:
		return warnStyle
	default:
		return errStyle
	}
}

// Confirming reports whether the confirmation dialog is showing.
func (m Model) Confirming() bool { return m.confirming }
