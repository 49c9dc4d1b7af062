// Package tui renders the MIDI port selection dialog in a terminal. The view
// is a projection of the dialog snapshot; key presses become dialog edits.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/leandrodaf/midiports/internal/dialog"
	"github.com/leandrodaf/midiports/sdk/contracts"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	normalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

// Notifier forwards dialog notifications to the running program.
type Notifier struct {
	ch chan contracts.Notification
}

// NewNotifier returns a notifier buffering up to size notifications.
func NewNotifier(size int) *Notifier {
	return &Notifier{ch: make(chan contracts.Notification, size)}
}

// Notify queues n; it drops n when the buffer is full.
func (n *Notifier) Notify(note contracts.Notification) {
	select {
	case n.ch <- note:
	default:
	}
}

type resultMsg dialog.Result

type notificationMsg contracts.Notification

// Model is the bubbletea model of the dialog.
type Model struct {
	ctx    context.Context
	dlg    *dialog.Dialog
	notes  <-chan contracts.Notification
	cursor int

	status     string
	statusErr  bool
	submitting bool
	done       bool
	err        error
}

// NewModel builds the model. notes may be nil.
func NewModel(ctx context.Context, d *dialog.Dialog, notes *Notifier) Model {
	m := Model{ctx: ctx, dlg: d, status: "Loading MIDI devices..."}
	if notes != nil {
		m.notes = notes.ch
	}
	return m
}

// Run shows the dialog until it is submitted or cancelled.
func Run(ctx context.Context, d *dialog.Dialog, notes *Notifier) error {
	p := tea.NewProgram(NewModel(ctx, d, notes), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(Model); ok && fm.err != nil {
		return fm.err
	}
	return nil
}

// Err returns the error of the last submit, if it failed.
func (m Model) Err() error {
	return m.err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.open(), m.listen())
}

func (m Model) open() tea.Cmd {
	ch := m.dlg.Open(m.ctx)
	return waitResult(ch)
}

func waitResult(ch <-chan dialog.Result) tea.Cmd {
	return func() tea.Msg {
		return resultMsg(<-ch)
	}
}

func (m Model) listen() tea.Cmd {
	if m.notes == nil {
		return nil
	}
	ch := m.notes
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return notificationMsg(n)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case notificationMsg:
		m.status = msg.Message
		m.statusErr = msg.Level == contracts.ErrorLevel || msg.Level == contracts.FatalLevel
		return m, m.listen()
	case resultMsg:
		return m.handleResult(dialog.Result(msg))
	}
	return m, nil
}

func (m Model) handleResult(res dialog.Result) (tea.Model, tea.Cmd) {
	switch {
	case res.Stale:
		return m, nil
	case res.Op == dialog.OpLoad && res.Err == nil:
		m.status = ""
		m.statusErr = false
		if n := m.rows(); m.cursor >= n {
			m.cursor = n - 1
		}
	case res.Op == dialog.OpLoad:
		m.status = dialog.MsgLoadFailed
		m.statusErr = true
	case res.Op == dialog.OpSubmit:
		if res.Err != nil {
			m.err = fmt.Errorf("%s: %w", dialog.MsgSubmitFailed, res.Err)
		}
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

// rows counts the selectable lines: one per device plus the mode line.
func (m Model) rows() int {
	return len(m.dlg.Snapshot().Entries) + 1
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" || key == "q" {
		m.dlg.Cancel()
		m.done = true
		return m, tea.Quit
	}

	snap := m.dlg.Snapshot()
	if !snap.Visible {
		if key == "r" && !m.submitting {
			m.status = "Loading MIDI devices..."
			m.statusErr = false
			return m, m.open()
		}
		return m, nil
	}

	switch key {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(snap.Entries) {
			m.cursor++
		}
	case " ", "x":
		if m.cursor < len(snap.Entries) {
			m.report(m.dlg.Toggle(snap.Entries[m.cursor].ID))
		} else {
			m.report(m.dlg.SetMode(flip(snap.Mode)))
		}
	case "tab":
		m.report(m.dlg.SetMode(flip(snap.Mode)))
	case "a":
		m.report(m.dlg.SetMode(contracts.Aggregated))
	case "s":
		m.report(m.dlg.SetMode(contracts.Separated))
	case "enter":
		m.submitting = true
		m.status = "Saving..."
		m.statusErr = false
		return m, waitResult(m.dlg.Submit(m.ctx))
	case "esc":
		m.dlg.Cancel()
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) report(err error) {
	if err != nil {
		m.status = err.Error()
		m.statusErr = true
	}
}

func flip(mode contracts.RoutingMode) contracts.RoutingMode {
	if mode == contracts.Aggregated {
		return contracts.Separated
	}
	return contracts.Aggregated
}

func (m Model) View() string {
	if m.done {
		return ""
	}
	return Render(m.dlg.Snapshot(), m.cursor, m.status, m.statusErr)
}

// Render draws a snapshot. It is exported so the layout can be tested
// without a terminal.
func Render(s dialog.Snapshot, cursor int, status string, statusErr bool) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("MIDI Devices"))
	b.WriteString("\n\n")

	if s.Visible {
		if len(s.Entries) == 0 {
			b.WriteString(dimStyle.Render("  no MIDI devices available"))
			b.WriteString("\n")
		}
		for i, e := range s.Entries {
			box := "[ ]"
			if e.Checked {
				box = "[x]"
			}
			line := fmt.Sprintf("%s %s", box, e.Name)
			if i == cursor {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString(normalStyle.Render("  " + line))
			}
			b.WriteString("\n")
		}

		b.WriteString("\n")
		agg, sep := "( )", "( )"
		if s.Mode == contracts.Aggregated {
			agg = "(•)"
		} else {
			sep = "(•)"
		}
		mode := fmt.Sprintf("Mode: %s aggregated  %s separated", agg, sep)
		if cursor == len(s.Entries) {
			b.WriteString(selectedStyle.Render("> " + mode))
		} else {
			b.WriteString(normalStyle.Render("  " + mode))
		}
		b.WriteString("\n")
	}

	if status != "" {
		b.WriteString("\n")
		if statusErr {
			b.WriteString(errorStyle.Render(status))
		} else {
			b.WriteString(statusStyle.Render(status))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if s.Visible {
		b.WriteString(dimStyle.Render("↑↓/j/k: move • space: toggle • a/s/tab: mode • enter: save • esc: cancel"))
	} else {
		b.WriteString(dimStyle.Render("r: retry • q: quit"))
	}
	return b.String()
}
