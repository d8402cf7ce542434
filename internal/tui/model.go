// ABOUTME: bubbletea program rendering the conversation dashboard in a terminal
// ABOUTME: Agent calls run as commands and view-model snapshots re-enter the event loop as messages

package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/2389/secure-agent/internal/dashboard"
	"github.com/2389/secure-agent/internal/identity"
)

const (
	headerHeight = 1
	footerHeight = 3

	helpText  = "enter send • ctrl+r reset • pgup/pgdn scroll • esc quit"
	emptyHint = "Ask the agent anything."
)

// snapshotMsg carries a view-model snapshot from the subscription.
type snapshotMsg dashboard.Snapshot

// callDoneMsg reports that a send or reset returned. err is only ever a
// guard error; call failures arrive in the snapshot.
type callDoneMsg struct {
	err error
}

// Model is the dashboard screen.
type Model struct {
	ctx      context.Context
	vm       *dashboard.ViewModel
	identity identity.Provider
	updates  <-chan dashboard.Snapshot

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	snap   dashboard.Snapshot
	notice string
	ready  bool
}

// New creates the dashboard screen. The subscription to vm lives as long as ctx.
func New(ctx context.Context, vm *dashboard.ViewModel, id identity.Provider) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a query..."
	ti.Prompt = "> "
	ti.CharLimit = 4000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		vm:       vm,
		identity: id,
		updates:  vm.Subscribe(ctx),
		input:    ti,
		spinner:  sp,
		snap:     vm.Snapshot(),
	}
}

// Run starts the full-screen program and blocks until the user quits.
func Run(ctx context.Context, vm *dashboard.ViewModel, id identity.Provider, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	_, err := tea.NewProgram(New(ctx, vm, id), opts...).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitForSnapshot(m.updates))
}

func waitForSnapshot(ch <-chan dashboard.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg(snap)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case snapshotMsg:
		m.applySnapshot(dashboard.Snapshot(msg))
		return m, waitForSnapshot(m.updates)

	case callDoneMsg:
		m.notice = guardNotice(msg.err)
		// Read synchronously so the draft and transcript match the finished call.
		snap := m.vm.Snapshot()
		m.input.SetValue(snap.Draft)
		m.applySnapshot(snap)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "enter":
		m.notice = ""
		return m, m.call(m.vm.Submit)
	case "ctrl+r":
		m.notice = ""
		return m, m.call(m.vm.Reset)
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	// The draft is frozen while a call is in flight.
	if m.snap.Busy {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.vm.SetDraft(m.input.Value())
	return m, cmd
}

// call runs a view-model operation off the event loop.
func (m Model) call(op func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return callDoneMsg{err: op(ctx)}
	}
}

func guardNotice(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, dashboard.ErrBusy):
		return "Still waiting for the agent."
	case errors.Is(err, dashboard.ErrEmptyQuery):
		return "Type a query first."
	default:
		return err.Error()
	}
}

// applySnapshot keeps the newest snapshot. Older versions are dropped.
func (m *Model) applySnapshot(snap dashboard.Snapshot) {
	if snap.Version < m.snap.Version {
		return
	}
	m.snap = snap
	m.refreshTranscript()
}

func (m *Model) resize(width, height int) {
	vpHeight := max(1, height-headerHeight-footerHeight)

	if !m.ready {
		m.viewport = viewport.New(width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}
	m.input.Width = max(10, width-4)
	m.refreshTranscript()
}

func (m *Model) refreshTranscript() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(renderTranscript(m.snap.Transcript, m.viewport.Width))
	m.viewport.GotoBottom()
}

func renderTranscript(transcript []dashboard.Exchange, width int) string {
	if len(transcript) == 0 {
		return helpStyle.Render(emptyHint)
	}

	wrap := lipgloss.NewStyle().Width(width)
	var b strings.Builder
	for _, ex := range transcript {
		if ex.Query != "" {
			b.WriteString(youLabelStyle.Render("You"))
			b.WriteString("\n")
			b.WriteString(wrap.Render(ex.Query))
			b.WriteString("\n\n")
		}
		b.WriteString(agentLabelStyle.Render("Agent"))
		b.WriteString("\n")
		b.WriteString(wrap.Render(RenderMarkdown(ex.Message)))
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) View() string {
	if !m.ready {
		return "Starting..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		m.viewport.View(),
		m.statusView(),
		m.input.View(),
		helpStyle.Render(helpText),
	)
}

func (m Model) headerView() string {
	user := "Signed in as " + m.identity.Username()
	if !m.identity.IsAuthenticated() {
		user = "Not signed in (run secureagent login)"
	}
	return titleStyle.Render("Secure Agent") + "  " + userStyle.Render(user)
}

func (m Model) statusView() string {
	switch {
	case m.snap.Busy:
		label := "Waiting for the agent..."
		if m.snap.State == dashboard.StateResetting {
			label = "Resetting conversation..."
		}
		if m.notice != "" {
			label += "  " + helpStyle.Render(m.notice)
		}
		return m.spinner.View() + " " + label
	case m.snap.LastError != "":
		return errorStyle.Render(m.snap.LastError)
	case m.notice != "":
		return helpStyle.Render(m.notice)
	default:
		return ""
	}
}
