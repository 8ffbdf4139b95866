// ABOUTME: Bubbletea model rendering the chat panel from store snapshots
// ABOUTME: Maps keystrokes to engine intents and renders assistant markdown with glamour

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/irfanadziri/serverless-pdf-chat/internal/conversation"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	promptGlyph = "> "
)

// snapshotMsg delivers a store snapshot published after a mutation.
type snapshotMsg conversation.Snapshot

// opDoneMsg reports the outcome of an engine workflow run as a tea.Cmd.
type opDoneMsg struct{ err error }

type model struct {
	ctx    context.Context
	engine *conversation.Engine
	route  *routeState
	snaps  <-chan conversation.Snapshot

	snap       conversation.Snapshot
	documentID string

	input    textinput.Model
	spin     spinner.Model
	renderer *glamour.TermRenderer

	width  int
	height int
	err    error
}

func newModel(ctx context.Context, engine *conversation.Engine, route *routeState, snaps <-chan conversation.Snapshot, documentID, conversationID string) model {
	input := textinput.New()
	input.Placeholder = "Ask about this document…"
	input.Prompt = promptGlyph
	input.CharLimit = 2000
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(72),
	)

	m := model{
		ctx:        ctx,
		engine:     engine,
		route:      route,
		snaps:      snaps,
		documentID: documentID,
		input:      input,
		spin:       spin,
		renderer:   renderer,
	}
	m.route.conversationID = conversationID
	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.listenSnapshots(), m.spin.Tick, textinput.Blink}
	// Route-mount load: resuming an existing conversation fetches it once on
	// startup, before any toggle.
	if id := m.route.conversationID; id != "" {
		cmds = append(cmds, m.loadCmd(id))
	}
	return tea.Batch(cmds...)
}

// listenSnapshots waits for the next published snapshot. Re-issued after
// every receive so the program re-renders on each store mutation.
func (m model) listenSnapshots() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-m.snaps
		if !ok {
			return nil
		}
		return snapshotMsg(snap)
	}
}

func (m model) loadCmd(conversationID string) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{err: m.engine.Load(m.ctx, conversationID)}
	}
}

func (m model) submitCmd() tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{err: m.engine.Submit(m.ctx)}
	}
}

func (m model) toggleCmd() tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{err: m.engine.ToggleVisible(m.ctx)}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case snapshotMsg:
		m.snap = conversation.Snapshot(msg)
		// The store owns the input buffer: a submit clears it there and the
		// clear flows back into the widget.
		if m.input.Value() != m.snap.Prompt {
			m.input.SetValue(m.snap.Prompt)
			m.input.CursorEnd()
		}
		return m, m.listenSnapshots()

	case opDoneMsg:
		m.err = msg.err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyCtrlT:
			m.err = nil
			return m, m.toggleCmd()
		case tea.KeyEnter:
			if !m.snap.Visible || m.snap.Conversation == nil {
				return m, nil
			}
			if strings.TrimSpace(m.input.Value()) == "" {
				return m, nil
			}
			if m.snap.MessageSend == conversation.StatusLoading {
				return m, nil
			}
			m.err = nil
			return m, m.submitCmd()
		}

		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		m.engine.SetPrompt(m.input.Value())
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("pdf-chat — %s", m.documentTitle())))
	b.WriteString("\n\n")

	if !m.snap.Visible {
		b.WriteString(faintStyle.Render("Chat hidden. Press ctrl+t to open."))
		b.WriteString("\n")
	} else {
		b.WriteString(panelStyle.Width(m.panelWidth()).Render(m.panelView()))
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("error: %v", m.err)))
		b.WriteString("\n")
	}

	b.WriteString(faintStyle.Render("ctrl+t toggle chat • enter send • esc quit"))
	return b.String()
}

func (m model) documentTitle() string {
	if conv := m.snap.Conversation; conv != nil && conv.Document.Filename != "" {
		return conv.Document.Filename
	}
	return m.documentID
}

func (m model) panelWidth() int {
	if m.width > 80 {
		return 76
	}
	if m.width > 20 {
		return m.width - 4
	}
	return 40
}

func (m model) panelView() string {
	var b strings.Builder

	switch {
	case m.snap.Conversation == nil && m.snap.ConversationLoad == conversation.StatusLoading,
		m.snap.ConversationListOp == conversation.StatusLoading:
		b.WriteString(m.spin.View())
		b.WriteString(" starting conversation…\n")
	case m.snap.Conversation == nil:
		b.WriteString(faintStyle.Render("No conversation yet."))
		b.WriteString("\n")
	default:
		b.WriteString(m.messagesView())
	}

	if m.snap.MessageSend == conversation.StatusLoading {
		b.WriteString(m.spin.View())
		b.WriteString(" thinking…\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	return b.String()
}

func (m model) messagesView() string {
	conv := m.snap.Conversation
	if len(conv.Messages) == 0 {
		return faintStyle.Render("Ask your first question below.") + "\n"
	}

	var b strings.Builder
	for _, msg := range conv.Messages {
		switch msg.Type {
		case conversation.MessageTypeAI:
			b.WriteString(m.renderMarkdown(msg.Data.Content))
		default:
			b.WriteString(userStyle.Render("You: " + msg.Data.Content))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m model) renderMarkdown(content string) string {
	if m.renderer == nil {
		return content + "\n"
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return content + "\n"
	}
	return strings.TrimLeft(out, "\n")
}
