// Package tui is the terminal chat front door.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ziadkadry99/receipt-rag/internal/query"
)

// askTimeout bounds one question end to end.
const askTimeout = 60 * time.Second

// Sender is the TUI-facing subset of the conversation service.
type Sender interface {
	Send(ctx context.Context, conversationID, userID, question string, topK int) (string, query.Response, error)
}

type turn struct {
	question string
	resp     query.Response
	err      error
}

// answerMsg carries the result of one question back to Update.
type answerMsg struct {
	conversationID string
	turn           turn
}

// Model is the Bubble Tea model for the chat TUI.
type Model struct {
	sender         Sender
	user           string
	topK           int
	conversationID string
	input          textinput.Model
	viewport       viewport.Model
	turns          []turn
	summary        string
	status         string
	waiting        bool
	ready          bool
}

// New creates a chat model. summary is shown under the header.
func New(sender Sender, user string, topK int, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your receipts and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		sender:   sender,
		user:     user,
		topK:     topK,
		input:    ti,
		viewport: vp,
		summary:  summary,
		status:   "Ready. Ctrl+C to quit.",
	}
}

// ConversationID returns the conversation the TUI is writing to, once the
// first question has been answered.
func (m Model) ConversationID() string { return m.conversationID }

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header + summary, status, input box, spacer
		vh := max(3, msg.Height-reserved)
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-th)
		m.refresh()
		return m, nil

	case answerMsg:
		m.waiting = false
		if msg.conversationID != "" {
			m.conversationID = msg.conversationID
		}
		m.turns = append(m.turns, msg.turn)
		if msg.turn.err != nil {
			m.status = "Error: " + msg.turn.err.Error()
		} else {
			m.status = statusLine(msg.turn.resp)
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.waiting {
				return m, nil
			}
			m.input.Reset()
			m.waiting = true
			m.status = "Thinking..."
			return m, m.ask(q)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(question string) tea.Cmd {
	sender, convID, user, topK := m.sender, m.conversationID, m.user, m.topK
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
		defer cancel()
		id, resp, err := sender.Send(ctx, convID, user, question, topK)
		return answerMsg{conversationID: id, turn: turn{question: question, resp: resp, err: err}}
	}
}

// View renders the header, transcript, input and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("Receipt RAG")
	summary := dimStyle.Render(m.summary)
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + summary + "\n" + transcript + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	if len(m.turns) == 0 {
		return dimStyle.Render("No questions yet.")
	}
	var sb strings.Builder
	for i, t := range m.turns {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(questionStyle.Render("You: " + t.question))
		sb.WriteString("\n")
		if t.err != nil {
			sb.WriteString(errorStyle.Render(t.err.Error()))
			sb.WriteString("\n")
			continue
		}
		sb.WriteString(t.resp.Answer)
		sb.WriteString("\n")
		if t.resp.AggregatedAmount != nil {
			sb.WriteString(amountStyle.Render(fmt.Sprintf("Total: $%.2f", *t.resp.AggregatedAmount)))
			sb.WriteString("\n")
		}
		if len(t.resp.Sources) > 0 {
			names := make([]string, len(t.resp.Sources))
			for j, s := range t.resp.Sources {
				names[j] = s.Filename
			}
			sb.WriteString(dimStyle.Render("Sources: " + strings.Join(names, ", ")))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func statusLine(resp query.Response) string {
	s := fmt.Sprintf("%d source(s) in %.2fs", len(resp.Sources), resp.RetrievalTime)
	if resp.Outcome == query.AnsweredDegraded {
		s += " (degraded)"
	}
	return s
}

var (
	headerStyle        = lipgloss.NewStyle().Bold(true)
	dimStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	questionStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	amountStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
