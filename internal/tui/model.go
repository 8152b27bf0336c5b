package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"document-chat/internal/db"
	"document-chat/internal/models"
)

// Assistant is the TUI-facing subset of the orchestrator.
type Assistant interface {
	Ingest(ctx context.Context, filename string, data []byte) (int, error)
	Ask(ctx context.Context, question string) (*models.Answer, error)
	History(ctx context.Context, limit int) []db.ChatTurn
	DocumentCount(ctx context.Context) int
	Connected() bool
}

// Model is the Bubble Tea model for the chat surface.
type Model struct {
	assistant    Assistant
	input        textinput.Model
	viewport     viewport.Model
	answer       *models.Answer
	showHistory  bool
	historyLimit int
	docCount     int
	status       string
	ready        bool
}

// New creates the chat model. historyLimit caps the history toggle view.
func New(assistant Assistant, historyLimit int) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or /upload <path> to ingest a document"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		assistant:    assistant,
		input:        ti,
		viewport:     vp,
		historyLimit: historyLimit,
		docCount:     assistant.DocumentCount(context.Background()),
		status:       "Ready. Ctrl+H toggles history, Ctrl+C quits.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events. The orchestrator is invoked
// synchronously: one user action, one blocking flow.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := boxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + ih + 1 // header + status line + input frame + spacer
		vh := msg.Height - reserved - bh
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = maxInt(20, msg.Width-2)
		m.viewport.Height = vh
		m.viewport.SetContent(m.renderBody())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "ctrl+h":
			m.showHistory = !m.showHistory
			m.viewport.SetContent(m.renderBody())
			return m, nil
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			if line == "" {
				return m, nil
			}
			m.input.SetValue("")
			if path, ok := strings.CutPrefix(line, "/upload "); ok {
				m.uploadFile(strings.TrimSpace(path))
			} else {
				m.askQuestion(line)
			}
			m.viewport.SetContent(m.renderBody())
			return m, nil
		case "up", "down", "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) uploadFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		m.status = errorStyle.Render("Error: " + err.Error())
		return
	}
	count, err := m.assistant.Ingest(context.Background(), filepath.Base(path), data)
	if err != nil {
		m.status = errorStyle.Render("Error processing document: " + err.Error())
		return
	}
	m.docCount = m.assistant.DocumentCount(context.Background())
	m.status = okStyle.Render(fmt.Sprintf("Document processed! %d chunks created.", count))
}

func (m *Model) askQuestion(question string) {
	answer, err := m.assistant.Ask(context.Background(), question)
	if err != nil {
		m.status = errorStyle.Render("Error: " + err.Error())
		return
	}
	m.answer = answer
	m.showHistory = false
	m.status = okStyle.Render(fmt.Sprintf("Answered %q", question))
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Document Chat")
	connectivity := "store: connected"
	if !m.assistant.Connected() {
		connectivity = "store: disconnected (history disabled)"
	}
	info := dimStyle.Render(fmt.Sprintf("%s | documents stored: %d", connectivity, m.docCount))
	body := boxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	return header + "\n" + info + "\n" + body + "\n" + input + "\n" + m.status
}

func (m Model) renderBody() string {
	if m.showHistory {
		return m.renderHistory()
	}
	if m.answer == nil {
		return "Upload a document with /upload <path>, then ask away."
	}
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render("Answer") + "\n\n")
	b.WriteString(m.answer.Content + "\n\n")
	b.WriteString(lipgloss.NewStyle().Bold(true).Render("Sources") + "\n")
	for i, src := range m.answer.Sources {
		snippet := src.Content
		if len(snippet) > 500 {
			snippet = snippet[:500] + "..."
		}
		b.WriteString(fmt.Sprintf("%d. %s\n%s\n", i+1, dimStyle.Render(src.Filename), snippet))
	}
	return b.String()
}

func (m Model) renderHistory() string {
	turns := m.assistant.History(context.Background(), m.historyLimit)
	if len(turns) == 0 {
		return "No chat history yet."
	}
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render("Recent questions (newest first)") + "\n\n")
	for _, turn := range turns {
		b.WriteString(fmt.Sprintf("Q: %s %s\n", turn.Query,
			dimStyle.Render("("+turn.CreatedAt.Format("2006-01-02 15:04:05")+")")))
		b.WriteString("A: " + turn.Response + "\n\n")
	}
	return b.String()
}

var (
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
