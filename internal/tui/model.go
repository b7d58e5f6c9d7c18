package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"caserag/internal/domain"
	"caserag/internal/extractor"
	"caserag/internal/highlight"
	"caserag/internal/retrieval"
)

// Model is the Bubble Tea model for the results browser.
type Model struct {
	ctx       context.Context
	retriever domain.Retriever
	topK      int
	input     textinput.Model
	viewport  viewport.Model
	results   []domain.SearchResult
	summary   string
	status    string
	cursor    int
	ready     bool
	searching bool
	lastQuery string
}

// resultsMsg carries the outcome of one retrieval back to Update.
type resultsMsg struct {
	query   string
	results []domain.SearchResult
	err     error
}

// New creates a browser over retriever. summary is shown under the header.
func New(ctx context.Context, retriever domain.Retriever, topK int, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "claim_type=Flood jurisdiction=Florida amount=50000 property_type=Residential"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		ctx:       ctx,
		retriever: retriever,
		topK:      topK,
		input:     ti,
		viewport:  vp,
		summary:   summary,
		status:    "Describe a case and press Enter.",
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and result events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header and summary, status, input box, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, max(3, msg.Height-reserved)-rh)
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case resultsMsg:
		m.searching = false
		switch {
		case errors.Is(msg.err, domain.ErrEmptyCorpus):
			m.status = "Index is empty: run 'caserag ingest' first."
			m.results = nil
		case msg.err != nil:
			m.status = "Error: " + msg.err.Error()
			m.results = nil
		case len(msg.results) == 0:
			m.status = fmt.Sprintf("No relevant passages for %q", msg.query)
			m.results = nil
		default:
			m.status = fmt.Sprintf("%d results for %q", len(msg.results), msg.query)
			m.results = msg.results
		}
		m.cursor = 0
		m.lastQuery = msg.query
		m.viewport.SetContent(m.renderCurrentResult())
		m.viewport.GotoTop()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			if line == "" || m.searching {
				return m, nil
			}
			c, filter, err := ParseCase(line)
			if err != nil {
				m.status = "Error: " + err.Error()
				return m, nil
			}
			m.searching = true
			m.status = "Searching..."
			return m, m.search(c, filter)
		case "down":
			if len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				m.viewport.GotoTop()
				return m, nil
			}
		case "up":
			if len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				m.viewport.GotoTop()
				return m, nil
			}
		case "pgdown", "pgup":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) search(c domain.Case, filter domain.Filter) tea.Cmd {
	ctx, retriever, topK := m.ctx, m.retriever, m.topK
	query := extractor.QueryText(c)
	return func() tea.Msg {
		res, err := retriever.RetrieveFiltered(ctx, c, topK, filter)
		return resultsMsg{query: query, results: res, err: err}
	}
}

// View renders the layout and the current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Case Guideline Search")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrentResult() string {
	if len(m.results) == 0 {
		return "No results yet."
	}
	r := m.results[m.cursor]
	title := fmt.Sprintf("Result %d/%d  %s  relevance=%.3f similarity=%.3f",
		m.cursor+1, len(m.results), confidenceStyle(r.ConfidenceLabel).Render(r.ConfidenceLabel),
		r.RelevanceScore, r.SimilarityScore)
	cite := citationStyle.Render(fmt.Sprintf("%s, %s", r.Citation.SourceDocumentID, r.Citation.LocationLabel))
	return title + "\n" + cite + "\n\n" + highlightBestSentence(r.FullText, m.lastQuery)
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	citationStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

func confidenceStyle(label string) lipgloss.Style {
	switch label {
	case retrieval.ConfidenceHigh:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	case retrieval.ConfidenceMedium:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	}
}

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences, best := highlight.Best(text, query)
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}
	if best >= 0 {
		sentences[best] = highlightStyle.Render(sentences[best])
	}
	return strings.Join(sentences, " ")
}
