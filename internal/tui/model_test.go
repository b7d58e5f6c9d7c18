package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caserag/internal/domain"
)

type stubRetriever struct {
	results    []domain.SearchResult
	err        error
	lastCase   domain.Case
	lastFilter domain.Filter
	lastTopK   int
}

func (s *stubRetriever) Retrieve(ctx context.Context, c domain.Case, topK int) ([]domain.SearchResult, error) {
	return s.RetrieveFiltered(ctx, c, topK, nil)
}

func (s *stubRetriever) RetrieveFiltered(_ context.Context, c domain.Case, topK int, filter domain.Filter) ([]domain.SearchResult, error) {
	s.lastCase, s.lastTopK, s.lastFilter = c, topK, filter
	return s.results, s.err
}

func result(rank int, source, text string) domain.SearchResult {
	return domain.SearchResult{
		Rank:             rank,
		SourceDocumentID: source,
		FullText:         text,
		RelevanceScore:   0.86,
		SimilarityScore:  0.8,
		ConfidenceLabel:  "High",
		Citation:         domain.Citation{SourceDocumentID: source, PageNumber: 3, LocationLabel: "Page 3"},
	}
}

func typeLine(m Model, line string) Model {
	m.input.SetValue(line)
	return m
}

func press(t *testing.T, m Model, key tea.KeyType) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(tea.KeyMsg{Type: key})
	return next.(Model), cmd
}

func TestParseCase(t *testing.T) {
	c, filter, err := ParseCase(`claim_type=Flood state=Florida amount=50,000 property_type="Single Family" date_filed=2024-03-01 source=fl.txt`)
	require.NoError(t, err)
	assert.Equal(t, "Flood", c.ClaimType)
	assert.Equal(t, "Florida", c.Jurisdiction)
	assert.Equal(t, "Single Family", c.PropertyType)
	require.NotNil(t, c.ClaimAmount)
	assert.InDelta(t, 50000, *c.ClaimAmount, 1e-9)
	require.NotNil(t, c.DateFiled)
	assert.Equal(t, "2024-03-01", c.DateFiled.Format("2006-01-02"))
	assert.Equal(t, domain.Filter{domain.MetaSourceDocumentID: "fl.txt"}, filter)
}

func TestParseCase_Errors(t *testing.T) {
	for _, line := range []string{
		"flood in florida",
		"claim_type=Flood colour=red",
		"amount=lots",
		"amount=-5",
		"date_filed=01/03/2024",
		"claim_type=Flood trailing",
	} {
		t.Run(line, func(t *testing.T) {
			_, _, err := ParseCase(line)
			assert.ErrorIs(t, err, domain.ErrInvalidCase)
		})
	}
}

func TestModel_EnterRunsSearch(t *testing.T) {
	stub := &stubRetriever{results: []domain.SearchResult{
		result(1, "fl.txt", "Flood claims need photos. Florida requires a 60 day notice."),
		result(2, "tx.txt", "Texas hail claims."),
	}}
	m := New(context.Background(), stub, 4, "2 documents")
	m = typeLine(m, "claim_type=Flood jurisdiction=Florida source=fl.txt")

	m, cmd := press(t, m, tea.KeyEnter)
	require.NotNil(t, cmd)
	assert.True(t, m.searching)

	next, _ := m.Update(cmd())
	m = next.(Model)
	assert.False(t, m.searching)
	assert.Equal(t, 4, stub.lastTopK)
	assert.Equal(t, "Flood", stub.lastCase.ClaimType)
	assert.Equal(t, "fl.txt", stub.lastFilter[domain.MetaSourceDocumentID])
	assert.Len(t, m.results, 2)
	assert.Contains(t, m.status, "2 results")

	assert.Contains(t, m.renderCurrentResult(), "Result 1/2")
	assert.Contains(t, m.renderCurrentResult(), "fl.txt, Page 3")

	m, _ = press(t, m, tea.KeyDown)
	assert.Equal(t, 1, m.cursor)
	m, _ = press(t, m, tea.KeyDown)
	assert.Equal(t, 0, m.cursor)
	m, _ = press(t, m, tea.KeyUp)
	assert.Equal(t, 1, m.cursor)
}

func TestModel_StatusMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"empty corpus", domain.ErrEmptyCorpus, "Index is empty"},
		{"provider", errors.New("connection refused"), "Error: connection refused"},
		{"no results", nil, "No relevant passages"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(context.Background(), &stubRetriever{err: tt.err}, 5, "")
			next, _ := m.Update(resultsMsg{query: "Flood", err: tt.err})
			m = next.(Model)
			assert.Contains(t, m.status, tt.want)
			assert.Empty(t, m.results)
			assert.Equal(t, "No results yet.", m.renderCurrentResult())
		})
	}
}

func TestModel_InvalidInputDoesNotSearch(t *testing.T) {
	m := New(context.Background(), &stubRetriever{}, 5, "")
	m = typeLine(m, "amount=-1")
	m, cmd := press(t, m, tea.KeyEnter)
	assert.Nil(t, cmd)
	assert.False(t, m.searching)
	assert.Contains(t, m.status, "invalid case")
}

func TestModel_ViewBeforeAndAfterResize(t *testing.T) {
	m := New(context.Background(), &stubRetriever{}, 5, "summary line")
	assert.Equal(t, "Loading...", m.View())

	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(Model)
	view := m.View()
	assert.Contains(t, view, "Case Guideline Search")
	assert.Contains(t, view, "summary line")
}

func TestHighlightBestSentence(t *testing.T) {
	out := highlightBestSentence("Hail claims in Texas. Flood claims in Florida need a notice.", "Flood in Florida")
	assert.Contains(t, out, "Hail claims in Texas.")
	assert.Contains(t, out, "Flood claims in Florida need a notice.")
	assert.Equal(t, "", highlightBestSentence("", "x"))
}
