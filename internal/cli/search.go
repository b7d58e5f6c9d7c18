package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"caserag/internal/domain"
	"caserag/internal/extractor"
	"caserag/internal/highlight"
	"caserag/internal/retrieval"
)

var (
	searchClaimType    string
	searchJurisdiction string
	searchPropertyType string
	searchAmount       float64
	searchDateFiled    string
	searchCaseFile     string
	searchCaseID       string
	searchTopK         int
	searchSource       string
	searchJSON         bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Find guideline passages for a claim case",
	Long: `Retrieves the passages most relevant to a claim case. Describe the case
with flags, or load it from a JSON file of the form {"cases": [...]}.
Without --case-id every case in the file is searched.

Results are ranked by relevance: semantic similarity plus a boost when the
source document name mentions the claim type or jurisdiction.`,
	Example: `  caserag search --claim-type Flood --jurisdiction Florida --amount 50000
  caserag search --case cases.json --case-id CASE-001 --json`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

func init() {
	f := searchCmd.Flags()
	f.StringVar(&searchClaimType, "claim-type", "", "claim type, e.g. Flood")
	f.StringVar(&searchJurisdiction, "jurisdiction", "", "state or jurisdiction, e.g. Florida")
	f.StringVar(&searchPropertyType, "property-type", "", "property type, e.g. Residential")
	f.Float64Var(&searchAmount, "amount", 0, "claim amount")
	f.StringVar(&searchDateFiled, "date-filed", "", "filing date (YYYY-MM-DD)")
	f.StringVar(&searchCaseFile, "case", "", "JSON file holding cases")
	f.StringVar(&searchCaseID, "case-id", "", "case to pick from --case")
	f.IntVarP(&searchTopK, "top-k", "k", 0, "number of passages (default from config)")
	f.StringVar(&searchSource, "source", "", "only search this source document")
	f.BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

// caseResults is the JSON shape of one searched case.
type caseResults struct {
	Case    domain.Case           `json:"case"`
	Query   string                `json:"query"`
	Results []domain.SearchResult `json:"results"`
}

func runSearch(cmd *cobra.Command, _ []string) error {
	cases, err := casesFromFlags(cmd)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	topK := searchTopK
	if topK == 0 {
		topK = a.Config.Retrieval.TopK
	}
	var filter domain.Filter
	if searchSource != "" {
		filter = domain.Filter{domain.MetaSourceDocumentID: searchSource}
	}

	all := make([]caseResults, 0, len(cases))
	for _, c := range cases {
		results, err := a.Service.Search(cmd.Context(), c, topK, filter)
		if errors.Is(err, domain.ErrEmptyCorpus) {
			return fmt.Errorf("%w (run 'caserag ingest' first)", err)
		}
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		if results == nil {
			results = []domain.SearchResult{}
		}
		all = append(all, caseResults{Case: c, Query: extractor.QueryText(c), Results: results})
	}

	if searchJSON {
		return outputSearchJSON(cmd.OutOrStdout(), all)
	}
	outputSearchText(cmd.OutOrStdout(), all)
	return nil
}

func casesFromFlags(cmd *cobra.Command) ([]domain.Case, error) {
	if searchCaseFile != "" {
		return loadCases(searchCaseFile, searchCaseID)
	}
	if searchCaseID != "" {
		return nil, errors.New("--case-id requires --case")
	}

	c := domain.Case{
		ClaimType:    searchClaimType,
		Jurisdiction: searchJurisdiction,
		PropertyType: searchPropertyType,
	}
	if cmd.Flags().Changed("amount") {
		v := searchAmount
		c.ClaimAmount = &v
	}
	if searchDateFiled != "" {
		t, err := time.Parse("2006-01-02", searchDateFiled)
		if err != nil {
			return nil, fmt.Errorf("%w: --date-filed %q: want YYYY-MM-DD", domain.ErrInvalidCase, searchDateFiled)
		}
		c.DateFiled = &t
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return []domain.Case{c}, nil
}

// loadCases reads {"cases": [...]} from path, keeping only caseID when set.
func loadCases(path, caseID string) ([]domain.Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cases: %w", err)
	}
	var file struct {
		Cases []domain.Case `json:"cases"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		if errors.Is(err, domain.ErrInvalidCase) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidCase, path, err)
	}

	var out []domain.Case
	for _, c := range file.Cases {
		if caseID != "" && c.CaseID != caseID {
			continue
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("case %q: %w", c.CaseID, err)
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		if caseID != "" {
			return nil, fmt.Errorf("case %q not found in %s", caseID, path)
		}
		return nil, fmt.Errorf("no cases in %s", path)
	}
	return out, nil
}

func outputSearchJSON(w io.Writer, all []caseResults) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

var (
	bold       = color.New(color.Bold).SprintFunc()
	faint      = color.New(color.Faint).SprintFunc()
	highColor  = color.New(color.FgGreen, color.Bold).SprintFunc()
	medColor   = color.New(color.FgYellow, color.Bold).SprintFunc()
	lowColor   = color.New(color.FgRed).SprintFunc()
	quoteColor = color.New(color.FgCyan).SprintFunc()
)

func confidenceLabel(label string) string {
	switch label {
	case retrieval.ConfidenceHigh:
		return highColor(label)
	case retrieval.ConfidenceMedium:
		return medColor(label)
	default:
		return lowColor(label)
	}
}

func outputSearchText(w io.Writer, all []caseResults) {
	for i, cr := range all {
		if i > 0 {
			fmt.Fprintln(w)
		}
		title := cr.Query
		if cr.Case.CaseID != "" {
			title = cr.Case.CaseID + ": " + title
		}
		fmt.Fprintln(w, bold(title))

		if len(cr.Results) == 0 {
			fmt.Fprintln(w, "  No relevant passages found.")
			continue
		}
		for _, r := range cr.Results {
			fmt.Fprintf(w, "\n  [%d] %s  relevance %.3f  similarity %.3f\n",
				r.Rank, confidenceLabel(r.ConfidenceLabel), r.RelevanceScore, r.SimilarityScore)
			fmt.Fprintf(w, "      %s\n", faint(fmt.Sprintf("%s, %s", r.Citation.SourceDocumentID, r.Citation.LocationLabel)))
			fmt.Fprintf(w, "      %s\n", strings.ReplaceAll(r.Excerpt, "\n", " "))
			if s := highlight.Sentence(r.FullText, cr.Query); s != "" {
				fmt.Fprintf(w, "      > %s\n", quoteColor(strings.ReplaceAll(s, "\n", " ")))
			}
		}
	}
}
