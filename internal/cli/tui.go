package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"caserag/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse results interactively",
	Long: `Launch the interactive results browser.

Type a case as key=value pairs, for example
  claim_type=Flood jurisdiction=Florida amount=50000 property_type=Residential
and add source=<document> to search a single document.

Controls:
  Enter    - Search
  ↑/↓      - Previous / next result
  PgUp/PgDn - Scroll the result
  Esc      - Quit`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.Service.Stats(cmd.Context())
	if err != nil {
		return err
	}
	summary := fmt.Sprintf("%d chunks indexed, embedder %s", st.Count, st.Embedder)
	if st.Count == 0 {
		summary = "Index is empty: run 'caserag ingest' first."
	}

	m := tui.New(cmd.Context(), a.Service.Retriever(), a.Config.Retrieval.TopK, summary)
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
