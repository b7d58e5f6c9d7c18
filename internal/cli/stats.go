package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"caserag/internal/config"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.Service.Stats(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	store := a.Config.VectorStore
	fmt.Fprintf(out, "Chunks:     %d\n", st.Count)
	switch store.Type {
	case config.StoreSQLite:
		fmt.Fprintf(out, "Store:      sqlite (%s)\n", store.SQLite.Path)
	case config.StoreQdrant:
		fmt.Fprintf(out, "Store:      qdrant (%s:%d/%s)\n", store.Qdrant.Host, store.Qdrant.Port, store.Qdrant.Collection)
	default:
		fmt.Fprintf(out, "Store:      %s\n", store.Type)
	}
	if err := a.Service.Ping(cmd.Context()); err != nil {
		fmt.Fprintf(out, "Embedder:   %s (unreachable: %v)\n", st.Embedder, err)
	} else {
		fmt.Fprintf(out, "Embedder:   %s\n", st.Embedder)
	}
	if st.Dimensions > 0 {
		fmt.Fprintf(out, "Dimensions: %d\n", st.Dimensions)
	} else {
		fmt.Fprintln(out, "Dimensions: unknown until first use")
	}
	return nil
}
