package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"caserag/internal/domain"
	"caserag/internal/service"
)

var (
	ingestReset     bool
	ingestYes       bool
	ingestBatchSize int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [paths...]",
	Short: "Index guideline documents",
	Long: `Loads .txt and .md documents from files, directories or glob patterns,
splits them into pages and chunks, embeds the chunks and writes them to the
vector index. Without arguments the configured documents directory is used.

Re-ingesting a document overwrites its chunks. Use --reset to empty the index
first.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestReset, "reset", false, "empty the index before writing")
	ingestCmd.Flags().BoolVarP(&ingestYes, "yes", "y", false, "do not ask before resetting")
	ingestCmd.Flags().IntVar(&ingestBatchSize, "batch-size", 0, "chunks per embedding batch (default from config)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	paths := args
	if len(paths) == 0 {
		paths = []string{a.Config.Ingest.DocumentsDir}
	}
	loaded, err := a.Loader.Load(paths)
	if err != nil {
		return fmt.Errorf("failed to load documents: %w", err)
	}
	if len(loaded.Skipped) > 0 {
		fmt.Fprintf(out, "Skipped %d files: %s\n", len(loaded.Skipped), strings.Join(loaded.Skipped, ", "))
	}
	if len(loaded.Pages) == 0 {
		return fmt.Errorf("no documents loaded from %s", strings.Join(paths, ", "))
	}
	fmt.Fprintf(out, "Loaded %d documents with %d pages\n", len(loaded.Documents), len(loaded.Pages))

	reset := ingestReset
	if reset && !ingestYes {
		n, err := a.Service.Count(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			fmt.Fprintf(out, "Collection already contains %d chunks.\n", n)
			ok, err := confirm(cmd, "Reset collection?")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(out, "Keeping existing entries.")
				reset = false
			}
		}
	}

	batchSize := ingestBatchSize
	if batchSize == 0 {
		batchSize = a.Config.Ingest.BatchSize
	}
	report, err := a.Service.Ingest(ctx, loaded.Pages, service.IngestOptions{Reset: reset, BatchSize: batchSize})
	var partial *domain.IngestError
	if errors.As(err, &partial) {
		printReport(out, "Ingestion stopped", report)
		fmt.Fprintf(out, "Batches written before the failure: %v\n", partial.Succeeded)
		return err
	}
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	printReport(out, "Ingestion complete", report)
	return nil
}

func printReport(w io.Writer, title string, r service.IngestReport) {
	fmt.Fprintln(w, title)
	fmt.Fprintf(w, "  Documents: %d\n", r.Documents)
	fmt.Fprintf(w, "  Pages:     %d\n", r.Pages)
	fmt.Fprintf(w, "  Chunks:    %d\n", r.Chunks)
	fmt.Fprintf(w, "  Batches:   %d\n", r.Batches)
	if r.Reset {
		fmt.Fprintf(w, "  Reset:     %d entries removed\n", r.PreviousCount)
	}
	fmt.Fprintf(w, "  Upserted:  %d\n", r.Upserted)
	fmt.Fprintf(w, "  Total in index: %d (was %d)\n", r.FinalCount, r.PreviousCount)
}
