package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove every entry from the index",
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	n, err := a.Service.Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Fprintln(out, "Index is already empty.")
		return nil
	}
	if !resetYes {
		fmt.Fprintf(out, "Collection contains %d chunks.\n", n)
		ok, err := confirm(cmd, "Reset collection?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}
	if err := a.Service.Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "Index reset (%d entries removed).\n", n)
	return nil
}
