package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/bitegraph/internal/adapter/builtin"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the registered source adapters",
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg := builtin.Default()
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ORDER\tSOURCE")
		for i, a := range reg.All() {
			_, _ = fmt.Fprintf(w, "%d\t%s\n", i+1, a.SourceID())
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
