package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/bitegraph/internal/model"
)

var historyJSON bool

var historyCmd = &cobra.Command{
	Use:   "history <event_id>",
	Short: "Show every stored interpretation version of an event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("history"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		versions, err := st.GetHistory(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "history")
		}
		if len(versions) == 0 {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "No interpretations found for %s.\n", args[0])
			return nil
		}

		if historyJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(versions)
		}
		formatHistory(cmd.OutOrStdout(), versions)
		return nil
	},
}

// formatHistory writes a tabular list of versions to out.
func formatHistory(out io.Writer, versions []model.FoodEventInterpretation) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "VERSION\tVERTICAL\tKIND\tCANONICAL\tCONFIDENCE\tPROVENANCE\tUPDATED")
	for _, v := range versions {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.3f\t%s\t%s\n",
			v.Version,
			v.Vertical,
			orDash(string(v.FoodKind)),
			orDash(model.Deref(v.CanonicalFoodID)),
			v.Confidence,
			v.Provenance,
			v.UpdatedAt.UTC().Format(time.RFC3339),
		)
	}
	_ = w.Flush()

	latest := versions[len(versions)-1]
	if len(latest.Reasons) > 0 {
		_, _ = fmt.Fprintf(out, "\nreasons (v%d): %s\n", latest.Version, strings.Join(latest.Reasons, ", "))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print versions as JSON")
	rootCmd.AddCommand(historyCmd)
}
