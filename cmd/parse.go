package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bitegraph/internal/adapter/builtin"
	"github.com/sells-group/bitegraph/internal/jsonl"
	"github.com/sells-group/bitegraph/internal/model"
)

var (
	parseSource              string
	parseOut                 string
	parseUserID              string
	parseEntry               string
	parseIncludeNonCompleted bool
)

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse a raw export into normalized JSONL",
	Long:  "Parses a local file, http(s) URL, or ZIP data download with the adapter for --source and writes one purchase line item per line.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		meta := model.Metadata{
			Source:              parseSource,
			UserID:              parseUserID,
			FilePath:            args[0],
			IncludeNonCompleted: parseIncludeNonCompleted,
		}
		items, err := parseLocation(cmd.Context(), args[0], parseEntry, meta)
		if err != nil {
			return err
		}
		if err := jsonl.WriteFile(parseOut, items); err != nil {
			return err
		}

		zap.L().Info("parse complete",
			zap.String("source", parseSource),
			zap.Int("items", len(items)),
			zap.String("out", parseOut),
		)
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %d items to %s\n", len(items), parseOut)
		return nil
	},
}

// parseLocation loads location and parses it with the adapter meta selects.
func parseLocation(ctx context.Context, location, entry string, meta model.Metadata) ([]model.PurchaseLineItem, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	payload, err := newLoader(entry).Load(ctx, location)
	if err != nil {
		return nil, err
	}
	a, err := builtin.Default().Find(meta)
	if err != nil {
		return nil, err
	}
	return a.Parse(payload.Data, meta)
}

func init() {
	parseCmd.Flags().StringVar(&parseSource, "source", "", "source id of the export (see `bitegraph sources`)")
	parseCmd.Flags().StringVar(&parseOut, "out", "", "output JSONL path")
	parseCmd.Flags().StringVar(&parseUserID, "user-id", "", "user id attached to every item")
	parseCmd.Flags().StringVar(&parseEntry, "entry", "", "entry to read when the file is a ZIP archive")
	parseCmd.Flags().BoolVar(&parseIncludeNonCompleted, "include-non-completed", false, "keep cancelled and in-progress orders")
	_ = parseCmd.MarkFlagRequired("source")
	_ = parseCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(parseCmd)
}
