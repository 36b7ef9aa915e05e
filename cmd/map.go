package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bitegraph/internal/enrich"
	"github.com/sells-group/bitegraph/internal/jsonl"
	"github.com/sells-group/bitegraph/internal/mapper"
)

var (
	mapOut    string
	mapEnrich bool
)

var mapCmd = &cobra.Command{
	Use:   "map <jsonl>",
	Short: "Map classified JSONL to canonical foods",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "open %s", args[0])
		}
		defer f.Close() //nolint:errcheck

		recs, err := jsonl.ReadInterpreted(f)
		if err != nil {
			return err
		}

		holder, err := loadTemplates()
		if err != nil {
			return err
		}
		snap := holder.Current()
		m := mapper.New(snap, mapperOptions())
		e := enrich.New(snap)

		records := make([]jsonl.Mapped, 0, len(recs))
		matched := 0
		for _, rec := range recs {
			mapping := m.Map(rec.Item, *rec.Classification)
			if mapping.CanonicalFoodID != nil {
				matched++
			}
			out := jsonl.Mapped{
				Item:           rec.Item,
				Classification: rec.Classification,
				Mapping:        &mapping,
			}
			if mapEnrich {
				out.Enrichment = e.Enrich(rec.Item, *rec.Classification, mapping)
			}
			records = append(records, out)
		}
		if err := jsonl.WriteFile(mapOut, records); err != nil {
			return err
		}

		zap.L().Info("map complete",
			zap.Int("items", len(records)),
			zap.Int("matched", matched),
			zap.String("template_version", snap.Version),
		)
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "mapped %d items (%d matched) into %s\n", len(records), matched, mapOut)
		return nil
	},
}

func init() {
	mapCmd.Flags().StringVar(&mapOut, "out", "", "output JSONL path")
	mapCmd.Flags().BoolVar(&mapEnrich, "enrich", false, "attach nutrition and flavor estimates")
	_ = mapCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(mapCmd)
}
