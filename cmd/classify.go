package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bitegraph/internal/classify"
	"github.com/sells-group/bitegraph/internal/jsonl"
	"github.com/sells-group/bitegraph/internal/model"
	"github.com/sells-group/bitegraph/internal/normalize"
)

var (
	classifyOut        string
	classifyAssumeFood bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify <jsonl>",
	Short: "Classify normalized JSONL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := jsonl.ReadFile[model.PurchaseLineItem](args[0])
		if err != nil {
			return err
		}

		holder, err := loadTemplates()
		if err != nil {
			return err
		}
		snap := holder.Current()
		norm := normalize.New(snap)
		classifier := classify.New(snap, classifierOptions(classifyAssumeFood))

		records := make([]jsonl.Interpreted, 0, len(items))
		for _, raw := range items {
			item := norm.Normalize(raw)
			cls := classifier.Classify(item)
			records = append(records, jsonl.Interpreted{Item: item, Classification: &cls})
		}
		if err := jsonl.WriteFile(classifyOut, records); err != nil {
			return err
		}

		zap.L().Info("classify complete",
			zap.Int("items", len(records)),
			zap.String("template_version", snap.Version),
			zap.String("out", classifyOut),
		)
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "classified %d items into %s\n", len(records), classifyOut)
		return nil
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifyOut, "out", "", "output JSONL path")
	classifyCmd.Flags().BoolVar(&classifyAssumeFood, "assume-food", false, "treat unmatched priced items as prepared meals")
	_ = classifyCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(classifyCmd)
}
