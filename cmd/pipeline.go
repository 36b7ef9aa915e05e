package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bitegraph/internal/jsonl"
	"github.com/sells-group/bitegraph/internal/model"
	"github.com/sells-group/bitegraph/internal/pipeline"
)

var (
	pipelineSource              string
	pipelineOutDir              string
	pipelineUserID              string
	pipelineEntry               string
	pipelineAssumeFood          bool
	pipelineIncludeNonCompleted bool
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline <file>",
	Short: "Run the end-to-end pipeline on a raw export",
	Long:  "Parses, normalizes, classifies, maps, and enriches every item of an export, stores the interpretations, and writes normalized.jsonl, interpreted.jsonl, and mapped.jsonl to --out-dir.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "pipeline", envOptions{AssumeFood: pipelineAssumeFood})
		if err != nil {
			return err
		}
		defer env.Close()

		meta := model.Metadata{
			Source:              pipelineSource,
			UserID:              pipelineUserID,
			FilePath:            args[0],
			IncludeNonCompleted: pipelineIncludeNonCompleted,
		}
		if err := meta.Validate(); err != nil {
			return err
		}
		payload, err := newLoader(pipelineEntry).Load(ctx, args[0])
		if err != nil {
			return err
		}

		results, err := env.Runner.RunPipeline(ctx, payload.Data, meta)
		if err != nil {
			return err
		}
		if err := jsonl.WriteStages(pipelineOutDir, results); err != nil {
			return err
		}

		s := summarize(results)
		zap.L().Info("pipeline complete",
			zap.Int("items", s.Items),
			zap.Int("appended", s.Appended),
			zap.Int("failed", s.Failed),
			zap.String("out_dir", pipelineOutDir),
		)
		formatSummary(cmd.OutOrStdout(), s, pipelineOutDir)
		return nil
	},
}

// runSummary counts pipeline outcomes.
type runSummary struct {
	Items    int
	Appended int
	Matched  int
	Failed   int
}

func summarize(results []pipeline.Result) runSummary {
	s := runSummary{Items: len(results)}
	for _, r := range results {
		switch {
		case r.Err != nil:
			s.Failed++
			zap.L().Warn("pipeline item failed", zap.String("event_id", r.Item.EventID), zap.Error(r.Err))
			continue
		case r.Appended:
			s.Appended++
		}
		if r.Mapping != nil && r.Mapping.CanonicalFoodID != nil {
			s.Matched++
		}
	}
	return s
}

func formatSummary(w io.Writer, s runSummary, outDir string) {
	_, _ = fmt.Fprintf(w, "processed %d items: %d matched, %d new versions, %d failed\n",
		s.Items, s.Matched, s.Appended, s.Failed)
	_, _ = fmt.Fprintf(w, "stage files written to %s\n", outDir)
}

func init() {
	pipelineCmd.Flags().StringVar(&pipelineSource, "source", "", "source id of the export (see `bitegraph sources`)")
	pipelineCmd.Flags().StringVar(&pipelineOutDir, "out-dir", "", "directory for the stage JSONL files")
	pipelineCmd.Flags().StringVar(&pipelineUserID, "user-id", "", "user id attached to every item")
	pipelineCmd.Flags().StringVar(&pipelineEntry, "entry", "", "entry to read when the file is a ZIP archive")
	pipelineCmd.Flags().BoolVar(&pipelineAssumeFood, "assume-food", false, "treat unmatched priced items as prepared meals")
	pipelineCmd.Flags().BoolVar(&pipelineIncludeNonCompleted, "include-non-completed", false, "keep cancelled and in-progress orders")
	_ = pipelineCmd.MarkFlagRequired("source")
	_ = pipelineCmd.MarkFlagRequired("out-dir")
	rootCmd.AddCommand(pipelineCmd)
}
