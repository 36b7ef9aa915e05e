package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bitegraph/internal/config"
)

var (
	cfg *config.Config

	configFile   string
	templatesDir string
)

var rootCmd = &cobra.Command{
	Use:   "bitegraph",
	Short: "Food purchase interpretation pipeline",
	Long:  "Parses food delivery and grocery exports, classifies and maps each line item to canonical foods and ingredient profiles, and keeps a versioned history of every interpretation.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadFile(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cmd.Root().PersistentFlags().Changed("templates-dir") {
			cfg.Templates.Dir = templatesDir
		}
		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./bitegraph.yaml)")
	rootCmd.PersistentFlags().StringVar(&templatesDir, "templates-dir", "", "reference data directory (overrides templates.dir)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
