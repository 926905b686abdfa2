package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/socal-tree-directory/listing-import/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "listing-import",
	Short: "Import scraped business listings into the directory",
	Long:  "Normalizes a scraped listings export, scores and dedupes it, writes audit reports, and upserts the publishable listings into the businesses table.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
