package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/socal-tree-directory/listing-import/internal/listing"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a scraped listings export (.csv or .xlsx)",
	Long: "Reads a Google Maps style export, normalizes and scores every row, dedupes by identity, " +
		"writes import_unique.json, import_publishable.json and import_dupes.json, then upserts the " +
		"publishable listings in batches. Manually curated and claimed listings are never overwritten.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := importFlags{}
		opts.dryRun, _ = cmd.Flags().GetBool("dry-run")
		opts.migrate, _ = cmd.Flags().GetBool("migrate")
		opts.reportDir, _ = cmd.Flags().GetString("report-dir")
		if cmd.Flags().Changed("min-score") {
			n, _ := cmd.Flags().GetInt("min-score")
			opts.minScore = &n
		}

		res, err := runImport(cmd.Context(), args[0], opts)
		if res != nil {
			formatImportSummary(os.Stdout, res)
		}
		return err
	},
}

type importFlags struct {
	dryRun    bool
	migrate   bool
	reportDir string
	minScore  *int
}

func init() {
	importCmd.Flags().Bool("dry-run", false, "write reports only; skip the database entirely")
	importCmd.Flags().Bool("migrate", false, "apply the schema before importing")
	importCmd.Flags().String("report-dir", "", "directory for the JSON reports (overrides import.report_dir)")
	importCmd.Flags().Int("min-score", 6, "publish threshold (overrides import.min_score)")
	rootCmd.AddCommand(importCmd)
}

func runImport(ctx context.Context, path string, flags importFlags) (*listing.RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrapf(err, "import: input file %s", path)
	}

	if flags.reportDir != "" {
		cfg.Import.ReportDir = flags.reportDir
	}
	if flags.minScore != nil {
		cfg.Import.MinScore = *flags.minScore
	}
	validate := cfg.Validate
	if flags.dryRun {
		validate = cfg.ValidateImport
	}
	if err := validate(); err != nil {
		return nil, eris.Wrap(err, "import: invalid config")
	}

	cities, err := listing.LoadCityTable(cfg.Import.CityTable)
	if err != nil {
		return nil, eris.Wrap(err, "import")
	}

	p := listing.New(nil, listing.Options{
		MinScore:         cfg.Import.MinScore,
		BatchSize:        cfg.Import.BatchSize,
		Workers:          cfg.Import.Workers,
		ReportDir:        cfg.Import.ReportDir,
		DryRun:           flags.dryRun,
		BatchesPerSecond: cfg.Import.BatchesPerSecond,
	})
	p.Normalizer = listing.NewNormalizer(cities, cfg.Import.Source)

	if !flags.dryRun {
		st, err := initStore(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "import: open store")
		}
		defer st.Close() //nolint:errcheck

		if flags.migrate {
			if err := st.Migrate(ctx); err != nil {
				return nil, eris.Wrap(err, "import: migrate")
			}
		}
		p.Writer = st
		p.Runs = st
	}

	zap.L().Info("import: starting",
		zap.String("file", path),
		zap.String("source", cfg.Import.Source),
		zap.Int("min_score", cfg.Import.MinScore),
		zap.Bool("dry_run", flags.dryRun),
	)
	return p.Run(ctx, path)
}

// formatImportSummary writes the run counts to out.
func formatImportSummary(out io.Writer, res *listing.RunResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", truncateID(res.RunID))
	_, _ = fmt.Fprintf(w, "Parsed:\t%d\n", res.Parsed)
	if res.Malformed > 0 {
		_, _ = fmt.Fprintf(w, "  Malformed:\t%d\n", res.Malformed)
	}
	_, _ = fmt.Fprintf(w, "Skipped:\t%d\n", res.Skipped)
	_, _ = fmt.Fprintf(w, "Unique:\t%d\n", res.Unique)
	_, _ = fmt.Fprintf(w, "Publishable:\t%d\n", res.Publishable)
	_, _ = fmt.Fprintf(w, "Duplicates:\t%d\n", res.Duplicates)
	if res.DryRun {
		_, _ = fmt.Fprintln(w, "Upserted:\tdry run")
	} else {
		_, _ = fmt.Fprintf(w, "Upserted:\t%d (%d batches, on %s)\n", res.Upserted, res.Batches, res.Mode)
	}
	if len(res.ReportFiles) > 0 {
		_, _ = fmt.Fprintf(w, "Reports:\t%s\n", strings.Join(res.ReportFiles, ", "))
	}
	if !res.FinishedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "Elapsed:\t%s\n", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	}
	_ = w.Flush()
}
