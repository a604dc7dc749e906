package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/lab-portal-api/internal/app"
	"github.com/jwalitptl/lab-portal-api/internal/model"
	"github.com/jwalitptl/lab-portal-api/internal/service/pricing"
)

var (
	migrateBatchSize int
	migrateDryRun    bool
)

var migrateTariffsCmd = &cobra.Command{
	Use:   "migrate-tariffs",
	Short: "Copy legacy flat exam prices into the Base and referential tariffs",
	Long: `Creates the Base and referential tariffs when missing, inserts one price
row per exam and tariff (existing rows are left untouched) and binds the
public and referential references to them.

The run is not atomic. A run that fails part-way is repaired by running it
again.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		batch := migrateBatchSize
		if batch <= 0 {
			batch = cfg.Pricing.MigrationBatch
		}
		migrator := app.NewMigrator(*cfg, repos, nil, log)
		return runMigrate(cmd.Context(), cmd.OutOrStdout(), migrator, batch, migrateDryRun)
	},
}

func init() {
	migrateTariffsCmd.Flags().IntVar(&migrateBatchSize, "batch-size", 0, "exams per batch (defaults to pricing.migration_batch)")
	migrateTariffsCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "report what would change without writing")
}

type legacyMigrator interface {
	MigrateLegacyPrices(ctx context.Context, opts pricing.MigrationOptions) (*model.MigrationReport, error)
}

func runMigrate(ctx context.Context, out io.Writer, migrator legacyMigrator, batch int, dryRun bool) error {
	report, err := migrator.MigrateLegacyPrices(ctx, pricing.MigrationOptions{
		BatchSize: batch,
		DryRun:    dryRun,
		Progress: func(done, total int) {
			fmt.Fprintf(out, "processed %d/%d\n", done, total)
		},
	})
	if report != nil {
		printReport(out, report)
	}
	if err != nil {
		return fmt.Errorf("migration stopped: %w", err)
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d prices failed to migrate, run again to retry", report.Failed)
	}
	return nil
}

func printReport(out io.Writer, r *model.MigrationReport) {
	if r.DryRun {
		fmt.Fprintln(out, "dry run, nothing was written")
	}
	fmt.Fprintf(out, "exams: %d processed of %d\n", r.Processed, r.Total)
	fmt.Fprintf(out, "prices: %d created, %d skipped, %d failed\n", r.Created, r.Skipped, r.Failed)
	for _, name := range r.References {
		fmt.Fprintf(out, "bound reference %q\n", name)
	}
	for _, f := range r.Failures {
		fmt.Fprintf(out, "failed: %s (%s) / %s: %s\n", f.ExamName, f.ExamID, f.Tariff, f.Error)
	}
}
