package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"retailworks/internal/etl"
	"retailworks/internal/ui"
)

var etlCmd = &cobra.Command{
	Use:   "etl",
	Short: "Run warehouse ETL pipelines",
}

var etlRunCmd = &cobra.Command{
	Use:   "run [table...]",
	Short: "Run the staging-to-analytics ETL pipeline",
	Long: `Cleanse raw staging rows into the STG_*_CLEAN tables and merge
current source rows into the analytics dimensions.

With no arguments the pipeline runs for customers and products.`,
	RunE: runEtl,
}

func init() {
	rootCmd.AddCommand(etlCmd)
	etlCmd.AddCommand(etlRunCmd)
}

func runEtl(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	env, err := resolveEnvironment(cfg)
	if err != nil {
		return err
	}

	tables := args
	if len(tables) == 0 {
		tables = []string{"customers", "products"}
	}

	ui.ShowHeader(fmt.Sprintf("RetailWorks ETL - %s (%s)", env.Name, env.Database))

	svc, err := connectSnowflake(cfg, env)
	if err != nil {
		return err
	}
	defer svc.Close()

	pipeline := etl.NewPipeline(svc, etl.Config{
		Database:     env.Database,
		SchemaSuffix: env.SchemaSuffix,
	})

	result, err := pipeline.Run(ctx, tables)
	if result != nil {
		for _, tr := range result.Tables {
			if tr.Err != nil {
				ui.ShowError(fmt.Errorf("%s: %w", tr.Table, tr.Err))
				continue
			}
			ui.ShowSuccess(fmt.Sprintf("%s: %d extracted, %d loaded, %d rejected",
				tr.Table, tr.Extracted, tr.Loaded, tr.Invalid))
		}
	}
	if err != nil {
		return err
	}

	ui.ShowInfo(fmt.Sprintf("Dimension updates: customer %d rows, product %d rows",
		result.Dimensions.CustomerDimRows, result.Dimensions.ProductDimRows))

	if result.Failed() {
		return fmt.Errorf("ETL pipeline completed with table failures")
	}
	ui.ShowSuccess("ETL pipeline completed successfully")
	return nil
}
