package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"retailworks/internal/deploy"
	"retailworks/internal/ui"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check schema and table health of the target environment",
	Long: `Verify that every managed schema exists and holds the expected
number of tables. A schema with a missing table count is reported
unhealthy, which usually means a partial deployment.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
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

	ui.ShowHeader(fmt.Sprintf("RetailWorks Validation - %s (%s)", env.Name, env.Database))

	svc, err := connectSnowflake(cfg, env)
	if err != nil {
		return err
	}
	defer svc.Close()

	deployer := deploy.NewDeployer(svc, "", env, deploy.Options{})
	results, err := deployer.Validate(ctx)
	if err != nil {
		return err
	}

	deploy.RenderValidationReport(os.Stdout, results)
	if !deploy.AllHealthy(results) {
		return fmt.Errorf("validation found unhealthy schemas")
	}
	ui.ShowSuccess("All schemas are healthy")
	return nil
}
