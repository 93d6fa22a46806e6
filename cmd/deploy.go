package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"retailworks/internal/deploy"
	"retailworks/internal/loader"
	"retailworks/internal/snowflake"
	"retailworks/internal/ui"
	"retailworks/pkg/models"
)

var (
	deploySchema      string
	deploySuffix      string
	deployDryRun      bool
	deployContinue    bool
	deployValidate    bool
	deployProvision   bool
	deploySkipConfirm bool
	deploySync        bool
	deploySampleData  bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy [schemas|tables|views|procedures|all]",
	Short: "Deploy warehouse DDL to Snowflake",
	Long: `Deploy DDL scripts to the target environment.

Targets:
  schemas     create the database and its schemas
  tables      create the tables of one schema (--schema) or all schemas
  views       deploy every script under views/
  procedures  deploy every script under procedures/
  all         schemas, tables, views, procedures and the dimensional
              seed scripts under dml/; --load-sample-data then loads
              the sample CSV datasets`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"schemas", "tables", "views", "procedures", "all"},
	RunE:      runDeploy,
}

func init() {
	rootCmd.AddCommand(deployCmd)

	deployCmd.Flags().StringVarP(&deploySchema, "schema", "s", "", "limit table deployment to one schema")
	deployCmd.Flags().StringVar(&deploySuffix, "schema-suffix", "", "override the environment's schema suffix")
	deployCmd.Flags().BoolVarP(&deployDryRun, "dry-run", "d", false, "show what would be deployed without executing")
	deployCmd.Flags().BoolVar(&deployContinue, "continue-on-error", false, "keep executing after a failed statement")
	deployCmd.Flags().BoolVar(&deployValidate, "validate", false, "validate schema health after deployment")
	deployCmd.Flags().BoolVar(&deployProvision, "provision", false, "create environment roles and warehouse first")
	deployCmd.Flags().BoolVarP(&deploySkipConfirm, "yes", "y", false, "skip the confirmation prompt")
	deployCmd.Flags().BoolVar(&deploySync, "sync", false, "sync the DDL repository before deploying")
	deployCmd.Flags().BoolVar(&deploySampleData, "load-sample-data", false, "load sample CSV datasets after a full deployment")
	bindFlags(deployCmd.Flags())
}

func runDeploy(cmd *cobra.Command, args []string) error {
	target := args[0]
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
	if cmd.Flags().Changed("schema-suffix") {
		env.SchemaSuffix = deploySuffix
	}
	dryRun := deployDryRun || cfg.Deployment.DryRun

	ui.ShowHeader(fmt.Sprintf("RetailWorks Deployment - %s (%s)", env.Name, env.Database))

	ddlRoot, err := resolveDDLRoot(ctx, cfg, deploySync)
	if err != nil {
		return err
	}

	if dryRun {
		ui.ShowWarning("Running in dry-run mode, no changes will be applied")
	} else if env.Name == "prod" && !deploySkipConfirm {
		ok, err := ui.Confirm(fmt.Sprintf("Deploy %s to PRODUCTION (%s)?", target, env.Database))
		if err != nil || !ok {
			ui.ShowWarning("Deployment cancelled")
			return nil
		}
	}

	svc, err := connectSnowflake(cfg, env)
	if err != nil {
		return err
	}
	defer svc.Close()

	continueOnError := deployContinue || cfg.Deployment.ContinueOnError
	deployer := deploy.NewDeployer(svc, ddlRoot, env, deploy.Options{
		ContinueOnError: continueOnError,
		DryRun:          dryRun,
	})

	if deployProvision {
		ui.ShowInfo("Provisioning warehouse and roles")
		if err := deployer.CreateWarehouse(ctx); err != nil {
			return err
		}
		if err := deployer.CreateRoles(ctx); err != nil {
			return err
		}
	}

	var results []deploy.SchemaResult

	run := func(name string, fn func() (*deploy.SchemaResult, error)) error {
		res, err := fn()
		if res != nil {
			results = append(results, *res)
		}
		ui.StepResult(name, err)
		return err
	}

	switch target {
	case "schemas":
		err = run("Create schemas", func() (*deploy.SchemaResult, error) {
			return deployer.DeploySchemas(ctx)
		})
	case "tables":
		if deploySchema != "" {
			err = run("Deploy tables: "+deploySchema, func() (*deploy.SchemaResult, error) {
				return deployer.DeployTables(ctx, deploySchema)
			})
		} else {
			results = append(results, deployer.DeployAllTables(ctx)...)
		}
	case "views", "procedures":
		var dirResults []deploy.SchemaResult
		dirResults, err = deployer.DeployDirectory(ctx, target)
		results = append(results, dirResults...)
	case "all":
		var envResults []deploy.SchemaResult
		envResults, err = deployer.DeployEnvironment(ctx)
		results = append(results, envResults...)
	default:
		return fmt.Errorf("unknown deployment target: %s", target)
	}

	deploy.RenderDeploymentSummary(os.Stdout, results)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil || r.Failed > 0 {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("deployment completed with %d failed step(s)", failed)
	}

	if target == "all" && deploySampleData {
		if dryRun {
			ui.ShowWarning("Skipping sample data load in dry-run mode")
		} else if err := loadSampleData(ctx, svc, cfg, env); err != nil {
			return err
		}
	}

	if deployValidate || cfg.Deployment.Validate {
		validations, err := deployer.Validate(ctx)
		if err != nil {
			return err
		}
		deploy.RenderValidationReport(os.Stdout, validations)
		if !deploy.AllHealthy(validations) {
			return fmt.Errorf("post-deployment validation found unhealthy schemas")
		}
	}

	ui.ShowSuccess("Deployment completed successfully")
	return nil
}

// loadSampleData pushes the sample CSV datasets into the raw staging
// tables after a full environment deployment.
func loadSampleData(ctx context.Context, svc *snowflake.Service, cfg *models.Config, env models.Environment) error {
	if cfg.Datasets.Directory == "" {
		return fmt.Errorf("no dataset directory configured, set datasets.directory to use --load-sample-data")
	}

	ui.ShowInfo("Loading sample datasets")
	l := loader.NewLoader(svc, loader.Options{
		Directory: cfg.Datasets.Directory,
		Database:  env.Database,
		Schema:    deploy.SchemaFullName("staging", env.SchemaSuffix),
		Stage:     cfg.Datasets.Stage,
		OnError:   cfg.Datasets.OnError,
	})

	failed := 0
	for _, r := range l.LoadAll(ctx) {
		if r.Err != nil {
			failed++
			ui.ShowError(fmt.Errorf("%s: %w", r.Dataset, r.Err))
			continue
		}
		ui.ShowSuccess(fmt.Sprintf("%s: %d rows loaded", r.Dataset, r.Loaded))
	}
	if failed > 0 {
		return fmt.Errorf("sample data load completed with %d failed dataset(s)", failed)
	}
	return nil
}
