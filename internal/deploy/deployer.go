package deploy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"retailworks/internal/common"
	"retailworks/internal/snowflake"
	"retailworks/pkg/errors"
	"retailworks/pkg/models"
)

// Executor is the subset of the Snowflake service the deployer needs
type Executor interface {
	ExecuteScript(ctx context.Context, script string, opts snowflake.ScriptOptions) ([]snowflake.StatementResult, error)
	ExecuteStatement(ctx context.Context, stmt string) error
	ShowNames(ctx context.Context, query string) ([]string, error)
}

// ManagedSchemas are the warehouse schemas this toolkit deploys, without
// environment suffix
var ManagedSchemas = []string{"sales", "products", "customers", "hr", "analytics", "staging"}

// schemaTableFiles maps a schema name to its table DDL file
var schemaTableFiles = map[string]string{
	"sales":     "sales_schema_tables.sql",
	"products":  "products_schema_tables.sql",
	"customers": "customers_schema_tables.sql",
	"hr":        "hr_schema_tables.sql",
	"analytics": "analytics_schema_tables.sql",
	"staging":   "staging_schema_tables.sql",
}

// Options controls deployment behavior
type Options struct {
	ContinueOnError bool
	DryRun          bool
}

// Deployer deploys DDL sources to a target environment
type Deployer struct {
	executor Executor
	ddlRoot  string
	env      models.Environment
	opts     Options
}

// NewDeployer creates a deployer for the given environment
func NewDeployer(executor Executor, ddlRoot string, env models.Environment, opts Options) *Deployer {
	return &Deployer{executor: executor, ddlRoot: ddlRoot, env: env, opts: opts}
}

// SchemaResult summarizes the deployment of one DDL file
type SchemaResult struct {
	Name       string
	Statements int
	Failed     int
	Err        error
}

// DeploySchemas runs the database and schema bootstrap script. Bootstrap
// failures are not skippable: everything later depends on the schemas.
func (d *Deployer) DeploySchemas(ctx context.Context) (*SchemaResult, error) {
	script, err := d.readDDL(filepath.Join("schemas", "01_create_database.sql"))
	if err != nil {
		return nil, err
	}

	return d.runScript(ctx, "schemas", script, false)
}

// DeployTables deploys the table DDL for one schema. Individual statement
// failures are logged and skipped when ContinueOnError is set, mirroring
// re-runs over partially deployed schemas.
func (d *Deployer) DeployTables(ctx context.Context, schemaName string) (*SchemaResult, error) {
	fileName, ok := schemaTableFiles[strings.ToLower(schemaName)]
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("Unknown schema: %s", schemaName)).
			WithSuggestions(fmt.Sprintf("Valid schemas: %s", strings.Join(ManagedSchemas, ", ")))
	}

	script, err := d.readDDL(filepath.Join("tables", fileName))
	if err != nil {
		return nil, err
	}

	return d.runScript(ctx, schemaName, script, d.opts.ContinueOnError)
}

// DeployAllTables deploys table DDL for every managed schema and returns
// per-schema results. A failing schema does not stop the others.
func (d *Deployer) DeployAllTables(ctx context.Context) []SchemaResult {
	results := make([]SchemaResult, 0, len(ManagedSchemas))
	for _, schema := range ManagedSchemas {
		result, err := d.DeployTables(ctx, schema)
		if err != nil {
			results = append(results, SchemaResult{Name: schema, Err: err})
			continue
		}
		results = append(results, *result)
	}
	return results
}

// DeployDirectory executes every SQL file in a DDL subdirectory in
// lexical order (views, procedures).
func (d *Deployer) DeployDirectory(ctx context.Context, subdir string) ([]SchemaResult, error) {
	dir, err := common.ValidatePath(filepath.Join(d.ddlRoot, subdir), d.ddlRoot)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFileOperation, "Invalid DDL directory")
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to list DDL files")
	}
	sort.Strings(files)

	var results []SchemaResult
	for _, file := range files {
		data, err := os.ReadFile(file) // #nosec G304 - path validated above
		if err != nil {
			return results, errors.Wrap(err, errors.ErrCodeFileNotFound,
				fmt.Sprintf("Failed to read %s", filepath.Base(file)))
		}

		script := ApplyEnvironment(string(data), d.env.Database, d.env.SchemaSuffix)
		result, err := d.runScript(ctx, filepath.Base(file), script, d.opts.ContinueOnError)
		if err != nil {
			results = append(results, SchemaResult{Name: filepath.Base(file), Err: err})
			continue
		}
		results = append(results, *result)
	}
	return results, nil
}

// environmentDirs are the DDL subdirectories a full deployment runs
// after the table DDL, in order. dml holds the dimensional seed
// scripts and may be absent.
var environmentDirs = []string{"views", "procedures", "dml"}

// DeployEnvironment provisions a complete environment: schemas, then
// tables for every managed schema, then views, procedures and the
// dimensional seed scripts. A failed schema bootstrap aborts the run;
// later steps record their failures and continue.
func (d *Deployer) DeployEnvironment(ctx context.Context) ([]SchemaResult, error) {
	var results []SchemaResult

	schemas, err := d.DeploySchemas(ctx)
	if schemas != nil {
		results = append(results, *schemas)
	}
	if err != nil {
		return results, err
	}

	results = append(results, d.DeployAllTables(ctx)...)

	for _, dir := range environmentDirs {
		dirResults, err := d.DeployDirectory(ctx, dir)
		results = append(results, dirResults...)
		if err != nil {
			results = append(results, SchemaResult{Name: dir, Err: err})
		}
	}
	return results, nil
}

// CreateRoles provisions the environment's roles and grants
func (d *Deployer) CreateRoles(ctx context.Context) error {
	for _, role := range d.env.Roles {
		statements := []string{
			fmt.Sprintf("CREATE ROLE IF NOT EXISTS %s", role),
			fmt.Sprintf("GRANT USAGE ON DATABASE %s TO ROLE %s", d.env.Database, role),
		}
		for _, stmt := range statements {
			if err := d.execute(ctx, stmt); err != nil {
				return errors.Wrap(err, errors.ErrCodeDeploymentFailed,
					fmt.Sprintf("Failed to provision role %s", role))
			}
		}

		for _, schema := range ManagedSchemas {
			full := SchemaFullName(schema, d.env.SchemaSuffix)
			grant := d.grantForRole(role, full)
			if err := d.execute(ctx, grant); err != nil {
				return errors.Wrap(err, errors.ErrCodeDeploymentFailed,
					fmt.Sprintf("Failed to grant %s on %s", role, full))
			}
		}
	}
	return nil
}

// grantForRole picks the privilege set by role naming convention:
// admins get everything, developers and testers read/write, everyone
// else usage only.
func (d *Deployer) grantForRole(role, schema string) string {
	target := fmt.Sprintf("SCHEMA %s.%s TO ROLE %s", d.env.Database, schema, role)
	switch {
	case strings.Contains(role, "ADMIN"):
		return fmt.Sprintf("GRANT ALL PRIVILEGES ON %s", target)
	case strings.Contains(role, "DEVELOPER"), strings.Contains(role, "TESTER"):
		return fmt.Sprintf("GRANT USAGE, CREATE TABLE, CREATE VIEW, CREATE PROCEDURE ON %s", target)
	default:
		return fmt.Sprintf("GRANT USAGE ON %s", target)
	}
}

// CreateWarehouse provisions the environment's compute warehouse
func (d *Deployer) CreateWarehouse(ctx context.Context) error {
	wh := d.env.Warehouse
	if wh.Name == "" {
		return errors.New(errors.ErrCodeConfigInvalid, "Environment has no warehouse configured").
			WithContext("environment", d.env.Name)
	}

	stmt := fmt.Sprintf(`CREATE WAREHOUSE IF NOT EXISTS %s
WITH WAREHOUSE_SIZE = '%s'
AUTO_SUSPEND = %d
AUTO_RESUME = %v
INITIALLY_SUSPENDED = TRUE
COMMENT = 'RetailWorks %s environment warehouse'`,
		wh.Name, wh.Size, wh.AutoSuspend, wh.AutoResume, strings.ToUpper(d.env.Name))

	if err := d.execute(ctx, stmt); err != nil {
		return errors.Wrap(err, errors.ErrCodeDeploymentFailed,
			fmt.Sprintf("Failed to create warehouse %s", wh.Name))
	}
	return nil
}

func (d *Deployer) readDDL(relative string) (string, error) {
	path, err := common.ValidatePath(filepath.Join(d.ddlRoot, relative), d.ddlRoot)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeFileOperation, "Invalid DDL path")
	}
	if !common.FileExists(path) {
		return "", errors.New(errors.ErrCodeFileNotFound,
			fmt.Sprintf("DDL file not found: %s", relative)).
			WithContext("ddl_root", d.ddlRoot)
	}

	data, err := os.ReadFile(path) // #nosec G304 - path validated above
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeFileOperation,
			fmt.Sprintf("Failed to read %s", relative))
	}

	return ApplyEnvironment(string(data), d.env.Database, d.env.SchemaSuffix), nil
}

func (d *Deployer) runScript(ctx context.Context, name, script string, continueOnError bool) (*SchemaResult, error) {
	if d.opts.DryRun {
		return &SchemaResult{Name: name}, nil
	}

	statements, err := d.executor.ExecuteScript(ctx, script, snowflake.ScriptOptions{
		Database:        d.env.Database,
		ContinueOnError: continueOnError,
	})

	result := &SchemaResult{Name: name, Statements: len(statements)}
	for _, stmt := range statements {
		if stmt.Err != nil {
			result.Failed++
		}
	}

	if err != nil && !continueOnError {
		result.Err = err
		return result, errors.Wrap(err, errors.ErrCodeDeploymentFailed,
			fmt.Sprintf("Deployment of %s failed", name))
	}
	return result, nil
}

func (d *Deployer) execute(ctx context.Context, stmt string) error {
	if d.opts.DryRun {
		return nil
	}
	return d.executor.ExecuteStatement(ctx, stmt)
}
