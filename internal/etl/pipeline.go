package etl

import (
	"context"
	"fmt"
	"strings"

	"retailworks/internal/deploy"
	"retailworks/pkg/errors"
)

// Executor is the subset of the snowflake service the pipeline uses.
type Executor interface {
	ExecuteStatement(ctx context.Context, stmt string) error
	ExecuteReturning(ctx context.Context, stmt string) (int64, error)
	ExecuteWithArgs(ctx context.Context, stmt string, args ...interface{}) error
	QueryCount(ctx context.Context, query string) (int, error)
}

// Config identifies the environment the pipeline runs against.
type Config struct {
	Database     string
	SchemaSuffix string
}

// Pipeline transforms raw staging rows into cleansed staging tables and
// keeps the analytics dimensions current.
type Pipeline struct {
	exec      Executor
	database  string
	staging   string
	customers string
	products  string
	analytics string
}

// NewPipeline creates a pipeline bound to one environment's schemas.
func NewPipeline(exec Executor, cfg Config) *Pipeline {
	return &Pipeline{
		exec:      exec,
		database:  cfg.Database,
		staging:   deploy.SchemaFullName("staging", cfg.SchemaSuffix),
		customers: deploy.SchemaFullName("customers", cfg.SchemaSuffix),
		products:  deploy.SchemaFullName("products", cfg.SchemaSuffix),
		analytics: deploy.SchemaFullName("analytics", cfg.SchemaSuffix),
	}
}

// TableResult summarises one table's pass through the pipeline.
type TableResult struct {
	Table     string
	Extracted int
	Valid     int
	Invalid   int
	Loaded    int
	Err       error
}

// DimensionResult reports the MERGE row counts for the dimension tables.
type DimensionResult struct {
	CustomerDimRows int64
	ProductDimRows  int64
}

// PipelineResult is the outcome of a full run.
type PipelineResult struct {
	Tables     []TableResult
	Dimensions DimensionResult
	Processed  int
	Loaded     int
}

func (p *Pipeline) rawTable(table string) string {
	return fmt.Sprintf("%s.%s.STG_%s_RAW", p.database, p.staging, strings.ToUpper(table))
}

func (p *Pipeline) cleanTable(table string) string {
	return fmt.Sprintf("%s.%s.STG_%s_CLEAN", p.database, p.staging, strings.ToUpper(table))
}

// Extract counts the raw staging rows available for a table.
func (p *Pipeline) Extract(ctx context.Context, table string) (int, error) {
	count, err := p.exec.QueryCount(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", p.rawTable(table)))
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeEtlFailed,
			fmt.Sprintf("Failed to extract staging data for %s", table))
	}
	return count, nil
}

// TransformTable truncates the clean table and repopulates it from the
// raw table through the cleansing SELECT for that table. It returns the
// raw, valid, and rejected row counts.
func (p *Pipeline) TransformTable(ctx context.Context, table string) (extracted, valid, invalid int, err error) {
	transform, ok := transformSQL(table)
	if !ok {
		return 0, 0, 0, errors.New(errors.ErrCodeEtlFailed,
			fmt.Sprintf("No transformation defined for table %s", table))
	}

	extracted, err = p.Extract(ctx, table)
	if err != nil {
		return 0, 0, 0, err
	}

	clean := p.cleanTable(table)
	if err = p.exec.ExecuteStatement(ctx, fmt.Sprintf("TRUNCATE TABLE %s", clean)); err != nil {
		return extracted, 0, 0, errors.Wrap(err, errors.ErrCodeEtlFailed,
			fmt.Sprintf("Failed to truncate %s", clean))
	}

	stmt := transform(clean, p.rawTable(table))
	if err = p.exec.ExecuteStatement(ctx, stmt); err != nil {
		return extracted, 0, 0, errors.Wrap(err, errors.ErrCodeEtlFailed,
			fmt.Sprintf("Failed to transform %s", table))
	}

	valid, err = p.exec.QueryCount(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", clean))
	if err != nil {
		return extracted, 0, 0, errors.Wrap(err, errors.ErrCodeEtlFailed,
			fmt.Sprintf("Failed to verify load of %s", clean))
	}

	invalid = extracted - valid
	if invalid < 0 {
		invalid = 0
	}
	return extracted, valid, invalid, nil
}

// UpdateDimensions merges current source rows into CUSTOMER_DIM and
// PRODUCT_DIM using SCD Type 2 semantics: changed rows are expired and
// new versions inserted with IS_CURRENT = TRUE.
func (p *Pipeline) UpdateDimensions(ctx context.Context) (DimensionResult, error) {
	var result DimensionResult

	rows, err := p.exec.ExecuteReturning(ctx, customerDimMergeSQL(p.database, p.analytics, p.customers))
	if err != nil {
		return result, errors.Wrap(err, errors.ErrCodeEtlFailed, "Failed to update CUSTOMER_DIM")
	}
	result.CustomerDimRows = rows

	rows, err = p.exec.ExecuteReturning(ctx, productDimMergeSQL(p.database, p.analytics, p.products))
	if err != nil {
		return result, errors.Wrap(err, errors.ErrCodeEtlFailed, "Failed to update PRODUCT_DIM")
	}
	result.ProductDimRows = rows

	return result, nil
}

// LogProcess records a run in ETL_PROCESS_LOG. Logging failures are
// returned but callers treat them as non-fatal.
func (p *Pipeline) LogProcess(ctx context.Context, process, status string, processed, inserted, updated, rejected int, errMsg string) error {
	stmt := fmt.Sprintf(`INSERT INTO %s.%s.ETL_PROCESS_LOG
		(PROCESS_NAME, START_TIME, END_TIME, STATUS, RECORDS_PROCESSED,
		 RECORDS_INSERTED, RECORDS_UPDATED, RECORDS_REJECTED, ERROR_MESSAGE)
		VALUES (?, CURRENT_TIMESTAMP(), CURRENT_TIMESTAMP(), ?, ?, ?, ?, ?, ?)`,
		p.database, p.staging)

	var message interface{}
	if errMsg != "" {
		message = errMsg
	}
	return p.exec.ExecuteWithArgs(ctx, stmt, process, status, processed, inserted, updated, rejected, message)
}

// Run executes the full pipeline for the given tables, continuing past
// per-table failures, then refreshes the dimension tables.
func (p *Pipeline) Run(ctx context.Context, tables []string) (*PipelineResult, error) {
	result := &PipelineResult{}

	for _, table := range tables {
		tr := TableResult{Table: table}
		tr.Extracted, tr.Valid, tr.Invalid, tr.Err = p.TransformTable(ctx, table)
		if tr.Err == nil {
			tr.Loaded = tr.Valid
			result.Processed += tr.Extracted
			result.Loaded += tr.Loaded
			_ = p.LogProcess(ctx, "ETL_"+strings.ToUpper(table), "SUCCESS",
				tr.Extracted, tr.Loaded, 0, tr.Invalid, "")
		} else {
			_ = p.LogProcess(ctx, "ETL_"+strings.ToUpper(table), "ERROR",
				0, 0, 0, 0, tr.Err.Error())
		}
		result.Tables = append(result.Tables, tr)
	}

	dims, err := p.UpdateDimensions(ctx)
	if err != nil {
		_ = p.LogProcess(ctx, "FULL_ETL_PIPELINE", "ERROR", 0, 0, 0, 0, err.Error())
		return result, err
	}
	result.Dimensions = dims

	_ = p.LogProcess(ctx, "FULL_ETL_PIPELINE", "SUCCESS",
		result.Processed, result.Loaded, 0, 0, "")
	return result, nil
}

// Failed reports whether any table in the run ended in error.
func (r *PipelineResult) Failed() bool {
	for _, t := range r.Tables {
		if t.Err != nil {
			return true
		}
	}
	return false
}
