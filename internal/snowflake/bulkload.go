package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"retailworks/pkg/errors"
)

// CopyOptions configures a PUT + COPY INTO bulk load
type CopyOptions struct {
	Database   string
	Schema     string
	Table      string
	Stage      string // named stage, created if missing
	SkipHeader int
	OnError    string // CONTINUE, ABORT_STATEMENT or SKIP_FILE
	Compress   bool
	Purge      bool
}

// CopyResult summarizes a COPY INTO execution
type CopyResult struct {
	Files      []string
	RowsParsed int64
	RowsLoaded int64
	ErrorsSeen int64
}

// StageAndCopy stages a local file with PUT and loads it into the target
// table with COPY INTO. The stage is created on demand.
func (s *Service) StageAndCopy(ctx context.Context, file string, opts CopyOptions) (*CopyResult, error) {
	if !s.connected {
		return nil, errors.New(errors.ErrCodeConnectionFailed, "Not connected to database")
	}
	if err := validateCopyOptions(opts); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to resolve file path")
	}

	stageSQL := fmt.Sprintf("CREATE STAGE IF NOT EXISTS %s.%s.%s",
		opts.Database, opts.Schema, opts.Stage)
	if _, err := s.db.ExecContext(ctx, stageSQL); err != nil {
		return nil, errors.SQLError("Failed to create stage", stageSQL, err)
	}

	putSQL := fmt.Sprintf("PUT file://%s @%s.%s.%s AUTO_COMPRESS=%v OVERWRITE=TRUE",
		abs, opts.Database, opts.Schema, opts.Stage, opts.Compress)
	if _, err := s.db.ExecContext(ctx, putSQL); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStagingFailed, "Failed to PUT file to stage").
			WithContext("file", abs).
			WithContext("stage", opts.Stage)
	}

	copySQL := buildCopySQL(filepath.Base(abs), opts)
	rows, err := s.db.QueryContext(ctx, copySQL)
	if err != nil {
		return nil, errors.SQLError("Failed to execute COPY INTO", copySQL, err)
	}
	defer rows.Close()

	result := &CopyResult{}
	if err := parseCopyResults(rows, result); err != nil {
		return nil, err
	}
	return result, nil
}

func validateCopyOptions(opts CopyOptions) error {
	if opts.Database == "" || opts.Schema == "" || opts.Table == "" {
		return errors.New(errors.ErrCodeInvalidInput, "Copy target requires database, schema and table")
	}
	if opts.Stage == "" {
		return errors.New(errors.ErrCodeInvalidInput, "Copy requires a stage name")
	}
	return nil
}

func buildCopySQL(fileName string, opts CopyOptions) string {
	onError := opts.OnError
	if onError == "" {
		onError = "ABORT_STATEMENT"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "COPY INTO %s.%s.%s\n", opts.Database, opts.Schema, opts.Table)
	fmt.Fprintf(&b, "FROM @%s.%s.%s/%s\n", opts.Database, opts.Schema, opts.Stage, fileName)
	fmt.Fprintf(&b, "FILE_FORMAT = (TYPE = 'CSV' SKIP_HEADER = %d FIELD_OPTIONALLY_ENCLOSED_BY = '\"' EMPTY_FIELD_AS_NULL = TRUE)\n", opts.SkipHeader)
	fmt.Fprintf(&b, "ON_ERROR = '%s'", onError)
	if opts.Purge {
		b.WriteString("\nPURGE = TRUE")
	}
	return b.String()
}

// parseCopyResults reads the COPY INTO result set. Column positions vary
// between driver versions, so columns are matched by name.
func parseCopyResults(rows *sql.Rows, result *CopyResult) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	index := make(map[string]int, len(cols))
	for i, col := range cols {
		index[strings.ToLower(col)] = i
	}

	for rows.Next() {
		values := make([]interface{}, len(cols))
		valuePtrs := make([]interface{}, len(cols))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return err
		}

		if i, ok := index["file"]; ok {
			if name, ok := values[i].(string); ok {
				result.Files = append(result.Files, name)
			}
		}
		result.RowsParsed += intValue(values, index, "rows_parsed")
		result.RowsLoaded += intValue(values, index, "rows_loaded")
		result.ErrorsSeen += intValue(values, index, "errors_seen")
	}

	return rows.Err()
}

func intValue(values []interface{}, index map[string]int, column string) int64 {
	i, ok := index[column]
	if !ok {
		return 0
	}
	switch v := values[i].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case string:
		var n int64
		fmt.Sscanf(v, "%d", &n)
		return n
	default:
		return 0
	}
}
