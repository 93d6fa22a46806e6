package loader

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"retailworks/internal/common"
	"retailworks/internal/snowflake"
	"retailworks/pkg/errors"
)

// Dataset describes one CSV source and its raw staging table
type Dataset struct {
	Name  string
	File  string
	Table string
}

// Datasets is the registry of sample-data CSV files, in load order:
// reference data first, then entities that reference it.
var Datasets = []Dataset{
	{"customer_segments", "customer_segments.csv", "STG_CUSTOMER_SEGMENTS_RAW"},
	{"categories", "categories.csv", "STG_CATEGORIES_RAW"},
	{"suppliers", "suppliers.csv", "STG_SUPPLIERS_RAW"},
	{"products", "products.csv", "STG_PRODUCTS_RAW"},
	{"addresses", "addresses.csv", "STG_ADDRESSES_RAW"},
	{"customers", "customers.csv", "STG_CUSTOMERS_RAW"},
	{"departments", "departments.csv", "STG_DEPARTMENTS_RAW"},
	{"positions", "positions.csv", "STG_POSITIONS_RAW"},
}

// DatasetByName looks up a dataset in the registry
func DatasetByName(name string) (Dataset, bool) {
	for _, ds := range Datasets {
		if ds.Name == name {
			return ds, true
		}
	}
	return Dataset{}, false
}

// Bulker is the subset of the Snowflake service the loader needs
type Bulker interface {
	StageAndCopy(ctx context.Context, file string, opts snowflake.CopyOptions) (*snowflake.CopyResult, error)
	ExecuteStatement(ctx context.Context, stmt string) error
	QueryCount(ctx context.Context, query string) (int, error)
}

// Options configures the loader
type Options struct {
	Directory string // directory holding the CSV files
	Database  string
	Schema    string // staging schema, environment-qualified
	Stage     string
	OnError   string // COPY INTO ON_ERROR policy
	Direct    bool   // use multi-row INSERT instead of PUT/COPY
}

// Loader loads CSV sample data into raw staging tables
type Loader struct {
	svc  Bulker
	opts Options
}

// NewLoader creates a loader
func NewLoader(svc Bulker, opts Options) *Loader {
	if opts.Stage == "" {
		opts.Stage = "CSV_LOAD_STAGE"
	}
	if opts.OnError == "" {
		opts.OnError = "CONTINUE"
	}
	return &Loader{svc: svc, opts: opts}
}

// Result summarizes one dataset load
type Result struct {
	Dataset  string
	Records  int
	Loaded   int64
	Rejected int64
	Verified int
	Err      error
}

// LoadDataset loads one dataset into its staging table
func (l *Loader) LoadDataset(ctx context.Context, name string) (*Result, error) {
	ds, ok := DatasetByName(name)
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("Unknown dataset: %s", name))
	}

	path, err := common.ValidatePath(filepath.Join(l.opts.Directory, ds.File), l.opts.Directory)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFileOperation, "Invalid CSV path")
	}
	if !common.FileExists(path) {
		return nil, errors.New(errors.ErrCodeFileNotFound,
			fmt.Sprintf("CSV file not found: %s", ds.File)).
			WithContext("directory", l.opts.Directory)
	}

	header, records, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	result := &Result{Dataset: ds.Name, Records: len(records)}
	if len(records) == 0 {
		return result, nil
	}

	if l.opts.Direct {
		if err := l.loadDirect(ctx, ds, path, header, records); err != nil {
			return nil, err
		}
		result.Loaded = int64(len(records))
	} else {
		copyResult, err := l.svc.StageAndCopy(ctx, path, snowflake.CopyOptions{
			Database:   l.opts.Database,
			Schema:     l.opts.Schema,
			Table:      ds.Table,
			Stage:      l.opts.Stage,
			SkipHeader: 1,
			OnError:    l.opts.OnError,
			Compress:   true,
			Purge:      true,
		})
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeLoadFailed,
				fmt.Sprintf("Failed to load dataset %s", ds.Name))
		}
		result.Loaded = copyResult.RowsLoaded
		result.Rejected = copyResult.ErrorsSeen
	}

	verified, err := l.svc.QueryCount(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s.%s.%s",
		l.opts.Database, l.opts.Schema, ds.Table))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLoadFailed,
			fmt.Sprintf("Failed to verify dataset %s", ds.Name))
	}
	result.Verified = verified

	return result, nil
}

// LoadAll loads the named datasets, or every registered dataset when none
// are named. A failing dataset is recorded and the rest still load.
func (l *Loader) LoadAll(ctx context.Context, names ...string) []Result {
	if len(names) == 0 {
		for _, ds := range Datasets {
			names = append(names, ds.Name)
		}
	}

	results := make([]Result, 0, len(names))
	for _, name := range names {
		result, err := l.LoadDataset(ctx, name)
		if err != nil {
			results = append(results, Result{Dataset: name, Err: err})
			continue
		}
		results = append(results, *result)
	}
	return results
}

// loadDirect loads small datasets with a batched multi-row INSERT,
// tagging each row with the source file and load time.
func (l *Loader) loadDirect(ctx context.Context, ds Dataset, path string, header []string, records [][]string) error {
	const batchSize = 500
	fileName := filepath.Base(path)
	loadedAt := time.Now().UTC().Format("2006-01-02 15:04:05")

	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))
		stmt := buildInsertSQL(
			fmt.Sprintf("%s.%s.%s", l.opts.Database, l.opts.Schema, ds.Table),
			header, records[start:end], fileName, loadedAt)
		if err := l.svc.ExecuteStatement(ctx, stmt); err != nil {
			return errors.Wrap(err, errors.ErrCodeLoadFailed,
				fmt.Sprintf("Failed direct insert for dataset %s", ds.Name)).
				WithContext("batch_start", start)
		}
	}
	return nil
}

// buildInsertSQL renders a multi-row INSERT with FILE_NAME and LOAD_DATE
// metadata columns appended. Values are single-quoted with embedded
// quotes doubled; empty fields become NULL.
func buildInsertSQL(table string, header []string, records [][]string, fileName, loadedAt string) string {
	columns := make([]string, 0, len(header)+2)
	for _, col := range header {
		columns = append(columns, strings.ToUpper(strings.TrimSpace(col)))
	}
	columns = append(columns, "FILE_NAME", "LOAD_DATE")

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES\n", table, strings.Join(columns, ", "))

	for i, record := range records {
		values := make([]string, 0, len(record)+2)
		for _, field := range record {
			values = append(values, quoteValue(field))
		}
		values = append(values, quoteValue(fileName), quoteValue(loadedAt))

		b.WriteString("(" + strings.Join(values, ", ") + ")")
		if i < len(records)-1 {
			b.WriteString(",\n")
		}
	}

	return b.String()
}

func quoteValue(field string) string {
	if field == "" {
		return "NULL"
	}
	return "'" + strings.ReplaceAll(field, "'", "''") + "'"
}

func readCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path) // #nosec G304 - path validated by caller
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to open CSV file")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // tolerate ragged sample data

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to parse CSV file").
			WithContext("file", filepath.Base(path))
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	return rows[0], rows[1:], nil
}
