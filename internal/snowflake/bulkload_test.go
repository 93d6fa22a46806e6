package snowflake

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCopySQL(t *testing.T) {
	opts := CopyOptions{
		Database:   "RETAILWORKS_DB_DEV",
		Schema:     "STAGING_SCHEMA_DEV",
		Table:      "STG_CUSTOMERS_RAW",
		Stage:      "CSV_LOAD_STAGE",
		SkipHeader: 1,
		OnError:    "CONTINUE",
		Purge:      true,
	}

	sql := buildCopySQL("customers.csv", opts)

	assert.Contains(t, sql, "COPY INTO RETAILWORKS_DB_DEV.STAGING_SCHEMA_DEV.STG_CUSTOMERS_RAW")
	assert.Contains(t, sql, "FROM @RETAILWORKS_DB_DEV.STAGING_SCHEMA_DEV.CSV_LOAD_STAGE/customers.csv")
	assert.Contains(t, sql, "SKIP_HEADER = 1")
	assert.Contains(t, sql, "ON_ERROR = 'CONTINUE'")
	assert.Contains(t, sql, "PURGE = TRUE")
}

func TestBuildCopySQLDefaultsOnError(t *testing.T) {
	sql := buildCopySQL("x.csv", CopyOptions{
		Database: "DB", Schema: "S", Table: "T", Stage: "ST",
	})
	assert.Contains(t, sql, "ON_ERROR = 'ABORT_STATEMENT'")
	assert.NotContains(t, sql, "PURGE")
}

func TestValidateCopyOptions(t *testing.T) {
	assert.Error(t, validateCopyOptions(CopyOptions{}))
	assert.Error(t, validateCopyOptions(CopyOptions{Database: "DB", Schema: "S", Table: "T"}))
	assert.NoError(t, validateCopyOptions(CopyOptions{Database: "DB", Schema: "S", Table: "T", Stage: "ST"}))
}

func TestStageAndCopy(t *testing.T) {
	service, mock := newMockService(t)

	dir := t.TempDir()
	file := filepath.Join(dir, "customers.csv")
	require.NoError(t, os.WriteFile(file, []byte("ID,NAME\n1,Ada\n"), 0644))

	mock.ExpectExec("CREATE STAGE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("PUT file://").WillReturnResult(sqlmock.NewResult(0, 0))

	rows := sqlmock.NewRows([]string{"file", "status", "rows_parsed", "rows_loaded", "errors_seen"}).
		AddRow("customers.csv.gz", "LOADED", int64(2), int64(2), int64(0))
	mock.ExpectQuery("COPY INTO").WillReturnRows(rows)

	result, err := service.StageAndCopy(context.Background(), file, CopyOptions{
		Database:   "RETAILWORKS_DB_DEV",
		Schema:     "STAGING_SCHEMA_DEV",
		Table:      "STG_CUSTOMERS_RAW",
		Stage:      "CSV_LOAD_STAGE",
		SkipHeader: 1,
		OnError:    "CONTINUE",
		Compress:   true,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"customers.csv.gz"}, result.Files)
	assert.Equal(t, int64(2), result.RowsLoaded)
	assert.Equal(t, int64(0), result.ErrorsSeen)
	assert.NoError(t, mock.ExpectationsWereMet())
}
