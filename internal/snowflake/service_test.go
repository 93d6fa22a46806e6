package snowflake

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	service := NewServiceWithDB(db, Config{
		Account:   "test123.us-east-1",
		Username:  "deployer",
		Password:  "secret",
		Database:  "RETAILWORKS_DB_DEV",
		Schema:    "PUBLIC",
		Warehouse: "RETAILWORKS_DEV_WH",
		Role:      "SYSADMIN",
		Timeout:   30 * time.Second,
	})
	return service, mock
}

func TestNewService(t *testing.T) {
	config := Config{Account: "test123", Username: "user"}
	service := NewService(config)

	assert.NotNil(t, service)
	assert.Equal(t, config, service.config)
	assert.False(t, service.connected)
}

func TestValidateConfig(t *testing.T) {
	valid := Config{
		Account:   "test123.us-east-1",
		Username:  "deployer",
		Password:  "secret",
		Warehouse: "RETAILWORKS_DEV_WH",
		Role:      "SYSADMIN",
	}

	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{"valid config", func(c *Config) {}, ""},
		{"missing account", func(c *Config) { c.Account = "" }, "account is required"},
		{"missing username", func(c *Config) { c.Username = "" }, "username is required"},
		{"missing password", func(c *Config) { c.Password = "" }, "password is required"},
		{"missing warehouse", func(c *Config) { c.Warehouse = "" }, "warehouse is required"},
		{"missing role", func(c *Config) { c.Role = "" }, "role is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid
			tt.mutate(&config)

			err := ValidateConfig(config)
			if tt.errorMsg == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.errorMsg)
			}
		})
	}
}

func TestExecuteScript(t *testing.T) {
	service, mock := newMockService(t)

	mock.ExpectExec("USE DATABASE RETAILWORKS_DB_DEV").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("USE SCHEMA SALES_SCHEMA_DEV").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE ORDERS").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE ORDER_ITEMS").WillReturnResult(sqlmock.NewResult(0, 0))

	script := "CREATE TABLE ORDERS (ID INT);\nCREATE TABLE ORDER_ITEMS (ID INT);\n"
	results, err := service.ExecuteScript(context.Background(), script, ScriptOptions{
		Database: "RETAILWORKS_DB_DEV",
		Schema:   "SALES_SCHEMA_DEV",
	})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.NoError(t, results[1].Err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteScriptStopsOnError(t *testing.T) {
	service, mock := newMockService(t)

	mock.ExpectExec("CREATE TABLE A").WillReturnError(fmt.Errorf("object does not exist"))

	script := "CREATE TABLE A (ID INT);\nCREATE TABLE B (ID INT);\n"
	results, err := service.ExecuteScript(context.Background(), script, ScriptOptions{})

	assert.Error(t, err)
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteScriptContinueOnError(t *testing.T) {
	service, mock := newMockService(t)

	mock.ExpectExec("CREATE TABLE A").WillReturnError(fmt.Errorf("syntax error"))
	mock.ExpectExec("CREATE TABLE B").WillReturnResult(sqlmock.NewResult(0, 0))

	script := "CREATE TABLE A (ID INT);\nCREATE TABLE B (ID INT);\n"
	results, err := service.ExecuteScript(context.Background(), script, ScriptOptions{
		ContinueOnError: true,
	})

	assert.NoError(t, err)
	require.Len(t, results, 2)
	assert.Error(t, results[0].Err)
	assert.NoError(t, results[1].Err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteScriptKeepsProcedureBodiesIntact(t *testing.T) {
	service, mock := newMockService(t)

	// the whole procedure, internal semicolons included, must arrive as one exec
	mock.ExpectExec("CREATE OR REPLACE PROCEDURE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SELECT 1").WillReturnResult(sqlmock.NewResult(0, 0))

	script := "CREATE OR REPLACE PROCEDURE refresh()\nAS\n$$\nBEGIN\n" +
		"  DELETE FROM t;\n  INSERT INTO t VALUES (1);\nEND;\n$$;\nSELECT 1;\n"
	results, err := service.ExecuteScript(context.Background(), script, ScriptOptions{})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Contains(t, results[0].Statement, "INSERT INTO t VALUES (1);")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteStatementNotConnected(t *testing.T) {
	service := NewService(Config{})
	err := service.ExecuteStatement(context.Background(), "SELECT 1")
	assert.Error(t, err)
}

func TestQueryCount(t *testing.T) {
	service, mock := newMockService(t)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"COUNT"}).AddRow(42))

	count, err := service.QueryCount(context.Background(), "SELECT COUNT(*) FROM ORDERS")
	require.NoError(t, err)
	assert.Equal(t, 42, count)
}

func TestShowNames(t *testing.T) {
	service, mock := newMockService(t)

	rows := sqlmock.NewRows([]string{"created_on", "name", "kind"}).
		AddRow("2026-01-01", "SALES_SCHEMA_DEV", "SCHEMA").
		AddRow("2026-01-01", "PRODUCTS_SCHEMA_DEV", "SCHEMA")
	mock.ExpectQuery("SHOW SCHEMAS").WillReturnRows(rows)

	names, err := service.ShowNames(context.Background(), "SHOW SCHEMAS IN DATABASE RETAILWORKS_DB_DEV")
	require.NoError(t, err)
	assert.Equal(t, []string{"SALES_SCHEMA_DEV", "PRODUCTS_SCHEMA_DEV"}, names)
}
