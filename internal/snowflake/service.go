package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/snowflakedb/gosnowflake"

	"retailworks/internal/sqlparse"
	"retailworks/pkg/errors"
)

// Service provides Snowflake database operations
type Service struct {
	db        *sql.DB
	config    Config
	connected bool
}

// Config holds Snowflake connection configuration
type Config struct {
	Account   string
	Username  string
	Password  string
	Database  string
	Schema    string
	Warehouse string
	Role      string
	Timeout   time.Duration
}

// NewService creates a new Snowflake service
func NewService(config Config) *Service {
	return &Service{config: config}
}

// NewServiceWithDB creates a service around an existing database handle.
// Used by tests to inject a mock connection.
func NewServiceWithDB(db *sql.DB, config Config) *Service {
	return &Service{db: db, config: config, connected: true}
}

// Connect establishes a connection to Snowflake
func (s *Service) Connect() error {
	if s.connected {
		return nil
	}

	return errors.RetryWithBackoff(context.Background(), func(ctx context.Context) error {
		dsn := fmt.Sprintf("%s:%s@%s/%s/%s?warehouse=%s&role=%s",
			s.config.Username,
			s.config.Password,
			s.config.Account,
			s.config.Database,
			s.config.Schema,
			s.config.Warehouse,
			s.config.Role,
		)

		db, err := sql.Open("snowflake", dsn)
		if err != nil {
			return errors.ConnectionError("Failed to open Snowflake connection", err).
				WithContext("account", s.config.Account).
				WithContext("warehouse", s.config.Warehouse)
		}

		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(10 * time.Minute)

		connCtx, cancel := s.getContext()
		defer cancel()

		if err := db.PingContext(connCtx); err != nil {
			db.Close()

			if strings.Contains(err.Error(), "authentication") {
				return errors.New(errors.ErrCodeAuthenticationFailed, "Authentication failed").
					WithContext("user", s.config.Username).
					WithSuggestions(
						"Verify your username and password",
						"Check if your account is locked",
					)
			}

			return errors.ConnectionError("Failed to connect to Snowflake", err).
				WithContext("account", s.config.Account).
				AsRecoverable()
		}

		s.db = db
		s.connected = true
		return nil
	})
}

// Close closes the database connection
func (s *Service) Close() error {
	if !s.connected {
		return nil
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}

	s.connected = false
	return nil
}

// ExecuteStatement executes a single SQL statement
func (s *Service) ExecuteStatement(ctx context.Context, stmt string) error {
	if !s.connected {
		return errors.New(errors.ErrCodeConnectionFailed, "Not connected to database").
			WithSuggestions("Call Connect() before executing SQL")
	}

	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return errors.SQLError("Failed to execute statement", stmt, err)
	}
	return nil
}

// ExecuteReturning executes a statement and reports the affected row
// count, used for MERGE bookkeeping
func (s *Service) ExecuteReturning(ctx context.Context, stmt string) (int64, error) {
	if !s.connected {
		return 0, errors.New(errors.ErrCodeConnectionFailed, "Not connected to database")
	}

	res, err := s.db.ExecContext(ctx, stmt)
	if err != nil {
		return 0, errors.SQLError("Failed to execute statement", stmt, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil // driver cannot report a count; not an execution failure
	}
	return affected, nil
}

// ExecuteWithArgs executes a statement with bind parameters
func (s *Service) ExecuteWithArgs(ctx context.Context, stmt string, args ...interface{}) error {
	if !s.connected {
		return errors.New(errors.ErrCodeConnectionFailed, "Not connected to database")
	}

	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		return errors.SQLError("Failed to execute statement", stmt, err)
	}
	return nil
}

// StatementResult records the outcome of one statement in a script
type StatementResult struct {
	Index     int
	Statement string
	Err       error
	Duration  time.Duration
}

// ScriptOptions controls script execution
type ScriptOptions struct {
	Database        string
	Schema          string
	ContinueOnError bool
}

// ExecuteScript splits a SQL script into statements and executes them in
// order. With ContinueOnError set, failed statements are recorded and the
// remaining statements still run; statements later in a script may depend
// on earlier ones, so execution is strictly sequential either way.
func (s *Service) ExecuteScript(ctx context.Context, script string, opts ScriptOptions) ([]StatementResult, error) {
	if !s.connected {
		return nil, errors.New(errors.ErrCodeConnectionFailed, "Not connected to database")
	}

	if opts.Database != "" {
		if err := s.UseDatabase(ctx, opts.Database); err != nil {
			return nil, err
		}
	}
	if opts.Schema != "" {
		if err := s.UseSchema(ctx, opts.Schema); err != nil {
			return nil, err
		}
	}

	statements := sqlparse.Split(script)
	results := make([]StatementResult, 0, len(statements))

	var firstErr error
	for i, stmt := range statements {
		start := time.Now()
		_, err := s.db.ExecContext(ctx, stmt)
		result := StatementResult{
			Index:     i + 1,
			Statement: stmt,
			Duration:  time.Since(start),
		}

		if err != nil {
			result.Err = errors.SQLError(
				fmt.Sprintf("Failed to execute statement %d", i+1), stmt, err).
				WithContext("statement_index", i+1).
				WithContext("total_statements", len(statements))
			if firstErr == nil {
				firstErr = result.Err
			}
			results = append(results, result)
			if !opts.ContinueOnError {
				return results, firstErr
			}
			continue
		}

		results = append(results, result)
	}

	return results, nil
}

// Query executes a query and returns the rows
func (s *Service) Query(ctx context.Context, query string) (*sql.Rows, error) {
	if !s.connected {
		return nil, fmt.Errorf("not connected to database")
	}
	return s.db.QueryContext(ctx, query)
}

// QueryCount returns the single integer value of a counting query
func (s *Service) QueryCount(ctx context.Context, query string) (int, error) {
	if !s.connected {
		return 0, fmt.Errorf("not connected to database")
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, errors.SQLError("Failed to run count query", query, err)
	}
	return count, nil
}

// ShowNames runs a SHOW command and extracts the object names. SHOW
// result sets carry the name in the second column.
func (s *Service) ShowNames(ctx context.Context, query string) ([]string, error) {
	rows, err := s.Query(ctx, query)
	if err != nil {
		return nil, errors.SQLError("Failed to run SHOW command", query, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return nil, err
		}

		values := make([]interface{}, len(cols))
		valuePtrs := make([]interface{}, len(cols))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		if len(values) > 1 {
			if name, ok := values[1].(string); ok {
				names = append(names, name)
			}
		}
	}

	return names, rows.Err()
}

// UseDatabase switches the session database
func (s *Service) UseDatabase(ctx context.Context, database string) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("USE DATABASE %s", database)); err != nil {
		return errors.SQLError(fmt.Sprintf("Failed to use database %s", database),
			fmt.Sprintf("USE DATABASE %s", database), err)
	}
	return nil
}

// UseSchema switches the session schema
func (s *Service) UseSchema(ctx context.Context, schema string) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("USE SCHEMA %s", schema)); err != nil {
		return errors.SQLError(fmt.Sprintf("Failed to use schema %s", schema),
			fmt.Sprintf("USE SCHEMA %s", schema), err)
	}
	return nil
}

// TestConnection verifies the connection is usable
func (s *Service) TestConnection(ctx context.Context) error {
	if !s.connected {
		if err := s.Connect(); err != nil {
			return err
		}
	}
	return s.db.PingContext(ctx)
}

// GetContext returns a context bound to the configured timeout
func (s *Service) getContext() (context.Context, context.CancelFunc) {
	timeout := s.config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

// ValidateConfig validates the Snowflake configuration
func ValidateConfig(config Config) error {
	if config.Account == "" {
		return fmt.Errorf("account is required")
	}
	if config.Username == "" {
		return fmt.Errorf("username is required")
	}
	if config.Password == "" {
		return fmt.Errorf("password is required")
	}
	if config.Warehouse == "" {
		return fmt.Errorf("warehouse is required")
	}
	if config.Role == "" {
		return fmt.Errorf("role is required")
	}
	return nil
}
