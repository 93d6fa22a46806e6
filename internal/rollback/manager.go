package rollback

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"retailworks/internal/deploy"
	"retailworks/pkg/errors"
)

// Executor is the subset of the snowflake service the manager uses.
type Executor interface {
	ExecuteStatement(ctx context.Context, stmt string) error
	ExecuteWithArgs(ctx context.Context, stmt string, args ...interface{}) error
	ShowNames(ctx context.Context, query string) ([]string, error)
	QueryCount(ctx context.Context, query string) (int, error)
}

// backupTimeFormat orders backup names chronologically when sorted.
const backupTimeFormat = "20060102_150405"

// Config identifies the environment the manager operates on.
type Config struct {
	Environment  string
	Database     string
	SchemaSuffix string
	DryRun       bool
}

// Manager creates schema-clone backups and restores schemas from them.
// Zero-copy clones make backups cheap, so every rollback snapshots the
// current state before restoring.
type Manager struct {
	exec Executor
	cfg  Config
	now  func() time.Time
}

// NewManager creates a rollback manager for one environment.
func NewManager(exec Executor, cfg Config) *Manager {
	return &Manager{exec: exec, cfg: cfg, now: time.Now}
}

// BackupRef identifies one schema backup.
type BackupRef struct {
	Schema       string
	BackupSchema string
	CreatedAt    time.Time
}

func (m *Manager) qualify(schema string) string {
	return m.cfg.Database + "." + schema
}

// backupName builds the clone target name for a schema at a timestamp.
func backupName(schema string, at time.Time) string {
	return fmt.Sprintf("%s_BACKUP_%s", schema, at.Format(backupTimeFormat))
}

// CreateBackup clones one schema into a timestamped backup schema.
func (m *Manager) CreateBackup(ctx context.Context, schemaName string) (*BackupRef, error) {
	schema := deploy.SchemaFullName(schemaName, m.cfg.SchemaSuffix)
	at := m.now()
	backup := backupName(schema, at)

	stmt := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s CLONE %s",
		m.qualify(backup), m.qualify(schema))
	if m.cfg.DryRun {
		return &BackupRef{Schema: schema, BackupSchema: backup, CreatedAt: at}, nil
	}
	if err := m.exec.ExecuteStatement(ctx, stmt); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRollbackFailed,
			fmt.Sprintf("Failed to back up schema %s", schema))
	}
	return &BackupRef{Schema: schema, BackupSchema: backup, CreatedAt: at}, nil
}

// CreateBackups backs up the named schemas, stopping at the first
// failure so a partial backup set is never mistaken for a full one.
func (m *Manager) CreateBackups(ctx context.Context, schemaNames []string) ([]BackupRef, error) {
	refs := make([]BackupRef, 0, len(schemaNames))
	for _, name := range schemaNames {
		ref, err := m.CreateBackup(ctx, name)
		if err != nil {
			return refs, err
		}
		refs = append(refs, *ref)
	}
	return refs, nil
}

// ListBackups returns backup schema names for one schema, newest first.
func (m *Manager) ListBackups(ctx context.Context, schemaName string) ([]string, error) {
	schema := deploy.SchemaFullName(schemaName, m.cfg.SchemaSuffix)
	query := fmt.Sprintf("SHOW SCHEMAS LIKE '%s_BACKUP_%%' IN DATABASE %s", schema, m.cfg.Database)

	names, err := m.exec.ShowNames(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBackupNotFound,
			fmt.Sprintf("Failed to list backups for %s", schema))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// Restore replaces a schema with the contents of one of its backups.
// The current state is cloned to a pre-restore backup first, then the
// schema is dropped and recreated as a clone of the chosen backup.
func (m *Manager) Restore(ctx context.Context, schemaName, backupSchema string) error {
	schema := deploy.SchemaFullName(schemaName, m.cfg.SchemaSuffix)
	if !strings.HasPrefix(backupSchema, schema+"_BACKUP_") {
		return errors.New(errors.ErrCodeBackupNotFound,
			fmt.Sprintf("Backup %s does not belong to schema %s", backupSchema, schema)).
			WithSuggestions("List available backups with 'retailworks rollback --list'")
	}

	available, err := m.ListBackups(ctx, schemaName)
	if err != nil {
		return err
	}
	found := false
	for _, name := range available {
		if name == backupSchema {
			found = true
			break
		}
	}
	if !found {
		return errors.New(errors.ErrCodeBackupNotFound,
			fmt.Sprintf("Backup %s not found in %s", backupSchema, m.cfg.Database)).
			WithContext("schema", schema)
	}

	if m.cfg.DryRun {
		return nil
	}

	if _, err := m.CreateBackup(ctx, schemaName); err != nil {
		return err
	}

	steps := []string{
		fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", m.qualify(schema)),
		fmt.Sprintf("CREATE SCHEMA %s CLONE %s", m.qualify(schema), m.qualify(backupSchema)),
	}
	for _, stmt := range steps {
		if err := m.exec.ExecuteStatement(ctx, stmt); err != nil {
			return errors.Wrap(err, errors.ErrCodeRestoreFailed,
				fmt.Sprintf("Failed to restore %s from %s", schema, backupSchema)).
				WithContext("statement", stmt)
		}
	}
	return nil
}

// PruneBackups drops all but the newest keep backups for a schema.
func (m *Manager) PruneBackups(ctx context.Context, schemaName string, keep int) (int, error) {
	names, err := m.ListBackups(ctx, schemaName)
	if err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}
	if len(names) <= keep {
		return 0, nil
	}

	dropped := 0
	for _, name := range names[keep:] {
		stmt := fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", m.qualify(name))
		if m.cfg.DryRun {
			dropped++
			continue
		}
		if err := m.exec.ExecuteStatement(ctx, stmt); err != nil {
			return dropped, errors.Wrap(err, errors.ErrCodeRollbackFailed,
				fmt.Sprintf("Failed to drop backup %s", name))
		}
		dropped++
	}
	return dropped, nil
}

// SmokeTest verifies the named schemas exist after a restore and
// returns the ones that are missing.
func (m *Manager) SmokeTest(ctx context.Context, schemaNames []string) ([]string, error) {
	var missing []string
	for _, name := range schemaNames {
		schema := deploy.SchemaFullName(name, m.cfg.SchemaSuffix)
		query := fmt.Sprintf("SHOW SCHEMAS LIKE '%s' IN DATABASE %s", schema, m.cfg.Database)
		found, err := m.exec.ShowNames(ctx, query)
		if err != nil {
			return missing, errors.Wrap(err, errors.ErrCodeRollbackFailed,
				"Post-rollback validation failed")
		}
		if len(found) == 0 {
			missing = append(missing, schema)
		}
	}
	return missing, nil
}
