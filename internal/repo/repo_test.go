package repo

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "retailworks/pkg/errors"
	"retailworks/pkg/models"
)

// createSourceRepository builds a git repository with a committed ddl/
// tree to clone from.
func createSourceRepository(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	r, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	worktree, err := r.Worktree()
	require.NoError(t, err)

	files := map[string]string{
		"ddl/schemas/01_create_database.sql": "CREATE DATABASE IF NOT EXISTS RETAILWORKS_DB;",
		"ddl/tables/sales_schema_tables.sql": "CREATE TABLE ORDERS (ORDER_ID NUMBER);",
		"README.md":                          "warehouse DDL",
	}
	for path, content := range files {
		full := filepath.Join(dir, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
		_, err = worktree.Add(path)
		require.NoError(t, err)
	}

	_, err = worktree.Commit("add warehouse ddl", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Test User",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	require.NoError(t, err)
	return dir
}

func TestSyncLocalPath(t *testing.T) {
	src := createSourceRepository(t)
	svc := NewServiceWithCache(t.TempDir())

	root, err := svc.Sync(context.Background(), models.Repository{
		Path:    src,
		DDLRoot: "ddl",
	})

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(src, "ddl"), root)
}

func TestSyncLocalPathMissingDDLRoot(t *testing.T) {
	svc := NewServiceWithCache(t.TempDir())

	_, err := svc.Sync(context.Background(), models.Repository{
		Path:    t.TempDir(),
		DDLRoot: "ddl",
	})

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeRepoNotFound, apperrors.GetErrorCode(err))
}

func TestSyncRequiresSource(t *testing.T) {
	svc := NewServiceWithCache(t.TempDir())

	_, err := svc.Sync(context.Background(), models.Repository{DDLRoot: "ddl"})

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeConfigInvalid, apperrors.GetErrorCode(err))
}

func TestSyncClonesAndFetches(t *testing.T) {
	src := createSourceRepository(t)
	svc := NewServiceWithCache(t.TempDir())
	cfg := models.Repository{GitURL: src, DDLRoot: "ddl"}

	root, err := svc.Sync(context.Background(), cfg)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "schemas", "01_create_database.sql"))

	// second sync hits the fetch path of the existing clone
	root2, err := svc.Sync(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, root, root2)
}

func TestSyncUnknownBranch(t *testing.T) {
	src := createSourceRepository(t)
	svc := NewServiceWithCache(t.TempDir())

	_, err := svc.Sync(context.Background(), models.Repository{
		GitURL:  src,
		Branch:  "release/v9",
		DDLRoot: "ddl",
	})

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeRepoSyncFailed, apperrors.GetErrorCode(err))
}

func TestLastCommit(t *testing.T) {
	src := createSourceRepository(t)
	svc := NewServiceWithCache(t.TempDir())

	_, err := svc.Sync(context.Background(), models.Repository{GitURL: src, DDLRoot: "ddl"})
	require.NoError(t, err)

	commit, err := svc.LastCommit(src)
	require.NoError(t, err)
	assert.Equal(t, "add warehouse ddl", commit.Message)
	assert.Equal(t, "Test User", commit.Author)
	assert.Len(t, commit.Hash, 40)
}

func TestLastCommitNotSynced(t *testing.T) {
	svc := NewServiceWithCache(t.TempDir())

	_, err := svc.LastCommit("https://example.com/org/never-synced.git")

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeRepoNotFound, apperrors.GetErrorCode(err))
}

func TestListSQLFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"tables/b.sql", "tables/a.sql", "views/v.SQL", "notes.txt"} {
		full := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("SELECT 1;"), 0o644))
	}

	files, err := ListSQLFiles(dir)

	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "tables", "a.sql"),
		filepath.Join(dir, "tables", "b.sql"),
		filepath.Join(dir, "views", "v.SQL"),
	}, files)
}

func TestRootUsesLocalPath(t *testing.T) {
	src := createSourceRepository(t)
	svc := NewServiceWithCache(t.TempDir())

	root, err := svc.Root(models.Repository{Path: src, DDLRoot: "ddl"})

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(src, "ddl"), root)
}

func TestRootUsesSyncedCheckout(t *testing.T) {
	src := createSourceRepository(t)
	svc := NewServiceWithCache(t.TempDir())
	cfg := models.Repository{GitURL: src, DDLRoot: "ddl"}

	synced, err := svc.Sync(context.Background(), cfg)
	require.NoError(t, err)

	root, err := svc.Root(cfg)
	require.NoError(t, err)
	assert.Equal(t, synced, root)
}

func TestRootRequiresPriorSync(t *testing.T) {
	svc := NewServiceWithCache(t.TempDir())

	_, err := svc.Root(models.Repository{GitURL: "https://example.com/warehouse-ddl.git", DDLRoot: "ddl"})

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeRepoNotFound, apperrors.GetErrorCode(err))
}

func TestRootRequiresSource(t *testing.T) {
	svc := NewServiceWithCache(t.TempDir())

	_, err := svc.Root(models.Repository{DDLRoot: "ddl"})

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeConfigInvalid, apperrors.GetErrorCode(err))
}

func TestWithMaxRetries(t *testing.T) {
	svc := NewServiceWithCache(t.TempDir())
	defaultRetries := svc.retry.MaxRetries

	svc.WithMaxRetries(0)
	assert.Equal(t, defaultRetries, svc.retry.MaxRetries)

	svc.WithMaxRetries(7)
	assert.Equal(t, 7, svc.retry.MaxRetries)
}
