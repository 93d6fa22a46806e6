package repo

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"retailworks/internal/common"
	"retailworks/pkg/errors"
	"retailworks/pkg/models"
)

// Service syncs the DDL repository into a local cache so deployments
// always read scripts from a known commit.
type Service struct {
	cacheDir string
	retry    *errors.RetryConfig
}

// NewService creates a repo service using the default cache directory.
func NewService() *Service {
	return &Service{cacheDir: CacheDirectory(), retry: errors.DefaultRetryConfig()}
}

// NewServiceWithCache creates a repo service with an explicit cache
// directory, used in tests.
func NewServiceWithCache(dir string) *Service {
	return &Service{cacheDir: dir, retry: errors.DefaultRetryConfig()}
}

// WithMaxRetries overrides how often a failed sync is retried. Zero or
// negative values keep the default.
func (s *Service) WithMaxRetries(n int) *Service {
	if n > 0 {
		s.retry.MaxRetries = n
	}
	return s
}

// CacheDirectory returns the default repository cache location.
func CacheDirectory() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".retailworks", "repos")
}

// CommitInfo describes the checked-out commit of a synced repository.
type CommitInfo struct {
	Hash    string
	Message string
	Author  string
	Date    time.Time
}

// Sync makes the configured DDL scripts available locally and returns
// the directory holding them. A configured local path wins over a git
// URL, which lets development work against an uncommitted checkout.
func (s *Service) Sync(ctx context.Context, cfg models.Repository) (string, error) {
	if cfg.Path != "" {
		return overrideRoot(cfg)
	}

	if cfg.GitURL == "" {
		return "", errors.New(errors.ErrCodeConfigInvalid,
			"Repository configuration needs either a git_url or a path")
	}

	local := s.localPath(cfg.GitURL)
	err := errors.Retry(ctx, s.retry, func(ctx context.Context) error {
		return cloneOrFetch(cfg.GitURL, local)
	})
	if err != nil {
		return "", classifySyncError(err, cfg.GitURL)
	}

	if cfg.Branch != "" {
		if err := checkoutBranch(local, cfg.Branch); err != nil {
			return "", errors.Wrap(err, errors.ErrCodeRepoSyncFailed,
				fmt.Sprintf("Failed to checkout branch %s", cfg.Branch)).
				WithSuggestions(fmt.Sprintf("Verify branch '%s' exists on the remote", cfg.Branch))
		}
	}

	root := filepath.Join(local, cfg.DDLRoot)
	if _, err := os.Stat(root); err != nil {
		return "", errors.New(errors.ErrCodeRepoNotFound,
			fmt.Sprintf("DDL directory %s not found in repository", cfg.DDLRoot)).
			WithContext("repository", cfg.GitURL)
	}
	return root, nil
}

// Root resolves the DDL directory without touching the network, using
// the configured local path or a previously synced checkout.
func (s *Service) Root(cfg models.Repository) (string, error) {
	if cfg.Path != "" {
		return overrideRoot(cfg)
	}

	if cfg.GitURL == "" {
		return "", errors.New(errors.ErrCodeConfigInvalid,
			"Repository configuration needs either a git_url or a path")
	}

	local := s.localPath(cfg.GitURL)
	if _, err := os.Stat(filepath.Join(local, ".git")); err != nil {
		return "", errors.New(errors.ErrCodeRepoNotFound,
			fmt.Sprintf("Repository %s has not been synced yet", cfg.GitURL)).
			WithSuggestions("Run 'retailworks deploy --sync' to fetch it")
	}

	root := filepath.Join(local, cfg.DDLRoot)
	if _, err := os.Stat(root); err != nil {
		return "", errors.New(errors.ErrCodeRepoNotFound,
			fmt.Sprintf("DDL directory %s not found in repository", cfg.DDLRoot)).
			WithContext("repository", cfg.GitURL)
	}
	return root, nil
}

// overrideRoot resolves the DDL directory of a configured local
// checkout.
func overrideRoot(cfg models.Repository) (string, error) {
	cleaned, err := common.CleanPath(cfg.Path)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeConfigInvalid, "Invalid repository path")
	}
	root := filepath.Join(cleaned, cfg.DDLRoot)
	if _, err := os.Stat(root); err != nil {
		return "", errors.New(errors.ErrCodeRepoNotFound,
			fmt.Sprintf("DDL directory %s does not exist", root)).
			WithSuggestions("Check repository.path and repository.ddl_root in your config")
	}
	return root, nil
}

// LastCommit reports the commit a synced repository is checked out at.
func (s *Service) LastCommit(gitURL string) (*CommitInfo, error) {
	local := s.localPath(gitURL)
	r, err := git.PlainOpen(local)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRepoNotFound,
			"Repository not found in cache, sync first")
	}

	head, err := r.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	commit, err := r.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}

	return &CommitInfo{
		Hash:    commit.Hash.String(),
		Message: strings.TrimSpace(commit.Message),
		Author:  commit.Author.Name,
		Date:    commit.Author.When,
	}, nil
}

// ListSQLFiles walks a DDL root and returns its .sql files sorted by
// path, so deployment order follows file naming.
func ListSQLFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".sql") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFileNotFound,
			fmt.Sprintf("Failed to list SQL files under %s", root))
	}
	sort.Strings(files)
	return files, nil
}

// localPath maps a git URL to a cache directory name.
func (s *Service) localPath(gitURL string) string {
	name := gitURL
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, ".git")
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "" {
		name = "repository"
	}
	return filepath.Join(s.cacheDir, name)
}

func classifySyncError(err error, gitURL string) error {
	msg := err.Error()

	if strings.Contains(msg, "connection") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "unreachable") {
		return errors.New(errors.ErrCodeNetworkUnavailable,
			"Network error while syncing repository").
			WithContext("url", gitURL).
			AsRecoverable()
	}

	if strings.Contains(msg, "authentication") || strings.Contains(msg, "authorization") {
		return errors.New(errors.ErrCodeRepoAccessDenied,
			"Authentication failed for repository").
			WithContext("url", gitURL).
			WithSuggestions(
				"Check your Git credentials",
				"Try cloning the repository manually to verify access",
			)
	}

	return errors.Wrap(err, errors.ErrCodeRepoSyncFailed,
		fmt.Sprintf("Failed to sync repository %s", gitURL))
}

// cloneOrFetch clones a repository or fetches updates if it already
// exists in the cache.
func cloneOrFetch(gitURL, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), common.DirPermissionNormal); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	if _, err := os.Stat(filepath.Join(localPath, ".git")); err == nil {
		r, err := git.PlainOpen(localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing repository: %w", err)
		}
		remote, err := r.Remote("origin")
		if err != nil {
			return fmt.Errorf("failed to get remote: %w", err)
		}
		err = remote.Fetch(&git.FetchOptions{Auth: authMethod(gitURL)})
		if err != nil && err != git.NoErrAlreadyUpToDate {
			return fmt.Errorf("failed to fetch updates: %w", err)
		}
		return nil
	}

	_, err := git.PlainClone(localPath, false, &git.CloneOptions{
		URL:  gitURL,
		Auth: authMethod(gitURL),
	})
	if err != nil {
		return fmt.Errorf("failed to clone repository: %w", err)
	}
	return nil
}

// checkoutBranch switches the worktree to a branch, creating a local
// branch from origin when needed.
func checkoutBranch(repoPath, branchName string) error {
	r, err := git.PlainOpen(repoPath)
	if err != nil {
		return fmt.Errorf("failed to open repository: %w", err)
	}
	worktree, err := r.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	branchRef := plumbing.ReferenceName("refs/heads/" + branchName)
	if _, err = r.Reference(branchRef, false); err == nil {
		return worktree.Checkout(&git.CheckoutOptions{Branch: branchRef})
	}

	remoteRef := plumbing.ReferenceName("refs/remotes/origin/" + branchName)
	if ref, err := r.Reference(remoteRef, false); err == nil {
		return worktree.Checkout(&git.CheckoutOptions{
			Branch: branchRef,
			Hash:   ref.Hash(),
			Create: true,
		})
	}

	return fmt.Errorf("branch %s not found", branchName)
}

// authMethod picks credentials for a remote based on its URL scheme.
func authMethod(gitURL string) transport.AuthMethod {
	if strings.HasPrefix(gitURL, "git@") || strings.HasPrefix(gitURL, "ssh://") {
		sshKeyPath := filepath.Join(os.Getenv("HOME"), ".ssh", "id_rsa")
		if _, err := os.Stat(sshKeyPath); err == nil {
			if auth, err := ssh.NewPublicKeysFromFile("git", sshKeyPath, ""); err == nil {
				return auth
			}
		}
	}

	if strings.HasPrefix(gitURL, "https://") {
		username := os.Getenv("GIT_USERNAME")
		password := os.Getenv("GIT_PASSWORD")
		if username != "" && password != "" {
			return &http.BasicAuth{Username: username, Password: password}
		}
		if token := os.Getenv("GITHUB_TOKEN"); token != "" {
			return &http.BasicAuth{Username: "token", Password: token}
		}
	}

	return nil
}
