package cairn

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// CacheService is the read-through, commit-scoped file cache. A cache hit
// requires both the path and the current commit scope to match; entries
// from other commits are treated as absent and lazily overwritten.
type CacheService struct {
	store  CacheStore
	git    Git
	root   string
	logger *slog.Logger
}

// CacheOption configures a CacheService.
type CacheOption func(*CacheService)

// WithCacheLogger sets the cache logger.
func WithCacheLogger(l *slog.Logger) CacheOption {
	return func(c *CacheService) { c.logger = l }
}

// NewCacheService creates a cache over the given store, scoped to the
// repository (or plain directory) at root.
func NewCacheService(store CacheStore, git Git, root string, opts ...CacheOption) *CacheService {
	c := &CacheService{store: store, git: git, root: root, logger: nopLogger()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Scope returns the current cache scope: the HEAD commit hash, or
// NoGitCommit outside a repository.
func (c *CacheService) Scope(ctx context.Context) string {
	head, err := c.git.Head(ctx)
	if err != nil || head == "" {
		return NoGitCommit
	}
	return head
}

// ReadFile returns the content of path (relative to the cache root),
// serving from the cache when a matching-commit entry exists and falling
// back to disk otherwise. Disk reads repopulate the cache.
func (c *CacheService) ReadFile(ctx context.Context, path string) (string, error) {
	scope := c.Scope(ctx)
	start := time.Now()

	if cf, ok, err := c.store.GetFile(ctx, path); err == nil && ok && cf.Commit == scope {
		c.logger.Debug("cache hit", "path", path, "commit", scope, "duration", time.Since(start))
		return cf.Content, nil
	}

	abs, err := c.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	content := string(data)

	sum := sha256.Sum256(data)
	cf := CachedFile{
		Path:        path,
		Commit:      scope,
		ContentHash: hex.EncodeToString(sum[:]),
		Content:     content,
		LastUpdated: NowStamp(),
	}
	if err := c.store.PutFile(ctx, cf); err != nil {
		c.logger.Warn("cache write failed", "path", path, "error", err)
	}
	c.logger.Debug("cache miss", "path", path, "commit", scope, "bytes", len(data), "duration", time.Since(start))
	return content, nil
}

// Refresh replaces the cached content for path after a tool wrote it.
// Re-caching replaces the entry wholesale; the summary is dropped since
// it described the old content.
func (c *CacheService) Refresh(ctx context.Context, path, content string) {
	sum := sha256.Sum256([]byte(content))
	cf := CachedFile{
		Path:        path,
		Commit:      c.Scope(ctx),
		ContentHash: hex.EncodeToString(sum[:]),
		Content:     content,
		LastUpdated: NowStamp(),
	}
	if err := c.store.PutFile(ctx, cf); err != nil {
		c.logger.Warn("cache refresh failed", "path", path, "error", err)
	}
}

// SetSummary attaches a model-generated summary to the entry for path at
// the current scope, creating the entry if none exists.
func (c *CacheService) SetSummary(ctx context.Context, path, summary string) error {
	scope := c.Scope(ctx)
	if cf, ok, err := c.store.GetFile(ctx, path); err == nil && ok && cf.Commit == scope {
		return c.store.SetSummary(ctx, path, summary)
	}
	return c.store.PutFile(ctx, CachedFile{
		Path:        path,
		Commit:      scope,
		Summary:     summary,
		LastUpdated: NowStamp(),
	})
}

// Summary returns the stored summary for path within the current scope.
func (c *CacheService) Summary(ctx context.Context, path string) (string, bool) {
	cf, ok, err := c.store.GetFile(ctx, path)
	if err != nil || !ok || cf.Commit != c.Scope(ctx) || cf.Summary == "" {
		return "", false
	}
	return cf.Summary, true
}

// Cleanup removes cache entries whose commit is not among the last
// keepLastN commits. Entries under the no-git scope always survive.
// Outside a repository this is a no-op.
func (c *CacheService) Cleanup(ctx context.Context, keepLastN int) (int64, error) {
	commits, err := c.git.RecentCommits(ctx, keepLastN)
	if err != nil || len(commits) == 0 {
		return 0, nil
	}
	keep := append(commits, NoGitCommit)
	n, err := c.store.DeleteNotIn(ctx, keep)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		c.logger.Debug("cache cleanup", "kept_commits", len(commits), "removed", n)
	}
	return n, nil
}

// resolve joins path to the cache root and rejects escapes.
func (c *CacheService) resolve(path string) (string, error) {
	abs := filepath.Join(c.root, path)
	rootAbs, err := filepath.Abs(c.root)
	if err != nil {
		return "", err
	}
	absClean, err := filepath.Abs(abs)
	if err != nil {
		return "", err
	}
	if absClean != rootAbs && !isWithin(rootAbs, absClean) {
		return "", fmt.Errorf("path escapes working directory: %s", path)
	}
	return absClean, nil
}

func isWithin(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !hasDotDotPrefix(rel)
}

func hasDotDotPrefix(rel string) bool {
	return rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator)
}
