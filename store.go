package cairn

import "context"

// SessionStore persists completed sessions and the optional model audit
// trail. store/sqlite provides the standard implementation.
type SessionStore interface {
	// AppendSession inserts a new session row and returns it with the
	// store-assigned ID. IDs strictly increase in insertion order.
	AppendSession(ctx context.Context, rec SessionRecord) (SessionRecord, error)

	// RecentSummaries returns up to n session summaries, newest first.
	// When prompt is non-empty the candidates are filtered for relevance
	// to it before truncation; with filtering off (or an empty prompt) the
	// newest n are returned unfiltered.
	RecentSummaries(ctx context.Context, n int, prompt string, filter bool) ([]string, error)

	// LastModifiedFiles returns the modified-files list of the most recent
	// session, or nil when the store is empty.
	LastModifiedFiles(ctx context.Context) ([]string, error)

	// Sessions returns the n most recent full records, newest first.
	Sessions(ctx context.Context, n int) ([]SessionRecord, error)

	// InsertInteraction records one planner exchange for auditing.
	InsertInteraction(ctx context.Context, mi ModelInteraction) error

	// Close releases the underlying database handle.
	Close() error
}

// CacheStore persists commit-scoped file cache entries. Path is the key;
// storing an entry for an existing path replaces it wholesale.
type CacheStore interface {
	// GetFile returns the entry for path, reporting whether one exists.
	GetFile(ctx context.Context, path string) (CachedFile, bool, error)

	// PutFile inserts or replaces the entry for cf.Path.
	PutFile(ctx context.Context, cf CachedFile) error

	// SetSummary updates only the summary of an existing entry. Missing
	// entries are ignored.
	SetSummary(ctx context.Context, path, summary string) error

	// DeleteNotIn removes every entry whose commit is not in keep,
	// returning the number removed.
	DeleteNotIn(ctx context.Context, keep []string) (int64, error)
}
