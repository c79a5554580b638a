// Package sqlite implements cairn.SessionStore and cairn.CacheStore over a
// local SQLite file using the pure-Go driver. Zero CGO required.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cairnlabs/cairn"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// StoreOption configures a SQLite Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store.
// When set, the store emits debug logs for every operation including
// timing, row counts, and key parameters. If not set, no logs are emitted.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store holds sessions, the commit-scoped file cache, and the model audit
// trail in one SQLite file.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ cairn.SessionStore = (*Store)(nil)
var _ cairn.CacheStore = (*Store)(nil)

// nopLogger is a logger that discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// New creates a Store using a local SQLite file at dbPath.
// It opens a single shared connection pool with SetMaxOpenConns(1) so that
// all goroutines serialize through one connection, eliminating SQLITE_BUSY
// errors caused by concurrent writers opening independent connections.
func New(dbPath string, opts ...StoreOption) *Store {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: nopLogger}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("sqlite: store opened", "path", dbPath)
	return s
}

// Init creates all required tables and indexes.
func (s *Store) Init(ctx context.Context) error {
	start := time.Now()
	s.logger.Debug("sqlite: init started")
	tables := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			user_prompt TEXT NOT NULL,
			commit_hash TEXT NOT NULL,
			modified_files TEXT NOT NULL,
			summary TEXT NOT NULL,
			execution_log TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS file_cache (
			file_path TEXT PRIMARY KEY,
			commit_hash TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			content TEXT NOT NULL,
			summary TEXT,
			last_updated TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS model_interactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER NOT NULL REFERENCES sessions(id),
			timestamp TEXT NOT NULL,
			step_number INTEGER NOT NULL,
			prompt TEXT NOT NULL,
			response TEXT NOT NULL,
			metadata TEXT
		)`,
	}
	for _, ddl := range tables {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	// Indexes on frequently queried columns.
	_, _ = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_sessions_timestamp ON sessions(timestamp)`)
	_, _ = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_file_cache_commit ON file_cache(commit_hash)`)
	_, _ = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_interactions_session ON model_interactions(session_id)`)

	s.logger.Info("sqlite: init completed", "duration", time.Since(start))
	return nil
}

// --- Sessions ---

// AppendSession inserts a session row and returns it with the assigned id.
func (s *Store) AppendSession(ctx context.Context, rec cairn.SessionRecord) (cairn.SessionRecord, error) {
	start := time.Now()
	s.logger.Debug("sqlite: append session", "commit", rec.Commit, "modified_files", len(rec.ModifiedFiles))

	filesJSON, _ := json.Marshal(rec.ModifiedFiles)
	if rec.ModifiedFiles == nil {
		filesJSON = []byte("[]")
	}
	var logJSON *string
	if len(rec.ExecutionLog) > 0 {
		v := string(rec.ExecutionLog)
		logJSON = &v
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (timestamp, user_prompt, commit_hash, modified_files, summary, execution_log)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Timestamp, rec.Prompt, rec.Commit, string(filesJSON), rec.Summary, logJSON,
	)
	if err != nil {
		s.logger.Error("sqlite: append session failed", "error", err, "duration", time.Since(start))
		return cairn.SessionRecord{}, fmt.Errorf("append session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return cairn.SessionRecord{}, fmt.Errorf("append session id: %w", err)
	}
	rec.ID = id
	s.logger.Debug("sqlite: append session ok", "id", id, "duration", time.Since(start))
	return rec, nil
}

// RecentSummaries returns up to n summaries, newest first, optionally
// filtered for relevance to prompt. Filtering scans more candidates than n
// so a relevant older session is not crowded out by unrelated newer ones.
func (s *Store) RecentSummaries(ctx context.Context, n int, prompt string, filter bool) ([]string, error) {
	start := time.Now()
	s.logger.Debug("sqlite: recent summaries", "limit", n, "filter", filter)

	scan := n
	if filter && prompt != "" {
		scan = n * 4
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT summary FROM sessions ORDER BY id DESC LIMIT ?`, scan)
	if err != nil {
		s.logger.Error("sqlite: recent summaries failed", "error", err, "duration", time.Since(start))
		return nil, fmt.Errorf("recent summaries: %w", err)
	}
	defer rows.Close()

	var summaries []string
	for rows.Next() {
		var sum string
		if err := rows.Scan(&sum); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}

	if filter && prompt != "" {
		summaries = cairn.FilterRelevant(prompt, summaries)
	}
	if len(summaries) > n {
		summaries = summaries[:n]
	}
	s.logger.Debug("sqlite: recent summaries ok", "count", len(summaries), "duration", time.Since(start))
	return summaries, nil
}

// LastModifiedFiles returns the modified-files list of the newest session.
func (s *Store) LastModifiedFiles(ctx context.Context) ([]string, error) {
	var filesJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT modified_files FROM sessions ORDER BY id DESC LIMIT 1`,
	).Scan(&filesJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last modified files: %w", err)
	}
	var files []string
	_ = json.Unmarshal([]byte(filesJSON), &files)
	return files, nil
}

// Sessions returns the n most recent full records, newest first.
func (s *Store) Sessions(ctx context.Context, n int) ([]cairn.SessionRecord, error) {
	start := time.Now()
	s.logger.Debug("sqlite: list sessions", "limit", n)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, user_prompt, commit_hash, modified_files, summary, execution_log
		 FROM sessions ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		s.logger.Error("sqlite: list sessions failed", "error", err, "duration", time.Since(start))
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var recs []cairn.SessionRecord
	for rows.Next() {
		var r cairn.SessionRecord
		var filesJSON string
		var logJSON sql.NullString
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Prompt, &r.Commit, &filesJSON, &r.Summary, &logJSON); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		_ = json.Unmarshal([]byte(filesJSON), &r.ModifiedFiles)
		if logJSON.Valid {
			r.ExecutionLog = json.RawMessage(logJSON.String)
		}
		recs = append(recs, r)
	}
	s.logger.Debug("sqlite: list sessions ok", "count", len(recs), "duration", time.Since(start))
	return recs, rows.Err()
}

// InsertInteraction records one planner exchange.
func (s *Store) InsertInteraction(ctx context.Context, mi cairn.ModelInteraction) error {
	start := time.Now()
	s.logger.Debug("sqlite: insert interaction", "session_id", mi.SessionID, "step", mi.Step)

	var metaJSON *string
	if len(mi.Metadata) > 0 {
		v := string(mi.Metadata)
		metaJSON = &v
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO model_interactions (session_id, timestamp, step_number, prompt, response, metadata)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		mi.SessionID, mi.Timestamp, mi.Step, mi.Prompt, mi.Response, metaJSON,
	)
	if err != nil {
		s.logger.Error("sqlite: insert interaction failed", "session_id", mi.SessionID, "error", err, "duration", time.Since(start))
		return fmt.Errorf("insert interaction: %w", err)
	}
	s.logger.Debug("sqlite: insert interaction ok", "session_id", mi.SessionID, "duration", time.Since(start))
	return nil
}

// --- File cache ---

// GetFile returns the cache entry for path, reporting whether one exists.
func (s *Store) GetFile(ctx context.Context, path string) (cairn.CachedFile, bool, error) {
	start := time.Now()
	s.logger.Debug("sqlite: get cached file", "path", path)

	var cf cairn.CachedFile
	var summary sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT file_path, commit_hash, content_hash, content, summary, last_updated
		 FROM file_cache WHERE file_path = ?`, path,
	).Scan(&cf.Path, &cf.Commit, &cf.ContentHash, &cf.Content, &summary, &cf.LastUpdated)
	if err == sql.ErrNoRows {
		s.logger.Debug("sqlite: get cached file miss", "path", path, "duration", time.Since(start))
		return cairn.CachedFile{}, false, nil
	}
	if err != nil {
		s.logger.Error("sqlite: get cached file failed", "path", path, "error", err, "duration", time.Since(start))
		return cairn.CachedFile{}, false, fmt.Errorf("get cached file: %w", err)
	}
	if summary.Valid {
		cf.Summary = summary.String
	}
	s.logger.Debug("sqlite: get cached file ok", "path", path, "commit", cf.Commit, "duration", time.Since(start))
	return cf, true, nil
}

// PutFile inserts or replaces the entry for cf.Path.
func (s *Store) PutFile(ctx context.Context, cf cairn.CachedFile) error {
	start := time.Now()
	s.logger.Debug("sqlite: put cached file", "path", cf.Path, "commit", cf.Commit, "bytes", len(cf.Content))

	var summary *string
	if cf.Summary != "" {
		summary = &cf.Summary
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO file_cache (file_path, commit_hash, content_hash, content, summary, last_updated)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		cf.Path, cf.Commit, cf.ContentHash, cf.Content, summary, cf.LastUpdated,
	)
	if err != nil {
		s.logger.Error("sqlite: put cached file failed", "path", cf.Path, "error", err, "duration", time.Since(start))
		return fmt.Errorf("put cached file: %w", err)
	}
	s.logger.Debug("sqlite: put cached file ok", "path", cf.Path, "duration", time.Since(start))
	return nil
}

// SetSummary updates the summary of an existing entry. Missing entries are
// ignored.
func (s *Store) SetSummary(ctx context.Context, path, summary string) error {
	start := time.Now()
	s.logger.Debug("sqlite: set file summary", "path", path)

	_, err := s.db.ExecContext(ctx,
		`UPDATE file_cache SET summary = ? WHERE file_path = ?`, summary, path)
	if err != nil {
		s.logger.Error("sqlite: set file summary failed", "path", path, "error", err, "duration", time.Since(start))
		return fmt.Errorf("set file summary: %w", err)
	}
	s.logger.Debug("sqlite: set file summary ok", "path", path, "duration", time.Since(start))
	return nil
}

// DeleteNotIn removes entries whose commit is not in keep.
func (s *Store) DeleteNotIn(ctx context.Context, keep []string) (int64, error) {
	start := time.Now()
	s.logger.Debug("sqlite: cache cleanup", "kept_commits", len(keep))

	if len(keep) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(keep))
	args := make([]any, len(keep))
	for i, c := range keep {
		placeholders[i] = "?"
		args[i] = c
	}
	query := fmt.Sprintf(`DELETE FROM file_cache WHERE commit_hash NOT IN (%s)`,
		strings.Join(placeholders, ","))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("sqlite: cache cleanup failed", "error", err, "duration", time.Since(start))
		return 0, fmt.Errorf("cache cleanup: %w", err)
	}
	n, _ := res.RowsAffected()
	s.logger.Debug("sqlite: cache cleanup ok", "deleted", n, "duration", time.Since(start))
	return n, nil
}

// DB returns the underlying *sql.DB for sharing with other components.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	s.logger.Debug("sqlite: closing store")
	err := s.db.Close()
	if err != nil {
		s.logger.Error("sqlite: close failed", "error", err)
	}
	return err
}
