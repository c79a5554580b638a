package cairn

import (
	"context"
	"log/slog"
)

// ContextBuilder assembles the per-request Context from git state and the
// session store. Every input degrades to a default on failure; building a
// Context never fails.
type ContextBuilder struct {
	git          Git
	store        SessionStore
	maxSummaries int
	debug        bool
	logger       *slog.Logger
}

// ContextBuilderOption configures a ContextBuilder.
type ContextBuilderOption func(*ContextBuilder)

// WithMaxSummaries caps the recent summaries included in a Context.
func WithMaxSummaries(n int) ContextBuilderOption {
	return func(b *ContextBuilder) { b.maxSummaries = n }
}

// WithContextDebug marks built Contexts as debug-enabled.
func WithContextDebug(debug bool) ContextBuilderOption {
	return func(b *ContextBuilder) { b.debug = debug }
}

// WithContextLogger sets the builder logger.
func WithContextLogger(l *slog.Logger) ContextBuilderOption {
	return func(b *ContextBuilder) { b.logger = l }
}

// NewContextBuilder creates a ContextBuilder over git and the session store.
func NewContextBuilder(git Git, store SessionStore, opts ...ContextBuilderOption) *ContextBuilder {
	b := &ContextBuilder{git: git, store: store, maxSummaries: 5, logger: nopLogger()}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Build constructs the Context for one request. Git failures yield
// UnknownCommit and an empty modified-files list; store failures yield no
// summaries. Summaries arrive newest-first from the store and are reversed
// so the Context carries them newest-last.
func (b *ContextBuilder) Build(ctx context.Context, prompt string) Context {
	c := Context{Prompt: prompt, Commit: UnknownCommit, Debug: b.debug}

	if head, err := b.git.Head(ctx); err == nil && head != "" {
		c.Commit = head
	} else if err != nil {
		b.logger.Debug("git head unavailable", "error", err)
	}

	if files, err := b.git.ModifiedFiles(ctx); err == nil {
		c.ModifiedFiles = files
	} else {
		b.logger.Debug("git status unavailable", "error", err)
	}

	if b.store != nil {
		summaries, err := b.store.RecentSummaries(ctx, b.maxSummaries, prompt, true)
		if err != nil {
			b.logger.Debug("recent summaries unavailable", "error", err)
		} else {
			for i, j := 0, len(summaries)-1; i < j; i, j = i+1, j-1 {
				summaries[i], summaries[j] = summaries[j], summaries[i]
			}
			c.RecentSummaries = summaries
		}
	}
	return c
}
