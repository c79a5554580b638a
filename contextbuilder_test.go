package cairn

import (
	"context"
	"testing"
)

func TestContextBuilderBuild(t *testing.T) {
	store := newMemStore()
	// Seeded oldest first; the store serves newest first.
	for _, s := range []string{
		"Refactored the parser module.",
		"Added parser tests and fixtures.",
	} {
		if _, err := store.AppendSession(context.Background(), SessionRecord{Summary: s}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	git := &fakeGit{head: "abc123", files: []string{"parser.go"}}
	b := NewContextBuilder(git, store, WithMaxSummaries(5))

	c := b.Build(context.Background(), "extend the parser module tests")
	if c.Commit != "abc123" {
		t.Fatalf("commit = %q", c.Commit)
	}
	if len(c.ModifiedFiles) != 1 || c.ModifiedFiles[0] != "parser.go" {
		t.Fatalf("modified files = %v", c.ModifiedFiles)
	}
	// Newest last, so the planner prompt reads chronologically.
	if len(c.RecentSummaries) != 2 || c.RecentSummaries[1] != "Added parser tests and fixtures." {
		t.Fatalf("summaries = %v", c.RecentSummaries)
	}
}

func TestContextBuilderOutsideRepo(t *testing.T) {
	b := NewContextBuilder(&fakeGit{}, newMemStore())
	c := b.Build(context.Background(), "hello")
	if c.Commit != UnknownCommit {
		t.Fatalf("commit = %q", c.Commit)
	}
	if len(c.ModifiedFiles) != 0 {
		t.Fatalf("modified files = %v", c.ModifiedFiles)
	}
}

func TestContextBuilderFiltersIrrelevantSummaries(t *testing.T) {
	store := newMemStore()
	for _, s := range []string{
		"Changed the parser grammar rules.",
		"Watered the office plants and fed the goldfish.",
	} {
		if _, err := store.AppendSession(context.Background(), SessionRecord{Summary: s}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	b := NewContextBuilder(&fakeGit{head: "abc"}, store)

	c := b.Build(context.Background(), "tweak the parser grammar")
	if len(c.RecentSummaries) != 1 || c.RecentSummaries[0] != "Changed the parser grammar rules." {
		t.Fatalf("summaries = %v", c.RecentSummaries)
	}
}

func TestContextBuilderNilStore(t *testing.T) {
	b := NewContextBuilder(&fakeGit{head: "abc"}, nil)
	c := b.Build(context.Background(), "hello")
	if c.RecentSummaries != nil {
		t.Fatalf("summaries = %v", c.RecentSummaries)
	}
}
