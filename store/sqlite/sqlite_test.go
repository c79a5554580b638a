package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/cairnlabs/cairn"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "test.db"))
	t.Cleanup(func() { s.Close() })
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return s
}

func TestAppendSessionAssignsIncreasingIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var prev int64
	for i := 0; i < 5; i++ {
		rec, err := s.AppendSession(ctx, cairn.SessionRecord{
			Timestamp: cairn.NowStamp(),
			Prompt:    "prompt",
			Commit:    "abc123",
			Summary:   "done",
		})
		if err != nil {
			t.Fatalf("append session: %v", err)
		}
		if rec.ID <= prev {
			t.Fatalf("id %d not greater than previous %d", rec.ID, prev)
		}
		if prev != 0 && rec.ID != prev+1 {
			t.Fatalf("id %d leaves a gap after %d", rec.ID, prev)
		}
		prev = rec.ID
	}
}

func TestSessionsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	logJSON, _ := json.Marshal([]cairn.LogEntry{{
		Action: cairn.Action{Type: cairn.ActionTool, ToolName: "read_file"},
		Result: cairn.StepResult{Success: true, Output: "hi", Description: "read_file()"},
	}})
	in := cairn.SessionRecord{
		Timestamp:     cairn.NowStamp(),
		Prompt:        "show me the file",
		Commit:        "deadbeef",
		ModifiedFiles: []string{"a.go", "b.go"},
		Summary:       "showed the file",
		ExecutionLog:  logJSON,
	}
	saved, err := s.AppendSession(ctx, in)
	if err != nil {
		t.Fatalf("append session: %v", err)
	}

	recs, err := s.Sessions(ctx, 10)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 session, got %d", len(recs))
	}
	got := recs[0]
	if got.ID != saved.ID || got.Prompt != in.Prompt || got.Commit != in.Commit || got.Summary != in.Summary {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if len(got.ModifiedFiles) != 2 || got.ModifiedFiles[0] != "a.go" {
		t.Fatalf("modified files mismatch: %v", got.ModifiedFiles)
	}
	if len(got.ExecutionLog) == 0 {
		t.Fatal("execution log missing")
	}
}

func TestRecentSummariesNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, sum := range []string{"first", "second", "third"} {
		if _, err := s.AppendSession(ctx, cairn.SessionRecord{
			Timestamp: cairn.NowStamp(), Prompt: "p", Commit: "c", Summary: sum,
		}); err != nil {
			t.Fatalf("append session: %v", err)
		}
	}

	got, err := s.RecentSummaries(ctx, 2, "", false)
	if err != nil {
		t.Fatalf("recent summaries: %v", err)
	}
	if len(got) != 2 || got[0] != "third" || got[1] != "second" {
		t.Fatalf("expected [third second], got %v", got)
	}
}

func TestRecentSummariesRelevanceFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	summaries := []string{
		"refactored the auth module login flow",
		"completely unrelated database migration work",
		"fixed the auth module token refresh",
	}
	for _, sum := range summaries {
		if _, err := s.AppendSession(ctx, cairn.SessionRecord{
			Timestamp: cairn.NowStamp(), Prompt: "p", Commit: "c", Summary: sum,
		}); err != nil {
			t.Fatalf("append session: %v", err)
		}
	}

	got, err := s.RecentSummaries(ctx, 5, "fix the auth module", true)
	if err != nil {
		t.Fatalf("recent summaries: %v", err)
	}
	for _, sum := range got {
		if sum == "completely unrelated database migration work" {
			t.Fatalf("irrelevant summary survived the filter: %v", got)
		}
	}
	if len(got) == 0 {
		t.Fatal("relevant summaries were filtered out")
	}
}

func TestLastModifiedFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if files, err := s.LastModifiedFiles(ctx); err != nil || files != nil {
		t.Fatalf("expected nil on empty store, got %v, %v", files, err)
	}

	if _, err := s.AppendSession(ctx, cairn.SessionRecord{
		Timestamp: cairn.NowStamp(), Prompt: "p", Commit: "c",
		ModifiedFiles: []string{"x.go"}, Summary: "s",
	}); err != nil {
		t.Fatalf("append session: %v", err)
	}
	files, err := s.LastModifiedFiles(ctx)
	if err != nil {
		t.Fatalf("last modified files: %v", err)
	}
	if len(files) != 1 || files[0] != "x.go" {
		t.Fatalf("expected [x.go], got %v", files)
	}
}

func TestFileCacheRoundTripAndReplace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cf := cairn.CachedFile{
		Path:        "foo.py",
		Commit:      "commitA",
		ContentHash: "h1",
		Content:     "print('a')",
		LastUpdated: cairn.NowStamp(),
	}
	if err := s.PutFile(ctx, cf); err != nil {
		t.Fatalf("put file: %v", err)
	}

	got, ok, err := s.GetFile(ctx, "foo.py")
	if err != nil || !ok {
		t.Fatalf("get file: ok=%v err=%v", ok, err)
	}
	if got.Content != cf.Content || got.Commit != "commitA" {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	// Re-caching replaces: one entry per path.
	cf.Commit = "commitB"
	cf.Content = "print('b')"
	if err := s.PutFile(ctx, cf); err != nil {
		t.Fatalf("put file again: %v", err)
	}
	got, ok, err = s.GetFile(ctx, "foo.py")
	if err != nil || !ok {
		t.Fatalf("get file after replace: ok=%v err=%v", ok, err)
	}
	if got.Commit != "commitB" || got.Content != "print('b')" {
		t.Fatalf("replace did not take effect: %+v", got)
	}
}

func TestSetSummaryIgnoresMissingEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetSummary(ctx, "missing.go", "whatever"); err != nil {
		t.Fatalf("set summary on missing entry: %v", err)
	}

	if err := s.PutFile(ctx, cairn.CachedFile{
		Path: "a.go", Commit: "c1", ContentHash: "h", Content: "x", LastUpdated: cairn.NowStamp(),
	}); err != nil {
		t.Fatalf("put file: %v", err)
	}
	if err := s.SetSummary(ctx, "a.go", "a summary"); err != nil {
		t.Fatalf("set summary: %v", err)
	}
	got, _, err := s.GetFile(ctx, "a.go")
	if err != nil {
		t.Fatalf("get file: %v", err)
	}
	if got.Summary != "a summary" {
		t.Fatalf("summary not stored: %+v", got)
	}
}

func TestDeleteNotInKeepsListedCommits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entries := map[string]string{
		"a.go": "commitA",
		"b.go": "commitB",
		"c.go": "no-git",
	}
	for path, commit := range entries {
		if err := s.PutFile(ctx, cairn.CachedFile{
			Path: path, Commit: commit, ContentHash: "h", Content: "x", LastUpdated: cairn.NowStamp(),
		}); err != nil {
			t.Fatalf("put %s: %v", path, err)
		}
	}

	n, err := s.DeleteNotIn(ctx, []string{"commitB", "no-git"})
	if err != nil {
		t.Fatalf("delete not in: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 deleted, got %d", n)
	}
	if _, ok, _ := s.GetFile(ctx, "a.go"); ok {
		t.Fatal("commitA entry should be gone")
	}
	for _, path := range []string{"b.go", "c.go"} {
		if _, ok, _ := s.GetFile(ctx, path); !ok {
			t.Fatalf("%s should survive cleanup", path)
		}
	}
}

func TestInsertInteraction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, err := s.AppendSession(ctx, cairn.SessionRecord{
		Timestamp: cairn.NowStamp(), Prompt: "p", Commit: "c", Summary: "s",
	})
	if err != nil {
		t.Fatalf("append session: %v", err)
	}
	err = s.InsertInteraction(ctx, cairn.ModelInteraction{
		SessionID: rec.ID,
		Step:      1,
		Timestamp: cairn.NowStamp(),
		Prompt:    "plan please",
		Response:  `{"actions":[]}`,
	})
	if err != nil {
		t.Fatalf("insert interaction: %v", err)
	}
}
