package cli

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cairnlabs/cairn"
)

type statusGit struct {
	head    string
	files   []string
	commits []string
}

func (g *statusGit) Head(ctx context.Context) (string, error) {
	if g.head == "" {
		return "", errors.New("not a git repository")
	}
	return g.head, nil
}

func (g *statusGit) ModifiedFiles(ctx context.Context) ([]string, error) { return g.files, nil }

func (g *statusGit) Diff(ctx context.Context, paths ...string) (string, error) { return "", nil }

func (g *statusGit) Log(ctx context.Context, n int) ([]string, error) { return g.commits, nil }

func (g *statusGit) RecentCommits(ctx context.Context, n int) ([]string, error) { return nil, nil }

type statusStore struct {
	records []cairn.SessionRecord
}

func (s *statusStore) AppendSession(ctx context.Context, rec cairn.SessionRecord) (cairn.SessionRecord, error) {
	s.records = append(s.records, rec)
	return rec, nil
}

func (s *statusStore) RecentSummaries(ctx context.Context, n int, prompt string, filter bool) ([]string, error) {
	return nil, nil
}

func (s *statusStore) LastModifiedFiles(ctx context.Context) ([]string, error) {
	if len(s.records) == 0 {
		return nil, nil
	}
	return s.records[len(s.records)-1].ModifiedFiles, nil
}

func (s *statusStore) Sessions(ctx context.Context, n int) ([]cairn.SessionRecord, error) {
	return s.records, nil
}

func (s *statusStore) InsertInteraction(ctx context.Context, mi cairn.ModelInteraction) error {
	return nil
}

func (s *statusStore) Close() error { return nil }

func TestRunStatusReport(t *testing.T) {
	git := &statusGit{
		head:    "abc123",
		files:   []string{"main.go"},
		commits: []string{"abc123 fix the parser", "def456 add tests"},
	}
	store := &statusStore{records: []cairn.SessionRecord{{
		ID:            1,
		Timestamp:     cairn.NowStamp(),
		Prompt:        "refactor the parser",
		ModifiedFiles: []string{"parser.go", "parser_test.go"},
	}}}

	var b strings.Builder
	if err := runStatus(context.Background(), &b, git, store); err != nil {
		t.Fatalf("runStatus: %v", err)
	}
	out := b.String()
	for _, want := range []string{
		"commit: abc123",
		"modified files: 1",
		"  main.go",
		"recent commits:",
		"  abc123 fix the parser",
		"files touched last session: parser.go, parser_test.go",
		"recent sessions: 1",
		"refactor the parser",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestRunStatusOutsideRepo(t *testing.T) {
	git := &statusGit{}
	store := &statusStore{}

	var b strings.Builder
	if err := runStatus(context.Background(), &b, git, store); err != nil {
		t.Fatalf("runStatus: %v", err)
	}
	out := b.String()
	if !strings.Contains(out, "commit: unknown") {
		t.Fatalf("unexpected commit line:\n%s", out)
	}
	if strings.Contains(out, "recent commits:") || strings.Contains(out, "files touched") {
		t.Fatalf("empty sections must be omitted:\n%s", out)
	}
}
