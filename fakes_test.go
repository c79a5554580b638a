package cairn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// fakeModel returns scripted responses in order, repeating the last one
// when the script runs out.
type fakeModel struct {
	responses []ModelResponse
	prompts   []string
	calls     int
	available bool
}

func (m *fakeModel) Generate(ctx context.Context, prompt string, opts *GenerateOptions) ModelResponse {
	m.prompts = append(m.prompts, prompt)
	i := m.calls
	m.calls++
	if len(m.responses) == 0 {
		return ModelResponse{Text: `{"actions":[]}`}
	}
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	return m.responses[i]
}

func (m *fakeModel) Available(ctx context.Context) bool { return m.available }

func textResponse(s string) ModelResponse { return ModelResponse{Text: s} }

// fakeGit serves fixed repository state.
type fakeGit struct {
	head    string
	headErr error
	files   []string
	commits []string
}

func (g *fakeGit) Head(ctx context.Context) (string, error) {
	if g.headErr != nil {
		return "", g.headErr
	}
	if g.head == "" {
		return "", errors.New("not a git repository")
	}
	return g.head, nil
}

func (g *fakeGit) ModifiedFiles(ctx context.Context) ([]string, error) { return g.files, nil }

func (g *fakeGit) Diff(ctx context.Context, paths ...string) (string, error) { return "", nil }

func (g *fakeGit) Log(ctx context.Context, n int) ([]string, error) { return nil, nil }

func (g *fakeGit) RecentCommits(ctx context.Context, n int) ([]string, error) {
	if n > len(g.commits) {
		n = len(g.commits)
	}
	return g.commits[:n], nil
}

// memStore is an in-memory SessionStore and CacheStore for loop tests.
type memStore struct {
	sessions     []SessionRecord
	interactions []ModelInteraction
	cache        map[string]CachedFile
	nextID       int64
	appendErr    error
}

func newMemStore() *memStore {
	return &memStore{cache: make(map[string]CachedFile), nextID: 1}
}

func (s *memStore) AppendSession(ctx context.Context, rec SessionRecord) (SessionRecord, error) {
	if s.appendErr != nil {
		return SessionRecord{}, s.appendErr
	}
	rec.ID = s.nextID
	s.nextID++
	s.sessions = append(s.sessions, rec)
	return rec, nil
}

func (s *memStore) RecentSummaries(ctx context.Context, n int, prompt string, filter bool) ([]string, error) {
	var out []string
	for i := len(s.sessions) - 1; i >= 0 && len(out) < n; i-- {
		sum := s.sessions[i].Summary
		if filter && prompt != "" && TokenSimilarity(prompt, sum) < RelevanceThreshold {
			continue
		}
		out = append(out, sum)
	}
	return out, nil
}

func (s *memStore) LastModifiedFiles(ctx context.Context) ([]string, error) {
	if len(s.sessions) == 0 {
		return nil, nil
	}
	return s.sessions[len(s.sessions)-1].ModifiedFiles, nil
}

func (s *memStore) Sessions(ctx context.Context, n int) ([]SessionRecord, error) {
	var out []SessionRecord
	for i := len(s.sessions) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.sessions[i])
	}
	return out, nil
}

func (s *memStore) InsertInteraction(ctx context.Context, mi ModelInteraction) error {
	s.interactions = append(s.interactions, mi)
	return nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) GetFile(ctx context.Context, path string) (CachedFile, bool, error) {
	cf, ok := s.cache[path]
	return cf, ok, nil
}

func (s *memStore) PutFile(ctx context.Context, cf CachedFile) error {
	s.cache[cf.Path] = cf
	return nil
}

func (s *memStore) SetSummary(ctx context.Context, path, summary string) error {
	cf, ok := s.cache[path]
	if !ok {
		return nil
	}
	cf.Summary = summary
	s.cache[path] = cf
	return nil
}

func (s *memStore) DeleteNotIn(ctx context.Context, keep []string) (int64, error) {
	keepSet := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		keepSet[k] = struct{}{}
	}
	var n int64
	for p, cf := range s.cache {
		if _, ok := keepSet[cf.Commit]; !ok {
			delete(s.cache, p)
			n++
		}
	}
	return n, nil
}

// fakeTool answers every registered name with a canned result, recording
// the calls it receives.
type fakeTool struct {
	defs    []ToolDefinition
	results map[string]ToolResult
	execErr error
	calls   []string
}

func (t *fakeTool) Definitions() []ToolDefinition { return t.defs }

func (t *fakeTool) Execute(ctx context.Context, name string, args json.RawMessage) (ToolResult, error) {
	t.calls = append(t.calls, name)
	if t.execErr != nil {
		return ToolResult{}, t.execErr
	}
	if r, ok := t.results[name]; ok {
		return r, nil
	}
	return ToolResult{Content: fmt.Sprintf("%s ran", name)}, nil
}

func unmarshalLog(raw json.RawMessage, out *[]LogEntry) error {
	return json.Unmarshal(raw, out)
}

func simpleTool(name string, destructive bool, result ToolResult) *fakeTool {
	return &fakeTool{
		defs: []ToolDefinition{{
			Name:        name,
			Description: name,
			Parameters:  json.RawMessage(`{"type":"object"}`),
			Destructive: destructive,
		}},
		results: map[string]ToolResult{name: result},
	}
}

var (
	_ ModelClient  = (*fakeModel)(nil)
	_ Git          = (*fakeGit)(nil)
	_ SessionStore = (*memStore)(nil)
	_ CacheStore   = (*memStore)(nil)
	_ Tool         = (*fakeTool)(nil)
)
