// Package search provides code_search over the working directory. It
// prefers ripgrep, falls back to grep, and degrades to an in-process scan
// when neither binary is available.
package search

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/cairnlabs/cairn"
)

const (
	maxMatches    = 100
	searchTimeout = 30 * time.Second
)

// skipDirs are never descended into by the in-process fallback.
var skipDirs = map[string]struct{}{
	".git": {}, "node_modules": {}, "vendor": {}, ".venv": {}, "__pycache__": {},
}

// Tool runs literal or regex searches rooted at one directory.
type Tool struct {
	root string
}

// New creates a search Tool rooted at root.
func New(root string) *Tool {
	return &Tool{root: root}
}

func (t *Tool) Definitions() []cairn.ToolDefinition {
	return []cairn.ToolDefinition{
		{
			Name:        "code_search",
			Description: "Search file contents in the working directory. Supports literal and regex queries; returns file:line matches.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"query":{"type":"string","description":"Text or regular expression to search for"},"pattern":{"type":"string","description":"Alias for query"},"regex":{"type":"boolean","description":"Treat the query as a regular expression"},"glob":{"type":"string","description":"Limit search to files matching this glob, e.g. *.go"}},"anyOf":[{"required":["query"]},{"required":["pattern"]}]}`),
		},
	}
}

func (t *Tool) Execute(ctx context.Context, name string, args json.RawMessage) (cairn.ToolResult, error) {
	if name != "code_search" {
		return cairn.ToolResult{Error: "unknown search tool: " + name}, nil
	}
	var params struct {
		Query   string `json:"query"`
		Pattern string `json:"pattern"`
		Regex   bool   `json:"regex"`
		Glob    string `json:"glob"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return cairn.ToolResult{Error: "invalid args: " + err.Error()}, nil
	}
	// Models often say "pattern" where the schema says "query".
	if params.Query == "" {
		params.Query = params.Pattern
	}
	if params.Query == "" {
		return cairn.ToolResult{Error: "query is required"}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	matches, err := t.search(ctx, params.Query, params.Regex, params.Glob)
	if err != nil {
		return cairn.ToolResult{Error: "search error: " + err.Error()}, nil
	}
	if len(matches) == 0 {
		return cairn.ToolResult{Content: fmt.Sprintf("No matches for %q", params.Query)}, nil
	}
	truncated := false
	if len(matches) > maxMatches {
		matches = matches[:maxMatches]
		truncated = true
	}
	out := strings.Join(matches, "\n")
	if truncated {
		out += fmt.Sprintf("\n... (first %d matches shown)", maxMatches)
	}
	return cairn.ToolResult{Content: out}, nil
}

func (t *Tool) search(ctx context.Context, query string, regex bool, glob string) ([]string, error) {
	if path, err := exec.LookPath("rg"); err == nil {
		return t.runGrep(ctx, path, rgArgs(query, regex, glob))
	}
	if path, err := exec.LookPath("grep"); err == nil && glob == "" {
		return t.runGrep(ctx, path, grepArgs(query, regex))
	}
	return t.scan(ctx, query, regex, glob)
}

func rgArgs(query string, regex bool, glob string) []string {
	args := []string{"--line-number", "--no-heading", "--color=never"}
	if !regex {
		args = append(args, "--fixed-strings")
	}
	if glob != "" {
		args = append(args, "--glob", glob)
	}
	return append(args, "--", query, ".")
}

func grepArgs(query string, regex bool) []string {
	args := []string{"-rn", "--binary-files=without-match", "--exclude-dir=.git", "--exclude-dir=node_modules"}
	if !regex {
		args = append(args, "-F")
	}
	return append(args, "--", query, ".")
}

func (t *Tool) runGrep(ctx context.Context, bin string, args []string) ([]string, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = t.root
	out, err := cmd.Output()
	if err != nil {
		// Exit code 1 means no matches for both rg and grep.
		if ee, ok := err.(*exec.ExitError); ok && ee.ExitCode() == 1 {
			return nil, nil
		}
		return nil, err
	}
	var matches []string
	sc := bufio.NewScanner(strings.NewReader(string(out)))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			matches = append(matches, line)
		}
	}
	return matches, nil
}

// scan is the in-process fallback: walk the tree and match line by line.
func (t *Tool) scan(ctx context.Context, query string, regex bool, glob string) ([]string, error) {
	var re *regexp.Regexp
	if regex {
		var err error
		re, err = regexp.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("invalid regex: %w", err)
		}
	}

	var matches []string
	err := filepath.WalkDir(t.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, _ := filepath.Rel(t.root, path)
		if glob != "" {
			if ok, _ := filepath.Match(glob, filepath.Base(path)); !ok {
				return nil
			}
		}
		f, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer f.Close()

		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		lineNo := 0
		for sc.Scan() {
			lineNo++
			line := sc.Text()
			hit := false
			if re != nil {
				hit = re.MatchString(line)
			} else {
				hit = strings.Contains(line, query)
			}
			if hit {
				matches = append(matches, fmt.Sprintf("%s:%d:%s", rel, lineNo, line))
				if len(matches) > maxMatches {
					return filepath.SkipAll
				}
			}
		}
		return nil
	})
	if err != nil && err != filepath.SkipAll {
		return nil, err
	}
	return matches, nil
}

// Compile-time interface check.
var _ cairn.Tool = (*Tool)(nil)
