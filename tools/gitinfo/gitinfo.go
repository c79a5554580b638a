// Package gitinfo exposes read-only repository queries as tools:
// git_status, git_diff, and git_commit_hash.
package gitinfo

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cairnlabs/cairn"
)

const maxDiffChars = 8000

// Tool wraps a cairn.Git for read-only repository inspection.
type Tool struct {
	git cairn.Git
}

// New creates a gitinfo Tool over git.
func New(git cairn.Git) *Tool {
	return &Tool{git: git}
}

func (t *Tool) Definitions() []cairn.ToolDefinition {
	return []cairn.ToolDefinition{
		{
			Name:        "git_status",
			Description: "List files with uncommitted changes in the working directory.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{}}`),
		},
		{
			Name:        "git_diff",
			Description: "Show the combined staged and unstaged diff, optionally limited to given paths.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"paths":{"type":"array","items":{"type":"string"},"description":"Limit the diff to these paths"}}}`),
		},
		{
			Name:        "git_commit_hash",
			Description: "Return the hash of the current HEAD commit.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{}}`),
		},
	}
}

func (t *Tool) Execute(ctx context.Context, name string, args json.RawMessage) (cairn.ToolResult, error) {
	switch name {
	case "git_status":
		files, err := t.git.ModifiedFiles(ctx)
		if err != nil {
			return cairn.ToolResult{Error: "git status failed: " + err.Error()}, nil
		}
		if len(files) == 0 {
			return cairn.ToolResult{Content: "Working directory clean"}, nil
		}
		return cairn.ToolResult{Content: strings.Join(files, "\n")}, nil

	case "git_diff":
		var params struct {
			Paths []string `json:"paths"`
		}
		if err := json.Unmarshal(args, &params); err != nil {
			return cairn.ToolResult{Error: "invalid args: " + err.Error()}, nil
		}
		diff, err := t.git.Diff(ctx, params.Paths...)
		if err != nil {
			return cairn.ToolResult{Error: "git diff failed: " + err.Error()}, nil
		}
		if strings.TrimSpace(diff) == "" {
			return cairn.ToolResult{Content: "No changes"}, nil
		}
		if len(diff) > maxDiffChars {
			diff = diff[:maxDiffChars] + "\n... (truncated)"
		}
		return cairn.ToolResult{Content: diff}, nil

	case "git_commit_hash":
		head, err := t.git.Head(ctx)
		if err != nil {
			return cairn.ToolResult{Error: "git rev-parse failed: " + err.Error()}, nil
		}
		return cairn.ToolResult{Content: head}, nil

	default:
		return cairn.ToolResult{Error: "unknown git tool: " + name}, nil
	}
}

// Compile-time interface check.
var _ cairn.Tool = (*Tool)(nil)
