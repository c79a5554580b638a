// Package scaffold provides project_scaffold: creating a directory layout
// with optional starter files in one shot.
package scaffold

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cairnlabs/cairn"
)

// Tool creates directories and starter files under one root.
type Tool struct {
	root string
}

// New creates a scaffold Tool rooted at root.
func New(root string) *Tool {
	return &Tool{root: root}
}

func (t *Tool) Definitions() []cairn.ToolDefinition {
	return []cairn.ToolDefinition{
		{
			Name:        "project_scaffold",
			Description: "Create a project skeleton: a set of directories and starter files relative to the working directory. Existing files are never overwritten.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"directories":{"type":"array","items":{"type":"string"},"description":"Directories to create"},"files":{"type":"object","additionalProperties":{"type":"string"},"description":"Map of relative file path to initial content"}}}`),
			Destructive: true,
		},
	}
}

func (t *Tool) Execute(ctx context.Context, name string, args json.RawMessage) (cairn.ToolResult, error) {
	if name != "project_scaffold" {
		return cairn.ToolResult{Error: "unknown scaffold tool: " + name}, nil
	}
	var params struct {
		Directories []string          `json:"directories"`
		Files       map[string]string `json:"files"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return cairn.ToolResult{Error: "invalid args: " + err.Error()}, nil
	}
	if len(params.Directories) == 0 && len(params.Files) == 0 {
		return cairn.ToolResult{Error: "nothing to scaffold: provide directories or files"}, nil
	}

	var created []string
	for _, dir := range params.Directories {
		resolved, err := t.resolve(dir)
		if err != nil {
			return cairn.ToolResult{Error: err.Error()}, nil
		}
		if err := os.MkdirAll(resolved, 0755); err != nil {
			return cairn.ToolResult{Error: "mkdir error: " + err.Error()}, nil
		}
		created = append(created, dir+"/")
	}

	paths := make([]string, 0, len(params.Files))
	for path := range params.Files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		resolved, err := t.resolve(path)
		if err != nil {
			return cairn.ToolResult{Error: err.Error()}, nil
		}
		if _, err := os.Stat(resolved); err == nil {
			return cairn.ToolResult{Error: fmt.Sprintf("refusing to overwrite existing file: %s", path)}, nil
		}
		if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
			return cairn.ToolResult{Error: "mkdir error: " + err.Error()}, nil
		}
		if err := os.WriteFile(resolved, []byte(params.Files[path]), 0644); err != nil {
			return cairn.ToolResult{Error: "write error: " + err.Error()}, nil
		}
		created = append(created, path)
	}

	return cairn.ToolResult{Content: "Created:\n" + strings.Join(created, "\n")}, nil
}

func (t *Tool) resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	if filepath.IsAbs(path) || strings.Contains(path, "..") {
		return "", fmt.Errorf("path outside working directory not allowed: %s", path)
	}
	return filepath.Join(t.root, path), nil
}

// Compile-time interface check.
var _ cairn.Tool = (*Tool)(nil)
