// Package file provides read_file, write_file, and move_file within a
// sandboxed working directory. Reads go through the commit-scoped cache;
// writes refresh it.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cairnlabs/cairn"
)

const maxReadChars = 8000

// Tool provides file access restricted to one working directory.
type Tool struct {
	root  string
	cache *cairn.CacheService
}

// New creates a file Tool rooted at root. cache may be nil, in which case
// reads go straight to disk.
func New(root string, cache *cairn.CacheService) *Tool {
	return &Tool{root: root, cache: cache}
}

func (t *Tool) Definitions() []cairn.ToolDefinition {
	return []cairn.ToolDefinition{
		{
			Name:        "read_file",
			Description: "Read a file from the working directory. Returns the file content (truncated to 8000 chars if large).",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"file_path":{"type":"string","description":"File path relative to the working directory"}},"required":["file_path"]}`),
		},
		{
			Name:        "write_file",
			Description: "Write content to a file in the working directory. Creates parent directories if needed.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"file_path":{"type":"string","description":"File path relative to the working directory"},"content":{"type":"string","description":"Content to write"}},"required":["file_path","content"]}`),
			Destructive: true,
		},
		{
			Name:        "move_file",
			Description: "Move or rename a file within the working directory.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"source":{"type":"string","description":"Current path relative to the working directory"},"destination":{"type":"string","description":"New path relative to the working directory"}},"required":["source","destination"]}`),
			Destructive: true,
		},
	}
}

func (t *Tool) Execute(ctx context.Context, name string, args json.RawMessage) (cairn.ToolResult, error) {
	var params struct {
		FilePath    string `json:"file_path"`
		Content     string `json:"content"`
		Source      string `json:"source"`
		Destination string `json:"destination"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return cairn.ToolResult{Error: "invalid args: " + err.Error()}, nil
	}

	switch name {
	case "read_file":
		return t.read(ctx, params.FilePath)
	case "write_file":
		return t.write(ctx, params.FilePath, params.Content)
	case "move_file":
		return t.move(params.Source, params.Destination)
	default:
		return cairn.ToolResult{Error: "unknown file tool: " + name}, nil
	}
}

func (t *Tool) resolvePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("absolute paths not allowed: %s", path)
	}
	if strings.Contains(path, "..") {
		return "", fmt.Errorf("path traversal not allowed: %s", path)
	}
	resolved := filepath.Join(t.root, path)
	// Double-check it's still within the working directory
	if !strings.HasPrefix(resolved, t.root) {
		return "", fmt.Errorf("path escapes working directory: %s", path)
	}
	return resolved, nil
}

func (t *Tool) read(ctx context.Context, path string) (cairn.ToolResult, error) {
	if _, err := t.resolvePath(path); err != nil {
		return cairn.ToolResult{Error: err.Error()}, nil
	}

	var content string
	if t.cache != nil {
		c, err := t.cache.ReadFile(ctx, path)
		if err != nil {
			return cairn.ToolResult{Error: "read error: " + err.Error()}, nil
		}
		content = c
	} else {
		data, err := os.ReadFile(filepath.Join(t.root, path))
		if err != nil {
			return cairn.ToolResult{Error: "read error: " + err.Error()}, nil
		}
		content = string(data)
	}

	if len(content) > maxReadChars {
		content = content[:maxReadChars] + "\n... (truncated)"
	}
	return cairn.ToolResult{Content: content}, nil
}

func (t *Tool) write(ctx context.Context, path, content string) (cairn.ToolResult, error) {
	resolved, err := t.resolvePath(path)
	if err != nil {
		return cairn.ToolResult{Error: err.Error()}, nil
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
		return cairn.ToolResult{Error: "mkdir error: " + err.Error()}, nil
	}
	if err := os.WriteFile(resolved, []byte(content), 0644); err != nil {
		return cairn.ToolResult{Error: "write error: " + err.Error()}, nil
	}
	if t.cache != nil {
		t.cache.Refresh(ctx, path, content)
	}
	return cairn.ToolResult{Content: fmt.Sprintf("Written %d bytes to %s", len(content), path)}, nil
}

func (t *Tool) move(source, destination string) (cairn.ToolResult, error) {
	src, err := t.resolvePath(source)
	if err != nil {
		return cairn.ToolResult{Error: err.Error()}, nil
	}
	dst, err := t.resolvePath(destination)
	if err != nil {
		return cairn.ToolResult{Error: err.Error()}, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return cairn.ToolResult{Error: "mkdir error: " + err.Error()}, nil
	}
	if err := os.Rename(src, dst); err != nil {
		return cairn.ToolResult{Error: "move error: " + err.Error()}, nil
	}
	return cairn.ToolResult{Content: fmt.Sprintf("Moved %s to %s", source, destination)}, nil
}

// Compile-time interface check.
var _ cairn.Tool = (*Tool)(nil)
