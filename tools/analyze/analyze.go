// Package analyze provides the LLM-backed tools: summarize_file,
// analyze_code, and brainstorm_search_terms. These call the model client
// from inside tool execution; there is no recursion into the agent loop.
package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cairnlabs/cairn"
)

const maxPromptChars = 6000

// Tool runs model-backed analysis over cached file contents.
type Tool struct {
	model cairn.ModelClient
	cache *cairn.CacheService
}

// New creates an analyze Tool. cache may be nil; summarize_file then
// reports an error and analyze_code requires inline content.
func New(model cairn.ModelClient, cache *cairn.CacheService) *Tool {
	return &Tool{model: model, cache: cache}
}

func (t *Tool) Definitions() []cairn.ToolDefinition {
	return []cairn.ToolDefinition{
		{
			Name:        "summarize_file",
			Description: "Summarize a file's purpose and structure. The summary is cached per commit, so repeated calls are free.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"file_path":{"type":"string","description":"File path relative to the working directory"}},"required":["file_path"]}`),
		},
		{
			Name:        "analyze_code",
			Description: "Analyze code for a specific question, e.g. potential bugs or structure. Pass a file path or inline code.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"file_path":{"type":"string","description":"File to analyze"},"code":{"type":"string","description":"Inline code to analyze instead of a file"},"question":{"type":"string","description":"What to look for"}},"required":["question"]}`),
		},
		{
			Name:        "brainstorm_search_terms",
			Description: "Suggest search terms and identifiers likely to locate code relevant to a request.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"prompt":{"type":"string","description":"The request to brainstorm search terms for"}},"required":["prompt"]}`),
		},
	}
}

func (t *Tool) Execute(ctx context.Context, name string, args json.RawMessage) (cairn.ToolResult, error) {
	var params struct {
		FilePath string `json:"file_path"`
		Code     string `json:"code"`
		Question string `json:"question"`
		Prompt   string `json:"prompt"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return cairn.ToolResult{Error: "invalid args: " + err.Error()}, nil
	}

	switch name {
	case "summarize_file":
		return t.summarize(ctx, params.FilePath)
	case "analyze_code":
		return t.analyze(ctx, params.FilePath, params.Code, params.Question)
	case "brainstorm_search_terms":
		return t.brainstorm(ctx, params.Prompt)
	default:
		return cairn.ToolResult{Error: "unknown analyze tool: " + name}, nil
	}
}

func (t *Tool) summarize(ctx context.Context, path string) (cairn.ToolResult, error) {
	if path == "" {
		return cairn.ToolResult{Error: "file_path is required"}, nil
	}
	if t.cache == nil {
		return cairn.ToolResult{Error: "no file cache configured"}, nil
	}
	if summary, ok := t.cache.Summary(ctx, path); ok {
		return cairn.ToolResult{Content: summary}, nil
	}

	content, err := t.cache.ReadFile(ctx, path)
	if err != nil {
		return cairn.ToolResult{Error: "read error: " + err.Error()}, nil
	}
	prompt := fmt.Sprintf(
		"Summarize this file in a few sentences: its purpose, key declarations, and anything unusual.\n\nFile: %s\n\n%s",
		path, clip(content))

	resp := t.model.Generate(ctx, prompt, nil)
	if resp.Failed() {
		return cairn.ToolResult{Error: "model error: " + resp.ErrorMessage()}, nil
	}
	summary := strings.TrimSpace(resp.Text)
	if summary == "" {
		return cairn.ToolResult{Error: "model returned an empty summary"}, nil
	}
	if err := t.cache.SetSummary(ctx, path, summary); err != nil {
		// Summary is still useful even if caching it failed.
		return cairn.ToolResult{Content: summary}, nil
	}
	return cairn.ToolResult{Content: summary}, nil
}

func (t *Tool) analyze(ctx context.Context, path, code, question string) (cairn.ToolResult, error) {
	if question == "" {
		return cairn.ToolResult{Error: "question is required"}, nil
	}
	subject := code
	label := "inline code"
	if subject == "" {
		if path == "" {
			return cairn.ToolResult{Error: "provide file_path or code"}, nil
		}
		if t.cache == nil {
			return cairn.ToolResult{Error: "no file cache configured"}, nil
		}
		content, err := t.cache.ReadFile(ctx, path)
		if err != nil {
			return cairn.ToolResult{Error: "read error: " + err.Error()}, nil
		}
		subject = content
		label = path
	}

	prompt := fmt.Sprintf("Analyze the following code and answer: %s\n\nCode (%s):\n%s",
		question, label, clip(subject))
	resp := t.model.Generate(ctx, prompt, nil)
	if resp.Failed() {
		return cairn.ToolResult{Error: "model error: " + resp.ErrorMessage()}, nil
	}
	return cairn.ToolResult{Content: strings.TrimSpace(resp.Text)}, nil
}

func (t *Tool) brainstorm(ctx context.Context, request string) (cairn.ToolResult, error) {
	if request == "" {
		return cairn.ToolResult{Error: "prompt is required"}, nil
	}
	prompt := fmt.Sprintf(
		"List up to 8 search terms (identifiers, file names, error strings) that would locate code relevant to this request. One per line, no commentary.\n\nRequest: %s",
		request)
	resp := t.model.Generate(ctx, prompt, nil)
	if resp.Failed() {
		return cairn.ToolResult{Error: "model error: " + resp.ErrorMessage()}, nil
	}
	return cairn.ToolResult{Content: strings.TrimSpace(resp.Text)}, nil
}

func clip(s string) string {
	if len(s) > maxPromptChars {
		return s[:maxPromptChars] + "\n... (truncated)"
	}
	return s
}

// Compile-time interface check.
var _ cairn.Tool = (*Tool)(nil)
