package cairn

import (
	"context"
	"errors"
	"testing"
)

func toolAction(name string, params map[string]any) Action {
	return Action{Type: ActionTool, ToolName: name, Params: params}
}

func TestExecutePlanRunsActionsInOrder(t *testing.T) {
	a := simpleTool("first", false, ToolResult{Content: "one"})
	b := simpleTool("second", false, ToolResult{Content: "two"})
	exec := NewExecutor(newTestRegistry(a, b))

	results := exec.ExecutePlan(context.Background(), Plan{Actions: []Action{
		toolAction("first", nil),
		toolAction("second", nil),
	}})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Output != "one" || results[1].Output != "two" {
		t.Fatalf("wrong order: %+v", results)
	}
	if len(exec.Log()) != 2 {
		t.Fatalf("log should hold both entries, got %d", len(exec.Log()))
	}
}

func TestExecutePlanGateRunsBeforeDestructiveTool(t *testing.T) {
	tool := simpleTool("write_file", true, ToolResult{Content: "done"})
	var order []string
	exec := NewExecutor(newTestRegistry(tool), WithConfirm(func(msg string) (string, error) {
		order = append(order, "confirm")
		return "yes", nil
	}))

	results := exec.ExecutePlan(context.Background(), Plan{Actions: []Action{
		toolAction("write_file", map[string]any{"file_path": "a.txt"}),
		{Type: ActionConfirm, Message: "Write a.txt?", Destructive: true},
	}})
	order = append(order, "after")

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Description != "Confirmation: Write a.txt?" {
		t.Fatalf("confirmation must run first, got %q", results[0].Description)
	}
	if !results[1].Success || results[1].Output != "done" {
		t.Fatalf("tool result wrong: %+v", results[1])
	}
	if len(order) != 2 || order[0] != "confirm" {
		t.Fatalf("prompt did not precede execution: %v", order)
	}
	if len(tool.calls) != 1 {
		t.Fatalf("tool ran %d times", len(tool.calls))
	}
}

func TestExecutePlanSynthesizesMissingGate(t *testing.T) {
	tool := simpleTool("write_file", true, ToolResult{Content: "done"})
	var asked string
	exec := NewExecutor(newTestRegistry(tool), WithConfirm(func(msg string) (string, error) {
		asked = msg
		return "y", nil
	}))

	results := exec.ExecutePlan(context.Background(), Plan{Actions: []Action{
		toolAction("write_file", nil),
	}})
	if asked != "Execute write_file?" {
		t.Fatalf("synthesized prompt wrong: %q", asked)
	}
	if len(results) != 2 {
		t.Fatalf("expected confirmation + tool, got %d results", len(results))
	}
}

func TestExecutePlanDeclineStopsPlan(t *testing.T) {
	destructive := simpleTool("write_file", true, ToolResult{Content: "done"})
	follower := simpleTool("read_file", false, ToolResult{Content: "x"})
	exec := NewExecutor(newTestRegistry(destructive, follower),
		WithConfirm(func(msg string) (string, error) { return "no", nil }))

	results := exec.ExecutePlan(context.Background(), Plan{Actions: []Action{
		toolAction("write_file", nil),
		{Type: ActionConfirm, Message: "Write?"},
		toolAction("read_file", nil),
	}})
	if len(results) != 1 {
		t.Fatalf("decline must stop the plan, got %d results", len(results))
	}
	if results[0].Success || results[0].Error != "User cancelled action" {
		t.Fatalf("bad decline result: %+v", results[0])
	}
	if len(destructive.calls) != 0 || len(follower.calls) != 0 {
		t.Fatal("no tool may run after a decline")
	}
}

func TestExecutePlanAutoContinueSkipsPrompt(t *testing.T) {
	tool := simpleTool("write_file", true, ToolResult{Content: "done"})
	exec := NewExecutor(newTestRegistry(tool),
		WithAutoContinue(true),
		WithConfirm(func(msg string) (string, error) {
			t.Fatal("auto-continue must not prompt")
			return "", nil
		}))

	results := exec.ExecutePlan(context.Background(), Plan{Actions: []Action{
		toolAction("write_file", nil),
	}})
	if len(results) != 2 || !results[0].Success || !results[1].Success {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestExecutePlanNoConfirmFuncDeclines(t *testing.T) {
	tool := simpleTool("write_file", true, ToolResult{Content: "done"})
	exec := NewExecutor(newTestRegistry(tool))

	results := exec.ExecutePlan(context.Background(), Plan{Actions: []Action{
		toolAction("write_file", nil),
	}})
	if len(results) != 1 || results[0].Success {
		t.Fatalf("missing confirm func must decline: %+v", results)
	}
}

func TestExecutePlanNonCriticalFailureContinues(t *testing.T) {
	searcher := simpleTool("code_search", false, ToolResult{Error: "ripgrep not found"})
	reader := simpleTool("read_file", false, ToolResult{Content: "x"})
	exec := NewExecutor(newTestRegistry(searcher, reader))

	results := exec.ExecutePlan(context.Background(), Plan{Actions: []Action{
		toolAction("code_search", map[string]any{"query": "foo"}),
		toolAction("read_file", nil),
	}})
	if len(results) != 2 {
		t.Fatalf("informational failure must not stop the plan: %+v", results)
	}
	if results[0].Success || !results[1].Success {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestExecutePlanCriticalFailureStops(t *testing.T) {
	failing := simpleTool("write_file", false, ToolResult{Error: "disk full"})
	follower := simpleTool("read_file", false, ToolResult{Content: "x"})
	exec := NewExecutor(newTestRegistry(failing, follower))

	results := exec.ExecutePlan(context.Background(), Plan{Actions: []Action{
		toolAction("write_file", nil),
		toolAction("read_file", nil),
	}})
	if len(results) != 1 {
		t.Fatalf("critical failure must stop the plan: %+v", results)
	}
	if len(follower.calls) != 0 {
		t.Fatal("follower ran after a critical failure")
	}
}

func TestExecutePlanUnknownToolFails(t *testing.T) {
	exec := NewExecutor(newTestRegistry())
	results := exec.ExecutePlan(context.Background(), Plan{Actions: []Action{
		toolAction("no_such_tool", nil),
	}})
	if len(results) != 1 || results[0].Success {
		t.Fatalf("unexpected results: %+v", results)
	}
	if results[0].Error != `Tool execution failed: unknown tool "no_such_tool"` {
		t.Fatalf("wrong error: %q", results[0].Error)
	}
}

func TestExecutePlanToolGoErrorIsInBand(t *testing.T) {
	tool := simpleTool("read_file", false, ToolResult{})
	tool.execErr = errors.New("context deadline exceeded")
	exec := NewExecutor(newTestRegistry(tool))

	results := exec.ExecutePlan(context.Background(), Plan{Actions: []Action{
		toolAction("read_file", nil),
	}})
	if len(results) != 1 || results[0].Success {
		t.Fatalf("unexpected results: %+v", results)
	}
	if results[0].Error != "context deadline exceeded" {
		t.Fatalf("wrong error: %q", results[0].Error)
	}
}

func TestIsAccept(t *testing.T) {
	for _, yes := range []string{"y", "Y", "yes", "YES", " yes ", "Yes"} {
		if !isAccept(yes) {
			t.Errorf("isAccept(%q) = false", yes)
		}
	}
	for _, no := range []string{"", "n", "no", "yeah", "ok", "sure"} {
		if isAccept(no) {
			t.Errorf("isAccept(%q) = true", no)
		}
	}
}

func TestDescribeAction(t *testing.T) {
	a := toolAction("read_file", map[string]any{"file_path": "a.txt"})
	if got := describeAction(a); got != `read_file({"file_path":"a.txt"})` {
		t.Fatalf("got %q", got)
	}
	if got := describeAction(toolAction("git_status", nil)); got != "git_status()" {
		t.Fatalf("got %q", got)
	}
}
