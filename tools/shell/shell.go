// Package shell provides run_tests and shell_exec. Commands run through
// the system shell inside the working directory, with a blocklist for
// obviously destructive incantations and a hard timeout.
package shell

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/cairnlabs/cairn"
)

const (
	defaultTimeout = 60 * time.Second
	maxTimeout     = 300 * time.Second
	maxOutputChars = 8000
)

// blockedFragments reject commands outright. The confirmation gate is the
// real safety net; this catches the catastrophic cases even when
// auto-continue is on.
var blockedFragments = []string{
	"rm -rf /",
	"rm -rf ~",
	"mkfs",
	"dd if=",
	":(){",
	"> /dev/sd",
	"shutdown",
	"reboot",
}

// Tool executes shell commands in one working directory.
type Tool struct {
	root        string
	testCommand string
}

// New creates a shell Tool rooted at root. testCommand is what run_tests
// executes; empty defaults to "go test ./...".
func New(root, testCommand string) *Tool {
	if testCommand == "" {
		testCommand = "go test ./..."
	}
	return &Tool{root: root, testCommand: testCommand}
}

func (t *Tool) Definitions() []cairn.ToolDefinition {
	return []cairn.ToolDefinition{
		{
			Name:        "run_tests",
			Description: "Run the project test suite and return its output.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"package":{"type":"string","description":"Optional package or path to limit the test run to"}}}`),
		},
		{
			Name:        "shell_exec",
			Description: "Run a shell command in the working directory and return combined stdout and stderr.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"command":{"type":"string","description":"Command line to execute"},"timeout_seconds":{"type":"integer","description":"Timeout in seconds, capped at 300"}},"required":["command"]}`),
			Destructive: true,
		},
	}
}

func (t *Tool) Execute(ctx context.Context, name string, args json.RawMessage) (cairn.ToolResult, error) {
	var params struct {
		Package        string `json:"package"`
		Command        string `json:"command"`
		TimeoutSeconds int    `json:"timeout_seconds"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return cairn.ToolResult{Error: "invalid args: " + err.Error()}, nil
	}

	switch name {
	case "run_tests":
		cmd := t.testCommand
		if params.Package != "" {
			cmd = cmd + " " + params.Package
		}
		return t.run(ctx, cmd, defaultTimeout)
	case "shell_exec":
		if strings.TrimSpace(params.Command) == "" {
			return cairn.ToolResult{Error: "command is required"}, nil
		}
		if reason := blocked(params.Command); reason != "" {
			return cairn.ToolResult{Error: "command blocked: " + reason}, nil
		}
		timeout := defaultTimeout
		if params.TimeoutSeconds > 0 {
			timeout = time.Duration(params.TimeoutSeconds) * time.Second
			if timeout > maxTimeout {
				timeout = maxTimeout
			}
		}
		return t.run(ctx, params.Command, timeout)
	default:
		return cairn.ToolResult{Error: "unknown shell tool: " + name}, nil
	}
}

func blocked(command string) string {
	lower := strings.ToLower(command)
	for _, frag := range blockedFragments {
		if strings.Contains(lower, frag) {
			return frag
		}
	}
	return ""
}

func (t *Tool) run(ctx context.Context, command string, timeout time.Duration) (cairn.ToolResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = t.root
	out, err := cmd.CombinedOutput()

	output := string(out)
	if len(output) > maxOutputChars {
		output = output[:maxOutputChars] + "\n... (truncated)"
	}

	if ctx.Err() == context.DeadlineExceeded {
		return cairn.ToolResult{Content: output, Error: fmt.Sprintf("command timed out after %s", timeout)}, nil
	}
	if err != nil {
		// Non-zero exit still carries useful output (failing tests).
		return cairn.ToolResult{Content: output, Error: fmt.Sprintf("command failed: %v", err)}, nil
	}
	if strings.TrimSpace(output) == "" {
		output = "(no output)"
	}
	return cairn.ToolResult{Content: output}, nil
}

// Compile-time interface check.
var _ cairn.Tool = (*Tool)(nil)
