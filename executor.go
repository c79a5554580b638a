package cairn

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ConfirmFunc asks the user to approve an action and returns the raw
// answer line. The Executor owns the acceptance grammar (y/yes); the
// function just collects input.
type ConfirmFunc func(message string) (string, error)

// nonCriticalTools are purely informational: their failure does not
// invalidate later steps, so execution continues past it.
var nonCriticalTools = map[string]struct{}{
	"code_search":             {},
	"brainstorm_search_terms": {},
}

// Executor runs a Plan's actions in order against the Registry, gating
// destructive tools on user confirmation and recording every action with
// its result. One Executor serves one request; Log accumulates across the
// request's plans.
type Executor struct {
	registry     *Registry
	confirm      ConfirmFunc
	autoContinue bool
	logger       *slog.Logger
	tracer       Tracer
	log          []LogEntry
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithConfirm sets the user-confirmation callback.
func WithConfirm(f ConfirmFunc) ExecutorOption {
	return func(e *Executor) { e.confirm = f }
}

// WithAutoContinue auto-accepts every confirmation prompt.
func WithAutoContinue(auto bool) ExecutorOption {
	return func(e *Executor) { e.autoContinue = auto }
}

// WithExecutorLogger sets the executor logger.
func WithExecutorLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// WithExecutorTracer sets the executor tracer.
func WithExecutorTracer(t Tracer) ExecutorOption {
	return func(e *Executor) { e.tracer = t }
}

// NewExecutor creates an Executor over the registry.
func NewExecutor(registry *Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{registry: registry, logger: nopLogger()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Log returns the accumulated execution log in execution order.
func (e *Executor) Log() []LogEntry {
	return e.log
}

// ExecutePlan runs the plan's actions in declared order and returns their
// results. Execution stops at the first declined confirmation or critical
// tool failure; informational tool failures are recorded and skipped.
func (e *Executor) ExecutePlan(ctx context.Context, plan Plan) []StepResult {
	var results []StepResult

	for i := 0; i < len(plan.Actions); i++ {
		a := plan.Actions[i]
		switch a.Type {
		case ActionConfirm:
			res, accepted := e.runConfirmation(a)
			results = append(results, res)
			if !accepted {
				return results
			}

		case ActionTool:
			_, def, found := e.registry.Get(a.ToolName)

			if found && def.Destructive {
				// The gating confirmation is declared right after the tool
				// action; consume it so it runs first. Synthesize one when
				// the planner left it out.
				gate := Action{
					Type:        ActionConfirm,
					Message:     fmt.Sprintf("Execute %s?", a.ToolName),
					Destructive: true,
				}
				if i+1 < len(plan.Actions) && plan.Actions[i+1].Type == ActionConfirm {
					gate = plan.Actions[i+1]
					i++
				}
				res, accepted := e.runConfirmation(gate)
				results = append(results, res)
				if !accepted {
					return results
				}
			}

			res := e.runTool(ctx, a, found)
			results = append(results, res)
			if !res.Success {
				if _, informational := nonCriticalTools[a.ToolName]; informational {
					e.logger.Debug("non-critical tool failed, continuing", "tool", a.ToolName, "error", res.Error)
					continue
				}
				return results
			}

		default:
			e.logger.Warn("skipping action with unknown type", "type", a.Type)
		}
	}
	return results
}

// runConfirmation prompts (or auto-accepts) and records the outcome.
// Accepted confirmations are successful log entries; a decline records the
// cancellation and tells the caller to stop.
func (e *Executor) runConfirmation(a Action) (StepResult, bool) {
	desc := "Confirmation: " + a.Message

	accepted := e.autoContinue
	if !accepted && e.confirm != nil {
		answer, err := e.confirm(a.Message)
		if err != nil {
			e.logger.Warn("confirmation prompt failed", "error", err)
		} else {
			accepted = isAccept(answer)
		}
	}

	var res StepResult
	if accepted {
		res = StepResult{Success: true, Output: "confirmed", Description: desc}
	} else {
		res = StepResult{Success: false, Error: "User cancelled action", Description: desc}
	}
	e.log = append(e.log, LogEntry{Action: a, Result: res})
	return res, accepted
}

// isAccept implements the acceptance grammar: case-insensitive y or yes.
func isAccept(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

func (e *Executor) runTool(ctx context.Context, a Action, found bool) StepResult {
	desc := describeAction(a)

	if e.tracer != nil {
		var span Span
		ctx, span = e.tracer.Start(ctx, "executor.tool", StringAttr("tool", a.ToolName))
		defer span.End()
	}

	var res StepResult
	if !found {
		res = StepResult{
			Success:     false,
			Error:       fmt.Sprintf("Tool execution failed: unknown tool %q", a.ToolName),
			Description: desc,
		}
	} else {
		start := time.Now()
		tr := e.registry.Execute(ctx, a.ToolName, a.Params)
		if tr.Error != "" {
			res = StepResult{Success: false, Output: tr.Content, Error: tr.Error, Description: desc}
		} else {
			res = StepResult{Success: true, Output: tr.Content, Description: desc}
		}
		e.logger.Debug("tool executed",
			"tool", a.ToolName,
			"success", res.Success,
			"duration", time.Since(start))
	}

	e.log = append(e.log, LogEntry{Action: a, Result: res})
	return res
}

// describeAction renders the "tool(params)" label used in logs and
// summaries. Parameters serialize compactly; marshal failures fall back to
// the bare name.
func describeAction(a Action) string {
	if len(a.Params) == 0 {
		return a.ToolName + "()"
	}
	raw, err := json.Marshal(a.Params)
	if err != nil {
		return a.ToolName + "()"
	}
	return fmt.Sprintf("%s(%s)", a.ToolName, raw)
}
