package cairn

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
)

// Messages returned when the first step yields no plan.
const (
	msgModelUnavailable = "The model endpoint is not reachable. Start it and try again."
	msgRephrase         = "I could not turn that request into a plan. Please rephrase it."
)

// Agent is the driver of the plan/execute loop: it converts one user
// prompt into one final response string and persists one SessionRecord per
// completed request. One request is active at a time; callers must
// serialize ProcessRequest.
type Agent struct {
	model        ModelClient
	registry     *Registry
	store        SessionStore
	git          Git
	planner      *Planner
	builder      *ContextBuilder
	confirm      ConfirmFunc
	autoContinue bool
	maxSummaries int
	debug        bool
	logger       *slog.Logger
	tracer       Tracer
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithLogger sets the agent logger, shared with the planner and executor.
func WithLogger(l *slog.Logger) AgentOption {
	return func(a *Agent) { a.logger = l }
}

// WithTracer sets the agent tracer, shared with the planner and executor.
func WithTracer(t Tracer) AgentOption {
	return func(a *Agent) { a.tracer = t }
}

// WithConfirmFunc sets the user-confirmation callback for destructive
// actions. Without one (and without auto-continue) every confirmation is
// declined.
func WithConfirmFunc(f ConfirmFunc) AgentOption {
	return func(a *Agent) { a.confirm = f }
}

// WithAgentAutoContinue auto-accepts all confirmation prompts.
func WithAgentAutoContinue(auto bool) AgentOption {
	return func(a *Agent) { a.autoContinue = auto }
}

// WithAgentMaxSummaries caps recent session summaries fed to the planner.
func WithAgentMaxSummaries(n int) AgentOption {
	return func(a *Agent) { a.maxSummaries = n }
}

// WithDebug enables debug behavior: planner exchanges are persisted to the
// audit table and loop panics log full stacks.
func WithDebug(debug bool) AgentOption {
	return func(a *Agent) { a.debug = debug }
}

// NewAgent wires the driver from its collaborators.
func NewAgent(model ModelClient, registry *Registry, store SessionStore, git Git, opts ...AgentOption) *Agent {
	a := &Agent{
		model:        model,
		registry:     registry,
		store:        store,
		git:          git,
		maxSummaries: 5,
		logger:       nopLogger(),
	}
	for _, o := range opts {
		o(a)
	}
	a.planner = NewPlanner(model, registry,
		WithPlannerLogger(a.logger),
		WithPlannerTracer(a.tracer))
	a.builder = NewContextBuilder(git, store,
		WithMaxSummaries(a.maxSummaries),
		WithContextDebug(a.debug),
		WithContextLogger(a.logger))
	return a
}

// ProcessRequest runs the bounded plan/execute loop for one prompt and
// returns the composed summary. The returned error is non-nil only when
// the loop itself failed catastrophically; in that case nothing is
// persisted.
func (a *Agent) ProcessRequest(ctx context.Context, prompt string) (summary string, err error) {
	defer func() {
		if r := recover(); r != nil {
			if a.debug {
				a.logger.Error("loop panic", "panic", r, "stack", string(debug.Stack()))
			} else {
				a.logger.Error("loop panic", "panic", r)
			}
			summary = ""
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	reqID := NewID()
	if a.tracer != nil {
		var span Span
		ctx, span = a.tracer.Start(ctx, "agent.request",
			StringAttr("request_id", reqID),
			BoolAttr("debug", a.debug))
		defer span.End()
	}

	cctx := a.builder.Build(ctx, prompt)
	maxSteps := maxStepsFor(cctx.Prompt, len(cctx.ModifiedFiles))
	a.logger.Debug("request started",
		"request_id", reqID,
		"commit", cctx.Commit,
		"modified_files", len(cctx.ModifiedFiles),
		"max_steps", maxSteps)

	exec := NewExecutor(a.registry,
		WithConfirm(a.confirm),
		WithAutoContinue(a.autoContinue),
		WithExecutorLogger(a.logger),
		WithExecutorTracer(a.tracer))

	var (
		history      []StepResult
		traces       []PlannerTrace
		maxReached   bool
		earlySummary string
	)

	step := 1
	for ; step <= maxSteps; step++ {
		visible := visibleHistory(history, step)
		plan, trace := a.planner.Plan(ctx, cctx, visible, step, maxSteps)
		traces = append(traces, trace)

		if plan.Empty() {
			if step == 1 {
				if !a.model.Available(ctx) {
					earlySummary = msgModelUnavailable
				} else {
					earlySummary = msgRephrase
				}
			}
			break
		}

		results := exec.ExecutePlan(ctx, plan)
		history = append(history, results...)

		if len(results) > 0 && !results[len(results)-1].Success {
			last := results[len(results)-1]
			if strings.Contains(strings.ToLower(last.Error), "cancelled") {
				a.logger.Debug("request cancelled by user", "step", step)
			} else {
				a.logger.Debug("critical failure, stopping", "step", step, "error", last.Error)
			}
			break
		}
		if plan.Meta.IsFinal {
			break
		}
		if !plan.HasToolActions() {
			break
		}
		if step > 2 && !plan.Meta.ExpectFollowUp {
			break
		}
	}
	if step > maxSteps {
		maxReached = true
		a.logger.Debug("step limit reached", "max_steps", maxSteps)
	}

	if earlySummary != "" {
		summary = earlySummary
	} else {
		summary = composeSummary(history, cctx.Prompt, maxReached)
	}

	a.persist(ctx, cctx, summary, exec.Log(), traces)
	return summary, nil
}

// persist writes the SessionRecord and, in debug mode, the planner audit
// rows. Store failures are logged, never surfaced: the user already has
// their answer.
func (a *Agent) persist(ctx context.Context, cctx Context, summary string, log []LogEntry, traces []PlannerTrace) {
	if a.store == nil {
		return
	}
	var rawLog json.RawMessage
	if len(log) > 0 {
		if b, err := json.Marshal(log); err == nil {
			rawLog = b
		}
	}
	rec := SessionRecord{
		Timestamp:     NowStamp(),
		Prompt:        cctx.Prompt,
		Commit:        cctx.Commit,
		ModifiedFiles: cctx.ModifiedFiles,
		Summary:       summary,
		ExecutionLog:  rawLog,
	}
	saved, err := a.store.AppendSession(ctx, rec)
	if err != nil {
		a.logger.Warn("session persist failed", "error", err)
		return
	}
	if !a.debug {
		return
	}
	for _, t := range traces {
		mi := ModelInteraction{
			SessionID: saved.ID,
			Step:      t.Step,
			Timestamp: NowStamp(),
			Prompt:    t.Prompt,
			Response:  t.Response,
		}
		if err := a.store.InsertInteraction(ctx, mi); err != nil {
			a.logger.Warn("interaction persist failed", "step", t.Step, "error", err)
		}
	}
}

// --- step budget ---

var (
	complexWords = []string{"refactor", "implement", "create", "build", "design", "test", "debug"}
	simpleWords  = []string{"read", "show", "display", "list", "status"}
)

// maxStepsFor computes the adaptive step budget: 5 base, +2 for complex
// task words, +1 for more than five modified files, -2 for read-only task
// words, clamped to [3, 10].
func maxStepsFor(prompt string, modifiedCount int) int {
	steps := 5
	lower := strings.ToLower(prompt)
	if containsAny(lower, complexWords) {
		steps += 2
	}
	if modifiedCount > 5 {
		steps++
	}
	if containsAny(lower, simpleWords) {
		steps -= 2
	}
	if steps < 3 {
		steps = 3
	}
	if steps > 10 {
		steps = 10
	}
	return steps
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// visibleHistory limits the history fed back to the planner: early steps
// see everything, later steps see the last six results plus any earlier
// failures, in original order.
func visibleHistory(history []StepResult, step int) []StepResult {
	if step <= 3 || len(history) <= 6 {
		return history
	}
	cutoff := len(history) - 6
	var visible []StepResult
	for i, r := range history {
		if i >= cutoff || !r.Success {
			visible = append(visible, r)
		}
	}
	return visible
}

// --- summary composition ---

const excerptLimit = 600

// composeSummary builds the final response: a completion banner, excerpts
// from up to the first three successful tool results, the last error when
// the request ended on a failure, and the original prompt.
func composeSummary(history []StepResult, prompt string, maxReached bool) string {
	var b strings.Builder

	ok := 0
	for _, r := range history {
		if r.Success {
			ok++
		}
	}
	switch {
	case len(history) == 0:
		b.WriteString("No actions were executed.")
	case ok == len(history):
		fmt.Fprintf(&b, "Completed %d action(s) successfully.", ok)
	case ok == 0:
		b.WriteString("No actions completed successfully.")
	default:
		fmt.Fprintf(&b, "Completed %d of %d actions.", ok, len(history))
	}
	if maxReached {
		b.WriteString(" Stopped at the step limit.")
	}

	shown := 0
	for _, r := range history {
		if shown == 3 {
			break
		}
		if !r.Success || strings.HasPrefix(r.Description, "Confirmation: ") || strings.TrimSpace(r.Output) == "" {
			continue
		}
		fmt.Fprintf(&b, "\n\n%s:\n%s", r.Description, excerpt(r.Output))
		shown++
	}

	if len(history) > 0 {
		if last := history[len(history)-1]; !last.Success {
			fmt.Fprintf(&b, "\n\nLast error: %s", last.Error)
		}
	}

	fmt.Fprintf(&b, "\n\nRequest: %s", prompt)
	return b.String()
}

// excerpt truncates output for the summary. Multi-line output (search
// hits, diffs) keeps whole lines within the limit; single-line output is
// cut mid-string.
func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= excerptLimit {
		return s
	}
	if i := strings.LastIndexByte(s[:excerptLimit], '\n'); i > 0 {
		return s[:i] + "\n..."
	}
	return s[:excerptLimit] + "..."
}
