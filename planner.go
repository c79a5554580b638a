package cairn

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Tool names the planner's hardcoded pre-action heuristics reference.
const (
	toolReadFile   = "read_file"
	toolBrainstorm = "brainstorm_search_terms"
)

var (
	searchHints  = []string{"find", "search", "look for", "locate"}
	filenameLike = regexp.MustCompile(`[A-Za-z0-9_./]+\.[A-Za-z]+`)
)

// PlannerTrace captures one planner exchange for the audit trail.
type PlannerTrace struct {
	Step     int
	Prompt   string
	Response string
}

// Planner turns a Context plus execution history into a Plan by prompting
// the model once and parsing its reply. It never returns an error: any
// transport or parse failure degrades to an empty Plan, which the Driver
// interprets as terminal.
type Planner struct {
	model    ModelClient
	registry *Registry
	logger   *slog.Logger
	tracer   Tracer
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithPlannerLogger sets the planner logger.
func WithPlannerLogger(l *slog.Logger) PlannerOption {
	return func(p *Planner) { p.logger = l }
}

// WithPlannerTracer sets the planner tracer.
func WithPlannerTracer(t Tracer) PlannerOption {
	return func(p *Planner) { p.tracer = t }
}

// NewPlanner creates a Planner over the model client and tool registry.
func NewPlanner(model ModelClient, registry *Registry, opts ...PlannerOption) *Planner {
	p := &Planner{model: model, registry: registry, logger: nopLogger()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Plan produces the plan for one step. The returned trace holds the exact
// prompt and raw model response for optional persistence.
func (p *Planner) Plan(ctx context.Context, c Context, history []StepResult, step, maxSteps int) (Plan, PlannerTrace) {
	if p.tracer != nil {
		var span Span
		ctx, span = p.tracer.Start(ctx, "planner.plan", IntAttr("step", step))
		defer span.End()
	}

	prompt := p.renderPrompt(c, history, step, maxSteps)
	resp := p.model.Generate(ctx, prompt, nil)
	trace := PlannerTrace{Step: step, Prompt: prompt, Response: resp.Text}

	if resp.Failed() {
		p.logger.Debug("model call failed, returning empty plan", "step", step, "error", resp.ErrorMessage())
		return Plan{Meta: DefaultPlanMeta()}, trace
	}

	plan, parsed := p.parse(resp.Text)
	// Heuristic pre-actions apply to the first step only: repeating them
	// would re-read the same files every iteration and hide the empty-plan
	// termination signal. A reply with no parseable JSON stays empty so the
	// Driver can ask the user to rephrase.
	if step == 1 && parsed {
		plan = p.withPreActions(c, plan)
	}
	p.logger.Debug("plan produced", "step", step, "actions", len(plan.Actions), "is_final", plan.Meta.IsFinal)
	return plan, trace
}

// --- prompt rendering ---

func (p *Planner) renderPrompt(c Context, history []StepResult, step, maxSteps int) string {
	var b strings.Builder

	b.WriteString("You are a coding agent working in a local repository. ")
	b.WriteString("Decide the next actions and reply with a single JSON object.\n\n")

	b.WriteString("Available tools:\n")
	b.WriteString(p.registry.PromptBlock())
	b.WriteString("\n")

	if len(c.RecentSummaries) > 0 {
		b.WriteString("Recent sessions:\n")
		for _, s := range c.RecentSummaries {
			fmt.Fprintf(&b, "- %s\n", firstLine(s))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Repository state:\ncommit: %s\n", c.Commit)
	if len(c.ModifiedFiles) > 0 {
		fmt.Fprintf(&b, "modified files: %s\n", strings.Join(c.ModifiedFiles, ", "))
	} else {
		b.WriteString("modified files: none\n")
	}
	b.WriteString("\n")

	if len(history) > 0 {
		b.WriteString("Progress so far:\n")
		b.WriteString(condenseHistory(history))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Step %d of at most %d.", step, maxSteps)
	if step >= maxSteps {
		b.WriteString(" This is the last step: finish the task now.")
	} else {
		b.WriteString(" Set expected_follow_up to false when no further step is needed.")
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "User request: %s\n\n", c.Prompt)

	b.WriteString(`Reply with JSON only, in this shape:
{"actions":[{"type":"tool_use","tool_name":"...","parameters":{}},{"type":"confirmation","message":"...","destructive":true}],"metadata":{"confidence":0.0,"is_final":false,"expected_follow_up":true,"reasoning":"..."}}
Place a confirmation immediately after any destructive tool action. Return {"actions":[]} when the task is complete.`)

	return b.String()
}

// condenseHistory renders the last 4 results verbatim and folds older ones
// into a single "x/y succeeded" line.
func condenseHistory(history []StepResult) string {
	const verbatim = 4
	var b strings.Builder
	if extra := len(history) - verbatim; extra > 0 {
		ok := 0
		for _, r := range history[:extra] {
			if r.Success {
				ok++
			}
		}
		fmt.Fprintf(&b, "(%d earlier actions: %d/%d succeeded)\n", extra, ok, extra)
	}
	start := len(history) - verbatim
	if start < 0 {
		start = 0
	}
	for _, r := range history[start:] {
		if r.Success {
			fmt.Fprintf(&b, "- %s: ok%s\n", r.Description, truncateInline(r.Output, 200))
		} else {
			fmt.Fprintf(&b, "- %s: FAILED: %s\n", r.Description, r.Error)
		}
	}
	return b.String()
}

func truncateInline(s string, n int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > n {
		s = s[:n] + "..."
	}
	return " — " + s
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// --- response parsing ---

type planDoc struct {
	Actions  []actionDoc `json:"actions"`
	Metadata *metaDoc    `json:"metadata"`
}

type actionDoc struct {
	Type        string         `json:"type"`
	ToolName    string         `json:"tool_name"`
	Parameters  map[string]any `json:"parameters"`
	Message     string         `json:"message"`
	Destructive *bool          `json:"destructive"`
}

type metaDoc struct {
	Confidence       *float64 `json:"confidence"`
	IsFinal          *bool    `json:"is_final"`
	ExpectedFollowUp *bool    `json:"expected_follow_up"`
	Reasoning        string   `json:"reasoning"`
}

// parse extracts the largest valid JSON object from the model reply and
// translates it into a Plan. Unknown action types are dropped; missing
// fields default to zero values, and confirmation destructive defaults to
// true. The second return reports whether a plan-shaped JSON object was
// found at all.
func (p *Planner) parse(text string) (Plan, bool) {
	plan := Plan{Meta: DefaultPlanMeta()}

	raw, ok := ExtractLargestJSON(text)
	if !ok {
		p.logger.Debug("no JSON object found in model reply")
		return plan, false
	}
	var doc planDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		p.logger.Debug("model JSON does not match plan shape", "error", err)
		return plan, false
	}

	for _, a := range doc.Actions {
		switch a.Type {
		case string(ActionTool):
			params := a.Parameters
			if params == nil {
				params = map[string]any{}
			}
			plan.Actions = append(plan.Actions, Action{
				Type:     ActionTool,
				ToolName: a.ToolName,
				Params:   params,
			})
		case string(ActionConfirm):
			destructive := true
			if a.Destructive != nil {
				destructive = *a.Destructive
			}
			plan.Actions = append(plan.Actions, Action{
				Type:        ActionConfirm,
				Message:     a.Message,
				Destructive: destructive,
			})
		default:
			p.logger.Debug("dropping unknown action type", "type", a.Type)
		}
	}

	if doc.Metadata != nil {
		if doc.Metadata.Confidence != nil {
			plan.Meta.Confidence = *doc.Metadata.Confidence
		}
		if doc.Metadata.IsFinal != nil {
			plan.Meta.IsFinal = *doc.Metadata.IsFinal
		}
		if doc.Metadata.ExpectedFollowUp != nil {
			plan.Meta.ExpectFollowUp = *doc.Metadata.ExpectedFollowUp
		}
		plan.Meta.Reasoning = doc.Metadata.Reasoning
	}
	return plan, true
}

// --- pre-actions ---

// withPreActions prepends the hardcoded heuristics: a brainstorm action
// when the prompt reads like a search, and a file read for every
// filename-like substring not already in the modified set.
func (p *Planner) withPreActions(c Context, plan Plan) Plan {
	var pre []Action

	lower := strings.ToLower(c.Prompt)
	for _, h := range searchHints {
		if strings.Contains(lower, h) {
			pre = append(pre, Action{
				Type:     ActionTool,
				ToolName: toolBrainstorm,
				Params:   map[string]any{"prompt": c.Prompt},
			})
			break
		}
	}

	modified := make(map[string]struct{}, len(c.ModifiedFiles))
	for _, f := range c.ModifiedFiles {
		modified[f] = struct{}{}
	}
	seen := make(map[string]struct{})
	for _, m := range filenameLike.FindAllString(c.Prompt, -1) {
		if _, ok := modified[m]; ok {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		pre = append(pre, Action{
			Type:     ActionTool,
			ToolName: toolReadFile,
			Params:   map[string]any{"file_path": m},
		})
	}

	if len(pre) == 0 {
		return plan
	}
	plan.Actions = append(pre, plan.Actions...)
	return plan
}
