package cairn

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Tool is a provider of one or more callable tool functions. A single Tool
// may expose several definitions (the git tool exposes git_status, git_diff
// and git_commit_hash); Execute dispatches on the function name.
type Tool interface {
	// Definitions returns the functions this tool exposes.
	Definitions() []ToolDefinition

	// Execute runs the named function. Tool-level failures are reported in
	// ToolResult.Error; a Go error means the call itself could not be made
	// (unknown name, cancelled context).
	Execute(ctx context.Context, name string, args json.RawMessage) (ToolResult, error)
}

// Registry maps tool function names to their providers. Registration is
// last-writer-wins; a collision logs a warning rather than failing, so a
// caller can deliberately shadow a built-in.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	defs    map[string]ToolDefinition
	schemas map[string]*jsonschema.Schema
	logger  *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger used for registration warnings.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty tool registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tools:   make(map[string]Tool),
		defs:    make(map[string]ToolDefinition),
		schemas: make(map[string]*jsonschema.Schema),
		logger:  nopLogger(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Register adds every function the tool exposes. Re-registering a name
// replaces the previous provider. Parameter schemas compile here, once;
// a malformed schema panics since it is a tool author error.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range t.Definitions() {
		if _, exists := r.tools[d.Name]; exists {
			r.logger.Warn("tool name already registered, replacing", "name", d.Name)
		}
		r.tools[d.Name] = t
		r.defs[d.Name] = d
		delete(r.schemas, d.Name)
		if len(d.Parameters) > 0 {
			r.schemas[d.Name] = MustCompileSchema(string(d.Parameters))
		}
	}
}

// Get returns the provider and definition for a function name.
func (r *Registry) Get(name string) (Tool, ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, ToolDefinition{}, false
	}
	return t, r.defs[name], true
}

// Names returns all registered function names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Definitions returns all registered definitions, sorted by name.
func (r *Registry) Definitions() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]ToolDefinition, 0, len(r.defs))
	for _, d := range r.defs {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Execute looks up the function, validates the parameters against its
// schema, and runs it. An unknown name is a tool-level failure (in-band
// error), not a Go error: the loop treats it like any other failed action.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) ToolResult {
	t, _, ok := r.Get(name)
	if !ok {
		return ToolResult{Error: fmt.Sprintf("unknown tool: %s", name)}
	}
	if params == nil {
		params = map[string]any{}
	}
	args, err := json.Marshal(params)
	if err != nil {
		return ToolResult{Error: fmt.Sprintf("invalid parameters for %s: %v", name, err)}
	}
	if s := r.schema(name); s != nil {
		if err := ValidateArgs(s, args); err != nil {
			return ToolResult{Error: fmt.Sprintf("invalid parameters for %s: %v", name, err)}
		}
	}
	res, err := t.Execute(ctx, name, args)
	if err != nil {
		return ToolResult{Error: err.Error()}
	}
	return res
}

func (r *Registry) schema(name string) *jsonschema.Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.schemas[name]
}

// PromptBlock renders the registry as the tool section of the planner
// prompt: one "- name: description" line per function, sorted by name.
func (r *Registry) PromptBlock() string {
	var b strings.Builder
	for _, d := range r.Definitions() {
		fmt.Fprintf(&b, "- %s: %s\n", d.Name, d.Description)
	}
	return b.String()
}
