// Package cairn implements a local coding agent: a bounded plan/execute
// loop that turns one natural-language request into a sequence of tool
// invocations against the working directory and a synthesized answer.
//
// The root package holds the core contracts and the loop itself — the
// Driver, Planner, Executor, tool Registry, model client contract, and the
// commit-scoped cache service. Concrete backends live in subpackages:
// provider/ollama (local model endpoint), store/sqlite (sessions, file
// cache, audit), tools/* (file, search, git, shell, scaffold, analyze),
// and observer (OpenTelemetry tracing).
//
// One request is active at a time per Agent process. Callers that need
// concurrent requests must serialize; see Agent.ProcessRequest.
package cairn
