package cairn

import "context"

// GenerateOptions tunes a single model call. Nil means provider defaults.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
}

// ModelResponse is the outcome of one Generate call. Model clients never
// return Go errors from Generate: failures are carried in Metadata under
// "error" (message) and "status" (HTTP status when known) so the planner
// can degrade to an empty plan instead of aborting the loop.
type ModelResponse struct {
	Text     string
	Metadata map[string]any
}

// Failed reports whether the response represents a transport or endpoint
// failure rather than model output.
func (r ModelResponse) Failed() bool {
	if r.Metadata == nil {
		return false
	}
	_, ok := r.Metadata["error"]
	return ok
}

// ErrorMessage returns the failure message, or "" for a successful response.
func (r ModelResponse) ErrorMessage() string {
	if r.Metadata == nil {
		return ""
	}
	if s, ok := r.Metadata["error"].(string); ok {
		return s
	}
	return ""
}

// Status returns the HTTP status attached to a failed response, or 0.
func (r ModelResponse) Status() int {
	if r.Metadata == nil {
		return 0
	}
	switch v := r.Metadata["status"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// ModelClient is the contract between the loop and a language model
// endpoint. provider/ollama implements it against a local Ollama server.
type ModelClient interface {
	// Generate sends a prompt and returns the completion. Never returns a
	// Go error; see ModelResponse.Failed.
	Generate(ctx context.Context, prompt string, opts *GenerateOptions) ModelResponse

	// Available probes the endpoint with a short timeout. The Driver calls
	// this once before entering the loop.
	Available(ctx context.Context) bool
}

// ErrorResponse builds a failed ModelResponse with the given message and
// optional HTTP status (0 when not applicable).
func ErrorResponse(msg string, status int) ModelResponse {
	md := map[string]any{"error": msg}
	if status != 0 {
		md["status"] = status
	}
	return ModelResponse{Metadata: md}
}
