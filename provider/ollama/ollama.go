// Package ollama implements cairn.ModelClient against a local Ollama
// server using its non-streaming /api/generate endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cairnlabs/cairn"
)

// DefaultBaseURL is the standard local Ollama address.
const DefaultBaseURL = "http://localhost:11434"

// Client talks to one Ollama server and one model.
type Client struct {
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	http        *http.Client
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTemperature sets the default sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Client) { c.temperature = t }
}

// WithMaxTokens sets the default completion length cap (num_predict).
func WithMaxTokens(n int) Option {
	return func(c *Client) { c.maxTokens = n }
}

// WithHTTPClient substitutes the HTTP client, mainly for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets a structured logger for request timing and failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for the given base URL and model name. An empty
// baseURL falls back to DefaultBaseURL. The default request timeout is 60s;
// availability probes use a shorter one.
func New(baseURL, model string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:     baseURL,
		model:       model,
		temperature: 0.7,
		http:        &http.Client{Timeout: 60 * time.Second},
		logger:      slog.New(discardHandler{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	TotalDuration   int64  `json:"total_duration"`
	EvalCount       int    `json:"eval_count"`
	PromptEvalCount int    `json:"prompt_eval_count"`
}

// Generate sends one prompt and returns the completion. Failures never
// surface as Go errors: they are reported through the response metadata so
// the planner can degrade to an empty plan.
func (c *Client) Generate(ctx context.Context, prompt string, opts *cairn.GenerateOptions) cairn.ModelResponse {
	start := time.Now()

	options := map[string]any{"temperature": c.temperature}
	if c.maxTokens > 0 {
		options["num_predict"] = c.maxTokens
	}
	if opts != nil {
		if opts.Temperature != 0 {
			options["temperature"] = opts.Temperature
		}
		if opts.MaxTokens != 0 {
			options["num_predict"] = opts.MaxTokens
		}
	}

	payload, err := json.Marshal(generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Options: options,
	})
	if err != nil {
		return cairn.ErrorResponse(fmt.Sprintf("marshal request: %v", err), 0)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return cairn.ErrorResponse(fmt.Sprintf("create request: %v", err), 0)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("ollama: request failed", "error", err, "duration", time.Since(start))
		return cairn.ErrorResponse((&cairn.ErrModel{Endpoint: c.baseURL, Message: err.Error()}).Error(), 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Debug("ollama: non-200 response", "status", resp.StatusCode, "duration", time.Since(start))
		return cairn.ErrorResponse((&cairn.ErrHTTP{Status: resp.StatusCode, Body: string(body)}).Error(), resp.StatusCode)
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return cairn.ErrorResponse(fmt.Sprintf("decode response: %v", err), 0)
	}

	c.logger.Debug("ollama: generate ok",
		"model", c.model,
		"prompt_tokens", gr.PromptEvalCount,
		"completion_tokens", gr.EvalCount,
		"duration", time.Since(start))

	return cairn.ModelResponse{
		Text: gr.Response,
		Metadata: map[string]any{
			"model":             c.model,
			"eval_count":        gr.EvalCount,
			"prompt_eval_count": gr.PromptEvalCount,
		},
	}
}

// Available probes the server by listing models. Bounded at 5 seconds
// regardless of the client timeout.
func (c *Client) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("ollama: availability probe failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Compile-time interface check.
var _ cairn.ModelClient = (*Client)(nil)
