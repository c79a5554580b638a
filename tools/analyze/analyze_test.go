package analyze

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/cairnlabs/cairn"
)

type fakeModel struct {
	reply   string
	failed  bool
	prompts []string
}

func (f *fakeModel) Generate(ctx context.Context, prompt string, opts *cairn.GenerateOptions) cairn.ModelResponse {
	f.prompts = append(f.prompts, prompt)
	if f.failed {
		return cairn.ErrorResponse("connection refused", 0)
	}
	return cairn.ModelResponse{Text: f.reply}
}

func (f *fakeModel) Available(ctx context.Context) bool { return !f.failed }

func TestBrainstorm(t *testing.T) {
	model := &fakeModel{reply: "auth\nlogin\ntoken"}
	tool := New(model, nil)

	res, err := tool.Execute(context.Background(), "brainstorm_search_terms",
		json.RawMessage(`{"prompt":"find the auth bug"}`))
	if err != nil || res.Error != "" {
		t.Fatalf("brainstorm: err=%v toolErr=%s", err, res.Error)
	}
	if res.Content != "auth\nlogin\ntoken" {
		t.Fatalf("unexpected content %q", res.Content)
	}
	if len(model.prompts) != 1 || !strings.Contains(model.prompts[0], "find the auth bug") {
		t.Fatalf("request not embedded in model prompt: %v", model.prompts)
	}
}

func TestAnalyzeInlineCode(t *testing.T) {
	model := &fakeModel{reply: "no bugs found"}
	tool := New(model, nil)

	res, err := tool.Execute(context.Background(), "analyze_code",
		json.RawMessage(`{"code":"func add(a, b int) int { return a + b }","question":"any bugs?"}`))
	if err != nil || res.Error != "" {
		t.Fatalf("analyze: err=%v toolErr=%s", err, res.Error)
	}
	if res.Content != "no bugs found" {
		t.Fatalf("unexpected content %q", res.Content)
	}
	if !strings.Contains(model.prompts[0], "any bugs?") {
		t.Fatal("question not embedded in model prompt")
	}
}

func TestModelFailureIsToolError(t *testing.T) {
	tool := New(&fakeModel{failed: true}, nil)
	res, err := tool.Execute(context.Background(), "brainstorm_search_terms",
		json.RawMessage(`{"prompt":"x"}`))
	if err != nil {
		t.Fatalf("model failure must be in-band: %v", err)
	}
	if !strings.Contains(res.Error, "model error") {
		t.Fatalf("expected model error, got %q", res.Error)
	}
}

func TestMissingRequiredParams(t *testing.T) {
	tool := New(&fakeModel{reply: "r"}, nil)
	cases := map[string]string{
		"summarize_file":          `{}`,
		"analyze_code":            `{"question":""}`,
		"brainstorm_search_terms": `{}`,
	}
	for name, raw := range cases {
		res, err := tool.Execute(context.Background(), name, json.RawMessage(raw))
		if err != nil {
			t.Fatalf("%s: must be in-band: %v", name, err)
		}
		if res.Error == "" {
			t.Errorf("%s: expected tool error for missing params", name)
		}
	}
}
