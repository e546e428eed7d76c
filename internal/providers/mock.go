package providers

import (
	"context"
	"encoding/json"
	"strings"
)

// MockProvider answers without a network. Screening operations get a
// deterministic decision derived from the title and abstract keywords.
type MockProvider struct{}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	if err := ctx.Err(); err != nil {
		return GenerateResponse{}, ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}, err
	}
	text := "Mock response."
	if strings.HasPrefix(strings.ToLower(req.Operation), "screen") {
		text = mockScreening(req.Prompt)
	}
	usage := Usage{
		PromptTokens:     len(strings.Fields(req.System)) + len(strings.Fields(userPrompt(req))),
		CompletionTokens: len(strings.Fields(text)),
	}
	return GenerateResponse{Text: text, Usage: usage}, ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}, nil
}

type mockCriterion struct {
	Status   string `json:"status"`
	Evidence string `json:"evidence"`
}

func mockScreening(prompt string) string {
	p := strings.ToLower(prompt)
	llm := false
	for _, kw := range []string{"chatgpt", "gpt", "large language model", "llm"} {
		if strings.Contains(p, kw) {
			llm = true
			break
		}
	}
	writing := strings.Contains(p, "writing")
	status := func(ok bool, otherwise string) string {
		if ok {
			return "pass"
		}
		return otherwise
	}
	decision := "unsure"
	switch {
	case llm && writing:
		decision = "include"
	case !llm && !writing:
		decision = "exclude"
	}
	out := struct {
		Decision string                   `json:"decision"`
		Notes    map[string]mockCriterion `json:"notes"`
	}{
		Decision: decision,
		Notes: map[string]mockCriterion{
			"c1": {Status: "unclear", Evidence: "mock"},
			"c2": {Status: status(llm, "fail"), Evidence: "mock"},
			"c3": {Status: status(writing, "unclear"), Evidence: "mock"},
			"c4": {Status: status(llm && writing, "unclear"), Evidence: "mock"},
		},
	}
	b, _ := json.Marshal(out)
	return string(b)
}
