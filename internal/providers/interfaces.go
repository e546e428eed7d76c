package providers

import (
	"context"
	"strings"
)

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

type GenerateRequest struct {
	Operation   string   `json:"operation"`
	System      string   `json:"system,omitempty"`
	Prompt      string   `json:"prompt"`
	Context     []string `json:"context,omitempty"`
	Model       string   `json:"model,omitempty"`
	JSONMode    bool     `json:"json_mode,omitempty"`
	Temperature float64  `json:"temperature"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

func (u Usage) Total() int { return u.PromptTokens + u.CompletionTokens }

type GenerateResponse struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}

type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error)
}

// userPrompt appends any context passages to the prompt.
func userPrompt(req GenerateRequest) string {
	prompt := req.Prompt
	if len(req.Context) > 0 {
		prompt += "\n\nContext:\n" + strings.Join(req.Context, "\n\n")
	}
	return prompt
}
