package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// OllamaProvider runs screening prompts against a local Ollama server.
type OllamaProvider struct {
	alias   string
	baseURL string
	model   string
	client  *http.Client
}

func NewOllamaProvider(alias string) *OllamaProvider {
	return &OllamaProvider{
		alias:   alias,
		baseURL: strings.TrimRight(envOr("LITREVIEW_OLLAMA_BASE_URL", "http://localhost:11434"), "/"),
		model:   resolveOllamaModel(alias),
		client:  &http.Client{Timeout: 180 * time.Second},
	}
}

func (o *OllamaProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "ollama", Model: o.model, Key: o.alias}
	system := req.System
	if system == "" {
		system = defaultSystemPrompt
	}
	body := map[string]any{
		"model":  o.model,
		"stream": false,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": userPrompt(req)},
		},
		"options": map[string]any{"temperature": req.Temperature},
	}
	if req.JSONMode {
		body["format"] = "json"
	}
	payload, _ := json.Marshal(body)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("build ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("ollama generate request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return GenerateResponse{}, info, statusError("ollama", resp.StatusCode, raw)
	}
	var parsed struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		PromptEvalCount int `json:"prompt_eval_count"`
		EvalCount       int `json:"eval_count"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return GenerateResponse{}, info, fmt.Errorf("decode ollama response: %w", err)
	}
	if strings.TrimSpace(parsed.Message.Content) == "" {
		return GenerateResponse{}, info, fmt.Errorf("ollama returned empty message")
	}
	return GenerateResponse{
		Text:  parsed.Message.Content,
		Usage: Usage{PromptTokens: parsed.PromptEvalCount, CompletionTokens: parsed.EvalCount},
	}, info, nil
}

func resolveOllamaModel(alias string) string {
	alias = strings.TrimSpace(alias)
	if alias != "" {
		if v := strings.TrimSpace(os.Getenv("LITREVIEW_OLLAMA_MODEL_" + sanitizeEnvToken(alias))); v != "" {
			return v
		}
		// Allow a direct model in the provider list, e.g. ollama:qwen2.5:7b
		if strings.ContainsAny(alias, "-/.:") {
			return alias
		}
	}
	return envOr("LITREVIEW_OLLAMA_MODEL", "llama3.1:8b")
}

var envTokenReplacer = strings.NewReplacer("-", "_", ".", "_", "/", "_", ":", "_")

// sanitizeEnvToken turns an alias into an environment variable suffix.
func sanitizeEnvToken(s string) string {
	return envTokenReplacer.Replace(strings.ToUpper(s))
}
