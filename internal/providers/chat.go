package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const defaultSystemPrompt = "You are a systematic review assistant. Answer only with what the request asks for."

// chatClient speaks the OpenAI-compatible chat completions protocol shared by
// OpenAI and Groq.
type chatClient struct {
	name   string
	url    string
	apiKey string
	client *http.Client
}

func (c chatClient) complete(ctx context.Context, model string, req GenerateRequest) (GenerateResponse, error) {
	system := req.System
	if system == "" {
		system = defaultSystemPrompt
	}
	body := map[string]any{
		"model":       model,
		"temperature": req.Temperature,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": userPrompt(req)},
		},
	}
	if req.JSONMode {
		body["response_format"] = map[string]string{"type": "json_object"}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("encode %s request: %w", c.name, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("build %s request: %w", c.name, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("%s generate request failed: %w", c.name, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return GenerateResponse{}, statusError(c.name, resp.StatusCode, raw)
	}
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return GenerateResponse{}, fmt.Errorf("decode %s response: %w", c.name, err)
	}
	if len(parsed.Choices) == 0 {
		return GenerateResponse{}, fmt.Errorf("%s returned empty choices", c.name)
	}
	return GenerateResponse{
		Text:  parsed.Choices[0].Message.Content,
		Usage: Usage{PromptTokens: parsed.Usage.PromptTokens, CompletionTokens: parsed.Usage.CompletionTokens},
	}, nil
}
