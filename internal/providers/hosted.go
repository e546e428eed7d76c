package providers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// hostedSpec describes an OpenAI-compatible chat API. Settings come from
// LITREVIEW_<ENV>_BASE_URL, LITREVIEW_<ENV>_MODEL and LITREVIEW_<ENV>_KEY_<ALIAS>,
// falling back to the vendor's own key variable.
type hostedSpec struct {
	name         string
	env          string
	baseURL      string
	defaultModel string
	keyEnv       string
	timeout      time.Duration
	// fixedModel ignores request models the vendor does not serve.
	fixedModel bool
}

var (
	openAISpec = hostedSpec{
		name:         "openai",
		env:          "OPENAI",
		baseURL:      "https://api.openai.com/v1",
		defaultModel: "gpt-4.1-mini",
		keyEnv:       "OPENAI_API_KEY",
		timeout:      120 * time.Second,
	}
	groqSpec = hostedSpec{
		name:         "groq",
		env:          "GROQ",
		baseURL:      "https://api.groq.com/openai/v1",
		defaultModel: "llama-3.1-8b-instant",
		keyEnv:       "GROQ_API_KEY",
		timeout:      60 * time.Second,
		fixedModel:   true,
	}
)

// HostedProvider calls a hosted chat completions API with one API key.
type HostedProvider struct {
	vendor  hostedSpec
	keyName string
	model   string
	chat    chatClient
}

func NewOpenAIProvider(keyName string) *HostedProvider { return newHosted(openAISpec, keyName) }

func NewGroqProvider(keyName string) *HostedProvider { return newHosted(groqSpec, keyName) }

func newHosted(vendor hostedSpec, keyName string) *HostedProvider {
	base := strings.TrimRight(envOr("LITREVIEW_"+vendor.env+"_BASE_URL", vendor.baseURL), "/")
	return &HostedProvider{
		vendor:  vendor,
		keyName: keyName,
		model:   envOr("LITREVIEW_"+vendor.env+"_MODEL", vendor.defaultModel),
		chat: chatClient{
			name:   vendor.name,
			url:    base + "/chat/completions",
			apiKey: vendor.resolveKey(keyName),
			client: &http.Client{Timeout: vendor.timeout},
		},
	}
}

func (h *HostedProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	model := h.model
	if req.Model != "" && !h.vendor.fixedModel {
		model = req.Model
	}
	info := ProviderInfo{Name: h.vendor.name, Model: model, Key: h.keyName}
	if h.chat.apiKey == "" {
		return GenerateResponse{}, info, fmt.Errorf("%s key missing for alias %q", h.vendor.name, h.keyName)
	}
	resp, err := h.chat.complete(ctx, model, req)
	return resp, info, err
}

func (s hostedSpec) resolveKey(alias string) string {
	if alias != "" {
		if v := os.Getenv("LITREVIEW_" + s.env + "_KEY_" + sanitizeEnvToken(alias)); v != "" {
			return v
		}
	}
	return os.Getenv(s.keyEnv)
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
