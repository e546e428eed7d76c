package providers

import (
	"fmt"

	"litreview/internal/config"
)

type NamedLLMProvider struct {
	Ref      ProviderRef
	Provider LLMProvider
}

// Manager holds the configured providers in list order.
type Manager struct {
	llmProviders []NamedLLMProvider
}

func NewManager(cfg config.Config) (*Manager, error) {
	m := &Manager{}
	for _, ref := range ParseProviderList(cfg.LLMProviders) {
		p, err := buildProvider(ref)
		if err != nil {
			return nil, err
		}
		m.llmProviders = append(m.llmProviders, NamedLLMProvider{Ref: ref, Provider: p})
	}
	return m, nil
}

// NewManagerWith builds a manager over already constructed providers.
func NewManagerWith(ps ...NamedLLMProvider) *Manager {
	return &Manager{llmProviders: ps}
}

func (m *Manager) LLMProviderByIndex(i int) (LLMProvider, ProviderRef) {
	if i < 0 || i >= len(m.llmProviders) {
		return NewMockProvider(), ProviderRef{Raw: "mock", Name: "mock"}
	}
	return m.llmProviders[i].Provider, m.llmProviders[i].Ref
}

// PreferredLLMOrder lists real providers in configured order, then the mock.
func (m *Manager) PreferredLLMOrder() []int {
	var hosted, mock []int
	for i, p := range m.llmProviders {
		if p.Ref.Name == "mock" {
			mock = append(mock, i)
		} else {
			hosted = append(hosted, i)
		}
	}
	return append(hosted, mock...)
}

func buildProvider(ref ProviderRef) (LLMProvider, error) {
	switch ref.Name {
	case "mock":
		return NewMockProvider(), nil
	case "openai":
		return NewOpenAIProvider(ref.KeyAlias), nil
	case "ollama":
		return NewOllamaProvider(ref.KeyAlias), nil
	case "groq":
		return NewGroqProvider(ref.KeyAlias), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ref.Name)
	}
}
