package providers

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseProviderList(t *testing.T) {
	tests := []struct {
		raw  string
		want []ProviderRef
	}{
		{"", []ProviderRef{{Raw: "mock", Name: "mock"}}},
		{"mock|openai:key1|openai:key2", []ProviderRef{
			{Raw: "mock", Name: "mock"},
			{Raw: "openai:key1", Name: "openai", KeyAlias: "key1"},
			{Raw: "openai:key2", Name: "openai", KeyAlias: "key2"},
		}},
		{"OpenAI, groq ,openai", []ProviderRef{
			{Raw: "OpenAI", Name: "openai"},
			{Raw: "groq", Name: "groq"},
		}},
		{"ollama:qwen2.5:7b", []ProviderRef{{Raw: "ollama:qwen2.5:7b", Name: "ollama", KeyAlias: "qwen2.5:7b"}}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, ParseProviderList(tt.raw)); diff != "" {
			t.Errorf("ParseProviderList(%q) mismatch (-want +got):\n%s", tt.raw, diff)
		}
	}
}
