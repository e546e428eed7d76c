package providers

import "strings"

// ProviderRef is one entry of LITREVIEW_LLM_PROVIDERS: a provider name and an
// optional alias after the first colon. The alias selects an API key for the
// hosted providers and a model for ollama.
type ProviderRef struct {
	Raw      string
	Name     string
	KeyAlias string
}

func (r ProviderRef) String() string {
	if r.KeyAlias == "" {
		return r.Name
	}
	return r.Name + ":" + r.KeyAlias
}

// ParseProviderList splits a "|" or "," separated provider list, e.g.
// "openai:team|groq|mock". Names are lower-cased and repeated entries dropped.
// An empty list means the mock provider alone.
func ParseProviderList(raw string) []ProviderRef {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == '|' || r == ',' })
	out := make([]ProviderRef, 0, len(fields))
	seen := map[string]bool{}
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		name, alias, _ := strings.Cut(f, ":")
		ref := ProviderRef{Raw: f, Name: strings.ToLower(strings.TrimSpace(name)), KeyAlias: strings.TrimSpace(alias)}
		if seen[ref.String()] {
			continue
		}
		seen[ref.String()] = true
		out = append(out, ref)
	}
	if len(out) == 0 {
		out = append(out, ProviderRef{Raw: "mock", Name: "mock"})
	}
	return out
}
