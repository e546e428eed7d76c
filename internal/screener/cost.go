package screener

import "unicode/utf8"

// PricePer1K is USD per thousand tokens, prompt and completion combined.
var PricePer1K = map[string]float64{
	"gpt-4o":       0.02,
	"gpt-4o-mini":  0.0024,
	"gpt-4.1":      0.008,
	"gpt-4.1-mini": 0.0016,
}

const defaultPricePer1K = 0.005

// Cost prices tokens for model. Unknown models use a flat default rate; local
// and mock models are free.
func Cost(provider, model string, tokens int) float64 {
	if provider == "mock" || provider == "ollama" {
		return 0
	}
	price, ok := PricePer1K[model]
	if !ok {
		price = defaultPricePer1K
	}
	return price * float64(tokens) / 1000
}

// EstimateTokens approximates a token count at four characters per token.
func EstimateTokens(s string) int {
	return utf8.RuneCountInString(s)/4 + 1
}
