package model

import (
	"sort"
	"strings"

	"github.com/felixgeelhaar/adcompliance/domain/model"
)

// Price is the USD price per 1K tokens.
type Price struct {
	Prompt     float64
	Completion float64
	Embedding  float64
}

// Fallback models used when a name matches no table entry.
const (
	DefaultChatModel      = "gpt-4o"
	DefaultEmbeddingModel = "text-embedding-3-large"
)

// Pricing maps model names to prices.
type Pricing map[string]Price

// DefaultPricing returns the built-in price table.
func DefaultPricing() Pricing {
	return Pricing{
		"gpt-4o":                 {Prompt: 0.0025, Completion: 0.01},
		"gpt-4":                  {Prompt: 0.03, Completion: 0.06},
		"gpt-4-turbo":            {Prompt: 0.01, Completion: 0.03},
		"gpt-3.5-turbo":          {Prompt: 0.0005, Completion: 0.0015},
		"gpt-4-vision-preview":   {Prompt: 0.01, Completion: 0.03},
		"text-embedding-3-large": {Embedding: 0.00013},
		"text-embedding-3-small": {Embedding: 0.00002},
		"ada-002":                {Embedding: 0.0001},
	}
}

// With returns a copy of the table with overrides applied.
func (p Pricing) With(overrides map[string]Price) Pricing {
	out := make(Pricing, len(p)+len(overrides))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range overrides {
		out[strings.ToLower(k)] = v
	}
	return out
}

// Lookup returns the price of the longest table key contained in name.
func (p Pricing) Lookup(name string, embedding bool) Price {
	lower := strings.ToLower(name)
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		if lower != "" && strings.Contains(lower, k) {
			return p[k]
		}
	}
	if embedding {
		return p[DefaultEmbeddingModel]
	}
	return p[DefaultChatModel]
}

// Cost returns the USD cost of usage on the named model.
func (p Pricing) Cost(name string, usage model.Usage, embedding bool) float64 {
	price := p.Lookup(name, embedding)
	if embedding {
		return float64(usage.PromptTokens) / 1000 * price.Embedding
	}
	return float64(usage.PromptTokens)/1000*price.Prompt +
		float64(usage.CompletionTokens)/1000*price.Completion
}
