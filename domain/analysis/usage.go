package analysis

import "time"

// ModelUsage aggregates the calls made to one model.
type ModelUsage struct {
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	EmbeddingTokens  int64   `json:"embedding_tokens,omitempty"`
	CostUSD          float64 `json:"cost_usd"`
	Calls            int     `json:"calls"`
}

// UsageStats is the token accounting of one batch, persisted under the
// stats directory.
type UsageStats struct {
	TotalFiles            int                   `json:"total_files"`
	TotalPromptTokens     int64                 `json:"total_prompt_tokens"`
	TotalCompletionTokens int64                 `json:"total_completion_tokens"`
	TotalEmbeddingTokens  int64                 `json:"total_embedding_tokens"`
	TotalTokens           int64                 `json:"total_tokens"`
	TotalCostUSD          float64               `json:"total_cost_usd"`
	Models                map[string]ModelUsage `json:"models"`
	StartDate             time.Time             `json:"start_date"`
	EndDate               time.Time             `json:"end_date"`
}

// Merge adds other into s. The date range widens to cover both.
func (s *UsageStats) Merge(other UsageStats) {
	s.TotalFiles += other.TotalFiles
	s.TotalPromptTokens += other.TotalPromptTokens
	s.TotalCompletionTokens += other.TotalCompletionTokens
	s.TotalEmbeddingTokens += other.TotalEmbeddingTokens
	s.TotalTokens += other.TotalTokens
	s.TotalCostUSD += other.TotalCostUSD

	if s.Models == nil {
		s.Models = make(map[string]ModelUsage, len(other.Models))
	}
	for name, u := range other.Models {
		cur := s.Models[name]
		cur.PromptTokens += u.PromptTokens
		cur.CompletionTokens += u.CompletionTokens
		cur.EmbeddingTokens += u.EmbeddingTokens
		cur.CostUSD += u.CostUSD
		cur.Calls += u.Calls
		s.Models[name] = cur
	}

	if !other.StartDate.IsZero() && (s.StartDate.IsZero() || other.StartDate.Before(s.StartDate)) {
		s.StartDate = other.StartDate
	}
	if other.EndDate.After(s.EndDate) {
		s.EndDate = other.EndDate
	}
}
