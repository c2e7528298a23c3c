package analysis

import (
	"path/filepath"
	"time"
)

// Outcome is the terminal result of one file's analysis.
type Outcome string

// Report outcomes.
const (
	OutcomeCompleted Outcome = "completed"
	OutcomeExhausted Outcome = "exhausted" // Incomplete: iteration budget or timeout
	OutcomeFailed    Outcome = "failed"
)

// Steps holds the output of every pipeline stage, keyed as in the JSON report.
type Steps struct {
	RawText            string `json:"raw_text"`
	VisionAnalysis     string `json:"vision_analysis"`
	ConsistencyCheck   string `json:"consistency_check"`
	DatesVerification  string `json:"dates_verification"`
	Legislation        string `json:"legislation"`
	Clarifications     string `json:"clarifications"`
	ComplianceAnalysis string `json:"compliance_analysis"`
}

// StageUsage is the token and cost summary of one stage.
type StageUsage struct {
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	EmbeddingTokens  int64   `json:"embedding_tokens,omitempty"`
	CostUSD          float64 `json:"cost_usd"`
	Calls            int     `json:"calls"`
}

// Report is the persisted result of one file's analysis.
type Report struct {
	InputFile     string                `json:"input_file"`
	ConvertedFile string                `json:"converted_file,omitempty"`
	Timestamp     string                `json:"timestamp"`
	RunID         string                `json:"run_id"`
	Outcome       Outcome               `json:"outcome"`
	Iterations    int                   `json:"iterations"`
	Steps         Steps                 `json:"steps"`
	FinalResponse string                `json:"final_response"`
	Error         string                `json:"error,omitempty"`
	Usage         map[string]StageUsage `json:"usage,omitempty"`
}

// RunSummary is what the reasoning loop reports back for a file.
type RunSummary struct {
	Outcome    Outcome
	Iterations int
	Answer     string
	Err        error
}

// BuildReport snapshots the state and loop summary into a report.
func BuildReport(s *State, summary RunSummary, at time.Time) Report {
	input := s.SourcePath()
	if abs, err := filepath.Abs(input); err == nil {
		input = abs
	}

	r := Report{
		InputFile:     input,
		ConvertedFile: s.ConvertedPath(),
		Timestamp:     at.Format(time.RFC3339),
		RunID:         s.RunID(),
		Outcome:       summary.Outcome,
		Iterations:    summary.Iterations,
		Steps: Steps{
			RawText:            s.RawText(),
			VisionAnalysis:     s.VisionDescription(),
			ConsistencyCheck:   s.ConsistencyReport(),
			DatesVerification:  s.DatesReport(),
			Legislation:        s.LegislationText(),
			Clarifications:     s.Clarifications(),
			ComplianceAnalysis: s.Verdict(),
		},
		FinalResponse: summary.Answer,
	}
	if summary.Err != nil {
		r.Error = summary.Err.Error()
	}
	return r
}
