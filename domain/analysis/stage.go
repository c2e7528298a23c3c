// Package analysis models the per-file accumulator of pipeline stage outputs
// and the report derived from it.
package analysis

// Stage names one pipeline step of an analysis. The values are the report's
// steps keys.
type Stage string

// Pipeline stages in their expected order.
const (
	StageRawText        Stage = "raw_text"
	StageVision         Stage = "vision_analysis"
	StageConsistency    Stage = "consistency_check"
	StageDates          Stage = "dates_verification"
	StageLegislation    Stage = "legislation"
	StageClarifications Stage = "clarifications"
	StageCompliance     Stage = "compliance_analysis"
)

// Stages returns every pipeline stage in order.
func Stages() []Stage {
	return []Stage{
		StageRawText,
		StageVision,
		StageConsistency,
		StageDates,
		StageLegislation,
		StageClarifications,
		StageCompliance,
	}
}

// String returns the string representation of the stage.
func (s Stage) String() string {
	return string(s)
}

// IsValid reports whether s is a pipeline stage.
func (s Stage) IsValid() bool {
	for _, st := range Stages() {
		if st == s {
			return true
		}
	}
	return false
}
