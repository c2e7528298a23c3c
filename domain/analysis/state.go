package analysis

import (
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// State accumulates the outputs of each stage for one analyzed file.
// It is created per file, mutated only by tool invocations and never reused.
type State struct {
	mu sync.RWMutex

	runID         string
	sourcePath    string
	convertedPath string
	startedAt     time.Time

	rawText           string
	visionDescription string
	consistency       string
	dates             string
	legislation       string
	clarifications    []string
	asked             map[string]struct{}
	verdict           string
}

// NewState starts the accumulator for the file at sourcePath.
func NewState(runID, sourcePath string) *State {
	return &State{
		runID:      runID,
		sourcePath: sourcePath,
		startedAt:  time.Now(),
		asked:      make(map[string]struct{}),
	}
}

// RunID returns the run the state belongs to.
func (s *State) RunID() string {
	return s.runID
}

// SourcePath returns the analyzed file as given by the caller.
func (s *State) SourcePath() string {
	return s.sourcePath
}

// SetConvertedPath records the image produced from a non-image source.
func (s *State) SetConvertedPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convertedPath = path
}

// ConvertedPath returns the converted image path, if any.
func (s *State) ConvertedPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.convertedPath
}

// ImagePath returns the image the vision stages should read.
func (s *State) ImagePath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.convertedPath != "" {
		return s.convertedPath
	}
	return s.sourcePath
}

// StartedAt returns when the analysis started.
func (s *State) StartedAt() time.Time {
	return s.startedAt
}

// Stem returns the source file name without directory and extension.
func (s *State) Stem() string {
	base := filepath.Base(s.sourcePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// RawText returns the extracted raw text.
func (s *State) RawText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rawText
}

// SetRawText stores the extracted raw text.
func (s *State) SetRawText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rawText = text
}

// VisionDescription returns the structured image description.
func (s *State) VisionDescription() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visionDescription
}

// SetVisionDescription stores the structured image description.
func (s *State) SetVisionDescription(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visionDescription = text
}

// ConsistencyReport returns the consistency check result.
func (s *State) ConsistencyReport() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.consistency
}

// SetConsistencyReport stores the consistency check result.
func (s *State) SetConsistencyReport(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consistency = text
}

// DatesReport returns the date verification result.
func (s *State) DatesReport() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dates
}

// SetDatesReport stores the date verification result.
func (s *State) SetDatesReport(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dates = text
}

// LegislationText returns the raw legislation retrieved for the ad.
func (s *State) LegislationText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.legislation
}

// SetLegislationText stores the raw legislation retrieved for the ad.
func (s *State) SetLegislationText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.legislation = text
}

// Verdict returns the compliance verdict.
func (s *State) Verdict() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.verdict
}

// SetVerdict stores the compliance verdict.
func (s *State) SetVerdict(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verdict = text
}

// MarkAsked records questions in the clarification history. It returns false
// if the identical questions string was already recorded.
func (s *State) MarkAsked(questions string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.asked[questions]; ok {
		return false
	}
	s.asked[questions] = struct{}{}
	return true
}

// WasAsked reports whether the questions string is in the clarification history.
func (s *State) WasAsked(questions string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.asked[questions]
	return ok
}

// AddClarification appends an answer to the clarification transcript.
func (s *State) AddClarification(answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clarifications = append(s.clarifications, answer)
}

// Clarifications returns every clarification answer joined by blank lines.
func (s *State) Clarifications() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return strings.Join(s.clarifications, "\n\n")
}

// Output returns the text produced by a stage, or the empty string.
func (s *State) Output(stage Stage) string {
	switch stage {
	case StageRawText:
		return s.RawText()
	case StageVision:
		return s.VisionDescription()
	case StageConsistency:
		return s.ConsistencyReport()
	case StageDates:
		return s.DatesReport()
	case StageLegislation:
		return s.LegislationText()
	case StageClarifications:
		return s.Clarifications()
	case StageCompliance:
		return s.Verdict()
	default:
		return ""
	}
}

// Has reports whether a stage produced output.
func (s *State) Has(stage Stage) bool {
	return s.Output(stage) != ""
}

// dependencies lists, per stage, the stages whose output it needs.
var dependencies = map[Stage][]Stage{
	StageConsistency:    {StageVision},
	StageDates:          {StageVision},
	StageLegislation:    {StageVision},
	StageClarifications: {StageVision, StageLegislation},
	StageCompliance:     {StageVision, StageLegislation},
}

// Require returns a PreconditionError if a stage this one depends on has not
// produced output yet.
func (s *State) Require(stage Stage) error {
	var missing []Stage
	for _, dep := range dependencies[stage] {
		if !s.Has(dep) {
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 {
		return &PreconditionError{Stage: stage, Missing: missing}
	}
	return nil
}
