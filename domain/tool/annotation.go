package tool

// Annotations describe tool behavior for planning and observation.
type Annotations struct {
	// ReadOnly indicates the tool does not write run state.
	ReadOnly bool `json:"read_only"`

	// Final marks the designated stopping point of a run. The loop does not
	// stop on it; the planner is instructed to.
	Final bool `json:"final"`

	// Stage is the pipeline stage the tool output belongs to.
	Stage string `json:"stage,omitempty"`

	// Tags are arbitrary labels for categorization.
	Tags []string `json:"tags,omitempty"`
}

// HasTag reports whether the annotations carry the tag.
func (a Annotations) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
