package jobs

// Stage represents a point in a job's lifecycle.
//
// The happy path is a fixed linear order from StagePending to StageCompleted.
// StageFailed is reachable from any non-terminal stage. StageCompleted and
// StageFailed are terminal: no transition out of them is ever legal.
type Stage string

const (
	StagePending                 Stage = "pending"
	StageResearching             Stage = "researching"
	StageGeneratingVision        Stage = "generating_vision"
	StageGeneratingOutline       Stage = "generating_outline"
	StagePlanning                Stage = "planning"
	StageQualityReview           Stage = "quality_review"
	StageWritingContent          Stage = "writing_content"
	StageGeneratingIllustrations Stage = "generating_illustrations"
	StageGeneratingCover         Stage = "generating_cover"
	StageAssemblingPDF           Stage = "assembling_pdf"
	StageCompleted               Stage = "completed"
	StageFailed                  Stage = "failed"
)

// stageOrder is the happy-path sequence. StageFailed is not part of the
// sequence; it is reached via abort-anywhere semantics.
var stageOrder = []Stage{
	StagePending,
	StageResearching,
	StageGeneratingVision,
	StageGeneratingOutline,
	StagePlanning,
	StageQualityReview,
	StageWritingContent,
	StageGeneratingIllustrations,
	StageGeneratingCover,
	StageAssemblingPDF,
	StageCompleted,
}

var stageIndex = func() map[Stage]int {
	m := make(map[Stage]int, len(stageOrder))
	for i, s := range stageOrder {
		m[s] = i
	}
	return m
}()

// Valid reports whether s is a member of the closed stage enumeration.
func (s Stage) Valid() bool {
	if s == StageFailed {
		return true
	}
	_, ok := stageIndex[s]
	return ok
}

// Terminal reports whether s admits no further transitions.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// CanTransition reports whether a job in stage s may legally move to next.
// Legal moves are the immediately following happy-path stage, or StageFailed
// from any non-terminal stage.
func (s Stage) CanTransition(next Stage) bool {
	if s.Terminal() {
		return false
	}
	if next == StageFailed {
		return true
	}
	from, ok := stageIndex[s]
	if !ok {
		return false
	}
	to, ok := stageIndex[next]
	if !ok {
		return false
	}
	return to == from+1
}

// Stages returns the happy-path stage order. The returned slice is a copy.
func Stages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}
