package chunk

// State represents the lifecycle of a chunk task.
type State string

const (
	StatePending              State = "pending"
	StateExtractingAudio      State = "extracting_audio"
	StateTranscribing         State = "transcribing"
	StateTranslating          State = "translating"
	StateExtractingVocabulary State = "extracting_vocabulary"
	StateAssemblingSubtitles  State = "assembling_subtitles"
	StateCompleted            State = "completed"
	StateFailed               State = "failed"
)

// pipeline lists the non-terminal states in execution order, followed by completed.
var pipeline = []State{
	StatePending,
	StateExtractingAudio,
	StateTranscribing,
	StateTranslating,
	StateExtractingVocabulary,
	StateAssemblingSubtitles,
	StateCompleted,
}

var position = func() map[State]int {
	m := make(map[State]int, len(pipeline))
	for i, s := range pipeline {
		m[s] = i
	}
	return m
}()

// Stages returns the working states in execution order.
func Stages() []State {
	return append([]State(nil), pipeline[1:len(pipeline)-1]...)
}

// Known reports whether s is a defined state.
func (s State) Known() bool {
	if s == StateFailed {
		return true
	}
	_, ok := position[s]
	return ok
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanTransition reports whether moving from s to next is legal. Only the
// immediate successor is allowed, plus failed from any non-terminal state.
func (s State) CanTransition(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == StateFailed {
		return s.Known()
	}
	from, ok := position[s]
	if !ok {
		return false
	}
	to, ok := position[next]
	return ok && to == from+1
}

// Next returns the successor of s in the pipeline, or false at the end.
func (s State) Next() (State, bool) {
	i, ok := position[s]
	if !ok || i+1 >= len(pipeline) {
		return "", false
	}
	return pipeline[i+1], true
}

// Ordinal returns the 1-based position of a working state and the total
// number of working states; pending reports 0.
func (s State) Ordinal() (int, int) {
	total := len(pipeline) - 2
	i, ok := position[s]
	if !ok {
		return 0, total
	}
	if i > total {
		return total, total
	}
	return i, total
}
