// internal/pipeline/states.go
package pipeline

import "fmt"

// Stage names in execution order.
const (
	StageTranscribe      = "transcribe"
	StageExtractEntities = "extract-entities"
	StageMapVisual       = "map-visual"
	StagePersist         = "persist"
)

// StageOrder is the fixed execution sequence; stages never run concurrently
// or out of order within one generation.
var StageOrder = []string{StageTranscribe, StageExtractEntities, StageMapVisual, StagePersist}

// StageStatus values for a single stage within a run.
type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageInProgress StageStatus = "in-progress"
	StageCompleted  StageStatus = "completed"
	StageFailed     StageStatus = "failed"
	StageSkipped    StageStatus = "skipped"
)

// StageResult records the outcome of one stage for the caller-facing report.
type StageResult struct {
	Stage    string      `json:"stage"`
	Status   StageStatus `json:"status"`
	Progress int         `json:"progress"`
	Detail   string      `json:"detail,omitempty"`
}

// State is the pipeline's lifecycle state.
type State string

const (
	StateIdle               State = "idle"
	StateTranscribing       State = "transcribing"
	StateExtractingEntities State = "extracting-entities"
	StateMappingVisual      State = "mapping-visual"
	StatePersisting         State = "persisting"
	StateComplete           State = "complete"
	StateFailed             State = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// transitions is the full set of legal state moves. Failed is reachable
// from every active state; text input enters at ExtractingEntities, and the
// fallback path skips MappingVisual straight into Persisting.
var transitions = map[State][]State{
	StateIdle:               {StateTranscribing, StateExtractingEntities, StateFailed},
	StateTranscribing:       {StateExtractingEntities, StateFailed},
	StateExtractingEntities: {StateMappingVisual, StatePersisting, StateFailed},
	StateMappingVisual:      {StatePersisting, StateFailed},
	StatePersisting:         {StateComplete, StateFailed},
}

// machine enforces the transition table. It is per-run and not shared, so
// it needs no locking.
type machine struct {
	current State
}

func newMachine() *machine {
	return &machine{current: StateIdle}
}

func (m *machine) State() State { return m.current }

// to moves the machine to the next state, or errors when the move is not in
// the transition table. An illegal transition is a programming error in the
// orchestrator, not a runtime condition.
func (m *machine) to(next State) error {
	for _, allowed := range transitions[m.current] {
		if allowed == next {
			m.current = next
			return nil
		}
	}
	return fmt.Errorf("illegal pipeline transition %s -> %s", m.current, next)
}

// stageProgress maps a completed stage to the percentage reported to the
// caller. Persist completing means the whole run is done.
var stageProgress = map[string]int{
	StageTranscribe:      25,
	StageExtractEntities: 50,
	StageMapVisual:       75,
	StagePersist:         100,
}
