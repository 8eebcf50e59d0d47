package domain

// Phase identifies which step of the wizard a session is in.
type Phase string

const (
	PhaseAwaitingUpload Phase = "awaiting_upload"  // Step 1: nothing uploaded yet
	PhaseReadyToAnalyze Phase = "ready_to_analyze" // Step 2: image stored, waiting for "analyze"
	PhaseAnalyzing      Phase = "analyzing"        // Step 3: fixed delay running
	PhaseComplete       Phase = "complete"         // Step 4: results available
)

// Phases lists the wizard phases in forward order.
var Phases = []Phase{
	PhaseAwaitingUpload,
	PhaseReadyToAnalyze,
	PhaseAnalyzing,
	PhaseComplete,
}

// Ordinal returns the 1-based step number shown in the progress indicator,
// or 0 for an unknown phase.
func (p Phase) Ordinal() int {
	for i, candidate := range Phases {
		if candidate == p {
			return i + 1
		}
	}
	return 0
}

// Valid reports whether p is one of the four wizard phases.
func (p Phase) Valid() bool {
	return p.Ordinal() > 0
}

func (p Phase) String() string {
	return string(p)
}

// Trigger names what causes a transition.
type Trigger string

const (
	TriggerUpload  Trigger = "upload"
	TriggerAnalyze Trigger = "analyze"
	TriggerTimer   Trigger = "timer"
	TriggerReset   Trigger = "reset"
)

// Transition is an edge of the wizard graph.
type Transition struct {
	From    Phase
	To      Phase
	Trigger Trigger
}

// Transitions lists every edge the wizard allows.
var Transitions = []Transition{
	{PhaseAwaitingUpload, PhaseReadyToAnalyze, TriggerUpload},
	{PhaseReadyToAnalyze, PhaseAnalyzing, TriggerAnalyze},
	{PhaseAnalyzing, PhaseComplete, TriggerTimer},
	{PhaseAwaitingUpload, PhaseAwaitingUpload, TriggerReset},
	{PhaseReadyToAnalyze, PhaseAwaitingUpload, TriggerReset},
	{PhaseAnalyzing, PhaseAwaitingUpload, TriggerReset},
	{PhaseComplete, PhaseAwaitingUpload, TriggerReset},
}
