package domain

import (
	"encoding/json"
	"time"
)

// State represents the current snapshot of a wizard session.
type State struct {
	// SessionID identifies the session in the store.
	SessionID string

	// Generation increments on every transition. Asynchronous work (file reads,
	// the analysis timer) records the generation it was scheduled for and is
	// discarded when the two no longer match.
	Generation uint64

	// Step is the active phase variant. A nil Step is read as AwaitingUpload.
	Step Step

	// History tracks the phases entered, oldest first.
	History []Phase

	// UpdatedAt is the time of the last transition.
	UpdatedAt time.Time

	// Sealed holds an opaque encrypted copy of the real state.
	// Only set on envelopes produced by the encryption middleware.
	Sealed string
}

// NewState creates a clean state awaiting an upload.
func NewState(sessionID string) *State {
	return &State{
		SessionID: sessionID,
		Step:      AwaitingUpload{},
		History:   []Phase{PhaseAwaitingUpload},
		UpdatedAt: time.Now().UTC(),
	}
}

// Phase returns the active wizard phase.
func (s *State) Phase() Phase {
	if s == nil || s.Step == nil {
		return PhaseAwaitingUpload
	}
	return s.Step.Phase()
}

// Image returns the stored image, if the active step carries one.
func (s *State) Image() (UploadedImage, bool) {
	if s == nil || s.Step == nil {
		return UploadedImage{}, false
	}
	return StepImage(s.Step)
}

// Enter moves the state to the given step, bumping the generation and
// recording the phase in the history.
func (s *State) Enter(step Step, now time.Time) {
	s.Step = step
	s.Generation++
	s.History = append(s.History, step.Phase())
	s.UpdatedAt = now.UTC()
}

// Snapshot returns a deep copy of the state.
// Step variants are plain values, so copying the interface is enough.
func (s *State) Snapshot() *State {
	if s == nil {
		return nil
	}
	cp := *s
	if s.History != nil {
		cp.History = make([]Phase, len(s.History))
		copy(cp.History, s.History)
	}
	return &cp
}

type stateJSON struct {
	SessionID  string          `json:"session_id"`
	Generation uint64          `json:"generation"`
	Phase      Phase           `json:"phase"`
	Step       json.RawMessage `json:"step,omitempty"`
	History    []Phase         `json:"history,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Sealed     string          `json:"sealed,omitempty"`
}

// MarshalJSON encodes the step variant next to its phase tag.
func (s State) MarshalJSON() ([]byte, error) {
	step := s.Step
	if step == nil {
		step = AwaitingUpload{}
	}
	raw, err := json.Marshal(step)
	if err != nil {
		return nil, err
	}
	return json.Marshal(stateJSON{
		SessionID:  s.SessionID,
		Generation: s.Generation,
		Phase:      step.Phase(),
		Step:       raw,
		History:    s.History,
		UpdatedAt:  s.UpdatedAt,
		Sealed:     s.Sealed,
	})
}

// UnmarshalJSON restores the step variant named by the phase tag.
func (s *State) UnmarshalJSON(data []byte) error {
	var aux stateJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	step, err := decodeStep(aux.Phase, aux.Step)
	if err != nil {
		return err
	}
	*s = State{
		SessionID:  aux.SessionID,
		Generation: aux.Generation,
		Step:       step,
		History:    aux.History,
		UpdatedAt:  aux.UpdatedAt,
		Sealed:     aux.Sealed,
	}
	return nil
}
