package domain

// StateDiff represents the changes between two states.
// It is designed to be serialized to JSON for partial updates on the client.
type StateDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	Generation *uint64 `json:"generation,omitempty"`
	Phase      *Phase  `json:"phase,omitempty"`

	// Image carries image metadata only. Clients fetch the data URI from the view.
	Image *ImageDelta `json:"image,omitempty"`

	// Result is set when the diagnosis appears.
	Result *DiagnosisResult `json:"result,omitempty"`

	HistoryParams *HistoryDelta `json:"history,omitempty"`
}

// ImageDelta reports an added, replaced or cleared image.
type ImageDelta struct {
	Present   bool   `json:"present"`
	Name      string `json:"name,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// HistoryDelta represents changes to the phase history.
type HistoryDelta struct {
	Appended []Phase `json:"appended"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState (initial load).
func Diff(oldState, newState *State) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{
		SessionID: newState.SessionID,
	}

	if oldState == nil || oldState.Generation != newState.Generation {
		gen := newState.Generation
		diff.Generation = &gen
	}
	if oldState == nil || oldState.Phase() != newState.Phase() {
		phase := newState.Phase()
		diff.Phase = &phase
	}

	diff.Image = diffImage(oldState, newState)

	if c, ok := newState.Step.(Complete); ok {
		if _, wasComplete := oldState.stepOrNil().(Complete); !wasComplete {
			result := c.Result
			diff.Result = &result
		}
	}

	diff.HistoryParams = diffHistory(oldState, newState)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func (s *State) stepOrNil() Step {
	if s == nil {
		return nil
	}
	return s.Step
}

func diffImage(old, new *State) *ImageDelta {
	newImg, newOK := new.Image()
	oldImg, oldOK := old.Image()

	switch {
	case newOK && (!oldOK || oldImg.DataURI != newImg.DataURI || oldImg.Name != newImg.Name):
		return &ImageDelta{Present: true, Name: newImg.Name, MediaType: newImg.MediaType}
	case !newOK && oldOK:
		return &ImageDelta{Present: false}
	}
	return nil
}

// diffHistory assumes append-only behavior for History.
func diffHistory(old *State, new *State) *HistoryDelta {
	if len(new.History) == 0 {
		return nil
	}
	if old == nil {
		return &HistoryDelta{Appended: new.History}
	}
	if len(new.History) > len(old.History) {
		return &HistoryDelta{Appended: new.History[len(old.History):]}
	}
	return nil
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.Generation == nil &&
		d.Phase == nil &&
		d.Image == nil &&
		d.Result == nil &&
		d.HistoryParams == nil
}
