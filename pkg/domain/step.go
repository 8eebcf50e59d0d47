package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Step is the phase-specific payload of a session.
// Each variant carries exactly the data its phase needs.
type Step interface {
	Phase() Phase
	isStep()
}

// AwaitingUpload is the initial step. It carries nothing.
type AwaitingUpload struct{}

// ReadyToAnalyze holds the uploaded image until the user asks for analysis.
type ReadyToAnalyze struct {
	Image UploadedImage `json:"image"`
}

// Analyzing tracks the simulated analysis window.
type Analyzing struct {
	Image     UploadedImage `json:"image"`
	StartedAt time.Time     `json:"started_at"`
	ReadyAt   time.Time     `json:"ready_at"`
}

// Complete holds the image and the diagnosis to present.
type Complete struct {
	Image  UploadedImage   `json:"image"`
	Result DiagnosisResult `json:"result"`
}

func (AwaitingUpload) Phase() Phase { return PhaseAwaitingUpload }
func (ReadyToAnalyze) Phase() Phase { return PhaseReadyToAnalyze }
func (Analyzing) Phase() Phase      { return PhaseAnalyzing }
func (Complete) Phase() Phase       { return PhaseComplete }

func (AwaitingUpload) isStep() {}
func (ReadyToAnalyze) isStep() {}
func (Analyzing) isStep()      {}
func (Complete) isStep()       {}

// StepImage returns the image held by a step, if any.
func StepImage(s Step) (UploadedImage, bool) {
	switch v := s.(type) {
	case ReadyToAnalyze:
		return v.Image, true
	case Analyzing:
		return v.Image, true
	case Complete:
		return v.Image, true
	}
	return UploadedImage{}, false
}

func decodeStep(phase Phase, raw json.RawMessage) (Step, error) {
	if phase == "" {
		phase = PhaseAwaitingUpload
	}
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}

	var (
		step Step
		err  error
	)
	switch phase {
	case PhaseAwaitingUpload:
		step = AwaitingUpload{}
	case PhaseReadyToAnalyze:
		var v ReadyToAnalyze
		err = json.Unmarshal(raw, &v)
		step = v
	case PhaseAnalyzing:
		var v Analyzing
		err = json.Unmarshal(raw, &v)
		step = v
	case PhaseComplete:
		var v Complete
		err = json.Unmarshal(raw, &v)
		step = v
	default:
		return nil, fmt.Errorf("unknown phase %q", phase)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s step: %w", phase, err)
	}
	return step, nil
}

// ReplaceStepImage returns a copy of s carrying img instead of its current image.
// Steps without an image are returned unchanged.
func ReplaceStepImage(s Step, img UploadedImage) Step {
	switch v := s.(type) {
	case ReadyToAnalyze:
		v.Image = img
		return v
	case Analyzing:
		v.Image = img
		return v
	case Complete:
		v.Image = img
		return v
	}
	return s
}
