package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventTransition        EventType = "transition"
	EventUploadRejected    EventType = "upload_rejected"
	EventAnalysisScheduled EventType = "analysis_scheduled"
	EventAnalysisDiscarded EventType = "analysis_discarded"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// TransitionEvent is emitted after a phase change has been persisted.
type TransitionEvent struct {
	EventBase
	From       Phase  `json:"from"`
	To         Phase  `json:"to"`
	Generation uint64 `json:"generation"`

	// Elapsed is the time spent in the From phase, when known.
	Elapsed time.Duration `json:"elapsed,omitempty"`
}

// UploadEvent describes a rejected upload.
type UploadEvent struct {
	EventBase
	FileName  string `json:"file_name"`
	MediaType string `json:"media_type"`
	Reason    string `json:"reason"`
}

// AnalysisEvent describes the lifecycle of the simulated analysis timer.
type AnalysisEvent struct {
	EventBase
	Generation uint64        `json:"generation"`
	Delay      time.Duration `json:"delay"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnTransition        func(context.Context, *TransitionEvent)
	OnUploadRejected    func(context.Context, *UploadEvent)
	OnAnalysisScheduled func(context.Context, *AnalysisEvent)
	OnAnalysisDiscarded func(context.Context, *AnalysisEvent)
}
