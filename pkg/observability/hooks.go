package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/glaucoscan/pkg/domain"
)

// LoggingHooks logs every lifecycle event at debug level.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.Debug("Transition",
				"session_id", e.SessionID,
				"from", e.From,
				"to", e.To,
				"generation", e.Generation,
			)
		},
		OnUploadRejected: func(ctx context.Context, e *domain.UploadEvent) {
			logger.Info("Upload rejected",
				"session_id", e.SessionID,
				"file", e.FileName,
				"media_type", e.MediaType,
				"reason", e.Reason,
			)
		},
		OnAnalysisScheduled: func(ctx context.Context, e *domain.AnalysisEvent) {
			logger.Debug("Analysis scheduled", "session_id", e.SessionID, "generation", e.Generation, "delay", e.Delay)
		},
		OnAnalysisDiscarded: func(ctx context.Context, e *domain.AnalysisEvent) {
			logger.Debug("Analysis discarded", "session_id", e.SessionID, "generation", e.Generation)
		},
	}
}

// Combine fans every event out to all hook sets, in order.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			for _, h := range sets {
				if h.OnTransition != nil {
					h.OnTransition(ctx, e)
				}
			}
		},
		OnUploadRejected: func(ctx context.Context, e *domain.UploadEvent) {
			for _, h := range sets {
				if h.OnUploadRejected != nil {
					h.OnUploadRejected(ctx, e)
				}
			}
		},
		OnAnalysisScheduled: func(ctx context.Context, e *domain.AnalysisEvent) {
			for _, h := range sets {
				if h.OnAnalysisScheduled != nil {
					h.OnAnalysisScheduled(ctx, e)
				}
			}
		},
		OnAnalysisDiscarded: func(ctx context.Context, e *domain.AnalysisEvent) {
			for _, h := range sets {
				if h.OnAnalysisDiscarded != nil {
					h.OnAnalysisDiscarded(ctx, e)
				}
			}
		},
	}
}
