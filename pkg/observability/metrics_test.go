package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/glaucoscan/pkg/domain"
	"github.com/aretw0/glaucoscan/pkg/observability"
)

func TestMetrics_Hooks(t *testing.T) {
	m := observability.NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnTransition(ctx, &domain.TransitionEvent{From: domain.PhaseAwaitingUpload, To: domain.PhaseReadyToAnalyze})
	hooks.OnTransition(ctx, &domain.TransitionEvent{From: domain.PhaseAnalyzing, To: domain.PhaseComplete, Elapsed: 3 * time.Second})
	hooks.OnUploadRejected(ctx, &domain.UploadEvent{Reason: "not_an_image"})
	hooks.OnUploadRejected(ctx, &domain.UploadEvent{Reason: "not_an_image"})
	hooks.OnAnalysisScheduled(ctx, &domain.AnalysisEvent{})
	hooks.OnAnalysisDiscarded(ctx, &domain.AnalysisEvent{})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("awaiting_upload", "ready_to_analyze")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.UploadRejections.WithLabelValues("not_an_image")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalysesScheduled))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalysesDiscarded))
	assert.Equal(t, 1, testutil.CollectAndCount(m.AnalysisDuration))

	// Registering twice must fail.
	assert.Error(t, m.Register(reg))
}

func TestPendingTasksGauge(t *testing.T) {
	n := 3
	g := observability.NewPendingTasksGauge(func() int { return n })
	assert.Equal(t, 3.0, testutil.ToFloat64(g))
	n = 0
	assert.Equal(t, 0.0, testutil.ToFloat64(g))
}

func TestCombine(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	calls := 0
	counting := domain.LifecycleHooks{
		OnTransition: func(context.Context, *domain.TransitionEvent) { calls++ },
	}
	hooks := observability.Combine(observability.LoggingHooks(logger), counting, domain.LifecycleHooks{})

	hooks.OnTransition(context.Background(), &domain.TransitionEvent{
		EventBase: domain.EventBase{SessionID: "s1"},
		From:      domain.PhaseReadyToAnalyze,
		To:        domain.PhaseAnalyzing,
	})
	hooks.OnUploadRejected(context.Background(), &domain.UploadEvent{Reason: "empty"})

	assert.Equal(t, 1, calls)
	assert.Contains(t, buf.String(), "to=analyzing")
	assert.Contains(t, buf.String(), "reason=empty")
}
