package runtime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/glaucoscan/internal/runtime"
	"github.com/aretw0/glaucoscan/pkg/domain"
)

func TestRender_Phases(t *testing.T) {
	c, clock := newController(t)
	fresh := domain.NewState("s1")

	v := c.Render(fresh)
	assert.Equal(t, 1, v.Step)
	assert.Equal(t, runtime.LabelUpload, v.Label)
	assert.Equal(t, domain.PanelUpload, v.Panel)
	assert.False(t, v.ShowAnalyze)
	assert.Nil(t, v.Image)

	ready, _ := c.Upload(fresh, sampleImage())
	v = c.Render(ready)
	assert.Equal(t, 2, v.Step)
	assert.Equal(t, domain.PanelReview, v.Panel)
	assert.True(t, v.ShowAnalyze)
	require.NotNil(t, v.Image)
	assert.Equal(t, "fundus.png", v.Image.Name)

	analyzing, _ := c.Analyze(ready)
	v = c.Render(analyzing)
	assert.Equal(t, 3, v.Step)
	assert.Equal(t, runtime.LabelProcessing, v.Label)
	assert.False(t, v.ShowAnalyze)
	assert.Equal(t, int64(3000), v.RemainingMs)
	assert.Nil(t, v.Result)

	clock.Advance(runtime.DefaultAnalysisDelay)
	done, _ := c.Complete(analyzing, analyzing.Generation, domain.StandardDiagnosis())
	v = c.Render(done)
	assert.Equal(t, 4, v.Step)
	assert.Equal(t, domain.PanelResults, v.Panel)
	require.NotNil(t, v.Result)
	assert.Equal(t, 94.2, v.Result.Confidence)
	assert.Equal(t, domain.IndicatorHealthy, v.Indicator)
	require.NotNil(t, v.Heatmap)
	assert.Equal(t, sampleImage().DataURI, v.Heatmap.Source)
}

func TestRender_GlaucomaIndicator(t *testing.T) {
	c, _ := newController(t)
	state := domain.NewState("s1")
	result := domain.StandardDiagnosis()
	result.Diagnosis = domain.DiagnosisGlaucoma
	state.Step = domain.Complete{Image: sampleImage(), Result: result}

	v := c.Render(state)
	assert.Equal(t, domain.IndicatorAlert, v.Indicator)
}

func TestRender_Nil(t *testing.T) {
	c, _ := newController(t)
	v := c.Render(nil)
	assert.Equal(t, domain.PhaseAwaitingUpload, v.Phase)
	assert.Empty(t, v.SessionID)
}
