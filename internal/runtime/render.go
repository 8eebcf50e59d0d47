package runtime

import (
	"github.com/aretw0/glaucoscan/pkg/domain"
)

// Step labels shown in the progress indicator.
const (
	LabelUpload     = "Upload fundus image"
	LabelReview     = "Review and analyze"
	LabelProcessing = "AI processing"
	LabelResults    = "View results"
)

const heatmapCaption = "AI attention areas highlighted in red"

type phaseView struct {
	label string
	panel domain.Panel
}

var phaseViews = map[domain.Phase]phaseView{
	domain.PhaseAwaitingUpload: {LabelUpload, domain.PanelUpload},
	domain.PhaseReadyToAnalyze: {LabelReview, domain.PanelReview},
	domain.PhaseAnalyzing:      {LabelProcessing, domain.PanelProcessing},
	domain.PhaseComplete:       {LabelResults, domain.PanelResults},
}

// Render derives the client view for a state. It never mutates the state.
func (c *Controller) Render(state *domain.State) domain.View {
	phase := state.Phase()
	pv := phaseViews[phase]

	view := domain.View{
		Phase: phase,
		Step:  phase.Ordinal(),
		Label: pv.label,
		Panel: pv.panel,
	}
	if state == nil {
		return view
	}
	view.SessionID = state.SessionID
	view.Generation = state.Generation

	switch step := state.Step.(type) {
	case domain.ReadyToAnalyze:
		img := step.Image
		view.Image = &img
		view.ShowAnalyze = true

	case domain.Analyzing:
		img := step.Image
		view.Image = &img
		left, _ := c.Remaining(state)
		view.RemainingMs = left.Milliseconds()

	case domain.Complete:
		img := step.Image
		result := step.Result
		view.Image = &img
		view.Result = &result
		view.Heatmap = &domain.HeatmapOverlay{
			Source:         img.DataURI,
			Caption:        heatmapCaption,
			ImageOpacity:   0.8,
			OverlayOpacity: 0.3,
		}
		view.Indicator = domain.IndicatorHealthy
		if result.IsGlaucoma() {
			view.Indicator = domain.IndicatorAlert
		}
	}
	return view
}
