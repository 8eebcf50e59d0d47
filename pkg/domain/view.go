package domain

// Panel names the sub-view rendered for a phase.
type Panel string

const (
	PanelUpload     Panel = "upload"
	PanelReview     Panel = "review"
	PanelProcessing Panel = "processing"
	PanelResults    Panel = "results"
)

// Indicator is the status dot shown next to the results header.
type Indicator string

const (
	IndicatorHealthy Indicator = "green"
	IndicatorAlert   Indicator = "red"
)

// View is what a client should display for a session.
type View struct {
	SessionID  string `json:"session_id"`
	Generation uint64 `json:"generation"`
	Phase      Phase  `json:"phase"`

	// Step is the 1-based position in the progress indicator.
	Step  int    `json:"step"`
	Label string `json:"label"`
	Panel Panel  `json:"panel"`

	ShowAnalyze bool `json:"show_analyze"`

	// RemainingMs is the time left in the analysis window.
	RemainingMs int64 `json:"remaining_ms,omitempty"`

	Image     *UploadedImage   `json:"image,omitempty"`
	Heatmap   *HeatmapOverlay  `json:"heatmap,omitempty"`
	Result    *DiagnosisResult `json:"result,omitempty"`
	Indicator Indicator        `json:"indicator,omitempty"`
}

// HeatmapOverlay decorates the uploaded image on the results screen.
// Nothing is computed: the source is the original image.
type HeatmapOverlay struct {
	Source         string  `json:"source"`
	Caption        string  `json:"caption"`
	ImageOpacity   float64 `json:"image_opacity"`
	OverlayOpacity float64 `json:"overlay_opacity"`
}
