package domain

// RiskLevel grades the screening outcome.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

const (
	DiagnosisNormal   = "Normal"
	DiagnosisGlaucoma = "Glaucoma"
)

// DiagnosisDetails holds the per-structure findings of a screening.
type DiagnosisDetails struct {
	CupToDiscRatio    float64 `json:"cup_to_disc_ratio"`
	OpticNerveHealth  string  `json:"optic_nerve_health"`
	RetinalNerveLayer string  `json:"retinal_nerve_layer"`
	VascularPatterns  string  `json:"vascular_patterns"`
}

// DiagnosisResult is the record displayed on the results screen.
// Confidence is a percentage in [0, 100].
type DiagnosisResult struct {
	Diagnosis  string           `json:"diagnosis"`
	Confidence float64          `json:"confidence"`
	RiskLevel  RiskLevel        `json:"risk_level"`
	Details    DiagnosisDetails `json:"details"`
}

// StandardDiagnosis returns the fixed result every simulated analysis produces.
func StandardDiagnosis() DiagnosisResult {
	return DiagnosisResult{
		Diagnosis:  DiagnosisNormal,
		Confidence: 94.2,
		RiskLevel:  RiskLow,
		Details: DiagnosisDetails{
			CupToDiscRatio:    0.35,
			OpticNerveHealth:  "Normal",
			RetinalNerveLayer: "Intact",
			VascularPatterns:  "Normal",
		},
	}
}

// IsGlaucoma reports whether the result flags glaucoma.
func (d DiagnosisResult) IsGlaucoma() bool {
	return d.Diagnosis == DiagnosisGlaucoma
}
