// Package report renders a wizard view as Markdown.
package report

import (
	"fmt"
	"strings"

	"github.com/aretw0/glaucoscan/pkg/domain"
)

// Markdown renders the view of a session for terminals and logs.
// Image payloads are never printed, only their metadata.
func Markdown(v domain.View) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Step %d of %d: %s\n\n", v.Step, len(domain.Phases), v.Label)
	if v.SessionID != "" {
		fmt.Fprintf(&sb, "Session `%s`\n\n", v.SessionID)
	}

	switch v.Panel {
	case domain.PanelUpload:
		sb.WriteString("Upload a retinal fundus image (JPEG, PNG or any image format, up to 10 MB).\n")
	case domain.PanelReview:
		writeImage(&sb, v.Image)
		sb.WriteString("\nThe image is ready. Run the analysis to continue.\n")
	case domain.PanelProcessing:
		writeImage(&sb, v.Image)
		fmt.Fprintf(&sb, "\nAnalyzing optic disc, cup-to-disc ratio and retinal nerve fiber layer. About %s left.\n",
			formatMillis(v.RemainingMs))
	case domain.PanelResults:
		writeResult(&sb, v)
	}
	return sb.String()
}

func writeImage(sb *strings.Builder, img *domain.UploadedImage) {
	if img == nil {
		return
	}
	sb.WriteString("| File | Type | Size | Dimensions |\n|---|---|---|---|\n")
	dims := "unknown"
	if img.Width > 0 && img.Height > 0 {
		dims = fmt.Sprintf("%dx%d", img.Width, img.Height)
	}
	fmt.Fprintf(sb, "| %s | %s | %s | %s |\n", escape(img.Name), img.MediaType, formatBytes(img.Size), dims)
}

func writeResult(sb *strings.Builder, v domain.View) {
	if v.Result == nil {
		return
	}
	r := v.Result
	marker := "🟢"
	if v.Indicator == domain.IndicatorAlert {
		marker = "🔴"
	}

	fmt.Fprintf(sb, "## %s %s\n\n", marker, r.Diagnosis)
	fmt.Fprintf(sb, "- **Confidence:** %.1f%%\n", r.Confidence)
	fmt.Fprintf(sb, "- **Risk level:** %s\n\n", r.RiskLevel)

	sb.WriteString("| Finding | Value |\n|---|---|\n")
	fmt.Fprintf(sb, "| Cup-to-disc ratio | %.2f |\n", r.Details.CupToDiscRatio)
	fmt.Fprintf(sb, "| Optic nerve health | %s |\n", r.Details.OpticNerveHealth)
	fmt.Fprintf(sb, "| Retinal nerve layer | %s |\n", r.Details.RetinalNerveLayer)
	fmt.Fprintf(sb, "| Vascular patterns | %s |\n\n", r.Details.VascularPatterns)

	writeImage(sb, v.Image)
	if v.Heatmap != nil {
		fmt.Fprintf(sb, "\n_Heatmap: %s._\n", v.Heatmap.Caption)
	}
	sb.WriteString("\n> Screening aid only. Results must be confirmed by an eye care professional.\n")
}

func escape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func formatMillis(ms int64) string {
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}
