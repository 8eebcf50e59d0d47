package graph

import (
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/glaucoscan/pkg/domain"
)

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	Visited []domain.Phase
	Current domain.Phase
}

// OverlayFor builds the overlay of a session.
func OverlayFor(state *domain.State) *GraphOverlay {
	if state == nil {
		return nil
	}
	return &GraphOverlay{Visited: state.History, Current: state.Phase()}
}

// Options tune the diagram.
type Options struct {
	// Delay annotates the timer edge when set.
	Delay time.Duration
	// HideReset leaves out the reset edges.
	HideReset bool
}

var labels = map[domain.Phase]string{
	domain.PhaseAwaitingUpload: "1. Upload fundus image",
	domain.PhaseReadyToAnalyze: "2. Review and analyze",
	domain.PhaseAnalyzing:      "3. AI processing",
	domain.PhaseComplete:       "4. View results",
}

// GenerateMermaid produces a Mermaid flowchart of the wizard.
// Semantic styling:
// - Entry phase: ((Circle))
// - Analyzing: [[Subroutine]]
// - Phases waiting on the user: [/Parallelogram/]
// - Complete: [Rectangle]
// Reset edges are dotted, like interventions.
func GenerateMermaid(opts Options, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, phase := range domain.Phases {
		opener, closer := "[", "]"
		switch phase {
		case domain.PhaseAwaitingUpload:
			opener, closer = "((", "))"
		case domain.PhaseAnalyzing:
			opener, closer = "[[", "]]"
		case domain.PhaseReadyToAnalyze:
			opener, closer = "[/", "/]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", phase, opener, labels[phase], closer)
	}

	for _, t := range domain.Transitions {
		switch t.Trigger {
		case domain.TriggerReset:
			if opts.HideReset || t.From == t.To {
				continue
			}
			fmt.Fprintf(&sb, "    %s -. ⚡ %s .-> %s\n", t.From, t.Trigger, t.To)
		case domain.TriggerTimer:
			label := string(t.Trigger)
			if opts.Delay > 0 {
				label = fmt.Sprintf("⏱️ %s", opts.Delay)
			}
			fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", t.From, label, t.To)
		default:
			fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", t.From, t.Trigger, t.To)
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text for contrast on light fills in both themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[domain.Phase]bool)
		for _, p := range overlay.Visited {
			if !p.Valid() || seen[p] || p == overlay.Current {
				continue
			}
			seen[p] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", p)
		}
		if overlay.Current.Valid() {
			fmt.Fprintf(&sb, "    class %s current;\n", overlay.Current)
		}
	}

	return sb.String()
}
