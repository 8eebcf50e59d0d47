package graph_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aretw0/glaucoscan/internal/presentation/graph"
	"github.com/aretw0/glaucoscan/pkg/domain"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name        string
		opts        graph.Options
		overlay     *graph.GraphOverlay
		contains    []string
		notContains []string
	}{
		{
			name: "Phase Shapes",
			contains: []string{
				`awaiting_upload(("1. Upload fundus image"))`,
				`ready_to_analyze[/"2. Review and analyze"/]`,
				`analyzing[["3. AI processing"]]`,
				`complete["4. View results"]`,
			},
		},
		{
			name: "Forward Edges",
			contains: []string{
				`awaiting_upload -- "upload" --> ready_to_analyze`,
				`ready_to_analyze -- "analyze" --> analyzing`,
				`analyzing -- "timer" --> complete`,
			},
		},
		{
			name: "Timer Annotation",
			opts: graph.Options{Delay: 3 * time.Second},
			contains: []string{
				`analyzing -- "⏱️ 3s" --> complete`,
			},
		},
		{
			name: "Reset Edges",
			contains: []string{
				"complete -. ⚡ reset .-> awaiting_upload",
				"analyzing -. ⚡ reset .-> awaiting_upload",
			},
			notContains: []string{
				"awaiting_upload -. ⚡ reset .-> awaiting_upload",
			},
		},
		{
			name:        "Hide Reset",
			opts:        graph.Options{HideReset: true},
			notContains: []string{"reset"},
		},
		{
			name: "Overlay",
			overlay: &graph.GraphOverlay{
				Visited: []domain.Phase{domain.PhaseAwaitingUpload, domain.PhaseReadyToAnalyze, domain.PhaseAwaitingUpload},
				Current: domain.PhaseReadyToAnalyze,
			},
			contains: []string{
				"classDef visited",
				"class awaiting_upload visited;",
				"class ready_to_analyze current;",
			},
			notContains: []string{
				"class ready_to_analyze visited;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.opts, tt.overlay)
			if !strings.HasPrefix(got, "graph TD\n") {
				t.Errorf("expected flowchart header, got %q", got[:20])
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("expected output to contain %q\n%s", want, got)
				}
			}
			for _, unwanted := range tt.notContains {
				if strings.Contains(got, unwanted) {
					t.Errorf("expected output NOT to contain %q\n%s", unwanted, got)
				}
			}
		})
	}
}

func TestOverlayFor(t *testing.T) {
	if graph.OverlayFor(nil) != nil {
		t.Error("expected nil overlay for nil state")
	}
	state := domain.NewState("s")
	o := graph.OverlayFor(state)
	if o.Current != domain.PhaseAwaitingUpload || len(o.Visited) != 1 {
		t.Errorf("unexpected overlay %+v", o)
	}
}
