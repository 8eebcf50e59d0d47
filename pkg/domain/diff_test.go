package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestDiff(t *testing.T) {
	img := UploadedImage{Name: "fundus.png", MediaType: "image/png", DataURI: "data:image/png;base64,AAAA"}

	awaiting := &State{
		SessionID: "sess-1",
		Step:      AwaitingUpload{},
		History:   []Phase{PhaseAwaitingUpload},
	}
	ready := &State{
		SessionID:  "sess-1",
		Generation: 1,
		Step:       ReadyToAnalyze{Image: img},
		History:    []Phase{PhaseAwaitingUpload, PhaseReadyToAnalyze},
	}
	complete := &State{
		SessionID:  "sess-1",
		Generation: 3,
		Step:       Complete{Image: img, Result: StandardDiagnosis()},
		History:    []Phase{PhaseAwaitingUpload, PhaseReadyToAnalyze, PhaseAnalyzing, PhaseComplete},
	}
	reset := &State{
		SessionID:  "sess-1",
		Generation: 4,
		Step:       AwaitingUpload{},
		History:    []Phase{PhaseAwaitingUpload, PhaseReadyToAnalyze, PhaseAnalyzing, PhaseComplete, PhaseAwaitingUpload},
	}

	t.Run("Initial Load (Old is Nil)", func(t *testing.T) {
		diff := Diff(nil, awaiting)
		if diff == nil {
			t.Fatal("Expected diff for initial load")
		}
		if diff.Phase == nil || *diff.Phase != PhaseAwaitingUpload {
			t.Errorf("Expected phase awaiting_upload, got %v", diff.Phase)
		}
		if diff.Image != nil {
			t.Errorf("Expected no image delta, got %+v", diff.Image)
		}
		if diff.HistoryParams == nil || len(diff.HistoryParams.Appended) != 1 {
			t.Errorf("Expected full history, got %+v", diff.HistoryParams)
		}
	})

	t.Run("No Changes", func(t *testing.T) {
		if diff := Diff(ready, ready.Snapshot()); diff != nil {
			t.Errorf("Expected nil diff, got %+v", diff)
		}
	})

	t.Run("Upload Adds Image Metadata Only", func(t *testing.T) {
		diff := Diff(awaiting, ready)
		if diff == nil || diff.Image == nil {
			t.Fatal("Expected image delta")
		}
		if !diff.Image.Present || diff.Image.Name != "fundus.png" {
			t.Errorf("Unexpected image delta: %+v", diff.Image)
		}
		data, _ := json.Marshal(diff)
		if strings.Contains(string(data), "base64") {
			t.Errorf("Diff must not carry the data URI: %s", data)
		}
	})

	t.Run("Completion Carries Result", func(t *testing.T) {
		diff := Diff(ready, complete)
		if diff == nil || diff.Result == nil {
			t.Fatal("Expected result in diff")
		}
		if diff.Result.Diagnosis != DiagnosisNormal {
			t.Errorf("Expected Normal, got %s", diff.Result.Diagnosis)
		}
		if diff.Image != nil {
			t.Errorf("Same image should not produce a delta, got %+v", diff.Image)
		}
		if got := diff.HistoryParams.Appended; len(got) != 2 || got[1] != PhaseComplete {
			t.Errorf("Unexpected appended history: %v", got)
		}
	})

	t.Run("Reset Clears Image", func(t *testing.T) {
		diff := Diff(complete, reset)
		if diff == nil || diff.Image == nil {
			t.Fatal("Expected image delta on reset")
		}
		if diff.Image.Present {
			t.Error("Expected image to be reported as cleared")
		}
		if diff.Result != nil {
			t.Error("Reset must not carry a result")
		}
	})
}

func TestState_JSONKeepsVariant(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	img := UploadedImage{Name: "eye.webp", MediaType: "image/webp", Size: 4, DataURI: EncodeDataURI("image/webp", []byte("RIFF"))}

	original := NewState("sess-json")
	original.Enter(ReadyToAnalyze{Image: img}, now)
	original.Enter(Analyzing{Image: img, StartedAt: now, ReadyAt: now.Add(3 * time.Second)}, now)

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"phase":"analyzing"`) {
		t.Errorf("Expected phase tag in JSON: %s", data)
	}

	var decoded State
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	step, ok := decoded.Step.(Analyzing)
	if !ok {
		t.Fatalf("Expected Analyzing variant, got %T", decoded.Step)
	}
	if !step.ReadyAt.Equal(now.Add(3 * time.Second)) {
		t.Errorf("ReadyAt lost: %v", step.ReadyAt)
	}
	if step.Image.DataURI != img.DataURI {
		t.Errorf("Image lost: %+v", step.Image)
	}
	if decoded.Generation != 2 {
		t.Errorf("Expected generation 2, got %d", decoded.Generation)
	}
}

func TestState_UnknownPhase(t *testing.T) {
	var s State
	err := json.Unmarshal([]byte(`{"session_id":"x","phase":"teleporting"}`), &s)
	if err == nil {
		t.Fatal("Expected error for unknown phase")
	}
}

func TestPhase_Ordinal(t *testing.T) {
	for i, p := range Phases {
		if p.Ordinal() != i+1 {
			t.Errorf("%s: expected ordinal %d, got %d", p, i+1, p.Ordinal())
		}
	}
	if Phase("bogus").Valid() {
		t.Error("Unknown phase must not be valid")
	}
}

func TestIsImageMediaType(t *testing.T) {
	cases := map[string]bool{
		"image/png":       true,
		"image/jpeg":      true,
		"IMAGE/WEBP":      true,
		"application/pdf": false,
		"":                false,
		"text/image":      false,
	}
	for mt, want := range cases {
		if got := IsImageMediaType(mt); got != want {
			t.Errorf("IsImageMediaType(%q) = %v, want %v", mt, got, want)
		}
	}
}
