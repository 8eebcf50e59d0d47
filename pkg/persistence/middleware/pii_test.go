package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/glaucoscan/pkg/adapters/memory"
	"github.com/aretw0/glaucoscan/pkg/domain"
	"github.com/aretw0/glaucoscan/pkg/persistence/middleware"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlyingStore := NewMockStore()
	// Mask patient identifiers such as "MRN-12345" and "patient_<name>"
	mw := middleware.NewPIIMiddleware([]string{`MRN-\d+`, `patient_[a-z]+`})
	secureStore := mw(underlyingStore)

	ctx := context.Background()
	sessionID := "pii-session"
	state := reviewState(sessionID, "patient_jdoe_MRN-12345_left.png")

	if err := secureStore.Save(ctx, sessionID, state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Immutability check
	if img, _ := state.Image(); img.Name != "patient_jdoe_MRN-12345_left.png" {
		t.Error("Middleware modified original state in memory!")
	}

	stored, err := underlyingStore.Load(ctx, sessionID)
	if err != nil {
		t.Fatalf("Underlying load failed: %v", err)
	}
	img, ok := stored.Image()
	if !ok {
		t.Fatal("Image should still be stored")
	}
	if img.Name != "***_***_left.png" {
		t.Errorf("Name should be masked, got: %q", img.Name)
	}
	if img.DataURI == "" {
		t.Error("Image data should not be touched")
	}
	if stored.Phase() != domain.PhaseReadyToAnalyze {
		t.Errorf("Phase should be kept, got %s", stored.Phase())
	}
}

func TestPIIMiddleware_NoImage(t *testing.T) {
	underlyingStore := NewMockStore()
	secureStore := middleware.NewPIIMiddleware([]string{"x"})(underlyingStore)
	ctx := context.Background()

	if err := secureStore.Save(ctx, "s", domain.NewState("s")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	stored, _ := underlyingStore.Load(ctx, "s")
	if stored.Phase() != domain.PhaseAwaitingUpload {
		t.Errorf("Unexpected phase %s", stored.Phase())
	}
}

func TestChain_RedactsBeforeSealing(t *testing.T) {
	key := generateKey(t)
	inner := memory.NewStore()
	store := middleware.Chain(inner,
		middleware.NewPIIMiddleware([]string{`MRN-\d+`}),
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}),
	)
	ctx := context.Background()

	if err := store.Save(ctx, "s", reviewState("s", "MRN-1.png")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	raw, _ := inner.Load(ctx, "s")
	if raw.Sealed == "" {
		t.Fatal("Expected inner store to hold a sealed envelope")
	}

	loaded, err := store.Load(ctx, "s")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if img, _ := loaded.Image(); img.Name != "***.png" {
		t.Errorf("Expected redacted name, got %q", img.Name)
	}

	if err := middleware.CompilePatterns([]string{"("}); err == nil {
		t.Error("Expected invalid pattern error")
	}
}
