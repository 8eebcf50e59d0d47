package ports

import (
	"context"

	"github.com/aretw0/glaucoscan/pkg/domain"
	"github.com/aretw0/glaucoscan/pkg/upload"
)

// WizardEngine is the session-level API consumed by transport adapters (HTTP, MCP, CLI).
type WizardEngine interface {
	// Start creates a new session awaiting an upload.
	Start(ctx context.Context) (*domain.State, error)

	// Get loads a session, completing an overdue analysis if needed.
	Get(ctx context.Context, sessionID string) (*domain.State, error)

	// Upload accepts a single picked file.
	Upload(ctx context.Context, sessionID string, in upload.Input) (*domain.State, error)

	// Drop accepts the files of a drop event; the first image wins.
	Drop(ctx context.Context, sessionID string, in []upload.Input) (*domain.State, error)

	// Analyze starts the simulated analysis.
	Analyze(ctx context.Context, sessionID string) (*domain.State, error)

	// Reset returns the session to the upload step and discards pending work.
	Reset(ctx context.Context, sessionID string) (*domain.State, error)

	// Delete removes the session and cancels its pending work.
	Delete(ctx context.Context, sessionID string) error

	// List returns the known session IDs.
	List(ctx context.Context) ([]string, error)

	// Subscribe streams state diffs for a session until the returned cancel func is called.
	Subscribe(sessionID string) (<-chan *domain.StateDiff, func())
}
