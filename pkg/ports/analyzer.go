package ports

import (
	"context"

	"github.com/aretw0/glaucoscan/pkg/domain"
)

// Analyzer produces a diagnosis for an uploaded image.
// This is the boundary where an external inference service would plug in.
type Analyzer interface {
	Analyze(ctx context.Context, image domain.UploadedImage) (domain.DiagnosisResult, error)
}
