// Package analyzer provides Analyzer implementations.
package analyzer

import (
	"context"

	"github.com/aretw0/glaucoscan/pkg/domain"
	"github.com/aretw0/glaucoscan/pkg/ports"
)

var _ ports.Analyzer = (*Static)(nil)

// Static returns the same diagnosis for every image.
// The image content is never inspected.
type Static struct {
	Result domain.DiagnosisResult
}

// NewStatic returns an analyzer producing the standard normal diagnosis.
func NewStatic() *Static {
	return &Static{Result: domain.StandardDiagnosis()}
}

// Analyze implements ports.Analyzer.
func (s *Static) Analyze(ctx context.Context, _ domain.UploadedImage) (domain.DiagnosisResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.DiagnosisResult{}, err
	}
	return s.Result, nil
}
