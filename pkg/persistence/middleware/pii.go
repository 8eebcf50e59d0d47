package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/glaucoscan/pkg/domain"
	"github.com/aretw0/glaucoscan/pkg/ports"
)

// Mask replaces every redacted match.
const Mask = "***"

type piiMiddleware struct {
	next     ports.StateStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks parts of the uploaded file
// name matching any of the patterns before the state is stored.
// Clinics often name fundus photos after the patient.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.StateStore) ports.StateStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

// CompilePatterns validates redaction patterns ahead of NewPIIMiddleware.
func CompilePatterns(patternStrings []string) error {
	for _, p := range patternStrings {
		if _, err := regexp.Compile(p); err != nil {
			return err
		}
	}
	return nil
}

func (m *piiMiddleware) Save(ctx context.Context, sessionID string, state *domain.State) error {
	img, ok := state.Image()
	if !ok {
		return m.next.Save(ctx, sessionID, state)
	}

	// Copy so the caller's state is left intact.
	cloned := state.Snapshot()
	img.Name = m.redact(img.Name)
	cloned.Step = domain.ReplaceStepImage(cloned.Step, img)
	return m.next.Save(ctx, sessionID, cloned)
}

func (m *piiMiddleware) redact(s string) string {
	for _, p := range m.patterns {
		s = p.ReplaceAllString(s, Mask)
	}
	return s
}

func (m *piiMiddleware) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *piiMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
