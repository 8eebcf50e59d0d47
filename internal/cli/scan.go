package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"github.com/aretw0/glaucoscan"
	"github.com/aretw0/glaucoscan/internal/presentation/report"
	"github.com/aretw0/glaucoscan/internal/presentation/tui"
	"github.com/aretw0/glaucoscan/pkg/domain"
	"github.com/aretw0/glaucoscan/pkg/upload"
)

// RunScan drives one session through the whole wizard for the image at path
// and returns the results view. onStep, if set, sees every intermediate view.
func RunScan(ctx context.Context, engine *glaucoscan.Engine, path string, onStep func(domain.View)) (domain.View, error) {
	notify := func(s *domain.State) {
		if onStep != nil {
			onStep(engine.Render(s))
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return domain.View{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return domain.View{}, fmt.Errorf("failed to stat image: %w", err)
	}
	// No browser declares a type here, so the content decides.
	detected, err := mimetype.DetectFile(path)
	if err != nil {
		return domain.View{}, fmt.Errorf("failed to detect media type: %w", err)
	}

	state, err := engine.Start(ctx)
	if err != nil {
		return domain.View{}, err
	}
	id := state.SessionID
	notify(state)

	diffs, unsubscribe := engine.Subscribe(id)
	defer unsubscribe()

	state, err = engine.Upload(ctx, id, upload.Input{
		Name:      filepath.Base(path),
		MediaType: detected.String(),
		Size:      info.Size(),
		Reader:    f,
	})
	if err != nil {
		return domain.View{}, err
	}
	notify(state)

	state, err = engine.Analyze(ctx, id)
	if err != nil {
		return domain.View{}, err
	}
	notify(state)

	for state.Phase() != domain.PhaseComplete {
		select {
		case d, ok := <-diffs:
			if !ok {
				return domain.View{}, glaucoscan.ErrClosed
			}
			if d.Phase == nil || *d.Phase != domain.PhaseComplete {
				continue
			}
			if state, err = engine.Get(ctx, id); err != nil {
				return domain.View{}, err
			}
		case <-ctx.Done():
			return domain.View{}, ctx.Err()
		}
	}

	view := engine.Render(state)
	notify(state)
	return view, nil
}

// PrintReport writes the markdown report for v, styled with glamour when styled is set.
func PrintReport(w io.Writer, v domain.View, styled bool, width int) error {
	md := report.Markdown(v)
	if !styled {
		_, err := io.WriteString(w, md)
		return err
	}

	render, err := tui.NewRenderer(width)
	if err != nil {
		return fmt.Errorf("failed to init renderer: %w", err)
	}
	out, err := render(md)
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}
