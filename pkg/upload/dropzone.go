package upload

import (
	"context"
	"sync"

	"github.com/aretw0/glaucoscan/pkg/domain"
)

// DropZone mirrors the drag-and-drop surface of the upload step.
// Drag-over and drag-leave only toggle the highlight.
type DropZone struct {
	handler *Handler

	mu          sync.Mutex
	highlighted bool
}

// NewDropZone creates a drop surface backed by the given handler.
func NewDropZone(h *Handler) *DropZone {
	return &DropZone{handler: h}
}

// DragOver highlights the zone.
func (z *DropZone) DragOver() {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.highlighted = true
}

// DragLeave removes the highlight.
func (z *DropZone) DragLeave() {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.highlighted = false
}

// Highlighted reports whether something is being dragged over the zone.
func (z *DropZone) Highlighted() bool {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.highlighted
}

// Drop clears the highlight and hands the files to the handler.
func (z *DropZone) Drop(ctx context.Context, files []Input, onLoad func(domain.UploadedImage)) (*Task, error) {
	z.DragLeave()
	return z.handler.Drop(ctx, files, onLoad)
}
