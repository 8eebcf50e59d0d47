package upload

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"mime"
	"strings"

	"github.com/aretw0/glaucoscan/internal/logging"
	"github.com/aretw0/glaucoscan/pkg/domain"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxBytes is the advertised upload limit (10MB).
const DefaultMaxBytes int64 = 10 << 20

// Input is a file-like value coming from a picker or a drop event.
type Input struct {
	Name string

	// MediaType is the type declared by the client, not sniffed.
	MediaType string

	// Size is the declared size in bytes. Zero means unknown.
	Size int64

	Reader io.Reader
}

// Handler validates and encodes uploads.
type Handler struct {
	maxBytes int64
	strict   bool
	logger   *slog.Logger
}

// Option configures the Handler.
type Option func(*Handler)

// WithMaxBytes sets the upload size limit. Zero or a negative value disables it.
func WithMaxBytes(n int64) Option {
	return func(h *Handler) {
		h.maxBytes = n
	}
}

// WithStrictContent enables content sniffing: a file declared as an image
// whose bytes are not an image is rejected with domain.ErrContentMismatch.
func WithStrictContent(strict bool) Option {
	return func(h *Handler) {
		h.strict = strict
	}
}

// WithLogger configures a logger for the Handler.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler creates an upload Handler enforcing DefaultMaxBytes unless overridden.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		maxBytes: DefaultMaxBytes,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// MaxBytes returns the configured size limit (0 when disabled).
func (h *Handler) MaxBytes() int64 {
	if h.maxBytes < 0 {
		return 0
	}
	return h.maxBytes
}

// Accept checks the declared metadata of a file without reading it.
func (h *Handler) Accept(in Input) error {
	if !domain.IsImageMediaType(in.MediaType) {
		return fmt.Errorf("%w: %q declared as %q", domain.ErrNotAnImage, in.Name, in.MediaType)
	}
	if h.maxBytes > 0 && in.Size > h.maxBytes {
		return fmt.Errorf("%w: size=%d limit=%d", domain.ErrImageTooLarge, in.Size, h.maxBytes)
	}
	return nil
}

// Encode reads the file and converts it into an UploadedImage.
// The read stops early when ctx is cancelled.
func (h *Handler) Encode(ctx context.Context, in Input) (domain.UploadedImage, error) {
	if err := h.Accept(in); err != nil {
		return domain.UploadedImage{}, err
	}
	if in.Reader == nil {
		return domain.UploadedImage{}, fmt.Errorf("%w: %q has no content", domain.ErrEmptyImage, in.Name)
	}

	var r io.Reader = ctxReader{ctx: ctx, r: in.Reader}
	if h.maxBytes > 0 {
		r = io.LimitReader(r, h.maxBytes+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return domain.UploadedImage{}, fmt.Errorf("failed to read %q: %w", in.Name, err)
	}

	if len(data) == 0 {
		return domain.UploadedImage{}, fmt.Errorf("%w: %q", domain.ErrEmptyImage, in.Name)
	}
	if h.maxBytes > 0 && int64(len(data)) > h.maxBytes {
		return domain.UploadedImage{}, fmt.Errorf("%w: %q is larger than %d bytes", domain.ErrImageTooLarge, in.Name, h.maxBytes)
	}

	if h.strict {
		detected := mimetype.Detect(data)
		if !strings.HasPrefix(detected.String(), domain.ImageMediaPrefix) {
			return domain.UploadedImage{}, fmt.Errorf("%w: %q looks like %s", domain.ErrContentMismatch, in.Name, detected.String())
		}
	}

	mediaType := normalizeMediaType(in.MediaType)
	img := domain.UploadedImage{
		Name:      in.Name,
		MediaType: mediaType,
		Size:      int64(len(data)),
		DataURI:   domain.EncodeDataURI(mediaType, data),
	}

	if cfg, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		img.Width, img.Height = cfg.Width, cfg.Height
		h.logger.Debug("Decoded image header", "name", in.Name, "format", format, "width", cfg.Width, "height", cfg.Height)
	} else {
		h.logger.Debug("Image header not decodable", "name", in.Name, "media_type", mediaType, "err", err)
	}

	return img, nil
}

// Pick handles a file chosen through a picker.
// The declared type is checked synchronously; the content is read in the background
// and onLoad runs on success, unless ctx was cancelled first.
func (h *Handler) Pick(ctx context.Context, in Input, onLoad func(domain.UploadedImage)) (*Task, error) {
	if err := h.Accept(in); err != nil {
		return nil, err
	}
	return h.start(ctx, in, onLoad), nil
}

// Drop handles the files of a drop event. The first file declared as an image is used;
// the rest are ignored, even when that first image is then rejected.
func (h *Handler) Drop(ctx context.Context, files []Input, onLoad func(domain.UploadedImage)) (*Task, error) {
	for _, in := range files {
		if domain.IsImageMediaType(in.MediaType) {
			if err := h.Accept(in); err != nil {
				return nil, err
			}
			return h.start(ctx, in, onLoad), nil
		}
	}
	return nil, fmt.Errorf("%w: none of %d dropped files is an image", domain.ErrNotAnImage, len(files))
}

func (h *Handler) start(ctx context.Context, in Input, onLoad func(domain.UploadedImage)) *Task {
	task := &Task{done: make(chan struct{})}
	go func() {
		defer close(task.done)

		img, err := h.Encode(ctx, in)
		if err != nil {
			task.err = err
			return
		}
		// A cancelled read never reports back.
		if err := ctx.Err(); err != nil {
			task.err = err
			return
		}
		task.image = img
		if onLoad != nil {
			onLoad(img)
		}
	}()
	return task
}

// Task is a background file read.
type Task struct {
	done  chan struct{}
	image domain.UploadedImage
	err   error
}

// Done is closed once the read has finished and the callback (if any) has returned.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the read finishes and returns the encoded image or the read error.
func (t *Task) Wait() (domain.UploadedImage, error) {
	<-t.done
	return t.image, t.err
}

func normalizeMediaType(declared string) string {
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(declared))
	}
	return mt
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
