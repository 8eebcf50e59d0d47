package runtime

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/glaucoscan/internal/logging"
	"github.com/aretw0/glaucoscan/pkg/domain"
)

// DefaultAnalysisDelay is how long the simulated analysis lasts.
const DefaultAnalysisDelay = 3 * time.Second

// Controller is the wizard state machine.
// It is pure: every transition returns a new state and leaves the input untouched.
type Controller struct {
	delay  time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// ControllerOption configures the Controller.
type ControllerOption func(*Controller)

// WithAnalysisDelay overrides the simulated analysis duration.
func WithAnalysisDelay(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d >= 0 {
			c.delay = d
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets a custom structured logger for the controller.
func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewController creates a Controller with a 3 second analysis delay.
func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		delay:  DefaultAnalysisDelay,
		now:    time.Now,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Delay returns the configured analysis duration.
func (c *Controller) Delay() time.Duration {
	return c.delay
}

// Now returns the controller's current time.
func (c *Controller) Now() time.Time {
	return c.now()
}

// Upload stores the image: AwaitingUpload -> ReadyToAnalyze.
func (c *Controller) Upload(state *domain.State, img domain.UploadedImage) (*domain.State, error) {
	if err := c.expect(state, domain.PhaseAwaitingUpload, "upload"); err != nil {
		return nil, err
	}
	if img.DataURI == "" {
		return nil, fmt.Errorf("%w: %q produced no data", domain.ErrEmptyImage, img.Name)
	}

	next := state.Snapshot()
	next.Enter(domain.ReadyToAnalyze{Image: img}, c.now())
	c.logger.Debug("Image stored", "session_id", state.SessionID, "name", img.Name, "size", img.Size)
	return next, nil
}

// Analyze starts the simulated analysis: ReadyToAnalyze -> Analyzing.
func (c *Controller) Analyze(state *domain.State) (*domain.State, error) {
	if err := c.expect(state, domain.PhaseReadyToAnalyze, "analyze"); err != nil {
		return nil, err
	}
	ready := state.Step.(domain.ReadyToAnalyze)

	now := c.now()
	next := state.Snapshot()
	next.Enter(domain.Analyzing{
		Image:     ready.Image,
		StartedAt: now,
		ReadyAt:   now.Add(c.delay),
	}, now)
	return next, nil
}

// Complete attaches the diagnosis: Analyzing -> Complete.
// generation must be the one the analysis was scheduled for.
func (c *Controller) Complete(state *domain.State, generation uint64, result domain.DiagnosisResult) (*domain.State, error) {
	if state.Generation != generation {
		return nil, fmt.Errorf("%w: scheduled for %d, session is at %d", domain.ErrStaleGeneration, generation, state.Generation)
	}
	if err := c.expect(state, domain.PhaseAnalyzing, "complete"); err != nil {
		return nil, err
	}
	analyzing := state.Step.(domain.Analyzing)

	now := c.now()
	if now.Before(analyzing.ReadyAt) {
		return nil, fmt.Errorf("%w: %s left", domain.ErrAnalysisPending, analyzing.ReadyAt.Sub(now))
	}

	next := state.Snapshot()
	next.Enter(domain.Complete{Image: analyzing.Image, Result: result}, now)
	return next, nil
}

// Reset discards the image and result: any phase -> AwaitingUpload.
// The generation always advances, so pending work for the old one is orphaned.
func (c *Controller) Reset(state *domain.State) (*domain.State, error) {
	if state == nil {
		return nil, fmt.Errorf("%w: reset on nil state", domain.ErrInvalidTransition)
	}
	next := state.Snapshot()
	next.Enter(domain.AwaitingUpload{}, c.now())
	return next, nil
}

// Remaining returns how long an analyzing state still has to wait.
// ok is false when the state is not analyzing.
func (c *Controller) Remaining(state *domain.State) (time.Duration, bool) {
	analyzing, ok := state.Step.(domain.Analyzing)
	if !ok {
		return 0, false
	}
	left := analyzing.ReadyAt.Sub(c.now())
	if left < 0 {
		left = 0
	}
	return left, true
}

func (c *Controller) expect(state *domain.State, want domain.Phase, op string) error {
	if state == nil {
		return fmt.Errorf("%w: %s on nil state", domain.ErrInvalidTransition, op)
	}
	if got := state.Phase(); got != want {
		return fmt.Errorf("%w: cannot %s while %s", domain.ErrInvalidTransition, op, got)
	}
	return nil
}
