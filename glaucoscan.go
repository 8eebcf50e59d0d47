package glaucoscan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/glaucoscan/internal/logging"
	"github.com/aretw0/glaucoscan/internal/runtime"
	"github.com/aretw0/glaucoscan/pkg/adapters/memory"
	"github.com/aretw0/glaucoscan/pkg/analyzer"
	"github.com/aretw0/glaucoscan/pkg/domain"
	"github.com/aretw0/glaucoscan/pkg/ports"
	"github.com/aretw0/glaucoscan/pkg/session"
	"github.com/aretw0/glaucoscan/pkg/upload"
)

// ErrClosed is returned by operations started after Close.
var ErrClosed = errors.New("engine is closed")

var _ ports.WizardEngine = (*Engine)(nil)

// Engine drives wizard sessions: it applies transitions under the session lock,
// persists them, runs the background file reads and analysis timers, and
// notifies subscribers.
type Engine struct {
	ctrl     *runtime.Controller
	sessions *session.Manager
	uploads  *upload.Handler
	analyzer ports.Analyzer
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	newID    func() string

	tasks   *taskTable
	streams *streamHub

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	// Collected by options, consumed by New.
	store     ports.StateStore
	ctrlOpts  []runtime.ControllerOption
	closeOnce sync.Once
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithStore sets the state store. Ignored when WithSessionManager is also given.
func WithStore(store ports.StateStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithSessionManager injects a preconfigured manager, e.g. one with a distributed locker.
func WithSessionManager(m *session.Manager) Option {
	return func(e *Engine) {
		e.sessions = m
	}
}

// WithAnalysisDelay overrides the simulated analysis duration (default 3s).
func WithAnalysisDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.ctrlOpts = append(e.ctrlOpts, runtime.WithAnalysisDelay(d))
	}
}

// WithClock injects the time source used for phase timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.ctrlOpts = append(e.ctrlOpts, runtime.WithClock(now))
	}
}

// WithUploadHandler replaces the default upload handler (10 MB limit, no sniffing).
func WithUploadHandler(h *upload.Handler) Option {
	return func(e *Engine) {
		e.uploads = h
	}
}

// WithAnalyzer replaces the static analyzer.
func WithAnalyzer(a ports.Analyzer) Option {
	return func(e *Engine) {
		e.analyzer = a
	}
}

// WithIDGenerator overrides how session IDs are minted.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

// New creates an Engine. Without options, sessions live in memory.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger: logging.NewNop(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.ctrl = runtime.NewController(append(e.ctrlOpts, runtime.WithLogger(e.logger))...)
	if e.sessions == nil {
		if e.store == nil {
			e.store = memory.NewStore()
		}
		e.sessions = session.NewManager(e.store, session.WithLogger(e.logger))
	}
	if e.uploads == nil {
		e.uploads = upload.NewHandler(upload.WithLogger(e.logger))
	}
	if e.analyzer == nil {
		e.analyzer = analyzer.NewStatic()
	}

	e.tasks = newTaskTable()
	e.streams = newStreamHub(e.logger)
	e.baseCtx, e.stop = context.WithCancel(context.Background())
	return e
}

// Delay returns the configured analysis duration.
func (e *Engine) Delay() time.Duration {
	return e.ctrl.Delay()
}

// MaxUploadBytes returns the upload limit, 0 meaning unlimited.
func (e *Engine) MaxUploadBytes() int64 {
	return e.uploads.MaxBytes()
}

// Sessions exposes the session manager.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// PendingTasks returns the number of file reads and timers in flight.
func (e *Engine) PendingTasks() int {
	return e.tasks.len()
}

// Start creates a new session awaiting an upload.
func (e *Engine) Start(ctx context.Context) (*domain.State, error) {
	if e.baseCtx.Err() != nil {
		return nil, ErrClosed
	}
	id := e.newID()
	state, err := e.sessions.LoadOrStart(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	e.logger.Debug("Session started", "session_id", id)
	return state, nil
}

// Get loads a session. An analysis found past its deadline without a local
// timer (another replica, a restart) is completed on the spot; one still
// running is adopted by a local timer.
func (e *Engine) Get(ctx context.Context, sessionID string) (*domain.State, error) {
	state, err := e.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	remaining, analyzing := e.ctrl.Remaining(state)
	if !analyzing || e.tasks.has(sessionID, state.Generation) {
		return state, nil
	}
	if remaining > 0 {
		e.scheduleAnalysis(sessionID, state.Generation, remaining)
		return state, nil
	}

	next, err := e.completeAnalysis(ctx, sessionID, state.Generation)
	switch {
	case err == nil:
		return next, nil
	case errors.Is(err, domain.ErrStaleGeneration), errors.Is(err, domain.ErrInvalidTransition):
		// Somebody else got there first.
		return e.sessions.Load(ctx, sessionID)
	default:
		return nil, err
	}
}

// View loads a session and renders it.
func (e *Engine) View(ctx context.Context, sessionID string) (domain.View, error) {
	state, err := e.Get(ctx, sessionID)
	if err != nil {
		return domain.View{}, err
	}
	return e.Render(state), nil
}

// Render derives the client view of a state.
func (e *Engine) Render(state *domain.State) domain.View {
	return e.ctrl.Render(state)
}

// Upload reads a picked file and stores it in the session.
// It returns once the image is stored or rejected.
func (e *Engine) Upload(ctx context.Context, sessionID string, in upload.Input) (*domain.State, error) {
	return e.receive(ctx, sessionID, []upload.Input{in}, in, func(taskCtx context.Context, onLoad func(domain.UploadedImage)) (*upload.Task, error) {
		return e.uploads.Pick(taskCtx, in, onLoad)
	})
}

// Drop stores the first image among the dropped files.
func (e *Engine) Drop(ctx context.Context, sessionID string, files []upload.Input) (*domain.State, error) {
	var first upload.Input
	if len(files) > 0 {
		first = files[0]
	}
	return e.receive(ctx, sessionID, files, first, func(taskCtx context.Context, onLoad func(domain.UploadedImage)) (*upload.Task, error) {
		return e.uploads.Drop(taskCtx, files, onLoad)
	})
}

func (e *Engine) receive(
	ctx context.Context,
	sessionID string,
	files []upload.Input,
	reported upload.Input,
	begin func(context.Context, func(domain.UploadedImage)) (*upload.Task, error),
) (*domain.State, error) {
	if e.baseCtx.Err() != nil {
		return nil, ErrClosed
	}

	current, err := e.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if current.Phase() != domain.PhaseAwaitingUpload {
		err := fmt.Errorf("%w: cannot upload while %s", domain.ErrInvalidTransition, current.Phase())
		e.emitRejected(ctx, sessionID, reported, err)
		return nil, err
	}
	gen := current.Generation

	taskCtx := e.tasks.start(e.baseCtx, sessionID, gen, taskRead)
	defer e.tasks.finish(sessionID, gen, taskRead)
	// The reader belongs to the caller and dies with its context.
	stopAfter := context.AfterFunc(ctx, func() { e.tasks.cancelGeneration(sessionID, gen) })
	defer stopAfter()

	var (
		next     *domain.State
		applyErr error
	)
	task, err := begin(taskCtx, func(img domain.UploadedImage) {
		next, applyErr = e.storeImage(taskCtx, sessionID, gen, img)
	})
	if err != nil {
		e.emitRejected(ctx, sessionID, reported, err)
		return nil, err
	}

	// A blocked reader is abandoned on cancellation; the callback re-checks
	// the generation if it ever fires.
	select {
	case <-task.Done():
	case <-taskCtx.Done():
	}
	if taskCtx.Err() != nil && !isDone(task) {
		return nil, e.abandoned(ctx)
	}

	if _, err := task.Wait(); err != nil {
		if taskCtx.Err() != nil {
			return nil, e.abandoned(ctx)
		}
		e.emitRejected(ctx, sessionID, pickedFile(files, reported), err)
		return nil, err
	}
	if applyErr != nil {
		return nil, applyErr
	}
	return next, nil
}

func isDone(task *upload.Task) bool {
	select {
	case <-task.Done():
		return true
	default:
		return false
	}
}

// abandoned explains why an upload was cut short.
func (e *Engine) abandoned(ctx context.Context) error {
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case e.baseCtx.Err() != nil:
		return ErrClosed
	}
	return fmt.Errorf("%w: upload superseded", domain.ErrStaleGeneration)
}

func pickedFile(files []upload.Input, fallback upload.Input) upload.Input {
	for _, f := range files {
		if domain.IsImageMediaType(f.MediaType) {
			return f
		}
	}
	return fallback
}

func (e *Engine) storeImage(ctx context.Context, sessionID string, gen uint64, img domain.UploadedImage) (*domain.State, error) {
	return e.transition(ctx, sessionID, func(s *domain.State) (*domain.State, error) {
		if s.Generation != gen {
			return nil, fmt.Errorf("%w: read for %d, session is at %d", domain.ErrStaleGeneration, gen, s.Generation)
		}
		return e.ctrl.Upload(s, img)
	})
}

// Analyze starts the simulated analysis and schedules its completion.
func (e *Engine) Analyze(ctx context.Context, sessionID string) (*domain.State, error) {
	if e.baseCtx.Err() != nil {
		return nil, ErrClosed
	}
	next, err := e.transition(ctx, sessionID, e.ctrl.Analyze)
	if err != nil {
		return nil, err
	}
	remaining, _ := e.ctrl.Remaining(next)
	e.scheduleAnalysis(sessionID, next.Generation, remaining)
	return next, nil
}

func (e *Engine) scheduleAnalysis(sessionID string, gen uint64, after time.Duration) {
	if e.baseCtx.Err() != nil {
		return
	}
	taskCtx := e.tasks.start(e.baseCtx, sessionID, gen, taskTimer)

	e.emitAnalysis(taskCtx, domain.EventAnalysisScheduled, sessionID, gen)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.tasks.finish(sessionID, gen, taskTimer)

		timer := time.NewTimer(after)
		defer timer.Stop()

		for {
			select {
			case <-taskCtx.Done():
				e.emitAnalysis(context.Background(), domain.EventAnalysisDiscarded, sessionID, gen)
				return
			case <-timer.C:
			}

			_, err := e.completeAnalysis(taskCtx, sessionID, gen)
			switch {
			case err == nil:
				return
			case errors.Is(err, domain.ErrAnalysisPending):
				// The wall clock lagged the timer.
				state, loadErr := e.sessions.Load(taskCtx, sessionID)
				if loadErr != nil {
					e.logger.Warn("Analysis timer lost its session", "session_id", sessionID, "err", loadErr)
					return
				}
				left, _ := e.ctrl.Remaining(state)
				timer.Reset(left + time.Millisecond)
			case errors.Is(err, domain.ErrStaleGeneration),
				errors.Is(err, domain.ErrInvalidTransition),
				errors.Is(err, domain.ErrSessionNotFound),
				errors.Is(err, context.Canceled):
				e.emitAnalysis(context.Background(), domain.EventAnalysisDiscarded, sessionID, gen)
				return
			default:
				e.logger.Error("Analysis failed", "session_id", sessionID, "generation", gen, "err", err)
				return
			}
		}
	}()
}

func (e *Engine) completeAnalysis(ctx context.Context, sessionID string, gen uint64) (*domain.State, error) {
	return e.transition(ctx, sessionID, func(s *domain.State) (*domain.State, error) {
		if s.Generation != gen {
			return nil, fmt.Errorf("%w: timer for %d, session is at %d", domain.ErrStaleGeneration, gen, s.Generation)
		}
		img, ok := s.Image()
		if !ok || s.Phase() != domain.PhaseAnalyzing {
			return nil, fmt.Errorf("%w: cannot complete while %s", domain.ErrInvalidTransition, s.Phase())
		}
		result, err := e.analyzer.Analyze(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("analyzer failed: %w", err)
		}
		return e.ctrl.Complete(s, gen, result)
	})
}

// Reset returns the session to the upload step and abandons pending work.
func (e *Engine) Reset(ctx context.Context, sessionID string) (*domain.State, error) {
	next, err := e.transition(ctx, sessionID, e.ctrl.Reset)
	if err != nil {
		return nil, err
	}
	// Work started on the new generation in the meantime survives.
	e.tasks.cancelBefore(sessionID, next.Generation)
	return next, nil
}

// Delete removes the session and cancels its pending work.
func (e *Engine) Delete(ctx context.Context, sessionID string) error {
	e.tasks.cancel(sessionID)
	if err := e.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// List returns the known session IDs.
func (e *Engine) List(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// Subscribe streams the diffs of every transition of a session.
// Call the returned function to unsubscribe; it closes the channel.
func (e *Engine) Subscribe(sessionID string) (<-chan *domain.StateDiff, func()) {
	return e.streams.subscribe(sessionID)
}

// Close cancels every pending task and waits for them to stop.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.stop()
		e.wg.Wait()
		e.streams.closeAll()
	})
	return nil
}

func (e *Engine) transition(ctx context.Context, sessionID string, fn func(*domain.State) (*domain.State, error)) (*domain.State, error) {
	var prev *domain.State
	next, err := e.sessions.Update(ctx, sessionID, func(s *domain.State) (*domain.State, error) {
		prev = s
		return fn(s)
	})
	if err != nil {
		return nil, err
	}

	if e.hooks.OnTransition != nil {
		e.hooks.OnTransition(ctx, &domain.TransitionEvent{
			EventBase: domain.EventBase{
				Timestamp: next.UpdatedAt,
				Type:      domain.EventTransition,
				SessionID: sessionID,
			},
			From:       prev.Phase(),
			To:         next.Phase(),
			Generation: next.Generation,
			Elapsed:    next.UpdatedAt.Sub(prev.UpdatedAt),
		})
	}
	e.streams.publish(sessionID, domain.Diff(prev, next))
	return next, nil
}

func (e *Engine) emitRejected(ctx context.Context, sessionID string, in upload.Input, err error) {
	e.logger.Debug("Upload rejected", "session_id", sessionID, "file", in.Name, "err", err)
	if e.hooks.OnUploadRejected == nil {
		return
	}
	e.hooks.OnUploadRejected(ctx, &domain.UploadEvent{
		EventBase: domain.EventBase{
			Timestamp: e.ctrl.Now(),
			Type:      domain.EventUploadRejected,
			SessionID: sessionID,
		},
		FileName:  in.Name,
		MediaType: in.MediaType,
		Reason:    domain.RejectionReason(err),
	})
}

func (e *Engine) emitAnalysis(ctx context.Context, typ domain.EventType, sessionID string, gen uint64) {
	hook := e.hooks.OnAnalysisScheduled
	if typ == domain.EventAnalysisDiscarded {
		hook = e.hooks.OnAnalysisDiscarded
	}
	if hook == nil {
		return
	}
	hook(ctx, &domain.AnalysisEvent{
		EventBase: domain.EventBase{
			Timestamp: e.ctrl.Now(),
			Type:      typ,
			SessionID: sessionID,
		},
		Generation: gen,
		Delay:      e.ctrl.Delay(),
	})
}
