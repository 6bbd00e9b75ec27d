// Package capture runs the camera polling loop that latches a one-shot face
// upload once the customer smiles.
package capture

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/cashier/internal/apperr"
	"github.com/kozaktomas/cashier/internal/backend"
	"github.com/kozaktomas/cashier/internal/constants"
	"github.com/kozaktomas/cashier/internal/identity"
	"github.com/kozaktomas/cashier/internal/logging"
	"github.com/kozaktomas/cashier/internal/metrics"
)

// Operator-facing messages.
const (
	MsgCameraUnavailable = "Camera access denied or not available."
	MsgNoFace            = "No face detected."
	MsgRecognitionFailed = "Face recognition failed."
)

// ErrActive is returned by Open while an activation is still running.
var ErrActive = errors.New("capture is already active")

// Camera opens a video source.
type Camera interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is an open video source. Frame returns the most recent frame.
// Close must be safe to call while Frame is running.
type Stream interface {
	Frame() (image.Image, error)
	Close() error
}

// Detection is the single face found in a frame.
type Detection struct {
	Box   image.Rectangle
	Score float64 // positive expression probability
}

// Detector finds a face and scores its expression. A nil Detection with a
// nil error means no face was found.
type Detector interface {
	Detect(ctx context.Context, frame image.Image) (*Detection, error)
}

// Uploader sends an encoded face to recognition.
type Uploader interface {
	Recognise(ctx context.Context, image []byte) (*backend.Recognition, error)
}

// State is the position of a loop in its activation.
type State int

// Loop states.
const (
	StateIdle State = iota
	StatePolling
	StateCapturing
	StateSucceeded
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateCapturing:
		return "capturing"
	case StateSucceeded:
		return "succeeded"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Outcome describes what a single tick did.
type Outcome int

// Tick outcomes.
const (
	OutcomeSkipped Outcome = iota
	OutcomeNoFrame
	OutcomeNoFace
	OutcomeBelowThreshold
	OutcomeUploadFailed
	OutcomeCaptured
	OutcomeDiscarded
)

// Config tunes a loop.
type Config struct {
	Interval    time.Duration
	Threshold   float64
	JPEGQuality int
}

// DefaultConfig returns the standard cadence and threshold.
func DefaultConfig() Config {
	return Config{
		Interval:    constants.CaptureInterval,
		Threshold:   constants.SmileThreshold,
		JPEGQuality: constants.JPEGQuality,
	}
}

// Loop polls a camera and uploads one face per activation.
//
// Idle -> Polling on Open. Polling -> Capturing when a frame scores above the
// threshold; only one tick can win that transition, so uploads never overlap.
// Capturing -> Succeeded releases the stream, Capturing -> Polling on upload
// failure. Close moves any state to Closed and releases the stream without
// waiting for an upload in flight; that upload's result is discarded.
type Loop struct {
	camera   Camera
	detector Detector
	uploader Uploader
	cfg      Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	events   *EventBroadcaster
	onResult func(backend.Recognition)

	mu         sync.Mutex
	state      State
	stream     Stream
	activation uint64
	id         string
	done       chan struct{}
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(lp *Loop) { lp.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(lp *Loop) { lp.metrics = m }
}

// WithEvents sets the broadcaster that receives loop events.
func WithEvents(b *EventBroadcaster) Option {
	return func(lp *Loop) { lp.events = b }
}

// WithResultHandler is called once per successful capture, outside the loop's lock.
func WithResultHandler(fn func(backend.Recognition)) Option {
	return func(lp *Loop) { lp.onResult = fn }
}

// NewLoop creates an idle loop.
func NewLoop(camera Camera, detector Detector, uploader Uploader, cfg Config, opts ...Option) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = constants.CaptureInterval
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = constants.SmileThreshold
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = constants.JPEGQuality
	}
	l := &Loop{
		camera:   camera,
		detector: detector,
		uploader: uploader,
		cfg:      cfg,
		logger:   logging.Discard(),
		done:     closedChan(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// State returns the current state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// ActivationID identifies the current or last activation.
func (l *Loop) ActivationID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.id
}

// Done is closed when the current activation ends.
func (l *Loop) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

// Open starts a new activation by acquiring the camera. A camera failure is
// terminal for this attempt and leaves the loop idle.
func (l *Loop) Open(ctx context.Context) error {
	l.mu.Lock()
	if l.state == StatePolling || l.state == StateCapturing {
		l.mu.Unlock()
		return ErrActive
	}
	l.activation++
	act := l.activation
	l.id = uuid.NewString()
	id := l.id
	l.state = StatePolling
	l.done = make(chan struct{})
	l.mu.Unlock()

	stream, err := l.camera.Open(ctx)

	l.mu.Lock()
	if l.activation != act {
		l.mu.Unlock()
		if err == nil {
			stream.Close()
		}
		return context.Canceled
	}
	if err != nil {
		l.state = StateIdle
		close(l.done)
		l.mu.Unlock()
		l.logger.Warn("camera open failed", "activation", id, "error", err)
		l.events.SendEvent(Event{Type: EventError, Activation: id, Message: MsgCameraUnavailable})
		return apperr.Recognition("open camera", MsgCameraUnavailable, err)
	}
	l.stream = stream
	l.mu.Unlock()

	l.logger.Debug("capture opened", "activation", id)
	l.events.SendEvent(Event{Type: EventOpened, Activation: id})
	return nil
}

// Tick samples one frame. Ticks arriving while a capture is in flight are
// skipped. Errors are local to the tick; the loop keeps polling.
func (l *Loop) Tick(ctx context.Context) (Outcome, error) {
	l.mu.Lock()
	if l.state != StatePolling || l.stream == nil {
		l.mu.Unlock()
		return OutcomeSkipped, nil
	}
	stream, act, id := l.stream, l.activation, l.id
	l.mu.Unlock()

	frame, err := stream.Frame()
	if err != nil {
		return OutcomeNoFrame, apperr.Recognition("sample frame", MsgNoFace, err)
	}

	det, err := l.detector.Detect(ctx, frame)
	if err != nil {
		return OutcomeNoFace, apperr.Recognition("detect face", MsgNoFace, err)
	}
	if det == nil {
		return OutcomeNoFace, nil
	}
	if det.Score <= l.cfg.Threshold {
		return OutcomeBelowThreshold, nil
	}

	l.mu.Lock()
	if l.state != StatePolling || l.activation != act {
		l.mu.Unlock()
		return OutcomeSkipped, nil
	}
	l.state = StateCapturing
	l.mu.Unlock()

	l.logger.Debug("capture latched", "activation", id, "score", det.Score)

	payload, err := EncodeRegion(frame, det.Box, l.cfg.JPEGQuality)
	if err != nil {
		l.resume(act)
		return OutcomeUploadFailed, apperr.Recognition("encode face", MsgNoFace, err)
	}

	rec, err := l.uploader.Recognise(ctx, payload)
	if err == nil && (rec == nil || rec.Profile.ID == "") {
		err = apperr.Recognition("biometric recognize", "", backend.ErrNoProfile)
	}
	l.metrics.ObserveCaptureUpload(err == nil)

	l.mu.Lock()
	if l.activation != act || l.state != StateCapturing {
		l.mu.Unlock()
		l.logger.Debug("discarding capture result after close", "activation", id)
		return OutcomeDiscarded, nil
	}
	if err != nil {
		l.state = StatePolling
		l.mu.Unlock()
		msg := apperr.Message(err, MsgRecognitionFailed)
		l.logger.Warn("recognition upload failed", "activation", id, "error", err)
		l.events.SendEvent(Event{Type: EventUploadFailed, Activation: id, Message: msg})
		return OutcomeUploadFailed, err
	}
	l.state = StateSucceeded
	l.stream = nil
	close(l.done)
	l.mu.Unlock()

	if cerr := stream.Close(); cerr != nil {
		l.logger.Warn("camera close failed", "activation", id, "error", cerr)
	}
	l.events.SendEvent(Event{Type: EventCaptured, Activation: id, Data: identity.Classify(*rec)})
	if l.onResult != nil {
		l.onResult(*rec)
	}
	return OutcomeCaptured, nil
}

// resume returns a latched activation to polling.
func (l *Loop) resume(act uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.activation == act && l.state == StateCapturing {
		l.state = StatePolling
	}
}

// Run ticks at the configured cadence until the activation ends or ctx is
// cancelled. The camera is released when Run returns. Run is bound to the
// activation current when it starts; a later Open is not affected by it.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	act, done := l.activation, l.done
	l.mu.Unlock()
	defer l.closeActivation(act)

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return nil
		case <-ticker.C:
			outcome, err := l.Tick(ctx)
			if err != nil {
				l.logger.Debug("capture tick failed", "error", err)
			}
			if outcome == OutcomeCaptured {
				return nil
			}
		}
	}
}

// Close ends the current activation and releases the camera. It never waits
// for an upload in flight. Closing a finished loop is a no-op.
func (l *Loop) Close() error {
	l.mu.Lock()
	act := l.activation
	l.mu.Unlock()
	return l.closeActivation(act)
}

func (l *Loop) closeActivation(act uint64) error {
	l.mu.Lock()
	if l.activation != act || (l.state != StatePolling && l.state != StateCapturing) {
		l.mu.Unlock()
		return nil
	}
	l.activation++
	l.state = StateClosed
	stream := l.stream
	l.stream = nil
	id := l.id
	close(l.done)
	l.mu.Unlock()

	l.logger.Debug("capture closed", "activation", id)
	l.events.SendEvent(Event{Type: EventClosed, Activation: id})
	if stream != nil {
		return stream.Close()
	}
	return nil
}
