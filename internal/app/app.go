// Package app wires labels, model, classifier, worker pool and history store
// into the running gesture viewer.
package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/ayusman/gestureview/internal/capture"
	"github.com/ayusman/gestureview/internal/classifier"
	"github.com/ayusman/gestureview/internal/config"
	"github.com/ayusman/gestureview/internal/gesture"
	"github.com/ayusman/gestureview/internal/labels"
	"github.com/ayusman/gestureview/internal/logger"
	"github.com/ayusman/gestureview/internal/model"
	"github.com/ayusman/gestureview/internal/pipeline"
	"github.com/ayusman/gestureview/internal/store"
)

// settingEnabled is the settings key that persists the enabled flag.
const settingEnabled = "detection_enabled"

// ErrNoCamera is returned when a camera session is requested without a camera.
var ErrNoCamera = errors.New("no camera configured")

// Status summarizes the running application.
type Status struct {
	Device         string         `json:"device"`
	Binding        string         `json:"binding"`
	Bound          bool           `json:"bound"`
	Labels         int            `json:"labels"`
	Threshold      float64        `json:"threshold"`
	Enabled        bool           `json:"enabled"`
	Camera         bool           `json:"camera"`
	ActiveSessions int            `json:"active_sessions"`
	LastGesture    string         `json:"last_gesture"`
	Pool           pipeline.Stats `json:"pool"`
}

// Option customizes New.
type Option func(*options)

type options struct {
	model   model.Model
	binding *model.Binding
	camera  capture.Camera
	log     *logger.Logger
}

// WithModel uses m instead of loading the ONNX model from disk.
func WithModel(m model.Model, binding model.Binding) Option {
	return func(o *options) {
		o.model = m
		o.binding = &binding
	}
}

// WithCamera uses cam as the server-side camera.
func WithCamera(cam capture.Camera) Option {
	return func(o *options) {
		o.camera = cam
	}
}

// WithLogger sets the application logger.
func WithLogger(log *logger.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// App is the main application. It is built once at startup and shared by
// every session.
type App struct {
	config     *config.Config
	log        *logger.Logger
	labels     labels.Set
	model      model.Model
	binding    model.Binding
	classifier *classifier.Classifier
	policy     gesture.Policy
	pool       *pipeline.Pool
	store      *store.Store
	camera     capture.Camera

	enabled     bool
	lastGesture gesture.Code
	sessions    map[string]*pipeline.Session
	mu          sync.RWMutex

	janitorStop chan struct{}
	janitorDone chan struct{}
	closeOnce   sync.Once
}

// New loads the label set and the model and binds the model to a device.
// A missing or malformed label or model resource is returned as an error and
// the caller is expected to exit.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logger.Discard()
	}
	log := o.log

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	set, err := labels.Load(cfg.LabelsPath)
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}
	log.Info("Loaded %d labels from %s", set.Len(), cfg.LabelsPath)

	a := &App{
		config:   cfg,
		log:      log,
		labels:   set,
		camera:   o.camera,
		enabled:  true,
		sessions: make(map[string]*pipeline.Session),
	}

	var clfOpts []classifier.Option
	if o.model != nil {
		a.model = o.model
		a.binding = *o.binding
	} else {
		m, err := model.NewONNX(model.ONNXConfig{
			ModelPath:    cfg.ModelPath,
			MetadataPath: cfg.ModelMetadataPath,
			LibraryPath:  cfg.ORTLibraryPath,
			Devices:      cfg.AccelDevices,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("load model: %w", err)
		}
		a.model = m
		a.binding = m.Binding()
		clfOpts = append(clfOpts, classifier.WithPixelScale(m.PixelScale()))
	}

	a.classifier, err = classifier.New(set, a.model, clfOpts...)
	if err != nil {
		a.model.Close()
		return nil, err
	}

	a.policy = gesture.DefaultPolicy()
	a.policy.Threshold = cfg.ConfidenceThreshold

	if cfg.DBPath != "" {
		a.store, err = store.New(cfg.DBPath)
		if err != nil {
			a.model.Close()
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.enabled = a.store.Settings().GetBool(settingEnabled, true)
	}

	if a.camera == nil && cfg.CameraID >= 0 {
		a.camera = capture.NewCamera(cfg.CameraID)
	}

	a.pool = pipeline.NewPool(a.classifier, a.policy, pipeline.Config{
		Workers:   cfg.ConcurrencyLimit,
		QueueSize: cfg.QueueSize,
	}, log)

	log.Info("Model %s, %s", a.model.InputShape(), a.binding)
	return a, nil
}

// SetEnabled enables or disables gesture classification. Disabled sessions
// skip incoming frames.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	a.enabled = enabled
	a.mu.Unlock()

	if a.store != nil {
		if err := a.store.Settings().SetBool(settingEnabled, enabled); err != nil {
			a.log.Warning("Failed to persist enabled flag: %v", err)
		}
	}
	a.log.Info("Gesture classification enabled: %v", enabled)
}

// IsEnabled returns whether gesture classification is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// StartSession opens a session fed by the browser (pipeline.SourceClient) or
// by the server camera (pipeline.SourceCamera). The session ends at the
// configured time limit, when ctx is cancelled or on EndSession.
func (a *App) StartSession(ctx context.Context, source string) (*pipeline.Session, error) {
	if source == "" {
		source = pipeline.SourceClient
	}
	if source != pipeline.SourceClient && source != pipeline.SourceCamera {
		return nil, fmt.Errorf("unknown session source %q", source)
	}
	if source == pipeline.SourceCamera && a.camera == nil {
		return nil, ErrNoCamera
	}

	sess := pipeline.NewSession(ctx, a.pool, pipeline.SessionConfig{
		Source:    source,
		Interval:  a.config.StreamInterval,
		TimeLimit: a.config.SessionTimeLimit,
		Enabled:   a.IsEnabled,
	}, a.log)

	if a.store != nil {
		err := a.store.Sessions().Create(&store.Session{
			ID:        sess.ID,
			Source:    sess.Source,
			Device:    a.binding.DeviceName(),
			StartedAt: sess.Started,
		})
		if err != nil {
			a.log.Warning("Failed to record session %s: %v", sess.ID, err)
		}
	}

	a.mu.Lock()
	a.sessions[sess.ID] = sess
	a.mu.Unlock()

	if source == pipeline.SourceCamera {
		go func() {
			if err := sess.RunCamera(a.camera); err != nil {
				a.log.Error("Session %s: camera failed: %v", sess.ID, err)
				a.EndSession(sess)
			}
		}()
	}

	return sess, nil
}

// EndSession closes sess and stores its final counters. It is safe to call
// more than once.
func (a *App) EndSession(sess *pipeline.Session) {
	a.mu.Lock()
	_, active := a.sessions[sess.ID]
	delete(a.sessions, sess.ID)
	a.mu.Unlock()

	if !active {
		return
	}

	reason := sess.Reason()
	sess.Close()
	if reason == "" {
		reason = sess.Reason()
	}

	if a.store != nil {
		stats := sess.Stats()
		err := a.store.Sessions().Finish(sess.ID, reason, stats.Frames, stats.Dropped)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			a.log.Warning("Failed to finish session %s: %v", sess.ID, err)
		}
	}
}

// Record keeps the outcome of one frame. Only decided gestures are stored.
func (a *App) Record(sess *pipeline.Session, res pipeline.Result) {
	if res.Err != nil || !res.Decision.Decided() {
		return
	}

	a.mu.Lock()
	a.lastGesture = res.Decision.Code
	a.mu.Unlock()

	if a.store == nil {
		return
	}

	err := a.store.Predictions().Create(&store.Prediction{
		SessionID:  sess.ID,
		Seq:        res.Seq,
		Label:      res.Decision.Prediction,
		Confidence: res.Classification.Confidence,
		KeyCode:    string(res.Decision.Code),
		FPS:        res.Classification.FPS,
		CreatedAt:  res.Captured,
	})
	if err != nil {
		a.log.Warning("Failed to record prediction for session %s: %v", sess.ID, err)
	}
}

// ClassifyImage runs a single frame outside of any session. The frame shares
// the worker pool with session frames, so it fails with pipeline.ErrPoolBusy
// when the queue is full.
func (a *App) ClassifyImage(ctx context.Context, img image.Image) (*classifier.Result, gesture.Decision, error) {
	reply := make(chan pipeline.Result, 1)
	task := pipeline.Task{Image: img, Captured: time.Now(), Reply: reply}
	if !a.pool.Submit(ctx, task) {
		return nil, gesture.Decision{}, pipeline.ErrPoolBusy
	}

	select {
	case res := <-reply:
		if res.Err != nil {
			return nil, gesture.Decision{}, res.Err
		}
		return res.Classification, res.Decision, nil
	case <-ctx.Done():
		return nil, gesture.Decision{}, ctx.Err()
	}
}

// Status reports the device binding, pool counters and session state.
func (a *App) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return Status{
		Device:         a.binding.DeviceName(),
		Binding:        a.binding.String(),
		Bound:          a.binding.IsBound(),
		Labels:         a.labels.Len(),
		Threshold:      a.policy.Threshold,
		Enabled:        a.enabled,
		Camera:         a.camera != nil,
		ActiveSessions: len(a.sessions),
		LastGesture:    string(a.lastGesture),
		Pool:           a.pool.Stats(),
	}
}

// LastGesture returns the most recent decided key code.
func (a *App) LastGesture() gesture.Code {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastGesture
}

// Labels returns the loaded label set.
func (a *App) Labels() labels.Set {
	return a.labels
}

// Binding returns the device binding decided at startup.
func (a *App) Binding() model.Binding {
	return a.binding
}

// Store returns the history store, or nil when history is disabled.
func (a *App) Store() *store.Store {
	return a.store
}

// Camera returns the server-side camera, or nil.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// Close ends every session, stops the janitor and the pool, and releases the
// model, camera and store.
func (a *App) Close() error {
	var errs []error

	a.closeOnce.Do(func() {
		a.StopJanitor()

		a.mu.RLock()
		sessions := make([]*pipeline.Session, 0, len(a.sessions))
		for _, sess := range a.sessions {
			sessions = append(sessions, sess)
		}
		a.mu.RUnlock()

		for _, sess := range sessions {
			a.EndSession(sess)
		}

		a.pool.Stop()

		if a.camera != nil {
			if err := a.camera.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close camera: %w", err))
			}
		}
		if err := a.model.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close model: %w", err))
		}
		if a.store != nil {
			if err := a.store.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close store: %w", err))
			}
		}

		a.log.Info("Application stopped")
	})

	return errors.Join(errs...)
}
