package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/gestureview/internal/bridge"
	"github.com/ayusman/gestureview/internal/capture"
	"github.com/ayusman/gestureview/internal/gesture"
	"github.com/ayusman/gestureview/internal/logger"
)

// Default session settings.
const (
	DefaultInterval  = 100 * time.Millisecond
	DefaultTimeLimit = 30 * time.Second
)

// Session sources.
const (
	SourceClient = "client"
	SourceCamera = "camera"
)

// End reasons.
const (
	ReasonTimeLimit = "time limit reached"
	ReasonClosed    = "closed"
)

// ErrSessionEnded is returned when frames arrive after the session is over.
var ErrSessionEnded = errors.New("session has ended")

// SessionConfig holds per-session settings. Zero values use the defaults.
type SessionConfig struct {
	Source    string
	Interval  time.Duration
	TimeLimit time.Duration
	// Enabled, when set, is consulted for every frame; frames arriving while
	// it reports false are skipped.
	Enabled func() bool
}

// SessionStats are per-session counters.
type SessionStats struct {
	Frames  uint64 `json:"frames"`
	Dropped uint64 `json:"dropped"`
	Skipped uint64 `json:"skipped"`
}

// Session is one bounded stream of frames. Results are delivered on
// Results as they complete, which under load may differ from capture order.
type Session struct {
	ID      string
	Source  string
	Started time.Time

	pool     *Pool
	log      *logger.Logger
	interval time.Duration
	enabled  func() bool

	ctx     context.Context
	cancel  context.CancelFunc
	results chan Result
	relay   bridge.Relay

	seq     atomic.Uint64
	frames  atomic.Uint64
	dropped atomic.Uint64
	skipped atomic.Uint64

	closeOnce sync.Once
}

// NewSession starts a session on pool. It ends when the time limit passes,
// parent is cancelled or Close is called.
func NewSession(parent context.Context, pool *Pool, config SessionConfig, log *logger.Logger) *Session {
	if config.Source == "" {
		config.Source = SourceClient
	}
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.TimeLimit <= 0 {
		config.TimeLimit = DefaultTimeLimit
	}
	if log == nil {
		log = logger.Discard()
	}

	ctx, cancel := context.WithTimeout(parent, config.TimeLimit)

	stats := pool.Stats()
	s := &Session{
		ID:       uuid.New().String(),
		Source:   config.Source,
		Started:  time.Now(),
		pool:     pool,
		log:      log,
		interval: config.Interval,
		enabled:  config.Enabled,
		ctx:      ctx,
		cancel:   cancel,
		results:  make(chan Result, stats.QueueSize+stats.Workers),
	}

	s.log.Info("Session %s started (source %s, limit %v)", s.ID, s.Source, config.TimeLimit)
	return s
}

// Submit schedules frame for classification. It returns false when the frame
// was skipped or dropped, and ErrSessionEnded once the session is over.
func (s *Session) Submit(frame capture.Frame) (bool, error) {
	if s.ctx.Err() != nil {
		return false, ErrSessionEnded
	}
	if s.enabled != nil && !s.enabled() {
		s.skipped.Add(1)
		return false, nil
	}

	if frame.Timestamp.IsZero() {
		frame.Timestamp = time.Now()
	}

	task := Task{
		Seq:      s.seq.Add(1),
		Image:    frame.Image,
		Captured: frame.Timestamp,
		Reply:    s.results,
	}
	s.frames.Add(1)

	if !s.pool.Submit(s.ctx, task) {
		s.dropped.Add(1)
		return false, nil
	}
	return true, nil
}

// RunCamera samples cam every interval until the session ends. The camera is
// opened if needed but not closed.
func (s *Session) RunCamera(cam capture.Camera) error {
	if !cam.IsOpen() {
		if err := cam.Open(); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return nil
		case <-ticker.C:
			if s.enabled != nil && !s.enabled() {
				s.skipped.Add(1)
				continue
			}

			frame, err := capture.Grab(cam)
			if err != nil {
				s.log.Error("Session %s: error reading frame: %v", s.ID, err)
				continue
			}

			if _, err := s.Submit(frame); errors.Is(err, ErrSessionEnded) {
				return nil
			}
		}
	}
}

// Results delivers classification results. The channel is never closed;
// select on Done as well.
func (s *Session) Results() <-chan Result {
	return s.results
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Reason explains why the session ended, or is empty while it runs.
func (s *Session) Reason() string {
	switch err := s.ctx.Err(); {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeLimit
	default:
		return ReasonClosed
	}
}

// Forward passes a decided key code through the session's relay.
func (s *Session) Forward(code gesture.Code) (bridge.GestureMessage, bool) {
	return s.relay.Forward(code)
}

// Stats returns the session counters.
func (s *Session) Stats() SessionStats {
	return SessionStats{
		Frames:  s.frames.Load(),
		Dropped: s.dropped.Load(),
		Skipped: s.skipped.Load(),
	}
}

// Close ends the session. In-flight results are discarded.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		reason := s.Reason()
		s.cancel()
		if reason == "" {
			reason = ReasonClosed
		}
		stats := s.Stats()
		s.log.Info("Session %s ended (%s): %d frames, %d dropped", s.ID, reason, stats.Frames, stats.Dropped)
	})
}
