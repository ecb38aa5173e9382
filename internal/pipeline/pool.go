// Package pipeline schedules frame classification on a bounded pool of
// workers and groups frames into time-limited sessions.
package pipeline

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/gestureview/internal/classifier"
	"github.com/ayusman/gestureview/internal/gesture"
	"github.com/ayusman/gestureview/internal/logger"
)

// Default pool settings.
const (
	DefaultWorkers   = 30
	DefaultQueueSize = 30
)

// ErrPoolBusy is returned by callers that could not queue a frame because the
// queue is full or the pool has stopped.
var ErrPoolBusy = errors.New("classification queue is full")

// Classifier is the part of classifier.Classifier the pool needs.
type Classifier interface {
	Classify(frame image.Image) (*classifier.Result, error)
}

// Task is one frame waiting to be classified.
type Task struct {
	Seq      uint64
	Image    image.Image
	Captured time.Time
	// Reply receives the Result unless the submitting context is done first.
	Reply chan<- Result
}

// Result is the outcome of one Task.
type Result struct {
	Seq            uint64
	Captured       time.Time
	Classification *classifier.Result
	Decision       gesture.Decision
	Err            error
}

// Stats are cumulative pool counters.
type Stats struct {
	Workers   int    `json:"workers"`
	QueueSize int    `json:"queue_size"`
	Queued    int    `json:"queued"`
	Submitted uint64 `json:"submitted"`
	Dropped   uint64 `json:"dropped"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	Discarded uint64 `json:"discarded"`
}

// Config holds pool settings. Zero values use the defaults.
type Config struct {
	Workers   int
	QueueSize int
}

type queued struct {
	ctx  context.Context
	task Task
}

// Pool runs Classifier and Policy for queued frames on a fixed number of
// workers. The queue is bounded: frames that do not fit are dropped rather
// than piling up behind a slow model.
type Pool struct {
	classifier Classifier
	policy     gesture.Policy
	log        *logger.Logger

	workers int
	queue   chan queued
	wg      sync.WaitGroup

	mu      sync.RWMutex
	stopped bool

	submitted atomic.Uint64
	dropped   atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	discarded atomic.Uint64
}

// NewPool starts the workers.
func NewPool(c Classifier, policy gesture.Policy, config Config, log *logger.Logger) *Pool {
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if log == nil {
		log = logger.Discard()
	}

	p := &Pool{
		classifier: c,
		policy:     policy,
		log:        log,
		workers:    config.Workers,
		queue:      make(chan queued, config.QueueSize),
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	p.log.Info("Classification pool started with %d workers, queue size %d", p.workers, config.QueueSize)
	return p
}

// Submit queues task without blocking. It returns false if the queue is full
// or the pool has been stopped; the frame is then dropped.
func (p *Pool) Submit(ctx context.Context, task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return false
	}

	select {
	case p.queue <- queued{ctx: ctx, task: task}:
		p.submitted.Add(1)
		return true
	default:
		p.dropped.Add(1)
		p.log.Warning("Classification queue full, dropping frame %d", task.Seq)
		return false
	}
}

// Stop closes the queue and waits for queued tasks to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Info("Classification pool stopped")
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.workers,
		QueueSize: cap(p.queue),
		Queued:    len(p.queue),
		Submitted: p.submitted.Load(),
		Dropped:   p.dropped.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Discarded: p.discarded.Load(),
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for q := range p.queue {
		res := p.process(q.task)

		if q.task.Reply == nil {
			continue
		}

		// In-flight inference is never interrupted; a finished session just
		// stops listening and the result is thrown away.
		select {
		case q.task.Reply <- res:
		case <-q.ctx.Done():
			p.discarded.Add(1)
		}
	}
}

func (p *Pool) process(task Task) Result {
	res := Result{Seq: task.Seq, Captured: task.Captured}

	classification, err := p.classifier.Classify(task.Image)
	if err != nil {
		p.failed.Add(1)
		res.Err = err
		return res
	}

	p.completed.Add(1)
	res.Classification = classification
	res.Decision = p.policy.Decide(classification.Top, classification.Confidence)
	return res
}
