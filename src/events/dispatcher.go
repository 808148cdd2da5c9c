package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Sink consumes envelopes off the dispatcher queue.
type Sink interface {
	Name() string
	Handle(ctx context.Context, env Envelope) error
}

// Dispatcher fans events out to sinks on its own goroutine so that a slow
// sink never stalls the ledger.
type Dispatcher struct {
	logger  *logrus.Entry
	sinks   []Sink
	timeout time.Duration
	now     func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan Envelope

	dropped   atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
}

func NewDispatcher(logger *logrus.Entry, cfg Config, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = 5 * time.Second
	}

	return &Dispatcher{
		logger:  logger.WithField("component", "EventDispatcher"),
		sinks:   sinks,
		timeout: cfg.SinkTimeout,
		now:     time.Now,
		queue:   make(chan Envelope, cfg.QueueSize),
	}
}

// Publish enqueues ev. A full queue or a closed dispatcher drops the event.
func (d *Dispatcher) Publish(ev Event) {
	env := NewEnvelope(ev, d.now())

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(env, "dispatcher closed")
		return
	}
	select {
	case d.queue <- env:
	default:
		d.drop(env, "queue full")
	}
}

func (d *Dispatcher) drop(env Envelope, why string) {
	d.dropped.Add(1)
	d.logger.WithFields(logrus.Fields{
		"event_id": env.ID,
		"kind":     env.Kind,
	}).Warn("event dropped: " + why)
}

// Run delivers queued envelopes until Close is called and the queue is
// drained. Cancelling ctx does not abandon queued events.
func (d *Dispatcher) Run(ctx context.Context) error {
	base := context.WithoutCancel(ctx)
	for env := range d.queue {
		d.deliver(base, env)
	}
	d.logger.WithFields(logrus.Fields{
		"delivered": d.delivered.Load(),
		"failed":    d.failed.Load(),
		"dropped":   d.dropped.Load(),
	}).Info("event dispatcher stopped")
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, env Envelope) {
	for _, s := range d.sinks {
		sctx, cancel := context.WithTimeout(ctx, d.timeout)
		err := s.Handle(sctx, env)
		cancel()

		if err != nil {
			d.failed.Add(1)
			d.logger.WithError(err).WithFields(logrus.Fields{
				"sink":     s.Name(),
				"event_id": env.ID,
				"kind":     env.Kind,
			}).Error("sink failed to handle event")
			continue
		}
		d.delivered.Add(1)
	}
}

// Close stops accepting events. Run returns once the queue is empty.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	return nil
}

func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }
