// Package notify implements the queued notification dispatcher backing the
// authcore Notifier contract: fire-and-forget submission, at-least-once
// delivery with bounded retries and backoff, and drop accounting when
// delivery is exhausted or the queue is full.
package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Message is a single delivery job.
type Message struct {
	ID       string
	Kind     string
	Payload  map[string]string
	Priority uint8
}

// Sender delivers one message. Returning an error triggers a retry until
// the configured attempt budget is spent.
type Sender func(ctx context.Context, msg Message) error

// Config controls queue depth and the retry policy.
type Config struct {
	BufferSize   int
	MaxRetries   int
	RetryBackoff time.Duration
	DropIfFull   bool
}

// Dispatcher drains a buffered queue on a single worker goroutine. Enqueue
// never blocks the producer beyond a channel send; delivery latency and
// outages stay decoupled from the request path.
type Dispatcher struct {
	cfg       Config
	send      Sender
	onDrop    func(msg Message, err error)
	ch        chan Message
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// New starts a dispatcher. onDrop may be nil; when set it observes every
// message abandoned after the retry budget or a full queue.
func New(cfg Config, send Sender, onDrop func(msg Message, err error)) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}

	d := &Dispatcher{
		cfg:    cfg,
		send:   send,
		onDrop: onDrop,
		ch:     make(chan Message, cfg.BufferSize),
		done:   make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

// Enqueue submits a job and returns immediately. Jobs get uuid identifiers
// so sinks can deduplicate under at-least-once delivery.
func (d *Dispatcher) Enqueue(kind string, payload map[string]string, priority uint8) {
	if d == nil || d.closed.Load() {
		return
	}

	msg := Message{
		ID:       uuid.NewString(),
		Kind:     kind,
		Payload:  payload,
		Priority: priority,
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- msg:
		default:
			d.dropped.Add(1)
			if d.onDrop != nil {
				d.onDrop(msg, nil)
			}
		}
		return
	}

	select {
	case d.ch <- msg:
	case <-d.done:
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case msg := <-d.ch:
			d.deliver(msg)
		case <-d.done:
			for {
				select {
				case msg := <-d.ch:
					d.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(msg Message) {
	var lastErr error
	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(d.cfg.RetryBackoff * time.Duration(attempt)):
			case <-d.done:
				// Shutdown drains without backoff; one last try below.
			}
		}
		if lastErr = d.send(context.Background(), msg); lastErr == nil {
			return
		}
	}

	d.dropped.Add(1)
	if d.onDrop != nil {
		d.onDrop(msg, lastErr)
	}
}

// Dropped returns how many messages were abandoned.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Close stops intake, drains the queue, and waits for the worker.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}
