package authcore

import (
	"context"

	"github.com/MrEthical07/authcore/internal/notify"
)

// Notification is one delivery job handed to a sender: verification emails,
// registration events. IDs are uuids, stable across retries, so sinks can
// deduplicate under at-least-once delivery.
type Notification struct {
	ID       string
	Kind     string
	Payload  map[string]string
	Priority uint8
}

// QueuedNotifier is the shipped [Notifier]: a buffered queue drained by a
// worker that retries failed sends with linear backoff and counts drops.
// Failure after the retry budget is reported through onDrop, never to the
// flow that enqueued the job.
type QueuedNotifier struct {
	dispatcher *notify.Dispatcher
}

// NewQueuedNotifier starts a dispatcher delivering through send. onDrop may
// be nil.
func NewQueuedNotifier(cfg NotifyConfig, send func(ctx context.Context, n Notification) error, onDrop func(n Notification, err error)) *QueuedNotifier {
	var dropFn func(notify.Message, error)
	if onDrop != nil {
		dropFn = func(msg notify.Message, err error) {
			onDrop(fromMessage(msg), err)
		}
	}

	dispatcher := notify.New(
		notify.Config{
			BufferSize:   cfg.BufferSize,
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
			DropIfFull:   cfg.DropIfFull,
		},
		func(ctx context.Context, msg notify.Message) error {
			return send(ctx, fromMessage(msg))
		},
		dropFn,
	)

	return &QueuedNotifier{dispatcher: dispatcher}
}

func fromMessage(msg notify.Message) Notification {
	return Notification{
		ID:       msg.ID,
		Kind:     msg.Kind,
		Payload:  msg.Payload,
		Priority: msg.Priority,
	}
}

// Enqueue submits a job and returns immediately.
func (n *QueuedNotifier) Enqueue(kind string, payload map[string]string, priority uint8) {
	if n == nil {
		return
	}
	n.dispatcher.Enqueue(kind, payload, priority)
}

// Dropped returns how many jobs were abandoned after retries or a full queue.
func (n *QueuedNotifier) Dropped() uint64 {
	if n == nil {
		return 0
	}
	return n.dispatcher.Dropped()
}

// Close drains pending jobs and stops the worker.
func (n *QueuedNotifier) Close() {
	if n == nil {
		return
	}
	n.dispatcher.Close()
}
