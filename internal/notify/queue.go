package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrQueueFull   = errors.New("notification queue is full")
	ErrQueueClosed = errors.New("notification queue is closed")
)

const (
	defaultQueueSize       = 100
	defaultDeliveryTimeout = 15 * time.Second
)

// Queue hands messages to a background worker so callers never wait on delivery.
// Messages that do not fit in the buffer are dropped.
type Queue struct {
	next    Notifier
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.RWMutex
	closed   bool
	messages chan Message
	done     chan struct{}
}

// NewQueue starts the delivery worker. Each delivery gets its own context
// bounded by timeout, detached from the request that enqueued it.
func NewQueue(next Notifier, size int, timeout time.Duration, logger *slog.Logger) *Queue {
	if size < 1 {
		size = defaultQueueSize
	}
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	q := &Queue{
		next:     next,
		timeout:  timeout,
		logger:   logger,
		messages: make(chan Message, size),
		done:     make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) Send(_ context.Context, msg Message) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.messages <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting messages, delivers what is already queued and waits
// for the worker to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.messages)
	}
	q.mu.Unlock()

	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)

	for msg := range q.messages {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		err := q.next.Send(ctx, msg)
		cancel()

		if err != nil {
			q.logger.Warn("notification delivery failed",
				"purpose", string(msg.Purpose),
				"to", maskEmail(msg.To),
				"error", err,
			)
		}
	}
}
