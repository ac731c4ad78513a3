package eventloop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrStopped is returned when work is submitted to a stopped loop.
var ErrStopped = errors.New("event loop stopped")

// Loop executes posted closures serially on one goroutine.
type Loop struct {
	queue  *Queue[func()]
	logger *slog.Logger

	startOnce sync.Once
	done      chan struct{}
}

// New creates a loop. It does nothing until Start is called.
func New(bufferSize int, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		queue:  NewQueue[func()](bufferSize),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start runs the loop in a new goroutine. The loop stops when ctx is
// cancelled or Stop is called, after executing everything already posted.
func (l *Loop) Start(ctx context.Context) {
	l.startOnce.Do(func() {
		go func() {
			select {
			case <-ctx.Done():
				l.queue.Close()
			case <-l.done:
			}
		}()
		go l.run()
	})
}

// Stop rejects further work. Already-posted closures still run, even if
// the loop was never started.
func (l *Loop) Stop() {
	l.queue.Close()
	l.startOnce.Do(func() { go l.run() })
}

// Done is closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post enqueues fn without blocking. Returns false if the loop is stopped.
func (l *Loop) Post(fn func()) bool {
	return l.queue.Push(fn)
}

// Call posts fn and waits until it has run.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of closures waiting to run.
func (l *Loop) Pending() int {
	return l.queue.Len()
}

func (l *Loop) run() {
	defer close(l.done)

	for {
		fn, ok := l.queue.Pop()
		if !ok {
			return
		}
		l.invoke(fn)
	}
}

// invoke keeps the loop alive when a callback panics.
func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop callback panicked", "panic", r)
		}
	}()
	fn()
}
