// Package uiloop provides a serialized execution context. A Loop owns a
// piece of state and runs submitted tasks against it one at a time on a
// single goroutine, so the state needs no locking of its own.
package uiloop

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ErrStopped is returned when submitting to a loop that has been stopped
var ErrStopped = errors.New("loop stopped")

// Loop runs tasks against S serially
type Loop[S any] struct {
	state  S
	logger zerolog.Logger

	mu      sync.Mutex
	queue   []task[S]
	stopped bool

	wake     chan struct{}
	shutdown chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

type task[S any] struct {
	run  func(S)
	drop func()
}

// New creates a loop owning state. Call Start before submitting.
func New[S any](state S, logger zerolog.Logger) *Loop[S] {
	return &Loop[S]{
		state:    state,
		logger:   logger,
		wake:     make(chan struct{}, 1),
		shutdown: make(chan struct{}),
	}
}

// Start launches the loop goroutine
func (l *Loop[S]) Start() {
	l.wg.Add(1)
	go l.run()
}

// Stop signals the loop to exit and waits for the running task to finish.
// Queued tasks that have not started are dropped and their drop hooks run.
func (l *Loop[S]) Stop() {
	l.once.Do(func() {
		l.mu.Lock()
		l.stopped = true
		dropped := l.queue
		l.queue = nil
		l.mu.Unlock()
		close(l.shutdown)

		for _, t := range dropped {
			if t.drop != nil {
				t.drop()
			}
		}
	})
	l.wg.Wait()
}

// Post queues fn without blocking. It reports false if the loop is stopped.
func (l *Loop[S]) Post(fn func(S)) bool {
	return l.enqueue(task[S]{run: fn})
}

// PostWithDrop queues fn like Post. If fn will never run, because the loop
// is already stopped or Stop discards it from the queue, onDrop is called
// instead. Exactly one of fn and onDrop runs.
func (l *Loop[S]) PostWithDrop(fn func(S), onDrop func()) bool {
	if !l.enqueue(task[S]{run: fn, drop: onDrop}) {
		onDrop()
		return false
	}
	return true
}

func (l *Loop[S]) enqueue(t task[S]) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, t)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// PostBlocking queues fn and waits until it has run. It must not be called
// from a task running on the loop itself.
func (l *Loop[S]) PostBlocking(ctx context.Context, fn func(S)) error {
	done := make(chan struct{})
	if !l.Post(func(s S) {
		defer close(done)
		fn(s)
	}) {
		return ErrStopped
	}

	select {
	case <-done:
		return nil
	case <-l.shutdown:
		return ErrStopped
	case <-ctx.Done():
		return fmt.Errorf("waiting for loop task: %w", ctx.Err())
	}
}

// Flush waits until every task queued before the call has run
func (l *Loop[S]) Flush(ctx context.Context) error {
	return l.PostBlocking(ctx, func(S) {})
}

func (l *Loop[S]) run() {
	defer l.wg.Done()
	for {
		select {
		case <-l.shutdown:
			return
		case <-l.wake:
		}

		for {
			l.mu.Lock()
			if l.stopped || len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			t := l.queue[0]
			l.queue[0] = task[S]{}
			l.queue = l.queue[1:]
			l.mu.Unlock()

			l.exec(t.run)
		}
	}
}

func (l *Loop[S]) exec(fn func(S)) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().Interface("panic", r).Msg("loop task panicked")
		}
	}()
	fn(l.state)
}
