// Package serial runs submitted operations one at a time in submission order.
//
// Each submission waits for the completion of the one before it, whatever its
// outcome, so a failed operation never blocks or fails the operations queued
// behind it. Results are delivered only to the submitter's Future.
package serial

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrPanic indicates that a submitted operation panicked.
var ErrPanic = errors.New("operation panicked")

// Serializer is a FIFO chain of operations. The zero value is not usable;
// create one with New.
type Serializer struct {
	mu   sync.Mutex
	tail chan struct{}
}

// New returns an idle serializer.
func New() *Serializer {
	tail := make(chan struct{})
	close(tail)

	return &Serializer{tail: tail}
}

// Future is the pending result of one submitted operation.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Submit appends op to the chain. op starts after every previously submitted
// operation has settled and receives ctx unchanged.
func Submit[T any](ctx context.Context, s *Serializer, op func(context.Context) (T, error)) *Future[T] {
	future := &Future[T]{done: make(chan struct{})}

	s.mu.Lock()
	previous := s.tail
	s.tail = future.done
	s.mu.Unlock()

	go func() {
		defer close(future.done)

		<-previous

		future.value, future.err = run(ctx, op)
	}()

	return future
}

// Go appends an operation that only reports an error.
func Go(ctx context.Context, s *Serializer, op func(context.Context) error) *Future[struct{}] {
	return Submit(ctx, s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
}

func run[T any](ctx context.Context, op func(context.Context) (T, error)) (value T, err error) {
	defer func() {
		recovered := recover()
		if recovered != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, recovered)
		}
	}()

	return op(ctx)
}

// Idle blocks until every operation submitted so far has settled.
func (s *Serializer) Idle(ctx context.Context) error {
	s.mu.Lock()
	tail := s.tail
	s.mu.Unlock()

	select {
	case <-tail:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to wait for pending operations: %w", ctx.Err())
	}
}

// Wait blocks until the operation settles or ctx is done. Giving up on the
// wait does not cancel the operation.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T

		return zero, fmt.Errorf("failed to wait for operation: %w", ctx.Err())
	}
}

// Done is closed once the operation has settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}
