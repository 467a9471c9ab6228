// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package workqueue is the hand-off between the single chunk reader and the
// pool of sort workers: a synchronized FIFO with a "finished" flag.
//
// A Queue created with a positive capacity blocks producers while it is full,
// which bounds the memory held by chunks that were read but not yet sorted.
// Capacity zero or less gives an unbounded queue.
package workqueue

import (
	"context"
	"errors"
	"sync"

	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	// ErrEndOfWork is returned by Pop once the queue is empty and
	// MarkFinished has been called.
	ErrEndOfWork = errors.New("workqueue: end of work")

	// ErrQueueClosed is returned by Push after MarkFinished.
	ErrQueueClosed = errors.New("workqueue: push after finish")
)

// Queue is a multi-producer, multi-consumer FIFO. Every item pushed is
// returned by exactly one Pop.
type Queue[T any] struct {
	name     string
	capacity int

	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    []T
	head     int
	finished bool

	retireOnce sync.Once
}

// New returns an empty queue. name labels the queue's metrics.
func New[T any](name string, capacity int) *Queue[T] {
	q := &Queue[T]{name: name, capacity: capacity}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	registerQueue(q)
	return q
}

// Push appends item, waiting while a bounded queue is full. It returns
// ctx.Err() if ctx ends first and ErrQueueClosed if the queue was finished.
func (q *Queue[T]) Push(ctx context.Context, item T) error {
	stop := context.AfterFunc(ctx, q.wakeAll)
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.full() && !q.finished {
		pushBlockedCounter.Add(ctx, 1, otelmetric.WithAttributeSet(q.attrs()))
	}
	for q.full() && !q.finished {
		if err := ctx.Err(); err != nil {
			return err
		}
		q.notFull.Wait()
	}
	if q.finished {
		return ErrQueueClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	q.items = append(q.items, item)
	q.notEmpty.Signal()
	return nil
}

// Pop removes and returns the oldest item, waiting until one is available.
// It returns ErrEndOfWork when the queue is drained and finished, or
// ctx.Err() if ctx ends while waiting.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	var zero T

	stop := context.AfterFunc(ctx, q.wakeAll)
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for q.lenLocked() == 0 && !q.finished {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		q.notEmpty.Wait()
	}
	if q.lenLocked() == 0 {
		q.retireOnce.Do(func() { unregisterQueue(q) })
		return zero, ErrEndOfWork
	}

	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	q.notFull.Signal()
	return item, nil
}

// MarkFinished records that no more items will be pushed. Consumers drain
// what is left and then receive ErrEndOfWork; blocked producers are released
// with ErrQueueClosed. Calling it more than once is harmless.
func (q *Queue[T]) MarkFinished() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.finished = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Close finishes the queue, drops any items still waiting and removes the
// queue from the depth gauge. Pending and later Pops return ErrEndOfWork.
// It is safe to call more than once and after the queue was drained.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.finished = true
	clear(q.items)
	q.items = nil
	q.head = 0
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	q.mu.Unlock()

	q.retireOnce.Do(func() { unregisterQueue(q) })
}

// Len returns the number of items waiting in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

// Cap returns the queue capacity; zero or less means unbounded.
func (q *Queue[T]) Cap() int { return q.capacity }

func (q *Queue[T]) lenLocked() int { return len(q.items) - q.head }

func (q *Queue[T]) full() bool {
	return q.capacity > 0 && q.lenLocked() >= q.capacity
}

// wakeAll is run by context.AfterFunc so that waiters re-check ctx.Err().
// Taking the lock orders the broadcast after the waiter's Wait call.
func (q *Queue[T]) wakeAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

func (q *Queue[T]) queueName() string { return q.name }
func (q *Queue[T]) depth() int { return q.Len() }
