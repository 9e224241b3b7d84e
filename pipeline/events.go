// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package pipeline

import "sync"

// jobQueue is the multi-producer/single-consumer unbounded FIFO spec.md §5
// asks for: producers push and never block; the single consumer drains it
// behind one wake-up channel instead of polling. It replaces the
// libuv uv_async_t + intrusive list original_source/gf16/controller.cpp
// uses for the same purpose.
type jobQueue[T any] struct {
	mu     sync.Mutex
	items  []T
	notify chan struct{}
}

func newJobQueue[T any]() *jobQueue[T] {
	return &jobQueue[T]{notify: make(chan struct{}, 1)}
}

func (q *jobQueue[T]) push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *jobQueue[T]) pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items = q.items[1:]
	return v, true
}

// controllerRequest marshals a public API call onto the controller
// goroutine: the caller blocks on done while fn runs with exclusive access
// to controller state. This is the Go stand-in for "a single controller
// thread owns the pipeline state machine" (spec.md §5) without needing a
// mutex around every field.
type controllerRequest struct {
	fn   func()
	done chan struct{}
}

// preparedEvent is posted by the prepare worker once it has packed (or, for
// a flush marker, skipped packing) one lane. submitBatchSize > 0 means the
// batch containing this lane is now ready for ComputeStage dispatch.
type preparedEvent struct {
	area            *stagingArea
	indexInBatch    int
	inputIndex      uint16
	src             []byte
	onPrepared      func(src []byte, inputIndex uint16)
	submitBatchSize int
}

// computedEvent is posted by the last compute worker to finish a batch's
// final chunk (spec.md §4.4's reference-counting rule).
type computedEvent struct {
	area            *stagingArea
	numInBatch      int
	firstInputIndex uint16
}

// outputResult is posted back to the controller goroutine so that onOutput
// callbacks -- like every other user callback -- always run on the
// controller thread (spec.md §5).
type outputResult struct {
	dst         []byte
	outputIndex int
	checksumOK  bool
	cb          func(dst []byte, outputIndex int, checksumOK bool)
}
