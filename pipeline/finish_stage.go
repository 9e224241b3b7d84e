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

import "github.com/xtaci/gf2p16/gf16"

// finishStage is the "auxiliary generic worker pool" of spec.md §4.5/§5:
// each getOutput spawns one on-demand goroutine that unpacks one output
// lane and verifies its checksum, and a semaphore bounds how many of them
// run that work at once (the goroutines themselves are not bounded). Multiple finish jobs run
// concurrently since the accumulator is read-only once endInput is dispatched
// against it.
type finishStage struct {
	backend gf16.Backend
	sem     chan struct{}
}

func newFinishStage(backend gf16.Backend, maxConcurrent int) *finishStage {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &finishStage{backend: backend, sem: make(chan struct{}, maxConcurrent)}
}

// submit runs finishPackedWithChecksum on an auxiliary goroutine and posts
// the result back to out so the cb delivery happens on the controller
// thread, matching every other callback in this package. submit itself is
// always called from the controller goroutine (via Controller.call), so it
// must never block: both the semaphore acquire and the result send happen
// inside the spawned goroutine, never on the caller's stack, or a burst of
// GetOutput calls beyond maxConcurrent would stall the controller loop
// (and, transitively, every finish job already in flight trying to deliver
// through the same buffered result channel).
func (f *finishStage) submit(dst, accBuf []byte, size, numOutputs, outputIndex, chunkLen int, cb func([]byte, int, bool), out chan<- outputResult) {
	go func() {
		f.sem <- struct{}{}
		defer func() { <-f.sem }()
		ok := f.backend.FinishPackedWithChecksum(dst, accBuf, size, numOutputs, outputIndex, chunkLen)
		out <- outputResult{dst: dst, outputIndex: outputIndex, checksumOK: ok, cb: cb}
	}()
}
