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

import (
	"sync/atomic"

	"github.com/xtaci/gf2p16/gf16"
)

// chunkDesc is ChunkDescriptor from spec.md §3, minus the staging area
// (that is bound per dispatch): offset is the nominal byte position in the
// per-lane dimension (chunkIdx * nominal chunkLen), length is this chunk's
// actual length (shorter only for the final chunk of a slice).
type chunkDesc struct {
	offset int
	length int
}

// chunking implements spec.md §4.6's chunking formula, returning both the
// nominal chunkLen (every chunk but the last is exactly this long, and it
// is what backend calls use for packed-layout addressing) and the concrete
// per-chunk descriptors.
func chunking(alignedSize, idealChunkSize, stride int) (int, []chunkDesc) {
	numChunks := roundDiv(alignedSize, idealChunkSize)
	if numChunks < 1 {
		numChunks = 1
	}
	chunkLen := alignUp(ceilDiv(alignedSize, numChunks), stride)
	numChunks = ceilDiv(alignedSize, chunkLen)

	chunks := make([]chunkDesc, numChunks)
	off := 0
	for i := 0; i < numChunks; i++ {
		length := chunkLen
		if off+length > alignedSize {
			length = alignedSize - off
		}
		chunks[i] = chunkDesc{offset: off, length: length}
		off += chunkLen
	}
	return chunkLen, chunks
}

func roundDiv(a, b int) int { return (a + b/2) / b }
func ceilDiv(a, b int) int  { return (a + b - 1) / b }
func alignUp(n, stride int) int {
	return (n + stride - 1) / stride * stride
}

// computeJob is one ComputeJob from spec.md §4.4.
type computeJob struct {
	area          *stagingArea
	chunk         chunkDesc
	inputGrouping int
	numInputs     int

	acc         *accumulator
	numOutputs  int
	outputExps  []uint16
	coeffs      [][]uint16 // coeffs[out][inputInBatch]
	prefetchIn  []byte
	prefetchOut []byte

	pending         *int32
	numInBatch      int
	firstInputIndex uint16
	done            chan<- computedEvent
}

// computeWorker is one of the T threads in spec.md §4.4's pool: it owns a
// private scratch region and a private FIFO, so no compute worker ever
// touches another's state.
type computeWorker struct {
	backend gf16.Backend
	scratch gf16.Scratch
	queue   *jobQueue[computeJob]
	stop    chan struct{}
}

func newComputeWorker(backend gf16.Backend) *computeWorker {
	return &computeWorker{
		backend: backend,
		scratch: backend.AllocScratch(),
		queue:   newJobQueue[computeJob](),
		stop:    make(chan struct{}),
	}
}

func (w *computeWorker) run() {
	for {
		select {
		case <-w.stop:
			return
		case <-w.queue.notify:
			for {
				job, ok := w.queue.pop()
				if !ok {
					break
				}
				w.process(job)
			}
		}
	}
}

func (w *computeWorker) process(job computeJob) {
	srcBase := job.chunk.offset * job.inputGrouping
	src := job.area.buf[srcBase : srcBase+job.numInputs*job.chunk.length]

	for out := 0; out < job.numOutputs; out++ {
		dst := job.acc.chunkSlice(out, job.chunk.offset, job.chunk.length)
		if job.outputExps[out] == 0 {
			w.backend.AddMulti(job.inputGrouping, job.numInputs, dst, src, job.chunk.length, job.prefetchIn, job.prefetchOut)
		} else {
			w.backend.MulAddMulti(job.inputGrouping, job.numInputs, dst, src, job.chunk.length, job.coeffs[out], w.scratch, job.prefetchIn, job.prefetchOut)
		}
	}

	if atomic.AddInt32(job.pending, -1) == 0 {
		job.done <- computedEvent{
			area:            job.area,
			numInBatch:      job.numInBatch,
			firstInputIndex: job.firstInputIndex,
		}
	}
}

// computeStage is the worker pool of spec.md §4.4.
type computeStage struct {
	workers []*computeWorker
}

func newComputeStage(backend gf16.Backend, numThreads int) *computeStage {
	s := &computeStage{workers: make([]*computeWorker, numThreads)}
	for i := range s.workers {
		s.workers[i] = newComputeWorker(backend)
	}
	return s
}

func (s *computeStage) start() {
	for _, w := range s.workers {
		go w.run()
	}
}

func (s *computeStage) close() {
	for _, w := range s.workers {
		close(w.stop)
	}
}

// dispatch submits chunks round-robin starting at worker 0 (spec.md §4.4):
// every batch's first chunk lands on worker 0, making output-region
// ownership per chunk deterministic and avoiding accumulator data races.
func (s *computeStage) dispatch(chunks []chunkDesc, base computeJob, done chan<- computedEvent) {
	pending := int32(len(chunks))
	for i, ch := range chunks {
		job := base
		job.chunk = ch
		job.pending = &pending
		job.done = done

		if i+1 < len(chunks) {
			next := chunks[i+1]
			job.prefetchIn = base.area.buf[next.offset*base.inputGrouping:]
		}

		s.workers[i%len(s.workers)].queue.push(job)
	}
}
