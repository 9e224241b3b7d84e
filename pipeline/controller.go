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
	"runtime"

	"github.com/xtaci/gf2p16/gf16"
)

const defaultTargetInputGrouping = 12

// Config configures a Controller at construction. It is the Go shape of
// spec.md §4.6's init(onProgress, backendChoice, targetInputGrouping),
// folded together with the slice size every StagingArea needs up front.
type Config struct {
	// SliceSize is the initial originalSliceSize (spec.md §3).
	SliceSize int
	// BackendName selects a gf16.Backend by name; "" picks the default.
	// An unknown or unavailable name falls back to "generic" with a
	// logged warning -- see gf16.SelectBackend.
	BackendName string
	// TargetInputGrouping hints the desired inputGrouping; it is rounded
	// to the backend's IdealInputMultiple. 0 uses the default of 12.
	TargetInputGrouping int
	// NumThreads sizes the ComputeStage worker pool; 0 uses NumCPU.
	NumThreads int
	// OnProgress is invoked on the controller goroutine after each batch
	// finishes compute, with (inputsInBatch, firstInputIndexOfBatch).
	OnProgress func(numInputs int, firstInputIndex uint16)
	// Stats, if non-nil, is started/stopped alongside the controller and
	// fed batch/output counters as they occur.
	Stats *StatsLogger
}

// Controller is the PipelineController of spec.md §4.6: it owns the
// staging-area state machine, drives PrepareStage/ComputeStage/FinishStage,
// and is the only goroutine that ever mutates pipeline state or invokes a
// user callback, per spec.md §5. It is the Go translation of
// original_source/gf16/controller.cpp's PAR2Proc class: that class drives
// its state machine from libuv callbacks on a single event-loop thread;
// Controller drives the same machine from a single goroutine selecting over
// channels.
type Controller struct {
	backend gf16.Backend
	info    gf16.Info
	table   *gf16.Table

	originalSliceSize       int
	currentSliceSize        int
	dstRegionLen            int
	alignedCurrentSliceSize int
	allocatedAlignedSize    int
	chunkLenNominal         int
	chunks                  []chunkDesc

	inputGrouping int

	areas                   [numStagingAreas]*stagingArea
	currentInputBuf         int
	currentInputPos         int
	numBufUsedForProcessing int

	outputExps  []uint16
	numOutputs  int // active count, <= numOutputsCap
	numOutputsCap int
	acc         *accumulator
	processingAdd bool

	computing       bool
	pendingDispatch []pendingBatch

	endSignalled bool
	finishCb     func()

	onProgress func(numInputs int, firstInputIndex uint16)
	stats      *StatsLogger

	prepare *prepareStage
	compute *computeStage
	finish  *finishStage

	preparedCh chan preparedEvent
	computedCh chan computedEvent
	outputCh   chan outputResult
	cmdCh      chan controllerRequest
	stopCh     chan struct{}
}

// New constructs a Controller and starts its internal goroutines: the
// controller loop, the single PrepareStage worker, and the ComputeStage
// pool. Callers must eventually call Deinit.
func New(cfg Config) *Controller {
	// SelectBackend never returns a nil backend: an unknown/unavailable
	// name falls back to "generic" with a logged warning, so its error
	// return is informational rather than fatal -- see
	// gf16/backend_select.go. Controller construction itself cannot fail.
	backend, _, _ := gf16.SelectBackend(cfg.BackendName)

	numThreads := cfg.NumThreads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	info := backend.Info()
	target := cfg.TargetInputGrouping
	if target <= 0 {
		target = defaultTargetInputGrouping
	}
	grouping := roundToMultiple(target, info.IdealInputMultiple)

	c := &Controller{
		backend:       backend,
		info:          info,
		table:         gf16.DefaultTable(),
		inputGrouping: grouping,
		onProgress:    cfg.OnProgress,
		stats:         cfg.Stats,
		preparedCh:    make(chan preparedEvent, 1),
		computedCh:    make(chan computedEvent, 1),
		outputCh:      make(chan outputResult, 1),
		cmdCh:         make(chan controllerRequest),
		stopCh:        make(chan struct{}),
	}
	for i := range c.areas {
		c.areas[i] = &stagingArea{inputs: make([]uint16, grouping)}
	}

	c.originalSliceSize = cfg.SliceSize
	c.currentSliceSize = cfg.SliceSize
	c.recomputeSizing(cfg.SliceSize)

	c.prepare = newPrepareStage(backend, c.preparedCh)
	c.compute = newComputeStage(backend, numThreads)
	c.finish = newFinishStage(backend, numThreads)

	go c.prepare.run()
	c.compute.start()
	if c.stats != nil {
		c.stats.Start()
	}
	go c.run()

	return c
}

// roundToMultiple rounds target to the nearest multiple of m, never below
// m itself (spec.md §4.6's input-grouping rule).
func roundToMultiple(target, m int) int {
	if m <= 0 {
		m = 1
	}
	grouping := target + m/2
	grouping -= grouping % m
	if grouping < m {
		grouping = m
	}
	return grouping
}

// recomputeSizing derives dstRegionLen/alignedCurrentSliceSize/chunking
// from a new currentSliceSize, growing (never shrinking) the underlying
// buffers when the new size needs more room than is currently allocated --
// spec.md §9's resolution of the "growth beyond originalSliceSize" open
// question: allowed and reallocating, not relied upon by well-behaved
// callers.
func (c *Controller) recomputeSizing(sliceSize int) {
	stride := c.info.Stride
	c.dstRegionLen = c.backend.AlignToStride(sliceSize)
	c.alignedCurrentSliceSize = c.dstRegionLen + stride
	c.chunkLenNominal, c.chunks = chunking(c.alignedCurrentSliceSize, c.info.IdealChunkSize, stride)

	if c.alignedCurrentSliceSize > c.allocatedAlignedSize {
		for _, a := range c.areas {
			a.buf = make([]byte, c.inputGrouping*c.alignedCurrentSliceSize)
		}
		if c.acc != nil {
			c.acc = newAccumulator(c.numOutputsCap, c.alignedCurrentSliceSize)
		}
		c.allocatedAlignedSize = c.alignedCurrentSliceSize
	}
}

// call marshals fn onto the controller goroutine and blocks until it has
// run, giving fn exclusive access to controller state without a mutex.
func (c *Controller) call(fn func()) {
	done := make(chan struct{})
	c.cmdCh <- controllerRequest{fn: fn, done: done}
	<-done
}

func (c *Controller) run() {
	for {
		select {
		case <-c.stopCh:
			return
		case req := <-c.cmdCh:
			req.fn()
			close(req.done)
		case ev := <-c.preparedCh:
			c.handlePrepared(ev)
		case ev := <-c.computedCh:
			c.handleComputed(ev)
		case res := <-c.outputCh:
			if c.stats != nil {
				c.stats.recordOutput()
			}
			res.cb(res.dst, res.outputIndex, res.checksumOK)
		}
	}
}

// SetCurrentSliceSize implements setCurrentSliceSize from spec.md §4.6.
func (c *Controller) SetCurrentSliceSize(n int) {
	c.call(func() {
		c.currentSliceSize = n
		c.recomputeSizing(n)
	})
}

// SetRecoverySlices implements setRecoverySlices from spec.md §4.6. The
// first call allocates the accumulator at its requested width; later calls
// may only shrink the active output count (spec.md §4.6: "grows not
// supported without redesign") -- the accumulator itself keeps its original
// capacity as accumulator.numOutputs so its chunk addressing never changes
// shape underneath in-flight chunk math.
func (c *Controller) SetRecoverySlices(exponents []uint16) {
	c.call(func() {
		if c.acc == nil {
			c.numOutputsCap = len(exponents)
			c.outputExps = append([]uint16(nil), exponents...)
			c.numOutputs = len(exponents)
			c.acc = newAccumulator(c.numOutputsCap, c.allocatedAlignedSize)
			return
		}
		precondition(len(exponents) <= c.numOutputsCap, "setRecoverySlices: growing output count unsupported")
		c.outputExps = append(c.outputExps[:0], exponents...)
		c.numOutputs = len(exponents)
	})
}

// AddInput implements addInput from spec.md §4.6.
func (c *Controller) AddInput(buf []byte, inputIndex uint16, flush bool, onPrepared func(src []byte, inputIndex uint16)) bool {
	accepted := false
	c.call(func() {
		precondition(!c.endSignalled, "addInput called after endInput")
		area := c.areas[c.currentInputBuf]
		if area.state != stateFree && area.state != stateFilling {
			return
		}
		if area.state == stateFree {
			area.state = stateFilling
		}
		accepted = true

		pos := c.currentInputPos
		area.inputs[pos] = inputIndex

		batchReady := flush || pos+1 == c.inputGrouping
		submitBatchSize := 0
		if batchReady {
			area.numInBatch = pos + 1
			area.state = stateSubmitted
			c.numBufUsedForProcessing++
			submitBatchSize = area.numInBatch
			c.currentInputBuf = (c.currentInputBuf + 1) % numStagingAreas
			c.currentInputPos = 0
		} else {
			c.currentInputPos++
		}

		c.prepare.submit(prepareJob{
			area:            area,
			indexInBatch:    pos,
			src:             buf,
			inputIndex:      inputIndex,
			onPrepared:      onPrepared,
			submitBatchSize: submitBatchSize,
			inputGrouping:   c.inputGrouping,
			dstRegionLen:    c.dstRegionLen,
			chunkLen:        c.chunkLenNominal,
		})
	})
	return accepted
}

// Flush implements flush from spec.md §4.6: a no-op if the currently
// Filling area has no pending lanes.
func (c *Controller) Flush() {
	c.call(c.flushLocked)
}

func (c *Controller) flushLocked() {
	area := c.areas[c.currentInputBuf]
	if area.state != stateFilling || c.currentInputPos == 0 {
		return
	}
	numInBatch := c.currentInputPos
	area.numInBatch = numInBatch
	area.state = stateSubmitted
	c.numBufUsedForProcessing++
	c.currentInputBuf = (c.currentInputBuf + 1) % numStagingAreas
	c.currentInputPos = 0

	c.prepare.submit(prepareJob{
		area:            area,
		indexInBatch:    -1,
		src:             nil,
		submitBatchSize: numInBatch,
		inputGrouping:   c.inputGrouping,
		dstRegionLen:    c.dstRegionLen,
		chunkLen:        c.chunkLenNominal,
	})
}

// EndInput implements endInput from spec.md §4.6.
func (c *Controller) EndInput(onFinished func()) {
	c.call(func() {
		precondition(!c.endSignalled, "endInput called more than once")
		c.endSignalled = true
		c.finishCb = onFinished
		c.flushLocked()
		if c.numBufUsedForProcessing == 0 {
			c.finishEnd()
		}
	})
}

// GetOutput implements getOutput from spec.md §4.5/§4.6.
func (c *Controller) GetOutput(outputIndex int, dst []byte, cb func(dst []byte, outputIndex int, checksumOK bool)) {
	c.call(func() {
		if !c.processingAdd {
			n := c.currentSliceSize
			if n > len(dst) {
				n = len(dst)
			}
			for i := 0; i < n; i++ {
				dst[i] = 0
			}
			cb(dst, outputIndex, true)
			return
		}
		c.finish.submit(dst, c.acc.buf, c.currentSliceSize, c.numOutputsCap, outputIndex, c.chunkLenNominal, cb, c.outputCh)
	})
}

// Deinit implements deinit from spec.md §4.6: it signals the prepare
// worker, the compute workers and the controller loop to stop, and closes
// the StatsLogger. It does not wait for the workers to exit, and jobs still
// queued may or may not run. onClosed, if non-nil, runs on the caller's
// goroutine before the controller loop is told to stop.
func (c *Controller) Deinit(onClosed func()) {
	c.call(func() {
		c.prepare.close()
		c.compute.close()
	})
	if c.stats != nil {
		c.stats.Close()
	}
	if onClosed != nil {
		onClosed()
	}
	close(c.stopCh)
}

// pendingBatch is a batch whose staging area has finished packing but
// whose compute dispatch must wait: only one batch may be in flight against
// the accumulator at a time, since every batch addresses the exact same
// (chunk, output) byte ranges -- see dispatchOrStash.
type pendingBatch struct {
	area       *stagingArea
	numInBatch int
}

func (c *Controller) handlePrepared(ev preparedEvent) {
	if ev.onPrepared != nil {
		ev.onPrepared(ev.src, ev.inputIndex)
	}
	if ev.submitBatchSize > 0 {
		c.dispatchOrStash(ev.area, ev.submitBatchSize)
	}
}

// dispatchOrStash enforces that at most one batch is ever computing against
// the accumulator concurrently. A ready batch is dispatched immediately if
// the accumulator is idle; otherwise it waits in pendingDispatch until
// handleComputed observes the current batch finish. This is what makes the
// Submitted -> Processing transition safe despite every batch addressing
// identical accumulator byte ranges: spec.md §5's ordering guarantees only
// hold if batch N+1's writes never overlap batch N's in time, not merely in
// dispatch order.
func (c *Controller) dispatchOrStash(area *stagingArea, numInBatch int) {
	if c.computing {
		c.pendingDispatch = append(c.pendingDispatch, pendingBatch{area: area, numInBatch: numInBatch})
		return
	}
	c.computing = true
	c.dispatchBatch(area, numInBatch)
}

// dispatchBatch implements the "Batch dispatch" algorithm of spec.md §4.6:
// it computes the coefficient matrix for this batch, partitions the slice
// into chunks, and hands them to ComputeStage, transitioning the area
// Submitted -> Processing.
func (c *Controller) dispatchBatch(area *stagingArea, numInBatch int) {
	coeffs := make([][]uint16, c.numOutputs)
	flat := make([]uint16, numInBatch*c.numOutputs)
	for out := 0; out < c.numOutputs; out++ {
		row := flat[out*numInBatch : out*numInBatch+numInBatch]
		for i := 0; i < numInBatch; i++ {
			row[i] = c.table.Coeff(area.inputs[i], c.outputExps[out])
		}
		coeffs[out] = row
	}
	area.coeffs = flat

	firstInputIndex := area.inputs[0]
	base := computeJob{
		area:            area,
		inputGrouping:   c.inputGrouping,
		numInputs:       numInBatch,
		acc:             c.acc,
		numOutputs:      c.numOutputs,
		outputExps:      c.outputExps,
		coeffs:          coeffs,
		numInBatch:      numInBatch,
		firstInputIndex: firstInputIndex,
	}

	area.state = stateProcessing
	c.processingAdd = true
	if c.stats != nil {
		c.stats.recordBatch()
		c.stats.recordInputs(numInBatch)
	}
	c.compute.dispatch(c.chunks, base, c.computedCh)
}

func (c *Controller) handleComputed(ev computedEvent) {
	ev.area.reset()
	c.numBufUsedForProcessing--
	if c.onProgress != nil {
		c.onProgress(ev.numInBatch, ev.firstInputIndex)
	}

	if len(c.pendingDispatch) > 0 {
		next := c.pendingDispatch[0]
		c.pendingDispatch = c.pendingDispatch[1:]
		c.dispatchBatch(next.area, next.numInBatch)
	} else {
		c.computing = false
	}

	if c.endSignalled && c.numBufUsedForProcessing == 0 {
		c.finishEnd()
	}
}

// finishEnd implements the "End-of-input" algorithm of spec.md §4.6: once
// every staging area is Free and endSignalled is set, release the staging
// buffers (spec.md §3: "freed ... at successful end-of-input") and invoke
// finishCb.
func (c *Controller) finishEnd() {
	for _, a := range c.areas {
		a.buf = nil
	}
	cb := c.finishCb
	c.finishCb = nil
	if cb != nil {
		cb()
	}
}
