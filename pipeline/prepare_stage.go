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

// prepareJob is PrepareJob from spec.md §4.3. src == nil marks a flush
// job: dispatch whatever has accumulated in the area without packing a new
// lane.
type prepareJob struct {
	area            *stagingArea
	indexInBatch    int
	src             []byte
	inputIndex      uint16
	onPrepared      func(src []byte, inputIndex uint16)
	submitBatchSize int

	inputGrouping int
	dstRegionLen  int
	chunkLen      int
}

// prepareStage is the single background worker of spec.md §4.3: it owns an
// unbounded FIFO of prepareJob and packs lanes into their staging area,
// folding each into the lane's running checksum, before handing the
// completion back to the controller goroutine.
type prepareStage struct {
	backend gf16.Backend
	queue   *jobQueue[prepareJob]
	out     chan<- preparedEvent
	stop    chan struct{}
}

func newPrepareStage(backend gf16.Backend, out chan<- preparedEvent) *prepareStage {
	return &prepareStage{
		backend: backend,
		queue:   newJobQueue[prepareJob](),
		out:     out,
		stop:    make(chan struct{}),
	}
}

func (p *prepareStage) submit(job prepareJob) { p.queue.push(job) }

func (p *prepareStage) close() { close(p.stop) }

func (p *prepareStage) run() {
	for {
		select {
		case <-p.stop:
			return
		case <-p.queue.notify:
			for {
				job, ok := p.queue.pop()
				if !ok {
					break
				}
				p.process(job)
			}
		}
	}
}

func (p *prepareStage) process(job prepareJob) {
	if job.src != nil {
		p.backend.PreparePackedWithChecksum(job.area.buf, job.src, job.dstRegionLen, job.inputGrouping, job.indexInBatch, job.chunkLen)
	}
	p.out <- preparedEvent{
		area:            job.area,
		indexInBatch:    job.indexInBatch,
		inputIndex:      job.inputIndex,
		src:             job.src,
		onPrepared:      job.onPrepared,
		submitBatchSize: job.submitBatchSize,
	}
}
