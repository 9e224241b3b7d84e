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

// Package pipeline implements the multi-threaded GF(2^16) processing
// pipeline: staging-area rotation, the prepare/compute/finish worker
// stages, and the PipelineController that orchestrates them. It is
// grounded on original_source/gf16/controller.cpp's PAR2Proc state machine,
// translated from libuv callbacks into goroutines and channels.
package pipeline

// numStagingAreas is S from spec.md §3: exactly two double-buffers.
const numStagingAreas = 2

// stagingState is the per-area state machine from spec.md §4.6.
type stagingState int

const (
	stateFree stagingState = iota
	stateFilling
	stateSubmitted
	stateProcessing
)

func (s stagingState) String() string {
	switch s {
	case stateFree:
		return "free"
	case stateFilling:
		return "filling"
	case stateSubmitted:
		return "submitted"
	case stateProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

// stagingArea is one of the S double-buffers inputs are packed into before
// compute. Its input-index vector and coefficient matrix are written only
// by the controller goroutine; its buffer is written by the single prepare
// worker (lane by lane while Filling, and until the batch's last job while
// Submitted) and read by the compute worker pool (while Processing,
// read-only). Ownership transfers happen
// entirely through state field changes made by the controller goroutine,
// never through shared mutexes -- see spec.md §4.6 and §5.
type stagingArea struct {
	buf    []byte
	inputs []uint16 // input index recorded at each lane, length == inputGrouping
	coeffs []uint16 // numOutputs * numInputsInBatch matrix, row-major by output

	state      stagingState
	numInBatch int // lanes filled when this batch was submitted
}

func (s *stagingArea) reset() {
	s.state = stateFree
	s.numInBatch = 0
}
