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

// accumulator is the single contiguous buffer holding numOutputs *
// alignedSliceSize bytes. Element [out][pos] holds the running XOR-sum of
// coeff(idx_i, exp_out) * input_i[pos] in GF(2^16). make() zero-fills it, so
// the first batch's XOR-in already behaves as the "zero-fill else XOR"
// discipline spec.md §4.4 describes without needing an explicit zero pass;
// Controller.processingAdd tracks the same transition purely for GetOutput's
// zero-fill-before-any-compute fast path. Concurrent compute workers
// partition this buffer by (chunk, output) per batch, so no locking is
// needed -- see spec.md §5.
type accumulator struct {
	buf          []byte
	numOutputs   int
	alignedSlice int
}

func newAccumulator(numOutputs, alignedSlice int) *accumulator {
	return &accumulator{
		buf:          make([]byte, numOutputs*alignedSlice),
		numOutputs:   numOutputs,
		alignedSlice: alignedSlice,
	}
}

// chunkSlice returns the byte range for output `out`'s chunk `chunkOffset`
// of length `chunkLen`, per spec.md §6's packed output layout: chunk c of
// output o occupies [c*chunkLen*numOutputs + o*chunkLen, +chunkLen).
func (a *accumulator) chunkSlice(out, chunkOffset, chunkLen int) []byte {
	base := chunkOffset*a.numOutputs + out*chunkLen
	return a.buf[base : base+chunkLen]
}
