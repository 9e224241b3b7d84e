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

package gf16

// Info describes the tunable parameters a Backend wants the pipeline
// controller to respect. Different SIMD families want different chunk
// sizes and input groupings, so the controller queries these rather than
// hard-coding them.
type Info struct {
	// Alignment is the byte alignment every staging/accumulator buffer
	// must be allocated at for this backend.
	Alignment int
	// Stride is the granularity of the trailing checksum block, and the
	// unit chunkLen is rounded to.
	Stride int
	// IdealChunkSize is the compute kernel's preferred chunk length, used
	// to derive numChunks.
	IdealChunkSize int
	// IdealInputMultiple is the multiple inputGrouping should be rounded
	// to (never below it).
	IdealInputMultiple int
	// PrefetchDownscale is the log2 of how many of the final output
	// iterations in a chunk a per-output prefetch schedule would spend on
	// the output region instead of the next input chunk. The pipeline
	// package does not read it: its compute dispatch passes one prefetchIn
	// pointer per chunk and no prefetchOut.
	PrefetchDownscale uint
}

// Backend is the pluggable arithmetic capability set spec.md §4.1
// describes. It must be safe to call concurrently from multiple goroutines
// provided each caller supplies its own Scratch.
type Backend interface {
	// Name identifies the backend, e.g. for logging backend selection.
	Name() string

	// Info reports this backend's tunable parameters.
	Info() Info

	// AllocScratch returns an opaque per-goroutine scratch region. Callers
	// must not share a Scratch across concurrent calls.
	AllocScratch() Scratch

	// AlignToStride rounds n up to a multiple of Info().Stride.
	AlignToStride(n int) int

	// PreparePackedWithChecksum writes the index-th lane of dst (a packed
	// staging buffer holding numInputs lanes) from src, zero-filling any
	// bytes beyond srcLen up to dstRegionLen, and folds src into the
	// lane's trailing running checksum block.
	PreparePackedWithChecksum(dst []byte, src []byte, dstRegionLen, numInputs, index, chunkLen int)

	// FinishPackedWithChecksum unpacks the index-th of numOutputs lanes
	// from src into dst (size bytes) and reports whether the lane's
	// trailing checksum, recomputed from the unpacked bytes, matches the
	// one stored by the compute stage.
	FinishPackedWithChecksum(dst []byte, src []byte, size, numOutputs, index, chunkLen int) (ok bool)

	// MulAddMulti computes dst[k] ^= sum_i coeffs[i] * src[lane i, k] in
	// GF(2^16), for k ranging over a chunkLen-byte region. prefetchIn and
	// prefetchOut are advisory hints a backend may ignore.
	MulAddMulti(inputGrouping, numInputs int, dst, src []byte, chunkLen int, coeffs []uint16, scratch Scratch, prefetchIn, prefetchOut []byte)

	// AddMulti is MulAddMulti with every coefficient implicitly 1 (the
	// outputExponent == 0 fast path).
	AddMulti(inputGrouping, numInputs int, dst, src []byte, chunkLen int, prefetchIn, prefetchOut []byte)
}

// Scratch is an opaque per-goroutine work area a Backend may use internally.
// The generic backend doesn't need one, but the interface exists so a real
// SIMD backend can carry register-spill buffers without the pipeline
// knowing their shape.
type Scratch interface{}
