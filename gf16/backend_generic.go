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

import (
	"encoding/binary"

	"github.com/templexxx/xorsimd"
)

const (
	genericAlignment         = 32
	genericStride            = 16 // bytes; 8 16-bit lanes per checksum word
	genericIdealChunkSize    = 16384
	genericIdealInputMultiple = 2
	genericPrefetchDownscale = 4
)

// GenericBackend is the pure-Go FieldBackend every build can rely on. Its
// packed layout places each lane contiguously within a chunk (chunk c, lane
// i occupies [c*chunkLen*numLanes + i*chunkLen, +chunkLen)), a concrete
// instance of the "backend-defined stride-aligned pattern" spec.md §6
// leaves open. Its per-chunk multiply-add is scalar log/antilog GF(2^16)
// arithmetic; its all-ones fast path (AddMulti) is delegated to
// github.com/templexxx/xorsimd, which already self-selects the best XOR
// kernel the host CPU supports.
type GenericBackend struct {
	table *Table
}

// NewGenericBackend constructs a GenericBackend backed by the process-wide
// coefficient table.
func NewGenericBackend() *GenericBackend {
	return &GenericBackend{table: DefaultTable()}
}

func (b *GenericBackend) Name() string { return "generic" }

func (b *GenericBackend) Info() Info {
	return Info{
		Alignment:          genericAlignment,
		Stride:             genericStride,
		IdealChunkSize:     genericIdealChunkSize,
		IdealInputMultiple: genericIdealInputMultiple,
		PrefetchDownscale:  genericPrefetchDownscale,
	}
}

type genericScratch struct {
	tmp []byte
}

func (b *GenericBackend) AllocScratch() Scratch {
	return &genericScratch{}
}

func (b *GenericBackend) AlignToStride(n int) int {
	s := genericStride
	return (n + s - 1) / s * s
}

// PreparePackedWithChecksum implements Backend.PreparePackedWithChecksum;
// see the lane-layout and checksum-recurrence description on GenericBackend
// and in checksum.go.
func (b *GenericBackend) PreparePackedWithChecksum(dst []byte, src []byte, dstRegionLen, numInputs, index, chunkLen int) {
	stride := genericStride
	total := dstRegionLen + stride
	checksum := newRunningChecksum(stride)
	srcLen := len(src)

	for offset := 0; offset < total; {
		posInChunk := offset % chunkLen
		n := chunkLen - posInChunk
		if offset+n > total {
			n = total - offset
		}
		if offset < dstRegionLen && offset+n > dstRegionLen {
			n = dstRegionLen - offset
		}
		chunkIdx := offset / chunkLen
		base := chunkIdx*chunkLen*numInputs + index*chunkLen + posInChunk
		lane := dst[base : base+n]

		if offset < dstRegionLen {
			// data phase: copy available source bytes, zero-pad the rest.
			avail := 0
			if offset < srcLen {
				avail = srcLen - offset
				if avail > n {
					avail = n
				}
				copy(lane[:avail], src[offset:offset+avail])
			}
			for i := avail; i < n; i++ {
				lane[i] = 0
			}
			checksum.foldBlocks(lane)
		} else {
			// checksum phase: data segments stop at dstRegionLen, so this
			// segment is exactly the stride-sized trailing block.
			checksum.store(lane)
		}
		offset += n
	}
}

// FinishPackedWithChecksum implements Backend.FinishPackedWithChecksum.
func (b *GenericBackend) FinishPackedWithChecksum(dst []byte, src []byte, size, numOutputs, index, chunkLen int) bool {
	stride := genericStride
	dstRegionLen := b.AlignToStride(size)
	total := dstRegionLen + stride
	checksum := newRunningChecksum(stride)
	ok := true

	for offset := 0; offset < total; {
		posInChunk := offset % chunkLen
		n := chunkLen - posInChunk
		if offset+n > total {
			n = total - offset
		}
		if offset < dstRegionLen && offset+n > dstRegionLen {
			n = dstRegionLen - offset
		}
		chunkIdx := offset / chunkLen
		base := chunkIdx*chunkLen*numOutputs + index*chunkLen + posInChunk
		lane := src[base : base+n]

		if offset < dstRegionLen {
			checksum.foldBlocks(lane)
			// unpack into dst, truncating at `size`.
			end := offset + n
			if end > size {
				end = size
			}
			if end > offset {
				copy(dst[offset:end], lane[:end-offset])
			}
		} else {
			ok = checksum.equalsBlock(lane)
		}
		offset += n
	}
	return ok
}

// MulAddMulti implements Backend.MulAddMulti: dst[k] ^= sum_i coeffs[i] *
// src[lane i, k] for every 16-bit word position k in the chunk.
func (b *GenericBackend) MulAddMulti(inputGrouping, numInputs int, dst, src []byte, chunkLen int, coeffs []uint16, scratch Scratch, prefetchIn, prefetchOut []byte) {
	words := chunkLen / 2
	t := b.table
	for k := 0; k < words; k++ {
		var acc uint16
		off := 2 * k
		for i := 0; i < numInputs; i++ {
			c := coeffs[i]
			if c == 0 {
				continue
			}
			v := binary.LittleEndian.Uint16(src[i*chunkLen+off:])
			acc ^= t.Mul(c, v)
		}
		d := binary.LittleEndian.Uint16(dst[off:])
		binary.LittleEndian.PutUint16(dst[off:], d^acc)
	}
}

// AddMulti implements Backend.AddMulti (the outputExp == 0 fast path: every
// coefficient is 1, so the sum degenerates into a plain multi-way XOR). The
// interface carries no Scratch parameter for this path (there are no
// per-coefficient products to spill), so the XOR accumulator buffer is a
// plain allocation rather than a pooled one.
func (b *GenericBackend) AddMulti(inputGrouping, numInputs int, dst, src []byte, chunkLen int, prefetchIn, prefetchOut []byte) {
	lanes := make([][]byte, numInputs)
	for i := 0; i < numInputs; i++ {
		lanes[i] = src[i*chunkLen : (i+1)*chunkLen]
	}

	sc := make([]byte, chunkLen)
	xorsimd.Encode(sc, lanes)
	xorsimd.Bytes(dst, dst, sc)
}
