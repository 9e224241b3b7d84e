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

import "encoding/binary"

// runningChecksum holds the per-lane checksum state as a vector of 16-bit
// GF(2^16) elements, one per word position in a stride-sized block. Its
// recurrence, checksum' = mul2(checksum) XOR block, is ported directly from
// original_source/gf16/gf16_checksum_sve.h's gf16_checksum_block_sve.
type runningChecksum []uint16

func newRunningChecksum(stride int) runningChecksum {
	return make(runningChecksum, stride/2)
}

// foldBlock folds one stride-sized block (len(block) == 2*len(c)) into the
// running checksum.
func (c runningChecksum) foldBlock(block []byte) {
	for w := range c {
		c[w] = Mul2(c[w])
	}
	for w := range c {
		c[w] ^= binary.LittleEndian.Uint16(block[2*w:])
	}
}

// foldBlocks folds every stride-sized sub-block of data into the running
// checksum. len(data) must be a multiple of the checksum's stride.
func (c runningChecksum) foldBlocks(data []byte) {
	stride := len(c) * 2
	for off := 0; off < len(data); off += stride {
		c.foldBlock(data[off : off+stride])
	}
}

// store writes the checksum vector out as a little-endian byte block.
func (c runningChecksum) store(dst []byte) {
	for w, v := range c {
		binary.LittleEndian.PutUint16(dst[2*w:], v)
	}
}

// equalsBlock reports whether the checksum vector matches a stored block.
func (c runningChecksum) equalsBlock(block []byte) bool {
	for w, v := range c {
		if binary.LittleEndian.Uint16(block[2*w:]) != v {
			return false
		}
	}
	return true
}
