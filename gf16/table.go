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

// Package gf16 implements arithmetic over GF(2^16) with the PAR2 field
// polynomial 0x1100B: the log/antilog coefficient tables, a pluggable
// FieldBackend capability set, and the packed-buffer prepare/finish and
// multiply-add kernels a backend exposes to the pipeline package.
package gf16

import "sync"

// Polynomial is the irreducible GF(2) polynomial PAR2 uses to build
// GF(2^16): x^16 + x^12 + x^3 + x + 1, written as the low 17 bits 0x1100B.
const Polynomial = 0x1100B

// FieldSize is the number of elements in GF(2^16).
const FieldSize = 65536

// Table holds the process-wide log/antilog tables used to evaluate
// coeff(inputIndex, outputExponent) and to multiply field elements.
// It is built once and is safe for concurrent read-only use afterwards,
// matching the "global field tables" design note: a first-use latch guards
// one-time initialization, and every reader treats the tables as immutable.
type Table struct {
	log     [FieldSize]uint16
	antilog [FieldSize]uint16
}

var (
	defaultTable     *Table
	defaultTableOnce sync.Once
)

// DefaultTable returns the process-wide singleton Table, building it on
// first use. Every PipelineController shares this instance.
func DefaultTable() *Table {
	defaultTableOnce.Do(func() {
		defaultTable = NewTable()
	})
	return defaultTable
}

// NewTable builds a fresh log/antilog pair. Exposed mainly for tests that
// want to exercise construction in isolation from the process-wide
// singleton.
func NewTable() *Table {
	t := &Table{}

	// log[0] is a sentinel: 0 has no discrete logarithm, and 65535 is one
	// past the largest valid exponent (antilog is cyclic with period
	// 65535), so it can never collide with a real logarithm.
	t.log[0] = 65535

	b := uint32(1)
	for i := uint32(0); i < 65535; i++ {
		t.log[b] = uint16(i)
		t.antilog[i] = uint16(b)
		b <<= 1
		if b&0x10000 != 0 {
			b ^= Polynomial
		}
	}
	// antilog[65535] mirrors antilog[0], since exponent 65535 is congruent
	// to 0. mulLogs and powLog already reduce below 65535, so Coeff/Mul never
	// index this entry; it only keeps the table consistent at full width.
	t.antilog[65535] = t.antilog[0]

	return t
}

// mulLogs combines two discrete logarithms modulo 65535 using the
// shift-and-correct trick from the PAR2 coefficient formula: the sum of two
// values in [0, 65534] fits in 17 bits, so one conditional subtraction after
// folding the carry bit back in is enough to reduce mod 65535.
func mulLogs(a, b uint32) uint32 {
	sum := a + b
	sum = (sum >> 16) + (sum & 65535)
	if sum >= 65535 {
		sum -= 65535
	}
	return sum
}

// powLog raises the field element whose logarithm is baseLog to the e-th
// power, in the log domain: log(x^e) = e * log(x) mod 65535. The product of
// two values bounded by 65535 fits comfortably in 64 bits, so the modulo is
// a plain division rather than the shift-and-correct trick mulLogs uses for
// addition.
func powLog(baseLog uint32, e uint16) uint32 {
	return uint32((uint64(baseLog) * uint64(e)) % 65535)
}

// Mul multiplies two GF(2^16) elements.
func (t *Table) Mul(a, b uint16) uint16 {
	if a == 0 || b == 0 {
		return 0
	}
	la, lb := uint32(t.log[a]), uint32(t.log[b])
	return t.antilog[mulLogs(la, lb)]
}

// Mul2 doubles a GF(2^16) element, i.e. multiplies it by the field's
// primitive element x. This is the recurrence the running per-lane
// checksum uses: checksum' = mul2(checksum) XOR block, folded stride-block
// by stride-block (see original_source/gf16/gf16_checksum_sve.h).
func Mul2(v uint16) uint16 {
	v2 := uint32(v) << 1
	if v2&0x10000 != 0 {
		v2 ^= Polynomial
	}
	return uint16(v2)
}

// Coeff computes the coefficient used to fold input inputIdx into output
// outputExp: the Vandermonde-style coeff = base^outputExp, where
// base = inputIdx+1 (input indices use the PAR2 convention that index 0
// corresponds to the field's first non-identity element, hence the "+1").
// Evaluated in the log domain as antilog[(log[base] * outputExp) mod 65535],
// or 0 if base has no logarithm (the log[0] sentinel case, unreachable for
// valid base >= 1 but kept as a defensive guard). outputExp == 0 always
// yields antilog[0] == 1 regardless of base, which is what lets
// ComputeStage's outputExp == 0 fast path substitute a plain XOR (addMulti)
// for a per-input multiply-accumulate.
func (t *Table) Coeff(inputIdx, outputExp uint16) uint16 {
	a := uint32(t.log[inputIdx+1])
	if a == 65535 {
		return 0
	}
	return t.antilog[powLog(a, outputExp)]
}
