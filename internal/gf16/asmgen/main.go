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

//go:build ignore

// Command asmgen emits an AVX2 XOR-accumulate kernel (addMultiAVX2) via avo,
// the same way github.com/klauspost/reedsolomon generates its galois_gen_amd64.go
// from a gen/ package. Run with `go run main.go -out ../mulAdd_amd64.s`.
//
// Only the byte-wide XOR accumulate (the AddMulti fast path) is generated
// here; the log/antilog multiply-add table lookups a real kernel would need
// don't vectorize with avo's portable builder API the way a gather/permute
// native GF(2^8) kernel does, so they are left as a TODO for a
// hand-written .s file -- see DESIGN.md.
package main

import (
	. "github.com/mmcloughlin/avo/build"
	. "github.com/mmcloughlin/avo/operand"
)

func main() {
	TEXT("addMultiAVX2", NOSPLIT, "func(dst, src []byte)")
	Doc("addMultiAVX2 XORs src into dst, 32 bytes at a time.")

	dstPtr := Load(Param("dst").Base(), GP64())
	srcPtr := Load(Param("src").Base(), GP64())
	n := Load(Param("dst").Len(), GP64())

	i := GP64()
	MOVQ(U32(0), i)

	Label("loop")
	CMPQ(i, n)
	JGE(LabelRef("done"))

	v := YMM()
	VMOVDQU(Mem{Base: srcPtr, Index: i, Scale: 1}, v)
	acc := YMM()
	VMOVDQU(Mem{Base: dstPtr, Index: i, Scale: 1}, acc)
	VPXOR(v, acc, acc)
	VMOVDQU(acc, Mem{Base: dstPtr, Index: i, Scale: 1})

	ADDQ(U32(32), i)
	JMP(LabelRef("loop"))

	Label("done")
	RET()

	Generate()
}
