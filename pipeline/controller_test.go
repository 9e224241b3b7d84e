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
	"bytes"
	"encoding/binary"
	"math/rand"
	"runtime"
	"sync"
	"testing"

	"github.com/xtaci/gf2p16/gf16"
)

// getOutputSync blocks until GetOutput's callback has fired and returns its
// checksumOK result.
func getOutputSync(t *testing.T, c *Controller, outputIndex int, dst []byte) bool {
	t.Helper()
	var wg sync.WaitGroup
	wg.Add(1)
	var ok bool
	c.GetOutput(outputIndex, dst, func(_ []byte, _ int, result bool) {
		ok = result
		wg.Done()
	})
	wg.Wait()
	return ok
}

func endInputSync(c *Controller) {
	var wg sync.WaitGroup
	wg.Add(1)
	c.EndInput(func() { wg.Done() })
	wg.Wait()
}

// TestPipelineScenario1 covers a single batch of two inputs and two recovery
// exponents: exponent 0 degenerates to plain XOR (AddMulti), exponent 1
// exercises the general coefficient path (MulAddMulti).
func TestPipelineScenario1(t *testing.T) {
	const sliceSize = 64
	data0 := make([]byte, sliceSize)
	data1 := make([]byte, sliceSize)
	rand.New(rand.NewSource(1)).Read(data0)
	rand.New(rand.NewSource(2)).Read(data1)

	c := New(Config{SliceSize: sliceSize, TargetInputGrouping: 4, NumThreads: 1})
	defer c.Deinit(nil)
	c.SetRecoverySlices([]uint16{0, 1})

	if !c.AddInput(data0, 0, false, nil) {
		t.Fatal("addInput 0 rejected")
	}
	if !c.AddInput(data1, 1, true, nil) {
		t.Fatal("addInput 1 rejected")
	}
	endInputSync(c)

	out0 := make([]byte, sliceSize)
	if !getOutputSync(t, c, 0, out0) {
		t.Fatal("output 0 checksum mismatch")
	}
	want0 := make([]byte, sliceSize)
	for i := range want0 {
		want0[i] = data0[i] ^ data1[i]
	}
	if !bytes.Equal(out0, want0) {
		t.Fatalf("output 0 = %x, want %x", out0, want0)
	}

	out1 := make([]byte, sliceSize)
	if !getOutputSync(t, c, 1, out1) {
		t.Fatal("output 1 checksum mismatch")
	}
	table := gf16.DefaultTable()
	want1 := make([]byte, sliceSize)
	for w := 0; w < sliceSize/2; w++ {
		v0 := binary.LittleEndian.Uint16(data0[2*w:])
		v1 := binary.LittleEndian.Uint16(data1[2*w:])
		r := table.Mul(table.Coeff(0, 1), v0) ^ table.Mul(table.Coeff(1, 1), v1)
		binary.LittleEndian.PutUint16(want1[2*w:], r)
	}
	if !bytes.Equal(out1, want1) {
		t.Fatalf("output 1 = %x, want %x", out1, want1)
	}
}

// TestPipelineScenario2 covers a trailing partial batch flushed by endInput:
// 5 inputs with inputGrouping 4 dispatch as a full batch of 4 followed by a
// batch of 1, each reported via onProgress in submission order.
func TestPipelineScenario2(t *testing.T) {
	const sliceSize = 64

	type progressRec struct {
		n     int
		first uint16
	}
	var mu sync.Mutex
	var records []progressRec

	c := New(Config{
		SliceSize:           sliceSize,
		TargetInputGrouping: 4,
		NumThreads:          2,
		OnProgress: func(n int, first uint16) {
			mu.Lock()
			records = append(records, progressRec{n: n, first: first})
			mu.Unlock()
		},
	})
	defer c.Deinit(nil)
	c.SetRecoverySlices([]uint16{0})

	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 5; i++ {
		buf := make([]byte, sliceSize)
		rnd.Read(buf)
		if !c.AddInput(buf, uint16(i), false, nil) {
			t.Fatalf("addInput %d rejected", i)
		}
	}
	endInputSync(c)

	mu.Lock()
	defer mu.Unlock()
	if len(records) != 2 {
		t.Fatalf("expected 2 progress events, got %d: %+v", len(records), records)
	}
	if records[0].n != 4 || records[0].first != 0 {
		t.Fatalf("batch 1 mismatch: %+v", records[0])
	}
	if records[1].n != 1 || records[1].first != 4 {
		t.Fatalf("batch 2 mismatch: %+v", records[1])
	}
}

// TestPipelineScenario3 covers backpressure: once both staging areas are
// full, addInput must reject until a batch finishes and frees one.
func TestPipelineScenario3(t *testing.T) {
	const sliceSize = 64

	progressCh := make(chan struct{}, 8)
	c := New(Config{
		SliceSize:           sliceSize,
		TargetInputGrouping: 4,
		NumThreads:          1,
		OnProgress:          func(int, uint16) { progressCh <- struct{}{} },
	})
	defer c.Deinit(nil)
	c.SetRecoverySlices([]uint16{0})

	rnd := rand.New(rand.NewSource(3))
	idx := uint16(0)
	fillOneArea := func() {
		for i := 0; i < 4; i++ {
			buf := make([]byte, sliceSize)
			rnd.Read(buf)
			if !c.AddInput(buf, idx, false, nil) {
				t.Fatalf("addInput %d unexpectedly rejected while filling", idx)
			}
			idx++
		}
	}
	fillOneArea()
	fillOneArea()

	buf := make([]byte, sliceSize)
	rnd.Read(buf)
	if c.AddInput(buf, idx, false, nil) {
		t.Fatal("expected rejection with both staging areas full")
	}

	<-progressCh

	if !c.AddInput(buf, idx, false, nil) {
		t.Fatal("expected addInput to succeed once a staging area freed up")
	}
}

// TestPipelineScenario4 covers shrinking currentSliceSize: a run with
// currentSliceSize set below the originally configured size must reproduce
// exactly the corresponding prefix of a full-size run over the same inputs.
func TestPipelineScenario4(t *testing.T) {
	const fullSize = 64
	const shrunk = 32

	data0 := make([]byte, fullSize)
	data1 := make([]byte, fullSize)
	rand.New(rand.NewSource(11)).Read(data0)
	rand.New(rand.NewSource(12)).Read(data1)

	full := New(Config{SliceSize: fullSize, TargetInputGrouping: 4, NumThreads: 1})
	defer full.Deinit(nil)
	full.SetRecoverySlices([]uint16{0})
	full.AddInput(data0, 0, false, nil)
	full.AddInput(data1, 1, true, nil)
	endInputSync(full)
	fullOut := make([]byte, fullSize)
	if !getOutputSync(t, full, 0, fullOut) {
		t.Fatal("full-size checksum mismatch")
	}

	shrunkCtl := New(Config{SliceSize: fullSize, TargetInputGrouping: 4, NumThreads: 1})
	defer shrunkCtl.Deinit(nil)
	shrunkCtl.SetCurrentSliceSize(shrunk)
	shrunkCtl.SetRecoverySlices([]uint16{0})
	shrunkCtl.AddInput(data0, 0, false, nil)
	shrunkCtl.AddInput(data1, 1, true, nil)
	endInputSync(shrunkCtl)
	shrunkOut := make([]byte, shrunk)
	if !getOutputSync(t, shrunkCtl, 0, shrunkOut) {
		t.Fatal("shrunk checksum mismatch")
	}

	if !bytes.Equal(shrunkOut, fullOut[:shrunk]) {
		t.Fatalf("shrunk output %x diverges from full output's prefix %x", shrunkOut, fullOut[:shrunk])
	}
}

// TestPipelineScenario5 covers checksum detection: corrupting one output's
// region of the shared accumulator must fail only that output's checksum,
// leaving sibling outputs unaffected.
func TestPipelineScenario5(t *testing.T) {
	const sliceSize = 64
	data0 := make([]byte, sliceSize)
	data1 := make([]byte, sliceSize)
	rand.New(rand.NewSource(21)).Read(data0)
	rand.New(rand.NewSource(22)).Read(data1)

	c := New(Config{SliceSize: sliceSize, TargetInputGrouping: 4, NumThreads: 1})
	defer c.Deinit(nil)
	c.SetRecoverySlices([]uint16{0, 1})
	c.AddInput(data0, 0, false, nil)
	c.AddInput(data1, 1, true, nil)
	endInputSync(c)

	// Flip a bit inside output 0's data region only; output 1's region
	// starts at a disjoint offset (see accumulator.chunkSlice).
	c.acc.buf[0] ^= 0x01

	out0 := make([]byte, sliceSize)
	if ok := getOutputSync(t, c, 0, out0); ok {
		t.Fatal("expected checksum mismatch after corrupting output 0")
	}

	out1 := make([]byte, sliceSize)
	if ok := getOutputSync(t, c, 1, out1); !ok {
		t.Fatal("output 1 should be unaffected by output 0's corruption")
	}
}

// TestPipelineScenario6 covers an 8-worker stress run against a
// single-worker reference run over the same synthetic inputs, asserting
// bit-for-bit identical outputs across every recovery slice.
func TestPipelineScenario6(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress comparison in -short mode")
	}

	const (
		sliceSize  = 256
		numInputs  = 1024
		numOutputs = 16
	)
	exponents := make([]uint16, numOutputs)
	for i := range exponents {
		exponents[i] = uint16(i)
	}

	genInputs := func(seed int64) [][]byte {
		rnd := rand.New(rand.NewSource(seed))
		bufs := make([][]byte, numInputs)
		for i := range bufs {
			b := make([]byte, sliceSize)
			rnd.Read(b)
			bufs[i] = b
		}
		return bufs
	}

	run := func(threads int, bufs [][]byte) [][]byte {
		c := New(Config{SliceSize: sliceSize, TargetInputGrouping: 12, NumThreads: threads})
		defer c.Deinit(nil)
		c.SetRecoverySlices(exponents)

		for i, b := range bufs {
			for !c.AddInput(b, uint16(i), false, nil) {
				runtime.Gosched()
			}
		}
		endInputSync(c)

		outs := make([][]byte, numOutputs)
		var wg sync.WaitGroup
		wg.Add(numOutputs)
		for o := 0; o < numOutputs; o++ {
			out := make([]byte, sliceSize)
			outs[o] = out
			c.GetOutput(o, out, func(_ []byte, outputIndex int, ok bool) {
				if !ok {
					t.Errorf("output %d checksum mismatch", outputIndex)
				}
				wg.Done()
			})
		}
		wg.Wait()
		return outs
	}

	bufsA := genInputs(99)
	bufsB := genInputs(99)

	single := run(1, bufsA)
	multi := run(8, bufsB)

	for o := 0; o < numOutputs; o++ {
		if !bytes.Equal(single[o], multi[o]) {
			t.Fatalf("output %d diverges between single- and multi-threaded runs", o)
		}
	}
}
