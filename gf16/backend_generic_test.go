package gf16

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestPrepareFinishRoundTrip(t *testing.T) {
	b := NewGenericBackend()
	info := b.Info()
	const sliceSize = 64
	const numInputs = 3
	chunkLen := b.AlignToStride(sliceSize + info.Stride)
	dstRegionLen := b.AlignToStride(sliceSize)

	buf := make([]byte, numInputs*(dstRegionLen+info.Stride))
	src := make([]byte, sliceSize)
	rand.New(rand.NewSource(1)).Read(src)

	for lane := 0; lane < numInputs; lane++ {
		data := src
		if lane != 1 {
			data = nil // exercise the zero-pad path for unused lanes
		}
		b.PreparePackedWithChecksum(buf, data, dstRegionLen, numInputs, lane, chunkLen)
	}

	out := make([]byte, sliceSize)
	ok := b.FinishPackedWithChecksum(out, buf, sliceSize, numInputs, 1, chunkLen)
	if !ok {
		t.Fatal("checksum should match after a pure prepare/finish round trip")
	}
	if !bytes.Equal(out, src) {
		t.Fatalf("round trip did not reproduce source bytes: got %v want %v", out, src)
	}

	zeroLane := make([]byte, sliceSize)
	ok = b.FinishPackedWithChecksum(zeroLane, buf, sliceSize, numInputs, 0, chunkLen)
	if !ok {
		t.Fatal("checksum should match for a zero-filled lane")
	}
	for _, v := range zeroLane {
		if v != 0 {
			t.Fatal("unused lane must unpack to all zero bytes")
		}
	}
}

func TestFinishDetectsCorruption(t *testing.T) {
	b := NewGenericBackend()
	info := b.Info()
	const sliceSize = 32
	chunkLen := b.AlignToStride(sliceSize + info.Stride)
	dstRegionLen := b.AlignToStride(sliceSize)

	buf := make([]byte, dstRegionLen+info.Stride)
	src := bytes.Repeat([]byte{0xAB}, sliceSize)
	b.PreparePackedWithChecksum(buf, src, dstRegionLen, 1, 0, chunkLen)

	buf[0] ^= 0x01 // corrupt one bit
	out := make([]byte, sliceSize)
	if ok := b.FinishPackedWithChecksum(out, buf, sliceSize, 1, 0, chunkLen); ok {
		t.Fatal("expected checksum mismatch after corruption")
	}
}

func TestMulAddMultiMatchesBruteForce(t *testing.T) {
	b := NewGenericBackend()
	table := DefaultTable()
	const chunkLen = 32
	const numInputs = 4

	rnd := rand.New(rand.NewSource(2))
	src := make([]byte, numInputs*chunkLen)
	rnd.Read(src)
	coeffs := make([]uint16, numInputs)
	for i := range coeffs {
		coeffs[i] = uint16(rnd.Intn(FieldSize))
	}

	dst := make([]byte, chunkLen)
	b.MulAddMulti(numInputs, numInputs, dst, src, chunkLen, coeffs, b.AllocScratch(), nil, nil)

	want := make([]uint16, chunkLen/2)
	for i := 0; i < numInputs; i++ {
		for k := 0; k < chunkLen/2; k++ {
			v := uint16(src[i*chunkLen+2*k]) | uint16(src[i*chunkLen+2*k+1])<<8
			want[k] ^= table.Mul(coeffs[i], v)
		}
	}
	for k := 0; k < chunkLen/2; k++ {
		got := uint16(dst[2*k]) | uint16(dst[2*k+1])<<8
		if got != want[k] {
			t.Fatalf("word %d: got %d want %d", k, got, want[k])
		}
	}
}

func TestAddMultiIsPlainXOR(t *testing.T) {
	b := NewGenericBackend()
	const chunkLen = 64
	const numInputs = 5

	rnd := rand.New(rand.NewSource(3))
	src := make([]byte, numInputs*chunkLen)
	rnd.Read(src)

	dst := make([]byte, chunkLen)
	b.AddMulti(numInputs, numInputs, dst, src, chunkLen, nil, nil)

	want := make([]byte, chunkLen)
	for i := 0; i < numInputs; i++ {
		for k := 0; k < chunkLen; k++ {
			want[k] ^= src[i*chunkLen+k]
		}
	}
	if !bytes.Equal(dst, want) {
		t.Fatal("AddMulti must equal a plain multi-way XOR of all lanes")
	}
}

func TestAddMultiAccumulatesIntoExistingDst(t *testing.T) {
	b := NewGenericBackend()
	const chunkLen = 16
	src := make([]byte, chunkLen)
	for i := range src {
		src[i] = byte(i + 1)
	}
	dst := make([]byte, chunkLen)
	for i := range dst {
		dst[i] = byte(0xF0)
	}
	want := make([]byte, chunkLen)
	for i := range want {
		want[i] = dst[i] ^ src[i]
	}

	b.AddMulti(1, 1, dst, src, chunkLen, nil, nil)
	if !bytes.Equal(dst, want) {
		t.Fatal("AddMulti must XOR into (not overwrite) the destination")
	}
}
