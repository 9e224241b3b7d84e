package gf16

import "testing"

func TestCoeffIdentityAtZeroExponent(t *testing.T) {
	table := NewTable()
	for _, idx := range []uint16{0, 1, 2, 500, 32767} {
		if got := table.Coeff(idx, 0); got != 1 {
			t.Fatalf("Coeff(%d, 0) = %d, want 1", idx, got)
		}
	}
}

func TestCoeffMatchesBruteForceMultiplication(t *testing.T) {
	table := NewTable()
	// Coeff(i, e) should equal antilog[i+1]^e in the field sense: verify by
	// reconstructing via repeated Mul rather than duplicating the formula.
	for idx := uint16(0); idx < 8; idx++ {
		base := table.antilog[table.log[idx+1]]
		if base != idx+1 {
			t.Fatalf("antilog/log round trip broken for %d", idx+1)
		}
		acc := uint16(1)
		for e := uint16(0); e < 20; e++ {
			got := table.Coeff(idx, e)
			if got != acc {
				t.Fatalf("Coeff(%d, %d) = %d, want %d", idx, e, got, acc)
			}
			acc = table.Mul(acc, idx+1)
		}
	}
}

func TestMul2MatchesMul(t *testing.T) {
	table := NewTable()
	for v := uint32(0); v < FieldSize; v += 997 {
		got := Mul2(uint16(v))
		want := table.Mul(uint16(v), 2)
		if got != want {
			t.Fatalf("Mul2(%d) = %d, want %d", v, got, want)
		}
	}
}

func TestMulZero(t *testing.T) {
	table := NewTable()
	if table.Mul(0, 1234) != 0 || table.Mul(1234, 0) != 0 {
		t.Fatal("multiplying by zero must yield zero")
	}
}

func TestDefaultTableSingleton(t *testing.T) {
	a := DefaultTable()
	b := DefaultTable()
	if a != b {
		t.Fatal("DefaultTable should return the same instance every call")
	}
}

func TestLogAntilogCycleCoversField(t *testing.T) {
	table := NewTable()
	seen := make(map[uint16]bool, FieldSize)
	for e := uint32(0); e < 65535; e++ {
		v := table.antilog[e]
		if seen[v] {
			t.Fatalf("antilog[%d]=%d duplicates an earlier entry", e, v)
		}
		seen[v] = true
	}
	if len(seen) != 65535 {
		t.Fatalf("expected 65535 distinct nonzero elements, got %d", len(seen))
	}
}
