package gf16

import "testing"

func TestSelectBackendDefaultsToGeneric(t *testing.T) {
	b, name, err := SelectBackend("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "generic" || b.Name() != "generic" {
		t.Fatalf("expected generic backend, got %q", name)
	}
}

func TestSelectBackendUnknownFallsBackWithError(t *testing.T) {
	b, name, err := SelectBackend("does-not-exist")
	if err == nil {
		t.Fatal("expected an error for an unknown backend name")
	}
	if name != "generic" || b == nil {
		t.Fatal("expected a usable generic fallback despite the error")
	}
}
