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
	"log"

	"github.com/klauspost/cpuid"
	"github.com/pkg/errors"
)

// avx2HintBackend is GenericBackend with larger chunk/grouping targets,
// modeling how a real AVX2 kernel would want wider chunks without actually
// hand-writing one (see SPEC_FULL.md §12 and DESIGN.md for why no assembly
// kernel ships here).
type avx2HintBackend struct {
	*GenericBackend
}

func (b *avx2HintBackend) Name() string { return "generic-avx2-hint" }

func (b *avx2HintBackend) Info() Info {
	info := b.GenericBackend.Info()
	info.IdealChunkSize *= 4
	info.IdealInputMultiple *= 4
	return info
}

// backendMethod mirrors std/crypt.go's cryptMethod: a small constructor
// table keyed by a human readable name, built eagerly and consulted by
// SelectBackend.
type backendMethod struct {
	available bool
	build     func() Backend
}

func backendMethods() map[string]backendMethod {
	g := NewGenericBackend()
	return map[string]backendMethod{
		"generic": {
			available: true,
			build:     func() Backend { return g },
		},
		"generic-avx2-hint": {
			available: cpuid.CPU.AVX2(),
			build:     func() Backend { return &avx2HintBackend{GenericBackend: g} },
		},
	}
}

// SelectBackend resolves a backend name into a Backend implementation, the
// way SelectBlockCrypt resolves a cipher name. An unknown name or a name
// for an unavailable backend (spec.md §7's "Backend unavailable" error
// kind) falls back to "generic" with a logged warning rather than failing
// init outright, matching SelectBlockCrypt's AES fallback policy -- except
// when the caller asked for "generic" itself to fail loudly is pointless,
// since generic is always available.
func SelectBackend(name string) (Backend, string, error) {
	methods := backendMethods()
	if name == "" {
		name = "generic"
	}
	if m, ok := methods[name]; ok {
		if m.available {
			return m.build(), name, nil
		}
		log.Printf("gf16: backend %q not available on this host, falling back to generic", name)
		return methods["generic"].build(), "generic", nil
	}
	if name != "generic" {
		log.Printf("gf16: unknown backend %q, falling back to generic", name)
	}
	return methods["generic"].build(), "generic", errors.Errorf("gf16: unknown backend %q", name)
}
