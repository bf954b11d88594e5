package registry

import (
	"runtime"
	"testing"
	"time"
	"weak"
)

type fakeMap struct {
	name string
	buf  [64]byte
}

type fakeProvider struct {
	m     weak.Pointer[fakeMap]
	calls int
}

func newProvider(m weak.Pointer[fakeMap]) *fakeProvider { return &fakeProvider{m: m} }

func TestGet_SameMapSameProvider(t *testing.T) {
	r := New[fakeMap, *fakeProvider]()
	a := &fakeMap{name: "a"}
	b := &fakeMap{name: "b"}

	pa := r.Get(a, newProvider)
	pa.calls++
	if got := r.Get(a, newProvider); got != pa || got.calls != 1 {
		t.Fatalf("second Get returned a different provider")
	}
	if pb := r.Get(b, newProvider); pb == pa {
		t.Fatalf("distinct maps share a provider")
	}
	if r.Len() != 2 {
		t.Fatalf("Len=%d want 2", r.Len())
	}
	if pa.m.Value() != a {
		t.Fatalf("provider bound to the wrong map")
	}
	runtime.KeepAlive(a)
	runtime.KeepAlive(b)
}

func TestGet_NilMapNotCached(t *testing.T) {
	r := New[fakeMap, *fakeProvider]()
	p1 := r.Get(nil, newProvider)
	p2 := r.Get(nil, newProvider)
	if p1 == p2 {
		t.Fatal("nil map providers must not be shared")
	}
	if p1.m.Value() != nil {
		t.Fatal("nil map provider has a live map")
	}
	if r.Len() != 0 {
		t.Fatalf("Len=%d want 0", r.Len())
	}
}

func register(r *Registry[fakeMap, *fakeProvider]) {
	m := &fakeMap{name: "short-lived"}
	r.Get(m, newProvider)
}

func TestEntryDroppedAfterMapCollected(t *testing.T) {
	r := New[fakeMap, *fakeProvider]()
	keep := &fakeMap{name: "kept"}
	r.Get(keep, newProvider)
	register(r)

	deadline := time.Now().Add(5 * time.Second)
	for r.Len() > 1 && time.Now().Before(deadline) {
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
	if r.Len() != 1 {
		t.Fatalf("Len=%d want 1 after collection", r.Len())
	}
	n := 0
	r.Each(func(*fakeProvider) { n++ })
	if n != 1 {
		t.Fatalf("Each visited %d providers", n)
	}
	runtime.KeepAlive(keep)
}
