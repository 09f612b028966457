package registry

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/user/vidsurface/pkg/mocks"
	"github.com/user/vidsurface/pkg/surface"
)

func TestLookupUnregisteredMisses(t *testing.T) {
	r := New()
	if _, ok := r.Lookup("a"); ok {
		t.Error("expected miss on empty registry")
	}
	if _, err := r.Find("a"); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss, got %v", err)
	}
}

func TestRegisterThenUnregister(t *testing.T) {
	r := New()
	s := surface.New("a", &mocks.Drawable{})

	if prev := r.Register("a", s); prev != nil {
		t.Errorf("expected no previous surface, got %v", prev.ID())
	}
	if got, ok := r.Lookup("a"); !ok || got != s {
		t.Fatal("expected lookup to find the registered surface")
	}

	if removed := r.Unregister("a"); removed != s {
		t.Error("expected Unregister to return the surface")
	}
	if _, ok := r.Lookup("a"); ok {
		t.Error("expected miss after unregister")
	}
	if s.Closed() {
		t.Error("registry must not close surfaces")
	}
	if r.Unregister("a") != nil {
		t.Error("second unregister should remove nothing")
	}
}

func TestRegisterLastWriterWins(t *testing.T) {
	r := New()
	first := surface.New("a", &mocks.Drawable{})
	second := surface.New("a", &mocks.Drawable{})

	r.Register("a", first)
	if prev := r.Register("a", second); prev != first {
		t.Error("expected the overwritten surface to be returned")
	}
	if got, _ := r.Lookup("a"); got != second {
		t.Error("expected the last registered surface")
	}
	if r.UnregisterIf("a", first) {
		t.Error("stale surface must not unregister its replacement")
	}
	if !r.UnregisterIf("a", second) {
		t.Error("expected current surface to be unregistered")
	}
}

func TestIDsAndLen(t *testing.T) {
	r := New()
	for _, id := range []string{"c", "a", "b"} {
		r.Register(id, surface.New(id, &mocks.Drawable{}))
	}
	if r.Len() != 3 {
		t.Errorf("expected 3 entries, got %d", r.Len())
	}
	ids := r.IDs()
	if fmt.Sprint(ids) != "[a b c]" {
		t.Errorf("unexpected ids %v", ids)
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i%3)
			for j := 0; j < 200; j++ {
				s := surface.New(id, &mocks.Drawable{})
				r.Register(id, s)
				r.Lookup(id)
				r.UnregisterIf(id, s)
			}
		}(i)
	}
	wg.Wait()
	if r.Len() > 3 {
		t.Errorf("expected at most 3 entries, got %d", r.Len())
	}
}
