package controller

import (
	"sort"
	"sync"
	"testing"
)

func TestPool_PutGetRemove(t *testing.T) {
	p := NewPool()
	if got := p.Get("a"); got != nil {
		t.Fatalf("expected nil for unknown id, got %+v", got)
	}

	h := &Handle{ID: "a"}
	p.Put("a", h)
	if got := p.Get("a"); got != h {
		t.Fatalf("Get returned wrong handle: %+v", got)
	}
	if p.Len() != 1 {
		t.Fatalf("want len 1, got %d", p.Len())
	}

	if got := p.Remove("a"); got != h {
		t.Fatalf("Remove returned wrong handle: %+v", got)
	}
	if got := p.Remove("a"); got != nil {
		t.Fatalf("second Remove should be a no-op, got %+v", got)
	}
	if p.Len() != 0 {
		t.Fatalf("want empty pool, got %d", p.Len())
	}
}

func TestPool_IDs(t *testing.T) {
	p := NewPool()
	p.Put("b", &Handle{ID: "b"})
	p.Put("a", &Handle{ID: "a"})

	ids := p.IDs()
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestPool_ConcurrentReaders(t *testing.T) {
	p := NewPool()
	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					p.Get("x")
					p.IDs()
					p.Handles()
				}
			}
		}()
	}
	for i := 0; i < 1000; i++ {
		p.Put("x", &Handle{ID: "x"})
		p.Remove("x")
	}
	close(done)
	wg.Wait()
}
