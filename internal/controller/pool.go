package controller

import (
	"sync"

	"flowgate/consume"
)

// Handle is one live consume client plus the identity and configuration it
// was built from. Handles are owned by the Pool from Put until Remove.
type Handle struct {
	ID     string
	Client consume.Client
	Config *consume.ClientConfig

	cb *deliverCallback
}

// Ack forwards a resolved record to the handle's live client through the
// bound delivery callback.
func (h *Handle) Ack(tok consume.Token) {
	if h.cb != nil {
		h.cb.Ack(tok)
	}
}

// Pool maps task ids to live handles. The reconciler is the only writer;
// the ack path reads concurrently from arbitrary goroutines.
type Pool struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

func NewPool() *Pool {
	return &Pool{handles: make(map[string]*Handle)}
}

func (p *Pool) Get(id string) *Handle {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.handles[id]
}

func (p *Pool) Put(id string, h *Handle) {
	p.mu.Lock()
	p.handles[id] = h
	p.mu.Unlock()
}

// Remove evicts and returns the handle for id, or nil when absent. Removing
// an absent id is a no-op so a shutdown sweep can race a reconcile tick.
func (p *Pool) Remove(id string) *Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.handles[id]
	if !ok {
		return nil
	}
	delete(p.handles, id)
	return h
}

func (p *Pool) IDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.handles))
	for id := range p.handles {
		ids = append(ids, id)
	}
	return ids
}

func (p *Pool) Handles() []*Handle {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Handle, 0, len(p.handles))
	for _, h := range p.handles {
		out = append(out, h)
	}
	return out
}

func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.handles)
}
