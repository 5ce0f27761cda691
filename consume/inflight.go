package consume

import "sync"

// Limiter bounds the number of unacknowledged records a driver keeps pending
// in e2e commit mode. Drivers poll with TryAcquire and drain acks while the
// limiter is exhausted, so there is no blocking Acquire.
type Limiter struct {
	mu       sync.Mutex
	capacity int64
	tokens   int64
	closed   bool
}

func NewLimiter(capacity int64) *Limiter {
	return &Limiter{capacity: capacity, tokens: capacity}
}

func (l *Limiter) TryAcquire(n int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.tokens < n {
		return false
	}
	l.tokens -= n
	return true
}

func (l *Limiter) Release(n int64) {
	l.mu.Lock()
	l.tokens += n
	if l.tokens > l.capacity {
		l.tokens = l.capacity
	}
	l.mu.Unlock()
}

func (l *Limiter) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}
