package stdout

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"flowgate/consume"
	"flowgate/sink"
)

type Config struct {
	PrintCounter  bool `koanf:"print_counter"`  // prepend seq#
	PrintValue    bool `koanf:"print_value"`    // echo record payload
	ValueMaxBytes int  `koanf:"value_max_bytes"`
	BatchSize     int  `koanf:"ack_batch_size"` // 0 = disabled
	FlushMS       int  `koanf:"ack_flush_ms"`   // 0 = disabled
}

type driver struct {
	cfg Config
	ack sink.EmitFn

	mu      sync.Mutex // guards pending+timer
	pending []consume.Token
	timer   *time.Timer // nil → no timer armed
}

var seq uint64

func (d *driver) Configure(raw any) error {
	c, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("stdout-sink: expected Config, got %T", raw)
	}
	d.cfg = c
	return nil
}

func (d *driver) Push(r *consume.Record) error {
	if d.cfg.PrintCounter {
		fmt.Printf("[sink %06d] %s/%s[%d]@%d\n",
			atomic.AddUint64(&seq, 1), r.Task, r.Topic, r.Partition, r.Offset)
	}
	if d.cfg.PrintValue {
		v := r.Value
		if d.cfg.ValueMaxBytes > 0 && len(v) > d.cfg.ValueMaxBytes {
			v = v[:d.cfg.ValueMaxBytes]
		}
		fmt.Printf("%s\n", v)
	}

	tok := consume.Token{Task: r.Task, Topic: r.Topic, Partition: r.Partition, Offset: r.Offset}

	d.mu.Lock()
	d.pending = append(d.pending, tok)

	if d.cfg.BatchSize > 0 && len(d.pending) >= d.cfg.BatchSize {
		d.flushLocked()
		d.mu.Unlock()
		return nil
	}
	if d.cfg.FlushMS > 0 && d.timer == nil {
		d.timer = time.AfterFunc(time.Duration(d.cfg.FlushMS)*time.Millisecond, d.timerFlush)
	}
	if d.cfg.BatchSize == 0 && d.cfg.FlushMS == 0 {
		d.flushLocked()
	}
	d.mu.Unlock()
	return nil
}

func (d *driver) Close() error {
	d.mu.Lock()
	d.flushLocked()
	d.mu.Unlock()
	return nil
}

func (d *driver) BindAck(fn sink.EmitFn) { d.ack = fn }

// called by the background timer goroutine
func (d *driver) timerFlush() {
	d.mu.Lock()
	d.flushLocked()
	d.mu.Unlock()
}

// must be called with d.mu held
func (d *driver) flushLocked() {
	if len(d.pending) == 0 || d.ack == nil {
		d.stopTimerLocked()
		return
	}
	for _, t := range d.pending {
		d.ack(t)
	}
	d.pending = d.pending[:0]
	d.stopTimerLocked() // re-arm on next Push if needed
}

func (d *driver) stopTimerLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func init() {
	sink.Register("stdout", func() sink.Adapter { return &driver{} })
}
