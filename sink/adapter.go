package sink

import (
	"fmt"

	"flowgate/consume"
)

// EmitFn is what a sink calls to acknowledge a record back to the consume
// client that fetched it, once the record is durably processed.
type EmitFn func(consume.Token)

// Adapter is the common behaviour every ingest sink exposes.
type Adapter interface {
	Configure(any) error        // driver-specific config struct
	Push(*consume.Record) error // consume one record
	Close() error               // idempotent
}

// AckAware is optional; sinks that resolve records asynchronously implement
// it and the engine wires the callback if present.
type AckAware interface {
	BindAck(EmitFn)
}

type factory = func() Adapter

var reg = map[string]factory{}

func Register(name string, f factory) { reg[name] = f }

func NewAdapter(name string) (Adapter, error) {
	if f, ok := reg[name]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown sink %q", name)
}
