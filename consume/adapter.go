package consume

import (
	"context"
	"fmt"
	"time"
)

// Strategy selects where a freshly created client starts consuming from.
type Strategy string

const (
	FromLatest   Strategy = "from-latest"
	FromEarliest Strategy = "from-earliest"
)

// Record is one consumed message, tagged with the task that owns it.
type Record struct {
	Task      string
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string][]byte
	Ts        time.Time
}

// Token identifies a delivered record for acknowledgement.
type Token struct {
	Task      string
	Topic     string
	Partition int32
	Offset    int64
}

// DeliverFunc hands a consumed record to the ingest path.
type DeliverFunc func(*Record) error

// Client is one live consume connection serving a single task.
//
// Init performs the network-facing setup (resolving the consume detail,
// dialing brokers, starting the fetch loop); nothing runs before it and any
// Init error leaves the client unusable. Ack resolves one delivered record
// once it has been durably processed downstream. Close is best-effort and
// stops the fetch loop.
type Client interface {
	Init(context.Context) error
	Ack(Token)
	Config() *ClientConfig
	Close() error
}

// Factory builds a Client (e.g., SaramaDriver).
type Factory func(*ClientConfig, QueryConfig, DeliverFunc) Client

var registry = map[string]Factory{}

// Register is called from main for each available driver.
func Register(name string, f Factory) {
	registry[name] = f
}

// NewClient returns a driver by name ("sarama", ...).
func NewClient(name string, cfg *ClientConfig, q QueryConfig, deliver DeliverFunc) (Client, error) {
	if f, ok := registry[name]; ok {
		return f(cfg, q, deliver), nil
	}
	return nil, fmt.Errorf("consume: unsupported driver %q", name)
}
