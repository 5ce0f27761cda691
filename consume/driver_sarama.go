package consume

import (
	"context"
	"errors"
	"sync"
	"time"

	"flowgate/internal/logging"

	"github.com/IBM/sarama"
)

// SaramaDriver consumes one task's topics through a sarama consumer group.
type SaramaDriver struct {
	cfg     *ClientConfig
	query   QueryConfig
	deliver DeliverFunc
	mode    CommitMode

	cl     sarama.Client
	group  sarama.ConsumerGroup
	topics []string
	lim    *Limiter

	mu      sync.Mutex
	pending map[Token]func()

	ackCh  chan Token
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSaramaDriver(cfg *ClientConfig, q QueryConfig, deliver DeliverFunc) Client {
	return &SaramaDriver{cfg: cfg, query: q, deliver: deliver}
}

func (d *SaramaDriver) Config() *ClientConfig { return d.cfg }

func (d *SaramaDriver) Init(ctx context.Context) error {
	detail, err := d.query.Query(ctx, d.cfg)
	if err != nil {
		return err
	}
	d.mode = d.cfg.CommitMode
	d.topics = detail.Topics
	d.pending = make(map[Token]func())
	d.lim = NewLimiter(d.cfg.MaxInFlight)
	d.ackCh = make(chan Token, int(d.cfg.MaxInFlight))

	ver, err := sarama.ParseKafkaVersion(d.cfg.Version)
	if err != nil {
		return err
	}
	sc := sarama.NewConfig()
	sc.Version = ver
	sc.ClientID = sanitizeClientID(d.cfg.Task + "-" + d.cfg.LocalAddr)
	sc.Consumer.Return.Errors = true
	if detail.TLSEnabled {
		sc.Net.TLS.Enable = true
	}
	if detail.SASLUser != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.User, sc.Net.SASL.Password = detail.SASLUser, detail.SASLPass
	}
	switch d.cfg.Strategy {
	case FromEarliest:
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	if d.cl, err = sarama.NewClient(detail.Brokers, sc); err != nil {
		return err
	}
	if d.group, err = sarama.NewConsumerGroupFromClient(detail.GroupID, d.cl); err != nil {
		_ = d.cl.Close()
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan struct{})
	go d.run(loopCtx)
	return nil
}

func (d *SaramaDriver) run(ctx context.Context) {
	defer close(d.done)
	handler := &groupHandler{driver: d}
	for {
		if err := d.group.Consume(ctx, d.topics, handler); err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.L().Warn("sarama-driver: consume session ended", "task", d.cfg.Task, "err", err)
			time.Sleep(time.Second)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (d *SaramaDriver) Close() error {
	if d.cancel != nil {
		d.cancel()
	}
	var errs []error
	if d.group != nil {
		if err := d.group.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.cl != nil && !d.cl.Closed() {
		if err := d.cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.lim != nil {
		d.lim.Close()
	}
	if d.done != nil {
		<-d.done
	}
	return errors.Join(errs...)
}

// Ack enqueues one resolved token; the claim loop applies it. Never blocks:
// under pressure the oldest queued ack is dropped in favour of the new one
// (a dropped ack redelivers at most one record after a restart).
func (d *SaramaDriver) Ack(tok Token) {
	select {
	case d.ackCh <- tok:
	default:
		select {
		case <-d.ackCh:
		default:
		}
		select {
		case d.ackCh <- tok:
		default:
			logging.L().Warn("sarama-driver: ack channel full; dropping ack",
				"task", tok.Task, "topic", tok.Topic, "partition", tok.Partition, "offset", tok.Offset)
		}
	}
}

func (d *SaramaDriver) applyAck(tok Token) {
	d.mu.Lock()
	cb, ok := d.pending[tok]
	if ok {
		delete(d.pending, tok)
	}
	d.mu.Unlock()
	if ok {
		cb()
		d.lim.Release(1)
	}
}

type groupHandler struct {
	driver *SaramaDriver
}

func (*groupHandler) Setup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) Cleanup(_ sarama.ConsumerGroupSession) error {
	h.driver.mu.Lock()
	dropped := len(h.driver.pending)
	h.driver.pending = make(map[Token]func())
	h.driver.mu.Unlock()

	if dropped > 0 {
		h.driver.lim.Release(int64(dropped))
		logging.L().Info("sarama-driver: rebalance cleared pending acks",
			"task", h.driver.cfg.Task, "count", dropped)
	}
	return nil
}

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	d := h.driver
	for {
		if d.mode == CommitE2E && !d.lim.TryAcquire(1) {
			select {
			case tok := <-d.ackCh:
				d.applyAck(tok)
				continue
			case <-sess.Context().Done():
				return sess.Context().Err()
			}
		}

		select {
		case <-sess.Context().Done():
			if d.mode == CommitE2E {
				d.lim.Release(1)
			}
			return sess.Context().Err()

		case tok := <-d.ackCh:
			if d.mode == CommitE2E {
				d.lim.Release(1)
			}
			d.applyAck(tok)
			continue

		case msg, ok := <-claim.Messages():
			if !ok {
				if d.mode == CommitE2E {
					d.lim.Release(1)
				}
				return nil
			}

			rec := &Record{
				Task:      d.cfg.Task,
				Topic:     msg.Topic,
				Partition: msg.Partition,
				Offset:    msg.Offset,
				Key:       msg.Key,
				Value:     msg.Value,
				Headers:   toHeaderMap(msg.Headers),
				Ts:        msg.Timestamp,
			}
			if err := d.deliver(rec); err != nil {
				if d.mode == CommitE2E {
					d.lim.Release(1)
				}
				return err
			}

			if d.mode == CommitAuto {
				sess.MarkMessage(msg, "")
				continue
			}
			tok := Token{Task: d.cfg.Task, Topic: msg.Topic, Partition: msg.Partition, Offset: msg.Offset}
			d.mu.Lock()
			d.pending[tok] = func() { sess.MarkMessage(msg, "") }
			d.mu.Unlock()
		}
	}
}

// sanitizeClientID maps task ids onto sarama's [A-Za-z0-9._-] client-id
// charset so an exotic task name cannot make config validation reject the
// client on every tick.
func sanitizeClientID(s string) string {
	out := []byte(s)
	for i := 0; i < len(out); i++ {
		c := out[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '.', c == '_', c == '-':
		default:
			out[i] = '-'
		}
	}
	return string(out)
}

func toHeaderMap(src []*sarama.RecordHeader) map[string][]byte {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string][]byte, len(src))
	for _, h := range src {
		out[string(h.Key)] = h.Value
	}
	return out
}
