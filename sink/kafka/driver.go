package kafka

import (
	"fmt"

	"flowgate/consume"
	"flowgate/sink"

	"github.com/IBM/sarama"
)

// Config for the downstream producer sink. Records are re-published to a
// single topic keyed by their source task.
type Config struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
	Acks    int16    `koanf:"required_acks"` // 0,1,-1
}

type driver struct {
	cfg Config
	ack sink.EmitFn
	p   sarama.SyncProducer
}

func (d *driver) Configure(raw any) error {
	cfg, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("kafka-sink: want Config, got %T", raw)
	}
	d.cfg = cfg

	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.RequiredAcks(cfg.Acks)
	sc.Producer.Return.Successes = true
	var err error
	d.p, err = sarama.NewSyncProducer(cfg.Brokers, sc)
	return err
}

func (d *driver) Push(r *consume.Record) error {
	key := r.Key
	if len(key) == 0 {
		key = []byte(r.Task)
	}
	_, _, err := d.p.SendMessage(&sarama.ProducerMessage{
		Topic: d.cfg.Topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(r.Value),
	})
	if err != nil {
		return err
	}
	if d.ack != nil {
		d.ack(consume.Token{Task: r.Task, Topic: r.Topic, Partition: r.Partition, Offset: r.Offset})
	}
	return nil
}

func (d *driver) Close() error {
	if d.p == nil {
		return nil
	}
	return d.p.Close()
}

func (d *driver) BindAck(fn sink.EmitFn) { d.ack = fn }

func init() {
	sink.Register("kafka", func() sink.Adapter { return &driver{} })
}
