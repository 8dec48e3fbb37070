// Package stream wraps the NATS JetStream log the pipeline runs on: an
// ordered, durable stream of raw posts with consumer-group fan-out.
// Unacknowledged deliveries are redelivered by the server after AckWait,
// which is the system's only retry mechanism for worker failures.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/streamglass/pulse/internal/model"
)

// Subject is the stream subject raw posts are published on.
const Subject = "posts.raw"

// defaultAckWait is how long the server waits for an ack before
// redelivering a message to the consumer group.
const defaultAckWait = 30 * time.Second

// Broker is a connection to the JetStream-backed post log.
type Broker struct {
	nc   *nats.Conn
	js   jetstream.JetStream
	name string

	// AckWait overrides the redelivery timeout for consumers created
	// through EnsureConsumer. Zero means defaultAckWait.
	AckWait time.Duration
}

// Connect connects to NATS and creates the post stream if it does not
// already exist.
func Connect(ctx context.Context, url, name string) (*Broker, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     name,
		Subjects: []string{Subject},
	}); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensuring stream %s: %w", name, err)
	}

	return &Broker{nc: nc, js: js, name: name}, nil
}

// Publish appends a raw post to the log.
func (b *Broker) Publish(ctx context.Context, post *model.RawPost) error {
	data, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("marshaling post: %w", err)
	}
	if _, err := b.js.Publish(ctx, Subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", Subject, err)
	}
	return nil
}

// Connected reports whether the underlying NATS connection is up.
func (b *Broker) Connected() bool {
	return b.nc != nil && b.nc.Status() == nats.CONNECTED
}

// Close closes the NATS connection.
func (b *Broker) Close() error {
	b.nc.Close()
	return nil
}

// EnsureConsumer creates the durable consumer group if absent and binds
// this process to it. Creation is idempotent; every group member calls it
// on startup.
func (b *Broker) EnsureConsumer(ctx context.Context, group string) (*Consumer, error) {
	ackWait := b.AckWait
	if ackWait == 0 {
		ackWait = defaultAckWait
	}

	cons, err := b.js.CreateOrUpdateConsumer(ctx, b.name, jetstream.ConsumerConfig{
		Durable:       group,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       ackWait,
		FilterSubject: Subject,
	})
	if err != nil {
		return nil, fmt.Errorf("ensuring consumer group %s: %w", group, err)
	}
	return &Consumer{cons: cons}, nil
}

// Consumer is a consumer-group member reading batches from the log.
type Consumer struct {
	cons jetstream.Consumer
}

// Fetch reads up to batch pending entries, waiting at most wait for the
// first one. Entries are returned in stream order.
func (c *Consumer) Fetch(batch int, wait time.Duration) ([]Delivery, error) {
	msgs, err := c.cons.Fetch(batch, jetstream.FetchMaxWait(wait))
	if err != nil {
		return nil, fmt.Errorf("fetching batch: %w", err)
	}

	var deliveries []Delivery
	for msg := range msgs.Messages() {
		deliveries = append(deliveries, &jsDelivery{msg: msg})
	}
	if err := msgs.Error(); err != nil {
		return deliveries, fmt.Errorf("fetching batch: %w", err)
	}
	return deliveries, nil
}

// Delivery is a single delivered-but-unacknowledged entry. Entries that
// are never acknowledged are redelivered by the broker after AckWait.
type Delivery interface {
	// ID identifies the entry for logging; stable across redeliveries.
	ID() string

	// Data returns the raw payload.
	Data() []byte

	// Ack acknowledges the entry. Idempotent.
	Ack() error
}

type jsDelivery struct {
	msg jetstream.Msg
}

func (d *jsDelivery) ID() string {
	meta, err := d.msg.Metadata()
	if err != nil {
		return d.msg.Subject()
	}
	return strconv.FormatUint(meta.Sequence.Stream, 10)
}

func (d *jsDelivery) Data() []byte {
	return d.msg.Data()
}

func (d *jsDelivery) Ack() error {
	return d.msg.Ack()
}
