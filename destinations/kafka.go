package destinations

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/sluicekit/sluice/core"
)

// Kafka publishes events to a broker topic as JSON messages, confirming
// each publication through the producer's delivery report. Run it behind a
// buffered sink: confirmation waits on the broker round-trip.
type Kafka struct {
	producer   *kafka.Producer
	topic      string
	sendWindow time.Duration
}

// KafkaOption configures a Kafka destination.
type KafkaOption func(*Kafka)

// WithKafkaSendWindow bounds the wait for each delivery report.
// Default 10s.
func WithKafkaSendWindow(d time.Duration) KafkaOption {
	return func(k *Kafka) {
		k.sendWindow = d
	}
}

// NewKafka creates a producer for the broker and topic. Broker
// connectivity is verified by Probe, not here.
func NewKafka(broker, topic string, opts ...KafkaOption) (*Kafka, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": broker,
		"acks":              "all",
	})
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	k := &Kafka{
		producer:   producer,
		topic:      topic,
		sendWindow: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k, nil
}

// Accept publishes one event and waits for its delivery report.
func (k *Kafka) Accept(event *core.Event) error {
	payload, err := json.Marshal(toDocument(event))
	if err != nil {
		return core.NewDeliveryError(core.ErrCodeRejected, "encode event: %v", err)
	}

	deliveryChan := make(chan kafka.Event, 1)
	err = k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &k.topic, Partition: kafka.PartitionAny},
		Value:          payload,
		Timestamp:      event.Timestamp,
	}, deliveryChan)
	if err != nil {
		return core.NewDeliveryError(core.ErrCodeWriteFailed, "produce to %s: %v", k.topic, err)
	}

	select {
	case e := <-deliveryChan:
		msg, ok := e.(*kafka.Message)
		if !ok {
			return core.NewDeliveryError(core.ErrCodeRejected, "unexpected delivery event %T", e)
		}
		if msg.TopicPartition.Error != nil {
			return core.NewDeliveryError(core.ErrCodeRejected, "broker rejected message: %v", msg.TopicPartition.Error)
		}
		return nil
	case <-time.After(k.sendWindow):
		return core.NewDeliveryError(core.ErrCodeUnreachable, "no delivery report from %s within %s", k.topic, k.sendWindow)
	}
}

// Probe fetches topic metadata under the context deadline.
func (k *Kafka) Probe(ctx context.Context) error {
	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}
	if _, err := k.producer.GetMetadata(&k.topic, false, int(timeout.Milliseconds())); err != nil {
		return fmt.Errorf("broker metadata for %s: %w", k.topic, err)
	}
	return nil
}

// Flush pushes queued messages out, bounded by the context deadline.
func (k *Kafka) Flush(ctx context.Context) core.FlushResult {
	timeout := DefaultKafkaFlushTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if timeout <= 0 {
		return core.FlushTimedOut
	}

	queued := k.producer.Len()
	pending := k.producer.Flush(int(timeout.Milliseconds()))
	switch {
	case pending == 0:
		return core.FlushOK
	case pending < queued:
		return core.FlushPartial
	default:
		return core.FlushTimedOut
	}
}

// DefaultKafkaFlushTimeout bounds Flush when the context has no deadline.
const DefaultKafkaFlushTimeout = 15 * time.Second

// Close flushes briefly and closes the producer.
func (k *Kafka) Close() error {
	k.producer.Flush(int(DefaultKafkaFlushTimeout.Milliseconds()))
	k.producer.Close()
	return nil
}
