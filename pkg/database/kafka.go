package database

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// NewKafkaWriterWithRetry lifecycle event writer, ready once a probe record is accepted.
// Records are hash-partitioned by key so one conversation stays ordered.
func NewKafkaWriterWithRetry(k KafkaConnection) (*kafka.Writer, error) {
	return retry("kafka", k.RetryCount, k.RetryInterval, func() (*kafka.Writer, error) {
		w := &kafka.Writer{
			Addr:                   kafka.TCP(k.Brokers...),
			Topic:                  k.Topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           10 * time.Millisecond,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := w.WriteMessages(ctx, kafka.Message{Key: []byte("probe"), Value: []byte("{}")}); err != nil {
			w.Close()
			return nil, err
		}
		return w, nil
	})
}
