package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/DanielPopoola/chargecore/internal/application"
	"github.com/DanielPopoola/chargecore/internal/domain"
	"github.com/segmentio/kafka-go"
)

// KafkaQueue publishes capture jobs keyed by charge, so every job for one charge lands on
// the same partition, and consumes them through a consumer group.
//
// A job whose not-before time lies ahead is held by the receiving worker until due. Offsets
// are committed on Ack; a later job may commit past an earlier one still waiting, in which
// case a crash loses the earlier message and the capture poller re-enqueues the charge.
type KafkaQueue struct {
	writer  *kafka.Writer
	reader  *kafka.Reader
	fetchMu sync.Mutex
	metrics counters
	logger  *slog.Logger
}

func NewKafkaQueue(brokers []string, topic, groupID string, logger *slog.Logger) *KafkaQueue {
	return &KafkaQueue{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.ReferenceHash{},
			RequiredAcks:           kafka.RequireAll,
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: false,
		},
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}),
		metrics: newCounters("kafka"),
		logger:  logger,
	}
}

func (q *KafkaQueue) Enqueue(ctx context.Context, job domain.CaptureJob, delay time.Duration) error {
	body, err := encode(job, time.Now().Add(delay))
	if err != nil {
		return err
	}

	err = q.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(job.ChargeExternalID),
		Value: body,
	})
	if err != nil {
		q.metrics.publishError.Inc()
		return err
	}
	q.metrics.published.Inc()
	return nil
}

func (q *KafkaQueue) Receive(ctx context.Context) (application.Delivery, error) {
	for {
		m, err := q.fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil, ErrClosed
			}
			q.metrics.readError.Inc()
			q.logger.ErrorContext(ctx, "failed to read capture job", "error", err)
			if err := waitUntil(ctx, time.Now().Add(time.Second)); err != nil {
				return nil, err
			}
			continue
		}

		job, notBefore, err := decode(m.Value)
		if err != nil {
			q.metrics.invalid.Inc()
			q.logger.ErrorContext(ctx, "dropping malformed capture job",
				"partition", m.Partition,
				"offset", m.Offset,
				"error", err,
			)
			if err := q.reader.CommitMessages(ctx, m); err != nil {
				q.logger.ErrorContext(ctx, "failed to commit malformed capture job", "error", err)
			}
			continue
		}

		if err := waitUntil(ctx, notBefore); err != nil {
			return nil, err
		}
		q.metrics.received.Inc()
		return &kafkaDelivery{job: job, msg: m, queue: q}, nil
	}
}

func (q *KafkaQueue) fetch(ctx context.Context) (kafka.Message, error) {
	q.fetchMu.Lock()
	defer q.fetchMu.Unlock()
	return q.reader.FetchMessage(ctx)
}

func (q *KafkaQueue) Close() error {
	return errors.Join(q.writer.Close(), q.reader.Close())
}

type kafkaDelivery struct {
	job   domain.CaptureJob
	msg   kafka.Message
	queue *KafkaQueue
}

func (d *kafkaDelivery) Job() domain.CaptureJob { return d.job }

func (d *kafkaDelivery) Ack(ctx context.Context) error {
	if err := d.queue.reader.CommitMessages(ctx, d.msg); err != nil {
		return err
	}
	d.queue.metrics.acked.Inc()
	return nil
}
