package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	defaultHandlerAttempts = 5
	defaultRetryBackoff    = 500 * time.Millisecond
	maxRetryBackoff        = 10 * time.Second
)

// MessageHandler processes one scraped-course message. A returned error is
// retried in place.
type MessageHandler func(ctx context.Context, msg *IncomingMessage) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ConsumerConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
	// HandlerAttempts bounds how often a failing message is handed to the
	// handler before its offset is committed anyway.
	HandlerAttempts int
	RetryBackoff    time.Duration
}

// Consumer reads the scraped-course topic and feeds the ingest handler.
// Offsets are committed only after the handler has had its chance.
type Consumer struct {
	reader   messageReader
	topic    string
	logger   ectologger.Logger
	handler  MessageHandler
	attempts int
	backoff  time.Duration

	running atomic.Bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

func NewConsumer(cfg config.Config, logger ectologger.Logger, handler MessageHandler) *Consumer {
	return NewConsumerWithConfig(ConsumerConfig{
		Brokers:       cfg.KafkaBrokers,
		Topic:         cfg.KafkaInputTopic,
		ConsumerGroup: cfg.KafkaConsumerGroup,
	}, logger, handler)
}

func NewConsumerWithConfig(cfg ConsumerConfig, logger ectologger.Logger, handler MessageHandler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		StartOffset: kafka.FirstOffset,
	})
	return newConsumer(reader, cfg, logger, handler)
}

func newConsumer(reader messageReader, cfg ConsumerConfig, logger ectologger.Logger, handler MessageHandler) *Consumer {
	attempts := cfg.HandlerAttempts
	if attempts < 1 {
		attempts = defaultHandlerAttempts
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	return &Consumer{
		reader:   reader,
		topic:    cfg.Topic,
		logger:   logger.WithField("topic", cfg.Topic),
		handler:  handler,
		attempts: attempts,
		backoff:  backoff,
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel

	c.running.Store(true)
	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.Info("Kafka consumer started")
	return nil
}

// Stop waits for the in-flight message to finish before closing the reader.
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return c.reader.Close()
}

// Health reports whether the fetch loop is still running.
func (c *Consumer) Health() bool {
	return c.running.Load()
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()
	defer c.running.Store(false)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				c.logger.Info("Kafka consumer stopped")
				return
			}
			c.logger.WithError(err).Error("Failed to fetch message")
			if !sleep(ctx, c.backoff) {
				return
			}
			continue
		}

		c.processMessage(ctx, msg)
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) {
	incoming := newIncomingMessage(msg)

	ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(incoming.Headers))
	ctx, span := tracing.StartSpan(ctx, "kafka.Consumer.processMessage")
	defer span.End()

	log := c.logger.WithContext(ctx).WithFields(map[string]any{
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	status := "processed"
	if err := c.handle(ctx, incoming); err != nil {
		if ctx.Err() != nil {
			// Shutting down: leave the offset for the next member of the group.
			log.WithError(err).Warn("Message interrupted by shutdown")
			return
		}
		status = "failed"
		log.WithError(err).Errorf("Giving up on message after %d attempts", c.attempts)
	}
	metrics.MessagesConsumed.WithLabelValues(status).Inc()

	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		log.WithError(err).Error("Failed to commit message")
	}
}

func (c *Consumer) handle(ctx context.Context, msg *IncomingMessage) error {
	backoff := c.backoff
	var err error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err = c.handler(ctx, msg); err == nil {
			return nil
		}
		if attempt == c.attempts {
			break
		}
		c.logger.WithContext(ctx).WithError(err).Warnf("Message handler failed (attempt %d/%d), retrying in %v", attempt, c.attempts, backoff)
		if !sleep(ctx, backoff) {
			return ctx.Err()
		}
		backoff = min(backoff*2, maxRetryBackoff)
	}
	return err
}

// sleep returns false when ctx ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
