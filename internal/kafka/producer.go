package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("producer closed")

// Producer queues messages on a buffered inbox and hands them to an async
// kafka writer from a single goroutine. Delivery failures are logged, never
// returned to the publisher.
type Producer struct {
	w     *kafka.Writer
	log   *zap.Logger
	inbox chan kafka.Message
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewProducer(brokers []string, topic string, buf int, log *zap.Logger) *Producer {
	p := &Producer{
		log:   log.With(zap.String("topic", topic)),
		inbox: make(chan kafka.Message, buf),
		done:  make(chan struct{}),
	}
	p.w = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion:             p.completion,
	}
	return p
}

func (p *Producer) completion(msgs []kafka.Message, err error) {
	if err != nil {
		p.log.Error("kafka delivery failed", zap.Int("messages", len(msgs)), zap.Error(err))
		return
	}
	p.log.Debug("kafka delivered", zap.Int("messages", len(msgs)))
}

func (p *Producer) Start() {
	go func() {
		defer close(p.done)
		for m := range p.inbox {
			if err := p.w.WriteMessages(context.Background(), m); err != nil {
				p.log.Error("kafka write", zap.Error(err))
			}
		}
		if err := p.w.Close(); err != nil {
			p.log.Error("kafka writer close", zap.Error(err))
		}
	}()
}

// Publish queues one message. It blocks while the inbox is full, until ctx
// is done.
func (p *Producer) Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.inbox <- kafka.Message{Key: key, Value: value, Time: time.Now(), Headers: headers}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting messages; the loop flushes what is queued and closes
// the writer.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
}

func (p *Producer) WaitClosed() { <-p.done }
