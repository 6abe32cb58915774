package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	kafka "github.com/segmentio/kafka-go"

	"exchangelink/logger"
)

const defaultBuffer = 256

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher queues status changes and writes them to a kafka topic from
// a single goroutine. Publish never blocks on the broker.
type KafkaPublisher struct {
	writer  messageWriter
	queue   chan StatusChange
	log     *logger.Log
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewKafkaPublisher creates a publisher for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic not configured")
	}
	p := newKafkaPublisher(&kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}, defaultBuffer)
	p.log.WithComponent("events").WithFields(logger.Fields{
		"brokers": brokers,
		"topic":   topic,
	}).Debug("kafka publisher initialized")
	return p, nil
}

func newKafkaPublisher(w messageWriter, buffer int) *KafkaPublisher {
	return &KafkaPublisher{
		writer: w,
		queue:  make(chan StatusChange, buffer),
		log:    logger.GetLogger(),
	}
}

// Start launches the delivery goroutine.
func (p *KafkaPublisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("kafka publisher already running")
	}
	p.running = true
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()
	return nil
}

// Publish enqueues change. When the queue is full the event is dropped and
// an error is returned.
func (p *KafkaPublisher) Publish(_ context.Context, change StatusChange) error {
	if change.EventID == "" {
		change.EventID = uuid.NewString()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.running {
		return fmt.Errorf("kafka publisher not running")
	}
	select {
	case p.queue <- change:
		return nil
	default:
		return fmt.Errorf("event queue is full, dropping %s", change.EventID)
	}
}

func (p *KafkaPublisher) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			p.drain()
			return
		case change := <-p.queue:
			p.write(p.ctx, change)
		}
	}
}

// drain flushes whatever is still queued on shutdown.
func (p *KafkaPublisher) drain() {
	for {
		select {
		case change := <-p.queue:
			p.write(context.Background(), change)
		default:
			return
		}
	}
}

func (p *KafkaPublisher) write(ctx context.Context, change StatusChange) {
	log := p.log.WithComponent("events").WithFields(logger.Fields{
		"event_id":         change.EventID,
		"configuration_id": change.ConfigurationID,
		"to":               change.To,
	})
	data, err := json.Marshal(change)
	if err != nil {
		log.WithError(err).Warn("failed to marshal status change")
		return
	}
	msg := kafka.Message{
		Key:   []byte(change.ConfigurationID),
		Value: data,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.WithError(err).Warn("failed to write status change")
		return
	}
	log.Debug("status change written to kafka")
}

// Stop flushes queued events and closes the writer.
func (p *KafkaPublisher) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
	if err := p.writer.Close(); err != nil {
		p.log.WithComponent("events").WithError(err).Warn("failed to close kafka writer")
	}
	p.log.WithComponent("events").Debug("kafka publisher stopped")
}
