package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"exchangelink/models"
)

type recordingWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return nil
}

func (w *recordingWriter) snapshot() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

func TestKafkaPublisherWritesKeyedEvents(t *testing.T) {
	w := &recordingWriter{}
	p := newKafkaPublisher(w, 8)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	change := StatusChange{
		ConfigurationID: "cfg-1",
		UserID:          "user-1",
		TenantID:        "tenant-1",
		Exchange:        "binance",
		From:            models.StatusActive,
		To:              models.StatusError,
		Message:         "timeout",
		At:              time.Unix(1_700_000_000, 0).UTC(),
	}
	if err := p.Publish(context.Background(), change); err != nil {
		t.Fatalf("publish: %v", err)
	}
	p.Stop()

	msgs := w.snapshot()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if string(msgs[0].Key) != "cfg-1" {
		t.Fatalf("expected configuration id as key, got %q", msgs[0].Key)
	}
	var decoded StatusChange
	if err := json.Unmarshal(msgs[0].Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.EventID == "" || decoded.To != models.StatusError || decoded.Message != "timeout" {
		t.Fatalf("unexpected event %+v", decoded)
	}
	if !w.closed {
		t.Fatalf("expected writer to be closed on stop")
	}
}

func TestKafkaPublisherRejectsWhenStopped(t *testing.T) {
	p := newKafkaPublisher(&recordingWriter{}, 1)
	if err := p.Publish(context.Background(), StatusChange{}); err == nil {
		t.Fatalf("expected error before start")
	}
}

func TestKafkaPublisherDropsWhenFull(t *testing.T) {
	p := newKafkaPublisher(&recordingWriter{}, 1)
	// mark running without a consumer so the queue fills up
	p.running = true
	if err := p.Publish(context.Background(), StatusChange{ConfigurationID: "a"}); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if err := p.Publish(context.Background(), StatusChange{ConfigurationID: "b"}); err == nil {
		t.Fatalf("expected full queue error")
	}
}

func TestNewKafkaPublisherValidates(t *testing.T) {
	if _, err := NewKafkaPublisher(nil, "topic"); err == nil {
		t.Fatalf("expected error without brokers")
	}
	if _, err := NewKafkaPublisher([]string{"localhost:9092"}, ""); err == nil {
		t.Fatalf("expected error without topic")
	}
}
