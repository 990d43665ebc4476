package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	appkafka "github.com/sqlmerr/twotty/internal/broker"
	"github.com/sqlmerr/twotty/internal/models"
	"github.com/sqlmerr/twotty/internal/store"
)

// TestWorker_GracefulShutdown ensures that the worker:
// 1. Processes messages from Kafka.
// 2. Records the activity in the store.
// 3. Shuts down gracefully when the context is canceled.
func TestWorker_GracefulShutdown(t *testing.T) {
	mockStore := store.NewMock()

	var msgs []kafka.Message
	for _, id := range []string{"a1", "a2", "a3"} {
		msg, _ := appkafka.EncodeActivity(models.Activity{
			ID:         id,
			UserID:     "u1",
			Kind:       models.ActivityPostCreated,
			OccurredAt: time.Now(),
		})
		msgs = append(msgs, msg)
	}
	mockKafka := &MockKafkaReader{Messages: msgs}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	worker := New(mockStore, mockKafka, 2, 4)

	go func() {
		worker.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
		if got := mockStore.Count("u1"); got != 3 {
			t.Fatalf("expected 3 recorded activities, got %d", got)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("worker did not shutdown gracefully in time")
	}

	if err := worker.Close(); err != nil {
		t.Fatalf("worker Close() error: %v", err)
	}

	if !mockKafka.Closed() {
		t.Fatal("expected Kafka reader to be closed")
	}
}

func TestWorker_ReadErrorsBackOffUntilCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	worker := New(store.NewMock(), &appkafka.MockKafkaFail{}, 1, 1)
	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker kept running after cancellation")
	}
}

// MockKafkaReader simulates a Kafka reader for testing purposes
type MockKafkaReader struct {
	mu       sync.Mutex
	Messages []kafka.Message // Queue of messages to return
	closed   bool
}

// ReadMessage returns the next message in the queue or simulates an idle wait
func (m *MockKafkaReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Messages) == 0 {
		time.Sleep(5 * time.Millisecond)
		return kafka.Message{}, nil
	}

	msg := m.Messages[0]
	m.Messages = m.Messages[1:]
	return msg, nil
}

func (m *MockKafkaReader) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("already closed")
	}
	m.closed = true
	return nil
}

func (m *MockKafkaReader) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
