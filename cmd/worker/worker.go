package worker

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	appkafka "github.com/sqlmerr/twotty/internal/broker"
	"github.com/sqlmerr/twotty/internal/logger"
	"github.com/sqlmerr/twotty/internal/monitoring"
	"github.com/sqlmerr/twotty/internal/store"
)

var logg = logger.New()

// SetLogger replaces the package logger, so the configured level applies.
func SetLogger(l *logger.Logger) {
	if l != nil {
		logg = l
	}
}

// Worker consumes activity messages from Kafka and records them in Cassandra
// concurrently.
type Worker struct {
	store        store.StoreInterface
	reader       appkafka.KafkaReader
	workerCount  int
	jobQueueSize int
}

// New creates a new concurrent Worker using pre-initialized dependencies.
func New(store store.StoreInterface, reader appkafka.KafkaReader, workerCount, jobQueueSize int) *Worker {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if jobQueueSize <= 0 {
		jobQueueSize = workerCount * 10
	}
	return &Worker{
		store:        store,
		reader:       reader,
		workerCount:  workerCount,
		jobQueueSize: jobQueueSize,
	}
}

// Run starts message reading and concurrent processing. It returns after ctx
// is cancelled and every queued message has been handled.
func (w *Worker) Run(ctx context.Context) {
	if w.workerCount <= 0 {
		w.workerCount = 1
	}
	if w.jobQueueSize <= 0 {
		w.jobQueueSize = 10
	}

	logg.Info("worker", "Starting "+fmt.Sprint(w.workerCount)+" workers with queue size "+fmt.Sprint(w.jobQueueSize))

	jobs := make(chan kafka.Message, w.jobQueueSize)
	var wg sync.WaitGroup

	for i := 0; i < w.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.processLoop(jobs)
		}()
	}

	w.readLoop(ctx, jobs)

	close(jobs)
	wg.Wait()
	logg.Info("worker", "All workers stopped gracefully")
}

// readLoop reads Kafka messages and pushes them into the job queue.
func (w *Worker) readLoop(ctx context.Context, jobs chan<- kafka.Message) {
	var retry int
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := w.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			backoff := time.Duration(math.Min(1000, math.Pow(2, float64(retry)))) * time.Millisecond
			logg.Error("worker", "Kafka read error, backing off", err)
			if !waitWithContext(ctx, backoff) {
				return
			}
			retry++
			continue
		}
		retry = 0

		if len(msg.Value) == 0 {
			if !waitWithContext(ctx, 50*time.Millisecond) {
				return
			}
			continue
		}

		for enqueued := false; !enqueued; {
			select {
			case jobs <- msg:
				enqueued = true
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
				logg.Info("worker", "Queue full, waiting to enqueue Kafka message")
			}
		}
	}
}

// processLoop decodes activity records and stores them until jobs is closed.
func (w *Worker) processLoop(jobs <-chan kafka.Message) {
	for msg := range jobs {
		w.handle(msg)
	}
}

func (w *Worker) handle(msg kafka.Message) {
	a, err := appkafka.DecodeActivity(msg)
	if err != nil {
		monitoring.ActivityProcessedTotal.WithLabelValues("invalid").Inc()
		logg.Error("worker", "Invalid activity in Kafka message", err)
		return
	}

	if err := w.store.RecordActivity(a); err != nil {
		monitoring.ActivityProcessedTotal.WithLabelValues("store_error").Inc()
		logg.Error("worker", "Failed to record activity", err)
		return
	}

	monitoring.ActivityProcessedTotal.WithLabelValues("ok").Inc()
	logg.Debug("worker", "Activity recorded: "+string(a.Kind))
}

// waitWithContext waits for duration or context cancellation.
func waitWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Close shuts down the Kafka reader and the Cassandra session.
func (w *Worker) Close() error {
	logg.Info("worker", "Closing Kafka reader")
	if err := w.reader.Close(); err != nil {
		logg.Error("worker", "Error closing Kafka reader", err)
		return err
	}

	logg.Info("worker", "Closing Cassandra session")
	w.store.Close()
	return nil
}
