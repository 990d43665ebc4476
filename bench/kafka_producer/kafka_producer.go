package main

import (
	"context"
	"flag"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocql/gocql"
	"github.com/segmentio/kafka-go"

	appkafka "github.com/sqlmerr/twotty/internal/broker"
	"github.com/sqlmerr/twotty/internal/models"
)

// kinds cycles through the activity kinds the frontend publishes.
var kinds = []models.ActivityKind{
	models.ActivityLogin,
	models.ActivityPostCreated,
	models.ActivityFollow,
	models.ActivityPostEdited,
	models.ActivityUnfollow,
	models.ActivityLogout,
}

func main() {
	var broker, topic string
	var total, batchSize, numWorkers, numUsers int

	flag.StringVar(&broker, "broker", "localhost:29092", "Kafka broker address")
	flag.StringVar(&topic, "topic", "twotty-activity", "activity topic")
	flag.IntVar(&total, "n", 100000, "total number of activity records to send")
	flag.IntVar(&batchSize, "batch", 100, "batch size for sending messages")
	flag.IntVar(&numWorkers, "workers", 4, "number of parallel goroutines")
	flag.IntVar(&numUsers, "users", 50, "number of distinct users the records belong to")
	flag.Parse()

	// Kafka writer with asynchronous sending enabled
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers: []string{broker},
		Topic:   topic,
		Async:   true,
	})
	defer w.Close()

	// Synthetic user ids for this run
	userIDs := make([]string, numUsers)
	for i := range userIDs {
		userIDs[i] = gocql.TimeUUID().String()
	}
	start := time.Now()

	var successCount uint64
	var failCount uint64

	// Channel for feeding record indexes to worker goroutines
	jobs := make(chan int, total)
	var wg sync.WaitGroup

	flush := func(batch []kafka.Message) {
		if err := w.WriteMessages(context.Background(), batch...); err != nil {
			atomic.AddUint64(&failCount, uint64(len(batch)))
			fmt.Printf("write error: %v\n", err)
			return
		}
		atomic.AddUint64(&successCount, uint64(len(batch)))
	}

	// --- Start worker goroutines ---
	for wID := 0; wID < numWorkers; wID++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch := make([]kafka.Message, 0, batchSize)

			for i := range jobs {
				msg, err := appkafka.EncodeActivity(models.Activity{
					ID:         gocql.TimeUUID().String(),
					UserID:     userIDs[i%numUsers],
					Username:   fmt.Sprintf("bench%d", i%numUsers),
					Kind:       kinds[i%len(kinds)],
					Subject:    fmt.Sprint(i),
					OccurredAt: time.Now().UTC(),
				})
				if err != nil {
					atomic.AddUint64(&failCount, 1)
					fmt.Printf("encode error: %v\n", err)
					continue
				}

				batch = append(batch, msg)
				if len(batch) >= batchSize {
					flush(batch)
					batch = batch[:0]
				}
			}

			// Send any remaining messages after finishing loop
			if len(batch) > 0 {
				flush(batch)
			}
		}()
	}

	for i := 0; i < total; i++ {
		jobs <- i
	}
	close(jobs)

	wg.Wait()

	// --- Benchmark results ---
	elapsed := time.Since(start)
	fmt.Printf("Total records: %d\n", total)
	fmt.Printf("Successful: %d, Failed: %d\n", successCount, failCount)
	fmt.Printf("Elapsed time: %s\n", elapsed)
	fmt.Printf("Throughput: %.2f msg/s\n", float64(successCount)/elapsed.Seconds())
}
