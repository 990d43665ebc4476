package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/sqlmerr/twotty/cmd/server"
	"github.com/sqlmerr/twotty/cmd/worker"
	"github.com/sqlmerr/twotty/internal/api"
	appkafka "github.com/sqlmerr/twotty/internal/broker"
	"github.com/sqlmerr/twotty/internal/credential"
	config "github.com/sqlmerr/twotty/internal/init"
	"github.com/sqlmerr/twotty/internal/logger"
	"github.com/sqlmerr/twotty/internal/monitoring"
	"github.com/sqlmerr/twotty/internal/pages"
	"github.com/sqlmerr/twotty/internal/session"
	"github.com/sqlmerr/twotty/internal/store"
)

func main() {
	// A missing .env file is fine; the environment still applies
	_ = godotenv.Load()

	// Initialize application configuration
	cfg := config.Init()
	logg := logger.New()
	logg.SetLevel(cfg.LogLevel)
	store.SetLogger(logg)
	worker.SetLogger(logg)

	monitoring.Register(prometheus.DefaultRegisterer)

	// Configure Kafka client parameters
	kafkaCfg := appkafka.KafkaConfig{
		Brokers:      []string{cfg.KafkaBroker},
		Topic:        cfg.KafkaTopic,
		Partition:    cfg.KafkaPartition,
		GroupID:      cfg.KafkaGroupID,
		WriteTimeout: cfg.KafkaWriteTO,
		ReadTimeout:  cfg.KafkaReadTO,
	}

	// Setup OS signal handling for graceful shutdown (SIGINT, SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run application depending on selected mode
	switch cfg.Mode {
	case "server":
		runServer(ctx, cfg, kafkaCfg, logg)
	case "worker":
		// Initialize Cassandra store connection
		st, err := store.New()
		if err != nil {
			log.Fatalf("Cassandra connection failed: %v", err)
		}

		kafkaReader := appkafka.NewKafkaReader(kafkaCfg)
		w := worker.New(st, kafkaReader, 0, 0)
		// Close releases both the reader and the store
		defer w.Close()
		w.Run(ctx)
	default:
		log.Fatalf("unknown mode: %s", cfg.Mode)
	}

	log.Println("Shutdown completed")
}

func runServer(ctx context.Context, cfg *config.Config, kafkaCfg appkafka.KafkaConfig, logg *logger.Logger) {
	var sessions *session.Provider
	client := api.New(api.Options{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.APITimeout,
		Policy:  api.ParseClearPolicy(cfg.CredentialPolicy),
		Logger:  logg,
		OnCredentialCleared: func(ctx context.Context, token string) {
			sessions.InvalidateToken(ctx, token)
		},
	})

	var cache session.Cache
	switch cfg.SessionBackend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		cache = session.NewRedisCache(rdb, cfg.SessionTTL)
	default:
		mem := session.NewMemoryCache(cfg.SessionTTL)
		go mem.RunSweeper(ctx, time.Minute)
		cache = mem
	}
	sessions = session.NewProvider(cache, client, logg)

	opts := pages.Options{
		API:      client,
		Sessions: sessions,
		Policy:   api.ParseClearPolicy(cfg.CredentialPolicy),
		Logger:   logg,
	}
	if cfg.ActivityEnabled {
		kafkaWriter, err := appkafka.NewKafkaWriter(ctx, kafkaCfg)
		if err != nil {
			log.Fatalf("Kafka writer init failed: %v", err)
		}
		defer kafkaWriter.Close()
		opts.Activity = appkafka.NewPublisher(kafkaWriter)

		st, err := store.New()
		if err != nil {
			log.Fatalf("Cassandra connection failed: %v", err)
		}
		defer st.Close()
		opts.History = st
	}

	srv := server.New(server.Options{
		Pages:           pages.New(opts),
		Cookie:          credential.CookieOptions{Name: cfg.CookieName, Secure: cfg.CookieSecure},
		LoginRateLimit:  cfg.LoginRateLimit,
		ShutdownTimeout: cfg.ShutdownTimeout,
		ViewTTL:         cfg.SessionTTL,
		Logger:          logg,
	})
	if err := srv.Run(ctx, cfg.ServerAddr); err != nil {
		logg.Error("main", "Server exited with error", err)
	}
}
