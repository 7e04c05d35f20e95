// Command server runs the homeledger ingestion service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"homeledger/internal/embedding"
	"homeledger/internal/household"
	inghandler "homeledger/internal/ingestion/handler"
	ingmetrics "homeledger/internal/ingestion/metrics"
	"homeledger/internal/ingestion/service"
	rawstore "homeledger/internal/ingestion/store/raw"
	txstore "homeledger/internal/ingestion/store/transaction"
	"homeledger/internal/platform/config"
	"homeledger/internal/platform/httpserver"
	"homeledger/internal/platform/logger"
	platformmetrics "homeledger/internal/platform/metrics"
	"homeledger/internal/platform/postgres"
	platformredis "homeledger/internal/platform/redis"
	recstore "homeledger/internal/recurring/store"
	httptransport "homeledger/internal/transport/http"
)

func main() {
	log := logger.New()
	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(cfg.Postgres)
	if err != nil {
		log.Error("postgres unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var directory household.Directory = household.NewPostgresDirectory(db)
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		directory = household.NewCachedDirectory(directory, redisClient.Client,
			household.WithCacheLogger(log),
		)
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(ingmetrics.New()),
		service.WithStoreTx(postgres.NewTxRunner(db)),
	}
	var queue *embedding.KafkaQueue
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaOpts := []embedding.KafkaOption{embedding.WithLogger(log)}
		if cfg.Kafka.EmbeddingTopic != "" {
			kafkaOpts = append(kafkaOpts, embedding.WithTopic(cfg.Kafka.EmbeddingTopic))
		}
		queue, err = embedding.NewKafkaQueue(ctx, cfg.Kafka.Brokers, kafkaOpts...)
		if err != nil {
			log.Error("kafka unavailable", "error", err)
			os.Exit(1)
		}
		defer queue.Close()
		opts = append(opts, service.WithEmbeddingQueue(queue))
	}

	ingestionService := service.New(
		rawstore.NewPostgres(db),
		txstore.NewPostgres(db),
		recstore.NewPostgres(db),
		directory,
		opts...,
	)

	router := httptransport.NewRouter(log, platformmetrics.New(),
		inghandler.New(ingestionService, log),
	)
	server := httpserver.New(cfg.Server.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("server listening", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}
