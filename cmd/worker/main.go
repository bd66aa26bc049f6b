package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peakfunnel/intentgraph/internal/queue"
	"github.com/peakfunnel/intentgraph/internal/server"
	"github.com/peakfunnel/intentgraph/internal/storage"
	"github.com/peakfunnel/intentgraph/internal/util"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/peakfunnel/intentgraph/pkg/graph"
	"github.com/peakfunnel/intentgraph/pkg/intent"
	"github.com/peakfunnel/intentgraph/pkg/leaselock"
	"github.com/peakfunnel/intentgraph/pkg/logger"
	"github.com/peakfunnel/intentgraph/pkg/logger/console"
	"github.com/peakfunnel/intentgraph/pkg/propagation"
	"github.com/peakfunnel/intentgraph/pkg/resilience"
	"github.com/peakfunnel/intentgraph/pkg/semantic"
	pgxstore "github.com/peakfunnel/intentgraph/pkg/store/pgx"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.New(console.Params{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	tuning := graph.TuningFromEnv()

	// Init pgx client
	pgCfg, err := pgxpool.ParseConfig(util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Invalid database url", "err", err)
	}
	pgCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pgConn, err := pgxpool.NewWithConfig(ctx, pgCfg)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	locks := leaselock.New(pgConn)

	opts := []resilience.Option{
		resilience.WithMigrator(server.NewMigrator()),
		resilience.WithSeedNodes(resilience.DefaultSeedNodes()),
		resilience.WithSeedEdges(resilience.DefaultSeedEdges()),
	}
	if util.GetEnv("AWS_ENDPOINT") != "" {
		opts = append(opts, resilience.WithSnapshotExporter(storage.NewSnapshotStore(storage.NewS3Client(ctx))))
	}
	manager := resilience.New(pgxstore.New(pgConn), tuning, opts...)
	if err := manager.Initialize(ctx); err != nil {
		logger.Error("Storage initialization degraded", "err", err)
	}

	provider, keywords := server.NewProvider(tuning)
	sem := semantic.New(manager, provider, tuning)
	intents := intent.New(sem, tuning, intent.WithKeywordClient(keywords))
	if err := intents.LoadSnapshot(ctx); err != nil {
		logger.Warn("Cluster snapshot unavailable, starting empty", "err", err)
	}
	prop := propagation.New(sem, intents, tuning)

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	// Init rabbitmq queues if not exist
	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}
	publisher := queue.NewPublisher(ch)

	deps := queue.ReconcileDeps{
		Manager:     manager,
		Propagation: prop,
		Scheduler:   publisher,
	}

	go runMaintenanceLoop(ctx, manager, intents, locks, publisher)

	logger.Info("Listening for messages")

	// Create a single consumer channel with prefetch=1
	// This ensures only ONE message is delivered at a time across all queues
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	err = consumerCh.Qos(1, 0, true)
	if err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	type queuedMessage struct {
		msg       amqp.Delivery
		queueName string
	}

	messageChan := make(chan queuedMessage)

	for _, queueName := range queue.Queues {
		go func(qName string) {
			consumerTag := fmt.Sprintf("%s_consumer", qName)
			msgs, err := consumerCh.Consume(
				qName,
				consumerTag,
				false, // autoAck
				false, // exclusive
				false, // noLocal
				false, // noWait
				nil,   // args
			)
			if err != nil {
				logger.Fatal("Failed to start consuming", "queue", qName, "err", err)
			}

			for {
				select {
				case <-ctx.Done():
					logger.Info("Stopping consumer", "queue", qName)
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("Message channel closed", "queue", qName)
						return
					}
					messageChan <- queuedMessage{msg: msg, queueName: qName}
				}
			}
		}(queueName)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case qm := <-messageChan:
				startTime := time.Now()
				logger.Info("Received message", "queue", qm.queueName)

				var processingErr error
				switch qm.queueName {
				case queue.ReembedQueue:
					processingErr = queue.ProcessReembedMessage(ctx, provider, manager, string(qm.msg.Body))
				case queue.ReconcileQueue:
					processingErr = queue.ProcessReconcileMessage(ctx, deps, string(qm.msg.Body))
				}

				// If there was an error send to retry or dead-letter, otherwise ack the message
				if processingErr != nil {
					logger.Error("Error processing message", "queue", qm.queueName, "err", processingErr)
					handleProcessingError(consumerCh, qm.msg, qm.queueName)
				} else {
					err = qm.msg.Ack(false)
					if err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "queue", qm.queueName)
				}

				logger.Debug("Processing time", "duration", time.Since(startTime).String())
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}

// runMaintenanceLoop drives the periodic jobs. Backups and the daily
// optimization are scheduled through the reconcile queue so a single
// prefetch-1 consumer serializes them with incoming work; the optimization
// additionally runs under a lease so only one worker instance schedules it.
func runMaintenanceLoop(
	ctx context.Context,
	manager *resilience.Manager,
	intents *intent.Engine,
	locks *leaselock.Client,
	publisher *queue.Publisher,
) {
	backupEvery := time.Duration(util.GetEnvNumeric("BACKUP_INTERVAL_MIN", 60)) * time.Minute
	optimizeEvery := time.Duration(util.GetEnvNumeric("OPTIMIZE_INTERVAL_HOURS", 24)) * time.Hour
	centroidEvery := time.Duration(util.GetEnvNumeric("CENTROID_INTERVAL_MIN", 15)) * time.Minute

	backupTicker := time.NewTicker(backupEvery)
	defer backupTicker.Stop()
	optimizeTicker := time.NewTicker(optimizeEvery)
	defer optimizeTicker.Stop()
	centroidTicker := time.NewTicker(centroidEvery)
	defer centroidTicker.Stop()
	recoverTicker := time.NewTicker(30 * time.Second)
	defer recoverTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-recoverTicker.C:
			if manager.Mode() == resilience.ModeFallback {
				if manager.Recover(ctx) {
					logger.Info("[Worker][Recover] Primary store back online")
				}
			}
		case <-backupTicker.C:
			if err := publisher.ScheduleReconcile(ctx, queue.ReconcileBackup); err != nil {
				logger.Error("[Worker][Backup] Failed to schedule", "err", err)
			}
		case <-centroidTicker.C:
			if err := intents.RecomputeCentroids(ctx); err != nil {
				logger.Error("[Worker][Centroids] Recompute failed", "err", err)
				continue
			}
			if err := intents.SaveSnapshot(ctx); err != nil {
				logger.Error("[Worker][Centroids] Snapshot save failed", "err", err)
			}
		case <-optimizeTicker.C:
			err := locks.WithLease(ctx, "daily_optimization", leaselock.Options{
				TTL:         2 * time.Minute,
				TokenPrefix: "worker",
			}, func(ctx context.Context) error {
				if err := publisher.ScheduleReconcile(ctx, queue.ReconcileOptimize); err != nil {
					return err
				}
				return publisher.ScheduleReconcile(ctx, queue.ReconcileRepair)
			})
			if err != nil && err != leaselock.ErrBusy {
				logger.Error("[Worker][Optimize] Failed to schedule", "err", err)
			}
		}
	}
}

func handleProcessingError(ch *amqp.Channel, msg amqp.Delivery, queueName string) {
	retries := 0
	if val, ok := msg.Headers["x-retries"]; ok {
		if v, ok := val.(int32); ok {
			retries = int(v)
		}
	}

	// If message has been retried 10 times, send to dead-letter
	if retries >= 10 {
		dlqName := queueName + "_dlq"
		logger.Info("Sending message to DLQ", "dlq", dlqName)
		pubErr := ch.Publish(
			"",
			dlqName,
			false,
			false,
			amqp.Publishing{
				ContentType: "application/json",
				Body:        msg.Body,
				Headers:     msg.Headers,
			},
		)
		if pubErr != nil {
			logger.Error("Failed to publish to DLQ", "dlq", dlqName, "err", pubErr)
			msg.Nack(false, true)
			return
		}
		msg.Ack(false)
		return
	}

	retryName := queueName + "_retry"
	headers := msg.Headers
	if headers == nil {
		headers = amqp.Table{}
	}
	headers["x-retries"] = retries + 1

	pubErr := ch.Publish(
		"",
		retryName,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        msg.Body,
			Headers:     headers,
		},
	)
	if pubErr != nil {
		logger.Error("Failed to publish to retry queue", "retry_queue", retryName, "err", pubErr)
		msg.Nack(false, true)
		return
	}
	msg.Ack(false)
}
