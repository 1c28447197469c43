package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gavinc318-ctrl/Nexora-graprag/internal/db"
	"github.com/gavinc318-ctrl/Nexora-graprag/internal/queue"
	"github.com/gavinc318-ctrl/Nexora-graprag/internal/storage"
	"github.com/gavinc318-ctrl/Nexora-graprag/internal/util"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/leaselock"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/logger"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/logger/console"
	pgxstore "github.com/gavinc318-ctrl/Nexora-graprag/pkg/store/pgx"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/tenant"
	"github.com/gavinc318-ctrl/Nexora-graprag/pkg/worker"

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
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", "err", err)
	}

	// Init s3 client
	s3Client := storage.NewS3Client(ctx)

	// Init pgx client
	pgConn, err := pgxpool.New(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()
	pgConn.Config().AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	chunkStore := pgxstore.NewChunkDBStorage(pgConn)
	graphStore := pgxstore.NewGraphDBStorage(pgConn)
	locks := leaselock.New(pgConn)

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	// Init rabbitmq queues if not exist
	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	queues := []string{queue.DeleteQueue}
	if err := queue.SetupQueues(ch, queues); err != nil {
		logger.Fatal("Failed to declare queues", "err", err)
	}

	// Background graph maintenance for the tenants this worker serves
	tenants := parseWorkerTenants(util.GetEnv("WORKER_TENANTS"))
	if len(tenants) > 0 {
		maintenance := worker.New(graphStore, tenants)
		go maintenance.Run(ctx, util.GetEnvDuration("GRAPH_JOB_POLL_INTERVAL", 10*time.Second))
	} else {
		logger.Warn("No tenants configured, graph maintenance disabled")
	}

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

	for _, queueName := range queues {
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
				case queue.DeleteQueue:
					processingErr = queue.ProcessDeleteMessage(ctx, s3Client, chunkStore, graphStore, locks, qm.msg.Body)
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

				processingDuration := time.Since(startTime)
				hours := int(processingDuration.Hours())
				minutes := int(processingDuration.Minutes()) % 60
				seconds := int(processingDuration.Seconds()) % 60
				logger.Info(
					"Processing time",
					"duration", fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds),
				)
				logger.Info("Waiting for next message")
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}

// parseWorkerTenants reads a comma separated list of "appID:clearance"
// pairs. Graph maintenance runs inside row level security, so the worker
// has to know which tenants it polls for.
func parseWorkerTenants(raw string) []tenant.Context {
	var tenants []tenant.Context
	for _, spec := range strings.Split(raw, ",") {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		appID, clearanceStr, found := strings.Cut(spec, ":")
		clearance := 0
		if found {
			parsed, err := strconv.Atoi(clearanceStr)
			if err != nil {
				logger.Warn("Invalid tenant clearance, skipping", "spec", spec)
				continue
			}
			clearance = parsed
		}
		tc, err := tenant.New(appID, clearance, "worker")
		if err != nil {
			logger.Warn("Invalid tenant spec, skipping", "spec", spec, "err", err)
			continue
		}
		tenants = append(tenants, tc)
	}
	return tenants
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
				ContentType: "text/plain",
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
			ContentType: "text/plain",
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
