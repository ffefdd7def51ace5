// Worker consumes auth events from Kafka and writes them to the audit log.
// Set KAFKA_BROKERS, AUTH_EVENTS_TOPIC, KAFKA_GROUP_ID and DATABASE_URL.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"danus-dashboard/backend/internal/audit"
	auditrepo "danus-dashboard/backend/internal/audit/repository"
	"danus-dashboard/backend/internal/config"
	"danus-dashboard/backend/internal/db"
	"danus-dashboard/backend/internal/telemetry/producer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("worker: KAFKA_BROKERS is required")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("worker: DATABASE_URL is required")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("worker: db: %v", err)
	}
	defer conn.Close()

	// Events carry their own IP, so no extractor is needed.
	logger := audit.NewLogger(auditrepo.NewPostgresRepository(conn), nil)

	consumer := producer.NewKafkaConsumer(brokers, cfg.AuthEventsTopic, cfg.KafkaGroupID)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		cancel()
	}()

	log.Printf("worker: consuming from %s (group %s) into audit_logs", cfg.AuthEventsTopic, cfg.KafkaGroupID)
	if err := consumer.Run(ctx, logger.Emit, func(err error) {
		log.Printf("worker: %v", err)
	}); err != nil {
		log.Fatalf("worker: kafka read: %v", err)
	}
	log.Println("worker: stopped")
}
