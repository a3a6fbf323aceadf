package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"classpin/internal/audit"
	"classpin/internal/config"
	"classpin/internal/queue"
	"classpin/internal/store"
)

// Worker drains the audit queue and persists events. Audit publishing is
// fire-and-forget on the API side; this is the side that actually writes.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL, store.DBOptions{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, cfg.AuditQueueKey)
	}

	auditStore := audit.NewStore(db.Client)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("audit worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != audit.MessageType {
			continue
		}

		var evt audit.Event
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			log.Printf("malformed audit event dropped: %v", err)
			continue
		}

		if err := auditStore.InsertEvent(ctx, evt); err != nil {
			log.Printf("audit insert failed for %s: %v", evt.ID, err)
			continue
		}
	}

	log.Println("audit worker stopped")
}
