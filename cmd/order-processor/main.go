package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"poshub-api/processor"
)

const (
	maxBatchMessages  = 32
	defaultDeduperTTL = 24 * time.Hour
	idlePollDelay     = time.Second
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.New()
	logger.Info("order processor starting")

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	queueName := os.Getenv("ORDERS_QUEUE")
	if connStr == "" || queueName == "" {
		log.Fatal("missing storage config")
	}

	queue, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, nil)
	if err != nil {
		log.Fatalf("queue client: %v", err)
	}

	var deduper processor.Deduper
	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		redisOpts, err := redis.ParseURL(redisConn)
		if err != nil {
			log.Fatalf("invalid REDIS_CONNECTION_STRING: %v", err)
		}
		ttl := defaultDeduperTTL
		if v := os.Getenv("DEDUPER_TTL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				log.Fatalf("invalid DEDUPER_TTL: %v", err)
			}
			ttl = d
		}
		deduper = processor.NewRedisDeduper(redis.NewClient(redisOpts), ttl)
	}

	proc := processor.New(logger, deduper)

	ctx := context.Background()
	for {
		resp, err := queue.DequeueMessages(ctx, &azqueue.DequeueMessagesOptions{
			NumberOfMessages: to.Ptr(int32(maxBatchMessages)),
		})
		if err != nil {
			logger.Errorf("dequeue: %v", err)
			time.Sleep(idlePollDelay)
			continue
		}
		if len(resp.Messages) == 0 {
			time.Sleep(idlePollDelay)
			continue
		}

		msgs := make([]processor.Message, 0, len(resp.Messages))
		receipts := make(map[string]string, len(resp.Messages))
		for _, m := range resp.Messages {
			if m.MessageID == nil || m.PopReceipt == nil {
				continue
			}
			var body []byte
			if m.MessageText != nil {
				body = []byte(*m.MessageText)
			}
			msgs = append(msgs, processor.Message{ID: *m.MessageID, Body: body})
			receipts[*m.MessageID] = *m.PopReceipt
		}

		result := proc.ProcessBatch(ctx, msgs)
		failed := make(map[string]struct{}, len(result.Failures))
		for _, f := range result.Failures {
			failed[f.ItemIdentifier] = struct{}{}
		}

		// Delete only fully processed messages. Failed ones reappear after
		// the visibility timeout and are redriven.
		for _, m := range msgs {
			if _, ok := failed[m.ID]; ok {
				continue
			}
			if _, err := queue.DeleteMessage(ctx, m.ID, receipts[m.ID], nil); err != nil {
				logger.Errorf("delete message %s: %v", m.ID, err)
			}
		}
	}
}
