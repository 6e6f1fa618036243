package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
)

var errInvalidAmount = errors.New("order amount must not be negative")

// Message is one inbound queue message: an opaque identifier plus the raw
// serialized order payload.
type Message struct {
	ID   string
	Body []byte
}

// ItemFailure identifies one message that could not be processed.
type ItemFailure struct {
	ItemIdentifier string `json:"itemIdentifier"`
}

// Result reports which messages of a batch failed. Messages absent from
// Failures are fully processed; the queue infrastructure redrives only the
// listed identifiers.
type Result struct {
	Failures []ItemFailure `json:"batchItemFailures"`
}

// FailedIDs returns the failed identifiers in arrival order.
func (r Result) FailedIDs() []string {
	ids := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		ids = append(ids, f.ItemIdentifier)
	}
	return ids
}

// Deduper prevents reprocessing of already handled messages on an
// at-least-once queue.
type Deduper interface {
	// Add records the message ID and returns true if it was newly added.
	Add(ctx context.Context, id string) (bool, error)
	// Remove deletes a previously added ID, used when processing fails so the
	// redriven message is handled again.
	Remove(ctx context.Context, id string) error
}

type orderPayload struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	CreatedBy string  `json:"createdBy"`
}

// Processor consumes batches of order messages. Each message is handled
// independently; one failure never aborts the batch.
type Processor struct {
	logger  *log.Logger
	deduper Deduper
}

// New creates a Processor. deduper may be nil to disable duplicate tracking.
func New(logger *log.Logger, deduper Deduper) *Processor {
	if logger == nil {
		panic("logger is required")
	}
	return &Processor{logger: logger, deduper: deduper}
}

// ProcessBatch handles every message in arrival order and returns the
// identifiers of those that failed.
func (p *Processor) ProcessBatch(ctx context.Context, msgs []Message) Result {
	var failures []ItemFailure
	for _, msg := range msgs {
		if err := p.processMessage(ctx, msg); err != nil {
			p.logger.WithFields(log.Fields{"message_id": msg.ID}).WithError(err).Error("message processing failed")
			failures = append(failures, ItemFailure{ItemIdentifier: msg.ID})
		}
	}
	if len(failures) > 0 {
		p.logger.WithFields(log.Fields{
			"batch_size": len(msgs),
			"failed":     len(failures),
		}).Warn("batch completed with failures")
	}
	return Result{Failures: failures}
}

func (p *Processor) processMessage(ctx context.Context, msg Message) error {
	if p.deduper != nil {
		added, err := p.deduper.Add(ctx, msg.ID)
		if err != nil {
			return fmt.Errorf("dedupe: %w", err)
		}
		if !added {
			p.logger.WithFields(log.Fields{"message_id": msg.ID}).Debug("duplicate message skipped")
			return nil
		}
	}

	err := p.handle(msg)
	if err != nil && p.deduper != nil {
		if rerr := p.deduper.Remove(ctx, msg.ID); rerr != nil {
			p.logger.WithFields(log.Fields{"message_id": msg.ID}).WithError(rerr).Error("dedupe rollback failed")
		}
	}
	return err
}

// handle runs the per-message pipeline: deserialize, validate, process.
func (p *Processor) handle(msg Message) error {
	var payload orderPayload
	if err := sonic.Unmarshal(msg.Body, &payload); err != nil {
		return fmt.Errorf("deserialize: %w", err)
	}
	// A negative amount is the designated invalid order.
	if payload.Amount < 0 {
		return fmt.Errorf("validate: %w", errInvalidAmount)
	}
	p.logger.WithFields(log.Fields{
		"order_id": payload.ID,
		"amount":   payload.Amount,
		"currency": payload.Currency,
	}).Info("order processed")
	return nil
}
