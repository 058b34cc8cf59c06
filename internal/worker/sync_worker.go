// Package worker books recurring transactions announced on the message queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/cache"
	"bilancio/internal/gateway"
	"bilancio/internal/log"
	"bilancio/internal/sheets"
)

// seenTTL is how long a handled message ID is remembered. Redeliveries
// arrive within seconds; republished runs within a scheduler pass.
const seenTTL = 48 * time.Hour

// SyncWorker posts each fired run to the finance API and mirrors it to the
// spreadsheet ledger when one is configured.
type SyncWorker struct {
	transactions gateway.TransactionWriter
	ledger       sheets.LedgerWriter
	seen         *cache.LRUCache[string]
}

// NewSyncWorker creates a worker. ledger may be nil.
func NewSyncWorker(transactions gateway.TransactionWriter, ledger sheets.LedgerWriter, seenSize int) *SyncWorker {
	if seenSize <= 0 {
		seenSize = 1024
	}
	return &SyncWorker{
		transactions: transactions,
		ledger:       ledger,
		seen:         cache.NewLRUCache[string](seenSize, seenTTL),
	}
}

// Cleaner exposes the dedupe cache to a cache.Manager sweep.
func (w *SyncWorker) Cleaner() cache.Cleaner {
	return w.seen
}

// HandleRecurringFired books one fired run. Returning an error requeues
// the message, so the ledger step never fails a run the API already booked.
func (w *SyncWorker) HandleRecurringFired(ctx context.Context, msg *amqp.RecurringFiredMessage) error {
	if msg == nil {
		return errors.New("nil message")
	}
	if txID, ok := w.seen.Get(msg.MessageID); ok {
		slog.InfoContext(ctx, "Skipping duplicate fired message",
			log.FieldMessageID, msg.MessageID,
			"transaction_id", txID)
		return nil
	}

	slog.InfoContext(ctx, "Processing fired run",
		log.FieldMessageID, msg.MessageID,
		log.FieldRecurringID, msg.RecurringID,
		log.FieldRunDate, msg.RunDate.String())

	booked, err := w.transactions.CreateTransaction(ctx, msg.Transaction())
	if err != nil {
		return fmt.Errorf("create transaction for %s@%s: %w", msg.RecurringID, msg.RunDate, err)
	}
	w.seen.Set(msg.MessageID, booked.ID)

	slog.InfoContext(ctx, "Transaction booked",
		log.FieldMessageID, msg.MessageID,
		"transaction_id", booked.ID,
		log.FieldAmountCents, booked.Amount.Cents)

	w.appendToLedger(ctx, msg)
	return nil
}

func (w *SyncWorker) appendToLedger(ctx context.Context, msg *amqp.RecurringFiredMessage) {
	if w.ledger == nil {
		return
	}
	ref, err := w.ledger.Append(ctx, msg.Transaction())
	if err != nil {
		slog.ErrorContext(ctx, "Failed to append to ledger",
			log.FieldMessageID, msg.MessageID,
			log.FieldRecurringID, msg.RecurringID,
			log.FieldError, err)
		return
	}
	slog.InfoContext(ctx, "Appended to ledger",
		log.FieldMessageID, msg.MessageID,
		log.FieldSheetsRef, ref)
}
