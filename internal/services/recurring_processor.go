package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/recurrence"
	"bilancio/internal/storage"
)

// maxCatchUp bounds the runs fired for a single schedule in one pass.
const maxCatchUp = 400

// ScheduleStore is the part of the scheduler store the processor drives.
type ScheduleStore interface {
	ListDueSchedules(ctx context.Context, asOf core.Date) ([]storage.Schedule, error)
	GetSchedule(ctx context.Context, recurringID string) (storage.Schedule, error)
	RecordRun(ctx context.Context, run storage.Run, next recurrence.State) error
	SaveState(ctx context.Context, recurringID string, s recurrence.State) error
	DeactivateSchedule(ctx context.Context, recurringID string) error
	MarkRunPublished(ctx context.Context, recurringID string, runDate core.Date) error
	ListPendingRuns(ctx context.Context, limit int) ([]storage.Run, error)
}

// Publisher hands a fired run to whoever books it.
type Publisher interface {
	PublishRecurringFired(ctx context.Context, msg *amqp.RecurringFiredMessage) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, msg *amqp.RecurringFiredMessage) error

func (f PublisherFunc) PublishRecurringFired(ctx context.Context, msg *amqp.RecurringFiredMessage) error {
	return f(ctx, msg)
}

// ProcessResult summarizes one pass of the processor.
type ProcessResult struct {
	Checked     int
	Fired       int
	Republished int
	Deactivated int
	Failed      int
}

// RecurringProcessor fires every recurring transaction that is due, catching
// up on dates missed while the worker was down. Each run is logged in the
// store before its message is published; runs whose publish failed are
// retried at the start of the next pass.
type RecurringProcessor struct {
	store     ScheduleStore
	publisher Publisher
}

func NewRecurringProcessor(store ScheduleStore, publisher Publisher) *RecurringProcessor {
	return &RecurringProcessor{
		store:     store,
		publisher: publisher,
	}
}

// ProcessDue fires all runs up to and including the calendar day of now.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (ProcessResult, error) {
	var res ProcessResult
	if p.store == nil || p.publisher == nil {
		return res, fmt.Errorf("processor not properly initialized")
	}
	asOf := core.DateOf(now)

	if err := p.republishPending(ctx, &res); err != nil {
		return res, err
	}

	schedules, err := p.store.ListDueSchedules(ctx, asOf)
	if err != nil {
		return res, fmt.Errorf("failed to list due schedules: %w", err)
	}
	res.Checked = len(schedules)

	slog.InfoContext(ctx, "Processing recurring schedules",
		"due", len(schedules),
		"as_of", asOf.String())

	for _, sched := range schedules {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		p.processSchedule(ctx, sched, asOf, &res)
	}

	slog.InfoContext(ctx, "Recurring processing complete",
		"checked", res.Checked,
		"fired", res.Fired,
		"republished", res.Republished,
		"deactivated", res.Deactivated,
		"failed", res.Failed)

	return res, nil
}

func (p *RecurringProcessor) processSchedule(ctx context.Context, sched storage.Schedule, asOf core.Date, res *ProcessResult) {
	id := sched.Template.ID
	state := sched.State

	if err := state.Validate(); err != nil {
		slog.ErrorContext(ctx, "Invalid schedule, deactivating",
			log.FieldRecurringID, id,
			log.FieldError, err)
		if err := p.store.DeactivateSchedule(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to deactivate schedule",
				log.FieldRecurringID, id,
				log.FieldError, err)
		}
		res.Failed++
		return
	}

	for n := 0; state.Due(asOf); n++ {
		if n == maxCatchUp {
			slog.WarnContext(ctx, "Catch-up limit reached, resuming next pass",
				log.FieldRecurringID, id,
				log.FieldNextRunDate, state.NextRunDate.String())
			return
		}
		if ctx.Err() != nil {
			return
		}

		runDate := state.NextRunDate
		next, err := state.Advance()
		if err != nil {
			slog.ErrorContext(ctx, "Failed to advance schedule", runAttrs(sched, runDate, err)...)
			res.Failed++
			return
		}

		msg := amqp.NewRecurringFiredMessage(transactionFor(sched.Template, runDate))
		err = p.store.RecordRun(ctx, storage.Run{
			RecurringID: id,
			RunDate:     runDate,
			MessageID:   msg.MessageID,
			FiredAt:     time.Now(),
		}, next)
		switch {
		case errors.Is(err, storage.ErrDuplicateRun):
			// the date already fired before the schedule was rewound
			slog.InfoContext(ctx, "Skipping run already fired", runAttrs(sched, runDate, nil)...)
			if err := p.store.SaveState(ctx, id, next); err != nil {
				slog.ErrorContext(ctx, "Failed to save schedule state",
					log.FieldRecurringID, id,
					log.FieldError, err)
				res.Failed++
				return
			}
		case err != nil:
			slog.ErrorContext(ctx, "Failed to record run", runAttrs(sched, runDate, err)...)
			res.Failed++
			return
		default:
			res.Fired++
			p.publish(ctx, msg)
		}

		state = next
	}

	if !state.IsActive {
		res.Deactivated++
		slog.InfoContext(ctx, "Recurring schedule finished",
			log.FieldRecurringID, id,
			"end_date", state.EndDate.String())
	}
}

// publish sends a recorded run. A failure leaves the run pending.
func (p *RecurringProcessor) publish(ctx context.Context, msg *amqp.RecurringFiredMessage) bool {
	if err := p.publisher.PublishRecurringFired(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish fired run, will retry",
			log.FieldRecurringID, msg.RecurringID,
			log.FieldRunDate, msg.RunDate.String(),
			log.FieldMessageID, msg.MessageID,
			log.FieldError, err)
		return false
	}
	if err := p.store.MarkRunPublished(ctx, msg.RecurringID, msg.RunDate); err != nil {
		slog.ErrorContext(ctx, "Failed to mark run published",
			log.FieldRecurringID, msg.RecurringID,
			log.FieldRunDate, msg.RunDate.String(),
			log.FieldError, err)
	}
	slog.InfoContext(ctx, "Recurring transaction fired",
		log.FieldRecurringID, msg.RecurringID,
		log.FieldRunDate, msg.RunDate.String(),
		log.FieldAmountCents, msg.AmountCents,
		log.FieldMessageID, msg.MessageID)
	return true
}

func (p *RecurringProcessor) republishPending(ctx context.Context, res *ProcessResult) error {
	pending, err := p.store.ListPendingRuns(ctx, maxCatchUp)
	if err != nil {
		return fmt.Errorf("failed to list pending runs: %w", err)
	}
	for _, run := range pending {
		sched, err := p.store.GetSchedule(ctx, run.RecurringID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to load schedule of pending run",
				log.FieldRecurringID, run.RecurringID,
				log.FieldError, err)
			res.Failed++
			continue
		}
		msg := amqp.NewRecurringFiredMessage(transactionFor(sched.Template, run.RunDate))
		// consumers deduplicate on the original id
		msg.MessageID = run.MessageID
		if p.publish(ctx, msg) {
			res.Republished++
		} else {
			res.Failed++
		}
	}
	return nil
}

// runAttrs identifies one firing of a schedule in log records.
func runAttrs(sched storage.Schedule, runDate core.Date, err error) []any {
	return log.NewFields().
		WithSchedule(sched.Template.ID, string(sched.State.Frequency), runDate.String()).
		WithError(err).
		ToSlice()
}

func transactionFor(rt core.RecurringTransaction, runDate core.Date) core.Transaction {
	return core.Transaction{
		RecurringID: rt.ID,
		Description: rt.Description,
		Amount:      rt.Amount,
		Currency:    rt.Currency,
		Type:        rt.Type,
		Date:        runDate,
		AccountID:   rt.AccountID,
		CategoryID:  rt.CategoryID,
	}
}
