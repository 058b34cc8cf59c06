package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/gateway"
	"bilancio/internal/log"
	"bilancio/internal/recurrence"
)

// ScheduleRegistry receives every saved recurring transaction so the
// scheduler knows when to fire it.
type ScheduleRegistry interface {
	UpsertSchedule(ctx context.Context, rt core.RecurringTransaction, s recurrence.State) error
}

// RecurringBackend is the part of the finance API that stores recurring
// transactions.
type RecurringBackend interface {
	gateway.RecurringReader
	gateway.RecurringWriter
}

// RecurringService saves recurring transactions through the finance API
// and keeps the scheduler store in step. It implements both gateway ports
// so forms can submit through it.
type RecurringService struct {
	backend   RecurringBackend
	schedules ScheduleRegistry
	now       func() time.Time
}

// NewRecurringService creates the service. schedules may be nil when no
// scheduler runs alongside the API.
func NewRecurringService(backend RecurringBackend, schedules ScheduleRegistry) *RecurringService {
	return &RecurringService{
		backend:   backend,
		schedules: schedules,
		now:       time.Now,
	}
}

func (s *RecurringService) ListRecurring(ctx context.Context) ([]core.RecurringTransaction, error) {
	return s.backend.ListRecurring(ctx)
}

func (s *RecurringService) GetRecurring(ctx context.Context, id string) (core.RecurringTransaction, error) {
	return s.backend.GetRecurring(ctx, id)
}

func (s *RecurringService) CreateRecurring(ctx context.Context, rt core.RecurringTransaction) (core.RecurringTransaction, error) {
	if err := s.prepare(&rt); err != nil {
		return core.RecurringTransaction{}, err
	}
	saved, err := s.backend.CreateRecurring(ctx, rt)
	if err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("create recurring: %w", err)
	}
	s.register(ctx, saved)
	return saved, nil
}

func (s *RecurringService) UpdateRecurring(ctx context.Context, rt core.RecurringTransaction) (core.RecurringTransaction, error) {
	if rt.ID == "" {
		return core.RecurringTransaction{}, fmt.Errorf("update recurring: missing id")
	}
	if err := s.prepare(&rt); err != nil {
		return core.RecurringTransaction{}, err
	}
	saved, err := s.backend.UpdateRecurring(ctx, rt)
	if err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("update recurring %s: %w", rt.ID, err)
	}
	s.register(ctx, saved)
	return saved, nil
}

// prepare validates rt and sets NextRunDate to the first occurrence on or
// after the later of its start date and today. Dates before today are
// never back-filled.
func (s *RecurringService) prepare(rt *core.RecurringTransaction) error {
	if err := rt.Validate(); err != nil {
		return err
	}
	anchor, err := recurrence.AnchorFromWire(rt.DayOfWeek, rt.DayOfMonth)
	if err != nil {
		return err
	}
	from := rt.StartDate
	if today := core.DateOf(s.now()); today.After(from) {
		from = today
	}
	next, err := recurrence.FirstRunDate(rt.Frequency, anchor, from)
	if err != nil {
		return err
	}
	rt.NextRunDate = next
	if !rt.EndDate.IsZero() && next.After(rt.EndDate) {
		rt.IsActive = false
	}
	return nil
}

// register stores the schedule of a saved record. The record is already
// persisted upstream, so a failure is logged rather than returned.
func (s *RecurringService) register(ctx context.Context, rt core.RecurringTransaction) {
	if s.schedules == nil {
		return
	}
	state, err := recurrence.StateFromRecurring(rt)
	if err == nil {
		err = s.schedules.UpsertSchedule(ctx, rt, state)
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to register schedule",
			log.FieldRecurringID, rt.ID,
			log.FieldFrequency, rt.Frequency,
			log.FieldError, err)
		return
	}
	slog.InfoContext(ctx, "Schedule registered",
		log.FieldRecurringID, rt.ID,
		log.FieldNextRunDate, state.NextRunDate.String(),
		"active", state.IsActive)
}
