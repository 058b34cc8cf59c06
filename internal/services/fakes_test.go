package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/recurrence"
	"bilancio/internal/storage"
)

type fakeStore struct {
	mu        sync.Mutex
	schedules map[string]storage.Schedule
	runs      map[string]storage.Run
	listErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		schedules: make(map[string]storage.Schedule),
		runs:      make(map[string]storage.Run),
	}
}

func runKey(id string, d core.Date) string { return id + "@" + d.String() }

func (f *fakeStore) UpsertSchedule(_ context.Context, rt core.RecurringTransaction, s recurrence.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schedules[rt.ID] = storage.Schedule{Template: rt, State: s}
	return nil
}

func (f *fakeStore) ListDueSchedules(_ context.Context, asOf core.Date) ([]storage.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []storage.Schedule
	for _, s := range f.schedules {
		if s.State.IsActive && !s.State.NextRunDate.After(asOf) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Template.ID < out[j].Template.ID })
	return out, nil
}

func (f *fakeStore) GetSchedule(_ context.Context, id string) (storage.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.schedules[id]
	if !ok {
		return storage.Schedule{}, storage.ErrScheduleNotFound
	}
	return s, nil
}

func (f *fakeStore) RecordRun(_ context.Context, run storage.Run, next recurrence.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.schedules[run.RecurringID]
	if !ok {
		return storage.ErrScheduleNotFound
	}
	key := runKey(run.RecurringID, run.RunDate)
	if _, dup := f.runs[key]; dup {
		return fmt.Errorf("%s: %w", key, storage.ErrDuplicateRun)
	}
	f.runs[key] = run
	s.State = next
	f.schedules[run.RecurringID] = s
	return nil
}

func (f *fakeStore) SaveState(_ context.Context, id string, st recurrence.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.schedules[id]
	if !ok {
		return storage.ErrScheduleNotFound
	}
	s.State = st
	f.schedules[id] = s
	return nil
}

func (f *fakeStore) DeactivateSchedule(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.schedules[id]
	if !ok {
		return storage.ErrScheduleNotFound
	}
	s.State.IsActive = false
	f.schedules[id] = s
	return nil
}

func (f *fakeStore) MarkRunPublished(_ context.Context, id string, d core.Date) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := runKey(id, d)
	run, ok := f.runs[key]
	if !ok {
		return errors.New("no such run")
	}
	run.PublishedAt = time.Now()
	f.runs[key] = run
	return nil
}

func (f *fakeStore) ListPendingRuns(_ context.Context, limit int) ([]storage.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.Run
	for _, r := range f.runs {
		if r.PublishedAt.IsZero() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunDate.Before(out[j].RunDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) schedule(id string) storage.Schedule {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.schedules[id]
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []*amqp.RecurringFiredMessage
	err  error
}

func (p *fakePublisher) PublishRecurringFired(_ context.Context, msg *amqp.RecurringFiredMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msg)
	return nil
}

func (p *fakePublisher) dates() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.sent))
	for i, m := range p.sent {
		out[i] = m.RunDate.String()
	}
	return out
}
