package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilancio/internal/core"
	"bilancio/internal/gateway/memory"
	"bilancio/internal/recurrence"
)

func newRecurringService(t *testing.T, today core.Date) (*RecurringService, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	svc := NewRecurringService(memory.New(nil, nil), store)
	svc.now = func() time.Time { return today.Time.Add(9 * time.Hour) }
	return svc, store
}

func TestRecurringService_CreateSeedsNextRunAndRegisters(t *testing.T) {
	svc, store := newRecurringService(t, core.NewDate(2024, 1, 10))

	rt := rent()
	rt.ID = ""
	rt.StartDate = core.NewDate(2024, 1, 1)
	rt.DayOfMonth = 5

	saved, err := svc.CreateRecurring(context.Background(), rt)
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	// the 5th of January is already past, no back-fill
	assert.Equal(t, "2024-02-05", saved.NextRunDate.String())

	sched, err := store.GetSchedule(context.Background(), saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-05", sched.State.NextRunDate.String())
	assert.True(t, sched.State.IsActive)
}

func TestRecurringService_FutureStart(t *testing.T) {
	svc, _ := newRecurringService(t, core.NewDate(2024, 1, 10))

	rt := rent()
	rt.ID = ""
	rt.StartDate = core.NewDate(2024, 3, 1)

	saved, err := svc.CreateRecurring(context.Background(), rt)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-31", saved.NextRunDate.String())
}

func TestRecurringService_EndedScheduleIsInactive(t *testing.T) {
	svc, store := newRecurringService(t, core.NewDate(2024, 6, 1))

	rt := rent()
	rt.ID = ""
	rt.EndDate = core.NewDate(2024, 3, 31)

	saved, err := svc.CreateRecurring(context.Background(), rt)
	require.NoError(t, err)
	assert.False(t, saved.IsActive)

	sched, err := store.GetSchedule(context.Background(), saved.ID)
	require.NoError(t, err)
	assert.False(t, sched.State.IsActive)
}

func TestRecurringService_RejectsMissingAnchor(t *testing.T) {
	svc, store := newRecurringService(t, core.NewDate(2024, 1, 10))

	rt := rent()
	rt.ID = ""
	rt.DayOfMonth = 0

	_, err := svc.CreateRecurring(context.Background(), rt)
	assert.ErrorIs(t, err, recurrence.ErrInvalidAnchor)
	assert.Empty(t, store.schedules)
}

func TestRecurringService_Update(t *testing.T) {
	svc, store := newRecurringService(t, core.NewDate(2024, 1, 10))

	rt := rent()
	rt.ID = ""
	saved, err := svc.CreateRecurring(context.Background(), rt)
	require.NoError(t, err)

	saved.DayOfMonth = 20
	updated, err := svc.UpdateRecurring(context.Background(), saved)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-20", updated.NextRunDate.String())

	sched, err := store.GetSchedule(context.Background(), saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-20", sched.State.NextRunDate.String())

	got, err := svc.GetRecurring(context.Background(), saved.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.DayOfMonth)

	_, err = svc.UpdateRecurring(context.Background(), rt)
	assert.Error(t, err)
}

func TestRecurringService_NilRegistry(t *testing.T) {
	svc := NewRecurringService(memory.New(nil, nil), nil)
	rt := rent()
	rt.ID = ""
	rt.StartDate = core.Today()

	_, err := svc.CreateRecurring(context.Background(), rt)
	require.NoError(t, err)

	all, err := svc.ListRecurring(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
