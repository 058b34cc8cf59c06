package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilancio/internal/core"
	"bilancio/internal/gateway/memory"
)

func groceries(start, end core.Date) core.Budget {
	return core.Budget{
		CategoryID: "food",
		Amount:     core.Money{Cents: 40000},
		Currency:   "EUR",
		Period:     core.Monthly,
		StartDate:  start,
		EndDate:    end,
	}
}

func TestBudgetService_CreateAndCurrent(t *testing.T) {
	ctx := context.Background()
	svc := NewBudgetService(memory.New(nil, nil))

	jan, err := svc.CreateBudget(ctx, groceries(core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 31)))
	require.NoError(t, err)
	_, err = svc.CreateBudget(ctx, groceries(core.NewDate(2024, 2, 1), core.NewDate(2024, 2, 29)))
	require.NoError(t, err)

	all, err := svc.ListBudgets(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	current, err := svc.Current(ctx, core.NewDate(2024, 1, 31))
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, jan.ID, current[0].Budget.ID)
	assert.Equal(t, int64(40000), current[0].Remaining.Cents)
}

func TestBudgetService_Validation(t *testing.T) {
	ctx := context.Background()
	svc := NewBudgetService(memory.New(nil, nil))

	b := groceries(core.NewDate(2024, 2, 1), core.NewDate(2024, 1, 1))
	_, err := svc.CreateBudget(ctx, b)
	assert.ErrorIs(t, err, core.ErrDateRange)

	b = groceries(core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 31))
	b.Amount = core.Money{}
	_, err = svc.CreateBudget(ctx, b)
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = svc.UpdateBudget(ctx, groceries(core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 31)))
	assert.Error(t, err)
}

func TestBudgetService_Update(t *testing.T) {
	ctx := context.Background()
	svc := NewBudgetService(memory.New(nil, nil))

	saved, err := svc.CreateBudget(ctx, groceries(core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 31)))
	require.NoError(t, err)

	saved.Amount = core.Money{Cents: 50000}
	_, err = svc.UpdateBudget(ctx, saved)
	require.NoError(t, err)

	got, err := svc.GetBudget(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), got.Amount.Cents)
}
