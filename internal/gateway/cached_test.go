package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilancio/internal/core"
)

type countingLookups struct {
	categoryCalls int
	accountCalls  int
	err           error
}

func (c *countingLookups) ListCategories(_ context.Context, txType core.TransactionType) ([]core.Category, error) {
	c.categoryCalls++
	if c.err != nil {
		return nil, c.err
	}
	return []core.Category{{ID: "c1", Name: "Food", Type: txType}}, nil
}

func (c *countingLookups) ListAccounts(context.Context) ([]core.Account, error) {
	c.accountCalls++
	return []core.Account{{ID: "a1", Name: "Checking", Currency: "EUR"}}, nil
}

func TestCachedLookups(t *testing.T) {
	ctx := context.Background()
	inner := &countingLookups{}
	c := NewCachedLookups(inner, 8, time.Minute)

	for i := 0; i < 3; i++ {
		cats, err := c.ListCategories(ctx, core.Expense)
		require.NoError(t, err)
		require.Len(t, cats, 1)
		assert.Equal(t, core.Expense, cats[0].Type)
	}
	_, err := c.ListCategories(ctx, core.Income)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.categoryCalls, "one load per transaction type")

	for i := 0; i < 2; i++ {
		_, err := c.ListAccounts(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, inner.accountCalls)

	c.Invalidate()
	_, err = c.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.accountCalls)
	assert.Len(t, c.Cleaners(), 2)
}

func TestCachedLookups_ErrorsNotCached(t *testing.T) {
	inner := &countingLookups{err: errors.New("upstream down")}
	c := NewCachedLookups(inner, 8, time.Minute)

	_, err := c.ListCategories(context.Background(), core.Expense)
	require.Error(t, err)

	inner.err = nil
	cats, err := c.ListCategories(context.Background(), core.Expense)
	require.NoError(t, err)
	assert.Len(t, cats, 1)
	assert.Equal(t, 2, inner.categoryCalls)
}
