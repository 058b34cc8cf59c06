package forms

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilancio/internal/core"
	"bilancio/internal/gateway/memory"
)

type failingLookups struct{}

func (failingLookups) ListCategories(context.Context, core.TransactionType) ([]core.Category, error) {
	return nil, errors.New("upstream unavailable")
}

func (failingLookups) ListAccounts(context.Context) ([]core.Account, error) {
	return []core.Account{{ID: "a"}}, nil
}

func TestLoadLookups(t *testing.T) {
	store := memory.New(
		[]core.Category{
			{ID: "food", Name: "Food", Type: core.Expense},
			{ID: "salary", Name: "Salary", Type: core.Income},
		},
		[]core.Account{{ID: "main", Name: "Main", Currency: "EUR"}},
	)

	l, err := LoadLookups(context.Background(), store, core.Income)
	require.NoError(t, err)
	require.Len(t, l.Categories, 1)
	assert.Equal(t, "salary", l.Categories[0].ID)
	assert.Len(t, l.Accounts, 1)
}

func TestLoadLookups_Error(t *testing.T) {
	_, err := LoadLookups(context.Background(), failingLookups{}, core.Expense)
	assert.ErrorContains(t, err, "load categories")
}
