// Package gateway declares the ports through which the application reaches
// the finance API that owns persistence, currency conversion and spend
// aggregation.
package gateway

import (
	"context"
	"errors"

	"bilancio/internal/core"
)

// ErrNotFound is returned by backends when a record does not exist.
var ErrNotFound = errors.New("not found")

type (
	BudgetReader interface {
		// ListBudgets returns every budget with the spend figures computed
		// by the backend.
		ListBudgets(ctx context.Context) ([]core.BudgetStatus, error)
		GetBudget(ctx context.Context, id string) (core.Budget, error)
	}

	BudgetWriter interface {
		CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
		UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	}

	RecurringReader interface {
		ListRecurring(ctx context.Context) ([]core.RecurringTransaction, error)
		GetRecurring(ctx context.Context, id string) (core.RecurringTransaction, error)
	}

	RecurringWriter interface {
		CreateRecurring(ctx context.Context, rt core.RecurringTransaction) (core.RecurringTransaction, error)
		UpdateRecurring(ctx context.Context, rt core.RecurringTransaction) (core.RecurringTransaction, error)
	}

	// LookupReader serves the read-only category and account lists.
	LookupReader interface {
		ListCategories(ctx context.Context, txType core.TransactionType) ([]core.Category, error)
		ListAccounts(ctx context.Context) ([]core.Account, error)
	}

	TransactionWriter interface {
		CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	}

	// Backend is everything the HTTP layer and workers need from the API.
	Backend interface {
		BudgetReader
		BudgetWriter
		RecurringReader
		RecurringWriter
		LookupReader
		TransactionWriter
	}
)
