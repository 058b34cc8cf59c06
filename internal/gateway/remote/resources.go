package remote

import (
	"context"
	"net/http"
	"net/url"

	"bilancio/internal/core"
)

// ListBudgets calls GET /budgets.
func (c *Client) ListBudgets(ctx context.Context) ([]core.BudgetStatus, error) {
	var out []budgetStatusDTO
	if err := c.get(ctx, "/budgets", nil, &out); err != nil {
		return nil, err
	}
	statuses := make([]core.BudgetStatus, 0, len(out))
	for _, d := range out {
		statuses = append(statuses, core.BudgetStatus{
			Budget:    d.toCore(),
			Spent:     core.MoneyFromDecimal(d.Spent),
			Remaining: core.MoneyFromDecimal(d.Remaining),
		})
	}
	return statuses, nil
}

// GetBudget calls GET /budgets/{id}.
func (c *Client) GetBudget(ctx context.Context, id string) (core.Budget, error) {
	var out budgetDTO
	if err := c.get(ctx, "/budgets/"+url.PathEscape(id), nil, &out); err != nil {
		return core.Budget{}, err
	}
	return out.toCore(), nil
}

// CreateBudget calls POST /budgets.
func (c *Client) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	var out budgetDTO
	if err := c.do(ctx, http.MethodPost, "/budgets", nil, toBudgetDTO(b), &out); err != nil {
		return core.Budget{}, err
	}
	return out.toCore(), nil
}

// UpdateBudget calls PUT /budgets/{id}.
func (c *Client) UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	var out budgetDTO
	if err := c.do(ctx, http.MethodPut, "/budgets/"+url.PathEscape(b.ID), nil, toBudgetDTO(b), &out); err != nil {
		return core.Budget{}, err
	}
	return out.toCore(), nil
}

// ListRecurring calls GET /recurring-transactions.
func (c *Client) ListRecurring(ctx context.Context) ([]core.RecurringTransaction, error) {
	var out []recurringDTO
	if err := c.get(ctx, "/recurring-transactions", nil, &out); err != nil {
		return nil, err
	}
	items := make([]core.RecurringTransaction, 0, len(out))
	for _, d := range out {
		items = append(items, d.toCore())
	}
	return items, nil
}

// GetRecurring calls GET /recurring-transactions/{id}.
func (c *Client) GetRecurring(ctx context.Context, id string) (core.RecurringTransaction, error) {
	var out recurringDTO
	if err := c.get(ctx, "/recurring-transactions/"+url.PathEscape(id), nil, &out); err != nil {
		return core.RecurringTransaction{}, err
	}
	return out.toCore(), nil
}

// CreateRecurring calls POST /recurring-transactions.
func (c *Client) CreateRecurring(ctx context.Context, rt core.RecurringTransaction) (core.RecurringTransaction, error) {
	var out recurringDTO
	if err := c.do(ctx, http.MethodPost, "/recurring-transactions", nil, toRecurringDTO(rt), &out); err != nil {
		return core.RecurringTransaction{}, err
	}
	return out.toCore(), nil
}

// UpdateRecurring calls PUT /recurring-transactions/{id}.
func (c *Client) UpdateRecurring(ctx context.Context, rt core.RecurringTransaction) (core.RecurringTransaction, error) {
	var out recurringDTO
	path := "/recurring-transactions/" + url.PathEscape(rt.ID)
	if err := c.do(ctx, http.MethodPut, path, nil, toRecurringDTO(rt), &out); err != nil {
		return core.RecurringTransaction{}, err
	}
	return out.toCore(), nil
}

// ListCategories calls GET /categories?type=.
func (c *Client) ListCategories(ctx context.Context, txType core.TransactionType) ([]core.Category, error) {
	query := url.Values{}
	if txType != "" {
		query.Set("type", string(txType))
	}
	var out []core.Category
	if err := c.get(ctx, "/categories", query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAccounts calls GET /accounts.
func (c *Client) ListAccounts(ctx context.Context) ([]core.Account, error) {
	var out []core.Account
	if err := c.get(ctx, "/accounts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTransaction calls POST /transactions.
func (c *Client) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	var out transactionDTO
	if err := c.do(ctx, http.MethodPost, "/transactions", nil, toTransactionDTO(tx), &out); err != nil {
		return core.Transaction{}, err
	}
	return out.toCore(), nil
}
