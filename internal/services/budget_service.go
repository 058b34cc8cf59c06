package services

import (
	"context"
	"fmt"

	"bilancio/internal/core"
	"bilancio/internal/gateway"
	"bilancio/internal/recurrence"
)

// BudgetBackend is the part of the finance API that stores budgets.
type BudgetBackend interface {
	gateway.BudgetReader
	gateway.BudgetWriter
}

// BudgetService validates budgets before they reach the finance API.
// Spend figures always come from the API.
type BudgetService struct {
	backend BudgetBackend
}

func NewBudgetService(backend BudgetBackend) *BudgetService {
	return &BudgetService{backend: backend}
}

func (s *BudgetService) ListBudgets(ctx context.Context) ([]core.BudgetStatus, error) {
	return s.backend.ListBudgets(ctx)
}

func (s *BudgetService) GetBudget(ctx context.Context, id string) (core.Budget, error) {
	return s.backend.GetBudget(ctx, id)
}

// Current returns the budgets whose period contains day.
func (s *BudgetService) Current(ctx context.Context, day core.Date) ([]core.BudgetStatus, error) {
	all, err := s.backend.ListBudgets(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.BudgetStatus, 0, len(all))
	for _, b := range all {
		w := recurrence.PeriodWindow{Start: b.Budget.StartDate, End: b.Budget.EndDate}
		if w.Contains(day) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *BudgetService) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	saved, err := s.backend.CreateBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	return saved, nil
}

func (s *BudgetService) UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if b.ID == "" {
		return core.Budget{}, fmt.Errorf("update budget: missing id")
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	saved, err := s.backend.UpdateBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("update budget %s: %w", b.ID, err)
	}
	return saved, nil
}
