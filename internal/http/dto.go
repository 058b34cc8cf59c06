package http

import (
	"bilancio/internal/core"
	"bilancio/internal/forms"
	"bilancio/internal/recurrence"
)

// BudgetDTO is a budget on the wire. Amounts are decimal strings in major
// units.
type BudgetDTO struct {
	ID         string         `json:"id"`
	CategoryID string         `json:"categoryId"`
	Amount     string         `json:"amount"`
	Currency   core.Currency  `json:"currency"`
	Period     core.Frequency `json:"period"`
	StartDate  core.Date      `json:"startDate"`
	EndDate    core.Date      `json:"endDate"`
}

// BudgetStatusDTO adds the spend figures reported by the finance API.
type BudgetStatusDTO struct {
	BudgetDTO
	Spent        string `json:"spent"`
	Remaining    string `json:"remaining"`
	UsagePercent int    `json:"usagePercent"`
}

type RecurringDTO struct {
	ID          string               `json:"id"`
	Description string               `json:"description"`
	Amount      string               `json:"amount"`
	Currency    core.Currency        `json:"currency"`
	Type        core.TransactionType `json:"type"`
	Frequency   core.Frequency       `json:"frequency"`
	DayOfWeek   *int                 `json:"dayOfWeek"`
	DayOfMonth  *int                 `json:"dayOfMonth"`
	StartDate   core.Date            `json:"startDate"`
	EndDate     core.Date            `json:"endDate"`
	NextRunDate core.Date            `json:"nextRunDate"`
	AccountID   string               `json:"accountId"`
	CategoryID  string               `json:"categoryId"`
	Notes       string               `json:"notes,omitempty"`
	IsActive    bool                 `json:"isActive"`
}

// RecurringFormDTO is a recurring form with the next dates it would fire on.
type RecurringFormDTO struct {
	forms.RecurringView
	Preview []core.Date `json:"preview"`
}

type DatesResponse struct {
	Dates []core.Date `json:"dates"`
}

type AnchorEncoding struct {
	DayOfMonth int `json:"dayOfMonth"`
	recurrence.EditableAnchor
}

func toBudgetDTO(b core.Budget) BudgetDTO {
	return BudgetDTO{
		ID:         b.ID,
		CategoryID: b.CategoryID,
		Amount:     b.Amount.String(),
		Currency:   b.Currency,
		Period:     b.Period,
		StartDate:  b.StartDate,
		EndDate:    b.EndDate,
	}
}

func toBudgetStatusDTOs(in []core.BudgetStatus) []BudgetStatusDTO {
	out := make([]BudgetStatusDTO, 0, len(in))
	for _, s := range in {
		out = append(out, BudgetStatusDTO{
			BudgetDTO:    toBudgetDTO(s.Budget),
			Spent:        s.Spent.String(),
			Remaining:    s.Remaining.String(),
			UsagePercent: s.UsagePercent(),
		})
	}
	return out
}

func toRecurringDTO(rt core.RecurringTransaction) RecurringDTO {
	dto := RecurringDTO{
		ID:          rt.ID,
		Description: rt.Description,
		Amount:      rt.Amount.String(),
		Currency:    rt.Currency,
		Type:        rt.Type,
		Frequency:   rt.Frequency,
		DayOfWeek:   rt.DayOfWeek,
		StartDate:   rt.StartDate,
		EndDate:     rt.EndDate,
		NextRunDate: rt.NextRunDate,
		AccountID:   rt.AccountID,
		CategoryID:  rt.CategoryID,
		Notes:       rt.Notes,
		IsActive:    rt.IsActive,
	}
	if rt.DayOfMonth != 0 {
		dom := rt.DayOfMonth
		dto.DayOfMonth = &dom
	}
	return dto
}

func toRecurringDTOs(in []core.RecurringTransaction) []RecurringDTO {
	out := make([]RecurringDTO, 0, len(in))
	for _, rt := range in {
		out = append(out, toRecurringDTO(rt))
	}
	return out
}
