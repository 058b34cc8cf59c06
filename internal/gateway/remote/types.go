package remote

import (
	"github.com/shopspring/decimal"

	"bilancio/internal/core"
)

// Wire records. Amounts travel as decimal strings in major units, dates as
// YYYY-MM-DD, and dayOfMonth uses 32 for the last day of the month.

type budgetDTO struct {
	ID         string          `json:"id,omitempty"`
	CategoryID string          `json:"categoryId"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Period     string          `json:"period"`
	StartDate  core.Date       `json:"startDate"`
	EndDate    core.Date       `json:"endDate"`
}

type budgetStatusDTO struct {
	budgetDTO
	Spent     decimal.Decimal `json:"spent"`
	Remaining decimal.Decimal `json:"remaining"`
}

type recurringDTO struct {
	ID          string          `json:"id,omitempty"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Type        string          `json:"type"`
	Frequency   string          `json:"frequency"`
	DayOfWeek   *int            `json:"dayOfWeek"`
	DayOfMonth  *int            `json:"dayOfMonth"`
	StartDate   core.Date       `json:"startDate"`
	EndDate     core.Date       `json:"endDate"`
	NextRunDate core.Date       `json:"nextRunDate"`
	AccountID   string          `json:"accountId"`
	CategoryID  string          `json:"categoryId"`
	Notes       string          `json:"notes"`
	IsActive    bool            `json:"isActive"`
}

type transactionDTO struct {
	ID          string          `json:"id,omitempty"`
	RecurringID string          `json:"recurringTransactionId,omitempty"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Type        string          `json:"type"`
	Date        core.Date       `json:"date"`
	AccountID   string          `json:"accountId"`
	CategoryID  string          `json:"categoryId"`
}

func toBudgetDTO(b core.Budget) budgetDTO {
	return budgetDTO{
		ID:         b.ID,
		CategoryID: b.CategoryID,
		Amount:     b.Amount.Decimal(),
		Currency:   string(b.Currency),
		Period:     string(b.Period),
		StartDate:  b.StartDate,
		EndDate:    b.EndDate,
	}
}

func (d budgetDTO) toCore() core.Budget {
	return core.Budget{
		ID:         d.ID,
		CategoryID: d.CategoryID,
		Amount:     core.MoneyFromDecimal(d.Amount),
		Currency:   core.Currency(d.Currency),
		Period:     core.Frequency(d.Period),
		StartDate:  d.StartDate,
		EndDate:    d.EndDate,
	}
}

func toRecurringDTO(rt core.RecurringTransaction) recurringDTO {
	d := recurringDTO{
		ID:          rt.ID,
		Description: rt.Description,
		Amount:      rt.Amount.Decimal(),
		Currency:    string(rt.Currency),
		Type:        string(rt.Type),
		Frequency:   string(rt.Frequency),
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
		d.DayOfMonth = &dom
	}
	return d
}

func (d recurringDTO) toCore() core.RecurringTransaction {
	rt := core.RecurringTransaction{
		ID:          d.ID,
		Description: d.Description,
		Amount:      core.MoneyFromDecimal(d.Amount),
		Currency:    core.Currency(d.Currency),
		Type:        core.TransactionType(d.Type),
		Frequency:   core.Frequency(d.Frequency),
		DayOfWeek:   d.DayOfWeek,
		StartDate:   d.StartDate,
		EndDate:     d.EndDate,
		NextRunDate: d.NextRunDate,
		AccountID:   d.AccountID,
		CategoryID:  d.CategoryID,
		Notes:       d.Notes,
		IsActive:    d.IsActive,
	}
	if d.DayOfMonth != nil {
		rt.DayOfMonth = *d.DayOfMonth
	}
	return rt
}

func toTransactionDTO(tx core.Transaction) transactionDTO {
	return transactionDTO{
		ID:          tx.ID,
		RecurringID: tx.RecurringID,
		Description: tx.Description,
		Amount:      tx.Amount.Decimal(),
		Currency:    string(tx.Currency),
		Type:        string(tx.Type),
		Date:        tx.Date,
		AccountID:   tx.AccountID,
		CategoryID:  tx.CategoryID,
	}
}

func (d transactionDTO) toCore() core.Transaction {
	return core.Transaction{
		ID:          d.ID,
		RecurringID: d.RecurringID,
		Description: d.Description,
		Amount:      core.MoneyFromDecimal(d.Amount),
		Currency:    core.Currency(d.Currency),
		Type:        core.TransactionType(d.Type),
		Date:        d.Date,
		AccountID:   d.AccountID,
		CategoryID:  d.CategoryID,
	}
}
