package forms

import (
	"context"
	"errors"
	"sync"

	"bilancio/internal/core"
	"bilancio/internal/gateway"
	"bilancio/internal/recurrence"
)

// BudgetInput is a submitted budget form.
type BudgetInput struct {
	CategoryID string    `json:"categoryId"`
	Amount     string    `json:"amount"`
	Currency   string    `json:"currency"`
	Period     string    `json:"period"`
	StartDate  core.Date `json:"startDate"`
	EndDate    core.Date `json:"endDate"`
}

// BudgetView is the state of a budget form as the UI renders it.
type BudgetView struct {
	ID          string           `json:"id,omitempty"`
	CategoryID  string           `json:"categoryId"`
	Amount      string           `json:"amount"`
	Currency    string           `json:"currency"`
	Period      core.Frequency   `json:"period"`
	StartDate   core.Date        `json:"startDate"`
	EndDate     core.Date        `json:"endDate"`
	CustomDates bool             `json:"customDates"`
	Selection   Selection        `json:"selection"`
	Frequencies []core.Frequency `json:"frequencies"`
	Categories  []core.Category  `json:"categories"`
}

// BudgetForm backs both the add and the edit budget page.
type BudgetForm struct {
	mu         sync.Mutex
	sel        tracker
	id         string
	categoryID string
	amount     string
	currency   string
	period     core.Frequency
	window     recurrence.PeriodWindow
	categories []core.Category
}

// NewBudgetForm opens an empty form on the monthly period containing today.
func NewBudgetForm(today core.Date) (*BudgetForm, error) {
	f := &BudgetForm{currency: "EUR"}
	if _, err := f.SelectPeriod(core.Monthly, today); err != nil {
		return nil, err
	}
	return f, nil
}

// LoadBudgetForEdit opens a form on a stored budget. Its dates are shown
// as stored; they are only recomputed when the period changes.
func LoadBudgetForEdit(b core.Budget) *BudgetForm {
	f := &BudgetForm{
		id:         b.ID,
		categoryID: b.CategoryID,
		amount:     b.Amount.String(),
		currency:   string(b.Currency),
		period:     b.Period,
		window:     recurrence.PeriodWindow{Start: b.StartDate, End: b.EndDate},
	}
	f.sel.bump()
	return f
}

// SelectPeriod switches the period. Computed periods replace the dates with
// the window containing ref; custom keeps whatever dates the form holds.
func (f *BudgetForm) SelectPeriod(freq core.Frequency, ref core.Date) (Selection, error) {
	if !freq.Valid() {
		return 0, invalid("period", recurrence.ErrUnknownFrequency)
	}
	var w recurrence.PeriodWindow
	if freq != core.Custom {
		var err error
		if w, err = recurrence.ComputePeriodWindow(freq, ref); err != nil {
			return 0, invalid("period", err)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.period = freq
	if freq != core.Custom {
		f.window = w
	}
	return f.sel.bump(), nil
}

// SetCustomDates switches to a custom period with user-supplied dates.
func (f *BudgetForm) SetCustomDates(start, end core.Date) error {
	if start.IsZero() || end.IsZero() {
		return invalid("startDate", errors.New("custom periods need both dates"))
	}
	if end.Before(start) {
		return invalid("endDate", core.ErrDateRange)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.period = core.Custom
	f.window = recurrence.PeriodWindow{Start: start, End: end}
	f.sel.bump()
	return nil
}

// ApplyWindow sets a window computed elsewhere for the selection sel. It is
// ignored when the user has since changed the period or the period is custom.
func (f *BudgetForm) ApplyWindow(sel Selection, w recurrence.PeriodWindow) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.sel.current(sel) || f.period == core.Custom {
		return false
	}
	f.window = w
	return true
}

// ApplyLookups sets the category list loaded for the selection sel.
func (f *BudgetForm) ApplyLookups(sel Selection, l Lookups) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.sel.current(sel) {
		return false
	}
	f.categories = l.Categories
	return true
}

// Selection returns the current selection token.
func (f *BudgetForm) Selection() Selection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Selection(f.sel.gen)
}

// Fill applies a submitted form. For computed periods the window is
// derived from the start date (today when missing), and submitted dates
// that disagree with it are rejected.
func (f *BudgetForm) Fill(in BudgetInput, today core.Date) error {
	freq, err := core.ParseFrequency(in.Period)
	if err != nil {
		return invalid("period", err)
	}
	if freq == core.Custom {
		if err := f.SetCustomDates(in.StartDate, in.EndDate); err != nil {
			return err
		}
	} else {
		ref := in.StartDate
		if ref.IsZero() {
			ref = today
		}
		if _, err := f.SelectPeriod(freq, ref); err != nil {
			return err
		}
		f.mu.Lock()
		w := f.window
		f.mu.Unlock()
		if !in.StartDate.IsZero() && !in.StartDate.Equal(w.Start) {
			return invalid("startDate", ErrWindowMismatch)
		}
		if !in.EndDate.IsZero() && !in.EndDate.Equal(w.End) {
			return invalid("endDate", ErrWindowMismatch)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.categoryID = in.CategoryID
	f.amount = in.Amount
	if in.Currency != "" {
		f.currency = in.Currency
	}
	return nil
}

// Budget validates the form and returns the record to save.
func (f *BudgetForm) Budget() (core.Budget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cents, err := core.ParseDecimalToCents(f.amount)
	if err != nil {
		return core.Budget{}, invalid("amount", err)
	}
	b := core.Budget{
		ID:         f.id,
		CategoryID: f.categoryID,
		Amount:     core.Money{Cents: cents},
		Currency:   core.NormalizeCurrency(f.currency),
		Period:     f.period,
		StartDate:  f.window.Start,
		EndDate:    f.window.End,
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, invalid("", err)
	}
	return b, nil
}

// Submit validates the form and creates or updates the budget.
func (f *BudgetForm) Submit(ctx context.Context, w gateway.BudgetWriter) (core.Budget, error) {
	b, err := f.Budget()
	if err != nil {
		return core.Budget{}, err
	}
	if b.ID == "" {
		return w.CreateBudget(ctx, b)
	}
	return w.UpdateBudget(ctx, b)
}

// View renders the form state.
func (f *BudgetForm) View() BudgetView {
	f.mu.Lock()
	defer f.mu.Unlock()
	return BudgetView{
		ID:          f.id,
		CategoryID:  f.categoryID,
		Amount:      f.amount,
		Currency:    f.currency,
		Period:      f.period,
		StartDate:   f.window.Start,
		EndDate:     f.window.End,
		CustomDates: f.period == core.Custom,
		Selection:   Selection(f.sel.gen),
		Frequencies: core.Frequencies(),
		Categories:  f.categories,
	}
}
