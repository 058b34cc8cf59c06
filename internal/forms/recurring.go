package forms

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/gateway"
	"bilancio/internal/recurrence"
)

// RecurringInput is a submitted recurring-transaction form. DayOfMonth
// carries the editable representation, so "last" round-trips unchanged.
type RecurringInput struct {
	Description string                     `json:"description"`
	Amount      string                     `json:"amount"`
	Currency    string                     `json:"currency"`
	Type        string                     `json:"type"`
	Frequency   string                     `json:"frequency"`
	DayOfWeek   *int                       `json:"dayOfWeek"`
	DayOfMonth  *recurrence.EditableAnchor `json:"dayOfMonth"`
	StartDate   core.Date                  `json:"startDate"`
	EndDate     core.Date                  `json:"endDate"`
	AccountID   string                     `json:"accountId"`
	CategoryID  string                     `json:"categoryId"`
	Notes       string                     `json:"notes"`
	IsActive    *bool                      `json:"isActive"`
}

// RecurringView is the state of a recurring form as the UI renders it.
type RecurringView struct {
	ID          string                     `json:"id,omitempty"`
	Description string                     `json:"description"`
	Amount      string                     `json:"amount"`
	Currency    string                     `json:"currency"`
	Type        core.TransactionType       `json:"type"`
	Frequency   core.Frequency             `json:"frequency"`
	DayOfWeek   *int                       `json:"dayOfWeek"`
	DayOfMonth  *recurrence.EditableAnchor `json:"dayOfMonth"`
	StartDate   core.Date                  `json:"startDate"`
	EndDate     core.Date                  `json:"endDate"`
	NextRunDate core.Date                  `json:"nextRunDate"`
	AccountID   string                     `json:"accountId"`
	CategoryID  string                     `json:"categoryId"`
	Notes       string                     `json:"notes"`
	IsActive    bool                       `json:"isActive"`
	Selection   Selection                  `json:"selection"`
	Categories  []core.Category            `json:"categories"`
	Accounts    []core.Account             `json:"accounts"`
}

// RecurringForm backs both the add and the edit recurring-transaction page.
type RecurringForm struct {
	mu          sync.Mutex
	sel         tracker
	id          string
	description string
	amount      string
	currency    string
	txType      core.TransactionType
	frequency   core.Frequency
	dayOfWeek   *time.Weekday
	dayOfMonth  *recurrence.EditableAnchor
	startDate   core.Date
	endDate     core.Date
	nextRunDate core.Date
	accountID   string
	categoryID  string
	notes       string
	isActive    bool
	categories  []core.Category
	accounts    []core.Account
}

// NewRecurringForm opens an empty monthly expense starting today.
func NewRecurringForm(today core.Date) *RecurringForm {
	f := &RecurringForm{
		currency:  "EUR",
		txType:    core.Expense,
		frequency: core.Monthly,
		startDate: today,
		isActive:  true,
	}
	f.sel.bump()
	return f
}

// LoadRecurringForEdit opens a form on a stored record, decoding its
// day-of-month for display.
func LoadRecurringForEdit(rt core.RecurringTransaction) (*RecurringForm, error) {
	f := &RecurringForm{
		id:          rt.ID,
		description: rt.Description,
		amount:      rt.Amount.String(),
		currency:    string(rt.Currency),
		txType:      rt.Type,
		frequency:   rt.Frequency,
		startDate:   rt.StartDate,
		endDate:     rt.EndDate,
		nextRunDate: rt.NextRunDate,
		accountID:   rt.AccountID,
		categoryID:  rt.CategoryID,
		notes:       rt.Notes,
		isActive:    rt.IsActive,
	}
	if rt.DayOfWeek != nil {
		wd := time.Weekday(*rt.DayOfWeek)
		f.dayOfWeek = &wd
	}
	if rt.DayOfMonth != 0 {
		e, err := recurrence.DecodeAnchorForEditing(rt.DayOfMonth)
		if err != nil {
			return nil, invalid("dayOfMonth", err)
		}
		f.dayOfMonth = &e
	}
	f.sel.bump()
	return f, nil
}

// SelectFrequency switches the cadence. Custom has no schedule and is refused.
func (f *RecurringForm) SelectFrequency(freq core.Frequency) (Selection, error) {
	if !freq.Valid() || freq == core.Custom {
		return 0, invalid("frequency", recurrence.ErrUnknownFrequency)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frequency = freq
	return f.sel.bump(), nil
}

// SelectType switches between income and expense. Categories loaded for the
// previous type are dropped.
func (f *RecurringForm) SelectType(t core.TransactionType) (Selection, error) {
	if !t.Valid() {
		return 0, invalid("type", core.ErrInvalidType)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.txType != t {
		f.categories = nil
	}
	f.txType = t
	return f.sel.bump(), nil
}

// SetDayOfWeek anchors a weekly schedule.
func (f *RecurringForm) SetDayOfWeek(wd time.Weekday) error {
	if wd < time.Sunday || wd > time.Saturday {
		return invalid("dayOfWeek", recurrence.ErrInvalidAnchor)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dayOfWeek = &wd
	return nil
}

// SetAnchor anchors a month-based schedule on an edited day of month.
func (f *RecurringForm) SetAnchor(e recurrence.EditableAnchor) error {
	stored, err := recurrence.EncodeAnchorFromEditing(e)
	if err != nil {
		return invalid("dayOfMonth", err)
	}
	// normalize the display value, e.g. " 05" or "LAST"
	norm, err := recurrence.DecodeAnchorForEditing(stored)
	if err != nil {
		return invalid("dayOfMonth", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dayOfMonth = &norm
	return nil
}

// ApplyLookups sets the lists loaded for the selection sel.
func (f *RecurringForm) ApplyLookups(sel Selection, l Lookups) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.sel.current(sel) {
		return false
	}
	f.categories = l.Categories
	f.accounts = l.Accounts
	return true
}

// Selection returns the current selection token.
func (f *RecurringForm) Selection() Selection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Selection(f.sel.gen)
}

// TransactionType returns the type whose categories the form lists.
func (f *RecurringForm) TransactionType() core.TransactionType {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.txType
}

// anchor returns the anchor fields relevant to the current frequency.
func (f *RecurringForm) anchor() (recurrence.Anchor, error) {
	var a recurrence.Anchor
	switch f.frequency {
	case core.Daily, core.Biweekly:
	case core.Weekly:
		if f.dayOfWeek == nil {
			return a, invalid("dayOfWeek", recurrence.ErrInvalidAnchor)
		}
		a = recurrence.OnWeekday(*f.dayOfWeek)
	default:
		if f.dayOfMonth == nil {
			return a, invalid("dayOfMonth", recurrence.ErrInvalidAnchor)
		}
		stored, err := recurrence.EncodeAnchorFromEditing(*f.dayOfMonth)
		if err != nil {
			return a, invalid("dayOfMonth", err)
		}
		dom, err := recurrence.DecodeDayOfMonth(stored)
		if err != nil {
			return a, invalid("dayOfMonth", err)
		}
		a = recurrence.OnDay(dom)
	}
	return a, nil
}

// Preview lists the next n dates the schedule would fire on, counting from
// the later of the start date and today. Display only; the scheduler
// computes the authoritative next run.
func (f *RecurringForm) Preview(today core.Date, n int) ([]core.Date, error) {
	if n <= 0 {
		n = 1
	}
	f.mu.Lock()
	a, err := f.anchor()
	freq, start, end := f.frequency, f.startDate, f.endDate
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if start.IsZero() {
		return nil, invalid("startDate", errors.New("start date is required"))
	}
	from := start
	if today.After(from) {
		from = today
	}
	dates, err := recurrence.Occurrences(freq, a, from, end, n)
	if err != nil {
		return nil, invalid("frequency", err)
	}
	return dates, nil
}

// Fill applies a submitted form.
func (f *RecurringForm) Fill(in RecurringInput) error {
	freq, err := core.ParseFrequency(in.Frequency)
	if err != nil {
		return invalid("frequency", err)
	}
	if _, err := f.SelectFrequency(freq); err != nil {
		return err
	}
	if in.Type != "" {
		if _, err := f.SelectType(core.TransactionType(strings.ToLower(strings.TrimSpace(in.Type)))); err != nil {
			return err
		}
	}
	if in.DayOfWeek != nil {
		if *in.DayOfWeek < 0 || *in.DayOfWeek > 6 {
			return invalid("dayOfWeek", recurrence.ErrInvalidAnchor)
		}
		if err := f.SetDayOfWeek(time.Weekday(*in.DayOfWeek)); err != nil {
			return err
		}
	}
	if in.DayOfMonth != nil {
		if err := f.SetAnchor(*in.DayOfMonth); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.description = strings.TrimSpace(in.Description)
	f.amount = in.Amount
	if in.Currency != "" {
		f.currency = in.Currency
	}
	if !in.StartDate.IsZero() {
		f.startDate = in.StartDate
	}
	f.endDate = in.EndDate
	f.accountID = in.AccountID
	f.categoryID = in.CategoryID
	f.notes = in.Notes
	if in.IsActive != nil {
		f.isActive = *in.IsActive
	}
	return nil
}

// Recurring validates the form and returns the record to save. Only the
// anchor field the frequency uses is kept. NextRunDate holds the preview
// value; the server replaces it.
func (f *RecurringForm) Recurring(today core.Date) (core.RecurringTransaction, error) {
	preview, err := f.Preview(today, 1)
	if err != nil {
		return core.RecurringTransaction{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	a, err := f.anchor()
	if err != nil {
		return core.RecurringTransaction{}, err
	}
	cents, err := core.ParseDecimalToCents(f.amount)
	if err != nil {
		return core.RecurringTransaction{}, invalid("amount", err)
	}
	dow, dom := a.Wire()
	rt := core.RecurringTransaction{
		ID:          f.id,
		Description: f.description,
		Amount:      core.Money{Cents: cents},
		Currency:    core.NormalizeCurrency(f.currency),
		Type:        f.txType,
		Frequency:   f.frequency,
		DayOfWeek:   dow,
		DayOfMonth:  dom,
		StartDate:   f.startDate,
		EndDate:     f.endDate,
		AccountID:   f.accountID,
		CategoryID:  f.categoryID,
		Notes:       strings.TrimSpace(f.notes),
		IsActive:    f.isActive,
	}
	if len(preview) > 0 {
		rt.NextRunDate = preview[0]
	}
	if err := rt.Validate(); err != nil {
		return core.RecurringTransaction{}, invalid("", err)
	}
	return rt, nil
}

// Submit validates the form and creates or updates the record.
func (f *RecurringForm) Submit(ctx context.Context, w gateway.RecurringWriter, today core.Date) (core.RecurringTransaction, error) {
	rt, err := f.Recurring(today)
	if err != nil {
		return core.RecurringTransaction{}, err
	}
	if rt.ID == "" {
		return w.CreateRecurring(ctx, rt)
	}
	return w.UpdateRecurring(ctx, rt)
}

// View renders the form state.
func (f *RecurringForm) View() RecurringView {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := RecurringView{
		ID:          f.id,
		Description: f.description,
		Amount:      f.amount,
		Currency:    f.currency,
		Type:        f.txType,
		Frequency:   f.frequency,
		DayOfMonth:  f.dayOfMonth,
		StartDate:   f.startDate,
		EndDate:     f.endDate,
		NextRunDate: f.nextRunDate,
		AccountID:   f.accountID,
		CategoryID:  f.categoryID,
		Notes:       f.notes,
		IsActive:    f.isActive,
		Selection:   Selection(f.sel.gen),
		Categories:  f.categories,
		Accounts:    f.accounts,
	}
	if f.dayOfWeek != nil {
		wd := int(*f.dayOfWeek)
		v.DayOfWeek = &wd
	}
	return v
}
