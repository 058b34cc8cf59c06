package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Daily      Frequency = "daily"
	Weekly     Frequency = "weekly"
	Biweekly   Frequency = "biweekly"
	Monthly    Frequency = "monthly"
	Bimonthly  Frequency = "bimonthly"
	Quarterly  Frequency = "quarterly"
	Semiannual Frequency = "semiannual"
	Annual     Frequency = "annual"
	Custom     Frequency = "custom"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// DateLayout is the wire format of every calendar date.
const DateLayout = "2006-01-02"

type (
	// Frequency is the recurrence cadence of a budget period or recurring transaction.
	Frequency string

	TransactionType string

	// Date is a calendar day at UTC midnight.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Currency is an ISO-4217 code.
	Currency string

	Category struct {
		ID   string          `json:"id"`
		Name string          `json:"name"`
		Type TransactionType `json:"type"`
	}

	Account struct {
		ID       string   `json:"id"`
		Name     string   `json:"name"`
		Currency Currency `json:"currency"`
	}

	Budget struct {
		ID         string
		CategoryID string
		Amount     Money
		Currency   Currency
		Period     Frequency
		StartDate  Date
		EndDate    Date
	}

	// RecurringTransaction mirrors the remote record. DayOfMonth keeps the wire
	// encoding (1-31, or 32 for the last day of the month); 0 means unset.
	RecurringTransaction struct {
		ID          string
		Description string
		Amount      Money
		Currency    Currency
		Type        TransactionType
		Frequency   Frequency
		DayOfWeek   *int
		DayOfMonth  int
		StartDate   Date
		EndDate     Date // zero when open-ended
		NextRunDate Date
		AccountID   string
		CategoryID  string
		Notes       string
		IsActive    bool
	}

	// Transaction is a single booking produced when a recurring schedule fires.
	Transaction struct {
		ID          string
		RecurringID string
		Description string
		Amount      Money
		Currency    Currency
		Type        TransactionType
		Date        Date
		AccountID   string
		CategoryID  string
	}
)

var (
	ErrInvalidDay           = errors.New("invalid day")
	ErrInvalidMonth         = errors.New("invalid month")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidCurrency      = errors.New("invalid currency")
	ErrEmptyDescription     = errors.New("empty description")
	ErrEmptyCategory        = errors.New("empty category")
	ErrEmptyAccount         = errors.New("empty account")
	ErrInvalidType          = errors.New("invalid transaction type")
	ErrUnknownFrequency     = errors.New("unknown frequency")
	ErrInvalidReferenceDate = errors.New("invalid reference date")
	ErrDateRange            = errors.New("end date must not be before start date")
)

// Frequencies lists every supported cadence in display order.
func Frequencies() []Frequency {
	return []Frequency{Daily, Weekly, Biweekly, Monthly, Bimonthly, Quarterly, Semiannual, Annual, Custom}
}

// ParseFrequency normalizes user input into a Frequency.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownFrequency, s)
	}
	return f, nil
}

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Biweekly, Monthly, Bimonthly, Quarterly, Semiannual, Annual, Custom:
		return true
	}
	return false
}

func (f Frequency) String() string { return string(f) }

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day, keeping t's wall clock date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// Today returns the current calendar day.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidReferenceDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }

// DaysUntil returns the number of calendar days from d to o.
func (d Date) DaysUntil(o Date) int {
	return int(o.Time.Sub(d.Time).Hours() / 24)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// IsEmpty returns true if the date is zero (optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (c Currency) Validate() error {
	if len(c) != 3 || strings.ToUpper(string(c)) != string(c) {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, string(c))
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return fmt.Errorf("%w: %q", ErrInvalidCurrency, string(c))
		}
	}
	return nil
}

// NormalizeCurrency trims and upper-cases a currency code.
func NormalizeCurrency(s string) Currency {
	return Currency(strings.ToUpper(strings.TrimSpace(s)))
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.CategoryID) == "" {
		return ErrEmptyCategory
	}
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if err := b.Currency.Validate(); err != nil {
		return err
	}
	if !b.Period.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownFrequency, b.Period)
	}
	if err := b.StartDate.Validate(); err != nil {
		return errors.New("invalid start date: " + err.Error())
	}
	if err := b.EndDate.Validate(); err != nil {
		return errors.New("invalid end date: " + err.Error())
	}
	if b.EndDate.Before(b.StartDate) {
		return ErrDateRange
	}
	return nil
}

// Validate checks field-level invariants. Anchor consistency with the
// frequency is checked by the recurrence package.
func (rt RecurringTransaction) Validate() error {
	if len(strings.TrimSpace(rt.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(rt.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := rt.Amount.Validate(); err != nil {
		return err
	}
	if err := rt.Currency.Validate(); err != nil {
		return err
	}
	if !rt.Type.Valid() {
		return ErrInvalidType
	}
	if !rt.Frequency.Valid() || rt.Frequency == Custom {
		return fmt.Errorf("%w: %q", ErrUnknownFrequency, rt.Frequency)
	}
	if rt.DayOfWeek != nil && (*rt.DayOfWeek < 0 || *rt.DayOfWeek > 6) {
		return ErrInvalidDay
	}
	if rt.DayOfMonth < 0 || rt.DayOfMonth > 32 {
		return ErrInvalidDay
	}
	if err := rt.StartDate.Validate(); err != nil {
		return errors.New("invalid start date: " + err.Error())
	}
	if !rt.EndDate.IsZero() {
		if err := rt.EndDate.Validate(); err != nil {
			return errors.New("invalid end date: " + err.Error())
		}
		if rt.EndDate.Before(rt.StartDate) {
			return ErrDateRange
		}
	}
	if strings.TrimSpace(rt.AccountID) == "" {
		return ErrEmptyAccount
	}
	if strings.TrimSpace(rt.CategoryID) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}
