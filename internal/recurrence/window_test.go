package recurrence

import (
	"errors"
	"testing"
	"time"

	"bilancio/internal/core"
)

func TestComputePeriodWindow(t *testing.T) {
	tests := []struct {
		name      string
		freq      Frequency
		ref       core.Date
		wantStart core.Date
		wantEnd   core.Date
	}{
		{"monthly mid month", core.Monthly, core.NewDate(2024, 6, 15), core.NewDate(2024, 6, 1), core.NewDate(2024, 6, 30)},
		{"monthly leap february", core.Monthly, core.NewDate(2024, 2, 10), core.NewDate(2024, 2, 1), core.NewDate(2024, 2, 29)},
		{"monthly plain february", core.Monthly, core.NewDate(2023, 2, 28), core.NewDate(2023, 2, 1), core.NewDate(2023, 2, 28)},
		{"monthly december", core.Monthly, core.NewDate(2024, 12, 31), core.NewDate(2024, 12, 1), core.NewDate(2024, 12, 31)},
		{"annual", core.Annual, core.NewDate(2024, 6, 15), core.NewDate(2024, 1, 1), core.NewDate(2024, 12, 31)},
		{"biweekly first half", core.Biweekly, core.NewDate(2024, 6, 15), core.NewDate(2024, 6, 1), core.NewDate(2024, 6, 15)},
		{"biweekly second half", core.Biweekly, core.NewDate(2024, 6, 16), core.NewDate(2024, 6, 16), core.NewDate(2024, 6, 30)},
		{"biweekly leap february", core.Biweekly, core.NewDate(2024, 2, 20), core.NewDate(2024, 2, 16), core.NewDate(2024, 2, 29)},
		{"weekly wednesday", core.Weekly, core.NewDate(2024, 6, 12), core.NewDate(2024, 6, 10), core.NewDate(2024, 6, 16)},
		{"weekly sunday", core.Weekly, core.NewDate(2024, 6, 16), core.NewDate(2024, 6, 10), core.NewDate(2024, 6, 16)},
		{"weekly monday", core.Weekly, core.NewDate(2024, 6, 10), core.NewDate(2024, 6, 10), core.NewDate(2024, 6, 16)},
		{"weekly across year", core.Weekly, core.NewDate(2025, 1, 1), core.NewDate(2024, 12, 30), core.NewDate(2025, 1, 5)},
		{"daily", core.Daily, core.NewDate(2024, 6, 15), core.NewDate(2024, 6, 15), core.NewDate(2024, 6, 15)},
		{"bimonthly", core.Bimonthly, core.NewDate(2024, 4, 3), core.NewDate(2024, 3, 1), core.NewDate(2024, 4, 30)},
		{"quarterly", core.Quarterly, core.NewDate(2024, 8, 20), core.NewDate(2024, 7, 1), core.NewDate(2024, 9, 30)},
		{"quarterly first", core.Quarterly, core.NewDate(2024, 2, 29), core.NewDate(2024, 1, 1), core.NewDate(2024, 3, 31)},
		{"semiannual second half", core.Semiannual, core.NewDate(2024, 7, 1), core.NewDate(2024, 7, 1), core.NewDate(2024, 12, 31)},
		{"semiannual first half", core.Semiannual, core.NewDate(2024, 6, 30), core.NewDate(2024, 1, 1), core.NewDate(2024, 6, 30)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputePeriodWindow(tt.freq, tt.ref)
			if err != nil {
				t.Fatalf("ComputePeriodWindow() error = %v", err)
			}
			if !got.Start.Equal(tt.wantStart) || !got.End.Equal(tt.wantEnd) {
				t.Errorf("ComputePeriodWindow() = [%s, %s], want [%s, %s]", got.Start, got.End, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestComputePeriodWindow_MonthlyCoversWholeMonth(t *testing.T) {
	d := core.NewDate(2023, 1, 1)
	for d.Year() < 2025 {
		w, err := ComputePeriodWindow(core.Monthly, d)
		if err != nil {
			t.Fatalf("ComputePeriodWindow(%s) error = %v", d, err)
		}
		wantLast := time.Date(d.Year(), d.Time.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
		if w.Start.Day() != 1 || w.End.Day() != wantLast || w.End.Month() != d.Month() {
			t.Fatalf("ComputePeriodWindow(%s) = [%s, %s]", d, w.Start, w.End)
		}
		d = d.AddDays(1)
	}
}

func TestComputePeriodWindow_WeeklyStartsMonday(t *testing.T) {
	d := core.NewDate(2024, 1, 1)
	for i := 0; i < 60; i++ {
		w, err := ComputePeriodWindow(core.Weekly, d)
		if err != nil {
			t.Fatalf("ComputePeriodWindow(%s) error = %v", d, err)
		}
		if w.Start.Weekday() != time.Monday {
			t.Errorf("ComputePeriodWindow(%s).Start is a %s", d, w.Start.Weekday())
		}
		if w.Start.DaysUntil(w.End) != 6 {
			t.Errorf("ComputePeriodWindow(%s) spans %d days", d, w.Days())
		}
		if !w.Contains(d) {
			t.Errorf("ComputePeriodWindow(%s) = [%s, %s] does not contain the reference", d, w.Start, w.End)
		}
		d = d.AddDays(1)
	}
}

func TestComputePeriodWindow_BiweeklySplit(t *testing.T) {
	d := core.NewDate(2024, 1, 1)
	for d.Year() == 2024 {
		w, err := ComputePeriodWindow(core.Biweekly, d)
		if err != nil {
			t.Fatalf("ComputePeriodWindow(%s) error = %v", d, err)
		}
		if d.Day() <= 15 {
			if w.Start.Day() != 1 || w.End.Day() != 15 {
				t.Fatalf("ComputePeriodWindow(%s) = [%s, %s]", d, w.Start, w.End)
			}
		} else {
			last := w.End.AddDays(1)
			if w.Start.Day() != 16 || last.Day() != 1 {
				t.Fatalf("ComputePeriodWindow(%s) = [%s, %s]", d, w.Start, w.End)
			}
		}
		d = d.AddDays(1)
	}
}

func TestComputePeriodWindow_Errors(t *testing.T) {
	if _, err := ComputePeriodWindow(core.Custom, core.NewDate(2024, 1, 1)); !errors.Is(err, ErrCustomPeriod) {
		t.Errorf("custom: error = %v, want ErrCustomPeriod", err)
	}
	if _, err := ComputePeriodWindow("hourly", core.NewDate(2024, 1, 1)); !errors.Is(err, ErrUnknownFrequency) {
		t.Errorf("unknown: error = %v, want ErrUnknownFrequency", err)
	}
	if _, err := ComputePeriodWindow(core.Monthly, core.Date{}); !errors.Is(err, ErrInvalidReferenceDate) {
		t.Errorf("zero date: error = %v, want ErrInvalidReferenceDate", err)
	}
}

func TestComputePeriodWindowNow(t *testing.T) {
	w, err := ComputePeriodWindowNow(core.Monthly)
	if err != nil {
		t.Fatalf("ComputePeriodWindowNow() error = %v", err)
	}
	if !w.Contains(core.Today()) {
		t.Errorf("ComputePeriodWindowNow() = [%s, %s] does not contain today", w.Start, w.End)
	}
}
