package core

// BudgetStatus pairs a budget with the spend figures reported by the
// finance API.
type BudgetStatus struct {
	Budget    Budget
	Spent     Money
	Remaining Money
}

// UsagePercent returns spent/amount as a rounded percentage, for display.
func (s BudgetStatus) UsagePercent() int {
	if s.Budget.Amount.Cents <= 0 {
		return 0
	}
	return int((s.Spent.Cents*100 + s.Budget.Amount.Cents/2) / s.Budget.Amount.Cents)
}
