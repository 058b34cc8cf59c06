// Package memory is an in-process stand-in for the finance API, used for
// local development and tests.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"bilancio/internal/core"
	"bilancio/internal/gateway"
)

type Store struct {
	mu           sync.Mutex
	categories   []core.Category
	accounts     []core.Account
	budgets      map[string]core.Budget
	recurring    map[string]core.RecurringTransaction
	transactions []core.Transaction
}

func New(categories []core.Category, accounts []core.Account) *Store {
	return &Store{
		categories: dedupeCategories(categories),
		accounts:   accounts,
		budgets:    make(map[string]core.Budget),
		recurring:  make(map[string]core.RecurringTransaction),
	}
}

// NewFromFiles seeds lookups from base/seed_categories.txt ("type:name" per
// line) and base/seed_accounts.txt ("name,currency" per line), falling back
// to built-in defaults when the files are missing.
func NewFromFiles(base string) *Store {
	var cats []core.Category
	for _, line := range readLines(filepath.Join(base, "seed_categories.txt")) {
		typ, name, ok := strings.Cut(line, ":")
		if !ok || !core.TransactionType(strings.TrimSpace(typ)).Valid() {
			continue
		}
		cats = append(cats, category(core.TransactionType(strings.TrimSpace(typ)), strings.TrimSpace(name)))
	}
	var accs []core.Account
	for _, line := range readLines(filepath.Join(base, "seed_accounts.txt")) {
		name, cur, _ := strings.Cut(line, ",")
		accs = append(accs, account(strings.TrimSpace(name), core.NormalizeCurrency(cur)))
	}
	if len(cats) == 0 {
		cats = []core.Category{
			category(core.Expense, "Casa"),
			category(core.Expense, "Cibo"),
			category(core.Expense, "Trasporti"),
			category(core.Income, "Stipendio"),
		}
	}
	if len(accs) == 0 {
		accs = []core.Account{account("Conto corrente", "EUR")}
	}
	return New(cats, accs)
}

func category(t core.TransactionType, name string) core.Category {
	return core.Category{ID: slug(name), Name: name, Type: t}
}

func account(name string, cur core.Currency) core.Account {
	if cur == "" {
		cur = "EUR"
	}
	return core.Account{ID: slug(name), Name: name, Currency: cur}
}

func slug(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
}

func (s *Store) ListCategories(_ context.Context, txType core.TransactionType) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, 0, len(s.categories))
	for _, c := range s.categories {
		if txType == "" || c.Type == txType {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) ListAccounts(_ context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Account(nil), s.accounts...), nil
}

// ListBudgets reports spend as the sum of expense transactions of the
// budget's category inside its window, the figure the real API provides.
func (s *Store) ListBudgets(_ context.Context) ([]core.BudgetStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.BudgetStatus, 0, len(s.budgets))
	for _, b := range s.budgets {
		var spent int64
		for _, tx := range s.transactions {
			if tx.Type == core.Expense && tx.CategoryID == b.CategoryID &&
				!tx.Date.Before(b.StartDate) && !tx.Date.After(b.EndDate) {
				spent += tx.Amount.Cents
			}
		}
		out = append(out, core.BudgetStatus{
			Budget:    b,
			Spent:     core.Money{Cents: spent},
			Remaining: core.Money{Cents: b.Amount.Cents - spent},
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Budget.StartDate.Before(out[j].Budget.StartDate) })
	return out, nil
}

func (s *Store) GetBudget(_ context.Context, id string) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok {
		return core.Budget{}, fmt.Errorf("budget %s: %w", id, gateway.ErrNotFound)
	}
	return b, nil
}

func (s *Store) CreateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = uuid.NewString()
	s.budgets[b.ID] = b
	return b, nil
}

func (s *Store) UpdateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.budgets[b.ID]; !ok {
		return core.Budget{}, fmt.Errorf("budget %s: %w", b.ID, gateway.ErrNotFound)
	}
	s.budgets[b.ID] = b
	return b, nil
}

func (s *Store) ListRecurring(_ context.Context) ([]core.RecurringTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.RecurringTransaction, 0, len(s.recurring))
	for _, rt := range s.recurring {
		out = append(out, rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Description < out[j].Description })
	return out, nil
}

func (s *Store) GetRecurring(_ context.Context, id string) (core.RecurringTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.recurring[id]
	if !ok {
		return core.RecurringTransaction{}, fmt.Errorf("recurring transaction %s: %w", id, gateway.ErrNotFound)
	}
	return rt, nil
}

func (s *Store) CreateRecurring(_ context.Context, rt core.RecurringTransaction) (core.RecurringTransaction, error) {
	if err := rt.Validate(); err != nil {
		return core.RecurringTransaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rt.ID = uuid.NewString()
	s.recurring[rt.ID] = rt
	return rt, nil
}

func (s *Store) UpdateRecurring(_ context.Context, rt core.RecurringTransaction) (core.RecurringTransaction, error) {
	if err := rt.Validate(); err != nil {
		return core.RecurringTransaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recurring[rt.ID]; !ok {
		return core.RecurringTransaction{}, fmt.Errorf("recurring transaction %s: %w", rt.ID, gateway.ErrNotFound)
	}
	s.recurring[rt.ID] = rt
	return rt, nil
}

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx.ID = uuid.NewString()
	s.transactions = append(s.transactions, tx)
	return tx, nil
}

// Transactions returns a copy of every stored transaction.
func (s *Store) Transactions() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.transactions...)
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func dedupeCategories(in []core.Category) []core.Category {
	seen := map[string]struct{}{}
	out := make([]core.Category, 0, len(in))
	for _, c := range in {
		key := string(c.Type) + ":" + c.ID
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
