package forms

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/core"
	"bilancio/internal/gateway"
)

// Lookups are the choice lists a form offers.
type Lookups struct {
	Categories []core.Category `json:"categories"`
	Accounts   []core.Account  `json:"accounts"`
}

// LoadLookups fetches categories of txType and all accounts concurrently.
func LoadLookups(ctx context.Context, r gateway.LookupReader, txType core.TransactionType) (Lookups, error) {
	var l Lookups
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cats, err := r.ListCategories(ctx, txType)
		if err != nil {
			return fmt.Errorf("load categories: %w", err)
		}
		l.Categories = cats
		return nil
	})
	g.Go(func() error {
		accs, err := r.ListAccounts(ctx)
		if err != nil {
			return fmt.Errorf("load accounts: %w", err)
		}
		l.Accounts = accs
		return nil
	})
	if err := g.Wait(); err != nil {
		return Lookups{}, err
	}
	return l, nil
}
