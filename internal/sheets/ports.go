// Package sheets declares the spreadsheet ledger that mirrors every booked
// recurring transaction for reporting.
package sheets

import (
	"context"

	"bilancio/internal/core"
)

// LedgerWriter appends booked transactions to the ledger.
type LedgerWriter interface {
	// Append writes one row and returns the range it landed in.
	Append(ctx context.Context, tx core.Transaction) (rowRef string, err error)
}
