// Package google writes the transaction ledger to a Google Sheets spreadsheet
// authenticated with a service account.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"bilancio/internal/core"
	ports "bilancio/internal/sheets"
)

// Ledger appends one row per transaction to "<year> <sheet>", where year
// is the year of the transaction date.
type Ledger struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
}

var _ ports.LedgerWriter = (*Ledger)(nil)

// Config selects the spreadsheet and the service-account credentials.
// ServiceAccountJSON wins over ServiceAccountFile.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountFile string
	ServiceAccountJSON string
}

// New creates a ledger client. Extra options are appended after the
// credentials, so tests can point the client at a local endpoint.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Ledger, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = "Ledger"
	}

	base, err := credentialOptions(ctx, cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets ledger ready",
		"spreadsheet_id", cfg.SpreadsheetID,
		"sheet", sheet)
	return &Ledger{svc: svc, spreadsheetID: cfg.SpreadsheetID, sheetBase: sheet}, nil
}

// credentialOptions returns no options when neither credential is set; the
// caller is then expected to pass its own (for example WithoutAuthentication).
func credentialOptions(ctx context.Context, cfg Config) ([]goption.ClientOption, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(cfg.ServiceAccountJSON) != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		credentialsJSON = []byte(cfg.ServiceAccountJSON)
	case strings.TrimSpace(cfg.ServiceAccountFile) != "":
		data, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.InfoContext(ctx, "Read service account file", "path", cfg.ServiceAccountFile, "size", len(data))
		credentialsJSON = data
	default:
		return nil, nil
	}
	return []goption.ClientOption{
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, nil
}

// Append writes tx below the last row of its year's sheet.
func (l *Ledger) Append(ctx context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if l.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := yearPrefixedName(l.sheetBase, tx.Date.Year())
	vr := &gsheet.ValueRange{Values: [][]any{Row(tx)}}
	resp, err := l.svc.Spreadsheets.Values.Append(l.spreadsheetID, sheet+"!A:H", vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return sheet, nil
}

// Row renders tx as a ledger row. Amounts use a dot separator and are
// negative for expenses.
func Row(tx core.Transaction) []any {
	amount := tx.Amount.String()
	if tx.Type == core.Expense {
		amount = "-" + amount
	}
	return []any{
		tx.Date.String(),
		tx.Description,
		string(tx.Type),
		amount,
		string(tx.Currency),
		tx.CategoryID,
		tx.AccountID,
		tx.RecurringID,
	}
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
