package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	goption "google.golang.org/api/option"

	"bilancio/internal/core"
)

func rentTx() core.Transaction {
	return core.Transaction{
		RecurringID: "rt-rent",
		Description: "Rent",
		Amount:      core.Money{Cents: 95000},
		Currency:    "EUR",
		Type:        core.Expense,
		Date:        core.NewDate(2024, 2, 29),
		AccountID:   "main",
		CategoryID:  "home",
	}
}

func TestRow(t *testing.T) {
	row := Row(rentTx())
	want := []any{"2024-02-29", "Rent", "expense", "-950.00", "EUR", "home", "main", "rt-rent"}
	if len(row) != len(want) {
		t.Fatalf("row has %d columns, want %d", len(row), len(want))
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("column %d = %v, want %v", i, row[i], want[i])
		}
	}

	income := rentTx()
	income.Type = core.Income
	if got := Row(income)[3]; got != "950.00" {
		t.Errorf("income amount = %v, want 950.00", got)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Ledger", 2024, "2024 Ledger"},
		{" Ledger ", 2025, "2025 Ledger"},
		{"2023 Ledger", 2024, "2023 Ledger"},
		{"", 2024, ""},
		{"12345", 2024, "2024 12345"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("expected missing spreadsheet error, got %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Config{
		SpreadsheetID:      "sheet-id",
		ServiceAccountFile: filepath.Join(t.TempDir(), "missing.json"),
	})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestCredentialOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(path, []byte(`{"type":"service_account"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	opts, err := credentialOptions(context.Background(), Config{ServiceAccountFile: path})
	if err != nil || len(opts) != 2 {
		t.Fatalf("file credentials: opts=%d err=%v", len(opts), err)
	}
	opts, err = credentialOptions(context.Background(), Config{ServiceAccountJSON: `{}`, ServiceAccountFile: "/nope"})
	if err != nil || len(opts) != 2 {
		t.Fatalf("inline credentials should win over the file: opts=%d err=%v", len(opts), err)
	}
	opts, err = credentialOptions(context.Background(), Config{})
	if err != nil || opts != nil {
		t.Fatalf("no credentials: opts=%v err=%v", opts, err)
	}
}

func TestLedger_Append(t *testing.T) {
	var gotPath, gotInput string
	var gotBody struct {
		Values [][]any `json:"values"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotInput = r.URL.Query().Get("valueInputOption")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"updates":{"updatedRange":"'2024 Ledger'!A2:H2"}}`))
	}))
	defer srv.Close()

	l, err := New(context.Background(), Config{SpreadsheetID: "sheet-id"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ref, err := l.Append(context.Background(), rentTx())
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if ref != "'2024 Ledger'!A2:H2" {
		t.Errorf("ref = %q", ref)
	}
	if !strings.Contains(gotPath, "/spreadsheets/sheet-id/values/2024 Ledger!A:H:append") {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotInput != "USER_ENTERED" {
		t.Errorf("valueInputOption = %q", gotInput)
	}
	if len(gotBody.Values) != 1 || len(gotBody.Values[0]) != 8 || gotBody.Values[0][3] != "-950.00" {
		t.Errorf("unexpected body %v", gotBody.Values)
	}
}

func TestLedger_AppendValidates(t *testing.T) {
	l := &Ledger{spreadsheetID: "sheet-id", sheetBase: "Ledger"}

	tx := rentTx()
	tx.Description = ""
	if _, err := l.Append(context.Background(), tx); err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("expected validation error, got %v", err)
	}

	if _, err := l.Append(context.Background(), rentTx()); err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Errorf("expected not initialized error, got %v", err)
	}
}
