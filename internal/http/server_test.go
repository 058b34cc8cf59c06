package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilancio/internal/core"
	"bilancio/internal/gateway/memory"
	"bilancio/internal/log"
	"bilancio/internal/recurrence"
	"bilancio/internal/services"
)

type fakeRegistry struct {
	mu    sync.Mutex
	saved map[string]recurrence.State
}

func (f *fakeRegistry) UpsertSchedule(_ context.Context, rt core.RecurringTransaction, s recurrence.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[rt.ID] = s
	return nil
}

type testEnv struct {
	router   http.Handler
	store    *memory.Store
	registry *fakeRegistry
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	store := memory.New(
		[]core.Category{
			{ID: "casa", Name: "Casa", Type: core.Expense},
			{ID: "cibo", Name: "Cibo", Type: core.Expense},
			{ID: "stipendio", Name: "Stipendio", Type: core.Income},
		},
		[]core.Account{{ID: "conto", Name: "Conto", Currency: "EUR"}},
	)
	registry := &fakeRegistry{saved: make(map[string]recurrence.State)}
	h := NewHandler(Deps{
		Budgets:   services.NewBudgetService(store),
		Recurring: services.NewRecurringService(store, registry),
		Lookups:   store,
		Now:       func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) },
	})
	if opts.Logger == nil {
		opts.Logger = log.New(log.Config{Output: io.Discard})
	}
	srv, err := NewServer(h, opts)
	require.NoError(t, err)
	return &testEnv{router: srv.Handler, store: store, registry: registry}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, r)
	req.RemoteAddr = "203.0.113.10:4000"
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndHeaders(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = env.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReadyFailure(t *testing.T) {
	h := NewHandler(Deps{Ready: func(context.Context) error { return errors.New("db closed") }})
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "db closed")
}

func TestWindowEndpoint(t *testing.T) {
	env := newTestEnv(t, Options{})

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantStart string
		wantEnd   string
	}{
		{"monthly leap february", "frequency=monthly&date=2024-02-10", http.StatusOK, "2024-02-01", "2024-02-29"},
		{"quarterly", "frequency=quarterly&date=2024-05-10", http.StatusOK, "2024-04-01", "2024-06-30"},
		{"defaults to today", "frequency=monthly", http.StatusOK, "2024-03-01", "2024-03-31"},
		{"custom has no window", "frequency=custom&date=2024-05-10", http.StatusUnprocessableEntity, "", ""},
		{"unknown frequency", "frequency=hourly", http.StatusUnprocessableEntity, "", ""},
		{"malformed date", "frequency=monthly&date=2024-02-30", http.StatusBadRequest, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/recurrence/window?"+tt.query, nil)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode != http.StatusOK {
				assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)
				return
			}
			got := decode[map[string]string](t, rec)
			assert.Equal(t, tt.wantStart, got["startDate"])
			assert.Equal(t, tt.wantEnd, got["endDate"])
		})
	}
}

func TestNextEndpoint(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/api/recurrence/next?frequency=monthly&dayOfMonth=last&after=2024-01-31&count=3", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[map[string][]string](t, rec)
	assert.Equal(t, []string{"2024-02-29", "2024-03-31", "2024-04-30"}, got["dates"])

	rec = env.do(t, http.MethodGet, "/api/recurrence/next?frequency=monthly&dayOfMonth=32&after=2024-01-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"2024-02-29"}, decode[map[string][]string](t, rec)["dates"])

	rec = env.do(t, http.MethodGet, "/api/recurrence/next?frequency=weekly&dayOfWeek=1&after=2024-03-15&count=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"2024-03-18", "2024-03-25"}, decode[map[string][]string](t, rec)["dates"])

	for _, q := range []string{
		"frequency=weekly",
		"frequency=monthly&dayOfMonth=0",
		"frequency=weekly&dayOfWeek=7",
		"frequency=daily&count=0",
		"frequency=daily&count=100",
	} {
		rec = env.do(t, http.MethodGet, "/api/recurrence/next?"+q, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, q)
	}

	rec = env.do(t, http.MethodGet, "/api/recurrence/next?frequency=daily&count=many", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnchorEndpoint(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/api/recurrence/anchor?dayOfMonth=32", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[AnchorEncoding](t, rec)
	assert.Equal(t, 32, got.DayOfMonth)
	assert.True(t, got.IsLastDay)
	assert.Equal(t, "last", got.DisplayValue)

	rec = env.do(t, http.MethodGet, "/api/recurrence/anchor?display=%2005", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got = decode[AnchorEncoding](t, rec)
	assert.Equal(t, 5, got.DayOfMonth)
	assert.Equal(t, "5", got.DisplayValue)

	rec = env.do(t, http.MethodGet, "/api/recurrence/anchor?dayOfMonth=33", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/recurrence/anchor", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLookupEndpoints(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/api/categories?type=income", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cats := decode[[]core.Category](t, rec)
	require.Len(t, cats, 1)
	assert.Equal(t, "stipendio", cats[0].ID)

	rec = env.do(t, http.MethodGet, "/api/categories", nil)
	assert.Len(t, decode[[]core.Category](t, rec), 2)

	rec = env.do(t, http.MethodGet, "/api/categories?type=transfer", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/accounts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]core.Account](t, rec), 1)
}

func TestBudgetLifecycle(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodPost, "/api/budgets", map[string]any{
		"categoryId": "casa",
		"amount":     "250,50",
		"currency":   "eur",
		"period":     "monthly",
		"startDate":  "2024-03-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[BudgetDTO](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "250.50", created.Amount)
	assert.Equal(t, core.Currency("EUR"), created.Currency)
	assert.Equal(t, "2024-03-31", created.EndDate.String())

	rec = env.do(t, http.MethodGet, "/api/budgets/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/budgets/"+created.ID, map[string]any{
		"categoryId": "casa",
		"amount":     "300",
		"period":     "quarterly",
		"startDate":  "2024-04-01",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[BudgetDTO](t, rec)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "300.00", updated.Amount)
	assert.Equal(t, "2024-06-30", updated.EndDate.String())

	rec = env.do(t, http.MethodGet, "/api/budgets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]BudgetStatusDTO](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "0.00", list[0].Spent)
	assert.Equal(t, "300.00", list[0].Remaining)

	rec = env.do(t, http.MethodGet, "/api/budgets?current=true", nil)
	assert.Empty(t, decode[[]BudgetStatusDTO](t, rec), "today is outside the second quarter")

	rec = env.do(t, http.MethodGet, "/api/budgets?current=true&date=2024-05-01", nil)
	assert.Len(t, decode[[]BudgetStatusDTO](t, rec), 1)
}

func TestBudgetValidation(t *testing.T) {
	env := newTestEnv(t, Options{})

	tests := []struct {
		name      string
		body      any
		wantCode  int
		wantField string
	}{
		{
			name:      "dates outside the computed window",
			body:      map[string]any{"categoryId": "casa", "amount": "10", "period": "monthly", "startDate": "2024-03-01", "endDate": "2024-03-30"},
			wantCode:  http.StatusUnprocessableEntity,
			wantField: "endDate",
		},
		{
			name:      "custom without dates",
			body:      map[string]any{"categoryId": "casa", "amount": "10", "period": "custom"},
			wantCode:  http.StatusUnprocessableEntity,
			wantField: "startDate",
		},
		{
			name:      "zero amount",
			body:      map[string]any{"categoryId": "casa", "amount": "0", "period": "monthly"},
			wantCode:  http.StatusUnprocessableEntity,
			wantField: "amount",
		},
		{
			name:     "malformed date",
			body:     `{"categoryId":"casa","amount":"10","period":"custom","startDate":"2024-13-01","endDate":"2024-12-31"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "malformed json",
			body:     `{"categoryId":`,
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/budgets", tt.body)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			got := decode[ErrorResponse](t, rec)
			assert.NotEmpty(t, got.Error)
			assert.Equal(t, tt.wantField, got.Field)
		})
	}

	rec := env.do(t, http.MethodGet, "/api/budgets/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodPut, "/api/budgets/missing", map[string]any{"period": "monthly"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBudgetForms(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/api/budgets/form?period=quarterly&date=2024-05-10", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[map[string]any](t, rec)
	assert.Equal(t, "2024-04-01", view["startDate"])
	assert.Equal(t, "2024-06-30", view["endDate"])
	assert.Equal(t, "EUR", view["currency"])
	assert.Len(t, view["categories"], 2)

	rec = env.do(t, http.MethodGet, "/api/budgets/form?period=fortnightly", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	custom := core.Budget{
		CategoryID: "cibo",
		Amount:     core.Money{Cents: 1000},
		Currency:   "EUR",
		Period:     core.Custom,
		StartDate:  core.NewDate(2024, 3, 10),
		EndDate:    core.NewDate(2024, 4, 20),
	}
	saved, err := env.store.CreateBudget(context.Background(), custom)
	require.NoError(t, err)

	rec = env.do(t, http.MethodGet, "/api/budgets/"+saved.ID+"/form", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[map[string]any](t, rec)
	assert.Equal(t, "2024-03-10", view["startDate"])
	assert.Equal(t, "2024-04-20", view["endDate"])
	assert.Equal(t, true, view["customDates"])
	assert.Equal(t, "10.00", view["amount"])
}

func recurringBody() map[string]any {
	return map[string]any{
		"description": "Affitto",
		"amount":      "750",
		"currency":    "EUR",
		"type":        "expense",
		"frequency":   "monthly",
		"dayOfMonth":  map[string]any{"displayValue": "last", "isLastDay": true},
		"startDate":   "2099-01-10",
		"accountId":   "conto",
		"categoryId":  "casa",
	}
}

func TestRecurringLifecycle(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodPost, "/api/recurring", recurringBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[RecurringDTO](t, rec)
	require.NotEmpty(t, created.ID)
	require.NotNil(t, created.DayOfMonth)
	assert.Equal(t, recurrence.LastDaySentinel, *created.DayOfMonth)
	assert.Equal(t, "2099-01-31", created.NextRunDate.String())
	assert.True(t, created.IsActive)

	state, ok := env.registry.saved[created.ID]
	require.True(t, ok, "saving registers the schedule")
	assert.Equal(t, "2099-01-31", state.NextRunDate.String())

	rec = env.do(t, http.MethodGet, "/api/recurring/"+created.ID+"/form", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	form := decode[RecurringFormDTO](t, rec)
	require.NotNil(t, form.DayOfMonth)
	assert.Equal(t, recurrence.EditableAnchor{DisplayValue: "last", IsLastDay: true}, *form.DayOfMonth)
	assert.Len(t, form.Preview, 3)
	assert.Len(t, form.Categories, 2)
	assert.Len(t, form.Accounts, 1)

	body := recurringBody()
	body["frequency"] = "weekly"
	body["dayOfWeek"] = 1
	delete(body, "dayOfMonth")
	rec = env.do(t, http.MethodPut, "/api/recurring/"+created.ID, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[RecurringDTO](t, rec)
	assert.Equal(t, core.Weekly, updated.Frequency)
	assert.Nil(t, updated.DayOfMonth, "only the anchor the frequency uses is kept")
	require.NotNil(t, updated.DayOfWeek)
	assert.Equal(t, 1, *updated.DayOfWeek)

	rec = env.do(t, http.MethodGet, "/api/recurring", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]RecurringDTO](t, rec), 1)
}

func TestRecurringValidation(t *testing.T) {
	env := newTestEnv(t, Options{})

	tests := []struct {
		name      string
		mutate    func(map[string]any)
		wantField string
	}{
		{"custom frequency", func(b map[string]any) { b["frequency"] = "custom" }, "frequency"},
		{"missing anchor", func(b map[string]any) { delete(b, "dayOfMonth") }, "dayOfMonth"},
		{"bad anchor", func(b map[string]any) { b["dayOfMonth"] = map[string]any{"displayValue": "40"} }, "dayOfMonth"},
		{"weekday out of range", func(b map[string]any) { b["frequency"] = "weekly"; b["dayOfWeek"] = 9 }, "dayOfWeek"},
		{"bad type", func(b map[string]any) { b["type"] = "transfer" }, "type"},
		{"empty description", func(b map[string]any) { b["description"] = "  " }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := recurringBody()
			tt.mutate(body)
			rec := env.do(t, http.MethodPost, "/api/recurring", body)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantField, decode[ErrorResponse](t, rec).Field)
		})
	}
	assert.Empty(t, env.registry.saved)
}

func TestNewRecurringForm(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/api/recurring/form?type=income&frequency=biweekly", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	form := decode[RecurringFormDTO](t, rec)
	assert.Equal(t, core.Income, form.Type)
	assert.Equal(t, core.Biweekly, form.Frequency)
	require.Len(t, form.Categories, 1)
	assert.Equal(t, "stipendio", form.Categories[0].ID)
	assert.Equal(t, "2024-03-16", form.Preview[0].String())

	rec = env.do(t, http.MethodGet, "/api/recurring/form", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[RecurringFormDTO](t, rec).Preview, "no anchor yet")

	rec = env.do(t, http.MethodGet, "/api/recurring/form?frequency=custom", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestWritesAreRateLimited(t *testing.T) {
	env := newTestEnv(t, Options{RateLimitPerMinute: 1})

	rec := env.do(t, http.MethodPost, "/api/budgets", `{}`)
	assert.NotEqual(t, http.StatusTooManyRequests, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/budgets", `{}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = env.do(t, http.MethodGet, "/api/budgets", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
