package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"bilancio/internal/core"
	"bilancio/internal/forms"
)

// ListBudgets returns every budget with its spend. With ?current=true only
// the budgets whose period contains ?date= (today by default) are listed.
func (h *Handler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var (
		statuses []core.BudgetStatus
		err      error
	)
	if strings.EqualFold(q.Get("current"), "true") {
		var day core.Date
		if day, err = queryDate(q, "date", h.today()); err != nil {
			respondError(ctx, w, "budgets.list", err)
			return
		}
		statuses, err = h.budgets.Current(ctx, day)
	} else {
		statuses, err = h.budgets.ListBudgets(ctx)
	}
	if err != nil {
		respondError(ctx, w, "budgets.list", err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetStatusDTOs(statuses))
}

func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	b, err := h.budgets.GetBudget(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(r.Context(), w, "budgets.get", err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetDTO(b))
}

func (h *Handler) CreateBudget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in forms.BudgetInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(ctx, w, "budgets.create", err)
		return
	}

	today := h.today()
	form, err := forms.NewBudgetForm(today)
	if err != nil {
		respondError(ctx, w, "budgets.create", err)
		return
	}
	if err := form.Fill(sanitizeBudget(in), today); err != nil {
		respondError(ctx, w, "budgets.create", err)
		return
	}
	saved, err := form.Submit(ctx, h.budgets)
	if err != nil {
		respondError(ctx, w, "budgets.create", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBudgetDTO(saved))
}

func (h *Handler) UpdateBudget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	existing, err := h.budgets.GetBudget(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondError(ctx, w, "budgets.update", err)
		return
	}
	var in forms.BudgetInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(ctx, w, "budgets.update", err)
		return
	}

	form := forms.LoadBudgetForEdit(existing)
	if err := form.Fill(sanitizeBudget(in), h.today()); err != nil {
		respondError(ctx, w, "budgets.update", err)
		return
	}
	saved, err := form.Submit(ctx, h.budgets)
	if err != nil {
		respondError(ctx, w, "budgets.update", err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetDTO(saved))
}

// NewBudgetForm opens the add page on ?period= (monthly by default) around
// ?date=.
func (h *Handler) NewBudgetForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	ref, err := queryDate(q, "date", h.today())
	if err != nil {
		respondError(ctx, w, "budgets.form", err)
		return
	}
	form, err := forms.NewBudgetForm(ref)
	if err != nil {
		respondError(ctx, w, "budgets.form", err)
		return
	}
	if v := q.Get("period"); v != "" {
		freq, err := core.ParseFrequency(v)
		if err == nil {
			_, err = form.SelectPeriod(freq, ref)
		}
		if err != nil {
			respondError(ctx, w, "budgets.form", err)
			return
		}
	}
	h.budgetFormView(w, r, form)
}

// EditBudgetForm opens the edit page of a stored budget.
func (h *Handler) EditBudgetForm(w http.ResponseWriter, r *http.Request) {
	b, err := h.budgets.GetBudget(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(r.Context(), w, "budgets.form", err)
		return
	}
	h.budgetFormView(w, r, forms.LoadBudgetForEdit(b))
}

func (h *Handler) budgetFormView(w http.ResponseWriter, r *http.Request, form *forms.BudgetForm) {
	sel := form.Selection()
	l, err := forms.LoadLookups(r.Context(), h.lookups, core.Expense)
	if err != nil {
		respondError(r.Context(), w, "budgets.form", err)
		return
	}
	form.ApplyLookups(sel, l)
	writeJSON(w, http.StatusOK, form.View())
}

func sanitizeBudget(in forms.BudgetInput) forms.BudgetInput {
	in.CategoryID = sanitizeInput(in.CategoryID)
	in.Amount = sanitizeInput(in.Amount)
	in.Currency = sanitizeInput(in.Currency)
	in.Period = sanitizeInput(in.Period)
	return in
}
