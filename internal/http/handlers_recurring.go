package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"bilancio/internal/core"
	"bilancio/internal/forms"
)

const formPreviewCount = 3

func (h *Handler) ListRecurring(w http.ResponseWriter, r *http.Request) {
	list, err := h.recurring.ListRecurring(r.Context())
	if err != nil {
		respondError(r.Context(), w, "recurring.list", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecurringDTOs(list))
}

func (h *Handler) GetRecurring(w http.ResponseWriter, r *http.Request) {
	rt, err := h.recurring.GetRecurring(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(r.Context(), w, "recurring.get", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecurringDTO(rt))
}

// CreateRecurring saves a new recurring transaction; the service registers
// its schedule.
func (h *Handler) CreateRecurring(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in forms.RecurringInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(ctx, w, "recurring.create", err)
		return
	}

	today := h.today()
	form := forms.NewRecurringForm(today)
	if err := form.Fill(sanitizeRecurring(in)); err != nil {
		respondError(ctx, w, "recurring.create", err)
		return
	}
	saved, err := form.Submit(ctx, h.recurring, today)
	if err != nil {
		respondError(ctx, w, "recurring.create", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecurringDTO(saved))
}

func (h *Handler) UpdateRecurring(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	existing, err := h.recurring.GetRecurring(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondError(ctx, w, "recurring.update", err)
		return
	}
	var in forms.RecurringInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(ctx, w, "recurring.update", err)
		return
	}

	form, err := forms.LoadRecurringForEdit(existing)
	if err != nil {
		respondError(ctx, w, "recurring.update", err)
		return
	}
	if err := form.Fill(sanitizeRecurring(in)); err != nil {
		respondError(ctx, w, "recurring.update", err)
		return
	}
	saved, err := form.Submit(ctx, h.recurring, h.today())
	if err != nil {
		respondError(ctx, w, "recurring.update", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecurringDTO(saved))
}

// NewRecurringForm opens the add page, optionally on ?frequency= and ?type=.
func (h *Handler) NewRecurringForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	form := forms.NewRecurringForm(h.today())
	if v := q.Get("frequency"); v != "" {
		freq, err := core.ParseFrequency(v)
		if err == nil {
			_, err = form.SelectFrequency(freq)
		}
		if err != nil {
			respondError(ctx, w, "recurring.form", err)
			return
		}
	}
	if v := strings.ToLower(strings.TrimSpace(q.Get("type"))); v != "" {
		if _, err := form.SelectType(core.TransactionType(v)); err != nil {
			respondError(ctx, w, "recurring.form", err)
			return
		}
	}
	h.recurringFormView(w, r, form)
}

// EditRecurringForm opens the edit page of a stored record with its
// day-of-month decoded for display.
func (h *Handler) EditRecurringForm(w http.ResponseWriter, r *http.Request) {
	rt, err := h.recurring.GetRecurring(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(r.Context(), w, "recurring.form", err)
		return
	}
	form, err := forms.LoadRecurringForEdit(rt)
	if err != nil {
		respondError(r.Context(), w, "recurring.form", err)
		return
	}
	h.recurringFormView(w, r, form)
}

func (h *Handler) recurringFormView(w http.ResponseWriter, r *http.Request, form *forms.RecurringForm) {
	sel := form.Selection()
	l, err := forms.LoadLookups(r.Context(), h.lookups, form.TransactionType())
	if err != nil {
		respondError(r.Context(), w, "recurring.form", err)
		return
	}
	form.ApplyLookups(sel, l)

	// an incomplete anchor just means there is nothing to preview yet
	preview, err := form.Preview(h.today(), formPreviewCount)
	if err != nil || preview == nil {
		preview = []core.Date{}
	}
	writeJSON(w, http.StatusOK, RecurringFormDTO{RecurringView: form.View(), Preview: preview})
}

func sanitizeRecurring(in forms.RecurringInput) forms.RecurringInput {
	in.Description = sanitizeInput(in.Description)
	in.Amount = sanitizeInput(in.Amount)
	in.Currency = sanitizeInput(in.Currency)
	in.Type = sanitizeInput(in.Type)
	in.Frequency = sanitizeInput(in.Frequency)
	in.AccountID = sanitizeInput(in.AccountID)
	in.CategoryID = sanitizeInput(in.CategoryID)
	in.Notes = sanitizeInput(in.Notes)
	return in
}
