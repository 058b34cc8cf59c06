package http

import (
	"net/http"
	"strings"

	"bilancio/internal/core"
)

// Categories lists the categories of ?type= (expense by default).
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	txType := core.Expense
	if v := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("type"))); v != "" {
		txType = core.TransactionType(v)
		if !txType.Valid() {
			respondError(r.Context(), w, "lookups.categories", core.ErrInvalidType)
			return
		}
	}
	cats, err := h.lookups.ListCategories(r.Context(), txType)
	if err != nil {
		respondError(r.Context(), w, "lookups.categories", err)
		return
	}
	if cats == nil {
		cats = []core.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
}

func (h *Handler) Accounts(w http.ResponseWriter, r *http.Request) {
	accs, err := h.lookups.ListAccounts(r.Context())
	if err != nil {
		respondError(r.Context(), w, "lookups.accounts", err)
		return
	}
	if accs == nil {
		accs = []core.Account{}
	}
	writeJSON(w, http.StatusOK, accs)
}
