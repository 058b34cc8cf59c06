// Package http serves the JSON API used by the budget and recurring
// transaction pages.
package http

import (
	"context"
	"net/http"
	"time"

	"bilancio/internal/gateway"
	"bilancio/internal/services"
)

// Handler holds the dependencies of every endpoint.
type Handler struct {
	budgets   *services.BudgetService
	recurring *services.RecurringService
	lookups   gateway.LookupReader
	ready     func(context.Context) error
	now       func() time.Time
}

// Deps wires a Handler. Ready may be nil, in which case /readyz always
// succeeds. Now defaults to time.Now.
type Deps struct {
	Budgets   *services.BudgetService
	Recurring *services.RecurringService
	Lookups   gateway.LookupReader
	Ready     func(context.Context) error
	Now       func() time.Time
}

func NewHandler(d Deps) *Handler {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Handler{
		budgets:   d.Budgets,
		recurring: d.Recurring,
		lookups:   d.Lookups,
		ready:     d.Ready,
		now:       d.Now,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ready(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "not ready: "+err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
