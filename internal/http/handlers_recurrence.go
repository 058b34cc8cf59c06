package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/recurrence"
)

const maxPreviewCount = 36

// Window returns the budget period of ?frequency= containing ?date=
// (today by default).
func (h *Handler) Window(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	freq, err := core.ParseFrequency(q.Get("frequency"))
	if err != nil {
		respondError(r.Context(), w, "recurrence.window", err)
		return
	}
	ref, err := queryDate(q, "date", h.today())
	if err != nil {
		respondError(r.Context(), w, "recurrence.window", err)
		return
	}
	win, err := recurrence.ComputePeriodWindow(freq, ref)
	if err != nil {
		respondError(r.Context(), w, "recurrence.window", err)
		return
	}
	writeJSON(w, http.StatusOK, win)
}

// Next lists the next ?count= dates (default 1) a schedule fires on after
// ?after= (today by default).
func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	freq, err := core.ParseFrequency(q.Get("frequency"))
	if err != nil {
		respondError(ctx, w, "recurrence.next", err)
		return
	}
	anchor, err := anchorFromQuery(q.Get("dayOfWeek"), q.Get("dayOfMonth"))
	if err != nil {
		respondError(ctx, w, "recurrence.next", err)
		return
	}
	after, err := queryDate(q, "after", h.today())
	if err != nil {
		respondError(ctx, w, "recurrence.next", err)
		return
	}
	count, ok, err := queryInt(q, "count")
	if err != nil {
		respondError(ctx, w, "recurrence.next", err)
		return
	}
	if !ok {
		count = 1
	}
	if count < 1 || count > maxPreviewCount {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("count must be between 1 and %d", maxPreviewCount))
		return
	}

	dates := make([]core.Date, 0, count)
	cur := after
	for range count {
		if cur, err = recurrence.NextOccurrence(freq, anchor, cur); err != nil {
			respondError(ctx, w, "recurrence.next", err)
			return
		}
		dates = append(dates, cur)
	}
	writeJSON(w, http.StatusOK, DatesResponse{Dates: dates})
}

// Anchor converts between the stored day-of-month and its edit form:
// ?dayOfMonth=32 decodes, ?display=last encodes.
func (h *Handler) Anchor(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("dayOfMonth")); v != "" {
		stored, err := strconv.Atoi(v)
		if err != nil {
			respondError(r.Context(), w, "recurrence.anchor", fmt.Errorf("%w: dayOfMonth must be a number", errMalformedQuery))
			return
		}
		e, err := recurrence.DecodeAnchorForEditing(stored)
		if err != nil {
			respondError(r.Context(), w, "recurrence.anchor", err)
			return
		}
		writeJSON(w, http.StatusOK, AnchorEncoding{DayOfMonth: stored, EditableAnchor: e})
		return
	}

	display := q.Get("display")
	if strings.TrimSpace(display) == "" {
		writeError(w, http.StatusBadRequest, "dayOfMonth or display is required")
		return
	}
	e := recurrence.EditableAnchor{DisplayValue: display}
	stored, err := recurrence.EncodeAnchorFromEditing(e)
	if err != nil {
		respondError(r.Context(), w, "recurrence.anchor", err)
		return
	}
	norm, err := recurrence.DecodeAnchorForEditing(stored)
	if err != nil {
		respondError(r.Context(), w, "recurrence.anchor", err)
		return
	}
	writeJSON(w, http.StatusOK, AnchorEncoding{DayOfMonth: stored, EditableAnchor: norm})
}

// anchorFromQuery reads dayOfWeek (0-6, 0 = Sunday) and dayOfMonth, which
// takes the stored encoding (1-31, 32) or "last".
func anchorFromQuery(dayOfWeek, dayOfMonth string) (recurrence.Anchor, error) {
	var a recurrence.Anchor
	if v := strings.TrimSpace(dayOfWeek); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 6 {
			return a, fmt.Errorf("%w: day of week %q", recurrence.ErrInvalidAnchor, v)
		}
		a = recurrence.OnWeekday(time.Weekday(n))
	}
	if v := strings.TrimSpace(dayOfMonth); v != "" {
		stored, err := strconv.Atoi(v)
		if err != nil {
			if stored, err = recurrence.EncodeAnchorFromEditing(recurrence.EditableAnchor{DisplayValue: v}); err != nil {
				return a, err
			}
		}
		dom, err := recurrence.DecodeDayOfMonth(stored)
		if err != nil {
			return a, err
		}
		a.DayOfMonth = &dom
	}
	return a, nil
}
