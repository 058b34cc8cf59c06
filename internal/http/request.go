package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bilancio/internal/core"
)

const maxBodyBytes = 1 << 20

var (
	errMalformedBody  = errors.New("malformed request body")
	errMalformedQuery = errors.New("malformed query")
)

// decodeJSON reads a single JSON document from r into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, core.ErrInvalidReferenceDate) {
			return err
		}
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data", errMalformedBody)
	}
	return nil
}

// queryDate parses a YYYY-MM-DD query parameter, falling back to def when
// the parameter is absent.
func queryDate(q url.Values, key string, def core.Date) (core.Date, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return def, nil
	}
	return core.ParseDate(v)
}

// queryInt parses an optional integer query parameter. ok is false when the
// parameter is absent.
func queryInt(q url.Values, key string) (n int, ok bool, err error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return 0, false, nil
	}
	n, err = strconv.Atoi(v)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s must be a number", errMalformedQuery, key)
	}
	return n, true, nil
}

// sanitizeInput removes control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}

// today returns the current calendar day according to the handler clock.
func (h *Handler) today() core.Date {
	now := time.Now
	if h.now != nil {
		now = h.now
	}
	return core.DateOf(now())
}
