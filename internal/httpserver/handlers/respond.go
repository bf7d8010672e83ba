package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"emaintenance/internal/apperr"
)

// envelope is the uniform response body: {success, data|error, timestamp}.
type envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
	Timestamp string `json:"timestamp"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(envelope{
		Success:   status < http.StatusBadRequest,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// respondError maps the error's kind to a status. Unknown errors become
// a generic 500; the original goes to the log, never to the client.
func respondError(w http.ResponseWriter, lg *zap.SugaredLogger, err error) {
	ae := apperr.From(err)
	if ae.Kind == apperr.Internal {
		lg.Errorw("request failed", "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ae.HTTPStatus())
	_ = json.NewEncoder(w).Encode(envelope{
		Success:   false,
		Error:     ae.Message,
		Code:      ae.Code,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type pageParams struct {
	Page  int
	Limit int
}

func (p pageParams) Offset() int { return (p.Page - 1) * p.Limit }

// parsePage reads page/limit query params, clamping limit to maxPageSize
// and page to at least 1.
func parsePage(r *http.Request) pageParams {
	p := pageParams{Page: 1, Limit: defaultPageSize}
	if s := r.URL.Query().Get("page"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			p.Page = n
		}
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			p.Limit = n
		}
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	return p
}

type pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	Total       int64 `json:"total"`
	Limit       int   `json:"limit"`
}

func paginate(p pageParams, total int64) pagination {
	pages := int(math.Ceil(float64(total) / float64(p.Limit)))
	if pages < 1 {
		pages = 1
	}
	return pagination{CurrentPage: p.Page, TotalPages: pages, Total: total, Limit: p.Limit}
}
