package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mohammed-shakir/geoview/internal/backend"
	"github.com/mohammed-shakir/geoview/internal/query"
	"github.com/mohammed-shakir/geoview/internal/session"
)

var errNotFound = errors.New("not found")

type errBadRequest struct {
	msg string
}

func (e errBadRequest) Error() string { return e.msg }

func badRequest(msg string) error { return errBadRequest{msg: msg} }

type errorBody struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	var bad errBadRequest
	switch {
	case errors.As(err, &bad),
		errors.Is(err, backend.ErrInvalidCamera),
		errors.Is(err, query.ErrInvalidPolygon):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound), errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.Is(err, query.ErrBoxSelectDisabled):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
	} else {
		a.logger.DebugContext(r.Context(), "request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	writeError(w, err)
}
