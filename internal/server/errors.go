package server

import (
	"errors"
	"net/http"

	"github.com/lazypower/cadence/internal/engine"
	"github.com/lazypower/cadence/internal/fsrs"
	"github.com/lazypower/cadence/internal/session"
	"github.com/lazypower/cadence/internal/store"
)

var errSessionNotFound = errors.New("session not found or expired")

func errorStatus(err error) int {
	var pe *engine.PersistenceError
	switch {
	case errors.As(err, &pe):
		return http.StatusServiceUnavailable
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, engine.ErrCardNotFound),
		errors.Is(err, errSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, fsrs.ErrInvalidInput),
		errors.Is(err, fsrs.ErrInvalidParameters):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrOutOfTurn):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status. Internal errors are logged and their
// detail is not sent to the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		msg = "internal error"
	}

	body := map[string]any{"error": msg}
	var pe *engine.PersistenceError
	if errors.As(err, &pe) {
		body["retry"] = true
	}
	writeJSON(w, status, body)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}
