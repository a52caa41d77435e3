package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dkrasnov/pickpool/internal/contest"
	"github.com/dkrasnov/pickpool/internal/ledger"
)

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	writeJSONError(w, http.StatusInternalServerError, "internal server error")
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("bad request", "message", msg, "error", err)
	} else {
		slog.Warn("bad request", "message", msg)
	}
	writeJSONError(w, http.StatusBadRequest, msg)
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("not found", "message", msg, "error", err)
	} else {
		slog.Warn("not found", "message", msg)
	}
	writeJSONError(w, http.StatusNotFound, msg)
}

// WriteError maps the settlement engine's error taxonomy onto HTTP. The
// precondition message goes to the client verbatim: "already resolved" and
// "still locked" call for different operator follow-ups, so a generic
// failure body is not enough.
func WriteError(w http.ResponseWriter, msg string, err error) {
	var precondition *contest.PreconditionError
	var partial *contest.PartialInputError
	var conflict *contest.ConflictError

	switch {
	case errors.Is(err, contest.ErrNotFound):
		NotFound(w, err.Error(), err)
	case errors.As(err, &precondition):
		slog.Warn("precondition failed", "message", msg, "op", precondition.Op, "rule", precondition.Rule)
		writeJSONError(w, http.StatusUnprocessableEntity, precondition.Rule)
	case errors.As(err, &partial):
		slog.Warn("partial input", "message", msg, "error", err)
		writeJSONError(w, http.StatusUnprocessableEntity, partial.Error())
	case errors.As(err, &conflict):
		slog.Warn("conflict", "message", msg, "error", err)
		writeJSONError(w, http.StatusConflict, conflict.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		slog.Warn("insufficient funds", "message", msg, "error", err)
		writeJSONError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, contest.ErrStoreUnavailable):
		slog.Error("store unavailable", "message", msg, "error", err)
		writeJSONError(w, http.StatusServiceUnavailable, "store unavailable, retry the operation")
	default:
		InternalServerError(w, msg, err)
	}
}

func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}
