package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/xhad/quotes/internal/validation"
	"github.com/xhad/quotes/pkg/document"
	"github.com/xhad/quotes/pkg/report"
	"github.com/xhad/quotes/pkg/store"
)

type errorResponse struct {
	Error  string                       `json:"error"`
	Fields []validation.ValidationError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError maps service errors to status codes. Unknown errors are logged and hidden.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verrs.Error(), Fields: verrs})
	case errors.Is(err, store.ErrNotFound):
		writeErrorMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, report.ErrForbidden):
		writeErrorMessage(w, http.StatusForbidden, err.Error())
	case errors.Is(err, report.ErrInvalidToken):
		writeErrorMessage(w, http.StatusNotFound, report.ErrInvalidToken.Error())
	case errors.Is(err, report.ErrShareExpired):
		writeErrorMessage(w, http.StatusGone, err.Error())
	case errors.Is(err, document.ErrSearchDisabled):
		writeErrorMessage(w, http.StatusNotImplemented, err.Error())
	default:
		s.logger.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
