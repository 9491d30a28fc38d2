package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/armtemiy/armlab/pkg/domain"
	"github.com/armtemiy/armlab/pkg/schema"
)

var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error   string   `json:"error"`
	Detail  string   `json:"detail,omitempty"`
	Details []string `json:"details,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, domain.ErrInvalidOption),
		schema.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrPurchaseNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNodeNotFound):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotPaid):
		return http.StatusPaymentRequired
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)

	resp := errorResponse{Error: err.Error()}
	switch {
	case status == http.StatusInternalServerError:
		s.logger.Error("request failed", "err", err)
		resp.Error = http.StatusText(status)
	case status == http.StatusConflict:
		resp.Error = "broken tree"
		resp.Detail = err.Error()
	case schema.IsValidation(err):
		resp.Error = "invalid tree"
		for _, e := range schema.ValidationErrors(err) {
			resp.Details = append(resp.Details, e.Error())
		}
		if len(resp.Details) == 0 {
			resp.Detail = err.Error()
		}
	}
	writeJSON(w, status, resp, s.logger)
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("response encode failed", "err", err)
	}
}
