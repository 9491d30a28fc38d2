package http

import (
	"fmt"
	"net/http"

	"github.com/armtemiy/armlab/pkg/domain"
)

type statusRequest struct {
	PurchaseID string               `json:"purchase_id"`
	Status     domain.InvoiceStatus `json:"status"`
}

type accessResponse struct {
	Access domain.Access `json:"access"`
}

func (s *Server) premiumAccess(w http.ResponseWriter, r *http.Request) {
	user, err := s.identity.CurrentUser(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	access, err := s.access(r, user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accessResponse{Access: access}, s.logger)
}

func (s *Server) createInvoice(w http.ResponseWriter, r *http.Request) {
	user, err := s.identity.CurrentUser(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	invoice, err := s.payments.CreateInvoice(r.Context(), user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invoice, s.logger)
}

// reportStatus handles POST /premium/status, sent when the invoice UI closes.
func (s *Server) reportStatus(w http.ResponseWriter, r *http.Request) {
	user, err := s.identity.CurrentUser(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	var body statusRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if body.PurchaseID == "" || body.Status == "" {
		s.writeError(w, fmt.Errorf("%w: purchase_id and status are required", errBadRequest))
		return
	}

	access, err := s.payments.ReportStatus(r.Context(), user, body.PurchaseID, body.Status)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accessResponse{Access: access}, s.logger)
}
