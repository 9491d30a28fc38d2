package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/armtemiy/armlab/pkg/domain"
)

const maxBodyBytes = 1 << 20

type advanceRequest struct {
	Label string `json:"label"`
	Next  string `json:"next"`
}

type backResponse struct {
	Exit bool         `json:"exit"`
	View *domain.View `json:"view,omitempty"`
}

// startWizard handles GET /wizard: it resumes the caller's session or starts one.
func (s *Server) startWizard(w http.ResponseWriter, r *http.Request) {
	sessionID, caller, err := s.caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	view, err := s.sessions.Start(r.Context(), sessionID, caller)
	s.respondView(w, sessionID, view, err)
}

func (s *Server) advance(w http.ResponseWriter, r *http.Request) {
	sessionID, caller, err := s.caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var body advanceRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if body.Next == "" {
		s.writeError(w, fmt.Errorf("%w: next is required", errBadRequest))
		return
	}

	view, err := s.sessions.Advance(r.Context(), sessionID, caller, body.Label, body.Next)
	s.respondView(w, sessionID, view, err)
}

// back handles POST /wizard/back. An empty history answers {"exit":true}.
func (s *Server) back(w http.ResponseWriter, r *http.Request) {
	sessionID, caller, err := s.caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	view, err := s.sessions.Back(r.Context(), sessionID, caller)
	if errors.Is(err, domain.ErrExit) {
		writeJSON(w, http.StatusOK, backResponse{Exit: true, View: view}, s.logger)
		return
	}
	s.respondView(w, sessionID, view, err)
}

func (s *Server) restart(w http.ResponseWriter, r *http.Request) {
	sessionID, caller, err := s.caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	view, err := s.sessions.Restart(r.Context(), sessionID, caller)
	s.respondView(w, sessionID, view, err)
}

func (s *Server) respondView(w http.ResponseWriter, sessionID string, view *domain.View, err error) {
	if err != nil {
		if errors.Is(err, domain.ErrNodeNotFound) {
			s.logger.Warn("broken tree", "session_id", sessionID, "err", err)
		}
		s.writeError(w, err)
		return
	}
	s.Streams.Publish(sessionID, EventView, view)
	writeJSON(w, http.StatusOK, view, s.logger)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
	}
	return nil
}
