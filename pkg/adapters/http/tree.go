package http

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/armtemiy/armlab/internal/presentation/graph"
	"github.com/armtemiy/armlab/pkg/domain"
	"github.com/armtemiy/armlab/pkg/schema"
)

type treeResponse struct {
	TreeID   string            `json:"tree_id"`
	Revision uint64            `json:"revision"`
	Source   domain.TreeSource `json:"source"`
	Warnings []string          `json:"warnings,omitempty"`
}

func (s *Server) exportTree(w http.ResponseWriter, r *http.Request) {
	ref := s.trees.Current()
	data, err := schema.Encode(ref.Tree)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Tree-Revision", strconv.FormatUint(ref.Revision, 10))
	w.Write(data)
}

// importTree handles PUT /tree. JSON by default, YAML when the content type says so.
// Deep lint findings do not block the import; they are returned as warnings.
func (s *Server) importTree(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	format := "json"
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		format = "yaml"
	}
	tree, err := schema.Decode(data, format)
	if err != nil {
		s.writeError(w, err)
		return
	}

	ref, err := s.trees.Replace(r.Context(), tree)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := treeResponse{TreeID: ref.Tree.ID, Revision: ref.Revision, Source: ref.Source}
	if lint := schema.Lint(tree); lint != nil {
		for _, e := range schema.ValidationErrors(lint) {
			resp.Warnings = append(resp.Warnings, e.Error())
		}
	}
	s.logger.Info("tree imported", "tree_id", ref.Tree.ID, "revision", ref.Revision, "warnings", len(resp.Warnings))
	writeJSON(w, http.StatusOK, resp, s.logger)
}

func (s *Server) resetTree(w http.ResponseWriter, r *http.Request) {
	ref, err := s.trees.Reset(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("tree reset to default", "tree_id", ref.Tree.ID, "revision", ref.Revision)
	writeJSON(w, http.StatusOK, treeResponse{TreeID: ref.Tree.ID, Revision: ref.Revision, Source: ref.Source}, s.logger)
}

// treeGraph renders the active tree as Mermaid, highlighting the caller's
// path when they have a session on it.
func (s *Server) treeGraph(w http.ResponseWriter, r *http.Request) {
	ref := s.trees.Current()

	var overlay *graph.GraphOverlay
	if sessionID, _, err := s.caller(r); err == nil {
		if state, err := s.sessions.Load(r.Context(), sessionID); err == nil && state.TreeRevision == ref.Revision && state.TreeDigest == ref.Digest {
			overlay = graph.OverlayFor(state)
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, graph.GenerateMermaid(ref.Tree, overlay))
}
