package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/armtemiy/armlab/pkg/adapters/telegram"
	"github.com/armtemiy/armlab/pkg/domain"
)

const (
	authScheme      = "tma "
	sessionHeader   = "X-Session-ID"
	initDataParam   = "init_data"
	anonSessionArg  = "session_id"
	userSessionPref = "tg:"
	anonSessionPref = "anon:"
)

// authenticate validates launch parameters when present and stores the user
// on the request context. Requests without them pass through anonymously.
// EventSource cannot set headers, so init_data is also read from the query.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), authScheme)
		if !ok {
			raw = r.URL.Query().Get(initDataParam)
		}
		if raw == "" || s.auth == nil {
			next.ServeHTTP(w, r)
			return
		}

		params, err := s.auth.Validate(raw)
		if err != nil {
			s.logger.Warn("launch parameters rejected", "err", err, "path", r.URL.Path)
			s.writeError(w, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err))
			return
		}
		next.ServeHTTP(w, r.WithContext(telegram.WithUser(r.Context(), params.User)))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.identity.CurrentUser(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		if user == nil {
			s.writeError(w, domain.ErrUnauthenticated)
			return
		}
		access, err := s.access(r, user)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if !access.IsAdmin {
			s.logger.Warn("admin route denied", "user_id", user.ID, "path", r.URL.Path)
			s.writeError(w, domain.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) access(r *http.Request, user *domain.User) (domain.Access, error) {
	if s.payments == nil || user == nil {
		return domain.Access{}, nil
	}
	return s.payments.Access(r.Context(), user)
}

// caller resolves the session id and caller for a wizard request.
// Authenticated users own "tg:<id>"; anonymous callers bring their own id.
func (s *Server) caller(r *http.Request) (string, domain.Caller, error) {
	user, err := s.identity.CurrentUser(r.Context())
	if err != nil {
		return "", domain.Caller{}, err
	}
	if user != nil {
		access, err := s.access(r, user)
		if err != nil {
			return "", domain.Caller{}, err
		}
		return userSessionPref + user.ID, domain.Caller{User: user, Access: access}, nil
	}

	if !s.allowAnonymous {
		return "", domain.Caller{}, domain.ErrUnauthenticated
	}
	id := r.Header.Get(sessionHeader)
	if id == "" {
		id = r.URL.Query().Get(anonSessionArg)
	}
	if id == "" {
		return "", domain.Caller{}, fmt.Errorf("%w: %s header required", domain.ErrUnauthenticated, sessionHeader)
	}
	return anonSessionPref + id, domain.Caller{}, nil
}
