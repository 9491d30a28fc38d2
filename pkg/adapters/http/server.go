// Package http exposes the diagnostic wizard, tree administration and premium
// purchase flow to the Mini-App as a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/armtemiy/armlab/internal/logging"
	"github.com/armtemiy/armlab/pkg/adapters/telegram"
	"github.com/armtemiy/armlab/pkg/domain"
	"github.com/armtemiy/armlab/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Sessions drives wizard sessions. *session.Manager satisfies it.
type Sessions interface {
	Start(ctx context.Context, sessionID string, caller domain.Caller) (*domain.View, error)
	Advance(ctx context.Context, sessionID string, caller domain.Caller, label, next string) (*domain.View, error)
	Back(ctx context.Context, sessionID string, caller domain.Caller) (*domain.View, error)
	Restart(ctx context.Context, sessionID string, caller domain.Caller) (*domain.View, error)
	Load(ctx context.Context, sessionID string) (*domain.State, error)
}

// Trees holds the active tree. *catalog.Catalog satisfies it.
type Trees interface {
	Current() domain.TreeRef
	Replace(ctx context.Context, tree *domain.Tree) (domain.TreeRef, error)
	Reset(ctx context.Context) (domain.TreeRef, error)
}

// Payments resolves entitlements and runs the invoice flow. *payment.Service satisfies it.
type Payments interface {
	Access(ctx context.Context, user *domain.User) (domain.Access, error)
	CreateInvoice(ctx context.Context, user *domain.User) (*domain.Invoice, error)
	ReportStatus(ctx context.Context, user *domain.User, purchaseID string, status domain.InvoiceStatus) (domain.Access, error)
}

// Authenticator turns raw launch parameters into a user. *telegram.Validator satisfies it.
type Authenticator interface {
	Validate(raw string) (*telegram.LaunchParams, error)
}

// Server wires the HTTP surface to the application services.
type Server struct {
	Streams *StreamManager

	sessions       Sessions
	trees          Trees
	payments       Payments
	auth           Authenticator
	identity       ports.IdentityProvider
	metrics        http.Handler
	logger         *slog.Logger
	allowAnonymous bool
	version        string
}

// Option configures a Server.
type Option func(*Server)

// WithPayments enables premium routes and entitlement lookups.
func WithPayments(p Payments) Option {
	return func(s *Server) { s.payments = p }
}

// WithAuthenticator enables `Authorization: tma <initData>` authentication.
func WithAuthenticator(a Authenticator) Option {
	return func(s *Server) { s.auth = a }
}

// WithIdentity replaces the identity provider (defaults to the request context user).
func WithIdentity(p ports.IdentityProvider) Option {
	return func(s *Server) { s.identity = p }
}

// WithStreams shares a stream manager, typically one also fed by persistence hooks.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) { s.Streams = sm }
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAnonymous lets callers without launch parameters use the wizard,
// keyed by the X-Session-ID header.
func WithAnonymous(allow bool) Option {
	return func(s *Server) { s.allowAnonymous = allow }
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = strings.TrimSpace(v) }
}

// NewServer creates a server over the given sessions and tree catalog.
func NewServer(sessions Sessions, trees Trees, opts ...Option) *Server {
	s := &Server{
		sessions: sessions,
		trees:    trees,
		identity: telegram.Identity{},
		logger:   logging.NewNop(),
		version:  "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.logger)
	}
	return s
}

// NewHandler is shorthand for NewServer(...).Handler().
func NewHandler(sessions Sessions, trees Trees, opts ...Option) http.Handler {
	return NewServer(sessions, trees, opts...).Handler()
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)
	r.Use(s.authenticate)

	r.Get("/health", s.getHealth)
	r.Get("/info", s.getInfo)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/tree", func(r chi.Router) {
		r.Get("/", s.exportTree)
		r.Get("/graph", s.treeGraph)
		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Put("/", s.importTree)
			r.Delete("/", s.resetTree)
		})
	})

	r.Route("/wizard", func(r chi.Router) {
		r.Get("/", s.startWizard)
		r.Post("/advance", s.advance)
		r.Post("/back", s.back)
		r.Post("/restart", s.restart)
		r.Get("/events", s.subscribeEvents)
	})

	if s.payments != nil {
		r.Route("/premium", func(r chi.Router) {
			r.Get("/access", s.premiumAccess)
			r.Post("/invoice", s.createInvoice)
			r.Post("/status", s.reportStatus)
		})
	}

	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Session-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

func (s *Server) getInfo(w http.ResponseWriter, r *http.Request) {
	ref := s.trees.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"app":           "armlab-http",
		"version":       s.version,
		"tree_id":       ref.Tree.ID,
		"tree_revision": ref.Revision,
		"tree_source":   ref.Source,
	}, s.logger)
}
