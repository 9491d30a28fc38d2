package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/armtemiy/armlab/internal/logging"
	"github.com/armtemiy/armlab/internal/runtime"
	"github.com/armtemiy/armlab/pkg/domain"
	"github.com/armtemiy/armlab/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed session lock is held.
const DefaultLockTTL = 30 * time.Second

// TreeProvider supplies the active tree. *catalog.Catalog implements it.
type TreeProvider interface {
	Current() domain.TreeRef
}

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store   ports.StateStore
	trees   TreeProvider
	results ports.ResultStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	engineMu sync.Mutex
	engine   *runtime.Engine

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
	hooks   domain.LifecycleHooks
	strict  bool
	maxIn   int

	wg sync.WaitGroup
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager and its engines.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
// Node hooks are passed to the engine; OnPersist fires when a save settles.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Manager) {
		m.hooks = hooks
	}
}

// WithStrictOptions rejects Advance calls whose (label, next) pair is not
// offered by the current question.
func WithStrictOptions(strict bool) Option {
	return func(m *Manager) {
		m.strict = strict
	}
}

// WithMaxInputSize overrides DefaultMaxInputSize.
func WithMaxInputSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxIn = n
		}
	}
}

// NewManager creates a new Session Manager.
func NewManager(store ports.StateStore, trees TreeProvider, results ports.ResultStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		trees:   trees,
		results: results,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		maxIn:   DefaultMaxInputSize,
		logger:  logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Engine returns the engine for the active tree revision.
// Engines are rebuilt only when the revision changes.
func (m *Manager) Engine() *runtime.Engine {
	ref := m.trees.Current()

	m.engineMu.Lock()
	defer m.engineMu.Unlock()

	if m.engine == nil || m.engine.Revision() != ref.Revision || m.engine.Tree() != ref.Tree {
		m.engine = runtime.NewEngine(ref.Tree,
			runtime.WithRevision(ref.Revision),
			runtime.WithDigest(ref.Digest),
			runtime.WithLogger(m.logger),
			runtime.WithLifecycleHooks(m.hooks),
		)
	}
	return m.engine
}

// Start loads the session, creating it at the tree start when missing.
func (m *Manager) Start(ctx context.Context, sessionID string, caller domain.Caller) (*domain.View, error) {
	return m.apply(ctx, sessionID, caller, true, nil)
}

// View renders the session without changing it (beyond a tree swap reset).
// It returns domain.ErrSessionNotFound for unknown sessions.
func (m *Manager) View(ctx context.Context, sessionID string, caller domain.Caller) (*domain.View, error) {
	return m.apply(ctx, sessionID, caller, false, nil)
}

// Advance answers the current question with label and moves to next.
func (m *Manager) Advance(ctx context.Context, sessionID string, caller domain.Caller, label, next string) (*domain.View, error) {
	label, err := sanitizeInput(label, m.maxIn)
	if err != nil {
		return nil, err
	}
	if next, err = sanitizeInput(next, m.maxIn); err != nil {
		return nil, err
	}
	return m.apply(ctx, sessionID, caller, true, func(ctx context.Context, eng *runtime.Engine, state *domain.State) (*domain.State, *domain.PersistRequest, error) {
		if m.strict {
			if err := checkOption(eng.Tree(), state.CurrentNodeID, label, next); err != nil {
				return nil, nil, err
			}
		}
		advanced, req := eng.Advance(ctx, state, label, next)
		return advanced, req, nil
	})
}

// Back steps to the previous question. On an empty history it returns the
// current view together with domain.ErrExit.
func (m *Manager) Back(ctx context.Context, sessionID string, caller domain.Caller) (*domain.View, error) {
	var exit bool
	view, err := m.apply(ctx, sessionID, caller, true, func(ctx context.Context, eng *runtime.Engine, state *domain.State) (*domain.State, *domain.PersistRequest, error) {
		previous, err := eng.GoBack(ctx, state)
		if errors.Is(err, domain.ErrExit) {
			exit = true
			return state, nil, nil
		}
		return previous, nil, err
	})
	if err != nil {
		return view, err
	}
	if exit {
		return view, domain.ErrExit
	}
	return view, nil
}

// Restart returns the session to the tree start.
func (m *Manager) Restart(ctx context.Context, sessionID string, caller domain.Caller) (*domain.View, error) {
	return m.apply(ctx, sessionID, caller, true, func(ctx context.Context, eng *runtime.Engine, state *domain.State) (*domain.State, *domain.PersistRequest, error) {
		fresh, req := eng.Restart(ctx, state)
		return fresh, req, nil
	})
}

// Load retrieves an existing session from the store.
func (m *Manager) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	var state *domain.State
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		state, err = m.store.Load(ctx, sessionID)
		return err
	})
	return state, err
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Wait blocks until all in-flight result saves have settled.
func (m *Manager) Wait() {
	m.wg.Wait()
}

type transition func(ctx context.Context, eng *runtime.Engine, state *domain.State) (*domain.State, *domain.PersistRequest, error)

// apply is the load / reconcile / transition / save / render cycle shared by
// every operation. A nil step only reconciles.
func (m *Manager) apply(ctx context.Context, sessionID string, caller domain.Caller, create bool, step transition) (*domain.View, error) {
	var (
		view    *domain.View
		tickets []*domain.PersistRequest
	)

	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var reqs []*domain.PersistRequest
		eng := m.Engine()

		state, changed, req, err := m.loadBound(ctx, eng, sessionID, create)
		if err != nil {
			return err
		}
		if req != nil {
			reqs = append(reqs, req)
		}

		if step != nil {
			next, req, err := step(ctx, eng, state)
			if err != nil {
				return err
			}
			if next != state {
				state, changed = next, true
			}
			if req != nil {
				reqs = append(reqs, req)
			}
		}

		if changed {
			if err := m.store.Save(ctx, sessionID, state); err != nil {
				return fmt.Errorf("failed to save session: %w", err)
			}
		}

		// A reset followed by a restart in the same cycle leaves a ticket from a
		// superseded generation behind.
		for _, req := range reqs {
			if req.Generation == state.Generation {
				tickets = append(tickets, req)
			}
		}

		view, err = eng.Render(ctx, state, caller.Access)
		return err
	})

	// Tickets are only valid once the state that carries them is stored.
	for _, req := range tickets {
		if err == nil || errors.Is(err, domain.ErrNodeNotFound) {
			m.launch(ctx, caller, req)
		}
	}
	return view, err
}

// loadBound loads the session and rebinds it to the active tree revision.
// A state built on an older revision is fully reset, even when node ids coincide.
func (m *Manager) loadBound(ctx context.Context, eng *runtime.Engine, sessionID string, create bool) (*domain.State, bool, *domain.PersistRequest, error) {
	state, err := m.store.Load(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		if !create {
			return nil, false, nil, err
		}
		state, req := eng.Start(ctx, sessionID)
		m.logger.Debug("session started", "session_id", sessionID, "tree_id", state.TreeID)
		return state, true, req, nil
	}
	if err != nil {
		return nil, false, nil, fmt.Errorf("failed to load session: %w", err)
	}

	if eng.Bound(state) {
		return state, false, nil, nil
	}

	m.logger.Info("tree changed, resetting session",
		"session_id", sessionID,
		"from_tree", state.TreeID,
		"from_revision", state.TreeRevision,
		"to_revision", eng.Revision(),
		"content_changed", state.TreeDigest != eng.Digest(),
	)
	state, req := eng.Restart(ctx, state)
	return state, true, req, nil
}

func checkOption(tree *domain.Tree, current, label, next string) error {
	node, err := tree.Node(current)
	if err != nil || node.Kind() != domain.KindQuestion {
		// Advance is a no-op here.
		return nil
	}
	if !node.Question.Offers(label, next) {
		return fmt.Errorf("%w: %q -> %q", domain.ErrInvalidOption, label, next)
	}
	return nil
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
