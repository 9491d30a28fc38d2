package runtime

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/armtemiy/armlab/internal/logging"
	"github.com/armtemiy/armlab/pkg/domain"
)

// Engine is the decision-tree traversal core.
// It is bound to a single tree revision and is stateless: every operation
// takes a State and returns a new one, leaving the input untouched.
type Engine struct {
	tree           *domain.Tree
	revision       uint64
	digest         string
	totalQuestions int

	hooks  domain.LifecycleHooks
	logger *slog.Logger
	now    func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithRevision records the catalog revision the tree belongs to.
func WithRevision(rev uint64) EngineOption {
	return func(e *Engine) {
		e.revision = rev
	}
}

// WithDigest records the content digest of the tree.
func WithDigest(digest string) EngineOption {
	return func(e *Engine) {
		e.digest = digest
	}
}

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine for tree.
// The tree is expected to have passed the shape check; node references are
// not validated and a dangling id only fails when it is rendered.
func NewEngine(tree *domain.Tree, opts ...EngineOption) *Engine {
	e := &Engine{
		tree:           tree,
		totalQuestions: tree.QuestionCount(),
		logger:         logging.NewNop(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Tree returns the tree the engine walks.
func (e *Engine) Tree() *domain.Tree {
	return e.tree
}

// Revision returns the catalog revision of the tree.
func (e *Engine) Revision() uint64 {
	return e.revision
}

// Digest returns the content digest of the tree.
func (e *Engine) Digest() string {
	return e.digest
}

// TotalQuestions is the number of question nodes in the tree.
func (e *Engine) TotalQuestions() int {
	return e.totalQuestions
}

// Start creates a fresh state positioned at the tree start.
// A PersistRequest is returned when the start node is itself a result.
func (e *Engine) Start(ctx context.Context, sessionID string) (*domain.State, *domain.PersistRequest) {
	state := domain.NewState(sessionID, e.tree.Start)
	state.TreeID = e.tree.ID
	state.TreeRevision = e.revision
	state.TreeDigest = e.digest
	state.UpdatedAt = e.now()
	return state, e.enter(ctx, state)
}

// Progress is answered/total questions, clamped to 1.
// A tree without questions has progress 0.
func (e *Engine) Progress(state *domain.State) float64 {
	if e.totalQuestions == 0 {
		return 0
	}
	p := float64(state.AnsweredCount()) / float64(e.totalQuestions)
	return math.Min(p, 1)
}

// Bound reports whether state was built on this engine's tree revision and
// content. Revisions alone are not enough once sessions outlive the process.
func (e *Engine) Bound(state *domain.State) bool {
	return state.TreeRevision == e.revision &&
		state.TreeID == e.tree.ID &&
		state.TreeDigest == e.digest
}
