package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/armtemiy/armlab/internal/logging"
	"github.com/armtemiy/armlab/pkg/domain"
	"github.com/armtemiy/armlab/pkg/ports"
	"github.com/armtemiy/armlab/pkg/schema"
)

//go:embed default_tree.json
var defaultTreeJSON []byte

// DefaultTree decodes the built-in "loss-analyzer-v1" tree.
// A fresh copy is returned on every call.
func DefaultTree() *domain.Tree {
	tree, err := schema.DecodeJSON(defaultTreeJSON)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded tree is invalid: %v", err))
	}
	return tree
}

// Catalog holds the active tree and its revision.
type Catalog struct {
	mu       sync.RWMutex
	def      *domain.Tree
	defSum   string
	current  domain.TreeRef
	store    ports.TreeStore
	logger   *slog.Logger
	onChange []func(domain.TreeRef)
}

// Option configures the Catalog.
type Option func(*Catalog)

// WithDefault replaces the built-in default tree.
func WithDefault(tree *domain.Tree) Option {
	return func(c *Catalog) {
		c.def = tree
	}
}

// WithLogger configures a logger for the Catalog.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// WithChangeHook registers fn to run after every swap.
func WithChangeHook(fn func(domain.TreeRef)) Option {
	return func(c *Catalog) {
		c.onChange = append(c.onChange, fn)
	}
}

// New creates a catalog serving the default tree at revision 1.
// store may be nil, in which case overrides live only in memory.
func New(store ports.TreeStore, opts ...Option) *Catalog {
	c := &Catalog{
		store:  store,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.def == nil {
		c.def = DefaultTree()
	}
	sum, err := schema.Digest(c.def)
	if err != nil {
		c.logger.Warn("default tree cannot be digested", "tree_id", c.def.ID, "err", err)
	}
	c.defSum = sum
	c.current = domain.TreeRef{Tree: c.def, Revision: 1, Digest: sum, Source: domain.SourceDefault}
	return c
}

// Current returns the active tree with its revision.
func (c *Catalog) Current() domain.TreeRef {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Default returns the default tree.
func (c *Catalog) Default() *domain.Tree {
	return c.def
}

// Replace validates the tree shape and installs it as the override.
// An invalid tree leaves the catalog untouched.
func (c *Catalog) Replace(ctx context.Context, tree *domain.Tree) (domain.TreeRef, error) {
	if err := schema.CheckShape(tree); err != nil {
		return c.Current(), err
	}
	sum, err := schema.Digest(tree)
	if err != nil {
		return c.Current(), err
	}
	if lint := schema.Lint(tree); lint != nil {
		c.logger.Warn("tree override has integrity issues", "tree_id", tree.ID, "err", lint)
	}

	if c.store != nil {
		if err := c.store.SaveOverride(ctx, tree); err != nil {
			return c.Current(), fmt.Errorf("failed to persist tree override: %w", err)
		}
	}

	ref := c.swap(tree, sum, domain.SourceOverride)
	c.logger.Info("tree override installed", "tree_id", tree.ID, "revision", ref.Revision)
	return ref, nil
}

// Reset drops the override and returns to the default tree.
func (c *Catalog) Reset(ctx context.Context) (domain.TreeRef, error) {
	if c.store != nil {
		if err := c.store.DeleteOverride(ctx); err != nil {
			return c.Current(), fmt.Errorf("failed to delete tree override: %w", err)
		}
	}

	ref := c.swap(c.def, c.defSum, domain.SourceDefault)
	c.logger.Info("tree reset to default", "tree_id", c.def.ID, "revision", ref.Revision)
	return ref, nil
}

// Load restores a persisted override, if any. It is meant for startup.
func (c *Catalog) Load(ctx context.Context) (domain.TreeRef, error) {
	if c.store == nil {
		return c.Current(), nil
	}

	tree, err := c.store.LoadOverride(ctx)
	if errors.Is(err, domain.ErrNoOverride) {
		return c.Current(), nil
	}
	if err != nil {
		return c.Current(), fmt.Errorf("failed to load tree override: %w", err)
	}
	if err := schema.CheckShape(tree); err != nil {
		c.logger.Warn("ignoring stored tree override", "err", err)
		return c.Current(), nil
	}
	sum, err := schema.Digest(tree)
	if err != nil {
		c.logger.Warn("ignoring stored tree override", "err", err)
		return c.Current(), nil
	}

	return c.swap(tree, sum, domain.SourceOverride), nil
}

func (c *Catalog) swap(tree *domain.Tree, digest string, source domain.TreeSource) domain.TreeRef {
	c.mu.Lock()
	c.current = domain.TreeRef{
		Tree:     tree,
		Revision: c.current.Revision + 1,
		Digest:   digest,
		Source:   source,
	}
	ref := c.current
	hooks := c.onChange
	c.mu.Unlock()

	for _, fn := range hooks {
		fn(ref)
	}
	return ref
}
