package dsl

import (
	"fmt"

	"github.com/armtemiy/armlab/pkg/domain"
	"github.com/armtemiy/armlab/pkg/schema"
)

// Builder manages the tree construction.
type Builder struct {
	id    string
	title string
	start string
	order []string
	nodes map[string]*NodeBuilder
}

// New creates a new tree builder.
func New(id string) *Builder {
	return &Builder{
		id:    id,
		nodes: make(map[string]*NodeBuilder),
	}
}

// Title sets the human readable tree title.
func (b *Builder) Title(title string) *Builder {
	b.title = title
	return b
}

// Start overrides the start node.
func (b *Builder) Start(id string) *Builder {
	b.start = id
	return b
}

// Add creates a new node in the tree.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{id: id}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Build assembles the tree and checks its shape. Every node needs a variant. Dangling references are
// allowed, the same as for decoded trees; run schema.Lint to report them.
func (b *Builder) Build() (*domain.Tree, error) {
	tree := &domain.Tree{
		ID:    b.id,
		Title: b.title,
		Start: b.start,
		Nodes: make(map[string]domain.Node, len(b.nodes)),
	}
	if tree.Start == "" && len(b.order) > 0 {
		tree.Start = b.order[0]
	}
	var errs []error
	for _, id := range b.order {
		node := b.nodes[id].Build()
		if node.Kind() == "" {
			errs = append(errs, &schema.ValidationError{Key: "nodes." + id, Reason: "is neither a question nor a result"})
			continue
		}
		tree.Nodes[id] = node
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to build tree %q: %w", b.id, &schema.AggregateError{Errors: errs})
	}

	if err := schema.CheckShape(tree); err != nil {
		return nil, fmt.Errorf("failed to build tree %q: %w", b.id, err)
	}
	return tree, nil
}

// MustBuild is Build for trees fixed at compile time. It panics on error.
func (b *Builder) MustBuild() *domain.Tree {
	tree, err := b.Build()
	if err != nil {
		panic(err)
	}
	return tree
}
