package domain

import (
	"fmt"
	"sort"
)

// Tree is an immutable decision graph.
// Node ids are the keys of Nodes; map order carries no meaning.
type Tree struct {
	ID    string          `json:"id"`
	Title string          `json:"title"`
	Start string          `json:"start"`
	Nodes map[string]Node `json:"nodes"`
}

// Node resolves id, returning ErrNodeNotFound for a dangling reference.
func (t *Tree) Node(id string) (Node, error) {
	n, ok := t.Nodes[id]
	if !ok || n.Kind() == "" {
		return Node{}, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	return n, nil
}

// QuestionCount returns the number of Question nodes in the tree.
func (t *Tree) QuestionCount() int {
	count := 0
	for _, n := range t.Nodes {
		if n.Kind() == KindQuestion {
			count++
		}
	}
	return count
}

// NodeIDs returns all node ids in a deterministic (sorted) order.
func (t *Tree) NodeIDs() []string {
	ids := make([]string, 0, len(t.Nodes))
	for id := range t.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TreeSource tells where the active tree came from.
type TreeSource string

const (
	SourceDefault  TreeSource = "default"
	SourceOverride TreeSource = "override"
)

// TreeRef is the active tree together with its revision.
// The revision changes on every swap, so sessions can detect that their
// traversal state belongs to a previous tree even when the ids match.
// Revisions restart with the process; Digest identifies the tree content
// across restarts.
type TreeRef struct {
	Tree     *Tree
	Revision uint64
	Digest   string
	Source   TreeSource
}
