package schema

import (
	"fmt"

	"github.com/armtemiy/armlab/pkg/domain"
)

// CheckShape is the import gate: a tree needs a start id and at least one node.
// References are deliberately not followed.
func CheckShape(tree *domain.Tree) error {
	if tree == nil {
		return &ValidationError{Key: "tree", Reason: "required"}
	}

	var errs []error
	if tree.Start == "" {
		errs = append(errs, &ValidationError{Key: "start", Reason: "required"})
	}
	if len(tree.Nodes) == 0 {
		errs = append(errs, &ValidationError{Key: "nodes", Reason: "must not be empty"})
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

// Lint checks graph integrity: the start and every option target must
// resolve, every node must be reachable from start and every question must
// offer at least one option. All issues are reported at once.
func Lint(tree *domain.Tree) error {
	if err := CheckShape(tree); err != nil {
		return err
	}

	var errs []error

	if _, ok := tree.Nodes[tree.Start]; !ok {
		errs = append(errs, &ValidationError{Key: "start", Reason: fmt.Sprintf("references missing node %q", tree.Start)})
	}

	for _, id := range tree.NodeIDs() {
		node := tree.Nodes[id]
		switch node.Kind() {
		case domain.KindQuestion:
			if len(node.Question.Options) == 0 {
				errs = append(errs, &ValidationError{Key: "nodes." + id, Reason: "question has no options"})
			}
			seen := make(map[string]bool, len(node.Question.Options))
			for i, opt := range node.Question.Options {
				if seen[opt.Label] {
					errs = append(errs, &ValidationError{Key: fmt.Sprintf("nodes.%s.options[%d]", id, i), Reason: fmt.Sprintf("duplicate label %q", opt.Label)})
				}
				seen[opt.Label] = true
				if _, ok := tree.Nodes[opt.Next]; !ok {
					errs = append(errs, &ValidationError{Key: fmt.Sprintf("nodes.%s.options[%d]", id, i), Reason: fmt.Sprintf("references missing node %q", opt.Next)})
				}
			}
		case domain.KindResult:
			if node.Result.Title == "" {
				errs = append(errs, &ValidationError{Key: "nodes." + id, Reason: "result has no title"})
			}
		default:
			errs = append(errs, &ValidationError{Key: "nodes." + id, Reason: "node has no type"})
		}
	}

	reachable := Reachable(tree)
	for _, id := range tree.NodeIDs() {
		if !reachable[id] {
			errs = append(errs, &ValidationError{Key: "nodes." + id, Reason: "unreachable from start"})
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

// Reachable returns the set of existing node ids reachable from the start node.
func Reachable(tree *domain.Tree) map[string]bool {
	visited := make(map[string]bool)
	queue := []string{tree.Start}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if visited[id] {
			continue
		}
		node, ok := tree.Nodes[id]
		if !ok {
			continue
		}
		visited[id] = true

		if node.Kind() != domain.KindQuestion {
			continue // sink
		}
		for _, opt := range node.Question.Options {
			if !visited[opt.Next] {
				queue = append(queue, opt.Next)
			}
		}
	}
	return visited
}
