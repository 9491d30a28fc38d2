package runtime

import (
	"context"
	"fmt"

	"github.com/armtemiy/armlab/pkg/domain"
)

// Render resolves the current node into a caller-specific view.
// A dangling current id yields an error wrapping domain.ErrNodeNotFound:
// the session is in the "broken tree" state until it is restarted.
func (e *Engine) Render(ctx context.Context, state *domain.State, access domain.Access) (*domain.View, error) {
	node, err := e.tree.Node(state.CurrentNodeID)
	if err != nil {
		return nil, fmt.Errorf("broken tree %q: %w", e.tree.ID, err)
	}

	view := &domain.View{
		SessionID:      state.SessionID,
		TreeID:         e.tree.ID,
		TreeTitle:      e.tree.Title,
		NodeID:         state.CurrentNodeID,
		Kind:           node.Kind(),
		Progress:       e.Progress(state),
		Answered:       state.AnsweredCount(),
		TotalQuestions: e.totalQuestions,
		CanGoBack:      len(state.History) > 0,
		Route:          e.Route(state),
		Save:           state.Save,
		SaveError:      state.SaveError,
	}

	switch node.Kind() {
	case domain.KindQuestion:
		q := *node.Question
		q.Options = append([]domain.Option(nil), node.Question.Options...)
		view.Question = &q
	case domain.KindResult:
		rv := &domain.ResultView{
			Result: *node.Result,
			Locked: node.Result.Locked(access),
		}
		if node.Result.Premium {
			rv.Teaser = node.Result.Teaser()
		}
		view.Result = rv
	}

	return view, nil
}

// Route lists the answered questions in the order they were visited.
// History entries that no longer resolve to a question are skipped.
func (e *Engine) Route(state *domain.State) []domain.RouteStep {
	var route []domain.RouteStep
	for _, id := range state.History {
		answer, ok := state.Answers[id]
		if !ok {
			continue
		}
		node, err := e.tree.Node(id)
		if err != nil || node.Kind() != domain.KindQuestion {
			continue
		}
		route = append(route, domain.RouteStep{
			NodeID:   id,
			Question: node.Question.Text,
			Answer:   answer,
		})
	}
	return route
}
