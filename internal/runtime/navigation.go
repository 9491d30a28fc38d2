package runtime

import (
	"context"

	"github.com/armtemiy/armlab/pkg/domain"
)

// Advance records label as the answer of the current question and moves to next.
// It is a no-op when the current node is not a question (or does not resolve).
// next is not checked against the tree: a dangling target surfaces on Render.
func (e *Engine) Advance(ctx context.Context, state *domain.State, label, next string) (*domain.State, *domain.PersistRequest) {
	node, err := e.tree.Node(state.CurrentNodeID)
	if err != nil || node.Kind() != domain.KindQuestion {
		e.logger.Debug("advance ignored: current node is not a question",
			"session_id", state.SessionID,
			"node_id", state.CurrentNodeID,
		)
		return cloneState(state), nil
	}

	e.emitNodeLeave(ctx, state, state.CurrentNodeID, node)

	nextState := cloneState(state)
	nextState.Answers[state.CurrentNodeID] = label
	nextState.History = append(nextState.History, state.CurrentNodeID)
	nextState.CurrentNodeID = next
	nextState.UpdatedAt = e.now()

	return nextState, e.enter(ctx, nextState)
}

// GoBack pops the last visited question and forgets the answer given there.
// On an empty history it returns the state unchanged and domain.ErrExit.
func (e *Engine) GoBack(ctx context.Context, state *domain.State) (*domain.State, error) {
	n := len(state.History)
	if n == 0 {
		return state, domain.ErrExit
	}

	if node, err := e.tree.Node(state.CurrentNodeID); err == nil {
		e.emitNodeLeave(ctx, state, state.CurrentNodeID, node)
	}

	previous := state.History[n-1]
	nextState := cloneState(state)
	nextState.History = nextState.History[:n-1]
	delete(nextState.Answers, previous)
	nextState.CurrentNodeID = previous
	nextState.UpdatedAt = e.now()

	if node, err := e.tree.Node(previous); err == nil {
		e.emitNodeEnter(ctx, nextState, previous, node)
	}
	return nextState, nil
}

// Restart returns to the tree start with empty history and answers and a
// fresh save status. The generation is bumped so that an in-flight save of
// the previous view is ignored. It also rebinds a state to this engine's
// tree, which is how a tree swap resets sessions.
func (e *Engine) Restart(ctx context.Context, state *domain.State) (*domain.State, *domain.PersistRequest) {
	nextState := cloneState(state)
	nextState.TreeID = e.tree.ID
	nextState.TreeRevision = e.revision
	nextState.TreeDigest = e.digest
	nextState.CurrentNodeID = e.tree.Start
	nextState.History = []string{}
	nextState.Answers = make(map[string]string)
	nextState.Persisted = false
	nextState.Save = domain.SaveIdle
	nextState.SaveError = ""
	nextState.Generation++
	nextState.UpdatedAt = e.now()

	e.emitRestart(ctx, nextState)
	return nextState, e.enter(ctx, nextState)
}

// enter runs the entry side of a transition into state.CurrentNodeID.
// On the first entry into a result view it flips the save status to saving
// and returns the request the host must persist; afterwards it returns nil
// until Restart.
func (e *Engine) enter(ctx context.Context, state *domain.State) *domain.PersistRequest {
	node, err := e.tree.Node(state.CurrentNodeID)
	if err != nil {
		e.logger.Warn("entered unresolved node",
			"session_id", state.SessionID,
			"tree_id", e.tree.ID,
			"node_id", state.CurrentNodeID,
		)
		return nil
	}

	e.emitNodeEnter(ctx, state, state.CurrentNodeID, node)

	if !node.IsTerminal() || state.Persisted {
		return nil
	}

	state.Persisted = true
	state.Save = domain.SaveSaving
	state.SaveError = ""

	answers := make(map[string]string, len(state.Answers))
	for k, v := range state.Answers {
		answers[k] = v
	}

	return &domain.PersistRequest{
		SessionID:  state.SessionID,
		Generation: state.Generation,
		TreeID:     e.tree.ID,
		NodeID:     state.CurrentNodeID,
		Answers:    answers,
		Snapshot:   domain.NewResultSnapshot(e.tree.ID, state.CurrentNodeID, node.Result),
		IssuedAt:   e.now(),
	}
}

// cloneState creates a deep copy of the state for safe mutation.
func cloneState(src *domain.State) *domain.State {
	next := src.Snapshot()
	if next.Answers == nil {
		next.Answers = make(map[string]string)
	}
	return next
}
