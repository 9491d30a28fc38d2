package runtime

import (
	"context"

	"github.com/armtemiy/armlab/pkg/domain"
)

func (e *Engine) emitNodeEnter(ctx context.Context, state *domain.State, id string, node domain.Node) {
	if e.hooks.OnNodeEnter == nil {
		return
	}
	e.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{
			Timestamp: e.now(),
			Type:      domain.EventNodeEnter,
			SessionID: state.SessionID,
		},
		NodeID:   id,
		NodeKind: node.Kind(),
	})
}

func (e *Engine) emitNodeLeave(ctx context.Context, state *domain.State, id string, node domain.Node) {
	if e.hooks.OnNodeLeave == nil {
		return
	}
	e.hooks.OnNodeLeave(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{
			Timestamp: e.now(),
			Type:      domain.EventNodeLeave,
			SessionID: state.SessionID,
		},
		NodeID:   id,
		NodeKind: node.Kind(),
	})
}

func (e *Engine) emitRestart(ctx context.Context, state *domain.State) {
	if e.hooks.OnRestart == nil {
		return
	}
	e.hooks.OnRestart(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{
			Timestamp: e.now(),
			Type:      domain.EventRestart,
			SessionID: state.SessionID,
		},
		NodeID: state.CurrentNodeID,
	})
}
