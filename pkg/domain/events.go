package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter EventType = "node_enter"
	EventNodeLeave EventType = "node_leave"
	EventRestart   EventType = "restart"
	EventPersist   EventType = "persist"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// NodeEvent represents entry or exit from a node.
type NodeEvent struct {
	EventBase
	NodeID   string   `json:"node_id"`
	NodeKind NodeKind `json:"node_kind"`
}

// PersistEvent reports the outcome of a result save.
type PersistEvent struct {
	EventBase
	TreeID string     `json:"tree_id"`
	NodeID string     `json:"node_id"`
	Status SaveStatus `json:"status"`
	Stale  bool       `json:"stale,omitempty"`
	Err    error      `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnNodeEnter func(context.Context, *NodeEvent)
	OnNodeLeave func(context.Context, *NodeEvent)
	OnRestart   func(context.Context, *NodeEvent)
	OnPersist   func(context.Context, *PersistEvent)
}
