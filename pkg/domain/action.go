package domain

import "time"

// ResultSnapshot is the copy of a result node stored with a diagnostic outcome.
type ResultSnapshot struct {
	Type   NodeKind `json:"type"`
	NodeID string   `json:"nodeId"`
	TreeID string   `json:"treeId"`
	Result
}

// NewResultSnapshot copies r so later tree swaps cannot alter the stored outcome.
func NewResultSnapshot(treeID, nodeID string, r *Result) ResultSnapshot {
	cp := *r
	cp.Recommendations = append([]string(nil), r.Recommendations...)
	return ResultSnapshot{
		Type:   KindResult,
		NodeID: nodeID,
		TreeID: treeID,
		Result: cp,
	}
}

// PersistRequest is emitted by the engine on first entry into a result view.
// The host performs the save and reports back only if Generation still matches.
type PersistRequest struct {
	SessionID  string
	Generation uint64
	TreeID     string
	NodeID     string
	Answers    map[string]string
	Snapshot   ResultSnapshot
	IssuedAt   time.Time
}
