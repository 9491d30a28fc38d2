package domain

import "time"

// SaveStatus tracks the result persistence of the current result view.
// idle -> saving -> {saved | error}; saved and error only reset on Restart or tree swap.
type SaveStatus string

const (
	SaveIdle   SaveStatus = "idle"
	SaveSaving SaveStatus = "saving"
	SaveSaved  SaveStatus = "saved"
	SaveFailed SaveStatus = "error"
)

// State is the traversal state of one session.
type State struct {
	SessionID string `json:"session_id"`

	// TreeID, TreeRevision and TreeDigest bind the state to the tree it was built on.
	TreeID       string `json:"tree_id"`
	TreeRevision uint64 `json:"tree_revision"`
	TreeDigest   string `json:"tree_digest,omitempty"`

	// CurrentNodeID is the node being presented.
	CurrentNodeID string `json:"current_node_id"`

	// History is the back-navigation stack of previously visited question ids.
	History []string `json:"history"`

	// Answers maps a visited question id to the label chosen there.
	Answers map[string]string `json:"answers"`

	// Generation is bumped on Restart and tree swap.
	// Background persistence compares it before writing its outcome back.
	Generation uint64 `json:"generation"`

	// Persisted is set on first entry into a result view.
	Persisted bool       `json:"persisted"`
	Save      SaveStatus `json:"save_status"`
	SaveError string     `json:"save_error,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`

	// Sealed is set only on envelopes written by an encrypting store; it holds
	// the whole state as ciphertext.
	Sealed string `json:"sealed,omitempty"`
}

// NewState creates a clean state positioned at startNodeID.
func NewState(sessionID, startNodeID string) *State {
	return &State{
		SessionID:     sessionID,
		CurrentNodeID: startNodeID,
		History:       []string{},
		Answers:       make(map[string]string),
		Save:          SaveIdle,
	}
}

// Snapshot returns a deep copy of the state.
func (s *State) Snapshot() *State {
	if s == nil {
		return nil
	}
	next := *s
	next.History = append([]string(nil), s.History...)
	if next.History == nil {
		next.History = []string{}
	}
	next.Answers = make(map[string]string, len(s.Answers))
	for k, v := range s.Answers {
		next.Answers[k] = v
	}
	return &next
}

// AnsweredCount is the number of recorded answers.
func (s *State) AnsweredCount() int {
	return len(s.Answers)
}
