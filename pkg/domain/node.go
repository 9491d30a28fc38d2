package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// NodeKind discriminates the two node variants of a diagnostic tree.
type NodeKind string

const (
	// KindQuestion is a branching node: it halts and waits for an option to be chosen.
	KindQuestion NodeKind = "question"
	// KindResult is a terminal node (sink) carrying the diagnosis.
	KindResult NodeKind = "result"
)

// Option is a labelled edge from a Question to its target node.
// The label doubles as the key stored in the answer record.
type Option struct {
	Label string `json:"label"`
	Next  string `json:"next"`
}

// Question is the branching variant of a Node.
// Options are kept in display order.
type Question struct {
	Text    string   `json:"text"`
	Helper  string   `json:"helper,omitempty"`
	Options []Option `json:"options"`
}

// Offers reports whether the question has an option with this exact label and target.
func (q *Question) Offers(label, next string) bool {
	for _, o := range q.Options {
		if o.Label == label && o.Next == next {
			return true
		}
	}
	return false
}

// Result is the terminal variant of a Node.
type Result struct {
	Title           string   `json:"title"`
	Diagnosis       string   `json:"diagnosis"`
	Recommendations []string `json:"recommendations"`
	Premium         bool     `json:"premium,omitempty"`
	PremiumTeaser   string   `json:"premiumTeaser,omitempty"`
}

// Node is a tagged union: exactly one of Question or Result is set.
// Use NewQuestion / NewResult to build one and Kind to switch on it.
type Node struct {
	Question *Question
	Result   *Result
}

// NewQuestion wraps q into a Node.
func NewQuestion(q Question) Node {
	return Node{Question: &q}
}

// NewResult wraps r into a Node.
func NewResult(r Result) Node {
	return Node{Result: &r}
}

// Kind returns the variant tag, or "" for an empty node.
func (n Node) Kind() NodeKind {
	switch {
	case n.Question != nil:
		return KindQuestion
	case n.Result != nil:
		return KindResult
	}
	return ""
}

// IsTerminal reports whether the node is a Result.
func (n Node) IsTerminal() bool {
	return n.Result != nil
}

var errEmptyNode = errors.New("node has no variant")

type questionWire struct {
	Type NodeKind `json:"type"`
	Question
}

type resultWire struct {
	Type NodeKind `json:"type"`
	Result
}

// MarshalJSON encodes the node in the flat wire format
// ({"type":"question",...} or {"type":"result",...}).
func (n Node) MarshalJSON() ([]byte, error) {
	switch n.Kind() {
	case KindQuestion:
		q := *n.Question
		if q.Options == nil {
			q.Options = []Option{}
		}
		return json.Marshal(questionWire{Type: KindQuestion, Question: q})
	case KindResult:
		r := *n.Result
		if r.Recommendations == nil {
			r.Recommendations = []string{}
		}
		return json.Marshal(resultWire{Type: KindResult, Result: r})
	}
	return nil, errEmptyNode
}

// UnmarshalJSON decodes the flat wire format, rejecting unknown types.
func (n *Node) UnmarshalJSON(data []byte) error {
	var head struct {
		Type NodeKind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	switch head.Type {
	case KindQuestion:
		var w questionWire
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		*n = Node{Question: &w.Question}
	case KindResult:
		var w resultWire
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		*n = Node{Result: &w.Result}
	case "":
		return errors.New("node is missing \"type\"")
	default:
		return fmt.Errorf("unknown node type %q", head.Type)
	}
	return nil
}
