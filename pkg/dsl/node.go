package dsl

import "github.com/armtemiy/armlab/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
// Question and Result pick the variant; the last one called wins.
type NodeBuilder struct {
	id       string
	question *domain.Question
	result   *domain.Result
}

// Question marks the node as a question with the given prompt.
func (n *NodeBuilder) Question(text string) *NodeBuilder {
	n.result = nil
	if n.question == nil {
		n.question = &domain.Question{}
	}
	n.question.Text = text
	return n
}

// Helper sets the hint shown under a question.
func (n *NodeBuilder) Helper(text string) *NodeBuilder {
	if n.question != nil {
		n.question.Helper = text
	}
	return n
}

// Option appends an answer leading to target. Options keep insertion order.
func (n *NodeBuilder) Option(label, target string) *NodeBuilder {
	if n.question == nil {
		n.Question("")
	}
	n.question.Options = append(n.question.Options, domain.Option{Label: label, Next: target})
	return n
}

// Result marks the node as a terminal result with the given title.
func (n *NodeBuilder) Result(title string) *NodeBuilder {
	n.question = nil
	if n.result == nil {
		n.result = &domain.Result{}
	}
	n.result.Title = title
	return n
}

// Diagnosis sets the result text.
func (n *NodeBuilder) Diagnosis(text string) *NodeBuilder {
	if n.result != nil {
		n.result.Diagnosis = text
	}
	return n
}

// Recommend appends recommendations to a result.
func (n *NodeBuilder) Recommend(items ...string) *NodeBuilder {
	if n.result != nil {
		n.result.Recommendations = append(n.result.Recommendations, items...)
	}
	return n
}

// Premium locks the result behind the premium purchase.
func (n *NodeBuilder) Premium(teaser string) *NodeBuilder {
	if n.result != nil {
		n.result.Premium = true
		n.result.PremiumTeaser = teaser
	}
	return n
}

// Build returns the underlying domain.Node, or an empty Node when no variant was set.
func (n *NodeBuilder) Build() domain.Node {
	switch {
	case n.question != nil:
		return domain.NewQuestion(*n.question)
	case n.result != nil:
		return domain.NewResult(*n.result)
	}
	return domain.Node{}
}
