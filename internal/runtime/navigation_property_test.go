package runtime_test

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/armtemiy/armlab/internal/runtime"
	"github.com/armtemiy/armlab/pkg/domain"
	"github.com/stretchr/testify/require"
)

// cyclicTree revisits questions so that answered/total can exceed 1 before clamping.
func cyclicTree() *domain.Tree {
	return &domain.Tree{
		ID:    "cyclic",
		Start: "a",
		Nodes: map[string]domain.Node{
			"a": domain.NewQuestion(domain.Question{Text: "a", Options: []domain.Option{{Label: "to-b", Next: "b"}, {Label: "end", Next: "r"}}}),
			"b": domain.NewQuestion(domain.Question{Text: "b", Options: []domain.Option{{Label: "to-a", Next: "a"}, {Label: "to-c", Next: "c"}}}),
			"c": domain.NewQuestion(domain.Question{Text: "c", Options: []domain.Option{{Label: "to-b", Next: "b"}, {Label: "end", Next: "r"}}}),
			"r": domain.NewResult(domain.Result{Title: "r"}),
		},
	}
}

func TestNavigation_RandomWalkInvariants(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	for _, tree := range []*domain.Tree{exampleTree(), cyclicTree()} {
		engine := runtime.NewEngine(tree)
		total := float64(tree.QuestionCount())

		for walk := 0; walk < 200; walk++ {
			state, _ := engine.Start(ctx, "walk")
			requests := 0

			for step := 0; step < 30; step++ {
				node, err := tree.Node(state.CurrentNodeID)
				require.NoError(t, err)

				if rng.Intn(4) == 0 {
					prev := state
					back, err := engine.GoBack(ctx, state)
					if len(prev.History) == 0 {
						require.ErrorIs(t, err, domain.ErrExit)
						require.Equal(t, prev, back)
						continue
					}
					require.NoError(t, err)
					popped := prev.History[len(prev.History)-1]
					require.Equal(t, popped, back.CurrentNodeID)
					_, still := back.Answers[popped]
					require.False(t, still)
					state = back
					continue
				}

				if node.IsTerminal() {
					break
				}
				opt := node.Question.Options[rng.Intn(len(node.Question.Options))]
				var req *domain.PersistRequest
				state, req = engine.Advance(ctx, state, opt.Label, opt.Next)
				if req != nil {
					requests++
				}

				want := math.Min(float64(len(state.Answers))/total, 1)
				require.Equal(t, want, engine.Progress(state))
				require.LessOrEqual(t, engine.Progress(state), 1.0)
				if !state.Persisted && tree.ID == "example" {
					require.Equal(t, len(state.History), len(state.Answers))
				}
			}
			require.LessOrEqual(t, requests, 1, "at most one persistence request per generation")
		}
	}
}
