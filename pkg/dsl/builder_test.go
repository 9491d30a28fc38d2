package dsl_test

import (
	"testing"

	"github.com/armtemiy/armlab/pkg/domain"
	"github.com/armtemiy/armlab/pkg/dsl"
	"github.com/armtemiy/armlab/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_SimpleTree(t *testing.T) {
	b := dsl.New("elbow").Title("Elbow pain")
	b.Add("q1").Question("Where?").Helper("Point at it").
		Option("Inside", "r1").
		Option("Outside", "r2")
	b.Add("r1").Result("Medial").Diagnosis("Flexors").Recommend("Rest", "Ice")
	b.Add("r2").Result("Lateral").Diagnosis("Extensors").Premium("Full plan")

	tree, err := b.Build()
	require.NoError(t, err)
	require.NoError(t, schema.Lint(tree))

	assert.Equal(t, "elbow", tree.ID)
	assert.Equal(t, "Elbow pain", tree.Title)
	assert.Equal(t, "q1", tree.Start)
	assert.Equal(t, 1, tree.QuestionCount())

	q, err := tree.Node("q1")
	require.NoError(t, err)
	assert.Equal(t, "Point at it", q.Question.Helper)
	assert.Equal(t, []domain.Option{{Label: "Inside", Next: "r1"}, {Label: "Outside", Next: "r2"}}, q.Question.Options)

	r1, err := tree.Node("r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Rest", "Ice"}, r1.Result.Recommendations)
	assert.False(t, r1.Result.Premium)

	r2, err := tree.Node("r2")
	require.NoError(t, err)
	assert.True(t, r2.Result.Premium)
	assert.Equal(t, "Full plan", r2.Result.PremiumTeaser)
}

func TestBuilder_AddReturnsExistingNode(t *testing.T) {
	b := dsl.New("t")
	b.Add("q1").Question("Go?").Option("yes", "r1")
	b.Add("q1").Option("no", "r1")
	b.Add("r1").Result("Done")

	tree := b.MustBuild()
	q, err := tree.Node("q1")
	require.NoError(t, err)
	assert.Len(t, q.Question.Options, 2)
}

func TestBuilder_LastVariantWins(t *testing.T) {
	b := dsl.New("t")
	b.Add("n").Question("Go?").Option("yes", "n").Result("Actually done")

	tree := b.MustBuild()
	n, err := tree.Node("n")
	require.NoError(t, err)
	assert.Equal(t, domain.KindResult, n.Kind())
}

func TestBuilder_Start(t *testing.T) {
	b := dsl.New("t").Start("r1")
	b.Add("q1").Question("Go?").Option("yes", "r1")
	b.Add("r1").Result("Done")

	assert.Equal(t, "r1", b.MustBuild().Start)
}

func TestBuilder_DanglingReferenceIsAllowed(t *testing.T) {
	b := dsl.New("t")
	b.Add("q1").Question("Go?").Option("yes", "missing")

	tree, err := b.Build()
	require.NoError(t, err)
	assert.Error(t, schema.Lint(tree))
}

func TestBuilder_Errors(t *testing.T) {
	_, err := dsl.New("empty").Build()
	assert.True(t, schema.IsValidation(err))

	b := dsl.New("t")
	b.Add("q1").Question("Go?").Option("yes", "blank")
	b.Add("blank")
	_, err = b.Build()
	require.Error(t, err)
	assert.ErrorContains(t, err, "nodes.blank")

	assert.Panics(t, func() { dsl.New("empty").MustBuild() })
}
