package ports

import (
	"context"
	"testing"
	"time"

	"github.com/armtemiy/armlab/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStateStoreContract runs a suite of tests to verify that a StateStore implementation
// adheres to the defined interface contract.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewState(sessionID, "q1")
		state.History = append(state.History, "q0")
		state.Answers["q0"] = "A"
		state.Generation = 3
		state.Persisted = true
		state.Save = domain.SaveSaved

		err := store.Save(ctx, sessionID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, state.CurrentNodeID, loaded.CurrentNodeID)
		assert.Equal(t, []string{"q0"}, loaded.History)
		assert.Equal(t, "A", loaded.Answers["q0"])
		assert.Equal(t, uint64(3), loaded.Generation)
		assert.True(t, loaded.Persisted)
		assert.Equal(t, domain.SaveSaved, loaded.Save)
	})

	t.Run("Load returns an isolated copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.Answers["q0"] = "mutated"

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "A", again.Answers["q0"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, domain.NewState(sessionID, "q1"))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, domain.NewState(id1, "q1"))
		_ = store.Save(ctx, id2, domain.NewState(id2, "q1"))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}

// RunTreeStoreContract verifies a TreeStore implementation.
func RunTreeStoreContract(t *testing.T, store TreeStore) {
	ctx := context.Background()

	_ = store.DeleteOverride(ctx)

	_, err := store.LoadOverride(ctx)
	assert.ErrorIs(t, err, domain.ErrNoOverride)

	tree := &domain.Tree{
		ID:    "contract",
		Title: "Contract",
		Start: "q1",
		Nodes: map[string]domain.Node{
			"q1": domain.NewQuestion(domain.Question{Text: "Q", Options: []domain.Option{{Label: "A", Next: "r1"}}}),
			"r1": domain.NewResult(domain.Result{Title: "R", Diagnosis: "D", Recommendations: []string{"x"}}),
		},
	}
	require.NoError(t, store.SaveOverride(ctx, tree))

	loaded, err := store.LoadOverride(ctx)
	require.NoError(t, err)
	assert.Equal(t, tree, loaded)

	require.NoError(t, store.DeleteOverride(ctx))
	_, err = store.LoadOverride(ctx)
	assert.ErrorIs(t, err, domain.ErrNoOverride)
}
