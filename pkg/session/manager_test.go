package session_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/armtemiy/armlab/pkg/adapters/memory"
	"github.com/armtemiy/armlab/pkg/catalog"
	"github.com/armtemiy/armlab/pkg/domain"
	"github.com/armtemiy/armlab/pkg/dsl"
	"github.com/armtemiy/armlab/pkg/ports"
	"github.com/armtemiy/armlab/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exampleTree() *domain.Tree {
	b := dsl.New("t1").Title("Example")
	b.Add("q1").Question("First?").
		Option("A", "r1").
		Option("B", "q2")
	b.Add("q2").Question("Second?").Option("C", "r1")
	b.Add("r1").Result("Done").
		Diagnosis("diag").
		Recommend("rest").
		Premium("")
	return b.MustBuild()
}

var alice = domain.Caller{User: &domain.User{ID: "42", Username: "alice"}}

type fixture struct {
	store   *memory.Store
	results *memory.ResultStore
	catalog *catalog.Catalog
	manager *session.Manager
}

func newFixture(t *testing.T, results ports.ResultStore, opts ...session.Option) *fixture {
	t.Helper()
	f := &fixture{
		store:   memory.NewStore(),
		catalog: catalog.New(nil, catalog.WithDefault(exampleTree())),
	}
	if rs, ok := results.(*memory.ResultStore); ok {
		f.results = rs
	}
	f.manager = session.NewManager(f.store, f.catalog, results, opts...)
	return f
}

// gatedResults blocks inserts until release is closed.
type gatedResults struct {
	*memory.ResultStore
	entered chan struct{}
	release chan struct{}
}

func newGatedResults() *gatedResults {
	return &gatedResults{
		ResultStore: memory.NewResultStore(),
		entered:     make(chan struct{}, 8),
		release:     make(chan struct{}),
	}
}

func (g *gatedResults) InsertDiagnosticResult(ctx context.Context, userID *string, treeID string, answers map[string]string, result domain.ResultSnapshot) error {
	g.entered <- struct{}{}
	<-g.release
	return g.ResultStore.InsertDiagnosticResult(ctx, userID, treeID, answers, result)
}

type failingUpsert struct {
	*memory.ResultStore
}

func (failingUpsert) UpsertUser(ctx context.Context, externalID, username string, isAdmin bool) (string, error) {
	return "", errors.New("users table unavailable")
}

func TestManager_StartAndAdvance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.NewResultStore())

	view, err := f.manager.Start(ctx, "s1", alice)
	require.NoError(t, err)
	assert.Equal(t, "q1", view.NodeID)
	assert.Equal(t, 0.0, view.Progress)
	assert.False(t, view.CanGoBack)

	view, err = f.manager.Advance(ctx, "s1", alice, "B", "q2")
	require.NoError(t, err)
	assert.Equal(t, "q2", view.NodeID)
	assert.Equal(t, 0.5, view.Progress)

	view, err = f.manager.Advance(ctx, "s1", alice, "C", "r1")
	require.NoError(t, err)
	require.True(t, view.Terminal())
	assert.Equal(t, 1.0, view.Progress)
	assert.Equal(t, domain.SaveSaving, view.Save)
	assert.True(t, view.Result.Locked)

	f.manager.Wait()

	results := f.results.Results()
	require.Len(t, results, 1)
	assert.Equal(t, map[string]string{"q1": "B", "q2": "C"}, results[0].Answers)
	assert.Equal(t, "t1", results[0].Result.TreeID)
	require.NotNil(t, results[0].UserID)

	u, ok := f.results.User("42")
	require.True(t, ok)
	assert.Equal(t, u.ID, *results[0].UserID)

	view, err = f.manager.View(ctx, "s1", domain.Caller{Access: domain.Access{PremiumUnlocked: true}})
	require.NoError(t, err)
	assert.Equal(t, domain.SaveSaved, view.Save)
	assert.False(t, view.Result.Locked)
}

func TestManager_PersistsOncePerView(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.NewResultStore())

	_, err := f.manager.Start(ctx, "s1", alice)
	require.NoError(t, err)
	_, err = f.manager.Advance(ctx, "s1", alice, "A", "r1")
	require.NoError(t, err)
	f.manager.Wait()

	_, err = f.manager.Back(ctx, "s1", alice)
	require.NoError(t, err)
	view, err := f.manager.Advance(ctx, "s1", alice, "A", "r1")
	require.NoError(t, err)
	f.manager.Wait()

	assert.Len(t, f.results.Results(), 1)
	assert.Equal(t, domain.SaveSaved, view.Save)

	// A restart opens a new view.
	_, err = f.manager.Restart(ctx, "s1", alice)
	require.NoError(t, err)
	_, err = f.manager.Advance(ctx, "s1", alice, "A", "r1")
	require.NoError(t, err)
	f.manager.Wait()
	assert.Len(t, f.results.Results(), 2)
}

func TestManager_StaleSaveIsDropped(t *testing.T) {
	ctx := context.Background()
	gated := newGatedResults()

	var mu sync.Mutex
	var events []domain.PersistEvent
	f := newFixture(t, gated, session.WithLifecycleHooks(domain.LifecycleHooks{
		OnPersist: func(_ context.Context, ev *domain.PersistEvent) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, *ev)
		},
	}))

	_, err := f.manager.Start(ctx, "s1", alice)
	require.NoError(t, err)
	_, err = f.manager.Advance(ctx, "s1", alice, "A", "r1")
	require.NoError(t, err)

	select {
	case <-gated.entered:
	case <-time.After(time.Second):
		t.Fatal("save was not started")
	}

	view, err := f.manager.Restart(ctx, "s1", alice)
	require.NoError(t, err)
	assert.Equal(t, domain.SaveIdle, view.Save)

	close(gated.release)
	f.manager.Wait()

	state, err := f.manager.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SaveIdle, state.Save)
	assert.Equal(t, "q1", state.CurrentNodeID)
	assert.Equal(t, uint64(1), state.Generation)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	assert.True(t, events[0].Stale)
	assert.Equal(t, domain.SaveSaved, events[0].Status)
}

func TestManager_InsertFailure(t *testing.T) {
	ctx := context.Background()
	results := memory.NewResultStore()
	results.Fail = errors.New("disk full")
	f := newFixture(t, results)

	_, err := f.manager.Start(ctx, "s1", alice)
	require.NoError(t, err)
	_, err = f.manager.Advance(ctx, "s1", alice, "A", "r1")
	require.NoError(t, err)
	f.manager.Wait()

	view, err := f.manager.View(ctx, "s1", alice)
	require.NoError(t, err)
	assert.Equal(t, domain.SaveFailed, view.Save)
	assert.Equal(t, "disk full", view.SaveError)

	// The error is terminal for the view: no retry on re-entry.
	_, err = f.manager.Back(ctx, "s1", alice)
	require.NoError(t, err)
	view, err = f.manager.Advance(ctx, "s1", alice, "A", "r1")
	require.NoError(t, err)
	f.manager.Wait()
	assert.Equal(t, domain.SaveFailed, view.Save)
}

func TestManager_UpsertFailureStoresAnonymously(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewResultStore()
	f := newFixture(t, failingUpsert{inner})

	_, err := f.manager.Start(ctx, "s1", alice)
	require.NoError(t, err)
	_, err = f.manager.Advance(ctx, "s1", alice, "A", "r1")
	require.NoError(t, err)
	f.manager.Wait()

	results := inner.Results()
	require.Len(t, results, 1)
	assert.Nil(t, results[0].UserID)
}

func TestManager_AnonymousCaller(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.NewResultStore())

	_, err := f.manager.Start(ctx, "s1", domain.Caller{})
	require.NoError(t, err)
	_, err = f.manager.Advance(ctx, "s1", domain.Caller{}, "A", "r1")
	require.NoError(t, err)
	f.manager.Wait()

	results := f.results.Results()
	require.Len(t, results, 1)
	assert.Nil(t, results[0].UserID)
	_, ok := f.results.User("42")
	assert.False(t, ok)
}

func TestManager_BackOnEmptyHistoryExits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.NewResultStore())

	_, err := f.manager.Start(ctx, "s1", alice)
	require.NoError(t, err)

	view, err := f.manager.Back(ctx, "s1", alice)
	assert.ErrorIs(t, err, domain.ErrExit)
	require.NotNil(t, view)
	assert.Equal(t, "q1", view.NodeID)
}

func TestManager_TreeSwapResetsSessions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.NewResultStore())

	_, err := f.manager.Start(ctx, "s1", alice)
	require.NoError(t, err)
	_, err = f.manager.Advance(ctx, "s1", alice, "B", "q2")
	require.NoError(t, err)

	// Same tree id and node ids, different content.
	swapped := exampleTree()
	swapped.Nodes["q2"].Question.Text = "Second, reworded?"
	_, err = f.catalog.Replace(ctx, swapped)
	require.NoError(t, err)

	view, err := f.manager.View(ctx, "s1", alice)
	require.NoError(t, err)
	assert.Equal(t, "q1", view.NodeID)
	assert.Equal(t, 0, view.Answered)
	assert.False(t, view.CanGoBack)

	state, err := f.manager.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), state.TreeRevision)
	assert.Equal(t, uint64(1), state.Generation)
}

func TestManager_TreeSwapDropsInFlightSave(t *testing.T) {
	ctx := context.Background()
	gated := newGatedResults()
	f := newFixture(t, gated)

	_, err := f.manager.Start(ctx, "s1", alice)
	require.NoError(t, err)
	_, err = f.manager.Advance(ctx, "s1", alice, "A", "r1")
	require.NoError(t, err)
	<-gated.entered

	_, err = f.catalog.Replace(ctx, exampleTree())
	require.NoError(t, err)
	_, err = f.manager.View(ctx, "s1", alice)
	require.NoError(t, err)

	close(gated.release)
	f.manager.Wait()

	state, err := f.manager.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SaveIdle, state.Save)
}

func TestManager_SessionsOutliveRestartedCatalog(t *testing.T) {
	ctx := context.Background()
	sessions := memory.NewStore()
	trees := memory.NewTreeStore()

	first := exampleTree()
	first.ID = "x"
	second := exampleTree()
	second.ID = "x"
	second.Nodes["q2"].Question.Text = "Second, reworded?"
	second.Nodes["q2"].Question.Options[0].Label = "D"

	before := catalog.New(trees, catalog.WithDefault(exampleTree()))
	ref, err := before.Replace(ctx, first)
	require.NoError(t, err)
	require.Equal(t, uint64(2), ref.Revision)

	m1 := session.NewManager(sessions, before, memory.NewResultStore())
	_, err = m1.Start(ctx, "s1", alice)
	require.NoError(t, err)
	view, err := m1.Advance(ctx, "s1", alice, "B", "q2")
	require.NoError(t, err)
	require.Equal(t, "q2", view.NodeID)

	ref, err = before.Replace(ctx, second)
	require.NoError(t, err)
	require.Equal(t, uint64(3), ref.Revision)

	// A fresh process numbers revisions from scratch.
	after := catalog.New(trees, catalog.WithDefault(exampleTree()))
	ref, err = after.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), ref.Revision)
	require.Equal(t, "x", ref.Tree.ID)

	m2 := session.NewManager(sessions, after, memory.NewResultStore())
	view, err = m2.View(ctx, "s1", alice)
	require.NoError(t, err)
	assert.Equal(t, "q1", view.NodeID)
	assert.Equal(t, 0, view.Answered)
	assert.Empty(t, view.Route)

	state, err := m2.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, state.History)
	assert.Empty(t, state.Answers)
	assert.Equal(t, ref.Digest, state.TreeDigest)
}

func TestManager_RestartAfterSwapPersistsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.NewResultStore())

	_, err := f.manager.Start(ctx, "s1", alice)
	require.NoError(t, err)

	b := dsl.New("solo").Title("Solo")
	b.Add("only").Result("Only").Diagnosis("diag")
	_, err = f.catalog.Replace(ctx, b.MustBuild())
	require.NoError(t, err)

	view, err := f.manager.Restart(ctx, "s1", alice)
	require.NoError(t, err)
	assert.Equal(t, "only", view.NodeID)
	f.manager.Wait()

	results := f.results.Results()
	require.Len(t, results, 1)
	assert.Equal(t, "solo", results[0].Result.TreeID)

	state, err := f.manager.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SaveSaved, state.Save)
}

func TestManager_InvalidSwapKeepsProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.NewResultStore())

	_, err := f.manager.Start(ctx, "s1", alice)
	require.NoError(t, err)
	before, err := f.manager.Advance(ctx, "s1", alice, "B", "q2")
	require.NoError(t, err)
	saved, err := f.manager.Load(ctx, "s1")
	require.NoError(t, err)

	noStart := exampleTree()
	noStart.Start = ""
	noNodes := exampleTree()
	noNodes.Nodes = nil
	emptyNode := exampleTree()
	emptyNode.Nodes["q2"] = domain.Node{}

	for _, bad := range []*domain.Tree{noStart, noNodes, emptyNode} {
		_, err = f.catalog.Replace(ctx, bad)
		require.Error(t, err)

		view, err := f.manager.View(ctx, "s1", alice)
		require.NoError(t, err)
		assert.Equal(t, before, view)

		state, err := f.manager.Load(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, saved.History, state.History)
		assert.Equal(t, saved.Answers, state.Answers)
		assert.Equal(t, saved.Generation, state.Generation)
		assert.Equal(t, saved.TreeRevision, state.TreeRevision)
	}
}

func TestManager_StrictOptions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.NewResultStore(), session.WithStrictOptions(true))

	_, err := f.manager.Start(ctx, "s1", alice)
	require.NoError(t, err)

	_, err = f.manager.Advance(ctx, "s1", alice, "A", "q2")
	assert.ErrorIs(t, err, domain.ErrInvalidOption)

	state, err := f.manager.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "q1", state.CurrentNodeID)
	assert.Empty(t, state.Answers)
}

func TestManager_BrokenTreeRecoversOnRestart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.NewResultStore())

	_, err := f.manager.Start(ctx, "s1", alice)
	require.NoError(t, err)

	_, err = f.manager.Advance(ctx, "s1", alice, "X", "ghost")
	require.ErrorIs(t, err, domain.ErrNodeNotFound)

	_, err = f.manager.View(ctx, "s1", alice)
	require.ErrorIs(t, err, domain.ErrNodeNotFound)

	view, err := f.manager.Back(ctx, "s1", alice)
	require.NoError(t, err)
	assert.Equal(t, "q1", view.NodeID)

	_, err = f.manager.Advance(ctx, "s1", alice, "X", "ghost")
	require.ErrorIs(t, err, domain.ErrNodeNotFound)
	view, err = f.manager.Restart(ctx, "s1", alice)
	require.NoError(t, err)
	assert.Equal(t, "q1", view.NodeID)
}

func TestManager_ViewUnknownSession(t *testing.T) {
	f := newFixture(t, memory.NewResultStore())
	_, err := f.manager.View(context.Background(), "nope", alice)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_ConcurrentAdvance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.NewResultStore())

	_, err := f.manager.Start(ctx, "race", alice)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = f.manager.Advance(ctx, "race", alice, "A", "r1")
			} else {
				_, _ = f.manager.Restart(ctx, "race", alice)
			}
		}(i)
	}
	wg.Wait()
	f.manager.Wait()

	state, err := f.manager.Load(ctx, "race")
	require.NoError(t, err)
	assert.Contains(t, []string{"q1", "r1"}, state.CurrentNodeID)
	assert.NotEqual(t, domain.SaveSaving, state.Save)
}

func TestManager_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.NewResultStore())

	for i := 0; i < 3; i++ {
		_, err := f.manager.Start(ctx, fmt.Sprintf("s%d", i), alice)
		require.NoError(t, err)
	}
	ids, err := f.manager.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s0", "s1", "s2"}, ids)

	require.NoError(t, f.manager.Delete(ctx, "s1"))
	_, err = f.manager.Load(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_AdvanceSanitizesInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.NewResultStore(), session.WithStrictOptions(true), session.WithMaxInputSize(16))

	_, err := f.manager.Start(ctx, "s1", alice)
	require.NoError(t, err)

	view, err := f.manager.Advance(ctx, "s1", alice, "B\x1b\x00", "q2")
	require.NoError(t, err)
	assert.Equal(t, "q2", view.NodeID)

	state, err := f.manager.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "B", state.Answers["q1"])

	_, err = f.manager.Advance(ctx, "s1", alice, strings.Repeat("C", 17), "r1")
	assert.ErrorIs(t, err, session.ErrInputTooLarge)
	assert.ErrorIs(t, err, domain.ErrInvalidOption)

	_, err = f.manager.Advance(ctx, "s1", alice, "C", "r1\xff")
	assert.ErrorIs(t, err, session.ErrInvalidUTF8)

	state, err = f.manager.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "q2", state.CurrentNodeID)
}
