package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairplaylabs/adviser/core"
)

type testState struct {
	Visited []string
	Count   int
	Done    bool
}

type testDelta struct {
	Visit *string
	Count *int
	Done  *bool
}

func (s testState) Merge(d testDelta) testState {
	if d.Visit != nil {
		s.Visited = append(s.Visited, *d.Visit)
	}
	if d.Count != nil {
		s.Count = *d.Count
	}
	if d.Done != nil {
		s.Done = *d.Done
	}
	return s
}

func visit(id string) NodeFunc[testState, testDelta] {
	return func(ctx context.Context, s testState) (testDelta, error) {
		return testDelta{Visit: &id}, nil
	}
}

func TestCompileRejectsUnregisteredTargets(t *testing.T) {
	_, err := NewBuilder[testState, testDelta]().
		Register("a", visit("a")).
		SetStart("a").
		Edge("a", "missing").
		Compile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unregistered")
}

func TestCompileRequiresOutgoingTransition(t *testing.T) {
	_, err := NewBuilder[testState, testDelta]().
		Register("a", visit("a")).
		Register("b", visit("b")).
		SetStart("a").
		Edge("a", "b").
		Compile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no outgoing transition")
}

func TestCompileRequiresTerminal(t *testing.T) {
	_, err := NewBuilder[testState, testDelta]().
		Register("a", visit("a")).
		Register("b", visit("b")).
		SetStart("a").
		Edge("a", "b").
		Edge("b", "a").
		Compile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terminal")
}

func TestInvokeFollowsEdgesAndMerges(t *testing.T) {
	g, err := NewBuilder[testState, testDelta]().
		Register("a", visit("a")).
		Register("b", visit("b")).
		SetStart("a").
		Edge("a", "b").
		Edge("b", End).
		Compile()
	require.NoError(t, err)

	final, err := g.Invoke(context.Background(), testState{}, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, final.Visited)
}

func TestConditionalRouting(t *testing.T) {
	router := func(s testState) RouteKey {
		if s.Count >= 3 {
			return "stop"
		}
		return "again"
	}
	bump := func(ctx context.Context, s testState) (testDelta, error) {
		n := s.Count + 1
		return testDelta{Count: &n}, nil
	}

	g, err := NewBuilder[testState, testDelta]().
		Register("loop", bump).
		SetStart("loop").
		ConditionalEdge("loop", router, map[RouteKey]NodeID{
			"again": "loop",
			"stop":  End,
		}).
		Compile()
	require.NoError(t, err)

	final, err := g.Invoke(context.Background(), testState{}, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, final.Count)
}

func TestUnwiredRouteKeyFailsRun(t *testing.T) {
	g, err := NewBuilder[testState, testDelta]().
		Register("a", visit("a")).
		SetStart("a").
		ConditionalEdge("a", func(testState) RouteKey { return "nope" }, map[RouteKey]NodeID{
			"ok": End,
		}).
		Compile()
	require.NoError(t, err)

	_, err = g.Invoke(context.Background(), testState{}, RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unwired key")
}

func TestStepLimitRaisesDivergence(t *testing.T) {
	g, err := NewBuilder[testState, testDelta]().
		Register("spin", visit("spin")).
		Register("exit", visit("exit")).
		SetStart("spin").
		ConditionalEdge("spin", func(testState) RouteKey { return "again" }, map[RouteKey]NodeID{
			"again": "spin",
			"out":   "exit",
		}).
		Edge("exit", End).
		Compile()
	require.NoError(t, err)

	_, err = g.Invoke(context.Background(), testState{}, RunOptions{MaxSteps: 7})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrGraphDiverged)
}

func TestNodeErrorAbortsRun(t *testing.T) {
	boom := errors.New("boom")
	g, err := NewBuilder[testState, testDelta]().
		Register("a", func(ctx context.Context, s testState) (testDelta, error) {
			return testDelta{}, boom
		}).
		SetStart("a").
		Edge("a", End).
		Compile()
	require.NoError(t, err)

	_, err = g.Invoke(context.Background(), testState{}, RunOptions{})
	assert.ErrorIs(t, err, boom)
}

func TestDeadlineRaisesTimeoutAtBoundary(t *testing.T) {
	slow := func(ctx context.Context, s testState) (testDelta, error) {
		time.Sleep(30 * time.Millisecond)
		return testDelta{}, nil
	}
	g, err := NewBuilder[testState, testDelta]().
		Register("slow", slow).
		Register("after", visit("after")).
		SetStart("slow").
		Edge("slow", "after").
		Edge("after", End).
		Compile()
	require.NoError(t, err)

	final, err := g.Invoke(context.Background(), testState{}, RunOptions{Deadline: 5 * time.Millisecond})
	require.Error(t, err)
	assert.True(t, core.IsTimeout(err), "want timeout, got %v", err)
	// The in-flight node finished; the breach surfaced at the next boundary.
	assert.Empty(t, final.Visited)
}

func TestStreamEmitsSnapshotsAndTokensInOrder(t *testing.T) {
	talker := func(ctx context.Context, s testState) (testDelta, error) {
		EmitToken(ctx, "talker", "hel")
		EmitToken(ctx, "talker", "lo")
		return testDelta{Visit: core.Ptr("talker")}, nil
	}
	g, err := NewBuilder[testState, testDelta]().
		Register("talker", talker).
		SetStart("talker").
		Edge("talker", End).
		Compile()
	require.NoError(t, err)

	chunks, errs := g.Stream(context.Background(), testState{}, RunOptions{})
	var got []Chunk[testState]
	for c := range chunks {
		got = append(got, c)
	}
	require.NoError(t, <-errs)

	require.Len(t, got, 3)
	assert.Equal(t, ChunkToken, got[0].Kind)
	assert.Equal(t, "hel", got[0].Token.Text)
	assert.Equal(t, NodeID("talker"), got[0].Token.Origin)
	assert.Equal(t, ChunkToken, got[1].Kind)
	assert.Equal(t, ChunkSnapshot, got[2].Kind)
	assert.Equal(t, []string{"talker"}, got[2].State.Visited)
}

func TestStreamDeadlineYieldsNoFurtherChunks(t *testing.T) {
	slow := func(ctx context.Context, s testState) (testDelta, error) {
		time.Sleep(20 * time.Millisecond)
		return testDelta{Visit: core.Ptr("slow")}, nil
	}
	g, err := NewBuilder[testState, testDelta]().
		Register("slow", slow).
		Register("after", visit("after")).
		SetStart("slow").
		Edge("slow", "after").
		Edge("after", End).
		Compile()
	require.NoError(t, err)

	chunks, errs := g.Stream(context.Background(), testState{}, RunOptions{Deadline: 5 * time.Millisecond})
	var snapshots []NodeID
	for c := range chunks {
		if c.Kind == ChunkSnapshot {
			snapshots = append(snapshots, c.Node)
		}
	}
	err = <-errs
	require.Error(t, err)
	assert.True(t, core.IsTimeout(err))
	// Only the node already in flight at the breach may have reported.
	assert.NotContains(t, snapshots, NodeID("after"))
}

func TestTokensWithoutSinkAreDropped(t *testing.T) {
	// Invoke runs without a sink; EmitToken must be a safe no-op.
	g, err := NewBuilder[testState, testDelta]().
		Register("talker", func(ctx context.Context, s testState) (testDelta, error) {
			EmitToken(ctx, "talker", "ignored")
			return testDelta{Done: core.Ptr(true)}, nil
		}).
		SetStart("talker").
		Edge("talker", End).
		Compile()
	require.NoError(t, err)

	final, err := g.Invoke(context.Background(), testState{}, RunOptions{})
	require.NoError(t, err)
	assert.True(t, final.Done)
}

type recordingStore struct {
	mu    sync.Mutex
	saves []string
	fail  bool
}

func (r *recordingStore) Setup(context.Context) error { return nil }

func (r *recordingStore) Save(ctx context.Context, threadID string, step int, state any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return fmt.Errorf("store down")
	}
	r.saves = append(r.saves, fmt.Sprintf("%s/%d", threadID, step))
	return nil
}

func TestCheckpointsSavedPerStep(t *testing.T) {
	store := &recordingStore{}
	g, err := NewBuilder[testState, testDelta]().
		Register("a", visit("a")).
		Register("b", visit("b")).
		SetStart("a").
		Edge("a", "b").
		Edge("b", End).
		WithCheckpointStore(store).
		Compile()
	require.NoError(t, err)

	_, err = g.Invoke(context.Background(), testState{}, RunOptions{ThreadID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1/0", "t1/1"}, store.saves)
}

func TestCheckpointFailureDoesNotAbortRun(t *testing.T) {
	store := &recordingStore{fail: true}
	g, err := NewBuilder[testState, testDelta]().
		Register("a", visit("a")).
		SetStart("a").
		Edge("a", End).
		WithCheckpointStore(store).
		Compile()
	require.NoError(t, err)

	final, err := g.Invoke(context.Background(), testState{}, RunOptions{ThreadID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, final.Visited)
}
