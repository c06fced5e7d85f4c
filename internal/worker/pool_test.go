package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/den-kezlia/torrent/internal/streets"
	"github.com/den-kezlia/torrent/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockHandler records handled groups and fails the configured keys
type mockHandler struct {
	failKeys  map[string]bool
	handled   []string
	delay     time.Duration
	callCount atomic.Int32
	mu        sync.Mutex
}

func (m *mockHandler) Handle(ctx context.Context, group streets.WayGroup) (GroupStats, error) {
	m.callCount.Add(1)
	time.Sleep(m.delay)

	if ctx.Err() != nil {
		return GroupStats{}, fmt.Errorf("handler context cancelled: %w", ctx.Err())
	}

	m.mu.Lock()
	m.handled = append(m.handled, group.Key)
	m.mu.Unlock()

	if m.failKeys[group.Key] {
		return GroupStats{}, errors.New("simulated failure")
	}
	return GroupStats{Street: types.UpsertCreated, UpsertedSegments: len(group.Ways)}, nil
}

type handlerFunc func(ctx context.Context, group streets.WayGroup) (GroupStats, error)

func (f handlerFunc) Handle(ctx context.Context, group streets.WayGroup) (GroupStats, error) {
	return f(ctx, group)
}

func makeGroups(n int) []streets.WayGroup {
	groups := make([]streets.WayGroup, n)
	for i := range groups {
		groups[i] = streets.WayGroup{
			Key:  fmt.Sprintf("street-name:street %d", i),
			Name: fmt.Sprintf("Street %d", i),
			Ways: []types.Way{{ID: int64(i)}},
		}
	}
	return groups
}

func TestPool_SequentialByDefault(t *testing.T) {
	h := &mockHandler{}
	pool := New(Config{Handler: h})

	groups := makeGroups(5)
	results, err := pool.Run(context.Background(), groups)
	require.NoError(t, err)
	require.Len(t, results, 5)

	for i, r := range results {
		assert.Equal(t, i, r.Task.Index, "one worker keeps input order")
		assert.Equal(t, 1, r.Stats.UpsertedSegments)
	}
	assert.Equal(t, []string{
		"street-name:street 0", "street-name:street 1", "street-name:street 2",
		"street-name:street 3", "street-name:street 4",
	}, h.handled)
}

func TestPool_Parallelism(t *testing.T) {
	h := &mockHandler{delay: 50 * time.Millisecond}
	pool := New(Config{Workers: 4, Handler: h})

	start := time.Now()
	results, err := pool.Run(context.Background(), makeGroups(8))
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Len(t, results, 8)
	// 8 tasks at 50ms over 4 workers is about 100ms
	assert.Less(t, elapsed, 300*time.Millisecond)
}

func TestPool_StopsAfterFirstFailure(t *testing.T) {
	h := &mockHandler{failKeys: map[string]bool{"street-name:street 1": true}}
	pool := New(Config{Workers: 1, Handler: h})

	results, err := pool.Run(context.Background(), makeGroups(5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "street-name:street 1")
	assert.Contains(t, err.Error(), "simulated failure")

	require.Len(t, results, 2, "the failed task is the last one dispatched")
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.Equal(t, int32(2), h.callCount.Load())
}

func TestPool_CancellationBetweenTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls int
	h := handlerFunc(func(hctx context.Context, group streets.WayGroup) (GroupStats, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		// The running task keeps a live context
		if hctx.Err() != nil {
			return GroupStats{}, hctx.Err()
		}
		return GroupStats{Street: types.UpsertUpdated}, nil
	})

	results, err := New(Config{Handler: h}).Run(ctx, makeGroups(5))
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
}

func TestPool_ProgressCallback(t *testing.T) {
	var snapshots []Snapshot

	// The callback runs on the collecting goroutine only
	pool := New(Config{
		Workers:    2,
		Handler:    &mockHandler{failKeys: map[string]bool{"street-name:street 0": true}},
		OnProgress: func(s Snapshot) { snapshots = append(snapshots, s) },
	})

	_, err := pool.Run(context.Background(), makeGroups(1))
	require.Error(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, 1, snapshots[0].Completed)
	assert.Equal(t, 1, snapshots[0].Failed)
	assert.Error(t, snapshots[0].Last.Err)

	snapshots = nil
	pool = New(Config{
		Workers:    2,
		Handler:    &mockHandler{},
		OnProgress: func(s Snapshot) { snapshots = append(snapshots, s) },
	})
	_, err = pool.Run(context.Background(), makeGroups(3))
	require.NoError(t, err)

	require.Len(t, snapshots, 3)
	last := snapshots[2]
	assert.Equal(t, 3, last.Completed)
	assert.Equal(t, 3, last.Total)
	assert.Zero(t, last.Failed)
	for i, s := range snapshots {
		assert.Equal(t, i+1, s.Completed)
		assert.Equal(t, types.UpsertCreated, s.Last.Stats.Street)
		assert.Equal(t, 1, s.Last.Stats.UpsertedSegments)
	}
}

func TestPool_EmptyTasks(t *testing.T) {
	h := &mockHandler{}
	results, err := New(Config{Workers: 2, Handler: h}).Run(context.Background(), nil)

	assert.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, h.callCount.Load())
}
