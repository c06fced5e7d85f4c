// Package worker provides a bounded worker pool for street reconciliation.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/den-kezlia/torrent/internal/streets"
	"github.com/den-kezlia/torrent/internal/types"
)

// Handler reconciles one street group against the store.
type Handler interface {
	Handle(ctx context.Context, group streets.WayGroup) (GroupStats, error)
}

// GroupStats counts what a handler did for one group.
type GroupStats struct {
	Street           types.UpsertOutcome
	UpsertedSegments int
	SkippedWays      int // ways with fewer than two resolvable points
}

// Task is a single street group, with its position in the input.
type Task struct {
	Group streets.WayGroup
	Index int
}

// Result represents the outcome of a task.
type Result struct {
	Err     error
	Task    Task
	Stats   GroupStats
	Elapsed time.Duration
}

// Snapshot describes the run after one more task finished.
type Snapshot struct {
	Last      Result
	Completed int
	Total     int
	Failed    int
}

// ProgressFunc is called after each task completes.
type ProgressFunc func(Snapshot)

// Config configures the worker pool.
type Config struct {
	Handler    Handler
	OnProgress ProgressFunc
	Workers    int
}

// Pool runs street groups through a Handler with a fixed number of workers.
type Pool struct {
	handler    Handler
	onProgress ProgressFunc
	workers    int
}

// New creates a new worker pool. Workers defaults to 1, which processes
// groups sequentially in input order.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers:    workers,
		handler:    cfg.Handler,
		onProgress: cfg.OnProgress,
	}
}

// Run handles every group and returns the results of the tasks that ran.
//
// Cancellation is checked before each task starts. A started task runs to
// completion with a context that ignores cancellation, so a group is never
// left half written. The first handler error stops further dispatch; tasks
// already running finish. The returned error is that first handler error,
// or the context error if ctx ended before every task was dispatched.
func (p *Pool) Run(ctx context.Context, groups []streets.WayGroup) ([]Result, error) {
	if len(groups) == 0 {
		return nil, nil
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	handlerCtx := context.WithoutCancel(ctx)

	taskCh := make(chan Task, len(groups))
	for i, g := range groups {
		taskCh <- Task{Group: g, Index: i}
	}
	close(taskCh)

	resultCh := make(chan Result, len(groups))

	var (
		firstErr error
		errOnce  sync.Once
	)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				// Stop dispatching once cancelled or after a failure
				if runCtx.Err() != nil {
					continue
				}

				start := time.Now()
				stats, err := p.handler.Handle(handlerCtx, task.Group)
				if err != nil {
					errOnce.Do(func() {
						firstErr = fmt.Errorf("street %q: %w", task.Group.Key, err)
						stop()
					})
				}
				resultCh <- Result{
					Task:    task,
					Stats:   stats,
					Err:     err,
					Elapsed: time.Since(start),
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]Result, 0, len(groups))
	var failed int
	for result := range resultCh {
		results = append(results, result)
		if result.Err != nil {
			failed++
		}
		if p.onProgress != nil {
			p.onProgress(Snapshot{
				Last:      result,
				Completed: len(results),
				Total:     len(groups),
				Failed:    failed,
			})
		}
	}

	if firstErr != nil {
		return results, firstErr
	}
	if len(results) < len(groups) {
		return results, ctx.Err()
	}
	return results, nil
}
