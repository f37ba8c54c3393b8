// Package pipeline executes a planned chunk layout against a source volume
// and merges the results into an output volume. Two execution modes share
// one runner abstraction: memory-backed runs use concurrent in-process
// tasks writing disjoint regions of a shared buffer, disk-backed runs use
// isolated worker processes staging chunks as standalone container files
// that a deterministic merge step collects afterwards.
package pipeline

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"msiconvert/internal/models"
	"msiconvert/pkg/progress"
	"msiconvert/pkg/volume"
)

// ChunkRunner materializes a list of chunks under a named pass. The chunk
// list must be a partition produced by the planner: runners rely on chunks
// being pairwise disjoint and enumerated in a stable order.
type ChunkRunner interface {
	Run(name string, chunks []models.ChunkBounds) error
}

// TaskRunner executes chunks as concurrent in-process tasks copying from a
// read view into a shared write target. Because the planner guarantees the
// chunk regions are pairwise disjoint, the concurrent writes touch disjoint
// slices of the target and need no locking. The slice copies are I/O bound,
// so goroutines sharing one process are sufficient; process isolation buys
// nothing here.
type TaskRunner struct {
	// Source is the read-only view chunks are cut from
	Source volume.ReadView

	// Target receives each chunk's region; written concurrently
	Target volume.WriteTarget

	// Workers is the number of concurrent tasks
	Workers int

	// ProgressInterval spaces automatic progress reports; zero disables them
	ProgressInterval time.Duration
}

type chunkResult struct {
	index int
	err   error
}

// Run copies every non-degenerate chunk from the source into the target.
// No ordering is guaranteed between chunks. A chunk failure aborts that
// chunk only; the first failure is returned after all submitted chunks have
// drained, wrapped as a ChunkWriteError carrying the failing bounds.
func (r *TaskRunner) Run(name string, chunks []models.ChunkBounds) error {
	var completed atomic.Int64
	timer := &progress.Timer{
		Name:     name,
		Interval: r.ProgressInterval,
		Total:    len(chunks),
		Poll:     func() int { return int(completed.Load()) },
	}
	timer.Start()
	defer timer.Stop()

	jobs := make(chan int)
	results := make(chan chunkResult)

	var wg sync.WaitGroup
	for w := 0; w < r.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results <- chunkResult{index: i, err: r.processChunk(chunks[i])}
			}
		}()
	}

	go func() {
		for i := range chunks {
			jobs <- i
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	var firstErr error
	for res := range results {
		completed.Add(1)
		if res.err != nil {
			log.Printf("chunk %s failed: %v", chunks[res.index], res.err)
			if firstErr == nil {
				firstErr = &ChunkWriteError{Chunk: chunks[res.index], Err: res.err}
			}
		}
	}
	return firstErr
}

func (r *TaskRunner) processChunk(c models.ChunkBounds) error {
	if c.Degenerate() {
		return nil
	}
	data, err := r.Source.ReadRegion(c)
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}
	if err := r.Target.WriteRegion(c, data); err != nil {
		return fmt.Errorf("writing target: %w", err)
	}
	return nil
}
