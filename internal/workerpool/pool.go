// Package workerpool provides a bounded goroutine pool used by the
// Zielonka family solver's product variant (spec §4.G: "enumerate
// minterms of the configuration, solve each product ... in parallel, and
// collate").
//
// Adapted from the teacher's (gitrdm/gokanlogic) `internal/parallel.WorkerPool`
// — same fixed task-channel-plus-worker-goroutines shape and panic-safe
// task execution — trimmed of the goal-evaluation-specific dynamic
// up/down scaling and deadlock detector, which have no analogue in a
// finite, one-shot per-minterm solve where the total amount of work is
// known up front.
package workerpool

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrPoolShutdown is returned by Submit once Shutdown has been called.
var ErrPoolShutdown = fmt.Errorf("workerpool: pool has been shut down")

// Stats tracks simple execution counters, mirroring the shape (if not the
// full field set) of the teacher's ExecutionStats.
type Stats struct {
	submitted int64
	completed int64
	failed    int64
}

func (s *Stats) recordSubmitted() { atomic.AddInt64(&s.submitted, 1) }
func (s *Stats) recordCompleted() { atomic.AddInt64(&s.completed, 1) }
func (s *Stats) recordFailed()    { atomic.AddInt64(&s.failed, 1) }

// Submitted, Completed, Failed return the current counter values.
func (s *Stats) Submitted() int64 { return atomic.LoadInt64(&s.submitted) }
func (s *Stats) Completed() int64 { return atomic.LoadInt64(&s.completed) }
func (s *Stats) Failed() int64    { return atomic.LoadInt64(&s.failed) }

// Pool is a fixed-size goroutine pool. If n is 0 or negative, it defaults
// to runtime.NumCPU(), matching the teacher's NewWorkerPool default.
type Pool struct {
	taskChan chan func()
	wg       sync.WaitGroup
	once     sync.Once
	shutdown chan struct{}
	stats    *Stats
}

// New starts a pool of n worker goroutines.
func New(n int) *Pool {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	p := &Pool{
		taskChan: make(chan func(), n*4),
		shutdown: make(chan struct{}),
		stats:    &Stats{},
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case task, ok := <-p.taskChan:
			if !ok {
				return
			}
			p.runTask(task)
		case <-p.shutdown:
			// Run whatever is still queued, so Shutdown waits for every
			// task submitted before it.
			for {
				select {
				case task := <-p.taskChan:
					p.runTask(task)
				default:
					return
				}
			}
		}
	}
}

func (p *Pool) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.stats.recordFailed()
		} else {
			p.stats.recordCompleted()
		}
	}()
	task()
}

// Submit enqueues task for execution, blocking if the pool's buffer is
// full. Returns ErrPoolShutdown if the pool has already been shut down.
func (p *Pool) Submit(task func()) error {
	p.stats.recordSubmitted()
	select {
	case <-p.shutdown:
		return ErrPoolShutdown
	default:
	}
	select {
	case p.taskChan <- task:
		return nil
	case <-p.shutdown:
		return ErrPoolShutdown
	}
}

// Stats returns the pool's execution counters.
func (p *Pool) Stats() *Stats { return p.stats }

// Shutdown stops accepting new tasks and waits for in-flight tasks to
// finish. Safe to call more than once.
func (p *Pool) Shutdown() {
	p.once.Do(func() {
		close(p.shutdown)
		p.wg.Wait()
	})
}

// RunAll submits every task in tasks, waits for all to complete, and
// returns the per-task results in the same order — the "enumerate
// minterms, solve each in parallel, collate" shape the product-variant
// Zielonka solve needs (spec §4.G). Tasks run on this pool but RunAll
// does not shut the pool down; callers may reuse it for further batches.
func RunAll[T any](p *Pool, tasks []func() T) []T {
	results := make([]T, len(tasks))
	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for i, task := range tasks {
		i, task := i, task
		err := p.Submit(func() {
			defer wg.Done()
			results[i] = task()
		})
		if err != nil {
			// Pool already shut down: run inline so callers still get a
			// result instead of a silently missing slot.
			results[i] = task()
			wg.Done()
		}
	}
	wg.Wait()
	return results
}
