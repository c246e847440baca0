package workerpool

import (
	"sync/atomic"
	"testing"
)

func TestRunAllCollectsResultsInOrder(t *testing.T) {
	p := New(4)
	defer p.Shutdown()

	tasks := make([]func() int, 10)
	for i := range tasks {
		i := i
		tasks[i] = func() int { return i * i }
	}

	results := RunAll(p, tasks)
	for i, r := range results {
		if r != i*i {
			t.Fatalf("result[%d] = %d, want %d", i, r, i*i)
		}
	}
}

func TestPoolRecoversFromPanickingTask(t *testing.T) {
	p := New(2)
	defer p.Shutdown()

	var ran int32
	if err := p.Submit(func() { panic("boom") }); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := p.Submit(func() { atomic.AddInt32(&ran, 1) }); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	p.Shutdown()

	if atomic.LoadInt32(&ran) != 1 {
		t.Fatalf("expected the second task to still run after the first panicked")
	}
	if p.Stats().Failed() != 1 {
		t.Fatalf("expected 1 failed task, got %d", p.Stats().Failed())
	}
}

func TestSubmitAfterShutdownFails(t *testing.T) {
	p := New(1)
	p.Shutdown()
	if err := p.Submit(func() {}); err != ErrPoolShutdown {
		t.Fatalf("expected ErrPoolShutdown, got %v", err)
	}
}
