package term

import "sync"

// ThreadID identifies a participating thread (in the Go sense, a goroutine
// that has registered with the pool) for the purposes of lock recursion
// tracking and GC countdown. It has no relation to the OS thread or
// goroutine ID; callers obtain one from protect.Register and must not share
// it across goroutines.
type ThreadID struct {
	countdown int64 // creations remaining before this thread checks for GC; owner-only, not synchronized
}

// NewThreadID allocates a fresh thread identity.
func NewThreadID() *ThreadID {
	return &ThreadID{}
}

// recursiveLock is the pool's shared/exclusive lock. Reads (interning hits,
// argument traversal) acquire shared access; writes (inserts, GC) acquire
// exclusive access. It is reentrant per ThreadID in one mode at a time: a
// thread already holding the exclusive lock may call RLock or Lock again
// without blocking, and a thread already holding a shared slot may call
// RLock again without blocking. This is what lets an interning failure path
// that itself attempts an intern avoid self-deadlock (spec §4.A).
type recursiveLock struct {
	mu      sync.Mutex
	cond    *sync.Cond
	writer  *ThreadID
	wdepth  int
	readers map[*ThreadID]int
	rtotal  int
}

func newRecursiveLock() *recursiveLock {
	l := &recursiveLock{readers: make(map[*ThreadID]int)}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Lock acquires exclusive access for h, blocking until no other thread
// holds any lock. Reentrant for the same h.
func (l *recursiveLock) Lock(h *ThreadID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writer == h {
		l.wdepth++
		return
	}
	for l.writer != nil || l.rtotal > 0 {
		l.cond.Wait()
	}
	l.writer = h
	l.wdepth = 1
}

// TryLock attempts to acquire exclusive access without blocking.
func (l *recursiveLock) TryLock(h *ThreadID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writer == h {
		l.wdepth++
		return true
	}
	if l.writer != nil || l.rtotal > 0 {
		return false
	}
	l.writer = h
	l.wdepth = 1
	return true
}

// Unlock releases one level of exclusive access held by h.
func (l *recursiveLock) Unlock(h *ThreadID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writer != h {
		panic("term: Unlock called by thread that does not hold the exclusive lock")
	}
	l.wdepth--
	if l.wdepth == 0 {
		l.writer = nil
		l.cond.Broadcast()
	}
}

// RLock acquires shared access for h.
func (l *recursiveLock) RLock(h *ThreadID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writer == h {
		// Already holds exclusive access, which subsumes shared access;
		// account the nesting against the writer depth.
		l.wdepth++
		return
	}
	if d := l.readers[h]; d > 0 {
		l.readers[h] = d + 1
		l.rtotal++
		return
	}
	for l.writer != nil {
		l.cond.Wait()
	}
	l.readers[h] = 1
	l.rtotal++
}

// RUnlock releases one level of shared access held by h.
func (l *recursiveLock) RUnlock(h *ThreadID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writer == h && l.readers[h] == 0 {
		l.wdepth--
		if l.wdepth == 0 {
			l.writer = nil
			l.cond.Broadcast()
		}
		return
	}
	d := l.readers[h]
	if d <= 0 {
		panic("term: RUnlock called by thread that does not hold a shared slot")
	}
	d--
	l.rtotal--
	if d == 0 {
		delete(l.readers, h)
	} else {
		l.readers[h] = d
	}
	if l.rtotal == 0 {
		l.cond.Broadcast()
	}
}

// readersActive reports whether any thread currently holds a shared slot.
// Used by the GC trigger's "no thread holds a shared read lock" check; the
// caller must already hold (or be attempting) the exclusive lock so this is
// advisory only when called without the lock.
func (l *recursiveLock) readersActive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rtotal > 0
}
