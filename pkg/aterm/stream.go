package aterm

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gitrdm/mucalc-vpg-core/internal/term"
	"github.com/gitrdm/mucalc-vpg-core/internal/xerrors"
)

// RootStream is a lazily consumed, thread-safe stream of decoded roots,
// channel-backed the way the teacher's ChannelResultStream streams
// constraint stores: a producer goroutine runs DecodeStream's packet loop
// and Puts each completed root as soon as its Term-output packet is read,
// while one or more consumers Take from the same channel.
type RootStream struct {
	ch     chan *term.SharedTerm
	count  int64
	closed int32
	mu     sync.Mutex
}

// NewRootStream creates a channel-backed root stream with the given
// buffer size. A bufferSize of 0 creates an unbuffered channel.
func NewRootStream(bufferSize int) *RootStream {
	return &RootStream{ch: make(chan *term.SharedTerm, bufferSize)}
}

// Take retrieves up to n roots, respecting ctx cancellation. The returned
// bool reports whether more roots might still arrive.
func (s *RootStream) Take(ctx context.Context, n int) ([]*term.SharedTerm, bool, error) {
	var out []*term.SharedTerm
	for i := 0; i < n; i++ {
		select {
		case root, ok := <-s.ch:
			if !ok {
				return out, false, nil
			}
			out = append(out, root)
		case <-ctx.Done():
			return out, len(out) > 0, ctx.Err()
		}
	}
	return out, true, nil
}

// Put adds a decoded root to the stream. Puts to a closed stream are
// silently ignored, mirroring the teacher's closed-stream behavior.
func (s *RootStream) Put(ctx context.Context, root *term.SharedTerm) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return nil
	}
	select {
	case s.ch <- root:
		atomic.AddInt64(&s.count, 1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the stream. Safe to call more than once.
func (s *RootStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if atomic.LoadInt32(&s.closed) == 1 {
		return nil
	}
	atomic.StoreInt32(&s.closed, 1)
	close(s.ch)
	return nil
}

// Count returns the number of roots Put so far.
func (s *RootStream) Count() int64 {
	return atomic.LoadInt64(&s.count)
}

// DecodeStream runs Decode's packet loop in a background goroutine and
// streams each completed root into the returned RootStream as soon as its
// Term-output packet is read, instead of Decode's batch behavior of
// returning every root in one slice only once the whole stream has been
// consumed. The end-of-stream sentinel is consumed after the final root.
// The background goroutine closes the stream (after recording any decode
// error reachable via the returned error channel) once done.
func DecodeStream(ctx context.Context, rd *Reader) (*RootStream, <-chan error) {
	out := NewRootStream(0)
	errc := make(chan error, 1)

	go func() {
		defer out.Close()
		defer close(errc)

		count, err := rd.ReadRootCount()
		if err != nil {
			errc <- err
			return
		}
		for i := 0; i < count; i++ {
			root, end, err := rd.readOneRoot()
			if err != nil {
				errc <- err
				return
			}
			if end {
				errc <- xerrors.Format("aterm: stream ended after %d of %d roots", i, count)
				return
			}
			if err := out.Put(ctx, root); err != nil {
				errc <- err
				return
			}
		}
		if err := rd.consumeTerminator(); err != nil {
			errc <- err
		}
	}()

	return out, errc
}
