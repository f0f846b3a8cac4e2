package track

import (
	"sync"

	"github.com/kinetic-data/motion.report/internal/video"
)

// Exchange is the two-slot frame hand-off between the capture loop and
// the background worker: a pending slot holding the newest unprocessed
// frame and a latest slot holding the newest processed frame. One
// mutex guards both slots and is held only for the copy-in/copy-out;
// processing happens outside the lock.
//
// There is no queue. Publishing over an unconsumed pending frame drops
// the old one (latest-wins, bounded staleness); drops are counted, not
// errors.
type Exchange struct {
	mu     sync.Mutex
	cond   *sync.Cond
	pend   *video.Frame
	latest *video.Frame
	drops  uint64
	closed bool
}

// NewExchange creates an empty exchange.
func NewExchange() *Exchange {
	e := &Exchange{}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Publish replaces the pending frame with f, taking ownership. An
// unconsumed previous frame is released and counted as a drop. Publish
// never blocks on the worker. Publishing to a closed exchange releases
// the frame immediately.
func (e *Exchange) Publish(f *video.Frame) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		f.Close()
		return
	}
	if e.pend != nil {
		e.pend.Close()
		e.drops++
	}
	e.pend = f
	e.cond.Signal()
}

// Take blocks until a pending frame is available or the exchange is
// closed, then transfers ownership of the frame to the caller. The
// second return is false once the exchange is closed and drained; the
// same frame is never returned twice.
func (e *Exchange) Take() (*video.Frame, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.pend == nil && !e.closed {
		e.cond.Wait()
	}
	if e.pend == nil {
		return nil, false
	}
	f := e.pend
	e.pend = nil
	return f, true
}

// SetLatest replaces the latest-processed frame, taking ownership of f
// and releasing the previous one.
func (e *Exchange) SetLatest(f *video.Frame) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		f.Close()
		return
	}
	if e.latest != nil {
		e.latest.Close()
	}
	e.latest = f
}

// LatestClone returns a copy of the latest processed frame, or nil when
// no frame has been processed yet. The caller owns the clone.
func (e *Exchange) LatestClone() *video.Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.latest == nil {
		return nil
	}
	return e.latest.Clone()
}

// Drops reports how many pending frames were overwritten before the
// worker picked them up.
func (e *Exchange) Drops() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drops
}

// Close releases both slots and wakes a blocked Take. Subsequent
// publishes are discarded.
func (e *Exchange) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	if e.pend != nil {
		e.pend.Close()
		e.pend = nil
	}
	if e.latest != nil {
		e.latest.Close()
		e.latest = nil
	}
	e.cond.Broadcast()
}
