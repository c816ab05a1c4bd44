// Package eventqueue provides the single-threaded cooperative run loop that
// drives all event delivery and deferred work for a device. Handlers run to
// completion one at a time on the dispatching goroutine; timers fire by
// posting back onto the queue, so two callbacks never overlap.
package eventqueue

import (
	"sync"
	"time"
)

// TimerID names a deferred or periodic callback so it can be cancelled
type TimerID uint64

// Queue is a FIFO of callbacks plus the timers feeding it. Posting is safe
// from any goroutine; execution happens only on the goroutine running
// DispatchForever or DispatchPending.
type Queue struct {
	mu       sync.Mutex
	pending  []func()
	wake     chan struct{}
	breaking bool

	nextID TimerID
	timers map[TimerID]*queueTimer
}

type queueTimer struct {
	timer    *time.Timer
	ticker   *time.Ticker
	stopTick chan struct{}
}

// New creates an empty queue
func New() *Queue {
	return &Queue{
		wake:   make(chan struct{}, 1),
		timers: make(map[TimerID]*queueTimer),
	}
}

// Call posts fn to run on the next queue turn
func (q *Queue) Call(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
	q.signal()
}

// CallIn posts fn to run once after delay. The returned TimerID can be
// passed to Cancel before the callback fires.
func (q *Queue) CallIn(delay time.Duration, fn func()) TimerID {
	q.mu.Lock()
	q.nextID++
	id := q.nextID
	qt := &queueTimer{}
	qt.timer = time.AfterFunc(delay, func() {
		q.mu.Lock()
		_, live := q.timers[id]
		delete(q.timers, id)
		q.mu.Unlock()
		if live {
			q.Call(fn)
		}
	})
	q.timers[id] = qt
	q.mu.Unlock()
	return id
}

// CallEvery posts fn to run every period until cancelled
func (q *Queue) CallEvery(period time.Duration, fn func()) TimerID {
	q.mu.Lock()
	q.nextID++
	id := q.nextID
	qt := &queueTimer{
		ticker:   time.NewTicker(period),
		stopTick: make(chan struct{}),
	}
	q.timers[id] = qt
	q.mu.Unlock()

	go func() {
		for {
			select {
			case <-qt.ticker.C:
				q.Call(fn)
			case <-qt.stopTick:
				return
			}
		}
	}()
	return id
}

// Cancel stops a deferred or periodic callback. Cancelling an already
// fired or unknown timer is a no-op.
func (q *Queue) Cancel(id TimerID) {
	q.mu.Lock()
	qt, ok := q.timers[id]
	delete(q.timers, id)
	q.mu.Unlock()
	if !ok {
		return
	}
	if qt.timer != nil {
		qt.timer.Stop()
	}
	if qt.ticker != nil {
		qt.ticker.Stop()
		close(qt.stopTick)
	}
}

// DispatchForever runs callbacks as they arrive until Break is called.
// It blocks the calling goroutine for the lifetime of the device.
func (q *Queue) DispatchForever() {
	for {
		fn, ok := q.next()
		if !ok {
			q.mu.Lock()
			brk := q.breaking
			q.mu.Unlock()
			if brk {
				return
			}
			<-q.wake
			continue
		}
		fn()
	}
}

// DispatchPending runs callbacks until the queue is empty, then returns the
// number executed. Timers that have not fired yet are not waited for.
func (q *Queue) DispatchPending() int {
	n := 0
	for {
		fn, ok := q.next()
		if !ok {
			return n
		}
		fn()
		n++
	}
}

// Break makes DispatchForever return once the callbacks already queued
// have run. Safe to call from a handler or from another goroutine.
func (q *Queue) Break() {
	q.mu.Lock()
	q.breaking = true
	q.mu.Unlock()
	q.signal()
}

func (q *Queue) next() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, false
	}
	fn := q.pending[0]
	q.pending = q.pending[1:]
	return fn, true
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
