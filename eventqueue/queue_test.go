package eventqueue

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestCallRunsInOrder(t *testing.T) {
	q := New()
	var order []int
	for i := 1; i <= 5; i++ {
		i := i
		q.Call(func() { order = append(order, i) })
	}

	if n := q.DispatchPending(); n != 5 {
		t.Fatalf("Expected 5 callbacks, ran %d", n)
	}
	for i, v := range order {
		if v != i+1 {
			t.Fatalf("Out-of-order execution: %v", order)
		}
	}
}

func TestCallFromHandlerRunsAfterCurrentTurn(t *testing.T) {
	q := New()
	var order []string
	q.Call(func() {
		q.Call(func() { order = append(order, "nested") })
		order = append(order, "outer")
	})

	q.DispatchPending()
	if len(order) != 2 || order[0] != "outer" || order[1] != "nested" {
		t.Fatalf("Expected outer then nested, got %v", order)
	}
}

func TestCallInFiresAfterDelay(t *testing.T) {
	q := New()
	fired := make(chan struct{})
	q.CallIn(5*time.Millisecond, func() { close(fired) })

	go q.DispatchForever()
	defer q.Break()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("Deferred callback never fired")
	}
}

func TestCallInOrdering(t *testing.T) {
	q := New()
	var order []int
	done := make(chan struct{})
	q.CallIn(5*time.Millisecond, func() { order = append(order, 1) })
	q.CallIn(20*time.Millisecond, func() {
		order = append(order, 2)
		close(done)
	})

	go q.DispatchForever()
	defer q.Break()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Timers never fired")
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("Expected [1 2], got %v", order)
	}
}

func TestCancelPreventsFiring(t *testing.T) {
	q := New()
	var fired atomic.Bool
	id := q.CallIn(10*time.Millisecond, func() { fired.Store(true) })
	q.Cancel(id)

	time.Sleep(30 * time.Millisecond)
	q.DispatchPending()
	if fired.Load() {
		t.Fatal("Cancelled callback fired anyway")
	}
}

func TestCancelUnknownTimerIsNoop(t *testing.T) {
	q := New()
	q.Cancel(TimerID(12345))
}

func TestCallEveryRepeatsUntilCancelled(t *testing.T) {
	q := New()
	var count atomic.Int32
	id := q.CallEvery(5*time.Millisecond, func() { count.Add(1) })

	go q.DispatchForever()
	defer q.Break()

	deadline := time.After(2 * time.Second)
	for count.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("Periodic callback ran only %d times", count.Load())
		case <-time.After(time.Millisecond):
		}
	}

	q.Cancel(id)
	time.Sleep(20 * time.Millisecond)
	after := count.Load()
	time.Sleep(30 * time.Millisecond)
	if count.Load() > after+1 {
		t.Fatalf("Periodic callback kept firing after cancel: %d -> %d", after, count.Load())
	}
}

func TestBreakStopsDispatchForever(t *testing.T) {
	q := New()
	returned := make(chan struct{})
	go func() {
		q.DispatchForever()
		close(returned)
	}()

	q.Call(func() {})
	q.Break()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("DispatchForever did not return after Break")
	}
}

func TestBreakFromHandler(t *testing.T) {
	q := New()
	var ran []int
	q.Call(func() {
		ran = append(ran, 1)
		q.Break()
	})
	q.Call(func() { ran = append(ran, 2) })

	done := make(chan struct{})
	go func() {
		q.DispatchForever()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("DispatchForever did not return")
	}
	// Callbacks already queued still run before the loop exits
	if len(ran) != 2 {
		t.Fatalf("Expected both callbacks to run, got %v", ran)
	}
}

func TestHandlersNeverOverlap(t *testing.T) {
	q := New()
	var inHandler atomic.Int32
	var overlapped atomic.Bool

	for i := 0; i < 50; i++ {
		q.Call(func() {
			if inHandler.Add(1) > 1 {
				overlapped.Store(true)
			}
			time.Sleep(100 * time.Microsecond)
			inHandler.Add(-1)
		})
	}
	// Timers post onto the same queue while immediate callbacks drain
	for i := 0; i < 10; i++ {
		q.CallIn(time.Millisecond, func() {
			if inHandler.Add(1) > 1 {
				overlapped.Store(true)
			}
			time.Sleep(100 * time.Microsecond)
			inHandler.Add(-1)
		})
	}

	done := make(chan struct{})
	go func() {
		q.DispatchForever()
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	q.Break()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("DispatchForever did not return")
	}
	if overlapped.Load() {
		t.Fatal("Two handlers ran concurrently")
	}
}
