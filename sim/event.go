package sim

import (
	"container/heap"
	"fmt"
)

// event is a scheduled resumption of a process.
type event struct {
	due  float64 // simulated time the process resumes
	seq  int64   // insertion counter, FIFO tie-breaker
	proc *Process
	wake Wake
}

// EventQueue is a min-heap ordered by (due, seq).
// Implements heap.Interface.
type EventQueue []event

func (q EventQueue) Len() int { return len(q) }

func (q EventQueue) Less(i, j int) bool {
	if q[i].due != q[j].due {
		return q[i].due < q[j].due
	}
	return q[i].seq < q[j].seq
}

func (q EventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *EventQueue) Push(x any) {
	*q = append(*q, x.(event))
}

func (q *EventQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = event{}
	*q = old[:n-1]
	return item
}

// Schedule resumes p with w after delay time units.
// A negative or NaN delay is a programming error and panics.
func (s *Simulator) Schedule(delay float64, p *Process, w Wake) {
	if !(delay >= 0) {
		panic(fmt.Sprintf("Schedule: delay must be >= 0, got %v (process %s)", delay, p))
	}
	s.seq++
	heap.Push(&s.queue, event{due: s.clock + delay, seq: s.seq, proc: p, wake: w})
}

// Pending returns the number of events waiting in the queue.
func (s *Simulator) Pending() int { return s.queue.Len() }

// NextEventTime returns the due time of the earliest pending event.
func (s *Simulator) NextEventTime() (float64, bool) {
	if s.queue.Len() == 0 {
		return 0, false
	}
	return s.queue[0].due, true
}

// Step dispatches exactly one event. Returns false when the queue is empty.
func (s *Simulator) Step() bool {
	if s.queue.Len() == 0 {
		return false
	}
	e := heap.Pop(&s.queue).(event)
	s.clock = e.due
	s.dispatched++
	s.resume(e.proc, e.wake)
	return true
}

// AdvanceTo dispatches every event due at or before t in (due, seq) order,
// then moves the clock to t. The clock never moves backwards.
func (s *Simulator) AdvanceTo(t float64) {
	for s.queue.Len() > 0 && s.queue[0].due <= t {
		s.Step()
	}
	if t > s.clock {
		s.clock = t
	}
}
