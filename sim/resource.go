package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Resource is a capacity-bounded FIFO contention point: a node's processing
// slot or a link's channel.
type Resource struct {
	name     string
	capacity int
	holders  int
	waiters  []waiter
	closed   bool

	created    float64 // time the resource came into existence
	busySince  float64 // start of the current busy interval, valid while holders > 0
	busyTotal  float64 // closed busy intervals
	lastChange float64 // last time holders changed
	holderTime float64 // integral of holders over time, up to lastChange
	grants     int
}

type waiter struct {
	proc      *Process
	requested float64
}

// Guard is a granted slot. Release it exactly once; extra calls are no-ops.
type Guard struct {
	res       *Resource
	owner     *Process
	requested float64
	granted   float64
	released  bool
}

// QueueDelay is the time the owner waited between requesting and receiving the slot.
func (g *Guard) QueueDelay() float64 { return g.granted - g.requested }

// Granted returns the time the slot was handed over.
func (g *Guard) Granted() float64 { return g.granted }

// Release frees the slot and hands it to the next live waiter, if any.
func (g *Guard) Release(s *Simulator) {
	g.res.Release(s, g)
}

// NewResource creates a resource with the given capacity at time now.
func NewResource(name string, capacity int, now float64) *Resource {
	if capacity < 1 {
		panic(fmt.Sprintf("NewResource(%s): capacity must be >= 1, got %d", name, capacity))
	}
	return &Resource{name: name, capacity: capacity, created: now, lastChange: now}
}

// Name returns the resource's label.
func (r *Resource) Name() string { return r.name }

// Capacity returns the maximum number of concurrent holders.
func (r *Resource) Capacity() int { return r.capacity }

// Holders returns the number of current holders.
func (r *Resource) Holders() int { return r.holders }

// Closed reports whether the owning node or link has been removed.
func (r *Resource) Closed() bool { return r.closed }

// Grants returns how many slots have been handed out.
func (r *Resource) Grants() int { return r.grants }

// QueueLen returns the number of live processes waiting for a slot.
func (r *Resource) QueueLen() int {
	n := 0
	for _, w := range r.waiters {
		if !w.proc.Stopped() {
			n++
		}
	}
	return n
}

// request grants a slot immediately when one is free, otherwise queues p.
func (r *Resource) request(s *Simulator, p *Process) (*Guard, bool) {
	if r.holders < r.capacity {
		return r.grant(s, p, s.clock), true
	}
	r.waiters = append(r.waiters, waiter{proc: p, requested: s.clock})
	return nil, false
}

func (r *Resource) grant(s *Simulator, p *Process, requested float64) *Guard {
	r.account(s.clock)
	if r.holders == 0 {
		r.busySince = s.clock
	}
	r.holders++
	r.grants++
	g := &Guard{res: r, owner: p, requested: requested, granted: s.clock}
	p.guards = append(p.guards, g)
	return g
}

// account folds the holder count since the last change into the integral.
func (r *Resource) account(now float64) {
	r.holderTime += float64(r.holders) * (now - r.lastChange)
	r.lastChange = now
}

// Release frees g's slot. The head of the wait queue, skipping stopped
// processes, is granted at the current time and resumed.
func (r *Resource) Release(s *Simulator, g *Guard) {
	g.owner.dropGuard(g)
	if g.released {
		return
	}
	g.released = true
	if r.closed {
		return
	}
	r.account(s.clock)
	r.holders--
	if r.holders == 0 {
		r.busyTotal += s.clock - r.busySince
	}
	for len(r.waiters) > 0 && r.holders < r.capacity {
		w := r.waiters[0]
		r.waiters = r.waiters[1:]
		if w.proc.Stopped() {
			continue
		}
		next := r.grant(s, w.proc, w.requested)
		s.Schedule(0, w.proc, Wake{Reason: WakeGranted, Guard: next})
	}
}

// Close retires the resource: every waiter resumes with WakeResourceClosed and
// outstanding guards become no-ops.
func (r *Resource) Close(s *Simulator) {
	if r.closed {
		return
	}
	r.account(s.clock)
	if r.holders > 0 {
		r.busyTotal += s.clock - r.busySince
	}
	r.closed = true
	r.holders = 0
	for _, w := range r.waiters {
		if w.proc.Stopped() {
			continue
		}
		s.Schedule(0, w.proc, Wake{Reason: WakeResourceClosed})
	}
	logrus.Debugf("resource %s closed at %.3f with %d waiters", r.name, s.clock, len(r.waiters))
	r.waiters = nil
}

// Usage returns the fraction of time since creation during which at least one
// slot was held. 0 before the first acquire.
func (r *Resource) Usage(now float64) float64 {
	elapsed := now - r.created
	if elapsed <= 0 {
		return 0
	}
	busy := r.busyTotal
	if r.holders > 0 {
		busy += now - r.busySince
	}
	return busy / elapsed
}

// HolderTime returns the integral of the holder count up to now.
func (r *Resource) HolderTime(now float64) float64 {
	if r.closed || now < r.lastChange {
		return r.holderTime
	}
	return r.holderTime + float64(r.holders)*(now-r.lastChange)
}
