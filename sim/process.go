package sim

import (
	"fmt"

	"github.com/fogsim/fogsim/sim/topology"
)

// ProcessID is a dense handle into the simulator's process arena. 0 means "no process".
type ProcessID int

// ProcessKind tells what a process does.
type ProcessKind string

const (
	KindSource       ProcessKind = "source"
	KindModule       ProcessKind = "module"
	KindSink         ProcessKind = "sink"
	KindMonitor      ProcessKind = "monitor"
	KindFailure      ProcessKind = "failure"
	KindControl      ProcessKind = "control"
	KindTransmission ProcessKind = "transmission"
)

// ProcessState represents the lifecycle state of a process.
type ProcessState string

const (
	StateRunnable          ProcessState = "runnable"
	StateSuspendedTimeout  ProcessState = "suspended-timeout"
	StateSuspendedResource ProcessState = "suspended-resource"
	StateSuspendedInbox    ProcessState = "suspended-inbox"
	StateStopped           ProcessState = "stopped"
)

// WakeReason says why a process is being resumed.
type WakeReason int

const (
	WakeStart          WakeReason = iota // first resumption after deployment
	WakeTimeout                          // a Timeout elapsed
	WakeGranted                          // an Acquire was granted; Wake.Guard is set
	WakeResourceClosed                   // the awaited resource was removed with its node or link
	WakeReceived                         // a Receive completed; Wake.Delivery is set
)

func (r WakeReason) String() string {
	switch r {
	case WakeStart:
		return "start"
	case WakeTimeout:
		return "timeout"
	case WakeGranted:
		return "granted"
	case WakeResourceClosed:
		return "resource-closed"
	case WakeReceived:
		return "received"
	default:
		return fmt.Sprintf("wake(%d)", int(r))
	}
}

// Wake is handed to a Behavior on every resumption.
type Wake struct {
	Reason   WakeReason
	Guard    *Guard
	Delivery *Delivery
}

type yieldKind int

const (
	yieldTimeout yieldKind = iota
	yieldAcquire
	yieldReceive
	yieldExit
)

// Yield is what a Behavior returns: the suspension point it waits on next.
type Yield struct {
	kind     yieldKind
	delay    float64
	resource *Resource
	inbox    *Inbox
}

// Timeout suspends the process for d time units.
func Timeout(d float64) Yield { return Yield{kind: yieldTimeout, delay: d} }

// Acquire suspends the process until r grants it a slot.
func Acquire(r *Resource) Yield { return Yield{kind: yieldAcquire, resource: r} }

// Receive suspends the process until in holds a delivery.
func Receive(in *Inbox) Yield { return Yield{kind: yieldReceive, inbox: in} }

// Exit ends the process.
func Exit() Yield { return Yield{kind: yieldExit} }

// Behavior is the body of a process written as an explicit state machine.
// Resume runs until the next suspension point and returns it.
type Behavior interface {
	Resume(s *Simulator, p *Process, w Wake) Yield
}

// BehaviorFunc adapts a plain function to Behavior.
type BehaviorFunc func(s *Simulator, p *Process, w Wake) Yield

func (f BehaviorFunc) Resume(s *Simulator, p *Process, w Wake) Yield { return f(s, p, w) }

// Process is a resumable unit of simulated activity bound to a topology node.
type Process struct {
	ID     ProcessID // 0 for internal transmission processes
	Kind   ProcessKind
	Node   topology.NodeID
	App    string
	Module string

	state    ProcessState
	behavior Behavior
	guards   []*Guard // slots currently held; released when the process stops
}

// State returns the current lifecycle state.
func (p *Process) State() ProcessState { return p.state }

// Stopped reports whether the process has been stopped.
func (p *Process) Stopped() bool { return p.state == StateStopped }

func (p *Process) String() string {
	if p == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s#%d(%s/%s@%d)", p.Kind, p.ID, p.App, p.Module, p.Node)
}

func (p *Process) dropGuard(g *Guard) {
	for i, held := range p.guards {
		if held == g {
			p.guards = append(p.guards[:i], p.guards[i+1:]...)
			return
		}
	}
}

// releaseAll frees every slot the process holds.
func (p *Process) releaseAll(s *Simulator) {
	for len(p.guards) > 0 {
		p.guards[0].Release(s)
	}
}

// resume runs p's behavior until it reaches a suspension point that cannot be
// satisfied immediately. Stopped processes are never resumed.
func (s *Simulator) resume(p *Process, w Wake) {
	for {
		if p.state == StateStopped {
			return
		}
		p.state = StateRunnable
		y := p.behavior.Resume(s, p, w)
		if p.state == StateStopped {
			return
		}
		next, ready := s.suspend(p, y)
		if !ready {
			return
		}
		w = next
	}
}

// suspend parks p on y. When y can be satisfied at the current instant it
// returns the wake to continue with immediately.
func (s *Simulator) suspend(p *Process, y Yield) (Wake, bool) {
	switch y.kind {
	case yieldTimeout:
		p.state = StateSuspendedTimeout
		s.Schedule(y.delay, p, Wake{Reason: WakeTimeout})
		return Wake{}, false
	case yieldAcquire:
		if y.resource.Closed() {
			return Wake{Reason: WakeResourceClosed}, true
		}
		if g, ok := y.resource.request(s, p); ok {
			return Wake{Reason: WakeGranted, Guard: g}, true
		}
		p.state = StateSuspendedResource
		return Wake{}, false
	case yieldReceive:
		if d, ok := y.inbox.take(); ok {
			return Wake{Reason: WakeReceived, Delivery: &d}, true
		}
		y.inbox.wait(p)
		p.state = StateSuspendedInbox
		return Wake{}, false
	case yieldExit:
		s.exit(p)
		return Wake{}, false
	default:
		panic(fmt.Sprintf("process %s yielded unknown kind %d", p, y.kind))
	}
}

// exit stops a process that finished on its own.
func (s *Simulator) exit(p *Process) {
	if p.ID != 0 {
		s.StopProcess(p.ID)
		return
	}
	p.state = StateStopped
	p.releaseAll(s)
}
