package sim

import (
	"fmt"
	"math/rand"

	"github.com/iti/rngstream"
	"github.com/sirupsen/logrus"

	"github.com/fogsim/fogsim/sim/eventlog"
	"github.com/fogsim/fogsim/sim/topology"
)

// processRNG returns the timer RNG of a process.
func (s *Simulator) processRNG(p *Process) *rand.Rand {
	return s.rng.ForSubsystem(SubsystemProcess(p.ID))
}

// sourceBehavior emits a fresh envelope of msg after every dist.Next() delay.
type sourceBehavior struct {
	msg  Message
	dist Distribution
}

func (b *sourceBehavior) Resume(s *Simulator, p *Process, w Wake) Yield {
	switch w.Reason {
	case WakeStart:
	case WakeTimeout:
		env := Envelope{
			ID:         s.nextMessageID(),
			App:        p.App,
			Message:    b.msg,
			Emitted:    s.clock,
			SrcProcess: p.ID,
		}
		s.Metrics.Emitted++
		logrus.Debugf("[%.3f] %s emits %s", s.clock, p, env)
		s.SendMessage(p.App, env, p.ID)
	default:
		panic(fmt.Sprintf("source %s: unexpected wake %s", p, w.Reason))
	}
	return Timeout(b.dist.Next(s.processRNG(p)))
}

// consumerBehavior serves one module instance: receive, hold the node's slot
// for instructions/IPT, log, then forward according to the services.
type consumerBehavior struct {
	app      *Application
	services []Service
	inbox    *Inbox
	stream   *rngstream.RngStream

	current Delivery
	guard   *Guard
	service float64
}

func (b *consumerBehavior) consumes(name string) bool {
	for _, svc := range b.services {
		if svc.In == name {
			return true
		}
	}
	return false
}

func (b *consumerBehavior) Resume(s *Simulator, p *Process, w Wake) Yield {
	switch w.Reason {
	case WakeStart:
		return Receive(b.inbox)
	case WakeReceived:
		name := w.Delivery.Envelope.Message.Name
		if !b.consumes(name) {
			logrus.Debugf("%s ignores %s", p, name)
			return Receive(b.inbox)
		}
		res, ok := s.nodeRes[p.Node]
		if !ok {
			return Exit()
		}
		b.current = *w.Delivery
		return Acquire(res)
	case WakeGranted:
		b.guard = w.Guard
		node, _ := s.topo.Node(p.Node)
		b.service = b.current.Envelope.Message.Instructions / node.IPT
		return Timeout(b.service)
	case WakeTimeout:
		b.guard.Release(s)
		b.finish(s, p)
		b.guard = nil
		return Receive(b.inbox)
	case WakeResourceClosed:
		return Exit()
	default:
		panic(fmt.Sprintf("module %s: unexpected wake %s", p, w.Reason))
	}
}

func (b *consumerBehavior) finish(s *Simulator, p *Process) {
	d := b.current
	env := d.Envelope
	s.logEvent(eventlog.EventRecord{
		ID:            env.ID,
		Type:          eventlog.TypeComputation,
		App:           p.App,
		Module:        p.Module,
		Message:       env.Message.Name,
		DESSrc:        int(env.SrcProcess),
		DESDst:        int(p.ID),
		TopoSrc:       int64(d.Path[0]),
		TopoDst:       int64(p.Node),
		ModuleSrc:     env.Message.Src,
		Service:       b.service,
		TimeIn:        b.guard.Granted(),
		TimeOut:       s.clock,
		TimeEmit:      env.Emitted,
		TimeReception: d.Received,
	})
	s.Metrics.Computed++

	for _, svc := range b.services {
		if svc.In != env.Message.Name || svc.Out == "" {
			continue
		}
		out, ok := b.app.Message(svc.Out)
		if !ok {
			panic(fmt.Sprintf("module %s: service emits undeclared message %q", p, svc.Out))
		}
		if len(svc.Destinations) > 0 {
			for i, dst := range svc.Destinations {
				if !b.draw(s, p, svc.Probabilities[i]) {
					continue
				}
				m := out
				m.Dst = dst
				s.SendMessage(p.App, env.evolve(m, s.clock, p.ID), p.ID)
			}
			continue
		}
		if b.draw(s, p, svc.selectivity()) {
			s.SendMessage(p.App, env.evolve(out, s.clock, p.ID), p.ID)
		}
	}
}

// draw reports whether an event of probability prob happens. Certain and
// impossible outcomes do not consume the stream.
func (b *consumerBehavior) draw(s *Simulator, p *Process, prob float64) bool {
	if prob >= 1 {
		return true
	}
	if prob <= 0 {
		return false
	}
	if b.stream == nil {
		b.stream = s.rng.Stream(fmt.Sprintf("%s/%s/%d", p.App, p.Module, p.ID))
	}
	return b.stream.RandU01() <= prob
}

// sinkBehavior records every arrival without service time.
type sinkBehavior struct {
	inbox *Inbox
}

func (b *sinkBehavior) Resume(s *Simulator, p *Process, w Wake) Yield {
	switch w.Reason {
	case WakeStart:
	case WakeReceived:
		d := w.Delivery
		env := d.Envelope
		s.logEvent(eventlog.EventRecord{
			ID:            env.ID,
			Type:          eventlog.TypeSink,
			App:           p.App,
			Module:        p.Module,
			Message:       env.Message.Name,
			DESSrc:        int(env.SrcProcess),
			DESDst:        int(p.ID),
			TopoSrc:       int64(d.Path[0]),
			TopoDst:       int64(p.Node),
			ModuleSrc:     env.Message.Src,
			Service:       0,
			TimeIn:        s.clock,
			TimeOut:       s.clock,
			TimeEmit:      env.Emitted,
			TimeReception: d.Received,
		})
		s.Metrics.Sunk++
	default:
		panic(fmt.Sprintf("sink %s: unexpected wake %s", p, w.Reason))
	}
	return Receive(b.inbox)
}

// tickerBehavior calls tick after every dist.Next() delay. Used by monitors
// and periodic control policies.
type tickerBehavior struct {
	dist Distribution
	tick func(*Simulator)
}

func (b *tickerBehavior) Resume(s *Simulator, p *Process, w Wake) Yield {
	if b.dist == nil {
		return Exit()
	}
	if w.Reason == WakeTimeout {
		b.tick(s)
	}
	return Timeout(b.dist.Next(s.processRNG(p)))
}

// failureBehavior removes its nodes one by one.
type failureBehavior struct {
	nodes []topology.NodeID
	dist  Distribution
	next  int
}

func (b *failureBehavior) Resume(s *Simulator, p *Process, w Wake) Yield {
	if w.Reason == WakeTimeout {
		s.failNode(b.nodes[b.next])
		b.next++
	}
	if b.next >= len(b.nodes) || b.dist == nil {
		return Exit()
	}
	return Timeout(b.dist.Next(s.processRNG(p)))
}

