package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/fogsim/fogsim/sim/eventlog"
	"github.com/fogsim/fogsim/sim/topology"
	"github.com/fogsim/fogsim/sim/trace"
)

// maxReroutes bounds path repairs of one transmission.
const maxReroutes = 64

// candidates returns the live receiving processes of app/module with their nodes.
func (s *Simulator) candidates(app, module string) []Endpoint {
	ids := s.byModule[moduleKey{App: app, Module: module}]
	out := make([]Endpoint, 0, len(ids))
	for _, id := range ids {
		p := s.procs[id]
		if p.Stopped() {
			continue
		}
		out = append(out, Endpoint{Process: id, Node: p.Node})
	}
	return out
}

// SendMessage routes env from the node of process src to the live instances
// of its destination module, as chosen by the application's selection policy.
func (s *Simulator) SendMessage(app string, env Envelope, src ProcessID) {
	p := s.Process(src)
	if p == nil {
		panic(fmt.Sprintf("SendMessage(%s): unknown source process %d", env, src))
	}
	s.send(app, env, p.Node)
}

// SendMessageFrom injects env at node, with no emitting process.
func (s *Simulator) SendMessageFrom(app string, env Envelope, node topology.NodeID) {
	if !s.topo.HasNode(node) {
		logrus.Warnf("[%.3f] %s dropped: node %d does not exist", s.clock, env, node)
		s.Metrics.Dropped++
		return
	}
	s.send(app, env, node)
}

func (s *Simulator) send(app string, env Envelope, src topology.NodeID) {
	rt := s.runtime(app)
	if env.App == "" {
		env.App = app
	}
	cands := s.candidates(app, env.Message.Dst)
	var routes []Route
	reason := "no-deployed-destination"
	if len(cands) > 0 {
		routes = rt.selection.GetPaths(s, env, src, cands)
		reason = policyName(rt.selection)
		if len(routes) == 0 {
			reason = "unreachable"
		}
	}
	s.traceSelection(env, src, routes, reason)
	if len(routes) == 0 {
		logrus.Warnf("[%.3f] %s dropped at node %d: %s", s.clock, env, src, reason)
		s.Metrics.Dropped++
		return
	}
	for _, r := range routes {
		if len(r.Path) == 0 || r.Path[0] != src {
			panic(fmt.Sprintf("selection %s returned path %v not starting at %d", policyName(rt.selection), r.Path, src))
		}
		tr := &Transmission{
			Envelope:   env,
			Path:       slices.Clone(r.Path),
			DstProcess: r.Process,
		}
		s.Metrics.Sent++
		s.inNetwork++
		s.spawnTransmitter(app, tr)
	}
}

// spawnTransmitter starts the internal process that carries tr hop by hop.
// Transmitters are not entered in the deployment arena.
func (s *Simulator) spawnTransmitter(app string, tr *Transmission) {
	p := &Process{
		Kind:     KindTransmission,
		Node:     tr.Path[0],
		App:      app,
		Module:   tr.Envelope.Message.Name,
		state:    StateRunnable,
		behavior: &transmitter{app: app, tr: tr},
	}
	s.Schedule(0, p, Wake{Reason: WakeStart})
}

// InNetwork returns the number of transmissions currently travelling.
func (s *Simulator) InNetwork() int { return s.inNetwork }

// transmitter drives one Transmission: acquire each link in turn, hold it for
// size/BW + PR, then deliver to the destination inbox. Broken paths are
// repaired from the node currently holding the message.
type transmitter struct {
	app     string
	tr      *Transmission
	link    topology.LinkID
	latency float64
	guard   *Guard
}

func (b *transmitter) Resume(s *Simulator, p *Process, w Wake) Yield {
	tr := b.tr
	switch w.Reason {
	case WakeStart:
		return b.advance(s, p)
	case WakeGranted:
		b.guard = w.Guard
		tr.NetworkQueue += b.guard.QueueDelay()
		s.busyUntil[b.link] = s.clock + b.latency
		s.logTransmission(eventlog.TransmissionRecord{
			ID:      tr.Envelope.ID,
			Src:     int64(tr.Path[tr.hop]),
			Dst:     int64(tr.Path[tr.hop+1]),
			App:     b.app,
			Latency: b.latency,
			Message: tr.Envelope.Message.Name,
			CTime:   s.clock,
			Size:    tr.Envelope.Message.Size,
			Buffer:  s.inNetwork,
		})
		return Timeout(b.latency)
	case WakeTimeout:
		b.guard.Release(s)
		b.guard = nil
		if !s.topo.HasLink(tr.Path[tr.hop], tr.Path[tr.hop+1]) {
			return b.reroute(s, p, "link removed in transit")
		}
		tr.NetworkLatency += b.latency
		tr.hop++
		p.Node = tr.Current()
		return b.advance(s, p)
	case WakeResourceClosed:
		return b.reroute(s, p, "link closed while queued")
	default:
		panic(fmt.Sprintf("transmitter %s: unexpected wake %s", tr.Envelope, w.Reason))
	}
}

// advance moves to the next link or delivers at the end of the path.
func (b *transmitter) advance(s *Simulator, p *Process) Yield {
	tr := b.tr
	if tr.Arrived() {
		return b.deliver(s, p)
	}
	from, to := tr.Path[tr.hop], tr.Path[tr.hop+1]
	link, ok := s.topo.Link(from, to)
	if !ok {
		return b.reroute(s, p, fmt.Sprintf("no link %d-%d", from, to))
	}
	b.link = topology.NewLinkID(from, to)
	res, ok := s.linkRes[b.link]
	if !ok {
		return b.reroute(s, p, fmt.Sprintf("no channel on link %s", b.link))
	}
	b.latency = link.Latency(tr.Envelope.Message.Size)
	return Acquire(res)
}

func (b *transmitter) deliver(s *Simulator, p *Process) Yield {
	tr := b.tr
	dst := s.Process(tr.DstProcess)
	if dst == nil || dst.Stopped() || dst.Node != tr.Current() {
		return b.reroute(s, p, "destination process gone")
	}
	in, ok := s.inbox(b.app, dst.Module, dst.ID)
	if !ok {
		return b.reroute(s, p, "destination has no inbox")
	}
	d := Delivery{
		Envelope:       tr.Envelope,
		Path:           slices.Clone(tr.Path),
		DstProcess:     tr.DstProcess,
		NetworkQueue:   tr.NetworkQueue,
		NetworkLatency: tr.NetworkLatency,
		Received:       s.clock,
	}
	s.Metrics.Delivered++
	s.inNetwork--
	if s.Trace != nil && s.Trace.Config.Deliveries() {
		s.Trace.RecordDelivery(trace.DeliveryRecord{
			MessageID:      tr.Envelope.ID,
			Message:        tr.Envelope.Message.Name,
			Path:           nodePath(d.Path),
			DstProcess:     int(d.DstProcess),
			NetworkQueue:   d.NetworkQueue,
			NetworkLatency: d.NetworkLatency,
			Emitted:        tr.Envelope.Emitted,
			Received:       d.Received,
		})
	}
	logrus.Debugf("[%.3f] %s delivered to process %d via %v", s.clock, tr.Envelope, tr.DstProcess, tr.Path)
	in.Put(s, d)
	return Exit()
}

// reroute repairs the path from the node currently holding the message, or
// gives the message up when no live destination is reachable from there.
func (b *transmitter) reroute(s *Simulator, p *Process, why string) Yield {
	tr := b.tr
	cur := tr.Current()
	old := slices.Clone(tr.Path)
	route, ok := b.repair(s, cur)
	if !ok {
		logrus.Warnf("[%.3f] %s lost at node %d (%s)", s.clock, tr.Envelope, cur, why)
		s.Metrics.Lost++
		s.inNetwork--
		s.traceReroute(tr.Envelope, cur, old, nil)
		return Exit()
	}
	tr.splice(route.Path)
	tr.DstProcess = route.Process
	tr.Reroutes++
	s.Metrics.Rerouted++
	s.traceReroute(tr.Envelope, cur, old, route.Path)
	logrus.Debugf("[%.3f] %s rerouted at node %d (%s): %v", s.clock, tr.Envelope, cur, why, tr.Path)
	return b.advance(s, p)
}

func (b *transmitter) repair(s *Simulator, cur topology.NodeID) (Route, bool) {
	tr := b.tr
	if tr.Reroutes >= maxReroutes || !s.topo.HasNode(cur) {
		return Route{}, false
	}
	cands := s.candidates(b.app, tr.Envelope.Message.Dst)
	if tr.Envelope.Message.Broadcasting {
		// other instances already receive their own copy
		cands = slices.DeleteFunc(cands, func(e Endpoint) bool { return e.Process != tr.DstProcess })
	}
	if len(cands) == 0 {
		return Route{}, false
	}
	sel := s.runtime(b.app).selection
	var route Route
	if rr, ok := sel.(Rerouter); ok {
		r, found := rr.GetPathFromFailure(s, BrokenPath{
			Envelope:   tr.Envelope,
			Path:       slices.Clone(tr.Path),
			Hop:        tr.hop,
			DstProcess: tr.DstProcess,
		}, cands)
		if !found {
			return Route{}, false
		}
		route = r
	} else {
		routes := sel.GetPaths(s, tr.Envelope, cur, cands)
		if len(routes) == 0 {
			return Route{}, false
		}
		route = routes[0]
	}
	if len(route.Path) == 0 || route.Path[0] != cur {
		return Route{}, false
	}
	return route, true
}

func (s *Simulator) traceSelection(env Envelope, src topology.NodeID, routes []Route, reason string) {
	if s.Trace == nil || !s.Trace.Config.Decisions() {
		return
	}
	choices := make([]trace.RouteChoice, len(routes))
	for i, r := range routes {
		choices[i] = trace.RouteChoice{Path: nodePath(r.Path), Process: int(r.Process)}
	}
	s.Trace.RecordSelection(trace.SelectionRecord{
		MessageID: env.ID,
		Message:   env.Message.Name,
		App:       env.App,
		Src:       int64(src),
		Clock:     s.clock,
		Routes:    choices,
		Reason:    reason,
	})
}

func (s *Simulator) traceReroute(env Envelope, from topology.NodeID, old, repaired []topology.NodeID) {
	if s.Trace == nil || !s.Trace.Config.Decisions() {
		return
	}
	var next []int64
	if repaired != nil {
		next = nodePath(repaired)
	}
	s.Trace.RecordReroute(trace.RerouteRecord{
		MessageID: env.ID,
		Message:   env.Message.Name,
		From:      int64(from),
		Clock:     s.clock,
		OldPath:   nodePath(old),
		NewPath:   next,
	})
}

func nodePath(path []topology.NodeID) []int64 {
	out := make([]int64, len(path))
	for i, n := range path {
		out[i] = int64(n)
	}
	return out
}
