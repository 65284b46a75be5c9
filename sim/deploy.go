package sim

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/fogsim/fogsim/sim/eventlog"
	"github.com/fogsim/fogsim/sim/topology"
)

// nodeBound reports whether the process lives on a topology node and is
// entered in the node index.
func (p *Process) nodeBound() bool {
	return p.Kind == KindSource || p.Kind == KindModule || p.Kind == KindSink
}

// spawn enters a new process in the arena and schedules its start at the current instant.
func (s *Simulator) spawn(kind ProcessKind, node topology.NodeID, app, module string, b Behavior) *Process {
	p := &Process{
		ID:       ProcessID(len(s.procs)),
		Kind:     kind,
		Node:     node,
		App:      app,
		Module:   module,
		state:    StateRunnable,
		behavior: b,
	}
	s.procs = append(s.procs, p)
	if p.nodeBound() {
		s.byNode[node] = append(s.byNode[node], p.ID)
	}
	s.Schedule(0, p, Wake{Reason: WakeStart})
	return p
}

func (s *Simulator) requireNode(id topology.NodeID) (topology.Node, error) {
	n, ok := s.topo.Node(id)
	if !ok {
		return topology.Node{}, fmt.Errorf("node %d: %w", id, topology.ErrUnknownNode)
	}
	return n, nil
}

// DeploySource starts a process on node that emits msg every dist.Next() time units.
func (s *Simulator) DeploySource(app string, node topology.NodeID, msg Message, dist Distribution) (ProcessID, error) {
	if _, ok := s.apps[app]; !ok {
		return 0, fmt.Errorf("DeploySource(%s): application is not deployed", app)
	}
	if _, err := s.requireNode(node); err != nil {
		return 0, fmt.Errorf("DeploySource(%s): %w", app, err)
	}
	if dist == nil {
		return 0, fmt.Errorf("DeploySource(%s): distribution is required", app)
	}
	p := s.spawn(KindSource, node, app, msg.Src, &sourceBehavior{msg: msg, dist: dist})
	s.sources[p.ID] = SourceInfo{App: app, Module: msg.Src, Node: node, Message: msg.Name}
	logrus.Debugf("deployed source %s emitting %s", p, msg.Name)
	return p.ID, nil
}

// DeployModule places one instance of module on each of nodes. Generator
// services become one source per node; consumer services share one consumer
// process per node, each with its own inbox. When services is nil the
// application's declared services are used.
func (s *Simulator) DeployModule(app, module string, services []Service, nodes []topology.NodeID) ([]ProcessID, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("DeployModule(%s/%s): at least one node is required", app, module)
	}
	rt, ok := s.apps[app]
	if !ok {
		return nil, fmt.Errorf("DeployModule(%s/%s): application is not deployed", app, module)
	}
	if _, ok := rt.app.Module(module); !ok {
		return nil, fmt.Errorf("DeployModule(%s/%s): unknown module", app, module)
	}
	if services == nil {
		services = rt.app.Services(module)
	}
	for _, id := range nodes {
		n, err := s.requireNode(id)
		if err != nil {
			return nil, fmt.Errorf("DeployModule(%s/%s): %w", app, module, err)
		}
		if n.IPT <= 0 {
			return nil, fmt.Errorf("DeployModule(%s/%s): node %d has no processing capacity", app, module, id)
		}
	}

	var consumers []Service
	var generators []Service
	for _, svc := range services {
		if svc.Kind == ServiceGenerator {
			generators = append(generators, svc)
		} else {
			consumers = append(consumers, svc)
		}
	}

	var pids []ProcessID
	for _, node := range nodes {
		for _, svc := range generators {
			msg, ok := rt.app.Message(svc.Out)
			if !ok {
				return pids, fmt.Errorf("DeployModule(%s/%s): unknown message %q", app, module, svc.Out)
			}
			p := s.spawn(KindSource, node, app, module, &sourceBehavior{msg: msg, dist: Clone(svc.Distribution)})
			s.sources[p.ID] = SourceInfo{App: app, Module: module, Node: node, Message: msg.Name}
			pids = append(pids, p.ID)
		}
		if len(consumers) == 0 {
			continue
		}
		b := &consumerBehavior{app: rt.app, services: consumers}
		p := s.spawn(KindModule, node, app, module, b)
		b.inbox = NewInbox(fmt.Sprintf("%s/%s/%d", app, module, p.ID))
		s.inboxes[pipeKey{App: app, Module: module, Process: p.ID}] = b.inbox
		key := moduleKey{App: app, Module: module}
		s.byModule[key] = append(s.byModule[key], p.ID)
		pids = append(pids, p.ID)
	}
	logrus.Debugf("deployed %s/%s on nodes %v as processes %v", app, module, nodes, pids)
	return pids, nil
}

// DeploySink places a sink instance of module on node. Sinks take no service time.
func (s *Simulator) DeploySink(app string, node topology.NodeID, module string) (ProcessID, error) {
	if _, ok := s.apps[app]; !ok {
		return 0, fmt.Errorf("DeploySink(%s/%s): application is not deployed", app, module)
	}
	if _, err := s.requireNode(node); err != nil {
		return 0, fmt.Errorf("DeploySink(%s/%s): %w", app, module, err)
	}
	b := &sinkBehavior{}
	p := s.spawn(KindSink, node, app, module, b)
	b.inbox = NewInbox(fmt.Sprintf("%s/%s/%d", app, module, p.ID))
	s.inboxes[pipeKey{App: app, Module: module, Process: p.ID}] = b.inbox
	key := moduleKey{App: app, Module: module}
	s.byModule[key] = append(s.byModule[key], p.ID)
	logrus.Debugf("deployed sink %s", p)
	return p.ID, nil
}

// DeployMonitor runs fn every dist.Next() time units until the end of the run.
func (s *Simulator) DeployMonitor(name string, fn func(*Simulator), dist Distribution) ProcessID {
	p := s.spawn(KindMonitor, 0, "", name, &tickerBehavior{dist: dist, tick: fn})
	return p.ID
}

// DeployControl runs a periodic policy on its activation schedule.
func (s *Simulator) DeployControl(app string, per Periodic) ProcessID {
	p := s.spawn(KindControl, 0, app, policyName(per), &tickerBehavior{dist: per.Activation(), tick: per.Run})
	return p.ID
}

// DeployNodeFailureGenerator removes nodes one at a time, in order, waiting
// dist.Next() before each removal.
func (s *Simulator) DeployNodeFailureGenerator(nodes []topology.NodeID, dist Distribution) ProcessID {
	p := s.spawn(KindFailure, 0, "", "failures", &failureBehavior{nodes: slices.Clone(nodes), dist: dist})
	return p.ID
}

// StopProcess stops a process and drops it from every index. Stopping twice is a no-op.
func (s *Simulator) StopProcess(id ProcessID) {
	p := s.Process(id)
	if p == nil || p.Stopped() {
		return
	}
	p.state = StateStopped
	p.releaseAll(s)
	if p.nodeBound() {
		s.byNode[p.Node] = slices.DeleteFunc(s.byNode[p.Node], func(x ProcessID) bool { return x == id })
		if len(s.byNode[p.Node]) == 0 {
			delete(s.byNode, p.Node)
		}
	}
	key := moduleKey{App: p.App, Module: p.Module}
	if ids, ok := s.byModule[key]; ok {
		s.byModule[key] = slices.DeleteFunc(ids, func(x ProcessID) bool { return x == id })
	}
	delete(s.sources, id)
	delete(s.inboxes, pipeKey{App: p.App, Module: p.Module, Process: id})
	logrus.Debugf("stopped %s at %.3f", p, s.clock)
}

// UndeployModule stops every process of app/module bound to node and returns how many were stopped.
func (s *Simulator) UndeployModule(app, module string, node topology.NodeID) int {
	n := 0
	for _, id := range slices.Clone(s.byNode[node]) {
		p := s.procs[id]
		if p.App == app && p.Module == module {
			s.StopProcess(id)
			n++
		}
	}
	return n
}

// RemoveNode stops every process bound to the node, closes its resources and
// drops it with its links from the topology. Returns the number of stopped processes.
func (s *Simulator) RemoveNode(id topology.NodeID) int {
	if !s.topo.HasNode(id) {
		return 0
	}
	ids := slices.Clone(s.byNode[id])
	for _, pid := range ids {
		s.StopProcess(pid)
	}
	s.retire(id)
	if r, ok := s.nodeRes[id]; ok {
		r.Close(s)
		delete(s.nodeRes, id)
	}
	for _, l := range s.topo.IncidentLinks(id) {
		if r, ok := s.linkRes[l]; ok {
			r.Close(s)
			delete(s.linkRes, l)
		}
		delete(s.busyUntil, l)
	}
	s.topo.RemoveNode(id)
	logrus.Infof("node %d removed at %.3f, %d processes stopped", id, s.clock, len(ids))
	return len(ids)
}

// Process returns the process with the given id, or nil.
func (s *Simulator) Process(id ProcessID) *Process {
	if id <= 0 || int(id) >= len(s.procs) {
		return nil
	}
	return s.procs[id]
}

// ProcessesOf returns the live processes that receive messages for app/module.
func (s *Simulator) ProcessesOf(app, module string) []ProcessID {
	return slices.Clone(s.byModule[moduleKey{App: app, Module: module}])
}

// NodeOf returns the node a live, node-bound process runs on.
func (s *Simulator) NodeOf(id ProcessID) (topology.NodeID, bool) {
	p := s.Process(id)
	if p == nil || p.Stopped() || !p.nodeBound() {
		return 0, false
	}
	return p.Node, true
}

// SourceInfo returns what a live source process emits.
func (s *Simulator) SourceInfo(id ProcessID) (SourceInfo, bool) {
	info, ok := s.sources[id]
	return info, ok
}

// Sources returns the ids of live source processes in ascending order.
func (s *Simulator) Sources() []ProcessID {
	ids := make([]ProcessID, 0, len(s.sources))
	for id := range s.sources {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ProcessesOnNode returns the live processes bound to node.
func (s *Simulator) ProcessesOnNode(node topology.NodeID) []ProcessID {
	return slices.Clone(s.byNode[node])
}

// ProcessOnNode returns the first live process of app/module on node.
func (s *Simulator) ProcessOnNode(node topology.NodeID, app, module string) (ProcessID, bool) {
	for _, id := range s.byNode[node] {
		p := s.procs[id]
		if p.App == app && p.Module == module {
			return id, true
		}
	}
	return 0, false
}

// AllocEntities maps each node hosting live processes to the "app#module"
// entries it hosts, one per process.
func (s *Simulator) AllocEntities() map[topology.NodeID][]string {
	out := make(map[topology.NodeID][]string, len(s.byNode))
	for node, ids := range s.byNode {
		for _, id := range ids {
			p := s.procs[id]
			out[node] = append(out[node], p.App+"#"+p.Module)
		}
	}
	return out
}

// inbox returns the inbox of a live receiving process.
func (s *Simulator) inbox(app, module string, id ProcessID) (*Inbox, bool) {
	in, ok := s.inboxes[pipeKey{App: app, Module: module, Process: id}]
	return in, ok
}

// failNode removes a node on behalf of the failure generator and records it.
func (s *Simulator) failNode(node topology.NodeID) {
	if !s.topo.HasNode(node) {
		logrus.Debugf("failure of node %d skipped: already gone", node)
		return
	}
	n := s.RemoveNode(node)
	s.Metrics.Failures++
	s.Log.AppendFailure(eventlog.FailureRecord{Node: int64(node), Processes: n, Time: s.clock})
	logrus.Infof("failure of node %d at %.3f took down %d processes", node, s.clock, n)
}
