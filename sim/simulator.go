package sim

import (
	"container/heap"
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/fogsim/fogsim/sim/eventlog"
	"github.com/fogsim/fogsim/sim/topology"
	"github.com/fogsim/fogsim/sim/trace"
)

type moduleKey struct {
	App    string
	Module string
}

type pipeKey struct {
	App     string
	Module  string
	Process ProcessID
}

// SourceInfo records what a source process emits and where it runs.
type SourceInfo struct {
	App     string
	Module  string
	Node    topology.NodeID
	Message string
}

type appRuntime struct {
	app        *Application
	placement  Placement
	population Population
	selection  Selection
}

// Simulator is the discrete-event kernel: clock, event queue, contention
// resources, process arena, deployment indices and the transmission machinery.
// Thread-safety: NOT thread-safe. Everything runs on the caller's goroutine.
type Simulator struct {
	clock      float64
	queue      EventQueue
	seq        int64
	dispatched int64

	cfg  Config
	topo *topology.Topology
	rng  *PartitionedRNG

	nodeRes   map[topology.NodeID]*Resource
	linkRes   map[topology.LinkID]*Resource
	busyUntil map[topology.LinkID]float64

	removedNodes []NodeUsage
	removedLinks []LinkUsage

	procs    []*Process // arena; index 0 is unused
	byNode   map[topology.NodeID][]ProcessID
	byModule map[moduleKey][]ProcessID
	sources  map[ProcessID]SourceInfo
	inboxes  map[pipeKey]*Inbox

	apps     map[string]*appRuntime
	appOrder []string
	started  bool

	msgSeq    int64
	inNetwork int

	Log     *eventlog.Log
	Trace   *trace.SimulationTrace // nil when tracing is off
	Metrics *Metrics
}

// NewSimulator binds a topology to a fresh simulation at time 0.
// Every node gets a processing Resource and every link a channel Resource.
func NewSimulator(topo *topology.Topology, cfg Config) *Simulator {
	if topo == nil {
		panic("NewSimulator: topology must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("NewSimulator: %v", err))
	}
	if cfg.NodeCapacity == 0 {
		cfg.NodeCapacity = 1
	}
	if cfg.LinkCapacity == 0 {
		cfg.LinkCapacity = 1
	}
	s := &Simulator{
		queue:     make(EventQueue, 0),
		cfg:       cfg,
		topo:      topo,
		rng:       NewPartitionedRNG(NewSimulationKey(cfg.Seed)),
		nodeRes:   make(map[topology.NodeID]*Resource),
		linkRes:   make(map[topology.LinkID]*Resource),
		busyUntil: make(map[topology.LinkID]float64),
		procs:     []*Process{nil},
		byNode:    make(map[topology.NodeID][]ProcessID),
		byModule:  make(map[moduleKey][]ProcessID),
		sources:   make(map[ProcessID]SourceInfo),
		inboxes:   make(map[pipeKey]*Inbox),
		apps:      make(map[string]*appRuntime),
		Log:       eventlog.New(),
		Metrics:   NewMetrics(),
	}
	heap.Init(&s.queue)
	if cfg.TraceLevel != "" && cfg.TraceLevel != trace.TraceLevelNone {
		s.Trace = trace.NewSimulationTrace(trace.TraceConfig{Level: cfg.TraceLevel})
	}
	for _, id := range topo.Nodes() {
		s.nodeRes[id] = NewResource(fmt.Sprintf("node_%d", id), cfg.NodeCapacity, 0)
	}
	for _, id := range topo.Links() {
		s.linkRes[id] = NewResource(fmt.Sprintf("link_%s", id), cfg.LinkCapacity, 0)
	}
	return s
}

// Now returns the current simulated time.
func (s *Simulator) Now() float64 { return s.clock }

// Topology returns the live topology. Callers must not remove nodes directly; use RemoveNode.
func (s *Simulator) Topology() *topology.Topology { return s.topo }

// RNG returns the selection subsystem RNG.
func (s *Simulator) RNG() *rand.Rand { return s.rng.ForSubsystem(SubsystemSelection) }

// Dispatched returns how many events have been dispatched so far.
func (s *Simulator) Dispatched() int64 { return s.dispatched }

// BusyUntil returns when the link finishes its last granted transmission.
func (s *Simulator) BusyUntil(link topology.LinkID) float64 { return s.busyUntil[link] }

// NodeBacklog returns the number of processes holding or waiting for the node's slot.
func (s *Simulator) NodeBacklog(node topology.NodeID) int {
	r, ok := s.nodeRes[node]
	if !ok {
		return 0
	}
	return r.Holders() + r.QueueLen()
}

// NodeResource returns the processing Resource of a live node.
func (s *Simulator) NodeResource(id topology.NodeID) (*Resource, bool) {
	r, ok := s.nodeRes[id]
	return r, ok
}

// LinkResource returns the channel Resource of a live link.
func (s *Simulator) LinkResource(id topology.LinkID) (*Resource, bool) {
	r, ok := s.linkRes[id]
	return r, ok
}

// AddNode adds a node to the running topology together with its Resource.
func (s *Simulator) AddNode(n topology.Node) {
	s.topo.AddNode(n)
	if _, ok := s.nodeRes[n.ID]; !ok {
		s.nodeRes[n.ID] = NewResource(fmt.Sprintf("node_%d", n.ID), s.cfg.NodeCapacity, s.clock)
	}
}

// AddLink connects two live nodes and creates the link's Resource.
func (s *Simulator) AddLink(a, b topology.NodeID, l topology.Link) error {
	if err := s.topo.AddLink(a, b, l); err != nil {
		return err
	}
	id := topology.NewLinkID(a, b)
	if _, ok := s.linkRes[id]; !ok {
		s.linkRes[id] = NewResource(fmt.Sprintf("link_%s", id), s.cfg.LinkCapacity, s.clock)
	}
	return nil
}

// DeployApp registers an application with its policies. Allocation happens
// when Run is first called, or immediately if the simulation is already running.
func (s *Simulator) DeployApp(app *Application, placement Placement, population Population, selection Selection) error {
	if app == nil || selection == nil {
		return fmt.Errorf("DeployApp: application and selection are required")
	}
	if _, dup := s.apps[app.Name]; dup {
		return fmt.Errorf("DeployApp: application %s already deployed", app.Name)
	}
	s.apps[app.Name] = &appRuntime{app: app, placement: placement, population: population, selection: selection}
	s.appOrder = append(s.appOrder, app.Name)
	if s.started {
		return s.allocate(app.Name)
	}
	return nil
}

// Application returns a deployed application.
func (s *Simulator) Application(name string) (*Application, bool) {
	rt, ok := s.apps[name]
	if !ok {
		return nil, false
	}
	return rt.app, true
}

// Applications returns deployed application names in deployment order.
func (s *Simulator) Applications() []string {
	return append([]string(nil), s.appOrder...)
}

func (s *Simulator) runtime(app string) *appRuntime {
	rt, ok := s.apps[app]
	if !ok {
		panic(fmt.Sprintf("application %q is not deployed", app))
	}
	return rt
}

// allocate runs population, then placement, for one application and starts
// their periodic control processes.
func (s *Simulator) allocate(name string) error {
	rt := s.apps[name]
	if rt.population != nil {
		if err := rt.population.InitialAllocation(s, name); err != nil {
			return fmt.Errorf("population of %s: %w", name, err)
		}
	}
	if rt.placement != nil {
		if err := rt.placement.InitialAllocation(s, name); err != nil {
			return fmt.Errorf("placement of %s: %w", name, err)
		}
	}
	for _, pol := range []any{rt.population, rt.placement} {
		if per, ok := pol.(Periodic); ok && per.Activation() != nil {
			s.DeployControl(name, per)
		}
	}
	return nil
}

// Start performs the initial allocation of every deployed application. Run
// calls it on first use; it is exported for callers that drive AdvanceTo directly.
func (s *Simulator) Start() error {
	if s.started {
		return nil
	}
	s.started = true
	for _, name := range s.appOrder {
		if err := s.allocate(name); err != nil {
			return err
		}
	}
	return nil
}

// Run allocates on first use and advances the clock to until.
func (s *Simulator) Run(until float64) error {
	if err := s.Start(); err != nil {
		return err
	}
	logrus.Infof("Running simulation until %.3f (%d apps, %d nodes)", until, len(s.appOrder), s.topo.Len())
	s.AdvanceTo(until)
	logrus.Infof("Simulation reached %.3f after %d events", s.clock, s.dispatched)
	return nil
}

func (s *Simulator) nextMessageID() int64 {
	s.msgSeq++
	return s.msgSeq
}

// logEvent appends to the event stream. A schema violation is a programming error.
func (s *Simulator) logEvent(r eventlog.EventRecord) {
	if err := s.Log.AppendEvent(r.Record()); err != nil {
		panic(err)
	}
}

func (s *Simulator) logTransmission(r eventlog.TransmissionRecord) {
	if err := s.Log.AppendTransmission(r.Record()); err != nil {
		panic(err)
	}
}
