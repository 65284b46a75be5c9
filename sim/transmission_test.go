package sim

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fogsim/fogsim/sim/eventlog"
	"github.com/fogsim/fogsim/sim/topology"
	"github.com/fogsim/fogsim/sim/trace"
)

func TestPipeline_SteadyStateLatency(t *testing.T) {
	// GIVEN src emits M1 every 100 units to op on mid (20 instructions at IPT 2)
	// which forwards M2 to the sink on dst; both links have BW 10, PR 1
	s := NewSimulator(testLine(t), Config{})
	deployPipeline(t, s, 100)

	// WHEN the simulation runs for 1000 units
	require.NoError(t, s.Run(1000))

	// THEN exactly ten messages reach the sink
	sinks := s.Log.EventsOfType(eventlog.TypeSink)
	require.Len(t, sinks, 10)
	comps := s.Log.EventsOfType(eventlog.TypeComputation)
	require.Len(t, comps, 10)

	hop1 := 100.0/10 + 1 // 11
	service := 20.0 / 2  // 10
	hop2 := 50.0/10 + 1  // 6
	for i, e := range sinks {
		emitted := float64(i) * 100
		assert.Equal(t, int64(i+1), e.ID, "envelope id is kept through the operator")
		assert.InDelta(t, hop2, e.TimeReception-e.TimeEmit, 1e-9, "last hop of message %d", i)
		assert.InDelta(t, emitted+hop1+service+hop2, e.TimeReception, 1e-9, "end-to-end of message %d", i)
		assert.Equal(t, int64(3), e.TopoDst)
		assert.Equal(t, int64(2), e.TopoSrc)
	}
	for i, c := range comps {
		emitted := float64(i) * 100
		assert.InDelta(t, emitted, c.TimeEmit, 1e-9)
		assert.InDelta(t, emitted+hop1, c.TimeReception, 1e-9)
		assert.InDelta(t, c.TimeReception, c.TimeIn, 1e-9, "no queueing at the operator")
		assert.InDelta(t, service, c.Service, 1e-9)
		assert.InDelta(t, c.TimeIn+service, c.TimeOut, 1e-9)
	}

	// AND each message crossed two links
	assert.Len(t, s.Log.Transmissions(), 20+1, "the emission at t=1000 has started its first hop")
	assert.Equal(t, 11, s.Metrics.Emitted)
	assert.Equal(t, 0, s.Metrics.Dropped)
	assert.Equal(t, 0, s.Metrics.Lost)
}

func TestPipeline_LinkQueueing(t *testing.T) {
	// GIVEN two sources on the same node sharing one outbound link (latency 10)
	topo := topology.New()
	topo.AddNode(topology.Node{ID: 1, IPT: 1})
	topo.AddNode(topology.Node{ID: 2, IPT: 1})
	require.NoError(t, topo.AddLink(1, 2, topology.Link{BW: 10, PR: 0}))
	app := NewApplication("app")
	require.NoError(t, app.AddModule("src", ModuleSource))
	require.NoError(t, app.AddModule("snk", ModuleSink))
	m := Message{Name: "M", Src: "src", Dst: "snk", Size: 100}
	require.NoError(t, app.AddMessage(m))
	s := NewSimulator(topo, Config{TraceLevel: trace.TraceLevelDeliveries})
	require.NoError(t, s.DeployApp(app, nil, allocFunc(func(s *Simulator, name string) error {
		for i := 0; i < 2; i++ {
			if _, err := s.DeploySource(name, 1, m, &DeterministicStartPoint{Start: 0, Time: 1000}); err != nil {
				return err
			}
		}
		_, err := s.DeploySink(name, 2, "snk")
		return err
	}), hopSelection{}))

	// WHEN both emit at t=0
	require.NoError(t, s.Run(100))

	// THEN the second waits for the first to leave the link
	d := s.Trace.Deliveries
	require.Len(t, d, 2)
	sort.Slice(d, func(i, j int) bool { return d[i].Received < d[j].Received })
	assert.Equal(t, 0.0, d[0].NetworkQueue)
	assert.Equal(t, 10.0, d[0].Received)
	assert.Greater(t, d[1].NetworkQueue, 0.0)
	assert.Equal(t, d[0].NetworkLatency, d[1].NetworkQueue)
	assert.Equal(t, 20.0, d[1].Received)

	// AND the link was busy for both transmissions back to back
	link, ok := s.LinkResource(topology.NewLinkID(1, 2))
	require.True(t, ok)
	assert.InDelta(t, 0.2, link.Usage(100), 1e-12)
	assert.Equal(t, 20.0, s.BusyUntil(topology.NewLinkID(1, 2)))
	tx := s.Log.Transmissions()
	require.Len(t, tx, 2)
	assert.Equal(t, 0.0, tx[0].CTime)
	assert.Equal(t, 10.0, tx[1].CTime)
	assert.Equal(t, 2, tx[0].Buffer)
}

func TestPipeline_NodeFailure(t *testing.T) {
	// GIVEN the line pipeline and a failure of mid at t=50
	s := NewSimulator(testLine(t), Config{TraceLevel: trace.TraceLevelDecisions})
	deployPipeline(t, s, 100)
	s.DeployNodeFailureGenerator([]topology.NodeID{2}, &DeterministicStartPoint{Start: 50, Time: 1})

	// WHEN the simulation runs
	require.NoError(t, s.Run(1000))

	// THEN only the message emitted before the failure is processed
	assert.Len(t, s.Log.EventsOfType(eventlog.TypeSink), 1)
	assert.Equal(t, 10, s.Metrics.Dropped, "emissions at 100..1000 have no live operator")
	assert.Equal(t, 1, s.Metrics.Failures)

	// AND no link touching mid is used after the failure
	for _, tx := range s.Log.Transmissions() {
		if tx.CTime > 50 {
			assert.NotEqual(t, int64(2), tx.Src)
			assert.NotEqual(t, int64(2), tx.Dst)
		}
	}
	for _, e := range s.Log.Events() {
		if e.TimeIn > 50 {
			assert.NotEqual(t, int64(2), e.TopoDst)
		}
	}

	// AND the failure is logged with the processes it took down
	require.Len(t, s.Log.Failures(), 1)
	assert.Equal(t, eventlog.FailureRecord{Node: 2, Processes: 1, Time: 50}, s.Log.Failures()[0])
	require.NotEmpty(t, s.Trace.Selections)
	last := s.Trace.Selections[len(s.Trace.Selections)-1]
	assert.Empty(t, last.Routes)
	assert.Equal(t, "no-deployed-destination", last.Reason)
}

// diamond builds 1-2-4 and 1-3-4 with latency 10 per hop for 100-byte messages.
func diamond(t *testing.T) *topology.Topology {
	t.Helper()
	topo := topology.New()
	for _, id := range []topology.NodeID{1, 2, 3, 4} {
		topo.AddNode(topology.Node{ID: id, IPT: 1})
	}
	for _, l := range [][2]topology.NodeID{{1, 2}, {2, 4}, {1, 3}, {3, 4}} {
		require.NoError(t, topo.AddLink(l[0], l[1], topology.Link{BW: 10}))
	}
	return topo
}

func deploySourceSink(t *testing.T, s *Simulator, src, dst topology.NodeID, start float64) {
	t.Helper()
	app := NewApplication("app")
	require.NoError(t, app.AddModule("src", ModuleSource))
	require.NoError(t, app.AddModule("snk", ModuleSink))
	m := Message{Name: "M", Src: "src", Dst: "snk", Size: 100}
	require.NoError(t, app.AddMessage(m))
	require.NoError(t, s.DeployApp(app, nil, allocFunc(func(s *Simulator, name string) error {
		if _, err := s.DeploySource(name, src, m, &DeterministicStartPoint{Start: start, Time: 1e9}); err != nil {
			return err
		}
		_, err := s.DeploySink(name, dst, "snk")
		return err
	}), hopSelection{}))
}

func TestTransmission_ReroutesAroundFailedNode(t *testing.T) {
	// GIVEN a message leaving 1 for 4 over 2 at t=0
	s := NewSimulator(diamond(t), Config{TraceLevel: trace.TraceLevelDeliveries})
	deploySourceSink(t, s, 1, 4, 0)

	// WHEN node 2 fails while the message is on link 1-2
	s.DeployNodeFailureGenerator([]topology.NodeID{2}, &Deterministic{Time: 5})
	require.NoError(t, s.Run(100))

	// THEN the message is repaired from node 1 over node 3
	require.Len(t, s.Trace.Deliveries, 1)
	d := s.Trace.Deliveries[0]
	assert.Equal(t, []int64{1, 3, 4}, d.Path)
	assert.Equal(t, 30.0, d.Received)
	assert.Equal(t, 20.0, d.NetworkLatency)
	assert.Equal(t, 1, s.Metrics.Rerouted)
	assert.Equal(t, 0, s.Metrics.Lost)
	require.Len(t, s.Trace.Reroutes, 1)
	assert.Equal(t, []int64{1, 2, 4}, s.Trace.Reroutes[0].OldPath)
	assert.Equal(t, []int64{1, 3, 4}, s.Trace.Reroutes[0].NewPath)
	assert.Equal(t, 0, s.InNetwork())
}

func TestTransmission_LostWhenNoAlternative(t *testing.T) {
	// GIVEN a message crossing the line 1-2-3 towards 3
	topo := testLine(t)
	s := NewSimulator(topo, Config{TraceLevel: trace.TraceLevelDecisions})
	deploySourceSink(t, s, 1, 3, 0)

	// WHEN node 2 fails while the message is on link 1-2
	s.DeployNodeFailureGenerator([]topology.NodeID{2}, &Deterministic{Time: 5})
	require.NoError(t, s.Run(100))

	// THEN the message is lost and the simulation carries on
	assert.Equal(t, 1, s.Metrics.Lost)
	assert.Equal(t, 0, s.Metrics.Delivered)
	assert.Empty(t, s.Log.EventsOfType(eventlog.TypeSink))
	require.Len(t, s.Trace.Reroutes, 1)
	assert.Nil(t, s.Trace.Reroutes[0].NewPath)
	assert.Equal(t, 100.0, s.Now())
	assert.Equal(t, 0, s.InNetwork())
}

func TestSendMessage_UnreachableDestination(t *testing.T) {
	// GIVEN source and sink in disjoint components
	topo := topology.New()
	topo.AddNode(topology.Node{ID: 1, IPT: 1})
	topo.AddNode(topology.Node{ID: 2, IPT: 1})
	s := NewSimulator(topo, Config{TraceLevel: trace.TraceLevelDecisions})
	deploySourceSink(t, s, 1, 2, 0)

	// WHEN the source emits
	require.NotPanics(t, func() { require.NoError(t, s.Run(10)) })

	// THEN the message is dropped with an empty selection
	assert.Equal(t, 1, s.Metrics.Dropped)
	assert.Empty(t, s.Log.Transmissions())
	require.Len(t, s.Trace.Selections, 1)
	assert.Empty(t, s.Trace.Selections[0].Routes)
	assert.Equal(t, "unreachable", s.Trace.Selections[0].Reason)
	assert.Equal(t, 10.0, s.Now())
}

func TestSendMessage_SameNodeDeliversImmediately(t *testing.T) {
	s := NewSimulator(testLine(t), Config{TraceLevel: trace.TraceLevelDeliveries})
	deploySourceSink(t, s, 3, 3, 4)

	require.NoError(t, s.Run(10))

	require.Len(t, s.Trace.Deliveries, 1)
	d := s.Trace.Deliveries[0]
	assert.Equal(t, 4.0, d.Received)
	assert.Equal(t, 0.0, d.NetworkLatency)
	assert.Equal(t, []int64{3}, d.Path)
	assert.Empty(t, s.Log.Transmissions())
}

func TestSendMessageFrom_UnknownNodeDrops(t *testing.T) {
	s := NewSimulator(testLine(t), Config{})
	deployPipeline(t, s, 100)
	require.NoError(t, s.Start())

	s.SendMessageFrom("app", Envelope{ID: 99, Message: Message{Name: "M1", Src: "src", Dst: "op"}}, 42)

	assert.Equal(t, 1, s.Metrics.Dropped)
}

func TestConsumer_SelectivityAndBroadcast(t *testing.T) {
	// GIVEN an operator that forwards M2 with selectivity left unset and
	// broadcasts M3 to two sink modules with probabilities 1 and 0
	app := NewApplication("app")
	require.NoError(t, app.AddModule("src", ModuleSource))
	require.NoError(t, app.AddModule("op", ModuleOperator))
	require.NoError(t, app.AddModule("a", ModuleSink))
	require.NoError(t, app.AddModule("b", ModuleSink))
	m1 := Message{Name: "M1", Src: "src", Dst: "op", Size: 10}
	require.NoError(t, app.AddMessage(m1))
	require.NoError(t, app.AddMessage(Message{Name: "M2", Src: "op", Dst: "a", Size: 10}))
	require.NoError(t, app.AddMessage(Message{Name: "M3", Src: "op", Dst: "a", Size: 10}))
	require.NoError(t, app.AddService("op", Service{In: "M1", Out: "M2", Selectivity: 0}))
	require.NoError(t, app.AddService("op", Service{In: "M1", Out: "M3",
		Destinations: []string{"a", "b"}, Probabilities: []float64{1, 0}}))

	s := NewSimulator(testLine(t), Config{})
	require.NoError(t, s.DeployApp(app,
		allocFunc(func(s *Simulator, name string) error {
			_, err := s.DeployModule(name, "op", nil, []topology.NodeID{2})
			return err
		}),
		allocFunc(func(s *Simulator, name string) error {
			if _, err := s.DeploySource(name, 1, m1, &DeterministicStartPoint{Start: 0, Time: 1e9}); err != nil {
				return err
			}
			if _, err := s.DeploySink(name, 3, "a"); err != nil {
				return err
			}
			_, err := s.DeploySink(name, 3, "b")
			return err
		}),
		hopSelection{}))

	// WHEN one message passes through
	require.NoError(t, s.Run(100))

	// THEN selectivity 0 counts as always (unset), and only sink a gets the broadcast copy
	sinks := s.Log.EventsOfType(eventlog.TypeSink)
	require.Len(t, sinks, 2)
	byModule := map[string][]string{}
	for _, e := range sinks {
		byModule[e.Module] = append(byModule[e.Module], e.Message)
	}
	assert.ElementsMatch(t, []string{"M2", "M3"}, byModule["a"])
	assert.Empty(t, byModule["b"])
}

func TestReport_UsageAndEnergy(t *testing.T) {
	s := NewSimulator(testLine(t), Config{})
	deployPipeline(t, s, 100)
	require.NoError(t, s.Run(1000))

	r := s.Report()

	var mid NodeUsage
	for _, n := range r.Nodes {
		if n.Node == 2 {
			mid = n
		}
	}
	// ten services of 10 units each on mid
	assert.InDelta(t, 0.1, mid.Usage, 1e-9)
	assert.InDelta(t, 10+5*0.1, mid.Power, 1e-9)
	assert.InDelta(t, (10+5*0.1)*1000, mid.Energy, 1e-6)
	require.Len(t, r.SinkLatency, 10)
	assert.InDelta(t, 6.0, CalculateMean(r.SinkLatency), 1e-9)
	assert.Equal(t, 11, r.Metrics.Emitted)
	assert.Equal(t, s.Metrics.Counters().Delivered, s.Metrics.Delivered)
}

func TestTransmission_BroadcastCopyKeepsItsDestination(t *testing.T) {
	// GIVEN a broadcasting message from node 1 to sink instances on nodes 2 and 4
	s := NewSimulator(diamond(t), Config{TraceLevel: trace.TraceLevelDeliveries})
	app := NewApplication("app")
	require.NoError(t, app.AddModule("src", ModuleSource))
	require.NoError(t, app.AddModule("snk", ModuleSink))
	m := Message{Name: "M", Src: "src", Dst: "snk", Size: 100, Broadcasting: true}
	require.NoError(t, app.AddMessage(m))
	require.NoError(t, s.DeployApp(app, nil, allocFunc(func(s *Simulator, name string) error {
		if _, err := s.DeploySource(name, 1, m, &DeterministicStartPoint{Start: 0, Time: 1e9}); err != nil {
			return err
		}
		for _, n := range []topology.NodeID{2, 4} {
			if _, err := s.DeploySink(name, n, "snk"); err != nil {
				return err
			}
		}
		return nil
	}), everySelection{}))

	// WHEN node 2 fails while both copies are in flight
	s.DeployNodeFailureGenerator([]topology.NodeID{2}, &Deterministic{Time: 5})
	require.NoError(t, s.Run(100))

	// THEN the copy for node 2 is lost instead of being redirected to node 4
	assert.Equal(t, 2, s.Metrics.Sent)
	assert.Equal(t, 1, s.Metrics.Lost)
	require.Len(t, s.Trace.Deliveries, 1)
	assert.Equal(t, int64(4), s.Trace.Deliveries[0].Path[len(s.Trace.Deliveries[0].Path)-1])
	require.Len(t, s.Log.EventsOfType(eventlog.TypeSink), 1)
	assert.Equal(t, 0, s.InNetwork())
}

// deployFractional deploys src(1) -> op(2) -> sinks a, b (3). op forwards M2 to a
// with selectivity 0.5 and broadcasts M3 to a and b with probability 0.5 each.
// The source emits every 10 units from t=0.
func deployFractional(t *testing.T, s *Simulator) {
	t.Helper()
	app := NewApplication("app")
	require.NoError(t, app.AddModule("src", ModuleSource))
	require.NoError(t, app.AddModule("op", ModuleOperator))
	require.NoError(t, app.AddModule("a", ModuleSink))
	require.NoError(t, app.AddModule("b", ModuleSink))
	m1 := Message{Name: "M1", Src: "src", Dst: "op", Size: 10}
	require.NoError(t, app.AddMessage(m1))
	require.NoError(t, app.AddMessage(Message{Name: "M2", Src: "op", Dst: "a", Size: 10}))
	require.NoError(t, app.AddMessage(Message{Name: "M3", Src: "op", Dst: "a", Size: 10}))
	require.NoError(t, app.AddService("op", Service{In: "M1", Out: "M2", Selectivity: 0.5}))
	require.NoError(t, app.AddService("op", Service{In: "M1", Out: "M3",
		Destinations: []string{"a", "b"}, Probabilities: []float64{0.5, 0.5}}))
	require.NoError(t, s.DeployApp(app,
		allocFunc(func(s *Simulator, name string) error {
			_, err := s.DeployModule(name, "op", nil, []topology.NodeID{2})
			return err
		}),
		allocFunc(func(s *Simulator, name string) error {
			if _, err := s.DeploySource(name, 1, m1, &DeterministicStartPoint{Start: 0, Time: 10}); err != nil {
				return err
			}
			for _, module := range []string{"a", "b"} {
				if _, err := s.DeploySink(name, 3, module); err != nil {
					return err
				}
			}
			return nil
		}),
		hopSelection{}))
}

func sinkCounts(s *Simulator) map[string]int {
	counts := map[string]int{}
	for _, e := range s.Log.EventsOfType(eventlog.TypeSink) {
		counts[e.Module+"/"+e.Message]++
	}
	return counts
}

func TestConsumer_FractionalDrawsMatchProbabilities(t *testing.T) {
	// GIVEN about 1000 messages through an operator with 0.5 selectivity and 0.5 broadcast gates
	s := NewSimulator(testLine(t), Config{Seed: 42})
	deployFractional(t, s)

	// WHEN the simulation runs
	require.NoError(t, s.Run(9995))

	// THEN every gate passes about half of the messages
	comps := len(s.Log.EventsOfType(eventlog.TypeComputation))
	require.Equal(t, 1000, comps)
	counts := sinkCounts(s)
	for _, key := range []string{"a/M2", "a/M3", "b/M3"} {
		assert.InDelta(t, 500, counts[key], 80, "%s passed %d of %d", key, counts[key], comps)
	}
	assert.Zero(t, counts["b/M2"])
}

func TestSimulation_SameSeedSameLogs(t *testing.T) {
	run := func(seed int64) *Simulator {
		s := NewSimulator(testLine(t), Config{Seed: seed})
		deployFractional(t, s)
		require.NoError(t, s.Run(2000))
		return s
	}

	// GIVEN two runs with the same seed in one process, and one with another seed
	first, second, other := run(42), run(42), run(7)

	// THEN the same seed reproduces both logs exactly
	require.NotEmpty(t, first.Log.Events())
	assert.Equal(t, first.Log.Events(), second.Log.Events())
	assert.Equal(t, first.Log.Transmissions(), second.Log.Transmissions())
	assert.Equal(t, first.Metrics, second.Metrics)

	// AND a different seed changes the draws
	assert.NotEqual(t, first.Log.Events(), other.Log.Events())
}

func TestReport_KeepsRemovedNodesAndLinks(t *testing.T) {
	// GIVEN the pipeline with mid failing at t=250 after three services
	s := NewSimulator(testLine(t), Config{})
	deployPipeline(t, s, 100)
	s.DeployNodeFailureGenerator([]topology.NodeID{2}, &Deterministic{Time: 250})

	// WHEN the run continues past the failure
	require.NoError(t, s.Run(500))
	r := s.Report()

	// THEN mid is reported with the usage and energy it had when it went down
	var mid *NodeUsage
	for i := range r.Nodes {
		if r.Nodes[i].Node == 2 {
			mid = &r.Nodes[i]
		}
	}
	require.NotNil(t, mid)
	assert.True(t, mid.Removed)
	assert.InDelta(t, 30.0/250, mid.Usage, 1e-9)
	assert.InDelta(t, (10+5*30.0/250)*250, mid.Energy, 1e-6)
	assert.Len(t, r.Nodes, 3)

	// AND both of its links keep their transmissions
	links := map[topology.LinkID]LinkUsage{}
	for _, l := range r.Links {
		links[l.Link] = l
	}
	require.Len(t, links, 2)
	first := links[topology.NewLinkID(1, 2)]
	assert.True(t, first.Removed)
	assert.Equal(t, 3, first.Transmissions)
	assert.InDelta(t, 33.0/250, first.Usage, 1e-9)
	assert.Equal(t, 3, links[topology.NewLinkID(2, 3)].Transmissions)

	// AND the total energy still counts mid
	live := 0.0
	for _, n := range r.Nodes {
		if !n.Removed {
			live += n.Energy
		}
	}
	assert.InDelta(t, live+mid.Energy, r.TotalEnergy(), 1e-9)
}
