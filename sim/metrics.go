// Tracks simulation-wide message accounting and resource usage such as:
// emitted, delivered, dropped and lost messages, node/link busy fractions and node energy.

package sim

import (
	"fmt"
	"sort"

	"github.com/fogsim/fogsim/sim/eventlog"
	"github.com/fogsim/fogsim/sim/topology"
)

// Metrics aggregates message counters for final reporting.
type Metrics struct {
	Emitted   int // envelopes created by sources
	Sent      int // transmissions started (one per route)
	Delivered int // transmissions handed to an inbox
	Dropped   int // sends with no reachable destination
	Lost      int // transmissions abandoned mid-path
	Rerouted  int // successful path repairs
	Computed  int // COMP records
	Sunk      int // SINK records
	Failures  int // nodes removed by the failure generator
}

// NewMetrics returns zeroed counters.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Counters converts the kernel counters into the run header form.
func (m *Metrics) Counters() eventlog.Counters {
	return eventlog.Counters{
		Emitted:   m.Emitted,
		Delivered: m.Delivered,
		Dropped:   m.Dropped,
		Lost:      m.Lost,
		Rerouted:  m.Rerouted,
	}
}

// NodeUsage is the processing-slot usage and energy of one node.
// A removed node keeps the figures it had when it went down.
type NodeUsage struct {
	Node    topology.NodeID
	Usage   float64 // busy fraction since the node came up
	Power   float64 // WattIdle + WattLoad*Usage
	Energy  float64 // Power * elapsed time
	Removed bool
}

// LinkUsage is the channel usage of one link.
type LinkUsage struct {
	Link          topology.LinkID
	Usage         float64
	Transmissions int
	Removed       bool
}

func (s *Simulator) nodeUsage(n topology.Node, res *Resource) NodeUsage {
	usage := res.Usage(s.clock)
	power := n.WattIdle + n.WattLoad*usage
	return NodeUsage{
		Node:   n.ID,
		Usage:  usage,
		Power:  power,
		Energy: power * (s.clock - res.created),
	}
}

func (s *Simulator) linkUsage(id topology.LinkID, res *Resource) LinkUsage {
	return LinkUsage{Link: id, Usage: res.Usage(s.clock), Transmissions: res.Grants()}
}

// retire snapshots the usage of a node and its links before they are removed.
func (s *Simulator) retire(id topology.NodeID) {
	if res, ok := s.nodeRes[id]; ok {
		n, _ := s.topo.Node(id)
		u := s.nodeUsage(n, res)
		u.Removed = true
		s.removedNodes = append(s.removedNodes, u)
	}
	for _, l := range s.topo.IncidentLinks(id) {
		if res, ok := s.linkRes[l]; ok {
			u := s.linkUsage(l, res)
			u.Removed = true
			s.removedLinks = append(s.removedLinks, u)
		}
	}
}

// Report is the end-of-run view of counters, usage and sink latencies.
type Report struct {
	Time        float64
	Metrics     Metrics
	Nodes       []NodeUsage
	Links       []LinkUsage
	SinkLatency []float64 // time_reception - time_emit of every SINK record, ascending
}

// Report computes usage for every live node and link at the current time,
// followed by the nodes and links removed so far.
func (s *Simulator) Report() *Report {
	r := &Report{Time: s.clock, Metrics: *s.Metrics}
	for _, id := range s.topo.Nodes() {
		res, ok := s.nodeRes[id]
		if !ok {
			continue
		}
		n, _ := s.topo.Node(id)
		r.Nodes = append(r.Nodes, s.nodeUsage(n, res))
	}
	r.Nodes = append(r.Nodes, s.removedNodes...)
	for _, id := range s.topo.Links() {
		res, ok := s.linkRes[id]
		if !ok {
			continue
		}
		r.Links = append(r.Links, s.linkUsage(id, res))
	}
	r.Links = append(r.Links, s.removedLinks...)
	for _, e := range s.Log.EventsOfType(eventlog.TypeSink) {
		r.SinkLatency = append(r.SinkLatency, e.TimeReception-e.TimeEmit)
	}
	sort.Float64s(r.SinkLatency)
	return r
}

// TotalEnergy sums the energy of every reported node.
func (r *Report) TotalEnergy() float64 {
	total := 0.0
	for _, n := range r.Nodes {
		total += n.Energy
	}
	return total
}

// Print displays aggregated metrics at the end of the simulation.
func (r *Report) Print() {
	m := r.Metrics
	fmt.Println("=== Simulation Metrics ===")
	fmt.Printf("Simulated Time       : %.3f\n", r.Time)
	fmt.Printf("Emitted Messages     : %d\n", m.Emitted)
	fmt.Printf("Transmissions        : %d\n", m.Sent)
	fmt.Printf("Delivered            : %d\n", m.Delivered)
	fmt.Printf("Dropped (unreachable): %d\n", m.Dropped)
	fmt.Printf("Lost (in transit)    : %d\n", m.Lost)
	fmt.Printf("Rerouted             : %d\n", m.Rerouted)
	fmt.Printf("Computations         : %d\n", m.Computed)
	fmt.Printf("Sink Arrivals        : %d\n", m.Sunk)
	fmt.Printf("Node Failures        : %d\n", m.Failures)
	if len(r.SinkLatency) > 0 {
		fmt.Printf("Mean Sink Latency    : %.3f\n", CalculateMean(r.SinkLatency))
		fmt.Printf("P50/P95/P99 Latency  : %.3f / %.3f / %.3f\n",
			CalculatePercentile(r.SinkLatency, 50),
			CalculatePercentile(r.SinkLatency, 95),
			CalculatePercentile(r.SinkLatency, 99))
	}
	fmt.Printf("Total Node Energy    : %.3f\n", r.TotalEnergy())
	for _, n := range r.Nodes {
		if n.Usage == 0 {
			continue
		}
		fmt.Printf("  node %-6d usage %.4f power %.2f energy %.2f%s\n", n.Node, n.Usage, n.Power, n.Energy, removedMark(n.Removed))
	}
	for _, l := range r.Links {
		if l.Transmissions == 0 {
			continue
		}
		fmt.Printf("  link %-9s usage %.4f transmissions %d%s\n", l.Link, l.Usage, l.Transmissions, removedMark(l.Removed))
	}
}

func removedMark(removed bool) string {
	if removed {
		return " (removed)"
	}
	return ""
}
