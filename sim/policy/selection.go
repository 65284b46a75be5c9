package policy

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fogsim/fogsim/sim"
	"github.com/fogsim/fogsim/sim/topology"
)

// Selection policy names accepted by NewSelection.
const (
	SelectionShortestPath = "shortest-path"
	SelectionRoundRobin   = "round-robin"
	SelectionBroadcast    = "broadcast"
	SelectionFastestPath  = "fastest-path"
	SelectionRandom       = "random"
)

// ValidSelections is the set of recognized selection policy names.
var ValidSelections = map[string]bool{
	SelectionShortestPath: true,
	SelectionRoundRobin:   true,
	SelectionBroadcast:    true,
	SelectionFastestPath:  true,
	SelectionRandom:       true,
}

// ShortestPath sends each message to the nearest live candidate by hop count.
// Messages flagged Broadcasting go to every reachable candidate instead.
type ShortestPath struct{}

func (ShortestPath) Name() string { return SelectionShortestPath }

func (ShortestPath) GetPaths(ctx sim.PathContext, env sim.Envelope, src topology.NodeID, candidates []sim.Endpoint) []sim.Route {
	routes := reachable(ctx.Topology(), src, candidates)
	if env.Message.Broadcasting {
		return routes
	}
	return nearest(routes)
}

// RoundRobin rotates over the live instances of each destination module.
// An unreachable instance is skipped in favour of the next one.
type RoundRobin struct {
	next map[string]int // destination module → rotation counter
}

// NewRoundRobin creates a RoundRobin with fresh counters.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{next: make(map[string]int)}
}

func (r *RoundRobin) Name() string { return SelectionRoundRobin }

func (r *RoundRobin) GetPaths(ctx sim.PathContext, env sim.Envelope, src topology.NodeID, candidates []sim.Endpoint) []sim.Route {
	if len(candidates) == 0 || !ctx.Topology().HasNode(src) {
		return nil
	}
	tree := ctx.Topology().ShortestFrom(src, topology.HopCount)
	key := env.App + "/" + env.Message.Dst
	start := r.next[key] % len(candidates)
	for i := 0; i < len(candidates); i++ {
		c := candidates[(start+i)%len(candidates)]
		path, err := tree.To(c.Node)
		if err != nil {
			continue
		}
		r.next[key] = (start + i + 1) % len(candidates)
		return []sim.Route{{Path: path, Process: c.Process}}
	}
	return nil
}

// Broadcast sends a copy of every message to each reachable candidate.
type Broadcast struct{}

func (Broadcast) Name() string { return SelectionBroadcast }

func (Broadcast) GetPaths(ctx sim.PathContext, _ sim.Envelope, src topology.NodeID, candidates []sim.Endpoint) []sim.Route {
	return reachable(ctx.Topology(), src, candidates)
}

// NewSelection creates a selection policy by name.
// Valid names: "shortest-path", "round-robin", "broadcast", "fastest-path", "random".
func NewSelection(name string) sim.Selection {
	switch name {
	case "", SelectionShortestPath:
		return ShortestPath{}
	case SelectionRoundRobin:
		return NewRoundRobin()
	case SelectionBroadcast:
		return Broadcast{}
	case SelectionFastestPath:
		return NewFastestPath()
	case SelectionRandom:
		return Random{}
	default:
		panic(fmt.Sprintf("unknown selection policy %q; valid policies: [shortest-path, round-robin, broadcast, fastest-path, random]", name))
	}
}

// Random sends each message to a reachable candidate drawn uniformly from the
// simulation's selection stream. Messages flagged Broadcasting go to every
// reachable candidate.
type Random struct{}

func (Random) Name() string { return SelectionRandom }

func (Random) GetPaths(ctx sim.PathContext, env sim.Envelope, src topology.NodeID, candidates []sim.Endpoint) []sim.Route {
	routes := reachable(ctx.Topology(), src, candidates)
	if env.Message.Broadcasting || len(routes) == 0 {
		return routes
	}
	return []sim.Route{routes[ctx.RNG().Intn(len(routes))]}
}

// reachable returns one hop-count shortest route per candidate reachable from src.
func reachable(topo *topology.Topology, src topology.NodeID, candidates []sim.Endpoint) []sim.Route {
	if !topo.HasNode(src) {
		return nil
	}
	tree := topo.ShortestFrom(src, topology.HopCount)
	var routes []sim.Route
	for _, c := range candidates {
		path, err := tree.To(c.Node)
		if err != nil {
			logrus.Debugf("candidate %d on node %d unreachable from %d", c.Process, c.Node, src)
			continue
		}
		routes = append(routes, sim.Route{Path: path, Process: c.Process})
	}
	return routes
}

// nearest keeps the shortest route, the first one on ties.
func nearest(routes []sim.Route) []sim.Route {
	if len(routes) == 0 {
		return nil
	}
	best := routes[0]
	for _, r := range routes[1:] {
		if len(r.Path) < len(best.Path) {
			best = r
		}
	}
	return []sim.Route{best}
}
