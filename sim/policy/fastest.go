package policy

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/fogsim/fogsim/sim"
	"github.com/fogsim/fogsim/sim/topology"
)

type pathKey struct {
	src, dst topology.NodeID
	size     float64
}

// FastestPath sends each message to the candidate with the earliest expected
// completion: time to cross the path, including links still busy with earlier
// transmissions, plus the time to process it behind the destination's backlog.
// Messages flagged Broadcasting go to every reachable candidate.
//
// Paths minimise the idle crossing time for the message size and are cached
// per (source, destination node, size). The cache is cleared when the number
// of topology nodes or of candidates changes, and a cached path whose links
// no longer exist is recomputed.
type FastestPath struct {
	cache      map[pathKey][]topology.NodeID
	nodes      int
	candidates int
}

// NewFastestPath creates a FastestPath with an empty cache.
func NewFastestPath() *FastestPath {
	return &FastestPath{cache: make(map[pathKey][]topology.NodeID), nodes: -1, candidates: -1}
}

func (f *FastestPath) Name() string { return SelectionFastestPath }

// CacheLen returns the number of cached paths.
func (f *FastestPath) CacheLen() int { return len(f.cache) }

func (f *FastestPath) GetPaths(ctx sim.PathContext, env sim.Envelope, src topology.NodeID, candidates []sim.Endpoint) []sim.Route {
	topo := ctx.Topology()
	if !topo.HasNode(src) {
		return nil
	}
	if f.nodes != topo.Len() || f.candidates != len(candidates) {
		f.cache = make(map[pathKey][]topology.NodeID)
		f.nodes = topo.Len()
		f.candidates = len(candidates)
	}

	if env.Message.Broadcasting {
		var routes []sim.Route
		for _, c := range candidates {
			if path, ok := f.path(topo, src, c.Node, env.Message.Size); ok {
				routes = append(routes, sim.Route{Path: path, Process: c.Process})
			}
		}
		return routes
	}

	var best *sim.Route
	bestCost := math.Inf(1)
	for _, c := range candidates {
		path, ok := f.path(topo, src, c.Node, env.Message.Size)
		if !ok {
			continue
		}
		cost := expectedCompletion(ctx, env, path)
		if cost < bestCost || (cost == bestCost && best != nil && len(path) < len(best.Path)) {
			bestCost = cost
			best = &sim.Route{Path: path, Process: c.Process}
		}
	}
	if best == nil {
		return nil
	}
	return []sim.Route{*best}
}

// GetPathFromFailure finds a new route from the node currently holding the message.
func (f *FastestPath) GetPathFromFailure(ctx sim.PathContext, broken sim.BrokenPath, candidates []sim.Endpoint) (sim.Route, bool) {
	cur := broken.Current()
	routes := f.GetPaths(ctx, broken.Envelope, cur, candidates)
	if len(routes) == 0 {
		logrus.Debugf("no repair for %s from node %d", broken.Envelope, cur)
		return sim.Route{}, false
	}
	return routes[0], true
}

func (f *FastestPath) path(topo *topology.Topology, src, dst topology.NodeID, size float64) ([]topology.NodeID, bool) {
	key := pathKey{src: src, dst: dst, size: size}
	if p, ok := f.cache[key]; ok && pathAlive(topo, p) {
		return p, true
	}
	p, err := topo.WeightedPath(src, dst, topology.LatencyWeight(size))
	if err != nil {
		delete(f.cache, key)
		return nil, false
	}
	f.cache[key] = p
	return p, true
}

// expectedCompletion estimates when env would finish processing at the end of path.
func expectedCompletion(ctx sim.PathContext, env sim.Envelope, path []topology.NodeID) float64 {
	topo := ctx.Topology()
	now := ctx.Now()
	t := now
	for i := 0; i+1 < len(path); i++ {
		l, _ := topo.Link(path[i], path[i+1])
		if busy := ctx.BusyUntil(topology.NewLinkID(path[i], path[i+1])); busy > t {
			t = busy
		}
		t += l.Latency(env.Message.Size)
	}
	dst := path[len(path)-1]
	n, _ := topo.Node(dst)
	processing := 0.0
	if n.IPT > 0 {
		processing = env.Message.Instructions / n.IPT * float64(1+ctx.NodeBacklog(dst))
	}
	return t - now + processing
}

func pathAlive(topo *topology.Topology, path []topology.NodeID) bool {
	for _, n := range path {
		if !topo.HasNode(n) {
			return false
		}
	}
	for i := 0; i+1 < len(path); i++ {
		if !topo.HasLink(path[i], path[i+1]) {
			return false
		}
	}
	return true
}
