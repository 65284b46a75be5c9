package topology

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// WeightFunc assigns a non-negative cost to traversing a link.
type WeightFunc func(id LinkID, l Link) float64

// HopCount weighs every link as 1.
func HopCount(LinkID, Link) float64 { return 1 }

// LatencyWeight weighs links by the time a message of the given size needs to cross them.
func LatencyWeight(size float64) WeightFunc {
	return func(_ LinkID, l Link) float64 { return l.Latency(size) }
}

// orderedView presents the graph with neighbours in ascending id order and
// custom link weights, so Dijkstra breaks ties identically on every run.
type orderedView struct {
	*simple.WeightedUndirectedGraph
	t      *Topology
	weight WeightFunc
}

func (v orderedView) From(id int64) graph.Nodes {
	it := v.WeightedUndirectedGraph.From(id)
	nodes := graph.NodesOf(it)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
	return iterator.NewOrderedNodes(nodes)
}

func (v orderedView) Weight(xid, yid int64) (float64, bool) {
	if xid == yid {
		return 0, true
	}
	id := NewLinkID(NodeID(xid), NodeID(yid))
	l, ok := v.t.links[id]
	if !ok {
		return 0, false
	}
	return v.weight(id, l), true
}

// ShortestPath returns the minimum-hop path from src to dst, both included.
// src == dst yields the single-element path [src].
func (t *Topology) ShortestPath(src, dst NodeID) ([]NodeID, error) {
	return t.WeightedPath(src, dst, HopCount)
}

// WeightedPath returns the cheapest path from src to dst under weight.
func (t *Topology) WeightedPath(src, dst NodeID, weight WeightFunc) ([]NodeID, error) {
	if !t.HasNode(src) {
		return nil, fmt.Errorf("path %d->%d: %w %d", src, dst, ErrUnknownNode, src)
	}
	if !t.HasNode(dst) {
		return nil, fmt.Errorf("path %d->%d: %w %d", src, dst, ErrUnknownNode, dst)
	}
	if src == dst {
		return []NodeID{src}, nil
	}
	tree := t.ShortestFrom(src, weight)
	return tree.To(dst)
}

// PathTree holds every cheapest path rooted at one source node.
type PathTree struct {
	src      NodeID
	shortest path.Shortest
}

// ShortestFrom computes cheapest paths from src to every reachable node.
func (t *Topology) ShortestFrom(src NodeID, weight WeightFunc) *PathTree {
	view := orderedView{WeightedUndirectedGraph: t.g, t: t, weight: weight}
	return &PathTree{src: src, shortest: path.DijkstraFrom(simple.Node(src), view)}
}

// To returns the path from the tree's source to dst.
func (p *PathTree) To(dst NodeID) ([]NodeID, error) {
	if dst == p.src {
		return []NodeID{dst}, nil
	}
	nodes, _ := p.shortest.To(int64(dst))
	if len(nodes) == 0 {
		return nil, fmt.Errorf("path %d->%d: %w", p.src, dst, ErrNoPath)
	}
	out := make([]NodeID, len(nodes))
	for i, n := range nodes {
		out[i] = NodeID(n.ID())
	}
	return out, nil
}

// Cost returns the path cost to dst, +Inf when unreachable.
func (p *PathTree) Cost(dst NodeID) float64 {
	return p.shortest.WeightTo(int64(dst))
}
