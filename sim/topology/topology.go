// Package topology holds the network graph a simulation runs on: nodes with
// processing capacity, undirected links with bandwidth and propagation delay,
// and the path queries selection policies need.
// It has no dependencies on sim/ and stores pure data plus gonum graph state.
package topology

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
)

var (
	// ErrNoPath is returned when two nodes are in disjoint components.
	ErrNoPath = errors.New("no path between nodes")
	// ErrUnknownNode is returned when a query names a node that is not in the graph.
	ErrUnknownNode = errors.New("unknown node")
)

// NodeID identifies a topology node.
type NodeID int64

// LinkID identifies an undirected link. A is always the smaller endpoint.
type LinkID struct {
	A, B NodeID
}

// NewLinkID returns the canonical id for the link between a and b.
func NewLinkID(a, b NodeID) LinkID {
	if a > b {
		a, b = b, a
	}
	return LinkID{A: a, B: b}
}

// Touches reports whether n is an endpoint of the link.
func (l LinkID) Touches(n NodeID) bool { return l.A == n || l.B == n }

func (l LinkID) String() string { return fmt.Sprintf("%d-%d", l.A, l.B) }

// Node carries the attributes of a topology node.
type Node struct {
	ID       NodeID
	IPT      float64           // instructions processed per time unit
	RAM      float64           // optional memory capacity
	WattIdle float64           // power draw while idle
	WattLoad float64           // additional power draw at full usage
	Attrs    map[string]string // free-form attributes (model, tier, ...)
}

// Attr returns the named free-form attribute, or "" when it is unset.
func (n Node) Attr(key string) string {
	if n.Attrs == nil {
		return ""
	}
	return n.Attrs[key]
}

// Link carries the attributes of an undirected link.
type Link struct {
	BW float64 // bandwidth in bytes per time unit
	PR float64 // propagation delay in time units
}

// Latency returns the time needed to push size bytes across the link.
func (l Link) Latency(size float64) float64 {
	return size/l.BW + l.PR
}

// Topology is an undirected attributed graph.
// Thread-safety: NOT thread-safe. Must be used from a single goroutine.
type Topology struct {
	g     *simple.WeightedUndirectedGraph
	nodes map[NodeID]*Node
	links map[LinkID]Link
}

// New creates an empty topology.
func New() *Topology {
	return &Topology{
		g:     simple.NewWeightedUndirectedGraph(0, 0),
		nodes: make(map[NodeID]*Node),
		links: make(map[LinkID]Link),
	}
}

// AddNode inserts a node. Re-adding an existing id replaces its attributes.
func (t *Topology) AddNode(n Node) {
	cp := n
	if n.Attrs != nil {
		cp.Attrs = make(map[string]string, len(n.Attrs))
		for k, v := range n.Attrs {
			cp.Attrs[k] = v
		}
	}
	if _, ok := t.nodes[n.ID]; !ok {
		t.g.AddNode(simple.Node(n.ID))
	}
	t.nodes[n.ID] = &cp
}

// AddLink connects a and b. Both nodes must exist and the bandwidth must be positive.
func (t *Topology) AddLink(a, b NodeID, l Link) error {
	if a == b {
		return fmt.Errorf("link %d-%d: self links are not allowed", a, b)
	}
	if !t.HasNode(a) {
		return fmt.Errorf("link %d-%d: %w %d", a, b, ErrUnknownNode, a)
	}
	if !t.HasNode(b) {
		return fmt.Errorf("link %d-%d: %w %d", a, b, ErrUnknownNode, b)
	}
	if l.BW <= 0 {
		return fmt.Errorf("link %d-%d: BW must be > 0, got %v", a, b, l.BW)
	}
	if l.PR < 0 {
		return fmt.Errorf("link %d-%d: PR must be >= 0, got %v", a, b, l.PR)
	}
	t.g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(a), T: simple.Node(b), W: 1})
	t.links[NewLinkID(a, b)] = l
	return nil
}

// RemoveNode deletes the node and every incident link.
// Returns false when the node did not exist.
func (t *Topology) RemoveNode(id NodeID) bool {
	if !t.HasNode(id) {
		return false
	}
	for _, l := range t.IncidentLinks(id) {
		delete(t.links, l)
	}
	t.g.RemoveNode(int64(id))
	delete(t.nodes, id)
	return true
}

// RemoveLink deletes the link between a and b. Returns false when absent.
func (t *Topology) RemoveLink(a, b NodeID) bool {
	id := NewLinkID(a, b)
	if _, ok := t.links[id]; !ok {
		return false
	}
	t.g.RemoveEdge(int64(a), int64(b))
	delete(t.links, id)
	return true
}

// HasNode reports whether the node exists.
func (t *Topology) HasNode(id NodeID) bool {
	_, ok := t.nodes[id]
	return ok
}

// HasLink reports whether a and b are directly connected.
func (t *Topology) HasLink(a, b NodeID) bool {
	_, ok := t.links[NewLinkID(a, b)]
	return ok
}

// Node returns a copy of the node's attributes.
func (t *Topology) Node(id NodeID) (Node, bool) {
	n, ok := t.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Link returns the attributes of the link between a and b.
func (t *Topology) Link(a, b NodeID) (Link, bool) {
	l, ok := t.links[NewLinkID(a, b)]
	return l, ok
}

// Len returns the number of nodes.
func (t *Topology) Len() int { return len(t.nodes) }

// Nodes returns all node ids in ascending order.
func (t *Topology) Nodes() []NodeID {
	ids := make([]NodeID, 0, len(t.nodes))
	for id := range t.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Links returns all link ids ordered by (A, B).
func (t *Topology) Links() []LinkID {
	ids := make([]LinkID, 0, len(t.links))
	for id := range t.links {
		ids = append(ids, id)
	}
	sortLinks(ids)
	return ids
}

// Neighbors returns the nodes adjacent to id in ascending order.
func (t *Topology) Neighbors(id NodeID) []NodeID {
	if !t.HasNode(id) {
		return nil
	}
	it := t.g.From(int64(id))
	out := make([]NodeID, 0, it.Len())
	for it.Next() {
		out = append(out, NodeID(it.Node().ID()))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IncidentLinks returns the links touching id, ordered by (A, B).
func (t *Topology) IncidentLinks(id NodeID) []LinkID {
	var out []LinkID
	for _, n := range t.Neighbors(id) {
		out = append(out, NewLinkID(id, n))
	}
	sortLinks(out)
	return out
}

// FindNodes returns, in ascending order, the nodes whose attribute key equals value.
func (t *Topology) FindNodes(key, value string) []NodeID {
	var out []NodeID
	for _, id := range t.Nodes() {
		if t.nodes[id].Attr(key) == value {
			out = append(out, id)
		}
	}
	return out
}

// LinkLatency returns size/BW + PR for the link between a and b.
func (t *Topology) LinkLatency(a, b NodeID, size float64) (float64, bool) {
	l, ok := t.Link(a, b)
	if !ok {
		return 0, false
	}
	return l.Latency(size), true
}

func sortLinks(ids []LinkID) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].A != ids[j].A {
			return ids[i].A < ids[j].A
		}
		return ids[i].B < ids[j].B
	})
}
