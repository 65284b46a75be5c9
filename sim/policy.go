package sim

import (
	"math/rand"

	"github.com/fogsim/fogsim/sim/topology"
)

// Endpoint is a live process that can receive a message, and the node hosting it.
type Endpoint struct {
	Process ProcessID
	Node    topology.NodeID
}

// Route is one path chosen for a message: node ids from the sending node to
// the destination process's node, both included.
type Route struct {
	Path    []topology.NodeID
	Process ProcessID
}

// PathContext is the read-only view of the simulation a selection policy works against.
type PathContext interface {
	Now() float64
	Topology() *topology.Topology
	// BusyUntil returns the time the link finishes its last granted transmission.
	BusyUntil(link topology.LinkID) float64
	// NodeBacklog returns the processes holding or waiting for the node's processing slot.
	NodeBacklog(node topology.NodeID) int
	RNG() *rand.Rand
}

// Selection computes paths for a message. An empty result means unreachable.
type Selection interface {
	GetPaths(ctx PathContext, env Envelope, src topology.NodeID, candidates []Endpoint) []Route
}

// BrokenPath describes a transmission whose remaining path became unusable.
type BrokenPath struct {
	Envelope   Envelope
	Path       []topology.NodeID
	Hop        int // index of the node currently holding the message
	DstProcess ProcessID
}

// Current returns the node currently holding the message.
func (b BrokenPath) Current() topology.NodeID { return b.Path[b.Hop] }

// Rerouter is implemented by selections that repair broken paths themselves.
// The returned route starts at the current node.
type Rerouter interface {
	GetPathFromFailure(ctx PathContext, broken BrokenPath, candidates []Endpoint) (Route, bool)
}

// Placement deploys the operator modules of an application.
type Placement interface {
	InitialAllocation(s *Simulator, app string) error
}

// Population deploys the sources and sinks of an application.
type Population interface {
	InitialAllocation(s *Simulator, app string) error
}

// Periodic is implemented by placement or population policies that also run
// on a schedule after the initial allocation.
type Periodic interface {
	Activation() Distribution
	Run(s *Simulator)
}

// Named is implemented by policies that report a name in traces.
type Named interface {
	Name() string
}

func policyName(p any) string {
	if n, ok := p.(Named); ok {
		return n.Name()
	}
	return "custom"
}
