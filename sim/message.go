package sim

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/fogsim/fogsim/sim/topology"
)

// Message is an immutable message template declared by an application.
type Message struct {
	Name         string
	Src          string  // module that produces it
	Dst          string  // module that consumes it
	Instructions float64 // compute cost at the destination
	Size         float64 // bytes on the wire
	Broadcasting bool    // deliver to every deployed instance of Dst
}

// Envelope is one emitted instance of a message. It does not change in transit.
type Envelope struct {
	ID         int64 // shared by every message derived from the same source emission
	App        string
	Message    Message
	Emitted    float64
	SrcProcess ProcessID
	Lineage    []ProcessID // processes the emission has passed through, oldest first
}

func (e Envelope) String() string {
	return fmt.Sprintf("%s#%d(%s->%s)", e.Message.Name, e.ID, e.Message.Src, e.Message.Dst)
}

// evolve derives the envelope a consumer forwards after handling e.
func (e Envelope) evolve(out Message, now float64, by ProcessID) Envelope {
	lineage := slices.Clone(e.Lineage)
	lineage = append(lineage, by)
	return Envelope{
		ID:         e.ID,
		App:        e.App,
		Message:    out,
		Emitted:    now,
		SrcProcess: by,
		Lineage:    lineage,
	}
}

// Delivery is what a consumer's inbox hands it.
type Delivery struct {
	Envelope       Envelope
	Path           []topology.NodeID
	DstProcess     ProcessID
	NetworkQueue   float64 // total time spent waiting for busy links
	NetworkLatency float64 // total time spent crossing links
	Received       float64
}

// Transmission is the in-flight state of one envelope on one path. It is owned
// by the transmission process driving it.
type Transmission struct {
	Envelope       Envelope
	Path           []topology.NodeID
	DstProcess     ProcessID
	NetworkQueue   float64
	NetworkLatency float64
	Reroutes       int

	hop int // index into Path of the node currently holding the message
}

// Current returns the node currently holding the message.
func (t *Transmission) Current() topology.NodeID { return t.Path[t.hop] }

// Arrived reports whether the message has reached the last node of its path.
func (t *Transmission) Arrived() bool { return t.hop == len(t.Path)-1 }

// splice replaces everything after the current node with suffix, which must start at it.
func (t *Transmission) splice(suffix []topology.NodeID) {
	path := slices.Clone(t.Path[:t.hop])
	t.Path = append(path, suffix...)
}
