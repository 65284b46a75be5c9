package topology

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// line builds 1 - 2 - 3 with unit links.
func line(t *testing.T) *Topology {
	t.Helper()
	topo := New()
	for i := NodeID(1); i <= 3; i++ {
		topo.AddNode(Node{ID: i, IPT: 10})
	}
	require.NoError(t, topo.AddLink(1, 2, Link{BW: 1, PR: 1}))
	require.NoError(t, topo.AddLink(2, 3, Link{BW: 1, PR: 1}))
	return topo
}

func TestNewLinkID_IsCanonical(t *testing.T) {
	assert.Equal(t, NewLinkID(1, 2), NewLinkID(2, 1))
	assert.Equal(t, NodeID(1), NewLinkID(5, 1).A)
	assert.True(t, NewLinkID(3, 4).Touches(4))
	assert.False(t, NewLinkID(3, 4).Touches(5))
}

func TestAddLink_RejectsUnknownNodesAndBadAttributes(t *testing.T) {
	topo := New()
	topo.AddNode(Node{ID: 1})

	err := topo.AddLink(1, 2, Link{BW: 1})
	assert.True(t, errors.Is(err, ErrUnknownNode))

	topo.AddNode(Node{ID: 2})
	assert.Error(t, topo.AddLink(1, 2, Link{BW: 0}))
	assert.Error(t, topo.AddLink(1, 2, Link{BW: 1, PR: -1}))
	assert.Error(t, topo.AddLink(1, 1, Link{BW: 1}))
	assert.NoError(t, topo.AddLink(1, 2, Link{BW: 1}))
}

func TestRemoveNode_DropsIncidentLinks(t *testing.T) {
	// GIVEN a 3-node line
	topo := line(t)

	// WHEN the middle node is removed
	removed := topo.RemoveNode(2)

	// THEN both links are gone and the endpoints survive
	assert.True(t, removed)
	assert.False(t, topo.HasNode(2))
	assert.False(t, topo.HasLink(1, 2))
	assert.False(t, topo.HasLink(2, 3))
	assert.Equal(t, []NodeID{1, 3}, topo.Nodes())
	assert.Empty(t, topo.Links())

	// AND removing it again is a no-op
	assert.False(t, topo.RemoveNode(2))
}

func TestNeighbors_SortedAscending(t *testing.T) {
	topo := New()
	for _, id := range []NodeID{5, 3, 9, 1} {
		topo.AddNode(Node{ID: id})
	}
	require.NoError(t, topo.AddLink(5, 9, Link{BW: 1}))
	require.NoError(t, topo.AddLink(5, 1, Link{BW: 1}))
	require.NoError(t, topo.AddLink(5, 3, Link{BW: 1}))

	assert.Equal(t, []NodeID{1, 3, 9}, topo.Neighbors(5))
	assert.Equal(t, []LinkID{{1, 5}, {3, 5}, {5, 9}}, topo.IncidentLinks(5))
}

func TestFindNodes_MatchesAttribute(t *testing.T) {
	topo := New()
	topo.AddNode(Node{ID: 1, Attrs: map[string]string{"model": "sensor"}})
	topo.AddNode(Node{ID: 2, Attrs: map[string]string{"model": "cloud"}})
	topo.AddNode(Node{ID: 3, Attrs: map[string]string{"model": "sensor"}})

	assert.Equal(t, []NodeID{1, 3}, topo.FindNodes("model", "sensor"))
	assert.Empty(t, topo.FindNodes("model", "gateway"))
}

func TestAddNode_CopiesAttributes(t *testing.T) {
	attrs := map[string]string{"model": "sensor"}
	topo := New()
	topo.AddNode(Node{ID: 1, Attrs: attrs})
	attrs["model"] = "changed"

	n, ok := topo.Node(1)
	require.True(t, ok)
	assert.Equal(t, "sensor", n.Attr("model"))
}

func TestLinkLatency_SizeOverBandwidthPlusPropagation(t *testing.T) {
	topo := New()
	topo.AddNode(Node{ID: 1})
	topo.AddNode(Node{ID: 2})
	require.NoError(t, topo.AddLink(1, 2, Link{BW: 4, PR: 3}))

	lat, ok := topo.LinkLatency(2, 1, 10)
	assert.True(t, ok)
	assert.InDelta(t, 10.0/4+3, lat, 1e-12)

	_, ok = topo.LinkLatency(1, 3, 10)
	assert.False(t, ok)
}
