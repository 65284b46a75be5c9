package topology

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDescription_JSON(t *testing.T) {
	// GIVEN a JSON topology in the entity/link layout
	dir := t.TempDir()
	file := filepath.Join(dir, "topology.json")
	doc := `{
  "entity": [
    {"id": 0, "IPT": 5000, "RAM": 40000, "model": "cloud"},
    {"id": 1, "IPT": 1000, "RAM": 4000, "model": "sensor"}
  ],
  "link": [
    {"s": 0, "d": 1, "BW": 100, "PR": 2}
  ]
}`
	require.NoError(t, os.WriteFile(file, []byte(doc), 0644))

	// WHEN it is loaded and built
	desc, err := LoadDescription(file)
	require.NoError(t, err)
	topo, err := FromDescription(desc)
	require.NoError(t, err)

	// THEN nodes, free attributes and link attributes are preserved
	assert.Equal(t, 2, topo.Len())
	cloud, ok := topo.Node(0)
	require.True(t, ok)
	assert.Equal(t, 5000.0, cloud.IPT)
	assert.Equal(t, "cloud", cloud.Attr("model"))
	l, ok := topo.Link(1, 0)
	require.True(t, ok)
	assert.Equal(t, Link{BW: 100, PR: 2}, l)
}

func TestFromDescription_RejectsDuplicateAndDanglingIDs(t *testing.T) {
	_, err := FromDescription(&Description{Entities: []EntityDesc{{ID: 1}, {ID: 1}}})
	assert.ErrorContains(t, err, "duplicate node id 1")

	_, err = FromDescription(&Description{
		Entities: []EntityDesc{{ID: 1}},
		Links:    []LinkDesc{{S: 1, D: 2, BW: 1}},
	})
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestDescribe_RoundTrip(t *testing.T) {
	topo := line(t)

	again, err := FromDescription(topo.Describe())

	require.NoError(t, err)
	assert.Equal(t, topo.Nodes(), again.Nodes())
	assert.Equal(t, topo.Links(), again.Links())
}
