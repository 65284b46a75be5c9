package topology

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Description is the file form of a topology: an entity list and a link list.
// JSON documents are accepted as well, since they are valid YAML.
type Description struct {
	Entities []EntityDesc `yaml:"entity"`
	Links    []LinkDesc   `yaml:"link"`
}

// EntityDesc describes one node. Keys other than the named ones land in Attrs.
type EntityDesc struct {
	ID       int64             `yaml:"id"`
	IPT      float64           `yaml:"IPT"`
	RAM      float64           `yaml:"RAM,omitempty"`
	WattIdle float64           `yaml:"WATT_IDLE,omitempty"`
	WattLoad float64           `yaml:"WATT_LOAD,omitempty"`
	Attrs    map[string]string `yaml:",inline"`
}

// LinkDesc describes one undirected link.
type LinkDesc struct {
	S  int64   `yaml:"s"`
	D  int64   `yaml:"d"`
	BW float64 `yaml:"BW"`
	PR float64 `yaml:"PR"`
}

// LoadDescription reads a topology description from a YAML or JSON file.
func LoadDescription(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading topology: %w", err)
	}
	var desc Description
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&desc); err != nil {
		return nil, fmt.Errorf("parsing topology: %w", err)
	}
	return &desc, nil
}

// FromDescription builds a topology. Node ids must be unique and every link
// must reference declared nodes.
func FromDescription(desc *Description) (*Topology, error) {
	t := New()
	for i, e := range desc.Entities {
		if t.HasNode(NodeID(e.ID)) {
			return nil, fmt.Errorf("entity[%d]: duplicate node id %d", i, e.ID)
		}
		if e.IPT < 0 {
			return nil, fmt.Errorf("entity[%d]: IPT must be >= 0, got %v", i, e.IPT)
		}
		t.AddNode(Node{
			ID:       NodeID(e.ID),
			IPT:      e.IPT,
			RAM:      e.RAM,
			WattIdle: e.WattIdle,
			WattLoad: e.WattLoad,
			Attrs:    e.Attrs,
		})
	}
	for i, l := range desc.Links {
		if err := t.AddLink(NodeID(l.S), NodeID(l.D), Link{BW: l.BW, PR: l.PR}); err != nil {
			return nil, fmt.Errorf("link[%d]: %w", i, err)
		}
	}
	return t, nil
}

// Describe converts the topology back to its file form.
func (t *Topology) Describe() *Description {
	desc := &Description{}
	for _, id := range t.Nodes() {
		n := t.nodes[id]
		desc.Entities = append(desc.Entities, EntityDesc{
			ID:       int64(n.ID),
			IPT:      n.IPT,
			RAM:      n.RAM,
			WattIdle: n.WattIdle,
			WattLoad: n.WattLoad,
			Attrs:    n.Attrs,
		})
	}
	for _, id := range t.Links() {
		l := t.links[id]
		desc.Links = append(desc.Links, LinkDesc{S: int64(id.A), D: int64(id.B), BW: l.BW, PR: l.PR})
	}
	return desc
}
