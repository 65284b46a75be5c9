// Package scenario reads a YAML description of a complete simulation run
// (topology, applications and their policies, failures and monitors) and
// builds a ready-to-run simulator from it.
package scenario

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/fogsim/fogsim/sim"
	"github.com/fogsim/fogsim/sim/policy"
	"github.com/fogsim/fogsim/sim/topology"
	"github.com/fogsim/fogsim/sim/trace"
)

// Scenario is the file form of a simulation run.
type Scenario struct {
	Seed         int64         `yaml:"seed"`
	Horizon      float64       `yaml:"horizon"`
	Results      string        `yaml:"results,omitempty"`
	Trace        string        `yaml:"trace,omitempty"`
	NodeCapacity int           `yaml:"node_capacity,omitempty"`
	LinkCapacity int           `yaml:"link_capacity,omitempty"`
	Topology     TopologySpec  `yaml:"topology"`
	Applications []AppSpec     `yaml:"applications"`
	Failures     *FailureSpec  `yaml:"failures,omitempty"`
	Monitors     []MonitorSpec `yaml:"monitors,omitempty"`

	// dir is the directory of the scenario file; relative paths resolve against it.
	dir string
}

// TopologySpec is either a reference to a topology description file or an
// inline description.
type TopologySpec struct {
	File                 string `yaml:"file,omitempty"`
	topology.Description `yaml:",inline"`
}

// AppSpec describes one application and the policies that deploy it.
type AppSpec struct {
	Name       string                  `yaml:"name"`
	Modules    []ModuleSpec            `yaml:"modules"`
	Messages   []MessageSpec           `yaml:"messages"`
	Services   []ServiceSpec           `yaml:"services,omitempty"`
	Selection  string                  `yaml:"selection,omitempty"`
	Placement  policy.PlacementConfig  `yaml:"placement"`
	Population policy.PopulationConfig `yaml:"population"`
}

// ModuleSpec describes one module.
type ModuleSpec struct {
	Name string  `yaml:"name"`
	Kind string  `yaml:"kind"`
	RAM  float64 `yaml:"ram,omitempty"`
}

// MessageSpec describes one message template.
type MessageSpec struct {
	Name         string  `yaml:"name"`
	Src          string  `yaml:"src"`
	Dst          string  `yaml:"dst"`
	Instructions float64 `yaml:"instructions,omitempty"`
	Size         float64 `yaml:"size,omitempty"`
	Broadcasting bool    `yaml:"broadcasting,omitempty"`
}

// ServiceSpec describes one service of a module.
type ServiceSpec struct {
	Module        string                `yaml:"module"`
	Kind          string                `yaml:"kind,omitempty"`
	In            string                `yaml:"in,omitempty"`
	Out           string                `yaml:"out,omitempty"`
	Selectivity   float64               `yaml:"selectivity,omitempty"`
	Destinations  []string              `yaml:"destinations,omitempty"`
	Probabilities []float64             `yaml:"probabilities,omitempty"`
	Distribution  *sim.DistributionSpec `yaml:"distribution,omitempty"`
}

// FailureSpec removes the listed nodes one by one.
type FailureSpec struct {
	Nodes        []topology.NodeID    `yaml:"nodes"`
	Distribution sim.DistributionSpec `yaml:"distribution"`
}

// MonitorSpec periodically logs a snapshot of the simulation.
type MonitorSpec struct {
	Kind  string               `yaml:"kind"`
	Every sim.DistributionSpec `yaml:"every"`
}

// Monitor kinds.
const (
	MonitorAlloc   = "alloc"   // deployed entities per node
	MonitorNetwork = "network" // message counters and messages in flight
	MonitorUsage   = "usage"   // node and link usage
)

var validMonitors = map[string]bool{MonitorAlloc: true, MonitorNetwork: true, MonitorUsage: true}

// Load reads and parses a YAML scenario file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	sc.dir = filepath.Dir(path)
	return sc, nil
}

// Parse decodes a scenario document. Relative topology paths resolve against
// the working directory.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	return &sc, nil
}

// Validate checks names, references, probability ranges and policy
// configurations without building a simulator.
func (sc *Scenario) Validate() error {
	_, err := sc.Check()
	return err
}

// Check validates the scenario and returns the topology it built on the way.
func (sc *Scenario) Check() (*topology.Topology, error) {
	if sc.Horizon <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %v", sc.Horizon)
	}
	if !trace.IsValidTraceLevel(sc.Trace) {
		return nil, fmt.Errorf("unknown trace level %q; valid levels: [none, decisions, deliveries]", sc.Trace)
	}
	if sc.NodeCapacity < 0 || sc.LinkCapacity < 0 {
		return nil, fmt.Errorf("capacities must be >= 0")
	}
	topo, err := sc.BuildTopology()
	if err != nil {
		return nil, err
	}
	if len(sc.Applications) == 0 {
		return nil, fmt.Errorf("at least one application is required")
	}
	seen := make(map[string]bool)
	for i, a := range sc.Applications {
		if seen[a.Name] {
			return nil, fmt.Errorf("applications[%d]: duplicate application %q", i, a.Name)
		}
		seen[a.Name] = true
		if err := a.validate(topo); err != nil {
			return nil, fmt.Errorf("applications[%d]: %w", i, err)
		}
	}
	if sc.Failures != nil {
		if err := sc.Failures.Distribution.Validate(); err != nil {
			return nil, fmt.Errorf("failures: %w", err)
		}
		for _, n := range sc.Failures.Nodes {
			if !topo.HasNode(n) {
				return nil, fmt.Errorf("failures: %w %d", topology.ErrUnknownNode, n)
			}
		}
	}
	for i, m := range sc.Monitors {
		if !validMonitors[m.Kind] {
			return nil, fmt.Errorf("monitors[%d]: unknown kind %q; valid kinds: [alloc, network, usage]", i, m.Kind)
		}
		if err := m.Every.Validate(); err != nil {
			return nil, fmt.Errorf("monitors[%d]: %w", i, err)
		}
	}
	return topo, nil
}

func (a AppSpec) validate(topo *topology.Topology) error {
	if a.Name == "" {
		return fmt.Errorf("name is required")
	}
	if _, err := a.Build(); err != nil {
		return err
	}
	if a.Selection != "" && !policy.ValidSelections[a.Selection] {
		return fmt.Errorf("app %s: unknown selection %q; valid selections: [shortest-path, round-robin, broadcast, fastest-path, random]", a.Name, a.Selection)
	}
	if err := a.Placement.Validate(); err != nil {
		return fmt.Errorf("app %s: %w", a.Name, err)
	}
	for _, nodes := range a.Placement.Allocations {
		for _, n := range nodes {
			if !topo.HasNode(n) {
				return fmt.Errorf("app %s: placement: %w %d", a.Name, topology.ErrUnknownNode, n)
			}
		}
	}
	if err := a.Population.Validate(); err != nil {
		return fmt.Errorf("app %s: population: %w", a.Name, err)
	}
	return nil
}

// BuildTopology loads the referenced topology file, or builds the inline description.
func (sc *Scenario) BuildTopology() (*topology.Topology, error) {
	desc := &sc.Topology.Description
	if sc.Topology.File != "" {
		if len(desc.Entities) > 0 || len(desc.Links) > 0 {
			return nil, fmt.Errorf("topology: file and inline entities are mutually exclusive")
		}
		path := sc.Topology.File
		if !filepath.IsAbs(path) && sc.dir != "" {
			path = filepath.Join(sc.dir, path)
		}
		loaded, err := topology.LoadDescription(path)
		if err != nil {
			return nil, err
		}
		desc = loaded
	}
	if len(desc.Entities) == 0 {
		return nil, fmt.Errorf("topology: at least one entity is required")
	}
	topo, err := topology.FromDescription(desc)
	if err != nil {
		return nil, fmt.Errorf("topology: %w", err)
	}
	return topo, nil
}

// Build converts the application description into its model.
func (a AppSpec) Build() (*sim.Application, error) {
	app := sim.NewApplication(a.Name)
	for _, m := range a.Modules {
		if err := app.AddModuleSpec(sim.Module{Name: m.Name, Kind: sim.ModuleKind(m.Kind), RAM: m.RAM}); err != nil {
			return nil, err
		}
	}
	for _, m := range a.Messages {
		msg := sim.Message{
			Name:         m.Name,
			Src:          m.Src,
			Dst:          m.Dst,
			Instructions: m.Instructions,
			Size:         m.Size,
			Broadcasting: m.Broadcasting,
		}
		if err := app.AddMessage(msg); err != nil {
			return nil, err
		}
	}
	for _, svc := range a.Services {
		s := sim.Service{
			Kind:          sim.ServiceKind(svc.Kind),
			In:            svc.In,
			Out:           svc.Out,
			Selectivity:   svc.Selectivity,
			Destinations:  svc.Destinations,
			Probabilities: svc.Probabilities,
		}
		if svc.Distribution != nil {
			dist, err := svc.Distribution.Build()
			if err != nil {
				return nil, fmt.Errorf("app %s: service on %s: %w", a.Name, svc.Module, err)
			}
			s.Distribution = dist
		}
		if err := app.AddService(svc.Module, s); err != nil {
			return nil, err
		}
	}
	return app, nil
}
