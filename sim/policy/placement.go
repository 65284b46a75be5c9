package policy

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fogsim/fogsim/sim"
	"github.com/fogsim/fogsim/sim/topology"
)

// Placement policy names.
const (
	PlacementStatic    = "static"
	PlacementCloud     = "cloud"
	PlacementAttribute = "attribute"
	PlacementNone      = "none"
)

// ValidPlacements is the set of recognized placement policy names.
var ValidPlacements = map[string]bool{
	PlacementStatic:    true,
	PlacementCloud:     true,
	PlacementAttribute: true,
	PlacementNone:      true,
}

// StaticPlacement deploys each listed module on explicitly named nodes.
type StaticPlacement struct {
	Allocations map[string][]topology.NodeID // module → nodes
}

func (p *StaticPlacement) Name() string { return PlacementStatic }

func (p *StaticPlacement) InitialAllocation(s *sim.Simulator, app string) error {
	a, ok := s.Application(app)
	if !ok {
		return fmt.Errorf("static placement: application %s is not deployed", app)
	}
	for module := range p.Allocations {
		if _, ok := a.Module(module); !ok {
			return fmt.Errorf("static placement: app %s has no module %q", app, module)
		}
	}
	for _, module := range a.Modules() {
		nodes, ok := p.Allocations[module]
		if !ok {
			continue
		}
		if _, err := s.DeployModule(app, module, nil, nodes); err != nil {
			return err
		}
	}
	return nil
}

// CloudPlacement deploys every operator module on the node with the highest
// IPT, lowest id first on ties. With an activation distribution it also runs
// periodically and redeploys operators that lost all their instances.
type CloudPlacement struct {
	Every sim.Distribution

	apps []string
}

func (p *CloudPlacement) Name() string { return PlacementCloud }

func (p *CloudPlacement) InitialAllocation(s *sim.Simulator, app string) error {
	a, ok := s.Application(app)
	if !ok {
		return fmt.Errorf("cloud placement: application %s is not deployed", app)
	}
	p.apps = append(p.apps, app)
	cloud, ok := fastestNode(s.Topology())
	if !ok {
		return fmt.Errorf("cloud placement: no node with IPT > 0")
	}
	for _, module := range a.ModulesOfKind(sim.ModuleOperator) {
		if _, err := s.DeployModule(app, module, nil, []topology.NodeID{cloud}); err != nil {
			return err
		}
	}
	return nil
}

func (p *CloudPlacement) Activation() sim.Distribution { return p.Every }

// Run redeploys every operator module left without live instances.
func (p *CloudPlacement) Run(s *sim.Simulator) {
	for _, app := range p.apps {
		a, ok := s.Application(app)
		if !ok {
			continue
		}
		for _, module := range a.ModulesOfKind(sim.ModuleOperator) {
			if len(s.ProcessesOf(app, module)) > 0 || len(a.Inputs(module)) == 0 {
				continue
			}
			cloud, ok := fastestNode(s.Topology())
			if !ok {
				logrus.Warnf("[%.3f] cloud placement: no node left for %s/%s", s.Now(), app, module)
				return
			}
			if _, err := s.DeployModule(app, module, nil, []topology.NodeID{cloud}); err != nil {
				logrus.Warnf("[%.3f] cloud placement: redeploying %s/%s: %v", s.Now(), app, module, err)
				continue
			}
			logrus.Infof("[%.3f] cloud placement: redeployed %s/%s on node %d", s.Now(), app, module, cloud)
		}
	}
}

// AttributePlacement deploys modules on every node whose attribute Key equals Value.
// An empty Modules list means all operator modules.
type AttributePlacement struct {
	Key     string
	Value   string
	Modules []string
}

func (p *AttributePlacement) Name() string { return PlacementAttribute }

func (p *AttributePlacement) InitialAllocation(s *sim.Simulator, app string) error {
	a, ok := s.Application(app)
	if !ok {
		return fmt.Errorf("attribute placement: application %s is not deployed", app)
	}
	nodes := s.Topology().FindNodes(p.Key, p.Value)
	if len(nodes) == 0 {
		return fmt.Errorf("attribute placement: no node has %s=%s", p.Key, p.Value)
	}
	modules := p.Modules
	if len(modules) == 0 {
		modules = a.ModulesOfKind(sim.ModuleOperator)
	}
	for _, module := range modules {
		if _, err := s.DeployModule(app, module, nil, nodes); err != nil {
			return err
		}
	}
	return nil
}

// NoPlacement deploys nothing; for applications made only of sources and sinks.
type NoPlacement struct{}

func (NoPlacement) Name() string { return PlacementNone }

func (NoPlacement) InitialAllocation(*sim.Simulator, string) error { return nil }

func fastestNode(topo *topology.Topology) (topology.NodeID, bool) {
	var best topology.NodeID
	bestIPT := 0.0
	for _, id := range topo.Nodes() {
		n, _ := topo.Node(id)
		if n.IPT > bestIPT {
			best, bestIPT = id, n.IPT
		}
	}
	return best, bestIPT > 0
}
